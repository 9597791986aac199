package server

import (
	"sync"
	"time"

	"github.com/danmuck/forgemirror/internal/mirror"
)

// State is the serve loop's view of the most recent runs. It is written by
// the scheduler and read by HTTP handlers.
type State struct {
	mu        sync.RWMutex
	running   bool
	runs      int
	last      *mirror.Summary
	lastError string
	nextRun   time.Time
}

func NewState() *State {
	return &State{}
}

// Begin marks a run as in flight.
func (s *State) Begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
}

// Finish records the result of a run and when the next one is due.
func (s *State) Finish(summary *mirror.Summary, err error, next time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.runs++
	s.nextRun = next
	if err != nil {
		s.lastError = err.Error()
		return
	}
	s.lastError = ""
	s.last = summary
}

// StatusView is the JSON body of /status.
type StatusView struct {
	Running               bool           `json:"running"`
	Runs                  int            `json:"runs"`
	LastError             string         `json:"last_error,omitempty"`
	NextRun               *time.Time     `json:"next_run,omitempty"`
	LastStarted           *time.Time     `json:"last_started,omitempty"`
	LastFinished          *time.Time     `json:"last_finished,omitempty"`
	CatalogSize           int            `json:"catalog_size"`
	RegistryTruncated     bool           `json:"registry_truncated"`
	LegacyImportAvailable bool           `json:"legacy_import_available"`
	Counts                map[string]int `json:"counts"`
	Problems              []ProjectView  `json:"problems,omitempty"`
}

// ProjectView lists a project that did not sync cleanly.
type ProjectView struct {
	Project  string   `json:"project"`
	Outcome  string   `json:"outcome"`
	Warnings []string `json:"warnings,omitempty"`
}

// Snapshot copies the current state into a StatusView.
func (s *State) Snapshot() StatusView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	view := StatusView{
		Running:   s.running,
		Runs:      s.runs,
		LastError: s.lastError,
		Counts:    make(map[string]int, len(mirror.Outcomes)),
	}
	if !s.nextRun.IsZero() {
		next := s.nextRun
		view.NextRun = &next
	}
	for o, n := range s.last.Counts() {
		view.Counts[string(o)] = n
	}
	if s.last == nil {
		return view
	}
	started, finished := s.last.Started, s.last.Finished
	view.LastStarted = &started
	view.LastFinished = &finished
	view.CatalogSize = s.last.CatalogSize
	view.RegistryTruncated = s.last.RegistryTruncated
	view.LegacyImportAvailable = s.last.LegacyImportAvailable
	for _, r := range s.last.Reports {
		if r.Outcome == mirror.OutcomeSynced && len(r.Warnings) == 0 {
			continue
		}
		view.Problems = append(view.Problems, ProjectView{
			Project:  r.Project,
			Outcome:  string(r.Outcome),
			Warnings: r.Warnings,
		})
	}
	return view
}
