package mirror

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/danmuck/forgemirror/internal/vcs"
)

// Outcome is the terminal result of one project workflow.
type Outcome string

const (
	OutcomeSynced                   Outcome = "synced"
	OutcomeSkippedNoOrigin          Outcome = "skipped_no_origin"
	OutcomeSkippedCapabilityMissing Outcome = "skipped_capability_missing"
	OutcomeCancelled                Outcome = "cancelled"
)

// Outcomes lists every outcome in summary order.
var Outcomes = []Outcome{
	OutcomeSynced,
	OutcomeSkippedNoOrigin,
	OutcomeSkippedCapabilityMissing,
	OutcomeCancelled,
}

const maxStepOutput = 4096

// Step records one external invocation made by a workflow.
type Step struct {
	Op       string
	ExitCode int32
	Signal   vcs.Signal
	Output   string
}

// Report is everything a workflow learned about one project.
type Report struct {
	Project       string
	Outcome       Outcome
	MirrorExisted bool
	Created       bool
	Warnings      []string
	Steps         []Step
	Duration      time.Duration
}

func (r *Report) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

func (r *Report) record(op string, exitCode int32, signal vcs.Signal, output string) {
	r.Steps = append(r.Steps, Step{
		Op:       op,
		ExitCode: exitCode,
		Signal:   signal,
		Output:   tail(strings.TrimSpace(output), maxStepOutput),
	})
}

// Failed returns the steps that did not succeed.
func (r Report) Failed() []Step {
	var out []Step
	for _, s := range r.Steps {
		if s.Signal != vcs.Success {
			out = append(out, s)
		}
	}
	return out
}

// Summary aggregates a whole run.
type Summary struct {
	Started               time.Time
	Finished              time.Time
	CatalogSize           int
	RegistrySize          int
	RegistryTruncated     bool
	LegacyImportAvailable bool
	// Reports follow catalog order.
	Reports []Report
}

// Counts tallies reports by outcome; every outcome has an entry.
func (s *Summary) Counts() map[Outcome]int {
	out := make(map[Outcome]int, len(Outcomes))
	for _, o := range Outcomes {
		out[o] = 0
	}
	if s == nil {
		return out
	}
	for _, r := range s.Reports {
		out[r.Outcome]++
	}
	return out
}

// Report returns the report for project, if the run produced one.
func (s *Summary) Report(project string) (Report, bool) {
	if s == nil {
		return Report{}, false
	}
	for _, r := range s.Reports {
		if r.Project == project {
			return r, true
		}
	}
	return Report{}, false
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := len(s) - n
	for cut < len(s) && !utf8.RuneStart(s[cut]) {
		cut++
	}
	return "..." + s[cut:]
}
