package runlog

import (
	"time"

	"github.com/danmuck/forgemirror/internal/mirror"
)

// Record is the persisted form of one run.
type Record struct {
	Started               time.Time       `toml:"started"`
	Finished              time.Time       `toml:"finished"`
	CatalogSize           int             `toml:"catalog_size"`
	RegistrySize          int             `toml:"registry_size"`
	RegistryTruncated     bool            `toml:"registry_truncated"`
	LegacyImportAvailable bool            `toml:"legacy_import_available"`
	Counts                map[string]int  `toml:"counts"`
	Projects              []ProjectRecord `toml:"projects"`
}

// ProjectRecord is one project's line in the run log.
type ProjectRecord struct {
	ID       string       `toml:"id"`
	Outcome  string       `toml:"outcome"`
	Created  bool         `toml:"created,omitempty"`
	Seconds  float64      `toml:"seconds"`
	Warnings []string     `toml:"warnings,omitempty"`
	Failed   []StepRecord `toml:"failed,omitempty"`
}

// StepRecord keeps the exit code and class of a failed step.
type StepRecord struct {
	Op       string `toml:"op"`
	ExitCode int32  `toml:"exit_code"`
	Signal   string `toml:"signal"`
}

// FromSummary flattens a run summary. Raw command output is not persisted.
func FromSummary(s *mirror.Summary) Record {
	rec := Record{
		Started:               s.Started.UTC(),
		Finished:              s.Finished.UTC(),
		CatalogSize:           s.CatalogSize,
		RegistrySize:          s.RegistrySize,
		RegistryTruncated:     s.RegistryTruncated,
		LegacyImportAvailable: s.LegacyImportAvailable,
		Counts:                make(map[string]int, len(mirror.Outcomes)),
		Projects:              make([]ProjectRecord, 0, len(s.Reports)),
	}
	if rec.Finished.IsZero() {
		rec.Finished = time.Now().UTC()
	}
	for o, n := range s.Counts() {
		rec.Counts[string(o)] = n
	}
	for _, r := range s.Reports {
		pr := ProjectRecord{
			ID:       r.Project,
			Outcome:  string(r.Outcome),
			Created:  r.Created,
			Seconds:  r.Duration.Seconds(),
			Warnings: r.Warnings,
		}
		for _, step := range r.Failed() {
			pr.Failed = append(pr.Failed, StepRecord{Op: step.Op, ExitCode: step.ExitCode, Signal: string(step.Signal)})
		}
		rec.Projects = append(rec.Projects, pr)
	}
	return rec
}
