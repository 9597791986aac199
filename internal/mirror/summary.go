package mirror

import (
	"github.com/rs/zerolog"
)

// LogSummary writes the per-project outcome table and the totals.
func LogSummary(logger zerolog.Logger, s *Summary) {
	if s == nil {
		return
	}
	for _, r := range s.Reports {
		ev := logger.Info()
		if r.Outcome != OutcomeSynced || len(r.Warnings) > 0 {
			ev = logger.Warn()
		}
		ev.Str("project", r.Project).Str("outcome", string(r.Outcome)).Strs("warnings", r.Warnings).Msg("result")
	}
	counts := s.Counts()
	ev := logger.Info().
		Int("projects", s.CatalogSize).
		Dur("took", s.Finished.Sub(s.Started)).
		Bool("legacy_import_available", s.LegacyImportAvailable)
	for _, o := range Outcomes {
		ev = ev.Int(string(o), counts[o])
	}
	if s.RegistryTruncated {
		ev = ev.Bool("registry_truncated", true)
	}
	ev.Msg("sync finished")
}
