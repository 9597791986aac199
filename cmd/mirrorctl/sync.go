package main

import (
	"context"
	"fmt"
	"os"

	"github.com/danmuck/forgemirror/internal/catalog"
	"github.com/danmuck/forgemirror/internal/config"
	"github.com/danmuck/forgemirror/internal/mirror"
	"github.com/danmuck/forgemirror/internal/observability"
	"github.com/danmuck/forgemirror/internal/platform"
	"github.com/danmuck/forgemirror/internal/runlog"
	"github.com/danmuck/forgemirror/internal/tools"
	"github.com/danmuck/forgemirror/internal/vcs"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newSyncCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one synchronization pass over the whole catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, opts)
			if err != nil {
				return err
			}
			_, err = runSync(cmd.Context(), cfg, projectFilter(opts), tools.ExecRunner{})
			return err
		},
	}
}

// buildOrchestrator wires one run. The legacy-import capability is scoped to
// the returned orchestrator.
func buildOrchestrator(cfg config.Config, only []string, runner tools.CommandRunner) *mirror.Orchestrator {
	runner = tools.TimeoutRunner{Runner: runner, Timeout: cfg.CommandTimeout}
	gh := platform.NewGH(platform.GHConfig{
		Binary:      cfg.GHBin,
		Org:         cfg.Org,
		Limit:       cfg.RegistryLimit,
		ConfirmFlag: cfg.GHConfirmFlag,
		Runner:      runner,
	})
	return &mirror.Orchestrator{
		Catalog:  catalog.NewReader(cfg.SearchURL, cfg.SearchRows, cfg.HTTPTimeout),
		Registry: gh,
		Workflow: &mirror.Workflow{
			Layout:      cfg.Layout(),
			Git:         vcs.NewGit(cfg.GitBin, runner),
			Platform:    gh,
			Capability:  mirror.NewLegacyImport(cfg.LegacyImport),
			Settings:    platform.MirrorSettings(),
			AllBranches: cfg.AllBranches,
			PushTags:    cfg.PushTags,
		},
		Only:            only,
		FetchMaxElapsed: cfg.FetchMaxElapsed,
	}
}

// runSync performs one pass and persists its results. Only catalog, registry
// and argument failures are returned.
func runSync(ctx context.Context, cfg config.Config, only []string, runner tools.CommandRunner) (*mirror.Summary, error) {
	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("prepare workdir: %w", err)
	}
	observability.RecordLegacyImportAvailable(cfg.LegacyImport)
	log.Info().Str("workdir", cfg.WorkDir).Str("org", cfg.Org).Int("concurrency", cfg.Concurrency).Msg("sync starting")

	summary, err := buildOrchestrator(cfg, only, runner).Run(ctx, cfg.Concurrency)
	if err != nil {
		return nil, err
	}
	mirror.LogSummary(log.Logger, summary)

	if cfg.RunlogEnabled {
		store := runlog.NewStore(cfg.RunlogRoot())
		if name, err := store.Write(summary); err != nil {
			log.Warn().Err(err).Str("dir", store.Root()).Msg("run log not written")
		} else {
			log.Info().Str("run", name).Msg("run log written")
		}
	}
	if cfg.MetricsTextfile != "" {
		if err := observability.WriteTextfile(cfg.MetricsTextfile); err != nil {
			log.Warn().Err(err).Str("path", cfg.MetricsTextfile).Msg("metrics textfile not written")
		}
	}
	return summary, nil
}
