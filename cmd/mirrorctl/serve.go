package main

import (
	"context"
	"time"

	"github.com/danmuck/forgemirror/internal/config"
	"github.com/danmuck/forgemirror/internal/server"
	"github.com/danmuck/forgemirror/internal/tools"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Sync on a schedule and expose status and metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, opts)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				cfg.ServeListen = listen
			}
			return serve(cmd.Context(), cfg, projectFilter(opts), tools.ExecRunner{})
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "status server address (overrides serve_listen)")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, only []string, runner tools.CommandRunner) error {
	state := server.NewState()
	srv := server.New(server.Config{
		Listen:      cfg.ServeListen,
		CORSOrigins: cfg.CORSOrigins,
		Version:     version,
		Logger:      log.Logger,
	}, state)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx)
	})
	g.Go(func() error {
		scheduleSyncs(ctx, cfg, only, runner, state)
		return nil
	})
	return g.Wait()
}

// scheduleSyncs runs a pass immediately and then every serve_interval until
// ctx ends. A failed pass is recorded and retried at the next tick.
func scheduleSyncs(ctx context.Context, cfg config.Config, only []string, runner tools.CommandRunner, state *server.State) {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("scheduler stopped")
			return
		case <-timer.C:
		}

		state.Begin()
		summary, err := runSync(ctx, cfg, only, runner)
		next := time.Now().Add(cfg.ServeInterval)
		state.Finish(summary, err, next)
		if err != nil && ctx.Err() == nil {
			log.Error().Err(err).Time("next_run", next).Msg("sync pass failed")
		} else {
			log.Info().Time("next_run", next).Msg("next sync scheduled")
		}
		timer.Reset(cfg.ServeInterval)
	}
}
