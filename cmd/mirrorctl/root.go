package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/danmuck/forgemirror/internal/config"
	"github.com/danmuck/forgemirror/internal/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath  string
	concurrency int
	workdir     string
	org         string
	projects    []string
	logLevel    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "mirrorctl",
		Short:         "Mirror Savannah projects into a GitHub organisation",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if opts.logLevel != "" && !logging.SetLevel(opts.logLevel) {
				return fmt.Errorf("unknown log level %q", opts.logLevel)
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default: ./"+config.DefaultPath+" when present)")
	flags.IntVarP(&opts.concurrency, "concurrency", "w", 0, "worker pool size: 0 sequential, -1 platform default")
	flags.StringVar(&opts.workdir, "workdir", "", "parent directory of the local working trees")
	flags.StringVar(&opts.org, "org", "", "mirror organisation")
	flags.StringArrayVar(&opts.projects, "project", nil, "only sync this project id (repeatable)")
	flags.StringVar(&opts.logLevel, "log-level", "", "override the log level (debug, info, warn, error)")

	root.AddCommand(
		newSyncCmd(opts),
		newServeCmd(opts),
		newConfigCmd(opts),
		newRunsCmd(opts),
	)
	return root
}

// resolveConfig loads the config file, then applies any flags the user set.
func resolveConfig(cmd *cobra.Command, opts *rootOptions) (config.Config, error) {
	cfg := config.Default()
	path := strings.TrimSpace(opts.configPath)
	if path == "" {
		if _, err := os.Stat(config.DefaultPath); err == nil {
			path = config.DefaultPath
		} else if !errors.Is(err, fs.ErrNotExist) {
			return config.Config{}, err
		}
	}
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
		log.Debug().Str("path", path).Msg("loaded config")
	}

	flags := cmd.Flags()
	if flags.Changed("concurrency") {
		cfg.Concurrency = opts.concurrency
	}
	if flags.Changed("workdir") {
		cfg.WorkDir = opts.workdir
	}
	if flags.Changed("org") {
		cfg.Org = opts.org
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}

	abs, err := filepath.Abs(cfg.WorkDir)
	if err != nil {
		return config.Config{}, fmt.Errorf("resolve workdir: %w", err)
	}
	cfg.WorkDir = abs
	return cfg, nil
}

func projectFilter(opts *rootOptions) []string {
	out := make([]string, 0, len(opts.projects))
	for _, p := range opts.projects {
		for _, id := range strings.Split(p, ",") {
			if id = strings.TrimSpace(id); id != "" {
				out = append(out, id)
			}
		}
	}
	return out
}
