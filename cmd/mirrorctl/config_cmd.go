package main

import (
	"fmt"
	"strings"

	"github.com/danmuck/forgemirror/internal/config"
	"github.com/danmuck/forgemirror/internal/mirror"
	"github.com/spf13/cobra"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or check mirrorctl config files",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default config file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultPath
			if len(args) == 1 {
				path = args[0]
			} else if strings.TrimSpace(opts.configPath) != "" {
				path = opts.configPath
			}
			if err := config.WriteTemplate(path, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	validateCmd := &cobra.Command{
		Use:   "validate [path]",
		Short: "Load a config file and print the resolved settings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.configPath = args[0]
			}
			cfg, err := resolveConfig(cmd, opts)
			if err != nil {
				return err
			}
			workers, _ := mirror.ResolveWorkers(cfg.Concurrency)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config ok\n")
			fmt.Fprintf(out, "  workdir      %s\n", cfg.WorkDir)
			fmt.Fprintf(out, "  org          %s\n", cfg.Org)
			fmt.Fprintf(out, "  workers      %d\n", workers)
			fmt.Fprintf(out, "  mirror       %s\n", cfg.Layout().MirrorRemote("{project}"))
			fmt.Fprintf(out, "  legacy       %t\n", cfg.LegacyImport)
			fmt.Fprintf(out, "  run log      %s\n", cfg.RunlogRoot())
			return nil
		},
	}

	cmd.AddCommand(initCmd, validateCmd)
	return cmd
}
