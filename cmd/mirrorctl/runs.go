package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/danmuck/forgemirror/internal/mirror"
	"github.com/danmuck/forgemirror/internal/runlog"
	"github.com/spf13/cobra"
)

func newRunsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded sync runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, opts)
			if err != nil {
				return err
			}
			store := runlog.NewStore(cfg.RunlogRoot())
			names, err := store.List()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(names) == 0 {
				fmt.Fprintf(out, "no runs recorded under %s\n", store.Root())
				return nil
			}
			for _, name := range names {
				fmt.Fprintln(out, name)
			}
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show <name|latest>",
		Short: "Print the outcome counts and problem projects of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, opts)
			if err != nil {
				return err
			}
			store := runlog.NewStore(cfg.RunlogRoot())
			var rec *runlog.Record
			if args[0] == "latest" {
				rec, err = store.Latest()
			} else {
				rec, err = store.Load(args[0])
			}
			if err != nil {
				return err
			}
			printRecord(cmd, rec)
			return nil
		},
	}
	cmd.AddCommand(show)
	return cmd
}

func printRecord(cmd *cobra.Command, rec *runlog.Record) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintf(tw, "finished\t%s\n", rec.Finished.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(tw, "took\t%s\n", rec.Finished.Sub(rec.Started).Round(time.Second))
	fmt.Fprintf(tw, "projects\t%d\n", rec.CatalogSize)
	fmt.Fprintf(tw, "legacy import\t%t\n", rec.LegacyImportAvailable)
	if rec.RegistryTruncated {
		fmt.Fprintf(tw, "registry\ttruncated at %d\n", rec.RegistrySize)
	}
	for _, o := range mirror.Outcomes {
		fmt.Fprintf(tw, "%s\t%d\n", o, rec.Counts[string(o)])
	}
	for _, p := range rec.Projects {
		if p.Outcome == string(mirror.OutcomeSynced) && len(p.Warnings) == 0 {
			continue
		}
		for _, w := range p.Warnings {
			fmt.Fprintf(tw, "%s\t%s: %s\n", p.ID, p.Outcome, w)
		}
		if len(p.Warnings) == 0 {
			fmt.Fprintf(tw, "%s\t%s\n", p.ID, p.Outcome)
		}
	}
}
