package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/crudgen/crudgen"
)

func newDiffCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "diff",
		Short: "Show what changed since the last snapshot",
		Long:  "Compares the current models against the snapshot. Exits with status 1 when changes are pending, which makes the command usable as a CI check.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}

			changes, err := crudgen.Diff(cfg, opts.logger(cfg))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !changes.HasChanges() {
				color.New(color.FgGreen).Fprintln(out, changes.Summary())
				return nil
			}
			color.New(color.FgYellow).Fprintln(out, changes.Summary())
			os.Exit(1)
			return nil
		},
	}
}
