package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/crudgen/crudgen"
)

func newGenerateCmd(opts *rootOptions) *cobra.Command {
	var (
		force  bool
		dryRun bool
		backup bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Scan the models and regenerate the data layer if they changed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			if force {
				cfg.Force = true
			}
			if dryRun {
				cfg.DryRun = true
			}
			if backup {
				cfg.Backup = true
			}

			report, err := crudgen.Generate(cfg, opts.logger(cfg))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if report.UpToDate {
				color.New(color.FgGreen).Fprintln(out, "models unchanged, nothing to generate")
				return nil
			}

			color.New(color.FgCyan).Fprintln(out, report.Changes.Summary())
			if report.Generated.DryRun {
				color.New(color.FgYellow).Fprintf(out, "dry run: %d files would be written\n", len(report.Generated.Written))
				return nil
			}
			color.New(color.FgGreen).Fprintf(out, "wrote %d files for %d models\n", len(report.Generated.Written), len(report.Models))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "regenerate even when nothing changed")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be written without writing")
	cmd.Flags().BoolVar(&backup, "backup", false, "back up files before overwriting them")
	return cmd
}
