package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/crudgen/crudgen"
)

func newScanCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Scan the models and print what crudgen sees",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}

			models, err := crudgen.Scan(cfg, opts.logger(cfg))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			bold := color.New(color.Bold)
			dim := color.New(color.Faint)

			for _, m := range models {
				if m.IsTable {
					bold.Fprintf(out, "%s", m.Name)
					dim.Fprintf(out, " -> %s\n", m.TableName)
				} else {
					bold.Fprintf(out, "%s", m.Name)
					dim.Fprintln(out, " (schema only)")
				}
				for _, f := range m.Fields {
					var notes []string
					if f.PrimaryKey {
						notes = append(notes, "pk")
					}
					if f.Unique {
						notes = append(notes, "unique")
					}
					if f.Index {
						notes = append(notes, "index")
					}
					if f.Nullable {
						notes = append(notes, "nullable")
					}
					if f.IsRelationship() {
						notes = append(notes, fmt.Sprintf("%s %s", f.RelationshipKind, f.RelationshipModel))
					}
					suffix := ""
					if len(notes) > 0 {
						suffix = " (" + strings.Join(notes, ", ") + ")"
					}
					fmt.Fprintf(out, "  %-20s %s%s\n", f.Name, f.Type, suffix)
				}
			}
			dim.Fprintf(out, "%d models\n", len(models))
			return nil
		},
	}
}
