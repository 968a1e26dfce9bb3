package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/crudgen/crudgen/config"
)

const starterConfig = `# crudgen configuration
models_path: ./models
output_dir: ./generated
# import path of the models package, used in generated code
models_import: ""
snapshot_file: .crudgen_snapshot.json
database_path: data.db
generators:
  - all
exclude_models: []
backup: false
log_level: warn
`

func newInitCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file in the working directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.configFile
			if path == "" {
				path = config.FileName + ".yaml"
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(starterConfig), 0o644); err != nil {
				return fmt.Errorf("cannot write %s: %w", path, err)
			}
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
}
