package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crudgen/crudgen"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the crudgen version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "crudgen "+crudgen.Version)
		},
	}
}
