package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/variantdb-pipeline/internal/database"
)

func newDBCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Inspect variant database files",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate <path>",
		Short: "Check that a database file carries the expected variant tables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !database.ValidateFile(cmd.Context(), args[0]) {
				return fmt.Errorf("%s is not a valid variant database", args[0])
			}
			fmt.Printf("%s validated successfully\n", args[0])
			return nil
		},
	})

	return cmd
}
