package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/spkrepo/pkg/storage"
)

func newSchemaCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create missing tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.open()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := storage.Migrate(cmd.Context(), store.DB()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema applied (%s)\n", opts.driver)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "print",
		Short: "Print the schema DDL for the selected driver",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stmts, err := storage.Schema(opts.driver)
			if err != nil {
				return err
			}
			for _, stmt := range stmts {
				fmt.Fprintf(cmd.OutOrStdout(), "%s;\n\n", stmt)
			}
			return nil
		},
	})

	return cmd
}
