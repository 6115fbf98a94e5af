package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func dropCommand[S any](provide Provider[S]) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "drop",
		Short: "Drop migration table (only when no migration is applied)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, db, err := provide(cmd.Context())
			if err != nil {
				return err
			}

			if !force {
				ok, err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(),
					fmt.Sprintf("Do you want to drop table %s?", m.TableName()))
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
			}

			if err = m.DropMigrationTable(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Dropped migrations table")
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "do not ask for confirmation")

	return cmd
}
