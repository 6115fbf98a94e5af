package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	migrator "github.com/Maksumys/app-migrator"
	"github.com/spf13/cobra"
)

var stateMarks = map[migrator.MigrationState]string{
	migrator.StateApplied:  "✓",
	migrator.StatePending:  "✗",
	migrator.StateReplaced: "↔",
}

func listCommand[S any](provide Provider[S]) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List migrations and their status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, db, err := provide(cmd.Context())
			if err != nil {
				return err
			}

			statuses, err := m.List(cmd.Context(), db)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "APP\tNAME\tSTATUS\tAPPLIED TIME")
			for _, status := range statuses {
				appliedTime := "N/A"
				if status.AppliedTime != nil {
					appliedTime = status.AppliedTime.Format(time.DateTime)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", status.Key.App, status.Key.Name, stateMarks[status.State], appliedTime)
			}
			return w.Flush()
		},
	}
}
