package cli

import (
	"fmt"

	migrator "github.com/Maksumys/app-migrator"
	"github.com/spf13/cobra"
)

func revertCommand[S any](provide Provider[S]) *cobra.Command {
	var (
		flags planFlags
		all   bool
	)

	cmd := &cobra.Command{
		Use:   "revert",
		Short: "Revert migrations (by default the last applied one)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := flags.validate(); err != nil {
				return err
			}

			plan := migrator.RevertCount(1)
			switch {
			case cmd.Flags().Changed("count"):
				plan = migrator.RevertCount(flags.count)
			case flags.app != "":
				plan = migrator.RevertName(flags.app, flags.migration)
			case all:
				plan = migrator.RevertAll()
			}
			plan = plan.WithMode(flags.mode())

			m, db, err := provide(cmd.Context())
			if err != nil {
				return err
			}

			migrations, err := m.GenerateMigrationPlan(cmd.Context(), db, plan)
			if err != nil {
				return err
			}
			if flags.check && len(migrations) > 0 {
				return fmt.Errorf("%w: %d migrations to revert", migrator.ErrPendingMigrationPresent, len(migrations))
			}
			if flags.plan {
				return printPlan(cmd.OutOrStdout(), "reverting", migrations)
			}
			if len(migrations) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No migration exists for reverting")
				return nil
			}

			if !flags.force && !flags.fake {
				if err = printPlan(cmd.OutOrStdout(), "reverting", migrations); err != nil {
					return err
				}
				ok, err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(),
					fmt.Sprintf("Do you want to revert %d migrations?", len(migrations)))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Revert cancelled")
					return nil
				}
			}

			// план, показанный пользователю, должен совпасть с планом под блокировкой
			if err = m.Run(cmd.Context(), db, plan.Expect(planKeys(migrations)...)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Successfully reverted migrations according to plan")
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&all, "all", false, "revert all applied migrations")
	cmd.Flags().BoolVar(&flags.force, "force", false, "do not ask for confirmation")
	cmd.MarkFlagsMutuallyExclusive("all", "app")
	cmd.MarkFlagsMutuallyExclusive("all", "count")

	return cmd
}
