package cli

import (
	"fmt"

	migrator "github.com/Maksumys/app-migrator"
	"github.com/spf13/cobra"
)

func applyCommand[S any](provide Provider[S]) *cobra.Command {
	var flags planFlags

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := flags.validate(); err != nil {
				return err
			}

			plan := migrator.ApplyAll()
			switch {
			case cmd.Flags().Changed("count"):
				plan = migrator.ApplyCount(flags.count)
			case flags.app != "":
				plan = migrator.ApplyName(flags.app, flags.migration)
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
				return fmt.Errorf("%w: %d migrations to apply", migrator.ErrPendingMigrationPresent, len(migrations))
			}
			if flags.plan {
				return printPlan(cmd.OutOrStdout(), "applying", migrations)
			}

			// план, показанный пользователю, должен совпасть с планом под блокировкой
			if err = m.Run(cmd.Context(), db, plan.Expect(planKeys(migrations)...)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Successfully applied migrations according to plan")
			return nil
		},
	}
	flags.register(cmd)

	return cmd
}
