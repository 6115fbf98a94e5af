// Package cli собирает cobra команды apply, revert, list и drop вокруг Migrator.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	migrator "github.com/Maksumys/app-migrator"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// Provider возвращает мигратор и соединение. Вызывается только при выполнении подкоманды,
// поэтому --help не требует доступа к базе.
type Provider[S any] func(ctx context.Context) (*migrator.Migrator[S], *gorm.DB, error)

// NewCommand возвращает команду migrate, которую можно выполнить напрямую
// или добавить в существующее дерево cobra.
func NewCommand[S any](provide Provider[S]) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply, revert and inspect database migrations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(
		applyCommand(provide),
		revertCommand(provide),
		listCommand(provide),
		dropCommand(provide),
	)

	return cmd
}

type planFlags struct {
	app       string
	migration string
	count     uint
	check     bool
	plan      bool
	fake      bool
	force     bool
}

func (f *planFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.app, "app", "", "limit plan to app")
	cmd.Flags().StringVar(&f.migration, "migration", "", "limit plan to migration of app (requires --app)")
	cmd.Flags().UintVar(&f.count, "count", 0, "number of migrations")
	cmd.Flags().BoolVar(&f.check, "check", false, "fail with pending migration error when plan is not empty")
	cmd.Flags().BoolVar(&f.plan, "plan", false, "print plan without running it")
	cmd.Flags().BoolVar(&f.fake, "fake", false, "update migration table without running operations")
	cmd.MarkFlagsMutuallyExclusive("count", "app")
}

func (f *planFlags) mode() migrator.Mode {
	if f.fake {
		return migrator.ModeFake
	}
	return migrator.ModeRun
}

func (f *planFlags) validate() error {
	if f.migration != "" && f.app == "" {
		return migrator.ErrAppNameRequired
	}
	return nil
}

func printPlan[S any](out io.Writer, verb string, migrations []*migrator.Migration[S]) error {
	if len(migrations) == 0 {
		_, err := fmt.Fprintf(out, "No migration exists for %s\n", verb)
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "APP\tNAME")
	for _, m := range migrations {
		fmt.Fprintf(w, "%s\t%s\n", m.App, m.Name)
	}
	return w.Flush()
}

func planKeys[S any](migrations []*migrator.Migration[S]) []migrator.Key {
	keys := make([]migrator.Key, 0, len(migrations))
	for _, m := range migrations {
		keys = append(keys, m.Key())
	}
	return keys
}

// confirm печатает вопрос и читает ответ из in. Только y/yes считаются согласием.
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprintf(out, "%s (y/N) ", question)

	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("read answer: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
