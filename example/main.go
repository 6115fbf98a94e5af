package main

import (
	"context"
	"embed"
	"log/slog"
	"os"

	migrator "github.com/Maksumys/app-migrator"
	"github.com/Maksumys/app-migrator/cli"
	"github.com/Maksumys/app-migrator/config"
	"github.com/Maksumys/app-migrator/dbconn"
	"github.com/Maksumys/app-migrator/dialect"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

//go:embed migrations
var migrations embed.FS

type State struct {
	DefaultOwner string
}

func readFile(file string) string {
	bytes, err := migrations.ReadFile("migrations/" + file)
	if err != nil {
		panic(err)
	}
	return string(bytes)
}

func sqlMigration(app, name string, parents ...migrator.Key) migrator.Migration[State] {
	return migrator.Migration[State]{
		App:     app,
		Name:    name,
		Parents: parents,
		Operations: []migrator.Operation[State]{
			migrator.SQL[State](
				readFile(app+"_"+name+"_up.sql"),
				readFile(app+"_"+name+"_down.sql"),
			),
		},
	}
}

func register(m *migrator.Migrator[State]) error {
	accountsCreate := migrator.Key{App: "accounts", Name: "create"}
	connectionsCreate := migrator.Key{App: "connections", Name: "create"}

	return m.AddMigrations(
		sqlMigration("accounts", "create"),
		sqlMigration("connections", "create", accountsCreate),
		migrator.Migration[State]{
			App:       "connections",
			Name:      "index",
			Parents:   []migrator.Key{connectionsCreate},
			Atomicity: migrator.NonAtomic,
			Operations: []migrator.Operation[State]{
				migrator.SQL[State](readFile("connections_index_up.sql"), "DROP INDEX connections_account_id"),
			},
		},
		migrator.Migration[State]{
			App:     "connections",
			Name:    "default_owner",
			Parents: []migrator.Key{connectionsCreate},
			Operations: []migrator.Operation[State]{
				migrator.Func[State]{
					UpF: func(ctx context.Context, tx *gorm.DB, state State) error {
						return tx.WithContext(ctx).
							Exec("UPDATE connections SET one = ? WHERE one IS NULL", state.DefaultOwner).Error
					},
				},
			},
		},
	)
}

func main() {
	var (
		configPath string
		opened     *gorm.DB
	)

	provide := func(ctx context.Context) (*migrator.Migrator[State], *gorm.DB, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, nil, err
		}

		log := logrus.StandardLogger()
		if cfg.Log.Level != "" {
			level, err := logrus.ParseLevel(cfg.Log.Level)
			if err != nil {
				return nil, nil, err
			}
			log.SetLevel(level)
		}

		db, err := dbconn.Open(cfg.Database, log)
		if err != nil {
			return nil, nil, err
		}
		opened = db

		opts := []migrator.Option{
			migrator.WithLogger(slog.New(slog.NewTextHandler(log.Writer(), &slog.HandlerOptions{Level: slog.LevelInfo}))),
		}
		if cfg.Migrator.TablePrefix != "" {
			opts = append(opts, migrator.WithPrefix(cfg.Migrator.TablePrefix))
		}

		m, err := migrator.New[State](dialect.NewAny(), State{DefaultOwner: "system"}, opts...)
		if err != nil {
			return nil, nil, err
		}
		if err = register(m); err != nil {
			return nil, nil, err
		}

		return m, db, nil
	}

	cmd := cli.NewCommand[State](provide)
	cmd.PersistentFlags().StringVar(&configPath, "config", "example/config.yaml", "path to config file")

	err := cmd.ExecuteContext(context.Background())
	if opened != nil {
		if closeErr := dbconn.Close(opened); closeErr != nil {
			logrus.WithError(closeErr).Warn("close database")
		}
	}
	if err != nil {
		logrus.WithError(err).Error("migrate failed")
		os.Exit(1)
	}
}
