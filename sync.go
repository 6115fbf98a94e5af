package app_migrator

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"gorm.io/gorm"
)

// OldMigrator - источник миграций, примененных другим инструментом или под другим
// именем служебной таблицы.
type OldMigrator interface {
	AppliedMigrations(ctx context.Context, db *gorm.DB) ([]Key, error)
}

// OldTable читает служебную таблицу с другим именем (например, до смены префикса).
type OldTable struct {
	Backend DatabaseOperation
	Table   string
}

func (o OldTable) AppliedMigrations(ctx context.Context, db *gorm.DB) ([]Key, error) {
	rows, err := o.Backend.FetchAppliedMigrationFromDB(ctx, db, o.Table)
	if err != nil {
		return nil, err
	}

	keys := make([]Key, 0, len(rows))
	for _, row := range rows {
		keys = append(keys, Key{App: row.App, Name: row.Name})
	}
	return keys, nil
}

// OldQuery выполняет произвольный запрос, который должен вернуть ровно две колонки: app и name.
type OldQuery struct {
	Query string
	Args  []interface{}
}

type oldQueryRow struct {
	App  string `db:"app"`
	Name string `db:"name"`
}

func (o OldQuery) AppliedMigrations(ctx context.Context, db *gorm.DB) ([]Key, error) {
	rows, err := db.WithContext(ctx).Raw(o.Query, o.Args...).Rows()
	if err != nil {
		return nil, fmt.Errorf("query old migrations: %w", err)
	}
	defer rows.Close()

	var scanned []oldQueryRow
	if err = sqlx.StructScan(rows, &scanned); err != nil {
		return nil, fmt.Errorf("scan old migrations: %w", err)
	}

	keys := make([]Key, 0, len(scanned))
	for _, row := range scanned {
		keys = append(keys, Key{App: row.App, Name: row.Name})
	}
	return keys, nil
}

// Synchronize переносит в служебную таблицу миграции, которые old считает примененными.
// Незарегистрированные миграции пропускаются, операции не выполняются.
func (m *Migrator[S]) Synchronize(ctx context.Context, db *gorm.DB, old OldMigrator) error {
	registered := make(map[Key]struct{})
	for _, migration := range m.Migrations() {
		registered[migration.Key()] = struct{}{}
	}

	return m.withConnection(ctx, db, func(conn *gorm.DB) error {
		return m.withLock(ctx, conn, func() error {
			if err := m.EnsureMigrationTableExists(ctx, conn); err != nil {
				return err
			}

			oldKeys, err := old.AppliedMigrations(ctx, conn)
			if err != nil {
				return err
			}

			rows, err := m.FetchAppliedMigrationFromDB(ctx, conn)
			if err != nil {
				return err
			}
			have := appliedKeys(rows)

			for _, key := range oldKeys {
				if _, ok := registered[key]; !ok {
					m.logger.Warn("skipping unknown migration from old migrator", "app", key.App, "name", key.Name)
					continue
				}
				if _, ok := have[key]; ok {
					continue
				}

				if err = m.AddMigrationToDBTable(ctx, conn, key); err != nil {
					return err
				}
				have[key] = struct{}{}
				m.logger.Info("synchronized migration", "app", key.App, "name", key.Name)
			}

			return nil
		})
	})
}
