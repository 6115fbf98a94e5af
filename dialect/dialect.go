// Package dialect содержит реализации DatabaseOperation для поддерживаемых СУБД.
package dialect

import (
	"context"
	"fmt"

	migrator "github.com/Maksumys/app-migrator"
	"github.com/Maksumys/app-migrator/internal/repository"
	"gorm.io/gorm"
)

// bookkeeping - общая для всех диалектов работа со служебной таблицей.
// Диалект определяет только DDL создания таблицы.
type bookkeeping struct {
	createTable string
}

func (b bookkeeping) EnsureMigrationTableExists(ctx context.Context, db *gorm.DB, table string) error {
	return repository.CreateMigrationsTable(ctx, db, fmt.Sprintf(b.createTable, db.Statement.Quote(table)))
}

func (b bookkeeping) DropMigrationTableIfExists(ctx context.Context, db *gorm.DB, table string) error {
	return repository.DropMigrationsTable(ctx, db, table)
}

func (b bookkeeping) AddMigrationToDBTable(ctx context.Context, db *gorm.DB, table string, key migrator.Key) error {
	return repository.InsertAppliedMigration(ctx, db, table, key.App, key.Name)
}

func (b bookkeeping) DeleteMigrationFromDBTable(ctx context.Context, db *gorm.DB, table string, key migrator.Key) error {
	return repository.DeleteAppliedMigration(ctx, db, table, key.App, key.Name)
}

func (b bookkeeping) FetchAppliedMigrationFromDB(ctx context.Context, db *gorm.DB, table string) ([]migrator.AppliedMigration, error) {
	return repository.GetAppliedMigrations(ctx, db, table)
}

func currentDatabase(ctx context.Context, db *gorm.DB, query string) (string, error) {
	var name string
	if err := db.WithContext(ctx).Raw(query).Row().Scan(&name); err != nil {
		return "", fmt.Errorf("get current database: %w", err)
	}
	return name, nil
}
