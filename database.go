package app_migrator

import (
	"context"

	"github.com/Maksumys/app-migrator/internal/models"
	"gorm.io/gorm"
)

// AppliedMigration - строка служебной таблицы.
type AppliedMigration = models.AppliedMigration

// DatabaseOperation - точка подключения конкретной СУБД. Реализации находятся в пакете dialect.
//
// Все методы получают имя служебной таблицы от Migrator. Lock и Unlock вызываются
// на одном и том же соединении.
type DatabaseOperation interface {
	EnsureMigrationTableExists(ctx context.Context, db *gorm.DB, table string) error
	DropMigrationTableIfExists(ctx context.Context, db *gorm.DB, table string) error
	AddMigrationToDBTable(ctx context.Context, db *gorm.DB, table string, key Key) error
	DeleteMigrationFromDBTable(ctx context.Context, db *gorm.DB, table string, key Key) error
	FetchAppliedMigrationFromDB(ctx context.Context, db *gorm.DB, table string) ([]AppliedMigration, error)
	Lock(ctx context.Context, db *gorm.DB) error
	Unlock(ctx context.Context, db *gorm.DB) error
}

func appliedKeys(rows []AppliedMigration) map[Key]struct{} {
	keys := make(map[Key]struct{}, len(rows))
	for _, row := range rows {
		keys[Key{App: row.App, Name: row.Name}] = struct{}{}
	}
	return keys
}
