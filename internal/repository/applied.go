package repository

import (
	"context"
	"fmt"

	"github.com/Maksumys/app-migrator/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func HasMigrationsTable(db *gorm.DB, table string) bool {
	return db.Migrator().HasTable(table)
}

// CreateMigrationsTable выполняет DDL конкретного диалекта. ddl должен содержать IF NOT EXISTS.
func CreateMigrationsTable(ctx context.Context, db *gorm.DB, ddl string) error {
	if err := db.WithContext(ctx).Exec(ddl).Error; err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}
	return nil
}

func DropMigrationsTable(ctx context.Context, db *gorm.DB, table string) error {
	err := db.WithContext(ctx).Exec("DROP TABLE IF EXISTS ?", clause.Table{Name: table}).Error
	if err != nil {
		return fmt.Errorf("drop migrations table %s: %w", table, err)
	}
	return nil
}

func InsertAppliedMigration(ctx context.Context, db *gorm.DB, table, app, name string) error {
	err := db.WithContext(ctx).
		Exec("INSERT INTO ? (app, name) VALUES (?, ?)", clause.Table{Name: table}, app, name).
		Error
	if err != nil {
		return fmt.Errorf("insert applied migration %s_%s: %w", app, name, err)
	}
	return nil
}

func DeleteAppliedMigration(ctx context.Context, db *gorm.DB, table, app, name string) error {
	err := db.WithContext(ctx).
		Exec("DELETE FROM ? WHERE app = ? AND name = ?", clause.Table{Name: table}, app, name).
		Error
	if err != nil {
		return fmt.Errorf("delete applied migration %s_%s: %w", app, name, err)
	}
	return nil
}

// GetAppliedMigrations возвращает строки в порядке применения.
// Отсутствие таблицы означает, что ни одна миграция еще не применялась.
func GetAppliedMigrations(ctx context.Context, db *gorm.DB, table string) ([]models.AppliedMigration, error) {
	if !HasMigrationsTable(db.WithContext(ctx), table) {
		return nil, nil
	}

	var rows []models.AppliedMigration
	res := db.WithContext(ctx).
		Table(table).
		Select("id", "app", "name", "applied_time").
		Order("id").
		Find(&rows)
	if res.Error != nil {
		return nil, fmt.Errorf("fetch applied migrations: %w", res.Error)
	}

	return rows, nil
}
