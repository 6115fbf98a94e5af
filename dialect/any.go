package dialect

import (
	"context"
	"fmt"

	migrator "github.com/Maksumys/app-migrator"
	"gorm.io/gorm"
)

// Any выбирает реализацию по имени gorm диалекта соединения.
type Any struct {
	postgres Postgres
	mysql    MySQL
	sqlite   *SQLite
}

var _ migrator.DatabaseOperation = (*Any)(nil)

func NewAny() *Any {
	return &Any{
		postgres: NewPostgres(),
		mysql:    NewMySQL(),
		sqlite:   NewSQLite(),
	}
}

func (a *Any) backend(db *gorm.DB) (migrator.DatabaseOperation, error) {
	name := db.Dialector.Name()
	switch name {
	case "postgres":
		return a.postgres, nil
	case "mysql":
		return a.mysql, nil
	case "sqlite":
		return a.sqlite, nil
	default:
		return nil, fmt.Errorf("%w: %s", migrator.ErrUnsupportedDatabase, name)
	}
}

func (a *Any) EnsureMigrationTableExists(ctx context.Context, db *gorm.DB, table string) error {
	backend, err := a.backend(db)
	if err != nil {
		return err
	}
	return backend.EnsureMigrationTableExists(ctx, db, table)
}

func (a *Any) DropMigrationTableIfExists(ctx context.Context, db *gorm.DB, table string) error {
	backend, err := a.backend(db)
	if err != nil {
		return err
	}
	return backend.DropMigrationTableIfExists(ctx, db, table)
}

func (a *Any) AddMigrationToDBTable(ctx context.Context, db *gorm.DB, table string, key migrator.Key) error {
	backend, err := a.backend(db)
	if err != nil {
		return err
	}
	return backend.AddMigrationToDBTable(ctx, db, table, key)
}

func (a *Any) DeleteMigrationFromDBTable(ctx context.Context, db *gorm.DB, table string, key migrator.Key) error {
	backend, err := a.backend(db)
	if err != nil {
		return err
	}
	return backend.DeleteMigrationFromDBTable(ctx, db, table, key)
}

func (a *Any) FetchAppliedMigrationFromDB(ctx context.Context, db *gorm.DB, table string) ([]migrator.AppliedMigration, error) {
	backend, err := a.backend(db)
	if err != nil {
		return nil, err
	}
	return backend.FetchAppliedMigrationFromDB(ctx, db, table)
}

func (a *Any) Lock(ctx context.Context, db *gorm.DB) error {
	backend, err := a.backend(db)
	if err != nil {
		return err
	}
	return backend.Lock(ctx, db)
}

func (a *Any) Unlock(ctx context.Context, db *gorm.DB) error {
	backend, err := a.backend(db)
	if err != nil {
		return err
	}
	return backend.Unlock(ctx, db)
}
