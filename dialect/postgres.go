package dialect

import (
	"context"
	"fmt"
	"hash/crc32"

	migrator "github.com/Maksumys/app-migrator"
	"gorm.io/gorm"
)

const postgresCreateTable = `CREATE TABLE IF NOT EXISTS %s (
	id INT PRIMARY KEY NOT NULL GENERATED ALWAYS AS IDENTITY,
	app TEXT NOT NULL,
	name TEXT NOT NULL,
	applied_time TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (app, name)
)`

// Postgres использует сессионную advisory блокировку, ключ - crc32 от имени базы.
type Postgres struct {
	bookkeeping
}

var _ migrator.DatabaseOperation = Postgres{}

func NewPostgres() Postgres {
	return Postgres{bookkeeping: bookkeeping{createTable: postgresCreateTable}}
}

func (p Postgres) lockID(ctx context.Context, db *gorm.DB) (int64, error) {
	name, err := currentDatabase(ctx, db, "SELECT CURRENT_DATABASE()")
	if err != nil {
		return 0, err
	}
	return int64(crc32.ChecksumIEEE([]byte(name))), nil
}

func (p Postgres) Lock(ctx context.Context, db *gorm.DB) error {
	id, err := p.lockID(ctx, db)
	if err != nil {
		return err
	}
	if err = db.WithContext(ctx).Exec("SELECT pg_advisory_lock(?)", id).Error; err != nil {
		return fmt.Errorf("pg_advisory_lock: %w", err)
	}
	return nil
}

func (p Postgres) Unlock(ctx context.Context, db *gorm.DB) error {
	id, err := p.lockID(ctx, db)
	if err != nil {
		return err
	}
	if err = db.WithContext(ctx).Exec("SELECT pg_advisory_unlock(?)", id).Error; err != nil {
		return fmt.Errorf("pg_advisory_unlock: %w", err)
	}
	return nil
}
