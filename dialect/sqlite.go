package dialect

import (
	"context"
	"fmt"

	migrator "github.com/Maksumys/app-migrator"
	"golang.org/x/sync/semaphore"
	"gorm.io/gorm"
)

const sqliteCreateTable = `CREATE TABLE IF NOT EXISTS %s (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	app TEXT NOT NULL,
	name TEXT NOT NULL,
	applied_time TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (app, name)
)`

// SQLite не имеет advisory блокировок, поэтому запуски сериализуются внутри процесса.
// Между процессами sqlite защищает только собственная блокировка файла на запись.
type SQLite struct {
	bookkeeping
	sem *semaphore.Weighted
}

var _ migrator.DatabaseOperation = (*SQLite)(nil)

func NewSQLite() *SQLite {
	return &SQLite{
		bookkeeping: bookkeeping{createTable: sqliteCreateTable},
		sem:         semaphore.NewWeighted(1),
	}
}

func (s *SQLite) Lock(ctx context.Context, _ *gorm.DB) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("sqlite lock: %w", err)
	}
	return nil
}

func (s *SQLite) Unlock(context.Context, *gorm.DB) error {
	s.sem.Release(1)
	return nil
}
