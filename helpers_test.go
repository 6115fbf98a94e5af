package app_migrator_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	migrator "github.com/Maksumys/app-migrator"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

type appState struct {
	Tenant string
}

func key(app, name string) migrator.Key {
	return migrator.Key{App: app, Name: name}
}

func migration(app, name string, parents ...string) migrator.Migration[appState] {
	m := migrator.Migration[appState]{App: app, Name: name}
	for _, parent := range parents {
		m.Parents = append(m.Parents, key(app, parent))
	}
	return m
}

func fullNames(migrations []*migrator.Migration[appState]) []string {
	out := make([]string, 0, len(migrations))
	for _, m := range migrations {
		out = append(out, m.Key().FullName())
	}
	return out
}

func names(migrations []*migrator.Migration[appState]) []string {
	out := make([]string, 0, len(migrations))
	for _, m := range migrations {
		out = append(out, m.Name)
	}
	return out
}

// memoryBackend хранит служебную таблицу в памяти и не обращается к базе.
type memoryBackend struct {
	mu      sync.Mutex
	rows    []migrator.AppliedMigration
	nextID  int32
	locks   int
	unlocks int
	fetches int
}

var _ migrator.DatabaseOperation = (*memoryBackend)(nil)

func (b *memoryBackend) markApplied(keys ...migrator.Key) {
	for _, k := range keys {
		_ = b.AddMigrationToDBTable(context.Background(), nil, "", k)
	}
}

func (b *memoryBackend) EnsureMigrationTableExists(context.Context, *gorm.DB, string) error {
	return nil
}

func (b *memoryBackend) DropMigrationTableIfExists(context.Context, *gorm.DB, string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rows = nil
	return nil
}

func (b *memoryBackend) AddMigrationToDBTable(_ context.Context, _ *gorm.DB, _ string, k migrator.Key) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.rows = append(b.rows, migrator.AppliedMigration{Id: b.nextID, App: k.App, Name: k.Name})
	return nil
}

func (b *memoryBackend) DeleteMigrationFromDBTable(_ context.Context, _ *gorm.DB, _ string, k migrator.Key) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, row := range b.rows {
		if row.App == k.App && row.Name == k.Name {
			b.rows = append(b.rows[:i], b.rows[i+1:]...)
			break
		}
	}
	return nil
}

func (b *memoryBackend) FetchAppliedMigrationFromDB(context.Context, *gorm.DB, string) ([]migrator.AppliedMigration, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fetches++
	return append([]migrator.AppliedMigration(nil), b.rows...), nil
}

func (b *memoryBackend) Lock(context.Context, *gorm.DB) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.locks++
	return nil
}

func (b *memoryBackend) Unlock(context.Context, *gorm.DB) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unlocks++
	return nil
}

func newMemoryMigrator(t *testing.T, migrations ...migrator.Migration[appState]) (*migrator.Migrator[appState], *memoryBackend) {
	t.Helper()

	backend := &memoryBackend{}
	m, err := migrator.New(backend, appState{})
	require.NoError(t, err)
	require.NoError(t, m.AddMigrations(migrations...))
	return m, backend
}

func plan(t *testing.T, m *migrator.Migrator[appState], p migrator.Plan) []*migrator.Migration[appState] {
	t.Helper()

	migrations, err := m.GenerateMigrationPlan(context.Background(), nil, p)
	require.NoError(t, err)
	return migrations
}

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "migrator.db")
	db, err := gorm.Open(
		sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: dsn}),
		&gorm.Config{Logger: logger.Discard},
	)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

func hasTable(t *testing.T, db *gorm.DB, table string) bool {
	t.Helper()
	return db.Migrator().HasTable(table)
}
