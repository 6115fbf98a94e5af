package app_migrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"gorm.io/gorm"
)

const DefaultTableName = "_migrator_migrations"

// Migrator хранит зарегистрированные миграции и выполняет их через DatabaseOperation.
// S - произвольное состояние приложения, которое передается во все операции.
type Migrator[S any] struct {
	logger    *slog.Logger
	backend   DatabaseOperation
	state     S
	tableName string

	migrations []*Migration[S]
	registered map[Key]struct{}

	mutex sync.Mutex
}

// New создает мигратор. Ошибка возвращается, если префикс таблицы содержит недопустимые символы.
func New[S any](backend DatabaseOperation, state S, opts ...Option) (*Migrator[S], error) {
	o := options{
		logger:    slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
		tableName: DefaultTableName,
	}
	for _, opt := range opts {
		opt(&o)
	}

	tableName := o.tableName
	if o.prefix != nil {
		if !isTableIdentifier(*o.prefix) {
			return nil, fmt.Errorf("%w: %q", ErrNonASCIIAlphaNumeric, *o.prefix)
		}
		tableName = "_" + *o.prefix + DefaultTableName
	}
	if tableName == "" || !isTableIdentifier(tableName) {
		return nil, fmt.Errorf("%w: table name %q", ErrNonASCIIAlphaNumeric, tableName)
	}

	return &Migrator[S]{
		logger:     o.logger,
		backend:    backend,
		state:      state,
		tableName:  tableName,
		registered: make(map[Key]struct{}),
	}, nil
}

func isTableIdentifier(s string) bool {
	for _, r := range s {
		isLetter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		if !isLetter && !isDigit && r != '_' {
			return false
		}
	}
	return true
}

func (m *Migrator[S]) TableName() string {
	return m.tableName
}

func (m *Migrator[S]) State() S {
	return m.state
}

// AddMigration регистрирует миграцию. Порядок регистрации не важен, порядок выполнения
// вычисляется при построении плана. Повторная регистрация той же пары (app, name)
// возвращает ErrMigrationAlreadyRegistered.
func (m *Migrator[S]) AddMigration(migration Migration[S]) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return m.addMigration(migration)
}

func (m *Migrator[S]) AddMigrations(migrations ...Migration[S]) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for i := range migrations {
		if err := m.addMigration(migrations[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *Migrator[S]) addMigration(migration Migration[S]) error {
	if err := migration.validate(); err != nil {
		return err
	}

	key := migration.Key()
	if _, ok := m.registered[key]; ok {
		m.logger.Error("migration already registered", "app", key.App, "name", key.Name)
		return fmt.Errorf("%w: %s", ErrMigrationAlreadyRegistered, key)
	}

	m.registered[key] = struct{}{}
	m.migrations = append(m.migrations, &migration)
	return nil
}

// Migrations возвращает зарегистрированные миграции в порядке регистрации.
func (m *Migrator[S]) Migrations() []*Migration[S] {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return append([]*Migration[S](nil), m.migrations...)
}

func (m *Migrator[S]) EnsureMigrationTableExists(ctx context.Context, db *gorm.DB) error {
	return m.backend.EnsureMigrationTableExists(ctx, db, m.tableName)
}

func (m *Migrator[S]) DropMigrationTableIfExists(ctx context.Context, db *gorm.DB) error {
	return m.backend.DropMigrationTableIfExists(ctx, db, m.tableName)
}

func (m *Migrator[S]) AddMigrationToDBTable(ctx context.Context, db *gorm.DB, key Key) error {
	return m.backend.AddMigrationToDBTable(ctx, db, m.tableName, key)
}

func (m *Migrator[S]) DeleteMigrationFromDBTable(ctx context.Context, db *gorm.DB, key Key) error {
	return m.backend.DeleteMigrationFromDBTable(ctx, db, m.tableName, key)
}

func (m *Migrator[S]) FetchAppliedMigrationFromDB(ctx context.Context, db *gorm.DB) ([]AppliedMigration, error) {
	return m.backend.FetchAppliedMigrationFromDB(ctx, db, m.tableName)
}

func (m *Migrator[S]) Lock(ctx context.Context, db *gorm.DB) error {
	return m.backend.Lock(ctx, db)
}

func (m *Migrator[S]) Unlock(ctx context.Context, db *gorm.DB) error {
	return m.backend.Unlock(ctx, db)
}

// FullMigrationPlan возвращает все миграции в порядке применения без учета состояния базы.
// Замещающие и замещаемые миграции присутствуют одновременно, виртуальные исключены.
func (m *Migrator[S]) FullMigrationPlan() ([]*Migration[S], error) {
	g, err := newGraph(m.Migrations())
	if err != nil {
		return nil, err
	}

	out := make([]*Migration[S], 0, len(g.order))
	for _, i := range g.order {
		if !g.nodes[i].IsVirtual() {
			out = append(out, g.nodes[i])
		}
	}
	return out, nil
}

// GenerateMigrationPlan строит план по текущему состоянию базы. Не берет блокировку
// и ничего не изменяет в базе.
func (m *Migrator[S]) GenerateMigrationPlan(ctx context.Context, db *gorm.DB, plan Plan) ([]*Migration[S], error) {
	p, err := m.planner(ctx, db)
	if err != nil {
		return nil, err
	}
	return p.MakePlan(plan)
}

func (m *Migrator[S]) planner(ctx context.Context, db *gorm.DB) (*planner[S], error) {
	g, err := newGraph(m.Migrations())
	if err != nil {
		return nil, err
	}

	rows, err := m.FetchAppliedMigrationFromDB(ctx, db)
	if err != nil {
		return nil, err
	}

	return newPlanner(g, rows)
}

// Check возвращает ErrPendingMigrationPresent, если есть не примененные миграции.
func (m *Migrator[S]) Check(ctx context.Context, db *gorm.DB) error {
	pending, err := m.GenerateMigrationPlan(ctx, db, ApplyAll())
	if err != nil {
		return err
	}
	if len(pending) > 0 {
		return fmt.Errorf("%w: %d migrations are not applied", ErrPendingMigrationPresent, len(pending))
	}
	return nil
}

// DropMigrationTable удаляет служебную таблицу, только если в ней нет примененных миграций.
func (m *Migrator[S]) DropMigrationTable(ctx context.Context, db *gorm.DB) error {
	return m.withConnection(ctx, db, func(conn *gorm.DB) error {
		rows, err := m.FetchAppliedMigrationFromDB(ctx, conn)
		if err != nil {
			return err
		}
		if len(rows) > 0 {
			return fmt.Errorf("%w: %d rows in %s", ErrAppliedMigrationExists, len(rows), m.tableName)
		}

		m.logger.Info("dropping migration table", "table", m.tableName)
		return m.DropMigrationTableIfExists(ctx, conn)
	})
}
