package app_migrator

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/multierr"
	"gorm.io/gorm"
)

// Run выполняет план под блокировкой. Миграции выполняются строго последовательно;
// при ошибке выполнение плана прекращается, уже завершенные миграции остаются примененными.
func (m *Migrator[S]) Run(ctx context.Context, db *gorm.DB, plan Plan) error {
	m.logger.Debug("preparing migrations execution", "plan", plan.String(), "table", m.tableName)

	return m.withConnection(ctx, db, func(conn *gorm.DB) error {
		return m.withLock(ctx, conn, func() error {
			if err := m.EnsureMigrationTableExists(ctx, conn); err != nil {
				return err
			}

			migrations, err := m.GenerateMigrationPlan(ctx, conn, plan)
			if err != nil {
				return err
			}
			if plan.expect && !slices.EqualFunc(migrations, plan.expected, func(migration *Migration[S], key Key) bool {
				return migration.Key() == key
			}) {
				return fmt.Errorf("%w: expected %d migrations, got %d", ErrPlanChanged, len(plan.expected), len(migrations))
			}

			for _, migration := range migrations {
				switch plan.direction {
				case Apply:
					err = m.applyMigration(ctx, conn, migration, plan.mode)
				case Revert:
					err = m.revertMigration(ctx, conn, migration, plan.mode)
				}
				if err != nil {
					return fmt.Errorf("%s migration %s: %w", plan.direction, migration.Key(), err)
				}
			}

			m.logger.Info("migrations completed", "plan", plan.String(), "count", len(migrations))
			return nil
		})
	})
}

// withConnection закрепляет за вызовом одно соединение пула: advisory lock
// в postgres и mysql принадлежит сессии.
func (m *Migrator[S]) withConnection(ctx context.Context, db *gorm.DB, fn func(conn *gorm.DB) error) error {
	return db.WithContext(ctx).Connection(fn)
}

// withLock освобождает блокировку на любом пути выхода, в том числе при панике.
func (m *Migrator[S]) withLock(ctx context.Context, conn *gorm.DB, fn func() error) (err error) {
	if err = m.Lock(ctx, conn); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	m.logger.Debug("migration lock acquired", "table", m.tableName)

	defer func() {
		if unlockErr := m.Unlock(context.WithoutCancel(ctx), conn); unlockErr != nil {
			err = multierr.Append(err, fmt.Errorf("release migration lock: %w", unlockErr))
			return
		}
		m.logger.Debug("migration lock released", "table", m.tableName)
	}()

	return fn()
}

// inTransaction выполняет fn в транзакции для атомарных миграций и на соединении для остальных.
func (m *Migrator[S]) inTransaction(conn *gorm.DB, migration *Migration[S], fn func(tx *gorm.DB) error) error {
	switch migration.Atomicity {
	case Atomic:
		return conn.Transaction(fn)
	case NonAtomic:
		return fn(conn)
	default:
		return fmt.Errorf("unknown atomicity %d", migration.Atomicity)
	}
}

func (m *Migrator[S]) applyMigration(ctx context.Context, conn *gorm.DB, migration *Migration[S], mode Mode) error {
	key := migration.Key()
	m.logger.Info("applying migration", "app", key.App, "name", key.Name, "mode", mode.String())

	return m.inTransaction(conn, migration, func(tx *gorm.DB) error {
		switch mode {
		case ModeRun:
			for n, operation := range migration.Operations {
				if err := operation.Up(ctx, tx, m.state); err != nil {
					return fmt.Errorf("operation %d up: %w", n, err)
				}
			}
		case ModeFake:
		default:
			return fmt.Errorf("unknown mode %d", mode)
		}

		return m.AddMigrationToDBTable(ctx, tx, key)
	})
}

func (m *Migrator[S]) revertMigration(ctx context.Context, conn *gorm.DB, migration *Migration[S], mode Mode) error {
	key := migration.Key()
	m.logger.Info("reverting migration", "app", key.App, "name", key.Name, "mode", mode.String())

	if mode == ModeRun {
		for n, operation := range migration.Operations {
			if !operation.IsDestructible() {
				return fmt.Errorf("operation %d: %w", n, ErrIrreversibleOperation)
			}
		}
	}

	return m.inTransaction(conn, migration, func(tx *gorm.DB) error {
		switch mode {
		case ModeRun:
			for n := len(migration.Operations) - 1; n >= 0; n-- {
				if err := migration.Operations[n].Down(ctx, tx, m.state); err != nil {
					return fmt.Errorf("operation %d down: %w", n, err)
				}
			}
		case ModeFake:
		default:
			return fmt.Errorf("unknown mode %d", mode)
		}

		return m.DeleteMigrationFromDBTable(ctx, tx, key)
	})
}
