package app_migrator

import (
	"context"

	"gorm.io/gorm"
)

// Operation - единица работы внутри миграции.
//
// tx - транзакция для атомарных миграций или закрепленное соединение для неатомарных.
// state - произвольное состояние приложения, переданное в New.
type Operation[S any] interface {
	Up(ctx context.Context, tx *gorm.DB, state S) error
	Down(ctx context.Context, tx *gorm.DB, state S) error
	// IsDestructible сообщает, что Down определен и его можно выполнять.
	IsDestructible() bool
}

type sqlOperation[S any] struct {
	up   string
	down string
}

// SQL создает операцию из пары сырых запросов. Пустой down делает операцию необратимой.
func SQL[S any](up, down string) Operation[S] {
	return sqlOperation[S]{up: up, down: down}
}

func (o sqlOperation[S]) Up(ctx context.Context, tx *gorm.DB, _ S) error {
	if o.up == "" {
		return nil
	}
	return tx.WithContext(ctx).Exec(o.up).Error
}

func (o sqlOperation[S]) Down(ctx context.Context, tx *gorm.DB, _ S) error {
	if o.down == "" {
		return ErrIrreversibleOperation
	}
	return tx.WithContext(ctx).Exec(o.down).Error
}

func (o sqlOperation[S]) IsDestructible() bool {
	return o.down != ""
}

// Func выполняет произвольный код на стороне приложения.
type Func[S any] struct {
	UpF   func(ctx context.Context, tx *gorm.DB, state S) error
	DownF func(ctx context.Context, tx *gorm.DB, state S) error
}

func (f Func[S]) Up(ctx context.Context, tx *gorm.DB, state S) error {
	if f.UpF == nil {
		return nil
	}
	return f.UpF(ctx, tx, state)
}

func (f Func[S]) Down(ctx context.Context, tx *gorm.DB, state S) error {
	if f.DownF == nil {
		return ErrIrreversibleOperation
	}
	return f.DownF(ctx, tx, state)
}

func (f Func[S]) IsDestructible() bool {
	return f.DownF != nil
}
