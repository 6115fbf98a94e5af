package app_migrator

import "log/slog"

type options struct {
	logger    *slog.Logger
	prefix    *string
	tableName string
}

type Option func(*options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithPrefix меняет имя служебной таблицы на _<prefix>_migrator_migrations.
// Префикс может содержать только латинские буквы, цифры и подчеркивание.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = &prefix
	}
}

// WithTableName задает имя служебной таблицы целиком. Префикс, если задан, имеет приоритет.
func WithTableName(name string) Option {
	return func(o *options) {
		o.tableName = name
	}
}
