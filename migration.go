package app_migrator

import (
	"fmt"
	"strings"
)

// Key однозначно идентифицирует миграцию парой (приложение, имя).
type Key struct {
	App  string
	Name string
}

// FullName возвращает имя миграции в виде app_name.
func (k Key) FullName() string {
	return k.App + "_" + k.Name
}

func (k Key) String() string {
	return k.FullName()
}

func (k Key) less(other Key) bool {
	if k.App != other.App {
		return k.App < other.App
	}
	return k.Name < other.Name
}

type Atomicity int

const (
	// Atomic - операции миграции и запись в служебную таблицу выполняются в одной транзакции.
	Atomic Atomicity = iota
	// NonAtomic используется для операций, которые нельзя выполнять в транзакции
	// (например, CREATE INDEX CONCURRENTLY). При ошибке состояние схемы и служебной таблицы
	// может разойтись.
	NonAtomic
)

type MigrationKind int

const (
	// Tracked - обычная миграция, факт применения хранится в служебной таблице.
	Tracked MigrationKind = iota
	// Virtual - веха в графе зависимостей. Не содержит операций, не попадает в план
	// и не сохраняется в служебную таблицу, но связи через нее учитываются при упорядочивании.
	Virtual
)

func (k MigrationKind) String() string {
	switch k {
	case Tracked:
		return "tracked"
	case Virtual:
		return "virtual"
	default:
		return fmt.Sprintf("MigrationKind(%d)", int(k))
	}
}

// Migration описывает одно изменение схемы.
//
// Ссылки на другие миграции задаются через Key, поэтому миграции из разных пакетов
// могут ссылаться друг на друга без циклов инициализации.
type Migration[S any] struct {
	App  string
	Name string

	// Parents должны быть применены строго до этой миграции.
	Parents []Key
	// Replaces - миграции, которые заменяет данная (squash).
	Replaces []Key
	// RunBefore должны быть применены строго после этой миграции.
	RunBefore []Key

	Operations []Operation[S]

	Atomicity Atomicity
	Kind      MigrationKind
}

func (m *Migration[S]) Key() Key {
	return Key{App: m.App, Name: m.Name}
}

func (m *Migration[S]) IsAtomic() bool {
	return m.Atomicity == Atomic
}

func (m *Migration[S]) IsVirtual() bool {
	return m.Kind == Virtual
}

func (m *Migration[S]) validate() error {
	if m.App == "" {
		return fmt.Errorf("%w: migration %q has empty app", ErrAppNameRequired, m.Name)
	}
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("%w: migration of app %q has empty name", ErrMigrationNameRequired, m.App)
	}
	return nil
}
