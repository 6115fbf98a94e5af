package app_migrator

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type MigrationState string

const (
	StateApplied  MigrationState = "applied"
	StatePending  MigrationState = "pending"
	StateReplaced MigrationState = "replaced"
)

type MigrationStatus struct {
	Key         Key
	State       MigrationState
	AppliedTime *time.Time
}

// List возвращает состояние всех миграций в порядке применения.
// Миграции, которые не будут выполнены из-за замен, помечаются как StateReplaced.
func (m *Migrator[S]) List(ctx context.Context, db *gorm.DB) ([]MigrationStatus, error) {
	p, err := m.planner(ctx, db)
	if err != nil {
		return nil, err
	}

	appliedAt := make(map[Key]time.Time, len(p.rows))
	for _, row := range p.rows {
		appliedAt[Key{App: row.App, Name: row.Name}] = row.AppliedTime.Time
	}

	var out []MigrationStatus
	for _, i := range p.graph.order {
		migration := p.graph.nodes[i]
		if migration.IsVirtual() {
			continue
		}

		status := MigrationStatus{Key: migration.Key(), State: StatePending}
		switch {
		case p.applied[i]:
			status.State = StateApplied
			if at, ok := appliedAt[status.Key]; ok {
				status.AppliedTime = &at
			}
		case p.removed[i]:
			status.State = StateReplaced
		}
		out = append(out, status)
	}

	return out, nil
}
