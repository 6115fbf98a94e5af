package app_migrator_test

import (
	"context"
	"testing"

	migrator "github.com/Maksumys/app-migrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func diamond(t *testing.T) (*migrator.Migrator[appState], *memoryBackend) {
	return newMemoryMigrator(t,
		migration("test", "a"),
		migration("test", "b", "a"),
		migration("test", "c", "a"),
		migration("test", "d", "b"),
	)
}

func TestApplyName(t *testing.T) {
	m, backend := diamond(t)

	assert.Equal(t, []string{"a", "b", "d"}, names(plan(t, m, migrator.ApplyName("test", "d"))))
	assert.Equal(t, []string{"a", "c"}, names(plan(t, m, migrator.ApplyName("test", "c"))))
	assert.Equal(t, []string{"a", "b", "c", "d"}, names(plan(t, m, migrator.ApplyName("test", ""))))

	backend.markApplied(key("test", "a"))
	assert.Equal(t, []string{"b", "d"}, names(plan(t, m, migrator.ApplyName("test", "d"))))
	assert.Empty(t, plan(t, m, migrator.ApplyName("test", "a")))
}

func TestApplyNameAcrossApps(t *testing.T) {
	invoice := migration("billing", "invoice")
	invoice.Parents = []migrator.Key{key("users", "create")}

	m, _ := newMemoryMigrator(t, invoice, migration("users", "create"), migration("users", "profile", "create"))

	assert.Equal(t, []string{"users_create", "billing_invoice"}, fullNames(plan(t, m, migrator.ApplyName("billing", ""))))
}

func TestPlanTargetErrors(t *testing.T) {
	m, _ := diamond(t)
	ctx := context.Background()

	cases := map[string]struct {
		plan migrator.Plan
		err  error
	}{
		"apply unknown app":       {migrator.ApplyName("other", "a"), migrator.ErrAppNameNotExists},
		"apply unknown migration": {migrator.ApplyName("test", "z"), migrator.ErrMigrationNameNotExists},
		"apply without app":       {migrator.ApplyName("", "a"), migrator.ErrAppNameRequired},
		"revert unknown app":      {migrator.RevertName("other", ""), migrator.ErrAppNameNotExists},
		"revert without app":      {migrator.RevertName("", "a"), migrator.ErrAppNameRequired},
		"apply count too big":     {migrator.ApplyCount(5), migrator.ErrCountGreater},
		"revert count too big":    {migrator.RevertCount(1), migrator.ErrCountGreater},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := m.GenerateMigrationPlan(ctx, nil, tc.plan)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestApplyCount(t *testing.T) {
	m, backend := diamond(t)

	assert.Equal(t, []string{"a", "b"}, names(plan(t, m, migrator.ApplyCount(2))))
	assert.Empty(t, plan(t, m, migrator.ApplyCount(0)))

	backend.markApplied(key("test", "a"), key("test", "b"))
	assert.Equal(t, []string{"c", "d"}, names(plan(t, m, migrator.ApplyCount(2))))
}

func TestRevertPlans(t *testing.T) {
	m, backend := newMemoryMigrator(t,
		migration("users", "create_table"),
		migration("users", "add_index", "create_table"),
	)
	backend.markApplied(key("users", "create_table"), key("users", "add_index"))
	ctx := context.Background()

	assert.Equal(t, []string{"add_index", "create_table"}, names(plan(t, m, migrator.RevertAll())))
	assert.Equal(t, []string{"add_index"}, names(plan(t, m, migrator.RevertCount(1))))
	assert.Equal(t, []string{"add_index"}, names(plan(t, m, migrator.RevertName("users", "add_index"))))
	assert.Equal(t, []string{"add_index", "create_table"}, names(plan(t, m, migrator.RevertName("users", ""))))

	_, err := m.GenerateMigrationPlan(ctx, nil, migrator.RevertName("users", "create_table"))
	assert.ErrorIs(t, err, migrator.ErrPendingMigrationPresent)
}

func TestRevertAppWithForeignDependents(t *testing.T) {
	invoice := migration("billing", "invoice")
	invoice.Parents = []migrator.Key{key("users", "create")}

	m, backend := newMemoryMigrator(t, migration("users", "create"), invoice)
	backend.markApplied(key("users", "create"), key("billing", "invoice"))

	_, err := m.GenerateMigrationPlan(context.Background(), nil, migrator.RevertName("users", ""))
	assert.ErrorIs(t, err, migrator.ErrPendingMigrationPresent)

	assert.Equal(t, []string{"billing_invoice"}, fullNames(plan(t, m, migrator.RevertName("billing", ""))))
}

func TestRevertNameWithReplacedMigrations(t *testing.T) {
	t.Run("members of dropped replacer do not depend on unrelated parent", func(t *testing.T) {
		first := migration("b", "0001")
		first.Parents = []migrator.Key{key("t", "base")}
		child := migration("s", "x")
		child.Parents = []migrator.Key{key("b", "0002")}

		m, backend := newMemoryMigrator(t,
			migration("t", "base"),
			first,
			migration("b", "0002"),
			child,
			replacing(migration("b", "0003_squash"), "0001", "0002"),
		)
		backend.markApplied(key("t", "base"), key("b", "0002"), key("s", "x"))

		assert.Equal(t, []string{"t_base"}, fullNames(plan(t, m, migrator.RevertName("t", "base"))))

		_, err := m.GenerateMigrationPlan(context.Background(), nil, migrator.RevertName("b", "0002"))
		assert.ErrorIs(t, err, migrator.ErrPendingMigrationPresent)
	})

	t.Run("applied replacer depends on parent of replaced member", func(t *testing.T) {
		first := migration("b", "0001")
		first.Parents = []migrator.Key{key("t", "base")}

		m, backend := newMemoryMigrator(t,
			migration("t", "base"),
			first,
			replacing(migration("b", "0002_squash"), "0001"),
		)
		backend.markApplied(key("t", "base"), key("b", "0002_squash"))

		_, err := m.GenerateMigrationPlan(context.Background(), nil, migrator.RevertName("t", "base"))
		assert.ErrorIs(t, err, migrator.ErrPendingMigrationPresent)
	})

	t.Run("child of dropped replacer depends on every member", func(t *testing.T) {
		child := migration("a", "child")
		child.Parents = []migrator.Key{key("b", "0003_squash")}

		m, backend := newMemoryMigrator(t,
			child,
			migration("b", "0001"),
			migration("b", "0002", "0001"),
			replacing(migration("b", "0003_squash"), "0001", "0002"),
		)
		backend.markApplied(key("b", "0001"), key("b", "0002"), key("a", "child"))

		_, err := m.GenerateMigrationPlan(context.Background(), nil, migrator.RevertName("b", "0002"))
		assert.ErrorIs(t, err, migrator.ErrPendingMigrationPresent)

		assert.Equal(t, []string{"a_child"}, fullNames(plan(t, m, migrator.RevertName("a", "child"))))
	})
}

func TestRevertNotAppliedTargetIsEmpty(t *testing.T) {
	m, backend := diamond(t)
	backend.markApplied(key("test", "a"))

	assert.Empty(t, plan(t, m, migrator.RevertName("test", "d")))
}

func TestPlanString(t *testing.T) {
	assert.Equal(t, "apply all", migrator.ApplyAll().String())
	assert.Equal(t, "revert 2 (fake)", migrator.RevertCount(2).WithMode(migrator.ModeFake).String())
	assert.Equal(t, "apply users_create", migrator.ApplyName("users", "create").String())
	assert.Equal(t, "revert app users", migrator.RevertName("users", "").String())
}

func TestDuplicateRegistration(t *testing.T) {
	m, err := migrator.New[appState](&memoryBackend{}, appState{})
	require.NoError(t, err)

	require.NoError(t, m.AddMigration(migration("users", "create")))
	err = m.AddMigration(migration("users", "create"))
	assert.ErrorIs(t, err, migrator.ErrMigrationAlreadyRegistered)
	assert.Len(t, m.Migrations(), 1)
}

func TestRegisterInvalidMigration(t *testing.T) {
	m, err := migrator.New[appState](&memoryBackend{}, appState{})
	require.NoError(t, err)

	assert.ErrorIs(t, m.AddMigration(migrator.Migration[appState]{Name: "create"}), migrator.ErrAppNameRequired)
	assert.ErrorIs(t, m.AddMigration(migrator.Migration[appState]{App: "users"}), migrator.ErrMigrationNameRequired)
	assert.ErrorIs(t, m.AddMigration(migrator.Migration[appState]{App: "users", Name: "  "}), migrator.ErrMigrationNameRequired)
	assert.Empty(t, m.Migrations())
}

func TestListReadsAppliedOnce(t *testing.T) {
	m, backend := diamond(t)
	backend.markApplied(key("test", "a"))

	statuses, err := m.List(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, statuses, 4)
	assert.Equal(t, migrator.StateApplied, statuses[0].State)
	assert.Equal(t, 1, backend.fetches)
}

func TestTableName(t *testing.T) {
	m, err := migrator.New[appState](&memoryBackend{}, appState{})
	require.NoError(t, err)
	assert.Equal(t, "_migrator_migrations", m.TableName())

	m, err = migrator.New[appState](&memoryBackend{}, appState{}, migrator.WithPrefix("tenant_1"))
	require.NoError(t, err)
	assert.Equal(t, "_tenant_1_migrator_migrations", m.TableName())

	m, err = migrator.New[appState](&memoryBackend{}, appState{}, migrator.WithTableName("schema_history"))
	require.NoError(t, err)
	assert.Equal(t, "schema_history", m.TableName())

	for _, prefix := range []string{"bad-prefix", "таблица", "a b", "x;drop"} {
		_, err = migrator.New[appState](&memoryBackend{}, appState{}, migrator.WithPrefix(prefix))
		assert.ErrorIs(t, err, migrator.ErrNonASCIIAlphaNumeric, prefix)
	}
}
