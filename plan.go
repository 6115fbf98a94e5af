package app_migrator

import (
	"fmt"
	"slices"
	"strings"
)

type Direction int

const (
	Apply Direction = iota
	Revert
)

func (d Direction) String() string {
	if d == Revert {
		return "revert"
	}
	return "apply"
}

// Mode определяет, выполняются ли операции миграций.
type Mode int

const (
	// ModeRun выполняет операции и обновляет служебную таблицу.
	ModeRun Mode = iota
	// ModeFake только обновляет служебную таблицу. Используется, когда изменения
	// уже внесены в базу вне мигратора.
	ModeFake
)

func (m Mode) String() string {
	if m == ModeFake {
		return "fake"
	}
	return "run"
}

// Plan описывает, какие миграции нужно применить или откатить.
// Создается одной из функций ApplyAll, ApplyCount, ApplyName, RevertAll, RevertCount, RevertName.
type Plan struct {
	direction Direction
	target    *Key
	count     *uint
	mode      Mode

	expect   bool
	expected []Key
}

func ApplyAll() Plan {
	return Plan{direction: Apply}
}

func ApplyCount(count uint) Plan {
	return Plan{direction: Apply, count: &count}
}

// ApplyName применяет миграцию name приложения app вместе с еще не примененными предками.
// Пустой name означает все миграции приложения.
func ApplyName(app, name string) Plan {
	return Plan{direction: Apply, target: &Key{App: app, Name: name}}
}

func RevertAll() Plan {
	return Plan{direction: Revert}
}

func RevertCount(count uint) Plan {
	return Plan{direction: Revert, count: &count}
}

// RevertName откатывает миграцию name приложения app. Если от нее зависят
// другие примененные миграции, возвращается ErrPendingMigrationPresent.
// Пустой name означает все примененные миграции приложения.
func RevertName(app, name string) Plan {
	return Plan{direction: Revert, target: &Key{App: app, Name: name}}
}

func (p Plan) WithMode(mode Mode) Plan {
	p.mode = mode
	return p
}

// Expect фиксирует ожидаемый список миграций. Run строит план заново под блокировкой
// и возвращает ErrPlanChanged, если он не совпадает с keys (например, план был
// показан пользователю, а затем базу изменил параллельный запуск).
func (p Plan) Expect(keys ...Key) Plan {
	p.expect = true
	p.expected = slices.Clone(keys)
	return p
}

func (p Plan) Direction() Direction { return p.direction }
func (p Plan) Mode() Mode           { return p.mode }

func (p Plan) String() string {
	var b strings.Builder
	b.WriteString(p.direction.String())
	switch {
	case p.target != nil && p.target.Name != "":
		fmt.Fprintf(&b, " %s", p.target)
	case p.target != nil:
		fmt.Fprintf(&b, " app %s", p.target.App)
	case p.count != nil:
		fmt.Fprintf(&b, " %d", *p.count)
	default:
		b.WriteString(" all")
	}
	if p.mode == ModeFake {
		b.WriteString(" (fake)")
	}
	return b.String()
}

type planner[S any] struct {
	graph   *graph[S]
	rows    []AppliedMigration
	applied []bool
	removed []bool
}

func newPlanner[S any](g *graph[S], rows []AppliedMigration) (*planner[S], error) {
	applied, removed, err := g.resolveState(appliedKeys(rows))
	if err != nil {
		return nil, err
	}
	return &planner[S]{graph: g, rows: rows, applied: applied, removed: removed}, nil
}

// candidates - вершины в порядке применения без виртуальных и отброшенных замен.
func (p *planner[S]) candidates(applied bool) []int {
	var out []int
	for _, i := range p.graph.order {
		if p.removed[i] || p.graph.nodes[i].IsVirtual() || p.applied[i] != applied {
			continue
		}
		out = append(out, i)
	}
	return out
}

func (p *planner[S]) MakePlan(plan Plan) ([]*Migration[S], error) {
	var (
		list []int
		err  error
	)

	switch plan.direction {
	case Apply:
		list, err = p.planApply(plan)
	case Revert:
		list, err = p.planRevert(plan)
	default:
		return nil, fmt.Errorf("%w: unknown plan direction %d", ErrFailedToCreateMigrationPlan, plan.direction)
	}
	if err != nil {
		return nil, err
	}

	if plan.count != nil {
		count := int(*plan.count)
		if count > len(list) {
			return nil, fmt.Errorf("%w: requested %d, available %d", ErrCountGreater, count, len(list))
		}
		list = list[:count]
	}

	out := make([]*Migration[S], len(list))
	for n, i := range list {
		out[n] = p.graph.nodes[i]
	}
	return out, nil
}

func (p *planner[S]) planApply(plan Plan) ([]int, error) {
	pending := p.candidates(false)
	if plan.target == nil {
		return pending, nil
	}

	targets, err := p.targets(*plan.target)
	if err != nil {
		return nil, err
	}

	related := p.graph.reach(targets, p.graph.pred)
	for _, i := range targets {
		related[i] = struct{}{}
	}

	return slices.DeleteFunc(pending, func(i int) bool {
		_, ok := related[i]
		return !ok
	}), nil
}

func (p *planner[S]) planRevert(plan Plan) ([]int, error) {
	applied := p.candidates(true)
	slices.Reverse(applied)
	if plan.target == nil {
		return applied, nil
	}

	targets, err := p.targets(*plan.target)
	if err != nil {
		return nil, err
	}
	for _, i := range targets {
		if p.graph.nodes[i].IsVirtual() && plan.target.Name != "" {
			return nil, fmt.Errorf(
				"%w: virtual migration %s cannot be reverted",
				ErrFailedToCreateMigrationPlan, p.graph.keys[i],
			)
		}
	}

	targets = slices.DeleteFunc(targets, func(i int) bool { return !p.applied[i] })
	inTargets := make(map[int]struct{}, len(targets))
	for _, i := range targets {
		inTargets[i] = struct{}{}
	}

	var dependents []string
	for _, i := range p.graph.dependents(targets, p.applied, p.removed) {
		if _, ok := inTargets[i]; !ok {
			dependents = append(dependents, p.graph.keys[i].String())
		}
	}
	if len(dependents) > 0 {
		return nil, fmt.Errorf(
			"%w: applied migrations %s depend on migrations being reverted",
			ErrPendingMigrationPresent, strings.Join(dependents, ", "),
		)
	}

	return slices.DeleteFunc(applied, func(i int) bool {
		_, ok := inTargets[i]
		return !ok
	}), nil
}

func (p *planner[S]) targets(target Key) ([]int, error) {
	if target.App == "" {
		return nil, ErrAppNameRequired
	}

	var app []int
	for _, i := range p.graph.order {
		if p.graph.keys[i].App == target.App {
			app = append(app, i)
		}
	}
	if len(app) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrAppNameNotExists, target.App)
	}

	if target.Name == "" {
		return slices.DeleteFunc(app, func(i int) bool { return p.removed[i] || p.graph.nodes[i].IsVirtual() }), nil
	}

	i, ok := p.graph.index[target]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMigrationNameNotExists, target)
	}
	if p.removed[i] {
		return nil, fmt.Errorf(
			"%w: migration %s is superseded and cannot be targeted",
			ErrFailedToCreateMigrationPlan, target,
		)
	}
	return []int{i}, nil
}
