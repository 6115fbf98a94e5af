package app_migrator

import (
	"container/heap"
	"fmt"
	"sort"
	"strings"
)

type edgeSet []map[int]struct{}

func newEdgeSet(n int) edgeSet {
	edges := make(edgeSet, n)
	for i := range edges {
		edges[i] = make(map[int]struct{})
	}
	return edges
}

func (e edgeSet) clone() edgeSet {
	out := newEdgeSet(len(e))
	for i, set := range e {
		for j := range set {
			out[i][j] = struct{}{}
		}
	}
	return out
}

// graph хранит миграции в массиве и ссылается на них по индексу.
// Ребро i -> j означает, что i должна быть применена раньше j.
type graph[S any] struct {
	nodes []*Migration[S]
	keys  []Key
	index map[Key]int

	// связи из Parents и RunBefore
	basePred, baseSucc edgeSet
	// связи с учетом Replaces
	pred, succ edgeSet

	replacedBy map[int]int
	// замещающая миграция -> все замещаемые ею (транзитивно)
	replaced map[int][]int

	order []int
}

func newGraph[S any](migrations []*Migration[S]) (*graph[S], error) {
	if len(migrations) == 0 {
		return nil, fmt.Errorf("%w: no migrations registered", ErrFailedToCreateMigrationPlan)
	}

	n := len(migrations)
	g := &graph[S]{
		nodes:    migrations,
		keys:     make([]Key, n),
		index:    make(map[Key]int, n),
		basePred: newEdgeSet(n),
		baseSucc: newEdgeSet(n),
	}
	for i, m := range migrations {
		g.keys[i] = m.Key()
		g.index[g.keys[i]] = i
	}

	for i, m := range migrations {
		if m.IsVirtual() && len(m.Operations) > 0 {
			return nil, fmt.Errorf("%w: virtual migration %s has operations", ErrFailedToCreateMigrationPlan, g.keys[i])
		}

		for _, ref := range m.Parents {
			p, err := g.resolve(i, ref, "parent")
			if err != nil {
				return nil, err
			}
			addEdge(g.basePred, g.baseSucc, p, i)
		}

		for _, ref := range m.RunBefore {
			r, err := g.resolve(i, ref, "run before")
			if err != nil {
				return nil, err
			}
			addEdge(g.basePred, g.baseSucc, i, r)
		}
	}

	if err := g.resolveReplaces(); err != nil {
		return nil, err
	}

	g.pred, g.succ = g.basePred.clone(), g.baseSucc.clone()
	g.addReplaceEdges()

	if err := g.sort(); err != nil {
		return nil, err
	}

	return g, nil
}

func addEdge(pred, succ edgeSet, from, to int) {
	succ[from][to] = struct{}{}
	pred[to][from] = struct{}{}
}

func (g *graph[S]) resolve(from int, ref Key, relation string) (int, error) {
	i, ok := g.index[ref]
	if !ok {
		return 0, fmt.Errorf(
			"%w: %s migration %s of %s is not registered",
			ErrFailedToCreateMigrationPlan, relation, ref, g.keys[from],
		)
	}
	return i, nil
}

func (g *graph[S]) resolveReplaces() error {
	g.replacedBy = make(map[int]int)
	direct := make(map[int][]int)

	for i, m := range g.nodes {
		for _, ref := range m.Replaces {
			c, err := g.resolve(i, ref, "replaced")
			if err != nil {
				return err
			}
			if c == i {
				return fmt.Errorf("%w: migration %s replaces itself", ErrFailedToCreateMigrationPlan, g.keys[i])
			}
			if other, ok := g.replacedBy[c]; ok {
				return fmt.Errorf(
					"%w: migration %s is replaced multiple times (by %s and %s)",
					ErrFailedToCreateMigrationPlan, g.keys[c], g.keys[other], g.keys[i],
				)
			}
			g.replacedBy[c] = i
			direct[i] = append(direct[i], c)
		}
	}

	for start := range g.nodes {
		seen := map[int]struct{}{start: {}}
		for cur, ok := g.replacedBy[start]; ok; cur, ok = g.replacedBy[cur] {
			if _, loop := seen[cur]; loop {
				return fmt.Errorf(
					"%w: migrations %s and %s replace each other",
					ErrFailedToCreateMigrationPlan, g.keys[start], g.keys[cur],
				)
			}
			seen[cur] = struct{}{}
		}
	}

	g.replaced = make(map[int][]int, len(direct))
	for i := range g.nodes {
		if len(direct[i]) == 0 {
			continue
		}
		queue := append([]int(nil), direct[i]...)
		for len(queue) > 0 {
			c := queue[0]
			queue = queue[1:]
			g.replaced[i] = append(g.replaced[i], c)
			queue = append(queue, direct[c]...)
		}
	}

	for i := range g.nodes {
		for _, c := range g.replaced[i] {
			_, before := g.basePred[i][c]
			_, after := g.baseSucc[i][c]
			if before || after {
				return fmt.Errorf(
					"%w: migration %s replaces %s and is also ordered against it",
					ErrFailedToCreateMigrationPlan, g.keys[i], g.keys[c],
				)
			}
		}
	}

	return nil
}

// addReplaceEdges ставит замещающую миграцию на место всего замещаемого множества:
// внешние предки замещаемых идут до нее, внешние потомки - после.
// Потомки самой замещающей миграции идут после всех замещаемых: если замещающая
// будет отброшена, ее потомки все равно ждут оставшиеся замещаемые миграции.
func (g *graph[S]) addReplaceEdges() {
	for i, members := range g.replaced {
		inSet := make(map[int]struct{}, len(members))
		for _, c := range members {
			inSet[c] = struct{}{}
		}

		for _, c := range members {
			for p := range g.basePred[c] {
				if _, ok := inSet[p]; !ok && p != i {
					addEdge(g.pred, g.succ, p, i)
				}
			}
			for s := range g.baseSucc[c] {
				if _, ok := inSet[s]; !ok && s != i {
					addEdge(g.pred, g.succ, i, s)
				}
			}
			for s := range g.baseSucc[i] {
				if _, ok := inSet[s]; !ok {
					addEdge(g.pred, g.succ, c, s)
				}
			}
			addEdge(g.pred, g.succ, i, c)
		}
	}
}

type readyQueue struct {
	items []int
	keys  []Key
}

func (q *readyQueue) Len() int           { return len(q.items) }
func (q *readyQueue) Less(i, j int) bool { return q.keys[q.items[i]].less(q.keys[q.items[j]]) }
func (q *readyQueue) Swap(i, j int)      { q.items[i], q.items[j] = q.items[j], q.items[i] }
func (q *readyQueue) Push(x any)         { q.items = append(q.items, x.(int)) }

func (q *readyQueue) Pop() any {
	last := q.items[len(q.items)-1]
	q.items = q.items[:len(q.items)-1]
	return last
}

// sort - алгоритм Кана. Среди готовых миграций первой берется наименьшая по (app, name).
func (g *graph[S]) sort() error {
	indegree := make([]int, len(g.nodes))
	queue := &readyQueue{keys: g.keys}
	for i := range g.nodes {
		indegree[i] = len(g.pred[i])
		if indegree[i] == 0 {
			queue.items = append(queue.items, i)
		}
	}
	heap.Init(queue)

	g.order = make([]int, 0, len(g.nodes))
	for queue.Len() > 0 {
		i := heap.Pop(queue).(int)
		g.order = append(g.order, i)
		for next := range g.succ[i] {
			indegree[next]--
			if indegree[next] == 0 {
				heap.Push(queue, next)
			}
		}
	}

	if len(g.order) == len(g.nodes) {
		return nil
	}

	var stuck []string
	for i, d := range indegree {
		if d > 0 {
			stuck = append(stuck, g.keys[i].String())
		}
	}
	sort.Strings(stuck)

	return fmt.Errorf(
		"%w: dependency cycle between migrations %s",
		ErrFailedToCreateMigrationPlan, strings.Join(stuck, ", "),
	)
}

// reach возвращает все вершины, достижимые из start по edges (без самих start).
func (g *graph[S]) reach(start []int, edges edgeSet) map[int]struct{} {
	seen := make(map[int]struct{})
	queue := append([]int(nil), start...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for next := range edges[cur] {
			if _, ok := seen[next]; ok {
				continue
			}
			seen[next] = struct{}{}
			queue = append(queue, next)
		}
	}
	for _, i := range start {
		delete(seen, i)
	}
	return seen
}

// dependents возвращает примененные миграции, зависящие от start через Parents и RunBefore.
// Отброшенные замещаемые миграции представлены своей замещающей, а потомки отброшенной
// замещающей миграции считаются потомками каждой из замещаемых.
func (g *graph[S]) dependents(start []int, applied, removed []bool) []int {
	seen := make(map[int]struct{})
	queue := append([]int(nil), start...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range g.dependencySucc(cur, removed) {
			next = g.representative(next, removed)
			if next < 0 {
				continue
			}
			if _, ok := seen[next]; ok {
				continue
			}
			seen[next] = struct{}{}
			queue = append(queue, next)
		}
	}
	for _, i := range start {
		delete(seen, i)
	}

	var out []int
	for i := range seen {
		if applied[i] {
			out = append(out, i)
		}
	}
	sort.Slice(out, func(a, b int) bool { return g.keys[out[a]].less(g.keys[out[b]]) })
	return out
}

func (g *graph[S]) dependencySucc(i int, removed []bool) []int {
	var out []int
	for s := range g.baseSucc[i] {
		out = append(out, s)
	}
	for r, ok := g.replacedBy[i]; ok; r, ok = g.replacedBy[r] {
		if !removed[r] {
			continue
		}
		for s := range g.baseSucc[r] {
			out = append(out, s)
		}
	}
	if !removed[i] {
		for _, c := range g.replaced[i] {
			if !removed[c] {
				continue
			}
			for s := range g.baseSucc[c] {
				out = append(out, s)
			}
		}
	}
	return out
}

// representative возвращает саму миграцию или замещающую ее, если миграция отброшена.
// -1 означает отброшенную замещающую миграцию: ее место занимают замещаемые.
func (g *graph[S]) representative(i int, removed []bool) int {
	if !removed[i] {
		return i
	}
	for r, ok := g.replacedBy[i]; ok; r, ok = g.replacedBy[r] {
		if !removed[r] {
			return r
		}
	}
	return -1
}

// effectivePreds - прямые предки вершины, виртуальные вехи раскрываются в их предков.
func (g *graph[S]) effectivePreds(i int) []int {
	var out []int
	seen := make(map[int]struct{})
	queue := make([]int, 0, len(g.basePred[i]))
	for p := range g.basePred[i] {
		queue = append(queue, p)
	}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		if g.nodes[p].IsVirtual() {
			for pp := range g.basePred[p] {
				queue = append(queue, pp)
			}
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(a, b int) bool { return g.keys[out[a]].less(g.keys[out[b]]) })
	return out
}

// satisfied сообщает, что миграция применена сама, через замещающую миграцию
// или (для замещающей) через все замещаемые.
func (g *graph[S]) satisfied(i int, applied []bool) bool {
	if applied[i] {
		return true
	}
	for cur, ok := g.replacedBy[i]; ok; cur, ok = g.replacedBy[cur] {
		if applied[cur] {
			return true
		}
	}
	members := g.directReplaced(i)
	if len(members) == 0 {
		return false
	}
	for _, c := range members {
		if !g.satisfied(c, applied) {
			return false
		}
	}
	return true
}

func (g *graph[S]) directReplaced(i int) []int {
	var out []int
	for _, c := range g.replaced[i] {
		if g.replacedBy[c] == i {
			out = append(out, c)
		}
	}
	return out
}

// resolveState проверяет согласованность примененных миграций и отбрасывает
// либо замещающие миграции, либо замещаемые, в зависимости от того, что уже применено.
func (g *graph[S]) resolveState(appliedKeys map[Key]struct{}) (applied, removed []bool, err error) {
	applied = make([]bool, len(g.nodes))
	removed = make([]bool, len(g.nodes))
	for i, m := range g.nodes {
		if m.IsVirtual() {
			continue
		}
		_, applied[i] = appliedKeys[g.keys[i]]
	}

	for _, i := range g.order {
		if !applied[i] {
			continue
		}
		for _, p := range g.effectivePreds(i) {
			if !g.satisfied(p, applied) {
				return nil, nil, fmt.Errorf(
					"%w: migration %s is applied before its parent %s",
					ErrFailedToCreateMigrationPlan, g.keys[i], g.keys[p],
				)
			}
		}
	}

	for _, i := range g.order {
		members := g.replaced[i]
		if len(members) == 0 {
			continue
		}

		var appliedMember = -1
		for _, c := range members {
			if applied[c] {
				appliedMember = c
				break
			}
		}

		if appliedMember < 0 {
			for _, c := range members {
				removed[c] = true
			}
			continue
		}

		if applied[i] {
			return nil, nil, fmt.Errorf(
				"%w: %s replaces applied migration %s",
				ErrBothMigrationTypeApplied, g.keys[i], g.keys[appliedMember],
			)
		}
		removed[i] = true
	}

	return applied, removed, nil
}
