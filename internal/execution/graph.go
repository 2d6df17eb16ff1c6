package execution

import (
	"container/heap"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/felixgeelhaar/flowbuild/internal/phase"
	"github.com/felixgeelhaar/flowbuild/internal/resource"
	"github.com/felixgeelhaar/flowbuild/internal/target"
)

// Graph is the dependency graph of the targets taking part in one phase.
// Nodes are indexed in declaration order.
type Graph struct {
	phase phase.Phase
	nodes []target.Target
	index map[target.Identifier]int
	deps  [][]int // deps[i]: nodes i depends on, ascending
	rdeps [][]int // rdeps[i]: nodes depending on i, ascending
	order []int
}

// BuildGraph resolves the dependencies among targets for p.
//
// Only targets that support p take part. A depends on B when a resource A
// requires intersects a resource B provides. Requirements nobody provides are
// assumed to be satisfied externally. Teardown phases reverse every edge, so
// consumers are truncated or destroyed before their producers.
func BuildGraph(targets []target.Target, p phase.Phase) (*Graph, error) {
	g := &Graph{
		phase: p,
		index: make(map[target.Identifier]int),
	}

	for _, t := range targets {
		if !t.Phases().Contains(p) {
			continue
		}
		id := t.Identifier()
		if _, dup := g.index[id]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTarget, id)
		}
		g.index[id] = len(g.nodes)
		g.nodes = append(g.nodes, t)
	}

	n := len(g.nodes)
	requires := make([][]resource.Identifier, n)
	provides := make([][]resource.Identifier, n)
	providers := make(map[string]int)

	for i, t := range g.nodes {
		requires[i] = t.Requires(p)
		provides[i] = t.Provides(p)
		for _, r := range provides[i] {
			if j, ok := providers[r.Key()]; ok && j != i {
				return nil, &AmbiguousProviderError{
					Phase:    p,
					Resource: r,
					First:    g.nodes[j].Identifier(),
					Second:   t.Identifier(),
				}
			}
			providers[r.Key()] = i
		}
	}

	g.deps = make([][]int, n)
	g.rdeps = make([][]int, n)
	for i := range n {
		for j := range n {
			if i == j || !resource.AnyIntersects(requires[i], provides[j]) {
				continue
			}
			if p.IsTeardown() {
				g.deps[j] = append(g.deps[j], i)
				g.rdeps[i] = append(g.rdeps[i], j)
			} else {
				g.deps[i] = append(g.deps[i], j)
				g.rdeps[j] = append(g.rdeps[j], i)
			}
		}
	}

	order, err := g.sort()
	if err != nil {
		return nil, err
	}
	g.order = order
	return g, nil
}

// Resolve returns the targets supporting p in dependency order.
func Resolve(targets []target.Target, p phase.Phase) ([]target.Target, error) {
	g, err := BuildGraph(targets, p)
	if err != nil {
		return nil, err
	}
	return g.Order(), nil
}

// sort is Kahn's algorithm. Among ready nodes the earliest declared runs
// first, which makes the order deterministic.
func (g *Graph) sort() ([]int, error) {
	n := len(g.nodes)
	inDegree := make([]int, n)
	ready := &intMinHeap{}
	for i := range n {
		inDegree[i] = len(g.deps[i])
		if inDegree[i] == 0 {
			heap.Push(ready, i)
		}
	}

	order := make([]int, 0, n)
	for ready.Len() > 0 {
		u := heap.Pop(ready).(int)
		order = append(order, u)
		for _, v := range g.rdeps[u] {
			inDegree[v]--
			if inDegree[v] == 0 {
				heap.Push(ready, v)
			}
		}
	}

	if len(order) < n {
		return nil, &CycleError{Phase: g.phase, Cycle: g.findCycle(inDegree)}
	}
	return order, nil
}

// findCycle walks the nodes Kahn could not order and returns one cycle.
func (g *Graph) findCycle(inDegree []int) []target.Identifier {
	const (
		white = iota
		gray
		black
	)
	color := make([]int, len(g.nodes))
	var stack []int
	var cycle []int

	var visit func(u int) bool
	visit = func(u int) bool {
		color[u] = gray
		stack = append(stack, u)
		for _, v := range g.deps[u] {
			if inDegree[v] == 0 {
				continue
			}
			switch color[v] {
			case gray:
				start := slices.Index(stack, v)
				cycle = append(append([]int(nil), stack[start:]...), v)
				return true
			case white:
				if visit(v) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[u] = black
		return false
	}

	for u := range g.nodes {
		if inDegree[u] > 0 && color[u] == white && visit(u) {
			break
		}
	}

	ids := make([]target.Identifier, len(cycle))
	for i, u := range cycle {
		ids[i] = g.nodes[u].Identifier()
	}
	return ids
}

// Phase returns the phase the graph was built for.
func (g *Graph) Phase() phase.Phase { return g.phase }

// Len returns the number of participating targets.
func (g *Graph) Len() int { return len(g.nodes) }

// Contains reports whether the target takes part in the phase.
func (g *Graph) Contains(id target.Identifier) bool {
	_, ok := g.index[id]
	return ok
}

// Order returns the targets in execution order.
func (g *Graph) Order() []target.Target {
	out := make([]target.Target, len(g.order))
	for i, u := range g.order {
		out[i] = g.nodes[u]
	}
	return out
}

// Dependencies returns the targets id directly depends on.
func (g *Graph) Dependencies(id target.Identifier) []target.Target {
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	return g.targets(g.deps[i])
}

// Dependents returns the targets that directly depend on id.
func (g *Graph) Dependents(id target.Identifier) []target.Target {
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	return g.targets(g.rdeps[i])
}

// Levels groups the execution order into waves whose members do not depend
// on each other.
func (g *Graph) Levels() [][]target.Target {
	level := make([]int, len(g.nodes))
	var levels [][]target.Target
	for _, u := range g.order {
		for _, d := range g.deps[u] {
			level[u] = max(level[u], level[d]+1)
		}
		for len(levels) <= level[u] {
			levels = append(levels, nil)
		}
		levels[level[u]] = append(levels[level[u]], g.nodes[u])
	}
	return levels
}

// downstream returns every node transitively depending on i.
func (g *Graph) downstream(i int) []int {
	visited := make([]bool, len(g.nodes))
	var out []int
	queue := append([]int(nil), g.rdeps[i]...)
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		if visited[u] {
			continue
		}
		visited[u] = true
		out = append(out, u)
		queue = append(queue, g.rdeps[u]...)
	}
	slices.Sort(out)
	return out
}

func (g *Graph) targets(idx []int) []target.Target {
	out := make([]target.Target, len(idx))
	for i, u := range idx {
		out[i] = g.nodes[u]
	}
	return out
}

// WriteMermaid writes the graph as a Mermaid flowchart, edges pointing from
// dependency to dependent.
func (g *Graph) WriteMermaid(w io.Writer) error {
	var b strings.Builder
	b.WriteString("graph TD\n")
	for _, u := range g.order {
		fmt.Fprintf(&b, "    n%d[\"%s\"]\n", u, g.nodes[u].Identifier())
	}
	for _, u := range g.order {
		for _, d := range g.deps[u] {
			fmt.Fprintf(&b, "    n%d --> n%d\n", d, u)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

type intMinHeap []int

func (h intMinHeap) Len() int           { return len(h) }
func (h intMinHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h intMinHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *intMinHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *intMinHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
