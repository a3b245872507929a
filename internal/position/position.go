package position

import (
	"fmt"
	"strings"
)

type Reason string

const (
	Direct  Reason = "direct"
	Cascade Reason = "cascade"
)

// Request asks for Column to be placed after After, or at the head when First is set.
type Request struct {
	Column string
	After  string
	First  bool
}

// Change is one emitted position change. An empty After with First set
// places the column at the head.
type Change struct {
	Name   string `json:"name"`
	After  string `json:"after,omitempty"`
	First  bool   `json:"first,omitempty"`
	Reason Reason `json:"reason"`
}

type UnknownColumnError struct {
	Column string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("position directive references unknown column %q", e.Column)
}

// CycleError reports position directives that anchor on each other.
type CycleError struct {
	Columns []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("circular position directives: %s", strings.Join(e.Columns, " -> "))
}

const head = -1

// graph is an arena of columns addressed by index; pred holds each node's
// predecessor in the working order, or head.
type graph struct {
	names []string
	index map[string]int
	order []int
}

func newGraph(order []string) *graph {
	g := &graph{index: make(map[string]int, len(order))}
	for _, name := range order {
		g.index[strings.ToLower(name)] = len(g.names)
		g.order = append(g.order, len(g.names))
		g.names = append(g.names, name)
	}
	return g
}

func (g *graph) lookup(name string) (int, error) {
	id, ok := g.index[strings.ToLower(name)]
	if !ok {
		return 0, &UnknownColumnError{Column: name}
	}
	return id, nil
}

func (g *graph) pos(id int) int {
	for i, n := range g.order {
		if n == id {
			return i
		}
	}
	return -1
}

// pred returns the predecessor of every node in the working order.
func (g *graph) pred() []int {
	p := make([]int, len(g.names))
	for i, n := range g.order {
		if i == 0 {
			p[n] = head
		} else {
			p[n] = g.order[i-1]
		}
	}
	return p
}

func (g *graph) move(id, after int) {
	i := g.pos(id)
	g.order = append(g.order[:i], g.order[i+1:]...)
	at := 0
	if after != head {
		at = g.pos(after) + 1
	}
	g.order = append(g.order, 0)
	copy(g.order[at+1:], g.order[at:])
	g.order[at] = id
}

// Resolve turns position requests into an ordered list of changes against
// the current column order. A request already satisfied by the order is a
// no-op. Every column whose anchor shifts as a result of a move is emitted
// as a cascade, in dependency order; columns already emitted are skipped.
func Resolve(order []string, requests []Request) ([]Change, error) {
	g := newGraph(order)

	type directive struct{ col, after int }
	directives := make([]directive, 0, len(requests))
	for _, r := range requests {
		col, err := g.lookup(r.Column)
		if err != nil {
			return nil, err
		}
		after := head
		if !r.First {
			if after, err = g.lookup(r.After); err != nil {
				return nil, err
			}
			if after == col {
				return nil, &CycleError{Columns: []string{g.names[col]}}
			}
		}
		directives = append(directives, directive{col: col, after: after})
	}

	anchors := make(map[int]int, len(directives))
	for _, d := range directives {
		anchors[d.col] = d.after
	}
	if err := g.detectCycle(anchors); err != nil {
		return nil, err
	}

	var changes []Change
	emitted := make(map[int]bool)
	for _, d := range directives {
		p := g.pos(d.col)
		if d.after == head && p == 0 {
			continue
		}
		if d.after != head && p > 0 && g.order[p-1] == d.after {
			continue
		}

		g.move(d.col, d.after)
		pred := g.pred()
		sorted, err := g.sortAffected(g.affected(d.col, pred), pred)
		if err != nil {
			return nil, err
		}
		for _, id := range sorted {
			reason := Cascade
			if id == d.col {
				reason = Direct
			} else if emitted[id] {
				continue
			}
			emitted[id] = true
			c := Change{Name: g.names[id], Reason: reason}
			if pred[id] == head {
				c.First = true
			} else {
				c.After = g.names[pred[id]]
			}
			changes = append(changes, c)
		}
	}
	return changes, nil
}

// detectCycle follows directive anchors and fails when a chain returns to
// a column already on it.
func (g *graph) detectCycle(anchors map[int]int) error {
	const (
		unvisited = iota
		onPath
		done
	)
	state := make([]int, len(g.names))
	for start := range anchors {
		var path []int
		n := start
		for {
			if state[n] == done {
				break
			}
			if state[n] == onPath {
				var cycle []string
				for i := len(path) - 1; i >= 0; i-- {
					cycle = append(cycle, g.names[path[i]])
					if path[i] == n {
						break
					}
				}
				return &CycleError{Columns: cycle}
			}
			state[n] = onPath
			path = append(path, n)
			next, ok := anchors[n]
			if !ok || next == head {
				break
			}
			n = next
		}
		for _, id := range path {
			state[id] = done
		}
	}
	return nil
}

// affected collects the moved column and every column transitively
// anchored after it.
func (g *graph) affected(moved int, pred []int) map[int]bool {
	reverse := make([][]int, len(g.names))
	for id, p := range pred {
		if p != head {
			reverse[p] = append(reverse[p], id)
		}
	}
	seen := make(map[int]bool)
	var visit func(int)
	visit = func(id int) {
		if seen[id] {
			return
		}
		seen[id] = true
		for _, dep := range reverse[id] {
			visit(dep)
		}
	}
	visit(moved)
	return seen
}

// sortAffected orders the subset with Kahn's algorithm over the
// predecessor edges whose endpoints both lie inside it.
func (g *graph) sortAffected(subset map[int]bool, pred []int) ([]int, error) {
	inDegree := make(map[int]int, len(subset))
	next := make(map[int][]int, len(subset))
	for _, id := range g.order {
		if !subset[id] {
			continue
		}
		if p := pred[id]; p != head && subset[p] {
			next[p] = append(next[p], id)
			inDegree[id]++
		}
	}

	var queue, sorted []int
	for _, id := range g.order {
		if subset[id] && inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		sorted = append(sorted, id)
		for _, dep := range next[id] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}
	if len(sorted) != len(subset) {
		var stuck []string
		for id := range subset {
			if inDegree[id] > 0 {
				stuck = append(stuck, g.names[id])
			}
		}
		return nil, &CycleError{Columns: stuck}
	}
	return sorted, nil
}
