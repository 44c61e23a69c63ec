// Package depgraph builds the dependency graph the CPM engine schedules
// over: forward and reverse adjacency lists derived from the task store,
// plus a topological order produced by Kahn's algorithm. Parents and blank
// rows are excluded; they are summarized separately by internal/rollup.
package depgraph

import (
	"sort"

	"github.com/buildwright/cpmschedule/internal/schederr"
	"github.com/buildwright/cpmschedule/internal/task"
)

// Edge is one dependency link, carried in both the forward (successor) and
// reverse (predecessor) adjacency lists.
type Edge struct {
	ID   task.ID // the other endpoint: predId in Predecessors, succId in Successors
	Type task.DependencyType
	Lag  int
}

// Graph is the dependency graph for one CPM run: adjacency lists plus the
// topological order successors must be scheduled in.
type Graph struct {
	Successors   map[task.ID][]Edge // predId -> edges to its successors
	Predecessors map[task.ID][]Edge // succId -> edges to its predecessors
	Order        []task.ID          // topological order, predecessors before successors
}

// Build constructs a Graph from every non-blank, non-parent task in tasks.
// It returns CycleError naming at least one cycle member if the graph is
// not a DAG.
func Build(tasks []task.Task) (*Graph, error) {
	g := &Graph{
		Successors:   make(map[task.ID][]Edge),
		Predecessors: make(map[task.ID][]Edge),
	}

	scheduled := make(map[task.ID]task.Task)
	for _, t := range tasks {
		if t.IsParent() || t.IsBlank() {
			continue
		}
		scheduled[t.ID] = t
		if _, ok := g.Successors[t.ID]; !ok {
			g.Successors[t.ID] = nil
		}
		if _, ok := g.Predecessors[t.ID]; !ok {
			g.Predecessors[t.ID] = nil
		}
	}

	for _, t := range scheduled {
		for _, dep := range t.Dependencies {
			pred, ok := scheduled[dep.PredID]
			if !ok {
				// Every task reaching here went through task.Store
				// validation (I3, I5), which rejects links on or to a
				// summary/blank row at insertion time; this branch is
				// unreachable for a validated store and only guards
				// against a caller building a Graph from raw task structs.
				continue
			}
			g.Successors[pred.ID] = append(g.Successors[pred.ID], Edge{ID: t.ID, Type: dep.Type, Lag: dep.Lag})
			g.Predecessors[t.ID] = append(g.Predecessors[t.ID], Edge{ID: pred.ID, Type: dep.Type, Lag: dep.Lag})
		}
	}

	for id := range g.Successors {
		sort.Slice(g.Successors[id], func(i, j int) bool { return g.Successors[id][i].ID < g.Successors[id][j].ID })
	}
	for id := range g.Predecessors {
		sort.Slice(g.Predecessors[id], func(i, j int) bool { return g.Predecessors[id][i].ID < g.Predecessors[id][j].ID })
	}

	order, err := topoSort(g)
	if err != nil {
		return nil, err
	}
	g.Order = order
	return g, nil
}

// topoSort runs Kahn's algorithm over the predecessor-must-precede-successor
// relation. Ties are broken by task ID for determinism.
func topoSort(g *Graph) ([]task.ID, error) {
	inDegree := make(map[task.ID]int, len(g.Predecessors))
	for id, preds := range g.Predecessors {
		inDegree[id] = len(preds)
	}

	var ready []task.ID
	for id, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })

	order := make([]task.ID, 0, len(inDegree))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		for _, succ := range g.Successors[id] {
			inDegree[succ.ID]--
			if inDegree[succ.ID] == 0 {
				ready = append(ready, succ.ID)
			}
		}
	}

	if len(order) != len(inDegree) {
		return nil, schederr.NewCycleError(findCycle(g, order))
	}
	return order, nil
}

// findCycle returns the IDs of tasks never placed by Kahn's algorithm
// (everything left with nonzero in-degree), which together contain at
// least one full cycle, to surface a usable diagnostic.
func findCycle(g *Graph, placed []task.ID) []task.ID {
	done := make(map[task.ID]bool, len(placed))
	for _, id := range placed {
		done[id] = true
	}
	var remaining []task.ID
	for id := range g.Predecessors {
		if !done[id] {
			remaining = append(remaining, id)
		}
	}
	sort.Slice(remaining, func(i, j int) bool { return remaining[i] < remaining[j] })
	return remaining
}
