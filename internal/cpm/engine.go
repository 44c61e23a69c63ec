// Package cpm implements the critical path method kernel: forward pass,
// backward pass, float and criticality, and driver detection. It is pure
// and deterministic for a given (tasks, graph, calendar, project start)
// input, and runs in O(N+E) time per internal/depgraph's topological order.
package cpm

import (
	"time"

	"github.com/buildwright/cpmschedule/internal/calendar"
	"github.com/buildwright/cpmschedule/internal/depgraph"
	"github.com/buildwright/cpmschedule/internal/task"
)

// Engine runs CPM passes against one working-day calendar.
type Engine struct {
	Calendar *calendar.Calendar
}

// New returns an Engine bound to cal.
func New(cal *calendar.Calendar) *Engine {
	return &Engine{Calendar: cal}
}

// Result is the scheduled state of one leaf task, keyed by task.ID in the
// map Run returns.
type Result struct {
	Start                time.Time
	End                  time.Time
	LateStart            time.Time
	LateEnd              time.Time
	TotalFloat           int
	FreeFloat            int
	IsCritical           bool
	IsDriver             bool
	DriverPredID         task.ID
	ConstraintInfeasible bool
}

// DeriveProjectStart returns the project start PS: the earlier of
// userStart (if set) and the earliest fixed anchor among predecessor-free
// leaf tasks — a manual pin, an actualStart, or an MSO/SNET constraint date
// — since such a task's date is known independent of any CPM run and can
// anchor the project earlier than a user's stated start.
func DeriveProjectStart(tasks []task.Task, g *depgraph.Graph, userStart *time.Time) time.Time {
	var earliest time.Time
	consider := func(d time.Time) {
		if d.IsZero() {
			return
		}
		if earliest.IsZero() || d.Before(earliest) {
			earliest = d
		}
	}

	for _, t := range tasks {
		if t.IsParent() || t.IsBlank() {
			continue
		}
		if len(g.Predecessors[t.ID]) > 0 {
			continue
		}
		if t.HasActualStart() {
			consider(t.ActualStart)
			continue
		}
		if t.SchedulingMode == task.Manual {
			consider(t.Start)
			continue
		}
		switch t.ConstraintType {
		case task.MSO, task.SNET:
			consider(t.ConstraintDate)
		}
	}

	if userStart != nil {
		consider(*userStart)
	}
	return earliest
}

// Run executes the forward pass, backward pass, and float/criticality
// computation for every leaf (non-parent, non-blank) task in g.Order.
//
// byID must contain every task named in g (keyed by ID); tasks omitted from
// byID but present in g are a programming error in the caller.
func (e *Engine) Run(byID map[task.ID]task.Task, g *depgraph.Graph, projectStart time.Time) (map[task.ID]Result, error) {
	results := make(map[task.ID]Result, len(g.Order))

	if err := e.forwardPass(byID, g, projectStart, results); err != nil {
		return nil, err
	}

	projectFinish := e.deriveProjectFinish(byID, g, results)

	if err := e.backwardPass(byID, g, projectFinish, results); err != nil {
		return nil, err
	}

	e.computeFloatAndCriticality(byID, g, projectFinish, results)

	return results, nil
}

// deriveProjectFinish is PF: the latest computed end across every leaf task
// in the graph, raised to any FNLT/MFO deadline later than that.
func (e *Engine) deriveProjectFinish(byID map[task.ID]task.Task, g *depgraph.Graph, results map[task.ID]Result) time.Time {
	var pf time.Time
	for id := range g.Predecessors {
		r := results[id]
		if r.End.After(pf) {
			pf = r.End
		}
	}
	for id := range g.Predecessors {
		t := byID[id]
		switch t.ConstraintType {
		case task.FNLT, task.MFO:
			if t.ConstraintDate.After(pf) {
				pf = t.ConstraintDate
			}
		}
	}
	return pf
}
