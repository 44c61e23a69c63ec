package cpm

import (
	"time"

	"github.com/buildwright/cpmschedule/internal/depgraph"
	"github.com/buildwright/cpmschedule/internal/task"
)

// computeFloatAndCriticality fills TotalFloat, FreeFloat, and IsCritical on
// every result once forward and backward passes are complete.
func (e *Engine) computeFloatAndCriticality(byID map[task.ID]task.Task, g *depgraph.Graph, projectFinish time.Time, results map[task.ID]Result) {
	for id, r := range results {
		r.TotalFloat = e.Calendar.WorkDaysBetween(r.Start, r.LateStart)
		r.FreeFloat = e.freeFloat(id, byID, g, projectFinish, results)
		r.IsCritical = r.TotalFloat <= 0
		results[id] = r
	}
}

// freeFloat is the minimum slack on the binding link from t to any
// successor, or the slack against project finish if t has none.
func (e *Engine) freeFloat(id task.ID, byID map[task.ID]task.Task, g *depgraph.Graph, projectFinish time.Time, results map[task.ID]Result) int {
	t := byID[id]
	r := results[id]

	succs := g.Successors[id]
	if len(succs) == 0 {
		return e.Calendar.WorkDaysBetween(r.End, projectFinish)
	}

	min := 0
	first := true
	for _, edge := range succs {
		succ := results[edge.ID]
		slack := e.slackOnLink(t, r, succ, edge)
		if first || slack < min {
			min = slack
			first = false
		}
	}
	return min
}

// slackOnLink computes the idle working days available on one successor
// link before it becomes binding, per link type.
func (e *Engine) slackOnLink(t task.Task, r Result, succ Result, edge depgraph.Edge) int {
	switch edge.Type {
	case task.FS:
		return e.Calendar.WorkDaysBetween(r.End, succ.Start) - 1 - edge.Lag
	case task.SS:
		return e.Calendar.WorkDaysBetween(r.Start, succ.Start) - edge.Lag
	case task.FF:
		return e.Calendar.WorkDaysBetween(r.End, succ.End) - edge.Lag
	case task.SF:
		return e.Calendar.WorkDaysBetween(r.Start, succ.End) - edge.Lag
	default:
		return e.Calendar.WorkDaysBetween(r.End, succ.Start) - 1 - edge.Lag
	}
}
