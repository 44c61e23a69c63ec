package cpm

import (
	"time"

	"github.com/buildwright/cpmschedule/internal/depgraph"
	"github.com/buildwright/cpmschedule/internal/task"
)

// backwardPass fills LateStart/LateEnd for every task, processing g.Order
// in reverse (successors before predecessors).
func (e *Engine) backwardPass(byID map[task.ID]task.Task, g *depgraph.Graph, projectFinish time.Time, results map[task.ID]Result) error {
	for i := len(g.Order) - 1; i >= 0; i-- {
		id := g.Order[i]
		t := byID[id]
		r := results[id]

		lf, err := e.seedLateFinish(t, g, byID, results, projectFinish)
		if err != nil {
			return err
		}

		switch t.ConstraintType {
		case task.FNLT:
			if t.ConstraintDate.Before(lf) {
				lf = t.ConstraintDate
			}
		case task.MFO:
			lf = t.ConstraintDate
		}

		ls, err := e.computeStart(lf, t.Duration)
		if err != nil {
			return err
		}

		switch t.ConstraintType {
		case task.SNLT:
			if t.ConstraintDate.Before(ls) {
				ls = t.ConstraintDate
				lf, err = e.computeFinish(ls, t.Duration)
				if err != nil {
					return err
				}
			}
		case task.MSO:
			ls = t.ConstraintDate
			lf, err = e.computeFinish(ls, t.Duration)
			if err != nil {
				return err
			}
		}

		r.LateStart = ls
		r.LateEnd = lf
		results[id] = r
	}
	return nil
}

// seedLateFinish computes the candidate LF for t from its successors,
// taking the earliest (most constraining) candidate. A task with no
// successors seeds from projectFinish.
func (e *Engine) seedLateFinish(t task.Task, g *depgraph.Graph, byID map[task.ID]task.Task, results map[task.ID]Result, projectFinish time.Time) (time.Time, error) {
	succs := g.Successors[t.ID]
	if len(succs) == 0 {
		return projectFinish, nil
	}

	var best time.Time
	first := true
	for _, edge := range succs {
		succTask := byID[edge.ID]
		succResult := results[edge.ID]

		cand, err := e.candidateLateFinish(t, succTask, succResult, edge)
		if err != nil {
			return time.Time{}, err
		}
		if first || cand.Before(best) {
			best = cand
			first = false
		}
	}
	return best, nil
}

// candidateLateFinish computes the LF bound on t implied by its link to a
// successor, per the link type's backward-pass rule (the inverse of the
// forward-pass rule for the same link type).
func (e *Engine) candidateLateFinish(t, succTask task.Task, succ Result, edge depgraph.Edge) (time.Time, error) {
	switch edge.Type {
	case task.FS:
		// FS binds t's finish directly to succ's start: the candidate LF
		// is subWorkDays(succ.LateStart, 1+lag) itself, not a start to
		// recompute a finish from.
		return e.Calendar.SubWorkDays(succ.LateStart, 1+edge.Lag)
	case task.SS:
		ls, err := e.Calendar.SubWorkDays(succ.LateStart, edge.Lag)
		if err != nil {
			return time.Time{}, err
		}
		return e.computeFinish(ls, t.Duration)
	case task.FF:
		return e.Calendar.SubWorkDays(succ.LateEnd, edge.Lag)
	case task.SF:
		ls, err := e.Calendar.SubWorkDays(succ.LateEnd, edge.Lag)
		if err != nil {
			return time.Time{}, err
		}
		return e.computeFinish(ls, t.Duration)
	default:
		return e.Calendar.SubWorkDays(succ.LateStart, 1+edge.Lag)
	}
}
