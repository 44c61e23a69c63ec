package cpm

import (
	"time"

	"github.com/buildwright/cpmschedule/internal/depgraph"
	"github.com/buildwright/cpmschedule/internal/task"
)

// forwardPass fills Start/End (and provisional ConstraintInfeasible /
// IsDriver / DriverPredID) for every task in g.Order, which is already
// predecessors-before-successors.
func (e *Engine) forwardPass(byID map[task.ID]task.Task, g *depgraph.Graph, projectStart time.Time, results map[task.ID]Result) error {
	for _, id := range g.Order {
		t := byID[id]
		var r Result

		if t.SchedulingMode == task.Manual {
			r.Start, r.End = t.Start, t.End
			results[id] = r
			continue
		}

		es, driverID, err := e.seedEarlyStart(t, g, byID, results, projectStart)
		if err != nil {
			return err
		}

		infeasible := false

		if t.HasActualStart() {
			es = t.ActualStart
			driverID = ""
		} else {
			switch t.ConstraintType {
			case task.SNET:
				if t.ConstraintDate.After(es) {
					es = t.ConstraintDate
				}
			case task.MSO:
				if es.After(t.ConstraintDate) {
					infeasible = true
				}
				es = t.ConstraintDate
				driverID = ""
			case task.SNLT:
				if es.After(t.ConstraintDate) {
					infeasible = true
				}
			}
		}

		es, err = e.Calendar.NextWorkingDay(es)
		if err != nil {
			return err
		}

		ef, err := e.computeFinish(es, t.Duration)
		if err != nil {
			return err
		}

		if t.HasActualFinish() {
			ef = t.ActualFinish
		} else {
			switch t.ConstraintType {
			case task.FNET:
				if t.ConstraintDate.After(ef) {
					ef = t.ConstraintDate
					es, err = e.computeStart(ef, t.Duration)
					if err != nil {
						return err
					}
				}
			case task.MFO:
				if ef.After(t.ConstraintDate) {
					infeasible = true
				}
				ef = t.ConstraintDate
				es, err = e.computeStart(ef, t.Duration)
				if err != nil {
					return err
				}
			case task.FNLT:
				if ef.After(t.ConstraintDate) {
					infeasible = true
				}
			}
		}

		r.Start = es
		r.End = ef
		r.IsDriver = driverID != ""
		r.DriverPredID = driverID
		r.ConstraintInfeasible = infeasible
		results[id] = r
	}
	return nil
}

// computeFinish derives EF from ES and duration: milestones (duration 0)
// finish the day they start.
func (e *Engine) computeFinish(es time.Time, duration int) (time.Time, error) {
	if duration == 0 {
		return es, nil
	}
	return e.Calendar.AddWorkDays(es, duration-1)
}

// computeStart derives ES from EF and duration, the inverse of
// computeFinish, used when a finish constraint pins EF and ES must be
// re-derived.
func (e *Engine) computeStart(ef time.Time, duration int) (time.Time, error) {
	if duration == 0 {
		return ef, nil
	}
	return e.Calendar.SubWorkDays(ef, duration-1)
}

// seedEarlyStart computes the candidate ES for t from its predecessors,
// returning the binding (latest) candidate and the ID of the predecessor
// that produced it. Ties are broken by lowest sortKey. A task with no
// predecessors seeds from projectStart with no driver.
func (e *Engine) seedEarlyStart(t task.Task, g *depgraph.Graph, byID map[task.ID]task.Task, results map[task.ID]Result, projectStart time.Time) (time.Time, task.ID, error) {
	preds := g.Predecessors[t.ID]
	if len(preds) == 0 {
		return projectStart, "", nil
	}

	var best time.Time
	var bestPred task.ID
	for _, edge := range preds {
		predTask := byID[edge.ID]
		predResult := results[edge.ID]

		cand, err := e.candidateEarlyStart(t, predTask, predResult, edge)
		if err != nil {
			return time.Time{}, "", err
		}

		if bestPred == "" || cand.After(best) ||
			(cand.Equal(best) && predTask.SortKey < byID[bestPred].SortKey) {
			best = cand
			bestPred = edge.ID
		}
	}
	return best, bestPred, nil
}

// candidateEarlyStart computes the ES candidate that predTask's link to t
// implies, per the link type's forward-pass rule.
func (e *Engine) candidateEarlyStart(t, predTask task.Task, pred Result, edge depgraph.Edge) (time.Time, error) {
	switch edge.Type {
	case task.FS:
		return e.Calendar.AddWorkDays(pred.End, 1+edge.Lag)
	case task.SS:
		return e.Calendar.AddWorkDays(pred.Start, edge.Lag)
	case task.FF:
		end, err := e.Calendar.AddWorkDays(pred.End, edge.Lag)
		if err != nil {
			return time.Time{}, err
		}
		return e.computeStart(end, t.Duration)
	case task.SF:
		end, err := e.Calendar.AddWorkDays(pred.Start, edge.Lag)
		if err != nil {
			return time.Time{}, err
		}
		return e.computeStart(end, t.Duration)
	default:
		return e.Calendar.AddWorkDays(pred.End, 1+edge.Lag)
	}
}
