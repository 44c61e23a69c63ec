// Package rollup summarizes parent (summary) rows from their children's
// post-CPM schedule, in post-order so a grandparent sees its children's
// already-rolled-up dates.
package rollup

import (
	"time"

	"github.com/buildwright/cpmschedule/internal/calendar"
	"github.com/buildwright/cpmschedule/internal/cpm"
	"github.com/buildwright/cpmschedule/internal/task"
)

// Apply walks the parent forest in post-order and fills Start, End,
// Duration, and IsCritical on every summary row in tasks, using leafResults
// for non-parent descendants and the rolled-up values it computes along the
// way for parent descendants. It returns the updated task list; a summary
// row with no dated non-blank child keeps the Start, End, Duration and
// IsCritical values it came in with.
func Apply(tasks []task.Task, leafResults map[task.ID]cpm.Result, cal *calendar.Calendar) []task.Task {
	byID := make(map[task.ID]*task.Task, len(tasks))
	children := make(map[task.ID][]task.ID)
	var roots []task.ID

	out := make([]task.Task, len(tasks))
	copy(out, tasks)
	for i := range out {
		byID[out[i].ID] = &out[i]
		if out[i].ParentID != "" {
			children[out[i].ParentID] = append(children[out[i].ParentID], out[i].ID)
		} else {
			roots = append(roots, out[i].ID)
		}
	}

	for _, id := range roots {
		rollupNode(id, byID, children, leafResults, cal)
	}

	return out
}

// rollupNode recurses into id's children (if any), then — if id is a
// summary row — aggregates their rolled-up start/end/criticality into id.
func rollupNode(id task.ID, byID map[task.ID]*task.Task, children map[task.ID][]task.ID, leafResults map[task.ID]cpm.Result, cal *calendar.Calendar) {
	t := byID[id]
	if t == nil {
		return
	}

	kids := children[id]
	for _, childID := range kids {
		rollupNode(childID, byID, children, leafResults, cal)
	}

	if !t.IsParent() {
		if r, ok := leafResults[id]; ok {
			t.Start = r.Start
			t.End = r.End
			t.IsCritical = r.IsCritical
			t.TotalFloat = r.TotalFloat
			t.FreeFloat = r.FreeFloat
			t.LateStart = r.LateStart
			t.LateEnd = r.LateEnd
			t.IsDriver = r.IsDriver
			t.DriverPredID = r.DriverPredID
			t.ConstraintInfeasible = r.ConstraintInfeasible
		}
		return
	}

	var start, end time.Time
	critical := false
	haveAny := false
	for _, childID := range kids {
		child := byID[childID]
		if child == nil || child.IsBlank() {
			continue
		}
		if child.Start.IsZero() && child.End.IsZero() {
			continue
		}
		haveAny = true
		if start.IsZero() || child.Start.Before(start) {
			start = child.Start
		}
		if end.IsZero() || child.End.After(end) {
			end = child.End
		}
		if child.IsCritical {
			critical = true
		}
	}

	if !haveAny {
		return
	}

	t.Start = start
	t.End = end
	t.IsCritical = critical
	t.Duration = cal.WorkDaysBetween(start, end) + 1
}
