package rollup

import (
	"testing"
	"time"

	"github.com/buildwright/cpmschedule/internal/calendar"
	"github.com/buildwright/cpmschedule/internal/cpm"
	"github.com/buildwright/cpmschedule/internal/task"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestApplyRollsUpStartEndAndCriticality(t *testing.T) {
	tasks := []task.Task{
		{ID: "p", RowType: task.RowTypeSummary, SortKey: "a"},
		{ID: "a", RowType: task.RowTypeTask, SortKey: "a", ParentID: "p"},
		{ID: "b", RowType: task.RowTypeTask, SortKey: "b", ParentID: "p"},
	}
	results := map[task.ID]cpm.Result{
		"a": {Start: date(2024, 1, 1), End: date(2024, 1, 3), IsCritical: false},
		"b": {Start: date(2024, 1, 2), End: date(2024, 1, 10), IsCritical: true},
	}
	cal := calendar.NewStandard()

	out := Apply(tasks, results, cal)

	var parent task.Task
	for _, t := range out {
		if t.ID == "p" {
			parent = t
		}
	}
	if !parent.Start.Equal(date(2024, 1, 1)) {
		t.Errorf("expected parent start = earliest child start, got %s", parent.Start)
	}
	if !parent.End.Equal(date(2024, 1, 10)) {
		t.Errorf("expected parent end = latest child end, got %s", parent.End)
	}
	if !parent.IsCritical {
		t.Error("expected parent critical since a critical child exists")
	}
}

func TestApplyHandlesNestedSummaries(t *testing.T) {
	tasks := []task.Task{
		{ID: "grandparent", RowType: task.RowTypeSummary, SortKey: "a"},
		{ID: "parent", RowType: task.RowTypeSummary, SortKey: "a", ParentID: "grandparent"},
		{ID: "leaf", RowType: task.RowTypeTask, SortKey: "a", ParentID: "parent"},
	}
	results := map[task.ID]cpm.Result{
		"leaf": {Start: date(2024, 2, 1), End: date(2024, 2, 5), IsCritical: true},
	}
	cal := calendar.NewStandard()

	out := Apply(tasks, results, cal)

	byID := make(map[string]task.Task)
	for _, t := range out {
		byID[t.ID] = t
	}
	if !byID["parent"].Start.Equal(date(2024, 2, 1)) {
		t.Errorf("expected parent rolled up from leaf, got %s", byID["parent"].Start)
	}
	if !byID["grandparent"].End.Equal(date(2024, 2, 5)) {
		t.Errorf("expected grandparent rolled up transitively, got %s", byID["grandparent"].End)
	}
	if !byID["grandparent"].IsCritical {
		t.Error("expected criticality to propagate transitively")
	}
}

func TestApplySkipsBlankRows(t *testing.T) {
	tasks := []task.Task{
		{ID: "p", RowType: task.RowTypeSummary, SortKey: "a"},
		{ID: "blank", RowType: task.RowTypeBlank, SortKey: "a", ParentID: "p"},
		{ID: "leaf", RowType: task.RowTypeTask, SortKey: "b", ParentID: "p"},
	}
	results := map[task.ID]cpm.Result{
		"leaf": {Start: date(2024, 3, 1), End: date(2024, 3, 2)},
	}
	cal := calendar.NewStandard()

	out := Apply(tasks, results, cal)
	for _, tk := range out {
		if tk.ID == "p" && !tk.Start.Equal(date(2024, 3, 1)) {
			t.Errorf("expected blank row ignored in rollup, got parent start %s", tk.Start)
		}
	}
}
