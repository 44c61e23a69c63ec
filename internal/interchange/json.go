// Package interchange converts between the engine's Task/Calendar model and
// two wire formats: a native JSON document and an MS Project XML subset.
// Both round-trip tasks and calendars without requiring derived CPM fields
// on the wire (spec invariant R1): import always regenerates them.
package interchange

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/buildwright/cpmschedule/internal/calendar"
	"github.com/buildwright/cpmschedule/internal/schederr"
	"github.com/buildwright/cpmschedule/internal/sortkey"
	"github.com/buildwright/cpmschedule/internal/task"
)

const dateLayout = "2006-01-02"

// jsonDependency is the wire shape of a task.Dependency.
type jsonDependency struct {
	PredID task.ID             `json:"predId"`
	Type   task.DependencyType `json:"type"`
	Lag    int                 `json:"lag,omitempty"`
}

// jsonTask is the wire shape of a task.Task. Derived fields (IsCritical,
// TotalFloat, LateStart, ...) are intentionally absent: they are recomputed
// by the CPM engine after import, never trusted from the wire.
type jsonTask struct {
	ID       task.ID      `json:"id"`
	RowType  task.RowType `json:"rowType"`
	Name     string       `json:"name"`
	ParentID task.ID      `json:"parentId,omitempty"`
	SortKey  string       `json:"sortKey,omitempty"`

	Duration int    `json:"duration"`
	Start    string `json:"start,omitempty"`
	End      string `json:"end,omitempty"`

	Dependencies   []jsonDependency    `json:"dependencies,omitempty"`
	ConstraintType task.ConstraintType `json:"constraintType,omitempty"`
	ConstraintDate string              `json:"constraintDate,omitempty"`

	SchedulingMode task.SchedulingMode `json:"schedulingMode,omitempty"`

	ActualStart  string `json:"actualStart,omitempty"`
	ActualFinish string `json:"actualFinish,omitempty"`
	Progress     int    `json:"progress,omitempty"`

	BaselineStart    string `json:"baselineStart,omitempty"`
	BaselineFinish   string `json:"baselineFinish,omitempty"`
	BaselineDuration int    `json:"baselineDuration,omitempty"`

	TradePartnerIDs []string `json:"tradePartnerIds,omitempty"`
	Collapsed       bool     `json:"collapsed,omitempty"`
}

type jsonException struct {
	Date    string `json:"date"`
	Working bool   `json:"working"`
	Name    string `json:"name,omitempty"`
}

type jsonCalendar struct {
	WorkingDays []string        `json:"workingDays"`
	Exceptions  []jsonException `json:"exceptions,omitempty"`
}

// jsonDocument is the top-level native JSON wire shape: {tasks, calendar}.
type jsonDocument struct {
	Tasks    []jsonTask    `json:"tasks"`
	Calendar *jsonCalendar `json:"calendar,omitempty"`
}

func formatDate(d time.Time) string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, s)
}

var weekdayOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

var weekdayWireName = map[time.Weekday]string{
	time.Sunday:    "sunday",
	time.Monday:    "monday",
	time.Tuesday:   "tuesday",
	time.Wednesday: "wednesday",
	time.Thursday:  "thursday",
	time.Friday:    "friday",
	time.Saturday:  "saturday",
}

func toJSONCalendar(cal *calendar.Calendar) *jsonCalendar {
	if cal == nil {
		return nil
	}
	jc := &jsonCalendar{}
	for _, wd := range weekdayOrder {
		if cal.WorkingDays[wd] {
			jc.WorkingDays = append(jc.WorkingDays, weekdayWireName[wd])
		}
	}
	for key, ex := range cal.Exceptions {
		jc.Exceptions = append(jc.Exceptions, jsonException{Date: key, Working: ex.Working, Name: ex.Name})
	}
	return jc
}

func fromJSONCalendar(jc *jsonCalendar) (*calendar.Calendar, error) {
	if jc == nil {
		return calendar.NewStandard(), nil
	}
	days := make(map[time.Weekday]bool, len(jc.WorkingDays))
	wireWeekday := make(map[string]time.Weekday, len(weekdayWireName))
	for wd, name := range weekdayWireName {
		wireWeekday[name] = wd
	}
	for _, name := range jc.WorkingDays {
		wd, ok := wireWeekday[name]
		if !ok {
			return nil, fmt.Errorf("unrecognized working day %q", name)
		}
		days[wd] = true
	}
	cal, err := calendar.New(days)
	if err != nil {
		return nil, err
	}
	for _, ex := range jc.Exceptions {
		d, err := parseDate(ex.Date)
		if err != nil {
			return nil, fmt.Errorf("exception date %q: %w", ex.Date, err)
		}
		cal.AddException(d, ex.Working, ex.Name)
	}
	return cal, nil
}

func toJSONTask(t task.Task) jsonTask {
	jt := jsonTask{
		ID:               t.ID,
		RowType:          t.RowType,
		Name:             t.Name,
		ParentID:         t.ParentID,
		SortKey:          t.SortKey,
		Duration:         t.Duration,
		Start:            formatDate(t.Start),
		End:              formatDate(t.End),
		ConstraintType:   t.ConstraintType,
		ConstraintDate:   formatDate(t.ConstraintDate),
		SchedulingMode:   t.SchedulingMode,
		ActualStart:      formatDate(t.ActualStart),
		ActualFinish:     formatDate(t.ActualFinish),
		Progress:         t.Progress,
		BaselineStart:    formatDate(t.BaselineStart),
		BaselineFinish:   formatDate(t.BaselineFinish),
		BaselineDuration: t.BaselineDuration,
		TradePartnerIDs:  t.TradePartnerIDs,
		Collapsed:        t.Collapsed,
	}
	for _, d := range t.Dependencies {
		jt.Dependencies = append(jt.Dependencies, jsonDependency{PredID: d.PredID, Type: d.Type, Lag: d.Lag})
	}
	return jt
}

func fromJSONTask(jt jsonTask, index int) (task.Task, error) {
	t := task.Task{
		ID:               jt.ID,
		RowType:          jt.RowType,
		Name:             jt.Name,
		ParentID:         jt.ParentID,
		SortKey:          jt.SortKey,
		Duration:         jt.Duration,
		ConstraintType:   jt.ConstraintType,
		SchedulingMode:   jt.SchedulingMode,
		Progress:         jt.Progress,
		BaselineDuration: jt.BaselineDuration,
		TradePartnerIDs:  jt.TradePartnerIDs,
		Collapsed:        jt.Collapsed,
	}
	if t.RowType == "" {
		t.RowType = task.RowTypeTask
	}
	if t.SchedulingMode == "" {
		t.SchedulingMode = task.Auto
	}

	var err error
	if t.Start, err = parseDate(jt.Start); err != nil {
		return task.Task{}, fmt.Errorf("task %s: start: %w", jt.ID, err)
	}
	if t.End, err = parseDate(jt.End); err != nil {
		return task.Task{}, fmt.Errorf("task %s: end: %w", jt.ID, err)
	}
	if t.ConstraintDate, err = parseDate(jt.ConstraintDate); err != nil {
		return task.Task{}, fmt.Errorf("task %s: constraintDate: %w", jt.ID, err)
	}
	if t.ActualStart, err = parseDate(jt.ActualStart); err != nil {
		return task.Task{}, fmt.Errorf("task %s: actualStart: %w", jt.ID, err)
	}
	if t.ActualFinish, err = parseDate(jt.ActualFinish); err != nil {
		return task.Task{}, fmt.Errorf("task %s: actualFinish: %w", jt.ID, err)
	}
	if t.BaselineStart, err = parseDate(jt.BaselineStart); err != nil {
		return task.Task{}, fmt.Errorf("task %s: baselineStart: %w", jt.ID, err)
	}
	if t.BaselineFinish, err = parseDate(jt.BaselineFinish); err != nil {
		return task.Task{}, fmt.Errorf("task %s: baselineFinish: %w", jt.ID, err)
	}

	for _, d := range jt.Dependencies {
		t.Dependencies = append(t.Dependencies, task.Dependency{PredID: d.PredID, Type: d.Type, Lag: d.Lag})
	}
	return t, nil
}

// EncodeJSON renders tasks and cal as the native JSON document. Derived
// fields are omitted: a reader must recompute them via the CPM engine.
func EncodeJSON(tasks []task.Task, cal *calendar.Calendar) ([]byte, error) {
	doc := jsonDocument{Calendar: toJSONCalendar(cal)}
	for _, t := range tasks {
		doc.Tasks = append(doc.Tasks, toJSONTask(t))
	}
	return json.MarshalIndent(doc, "", "  ")
}

// DecodeJSON parses a native JSON document back into tasks and a calendar,
// regenerating any missing sort keys by array position.
func DecodeJSON(data []byte) ([]task.Task, *calendar.Calendar, error) {
	var doc jsonDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("parse json document: %w", err)
	}

	cal, err := fromJSONCalendar(doc.Calendar)
	if err != nil {
		return nil, nil, err
	}

	agg := schederr.NewAggregator()
	tasks := make([]task.Task, 0, len(doc.Tasks))
	for i, jt := range doc.Tasks {
		t, err := fromJSONTask(jt, i)
		if err != nil {
			agg.AddError(err)
			continue
		}
		tasks = append(tasks, t)
	}
	if agg.HasErrors() {
		return nil, nil, agg
	}
	assignMissingSortKeys(tasks)
	return tasks, cal, nil
}

// assignMissingSortKeys gives every task lacking a SortKey one derived from
// its position among siblings sharing its ParentID, preserving import order.
func assignMissingSortKeys(tasks []task.Task) {
	last := make(map[task.ID]string)
	for i := range tasks {
		if tasks[i].SortKey != "" {
			last[tasks[i].ParentID] = tasks[i].SortKey
			continue
		}
		prev := last[tasks[i].ParentID]
		key := sortkey.Between(prev, "")
		tasks[i].SortKey = key
		last[tasks[i].ParentID] = key
	}
}
