package interchange

import (
	"encoding/xml"
	"fmt"
	"time"

	"github.com/buildwright/cpmschedule/internal/calendar"
	"github.com/buildwright/cpmschedule/internal/schederr"
	"github.com/buildwright/cpmschedule/internal/task"
)

// xmlProject is a minimal subset of the MS Project XML (MSPDI) schema:
// enough to carry id, name, dates, duration, predecessor links,
// constraints, percent complete, and the project's working-day calendar.
// Unsupported MSPDI fields (resources, assignments, custom fields, ...) are
// silently ignored on import and never written on export.
type xmlProject struct {
	XMLName  xml.Name         `xml:"Project"`
	Calendar xmlCalendarBlock `xml:"Calendars>Calendar"`
	Tasks    []xmlTask        `xml:"Tasks>Task"`
}

type xmlCalendarBlock struct {
	WorkingDays []string `xml:"WorkingDays>WorkingDay"`
}

type xmlPredecessorLink struct {
	PredecessorUID string `xml:"PredecessorUID"`
	Type           string `xml:"Type"`
	LinkLag        int    `xml:"LinkLag"`
}

type xmlTask struct {
	UID             string               `xml:"UID"`
	Name            string               `xml:"Name"`
	ParentUID       string               `xml:"ParentUID,omitempty"`
	DisplayOrder    *int                 `xml:"DisplayOrder,omitempty"`
	Milestone       bool                 `xml:"Milestone,omitempty"`
	Summary         bool                 `xml:"Summary,omitempty"`
	Start           string               `xml:"Start,omitempty"`
	Finish          string               `xml:"Finish,omitempty"`
	Duration        int                  `xml:"Duration"`
	PercentComplete int                  `xml:"PercentComplete,omitempty"`
	ConstraintType  string               `xml:"ConstraintType,omitempty"`
	ConstraintDate  string               `xml:"ConstraintDate,omitempty"`
	PredecessorLink []xmlPredecessorLink `xml:"PredecessorLink,omitempty"`
}

func toXMLCalendar(cal *calendar.Calendar) xmlCalendarBlock {
	block := xmlCalendarBlock{}
	if cal == nil {
		return block
	}
	for _, wd := range weekdayOrder {
		if cal.WorkingDays[wd] {
			block.WorkingDays = append(block.WorkingDays, weekdayWireName[wd])
		}
	}
	return block
}

func fromXMLCalendar(block xmlCalendarBlock) (*calendar.Calendar, error) {
	if len(block.WorkingDays) == 0 {
		return calendar.NewStandard(), nil
	}
	days, err := namedWeekdays(block.WorkingDays)
	if err != nil {
		return nil, err
	}
	return calendar.New(days)
}

func toXMLTask(t task.Task, rowIndex int) xmlTask {
	xt := xmlTask{
		UID:             t.ID,
		Name:            t.Name,
		ParentUID:       t.ParentID,
		Milestone:       t.IsMilestone(),
		Summary:         t.IsParent(),
		Start:           formatDate(t.Start),
		Finish:          formatDate(t.End),
		Duration:        t.Duration,
		PercentComplete: t.Progress,
		ConstraintType:  string(t.ConstraintType),
		ConstraintDate:  formatDate(t.ConstraintDate),
	}
	order := rowIndex
	xt.DisplayOrder = &order
	for _, d := range t.Dependencies {
		xt.PredecessorLink = append(xt.PredecessorLink, xmlPredecessorLink{
			PredecessorUID: d.PredID,
			Type:           string(d.Type),
			LinkLag:        d.Lag,
		})
	}
	return xt
}

func fromXMLTask(xt xmlTask) (task.Task, error) {
	rowType := task.RowTypeTask
	if xt.Summary {
		rowType = task.RowTypeSummary
	}
	t := task.Task{
		ID:             xt.UID,
		RowType:        rowType,
		Name:           xt.Name,
		ParentID:       xt.ParentUID,
		Duration:       xt.Duration,
		Progress:       xt.PercentComplete,
		ConstraintType: task.ConstraintType(xt.ConstraintType),
		SchedulingMode: task.Auto,
	}
	if t.ConstraintType == "" {
		t.ConstraintType = task.ASAP
	}

	var err error
	if t.Start, err = parseDate(xt.Start); err != nil {
		return task.Task{}, fmt.Errorf("task %s: start: %w", xt.UID, err)
	}
	if t.End, err = parseDate(xt.Finish); err != nil {
		return task.Task{}, fmt.Errorf("task %s: finish: %w", xt.UID, err)
	}
	if t.ConstraintDate, err = parseDate(xt.ConstraintDate); err != nil {
		return task.Task{}, fmt.Errorf("task %s: constraintDate: %w", xt.UID, err)
	}

	for _, link := range xt.PredecessorLink {
		t.Dependencies = append(t.Dependencies, task.Dependency{
			PredID: link.PredecessorUID,
			Type:   task.DependencyType(link.Type),
			Lag:    link.LinkLag,
		})
	}
	return t, nil
}

func namedWeekdays(names []string) (map[time.Weekday]bool, error) {
	wireWeekday := make(map[string]time.Weekday, len(weekdayWireName))
	for wd, name := range weekdayWireName {
		wireWeekday[name] = wd
	}
	days := make(map[time.Weekday]bool, len(names))
	for _, name := range names {
		wd, ok := wireWeekday[name]
		if !ok {
			return nil, fmt.Errorf("unrecognized working day %q", name)
		}
		days[wd] = true
	}
	return days, nil
}

// EncodeMSProjectXML renders tasks and cal as the MS Project XML subset.
// DisplayOrder is stamped from array position so re-import preserves order
// even for tasks lacking a SortKey.
func EncodeMSProjectXML(tasks []task.Task, cal *calendar.Calendar) ([]byte, error) {
	proj := xmlProject{Calendar: toXMLCalendar(cal)}
	for i, t := range tasks {
		proj.Tasks = append(proj.Tasks, toXMLTask(t, i))
	}
	out, err := xml.MarshalIndent(proj, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode msproject xml: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

// orderedTask pairs a decoded task with its MS Project DisplayOrder (or
// document position, when DisplayOrder is absent) for reordering on import.
type orderedTask struct {
	task  task.Task
	order int
}

// DecodeMSProjectXML parses an MS Project XML subset document, ordering
// tasks by DisplayOrder when every task carries one, else by document
// position, and regenerating sort keys from that order.
func DecodeMSProjectXML(data []byte) ([]task.Task, *calendar.Calendar, error) {
	var proj xmlProject
	if err := xml.Unmarshal(data, &proj); err != nil {
		return nil, nil, fmt.Errorf("parse msproject xml: %w", err)
	}

	cal, err := fromXMLCalendar(proj.Calendar)
	if err != nil {
		return nil, nil, err
	}

	agg := schederr.NewAggregator()
	rows := make([]orderedTask, 0, len(proj.Tasks))
	haveAllDisplayOrder := true
	for i, xt := range proj.Tasks {
		t, err := fromXMLTask(xt)
		if err != nil {
			agg.AddError(err)
			continue
		}
		order := i
		if xt.DisplayOrder != nil {
			order = *xt.DisplayOrder
		} else {
			haveAllDisplayOrder = false
		}
		rows = append(rows, orderedTask{task: t, order: order})
	}
	if agg.HasErrors() {
		return nil, nil, agg
	}
	if haveAllDisplayOrder {
		stableSortByOrder(rows)
	}

	tasks := make([]task.Task, len(rows))
	for i, r := range rows {
		tasks[i] = r.task
	}
	assignMissingSortKeys(tasks)
	return tasks, cal, nil
}

func stableSortByOrder(rows []orderedTask) {
	for i := 1; i < len(rows); i++ {
		for j := i; j > 0 && rows[j].order < rows[j-1].order; j-- {
			rows[j], rows[j-1] = rows[j-1], rows[j]
		}
	}
}
