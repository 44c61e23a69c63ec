// Package eventlog implements the append-only event log that persisted
// state is built from: every incremental mutation the controller applies is
// recorded as an Event (a SyncTasks bulk replace is not), and Replay reconstructs task state from the recorded sequence
// without the CPM engine depending on this package at all (the controller
// appends events as a side effect, the same way the teacher's
// ConfigManager emits reload events as a side channel).
package eventlog

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/buildwright/cpmschedule/internal/task"
)

// Kind identifies the operation an Event recorded.
type Kind string

const (
	TaskAdded           Kind = "TASK_ADDED"
	TaskUpdated         Kind = "TASK_UPDATED"
	TaskDeleted         Kind = "TASK_DELETED"
	TaskMoved           Kind = "TASK_MOVED"
	CalendarUpdated     Kind = "CALENDAR_UPDATED"
	BaselineSet         Kind = "BASELINE_SET"
	BaselineCleared     Kind = "BASELINE_CLEARED"
	TradePartnerCreated Kind = "TRADE_PARTNER_CREATED"
)

// Event is one append-only log record.
type Event struct {
	Kind      Kind            `json:"kind"`
	EntityID  task.ID         `json:"entityId"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Log is an in-memory, append-only sequence of Events. It does not itself
// own durability (a caller streams Events to disk); it exists to give the
// controller a single place to append and later dump the full sequence.
type Log struct {
	mu     sync.Mutex
	events []Event
}

// New returns an empty Log.
func New() *Log {
	return &Log{}
}

// Append records e.
func (l *Log) Append(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

// All returns every recorded Event in append order.
func (l *Log) All() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

func marshalPayload(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		// Every payload type here is a plain struct of exported fields;
		// a marshal failure would mean a programming error, not bad input.
		panic(fmt.Sprintf("eventlog: marshal payload: %v", err))
	}
	return b
}

// TaskAddedPayload carries the full task as inserted.
type TaskAddedPayload struct {
	Task task.Task `json:"task"`
}

// TaskUpdatedPayload carries the patch applied to an existing task.
type TaskUpdatedPayload struct {
	Patch task.Patch `json:"patch"`
}

// TaskMovedPayload carries a reparent/reorder's new position.
type TaskMovedPayload struct {
	NewParentID task.ID `json:"newParentId"`
	NewSortKey  string  `json:"newSortKey"`
}

// CalendarExceptionPayload is one calendar date exception.
type CalendarExceptionPayload struct {
	Date    string `json:"date"`
	Working bool   `json:"working"`
	Name    string `json:"name,omitempty"`
}

// CalendarUpdatedPayload carries a full calendar replacement.
type CalendarUpdatedPayload struct {
	WorkingDays []string                   `json:"workingDays"`
	Exceptions  []CalendarExceptionPayload `json:"exceptions,omitempty"`
}

// BaselinePayload carries the baseline snapshot taken for a task.
type BaselinePayload struct {
	Start    time.Time `json:"start"`
	Finish   time.Time `json:"finish"`
	Duration int       `json:"duration"`
}

// TradePartnerCreatedPayload records the first sighting of a trade partner
// id referenced from a task's TradePartnerIDs list.
type TradePartnerCreatedPayload struct {
	PartnerID string `json:"partnerId"`
}

// NewTaskAddedEvent builds a TASK_ADDED Event.
func NewTaskAddedEvent(t task.Task) Event {
	return Event{Kind: TaskAdded, EntityID: t.ID, Payload: marshalPayload(TaskAddedPayload{Task: t}), Timestamp: time.Now()}
}

// NewTaskUpdatedEvent builds a TASK_UPDATED Event.
func NewTaskUpdatedEvent(id task.ID, patch task.Patch) Event {
	return Event{Kind: TaskUpdated, EntityID: id, Payload: marshalPayload(TaskUpdatedPayload{Patch: patch}), Timestamp: time.Now()}
}

// NewTaskDeletedEvent builds a TASK_DELETED Event.
func NewTaskDeletedEvent(id task.ID) Event {
	return Event{Kind: TaskDeleted, EntityID: id, Timestamp: time.Now()}
}

// NewTaskMovedEvent builds a TASK_MOVED Event.
func NewTaskMovedEvent(id task.ID, newParentID task.ID, newSortKey string) Event {
	payload := TaskMovedPayload{NewParentID: newParentID, NewSortKey: newSortKey}
	return Event{Kind: TaskMoved, EntityID: id, Payload: marshalPayload(payload), Timestamp: time.Now()}
}

// NewCalendarUpdatedEvent builds a CALENDAR_UPDATED Event.
func NewCalendarUpdatedEvent(payload CalendarUpdatedPayload) Event {
	return Event{Kind: CalendarUpdated, Payload: marshalPayload(payload), Timestamp: time.Now()}
}

// NewBaselineSetEvent builds a BASELINE_SET Event.
func NewBaselineSetEvent(id task.ID, start, finish time.Time, duration int) Event {
	payload := BaselinePayload{Start: start, Finish: finish, Duration: duration}
	return Event{Kind: BaselineSet, EntityID: id, Payload: marshalPayload(payload), Timestamp: time.Now()}
}

// NewBaselineClearedEvent builds a BASELINE_CLEARED Event.
func NewBaselineClearedEvent(id task.ID) Event {
	return Event{Kind: BaselineCleared, EntityID: id, Timestamp: time.Now()}
}

// NewTradePartnerCreatedEvent builds a TRADE_PARTNER_CREATED Event.
func NewTradePartnerCreatedEvent(partnerID string) Event {
	payload := TradePartnerCreatedPayload{PartnerID: partnerID}
	return Event{Kind: TradePartnerCreated, EntityID: partnerID, Payload: marshalPayload(payload), Timestamp: time.Now()}
}
