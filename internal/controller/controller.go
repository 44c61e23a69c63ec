// Package controller owns the task store, operation queue, calendar, and
// CPM engine, and publishes the post-recomputation snapshot to subscribers.
// It is the only component callers (the CLI, file importers, a future UI)
// talk to; every mutation goes through its OperationQueue so concurrent
// callers observe a consistent sequence of snapshots.
package controller

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/buildwright/cpmschedule/internal/calendar"
	"github.com/buildwright/cpmschedule/internal/cpm"
	"github.com/buildwright/cpmschedule/internal/depgraph"
	"github.com/buildwright/cpmschedule/internal/eventlog"
	"github.com/buildwright/cpmschedule/internal/logging"
	"github.com/buildwright/cpmschedule/internal/opqueue"
	"github.com/buildwright/cpmschedule/internal/rollup"
	"github.com/buildwright/cpmschedule/internal/schederr"
	"github.com/buildwright/cpmschedule/internal/task"
)

// RunBudget is the fixed budget a CPM run is expected to finish within; a
// run exceeding it is logged, not aborted, since the kernel never yields
// mid-pass and publishing torn state is worse than being slow.
const RunBudget = 5 * time.Second

// Controller orchestrates the store, queue, calendar, and engine, and
// publishes the post-CPM task snapshot and calendar to subscribers.
type Controller struct {
	mu       sync.Mutex
	store    *task.Store
	calendar *calendar.Calendar
	log      *logging.Logger
	events   *eventlog.Log

	tradePartnersSeen map[string]bool

	queue *opqueue.Queue

	userProjectStart *time.Time

	tasksSubs    []chan []task.Task
	calendarSubs []chan *calendar.Calendar
}

// New builds a Controller with an empty store and the given calendar.
func New(cal *calendar.Calendar, log *logging.Logger) *Controller {
	c := &Controller{
		store:             task.NewStore(),
		calendar:          cal,
		log:               log,
		events:            eventlog.New(),
		tradePartnersSeen: make(map[string]bool),
	}
	c.queue = opqueue.New(c.scheduleRecompute)
	return c
}

// Events returns every event the controller has recorded so far, in the
// order applied. Intended for persistence and for Replay-based recovery.
func (c *Controller) Events() []eventlog.Event {
	return c.events.All()
}

// recordTradePartners appends a TRADE_PARTNER_CREATED event for every
// partner id on t not previously seen.
func (c *Controller) recordTradePartners(t task.Task) {
	for _, id := range t.TradePartnerIDs {
		if !c.tradePartnersSeen[id] {
			c.tradePartnersSeen[id] = true
			c.events.Append(eventlog.NewTradePartnerCreatedEvent(id))
		}
	}
}

// scheduleRecompute runs one CPM pass and publishes the result. It is
// invoked by the queue after every operation; since the queue serializes
// operations and runs this synchronously after each, bursts of operations
// each trigger a run; runs are not coalesced or debounced. A failed run is
// logged and publishes nothing, so subscribers keep their last snapshot.
func (c *Controller) scheduleRecompute() {
	started := time.Now()
	snapshot := c.store.GetAll()

	g, err := depgraph.Build(snapshot)
	if err != nil {
		c.log.Error("dependency graph build failed", "error", err)
		return
	}

	byID := make(map[task.ID]task.Task, len(snapshot))
	for _, t := range snapshot {
		if !t.IsParent() && !t.IsBlank() {
			byID[t.ID] = t
		}
	}

	projectStart := cpm.DeriveProjectStart(snapshot, g, c.userProjectStart)
	engine := cpm.New(c.calendar)
	results, err := engine.Run(byID, g, projectStart)
	if err != nil {
		c.log.Error("cpm run failed", "error", err)
		return
	}

	rolled := rollup.Apply(snapshot, results, c.calendar)

	if elapsed := time.Since(started); elapsed > RunBudget {
		c.log.Warn("cpm run exceeded budget", "elapsed", elapsed, "budget", RunBudget)
	}

	c.publishTasks(rolled)
}

func (c *Controller) publishTasks(tasks []task.Task) {
	c.mu.Lock()
	subs := append([]chan []task.Task(nil), c.tasksSubs...)
	c.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- tasks:
		default: // slow subscriber drops the stale snapshot rather than blocking the queue
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- tasks:
			default:
			}
		}
	}
}

func (c *Controller) publishCalendar() {
	c.mu.Lock()
	subs := append([]chan *calendar.Calendar(nil), c.calendarSubs...)
	cal := c.calendar
	c.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- cal:
		default:
		}
	}
}

// Tasks returns a channel that receives the post-CPM snapshot after every
// recomputation. The channel is buffered by 1 and drops stale snapshots
// rather than blocking the controller.
func (c *Controller) Tasks() <-chan []task.Task {
	ch := make(chan []task.Task, 1)
	c.mu.Lock()
	c.tasksSubs = append(c.tasksSubs, ch)
	c.mu.Unlock()
	return ch
}

// Calendar returns a channel that receives the calendar after every change.
func (c *Controller) Calendar() <-chan *calendar.Calendar {
	ch := make(chan *calendar.Calendar, 1)
	c.mu.Lock()
	c.calendarSubs = append(c.calendarSubs, ch)
	c.mu.Unlock()
	return ch
}

// AddTask enqueues an insert and returns the inserted task.
func (c *Controller) AddTask(ctx context.Context, t task.Task) (task.Task, error) {
	if t.ID == "" {
		t.ID = task.ID(uuid.NewString())
	}
	v, err := c.queue.Enqueue(ctx, func() (any, error) {
		inserted, err := c.store.Insert(t)
		if err != nil {
			return nil, err
		}
		c.events.Append(eventlog.NewTaskAddedEvent(inserted))
		c.recordTradePartners(inserted)
		return inserted, nil
	})
	if err != nil {
		return task.Task{}, err
	}
	return v.(task.Task), nil
}

// UpdateTask enqueues a partial update.
func (c *Controller) UpdateTask(ctx context.Context, id task.ID, patch task.Patch) (task.Task, error) {
	v, err := c.queue.Enqueue(ctx, func() (any, error) {
		updated, err := c.store.Update(id, patch)
		if err != nil {
			return nil, err
		}
		c.events.Append(eventlog.NewTaskUpdatedEvent(id, patch))
		c.recordTradePartners(updated)
		return updated, nil
	})
	if err != nil {
		return task.Task{}, err
	}
	return v.(task.Task), nil
}

// DeleteTask enqueues a cascading remove.
func (c *Controller) DeleteTask(ctx context.Context, id task.ID) error {
	_, err := c.queue.Enqueue(ctx, func() (any, error) {
		if err := c.store.Remove(id); err != nil {
			return nil, err
		}
		c.events.Append(eventlog.NewTaskDeletedEvent(id))
		return nil, nil
	})
	return err
}

// MoveTask enqueues a reparent/reorder.
func (c *Controller) MoveTask(ctx context.Context, id task.ID, newParentID task.ID, newSortKey string) error {
	_, err := c.queue.Enqueue(ctx, func() (any, error) {
		if err := c.store.Move(id, newParentID, newSortKey); err != nil {
			return nil, err
		}
		c.events.Append(eventlog.NewTaskMovedEvent(id, newParentID, newSortKey))
		return nil, nil
	})
	return err
}

// SetBaseline enqueues recording a baseline snapshot for a task.
func (c *Controller) SetBaseline(ctx context.Context, id task.ID, start, finish time.Time, duration int) error {
	_, err := c.queue.Enqueue(ctx, func() (any, error) {
		patch := task.Patch{BaselineStart: &start, BaselineFinish: &finish, BaselineDuration: &duration}
		if _, err := c.store.Update(id, patch); err != nil {
			return nil, err
		}
		c.events.Append(eventlog.NewBaselineSetEvent(id, start, finish, duration))
		return nil, nil
	})
	return err
}

// ClearBaseline enqueues clearing a task's baseline snapshot.
func (c *Controller) ClearBaseline(ctx context.Context, id task.ID) error {
	_, err := c.queue.Enqueue(ctx, func() (any, error) {
		zero := time.Time{}
		zeroDuration := 0
		patch := task.Patch{BaselineStart: &zero, BaselineFinish: &zero, BaselineDuration: &zeroDuration}
		if _, err := c.store.Update(id, patch); err != nil {
			return nil, err
		}
		c.events.Append(eventlog.NewBaselineClearedEvent(id))
		return nil, nil
	})
	return err
}

// UpdateCalendar enqueues a calendar replacement and republishes it.
func (c *Controller) UpdateCalendar(ctx context.Context, cal *calendar.Calendar) error {
	_, err := c.queue.Enqueue(ctx, func() (any, error) {
		c.mu.Lock()
		c.calendar = cal
		c.mu.Unlock()
		c.events.Append(eventlog.NewCalendarUpdatedEvent(calendarEventPayload(cal)))
		c.publishCalendar()
		return nil, nil
	})
	return err
}

func calendarEventPayload(cal *calendar.Calendar) eventlog.CalendarUpdatedPayload {
	payload := eventlog.CalendarUpdatedPayload{}
	if cal == nil {
		return payload
	}
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if cal.WorkingDays[wd] {
			payload.WorkingDays = append(payload.WorkingDays, wd.String())
		}
	}
	for date, ex := range cal.Exceptions {
		payload.Exceptions = append(payload.Exceptions, eventlog.CalendarExceptionPayload{
			Date: date, Working: ex.Working, Name: ex.Name,
		})
	}
	return payload
}

// SyncTasks bulk-replaces the store's task list (used for file import).
// Imported rows may reference a parent or dependency declared later in the
// list, so the replacement happens in two passes: every task is inserted
// first with its dependencies stripped, in an order where each parent
// precedes its children (topoSortByParent places a task's parent chain
// depth-first before the task itself), then every task's real dependency
// list is applied once every task exists. A bulk import is not recorded task-by-task in the
// event log; it is a wholesale state replacement, not an incremental
// operation sequence Replay is meant to reconstruct.
func (c *Controller) SyncTasks(ctx context.Context, tasks []task.Task) error {
	_, err := c.queue.Enqueue(ctx, func() (any, error) {
		fresh := task.NewStore()

		byID := make(map[task.ID]task.Task, len(tasks))
		for _, t := range tasks {
			byID[t.ID] = t
		}

		ordered, err := topoSortByParent(tasks)
		if err != nil {
			return nil, err
		}

		for _, t := range ordered {
			seed := t
			seed.Dependencies = nil
			if _, err := fresh.Insert(seed); err != nil {
				return nil, err
			}
		}
		for _, t := range ordered {
			if len(t.Dependencies) == 0 {
				continue
			}
			deps := t.Dependencies
			if _, err := fresh.Update(t.ID, task.Patch{Dependencies: &deps}); err != nil {
				return nil, err
			}
		}

		c.store = fresh
		return nil, nil
	})
	return err
}

// topoSortByParent orders tasks so that every task's parent (if any)
// appears before it, failing with a ValidationError if the parent forest
// contains a cycle. A parent missing from tasks is not an error here; the
// store's parent check rejects it on insert.
func topoSortByParent(tasks []task.Task) ([]task.Task, error) {
	byID := make(map[task.ID]task.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	var ordered []task.Task
	placed := make(map[task.ID]bool, len(tasks))
	visiting := make(map[task.ID]bool, len(tasks))

	var place func(id task.ID) error
	place = func(id task.ID) error {
		if placed[id] {
			return nil
		}
		if visiting[id] {
			return schederr.NewValidationError(id, "parentId", "", "parent forest contains a cycle")
		}
		t, ok := byID[id]
		if !ok {
			return nil // parent outside this import batch; store validation will reject it
		}
		visiting[id] = true
		if t.ParentID != "" {
			if err := place(t.ParentID); err != nil {
				return err
			}
		}
		visiting[id] = false
		placed[id] = true
		ordered = append(ordered, t)
		return nil
	}

	for _, t := range tasks {
		if err := place(t.ID); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}

// SetProjectStart pins the user-specified project start used when deriving
// PS for tasks with no unbounded anchor of their own.
func (c *Controller) SetProjectStart(d time.Time) {
	c.mu.Lock()
	c.userProjectStart = &d
	c.mu.Unlock()
}

// Close releases the controller's operation queue.
func (c *Controller) Close() {
	c.queue.Close()
}
