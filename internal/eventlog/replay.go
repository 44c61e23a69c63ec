package eventlog

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/buildwright/cpmschedule/internal/task"
)

func zeroTimeValue() time.Time { return time.Time{} }

// Replay reconstructs the task set a sequence of Events produced, applying
// each task-affecting event to a fresh Store in order. CALENDAR_UPDATED and
// TRADE_PARTNER_CREATED events carry no task mutation and are skipped:
// calendar state is owned by internal/calendar, not reconstructed here.
func Replay(events []Event) ([]task.Task, error) {
	store := task.NewStore()

	for i, e := range events {
		switch e.Kind {
		case TaskAdded:
			var p TaskAddedPayload
			if err := json.Unmarshal(e.Payload, &p); err != nil {
				return nil, fmt.Errorf("event %d: decode TASK_ADDED payload: %w", i, err)
			}
			if _, err := store.Insert(p.Task); err != nil {
				return nil, fmt.Errorf("event %d: replay TASK_ADDED for %s: %w", i, e.EntityID, err)
			}

		case TaskUpdated:
			var p TaskUpdatedPayload
			if err := json.Unmarshal(e.Payload, &p); err != nil {
				return nil, fmt.Errorf("event %d: decode TASK_UPDATED payload: %w", i, err)
			}
			if _, err := store.Update(e.EntityID, p.Patch); err != nil {
				return nil, fmt.Errorf("event %d: replay TASK_UPDATED for %s: %w", i, e.EntityID, err)
			}

		case TaskDeleted:
			if err := store.Remove(e.EntityID); err != nil {
				return nil, fmt.Errorf("event %d: replay TASK_DELETED for %s: %w", i, e.EntityID, err)
			}

		case TaskMoved:
			var p TaskMovedPayload
			if err := json.Unmarshal(e.Payload, &p); err != nil {
				return nil, fmt.Errorf("event %d: decode TASK_MOVED payload: %w", i, err)
			}
			if err := store.Move(e.EntityID, p.NewParentID, p.NewSortKey); err != nil {
				return nil, fmt.Errorf("event %d: replay TASK_MOVED for %s: %w", i, e.EntityID, err)
			}

		case BaselineSet:
			var p BaselinePayload
			if err := json.Unmarshal(e.Payload, &p); err != nil {
				return nil, fmt.Errorf("event %d: decode BASELINE_SET payload: %w", i, err)
			}
			patch := task.Patch{BaselineStart: &p.Start, BaselineFinish: &p.Finish, BaselineDuration: &p.Duration}
			if _, err := store.Update(e.EntityID, patch); err != nil {
				return nil, fmt.Errorf("event %d: replay BASELINE_SET for %s: %w", i, e.EntityID, err)
			}

		case BaselineCleared:
			zeroDate := zeroTimeValue()
			zeroDuration := 0
			patch := task.Patch{BaselineStart: &zeroDate, BaselineFinish: &zeroDate, BaselineDuration: &zeroDuration}
			if _, err := store.Update(e.EntityID, patch); err != nil {
				return nil, fmt.Errorf("event %d: replay BASELINE_CLEARED for %s: %w", i, e.EntityID, err)
			}

		case CalendarUpdated, TradePartnerCreated:
			// No task-level effect to replay.

		default:
			return nil, fmt.Errorf("event %d: unknown kind %q", i, e.Kind)
		}
	}

	return store.GetAll(), nil
}
