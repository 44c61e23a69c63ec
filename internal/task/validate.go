package task

import (
	"fmt"

	"github.com/buildwright/cpmschedule/internal/schederr"
)

// validateTask checks invariants I1-I8 for candidate against the proposed
// post-mutation store state snapshot. snapshot already contains candidate
// under its own ID.
func validateTask(snapshot map[ID]Task, candidate Task) error {
	if candidate.ID == "" {
		return schederr.NewValidationError(candidate.ID, "id", "", "task id must not be empty")
	}

	// I1: parentId references an existing task or none; no cycles in the
	// parent forest.
	if candidate.ParentID != "" {
		parent, ok := snapshot[candidate.ParentID]
		if !ok {
			msg := "parent task does not exist"
			if s := suggestID(candidate.ParentID, snapshot); s != "" {
				msg += fmt.Sprintf(" (did you mean %q?)", s)
			}
			return schederr.NewValidationError(candidate.ID, "parentId", candidate.ParentID, msg)
		}
		if parent.RowType != RowTypeSummary {
			return schederr.NewValidationError(candidate.ID, "parentId", candidate.ParentID, "parent must be a summary row")
		}
		if parentCycle(snapshot, candidate.ID, candidate.ParentID) {
			return schederr.NewValidationError(candidate.ID, "parentId", candidate.ParentID, "parent assignment introduces a cycle")
		}
	}

	// I2: sortKey is unique among siblings of the same parent.
	for id, other := range snapshot {
		if id == candidate.ID {
			continue
		}
		if other.ParentID == candidate.ParentID && other.SortKey == candidate.SortKey {
			return schederr.NewValidationError(candidate.ID, "sortKey", candidate.SortKey, "sortKey collides with an existing sibling")
		}
	}

	// I3: dependencies reference existing, non-self, leaf tasks; links on a
	// summary or blank row's predecessor side are rejected here rather than
	// silently dropped by the dependency graph builder. Acyclicity is
	// checked by the dependency graph builder (C3), not here, since it spans
	// the whole store rather than one task's mutation.
	for _, dep := range candidate.Dependencies {
		if dep.PredID == candidate.ID {
			return schederr.NewValidationError(candidate.ID, "dependencies", dep.PredID, "task cannot depend on itself")
		}
		pred, ok := snapshot[dep.PredID]
		if !ok {
			msg := "predecessor does not exist"
			if s := suggestID(dep.PredID, snapshot); s != "" {
				msg += fmt.Sprintf(" (did you mean %q?)", s)
			}
			return schederr.NewValidationError(candidate.ID, "dependencies", dep.PredID, msg)
		}
		if pred.RowType == RowTypeSummary {
			return schederr.NewValidationError(candidate.ID, "dependencies", dep.PredID, "predecessor must not be a summary row")
		}
		if pred.RowType == RowTypeBlank {
			return schederr.NewValidationError(candidate.ID, "dependencies", dep.PredID, "predecessor must not be a blank row")
		}
	}
	if candidate.RowType == RowTypeSummary && len(candidate.Dependencies) > 0 {
		return schederr.NewValidationError(candidate.ID, "dependencies", "", "summary row must not have dependencies")
	}

	// I4: duration == 0 implies milestone semantics: start equals end.
	if candidate.Duration == 0 && !candidate.Start.IsZero() && !candidate.End.IsZero() {
		if !candidate.Start.Equal(candidate.End) {
			return schederr.NewValidationError(candidate.ID, "duration", "0", "milestone start must equal end")
		}
	}
	if candidate.Duration < 0 {
		return schederr.NewValidationError(candidate.ID, "duration", "", "duration must not be negative")
	}

	// I5: a blank row has no dependencies referencing or from it. This also
	// catches a summary or blank row acquiring a dependent via an update
	// (rather than the dependent being inserted/updated first), which I3's
	// forward-direction check above cannot see.
	if candidate.RowType == RowTypeBlank && len(candidate.Dependencies) > 0 {
		return schederr.NewValidationError(candidate.ID, "dependencies", "", "blank row must not have dependencies")
	}
	if candidate.RowType == RowTypeBlank || candidate.RowType == RowTypeSummary {
		for id, other := range snapshot {
			if id == candidate.ID {
				continue
			}
			for _, dep := range other.Dependencies {
				if dep.PredID == candidate.ID {
					kind := "summary"
					if candidate.RowType == RowTypeBlank {
						kind = "blank"
					}
					return schederr.NewValidationError(candidate.ID, "dependencies", id, kind+" row must not be depended on")
				}
			}
		}
	}

	// I6: constraintType != ASAP implies constraintDate is set.
	if candidate.ConstraintType != "" && candidate.ConstraintType != ASAP && candidate.ConstraintDate.IsZero() {
		return schederr.NewValidationError(candidate.ID, "constraintDate", "", "non-ASAP constraint requires a constraintDate")
	}

	// I7 (schedulingMode = manual pins start/end/duration) is enforced by the
	// CPM engine, which must treat manual tasks as fixed rather than by the
	// store rejecting a shape, since manual start/end/duration are exactly
	// the fields the store is storing.

	// I8: actualFinish present implies actualStart present and
	// actualStart <= actualFinish; task is then complete.
	if candidate.HasActualFinish() {
		if !candidate.HasActualStart() {
			return schederr.NewValidationError(candidate.ID, "actualStart", "", "actualFinish requires actualStart to be set")
		}
		if candidate.ActualStart.After(candidate.ActualFinish) {
			return schederr.NewValidationError(candidate.ID, "actualStart", "", "actualStart must not be after actualFinish")
		}
		if candidate.Progress != 100 {
			return schederr.NewValidationError(candidate.ID, "progress", "", "task with actualFinish must have progress 100")
		}
	}

	return nil
}

// parentCycle reports whether assigning childID's parent to parentID would
// create a cycle in the parent forest, walking parentID's own ancestor
// chain looking for childID.
func parentCycle(snapshot map[ID]Task, childID, parentID ID) bool {
	visited := make(map[ID]bool)
	cur := parentID
	for cur != "" {
		if cur == childID {
			return true
		}
		if visited[cur] {
			return true // pre-existing cycle elsewhere; treat as unsafe
		}
		visited[cur] = true
		next, ok := snapshot[cur]
		if !ok {
			return false
		}
		cur = next.ParentID
	}
	return false
}
