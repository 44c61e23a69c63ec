package task

import (
	"sort"
	"time"

	"github.com/buildwright/cpmschedule/internal/schederr"
)

// Patch carries an optional field mutation for Store.Update. A nil pointer
// leaves the corresponding Task field unchanged.
type Patch struct {
	Name           *string
	ParentID       *ID
	SortKey        *string
	Duration       *int
	Start          *time.Time
	End            *time.Time
	Dependencies   *[]Dependency
	ConstraintType *ConstraintType
	ConstraintDate *time.Time
	SchedulingMode *SchedulingMode
	ActualStart    *time.Time
	ActualFinish   *time.Time
	Progress       *int
	BaselineStart    *time.Time
	BaselineFinish   *time.Time
	BaselineDuration *int
	TradePartnerIDs *[]string
	Collapsed      *bool
}

func apply(t *Task, p Patch) {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.ParentID != nil {
		t.ParentID = *p.ParentID
	}
	if p.SortKey != nil {
		t.SortKey = *p.SortKey
	}
	if p.Duration != nil {
		t.Duration = *p.Duration
	}
	if p.Start != nil {
		t.Start = *p.Start
	}
	if p.End != nil {
		t.End = *p.End
	}
	if p.Dependencies != nil {
		t.Dependencies = append([]Dependency(nil), (*p.Dependencies)...)
	}
	if p.ConstraintType != nil {
		t.ConstraintType = *p.ConstraintType
	}
	if p.ConstraintDate != nil {
		t.ConstraintDate = *p.ConstraintDate
	}
	if p.SchedulingMode != nil {
		t.SchedulingMode = *p.SchedulingMode
	}
	if p.ActualStart != nil {
		t.ActualStart = *p.ActualStart
	}
	if p.ActualFinish != nil {
		t.ActualFinish = *p.ActualFinish
	}
	if p.Progress != nil {
		t.Progress = *p.Progress
	}
	if p.BaselineStart != nil {
		t.BaselineStart = *p.BaselineStart
	}
	if p.BaselineFinish != nil {
		t.BaselineFinish = *p.BaselineFinish
	}
	if p.BaselineDuration != nil {
		t.BaselineDuration = *p.BaselineDuration
	}
	if p.TradePartnerIDs != nil {
		t.TradePartnerIDs = append([]string(nil), (*p.TradePartnerIDs)...)
	}
	if p.Collapsed != nil {
		t.Collapsed = *p.Collapsed
	}
}

// Store owns the canonical, ordered set of tasks. It is not safe for
// concurrent use by multiple goroutines; callers serialize mutation through
// the operation queue (see internal/opqueue).
type Store struct {
	tasks map[ID]*Task
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{tasks: make(map[ID]*Task)}
}

// GetAll returns an immutable snapshot of every task, in no particular
// order.
func (s *Store) GetAll() []Task {
	out := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.Clone())
	}
	return out
}

// Get returns a copy of the task with the given id.
func (s *Store) Get(id ID) (Task, bool) {
	t, ok := s.tasks[id]
	if !ok {
		return Task{}, false
	}
	return t.Clone(), true
}

// GetChildren returns the direct children of parentID, sorted by SortKey.
// An empty parentID returns the root-level tasks.
func (s *Store) GetChildren(parentID ID) []Task {
	var out []Task
	for _, t := range s.tasks {
		if t.ParentID == parentID {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortKey < out[j].SortKey })
	return out
}

// GetLastSortKey returns the greatest SortKey among parentID's children, and
// true if parentID has at least one child.
func (s *Store) GetLastSortKey(parentID ID) (string, bool) {
	children := s.GetChildren(parentID)
	if len(children) == 0 {
		return "", false
	}
	return children[len(children)-1].SortKey, true
}

// GetVisibleTasks returns tasks in hierarchy-preorder, skipping the subtree
// rooted at any task for which isCollapsed reports true.
func (s *Store) GetVisibleTasks(isCollapsed func(Task) bool) []Task {
	var out []Task
	var walk func(parentID ID)
	walk = func(parentID ID) {
		for _, t := range s.GetChildren(parentID) {
			out = append(out, t)
			if isCollapsed == nil || !isCollapsed(t) {
				walk(t.ID)
			}
		}
	}
	walk("")
	return out
}

// Insert adds a new task after validating invariants I1-I8 against the
// store as it would be after the insert. On failure the store is left
// unchanged.
func (s *Store) Insert(t Task) (Task, error) {
	if _, exists := s.tasks[t.ID]; exists {
		return Task{}, schederr.NewValidationError(t.ID, "id", t.ID, "task id already exists")
	}
	candidate := t.Clone()
	trial := s.snapshotWith(candidate)
	if err := validateTask(trial, candidate); err != nil {
		return Task{}, err
	}
	stored := candidate.Clone()
	s.tasks[t.ID] = &stored
	return stored.Clone(), nil
}

// Update applies a partial mutation to the task with the given id,
// validating invariants against the resulting state. On failure the store
// is left unchanged.
func (s *Store) Update(id ID, p Patch) (Task, error) {
	existing, ok := s.tasks[id]
	if !ok {
		return Task{}, schederr.NewValidationError(id, "id", id, "task not found")
	}
	candidate := existing.Clone()
	apply(&candidate, p)
	trial := s.snapshotWith(candidate)
	if err := validateTask(trial, candidate); err != nil {
		return Task{}, err
	}
	stored := candidate.Clone()
	s.tasks[id] = &stored
	return stored.Clone(), nil
}

// Remove deletes the task with the given id and cascades: children are
// re-parented to the removed task's parent (preserving their relative
// order), and any dependency referencing the removed task is dropped.
// Remove never fails on a task that exists; removing an unknown id is a
// ValidationError.
func (s *Store) Remove(id ID) error {
	victim, ok := s.tasks[id]
	if !ok {
		return schederr.NewValidationError(id, "id", id, "task not found")
	}
	newParent := victim.ParentID
	for _, t := range s.tasks {
		if t.ParentID == id {
			t.ParentID = newParent
		}
		t.Dependencies = removeDependencyOn(t.Dependencies, id)
	}
	delete(s.tasks, id)
	return nil
}

func removeDependencyOn(deps []Dependency, predID ID) []Dependency {
	out := deps[:0:0]
	for _, d := range deps {
		if d.PredID != predID {
			out = append(out, d)
		}
	}
	return out
}

// Move reparents and/or re-sorts a task, validating invariants against the
// resulting state (notably I1: no cycle in the parent forest, and I2:
// sibling sortKey uniqueness).
func (s *Store) Move(id ID, newParentID ID, newSortKey string) error {
	existing, ok := s.tasks[id]
	if !ok {
		return schederr.NewValidationError(id, "id", id, "task not found")
	}
	candidate := existing.Clone()
	candidate.ParentID = newParentID
	candidate.SortKey = newSortKey
	trial := s.snapshotWith(candidate)
	if err := validateTask(trial, candidate); err != nil {
		return err
	}
	stored := candidate.Clone()
	s.tasks[id] = &stored
	return nil
}

// snapshotWith returns every task in the store as a map keyed by ID, with
// candidate substituted in (added or replacing the task of the same ID),
// for invariant validation against the post-mutation state.
func (s *Store) snapshotWith(candidate Task) map[ID]Task {
	out := make(map[ID]Task, len(s.tasks)+1)
	for id, t := range s.tasks {
		out[id] = *t
	}
	out[candidate.ID] = candidate
	return out
}
