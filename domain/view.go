package domain

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// StatusFilter selects which tasks the view shows.
type StatusFilter string

const (
	FilterAll       StatusFilter = "all"
	FilterPending   StatusFilter = StatusFilter(StatusPending)
	FilterCompleted StatusFilter = StatusFilter(StatusCompleted)
)

// ParseStatusFilter interprets a raw filter value. The empty string means
// "all".
func ParseStatusFilter(raw string) (StatusFilter, error) {
	switch StatusFilter(raw) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterPending:
		return FilterPending, nil
	case FilterCompleted:
		return FilterCompleted, nil
	default:
		return "", &ValidationError{Field: "status", Reason: "must be all, pending or completed"}
	}
}

func (f StatusFilter) matches(s Status) bool {
	return f == FilterAll || StatusFilter(s) == f
}

// VisibleTasks derives the presented list from the fetched tasks and the
// current filters: only tasks matching the status filter and whose title or
// description contains the search term case-insensitively, ordered pending
// before completed and then by ascending due date. The sort is stable so
// ties keep the incoming order.
func VisibleTasks(tasks []Task, searchTerm string, filter StatusFilter) []Task {
	term := strings.ToLower(strings.TrimSpace(searchTerm))
	visible := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if !filter.matches(t.Status) {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(t.Title), term) &&
			!strings.Contains(strings.ToLower(t.Description), term) {
			continue
		}
		visible = append(visible, t)
	}
	sort.SliceStable(visible, func(i, j int) bool {
		if visible[i].Status != visible[j].Status {
			return visible[i].Status == StatusPending
		}
		return visible[i].DueDate < visible[j].DueDate
	})
	return visible
}

// TaskLister fetches the owner-scoped task collection.
type TaskLister interface {
	ListTasks(ctx context.Context) ([]Task, error)
}

// TaskListView holds the fetched task collection together with the current
// search term and status filter, and derives the visible list consumed by
// presentation. Refresh is the only way tasks change: every mutation is
// followed by an authoritative re-read, never an in-memory patch.
type TaskListView struct {
	lister   TaskLister
	onChange func()

	mu           sync.Mutex
	tasks        []Task
	searchTerm   string
	statusFilter StatusFilter
	loading      bool
	closed       bool
}

// NewTaskListView creates a view over the given lister. onChange, when not
// nil, fires after every state change.
func NewTaskListView(lister TaskLister, onChange func()) *TaskListView {
	return &TaskListView{lister: lister, onChange: onChange, statusFilter: FilterAll}
}

// SetSearchTerm updates the free-text filter.
func (v *TaskListView) SetSearchTerm(term string) {
	v.mu.Lock()
	v.searchTerm = term
	v.mu.Unlock()
	v.notify()
}

// SetStatusFilter updates the status filter.
func (v *TaskListView) SetStatusFilter(filter StatusFilter) error {
	parsed, err := ParseStatusFilter(string(filter))
	if err != nil {
		return err
	}
	v.mu.Lock()
	v.statusFilter = parsed
	v.mu.Unlock()
	v.notify()
	return nil
}

// Visible returns the filtered, ordered task list.
func (v *TaskListView) Visible() []Task {
	v.mu.Lock()
	tasks := v.tasks
	term := v.searchTerm
	filter := v.statusFilter
	v.mu.Unlock()
	return VisibleTasks(tasks, term, filter)
}

// Loading reports whether a fetch is in flight, so presentation can tell
// "fetching" apart from "empty result".
func (v *TaskListView) Loading() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loading
}

// Refresh replaces the held tasks with the store's current state. Results
// arriving after Close are discarded.
func (v *TaskListView) Refresh(ctx context.Context) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	v.loading = true
	v.mu.Unlock()
	v.notify()

	tasks, err := v.lister.ListTasks(ctx)

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	v.loading = false
	if err == nil {
		v.tasks = tasks
	}
	v.mu.Unlock()
	v.notify()
	return err
}

// Close marks the view disposed; late fetch results no longer apply.
func (v *TaskListView) Close() {
	v.mu.Lock()
	v.closed = true
	v.mu.Unlock()
}

func (v *TaskListView) notify() {
	if v.onChange != nil {
		v.onChange()
	}
}
