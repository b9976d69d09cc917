package domain

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// TaskStorage defines the document-store operations the service needs.
type TaskStorage interface {
	FetchTasks(ctx context.Context, ownerID string) ([]Task, error)
	InsertTask(ctx context.Context, t Task) error
	UpdateTask(ctx context.Context, ownerID, taskID string, changes TaskChanges) error
	SetTaskStatus(ctx context.Context, ownerID, taskID string, status Status) error
	DeleteTask(ctx context.Context, ownerID, taskID string) error
}

// SessionReader exposes the identity of the active session, if any.
type SessionReader interface {
	CurrentUserID() (string, bool)
}

// TaskService is the owner-scoped task repository. Every operation requires
// a signed-in user and fails fast with ErrNotAuthenticated, issuing no
// store call, when there is none. Mutations return nothing: callers re-list
// to observe the change.
type TaskService struct {
	st      TaskStorage
	session SessionReader
}

func NewTaskService(st TaskStorage, session SessionReader) TaskService {
	return TaskService{st: st, session: session}
}

func (s TaskService) owner() (string, error) {
	id, ok := s.session.CurrentUserID()
	if !ok {
		return "", ErrNotAuthenticated
	}
	return id, nil
}

// ListTasks returns the current user's tasks ordered by creation time
// descending.
func (s TaskService) ListTasks(ctx context.Context) ([]Task, error) {
	owner, err := s.owner()
	if err != nil {
		return nil, err
	}
	return s.st.FetchTasks(ctx, owner)
}

// CreateTask writes a new pending task owned by the current user.
func (s TaskService) CreateTask(ctx context.Context, title, description, dueDate string) error {
	owner, err := s.owner()
	if err != nil {
		return err
	}
	t, err := NewTask(owner, title, description, dueDate)
	if err != nil {
		return err
	}
	if err := s.st.InsertTask(ctx, t); err != nil {
		return err
	}
	log.WithFields(log.Fields{"task": t.ID, "owner": owner}).Debug("task created")
	return nil
}

// UpdateTask overwrites the mutable fields of the task matching id. Status,
// creation time and owner are left untouched.
func (s TaskService) UpdateTask(ctx context.Context, id string, changes TaskChanges) error {
	owner, err := s.owner()
	if err != nil {
		return err
	}
	if err := ValidateTaskFields(changes.Title, changes.DueDate); err != nil {
		return err
	}
	return s.st.UpdateTask(ctx, owner, id, changes)
}

// ToggleStatus flips pending to completed and back for the task matching id.
func (s TaskService) ToggleStatus(ctx context.Context, id string, current Status) error {
	owner, err := s.owner()
	if err != nil {
		return err
	}
	if !current.Valid() {
		return &ValidationError{Field: "status", Reason: "must be pending or completed"}
	}
	return s.st.SetTaskStatus(ctx, owner, id, current.Toggled())
}

// DeleteTask removes the task matching id.
func (s TaskService) DeleteTask(ctx context.Context, id string) error {
	owner, err := s.owner()
	if err != nil {
		return err
	}
	return s.st.DeleteTask(ctx, owner, id)
}
