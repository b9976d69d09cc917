package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the completion state of a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// Valid reports whether s is one of the two known states.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusCompleted
}

// Toggled flips pending to completed and back. There is no third state.
func (s Status) Toggled() Status {
	if s == StatusCompleted {
		return StatusPending
	}
	return StatusCompleted
}

// DueDateLayout is the calendar-date form due dates are stored and
// exchanged in. Day granularity only.
const DueDateLayout = "2006-01-02"

// Task represents a single todo item owned by one user.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	DueDate     string    `json:"dueDate"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	OwnerID     string    `json:"userId"`
}

// TaskChanges carries the mutable fields of a task. Status, CreatedAt and
// OwnerID are never updated through it.
type TaskChanges struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     string `json:"dueDate"`
}

// NewTask builds a task ready for insertion. The id and creation time are
// assigned here, never by the caller.
func NewTask(ownerID, title, description, dueDate string) (Task, error) {
	if err := ValidateTaskFields(title, dueDate); err != nil {
		return Task{}, err
	}
	return Task{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(title),
		Description: description,
		DueDate:     dueDate,
		Status:      StatusPending,
		CreatedAt:   time.Now().UTC(),
		OwnerID:     ownerID,
	}, nil
}

// ValidateTaskFields checks the required task fields before any storage
// call is made.
func ValidateTaskFields(title, dueDate string) error {
	if strings.TrimSpace(title) == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if dueDate == "" {
		return &ValidationError{Field: "dueDate", Reason: "is required"}
	}
	if _, err := time.Parse(DueDateLayout, dueDate); err != nil {
		return &ValidationError{Field: "dueDate", Reason: "must be a YYYY-MM-DD date"}
	}
	return nil
}

// User is the profile document upserted for a signed-in user.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	PhotoURL string `json:"photoUrl,omitempty"`
}
