package domain

// Task change event types published after successful mutations.
const (
	TaskCreated   = "task-created"
	TaskUpdated   = "task-updated"
	TaskCompleted = "task-completed"
	TaskReopened  = "task-reopened"
	TaskDeleted   = "task-deleted"
)

// TaskEvent describes a committed change to a task. Events are published
// best-effort; consumers must tolerate gaps.
type TaskEvent struct {
	Type      string `json:"type"`
	TaskID    string `json:"taskId"`
	OwnerID   string `json:"ownerId"`
	Timestamp int64  `json:"timestamp"`
}
