package api

import (
	"context"

	"todotask-api/domain"
)

// Storage abstracts persistence for handlers.
type Storage interface {
	FetchTasks(ctx context.Context, ownerID string) ([]domain.Task, error)
	InsertTask(ctx context.Context, t domain.Task) error
	UpdateTask(ctx context.Context, ownerID, taskID string, changes domain.TaskChanges) error
	SetTaskStatus(ctx context.Context, ownerID, taskID string, status domain.Status) error
	DeleteTask(ctx context.Context, ownerID, taskID string) error
	UpsertUser(ctx context.Context, u domain.User) error
}

// Authenticator is implemented by types able to extract user IDs from
// headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// Deduper prevents reprocessing of duplicate create requests.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, userID, key string) (bool, error)
	// Remove deletes a previously added key, used when the write fails.
	Remove(ctx context.Context, userID, key string) error
}
