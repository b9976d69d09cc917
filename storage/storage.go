package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	log "github.com/sirupsen/logrus"

	"todotask-api/domain"
)

// Storage provides access to the task and user tables and the task events
// queue.
type Storage struct {
	taskTable  *aztables.Client
	userTable  *aztables.Client
	eventQueue *azqueue.QueueClient
}

// New creates a Storage instance from the given connection string.
func New(connStr, tasksTable, usersTable, eventsQueue string) (*Storage, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	tt := svc.NewClient(tasksTable)
	ut := svc.NewClient(usersTable)
	queueClientOptions := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	eq, err := azqueue.NewQueueClientFromConnectionString(connStr, eventsQueue, &queueClientOptions)
	if err != nil {
		return nil, err
	}
	return &Storage{taskTable: tt, userTable: ut, eventQueue: eq}, nil
}

// EnsureTables creates the backing tables when they do not exist yet.
func (s *Storage) EnsureTables(ctx context.Context) error {
	for _, t := range []*aztables.Client{s.taskTable, s.userTable} {
		if _, err := t.CreateTable(ctx, nil); err != nil {
			var respErr *azcore.ResponseError
			if errors.As(err, &respErr) && respErr.ErrorCode == string(aztables.TableAlreadyExists) {
				continue
			}
			return err
		}
	}
	return nil
}

type entityKeys struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
}

const edmInt64 = "Edm.Int64"

type taskEntity struct {
	entityKeys
	Title         string `json:"Title"`
	Description   string `json:"Description,omitempty"`
	DueDate       string `json:"DueDate"`
	Status        string `json:"Status,omitempty"`
	CreatedAt     int64  `json:"CreatedAt,string"`
	CreatedAtType string `json:"CreatedAt@odata.type,omitempty"`
}

type taskUpdate struct {
	entityKeys
	Title       *string `json:"Title,omitempty"`
	Description *string `json:"Description,omitempty"`
	DueDate     *string `json:"DueDate,omitempty"`
	Status      *string `json:"Status,omitempty"`
}

type userEntity struct {
	entityKeys
	Name     string `json:"Name,omitempty"`
	Email    string `json:"Email,omitempty"`
	PhotoURL string `json:"PhotoURL,omitempty"`
}

// userPartition keeps all profile documents in one partition, keyed by the
// user id.
const userPartition = "user"

func encodeTaskEntity(t domain.Task) taskEntity {
	return taskEntity{
		entityKeys:    entityKeys{PartitionKey: t.OwnerID, RowKey: t.ID},
		Title:         t.Title,
		Description:   t.Description,
		DueDate:       t.DueDate,
		Status:        string(t.Status),
		CreatedAt:     t.CreatedAt.UnixNano(),
		CreatedAtType: edmInt64,
	}
}

// decodeTaskEntity converts a stored record into a Task. The mapping is
// total: a missing description defaults to empty, a missing status defaults
// to pending, and records with no title or an unknown status are rejected
// rather than passed through.
func decodeTaskEntity(data []byte) (domain.Task, error) {
	var ent taskEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Task{}, err
	}
	if ent.Title == "" {
		return domain.Task{}, fmt.Errorf("task %s: missing title", ent.RowKey)
	}
	status := domain.Status(ent.Status)
	if ent.Status == "" {
		status = domain.StatusPending
	} else if !status.Valid() {
		return domain.Task{}, fmt.Errorf("task %s: unknown status %q", ent.RowKey, ent.Status)
	}
	return domain.Task{
		ID:          ent.RowKey,
		Title:       ent.Title,
		Description: ent.Description,
		DueDate:     ent.DueDate,
		Status:      status,
		CreatedAt:   time.Unix(0, ent.CreatedAt).UTC(),
		OwnerID:     ent.PartitionKey,
	}, nil
}

// FetchTasks retrieves all tasks owned by ownerID, newest first. Table
// storage returns entities in row-key order, so the creation-time ordering
// happens here.
func (s *Storage) FetchTasks(ctx context.Context, ownerID string) ([]domain.Task, error) {
	filter := "PartitionKey eq '" + ownerID + "'"
	pager := s.taskTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, &domain.RepositoryError{Op: "list tasks", Err: err}
		}
		for _, e := range resp.Entities {
			t, err := decodeTaskEntity(e)
			if err != nil {
				return nil, &domain.RepositoryError{Op: "list tasks", Err: err}
			}
			tasks = append(tasks, t)
		}
	}
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].CreatedAt.After(tasks[j].CreatedAt) })
	return tasks, nil
}

// InsertTask writes a new task record.
func (s *Storage) InsertTask(ctx context.Context, t domain.Task) error {
	payload, err := json.Marshal(encodeTaskEntity(t))
	if err == nil {
		_, err = s.taskTable.AddEntity(ctx, payload, nil)
	}
	if err != nil {
		return &domain.RepositoryError{Op: "insert task", Err: err}
	}
	s.publishEvent(ctx, domain.TaskEvent{Type: domain.TaskCreated, TaskID: t.ID, OwnerID: t.OwnerID})
	return nil
}

// UpdateTask merges the mutable fields into the record matching taskID.
// Updating an id that does not exist is an error, not a no-op.
func (s *Storage) UpdateTask(ctx context.Context, ownerID, taskID string, changes domain.TaskChanges) error {
	upd := taskUpdate{
		entityKeys:  entityKeys{PartitionKey: ownerID, RowKey: taskID},
		Title:       &changes.Title,
		Description: &changes.Description,
		DueDate:     &changes.DueDate,
	}
	if err := s.mergeTask(ctx, "update task", upd); err != nil {
		return err
	}
	s.publishEvent(ctx, domain.TaskEvent{Type: domain.TaskUpdated, TaskID: taskID, OwnerID: ownerID})
	return nil
}

// SetTaskStatus writes the given status to the record matching taskID.
func (s *Storage) SetTaskStatus(ctx context.Context, ownerID, taskID string, status domain.Status) error {
	raw := string(status)
	upd := taskUpdate{
		entityKeys: entityKeys{PartitionKey: ownerID, RowKey: taskID},
		Status:     &raw,
	}
	if err := s.mergeTask(ctx, "set task status", upd); err != nil {
		return err
	}
	evType := domain.TaskReopened
	if status == domain.StatusCompleted {
		evType = domain.TaskCompleted
	}
	s.publishEvent(ctx, domain.TaskEvent{Type: evType, TaskID: taskID, OwnerID: ownerID})
	return nil
}

func (s *Storage) mergeTask(ctx context.Context, op string, upd taskUpdate) error {
	payload, err := json.Marshal(upd)
	if err == nil {
		et := azcore.ETagAny
		_, err = s.taskTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeMerge})
	}
	return mapTaskErr(op, err)
}

// DeleteTask removes the record matching taskID.
func (s *Storage) DeleteTask(ctx context.Context, ownerID, taskID string) error {
	_, err := s.taskTable.DeleteEntity(ctx, ownerID, taskID, nil)
	if err := mapTaskErr("delete task", err); err != nil {
		return err
	}
	s.publishEvent(ctx, domain.TaskEvent{Type: domain.TaskDeleted, TaskID: taskID, OwnerID: ownerID})
	return nil
}

// UpsertUser creates or replaces the user's profile document.
func (s *Storage) UpsertUser(ctx context.Context, u domain.User) error {
	ent := userEntity{
		entityKeys: entityKeys{PartitionKey: userPartition, RowKey: u.ID},
		Name:       u.Name,
		Email:      u.Email,
		PhotoURL:   u.PhotoURL,
	}
	payload, err := json.Marshal(ent)
	if err == nil {
		_, err = s.userTable.UpsertEntity(ctx, payload, nil)
	}
	if err != nil {
		return &domain.RepositoryError{Op: "upsert user", Err: err}
	}
	return nil
}

// publishEvent enqueues a task change event. Publication is best-effort: a
// queue failure is logged and never fails the mutation that produced it.
func (s *Storage) publishEvent(ctx context.Context, ev domain.TaskEvent) {
	if s.eventQueue == nil {
		return
	}
	ev.Timestamp = time.Now().UnixNano()
	data, err := json.Marshal(ev)
	if err == nil {
		_, err = s.eventQueue.EnqueueMessage(ctx, string(data), nil)
	}
	if err != nil {
		log.WithFields(log.Fields{"task": ev.TaskID, "type": ev.Type}).WithError(err).Warn("task event not published")
	}
}

func mapTaskErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode == 404 {
		return domain.ErrTaskNotFound
	}
	return &domain.RepositoryError{Op: op, Err: err}
}
