package storage

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"todotask-api/domain"
)

type stubBackend struct {
	fetchTasksFn func(ctx context.Context, ownerID string) ([]domain.Task, error)
	insertFn     func(ctx context.Context, t domain.Task) error
	updateFn     func(ctx context.Context, ownerID, taskID string, changes domain.TaskChanges) error
	setStatusFn  func(ctx context.Context, ownerID, taskID string, status domain.Status) error
	deleteFn     func(ctx context.Context, ownerID, taskID string) error
	upsertUserFn func(ctx context.Context, u domain.User) error
}

func (s *stubBackend) FetchTasks(ctx context.Context, ownerID string) ([]domain.Task, error) {
	if s.fetchTasksFn == nil {
		return nil, errors.New("unexpected FetchTasks call")
	}
	return s.fetchTasksFn(ctx, ownerID)
}

func (s *stubBackend) InsertTask(ctx context.Context, t domain.Task) error {
	if s.insertFn == nil {
		return errors.New("unexpected InsertTask call")
	}
	return s.insertFn(ctx, t)
}

func (s *stubBackend) UpdateTask(ctx context.Context, ownerID, taskID string, changes domain.TaskChanges) error {
	if s.updateFn == nil {
		return errors.New("unexpected UpdateTask call")
	}
	return s.updateFn(ctx, ownerID, taskID, changes)
}

func (s *stubBackend) SetTaskStatus(ctx context.Context, ownerID, taskID string, status domain.Status) error {
	if s.setStatusFn == nil {
		return errors.New("unexpected SetTaskStatus call")
	}
	return s.setStatusFn(ctx, ownerID, taskID, status)
}

func (s *stubBackend) DeleteTask(ctx context.Context, ownerID, taskID string) error {
	if s.deleteFn == nil {
		return errors.New("unexpected DeleteTask call")
	}
	return s.deleteFn(ctx, ownerID, taskID)
}

func (s *stubBackend) UpsertUser(ctx context.Context, u domain.User) error {
	if s.upsertUserFn == nil {
		return errors.New("unexpected UpsertUser call")
	}
	return s.upsertUserFn(ctx, u)
}

func newTestCache(t *testing.T, base backend) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewCache(base, client, time.Minute), mr
}

func TestCacheFetchTasksMissThenHit(t *testing.T) {
	ctx := context.Background()
	ownerID := "user-1"
	expected := []domain.Task{{ID: "t1", Title: "Write code", Status: domain.StatusPending, DueDate: "2024-01-10", OwnerID: ownerID}}

	var calls int
	cache, mr := newTestCache(t, &stubBackend{
		fetchTasksFn: func(ctx context.Context, owner string) ([]domain.Task, error) {
			calls++
			if owner != ownerID {
				t.Fatalf("unexpected owner id: %s", owner)
			}
			return append([]domain.Task(nil), expected...), nil
		},
	})

	tasks, err := cache.FetchTasks(ctx, ownerID)
	if err != nil {
		t.Fatalf("fetch tasks: %v", err)
	}
	if !reflect.DeepEqual(tasks, expected) {
		t.Fatalf("unexpected tasks: %#v", tasks)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call to backend, got %d", calls)
	}
	if ttl := mr.TTL(tasksCacheKey(ownerID)); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected TTL: %v", ttl)
	}

	cached, err := cache.FetchTasks(ctx, ownerID)
	if err != nil {
		t.Fatalf("fetch cached tasks: %v", err)
	}
	if !reflect.DeepEqual(cached, expected) {
		t.Fatalf("unexpected cached tasks: %#v", cached)
	}
	if calls != 1 {
		t.Fatalf("expected cached fetch to avoid backend, calls=%d", calls)
	}
}

func TestCacheMutationsEvictOwnerList(t *testing.T) {
	ctx := context.Background()
	ownerID := "user-1"

	var fetches int
	cache, mr := newTestCache(t, &stubBackend{
		fetchTasksFn: func(ctx context.Context, owner string) ([]domain.Task, error) {
			fetches++
			return []domain.Task{}, nil
		},
		insertFn:    func(ctx context.Context, tk domain.Task) error { return nil },
		updateFn:    func(ctx context.Context, owner, id string, ch domain.TaskChanges) error { return nil },
		setStatusFn: func(ctx context.Context, owner, id string, st domain.Status) error { return nil },
		deleteFn:    func(ctx context.Context, owner, id string) error { return nil },
	})

	mutations := map[string]func() error{
		"insert": func() error {
			return cache.InsertTask(ctx, domain.Task{ID: "t1", OwnerID: ownerID})
		},
		"update": func() error {
			return cache.UpdateTask(ctx, ownerID, "t1", domain.TaskChanges{Title: "x", DueDate: "2024-01-10"})
		},
		"toggle": func() error {
			return cache.SetTaskStatus(ctx, ownerID, "t1", domain.StatusCompleted)
		},
		"delete": func() error {
			return cache.DeleteTask(ctx, ownerID, "t1")
		},
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			if _, err := cache.FetchTasks(ctx, ownerID); err != nil {
				t.Fatalf("prime cache: %v", err)
			}
			if !mr.Exists(tasksCacheKey(ownerID)) {
				t.Fatal("expected cache entry after fetch")
			}
			if err := mutate(); err != nil {
				t.Fatalf("mutation: %v", err)
			}
			if mr.Exists(tasksCacheKey(ownerID)) {
				t.Fatal("expected cache entry evicted after mutation")
			}
		})
	}
}

func TestCacheMutationFailureKeepsEntry(t *testing.T) {
	ctx := context.Background()
	ownerID := "user-1"

	cache, mr := newTestCache(t, &stubBackend{
		fetchTasksFn: func(ctx context.Context, owner string) ([]domain.Task, error) {
			return []domain.Task{}, nil
		},
		insertFn: func(ctx context.Context, tk domain.Task) error {
			return errors.New("write failed")
		},
	})

	if _, err := cache.FetchTasks(ctx, ownerID); err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	if err := cache.InsertTask(ctx, domain.Task{ID: "t1", OwnerID: ownerID}); err == nil {
		t.Fatal("expected insert error")
	}
	if !mr.Exists(tasksCacheKey(ownerID)) {
		t.Fatal("expected cache entry kept when the write failed")
	}
}

func TestCacheCorruptEntryFallsBack(t *testing.T) {
	ctx := context.Background()
	ownerID := "user-1"
	expected := []domain.Task{{ID: "t1", OwnerID: ownerID}}

	var calls int
	cache, mr := newTestCache(t, &stubBackend{
		fetchTasksFn: func(ctx context.Context, owner string) ([]domain.Task, error) {
			calls++
			return append([]domain.Task(nil), expected...), nil
		},
	})
	if err := mr.Set(tasksCacheKey(ownerID), "{not json"); err != nil {
		t.Fatalf("seed corrupt entry: %v", err)
	}

	tasks, err := cache.FetchTasks(ctx, ownerID)
	if err != nil {
		t.Fatalf("fetch tasks: %v", err)
	}
	if !reflect.DeepEqual(tasks, expected) {
		t.Fatalf("unexpected tasks: %#v", tasks)
	}
	if calls != 1 {
		t.Fatalf("expected fallback to backend, calls=%d", calls)
	}
}

func TestCacheUpsertUserPassesThrough(t *testing.T) {
	var saved domain.User
	cache, _ := newTestCache(t, &stubBackend{
		upsertUserFn: func(ctx context.Context, u domain.User) error {
			saved = u
			return nil
		},
	})

	u := domain.User{ID: "user-1", Name: "Pat"}
	if err := cache.UpsertUser(context.Background(), u); err != nil {
		t.Fatalf("upsert user: %v", err)
	}
	if saved != u {
		t.Fatalf("unexpected saved user: %+v", saved)
	}
}
