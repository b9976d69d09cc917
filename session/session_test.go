package session

import (
	"context"
	"errors"
	"testing"

	"todotask-api/domain"
)

type fakeProvider struct {
	loginFn  func(ctx context.Context) (Identity, error)
	logoutFn func(ctx context.Context) error
	listener func(*Identity)
}

func (p *fakeProvider) BeginLogin(ctx context.Context) (Identity, error) {
	if p.loginFn == nil {
		return Identity{}, errors.New("unexpected BeginLogin call")
	}
	return p.loginFn(ctx)
}

func (p *fakeProvider) EndSession(ctx context.Context) error {
	if p.logoutFn == nil {
		return errors.New("unexpected EndSession call")
	}
	return p.logoutFn(ctx)
}

func (p *fakeProvider) OnStateChanged(fn func(*Identity)) func() {
	p.listener = fn
	return func() { p.listener = nil }
}

func (p *fakeProvider) emit(id *Identity) {
	if p.listener != nil {
		p.listener(id)
	}
}

func TestStoreStartsUnresolved(t *testing.T) {
	store := NewStore(&fakeProvider{}, nil)

	if !store.Loading() {
		t.Fatal("expected loading until the provider resolves")
	}
	if _, ok := store.Current(); ok {
		t.Fatal("expected no user before resolution")
	}
}

func TestProviderEventsResolveSession(t *testing.T) {
	provider := &fakeProvider{}
	store := NewStore(provider, nil)

	provider.emit(&Identity{ID: "user-1", DisplayName: "Pat", Email: "pat@example.com"})
	if store.Loading() {
		t.Fatal("expected loading cleared after resolution")
	}
	id, ok := store.Current()
	if !ok || id.ID != "user-1" {
		t.Fatalf("unexpected identity: %+v ok=%v", id, ok)
	}
	if uid, ok := store.CurrentUserID(); !ok || uid != "user-1" {
		t.Fatalf("unexpected user id: %q ok=%v", uid, ok)
	}

	provider.emit(nil)
	if _, ok := store.Current(); ok {
		t.Fatal("expected signed-out state after nil event")
	}
	if store.Loading() {
		t.Fatal("expected loading to stay cleared")
	}
}

func TestBeginFederatedLoginNavigatesOnSuccess(t *testing.T) {
	provider := &fakeProvider{loginFn: func(ctx context.Context) (Identity, error) {
		return Identity{ID: "user-1"}, nil
	}}
	var routes []string
	store := NewStore(provider, func(route string) { routes = append(routes, route) })

	id, err := store.BeginFederatedLogin(context.Background())
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if id.ID != "user-1" {
		t.Fatalf("unexpected identity: %+v", id)
	}
	if len(routes) != 1 || routes[0] != RouteTasks {
		t.Fatalf("expected navigation to %q, got %v", RouteTasks, routes)
	}

	provider.emit(&Identity{ID: "user-1"})
	if store.Loading() {
		t.Fatal("expected loading cleared by the provider event")
	}
}

func TestBeginFederatedLoginFailureResetsLoading(t *testing.T) {
	provider := &fakeProvider{loginFn: func(ctx context.Context) (Identity, error) {
		return Identity{}, errors.New("popup closed")
	}}
	var routes []string
	store := NewStore(provider, func(route string) { routes = append(routes, route) })
	provider.emit(nil) // initial resolution: signed out

	_, err := store.BeginFederatedLogin(context.Background())
	var authErr *domain.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if store.Loading() {
		t.Fatal("expected loading reset after a failed login")
	}
	if len(routes) != 0 {
		t.Fatalf("expected no navigation on failure, got %v", routes)
	}
}

func TestEndSessionNavigatesToLogin(t *testing.T) {
	provider := &fakeProvider{logoutFn: func(ctx context.Context) error { return nil }}
	var routes []string
	store := NewStore(provider, func(route string) { routes = append(routes, route) })
	provider.emit(&Identity{ID: "user-1"})

	if err := store.EndSession(context.Background()); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if len(routes) != 1 || routes[0] != RouteLogin {
		t.Fatalf("expected navigation to %q, got %v", RouteLogin, routes)
	}

	provider.emit(nil)
	if _, ok := store.Current(); ok {
		t.Fatal("expected signed-out state")
	}
}

func TestEndSessionFailure(t *testing.T) {
	provider := &fakeProvider{logoutFn: func(ctx context.Context) error {
		return errors.New("provider unavailable")
	}}
	store := NewStore(provider, nil)
	provider.emit(&Identity{ID: "user-1"})

	err := store.EndSession(context.Background())
	var authErr *domain.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if store.Loading() {
		t.Fatal("expected loading reset after a failed logout")
	}
	if _, ok := store.Current(); !ok {
		t.Fatal("expected session to remain until the provider says otherwise")
	}
}

func TestSubscribeNotifiesUntilUnsubscribed(t *testing.T) {
	provider := &fakeProvider{}
	store := NewStore(provider, nil)

	var notified int
	unsubscribe := store.Subscribe(func() { notified++ })

	provider.emit(&Identity{ID: "user-1"})
	provider.emit(nil)
	if notified != 2 {
		t.Fatalf("expected two notifications, got %d", notified)
	}

	unsubscribe()
	provider.emit(&Identity{ID: "user-1"})
	if notified != 2 {
		t.Fatalf("expected no notification after unsubscribe, got %d", notified)
	}
}
