// Package session mirrors the external identity provider's state into a
// single session object owned by this store and distributed to consumers
// through its read methods and subscription, never through shared globals.
package session

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"todotask-api/domain"
)

// Identity describes the signed-in user as reported by the provider.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
	Email       string `json:"email,omitempty"`
	PhotoURL    string `json:"photoUrl,omitempty"`
}

// Provider is the external identity provider boundary: one interactive
// sign-in, one sign-out, one subscription for session-changed events. The
// callback receives nil when the session ends.
type Provider interface {
	BeginLogin(ctx context.Context) (Identity, error)
	EndSession(ctx context.Context) error
	OnStateChanged(fn func(*Identity)) (unsubscribe func())
}

// Routes the store navigates to after successful login and logout.
const (
	RouteTasks = "/todo"
	RouteLogin = "/"
)

// Store holds the current session state. It starts unresolved (loading with
// no user) and applies every provider-emitted state change in the order
// received, including the initial resolution.
type Store struct {
	provider    Provider
	navigate    func(route string)
	unsubscribe func()

	mu        sync.Mutex
	current   *Identity
	loading   bool
	listeners map[int]func()
	nextSub   int
}

// NewStore creates a session store over the given provider and registers
// its single state-change listener. navigate may be nil when the caller has
// no routing concern.
func NewStore(p Provider, navigate func(route string)) *Store {
	s := &Store{
		provider:  p,
		navigate:  navigate,
		loading:   true,
		listeners: make(map[int]func()),
	}
	s.unsubscribe = p.OnStateChanged(s.apply)
	return s
}

func (s *Store) apply(id *Identity) {
	s.mu.Lock()
	if id != nil {
		copied := *id
		s.current = &copied
		log.WithField("user", copied.ID).Debug("session state changed")
	} else {
		s.current = nil
		log.Debug("session ended")
	}
	s.loading = false
	fns := make([]func(), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// BeginFederatedLogin runs the provider's interactive sign-in flow and
// navigates to the task route on success. The loading flag is raised for
// the duration and reset on failure; on success the provider's state-change
// event resets it.
func (s *Store) BeginFederatedLogin(ctx context.Context) (Identity, error) {
	s.setLoading(true)
	id, err := s.provider.BeginLogin(ctx)
	if err != nil {
		s.setLoading(false)
		return Identity{}, &domain.AuthError{Op: "login", Err: err}
	}
	if s.navigate != nil {
		s.navigate(RouteTasks)
	}
	return id, nil
}

// EndSession terminates the provider session and navigates to the login
// route on success.
func (s *Store) EndSession(ctx context.Context) error {
	s.setLoading(true)
	if err := s.provider.EndSession(ctx); err != nil {
		s.setLoading(false)
		return &domain.AuthError{Op: "logout", Err: err}
	}
	if s.navigate != nil {
		s.navigate(RouteLogin)
	}
	return nil
}

// Current returns the signed-in identity, if any.
func (s *Store) Current() (Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Identity{}, false
	}
	return *s.current, true
}

// CurrentUserID returns the signed-in user's id, if any.
func (s *Store) CurrentUserID() (string, bool) {
	id, ok := s.Current()
	return id.ID, ok
}

// Loading reports whether the session state is still being resolved or a
// login/logout transition is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Subscribe registers fn to run after every session state change and
// returns its unsubscribe function.
func (s *Store) Subscribe(fn func()) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Close detaches the store from the provider.
func (s *Store) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

func (s *Store) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}
