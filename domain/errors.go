package domain

import "errors"

// ErrNotAuthenticated indicates an operation was attempted with no signed-in
// user. The operation performs no network call.
var ErrNotAuthenticated = errors.New("not authenticated")

// ErrTaskNotFound indicates a mutation targeted an id that does not exist in
// the store.
var ErrTaskNotFound = errors.New("task not found")

// AuthError wraps a failure of the interactive login or logout flow.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string { return "auth " + e.Op + ": " + e.Err.Error() }

func (e *AuthError) Unwrap() error { return e.Err }

// RepositoryError wraps a transport or provider failure on a store call.
type RepositoryError struct {
	Op  string
	Err error
}

func (e *RepositoryError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *RepositoryError) Unwrap() error { return e.Err }

// ValidationError rejects a request field before it reaches the store.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string { return e.Field + " " + e.Reason }
