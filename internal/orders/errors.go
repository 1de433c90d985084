package orders

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Store implementations when a referenced order or product does not exist.
var ErrNotFound = errors.New("not found")

type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindStore      Kind = "store"
)

// Error is the only error type the Manager returns. Message is safe to show to callers.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf reports the kind of err, KindStore for anything not produced by the Manager.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStore
}

func validationError(op, msg string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: msg}
}

func conflictError(op, msg string) *Error {
	return &Error{Kind: KindConflict, Op: op, Message: msg}
}

// storeFailure classifies an error coming back from the Store.
// notFoundMsg is used when the store reports a missing entity.
func storeFailure(op, notFoundMsg string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, ErrNotFound) {
		return &Error{Kind: KindNotFound, Op: op, Message: notFoundMsg, Err: err}
	}
	return &Error{Kind: KindStore, Op: op, Message: "storage failure", Err: err}
}
