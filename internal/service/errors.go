package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Shivanand-hulikatti/train-reservation/internal/repository"
)

// Kind classifies every error returned by the service layer.
type Kind int

const (
	KindStorage    Kind = iota // transient, safe to retry
	KindValidation             // bad input
	KindNotFound               // train or ticket absent
	KindConflict               // insufficient seats, resource in use
	KindPolicy                 // booking or cancellation window violated
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindPolicy:
		return "policy"
	default:
		return "storage"
	}
}

// Error is the single error type the service layer returns. Callers switch on
// Kind rather than on message text.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Msg != "" {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the same request may succeed if sent again.
func (e *Error) Retryable() bool { return e.Kind == KindStorage }

// KindOf returns the Kind of err. Errors that did not come from this package
// are treated as storage failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}

func validationError(msg string) error {
	return &Error{Kind: KindValidation, Msg: msg}
}

func notFoundError(resource string) error {
	return &Error{Kind: KindNotFound, Msg: resource + " not found"}
}

func conflictError(msg string) error {
	return &Error{Kind: KindConflict, Msg: msg}
}

func policyError(msg string) error {
	return &Error{Kind: KindPolicy, Msg: msg}
}

func storageError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindStorage, Msg: op + ": storage timeout", Err: err}
	}
	return &Error{Kind: KindStorage, Msg: op, Err: err}
}

// lookupError maps a repository lookup failure onto NotFound or Storage.
func lookupError(resource string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return notFoundError(resource)
	}
	return storageError("get "+resource, err)
}
