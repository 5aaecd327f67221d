package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound signals a missing or expired search session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExists signals an id collision on create.
	ErrSessionExists = errors.New("session already exists")
	// ErrProfileNotFound signals an unknown session profile.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrUnknownCommand signals a state operation the service does not know.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrInvalidCommand signals a command missing a required argument.
	ErrInvalidCommand = errors.New("invalid command")

	// ErrRevisionConflict signals an optimistic locking conflict.
	ErrRevisionConflict = errors.New("revision conflict")
)

// RevisionConflictError wraps ErrRevisionConflict with the current resource revision.
type RevisionConflictError struct {
	CurrentRevision int
}

func (e *RevisionConflictError) Error() string {
	return fmt.Sprintf("%s: current revision is %d", ErrRevisionConflict.Error(), e.CurrentRevision)
}

func (e *RevisionConflictError) Unwrap() error { return ErrRevisionConflict }

// NewRevisionConflict creates a revision conflict error.
func NewRevisionConflict(currentRevision int) error {
	return &RevisionConflictError{CurrentRevision: currentRevision}
}

// KeyPrefix is the default prefix of every key the service writes.
const KeyPrefix = "refine:"
