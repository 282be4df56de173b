package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	// ErrRetryable marks serialization failures and deadlocks; the whole
	// transaction may be replayed.
	ErrRetryable = errors.New("retryable transaction failure")
	// ErrCapacity is returned when a sold counter update would leave
	// [0, ticket_count].
	ErrCapacity = errors.New("capacity bounds violated")
	// ErrPrecondition is returned when a conditional update matched no row.
	ErrPrecondition = errors.New("precondition failed")
)
