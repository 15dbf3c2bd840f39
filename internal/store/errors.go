package store

import "errors"

var (
	// ErrNotFound indicates a missing record lookup.
	ErrNotFound = errors.New("record not found")

	// ErrVersionMismatch indicates an optimistic update lost a race: the
	// record's version changed between read and write. Callers may re-read
	// and retry.
	ErrVersionMismatch = errors.New("version mismatch")

	// ErrSerialization indicates the backend aborted a transaction to
	// preserve serializability. The whole transaction may be retried.
	ErrSerialization = errors.New("transaction serialization failure")

	// ErrDuplicateSubject indicates a principal upsert collided on subject.
	ErrDuplicateSubject = errors.New("duplicate principal subject")
)

// Retryable reports whether err is a transient write collision that a fresh
// transaction attempt could resolve.
func Retryable(err error) bool {
	return errors.Is(err, ErrVersionMismatch) || errors.Is(err, ErrSerialization)
}
