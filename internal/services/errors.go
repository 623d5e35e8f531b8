package services

import "fmt"

// ValidationError rejects an upload or request before any side effect.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// StorageError means the object-storage backend rejected or could not be
// reached. The pipeline fails closed on it: no metadata row is created.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// PersistenceError means the metadata write failed. Stored reports whether
// the object had already been written to storage when the failure happened,
// so callers can distinguish partial success from a clean failure.
type PersistenceError struct {
	Err    error
	Stored bool
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NotFoundError covers ids that do not exist or are not owned by the caller.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return e.Resource + " not found"
}

// AuthenticationError is a missing or invalid bearer credential.
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	return e.Reason
}
