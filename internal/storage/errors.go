package storage

import (
	"errors"
	"fmt"
)

// Errors reported by every backend. Callers match them with errors.Is.
var (
	ErrNotFound     = errors.New("object not found")
	ErrInvalidKey   = errors.New("invalid storage key") // empty, absolute or containing ".."
	ErrAccessDenied = errors.New("access denied")
)

// StorageError records which object operation failed.
type StorageError struct {
	Op  string // "Put", "Delete" or "URL"
	Key string
	Err error
}

func (e *StorageError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
