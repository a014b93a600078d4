package db

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the referenced transaction does not exist.
// Callers that treat a second delete as a no-op must tolerate it.
var ErrNotFound = errors.New("transaction not found")

// ErrStale is returned by MarkSynced when the transaction was edited after
// the caller read it. The newer local content still needs a push; marking it
// synced anyway would hide the edit from every future pass.
var ErrStale = errors.New("transaction edited since read")

// StorageError wraps a local persistence failure. Storage errors are fatal
// to the calling operation and are surfaced to the caller for display.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("local store: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
