// Package remote defines the surface of the server-side transaction store
// and its implementations.
//
// The remote store is an eventually-consistent replica of the local ledger,
// scoped per owner. Its one structural guarantee is a uniqueness constraint
// on (owner, local_id): local_id is the client-generated transaction id
// carried into the remote row, and it is what makes push idempotent. An
// insert that raced a lost acknowledgment fails with ErrDuplicate instead
// of creating a second row, and the client recovers by looking the row up.
//
// Only the reconciliation protocol talks to this package; the rest of the
// application reads exclusively from the local store.
package remote

import (
	"context"
	"errors"

	"github.com/localledger/ledger/internal/ledger/schema"
)

// ErrDuplicate is returned by Insert when a row with the same
// (owner, local_id) already exists. This is the recognized uniqueness
// violation of the reconciliation protocol, distinct from every other
// remote failure; detection is by error code, never message matching.
var ErrDuplicate = errors.New("remote row with this local id already exists")

// ErrNotFound is returned by lookups when no matching row exists.
var ErrNotFound = errors.New("remote row not found")

// Record is the server-side counterpart of a local transaction.
type Record struct {
	// ID is the server-assigned row identifier.
	ID int64
	// Owner identifies the account the row belongs to. Every query and
	// write is scoped by it.
	Owner string
	// LocalID is the originating local transaction id, unique per owner.
	LocalID string

	CategoryID int64
	Amount     string
	Date       schema.Date
	Notes      string
}

// Store is the row-level surface the reconciliation protocol consumes.
//
// Implementations must scope every operation by owner and must return
// ErrDuplicate from Insert on a (owner, local_id) uniqueness violation.
type Store interface {
	// Insert creates a new row and returns the server-assigned id.
	Insert(ctx context.Context, rec *Record) (int64, error)

	// Update rewrites the content fields of the row with rec.ID owned by
	// rec.Owner. Returns ErrNotFound if no such row exists.
	Update(ctx context.Context, rec *Record) error

	// Delete removes the row by server id, scoped to owner. Deleting an
	// absent row is a no-op: the caller retries deletes from a durable
	// queue and must be able to converge.
	Delete(ctx context.Context, owner string, id int64) error

	// ListByOwner returns every row belonging to the owner.
	ListByOwner(ctx context.Context, owner string) ([]*Record, error)

	// FindByLocalID returns the row matching (owner, localID), or
	// ErrNotFound. This is the conflict-recovery lookup.
	FindByLocalID(ctx context.Context, owner, localID string) (*Record, error)
}
