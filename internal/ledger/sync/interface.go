package sync

import "context"

// PushResult summarizes one push pass.
type PushResult struct {
	// Skipped is true when the pass did not run because the device was
	// offline or no identity was available.
	Skipped bool

	// Pushed counts records inserted or updated remotely and marked synced.
	Pushed int
	// Recovered counts records linked to an existing remote row after a
	// duplicate-key conflict.
	Recovered int
	// Failed counts records left unsynced for a later pass.
	Failed int

	// DeletesFlushed and DeletesFailed count the drained and still-queued
	// entries of the pending remote delete queue.
	DeletesFlushed int
	DeletesFailed  int
}

// PullResult summarizes one pull pass.
type PullResult struct {
	// Skipped is true when the pass did not run because the device was
	// offline or no identity was available.
	Skipped bool

	// Imported counts remote rows materialized as new local transactions.
	Imported int
	// Failed counts rows that could not be imported this pass.
	Failed int
}

// Reconciler moves records between the local store and the remote replica.
//
// Both operations are stateless over the store contents and idempotent.
// Individual item failures are logged and never abort a pass; the returned
// error is reserved for local storage failures that make the pass itself
// impossible.
type Reconciler interface {
	// Push sends every unsynced local transaction to the remote store and
	// drains the pending remote delete queue.
	Push(ctx context.Context) (PushResult, error)

	// Pull imports remote rows not yet known locally.
	Pull(ctx context.Context) (PullResult, error)
}
