package sync

import (
	"context"
	"errors"
	"log"
	"os"

	"github.com/localledger/ledger/internal/ledger/db"
	"github.com/localledger/ledger/internal/ledger/identity"
	"github.com/localledger/ledger/internal/ledger/netmon"
	"github.com/localledger/ledger/internal/ledger/remote"
	"github.com/localledger/ledger/internal/ledger/schema"
)

// reconciler implements the Reconciler interface.
type reconciler struct {
	store  *db.Store
	remote remote.Store
	ident  identity.Provider
	net    netmon.Status
	logger *log.Logger
}

// New creates a Reconciler over the given stores.
//
// If logger is nil, a default logger writing to stderr is used.
func New(store *db.Store, rem remote.Store, ident identity.Provider, net netmon.Status, logger *log.Logger) Reconciler {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &reconciler{
		store:  store,
		remote: rem,
		ident:  ident,
		net:    net,
		logger: logger,
	}
}

// owner resolves the account, reporting whether the pass may proceed.
func (r *reconciler) owner(ctx context.Context) (string, bool) {
	if !r.net.Online() {
		return "", false
	}
	owner, err := r.ident.Account(ctx)
	if err != nil {
		if !errors.Is(err, identity.ErrUnauthenticated) {
			r.logger.Printf("identity unavailable: %v", err)
		}
		return "", false
	}
	return owner, true
}

// Push implements Reconciler.Push.
func (r *reconciler) Push(ctx context.Context) (PushResult, error) {
	owner, ok := r.owner(ctx)
	if !ok {
		return PushResult{Skipped: true}, nil
	}

	unsynced, err := r.store.ListUnsynced(ctx)
	if err != nil {
		return PushResult{}, err
	}

	var res PushResult
	for _, txn := range unsynced {
		if txn.RemoteID != nil {
			r.pushUpdate(ctx, owner, txn, &res)
		} else {
			r.pushInsert(ctx, owner, txn, &res)
		}
	}

	r.flushPendingDeletes(ctx, owner, &res)

	if res.Pushed+res.Recovered+res.Failed+res.DeletesFlushed+res.DeletesFailed > 0 {
		r.logger.Printf("push complete: pushed=%d recovered=%d failed=%d deletes=%d (failed=%d)",
			res.Pushed, res.Recovered, res.Failed, res.DeletesFlushed, res.DeletesFailed)
	}
	return res, nil
}

// pushUpdate re-sends a previously pushed record that was edited locally.
func (r *reconciler) pushUpdate(ctx context.Context, owner string, txn *schema.Transaction, res *PushResult) {
	if err := r.remote.Update(ctx, toRecord(owner, txn, *txn.RemoteID)); err != nil {
		r.logger.Printf("WARNING: failed to update remote row for %s: %v", txn.ID, err)
		res.Failed++
		return
	}
	r.acknowledge(ctx, txn, *txn.RemoteID, res, false)
}

// pushInsert sends a record that has never been acknowledged remotely.
//
// A duplicate-key conflict means a previous insert succeeded but the
// acknowledgment was lost; the record is relinked to the existing row. If
// the recovery lookup itself fails the record stays unsynced for a future
// pass — a remote id is never invented.
func (r *reconciler) pushInsert(ctx context.Context, owner string, txn *schema.Transaction, res *PushResult) {
	remoteID, err := r.remote.Insert(ctx, toRecord(owner, txn, 0))
	switch {
	case err == nil:
		r.acknowledge(ctx, txn, remoteID, res, false)

	case errors.Is(err, remote.ErrDuplicate):
		row, lookupErr := r.remote.FindByLocalID(ctx, owner, txn.ID)
		if lookupErr != nil {
			r.logger.Printf("WARNING: conflict recovery lookup failed for %s: %v", txn.ID, lookupErr)
			res.Failed++
			return
		}
		r.acknowledge(ctx, txn, row.ID, res, true)

	default:
		r.logger.Printf("WARNING: failed to insert remote row for %s: %v", txn.ID, err)
		res.Failed++
	}
}

// acknowledge records the remote acknowledgment locally, conditional on the
// record still looking the way the pass read it.
//
// An edit that landed while the remote call was in flight leaves the record
// unsynced (the remote link is kept), so the newer content is re-pushed on a
// later pass instead of being clobbered by the stale acknowledgment. A
// record deleted mid-flight has its remote row queued for deletion.
func (r *reconciler) acknowledge(ctx context.Context, txn *schema.Transaction, remoteID int64, res *PushResult, recovered bool) {
	switch err := r.store.MarkSynced(ctx, txn.ID, remoteID, txn.UpdatedAt); {
	case err == nil:
		if recovered {
			res.Recovered++
		} else {
			res.Pushed++
		}

	case errors.Is(err, db.ErrStale):
		r.logger.Printf("%s edited during push, leaving unsynced for re-push", txn.ID)
		res.Failed++

	case errors.Is(err, db.ErrNotFound):
		r.logger.Printf("%s deleted during push, queueing remote delete", txn.ID)
		if err := r.store.QueueRemoteDelete(ctx, remoteID); err != nil {
			r.logger.Printf("WARNING: failed to queue remote delete %d: %v", remoteID, err)
		}

	default:
		r.logger.Printf("WARNING: failed to mark %s synced: %v", txn.ID, err)
		res.Failed++
	}
}

// flushPendingDeletes retries remote deletes queued by local deletions.
// Failures stay queued; the local deletion is long done and never revisited.
func (r *reconciler) flushPendingDeletes(ctx context.Context, owner string, res *PushResult) {
	pending, err := r.store.PendingRemoteDeletes(ctx)
	if err != nil {
		r.logger.Printf("WARNING: failed to read pending remote deletes: %v", err)
		return
	}

	for _, remoteID := range pending {
		if err := r.remote.Delete(ctx, owner, remoteID); err != nil {
			r.logger.Printf("WARNING: failed to delete remote row %d: %v", remoteID, err)
			res.DeletesFailed++
			continue
		}
		if err := r.store.DequeueRemoteDelete(ctx, remoteID); err != nil {
			r.logger.Printf("WARNING: failed to dequeue remote delete %d: %v", remoteID, err)
			res.DeletesFailed++
			continue
		}
		res.DeletesFlushed++
	}
}

// Pull implements Reconciler.Pull.
func (r *reconciler) Pull(ctx context.Context) (PullResult, error) {
	owner, ok := r.owner(ctx)
	if !ok {
		return PullResult{Skipped: true}, nil
	}

	rows, err := r.remote.ListByOwner(ctx, owner)
	if err != nil {
		r.logger.Printf("WARNING: failed to list remote rows: %v", err)
		return PullResult{}, nil
	}

	locals, err := r.store.ListAll(ctx)
	if err != nil {
		return PullResult{}, err
	}

	knownLocal := make(map[string]bool, len(locals))
	linkedRemote := make(map[int64]bool, len(locals))
	for _, txn := range locals {
		knownLocal[txn.ID] = true
		if txn.RemoteID != nil {
			linkedRemote[*txn.RemoteID] = true
		}
	}

	var res PullResult
	for _, row := range rows {
		if knownLocal[row.LocalID] || linkedRemote[row.ID] {
			continue
		}

		remoteID := row.ID
		txn := &schema.Transaction{
			ID:         row.LocalID,
			CategoryID: row.CategoryID,
			Amount:     row.Amount,
			Date:       row.Date,
			Notes:      row.Notes,
			RemoteID:   &remoteID,
		}
		if err := r.store.Import(ctx, txn); err != nil {
			r.logger.Printf("WARNING: failed to import remote row %d: %v", row.ID, err)
			res.Failed++
			continue
		}
		res.Imported++
	}

	if res.Imported+res.Failed > 0 {
		r.logger.Printf("pull complete: imported=%d failed=%d", res.Imported, res.Failed)
	}
	return res, nil
}

func toRecord(owner string, txn *schema.Transaction, remoteID int64) *remote.Record {
	return &remote.Record{
		ID:         remoteID,
		Owner:      owner,
		LocalID:    txn.ID,
		CategoryID: txn.CategoryID,
		Amount:     txn.Amount,
		Date:       txn.Date,
		Notes:      txn.Notes,
	}
}
