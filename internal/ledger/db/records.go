package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/localledger/ledger/internal/ledger/schema"
)

const timeLayout = time.RFC3339Nano

// CreateParams are the user-supplied fields of a new transaction.
type CreateParams struct {
	CategoryID int64
	Amount     string
	Date       schema.Date
	Notes      string
}

// UpdateParams are the fields of a partial edit. Nil fields are left as-is.
type UpdateParams struct {
	CategoryID *int64
	Amount     *string
	Date       *schema.Date
	Notes      *string
}

// Create inserts a new transaction. The store assigns the id and timestamps;
// the record always starts unsynced with no remote link.
func (s *Store) Create(ctx context.Context, params CreateParams) (*schema.Transaction, error) {
	now := time.Now()
	txn := &schema.Transaction{
		ID:         uuid.NewString(),
		CategoryID: params.CategoryID,
		Amount:     params.Amount,
		Date:       params.Date,
		Notes:      params.Notes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := txn.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transaction: %w", err)
	}

	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO transactions
			(id, category_id, amount, occurred_on, notes, created_at, updated_at, synced, remote_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, NULL)`,
		txn.ID, txn.CategoryID, txn.Amount, txn.Date.String(), txn.Notes,
		txn.CreatedAt.Format(timeLayout), txn.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		return nil, &StorageError{Op: "create", Err: err}
	}

	s.notify(Event{Op: OpCreate, ID: txn.ID})
	return txn, nil
}

// Update merges the given fields into an existing transaction, refreshes
// updated_at, and resets the synced flag so the next push re-sends it.
// Returns ErrNotFound if the id is absent.
func (s *Store) Update(ctx context.Context, id string, params UpdateParams) (*schema.Transaction, error) {
	txn, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if params.CategoryID != nil {
		txn.CategoryID = *params.CategoryID
	}
	if params.Amount != nil {
		txn.Amount = *params.Amount
	}
	if params.Date != nil {
		txn.Date = *params.Date
	}
	if params.Notes != nil {
		txn.Notes = *params.Notes
	}
	txn.UpdatedAt = time.Now()
	// Any content mutation drives a re-push, even if previously synced.
	txn.Synced = false

	if err := txn.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transaction: %w", err)
	}

	res, err := s.conn.ExecContext(ctx, `
		UPDATE transactions
		SET category_id = ?, amount = ?, occurred_on = ?, notes = ?, updated_at = ?, synced = 0
		WHERE id = ?`,
		txn.CategoryID, txn.Amount, txn.Date.String(), txn.Notes,
		txn.UpdatedAt.Format(timeLayout), id,
	)
	if err != nil {
		return nil, &StorageError{Op: "update", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}

	s.notify(Event{Op: OpUpdate, ID: id})
	return txn, nil
}

// Delete removes a transaction unconditionally from the local store.
//
// If the record was linked to a remote row, the remote id is enqueued into
// pending_remote_deletes in the same local transaction; the queue is drained
// by later push passes. Local deletion never waits on, or is reversed by,
// the remote side. Returns ErrNotFound if the id is absent.
func (s *Store) Delete(ctx context.Context, id string) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return &StorageError{Op: "delete", Err: err}
	}
	defer tx.Rollback()

	var remoteID sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT remote_id FROM transactions WHERE id = ?`, id).Scan(&remoteID)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return &StorageError{Op: "delete", Err: err}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id); err != nil {
		return &StorageError{Op: "delete", Err: err}
	}

	if remoteID.Valid {
		_, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO pending_remote_deletes (remote_id, queued_at)
			VALUES (?, ?)`,
			remoteID.Int64, time.Now().Format(timeLayout))
		if err != nil {
			return &StorageError{Op: "delete", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &StorageError{Op: "delete", Err: err}
	}

	s.notify(Event{Op: OpDelete, ID: id})
	return nil
}

// MarkSynced records that the remote store reflects the transaction as it
// looked when the caller read it, identified by seen (the read-time
// updated_at). It sets the synced flag and stores the remote id without
// touching any other field: a sync is not a user-visible mutation, so
// updated_at stays put and no observer event fires.
//
// The flag is only set when updated_at still equals seen. If an edit landed
// after the read, the remote link is stored but the record stays unsynced
// and ErrStale is returned, so the newer content is re-pushed by a later
// pass instead of being silently shadowed by the stale remote row. Returns
// ErrNotFound if the record was deleted meanwhile.
func (s *Store) MarkSynced(ctx context.Context, id string, remoteID int64, seen time.Time) error {
	res, err := s.conn.ExecContext(ctx,
		`UPDATE transactions SET synced = 1, remote_id = ? WHERE id = ? AND updated_at = ?`,
		remoteID, id, seen.Format(timeLayout))
	if err != nil {
		return &StorageError{Op: "mark synced", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	// The row was edited after seen, or deleted. Keep the remote link if the
	// row is still there; the synced flag stays as the edit left it.
	res, err = s.conn.ExecContext(ctx,
		`UPDATE transactions SET remote_id = ? WHERE id = ?`, remoteID, id)
	if err != nil {
		return &StorageError{Op: "mark synced", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return ErrStale
}

// QueueRemoteDelete enqueues a remote row id for deletion by later push
// passes. Delete does this automatically for linked records; this entry
// point covers a record deleted while its first push was in flight, whose
// remote row would otherwise be orphaned. Idempotent.
func (s *Store) QueueRemoteDelete(ctx context.Context, remoteID int64) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT OR IGNORE INTO pending_remote_deletes (remote_id, queued_at)
		VALUES (?, ?)`,
		remoteID, time.Now().Format(timeLayout))
	if err != nil {
		return &StorageError{Op: "queue delete", Err: err}
	}
	return nil
}

// Import inserts a transaction pulled from the remote store. The row starts
// already synced and linked; it must carry a RemoteID. No observer event
// fires: pull imports surface through the coordinator's status fan-out.
func (s *Store) Import(ctx context.Context, txn *schema.Transaction) error {
	if txn.RemoteID == nil {
		return fmt.Errorf("import requires a remote id for %s", txn.ID)
	}
	txn.Synced = true
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now()
	}
	if txn.UpdatedAt.IsZero() {
		txn.UpdatedAt = txn.CreatedAt
	}
	if err := txn.Validate(); err != nil {
		return fmt.Errorf("invalid transaction: %w", err)
	}

	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO transactions
			(id, category_id, amount, occurred_on, notes, created_at, updated_at, synced, remote_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?)`,
		txn.ID, txn.CategoryID, txn.Amount, txn.Date.String(), txn.Notes,
		txn.CreatedAt.Format(timeLayout), txn.UpdatedAt.Format(timeLayout),
		*txn.RemoteID,
	)
	if err != nil {
		return &StorageError{Op: "import", Err: err}
	}
	return nil
}

// Get retrieves a single transaction by id.
func (s *Store) Get(ctx context.Context, id string) (*schema.Transaction, error) {
	row := s.conn.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	txn, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &StorageError{Op: "get", Err: err}
	}
	return txn, nil
}

// ListAll returns every transaction ordered by date descending, then
// creation time descending (newest first, the order the UI shows them).
func (s *Store) ListAll(ctx context.Context) ([]*schema.Transaction, error) {
	rows, err := s.conn.QueryContext(ctx,
		selectColumns+` ORDER BY occurred_on DESC, created_at DESC`)
	if err != nil {
		return nil, &StorageError{Op: "list", Err: err}
	}
	defer rows.Close()
	return scanTransactions(rows)
}

// ListByMonth returns the transactions whose date falls inside the given
// calendar month, using a half-open range over the zero-padded date string.
func (s *Store) ListByMonth(ctx context.Context, year int, month time.Month) ([]*schema.Transaction, error) {
	from, to := schema.MonthRange(year, month)
	rows, err := s.conn.QueryContext(ctx,
		selectColumns+` WHERE occurred_on >= ? AND occurred_on < ?
		ORDER BY occurred_on DESC, created_at DESC`, from, to)
	if err != nil {
		return nil, &StorageError{Op: "list by month", Err: err}
	}
	defer rows.Close()
	return scanTransactions(rows)
}

// ListUnsynced returns every transaction the remote store does not yet
// reflect, oldest first so a partial push pass clears the backlog in order.
func (s *Store) ListUnsynced(ctx context.Context) ([]*schema.Transaction, error) {
	rows, err := s.conn.QueryContext(ctx,
		selectColumns+` WHERE synced = 0 ORDER BY created_at ASC`)
	if err != nil {
		return nil, &StorageError{Op: "list unsynced", Err: err}
	}
	defer rows.Close()
	return scanTransactions(rows)
}

// PendingRemoteDeletes returns the remote row ids queued for deletion,
// oldest first.
func (s *Store) PendingRemoteDeletes(ctx context.Context) ([]int64, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT remote_id FROM pending_remote_deletes ORDER BY queued_at ASC`)
	if err != nil {
		return nil, &StorageError{Op: "pending deletes", Err: err}
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, &StorageError{Op: "pending deletes", Err: err}
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "pending deletes", Err: err}
	}
	return ids, nil
}

// DequeueRemoteDelete removes a remote id from the delete queue after the
// remote delete succeeded. Removing an absent id is a no-op.
func (s *Store) DequeueRemoteDelete(ctx context.Context, remoteID int64) error {
	_, err := s.conn.ExecContext(ctx,
		`DELETE FROM pending_remote_deletes WHERE remote_id = ?`, remoteID)
	if err != nil {
		return &StorageError{Op: "dequeue delete", Err: err}
	}
	return nil
}

const selectColumns = `
	SELECT id, category_id, amount, occurred_on, notes, created_at, updated_at, synced, remote_id
	FROM transactions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*schema.Transaction, error) {
	var (
		txn        schema.Transaction
		occurredOn string
		createdAt  string
		updatedAt  string
		synced     int
		remoteID   sql.NullInt64
	)

	err := row.Scan(&txn.ID, &txn.CategoryID, &txn.Amount, &occurredOn,
		&txn.Notes, &createdAt, &updatedAt, &synced, &remoteID)
	if err != nil {
		return nil, err
	}

	date, err := schema.ParseDate(occurredOn)
	if err != nil {
		return nil, fmt.Errorf("corrupt occurred_on for %s: %w", txn.ID, err)
	}
	txn.Date = date

	if t, err := time.Parse(timeLayout, createdAt); err == nil {
		txn.CreatedAt = t
	}
	if t, err := time.Parse(timeLayout, updatedAt); err == nil {
		txn.UpdatedAt = t
	}

	txn.Synced = synced != 0
	if remoteID.Valid {
		id := remoteID.Int64
		txn.RemoteID = &id
	}
	return &txn, nil
}

func scanTransactions(rows *sql.Rows) ([]*schema.Transaction, error) {
	var txns []*schema.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, &StorageError{Op: "scan", Err: err}
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "scan", Err: err}
	}
	return txns, nil
}
