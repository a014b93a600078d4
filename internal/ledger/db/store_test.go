package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/localledger/ledger/internal/ledger/schema"
)

func setupStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ledger.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.InitSchema(context.Background()); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}
	return store
}

func createTxn(t *testing.T, store *Store, amount, date string) *schema.Transaction {
	t.Helper()

	d, err := schema.ParseDate(date)
	if err != nil {
		t.Fatalf("bad test date %q: %v", date, err)
	}
	txn, err := store.Create(context.Background(), CreateParams{
		CategoryID: 7,
		Amount:     amount,
		Date:       d,
		Notes:      "test",
	})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	return txn
}

func TestCreate_Defaults(t *testing.T) {
	store := setupStore(t)
	txn := createTxn(t, store, "-12.50", "2025-02-01")

	if txn.ID == "" {
		t.Error("Create() did not assign an id")
	}
	if txn.Synced {
		t.Error("new transaction starts synced, want unsynced")
	}
	if txn.RemoteID != nil {
		t.Error("new transaction has a remote id, want nil")
	}

	got, err := store.Get(context.Background(), txn.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Amount != "-12.50" || got.Date.String() != "2025-02-01" {
		t.Errorf("Get() = amount %q date %s, want -12.50 2025-02-01", got.Amount, got.Date)
	}
}

func TestUpdate_ResetsSynced(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	txn := createTxn(t, store, "10", "2025-02-01")

	if err := store.MarkSynced(ctx, txn.ID, 99, txn.UpdatedAt); err != nil {
		t.Fatalf("MarkSynced() failed: %v", err)
	}

	amount := "11"
	updated, err := store.Update(ctx, txn.ID, UpdateParams{Amount: &amount})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if updated.Synced {
		t.Error("Update() left transaction synced, want unsynced")
	}
	if updated.RemoteID == nil || *updated.RemoteID != 99 {
		t.Error("Update() must keep the remote link")
	}

	got, _ := store.Get(ctx, txn.ID)
	if got.Synced {
		t.Error("stored transaction still synced after edit")
	}
	if !got.UpdatedAt.After(txn.UpdatedAt) {
		t.Error("Update() did not refresh updated_at")
	}
}

func TestUpdate_NotFound(t *testing.T) {
	store := setupStore(t)
	amount := "1"
	_, err := store.Update(context.Background(), "missing", UpdateParams{Amount: &amount})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Update(missing) = %v, want ErrNotFound", err)
	}
}

func TestMarkSynced_DoesNotTouchUpdatedAt(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	txn := createTxn(t, store, "10", "2025-02-01")

	if err := store.MarkSynced(ctx, txn.ID, 42, txn.UpdatedAt); err != nil {
		t.Fatalf("MarkSynced() failed: %v", err)
	}

	got, err := store.Get(ctx, txn.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if !got.Synced {
		t.Error("transaction not synced after MarkSynced")
	}
	if got.RemoteID == nil || *got.RemoteID != 42 {
		t.Error("MarkSynced did not store the remote id")
	}
	if !got.UpdatedAt.Equal(txn.UpdatedAt) {
		t.Error("MarkSynced changed updated_at; a sync is not a user mutation")
	}
}

func TestMarkSynced_StaleAfterEdit(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	txn := createTxn(t, store, "10", "2025-02-01")

	// An edit lands after the caller read the record.
	amount := "99.99"
	if _, err := store.Update(ctx, txn.ID, UpdateParams{Amount: &amount}); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}

	err := store.MarkSynced(ctx, txn.ID, 42, txn.UpdatedAt)
	if !errors.Is(err, ErrStale) {
		t.Fatalf("MarkSynced() with stale read = %v, want ErrStale", err)
	}

	got, err := store.Get(ctx, txn.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Synced {
		t.Error("stale MarkSynced set the synced flag over a newer edit")
	}
	if got.RemoteID == nil || *got.RemoteID != 42 {
		t.Error("stale MarkSynced must still record the remote link")
	}
	if got.Amount != "99.99" {
		t.Errorf("amount = %q, want the edit preserved", got.Amount)
	}

	// A mark against the current state succeeds.
	if err := store.MarkSynced(ctx, txn.ID, 42, got.UpdatedAt); err != nil {
		t.Fatalf("MarkSynced() with fresh read failed: %v", err)
	}
}

func TestMarkSynced_NotFound(t *testing.T) {
	store := setupStore(t)
	err := store.MarkSynced(context.Background(), "missing", 1, time.Now())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkSynced(missing) = %v, want ErrNotFound", err)
	}
}

func TestQueueRemoteDelete(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	if err := store.QueueRemoteDelete(ctx, 7); err != nil {
		t.Fatalf("QueueRemoteDelete() failed: %v", err)
	}
	// Queueing the same id twice keeps one entry.
	if err := store.QueueRemoteDelete(ctx, 7); err != nil {
		t.Fatalf("second QueueRemoteDelete() failed: %v", err)
	}

	pending, err := store.PendingRemoteDeletes(ctx)
	if err != nil {
		t.Fatalf("PendingRemoteDeletes() failed: %v", err)
	}
	if len(pending) != 1 || pending[0] != 7 {
		t.Errorf("pending deletes = %v, want [7]", pending)
	}
}

func TestDelete(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	txn := createTxn(t, store, "10", "2025-02-01")

	if err := store.Delete(ctx, txn.ID); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := store.Get(ctx, txn.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete = %v, want ErrNotFound", err)
	}

	// Second delete fails with ErrNotFound; callers tolerate it as a no-op.
	if err := store.Delete(ctx, txn.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() = %v, want ErrNotFound", err)
	}
}

func TestDelete_QueuesRemoteDelete(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	linked := createTxn(t, store, "10", "2025-02-01")
	unlinked := createTxn(t, store, "20", "2025-02-02")

	if err := store.MarkSynced(ctx, linked.ID, 77, linked.UpdatedAt); err != nil {
		t.Fatalf("MarkSynced() failed: %v", err)
	}

	if err := store.Delete(ctx, linked.ID); err != nil {
		t.Fatalf("Delete(linked) failed: %v", err)
	}
	if err := store.Delete(ctx, unlinked.ID); err != nil {
		t.Fatalf("Delete(unlinked) failed: %v", err)
	}

	pending, err := store.PendingRemoteDeletes(ctx)
	if err != nil {
		t.Fatalf("PendingRemoteDeletes() failed: %v", err)
	}
	if len(pending) != 1 || pending[0] != 77 {
		t.Errorf("pending deletes = %v, want [77]", pending)
	}

	if err := store.DequeueRemoteDelete(ctx, 77); err != nil {
		t.Fatalf("DequeueRemoteDelete() failed: %v", err)
	}
	pending, _ = store.PendingRemoteDeletes(ctx)
	if len(pending) != 0 {
		t.Errorf("pending deletes after dequeue = %v, want empty", pending)
	}
}

func TestImport_StartsSynced(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	remoteID := int64(501)
	err := store.Import(ctx, &schema.Transaction{
		ID:         "from-other-device",
		CategoryID: 3,
		Amount:     "42.00",
		Date:       schema.NewDate(2025, time.January, 15),
		RemoteID:   &remoteID,
	})
	if err != nil {
		t.Fatalf("Import() failed: %v", err)
	}

	got, err := store.Get(ctx, "from-other-device")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if !got.Synced {
		t.Error("imported transaction not synced")
	}
	if got.RemoteID == nil || *got.RemoteID != 501 {
		t.Error("imported transaction lost its remote id")
	}
}

func TestListByMonth(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	createTxn(t, store, "1", "2025-01-31")
	feb1 := createTxn(t, store, "2", "2025-02-01")
	feb28 := createTxn(t, store, "3", "2025-02-28")

	got, err := store.ListByMonth(ctx, 2025, time.February)
	if err != nil {
		t.Fatalf("ListByMonth() failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListByMonth() returned %d transactions, want 2", len(got))
	}

	ids := map[string]bool{got[0].ID: true, got[1].ID: true}
	if !ids[feb1.ID] || !ids[feb28.ID] {
		t.Errorf("ListByMonth() returned wrong rows: %v", ids)
	}
}

func TestListUnsynced(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	a := createTxn(t, store, "1", "2025-02-01")
	b := createTxn(t, store, "2", "2025-02-02")
	if err := store.MarkSynced(ctx, a.ID, 1, a.UpdatedAt); err != nil {
		t.Fatalf("MarkSynced() failed: %v", err)
	}

	got, err := store.ListUnsynced(ctx)
	if err != nil {
		t.Fatalf("ListUnsynced() failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != b.ID {
		t.Errorf("ListUnsynced() = %d rows, want just %s", len(got), b.ID)
	}
}

func TestStatus(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	a := createTxn(t, store, "1", "2025-02-01")
	createTxn(t, store, "2", "2025-02-02")
	createTxn(t, store, "3", "2025-02-03")
	if err := store.MarkSynced(ctx, a.ID, 1, a.UpdatedAt); err != nil {
		t.Fatalf("MarkSynced() failed: %v", err)
	}

	st, err := store.Status(ctx)
	if err != nil {
		t.Fatalf("Status() failed: %v", err)
	}
	if st.Total != 3 || st.Synced != 1 || st.Unsynced != 2 {
		t.Errorf("Status() = %+v, want {3 1 2}", st)
	}
}

func TestSubscribe_FiresOnWritesOnly(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	var events []Event
	unsubscribe := store.Subscribe(func(ev Event) { events = append(events, ev) })

	txn := createTxn(t, store, "1", "2025-02-01")
	amount := "2"
	updated, err := store.Update(ctx, txn.ID, UpdateParams{Amount: &amount})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if err := store.MarkSynced(ctx, txn.ID, 5, updated.UpdatedAt); err != nil {
		t.Fatalf("MarkSynced() failed: %v", err)
	}
	if err := store.Delete(ctx, txn.ID); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}

	want := []EventOp{OpCreate, OpUpdate, OpDelete}
	if len(events) != len(want) {
		t.Fatalf("observer saw %d events, want %d (MarkSynced must not notify)", len(events), len(want))
	}
	for i, op := range want {
		if events[i].Op != op {
			t.Errorf("event %d = %s, want %s", i, events[i].Op, op)
		}
	}

	unsubscribe()
	createTxn(t, store, "3", "2025-02-02")
	if len(events) != len(want) {
		t.Error("observer still notified after unsubscribe")
	}
}

func TestReset(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	txn := createTxn(t, store, "1", "2025-02-01")
	if err := store.MarkSynced(ctx, txn.ID, 9, txn.UpdatedAt); err != nil {
		t.Fatalf("MarkSynced() failed: %v", err)
	}
	if err := store.Delete(ctx, txn.ID); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}

	if err := store.Reset(ctx); err != nil {
		t.Fatalf("Reset() failed: %v", err)
	}

	st, _ := store.Status(ctx)
	if st.Total != 0 {
		t.Errorf("Status().Total = %d after reset, want 0", st.Total)
	}
	pending, _ := store.PendingRemoteDeletes(ctx)
	if len(pending) != 0 {
		t.Errorf("pending deletes after reset = %v, want empty", pending)
	}
}
