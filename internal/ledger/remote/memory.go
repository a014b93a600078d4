package remote

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Memory is an in-process Store implementation.
//
// It enforces the same (owner, local_id) uniqueness contract as the Postgres
// implementation, including returning ErrDuplicate, so reconciler tests
// exercise the real conflict path. FailFor lets a test make calls for a
// specific local id fail with a generic remote error.
type Memory struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*Record
	byKey  map[string]int64 // owner + "\x00" + localID -> row id

	// FailFor makes Insert/Update for these local ids return an error
	// that is not ErrDuplicate.
	FailFor map[string]bool

	// FailDeleteFor makes Delete for these row ids return an error.
	FailDeleteFor map[int64]bool

	// Writes counts Insert, Update, and Delete calls that reached the
	// store, including failed ones. Idempotency tests assert on it.
	Writes int
}

// NewMemory creates an empty in-memory remote store.
func NewMemory() *Memory {
	return &Memory{
		rows:          make(map[int64]*Record),
		byKey:         make(map[string]int64),
		FailFor:       make(map[string]bool),
		FailDeleteFor: make(map[int64]bool),
	}
}

func key(owner, localID string) string {
	return owner + "\x00" + localID
}

// Insert implements Store.Insert.
func (m *Memory) Insert(ctx context.Context, rec *Record) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Writes++
	if m.FailFor[rec.LocalID] {
		return 0, fmt.Errorf("injected remote failure for %s", rec.LocalID)
	}
	if _, exists := m.byKey[key(rec.Owner, rec.LocalID)]; exists {
		return 0, fmt.Errorf("insert %s for %s: %w", rec.LocalID, rec.Owner, ErrDuplicate)
	}

	m.nextID++
	stored := *rec
	stored.ID = m.nextID
	m.rows[stored.ID] = &stored
	m.byKey[key(rec.Owner, rec.LocalID)] = stored.ID
	return stored.ID, nil
}

// Update implements Store.Update.
func (m *Memory) Update(ctx context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Writes++
	if m.FailFor[rec.LocalID] {
		return fmt.Errorf("injected remote failure for %s", rec.LocalID)
	}
	existing, ok := m.rows[rec.ID]
	if !ok || existing.Owner != rec.Owner {
		return fmt.Errorf("update remote row %d for %s: %w", rec.ID, rec.Owner, ErrNotFound)
	}

	existing.CategoryID = rec.CategoryID
	existing.Amount = rec.Amount
	existing.Date = rec.Date
	existing.Notes = rec.Notes
	return nil
}

// Delete implements Store.Delete. Deleting an absent row succeeds.
func (m *Memory) Delete(ctx context.Context, owner string, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Writes++
	if m.FailDeleteFor[id] {
		return fmt.Errorf("injected remote failure deleting row %d", id)
	}
	rec, ok := m.rows[id]
	if !ok || rec.Owner != owner {
		return nil
	}
	delete(m.byKey, key(rec.Owner, rec.LocalID))
	delete(m.rows, id)
	return nil
}

// ListByOwner implements Store.ListByOwner.
func (m *Memory) ListByOwner(ctx context.Context, owner string) ([]*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var recs []*Record
	for _, rec := range m.rows {
		if rec.Owner == owner {
			copied := *rec
			recs = append(recs, &copied)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
	return recs, nil
}

// FindByLocalID implements Store.FindByLocalID.
func (m *Memory) FindByLocalID(ctx context.Context, owner, localID string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byKey[key(owner, localID)]
	if !ok {
		return nil, fmt.Errorf("lookup %s for %s: %w", localID, owner, ErrNotFound)
	}
	copied := *m.rows[id]
	return &copied, nil
}

// Count returns the number of rows across all owners.
func (m *Memory) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}
