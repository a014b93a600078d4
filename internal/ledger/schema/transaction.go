package schema

import (
	"fmt"
	"regexp"
	"time"
)

// Transaction represents a single ledger entry in the local store.
//
// The local store is the source of truth for all reads; Synced and RemoteID
// are the bookkeeping that ties a local row to its remote counterpart. A
// transaction is synced iff the remote store currently reflects its last
// known mutation. RemoteID is set on the first successful push (or on pull
// import) and never changes afterwards.
type Transaction struct {
	// ID is the client-generated identifier, immutable for the lifetime
	// of the record. It is carried into the remote row as local_id and is
	// the idempotency key for push.
	ID string `json:"id"`

	// CategoryID references a subcategory in the external catalog. It is
	// stored as-is; the sync core never validates it against the catalog.
	CategoryID int64 `json:"category_id"`

	// Amount is a signed decimal kept at full precision as entered.
	// It is never parsed into a float inside the sync core.
	Amount string `json:"amount"`

	// Date is the calendar day the transaction occurred.
	Date Date `json:"date"`

	// Notes is optional free text.
	Notes string `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Synced is true iff the remote store holds this record's last
	// known mutation. Any user edit resets it to false.
	Synced bool `json:"synced"`

	// RemoteID is the identifier of the corresponding remote row, nil
	// until the record has been pushed or imported.
	RemoteID *int64 `json:"remote_id,omitempty"`
}

// amountPattern accepts an optionally signed decimal with no exponent,
// grouping, or currency symbol: "42", "-3.50", "+0.001".
var amountPattern = regexp.MustCompile(`^[+-]?[0-9]+(\.[0-9]+)?$`)

// ValidAmount reports whether s is a plain signed decimal literal.
func ValidAmount(s string) bool {
	return amountPattern.MatchString(s)
}

// Validate checks field values and the internal sync invariant.
func (t *Transaction) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("id is required")
	}
	if t.CategoryID <= 0 {
		return fmt.Errorf("category_id must be positive (got %d)", t.CategoryID)
	}
	if !ValidAmount(t.Amount) {
		return fmt.Errorf("amount %q is not a plain signed decimal", t.Amount)
	}
	if err := t.Date.Validate(); err != nil {
		return fmt.Errorf("invalid date: %w", err)
	}
	if t.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	if t.UpdatedAt.IsZero() {
		return fmt.Errorf("updated_at is required")
	}
	// A synced record must be linked to its remote row. The converse is
	// legal: a record can carry a RemoteID while unsynced (edited after a
	// successful push).
	if t.Synced && t.RemoteID == nil {
		return fmt.Errorf("synced transaction %s has no remote id", t.ID)
	}
	return nil
}
