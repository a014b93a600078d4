package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/localledger/ledger/internal/ledger/schema"
)

// uniqueViolation is the Postgres SQLSTATE for a unique constraint error.
// Matching on the code, not the message, is what makes the duplicate-key
// conflict reliably distinguishable from other remote failures.
const uniqueViolation = "23505"

// Postgres implements Store over a Postgres connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to the remote store at the given URL.
// The caller MUST call Close() when done.
func NewPostgres(ctx context.Context, url string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create remote pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach remote store: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// EnsureSchema creates the transactions table and its per-owner uniqueness
// constraint if they don't exist. Idempotent.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS transactions (
		id BIGSERIAL PRIMARY KEY,
		owner TEXT NOT NULL,
		local_id TEXT NOT NULL,
		category_id BIGINT NOT NULL,
		amount NUMERIC NOT NULL,
		occurred_on DATE NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		UNIQUE (owner, local_id)
	);
	CREATE INDEX IF NOT EXISTS idx_transactions_owner ON transactions(owner);
	`
	if _, err := p.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to ensure remote schema: %w", err)
	}
	return nil
}

// Insert implements Store.Insert.
func (p *Postgres) Insert(ctx context.Context, rec *Record) (int64, error) {
	amount, err := numericFromString(rec.Amount)
	if err != nil {
		return 0, err
	}

	var id int64
	err = p.pool.QueryRow(ctx, `
		INSERT INTO transactions (owner, local_id, category_id, amount, occurred_on, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		rec.Owner, rec.LocalID, rec.CategoryID, amount, dateValue(rec.Date), rec.Notes,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("insert %s for %s: %w", rec.LocalID, rec.Owner, ErrDuplicate)
		}
		return 0, fmt.Errorf("failed to insert remote row: %w", err)
	}
	return id, nil
}

// Update implements Store.Update.
func (p *Postgres) Update(ctx context.Context, rec *Record) error {
	amount, err := numericFromString(rec.Amount)
	if err != nil {
		return err
	}

	tag, err := p.pool.Exec(ctx, `
		UPDATE transactions
		SET category_id = $1, amount = $2, occurred_on = $3, notes = $4
		WHERE id = $5 AND owner = $6`,
		rec.CategoryID, amount, dateValue(rec.Date), rec.Notes, rec.ID, rec.Owner)
	if err != nil {
		return fmt.Errorf("failed to update remote row %d: %w", rec.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update remote row %d for %s: %w", rec.ID, rec.Owner, ErrNotFound)
	}
	return nil
}

// Delete implements Store.Delete. Deleting an absent row succeeds.
func (p *Postgres) Delete(ctx context.Context, owner string, id int64) error {
	_, err := p.pool.Exec(ctx,
		`DELETE FROM transactions WHERE id = $1 AND owner = $2`, id, owner)
	if err != nil {
		return fmt.Errorf("failed to delete remote row %d: %w", id, err)
	}
	return nil
}

// ListByOwner implements Store.ListByOwner.
func (p *Postgres) ListByOwner(ctx context.Context, owner string) ([]*Record, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, owner, local_id, category_id, amount, occurred_on, notes
		FROM transactions
		WHERE owner = $1
		ORDER BY id ASC`, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list remote rows: %w", err)
	}
	defer rows.Close()

	var recs []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate remote rows: %w", err)
	}
	return recs, nil
}

// FindByLocalID implements Store.FindByLocalID.
func (p *Postgres) FindByLocalID(ctx context.Context, owner, localID string) (*Record, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, owner, local_id, category_id, amount, occurred_on, notes
		FROM transactions
		WHERE owner = $1 AND local_id = $2`, owner, localID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up remote row: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to look up remote row: %w", err)
		}
		return nil, fmt.Errorf("lookup %s for %s: %w", localID, owner, ErrNotFound)
	}
	return scanRecord(rows)
}

func scanRecord(rows pgx.Rows) (*Record, error) {
	var (
		rec    Record
		amount pgtype.Numeric
		date   pgtype.Date
	)
	if err := rows.Scan(&rec.ID, &rec.Owner, &rec.LocalID, &rec.CategoryID,
		&amount, &date, &rec.Notes); err != nil {
		return nil, fmt.Errorf("failed to scan remote row: %w", err)
	}

	v, err := amount.Value()
	if err != nil {
		return nil, fmt.Errorf("failed to decode amount for %s: %w", rec.LocalID, err)
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected amount representation for %s", rec.LocalID)
	}
	rec.Amount = s

	if !date.Valid {
		return nil, fmt.Errorf("remote row %d has no date", rec.ID)
	}
	rec.Date = schema.DateOf(date.Time)
	return &rec, nil
}

// numericFromString converts a validated decimal string into the wire type.
// Amounts stay textual end to end; NUMERIC preserves full precision.
func numericFromString(s string) (pgtype.Numeric, error) {
	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		return n, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return n, nil
}

func dateValue(d schema.Date) pgtype.Date {
	// UTC midnight so the encoded day can never shift with the host zone.
	return pgtype.Date{Time: d.Time(time.UTC), Valid: true}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
