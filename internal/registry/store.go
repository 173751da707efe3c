package registry

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/fedimint-http/internal/federation"
)

// timeLayout is fixed-width so joined_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Record is a persisted federation membership.
type Record struct {
	ID         federation.ID
	InviteCode string
	JoinedAt   time.Time
	Primary    bool
}

// Store persists federation membership.
type Store interface {
	// Save inserts a membership. Returns ErrAlreadyRegistered for a known id.
	Save(ctx context.Context, rec Record) error

	// List returns memberships in join order.
	List(ctx context.Context) ([]Record, error)

	// MarkPrimary makes id the only primary federation.
	MarkPrimary(ctx context.Context, id federation.ID) error
}

// SQLiteStore implements Store using the federations table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a store over an open, migrated database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Save inserts a membership.
func (s *SQLiteStore) Save(ctx context.Context, rec Record) error {
	if rec.JoinedAt.IsZero() {
		rec.JoinedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if rec.Primary {
		if _, err := tx.ExecContext(ctx, "UPDATE federations SET is_primary = 0 WHERE is_primary = 1"); err != nil {
			return fmt.Errorf("clearing primary federation: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO federations (id, invite_code, joined_at, is_primary) VALUES (?, ?, ?, ?)",
		string(rec.ID), rec.InviteCode, rec.JoinedAt.UTC().Format(timeLayout), boolToInt(rec.Primary),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: federations.id") {
			return fmt.Errorf("%w: %s", ErrAlreadyRegistered, rec.ID)
		}
		return fmt.Errorf("inserting federation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing federation: %w", err)
	}
	return nil
}

// List returns memberships in join order.
func (s *SQLiteStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, invite_code, joined_at, is_primary FROM federations ORDER BY joined_at, id")
	if err != nil {
		return nil, fmt.Errorf("querying federations: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec      Record
			id       string
			joinedAt string
			primary  int
		)
		if err := rows.Scan(&id, &rec.InviteCode, &joinedAt, &primary); err != nil {
			return nil, fmt.Errorf("scanning federation row: %w", err)
		}
		rec.ID = federation.ID(id)
		rec.Primary = primary == 1
		rec.JoinedAt, err = time.Parse(timeLayout, joinedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing joined_at for %s: %w", id, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating federations: %w", err)
	}
	return records, nil
}

// MarkPrimary makes id the only primary federation.
func (s *SQLiteStore) MarkPrimary(ctx context.Context, id federation.ID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, "UPDATE federations SET is_primary = 0 WHERE is_primary = 1"); err != nil {
		return fmt.Errorf("clearing primary federation: %w", err)
	}
	res, err := tx.ExecContext(ctx, "UPDATE federations SET is_primary = 1 WHERE id = ?", string(id))
	if err != nil {
		return fmt.Errorf("marking primary federation: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return tx.Commit()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// memoryStore is the Store used when persistence is disabled.
type memoryStore struct {
	mu      sync.Mutex
	records []Record
}

// NewMemoryStore returns a Store that keeps memberships in memory only.
func NewMemoryStore() Store {
	return &memoryStore{}
}

func (m *memoryStore) Save(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.ID == rec.ID {
			return fmt.Errorf("%w: %s", ErrAlreadyRegistered, rec.ID)
		}
	}
	if rec.Primary {
		for i := range m.records {
			m.records[i].Primary = false
		}
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *memoryStore) List(context.Context) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out, nil
}

func (m *memoryStore) MarkPrimary(_ context.Context, id federation.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	found := false
	for i := range m.records {
		m.records[i].Primary = m.records[i].ID == id
		found = found || m.records[i].ID == id
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
