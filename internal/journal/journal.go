package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/fedimint-http/internal/federation"
	"github.com/nerrad567/fedimint-http/internal/operation"
	"github.com/nerrad567/fedimint-http/internal/telemetry"
)

// timeLayout is fixed-width so timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// StatusPending marks an operation without an outcome yet.
const StatusPending = "pending"

// DefaultListLimit bounds List when no limit is given.
const DefaultListLimit = 50

// ErrNotFound is returned when no journal entry exists for an id.
var ErrNotFound = errors.New("journal: operation not found")

// Entry is one journaled operation.
type Entry struct {
	ID         federation.OperationID `json:"operationId"`
	Federation federation.ID          `json:"federationId"`
	Kind       operation.Kind         `json:"kind"`
	Status     string                 `json:"status"`
	Reason     string                 `json:"reason,omitempty"`
	CreatedAt  time.Time              `json:"createdAt"`
	UpdatedAt  time.Time              `json:"updatedAt"`
}

// Journal reads and writes the operations table.
type Journal struct {
	db *sql.DB
}

// New creates a journal over an open, migrated database.
func New(db *sql.DB) *Journal {
	return &Journal{db: db}
}

// Write implements telemetry.Sink.
func (j *Journal) Write(ctx context.Context, rec telemetry.Record) error {
	at := rec.At
	if at.IsZero() {
		at = time.Now()
	}
	ts := at.UTC().Format(timeLayout)
	m := rec.Meta

	status, reason := StatusPending, ""
	if rec.Outcome {
		status, reason = rec.Status.String(), rec.Reason
	}

	query := `INSERT INTO operations (id, federation_id, kind, status, reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at`
	if rec.Outcome {
		query += ", status = excluded.status, reason = excluded.reason"
	}

	_, err := j.db.ExecContext(ctx, query,
		string(m.Operation), string(m.Federation), string(m.Kind), status, reason, ts, ts,
	)
	if err != nil {
		return fmt.Errorf("journaling operation %s: %w", m.Operation, err)
	}
	return nil
}

// Get returns the entry for id.
func (j *Journal) Get(ctx context.Context, id federation.OperationID) (Entry, error) {
	row := j.db.QueryRowContext(ctx,
		`SELECT id, federation_id, kind, status, reason, created_at, updated_at
		FROM operations WHERE id = ?`, string(id))
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, err
}

// List returns the newest entries first, optionally for one federation.
func (j *Journal) List(ctx context.Context, fed federation.ID, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `SELECT id, federation_id, kind, status, reason, created_at, updated_at FROM operations`
	args := []any{}
	if fed != "" {
		query += " WHERE federation_id = ?"
		args = append(args, string(fed))
	}
	query += " ORDER BY created_at DESC, id LIMIT ?"
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying operations: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating operations: %w", err)
	}
	return entries, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var (
		e                    Entry
		id, fed, kind        string
		createdAt, updatedAt string
	)
	if err := s.Scan(&id, &fed, &kind, &e.Status, &e.Reason, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("scanning operation: %w", err)
	}
	e.ID = federation.OperationID(id)
	e.Federation = federation.ID(fed)
	e.Kind = operation.Kind(kind)
	e.CreatedAt, _ = time.Parse(timeLayout, createdAt) //nolint:errcheck // Format is controlled
	e.UpdatedAt, _ = time.Parse(timeLayout, updatedAt) //nolint:errcheck // Format is controlled
	return e, nil
}
