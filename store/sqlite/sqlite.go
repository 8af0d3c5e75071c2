/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Persists custody records and the family for the reference backend.

INTERFACES IMPLEMENTED:
  generic.RecordStore:    Custody records, one per date
  generic.CustodianStore: The two custodians

KEY TABLES:
  custody_records: One row per date (unique), updated in place
  custodians:      Two rows, side 'a' and side 'b'

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of SQLite's own locking.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time

USAGE:
  store, err := sqlite.New("./data/custody.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
  - backend/handlers.go: HTTP routes over this store
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/warp/custody-engine/generic"
)

// Store implements RecordStore and CustodianStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Each connection to ":memory:" is its own database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS custody_records (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		custodian_id TEXT NOT NULL,
		handoff_day INTEGER NOT NULL DEFAULT 0,
		handoff_time TEXT,
		handoff_location TEXT,
		content TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- One record per calendar date
	CREATE UNIQUE INDEX IF NOT EXISTS idx_custody_records_date
		ON custody_records(date);

	CREATE TABLE IF NOT EXISTS custodians (
		side TEXT PRIMARY KEY CHECK (side IN ('a', 'b')),
		id TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RECORD STORE (generic.RecordStore interface)
// =============================================================================

const recordColumns = `id, date, custodian_id, handoff_day, handoff_time, handoff_location, content`

// Create inserts a new record; the date must not exist yet.
func (s *Store) Create(ctx context.Context, r generic.CustodyRecord) (generic.CustodyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO custody_records
		(id, date, custodian_id, handoff_day, handoff_time, handoff_location, content, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID,
		r.Date.String(),
		string(r.CustodianID),
		r.HandoffDay,
		nullPtr(r.HandoffTime),
		nullPtr(r.HandoffLocation),
		nullString(r.Content),
		now, now,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.CustodyRecord{}, generic.ErrDuplicateDate
		}
		return generic.CustodyRecord{}, fmt.Errorf("failed to create record: %w", err)
	}
	return r, nil
}

// Update applies u to the stored record for u.Date inside one transaction.
func (s *Store) Update(ctx context.Context, u generic.RecordUpdate) (generic.CustodyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return generic.CustodyRecord{}, err
	}
	defer tx.Rollback()

	current, err := scanRecord(tx.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM custody_records WHERE date = ?`, u.Date.String()))
	if err != nil {
		return generic.CustodyRecord{}, err
	}
	updated := u.Apply(current)

	_, err = tx.ExecContext(ctx, `
		UPDATE custody_records
		SET custodian_id = ?, handoff_day = ?, handoff_time = ?, handoff_location = ?, updated_at = ?
		WHERE id = ?
	`,
		string(updated.CustodianID),
		updated.HandoffDay,
		nullPtr(updated.HandoffTime),
		nullPtr(updated.HandoffLocation),
		time.Now().UTC().Format(time.RFC3339),
		updated.ID,
	)
	if err != nil {
		return generic.CustodyRecord{}, fmt.Errorf("failed to update record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return generic.CustodyRecord{}, err
	}
	return updated, nil
}

// Get returns the record for one date, or ErrRecordNotFound.
func (s *Store) Get(ctx context.Context, date generic.Date) (generic.CustodyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return scanRecord(s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM custody_records WHERE date = ?`, date.String()))
}

// ListRange returns records in [p.Start, p.End) ordered by date. ISO dates
// sort lexically, so the comparison runs on the text column.
func (s *Store) ListRange(ctx context.Context, p generic.Period) ([]generic.CustodyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM custody_records
		WHERE date >= ? AND date < ?
		ORDER BY date
	`, p.Start.String(), p.End.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []generic.CustodyRecord{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (generic.CustodyRecord, error) {
	var (
		r                 generic.CustodyRecord
		date, custodianID string
		handoffTime       sql.NullString
		handoffLocation   sql.NullString
		content           sql.NullString
	)
	err := row.Scan(&r.ID, &date, &custodianID, &r.HandoffDay, &handoffTime, &handoffLocation, &content)
	if errors.Is(err, sql.ErrNoRows) {
		return generic.CustodyRecord{}, generic.ErrRecordNotFound
	}
	if err != nil {
		return generic.CustodyRecord{}, err
	}

	r.Date, err = generic.ParseDate(date)
	if err != nil {
		return generic.CustodyRecord{}, fmt.Errorf("record %s: %w", r.ID, err)
	}
	r.CustodianID = generic.CustodianID(custodianID)
	r.HandoffTime = ptrOf(handoffTime)
	r.HandoffLocation = ptrOf(handoffLocation)
	r.Content = content.String
	return r, nil
}

// =============================================================================
// CUSTODIAN STORE (generic.CustodianStore interface)
// =============================================================================

// Family returns both custodians; a zero Family if none were saved.
func (s *Store) Family(ctx context.Context) (generic.Family, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT side, id, display_name FROM custodians`)
	if err != nil {
		return generic.Family{}, err
	}
	defer rows.Close()

	var f generic.Family
	for rows.Next() {
		var side, id, name string
		if err := rows.Scan(&side, &id, &name); err != nil {
			return generic.Family{}, err
		}
		c := generic.Custodian{ID: generic.CustodianID(id), DisplayName: name}
		if side == "a" {
			f.A = c
		} else {
			f.B = c
		}
	}
	return f, rows.Err()
}

// SaveFamily replaces both custodians.
func (s *Store) SaveFamily(ctx context.Context, f generic.Family) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM custodians`); err != nil {
		return err
	}
	for side, c := range map[string]generic.Custodian{"a": f.A, "b": f.B} {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO custodians (side, id, display_name) VALUES (?, ?, ?)`,
			side, string(c.ID), c.DisplayName,
		); err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("custodian %q listed twice: %w", c.ID, err)
			}
			return fmt.Errorf("failed to save custodian: %w", err)
		}
	}
	return tx.Commit()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"custody_records", "custodians"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM custody_records`).Scan(&n)
	return n, err
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func ptrOf(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

var (
	_ generic.RecordStore    = (*Store)(nil)
	_ generic.CustodianStore = (*Store)(nil)
)
