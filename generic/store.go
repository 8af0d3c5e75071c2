/*
store.go - Persistence interface for custody records

PURPOSE:
  Defines the interface between the reference backend and its database.
  Records are created on first assignment and updated afterwards; there is
  no delete. The engine itself never persists records (they live in memory
  for a session), so only the backend depends on this.

UPDATE-NOT-DELETE CONTRACT:
  - Create(): first assignment for a date, fails if the date exists
  - Update(): later toggles, fails with ErrRecordNotFound if the date is new
  - NO Delete() method exists

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - generic/store/memory.go: In-memory for testing

SEE ALSO:
  - backend/handlers.go: HTTP handlers over RecordStore
*/
package generic

import "context"

// RecordStore handles persistence of custody records for one family.
type RecordStore interface {
	// Create inserts a new record. Returns ErrDuplicateDate if one exists.
	Create(ctx context.Context, r CustodyRecord) (CustodyRecord, error)

	// Update applies u to the existing record for u.Date.
	// Returns ErrRecordNotFound when there is none.
	Update(ctx context.Context, u RecordUpdate) (CustodyRecord, error)

	// Get returns the record for one date.
	Get(ctx context.Context, date Date) (CustodyRecord, error)

	// ListRange returns records in [p.Start, p.End), ordered by date.
	ListRange(ctx context.Context, p Period) ([]CustodyRecord, error)
}

// CustodianStore returns the family served by a backend.
type CustodianStore interface {
	Family(ctx context.Context) (Family, error)
	SaveFamily(ctx context.Context, f Family) error
}
