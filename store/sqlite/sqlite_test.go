package sqlite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/custody-engine/generic"
	"github.com/warp/custody-engine/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func record(date, custodian string) generic.CustodyRecord {
	return generic.CustodyRecord{Date: generic.MustParseDate(date), CustodianID: generic.CustodianID(custodian)}
}

func TestStore_CreateAndGet(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	where := "school"

	// GIVEN: A record with a handoff location
	r := record("2023-11-04", "cust-a")
	r.HandoffDay = true
	r.HandoffLocation = &where
	created, err := s.Create(ctx, r)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	// WHEN: Reading it back
	got, err := s.Get(ctx, r.Date)

	// THEN: Every field survives, unset pointers stay nil
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, generic.CustodianID("cust-a"), got.CustodianID)
	assert.True(t, got.HandoffDay)
	require.NotNil(t, got.HandoffLocation)
	assert.Equal(t, "school", *got.HandoffLocation)
	assert.Nil(t, got.HandoffTime)
	assert.Empty(t, got.Content)
}

func TestStore_CreateDuplicateDate(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, record("2023-11-04", "cust-a"))
	require.NoError(t, err)

	_, err = s.Create(ctx, record("2023-11-04", "cust-b"))
	assert.ErrorIs(t, err, generic.ErrDuplicateDate)
}

func TestStore_Update(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	at := "18:00"

	created, err := s.Create(ctx, record("2023-11-04", "cust-a"))
	require.NoError(t, err)

	// WHEN: Reassigning with a handoff time
	updated, err := s.Update(ctx, generic.RecordUpdate{
		Date:        created.Date,
		CustodianID: "cust-b",
		HandoffTime: &at,
	})

	// THEN: Same row, new owner
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)

	got, err := s.Get(ctx, created.Date)
	require.NoError(t, err)
	assert.Equal(t, generic.CustodianID("cust-b"), got.CustodianID)
	require.NotNil(t, got.HandoffTime)
	assert.Equal(t, "18:00", *got.HandoffTime)
}

func TestStore_UpdateMissingRecord(t *testing.T) {
	s := newStore(t)

	_, err := s.Update(context.Background(), generic.RecordUpdate{Date: generic.MustParseDate("2023-11-04"), CustodianID: "cust-a"})
	assert.ErrorIs(t, err, generic.ErrRecordNotFound)

	_, err = s.Get(context.Background(), generic.MustParseDate("2023-11-04"))
	assert.ErrorIs(t, err, generic.ErrRecordNotFound)
}

func TestStore_ListRangeIsHalfOpen(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	for _, r := range []generic.CustodyRecord{
		record("2023-11-30", "cust-a"),
		record("2023-10-31", "cust-b"),
		record("2023-11-01", "cust-a"),
		record("2023-12-01", "cust-b"),
	} {
		_, err := s.Create(ctx, r)
		require.NoError(t, err)
	}

	records, err := s.ListRange(ctx, generic.MonthPeriod(2023, 11))

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "2023-11-01", records[0].Date.String())
	assert.Equal(t, "2023-11-30", records[1].Date.String())

	empty, err := s.ListRange(ctx, generic.MonthPeriod(2024, 1))
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestStore_LegacyContent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, generic.CustodyRecord{Date: generic.MustParseDate("2023-11-06"), Content: "Blair"})
	require.NoError(t, err)

	got, err := s.Get(ctx, generic.MustParseDate("2023-11-06"))
	require.NoError(t, err)
	assert.Equal(t, "Blair", got.Content)
	assert.Empty(t, got.CustodianID)
}

func TestStore_Family(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	// GIVEN: Nothing saved yet
	f, err := s.Family(ctx)
	require.NoError(t, err)
	assert.False(t, f.Loaded())

	// WHEN: Saving twice
	family := generic.Family{
		A: generic.Custodian{ID: "cust-a", DisplayName: "Alex"},
		B: generic.Custodian{ID: "cust-b", DisplayName: "Blair"},
	}
	require.NoError(t, s.SaveFamily(ctx, generic.Family{
		A: generic.Custodian{ID: "old-a", DisplayName: "Old"},
		B: generic.Custodian{ID: "old-b", DisplayName: "Older"},
	}))
	require.NoError(t, s.SaveFamily(ctx, family))

	// THEN: The last save replaces both sides
	f, err = s.Family(ctx)
	require.NoError(t, err)
	assert.Equal(t, family, f)
}

func TestStore_FamilyRejectsSharedID(t *testing.T) {
	s := newStore(t)

	err := s.SaveFamily(context.Background(), generic.Family{
		A: generic.Custodian{ID: "same", DisplayName: "Alex"},
		B: generic.Custodian{ID: "same", DisplayName: "Blair"},
	})
	assert.Error(t, err)
}

func TestStore_ResetAndCount(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, record("2023-11-04", "cust-a"))
	require.NoError(t, err)
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.Reset(ctx))
	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
