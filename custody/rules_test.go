package custody_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/warp/custody-engine/custody"
	"github.com/warp/custody-engine/generic"
	"github.com/warp/custody-engine/logger"
)

// =============================================================================
// RESOLUTION ORDER
// =============================================================================

func TestResolve_WeekdayDefaults(t *testing.T) {
	// GIVEN: No records for the week of 2023-10-07 (a Saturday)
	r := newResolver()
	empty := custody.NewRecordSet()
	today := day("2023-10-01")

	// THEN: Sat/Sun/Mon belong to A, Tue-Fri to B
	want := map[string]generic.CustodianID{
		"2023-10-07": "cust-a", // Saturday
		"2023-10-08": "cust-a",
		"2023-10-09": "cust-a", // Monday
		"2023-10-10": "cust-b",
		"2023-10-11": "cust-b",
		"2023-10-12": "cust-b",
		"2023-10-13": "cust-b", // Friday
	}
	for date, owner := range want {
		got := r.Resolve(day(date), today, empty)
		assert.Equal(t, owner, got.OwnerID, date)
	}

	sat := r.Resolve(day("2023-10-07"), today, empty)
	assert.Equal(t, "Alex", sat.Text)
	assert.Equal(t, generic.SideA, sat.Side)
}

func TestResolve_RecordOverridesWeekday(t *testing.T) {
	// GIVEN: Monday 2023-10-09 explicitly assigned to B
	r := newResolver()
	set := custody.NewRecordSet(assign("2023-10-09", "cust-b"))

	// WHEN: Resolving that Monday
	got := r.Resolve(day("2023-10-09"), day("2023-10-01"), set)

	// THEN: The record wins over the Monday default
	assert.Equal(t, generic.CustodianID("cust-b"), got.OwnerID)
	assert.Equal(t, "Blair", got.Text)
}

func TestResolve_NotReadyWithoutFamily(t *testing.T) {
	// GIVEN: Custodians not loaded yet
	r := custody.NewResolver(generic.Family{A: family.A}, logger.Nop())

	// THEN: Empty owner and empty text, never "No custody assigned"
	got := r.Resolve(day("2023-10-07"), day("2023-10-01"), custody.NewRecordSet(assign("2023-10-07", "cust-a")))
	assert.Equal(t, custody.Assignment{}, got)
	assert.False(t, got.Resolved())
}

func TestResolve_LegacyContentLabel(t *testing.T) {
	// GIVEN: Legacy records with a name instead of an id
	r := newResolver()
	set := custody.NewRecordSet(
		generic.CustodyRecord{Date: day("2023-10-10"), Content: "ALEX"},
		generic.CustodyRecord{Date: day("2023-10-07"), Content: "blair"},
	)

	// THEN: Names match case-insensitively
	assert.Equal(t, generic.CustodianID("cust-a"), r.Resolve(day("2023-10-10"), day("2023-10-01"), set).OwnerID)
	assert.Equal(t, generic.CustodianID("cust-b"), r.Resolve(day("2023-10-07"), day("2023-10-01"), set).OwnerID)
}

func TestResolve_UnmatchedRecordFallsBackToWeekday(t *testing.T) {
	// GIVEN: A record naming neither custodian on a Tuesday
	r := newResolver()
	set := custody.NewRecordSet(
		generic.CustodyRecord{Date: day("2023-10-10"), CustodianID: "stranger", Content: "Grandma"},
	)

	// THEN: The Tuesday default applies
	assert.Equal(t, generic.CustodianID("cust-b"), r.Resolve(day("2023-10-10"), day("2023-10-01"), set).OwnerID)
}

func TestResolve_UndeterminedPastAndFuture(t *testing.T) {
	// GIVEN: A rule that leaves Wednesdays undetermined
	r := newResolver()
	r.Rule = custody.NewWeekdayRule(map[time.Weekday]generic.Side{
		time.Saturday: generic.SideA,
		time.Sunday:   generic.SideA,
	})
	empty := custody.NewRecordSet()
	today := day("2023-10-11") // a Wednesday

	// THEN: Past days are blank, today and later ask for an assignment
	assert.Equal(t, custody.Assignment{}, r.Resolve(day("2023-10-04"), today, empty))
	assert.Equal(t, custody.NoCustodyText, r.Resolve(today, today, empty).Text)
	assert.Equal(t, custody.NoCustodyText, r.Resolve(day("2023-10-18"), today, empty).Text)
	assert.False(t, r.Resolve(today, today, empty).Resolved())
}

func TestDefaultCutover(t *testing.T) {
	c := custody.DefaultCutover()
	assert.Equal(t, generic.ClockTime{Hour: 12}, c.For(time.Saturday))
	assert.Equal(t, generic.ClockTime{Hour: 12}, c.For(time.Sunday))
	for wd := time.Monday; wd <= time.Friday; wd++ {
		assert.Equal(t, generic.ClockTime{Hour: 17}, c.For(wd), wd.String())
	}
}
