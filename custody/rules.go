/*
Package custody implements custody resolution and reconciliation.

PURPOSE:
  Given the two custodians, the merged set of override records and the
  weekday defaults, decide for any date who has custody, whether the date is
  a handoff, where and when the handoff happens, how long the current streak
  is and how custody was shared over a period.

KEY CONCEPTS IN THIS FILE (rules.go):
  - WeekdayRule: fallback owner per weekday (Sat/Sun/Mon -> A, Tue-Fri -> B)
  - Cutover: time of day at which a date becomes effective (12:00 / 17:00)
  - Resolver: owner lookup, override first, then the weekday rule

RESOLUTION ORDER:
  1. Custodians not loaded      -> ("", "")  not ready, not "unassigned"
  2. Record custodian_id        -> A or B
  3. Record content label       -> A or B by case-insensitive name (legacy)
  4. Weekday rule               -> A or B
  5. Undetermined, past date    -> ("", "")
  6. Undetermined, today/future -> ("", "No custody assigned")

SEE ALSO:
  - handoff.go: Handoff flag and details
  - streak.go: Streak and effective date
  - merge.go: RecordSet and merge semantics
  - engine.go: Stateful façade used by the API
*/
package custody

import (
	"time"

	"github.com/warp/custody-engine/generic"
	"github.com/warp/custody-engine/logger"
)

// NoCustodyText prompts the user to assign an owner to a current or future date.
const NoCustodyText = "No custody assigned"

// =============================================================================
// WEEKDAY RULE - Fallback owner when no record exists
// =============================================================================

type WeekdayRule struct {
	sides map[time.Weekday]generic.Side
}

// DefaultWeekdayRule maps Saturday, Sunday and Monday to A, the rest to B.
func DefaultWeekdayRule() WeekdayRule {
	return NewWeekdayRule(map[time.Weekday]generic.Side{
		time.Saturday:  generic.SideA,
		time.Sunday:    generic.SideA,
		time.Monday:    generic.SideA,
		time.Tuesday:   generic.SideB,
		time.Wednesday: generic.SideB,
		time.Thursday:  generic.SideB,
		time.Friday:    generic.SideB,
	})
}

// NewWeekdayRule copies sides. Weekdays left out are undetermined.
func NewWeekdayRule(sides map[time.Weekday]generic.Side) WeekdayRule {
	cp := make(map[time.Weekday]generic.Side, len(sides))
	for wd, s := range sides {
		if s != generic.SideNone {
			cp[wd] = s
		}
	}
	return WeekdayRule{sides: cp}
}

func (r WeekdayRule) SideFor(wd time.Weekday) (generic.Side, bool) {
	s, ok := r.sides[wd]
	return s, ok
}

// =============================================================================
// CUTOVER - When a date becomes effective for streak purposes
// =============================================================================

type Cutover struct {
	times map[time.Weekday]generic.ClockTime
}

var (
	WeekendCutover = generic.ClockTime{Hour: 12}
	WeekdayCutover = generic.ClockTime{Hour: 17}
)

// DefaultCutover flips custody at noon on weekends and 17:00 on weekdays.
func DefaultCutover() Cutover {
	times := make(map[time.Weekday]generic.ClockTime, 7)
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if wd == time.Saturday || wd == time.Sunday {
			times[wd] = WeekendCutover
		} else {
			times[wd] = WeekdayCutover
		}
	}
	return Cutover{times: times}
}

// For returns the cutover for wd; midnight when unknown.
func (c Cutover) For(wd time.Weekday) generic.ClockTime {
	return c.times[wd]
}

// =============================================================================
// RESOLVER
// =============================================================================

// Assignment is the derived owner of one date.
type Assignment struct {
	OwnerID generic.CustodianID
	Text    string
	Side    generic.Side
}

// Resolved reports whether the date has an owner.
func (a Assignment) Resolved() bool { return a.OwnerID != "" }

// Resolver holds what resolution needs besides the records themselves.
type Resolver struct {
	Family generic.Family
	Rule   WeekdayRule
	Log    logger.Logger
}

// NewResolver uses the default weekday rule.
func NewResolver(family generic.Family, log logger.Logger) Resolver {
	return Resolver{Family: family, Rule: DefaultWeekdayRule(), Log: log}
}

// Resolve returns the owner of date. today only matters when neither a record
// nor the weekday rule decides.
func (r Resolver) Resolve(date, today generic.Date, set RecordSet) Assignment {
	if !r.Family.Loaded() {
		return Assignment{}
	}

	if rec, ok := set.Get(date); ok {
		side := r.Family.Side(rec.CustodianID)
		if side == generic.SideNone {
			side = r.Family.MatchName(rec.Content)
		}
		if side != generic.SideNone {
			return r.assignment(side)
		}
		r.Log.Warn().
			Str("date", date.String()).
			Str("custodian_id", string(rec.CustodianID)).
			Str("content", rec.Content).
			Msg("custody record matches neither custodian, using weekday default")
	}

	if side, ok := r.Rule.SideFor(date.Weekday()); ok {
		return r.assignment(side)
	}

	if date.Before(today) {
		return Assignment{}
	}
	return Assignment{Text: NoCustodyText}
}

func (r Resolver) assignment(side generic.Side) Assignment {
	c, _ := r.Family.Custodian(side)
	return Assignment{OwnerID: c.ID, Text: c.DisplayName, Side: side}
}
