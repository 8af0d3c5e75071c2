package custody

import (
	"time"

	"github.com/warp/custody-engine/generic"
)

// MaxStreakLookback bounds the backward walk.
const MaxStreakLookback = 365

// Streak is how many consecutive effective days the current owner has held.
type Streak struct {
	Length  int
	OwnerID generic.CustodianID
	Side    generic.Side
}

// EffectiveDate is the custody day now belongs to: custody flips at the
// cutover, not at midnight, so before the cutover it is still yesterday.
func EffectiveDate(now time.Time, c Cutover) generic.Date {
	day := generic.DateOf(now)
	if generic.ClockOf(now).Before(c.For(now.Weekday())) {
		return day.AddDays(-1)
	}
	return day
}

// Streak walks backward from the effective date while the owner stays the same.
func (r Resolver) Streak(now time.Time, c Cutover, set RecordSet) Streak {
	today := generic.DateOf(now)
	day := EffectiveDate(now, c)

	owner := r.Resolve(day, today, set)
	if !owner.Resolved() {
		return Streak{}
	}

	length := 1
	for i := 0; i < MaxStreakLookback; i++ {
		day = day.AddDays(-1)
		if r.Resolve(day, today, set).OwnerID != owner.OwnerID {
			break
		}
		length++
	}
	return Streak{Length: length, OwnerID: owner.OwnerID, Side: owner.Side}
}
