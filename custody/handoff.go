package custody

import (
	"github.com/warp/custody-engine/generic"
)

// DaycareLocation is where weekday handoffs happen unless a record says otherwise.
const DaycareLocation = "daycare"

// HandoffDetails says when and where custody changes hands on a date.
type HandoffDetails struct {
	Time     generic.ClockTime
	Location string
	Explicit bool // taken from the record rather than the weekday default
}

// IsHandoff is true when the record flags the date, or when the owner differs
// from a known owner of the previous day.
func (r Resolver) IsHandoff(date, today generic.Date, set RecordSet) bool {
	if rec, ok := set.Get(date); ok && rec.HandoffDay {
		return true
	}
	prev := r.Resolve(date.AddDays(-1), today, set)
	if !prev.Resolved() {
		return false
	}
	return r.Resolve(date, today, set).OwnerID != prev.OwnerID
}

// HandoffDetails prefers the record's time and location. A malformed time is
// logged and replaced by the default; each field falls back on its own.
func (r Resolver) HandoffDetails(date, today generic.Date, set RecordSet) HandoffDetails {
	def := r.defaultHandoff(date, today, set)

	rec, ok := set.Get(date)
	if !ok {
		return def
	}

	details := def
	if rec.HandoffTime != nil {
		t, err := generic.ParseClockTime(*rec.HandoffTime)
		if err != nil {
			r.Log.Debug().Err(err).Str("date", date.String()).Msg("ignoring malformed handoff time")
		} else {
			details.Time = t
			details.Explicit = true
		}
	}
	if rec.HandoffLocation != nil {
		details.Location = *rec.HandoffLocation
		details.Explicit = true
	}
	return details
}

// defaultHandoff: weekends at noon at the incoming custodian's home, weekdays
// at 17:00 at daycare.
func (r Resolver) defaultHandoff(date, today generic.Date, set RecordSet) HandoffDetails {
	if !date.IsWeekend() {
		return HandoffDetails{Time: WeekdayCutover, Location: DaycareLocation}
	}
	location := "home"
	if owner := r.Resolve(date, today, set); owner.Resolved() && owner.Text != "" {
		location = owner.Text + "'s home"
	}
	return HandoffDetails{Time: WeekendCutover, Location: location}
}
