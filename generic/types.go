/*
Package generic provides the core types of the custody engine.

PURPOSE:
  Day-granular dates, fetch windows, custodians and custody records, plus the
  error taxonomy and persistence interfaces shared by the engine, the fetch
  coordinator, the stores and the HTTP layers. Nothing in here knows about
  retries, merging or the weekday rules.

KEY CONCEPTS IN THIS FILE (types.go):
  - Custodian / Family: exactly two custodians per family
  - Side: positional owner tag (A or B), independent of ids
  - CustodyRecord: authoritative per-date assignment from the backend
  - RecordUpdate: payload of a custody mutation (PUT, then POST on 404)

SEE ALSO:
  - time.go: Date, ClockTime, Clock
  - period.go: Period, Window
  - errors.go: Error taxonomy
  - store.go: RecordStore
*/
package generic

import (
	"strings"
)

// =============================================================================
// CUSTODIANS
// =============================================================================

type CustodianID string

type Custodian struct {
	ID          CustodianID `json:"id" yaml:"id" validate:"required"`
	DisplayName string      `json:"name" yaml:"name" validate:"required"`
}

// Family holds the two custodians. Their positions are fixed for the life of
// a session: A owns the Saturday-Monday default, B owns Tuesday-Friday.
type Family struct {
	A Custodian `json:"a" yaml:"a"`
	B Custodian `json:"b" yaml:"b"`
}

// Loaded reports whether both custodian identities are known.
func (f Family) Loaded() bool { return f.A.ID != "" && f.B.ID != "" }

// Side returns the position of id, or SideNone.
func (f Family) Side(id CustodianID) Side {
	switch {
	case id == "":
		return SideNone
	case id == f.A.ID:
		return SideA
	case id == f.B.ID:
		return SideB
	default:
		return SideNone
	}
}

// Custodian returns the custodian at side s.
func (f Family) Custodian(s Side) (Custodian, bool) {
	switch s {
	case SideA:
		return f.A, true
	case SideB:
		return f.B, true
	default:
		return Custodian{}, false
	}
}

// Other returns the custodian opposite to id.
func (f Family) Other(id CustodianID) (Custodian, bool) {
	switch f.Side(id) {
	case SideA:
		return f.B, true
	case SideB:
		return f.A, true
	default:
		return Custodian{}, false
	}
}

// MatchName compares a legacy content label with both display names,
// case-insensitively.
func (f Family) MatchName(label string) Side {
	label = strings.TrimSpace(label)
	if label == "" {
		return SideNone
	}
	switch {
	case f.A.DisplayName != "" && strings.EqualFold(label, f.A.DisplayName):
		return SideA
	case f.B.DisplayName != "" && strings.EqualFold(label, f.B.DisplayName):
		return SideB
	default:
		return SideNone
	}
}

// Side tags an owner by position rather than identity.
type Side int

const (
	SideNone Side = iota
	SideA
	SideB
)

func (s Side) String() string {
	switch s {
	case SideA:
		return "a"
	case SideB:
		return "b"
	default:
		return "none"
	}
}

// =============================================================================
// CUSTODY RECORD - Manually entered override for one date
// =============================================================================

// CustodyRecord is the backend's per-date assignment. Content is the legacy
// label field; old records carry a custodian name there instead of an id.
type CustodyRecord struct {
	ID              string      `json:"id,omitempty"`
	Date            Date        `json:"date" validate:"required"`
	CustodianID     CustodianID `json:"custodian_id" validate:"required_without=Content"`
	HandoffDay      bool        `json:"handoff_day"`
	HandoffTime     *string     `json:"handoff_time,omitempty"`
	HandoffLocation *string     `json:"handoff_location,omitempty"`
	Content         string      `json:"content,omitempty"`
}

// Key is the merge key: the ISO date string.
func (r CustodyRecord) Key() string { return r.Date.String() }

// RecordUpdate is the body sent for a custody mutation. The same payload is
// used for the PUT and for the POST fallback.
type RecordUpdate struct {
	Date            Date        `json:"date" validate:"required"`
	CustodianID     CustodianID `json:"custodian_id" validate:"required"`
	HandoffDay      *bool       `json:"handoff_day,omitempty"`
	HandoffTime     *string     `json:"handoff_time,omitempty"`
	HandoffLocation *string     `json:"handoff_location,omitempty"`
}

// Apply folds the update into r, keeping fields the update leaves unset.
func (u RecordUpdate) Apply(r CustodyRecord) CustodyRecord {
	r.Date = u.Date
	r.CustodianID = u.CustodianID
	if u.HandoffDay != nil {
		r.HandoffDay = *u.HandoffDay
	}
	if u.HandoffTime != nil {
		r.HandoffTime = u.HandoffTime
	}
	if u.HandoffLocation != nil {
		r.HandoffLocation = u.HandoffLocation
	}
	return r
}
