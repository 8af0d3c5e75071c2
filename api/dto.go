/*
dto.go - Data Transfer Objects for API responses

PURPOSE:
  Defines the JSON structures the presentation layer reads. These types
  decouple the engine's types from the external contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Response: Wrappers around lists

TYPES:
  Custody:     AssignmentDTO, AssignmentsResponse
  Handoffs:    HandoffDTO
  Streak:      StreakDTO
  Percentages: PercentagesDTO
  Mutations:   ToggleDTO
  Sync:        SyncDTO

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/custody-engine/custody"
	"github.com/warp/custody-engine/generic"
)

// AssignmentDTO is the owner of one day.
type AssignmentDTO struct {
	Date    string `json:"date"`
	OwnerID string `json:"owner_id,omitempty"`
	Text    string `json:"text"`
	Side    string `json:"side"`
	Handoff bool   `json:"handoff"`
}

type AssignmentsResponse struct {
	Start string          `json:"start"`
	End   string          `json:"end"`
	Days  []AssignmentDTO `json:"days"`
}

type HandoffDTO struct {
	Date      string `json:"date"`
	IsHandoff bool   `json:"is_handoff"`
	Time      string `json:"time"`
	Location  string `json:"location"`
	Explicit  bool   `json:"explicit"`
}

type StreakDTO struct {
	Length  int    `json:"length"`
	OwnerID string `json:"owner_id,omitempty"`
	Owner   string `json:"owner,omitempty"`
	Side    string `json:"side"`
}

// PercentagesDTO carries decimals as strings ("62.5").
type PercentagesDTO struct {
	Start      string          `json:"start"`
	End        string          `json:"end"`
	A          decimal.Decimal `json:"a"`
	B          decimal.Decimal `json:"b"`
	DaysA      int             `json:"days_a"`
	DaysB      int             `json:"days_b"`
	CustodianA string          `json:"custodian_a"`
	CustodianB string          `json:"custodian_b"`
}

type ToggleDTO struct {
	Date    string                 `json:"date"`
	Dropped bool                   `json:"dropped"`
	Record  *generic.CustodyRecord `json:"record,omitempty"`
}

type SyncDTO struct {
	Windows []string `json:"windows"`
	Errors  []string `json:"errors,omitempty"`
}

type HealthDTO struct {
	Status      string    `json:"status"`
	FamilyReady bool      `json:"family_ready"`
	Records     int       `json:"records"`
	Time        time.Time `json:"time"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toAssignmentDTO(date generic.Date, a custody.Assignment, handoff bool) AssignmentDTO {
	return AssignmentDTO{
		Date:    date.String(),
		OwnerID: string(a.OwnerID),
		Text:    a.Text,
		Side:    a.Side.String(),
		Handoff: handoff,
	}
}

func toStreakDTO(s custody.Streak, family generic.Family) StreakDTO {
	dto := StreakDTO{Length: s.Length, OwnerID: string(s.OwnerID), Side: s.Side.String()}
	if c, ok := family.Custodian(s.Side); ok {
		dto.Owner = c.DisplayName
	}
	return dto
}
