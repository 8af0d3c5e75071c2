/*
scenarios.go - Demo data for the reference backend

PURPOSE:
  Populates the store with records that exercise the engine's rules.

AVAILABLE SCENARIOS:
  alternating-weekends: B takes every other Sat-Mon block
  holiday-override:     A single weekday assigned to A with a custom handoff
  legacy-content:       Records carrying only a content label, no custodian id

HOW SCENARIOS WORK:
  1. Save the demo family
  2. Write each record, updating the date when it already exists

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "alternating-weekends"}

SEE ALSO:
  - handlers.go: LoadScenario, ListScenarios handlers
*/
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/custody-engine/generic"
)

// DemoFamily is the family every scenario uses.
var DemoFamily = generic.Family{
	A: generic.Custodian{ID: "cust-alex", DisplayName: "Alex"},
	B: generic.Custodian{ID: "cust-blair", DisplayName: "Blair"},
}

// Scenario describes one demo data set.
type Scenario struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

var scenarios = []Scenario{
	{
		ID:          "alternating-weekends",
		Name:        "Alternating Weekends",
		Description: "Blair takes every other Saturday-Monday block this month and next",
	},
	{
		ID:          "holiday-override",
		Name:        "Holiday Override",
		Description: "A Wednesday assigned to Alex with a handoff at the grandparents'",
	},
	{
		ID:          "legacy-content",
		Name:        "Legacy Content",
		Description: "Records without custodian ids, labelled by name only",
	},
}

// Scenarios lists the available scenarios.
func Scenarios() []Scenario { return scenarios }

// LoadScenario writes the scenario's records relative to today.
func LoadScenario(ctx context.Context, store Store, id string, today generic.Date) (int, error) {
	var records []generic.CustodyRecord
	switch id {
	case "alternating-weekends":
		records = alternatingWeekends(today)
	case "holiday-override":
		records = holidayOverride(today)
	case "legacy-content":
		records = legacyContent(today)
	default:
		return 0, fmt.Errorf("unknown scenario %q", id)
	}

	if err := store.SaveFamily(ctx, DemoFamily); err != nil {
		return 0, fmt.Errorf("save family: %w", err)
	}
	for _, r := range records {
		if err := upsert(ctx, store, r); err != nil {
			return 0, fmt.Errorf("scenario %s, %s: %w", id, r.Date, err)
		}
	}
	return len(records), nil
}

func upsert(ctx context.Context, store Store, r generic.CustodyRecord) error {
	_, err := store.Create(ctx, r)
	if !errors.Is(err, generic.ErrDuplicateDate) {
		return err
	}
	_, err = store.Update(ctx, generic.RecordUpdate{
		Date:            r.Date,
		CustodianID:     r.CustodianID,
		HandoffDay:      &r.HandoffDay,
		HandoffTime:     r.HandoffTime,
		HandoffLocation: r.HandoffLocation,
	})
	return err
}

// alternatingWeekends gives B every second Sat-Mon block starting with the
// first Saturday of today's month, through the end of next month. B then
// holds the child from Tuesday through the following Monday.
func alternatingWeekends(today generic.Date) []generic.CustodyRecord {
	start := generic.StartOfMonth(today.Year(), today.Month())
	end := start.AddMonths(2)

	for start.Weekday() != time.Saturday {
		start = start.AddDays(1)
	}

	var records []generic.CustodyRecord
	for sat := start; sat.Before(end); sat = sat.AddDays(14) {
		for i := 0; i < 3; i++ {
			records = append(records, generic.CustodyRecord{
				Date:        sat.AddDays(i),
				CustodianID: DemoFamily.B.ID,
			})
		}
	}
	return records
}

func holidayOverride(today generic.Date) []generic.CustodyRecord {
	day := today.AddDays(7)
	for day.Weekday() != time.Wednesday {
		day = day.AddDays(1)
	}
	at, where := "10:30", "grandparents' house"
	return []generic.CustodyRecord{{
		Date:            day,
		CustodianID:     DemoFamily.A.ID,
		HandoffDay:      true,
		HandoffTime:     &at,
		HandoffLocation: &where,
	}}
}

func legacyContent(today generic.Date) []generic.CustodyRecord {
	monday := today
	for monday.Weekday() != time.Monday {
		monday = monday.AddDays(1)
	}
	return []generic.CustodyRecord{
		{Date: monday, Content: DemoFamily.B.DisplayName},
		{Date: monday.AddDays(1), Content: "alex"},
		// Matches neither custodian; resolves by weekday.
		{Date: monday.AddDays(2), Content: "Grandma"},
	}
}

// =============================================================================
// SCENARIO HANDLERS
// =============================================================================

func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"scenarios": Scenarios(),
		"current":   h.currentScenario,
	})
}

func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}

	n, err := LoadScenario(r.Context(), h.Store, req.ScenarioID, generic.Today(h.clock))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to load scenario", err)
		return
	}
	h.currentScenario = req.ScenarioID

	h.log.Info().Str("scenario", req.ScenarioID).Int("records", n).Msg("scenario loaded")
	writeJSON(w, http.StatusOK, map[string]any{"scenario_id": req.ScenarioID, "records": n})
}
