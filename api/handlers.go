/*
handlers.go - HTTP API handlers for the custody engine

PURPOSE:
  Exposes the engine to a presentation layer. Handles HTTP request and
  response, JSON serialization, and delegates to the engine. No handler
  blocks on the network except toggle and sync.

ENDPOINTS:
  Custody:
    GET    /api/custody/{date}          Owner of one day
    GET    /api/custody?from=&to=       Owners of [from, to)
    GET    /api/custody?month=2023-11   Owners of one month
    POST   /api/custody/{date}/toggle   Give the day to the other custodian

  Handoffs:
    GET    /api/handoffs/{date}         Handoff flag, time and place

  Summary:
    GET    /api/streak                  Current consecutive-days streak
    GET    /api/percentages?start=&end= Custody share over [start, end)

  Session:
    POST   /api/sync?from=&to=          Fetch and merge the windows of a range
    POST   /api/lifecycle/{event}       foreground | background
    POST   /api/session/logout          Drop every record

  Ops:
    GET    /api/health

RANGE LIMITS:
  custody and percentages span at most MaxRangeDays, sync at most
  MaxSyncDays. Longer ranges are rejected before any work is done.

ERROR HANDLING:
  - 400: Invalid date or range, or a range over its limit
  - 401: Session expired (backend said 401)
  - 409: Family not loaded yet
  - 502: Backend rejected the request or replied with garbage
  - 504: Backend kept timing out
  - 500: Anything else

SEE ALSO:
  - dto.go: Response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/warp/custody-engine/custody"
	"github.com/warp/custody-engine/generic"
	"github.com/warp/custody-engine/logger"
	"github.com/warp/custody-engine/scheduler"
)

const (
	// MaxRangeDays bounds read ranges: one leap year.
	MaxRangeDays = 366
	// MaxSyncDays bounds sync ranges: two years of windows.
	MaxSyncDays = 731
)

// Engine is the part of *custody.Engine the handlers use.
type Engine interface {
	Family() generic.Family
	Records() custody.RecordSet
	Resolve(date generic.Date) custody.Assignment
	Assignments(p generic.Period) []custody.DayAssignment
	IsHandoff(date generic.Date) bool
	HandoffDetails(date generic.Date) custody.HandoffDetails
	Streak() custody.Streak
	Percentages(p generic.Period) custody.Shares
	ToggleCustodian(ctx context.Context, date generic.Date) (custody.Mutation, error)
	SyncPeriod(ctx context.Context, p generic.Period) error
	Foreground()
	Logout()
}

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine Engine
	clock  generic.Clock
	log    logger.Logger

	// lifecycle feeds the scheduler; nil calls the engine directly.
	lifecycle chan<- scheduler.LifecycleEvent
}

type Option func(*Handler)

func WithClock(c generic.Clock) Option  { return func(h *Handler) { h.clock = c } }
func WithLogger(l logger.Logger) Option { return func(h *Handler) { h.log = l } }
func WithLifecycle(ch chan<- scheduler.LifecycleEvent) Option {
	return func(h *Handler) { h.lifecycle = ch }
}

// NewHandler creates a new handler over engine.
func NewHandler(engine Engine, opts ...Option) *Handler {
	h := &Handler{
		Engine: engine,
		clock:  generic.SystemClock{},
		log:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// =============================================================================
// CUSTODY HANDLERS
// =============================================================================

// GetCustody returns the owner of one day.
func (h *Handler) GetCustody(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toAssignmentDTO(date, h.Engine.Resolve(date), h.Engine.IsHandoff(date)))
}

// ListCustody returns the owner of every day of a month or range.
func (h *Handler) ListCustody(w http.ResponseWriter, r *http.Request) {
	var (
		period generic.Period
		err    error
	)
	if month := r.URL.Query().Get("month"); month != "" {
		var win generic.Window
		win, err = generic.ParseWindow(month)
		period = win.Period()
	} else {
		period, err = periodQuery(r, "from", "to", MaxRangeDays)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid range", err)
		return
	}

	days := h.Engine.Assignments(period)
	resp := AssignmentsResponse{
		Start: period.Start.String(),
		End:   period.End.String(),
		Days:  make([]AssignmentDTO, len(days)),
	}
	for i, d := range days {
		resp.Days[i] = toAssignmentDTO(d.Date, d.Assignment, d.Handoff)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ToggleCustody flips the owner of one day. A toggle that loses the race to
// another one for the same date replies 202 with dropped=true.
func (h *Handler) ToggleCustody(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r)
	if !ok {
		return
	}

	m, err := h.Engine.ToggleCustodian(r.Context(), date)
	if err != nil {
		writeEngineError(w, "Failed to toggle custody", err)
		return
	}

	dto := ToggleDTO{Date: date.String(), Dropped: m.Dropped}
	if m.Dropped {
		writeJSON(w, http.StatusAccepted, dto)
		return
	}
	dto.Record = &m.Record
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// HANDOFF HANDLERS
// =============================================================================

func (h *Handler) GetHandoff(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r)
	if !ok {
		return
	}
	d := h.Engine.HandoffDetails(date)
	writeJSON(w, http.StatusOK, HandoffDTO{
		Date:      date.String(),
		IsHandoff: h.Engine.IsHandoff(date),
		Time:      d.Time.String(),
		Location:  d.Location,
		Explicit:  d.Explicit,
	})
}

// =============================================================================
// SUMMARY HANDLERS
// =============================================================================

func (h *Handler) GetStreak(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toStreakDTO(h.Engine.Streak(), h.Engine.Family()))
}

// GetPercentages defaults to the current month when no range is given.
func (h *Handler) GetPercentages(w http.ResponseWriter, r *http.Request) {
	var period generic.Period
	q := r.URL.Query()
	if q.Get("start") == "" && q.Get("end") == "" {
		period = generic.Today(h.clock).Window().Period()
	} else {
		var err error
		if period, err = periodQuery(r, "start", "end", MaxRangeDays); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid range", err)
			return
		}
	}

	shares := h.Engine.Percentages(period)
	family := h.Engine.Family()
	writeJSON(w, http.StatusOK, PercentagesDTO{
		Start:      period.Start.String(),
		End:        period.End.String(),
		A:          shares.A,
		B:          shares.B,
		DaysA:      shares.DaysA,
		DaysB:      shares.DaysB,
		CustodianA: family.A.DisplayName,
		CustodianB: family.B.DisplayName,
	})
}

// =============================================================================
// SESSION HANDLERS
// =============================================================================

// Sync fetches every window of [from, to). Windows that fail keep their
// previous records; the reply lists the failures.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	period, err := periodQuery(r, "from", "to", MaxSyncDays)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid range", err)
		return
	}

	dto := SyncDTO{}
	for _, win := range period.Windows() {
		dto.Windows = append(dto.Windows, win.String())
	}

	err = h.Engine.SyncPeriod(r.Context(), period)
	if err == nil {
		writeJSON(w, http.StatusOK, dto)
		return
	}
	if generic.IsSessionInvalid(err) {
		writeError(w, http.StatusUnauthorized, "Session expired", err)
		return
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			dto.Errors = append(dto.Errors, e.Error())
		}
	} else {
		dto.Errors = []string{err.Error()}
	}
	writeJSON(w, http.StatusMultiStatus, dto)
}

// Lifecycle forwards foreground and background notifications.
func (h *Handler) Lifecycle(w http.ResponseWriter, r *http.Request) {
	var ev scheduler.LifecycleEvent
	switch chi.URLParam(r, "event") {
	case "foreground":
		ev = scheduler.Foreground
	case "background":
		ev = scheduler.Background
	default:
		writeError(w, http.StatusBadRequest, "Unknown lifecycle event", nil)
		return
	}

	if h.lifecycle == nil {
		if ev == scheduler.Foreground {
			h.Engine.Foreground()
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	select {
	case h.lifecycle <- ev:
		w.WriteHeader(http.StatusAccepted)
	case <-r.Context().Done():
		writeError(w, http.StatusServiceUnavailable, "Lifecycle queue busy", r.Context().Err())
	}
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.Engine.Logout()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthDTO{
		Status:      "ok",
		FamilyReady: h.Engine.Family().Loaded(),
		Records:     h.Engine.Records().Len(),
		Time:        h.clock.Now(),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func dateParam(w http.ResponseWriter, r *http.Request) (generic.Date, bool) {
	date, err := generic.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return generic.Date{}, false
	}
	return date, true
}

// periodQuery reads a half-open [startKey, endKey) range of at most maxDays
// from the query.
func periodQuery(r *http.Request, startKey, endKey string, maxDays int) (generic.Period, error) {
	q := r.URL.Query()
	start, err := generic.ParseDate(q.Get(startKey))
	if err != nil {
		return generic.Period{}, err
	}
	end, err := generic.ParseDate(q.Get(endKey))
	if err != nil {
		return generic.Period{}, err
	}
	if end.After(start.AddDays(maxDays)) {
		return generic.Period{}, fmt.Errorf("range %s to %s is longer than %d days", start, end, maxDays)
	}
	return generic.NewPeriod(start, end)
}

// writeEngineError maps engine errors onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, generic.ErrNotReady):
		status = http.StatusConflict
	case generic.IsSessionInvalid(err):
		status = http.StatusUnauthorized
	case errors.Is(err, generic.ErrRequestFailed), errors.Is(err, generic.ErrDecodeFailed):
		status = http.StatusBadGateway
	case generic.IsRetryable(err):
		status = http.StatusGatewayTimeout
	}
	writeError(w, status, message, err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
