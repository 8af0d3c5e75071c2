/*
handlers.go - Reference backend for custody records

PURPOSE:
  Serves the record contract the engine's fetch layer talks to, backed by
  a generic.RecordStore. Used for local development, demos, and the
  end-to-end tests of the fetch package.

ENDPOINTS:
  Records:
    GET    /api/custody-records?year=&month=  Records of one month
    PUT    /api/custody-records/{date}        Update (404 when absent)
    POST   /api/custody-records               Create

  Family:
    GET    /api/custodians                    Both custodians

  Scenarios:
    GET    /api/scenarios                     List demo scenarios
    POST   /api/scenarios/load                Load a demo scenario

RESPONSE SHAPES:
  Lists are wrapped: {"custody_records": [...]}
  Mutations reply with the bare record.

ERROR HANDLING:
  - 400: Invalid date, query, or body
  - 404: No record for the date (PUT only)
  - 409: Record already exists (POST)
  - 500: Store errors

SEE ALSO:
  - fetch/httpport.go: The client side of these routes
  - scenarios.go: Demo data
  - server.go: Router setup
*/
package backend

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/warp/custody-engine/generic"
	"github.com/warp/custody-engine/logger"
)

// Store is what the backend persists into.
type Store interface {
	generic.RecordStore
	generic.CustodianStore
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    Store
	validate *validator.Validate
	log      logger.Logger
	clock    generic.Clock

	currentScenario string
}

// NewHandler creates a new handler over store.
func NewHandler(store Store, log logger.Logger) *Handler {
	return &Handler{
		Store:    store,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log,
		clock:    generic.SystemClock{},
	}
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// RecordList wraps a month of records.
type RecordList struct {
	Records []generic.CustodyRecord `json:"custody_records"`
}

// =============================================================================
// RECORD HANDLERS
// =============================================================================

// ListRecords returns the records of one month.
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil || year < 1 {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}
	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil || month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}

	records, err := h.Store.ListRange(r.Context(), generic.MonthPeriod(year, time.Month(month)))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list records", err)
		return
	}

	writeJSON(w, http.StatusOK, RecordList{Records: records})
}

// UpdateRecord applies a mutation to an existing record. The path date wins
// over any date in the body.
func (h *Handler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	date, err := generic.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	var req generic.RecordUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req.Date = date
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid record", err)
		return
	}

	record, err := h.Store.Update(r.Context(), req)
	if errors.Is(err, generic.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "Record not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update record", err)
		return
	}

	h.log.Info().Str("date", date.String()).Str("custodian_id", string(record.CustodianID)).Msg("record updated")
	writeJSON(w, http.StatusOK, record)
}

// CreateRecord stores the first record for a date.
func (h *Handler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	var req generic.RecordUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid record", err)
		return
	}

	record, err := h.Store.Create(r.Context(), req.Apply(generic.CustodyRecord{}))
	if errors.Is(err, generic.ErrDuplicateDate) {
		writeError(w, http.StatusConflict, "Record already exists", err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create record", err)
		return
	}

	h.log.Info().Str("date", record.Date.String()).Str("custodian_id", string(record.CustodianID)).Msg("record created")
	writeJSON(w, http.StatusCreated, record)
}

// =============================================================================
// FAMILY HANDLERS
// =============================================================================

// GetCustodians returns both custodians.
func (h *Handler) GetCustodians(w http.ResponseWriter, r *http.Request) {
	family, err := h.Store.Family(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load custodians", err)
		return
	}
	if !family.Loaded() {
		writeError(w, http.StatusNotFound, "No custodians configured", nil)
		return
	}
	writeJSON(w, http.StatusOK, family)
}

// =============================================================================
// HELPERS
// =============================================================================

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
