/*
handlers_test.go - Unit tests for the reference backend

Tests for:
- Month listing (wrapped shape, query validation)
- PUT semantics (404 when absent, path date wins)
- POST semantics (201, 409 on duplicate)
- Custodians and scenario loading
*/
package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/custody-engine/generic"
	"github.com/warp/custody-engine/generic/store"
	"github.com/warp/custody-engine/logger"
)

func newTestServer(t *testing.T, records ...generic.CustodyRecord) (*Handler, http.Handler) {
	t.Helper()
	h := NewHandler(store.Seeded(DemoFamily, records...), logger.Nop())
	h.clock = &generic.FixedClock{At: time.Date(2023, 11, 1, 9, 0, 0, 0, time.UTC)}
	return h, NewRouter(h)
}

func do(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestListRecords_WrapsMonth(t *testing.T) {
	// GIVEN: Records on both sides of a month boundary
	_, router := newTestServer(t,
		generic.CustodyRecord{Date: generic.MustParseDate("2023-10-31"), CustodianID: "cust-alex"},
		generic.CustodyRecord{Date: generic.MustParseDate("2023-11-01"), CustodianID: "cust-blair"},
	)

	// WHEN: Listing November
	rec := do(t, router, http.MethodGet, "/api/custody-records?year=2023&month=11", "")

	// THEN: Only November, under the custody_records key
	require.Equal(t, http.StatusOK, rec.Code)
	var list RecordList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Records, 1)
	assert.Equal(t, "2023-11-01", list.Records[0].Date.String())
}

func TestListRecords_EmptyMonthIsEmptyArray(t *testing.T) {
	_, router := newTestServer(t)

	rec := do(t, router, http.MethodGet, "/api/custody-records?year=2023&month=11", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"custody_records":[]}`, rec.Body.String())
}

func TestListRecords_InvalidQuery(t *testing.T) {
	_, router := newTestServer(t)

	for _, q := range []string{"", "?year=2023", "?year=2023&month=13", "?year=abc&month=1"} {
		rec := do(t, router, http.MethodGet, "/api/custody-records"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestUpdateRecord_NotFound(t *testing.T) {
	_, router := newTestServer(t)

	rec := do(t, router, http.MethodPut, "/api/custody-records/2023-11-04", `{"date":"2023-11-04","custodian_id":"cust-alex"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateRecord_PathDateWins(t *testing.T) {
	// GIVEN: A record for Nov 4
	h, router := newTestServer(t, generic.CustodyRecord{Date: generic.MustParseDate("2023-11-04"), CustodianID: "cust-blair"})

	// WHEN: The body names another date
	rec := do(t, router, http.MethodPut, "/api/custody-records/2023-11-04", `{"date":"2023-12-25","custodian_id":"cust-alex"}`)

	// THEN: Nov 4 is updated and returned bare
	require.Equal(t, http.StatusOK, rec.Code)
	var got generic.CustodyRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "2023-11-04", got.Date.String())
	assert.Equal(t, generic.CustodianID("cust-alex"), got.CustodianID)

	stored, err := h.Store.Get(context.Background(), generic.MustParseDate("2023-11-04"))
	require.NoError(t, err)
	assert.Equal(t, generic.CustodianID("cust-alex"), stored.CustodianID)
}

func TestUpdateRecord_BadInput(t *testing.T) {
	_, router := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodPut, "/api/custody-records/2023-13-01", `{"custodian_id":"cust-alex"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodPut, "/api/custody-records/2023-11-04", `{`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodPut, "/api/custody-records/2023-11-04", `{}`).Code)
}

func TestCreateRecord(t *testing.T) {
	_, router := newTestServer(t)
	body := `{"date":"2023-11-04","custodian_id":"cust-alex","handoff_day":true,"handoff_time":"18:00"}`

	// WHEN: Creating a record
	rec := do(t, router, http.MethodPost, "/api/custody-records", body)

	// THEN: 201 with an id
	require.Equal(t, http.StatusCreated, rec.Code)
	var got generic.CustodyRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.NotEmpty(t, got.ID)
	assert.True(t, got.HandoffDay)

	// AND: Creating it again conflicts
	rec = do(t, router, http.MethodPost, "/api/custody-records", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateRecord_RequiresDate(t *testing.T) {
	_, router := newTestServer(t)

	rec := do(t, router, http.MethodPost, "/api/custody-records", `{"custodian_id":"cust-alex"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Invalid record", resp.Error)
}

func TestGetCustodians(t *testing.T) {
	_, router := newTestServer(t)

	rec := do(t, router, http.MethodGet, "/api/custodians", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var f generic.Family
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &f))
	assert.Equal(t, DemoFamily, f)
}

func TestGetCustodians_NotConfigured(t *testing.T) {
	h := NewHandler(store.NewMemory(), logger.Nop())

	rec := do(t, NewRouter(h), http.MethodGet, "/api/custodians", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
