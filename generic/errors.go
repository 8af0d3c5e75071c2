/*
errors.go - Centralized error types for the custody engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The fetch coordinator classifies transport outcomes into these; the engine
  and the HTTP layers only ever match on them with errors.Is / errors.As.

ERROR CATEGORIES:
  1. Transient - network failure or 504, retried, then ErrFetchFailed
  2. Authentication - 401, ErrSessionInvalid, never retried
  3. Request - any other status >= 400, ErrRequestFailed with the status
  4. Decode - no response shape matched, ErrDecodeFailed
  5. Local - dropped duplicate mutation, engine not ready, bad input

SEE ALSO:
  - fetch/coordinator.go: Produces transport errors
  - custody/engine.go: Turns them into events
*/
package generic

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrFetchFailed is returned once transient failures exhaust the retries.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrSessionInvalid is returned on HTTP 401. Callers should log out.
	ErrSessionInvalid = errors.New("session invalid")

	// ErrRequestFailed is returned for any other HTTP status >= 400.
	ErrRequestFailed = errors.New("request failed")

	// ErrDecodeFailed is returned when no response shape decodes the payload.
	ErrDecodeFailed = errors.New("decode failed")

	// ErrRequestDropped is returned when a mutation for the same date is
	// already in flight. It is a no-op, not a failure.
	ErrRequestDropped = errors.New("request dropped: mutation already in flight")

	// ErrNotReady is returned when custodian identities are not loaded yet.
	ErrNotReady = errors.New("custodians not loaded")

	// ErrRecordNotFound is returned by stores for an unknown date.
	ErrRecordNotFound = errors.New("custody record not found")

	// ErrDuplicateDate is returned when creating a record for a date that
	// already has one.
	ErrDuplicateDate = errors.New("custody record already exists for date")

	// ErrInvalidDate is returned for a malformed yyyy-MM-dd string.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidPeriod is returned when a period ends before it starts.
	ErrInvalidPeriod = errors.New("invalid period: end before start")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// FetchError wraps the terminal error of a coordinated request.
type FetchError struct {
	Op       string // "fetch", "update", "create"
	Target   string // window ("2023-11") or date ("2023-11-04")
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s %s failed after %d attempt(s): %v", e.Op, e.Target, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// TransientError marks a retryable failure: transport error or HTTP 504.
type TransientError struct {
	Status int // 0 for transport errors
	Err    error
}

func (e *TransientError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transient failure: HTTP %d", e.Status)
	}
	return fmt.Sprintf("transient failure: %v", e.Err)
}

func (e *TransientError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrFetchFailed}
	}
	return []error{ErrFetchFailed, e.Err}
}

// RequestError carries the HTTP status of a non-retryable failure.
type RequestError struct {
	Status int
	Body   string
}

func (e *RequestError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("request failed: HTTP %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("request failed: HTTP %d", e.Status)
}

func (e *RequestError) Unwrap() error { return ErrRequestFailed }

// DecodeError lists every response shape that was tried.
type DecodeError struct {
	Tried []string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode failed (tried %s): %v", strings.Join(e.Tried, ", "), e.Err)
}

func (e *DecodeError) Unwrap() error { return ErrDecodeFailed }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true for transport errors and HTTP 504.
func IsRetryable(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// IsSessionInvalid returns true if the caller must invalidate the session.
func IsSessionInvalid(err error) bool {
	return errors.Is(err, ErrSessionInvalid)
}

// IsDropped returns true for a de-duplicated mutation.
func IsDropped(err error) bool {
	return errors.Is(err, ErrRequestDropped)
}

// IsNotFound returns true for a missing record or an HTTP 404.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrRecordNotFound) {
		return true
	}
	var re *RequestError
	return errors.As(err, &re) && re.Status == 404
}

// IsClientError returns true if the error is due to invalid input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidDate) || errors.Is(err, ErrInvalidPeriod)
}
