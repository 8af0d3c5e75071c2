package generic_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warp/custody-engine/generic"
)

func TestFetchError_UnwrapsToSentinels(t *testing.T) {
	timeout := &generic.FetchError{Op: "fetch", Target: "2023-11", Attempts: 4, Err: &generic.TransientError{Status: 504}}
	assert.ErrorIs(t, timeout, generic.ErrFetchFailed)
	assert.True(t, generic.IsRetryable(timeout))
	assert.False(t, generic.IsSessionInvalid(timeout))
	assert.Contains(t, timeout.Error(), "after 4 attempt(s)")

	rejected := &generic.FetchError{Op: "update", Target: "2023-11-04", Attempts: 1, Err: &generic.RequestError{Status: 404}}
	assert.ErrorIs(t, rejected, generic.ErrRequestFailed)
	assert.True(t, generic.IsNotFound(rejected))
	assert.False(t, generic.IsRetryable(rejected))

	var re *generic.RequestError
	assert.ErrorAs(t, rejected, &re)
	assert.Equal(t, 404, re.Status)

	expired := &generic.FetchError{Op: "fetch", Target: "2023-11", Attempts: 1,
		Err: fmt.Errorf("%w: HTTP 401", generic.ErrSessionInvalid)}
	assert.True(t, generic.IsSessionInvalid(expired))
}

func TestTransientError_KeepsTransportCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := &generic.TransientError{Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, generic.ErrFetchFailed)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestDecodeError(t *testing.T) {
	err := &generic.DecodeError{Tried: []string{"array", "single", "wrapped"}, Err: errors.New("bad json")}
	assert.ErrorIs(t, err, generic.ErrDecodeFailed)
	assert.Contains(t, err.Error(), "array, single, wrapped")
}

func TestErrorHelpers(t *testing.T) {
	assert.True(t, generic.IsDropped(fmt.Errorf("toggle: %w", generic.ErrRequestDropped)))
	assert.True(t, generic.IsNotFound(generic.ErrRecordNotFound))
	assert.True(t, generic.IsClientError(fmt.Errorf("%w: x", generic.ErrInvalidDate)))
	assert.True(t, generic.IsClientError(generic.ErrInvalidPeriod))
	assert.False(t, generic.IsClientError(generic.ErrFetchFailed))
}
