/*
Package fetch drives custody record requests against the backend.

PURPOSE:
  The Coordinator turns raw transport outcomes into the engine's error
  taxonomy. It retries transient failures with linear backoff, negotiates the
  response shape, de-duplicates concurrent mutations per date and falls back
  from PUT to POST when a record does not exist yet.

STATE MACHINE (per request):
  Pending -> Attempting(n) -> Succeeded
                           -> Failed
                           -> Retrying -> Attempting(n+1)

  transport error / 504   Retrying while n < 3, after (n+1)*2s; then Failed
  401                     Failed, ErrSessionInvalid, never retried
  other status >= 400     Failed, RequestError{Status}
  2xx                     decode via the ordered shape list, or Failed

PORT:
  Port is the injected transport. HTTPPort talks to the reference backend;
  tests use fakes that script status codes per attempt.

SEE ALSO:
  - shapes.go: Response shapes
  - coordinator.go: Retry and de-dup logic
  - custody/engine.go: Consumer
*/
package fetch

import (
	"context"

	"github.com/warp/custody-engine/generic"
)

// Response is a raw backend reply. Transport failures are returned as errors
// instead, never as a Response.
type Response struct {
	StatusCode int
	Body       []byte
}

// Port is the transport the coordinator drives.
type Port interface {
	// FetchMonth requests every record of one (year, month) window.
	FetchMonth(ctx context.Context, w generic.Window) (*Response, error)

	// UpdateRecord replaces the record of u.Date (PUT).
	UpdateRecord(ctx context.Context, u generic.RecordUpdate) (*Response, error)

	// CreateRecord creates a record (POST). Used after a 404 on update.
	CreateRecord(ctx context.Context, u generic.RecordUpdate) (*Response, error)
}
