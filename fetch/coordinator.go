package fetch

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/warp/custody-engine/generic"
	"github.com/warp/custody-engine/logger"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// STATES AND TRANSITIONS
// =============================================================================

type State string

const (
	StatePending    State = "pending"
	StateAttempting State = "attempting"
	StateRetrying   State = "retrying"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

const (
	OpFetch  = "fetch"
	OpUpdate = "update"
	OpCreate = "create"
)

// Transition is reported to the observer on every state change.
type Transition struct {
	Op      string
	Target  string // window or date
	State   State
	Attempt int
	Delay   time.Duration // set when State is StateRetrying
	Err     error
}

// =============================================================================
// RETRY POLICY - Linear backoff: 2s, 4s, 6s, then give up
// =============================================================================

type RetryPolicy struct {
	MaxRetries int
	Step       time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, Step: 2 * time.Second}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	var b backoff.BackOff = &backoff.StopBackOff{}
	if p.MaxRetries > 0 {
		b = backoff.WithMaxRetries(&linearBackOff{step: p.Step}, uint64(p.MaxRetries))
	}
	return backoff.WithContext(b, ctx)
}

// linearBackOff waits (n+1)*step before retry n.
type linearBackOff struct {
	step time.Duration
	n    int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return time.Duration(b.n) * b.step
}

func (b *linearBackOff) Reset() { b.n = 0 }

// TimerFactory supplies the timer used while backing off. Tests inject timers
// that fire immediately and record the requested delays.
type TimerFactory func() backoff.Timer

// =============================================================================
// COORDINATOR
// =============================================================================

// WindowResult is the outcome of one window of a FetchRange.
type WindowResult struct {
	Window  generic.Window
	Records []generic.CustodyRecord
	Err     error
}

type Coordinator struct {
	port     Port
	policy   RetryPolicy
	timers   TimerFactory
	decoder  *Decoder
	limit    int
	log      logger.Logger
	inflight *InFlightSet

	obsMu    sync.RWMutex
	observer func(Transition)
}

type Option func(*Coordinator)

func WithRetryPolicy(p RetryPolicy) Option { return func(c *Coordinator) { c.policy = p } }
func WithTimers(f TimerFactory) Option     { return func(c *Coordinator) { c.timers = f } }
func WithDecoder(d *Decoder) Option        { return func(c *Coordinator) { c.decoder = d } }
func WithLogger(l logger.Logger) Option    { return func(c *Coordinator) { c.log = l } }
func WithObserver(fn func(Transition)) Option {
	return func(c *Coordinator) { c.observer = fn }
}

// WithConcurrency caps how many windows FetchRange requests at once.
// Zero means no cap.
func WithConcurrency(n int) Option { return func(c *Coordinator) { c.limit = n } }

func NewCoordinator(port Port, opts ...Option) *Coordinator {
	c := &Coordinator{
		port:     port,
		policy:   DefaultRetryPolicy(),
		decoder:  NewDecoder(),
		log:      logger.Nop(),
		inflight: NewInFlightSet(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Observe replaces the transition observer.
func (c *Coordinator) Observe(fn func(Transition)) {
	c.obsMu.Lock()
	c.observer = fn
	c.obsMu.Unlock()
}

// InFlight exposes the mutation guard, mostly for tests and diagnostics.
func (c *Coordinator) InFlight() *InFlightSet { return c.inflight }

// FetchMonth fetches and decodes one window.
func (c *Coordinator) FetchMonth(ctx context.Context, w generic.Window) ([]generic.CustodyRecord, error) {
	target := w.String()
	resp, attempts, err := c.do(ctx, OpFetch, target, func(ctx context.Context) (*Response, error) {
		return c.port.FetchMonth(ctx, w)
	})
	if err != nil {
		return nil, err
	}

	records, shape, err := c.decoder.Decode(resp.Body)
	if err != nil {
		return nil, c.fail(OpFetch, target, attempts, err)
	}

	c.log.Debug().Str("window", target).Str("shape", shape).Int("records", len(records)).Msg("fetched window")
	c.emit(Transition{Op: OpFetch, Target: target, State: StateSucceeded, Attempt: attempts})
	return records, nil
}

// FetchRange requests every window in parallel and waits for all of them.
// Results are in completion order; each carries its own error.
func (c *Coordinator) FetchRange(ctx context.Context, windows []generic.Window) []WindowResult {
	var (
		mu      sync.Mutex
		results = make([]WindowResult, 0, len(windows))
	)

	g := new(errgroup.Group)
	if c.limit > 0 {
		g.SetLimit(c.limit)
	}
	for _, w := range windows {
		w := w
		g.Go(func() error {
			records, err := c.FetchMonth(ctx, w)
			mu.Lock()
			results = append(results, WindowResult{Window: w, Records: records, Err: err})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// UpdateRecord applies a custody mutation. A second call for a date whose
// mutation is still outstanding returns ErrRequestDropped without touching
// the network. A 404 on the PUT is retried once as a POST with the same
// payload; the pair is not atomic.
func (c *Coordinator) UpdateRecord(ctx context.Context, u generic.RecordUpdate) (generic.CustodyRecord, error) {
	key := u.Date.String()
	if !c.inflight.Acquire(key) {
		c.log.Debug().Str("date", key).Msg("mutation already in flight, dropping request")
		return generic.CustodyRecord{}, generic.ErrRequestDropped
	}
	defer c.inflight.Release(key)

	op := OpUpdate
	resp, attempts, err := c.do(ctx, op, key, func(ctx context.Context) (*Response, error) {
		return c.port.UpdateRecord(ctx, u)
	})
	if generic.IsNotFound(err) {
		c.log.Info().Str("date", key).Msg("no record to update, creating one")
		op = OpCreate
		resp, attempts, err = c.do(ctx, op, key, func(ctx context.Context) (*Response, error) {
			return c.port.CreateRecord(ctx, u)
		})
	}
	if err != nil {
		return generic.CustodyRecord{}, err
	}

	record, err := c.decodeMutation(resp.Body, u)
	if err != nil {
		return generic.CustodyRecord{}, c.fail(op, key, attempts, err)
	}
	c.emit(Transition{Op: op, Target: key, State: StateSucceeded, Attempt: attempts})
	return record, nil
}

// decodeMutation picks the record for u.Date out of the reply. An empty body,
// or one without that date, means the backend accepted the payload as sent.
func (c *Coordinator) decodeMutation(body []byte, u generic.RecordUpdate) (generic.CustodyRecord, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return u.Apply(generic.CustodyRecord{}), nil
	}
	records, _, err := c.decoder.Decode(body)
	if err != nil {
		return generic.CustodyRecord{}, err
	}
	for _, r := range records {
		if r.Date.Equal(u.Date) {
			return r, nil
		}
	}
	return u.Apply(generic.CustodyRecord{}), nil
}

// do runs call under the retry policy and classifies the outcome.
func (c *Coordinator) do(ctx context.Context, op, target string, call func(context.Context) (*Response, error)) (*Response, int, error) {
	c.emit(Transition{Op: op, Target: target, State: StatePending})

	var (
		attempts int
		resp     *Response
	)
	operation := func() error {
		attempts++
		c.emit(Transition{Op: op, Target: target, State: StateAttempting, Attempt: attempts})

		r, err := call(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return backoff.Permanent(ctxErr)
			}
			return &generic.TransientError{Err: err}
		}
		if err := classify(r); err != nil {
			return err
		}
		resp = r
		return nil
	}
	notify := func(err error, delay time.Duration) {
		c.log.Warn().Err(err).
			Str("op", op).
			Str("target", target).
			Int("attempt", attempts).
			Dur("delay", delay).
			Msg("transient failure, retrying")
		c.emit(Transition{Op: op, Target: target, State: StateRetrying, Attempt: attempts, Delay: delay, Err: err})
	}

	var timer backoff.Timer
	if c.timers != nil {
		timer = c.timers()
	}
	if err := backoff.RetryNotifyWithTimer(operation, c.policy.backOff(ctx), notify, timer); err != nil {
		return nil, attempts, c.fail(op, target, attempts, err)
	}
	return resp, attempts, nil
}

func (c *Coordinator) fail(op, target string, attempts int, err error) error {
	ferr := &generic.FetchError{Op: op, Target: target, Attempts: attempts, Err: err}
	if !generic.IsNotFound(err) {
		c.log.Error().Err(err).Str("op", op).Str("target", target).Int("attempts", attempts).Msg("request failed")
	}
	c.emit(Transition{Op: op, Target: target, State: StateFailed, Attempt: attempts, Err: ferr})
	return ferr
}

// classify maps a status code to nil (2xx), a retryable error (504) or a
// permanent one.
func classify(r *Response) error {
	switch {
	case r.StatusCode >= 200 && r.StatusCode < 300:
		return nil
	case r.StatusCode == http.StatusGatewayTimeout:
		return &generic.TransientError{Status: r.StatusCode}
	case r.StatusCode == http.StatusUnauthorized:
		return backoff.Permanent(fmt.Errorf("%w: HTTP %d", generic.ErrSessionInvalid, r.StatusCode))
	default:
		return backoff.Permanent(&generic.RequestError{Status: r.StatusCode, Body: snippet(r.Body)})
	}
}

func snippet(body []byte) string {
	const limit = 200
	body = bytes.TrimSpace(body)
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}

func (c *Coordinator) emit(t Transition) {
	c.obsMu.RLock()
	fn := c.observer
	c.obsMu.RUnlock()
	if fn != nil {
		fn(t)
	}
}
