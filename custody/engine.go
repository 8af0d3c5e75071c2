package custody

import (
	"context"
	"errors"
	"sync"

	"github.com/warp/custody-engine/fetch"
	"github.com/warp/custody-engine/generic"
	"github.com/warp/custody-engine/logger"
)

// =============================================================================
// SOURCE - Where records come from
// =============================================================================

// Source is the record transport as seen by the engine. *fetch.Coordinator
// implements it.
type Source interface {
	FetchRange(ctx context.Context, windows []generic.Window) []fetch.WindowResult
	UpdateRecord(ctx context.Context, u generic.RecordUpdate) (generic.CustodyRecord, error)
}

// =============================================================================
// ENGINE - Owns the record set and answers the presentation layer
// =============================================================================

// Engine serialises every change to the record set behind one mutex, the
// single logical context all merges run on. Reads take a snapshot of the
// immutable set and never block on network I/O.
type Engine struct {
	resolver Resolver
	cutover  Cutover
	merger   Merger
	source   Source
	clock    generic.Clock
	bus      *Bus
	log      logger.Logger

	mu      sync.RWMutex
	records RecordSet
	streak  Streak
}

type EngineOption func(*Engine)

func WithClock(c generic.Clock) EngineOption     { return func(e *Engine) { e.clock = c } }
func WithWeekdayRule(r WeekdayRule) EngineOption { return func(e *Engine) { e.resolver.Rule = r } }
func WithCutover(c Cutover) EngineOption         { return func(e *Engine) { e.cutover = c } }
func WithBus(b *Bus) EngineOption                { return func(e *Engine) { e.bus = b } }
func WithEngineLogger(l logger.Logger) EngineOption {
	return func(e *Engine) {
		e.log = l
		e.resolver.Log = l
		e.merger.Log = l
	}
}

func NewEngine(family generic.Family, source Source, opts ...EngineOption) *Engine {
	log := logger.Nop()
	e := &Engine{
		resolver: NewResolver(family, log),
		cutover:  DefaultCutover(),
		merger:   Merger{Log: log},
		source:   source,
		clock:    generic.SystemClock{},
		bus:      NewBus(),
		log:      log,
		records:  NewRecordSet(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Subscribe registers fn for engine events.
func (e *Engine) Subscribe(fn func(Event)) (unsubscribe func()) { return e.bus.Subscribe(fn) }

func (e *Engine) Family() generic.Family { return e.resolver.Family }

// Records returns the current record set.
func (e *Engine) Records() RecordSet {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.records
}

func (e *Engine) today() generic.Date { return generic.Today(e.clock) }

// =============================================================================
// READS
// =============================================================================

func (e *Engine) Resolve(date generic.Date) Assignment {
	return e.resolver.Resolve(date, e.today(), e.Records())
}

// DayAssignment pairs a date with its owner.
type DayAssignment struct {
	Date generic.Date
	Assignment
	Handoff bool
}

// Assignments resolves every day of p in order, for month and range views.
func (e *Engine) Assignments(p generic.Period) []DayAssignment {
	set, today := e.Records(), e.today()
	out := make([]DayAssignment, 0, p.Len())
	for _, day := range p.Days() {
		out = append(out, DayAssignment{
			Date:       day,
			Assignment: e.resolver.Resolve(day, today, set),
			Handoff:    e.resolver.IsHandoff(day, today, set),
		})
	}
	return out
}

func (e *Engine) IsHandoff(date generic.Date) bool {
	return e.resolver.IsHandoff(date, e.today(), e.Records())
}

func (e *Engine) HandoffDetails(date generic.Date) HandoffDetails {
	return e.resolver.HandoffDetails(date, e.today(), e.Records())
}

// Streak returns the streak as of the last recomputation.
func (e *Engine) Streak() Streak {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.streak
}

func (e *Engine) Percentages(p generic.Period) Shares {
	return e.resolver.Percentages(p, e.today(), e.Records())
}

// =============================================================================
// TRIGGERS
// =============================================================================

// Tick is called by the periodic timer and at every cutover instant.
func (e *Engine) Tick() { e.refreshStreak() }

// Foreground is called when the app returns to the foreground.
func (e *Engine) Foreground() { e.refreshStreak() }

func (e *Engine) refreshStreak() {
	e.mu.Lock()
	changed := e.recomputeLocked()
	streak := e.streak
	e.mu.Unlock()

	if changed {
		e.publish(Event{Kind: EventStreakChanged, Streak: streak})
	}
}

// recomputeLocked updates the cached streak. Callers hold e.mu.
func (e *Engine) recomputeLocked() bool {
	s := e.resolver.Streak(e.clock.Now(), e.cutover, e.records)
	if s == e.streak {
		return false
	}
	e.streak = s
	return true
}

// =============================================================================
// SYNC - Fetch windows and merge them
// =============================================================================

// Sync fetches windows in parallel, then merges the successful ones in the
// order they completed. Failed windows keep whatever was known before.
func (e *Engine) Sync(ctx context.Context, windows []generic.Window) error {
	if len(windows) == 0 {
		return nil
	}
	results := e.source.FetchRange(ctx, windows)

	var (
		errs        []error
		failed      []Event
		changed     bool
		sessionLost bool
	)

	e.mu.Lock()
	for _, res := range results {
		if res.Err != nil {
			errs = append(errs, res.Err)
			failed = append(failed, Event{Kind: EventFetchFailed, Target: windowTarget(res.Window), Err: res.Err})
			if generic.IsSessionInvalid(res.Err) {
				sessionLost = true
			}
			continue
		}
		var result MergeResult
		e.records, result = e.merger.Merge(e.records, res.Records, res.Window)
		changed = changed || result.Changed
	}
	streakChanged := e.recomputeLocked()
	streak := e.streak
	e.mu.Unlock()

	for _, ev := range failed {
		e.publish(ev)
	}
	if sessionLost {
		e.publish(Event{Kind: EventSessionInvalid, Err: generic.ErrSessionInvalid})
	}
	if changed {
		e.publish(Event{Kind: EventRecordsChanged})
	}
	if streakChanged {
		e.publish(Event{Kind: EventStreakChanged, Streak: streak})
	}
	return errors.Join(errs...)
}

// SyncPeriod syncs every window p touches.
func (e *Engine) SyncPeriod(ctx context.Context, p generic.Period) error {
	return e.Sync(ctx, p.Windows())
}

// =============================================================================
// MUTATIONS
// =============================================================================

// Mutation is the outcome of a toggle.
type Mutation struct {
	Record  generic.CustodyRecord
	Dropped bool // another toggle for the same date was in flight
}

// ToggleCustodian assigns date to the custodian who does not hold it now.
// A toggle racing another one for the same date is dropped, not failed.
func (e *Engine) ToggleCustodian(ctx context.Context, date generic.Date) (Mutation, error) {
	family := e.resolver.Family
	if !family.Loaded() {
		return Mutation{}, generic.ErrNotReady
	}

	target := family.A
	if current := e.Resolve(date); current.Resolved() {
		target, _ = family.Other(current.OwnerID)
	}

	record, err := e.source.UpdateRecord(ctx, generic.RecordUpdate{Date: date, CustodianID: target.ID})
	if generic.IsDropped(err) {
		e.publish(Event{Kind: EventMutationDropped, Target: dateTarget(date)})
		return Mutation{Dropped: true}, nil
	}
	if err != nil {
		if generic.IsSessionInvalid(err) {
			e.publish(Event{Kind: EventSessionInvalid, Err: err})
		}
		return Mutation{}, err
	}
	if record.Date.IsZero() {
		record.Date = date
	}

	e.mu.Lock()
	e.records, _ = e.merger.Merge(e.records, []generic.CustodyRecord{record}, date.Window())
	streakChanged := e.recomputeLocked()
	streak := e.streak
	e.mu.Unlock()

	e.log.Info().
		Str("date", date.String()).
		Str("custodian_id", string(record.CustodianID)).
		Msg("custody toggled")

	e.publish(Event{Kind: EventMutationApplied, Target: dateTarget(date)})
	e.publish(Event{Kind: EventRecordsChanged, Target: dateTarget(date)})
	if streakChanged {
		e.publish(Event{Kind: EventStreakChanged, Streak: streak})
	}
	return Mutation{Record: record}, nil
}

// Logout wipes every record held for the session.
func (e *Engine) Logout() {
	e.mu.Lock()
	e.records = NewRecordSet()
	streakChanged := e.recomputeLocked()
	streak := e.streak
	e.mu.Unlock()

	e.log.Info().Msg("session records cleared")
	e.publish(Event{Kind: EventRecordsChanged})
	if streakChanged {
		e.publish(Event{Kind: EventStreakChanged, Streak: streak})
	}
}

// ObserveFetch turns coordinator transitions into engine events; wire it
// with (*fetch.Coordinator).Observe.
func (e *Engine) ObserveFetch(t fetch.Transition) {
	if t.State != fetch.StateRetrying {
		return
	}
	e.publish(Event{Kind: EventFetchRetrying, Target: t.Target, Attempt: t.Attempt, Delay: t.Delay, Err: t.Err})
}

func (e *Engine) publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = e.clock.Now()
	}
	e.bus.Publish(ev)
}
