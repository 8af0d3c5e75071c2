/*
scheduler.go - Unsolicited triggers into the custody engine

PURPOSE:
  Re-runs the streak calculation when the clock crosses a cutover instant,
  every 60 seconds, and whenever the app comes back to the foreground.
  None of these triggers touch network state.

DESIGN:
  - Cron entries in the family's timezone:
      0 12 * * 0,6    weekend cutover (noon)
      0 17 * * 1-5    weekday cutover (17:00)
      @every 60s      periodic refresh
  - A lifecycle channel delivers foreground/background events
  - Both paths call into a Target; the engine implements it

USAGE:
  s := scheduler.New(engine, scheduler.WithLocation(loc))
  s.Start()
  go s.Watch(ctx, lifecycleEvents)
  // ... later
  s.Stop()

SEE ALSO:
  - custody/engine.go: Tick and Foreground
  - custody/rules.go: Cutover times
*/
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/warp/custody-engine/logger"
)

const (
	WeekendCutoverSpec = "0 12 * * 0,6"
	WeekdayCutoverSpec = "0 17 * * 1-5"
	PeriodicSpec       = "@every 60s"
)

// Target receives the triggers.
type Target interface {
	Tick()
	Foreground()
}

type LifecycleEvent int

const (
	Foreground LifecycleEvent = iota
	Background
)

func (e LifecycleEvent) String() string {
	if e == Foreground {
		return "foreground"
	}
	return "background"
}

// Scheduler owns the cron runner for one engine.
type Scheduler struct {
	target   Target
	cron     *cron.Cron
	location *time.Location
	log      logger.Logger

	mu      sync.Mutex
	started bool
	entries []cron.EntryID
}

type Option func(*Scheduler)

func WithLocation(loc *time.Location) Option { return func(s *Scheduler) { s.location = loc } }
func WithLogger(l logger.Logger) Option      { return func(s *Scheduler) { s.log = l } }

func New(target Target, opts ...Option) *Scheduler {
	s := &Scheduler{
		target:   target,
		location: time.Local,
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cron = cron.New(cron.WithLocation(s.location))
	return s
}

// Start registers the cron entries and starts the runner.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	for _, spec := range []string{WeekendCutoverSpec, WeekdayCutoverSpec, PeriodicSpec} {
		spec := spec
		id, err := s.cron.AddFunc(spec, func() {
			s.log.Debug().Str("spec", spec).Msg("tick")
			s.target.Tick()
		})
		if err != nil {
			return err
		}
		s.entries = append(s.entries, id)
	}
	s.cron.Start()
	s.started = true

	s.log.Info().Str("location", s.location.String()).Int("entries", len(s.entries)).Msg("scheduler started")
	return nil
}

// Stop halts the runner and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	<-s.cron.Stop().Done()
	s.started = false
	s.log.Info().Msg("scheduler stopped")
}

// Entries lists the registered cron entries.
func (s *Scheduler) Entries() []cron.Entry { return s.cron.Entries() }

// Watch forwards lifecycle events until ctx is done or events is closed.
func (s *Scheduler) Watch(ctx context.Context, events <-chan LifecycleEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.log.Debug().Str("event", ev.String()).Msg("lifecycle")
			if ev == Foreground {
				s.target.Foreground()
			}
		}
	}
}
