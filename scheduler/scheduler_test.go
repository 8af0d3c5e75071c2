package scheduler_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/custody-engine/scheduler"
)

type countingTarget struct {
	ticks       atomic.Int32
	foregrounds atomic.Int32
}

func (c *countingTarget) Tick()       { c.ticks.Add(1) }
func (c *countingTarget) Foreground() { c.foregrounds.Add(1) }

func TestCutoverSchedules(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	tests := []struct {
		name string
		spec string
		from time.Time
		want time.Time
	}{
		{"weekday before cutover", scheduler.WeekdayCutoverSpec,
			time.Date(2023, 10, 6, 16, 0, 0, 0, ny), time.Date(2023, 10, 6, 17, 0, 0, 0, ny)},
		{"friday after cutover skips weekend", scheduler.WeekdayCutoverSpec,
			time.Date(2023, 10, 6, 17, 0, 0, 0, ny), time.Date(2023, 10, 9, 17, 0, 0, 0, ny)},
		{"saturday noon", scheduler.WeekendCutoverSpec,
			time.Date(2023, 10, 7, 11, 0, 0, 0, ny), time.Date(2023, 10, 7, 12, 0, 0, 0, ny)},
		{"sunday after saturday", scheduler.WeekendCutoverSpec,
			time.Date(2023, 10, 7, 12, 0, 0, 0, ny), time.Date(2023, 10, 8, 12, 0, 0, 0, ny)},
		{"periodic", scheduler.PeriodicSpec,
			time.Date(2023, 10, 7, 11, 0, 0, 0, ny), time.Date(2023, 10, 7, 11, 1, 0, 0, ny)},
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schedule, err := parser.Parse(tt.spec)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(schedule.Next(tt.from)), "got %s", schedule.Next(tt.from))
		})
	}
}

func TestScheduler_StartIsIdempotent(t *testing.T) {
	s := scheduler.New(&countingTarget{}, scheduler.WithLocation(time.UTC))

	require.NoError(t, s.Start())
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Len(t, s.Entries(), 3)
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	s := scheduler.New(&countingTarget{})
	s.Stop()
	assert.Empty(t, s.Entries())
}

func TestWatch_ForegroundTriggersRecompute(t *testing.T) {
	target := &countingTarget{}
	s := scheduler.New(target)
	events := make(chan scheduler.LifecycleEvent, 3)

	// GIVEN: A background, then two foreground notifications
	events <- scheduler.Background
	events <- scheduler.Foreground
	events <- scheduler.Foreground
	close(events)

	// WHEN: Watching until the channel closes
	s.Watch(context.Background(), events)

	// THEN: Only foregrounds reach the target
	assert.Equal(t, int32(2), target.foregrounds.Load())
	assert.Zero(t, target.ticks.Load())
}

func TestWatch_StopsOnCancel(t *testing.T) {
	s := scheduler.New(&countingTarget{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		s.Watch(ctx, make(chan scheduler.LifecycleEvent))
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestLifecycleEvent_String(t *testing.T) {
	assert.Equal(t, "foreground", scheduler.Foreground.String())
	assert.Equal(t, "background", scheduler.Background.String())
}
