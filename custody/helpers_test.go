package custody_test

import (
	"context"
	"sync"
	"time"

	"github.com/warp/custody-engine/custody"
	"github.com/warp/custody-engine/fetch"
	"github.com/warp/custody-engine/generic"
	"github.com/warp/custody-engine/logger"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var family = generic.Family{
	A: generic.Custodian{ID: "cust-a", DisplayName: "Alex"},
	B: generic.Custodian{ID: "cust-b", DisplayName: "Blair"},
}

func day(s string) generic.Date { return generic.MustParseDate(s) }

func at(date string, hour, minute int) time.Time {
	d := day(date)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, time.UTC)
}

func assign(date string, id generic.CustodianID) generic.CustodyRecord {
	return generic.CustodyRecord{ID: "rec-" + date, Date: day(date), CustodianID: id}
}

func newResolver() custody.Resolver {
	return custody.NewResolver(family, logger.Nop())
}

// recorder collects published events.
type recorder struct {
	mu     sync.Mutex
	events []custody.Event
}

func (r *recorder) record(e custody.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) kinds() []custody.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]custody.EventKind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

func (r *recorder) find(kind custody.EventKind) (custody.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.Kind == kind {
			return e, true
		}
	}
	return custody.Event{}, false
}

// fakeSource answers FetchRange from canned per-window results.
type fakeSource struct {
	mu      sync.Mutex
	windows map[generic.Window]fetch.WindowResult
	updates []generic.RecordUpdate
	reply   func(u generic.RecordUpdate) (generic.CustodyRecord, error)
}

func newFakeSource() *fakeSource {
	return &fakeSource{windows: map[generic.Window]fetch.WindowResult{}}
}

func (f *fakeSource) serve(w string, records []generic.CustodyRecord, err error) {
	win, _ := generic.ParseWindow(w)
	f.mu.Lock()
	f.windows[win] = fetch.WindowResult{Window: win, Records: records, Err: err}
	f.mu.Unlock()
}

func (f *fakeSource) FetchRange(_ context.Context, windows []generic.Window) []fetch.WindowResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]fetch.WindowResult, 0, len(windows))
	for _, w := range windows {
		res, ok := f.windows[w]
		if !ok {
			res = fetch.WindowResult{Window: w, Records: []generic.CustodyRecord{}}
		}
		out = append(out, res)
	}
	return out
}

func (f *fakeSource) UpdateRecord(_ context.Context, u generic.RecordUpdate) (generic.CustodyRecord, error) {
	f.mu.Lock()
	f.updates = append(f.updates, u)
	reply := f.reply
	f.mu.Unlock()
	if reply != nil {
		return reply(u)
	}
	return u.Apply(generic.CustodyRecord{ID: "srv-" + u.Date.String()}), nil
}
