package custody

import (
	"sort"

	"github.com/warp/custody-engine/generic"
	"github.com/warp/custody-engine/logger"
)

// =============================================================================
// RECORD SET - Authoritative records, at most one per date
// =============================================================================

// RecordSet is immutable: Merge returns a new set and never touches its input,
// so readers can keep a snapshot without locking.
type RecordSet struct {
	records    []generic.CustodyRecord // ascending by Key()
	index      map[string]int
	provenance map[generic.Window]Provenance
}

// Provenance is what the last merge did to a window.
type Provenance struct {
	Received  int  // records in the last batch
	Preserved bool // last batch was empty and existing records were kept
	Merges    int  // batches merged into this window so far
}

// NewRecordSet builds a set; later records win over earlier ones for a date.
func NewRecordSet(records ...generic.CustodyRecord) RecordSet {
	byKey := make(map[string]generic.CustodyRecord, len(records))
	for _, r := range records {
		byKey[r.Key()] = r
	}
	return build(byKey, nil)
}

func build(byKey map[string]generic.CustodyRecord, provenance map[generic.Window]Provenance) RecordSet {
	records := make([]generic.CustodyRecord, 0, len(byKey))
	for _, r := range byKey {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Key() < records[j].Key() })

	index := make(map[string]int, len(records))
	for i, r := range records {
		index[r.Key()] = i
	}
	if provenance == nil {
		provenance = map[generic.Window]Provenance{}
	}
	return RecordSet{records: records, index: index, provenance: provenance}
}

func (s RecordSet) Get(date generic.Date) (generic.CustodyRecord, bool) {
	i, ok := s.index[date.String()]
	if !ok {
		return generic.CustodyRecord{}, false
	}
	return s.records[i], true
}

// Records returns a copy, sorted ascending by date.
func (s RecordSet) Records() []generic.CustodyRecord {
	out := make([]generic.CustodyRecord, len(s.records))
	copy(out, s.records)
	return out
}

func (s RecordSet) Len() int { return len(s.records) }

// CountIn returns how many records are dated inside w.
func (s RecordSet) CountIn(w generic.Window) int {
	n := 0
	for _, r := range s.records {
		if w.Contains(r.Date) {
			n++
		}
	}
	return n
}

func (s RecordSet) Provenance(w generic.Window) (Provenance, bool) {
	p, ok := s.provenance[w]
	return p, ok
}

// =============================================================================
// MERGER - Folds per-window batches into the set
// =============================================================================

// MergeResult describes one merge.
type MergeResult struct {
	Window    generic.Window
	Received  int
	Preserved bool // empty batch ignored to keep existing records
	Changed   bool // set contents differ from before
}

type Merger struct {
	Log logger.Logger
}

// Merge folds incoming into existing by date, last received wins.
//
// An empty batch for a window that already holds records is ignored: the
// backend answers transient failures with an empty page instead of a 5xx.
// The consequence is that merges are not commutative once an empty batch is
// involved, and a record removed server-side would never disappear here.
func (m Merger) Merge(existing RecordSet, incoming []generic.CustodyRecord, w generic.Window) (RecordSet, MergeResult) {
	result := MergeResult{Window: w, Received: len(incoming)}
	prov := existing.provenance[w]

	if len(incoming) == 0 {
		if n := existing.CountIn(w); n > 0 {
			m.Log.Warn().
				Str("window", w.String()).
				Int("existing", n).
				Msg("empty batch for populated window, keeping existing records")
			result.Preserved = true
			return existing.withProvenance(w, Provenance{Received: 0, Preserved: true, Merges: prov.Merges + 1}), result
		}
	}

	byKey := make(map[string]generic.CustodyRecord, existing.Len()+len(incoming))
	for _, r := range existing.records {
		byKey[r.Key()] = r
	}
	for _, r := range incoming {
		if old, ok := byKey[r.Key()]; !ok || !sameRecord(old, r) {
			result.Changed = true
		}
		byKey[r.Key()] = r
	}

	provenance := existing.copyProvenance()
	provenance[w] = Provenance{Received: len(incoming), Merges: prov.Merges + 1}

	m.Log.Debug().
		Str("window", w.String()).
		Int("received", len(incoming)).
		Bool("changed", result.Changed).
		Msg("merged batch")

	return build(byKey, provenance), result
}

func (s RecordSet) withProvenance(w generic.Window, p Provenance) RecordSet {
	provenance := s.copyProvenance()
	provenance[w] = p
	return RecordSet{records: s.records, index: s.index, provenance: provenance}
}

func (s RecordSet) copyProvenance() map[generic.Window]Provenance {
	cp := make(map[generic.Window]Provenance, len(s.provenance)+1)
	for k, v := range s.provenance {
		cp[k] = v
	}
	return cp
}

func sameRecord(a, b generic.CustodyRecord) bool {
	return a.ID == b.ID &&
		a.Date.Equal(b.Date) &&
		a.CustodianID == b.CustodianID &&
		a.HandoffDay == b.HandoffDay &&
		a.Content == b.Content &&
		equalPtr(a.HandoffTime, b.HandoffTime) &&
		equalPtr(a.HandoffLocation, b.HandoffLocation)
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
