// Package store provides RecordStore implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/warp/custody-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	records []generic.CustodyRecord // sorted by date
	family  generic.Family
}

func NewMemory() *Memory {
	return &Memory{}
}

// Create inserts a record keeping the slice sorted by date.
func (m *Memory) Create(_ context.Context, r generic.CustodyRecord) (generic.CustodyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, found := m.search(r.Date)
	if found {
		return generic.CustodyRecord{}, generic.ErrDuplicateDate
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	m.records = append(m.records, generic.CustodyRecord{})
	copy(m.records[i+1:], m.records[i:])
	m.records[i] = r
	return r, nil
}

func (m *Memory) Update(_ context.Context, u generic.RecordUpdate) (generic.CustodyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, found := m.search(u.Date)
	if !found {
		return generic.CustodyRecord{}, generic.ErrRecordNotFound
	}
	m.records[i] = u.Apply(m.records[i])
	return m.records[i], nil
}

func (m *Memory) Get(_ context.Context, date generic.Date) (generic.CustodyRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, found := m.search(date)
	if !found {
		return generic.CustodyRecord{}, generic.ErrRecordNotFound
	}
	return m.records[i], nil
}

func (m *Memory) ListRange(_ context.Context, p generic.Period) ([]generic.CustodyRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []generic.CustodyRecord{}
	start, _ := m.search(p.Start)
	for _, r := range m.records[start:] {
		if !p.Contains(r.Date) {
			break
		}
		result = append(result, r)
	}
	return result, nil
}

func (m *Memory) Family(_ context.Context) (generic.Family, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.family, nil
}

func (m *Memory) SaveFamily(_ context.Context, f generic.Family) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.family = f
	return nil
}

// search returns the insertion index for date and whether it is occupied.
func (m *Memory) search(date generic.Date) (int, bool) {
	i := sort.Search(len(m.records), func(i int) bool {
		return !m.records[i].Date.Before(date)
	})
	return i, i < len(m.records) && m.records[i].Date.Equal(date)
}

// Compile-time checks
var (
	_ generic.RecordStore    = (*Memory)(nil)
	_ generic.CustodianStore = (*Memory)(nil)
)

// Seeded returns a memory store holding records, for tests.
func Seeded(family generic.Family, records ...generic.CustodyRecord) *Memory {
	m := NewMemory()
	m.family = family
	for _, r := range records {
		_, _ = m.Create(context.Background(), r)
	}
	return m
}
