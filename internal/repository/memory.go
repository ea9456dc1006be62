package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/septivank/meter-reading-service/internal/reading"
)

// Memory is an in-memory reading store for tests and local runs.
type Memory struct {
	mu       sync.RWMutex
	readings map[uuid.UUID]*reading.Reading
	order    []uuid.UUID
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		readings: make(map[uuid.UUID]*reading.Reading),
	}
}

// FindInPeriod returns the first reading of the customer and category measured in [from, to)
func (m *Memory) FindInPeriod(_ context.Context, customerCode string, category reading.Category, from, to time.Time) (*reading.Reading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, id := range m.order {
		r := m.readings[id]
		if r.CustomerCode != customerCode || r.Category != category {
			continue
		}
		if !r.MeasuredAt.Before(from) && r.MeasuredAt.Before(to) {
			found := *r
			return &found, nil
		}
	}
	return nil, nil
}

// Create inserts a reading
func (m *Memory) Create(_ context.Context, r *reading.Reading) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *r
	m.readings[r.ID] = &stored
	m.order = append(m.order, r.ID)
	return nil
}

// FindByID retrieves a reading by id
func (m *Memory) FindByID(_ context.Context, id uuid.UUID) (*reading.Reading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.readings[id]
	if !ok {
		return nil, reading.ErrNotFound
	}
	found := *r
	return &found, nil
}

// Confirm sets the value and flips confirmed on an unconfirmed reading
func (m *Memory) Confirm(_ context.Context, id uuid.UUID, value int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.readings[id]
	if !ok {
		return reading.ErrNotFound
	}
	if r.Confirmed {
		return reading.ErrAlreadyConfirmed
	}
	r.Value = value
	r.Confirmed = true
	return nil
}

// List returns readings of a customer and category ordered by measurement time
func (m *Memory) List(_ context.Context, customerCode string, category reading.Category) ([]reading.Reading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []reading.Reading
	for _, id := range m.order {
		r := m.readings[id]
		if r.CustomerCode == customerCode && r.Category == category {
			out = append(out, *r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MeasuredAt.Before(out[j].MeasuredAt)
	})
	return out, nil
}

// RecentValues gets values measured before the given instant, newest first
func (m *Memory) RecentValues(_ context.Context, customerCode string, category reading.Category, before time.Time, limit int) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matches []reading.Reading
	for _, id := range m.order {
		r := m.readings[id]
		if r.CustomerCode == customerCode && r.Category == category && r.MeasuredAt.Before(before) {
			matches = append(matches, *r)
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].MeasuredAt.After(matches[j].MeasuredAt)
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	values := make([]int64, len(matches))
	for i, r := range matches {
		values[i] = r.Value
	}
	return values, nil
}
