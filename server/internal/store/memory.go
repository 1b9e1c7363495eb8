package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Memory is a thread-safe in-memory Store. When retention is positive a
// background loop (Run) evicts records older than it.
type Memory struct {
	mu        sync.RWMutex
	records   []Record
	nextID    int64
	retention time.Duration
	now       func() time.Time // injectable for deterministic tests
}

// NewMemory returns an empty Memory store. A zero retention keeps everything.
func NewMemory(retention time.Duration) *Memory {
	return &Memory{retention: retention, now: time.Now}
}

// Save implements Store.
func (m *Memory) Save(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	rec.ID = m.nextID
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = m.now()
	}
	rec.Payload = append([]byte(nil), rec.Payload...)
	m.records = append(m.records, rec)
	return nil
}

// History implements Store.
func (m *Memory) History(_ context.Context, userID string, limit int) ([]Record, error) {
	m.mu.RLock()
	out := make([]Record, 0)
	for _, r := range m.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// TeamRecords implements Store.
func (m *Memory) TeamRecords(_ context.Context, teamID string) ([]Record, error) {
	m.mu.RLock()
	out := make([]Record, 0)
	for _, r := range m.records {
		if r.TeamID == teamID {
			out = append(out, r)
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Count returns the number of records held.
func (m *Memory) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Evict removes records created at or before now minus the retention and
// returns how many were removed. It is a no-op without retention.
func (m *Memory) Evict(now time.Time) int {
	if m.retention <= 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := now.Add(-m.retention)
	kept := m.records[:0]
	for _, r := range m.records {
		if r.CreatedAt.After(cutoff) {
			kept = append(kept, r)
		}
	}
	removed := len(m.records) - len(kept)
	m.records = kept
	return removed
}

// Run evicts expired records every half retention (minimum one minute)
// until ctx is cancelled. It returns immediately without retention.
func (m *Memory) Run(ctx context.Context) {
	if m.retention <= 0 {
		return
	}
	interval := max(m.retention/2, time.Minute)
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := m.Evict(now); n > 0 {
				slog.Debug("store: evicted expired session records", "count", n)
			}
		}
	}
}

// Close implements Store.
func (m *Memory) Close() error { return nil }
