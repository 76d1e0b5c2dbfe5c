package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	payload   Payload
	expiresAt time.Time
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// Memory is an in-process Store guarded by one mutex. Expired entries are
// removed when read, or by Sweep.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// NewMemory returns an empty Memory store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{entries: make(map[string]entry), now: time.Now}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, fp string) (Payload, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[fp]
	if !ok {
		return Payload{}, false
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.entries, fp)
		return Payload{}, false
	}
	return e.payload, true
}

// Set implements Store. A non-positive ttl stores nothing.
func (m *Memory) Set(_ context.Context, fp string, p Payload, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	m.mu.Lock()
	m.entries[fp] = entry{payload: p, expiresAt: m.now().Add(ttl)}
	m.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Sweep removes every expired entry and returns how many were dropped.
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for k, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, k)
			n++
		}
	}
	return n
}

// RunSweeper calls Sweep every interval until ctx is done. It blocks.
func (m *Memory) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Sweep()
		}
	}
}
