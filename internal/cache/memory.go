package cache

import (
	"context"
	"sync"
	"time"

	"github.com/soilfusion/cropadvisor/internal/models"
)

const defaultSweepInterval = time.Minute

type memoryEntry struct {
	result    models.PredictionResult
	expiresAt time.Time
}

// Memory is an in-process TTL cache. A background janitor drops expired
// entries; Get also ignores them so expiry is exact.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	nowFn   func() time.Time
	stop    chan struct{}
	once    sync.Once
}

// NewMemory creates a memory cache and starts its janitor. A non-positive
// ttl keeps entries until Close.
func NewMemory(ttl time.Duration) *Memory {
	m := newMemory(ttl, time.Now)
	go m.janitor(defaultSweepInterval)
	return m
}

func newMemory(ttl time.Duration, now func() time.Time) *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		nowFn:   now,
		stop:    make(chan struct{}),
	}
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Get(_ context.Context, key string) (models.PredictionResult, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok || m.expired(e, m.nowFn()) {
		return models.PredictionResult{}, false, nil
	}
	return cloneResult(e.result), true, nil
}

func (m *Memory) Set(_ context.Context, key string, result models.PredictionResult) error {
	e := memoryEntry{result: cloneResult(result)}
	if m.ttl > 0 {
		e.expiresAt = m.nowFn().Add(m.ttl)
	}

	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired or not
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close stops the janitor and drops all entries
func (m *Memory) Close() error {
	m.once.Do(func() { close(m.stop) })
	m.mu.Lock()
	m.entries = make(map[string]memoryEntry)
	m.mu.Unlock()
	return nil
}

func (m *Memory) expired(e memoryEntry, now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// sweep removes expired entries
func (m *Memory) sweep() {
	now := m.nowFn()
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, e := range m.entries {
		if m.expired(e, now) {
			delete(m.entries, k)
		}
	}
}

func (m *Memory) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stop:
			return
		}
	}
}
