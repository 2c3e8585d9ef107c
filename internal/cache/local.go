package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// LocalTier is the in-process fallback tier. Entries self-expire via a
// janitor goroutine independent of explicit deletion, bounding worst-case
// staleness even if an invalidation call is missed.
type LocalTier struct {
	mu      sync.RWMutex
	entries map[string]localEntry
	done    chan struct{}
	stop    sync.Once
}

type localEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewLocalTier creates a local tier whose janitor sweeps expired entries on
// the given interval.
func NewLocalTier(sweepInterval time.Duration) *LocalTier {
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	t := &LocalTier{
		entries: make(map[string]localEntry),
		done:    make(chan struct{}),
	}
	go t.janitor(sweepInterval)
	return t
}

// Name identifies the tier in degraded-mode logs.
func (t *LocalTier) Name() string { return "local" }

// Get retrieves a value. Expired entries are treated as misses even before
// the janitor collects them.
func (t *LocalTier) Get(ctx context.Context, key string) ([]byte, error) {
	t.mu.RLock()
	entry, ok := t.entries[key]
	t.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return nil, ErrMiss
	}
	return entry.value, nil
}

// Set stores a value with the given TTL.
func (t *LocalTier) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Minute
	}
	t.mu.Lock()
	t.entries[key] = localEntry{value: value, expiresAt: time.Now().Add(ttl)}
	t.mu.Unlock()
	return nil
}

// Delete removes the given keys.
func (t *LocalTier) Delete(ctx context.Context, keys ...string) error {
	t.mu.Lock()
	for _, key := range keys {
		delete(t.entries, key)
	}
	t.mu.Unlock()
	return nil
}

// DeletePrefix removes every key under the given prefix.
func (t *LocalTier) DeletePrefix(ctx context.Context, prefix string) error {
	t.mu.Lock()
	for key := range t.entries {
		if strings.HasPrefix(key, prefix) {
			delete(t.entries, key)
		}
	}
	t.mu.Unlock()
	return nil
}

// Close stops the janitor goroutine.
func (t *LocalTier) Close() {
	t.stop.Do(func() { close(t.done) })
}

func (t *LocalTier) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case now := <-ticker.C:
			t.mu.Lock()
			for key, entry := range t.entries {
				if now.After(entry.expiresAt) {
					delete(t.entries, key)
				}
			}
			t.mu.Unlock()
		}
	}
}

var _ Tier = (*LocalTier)(nil)
