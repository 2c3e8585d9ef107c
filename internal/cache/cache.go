package cache

import (
	"context"
	"errors"
	"log"
	"time"
)

// ErrMiss is returned by a tier when the key is absent.
var ErrMiss = errors.New("cache miss")

// Tier is one cache backend. The Facade tries tiers in declaration order;
// every tier call is bounded by the facade's per-operation timeout.
type Tier interface {
	Name() string
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// DefaultOpTimeout bounds a single tier operation. A slow or unreachable
// tier degrades the request to the next tier, never blocks it.
const DefaultOpTimeout = 200 * time.Millisecond

// Facade is the two-tier read-through cache: a durable shared tier first,
// then a node-local fallback tier. Reads fall through on miss or tier error;
// writes land on the first tier that accepts them.
type Facade struct {
	tiers     []Tier
	opTimeout time.Duration
}

// NewFacade creates a facade over the given tiers, tried in order.
func NewFacade(opTimeout time.Duration, tiers ...Tier) *Facade {
	if opTimeout <= 0 {
		opTimeout = DefaultOpTimeout
	}
	return &Facade{tiers: tiers, opTimeout: opTimeout}
}

// Get returns the cached value for key. degraded is true when the value was
// served by a fallback tier rather than the primary, or when the primary
// tier errored on the way to a miss. Returns ErrMiss when no tier has the
// key.
func (f *Facade) Get(ctx context.Context, key string) (value []byte, degraded bool, err error) {
	for i, tier := range f.tiers {
		opCtx, cancel := context.WithTimeout(ctx, f.opTimeout)
		value, err = tier.Get(opCtx, key)
		cancel()
		if err == nil {
			return value, i > 0 || degraded, nil
		}
		if !errors.Is(err, ErrMiss) {
			// Tier unavailable: fall through, flag for observability.
			log.Printf("[CACHE] tier=%s op=get key=%s err=%v", tier.Name(), key, err)
			degraded = true
		}
	}
	return nil, degraded, ErrMiss
}

// Set stores the value on the first tier that accepts it. A durable-tier
// outage therefore degrades to node-local caching with the same TTL rather
// than to no caching at all.
func (f *Facade) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var lastErr error
	for _, tier := range f.tiers {
		opCtx, cancel := context.WithTimeout(ctx, f.opTimeout)
		err := tier.Set(opCtx, key, value, ttl)
		cancel()
		if err == nil {
			return nil
		}
		log.Printf("[CACHE] tier=%s op=set key=%s err=%v", tier.Name(), key, err)
		lastErr = err
	}
	return lastErr
}

// Delete removes the given keys from every tier. Invalidation is delete-on-
// write: all tiers are attempted even when one fails, so a missed tier is
// bounded by its entry TTLs rather than left permanently stale.
func (f *Facade) Delete(ctx context.Context, keys ...string) error {
	var lastErr error
	for _, tier := range f.tiers {
		opCtx, cancel := context.WithTimeout(ctx, f.opTimeout)
		if err := tier.Delete(opCtx, keys...); err != nil {
			log.Printf("[CACHE] tier=%s op=delete err=%v", tier.Name(), err)
			lastErr = err
		}
		cancel()
	}
	return lastErr
}

// DeletePrefix removes every key under the given prefix from every tier.
func (f *Facade) DeletePrefix(ctx context.Context, prefix string) error {
	var lastErr error
	for _, tier := range f.tiers {
		opCtx, cancel := context.WithTimeout(ctx, f.opTimeout)
		if err := tier.DeletePrefix(opCtx, prefix); err != nil {
			log.Printf("[CACHE] tier=%s op=delete_prefix prefix=%s err=%v", tier.Name(), prefix, err)
			lastErr = err
		}
		cancel()
	}
	return lastErr
}
