package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTier is the durable shared cache tier backed by Redis.
type RedisTier struct {
	client *redis.Client
}

// NewRedisTier creates a Redis-backed cache tier.
func NewRedisTier(client *redis.Client) *RedisTier {
	return &RedisTier{client: client}
}

// Name identifies the tier in degraded-mode logs.
func (t *RedisTier) Name() string { return "redis" }

// Get retrieves a value, translating redis.Nil into ErrMiss.
func (t *RedisTier) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := t.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrMiss
		}
		return nil, err
	}
	return data, nil
}

// Set stores a value with the given TTL.
func (t *RedisTier) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return t.client.Set(ctx, key, value, ttl).Err()
}

// Delete removes the given keys.
func (t *RedisTier) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return t.client.Del(ctx, keys...).Err()
}

// DeletePrefix scans for keys under the prefix and deletes them in batches.
func (t *RedisTier) DeletePrefix(ctx context.Context, prefix string) error {
	iter := t.client.Scan(ctx, 0, prefix+"*", 100).Iterator()

	batch := make([]string, 0, 100)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := t.client.Del(ctx, batch...).Err()
		batch = batch[:0]
		return err
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	return flush()
}

var _ Tier = (*RedisTier)(nil)
