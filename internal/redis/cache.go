package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// AvailabilityCache holds the serialized public availability view per doctor.
// It is invalidated on every slot mutation so patients never see a stale
// free slot for longer than the TTL.
type AvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewAvailabilityCache(client *redis.Client, ttl time.Duration) *AvailabilityCache {
	return &AvailabilityCache{
		client: client,
		ttl:    ttl,
	}
}

func cacheKey(doctorID uuid.UUID) string {
	return fmt.Sprintf("availability:public:%s", doctorID.String())
}

// Get returns the cached payload for a doctor, or ok=false on a miss.
// A nil cache always misses, so callers can run without Redis.
func (c *AvailabilityCache) Get(ctx context.Context, doctorID uuid.UUID) ([]byte, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}

	payload, err := c.client.Get(ctx, cacheKey(doctorID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get availability cache: %w", err)
	}
	return payload, true, nil
}

func (c *AvailabilityCache) Set(ctx context.Context, doctorID uuid.UUID, payload []byte) error {
	if c == nil || c.client == nil {
		return nil
	}

	if err := c.client.Set(ctx, cacheKey(doctorID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("set availability cache: %w", err)
	}
	return nil
}

func (c *AvailabilityCache) Invalidate(ctx context.Context, doctorID uuid.UUID) error {
	if c == nil || c.client == nil {
		return nil
	}

	if err := c.client.Del(ctx, cacheKey(doctorID)).Err(); err != nil {
		return fmt.Errorf("invalidate availability cache: %w", err)
	}
	return nil
}
