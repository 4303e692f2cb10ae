package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultSeenReferenceTTL = 24 * time.Hour

// ReferenceCache is a Redis-backed seen-reference cache. It lets the webhook
// path short-circuit obvious redeliveries without a database round trip.
// It is an optimization only: the UNIQUE constraint on the transaction
// reference remains the authoritative duplicate guard, so every method here
// fails open.
type ReferenceCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewReferenceCache(client redis.UniversalClient, prefix string) *ReferenceCache {
	trimmedPrefix := strings.TrimSpace(prefix)
	if trimmedPrefix == "" {
		trimmedPrefix = "kudipay:webhook_ref"
	}
	trimmedPrefix = strings.TrimSuffix(trimmedPrefix, ":")

	return &ReferenceCache{
		client: client,
		prefix: trimmedPrefix,
		ttl:    defaultSeenReferenceTTL,
	}
}

// MarkSeen records the reference and reports whether it was already present.
// A nil cache, empty reference, or Redis error all report "not seen" so the
// pipeline falls through to the database check.
func (c *ReferenceCache) MarkSeen(ctx context.Context, reference string) (alreadySeen bool, err error) {
	if c == nil || c.client == nil {
		return false, nil
	}
	normalized := strings.TrimSpace(reference)
	if normalized == "" {
		return false, nil
	}

	key := fmt.Sprintf("%s:%s", c.prefix, normalized)
	set, err := c.client.SetNX(ctx, key, "1", c.ttl).Result()
	if err != nil {
		return false, err
	}
	return !set, nil
}

// Forget removes a reference, used when a credit attempt failed after the
// cache was marked so a provider redelivery can still land.
func (c *ReferenceCache) Forget(ctx context.Context, reference string) {
	if c == nil || c.client == nil {
		return
	}
	normalized := strings.TrimSpace(reference)
	if normalized == "" {
		return
	}
	c.client.Del(ctx, fmt.Sprintf("%s:%s", c.prefix, normalized))
}
