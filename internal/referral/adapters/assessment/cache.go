package assessment

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"carelink/internal/referral/ports"
	id "carelink/pkg/domain"
)

// CachedLookup is a Redis read-through decorator over any AssessmentLookup.
// Cache failures degrade to the inner lookup; the cache is never load-bearing.
type CachedLookup struct {
	inner  ports.AssessmentLookup
	client redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedLookup(inner ports.AssessmentLookup, client redis.Cmdable, ttl time.Duration, logger *slog.Logger) *CachedLookup {
	return &CachedLookup{inner: inner, client: client, ttl: ttl, logger: logger}
}

func cacheKey(childID id.ChildID) string {
	return "carelink:assessment:latest:" + string(childID)
}

func (c *CachedLookup) LatestByChild(ctx context.Context, childID id.ChildID) (*ports.AssessmentResult, error) {
	key := cacheKey(childID)

	raw, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		var cached ports.AssessmentResult
		if err := json.Unmarshal([]byte(raw), &cached); err == nil {
			return &cached, nil
		}
		c.logger.Warn("corrupt assessment cache entry, refetching", "child_id", childID)
	case err != redis.Nil:
		c.logger.Warn("assessment cache read failed", "child_id", childID, "error", err)
	}

	result, err := c.inner.LatestByChild(ctx, childID)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	if encoded, err := json.Marshal(result); err == nil {
		if err := c.client.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
			c.logger.Warn("assessment cache write failed", "child_id", childID, "error", err)
		}
	}
	return result, nil
}

// Invalidate drops the cached entry for a child. Called when a new assessment
// callback arrives.
func (c *CachedLookup) Invalidate(ctx context.Context, childID id.ChildID) error {
	return c.client.Del(ctx, cacheKey(childID)).Err()
}
