package recs

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wrenlabs/tidepool/internal/ranking"
)

// DefaultFollowCacheTTL is how long a cached followed set stays fresh.
const DefaultFollowCacheTTL = 60 * time.Second

// followCacheKeyPrefix namespaces follow-set cache keys.
const followCacheKeyPrefix = "recs:followed:"

// emptySetSentinel marks a cached set that is genuinely empty, since a
// Redis set cannot hold zero members.
const emptySetSentinel = "\x00empty"

// FollowCache decorates a CandidateRepository with a Redis cache for
// the viewer's followed set, which is the one lookup shared by both
// pipelines and hit on every request. Redis errors fail open to the
// inner repository so caching never breaks recommendations.
type FollowCache struct {
	inner  CandidateRepository
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewFollowCache creates a follow-set cache around an inner repository.
// A non-positive TTL selects DefaultFollowCacheTTL.
func NewFollowCache(inner CandidateRepository, client *redis.Client, ttl time.Duration, logger *slog.Logger) *FollowCache {
	if ttl <= 0 {
		ttl = DefaultFollowCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FollowCache{
		inner:  inner,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// CandidatePosts delegates to the inner repository.
func (c *FollowCache) CandidatePosts(ctx context.Context, excludeAuthorID string, limit int) ([]ranking.Post, error) {
	return c.inner.CandidatePosts(ctx, excludeAuthorID, limit)
}

// CandidateUsers delegates to the inner repository.
func (c *FollowCache) CandidateUsers(ctx context.Context, excludeIDs map[string]struct{}, limit int) ([]ranking.User, error) {
	return c.inner.CandidateUsers(ctx, excludeIDs, limit)
}

// FollowedIDs returns the cached followed set for the viewer, falling
// back to the inner repository on a miss or any Redis error.
func (c *FollowCache) FollowedIDs(ctx context.Context, viewerID string) (map[string]struct{}, error) {
	key := followCacheKey(viewerID)

	members, err := c.client.SMembers(ctx, key).Result()
	if err != nil {
		// Fail open: a cache outage must not take down recommendations.
		c.logger.WarnContext(ctx, "follow cache read failed, falling back",
			"viewer_id", viewerID,
			"error", err)
	} else if len(members) > 0 {
		followed := make(map[string]struct{}, len(members))
		for _, id := range members {
			if id == emptySetSentinel {
				continue
			}
			followed[id] = struct{}{}
		}
		return followed, nil
	}

	followed, err := c.inner.FollowedIDs(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	c.store(ctx, key, followed)
	return followed, nil
}

// Invalidate drops the cached set for a viewer. Call it when the
// viewer's follow graph changes.
func (c *FollowCache) Invalidate(ctx context.Context, viewerID string) {
	if err := c.client.Del(ctx, followCacheKey(viewerID)).Err(); err != nil {
		c.logger.WarnContext(ctx, "follow cache invalidation failed",
			"viewer_id", viewerID,
			"error", err)
	}
}

// store writes the followed set back to Redis with the configured TTL.
// Write failures are logged and ignored.
func (c *FollowCache) store(ctx context.Context, key string, followed map[string]struct{}) {
	members := make([]interface{}, 0, len(followed)+1)
	for id := range followed {
		members = append(members, id)
	}
	if len(members) == 0 {
		members = append(members, emptySetSentinel)
	}

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SAdd(ctx, key, members...)
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.WarnContext(ctx, "follow cache write failed",
			"key", key,
			"error", err)
	}
}

func followCacheKey(viewerID string) string {
	return followCacheKeyPrefix + viewerID
}
