package redisad

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"recipe_feedback/internal/adapters/observability"
	"recipe_feedback/internal/domain"
)

// SummaryCache keeps computed rating summaries in Redis, one JSON value per
// subject. Every write to a subject drops its entry, so a cached summary is
// at most one TTL stale and usually exact.
type SummaryCache struct{ c *redis.Client }

var _ domain.SummaryCache = (*SummaryCache)(nil)

func New(addr, pass string, db int) *SummaryCache {
	return &SummaryCache{c: redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db})}
}

func summaryKey(subjectID string) string { return "rating:" + subjectID }

func (s *SummaryCache) Get(ctx context.Context, subjectID string) (domain.RatingSummary, bool, error) {
	v, err := s.c.Get(ctx, summaryKey(subjectID)).Bytes()
	if err == redis.Nil {
		observability.ObserveCache("redis", "miss")
		return domain.RatingSummary{}, false, nil
	}
	if err != nil {
		return domain.RatingSummary{}, false, err
	}
	var out domain.RatingSummary
	if err := json.Unmarshal(v, &out); err != nil {
		return domain.RatingSummary{}, false, err
	}
	observability.ObserveCache("redis", "hit")
	return out, true, nil
}

func (s *SummaryCache) Set(ctx context.Context, summary domain.RatingSummary, ttl time.Duration) error {
	b, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	observability.ObserveCache("redis", "set")
	return s.c.Set(ctx, summaryKey(summary.SubjectID), b, ttl).Err()
}

func (s *SummaryCache) Drop(ctx context.Context, subjectID string) error {
	observability.ObserveCache("redis", "del")
	return s.c.Del(ctx, summaryKey(subjectID)).Err()
}

func (s *SummaryCache) Close() error { return s.c.Close() }
