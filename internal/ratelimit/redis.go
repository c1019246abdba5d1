package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares request counters across instances using fixed-window
// buckets keyed by minute and by day. A fixed window can admit slightly more
// than the limit around a bucket boundary but never undercounts inside one,
// which is the safe direction for quota protection.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		now:    time.Now,
	}
}

func (s *RedisStore) minuteKey(userID string, now time.Time) string {
	return fmt.Sprintf("ratelimit:%s:m:%d", userID, now.Unix()/60)
}

func (s *RedisStore) dayKey(userID string, now time.Time) string {
	return fmt.Sprintf("ratelimit:%s:d:%d", userID, now.Unix()/86400)
}

func (s *RedisStore) Usage(ctx context.Context, userID string) (Usage, error) {
	now := s.now()
	values, err := s.client.MGet(ctx, s.minuteKey(userID, now), s.dayKey(userID, now)).Result()
	if err != nil {
		return Usage{}, fmt.Errorf("read rate limit counters failed: %w", err)
	}

	usage := Usage{
		Minute:      parseCount(values[0]),
		Day:         parseCount(values[1]),
		MinuteReset: time.Duration(60-now.Unix()%60) * time.Second,
		DayReset:    time.Duration(86400-now.Unix()%86400) * time.Second,
	}
	return usage, nil
}

func (s *RedisStore) Record(ctx context.Context, userID string) error {
	now := s.now()
	pipe := s.client.TxPipeline()
	// Expiry is twice the window so a bucket outlives its own reads but
	// never accumulates forever.
	pipe.Incr(ctx, s.minuteKey(userID, now))
	pipe.Expire(ctx, s.minuteKey(userID, now), 2*shortWindow)
	pipe.Incr(ctx, s.dayKey(userID, now))
	pipe.Expire(ctx, s.dayKey(userID, now), 2*longWindow)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record rate limit counters failed: %w", err)
	}
	return nil
}

func parseCount(value any) int {
	str, ok := value.(string)
	if !ok {
		return 0
	}
	var n int
	if _, err := fmt.Sscanf(str, "%d", &n); err != nil {
		return 0
	}
	return n
}
