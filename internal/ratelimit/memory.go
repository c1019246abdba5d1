package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps per-user request timestamps in process memory. Suitable
// for a single instance; behind a load balancer use RedisStore instead.
type MemoryStore struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests: make(map[string][]time.Time),
		now:      time.Now,
	}
}

func (s *MemoryStore) Usage(_ context.Context, userID string) (Usage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	kept := s.prune(userID, now)

	usage := Usage{Day: len(kept)}
	for _, ts := range kept {
		if now.Sub(ts) < shortWindow {
			usage.Minute++
			if usage.MinuteReset == 0 {
				usage.MinuteReset = shortWindow - now.Sub(ts)
			}
		}
	}
	if len(kept) > 0 {
		usage.DayReset = longWindow - now.Sub(kept[0])
	}
	return usage, nil
}

func (s *MemoryStore) Record(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[userID] = append(s.requests[userID], s.now())
	return nil
}

// prune drops timestamps older than the long window; caller holds the lock.
func (s *MemoryStore) prune(userID string, now time.Time) []time.Time {
	kept := s.requests[userID][:0]
	for _, ts := range s.requests[userID] {
		if now.Sub(ts) < longWindow {
			kept = append(kept, ts)
		}
	}
	s.requests[userID] = kept
	return kept
}
