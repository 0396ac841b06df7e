package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// idleRetention is how long an inactive client keeps its bucket.
const idleRetention = 3 * time.Minute

// LocalStore keeps one token bucket per client key in process memory.
// Buckets idle past the retention window are pruned opportunistically.
type LocalStore struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	lastPrune time.Time
}

type visitor struct {
	limiter *rate.Limiter
	seen    time.Time
}

// NewLocalStore returns an empty in-process limiter store.
func NewLocalStore() *LocalStore {
	return &LocalStore{
		visitors:  make(map[string]*visitor),
		lastPrune: time.Now(),
	}
}

func (s *LocalStore) Allow(ctx context.Context, key string, policy Policy) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if now.Sub(s.lastPrune) > time.Minute {
		for k, v := range s.visitors {
			if now.Sub(v.seen) > idleRetention {
				delete(s.visitors, k)
			}
		}
		s.lastPrune = now
	}

	v, ok := s.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(policy.RPS), policy.Burst)}
		s.visitors[key] = v
	}
	v.seen = now
	return v.limiter.Allow(), nil
}
