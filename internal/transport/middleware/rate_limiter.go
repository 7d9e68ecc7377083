// SPDX-License-Identifier: Apache-2.0

package middleware

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	bucketIdleTTL     = 10 * time.Minute
	bucketSweepEvery  = time.Minute
	minLimitPerMinute = 1
	secondsPerMinute  = 60.0
)

type rateLimitDecision struct {
	Allowed           bool
	LimitPerMinute    int
	Remaining         int
	RetryAfterSeconds int
}

type tokenBucket struct {
	capacity        float64
	tokens          float64
	refillPerSecond float64
	lastRefill      time.Time
}

// inMemoryRateLimiter keeps one token bucket per API key. Buckets idle for
// bucketIdleTTL are dropped on the next sweep.
type inMemoryRateLimiter struct {
	mu        sync.Mutex
	buckets   map[uuid.UUID]*tokenBucket
	lastSweep time.Time
}

func newInMemoryRateLimiter() *inMemoryRateLimiter {
	return &inMemoryRateLimiter{
		buckets: make(map[uuid.UUID]*tokenBucket, 32),
	}
}

func (l *inMemoryRateLimiter) Allow(apiKeyID uuid.UUID, limitPerMinute int, now time.Time) rateLimitDecision {
	if limitPerMinute < minLimitPerMinute {
		limitPerMinute = minLimitPerMinute
	}
	capacity := float64(limitPerMinute)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweepLocked(now)

	bucket, ok := l.buckets[apiKeyID]
	if !ok || bucket.capacity != capacity {
		bucket = &tokenBucket{
			capacity:        capacity,
			tokens:          capacity,
			refillPerSecond: capacity / secondsPerMinute,
			lastRefill:      now,
		}
		l.buckets[apiKeyID] = bucket
	}
	bucket.refill(now)

	decision := rateLimitDecision{
		LimitPerMinute: limitPerMinute,
		Remaining:      int(math.Floor(bucket.tokens)),
	}
	if bucket.tokens >= 1 {
		bucket.tokens--
		decision.Allowed = true
		decision.Remaining = int(math.Floor(bucket.tokens))
		return decision
	}

	wait := int(math.Ceil((1 - bucket.tokens) / bucket.refillPerSecond))
	decision.RetryAfterSeconds = max(wait, 1)
	return decision
}

func (b *tokenBucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens = min(b.capacity, b.tokens+elapsed*b.refillPerSecond)
	b.lastRefill = now
}

func (l *inMemoryRateLimiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < bucketSweepEvery {
		return
	}
	l.lastSweep = now
	for id, bucket := range l.buckets {
		if now.Sub(bucket.lastRefill) >= bucketIdleTTL {
			delete(l.buckets, id)
		}
	}
}

func (l *inMemoryRateLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
