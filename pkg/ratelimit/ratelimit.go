// Package ratelimit hands out one token bucket per caller. The HTTP and
// gRPC surfaces key it by client address.
package ratelimit

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// IdleTTL is how long an unused bucket is kept.
const IdleTTL = 10 * time.Minute

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Keyed is a set of token buckets sharing one rate and burst.
type Keyed struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	rate      rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

// New allows perSecond events with the given burst for each key.
func New(perSecond float64, burst int) *Keyed {
	return &Keyed{
		buckets: make(map[string]*bucket),
		rate:    rate.Limit(perSecond),
		burst:   burst,
		now:     time.Now,
	}
}

// Allow reports whether an event for key may happen now.
func (k *Keyed) Allow(key string) bool {
	k.mu.Lock()
	now := k.now()
	if now.Sub(k.lastSweep) > IdleTTL {
		for id, b := range k.buckets {
			if now.Sub(b.lastSeen) > IdleTTL {
				delete(k.buckets, id)
			}
		}
		k.lastSweep = now
	}

	b, ok := k.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(k.rate, k.burst)}
		k.buckets[key] = b
	}
	b.lastSeen = now
	k.mu.Unlock()

	return b.limiter.AllowN(now, 1)
}

// RetryAfter is the refill time of one token, rounded up to whole seconds.
func (k *Keyed) RetryAfter() time.Duration {
	if k.rate <= 0 || k.rate == rate.Inf {
		return time.Second
	}
	secs := math.Ceil(1 / float64(k.rate))
	return time.Duration(secs) * time.Second
}

// Len returns the number of tracked keys.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.buckets)
}
