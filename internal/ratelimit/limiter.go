// Package ratelimit implements the in-process fixed-window request limiter
// used by the HTTP admission layer. Counters live in memory only and are lost
// on restart.
package ratelimit

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/zeebo/xxh3"
)

const (
	shardCount = 64

	DefaultSweepInterval = time.Minute
)

type entry struct {
	count   int
	resetAt time.Time
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// Result is the admission decision for one request.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the whole number of seconds until the window resets, at
// least one.
func (r Result) RetryAfter(now time.Time) int {
	return retryAfterSeconds(r.ResetAt.Sub(now))
}

func retryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 1
	}
	return int(math.Ceil(d.Seconds()))
}

// Limiter counts requests per key in fixed windows. Keys are spread across
// shards so unrelated keys never contend on the same lock.
type Limiter struct {
	policy        Policy
	shards        [shardCount]shard
	now           func() time.Time
	sweepInterval time.Duration

	sweepMu   sync.Mutex
	lastSweep time.Time
}

func NewLimiter(policy Policy) *Limiter {
	l := &Limiter{
		policy:        policy,
		now:           time.Now,
		sweepInterval: DefaultSweepInterval,
	}
	for i := range l.shards {
		l.shards[i].entries = make(map[string]*entry)
	}
	l.lastSweep = l.now()
	return l
}

func (l *Limiter) Policy() Policy {
	return l.policy
}

func (l *Limiter) shardFor(key string) *shard {
	return &l.shards[xxh3.HashString(key)%shardCount]
}

// Check counts one request for key and reports whether it is admitted.
// The window for a key starts at its first request and resets wholesale once
// it elapses.
func (l *Limiter) Check(key string) Result {
	now := l.now()
	l.maybeSweep(now)

	s := l.shardFor(key)
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok || !now.Before(e.resetAt) {
		e = &entry{resetAt: now.Add(l.policy.Window)}
		s.entries[key] = e
	}
	e.count++
	count, resetAt := e.count, e.resetAt
	s.mu.Unlock()

	return Result{
		Allowed:   count <= l.policy.Max,
		Limit:     l.policy.Max,
		Remaining: max(0, l.policy.Max-count),
		ResetAt:   resetAt,
	}
}

// Refund takes back one request counted by Check, provided the key is still
// in the window Check reported.
func (l *Limiter) Refund(key string, resetAt time.Time) {
	s := l.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || !e.resetAt.Equal(resetAt) || e.count == 0 {
		return
	}
	e.count--
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	n := 0
	for i := range l.shards {
		s := &l.shards[i]
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}

func (l *Limiter) maybeSweep(now time.Time) {
	l.sweepMu.Lock()
	due := now.Sub(l.lastSweep) >= l.sweepInterval
	if due {
		l.lastSweep = now
	}
	l.sweepMu.Unlock()

	if due {
		l.Sweep(now)
	}
}

// Sweep drops every entry whose window ended at or before now.
func (l *Limiter) Sweep(now time.Time) int {
	removed := 0
	for i := range l.shards {
		s := &l.shards[i]
		s.mu.Lock()
		for key, e := range s.entries {
			if !now.Before(e.resetAt) {
				delete(s.entries, key)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Start sweeps expired entries on an interval until ctx is cancelled.
func (l *Limiter) Start(ctx context.Context) {
	ticker := time.NewTicker(l.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping rate limiter janitor", "component", "ratelimit", "policy", l.policy.Name)
			return
		case <-ticker.C:
			if removed := l.Sweep(l.now()); removed > 0 {
				slog.Debug("swept rate limit entries", "component", "ratelimit", "policy", l.policy.Name, "count", removed)
			}
		}
	}
}
