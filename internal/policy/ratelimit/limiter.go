// Package ratelimit implements a per-host token bucket so repeated source and
// detail fetches stay polite to the listing site.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/jobalert-crawler/internal/metrics"
)

// DefaultIdleTTL is how long an unused host bucket is retained.
const DefaultIdleTTL = 10 * time.Minute

// Config holds rate limiter configuration.
type Config struct {
	RPS     float64
	Burst   int
	IdleTTL time.Duration
}

type bucket struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// Limiter keeps one bucket per host. Detail links point at many different
// boards, so buckets idle for longer than IdleTTL are dropped.
type Limiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

// New creates a Limiter. A non-positive RPS disables throttling.
func New(cfg Config) *Limiter {
	limit := rate.Limit(cfg.RPS)
	if cfg.RPS <= 0 {
		limit = rate.Inf
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	return &Limiter{
		limit:   limit,
		burst:   cfg.Burst,
		idleTTL: cfg.IdleTTL,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// Wait blocks until the URL's host may be contacted again or ctx ends.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	host := hostOf(rawURL)
	lim := l.acquire(host)

	start := time.Now()
	if err := lim.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", host, err)
	}
	if d := time.Since(start); d > time.Millisecond {
		metrics.ObserveRateLimitDelay(host, d)
	}
	return nil
}

func (l *Limiter) acquire(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.idleTTL {
		for h, b := range l.buckets {
			if now.Sub(b.lastUsed) >= l.idleTTL {
				delete(l.buckets, h)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[host]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[host] = b
	}
	b.lastUsed = now
	return b.limiter
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
