// Package ratelimit governs request pacing for indexer operations with
// per-indexer and per-host token buckets.
package ratelimit

import (
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config defines the default request allowances. Indexers can override
// their per-minute budget via IndexerDefinition.RequestsPerMinute.
type Config struct {
	// IndexerRequestsPerMinute is the default per-indexer budget.
	IndexerRequestsPerMinute int
	// HostRequestsPerMinute is the budget shared by all indexers that
	// resolve to the same host.
	HostRequestsPerMinute int
	// GrabsPerHour caps download dispatches per indexer.
	GrabsPerHour int
}

// DefaultConfig returns the default rate limit configuration.
func DefaultConfig() Config {
	return Config{
		IndexerRequestsPerMinute: 30,
		HostRequestsPerMinute:    60,
		GrabsPerHour:             25,
	}
}

// CheckResult is the answer to a rate-limit probe.
type CheckResult struct {
	CanProceed bool
	Reason     string
	WaitTime   time.Duration
}

// bucket is a sliding-window request log. Each bucket carries its own
// lock so contention stays local to one indexer or host.
type bucket struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	events []time.Time
}

func newBucket(limit int, window time.Duration) *bucket {
	return &bucket{limit: limit, window: window}
}

// check reports whether a token is available and, if not, how long until
// the oldest in-window event expires.
func (b *bucket) check(now time.Time) (bool, time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prune(now)
	if len(b.events) < b.limit {
		return true, 0
	}
	return false, b.events[0].Add(b.window).Sub(now)
}

// record consumes a token.
func (b *bucket) record(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prune(now)
	b.events = append(b.events, now)
}

func (b *bucket) count(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prune(now)
	return len(b.events)
}

func (b *bucket) prune(now time.Time) {
	cutoff := now.Add(-b.window)
	i := 0
	for i < len(b.events) && !b.events[i].After(cutoff) {
		i++
	}
	if i > 0 {
		b.events = b.events[i:]
	}
}

// Limiter tracks request budgets per indexer and per host.
type Limiter struct {
	config Config
	logger zerolog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	indexer map[int64]*bucket
	host    map[string]*bucket
	grabs   map[int64]*bucket
}

// NewLimiter creates a new rate limiter.
func NewLimiter(config Config, logger zerolog.Logger) *Limiter {
	return &Limiter{
		config:  config,
		logger:  logger.With().Str("component", "rate-limiter").Logger(),
		now:     time.Now,
		indexer: make(map[int64]*bucket),
		host:    make(map[string]*bucket),
		grabs:   make(map[int64]*bucket),
	}
}

// SetClock overrides the time source, for tests.
func (l *Limiter) SetClock(now func() time.Time) {
	l.now = now
}

// SetIndexerLimit overrides the per-minute budget for one indexer. Zero
// restores the configured default.
func (l *Limiter) SetIndexerLimit(indexerID int64, requestsPerMinute int) {
	if requestsPerMinute <= 0 {
		requestsPerMinute = l.config.IndexerRequestsPerMinute
	}
	b := l.indexerBucket(indexerID)
	b.mu.Lock()
	b.limit = requestsPerMinute
	b.mu.Unlock()
}

// Check probes both the per-indexer and the per-host bucket. It proceeds
// only when both have a token; otherwise WaitTime is the larger of the
// two next-token waits.
func (l *Limiter) Check(indexerID int64, baseURL string) CheckResult {
	now := l.now()
	indexerOK, indexerWait := l.indexerBucket(indexerID).check(now)
	hostOK, hostWait := l.hostBucket(baseURL).check(now)

	if indexerOK && hostOK {
		return CheckResult{CanProceed: true}
	}

	wait := indexerWait
	reason := "indexer rate limit reached"
	if hostWait > wait {
		wait = hostWait
		reason = "host rate limit reached"
	}
	l.logger.Debug().
		Int64("indexerId", indexerID).
		Str("host", hostKey(baseURL)).
		Dur("wait", wait).
		Msg("Rate limit check failed")
	return CheckResult{CanProceed: false, Reason: reason, WaitTime: wait}
}

// Record consumes a token from both buckets. Call it after each request
// completes, success or not.
func (l *Limiter) Record(indexerID int64, baseURL string) {
	now := l.now()
	l.indexerBucket(indexerID).record(now)
	l.hostBucket(baseURL).record(now)
}

// CheckGrab reports whether the indexer has grab budget left.
func (l *Limiter) CheckGrab(indexerID int64) bool {
	ok, _ := l.grabBucket(indexerID).check(l.now())
	return ok
}

// RecordGrab consumes one grab token.
func (l *Limiter) RecordGrab(indexerID int64) {
	l.grabBucket(indexerID).record(l.now())
}

// Usage returns the in-window request counts for an indexer and its host.
func (l *Limiter) Usage(indexerID int64, baseURL string) (int, int) {
	now := l.now()
	return l.indexerBucket(indexerID).count(now), l.hostBucket(baseURL).count(now)
}

// Reset clears all state for an indexer.
func (l *Limiter) Reset(indexerID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.indexer, indexerID)
	delete(l.grabs, indexerID)
}

func (l *Limiter) indexerBucket(indexerID int64) *bucket {
	l.mu.RLock()
	b, ok := l.indexer[indexerID]
	l.mu.RUnlock()
	if ok {
		return b
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.indexer[indexerID]; ok {
		return b
	}
	b = newBucket(l.config.IndexerRequestsPerMinute, time.Minute)
	l.indexer[indexerID] = b
	return b
}

func (l *Limiter) hostBucket(baseURL string) *bucket {
	key := hostKey(baseURL)
	l.mu.RLock()
	b, ok := l.host[key]
	l.mu.RUnlock()
	if ok {
		return b
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.host[key]; ok {
		return b
	}
	b = newBucket(l.config.HostRequestsPerMinute, time.Minute)
	l.host[key] = b
	return b
}

func (l *Limiter) grabBucket(indexerID int64) *bucket {
	l.mu.RLock()
	b, ok := l.grabs[indexerID]
	l.mu.RUnlock()
	if ok {
		return b
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.grabs[indexerID]; ok {
		return b
	}
	b = newBucket(l.config.GrabsPerHour, time.Hour)
	l.grabs[indexerID] = b
	return b
}

// hostKey normalizes a base URL to its host so indexers sharing a host
// share a bucket.
func hostKey(baseURL string) string {
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		return strings.ToLower(u.Host)
	}
	return strings.ToLower(baseURL)
}
