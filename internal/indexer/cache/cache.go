// Package cache provides a short-lived in-memory cache of search
// results keyed by a canonical fingerprint of the search criteria.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gatherr/gatherr/internal/indexer/types"
)

// DefaultTTL is how long cached results stay fresh.
const DefaultTTL = 5 * time.Minute

// Fingerprint derives a stable cache key from the criteria. Two
// criteria that would produce the same upstream queries fingerprint
// identically; the search source and result limit are deliberately
// excluded.
func Fingerprint(criteria types.SearchCriteria) string {
	var b strings.Builder

	fmt.Fprintf(&b, "type=%s|query=%s|year=%d", criteria.Type, strings.ToLower(criteria.Query), criteria.Year)
	fmt.Fprintf(&b, "|imdb=%s|tmdb=%d|tvdb=%d|tvmaze=%d", criteria.ImdbID, criteria.TmdbID, criteria.TvdbID, criteria.TVMazeID)
	fmt.Fprintf(&b, "|season=%d|ep=%d|fmt=%s", criteria.Season, criteria.Episode, criteria.PreferredEpisodeFormat)

	if len(criteria.SearchTitles) > 0 {
		titles := make([]string, len(criteria.SearchTitles))
		for i, t := range criteria.SearchTitles {
			titles[i] = strings.ToLower(t)
		}
		sort.Strings(titles)
		fmt.Fprintf(&b, "|titles=%s", strings.Join(titles, ","))
	}
	if len(criteria.IndexerIDs) > 0 {
		ids := append([]int64(nil), criteria.IndexerIDs...)
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		fmt.Fprintf(&b, "|indexers=%v", ids)
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

type entry struct {
	releases  []types.ReleaseResult
	expiresAt time.Time
}

// ReleaseCache holds recent search results with a fixed TTL.
type ReleaseCache struct {
	ttl    time.Duration
	logger zerolog.Logger

	now func() time.Time

	mu      sync.RWMutex
	entries map[string]entry
}

// NewReleaseCache creates a cache with the given TTL. A non-positive
// TTL falls back to DefaultTTL.
func NewReleaseCache(ttl time.Duration, logger zerolog.Logger) *ReleaseCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ReleaseCache{
		ttl:     ttl,
		logger:  logger.With().Str("component", "release-cache").Logger(),
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

// SetClock overrides the time source. For tests.
func (c *ReleaseCache) SetClock(now func() time.Time) {
	c.now = now
}

// Get returns the cached releases for the criteria, or ok=false when
// absent or expired. Expired entries are dropped on access.
func (c *ReleaseCache) Get(criteria types.SearchCriteria) ([]types.ReleaseResult, bool) {
	key := Fingerprint(criteria)

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}

	out := make([]types.ReleaseResult, len(e.releases))
	copy(out, e.releases)
	return out, true
}

// Set stores releases for the criteria.
func (c *ReleaseCache) Set(criteria types.SearchCriteria, releases []types.ReleaseResult) {
	key := Fingerprint(criteria)
	stored := make([]types.ReleaseResult, len(releases))
	copy(stored, releases)

	c.mu.Lock()
	c.entries[key] = entry{releases: stored, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()

	c.logger.Debug().Str("key", key[:12]).Int("releases", len(releases)).Msg("Cached search results")
}

// Invalidate drops the entry for the criteria, if present.
func (c *ReleaseCache) Invalidate(criteria types.SearchCriteria) {
	key := Fingerprint(criteria)
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear drops every entry.
func (c *ReleaseCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

// Len reports the number of live entries, pruning expired ones.
func (c *ReleaseCache) Len() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	return len(c.entries)
}
