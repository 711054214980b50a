// Package search orchestrates release searches across multiple
// indexers: eligibility filtering, rate-limited parallel dispatch,
// tiered ID/text querying, dedup, quality filtering, and ranking.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gatherr/gatherr/internal/database"
	"github.com/gatherr/gatherr/internal/indexer"
	"github.com/gatherr/gatherr/internal/indexer/cache"
	"github.com/gatherr/gatherr/internal/indexer/dedupe"
	"github.com/gatherr/gatherr/internal/indexer/ratelimit"
	"github.com/gatherr/gatherr/internal/indexer/scoring"
	"github.com/gatherr/gatherr/internal/indexer/status"
	"github.com/gatherr/gatherr/internal/indexer/types"
	"github.com/gatherr/gatherr/internal/metadata"
)

// Options controls one orchestrated search. Zero value is not useful;
// start from DefaultOptions.
type Options struct {
	// Source affects indexer eligibility and the season-pack policy.
	Source types.SearchSource

	RespectEnabled  bool
	RespectBackoff  bool
	UseTieredSearch bool

	// Concurrency is the batch size for parallel indexer calls.
	Concurrency int
	// Timeout is the per-indexer hard cap.
	Timeout time.Duration

	UseCache bool

	// Enrichment parameters are passed through to the enricher on
	// enhanced searches.
	Enrichment *scoring.Options

	// ProtocolFilter, when non-empty, rejects indexers outside the set.
	ProtocolFilter []types.Protocol
}

// DefaultOptions returns the standard orchestrator settings.
func DefaultOptions() Options {
	return Options{
		Source:          types.SearchSourceInteractive,
		RespectEnabled:  true,
		RespectBackoff:  true,
		UseTieredSearch: true,
		Concurrency:     5,
		Timeout:         30 * time.Second,
		UseCache:        true,
	}
}

// IndexerSearchResult is the per-indexer outcome of one search.
type IndexerSearchResult struct {
	IndexerID    int64  `json:"indexerId"`
	IndexerName  string `json:"indexerName"`
	Count        int    `json:"count"`
	ElapsedMs    int64  `json:"elapsedMs"`
	Error        string `json:"error,omitempty"`
	SearchMethod string `json:"searchMethod,omitempty"` // id, text
}

// RejectedIndexer names an indexer excluded before dispatch.
type RejectedIndexer struct {
	IndexerID   int64  `json:"indexerId"`
	IndexerName string `json:"indexerName"`
	Reason      string `json:"reason"` // searchType, searchSource, disabled, backoff, indexerFilter, protocol
}

// SearchResult is the outcome of a plain (unscored) search.
type SearchResult struct {
	Releases []types.ReleaseResult `json:"releases"`

	TotalResults   int `json:"totalResults"`
	AfterDedup     int `json:"afterDedup"`
	AfterFiltering int `json:"afterFiltering"`

	SearchTimeMs int64 `json:"searchTimeMs"`
	FromCache    bool  `json:"fromCache"`

	IndexerResults   []IndexerSearchResult `json:"indexerResults,omitempty"`
	RejectedIndexers []RejectedIndexer     `json:"rejectedIndexers,omitempty"`
}

// EnhancedSearchResult is the outcome of a scored search.
type EnhancedSearchResult struct {
	Releases []types.EnhancedReleaseResult `json:"releases"`

	TotalResults    int `json:"totalResults"`
	AfterDedup      int `json:"afterDedup"`
	AfterFiltering  int `json:"afterFiltering"`
	AfterEnrichment int `json:"afterEnrichment"`
	RejectedCount   int `json:"rejectedCount"`

	SearchTimeMs   int64  `json:"searchTimeMs"`
	EnrichTimeMs   int64  `json:"enrichTimeMs"`
	FromCache      bool   `json:"fromCache"`
	ScoringProfile string `json:"scoringProfile,omitempty"`

	IndexerResults   []IndexerSearchResult `json:"indexerResults,omitempty"`
	RejectedIndexers []RejectedIndexer     `json:"rejectedIndexers,omitempty"`
}

// Service orchestrates searches across indexers. Construct one per
// composition root; tests build their own.
type Service struct {
	status      *status.Service
	limiter     *ratelimit.Limiter
	cache       *cache.ReleaseCache
	enricher    *scoring.Enricher
	resolver    metadata.Resolver
	broadcaster indexer.Broadcaster
	history     HistoryStore
	logger      zerolog.Logger

	now func() time.Time

	// Episode-count lookups are cached for the service lifetime.
	countMu       sync.Mutex
	episodeCounts map[string]seriesCounts
}

type seriesCounts struct {
	perSeason map[int]int
	total     int
}

// NewService creates a search orchestrator.
func NewService(statusSvc *status.Service, limiter *ratelimit.Limiter, releaseCache *cache.ReleaseCache, enricher *scoring.Enricher, logger zerolog.Logger) *Service {
	return &Service{
		status:        statusSvc,
		limiter:       limiter,
		cache:         releaseCache,
		enricher:      enricher,
		broadcaster:   indexer.NopBroadcaster{},
		logger:        logger.With().Str("component", "search").Logger(),
		now:           time.Now,
		episodeCounts: make(map[string]seriesCounts),
	}
}

// SetResolver sets the metadata resolver used for criteria enrichment
// and episode-count hints. Optional.
func (s *Service) SetResolver(resolver metadata.Resolver) {
	s.resolver = resolver
}

// SetBroadcaster sets the event broadcaster. Optional.
func (s *Service) SetBroadcaster(b indexer.Broadcaster) {
	if b != nil {
		s.broadcaster = b
	}
}

// HistoryStore persists per-indexer search audit rows.
// *database.Store satisfies this.
type HistoryStore interface {
	AppendHistory(ctx context.Context, ev *database.HistoryEvent) error
}

// SetHistoryStore enables search auditing. Optional.
func (s *Service) SetHistoryStore(h HistoryStore) {
	s.history = h
}

// Search executes a plain search and returns raw ranked releases.
func (s *Service) Search(ctx context.Context, indexers []indexer.Indexer, criteria types.SearchCriteria, opts Options) (*SearchResult, error) {
	start := s.now()

	if err := criteria.Validate(); err != nil {
		return nil, fmt.Errorf("invalid search criteria: %w", err)
	}
	criteria = s.enrichCriteria(ctx, criteria)

	if opts.UseCache && s.cache != nil {
		if cached, ok := s.cache.Get(criteria); ok {
			return &SearchResult{
				Releases:       cached,
				TotalResults:   len(cached),
				AfterDedup:     len(cached),
				AfterFiltering: len(cached),
				SearchTimeMs:   time.Since(start).Milliseconds(),
				FromCache:      true,
			}, nil
		}
	}

	merged, indexerResults, rejected := s.dispatch(ctx, indexers, criteria, opts)

	views := make([]types.ReleaseView, 0, len(merged))
	for _, rel := range merged {
		views = append(views, types.NewReleaseView(rel))
	}
	deduped := dedupe.Deduplicate(views)
	filtered := s.applyHardFilters(deduped, criteria, opts)

	ranked := rankPlain(filtered)
	limited := ranked
	if criteria.Limit > 0 && len(limited) > criteria.Limit {
		limited = limited[:criteria.Limit]
	}

	releases := make([]types.ReleaseResult, len(limited))
	for i, v := range limited {
		releases[i] = v.Release
	}

	result := &SearchResult{
		Releases:         releases,
		TotalResults:     len(merged),
		AfterDedup:       len(deduped),
		AfterFiltering:   len(filtered),
		SearchTimeMs:     time.Since(start).Milliseconds(),
		IndexerResults:   indexerResults,
		RejectedIndexers: rejected,
	}

	if opts.UseCache && s.cache != nil && ctx.Err() == nil {
		s.cache.Set(criteria, releases)
	}
	s.recordHistory(ctx, criteria, indexerResults)
	s.broadcastCompleted(criteria, result.TotalResults, indexerResults, result.SearchTimeMs)

	s.logger.Info().
		Int("totalResults", result.TotalResults).
		Int("afterDedup", result.AfterDedup).
		Int("afterFiltering", result.AfterFiltering).
		Int("returned", len(result.Releases)).
		Msg("Search completed")

	return result, nil
}

// SearchEnhanced executes a search with parsing, scoring, and quality
// filtering applied. Enhanced searches never consult the cache.
func (s *Service) SearchEnhanced(ctx context.Context, indexers []indexer.Indexer, criteria types.SearchCriteria, opts Options) (*EnhancedSearchResult, error) {
	start := s.now()

	if err := criteria.Validate(); err != nil {
		return nil, fmt.Errorf("invalid search criteria: %w", err)
	}
	criteria = s.enrichCriteria(ctx, criteria)

	merged, indexerResults, rejectedIdx := s.dispatch(ctx, indexers, criteria, opts)

	views := make([]types.ReleaseView, 0, len(merged))
	for _, rel := range merged {
		views = append(views, types.NewReleaseView(rel))
	}
	deduped := dedupe.Deduplicate(views)
	filtered := s.applyHardFilters(deduped, criteria, opts)

	enrichOpts := s.enrichmentOptions(ctx, criteria, opts)
	enriched := s.enricher.Enrich(filtered, enrichOpts)

	final := dedupe.DeduplicateEnhanced(enriched.Releases)
	rankEnhanced(final)

	afterEnrichment := len(final)
	if criteria.Limit > 0 && len(final) > criteria.Limit {
		final = final[:criteria.Limit]
	}
	for i := range final {
		final[i].ReleaseWeight = i + 1
	}

	result := &EnhancedSearchResult{
		Releases:         final,
		TotalResults:     len(merged),
		AfterDedup:       len(deduped),
		AfterFiltering:   len(filtered),
		AfterEnrichment:  afterEnrichment,
		RejectedCount:    enriched.RejectedCount,
		SearchTimeMs:     time.Since(start).Milliseconds(),
		EnrichTimeMs:     enriched.EnrichTimeMs,
		ScoringProfile:   enriched.ScoringProfile,
		IndexerResults:   indexerResults,
		RejectedIndexers: rejectedIdx,
	}
	s.recordHistory(ctx, criteria, indexerResults)
	s.broadcastCompleted(criteria, result.TotalResults, indexerResults, result.SearchTimeMs)

	s.logger.Info().
		Int("totalResults", result.TotalResults).
		Int("afterDedup", result.AfterDedup).
		Int("afterFiltering", result.AfterFiltering).
		Int("afterEnrichment", result.AfterEnrichment).
		Int("rejected", result.RejectedCount).
		Msg("Enhanced search completed")

	return result, nil
}

// broadcastCompleted pairs every started event with a completed one
// carrying the aggregate outcome.
func (s *Service) broadcastCompleted(criteria types.SearchCriteria, totalResults int, results []IndexerSearchResult, elapsedMs int64) {
	var errs []string
	for _, res := range results {
		if res.Error != "" {
			errs = append(errs, fmt.Sprintf("%s: %s", res.IndexerName, res.Error))
		}
	}
	s.broadcaster.Broadcast(indexer.EventSearchCompleted, indexer.SearchCompletedPayload{
		Query:        criteria.Query,
		Type:         string(criteria.Type),
		TotalResults: totalResults,
		IndexersUsed: len(results),
		Errors:       errs,
		ElapsedMs:    elapsedMs,
	})
}

// recordHistory appends one audit row per dispatched indexer. Best
// effort; a failed append never fails the search.
func (s *Service) recordHistory(ctx context.Context, criteria types.SearchCriteria, results []IndexerSearchResult) {
	if s.history == nil {
		return
	}
	for _, res := range results {
		data, _ := json.Marshal(map[string]any{
			"query":     criteria.Query,
			"type":      string(criteria.Type),
			"count":     res.Count,
			"elapsedMs": res.ElapsedMs,
			"method":    res.SearchMethod,
		})
		err := s.history.AppendHistory(ctx, &database.HistoryEvent{
			IndexerID:  res.IndexerID,
			EventType:  database.HistoryEventSearch,
			Successful: res.Error == "",
			Data:       string(data),
		})
		if err != nil {
			s.logger.Warn().Err(err).Int64("indexerId", res.IndexerID).Msg("Failed to record search history")
		}
	}
}

// enrichCriteria fills in missing external IDs via the resolver.
// Resolver failures are non-fatal; the search proceeds with whatever
// IDs are available.
func (s *Service) enrichCriteria(ctx context.Context, criteria types.SearchCriteria) types.SearchCriteria {
	if s.resolver == nil || criteria.TmdbID == 0 {
		return criteria
	}

	switch criteria.Type {
	case types.SearchTypeMovie:
		if criteria.ImdbID == "" {
			ids, err := s.resolver.GetMovieExternalIDs(ctx, criteria.TmdbID)
			if err != nil {
				s.logger.Warn().Err(err).Int("tmdbId", criteria.TmdbID).Msg("Failed to resolve movie external IDs")
				return criteria
			}
			criteria.ImdbID = ids.ImdbID
		}
	case types.SearchTypeTV:
		if criteria.ImdbID == "" || criteria.TvdbID == 0 {
			ids, err := s.resolver.GetTVExternalIDs(ctx, criteria.TmdbID)
			if err != nil {
				s.logger.Warn().Err(err).Int("tmdbId", criteria.TmdbID).Msg("Failed to resolve tv external IDs")
				return criteria
			}
			if criteria.ImdbID == "" {
				criteria.ImdbID = ids.ImdbID
			}
			if criteria.TvdbID == 0 {
				criteria.TvdbID = ids.TvdbID
			}
		}
	}
	return criteria
}

// enrichmentOptions completes the caller's enrichment options with the
// media type and episode-count hints.
func (s *Service) enrichmentOptions(ctx context.Context, criteria types.SearchCriteria, opts Options) scoring.Options {
	var enrichOpts scoring.Options
	if opts.Enrichment != nil {
		enrichOpts = *opts.Enrichment
	}

	if enrichOpts.MediaType == "" {
		switch criteria.Type {
		case types.SearchTypeMovie:
			enrichOpts.MediaType = scoring.MediaTypeMovie
		case types.SearchTypeTV:
			enrichOpts.MediaType = scoring.MediaTypeTV
		}
	}

	if criteria.Type == types.SearchTypeTV && criteria.TmdbID > 0 && enrichOpts.SeasonEpisodeCounts == nil {
		if counts, ok := s.lookupEpisodeCounts(ctx, criteria.TmdbID); ok {
			enrichOpts.SeasonEpisodeCounts = counts.perSeason
			if enrichOpts.SeriesEpisodeCount == 0 {
				enrichOpts.SeriesEpisodeCount = counts.total
			}
			if enrichOpts.SeasonEpisodeCount == 0 && criteria.Season > 0 {
				enrichOpts.SeasonEpisodeCount = counts.perSeason[criteria.Season]
			}
		}
	}

	return enrichOpts
}

// lookupEpisodeCounts fetches (and caches) per-season episode counts
// for a series. Failures are non-fatal; size validation is simply
// skipped without counts.
func (s *Service) lookupEpisodeCounts(ctx context.Context, tmdbID int) (seriesCounts, bool) {
	key := fmt.Sprintf("%d", tmdbID)

	s.countMu.Lock()
	cached, ok := s.episodeCounts[key]
	s.countMu.Unlock()
	if ok {
		return cached, true
	}

	if s.resolver == nil {
		return seriesCounts{}, false
	}
	show, err := s.resolver.GetTVShow(ctx, tmdbID)
	if err != nil {
		s.logger.Warn().Err(err).Int("tmdbId", tmdbID).Msg("Failed to fetch episode counts")
		return seriesCounts{}, false
	}

	counts := seriesCounts{
		perSeason: make(map[int]int, len(show.Seasons)),
		total:     show.NumberOfEpisodes,
	}
	for _, season := range show.Seasons {
		counts.perSeason[season.SeasonNumber] = season.EpisodeCount
	}

	s.countMu.Lock()
	s.episodeCounts[key] = counts
	s.countMu.Unlock()
	return counts, true
}

// rankPlain sorts views by attribute rank descending, breaking ties by
// indexer priority then first appearance.
func rankPlain(views []types.ReleaseView) []types.ReleaseView {
	ranked := make([]types.ReleaseView, len(views))
	copy(ranked, views)
	sort.SliceStable(ranked, func(i, j int) bool {
		ri, rj := attributeRank(ranked[i]), attributeRank(ranked[j])
		if ri != rj {
			return ri > rj
		}
		return ranked[i].Release.IndexerPriority < ranked[j].Release.IndexerPriority
	})
	return ranked
}

// rankEnhanced sorts in place by (rejected asc, score desc), breaking
// ties by indexer priority then first appearance.
func rankEnhanced(releases []types.EnhancedReleaseResult) {
	sort.SliceStable(releases, func(i, j int) bool {
		if releases[i].Rejected != releases[j].Rejected {
			return !releases[i].Rejected
		}
		if releases[i].Score != releases[j].Score {
			return releases[i].Score > releases[j].Score
		}
		return releases[i].IndexerPriority < releases[j].IndexerPriority
	})
}

var plainResolutionRank = map[string]int{
	"2160p": 50, "1440p": 35, "1080p": 40, "720p": 25, "480p": 5,
}

var plainSourceRank = map[string]int{
	"remux": 30, "bluray": 25, "webdl": 22, "webrip": 15, "hdtv": 10,
	"dvd": 5, "telesync": -40, "cam": -60,
}

// attributeRank is the profile-free ordering used by plain searches.
func attributeRank(v types.ReleaseView) int {
	if v.Parsed == nil {
		return 0
	}
	return plainResolutionRank[string(v.Parsed.Resolution)] + plainSourceRank[string(v.Parsed.Source)]
}
