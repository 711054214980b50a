package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gatherr/gatherr/internal/indexer"
	"github.com/gatherr/gatherr/internal/indexer/capabilities"
	"github.com/gatherr/gatherr/internal/indexer/types"
)

// Eligibility rejection reason codes, in evaluation order.
const (
	ReasonSearchType    = "searchType"
	ReasonSearchSource  = "searchSource"
	ReasonDisabled      = "disabled"
	ReasonBackoff       = "backoff"
	ReasonIndexerFilter = "indexerFilter"
	ReasonProtocol      = "protocol"
)

type eligibleIndexer struct {
	ix       indexer.Indexer
	def      *types.IndexerDefinition
	priority int
}

type indexerOutcome struct {
	result   IndexerSearchResult
	releases []types.ReleaseResult
	priority int
}

// dispatch filters, prioritizes, and searches the indexers in bounded
// parallel batches, returning merged releases tagged with indexer
// priority.
func (s *Service) dispatch(ctx context.Context, indexers []indexer.Indexer, criteria types.SearchCriteria, opts Options) ([]types.ReleaseResult, []IndexerSearchResult, []RejectedIndexer) {
	eligible, rejected := s.filterIndexers(ctx, indexers, criteria, opts)

	ids := make([]int64, len(eligible))
	for i, e := range eligible {
		ids[i] = e.def.ID
	}
	s.broadcaster.Broadcast(indexer.EventSearchStarted, indexer.SearchStartedPayload{
		Query:      criteria.Query,
		Type:       string(criteria.Type),
		IndexerIDs: ids,
	})

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	var (
		merged         []types.ReleaseResult
		indexerResults []IndexerSearchResult
	)

	for batchStart := 0; batchStart < len(eligible); batchStart += concurrency {
		if ctx.Err() != nil {
			break
		}
		batchEnd := batchStart + concurrency
		if batchEnd > len(eligible) {
			batchEnd = len(eligible)
		}
		batch := eligible[batchStart:batchEnd]

		outcomes := make([]indexerOutcome, len(batch))
		done := make(chan int, len(batch))
		for i, entry := range batch {
			go func(i int, entry eligibleIndexer) {
				outcomes[i] = s.searchOne(ctx, entry, criteria, opts)
				done <- i
			}(i, entry)
		}
		for range batch {
			<-done
		}

		for _, outcome := range outcomes {
			indexerResults = append(indexerResults, outcome.result)
			for _, rel := range outcome.releases {
				rel.IndexerPriority = outcome.priority
				merged = append(merged, rel)
			}
		}
	}

	return merged, indexerResults, rejected
}

// filterIndexers applies the eligibility checks in order; the first
// failing check records the reason and excludes the indexer. Survivors
// come back sorted ascending by persistent priority.
func (s *Service) filterIndexers(ctx context.Context, indexers []indexer.Indexer, criteria types.SearchCriteria, opts Options) ([]eligibleIndexer, []RejectedIndexer) {
	var eligible []eligibleIndexer
	var rejected []RejectedIndexer

	allowed := make(map[int64]bool, len(criteria.IndexerIDs))
	for _, id := range criteria.IndexerIDs {
		allowed[id] = true
	}
	protocols := make(map[types.Protocol]bool, len(opts.ProtocolFilter))
	for _, p := range opts.ProtocolFilter {
		protocols[p] = true
	}

	for _, ix := range indexers {
		def := ix.Definition()
		reject := func(reason string) {
			rejected = append(rejected, RejectedIndexer{
				IndexerID:   def.ID,
				IndexerName: def.Name,
				Reason:      reason,
			})
		}

		if !capabilities.CanHandleSearchType(def.Capabilities, criteria.Type) {
			reject(ReasonSearchType)
			continue
		}
		if opts.Source == types.SearchSourceAutomatic && !def.AutomaticEnabled ||
			opts.Source == types.SearchSourceInteractive && !def.InteractiveEnabled {
			reject(ReasonSearchSource)
			continue
		}

		priority := def.Priority
		rec, err := s.status.GetStatus(ctx, def.ID)
		if err != nil {
			s.logger.Warn().Err(err).Int64("indexerId", def.ID).Msg("Failed to read indexer status")
		} else {
			priority = rec.Priority
			if opts.RespectEnabled && !rec.IsEnabled {
				reject(ReasonDisabled)
				continue
			}
			if opts.RespectBackoff && rec.BackoffUntil != nil && s.now().Before(*rec.BackoffUntil) {
				reject(ReasonBackoff)
				continue
			}
		}

		if len(allowed) > 0 && !allowed[def.ID] {
			reject(ReasonIndexerFilter)
			continue
		}
		if len(protocols) > 0 && !protocols[def.Protocol] {
			reject(ReasonProtocol)
			continue
		}

		eligible = append(eligible, eligibleIndexer{ix: ix, def: def, priority: priority})
	}

	for i := 1; i < len(eligible); i++ {
		for j := i; j > 0 && eligible[j].priority < eligible[j-1].priority; j-- {
			eligible[j], eligible[j-1] = eligible[j-1], eligible[j]
		}
	}

	return eligible, rejected
}

// searchOne runs the rate-limited, timeout-bounded search against a
// single indexer, recording health outcomes. Errors never propagate
// beyond the per-indexer result.
func (s *Service) searchOne(ctx context.Context, entry eligibleIndexer, criteria types.SearchCriteria, opts Options) indexerOutcome {
	def := entry.def
	outcome := indexerOutcome{
		result:   IndexerSearchResult{IndexerID: def.ID, IndexerName: def.Name},
		priority: entry.priority,
	}

	check := s.limiter.Check(def.ID, def.BaseURL)
	if !check.CanProceed {
		if check.WaitTime > opts.Timeout {
			outcome.result.Error = "rate limited"
			return outcome
		}
		select {
		case <-time.After(check.WaitTime):
		case <-ctx.Done():
			outcome.result.Error = ctx.Err().Error()
			return outcome
		}
	}

	searchCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	start := time.Now()
	releases, method, err := s.runTiers(searchCtx, entry, criteria, opts)
	outcome.result.ElapsedMs = time.Since(start).Milliseconds()
	outcome.result.SearchMethod = method

	s.limiter.Record(def.ID, def.BaseURL)

	if err != nil {
		message := err.Error()
		switch {
		case indexer.IsCloudflareError(err):
			message = "cloudflare protection detected"
		case indexer.IsRateLimitError(err):
			message = "rate limited by indexer"
		case indexer.IsTimeoutError(err):
			message = "search timed out"
		}
		outcome.result.Error = message
		if recordErr := s.status.RecordFailure(ctx, def.ID, err); recordErr != nil {
			s.logger.Warn().Err(recordErr).Int64("indexerId", def.ID).Msg("Failed to record indexer failure")
		}
		s.logger.Warn().
			Err(err).
			Int64("indexerId", def.ID).
			Str("indexerName", def.Name).
			Msg("Indexer search failed")
		return outcome
	}

	if recordErr := s.status.RecordSuccess(ctx, def.ID); recordErr != nil {
		s.logger.Warn().Err(recordErr).Int64("indexerId", def.ID).Msg("Failed to record indexer success")
	}

	outcome.releases = releases
	outcome.result.Count = len(releases)

	s.logger.Debug().
		Int64("indexerId", def.ID).
		Str("indexerName", def.Name).
		Int("results", len(releases)).
		Str("method", method).
		Msg("Indexer search completed")

	return outcome
}

// runTiers applies the tiered ID/text strategy for one indexer.
func (s *Service) runTiers(ctx context.Context, entry eligibleIndexer, criteria types.SearchCriteria, opts Options) ([]types.ReleaseResult, string, error) {
	if !opts.UseTieredSearch {
		releases, err := entry.ix.Search(ctx, criteria)
		return releases, "", err
	}

	caps := entry.def.Capabilities

	if criteria.HasSearchableIDs() && capabilities.SupportsAnyID(caps, criteria) {
		idCriteria := criteria
		idCriteria.Query = ""
		idCriteria.SearchTitles = nil

		releases, err := entry.ix.Search(ctx, idCriteria)
		if err != nil {
			return nil, "id", err
		}
		if len(releases) > 0 || !criteria.HasTextFallback() {
			return releases, "id", nil
		}
	}

	if !criteria.HasTextFallback() {
		releases, err := entry.ix.Search(ctx, criteria)
		return releases, "", err
	}

	releases, err := s.textTier(ctx, entry, criteria)
	return releases, "text", err
}

// textTier runs the multi-variant text search: up to three titles, each
// expanded across the indexer's declared query formats.
func (s *Service) textTier(ctx context.Context, entry eligibleIndexer, criteria types.SearchCriteria) ([]types.ReleaseResult, error) {
	caps := entry.def.Capabilities

	titles := criteria.SearchTitles
	if len(titles) == 0 {
		titles = []string{criteria.Query}
	}
	if len(titles) > 3 {
		titles = titles[:3]
	}

	type variantKey struct {
		query string
		year  int
	}
	seenVariant := make(map[variantKey]bool)
	seenGUID := make(map[string]bool)

	var collected []types.ReleaseResult
	var errs []error
	attempts := 0

	for _, title := range titles {
		if title == "" {
			continue
		}

		var variants []types.SearchCriteria
		switch {
		case criteria.Type == types.SearchTypeTV && criteria.Season > 0:
			for _, format := range capabilities.EffectiveEpisodeFormats(caps.EpisodeFormats, false) {
				v := criteria
				v.Query = title
				v.SearchTitles = nil
				v.PreferredEpisodeFormat = format
				variants = append(variants, v)
			}
		case criteria.Type == types.SearchTypeMovie:
			for _, format := range capabilities.EffectiveMovieFormats(caps.MovieFormats, true) {
				v := criteria
				v.SearchTitles = nil
				v.Query, v.Year = indexer.ComposeMovieKeyword(title, criteria.Year, format)
				variants = append(variants, v)
			}
		default:
			v := criteria
			v.Query = title
			v.SearchTitles = nil
			variants = append(variants, v)
		}

		for _, v := range variants {
			key := variantKey{query: v.Query + "|" + v.PreferredEpisodeFormat, year: v.Year}
			if seenVariant[key] {
				continue
			}
			seenVariant[key] = true

			attempts++
			releases, err := entry.ix.Search(ctx, v)
			if err != nil {
				errs = append(errs, fmt.Errorf("query %q: %w", v.Query, err))
				continue
			}
			for _, rel := range releases {
				if seenGUID[rel.GUID] {
					continue
				}
				seenGUID[rel.GUID] = true
				collected = append(collected, rel)
			}
		}
	}

	if attempts > 0 && len(errs) == attempts {
		return nil, errors.Join(errs...)
	}
	return collected, nil
}
