// Package scoring enriches raw releases with parsed attributes, scores
// them against a quality profile, and applies the quality filters that
// mark releases rejected.
package scoring

import (
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/gatherr/gatherr/internal/indexer/types"
	"github.com/gatherr/gatherr/internal/quality"
)

// Rejection reason codes.
const (
	RejectProtocolDisallowed = "protocol_disallowed"
	RejectMinSeeders         = "min_seeders"
	RejectDeadTorrent        = "dead_torrent"
	RejectSizeTooSmall       = "size_too_small"
	RejectSizeTooLarge       = "size_too_large"
	RejectBelowMinScore      = "below_min_score"
)

// MediaType selects which size bounds apply.
type MediaType string

const (
	MediaTypeMovie MediaType = "movie"
	MediaTypeTV    MediaType = "tv"
)

// IndexerConfig carries the per-indexer context the enricher may need.
type IndexerConfig struct {
	ID               int64
	Name             string
	Protocol         types.Protocol
	ProtocolSettings map[string]any
}

// Options controls one enrichment run.
type Options struct {
	ScoringProfileID   string
	FilterRejected     bool
	MinScore           int
	UseEnhancedScoring *bool
	MediaType          MediaType

	// Episode count hints for per-episode size validation. When a
	// season is missing from SeasonEpisodeCounts, SeasonEpisodeCount
	// is the fallback; SeriesEpisodeCount covers complete-series packs.
	SeasonEpisodeCount  int
	SeriesEpisodeCount  int
	SeasonEpisodeCounts map[int]int

	IndexerConfigs map[int64]IndexerConfig

	MatchToTmdb bool
	TmdbHint    int
}

// Result is the outcome of one enrichment run.
type Result struct {
	Releases       []types.EnhancedReleaseResult
	RejectedCount  int
	EnrichTimeMs   int64
	ScoringProfile string
}

// Enricher scores and filters releases.
type Enricher struct {
	profiles *quality.Registry
	logger   zerolog.Logger
}

// NewEnricher creates an enricher over the profile registry.
func NewEnricher(profiles *quality.Registry, logger zerolog.Logger) *Enricher {
	return &Enricher{
		profiles: profiles,
		logger:   logger.With().Str("component", "enricher").Logger(),
	}
}

// ScoreRelease computes the profile score for one release view.
func ScoreRelease(profile *quality.Profile, view types.ReleaseView) int {
	return profile.Score(view.Parsed)
}

// Enrich parses, scores, and filters the given views. The returned
// releases are sorted by (rejected asc, score desc) so the first
// non-rejected element is the current best.
func (e *Enricher) Enrich(views []types.ReleaseView, opts Options) *Result {
	start := time.Now()

	profile := e.profiles.GetOrDefault(opts.ScoringProfileID)
	if opts.UseEnhancedScoring != nil && *opts.UseEnhancedScoring != profile.UseEnhancedScoring {
		clone := *profile
		clone.UseEnhancedScoring = *opts.UseEnhancedScoring
		profile = &clone
	}
	minScore := profile.MinScore
	if opts.MinScore > 0 {
		minScore = opts.MinScore
	}

	enhanced := make([]types.EnhancedReleaseResult, 0, len(views))
	rejectedCount := 0

	for _, view := range views {
		er := types.EnhancedReleaseResult{
			ReleaseResult: view.Release,
			Parsed:        view.Parsed,
			Score:         ScoreRelease(profile, view),
		}

		reasons := e.rejectionReasons(profile, view, opts)
		if er.Score < minScore && minScore > 0 {
			reasons = append(reasons, RejectBelowMinScore)
		}
		if len(reasons) > 0 {
			er.Rejected = true
			er.RejectionReasons = reasons
			rejectedCount++
		}

		if er.Rejected && opts.FilterRejected {
			continue
		}
		enhanced = append(enhanced, er)
	}

	sort.SliceStable(enhanced, func(i, j int) bool {
		if enhanced[i].Rejected != enhanced[j].Rejected {
			return !enhanced[i].Rejected
		}
		return enhanced[i].Score > enhanced[j].Score
	})

	elapsed := time.Since(start).Milliseconds()
	e.logger.Debug().
		Int("input", len(views)).
		Int("rejected", rejectedCount).
		Str("profile", profile.ID).
		Int64("elapsed_ms", elapsed).
		Msg("Enriched releases")

	return &Result{
		Releases:       enhanced,
		RejectedCount:  rejectedCount,
		EnrichTimeMs:   elapsed,
		ScoringProfile: profile.ID,
	}
}

func (e *Enricher) rejectionReasons(profile *quality.Profile, view types.ReleaseView, opts Options) []string {
	var reasons []string
	rel := view.Release

	if !profile.AllowsProtocol(rel.Protocol) {
		reasons = append(reasons, RejectProtocolDisallowed)
	}

	if rel.Protocol == types.ProtocolTorrent {
		if rel.Seeders == 0 {
			reasons = append(reasons, RejectDeadTorrent)
		} else if profile.MinSeeders > 0 && rel.Seeders < profile.MinSeeders {
			reasons = append(reasons, RejectMinSeeders)
		}
	}

	if rel.Size > 0 {
		minSize, maxSize := e.sizeBounds(profile, view, opts)
		if minSize > 0 && rel.Size < minSize {
			reasons = append(reasons, RejectSizeTooSmall)
		}
		if maxSize > 0 && rel.Size > maxSize {
			reasons = append(reasons, RejectSizeTooLarge)
		}
	}

	return reasons
}

// sizeBounds scales episode bounds by the number of episodes a release
// covers. Bounds are skipped (returned as 0) when the episode count is
// unknown.
func (e *Enricher) sizeBounds(profile *quality.Profile, view types.ReleaseView, opts Options) (int64, int64) {
	if opts.MediaType == MediaTypeMovie {
		return profile.MinMovieSize, profile.MaxMovieSize
	}
	if opts.MediaType != MediaTypeTV {
		return 0, 0
	}

	episodes := e.episodeSpan(view, opts)
	if episodes <= 0 {
		return 0, 0
	}
	n := int64(episodes)
	return profile.MinEpisodeSize * n, profile.MaxEpisodeSize * n
}

func (e *Enricher) episodeSpan(view types.ReleaseView, opts Options) int {
	parsed := view.Parsed
	if parsed == nil || parsed.Episode == nil {
		return 0
	}
	ep := parsed.Episode

	if len(ep.Episodes) > 0 {
		return len(ep.Episodes)
	}

	if ep.IsCompleteSeries || len(ep.Seasons) > 1 {
		if len(ep.Seasons) > 0 && opts.SeasonEpisodeCounts != nil {
			total := 0
			for _, season := range ep.Seasons {
				count, ok := opts.SeasonEpisodeCounts[season]
				if !ok {
					return opts.SeriesEpisodeCount
				}
				total += count
			}
			return total
		}
		return opts.SeriesEpisodeCount
	}

	if ep.IsSeasonPack {
		if count, ok := opts.SeasonEpisodeCounts[ep.Season]; ok {
			return count
		}
		return opts.SeasonEpisodeCount
	}

	// Daily and absolute-numbered releases carry a single episode.
	if ep.IsDaily || ep.AbsoluteEpisode > 0 {
		return 1
	}
	return 0
}
