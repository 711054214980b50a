// Package autosearch periodically searches for wanted library items and
// grabs the best acceptable release for each.
package autosearch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/gatherr/gatherr/internal/indexer"
	"github.com/gatherr/gatherr/internal/indexer/grab"
	"github.com/gatherr/gatherr/internal/indexer/scoring"
	"github.com/gatherr/gatherr/internal/indexer/search"
	"github.com/gatherr/gatherr/internal/indexer/types"
	"github.com/gatherr/gatherr/internal/scheduler"
)

// TaskID is the scheduler id for the periodic run.
const TaskID = "autosearch"

// WantedItem is one library entity that still needs a file.
type WantedItem struct {
	MediaType    string `json:"mediaType"` // movie, episode, season, series
	MediaID      int64  `json:"mediaId"`
	SeasonNumber int    `json:"seasonNumber,omitempty"`

	Title        string   `json:"title"`
	SearchTitles []string `json:"searchTitles,omitempty"`
	Year         int      `json:"year,omitempty"`
	TmdbID       int      `json:"tmdbId,omitempty"`
	Season       int      `json:"season,omitempty"`
	Episode      int      `json:"episode,omitempty"`

	ProfileID string `json:"profileId,omitempty"`
}

// WantedProvider lists the items the library is still missing.
type WantedProvider interface {
	ListWanted(ctx context.Context) ([]WantedItem, error)
}

// IndexerSource yields the adapters to search; typically backed by the
// indexer registry.
type IndexerSource interface {
	ActiveIndexers(ctx context.Context) ([]indexer.Indexer, error)
}

// Config tunes the periodic run.
type Config struct {
	// Interval between runs.
	Interval time.Duration
	// MaxItemsPerRun bounds how many wanted items one run processes;
	// zero means all.
	MaxItemsPerRun int
	// SearchLimit caps results requested per item.
	SearchLimit int
}

func DefaultConfig() Config {
	return Config{
		Interval:    30 * time.Minute,
		SearchLimit: 50,
	}
}

// RunStats summarizes one autosearch run.
type RunStats struct {
	Items    int `json:"items"`
	Searched int `json:"searched"`
	Grabbed  int `json:"grabbed"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// Service drives scheduled searches end to end: wanted item to search
// to decision-gated grab.
type Service struct {
	wanted   WantedProvider
	indexers IndexerSource
	searcher *search.Service
	grabber  *grab.Service
	config   Config
	logger   zerolog.Logger
}

func NewService(wanted WantedProvider, indexers IndexerSource, searcher *search.Service, grabber *grab.Service, config Config, logger zerolog.Logger) *Service {
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	if config.SearchLimit <= 0 {
		config.SearchLimit = DefaultConfig().SearchLimit
	}
	return &Service{
		wanted:   wanted,
		indexers: indexers,
		searcher: searcher,
		grabber:  grabber,
		config:   config,
		logger:   logger.With().Str("component", "autosearch").Logger(),
	}
}

// Register adds the periodic task to the scheduler.
func (s *Service) Register(sched *scheduler.Scheduler) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          TaskID,
		Name:        "Automatic Search",
		Description: "Searches indexers for wanted items and grabs the best release",
		Every:       s.config.Interval,
		Func: func(ctx context.Context) error {
			_, err := s.Run(ctx)
			return err
		},
	})
}

// Run processes the wanted list once. Per-item failures are counted,
// logged, and never abort the run.
func (s *Service) Run(ctx context.Context) (*RunStats, error) {
	items, err := s.wanted.ListWanted(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list wanted items: %w", err)
	}
	if s.config.MaxItemsPerRun > 0 && len(items) > s.config.MaxItemsPerRun {
		items = items[:s.config.MaxItemsPerRun]
	}

	active, err := s.indexers.ActiveIndexers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexers: %w", err)
	}

	stats := &RunStats{Items: len(items)}
	for _, item := range items {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		stats.Searched++

		grabbed, err := s.processItem(ctx, active, item)
		switch {
		case err != nil:
			stats.Failed++
			s.logger.Warn().Err(err).Str("title", item.Title).Msg("Autosearch item failed")
		case grabbed:
			stats.Grabbed++
		default:
			stats.Skipped++
		}
	}

	s.logger.Info().
		Int("items", stats.Items).
		Int("grabbed", stats.Grabbed).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Msg("Autosearch run completed")
	return stats, nil
}

// processItem searches for one wanted item and grabs the top-ranked
// acceptable release. A rejected upgrade is a skip, not a failure.
func (s *Service) processItem(ctx context.Context, active []indexer.Indexer, item WantedItem) (bool, error) {
	criteria, err := s.criteriaFor(item)
	if err != nil {
		return false, err
	}

	opts := search.DefaultOptions()
	opts.Source = types.SearchSourceAutomatic
	opts.Enrichment = &scoring.Options{
		ScoringProfileID: item.ProfileID,
		FilterRejected:   true,
		MediaType:        s.scoringMediaType(item),
	}

	result, err := s.searcher.SearchEnhanced(ctx, active, criteria, opts)
	if err != nil {
		return false, fmt.Errorf("search failed: %w", err)
	}
	if len(result.Releases) == 0 {
		return false, nil
	}

	best := result.Releases[0]
	if best.Rejected {
		return false, nil
	}

	_, err = s.grabber.Grab(ctx, grab.Request{
		Title:        best.Title,
		DownloadURL:  best.DownloadURL,
		MagnetURL:    best.MagnetURL,
		StreamURL:    best.StreamURL,
		InfoHash:     best.InfoHash,
		IndexerID:    best.IndexerID,
		Protocol:     best.Protocol,
		Categories:   best.Categories,
		MediaType:    item.MediaType,
		MediaID:      item.MediaID,
		SeasonNumber: item.SeasonNumber,
		IsAutomatic:  true,
	})
	if err != nil {
		var rejected *grab.UpgradeRejectedError
		if errors.As(err, &rejected) {
			s.logger.Debug().
				Str("title", best.Title).
				Str("status", rejected.Decision.UpgradeStatus).
				Msg("Autosearch grab rejected by decision gate")
			return false, nil
		}
		return false, fmt.Errorf("grab failed: %w", err)
	}
	return true, nil
}

func (s *Service) criteriaFor(item WantedItem) (types.SearchCriteria, error) {
	criteria := types.SearchCriteria{
		Query:        item.Title,
		SearchTitles: item.SearchTitles,
		Source:       types.SearchSourceAutomatic,
		Limit:        s.config.SearchLimit,
		TmdbID:       item.TmdbID,
	}
	switch item.MediaType {
	case grab.MediaTypeMovie:
		criteria.Type = types.SearchTypeMovie
		criteria.Year = item.Year
	case grab.MediaTypeEpisode:
		criteria.Type = types.SearchTypeTV
		criteria.Season = item.Season
		criteria.Episode = item.Episode
	case grab.MediaTypeSeason:
		criteria.Type = types.SearchTypeTV
		criteria.Season = item.SeasonNumber
	case grab.MediaTypeSeries:
		criteria.Type = types.SearchTypeTV
	default:
		return types.SearchCriteria{}, fmt.Errorf("unknown media type %q", item.MediaType)
	}
	return criteria, criteria.Validate()
}

func (s *Service) scoringMediaType(item WantedItem) scoring.MediaType {
	if item.MediaType == grab.MediaTypeMovie {
		return scoring.MediaTypeMovie
	}
	return scoring.MediaTypeTV
}
