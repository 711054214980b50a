// Package metadata defines the resolver interface the search pipeline
// uses to fill in missing external IDs and episode counts. Resolver
// failures are always non-fatal to the caller.
package metadata

import "context"

// MovieExternalIDs are the provider identifiers for a movie.
type MovieExternalIDs struct {
	ImdbID string `json:"imdb_id"`
}

// TVExternalIDs are the provider identifiers for a series.
type TVExternalIDs struct {
	ImdbID string `json:"imdb_id"`
	TvdbID int    `json:"tvdb_id"`
}

// SeasonSummary is the per-season episode count of a series.
type SeasonSummary struct {
	SeasonNumber int `json:"season_number"`
	EpisodeCount int `json:"episode_count"`
}

// TVShow is the series-level metadata the pipeline needs.
type TVShow struct {
	Name             string          `json:"name"`
	Seasons          []SeasonSummary `json:"seasons"`
	NumberOfEpisodes int             `json:"number_of_episodes"`
}

// Season is the season-level metadata the pipeline needs.
type Season struct {
	SeasonNumber int `json:"season_number"`
	EpisodeCount int `json:"episode_count"`
}

// Resolver looks up external IDs and episode counts. The pipeline
// consumes this; it never implements it.
type Resolver interface {
	GetMovieExternalIDs(ctx context.Context, tmdbID int) (*MovieExternalIDs, error)
	GetTVExternalIDs(ctx context.Context, tmdbID int) (*TVExternalIDs, error)
	GetTVShow(ctx context.Context, tmdbID int) (*TVShow, error)
	GetSeason(ctx context.Context, tmdbID, seasonNumber int) (*Season, error)
}
