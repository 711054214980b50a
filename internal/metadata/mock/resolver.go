// Package mock provides a canned metadata resolver for tests.
package mock

import (
	"context"
	"errors"

	"github.com/gatherr/gatherr/internal/metadata"
)

// ErrUnavailable is returned for IDs the mock has no data for.
var ErrUnavailable = errors.New("metadata unavailable")

// Resolver serves canned responses keyed by TMDB ID.
type Resolver struct {
	MovieIDs map[int]*metadata.MovieExternalIDs
	TVIDs    map[int]*metadata.TVExternalIDs
	Shows    map[int]*metadata.TVShow
	// Seasons is keyed by tmdbID then season number.
	Seasons map[int]map[int]*metadata.Season

	// Err, when set, is returned from every call.
	Err error

	// Calls counts resolver invocations by method name.
	Calls map[string]int
}

// NewResolver creates an empty mock resolver.
func NewResolver() *Resolver {
	return &Resolver{
		MovieIDs: make(map[int]*metadata.MovieExternalIDs),
		TVIDs:    make(map[int]*metadata.TVExternalIDs),
		Shows:    make(map[int]*metadata.TVShow),
		Seasons:  make(map[int]map[int]*metadata.Season),
		Calls:    make(map[string]int),
	}
}

func (r *Resolver) GetMovieExternalIDs(_ context.Context, tmdbID int) (*metadata.MovieExternalIDs, error) {
	r.Calls["GetMovieExternalIDs"]++
	if r.Err != nil {
		return nil, r.Err
	}
	if ids, ok := r.MovieIDs[tmdbID]; ok {
		return ids, nil
	}
	return nil, ErrUnavailable
}

func (r *Resolver) GetTVExternalIDs(_ context.Context, tmdbID int) (*metadata.TVExternalIDs, error) {
	r.Calls["GetTVExternalIDs"]++
	if r.Err != nil {
		return nil, r.Err
	}
	if ids, ok := r.TVIDs[tmdbID]; ok {
		return ids, nil
	}
	return nil, ErrUnavailable
}

func (r *Resolver) GetTVShow(_ context.Context, tmdbID int) (*metadata.TVShow, error) {
	r.Calls["GetTVShow"]++
	if r.Err != nil {
		return nil, r.Err
	}
	if show, ok := r.Shows[tmdbID]; ok {
		return show, nil
	}
	return nil, ErrUnavailable
}

func (r *Resolver) GetSeason(_ context.Context, tmdbID, seasonNumber int) (*metadata.Season, error) {
	r.Calls["GetSeason"]++
	if r.Err != nil {
		return nil, r.Err
	}
	if seasons, ok := r.Seasons[tmdbID]; ok {
		if s, ok := seasons[seasonNumber]; ok {
			return s, nil
		}
	}
	return nil, ErrUnavailable
}
