// Package tmdb implements the metadata resolver against the TMDB v3 API.
package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/gatherr/gatherr/internal/metadata"
)

var (
	ErrAPIKeyMissing = errors.New("TMDB API key is not configured")
	ErrNotFound      = errors.New("TMDB resource not found")
	ErrAPIError      = errors.New("TMDB API error")
	ErrRateLimited   = errors.New("TMDB API rate limited")
)

// DefaultBaseURL is the public TMDB v3 endpoint.
const DefaultBaseURL = "https://api.themoviedb.org/3"

// Config holds the TMDB client settings.
type Config struct {
	APIKey  string
	BaseURL string
	// Timeout in seconds for each request.
	Timeout int
}

// Client is a TMDB API client implementing metadata.Resolver.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// NewClient creates a new TMDB client.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		config: cfg,
		logger: logger.With().Str("component", "tmdb").Logger(),
	}
}

// IsConfigured returns true if the API key is set.
func (c *Client) IsConfigured() bool {
	return c.config.APIKey != ""
}

// GetMovieExternalIDs fetches provider IDs for a movie.
func (c *Client) GetMovieExternalIDs(ctx context.Context, tmdbID int) (*metadata.MovieExternalIDs, error) {
	if !c.IsConfigured() {
		return nil, ErrAPIKeyMissing
	}

	endpoint := fmt.Sprintf("%s/movie/%d/external_ids", c.config.BaseURL, tmdbID)
	var ids metadata.MovieExternalIDs
	if err := c.doRequest(ctx, endpoint, &ids); err != nil {
		return nil, err
	}
	return &ids, nil
}

// GetTVExternalIDs fetches provider IDs for a series.
func (c *Client) GetTVExternalIDs(ctx context.Context, tmdbID int) (*metadata.TVExternalIDs, error) {
	if !c.IsConfigured() {
		return nil, ErrAPIKeyMissing
	}

	endpoint := fmt.Sprintf("%s/tv/%d/external_ids", c.config.BaseURL, tmdbID)
	var ids metadata.TVExternalIDs
	if err := c.doRequest(ctx, endpoint, &ids); err != nil {
		return nil, err
	}
	return &ids, nil
}

// GetTVShow fetches series-level details including per-season episode
// counts.
func (c *Client) GetTVShow(ctx context.Context, tmdbID int) (*metadata.TVShow, error) {
	if !c.IsConfigured() {
		return nil, ErrAPIKeyMissing
	}

	endpoint := fmt.Sprintf("%s/tv/%d", c.config.BaseURL, tmdbID)
	var show metadata.TVShow
	if err := c.doRequest(ctx, endpoint, &show); err != nil {
		return nil, err
	}
	return &show, nil
}

// GetSeason fetches one season's details.
func (c *Client) GetSeason(ctx context.Context, tmdbID, seasonNumber int) (*metadata.Season, error) {
	if !c.IsConfigured() {
		return nil, ErrAPIKeyMissing
	}

	endpoint := fmt.Sprintf("%s/tv/%d/season/%d", c.config.BaseURL, tmdbID, seasonNumber)
	var details struct {
		SeasonNumber int `json:"season_number"`
		Episodes     []struct {
			EpisodeNumber int `json:"episode_number"`
		} `json:"episodes"`
	}
	if err := c.doRequest(ctx, endpoint, &details); err != nil {
		return nil, err
	}
	return &metadata.Season{
		SeasonNumber: details.SeasonNumber,
		EpisodeCount: len(details.Episodes),
	}, nil
}

// doRequest performs an HTTP GET request and decodes the JSON response.
func (c *Client) doRequest(ctx context.Context, endpoint string, result any) error {
	params := url.Values{}
	params.Set("api_key", c.config.APIKey)
	reqURL := fmt.Sprintf("%s?%s", endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("url", endpoint).Msg("HTTP request failed")
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		switch resp.StatusCode {
		case http.StatusNotFound:
			return ErrNotFound
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: invalid API key", ErrAPIError)
		case http.StatusTooManyRequests:
			return ErrRateLimited
		default:
			return fmt.Errorf("%w: status %d", ErrAPIError, resp.StatusCode)
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
