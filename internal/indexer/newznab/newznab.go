// Package newznab implements the Newznab/Torznab indexer adapter. It
// covers both usenet indexers and torrent trackers speaking the
// torznab extension.
package newznab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gatherr/gatherr/internal/indexer"
	"github.com/gatherr/gatherr/internal/indexer/types"
)

const defaultAPIPath = "/api"

// Settings is the adapter-specific configuration carried in the
// definition's protocol settings.
type Settings struct {
	APIKey  string `json:"apiKey,omitempty"`
	APIPath string `json:"apiPath,omitempty"`
}

// Client talks to one Newznab-compatible endpoint.
type Client struct {
	def      *types.IndexerDefinition
	settings Settings
	http     *http.Client
	logger   zerolog.Logger
}

// New builds a client from the definition. Protocol settings are
// optional; missing settings fall back to an unauthenticated endpoint
// at the default API path.
func New(def *types.IndexerDefinition, logger zerolog.Logger) (*Client, error) {
	if def.BaseURL == "" {
		return nil, fmt.Errorf("indexer %q has no base url", def.Name)
	}

	var settings Settings
	if len(def.ProtocolSettings) > 0 {
		if err := json.Unmarshal(def.ProtocolSettings, &settings); err != nil {
			return nil, fmt.Errorf("failed to parse protocol settings for %q: %w", def.Name, err)
		}
	}
	if settings.APIPath == "" {
		settings.APIPath = defaultAPIPath
	}

	return &Client{
		def:      def,
		settings: settings,
		http:     &http.Client{Timeout: 60 * time.Second},
		logger:   logger.With().Str("component", "newznab").Str("indexer", def.Name).Logger(),
	}, nil
}

func (c *Client) Definition() *types.IndexerDefinition {
	return c.def
}

// Search translates the criteria into a Newznab query and maps the
// response feed into releases.
func (c *Client) Search(ctx context.Context, criteria types.SearchCriteria) ([]types.ReleaseResult, error) {
	params := c.queryParams(criteria)

	feed, err := c.fetch(ctx, params)
	if err != nil {
		return nil, err
	}

	releases := make([]types.ReleaseResult, 0, len(feed.Channel.Items))
	for _, item := range feed.Channel.Items {
		rel, ok := c.mapItem(item)
		if !ok {
			continue
		}
		releases = append(releases, rel)
	}

	c.logger.Debug().
		Int("results", len(releases)).
		Str("t", params.Get("t")).
		Msg("Search completed")
	return releases, nil
}

// DownloadTorrent fetches a download link through this client so the
// indexer's API key applies.
func (c *Client) DownloadTorrent(ctx context.Context, downloadURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.transportError(err)
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read download body: %w", err)
	}
	return data, nil
}

// ReconstructDownloadURL reinserts the live API key into a redacted
// download URL.
func (c *Client) ReconstructDownloadURL(redactedURL string) string {
	return strings.ReplaceAll(redactedURL, "{apikey}", c.settings.APIKey)
}

// queryParams builds the request parameters for the criteria. ID
// parameters are only sent when the capability declaration lists them.
func (c *Client) queryParams(criteria types.SearchCriteria) url.Values {
	params := url.Values{}
	if c.settings.APIKey != "" {
		params.Set("apikey", c.settings.APIKey)
	}
	if criteria.Limit > 0 {
		params.Set("limit", strconv.Itoa(criteria.Limit))
	}

	var supported []string
	switch criteria.Type {
	case types.SearchTypeMovie:
		params.Set("t", "movie")
		supported = c.def.Capabilities.MovieSearch.SupportedParams
		if criteria.Year > 0 {
			params.Set("year", strconv.Itoa(criteria.Year))
		}
	case types.SearchTypeTV:
		params.Set("t", "tvsearch")
		supported = c.def.Capabilities.TVSearch.SupportedParams
		if criteria.Season > 0 && supportsParam(supported, "season") {
			params.Set("season", strconv.Itoa(criteria.Season))
			if criteria.Episode > 0 && supportsParam(supported, "ep") {
				params.Set("ep", strconv.Itoa(criteria.Episode))
			}
		}
	default:
		params.Set("t", "search")
	}

	if criteria.ImdbID != "" && supportsParam(supported, "imdbId") {
		params.Set("imdbid", strings.TrimPrefix(criteria.ImdbID, "tt"))
	}
	if criteria.TmdbID > 0 && supportsParam(supported, "tmdbId") {
		params.Set("tmdbid", strconv.Itoa(criteria.TmdbID))
	}
	if criteria.TvdbID > 0 && supportsParam(supported, "tvdbId") {
		params.Set("tvdbid", strconv.Itoa(criteria.TvdbID))
	}

	if criteria.Query != "" {
		query := criteria.Query
		// Fold the episode token into the keyword when the endpoint
		// cannot take season/ep parameters.
		if criteria.Type == types.SearchTypeTV && criteria.Season > 0 && !supportsParam(supported, "season") {
			query = indexer.ComposeEpisodeKeyword(query, criteria.Season, criteria.Episode, criteria.PreferredEpisodeFormat)
		}
		params.Set("q", query)
	}

	if cats := c.def.Capabilities.Categories; len(cats) > 0 {
		strs := make([]string, len(cats))
		for i, cat := range cats {
			strs[i] = strconv.Itoa(cat)
		}
		params.Set("cat", strings.Join(strs, ","))
	}

	return params
}

func (c *Client) fetch(ctx context.Context, params url.Values) (*feed, error) {
	endpoint := strings.TrimRight(c.def.BaseURL, "/") + c.settings.APIPath + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.transportError(err)
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return nil, err
	}

	return parseFeed(resp.Body)
}

// transportError classifies a round-trip failure, separating deadline
// expiry from other wire faults.
func (c *Client) transportError(err error) *indexer.IndexerError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return indexer.NewTimeoutError(c.def.ID, c.def.Name, err)
	}
	return indexer.NewTransportError(c.def.ID, c.def.Name, err)
}

// checkStatus maps HTTP failures onto the adapter error taxonomy.
// Cloudflare challenges come back as 403/503 with a server marker.
func (c *Client) checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		if isCloudflare(resp) {
			return indexer.NewCloudflareError(c.def.ID, c.def.Name)
		}
		return indexer.NewUnauthorizedError(c.def.ID, c.def.Name,
			fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode == http.StatusServiceUnavailable && isCloudflare(resp):
		return indexer.NewCloudflareError(c.def.ID, c.def.Name)
	case resp.StatusCode == http.StatusTooManyRequests:
		return indexer.NewRateLimitError(c.def.ID, c.def.Name)
	default:
		return indexer.NewTransportError(c.def.ID, c.def.Name,
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
}

func isCloudflare(resp *http.Response) bool {
	server := strings.ToLower(resp.Header.Get("Server"))
	return strings.Contains(server, "cloudflare") || resp.Header.Get("cf-ray") != ""
}

// mapItem converts one feed item into a release. Items without any
// acquisition URL are dropped.
func (c *Client) mapItem(item feedItem) (types.ReleaseResult, bool) {
	rel := types.ReleaseResult{
		GUID:        item.GUID.Value,
		Title:       item.Title,
		IndexerID:   c.def.ID,
		IndexerName: c.def.Name,
		Protocol:    c.def.Protocol,
		Size:        item.Size,
	}
	if rel.GUID == "" {
		rel.GUID = item.Link
	}
	if t, err := time.Parse(time.RFC1123Z, item.PubDate); err == nil {
		rel.PublishDate = t
	}

	if item.Enclosure.URL != "" {
		rel.DownloadURL = item.Enclosure.URL
	} else {
		rel.DownloadURL = item.Link
	}
	if item.Enclosure.Length > 0 && rel.Size == 0 {
		rel.Size = item.Enclosure.Length
	}

	for _, attr := range item.Attrs {
		switch attr.Name {
		case "category":
			if cat, err := strconv.Atoi(attr.Value); err == nil {
				rel.Categories = append(rel.Categories, cat)
			}
		case "seeders":
			rel.Seeders, _ = strconv.Atoi(attr.Value)
		case "peers":
			if peers, err := strconv.Atoi(attr.Value); err == nil && peers >= rel.Seeders {
				rel.Leechers = peers - rel.Seeders
			}
		case "infohash":
			rel.InfoHash = strings.ToLower(attr.Value)
		case "magneturl":
			rel.MagnetURL = attr.Value
		case "size":
			if rel.Size == 0 {
				rel.Size, _ = strconv.ParseInt(attr.Value, 10, 64)
			}
		}
	}

	if rel.MagnetURL != "" && strings.HasPrefix(rel.DownloadURL, "magnet:") {
		rel.DownloadURL = ""
	}
	if !rel.HasDownload() {
		return types.ReleaseResult{}, false
	}
	return rel, true
}

func supportsParam(supported []string, name string) bool {
	for _, p := range supported {
		if p == name {
			return true
		}
	}
	return false
}
