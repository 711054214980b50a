// Package types defines the shared domain types for indexer search and
// download dispatch.
package types

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gatherr/gatherr/internal/release"
)

// Protocol identifies how releases from an indexer are acquired.
type Protocol string

const (
	ProtocolTorrent   Protocol = "torrent"
	ProtocolUsenet    Protocol = "usenet"
	ProtocolStreaming Protocol = "streaming"
)

// SearchType is the closed set of search shapes.
type SearchType string

const (
	SearchTypeMovie SearchType = "movie"
	SearchTypeTV    SearchType = "tv"
	SearchTypeBasic SearchType = "basic"
)

// SearchSource distinguishes user-driven searches from scheduled ones.
// It affects indexer eligibility and the season-pack policy.
type SearchSource string

const (
	SearchSourceInteractive SearchSource = "interactive"
	SearchSourceAutomatic   SearchSource = "automatic"
)

// Episode query-format variants an indexer can prefer.
const (
	EpisodeFormatStandard = "standard" // S01E01
	EpisodeFormatEuropean = "european" // 1x01
	EpisodeFormatCompact  = "compact"  // 101
)

// Movie query-format variants.
const (
	MovieFormatStandard = "standard" // title + year param
	MovieFormatNoYear   = "noYear"   // title only
	MovieFormatYearOnly = "yearOnly" // year as the query text
)

// SearchCriteria describes one search request. Exactly one SearchType; for
// TV, Episode requires Season.
type SearchCriteria struct {
	Type SearchType `json:"type"`

	Query        string   `json:"query,omitempty"`
	SearchTitles []string `json:"searchTitles,omitempty"`
	IndexerIDs   []int64  `json:"indexerIds,omitempty"`
	Limit        int      `json:"limit,omitempty"`

	Source                 SearchSource `json:"searchSource,omitempty"`
	PreferredEpisodeFormat string       `json:"preferredEpisodeFormat,omitempty"`

	// Movie fields.
	Year int `json:"year,omitempty"`

	// Shared ID fields (movie: imdb/tmdb; tv: all four).
	ImdbID   string `json:"imdbId,omitempty"`
	TmdbID   int    `json:"tmdbId,omitempty"`
	TvdbID   int    `json:"tvdbId,omitempty"`
	TVMazeID int    `json:"tvMazeId,omitempty"`

	// TV fields. Zero means unset.
	Season  int `json:"season,omitempty"`
	Episode int `json:"episode,omitempty"`
}

// Validate checks the structural invariants of the criteria.
func (c SearchCriteria) Validate() error {
	switch c.Type {
	case SearchTypeMovie, SearchTypeTV, SearchTypeBasic:
	default:
		return fmt.Errorf("invalid search type %q", c.Type)
	}
	if c.Type != SearchTypeTV && (c.Season != 0 || c.Episode != 0) {
		return fmt.Errorf("season/episode only valid for tv searches")
	}
	if c.Episode != 0 && c.Season == 0 {
		return fmt.Errorf("episode requires season")
	}
	return nil
}

// HasSearchableIDs reports whether the criteria carries any provider ID
// usable for an ID-tier search.
func (c SearchCriteria) HasSearchableIDs() bool {
	return c.ImdbID != "" || c.TmdbID > 0 || c.TvdbID > 0 || c.TVMazeID > 0
}

// HasTextFallback reports whether a text-tier search has something to send.
func (c SearchCriteria) HasTextFallback() bool {
	return c.Query != "" || len(c.SearchTitles) > 0
}

// SearchMode describes one search mode an indexer declares.
type SearchMode struct {
	Available       bool     `json:"available"`
	SupportedParams []string `json:"supportedParams,omitempty"`
}

// Capabilities is the static capability declaration of an indexer.
type Capabilities struct {
	Categories     []int      `json:"categories,omitempty"`
	MovieSearch    SearchMode `json:"movieSearch"`
	TVSearch       SearchMode `json:"tvSearch"`
	MovieFormats   []string   `json:"movieFormats,omitempty"`
	EpisodeFormats []string   `json:"episodeFormats,omitempty"`
}

// IndexerDefinition is a configured indexer instance.
type IndexerDefinition struct {
	ID           int64        `json:"id"`
	Name         string       `json:"name"`
	Protocol     Protocol     `json:"protocol"`
	BaseURL      string       `json:"baseUrl"`
	Capabilities Capabilities `json:"capabilities"`

	InteractiveEnabled bool `json:"interactiveEnabled"`
	AutomaticEnabled   bool `json:"automaticEnabled"`

	// Priority is the user-assigned ordering, smaller is preferred.
	Priority int `json:"priority"`

	SeedRatio float64 `json:"seedRatio,omitempty"`
	SeedTime  int64   `json:"seedTime,omitempty"` // minutes

	// Per-minute request allowance; zero uses the configured default.
	RequestsPerMinute int `json:"requestsPerMinute,omitempty"`

	// Opaque to the core; consumed by enricher policies and adapters.
	ProtocolSettings json.RawMessage `json:"protocolSettings,omitempty"`
}

// ReleaseResult is a raw release as returned by an indexer adapter.
// Exactly one of DownloadURL, MagnetURL, StreamURL is set.
type ReleaseResult struct {
	GUID        string    `json:"guid"`
	Title       string    `json:"title"`
	IndexerID   int64     `json:"indexerId"`
	IndexerName string    `json:"indexerName"`
	Protocol    Protocol  `json:"protocol"`
	PublishDate time.Time `json:"publishDate,omitempty"`
	Size        int64     `json:"size,omitempty"`
	Categories  []int     `json:"categories,omitempty"`

	DownloadURL string `json:"downloadUrl,omitempty"`
	MagnetURL   string `json:"magnetUrl,omitempty"`
	StreamURL   string `json:"streamUrl,omitempty"`

	InfoHash string `json:"infoHash,omitempty"`
	Seeders  int    `json:"seeders,omitempty"`
	Leechers int    `json:"leechers,omitempty"`

	// Tagged during ingestion from the owning indexer's persistent
	// priority; smaller is preferred.
	IndexerPriority int `json:"indexerPriority,omitempty"`
}

// HasDownload reports whether the release carries any acquisition URL.
func (r *ReleaseResult) HasDownload() bool {
	return r.DownloadURL != "" || r.MagnetURL != "" || r.StreamURL != ""
}

// ReleaseView pairs a raw release with its parsed form. Views are built
// once at the pipeline boundary and never mutated afterwards.
type ReleaseView struct {
	Release ReleaseResult
	Parsed  *release.ParsedRelease
}

// NewReleaseView parses the release title and builds the view.
func NewReleaseView(r ReleaseResult) ReleaseView {
	return ReleaseView{Release: r, Parsed: release.ParseRelease(r.Title)}
}

// EnhancedReleaseResult is a release after enrichment and scoring.
type EnhancedReleaseResult struct {
	ReleaseResult

	Parsed           *release.ParsedRelease `json:"parsed"`
	Score            int                    `json:"score"`
	Rejected         bool                   `json:"rejected"`
	RejectionReasons []string               `json:"rejectionReasons,omitempty"`

	// 1-based position in the final ranked list.
	ReleaseWeight int `json:"releaseWeight,omitempty"`
}
