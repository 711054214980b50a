// Package mock provides a configurable in-memory indexer for tests
// and local development.
package mock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gatherr/gatherr/internal/indexer/types"
)

var errSearchFailed = errors.New("mock indexer failure")

// Indexer is a scriptable indexer adapter. Searches are answered from
// canned release lists, optionally keyed by query text, with
// configurable errors and latency.
type Indexer struct {
	def *types.IndexerDefinition

	mu sync.Mutex

	// Releases is returned for every search unless a query-specific
	// entry exists in ReleasesByQuery.
	Releases        []types.ReleaseResult
	ReleasesByQuery map[string][]types.ReleaseResult

	// IDReleases, when non-nil, is returned for ID-only searches
	// (criteria with searchable IDs and no query text).
	IDReleases []types.ReleaseResult

	// SearchErr fails every search. FailNextSearches fails only the
	// next N searches, using SearchErr when set or a generic error.
	SearchErr        error
	FailNextSearches int

	// Delay is applied before answering, honoring ctx cancellation.
	Delay time.Duration

	// TorrentData answers DownloadTorrent. DownloadErr fails it.
	TorrentData []byte
	DownloadErr error

	// SearchCalls records every criteria seen, in order.
	SearchCalls []types.SearchCriteria
}

// NewIndexer creates a mock indexer with sane torrent defaults.
func NewIndexer(id int64, name string) *Indexer {
	return &Indexer{
		def: &types.IndexerDefinition{
			ID:       id,
			Name:     name,
			Protocol: types.ProtocolTorrent,
			BaseURL:  fmt.Sprintf("https://%s.example.com", name),
			Capabilities: types.Capabilities{
				Categories: []int{2000, 5000},
				MovieSearch: types.SearchMode{
					Available:       true,
					SupportedParams: []string{"q", "imdbId", "tmdbId"},
				},
				TVSearch: types.SearchMode{
					Available:       true,
					SupportedParams: []string{"q", "tvdbId", "tmdbId", "season", "ep"},
				},
			},
			InteractiveEnabled: true,
			AutomaticEnabled:   true,
			Priority:           25,
		},
		ReleasesByQuery: make(map[string][]types.ReleaseResult),
	}
}

// FromDefinition wraps an existing definition, for wiring mocks through
// the registry factory path.
func FromDefinition(def *types.IndexerDefinition) *Indexer {
	return &Indexer{
		def:             def,
		ReleasesByQuery: make(map[string][]types.ReleaseResult),
	}
}

// Definition returns the indexer definition. The returned pointer is
// shared; tests may mutate it before use.
func (m *Indexer) Definition() *types.IndexerDefinition {
	return m.def
}

// Search answers from the canned release lists.
func (m *Indexer) Search(ctx context.Context, criteria types.SearchCriteria) ([]types.ReleaseResult, error) {
	m.mu.Lock()
	m.SearchCalls = append(m.SearchCalls, criteria)
	delay := m.Delay
	var searchErr error
	if m.FailNextSearches > 0 {
		m.FailNextSearches--
		searchErr = m.SearchErr
		if searchErr == nil {
			searchErr = errSearchFailed
		}
	} else if m.SearchErr != nil {
		searchErr = m.SearchErr
	}
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if searchErr != nil {
		return nil, searchErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if criteria.Query == "" && criteria.HasSearchableIDs() && m.IDReleases != nil {
		return m.tag(m.IDReleases), nil
	}
	if rels, ok := m.ReleasesByQuery[criteria.Query]; ok {
		return m.tag(rels), nil
	}
	return m.tag(m.Releases), nil
}

// DownloadTorrent returns the canned torrent payload.
func (m *Indexer) DownloadTorrent(_ context.Context, _ string) ([]byte, error) {
	if m.DownloadErr != nil {
		return nil, m.DownloadErr
	}
	return m.TorrentData, nil
}

// tag stamps indexer identity onto copies of the canned releases.
func (m *Indexer) tag(releases []types.ReleaseResult) []types.ReleaseResult {
	out := make([]types.ReleaseResult, len(releases))
	for i, r := range releases {
		r.IndexerID = m.def.ID
		r.IndexerName = m.def.Name
		if r.Protocol == "" {
			r.Protocol = m.def.Protocol
		}
		out[i] = r
	}
	return out
}

// Release builds a torrent release with the usual fields populated.
func Release(guid, title string, seeders int) types.ReleaseResult {
	return types.ReleaseResult{
		GUID:        guid,
		Title:       title,
		Protocol:    types.ProtocolTorrent,
		Categories:  []int{2000},
		DownloadURL: "https://example.com/dl/" + guid,
		Seeders:     seeders,
		Leechers:    seeders / 2,
		Size:        4 << 30,
		PublishDate: time.Now().Add(-24 * time.Hour),
	}
}

// TVRelease builds a TV-categorized torrent release.
func TVRelease(guid, title string, seeders int) types.ReleaseResult {
	r := Release(guid, title, seeders)
	r.Categories = []int{5000}
	return r
}
