package indexer

import (
	"context"

	"github.com/gatherr/gatherr/internal/indexer/types"
)

// Indexer is the adapter contract between the search core and a concrete
// indexer implementation. Adapters translate criteria into their wire
// protocol, compose keywords from the preferred query format, and map
// native responses into ReleaseResult values.
type Indexer interface {
	// Definition returns the configured instance this adapter serves.
	Definition() *types.IndexerDefinition

	// Search executes one search against the indexer.
	Search(ctx context.Context, criteria types.SearchCriteria) ([]types.ReleaseResult, error)

	// DownloadTorrent dereferences a download link through the indexer so
	// cookies, API keys, and session state apply.
	DownloadTorrent(ctx context.Context, url string) ([]byte, error)
}

// URLReconstructor is implemented by adapters that can rebuild redacted
// download URLs (API-key placeholders) from their live credentials.
type URLReconstructor interface {
	ReconstructDownloadURL(redactedURL string) string
}
