// Package downloader defines the outbound download client contract and
// the protocol-keyed registry the dispatcher selects clients from.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gatherr/gatherr/internal/indexer/types"
)

// ErrNoClient is returned when no client is registered for the
// requested protocol.
var ErrNoClient = errors.New("no download client configured for protocol")

// AddRequest carries everything a client needs to start a download.
// Exactly one of MagnetURI, TorrentFile, or DownloadURL identifies the
// payload; InfoHash is advisory.
type AddRequest struct {
	MagnetURI   string
	TorrentFile []byte
	InfoHash    string
	DownloadURL string

	Title    string
	Category string
	Paused   bool
	Priority int

	SeedRatioLimit float64 // 0 = client default
	SeedTimeLimit  int64   // minutes, 0 = client default
}

// Client is a configured download backend. AddDownload returns the
// hash the client tracks the download under; it may return a
// *DuplicateError when the payload is already present, which callers
// treat as success.
type Client interface {
	ID() int64
	Name() string
	Protocol() types.Protocol
	AddDownload(ctx context.Context, req AddRequest) (string, error)
}

// DuplicateError reports that the client already has the download. The
// embedded hash links the new request to the existing item.
type DuplicateError struct {
	Hash  string
	Title string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("download already exists: %s", e.Hash)
}

// IsDuplicateError reports whether err (or anything it wraps) is a
// duplicate-download report, returning the underlying error when so.
func IsDuplicateError(err error) (*DuplicateError, bool) {
	var dup *DuplicateError
	if errors.As(err, &dup) {
		return dup, true
	}
	return nil, false
}

// Registry holds the configured clients and hands out the preferred
// one per protocol. Registration order is precedence order.
type Registry struct {
	mu      sync.RWMutex
	clients []Client
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Register(c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients = append(r.clients, c)
}

// ClientForProtocol returns the first registered client handling the
// protocol, or ErrNoClient.
func (r *Registry) ClientForProtocol(protocol types.Protocol) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.clients {
		if c.Protocol() == protocol {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoClient, protocol)
}

// List returns the registered clients in precedence order.
func (r *Registry) List() []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Client, len(r.clients))
	copy(out, r.clients)
	return out
}
