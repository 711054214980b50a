// Package mock provides an in-memory download client for tests and
// local development.
package mock

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"sync"

	"github.com/gatherr/gatherr/internal/downloader"
	"github.com/gatherr/gatherr/internal/indexer/types"
)

// Client is an in-memory downloader.Client. Repeated adds of the same
// payload surface a DuplicateError, matching real client behavior.
type Client struct {
	id       int64
	name     string
	protocol types.Protocol

	mu        sync.Mutex
	downloads map[string]downloader.AddRequest

	// AddErr, when set, fails every AddDownload call.
	AddErr error
}

func NewClient(id int64, name string, protocol types.Protocol) *Client {
	return &Client{
		id:        id,
		name:      name,
		protocol:  protocol,
		downloads: make(map[string]downloader.AddRequest),
	}
}

func (c *Client) ID() int64                { return c.id }
func (c *Client) Name() string             { return c.name }
func (c *Client) Protocol() types.Protocol { return c.protocol }

// AddDownload records the request and returns its hash. The hash is
// the normalized info hash when known, otherwise a digest of the
// payload identifier.
func (c *Client) AddDownload(ctx context.Context, req downloader.AddRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if c.AddErr != nil {
		return "", c.AddErr
	}

	hash := hashFor(req)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.downloads[hash]; exists {
		return "", &downloader.DuplicateError{Hash: hash, Title: req.Title}
	}
	c.downloads[hash] = req
	return hash, nil
}

// Downloads returns a snapshot of the recorded requests keyed by hash.
func (c *Client) Downloads() map[string]downloader.AddRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]downloader.AddRequest, len(c.downloads))
	for k, v := range c.downloads {
		out[k] = v
	}
	return out
}

func hashFor(req downloader.AddRequest) string {
	if req.InfoHash != "" {
		return strings.ToLower(req.InfoHash)
	}
	var payload string
	switch {
	case req.MagnetURI != "":
		payload = req.MagnetURI
	case len(req.TorrentFile) > 0:
		payload = string(req.TorrentFile)
	default:
		payload = req.DownloadURL
	}
	sum := sha1.Sum([]byte(payload))
	return hex.EncodeToString(sum[:])
}
