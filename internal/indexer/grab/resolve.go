package grab

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/gatherr/gatherr/internal/indexer"
	"github.com/gatherr/gatherr/internal/indexer/types"
)

// resolvedPayload is the downloadable form of a release: exactly one
// of magnetURI, torrentFile, or downloadURL carries the payload.
type resolvedPayload struct {
	magnetURI   string
	torrentFile []byte
	downloadURL string
	infoHash    string
}

// resolvePayload turns the request's URL fields into something a
// download client accepts. Usenet URLs pass through unchanged; torrent
// links are dereferenced through the owning indexer so its session
// state applies.
func (s *Service) resolvePayload(ctx context.Context, req Request) (resolvedPayload, error) {
	if req.Protocol == types.ProtocolUsenet {
		return resolvedPayload{downloadURL: req.DownloadURL}, nil
	}

	if req.MagnetURL != "" {
		hash := req.InfoHash
		if hash == "" {
			hash = magnetInfoHash(req.MagnetURL)
		}
		return resolvedPayload{magnetURI: req.MagnetURL, infoHash: strings.ToLower(hash)}, nil
	}

	downloadURL := req.DownloadURL
	if strings.HasPrefix(downloadURL, "magnet:") {
		hash := req.InfoHash
		if hash == "" {
			hash = magnetInfoHash(downloadURL)
		}
		return resolvedPayload{magnetURI: downloadURL, infoHash: strings.ToLower(hash)}, nil
	}

	ix := s.indexerFor(ctx, req.IndexerID)
	if ix == nil {
		// No owning indexer to dereference through; let the client
		// fetch the URL itself.
		return resolvedPayload{downloadURL: downloadURL, infoHash: strings.ToLower(req.InfoHash)}, nil
	}

	if rec, ok := ix.(indexer.URLReconstructor); ok {
		downloadURL = rec.ReconstructDownloadURL(downloadURL)
	}

	data, err := ix.DownloadTorrent(ctx, downloadURL)
	if err != nil {
		s.logger.Warn().Err(err).Str("url", downloadURL).Msg("Torrent dereference failed, passing url to client")
		return resolvedPayload{downloadURL: downloadURL, infoHash: strings.ToLower(req.InfoHash)}, nil
	}

	return classifyTorrentPayload(data, req.InfoHash)
}

// classifyTorrentPayload inspects dereferenced content: a raw torrent,
// a magnet link, or an HTML page linking to a magnet.
func classifyTorrentPayload(data []byte, knownHash string) (resolvedPayload, error) {
	if len(data) == 0 {
		return resolvedPayload{}, fmt.Errorf("%w: empty response", ErrResolutionFailed)
	}

	if bytes.HasPrefix(data, []byte("magnet:")) {
		magnet := strings.TrimSpace(string(data))
		if idx := strings.IndexAny(magnet, "\r\n"); idx != -1 {
			magnet = magnet[:idx]
		}
		hash := knownHash
		if hash == "" {
			hash = magnetInfoHash(magnet)
		}
		return resolvedPayload{magnetURI: magnet, infoHash: strings.ToLower(hash)}, nil
	}

	if isTorrentContent(data) {
		hash := knownHash
		if hash == "" {
			hash = torrentInfoHash(data)
		}
		return resolvedPayload{torrentFile: data, infoHash: strings.ToLower(hash)}, nil
	}

	if isHTMLContent(data) {
		if magnet := findMagnetInHTML(data); magnet != "" {
			hash := knownHash
			if hash == "" {
				hash = magnetInfoHash(magnet)
			}
			return resolvedPayload{magnetURI: magnet, infoHash: strings.ToLower(hash)}, nil
		}
		return resolvedPayload{}, fmt.Errorf("%w: html page without magnet link", ErrResolutionFailed)
	}

	return resolvedPayload{}, fmt.Errorf("%w: unrecognized content", ErrResolutionFailed)
}

func (s *Service) indexerFor(ctx context.Context, indexerID int64) indexer.Indexer {
	if s.indexers == nil || indexerID <= 0 {
		return nil
	}
	ix, err := s.indexers.GetClient(ctx, indexerID)
	if err != nil {
		s.logger.Warn().Err(err).Int64("indexerId", indexerID).Msg("Failed to get indexer for url resolution")
		return nil
	}
	return ix
}

// findMagnetInHTML returns the first magnet href in an HTML document.
func findMagnetInHTML(data []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return ""
	}
	href, _ := doc.Find("a[href^='magnet:']").First().Attr("href")
	return href
}

// magnetInfoHash extracts the btih hash from a magnet link's xt
// parameter, empty when absent.
func magnetInfoHash(magnet string) string {
	u, err := url.Parse(magnet)
	if err != nil {
		return ""
	}
	for _, xt := range u.Query()["xt"] {
		if rest, ok := strings.CutPrefix(xt, "urn:btih:"); ok {
			return strings.ToLower(rest)
		}
	}
	return ""
}

// torrentInfoHash computes the SHA-1 of the bencoded info dictionary.
func torrentInfoHash(data []byte) string {
	idx := bytes.Index(data, []byte("4:info"))
	if idx == -1 {
		return ""
	}
	start := idx + len("4:info")
	end, err := bencodeValueEnd(data, start)
	if err != nil {
		return ""
	}
	sum := sha1.Sum(data[start:end])
	return hex.EncodeToString(sum[:])
}

// bencodeValueEnd returns the offset just past the bencode value
// starting at i.
func bencodeValueEnd(data []byte, i int) (int, error) {
	if i >= len(data) {
		return 0, fmt.Errorf("truncated bencode value")
	}
	switch c := data[i]; {
	case c == 'd' || c == 'l':
		i++
		for i < len(data) && data[i] != 'e' {
			var err error
			i, err = bencodeValueEnd(data, i)
			if err != nil {
				return 0, err
			}
		}
		if i >= len(data) {
			return 0, fmt.Errorf("unterminated bencode container")
		}
		return i + 1, nil
	case c == 'i':
		end := bytes.IndexByte(data[i:], 'e')
		if end == -1 {
			return 0, fmt.Errorf("unterminated bencode integer")
		}
		return i + end + 1, nil
	case c >= '0' && c <= '9':
		colon := bytes.IndexByte(data[i:], ':')
		if colon == -1 {
			return 0, fmt.Errorf("malformed bencode string")
		}
		length, err := strconv.Atoi(string(data[i : i+colon]))
		if err != nil {
			return 0, fmt.Errorf("malformed bencode string length: %w", err)
		}
		end := i + colon + 1 + length
		if end > len(data) {
			return 0, fmt.Errorf("bencode string exceeds input")
		}
		return end, nil
	default:
		return 0, fmt.Errorf("unexpected bencode byte %q", c)
	}
}

// isTorrentContent reports whether data looks like a bencoded torrent
// with an info dictionary.
func isTorrentContent(data []byte) bool {
	return len(data) > 0 && data[0] == 'd' && bytes.Contains(data, []byte("4:info")) &&
		data[len(data)-1] == 'e'
}

// isHTMLContent checks the leading bytes for HTML markers, the usual
// shape of an indexer error page.
func isHTMLContent(data []byte) bool {
	checkLen := len(data)
	if checkLen > 1024 {
		checkLen = 1024
	}
	head := strings.ToLower(string(data[:checkLen]))
	for _, marker := range []string{"<!doctype html", "<html", "<head", "<body"} {
		if strings.Contains(head, marker) {
			return true
		}
	}
	return false
}
