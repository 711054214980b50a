package downloader_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gatherr/gatherr/internal/downloader"
	"github.com/gatherr/gatherr/internal/downloader/mock"
	"github.com/gatherr/gatherr/internal/indexer/types"
)

func TestRegistry_ClientForProtocol(t *testing.T) {
	reg := downloader.NewRegistry()
	torrent := mock.NewClient(1, "torrent-box", types.ProtocolTorrent)
	usenet := mock.NewClient(2, "nzb-box", types.ProtocolUsenet)
	reg.Register(torrent)
	reg.Register(usenet)

	got, err := reg.ClientForProtocol(types.ProtocolUsenet)
	if err != nil {
		t.Fatalf("ClientForProtocol: %v", err)
	}
	if got.Name() != "nzb-box" {
		t.Errorf("got client %q, want nzb-box", got.Name())
	}

	if _, err := reg.ClientForProtocol(types.ProtocolStreaming); !errors.Is(err, downloader.ErrNoClient) {
		t.Errorf("expected ErrNoClient, got %v", err)
	}
}

func TestRegistry_PrecedenceIsRegistrationOrder(t *testing.T) {
	reg := downloader.NewRegistry()
	first := mock.NewClient(1, "first", types.ProtocolTorrent)
	second := mock.NewClient(2, "second", types.ProtocolTorrent)
	reg.Register(first)
	reg.Register(second)

	got, err := reg.ClientForProtocol(types.ProtocolTorrent)
	if err != nil {
		t.Fatalf("ClientForProtocol: %v", err)
	}
	if got.ID() != 1 {
		t.Errorf("got client id %d, want 1", got.ID())
	}
}

func TestMockClient_DuplicateAdd(t *testing.T) {
	client := mock.NewClient(1, "torrent-box", types.ProtocolTorrent)
	req := downloader.AddRequest{
		MagnetURI: "magnet:?xt=urn:btih:ABCDEF1234567890ABCDEF1234567890ABCDEF12",
		InfoHash:  "ABCDEF1234567890ABCDEF1234567890ABCDEF12",
		Title:     "Some.Movie.2023.1080p.BluRay.x264-GRP",
	}

	hash, err := client.AddDownload(context.Background(), req)
	if err != nil {
		t.Fatalf("AddDownload: %v", err)
	}
	if hash != "abcdef1234567890abcdef1234567890abcdef12" {
		t.Errorf("hash = %q, want lowercased info hash", hash)
	}

	_, err = client.AddDownload(context.Background(), req)
	dup, ok := downloader.IsDuplicateError(err)
	if !ok {
		t.Fatalf("expected DuplicateError, got %v", err)
	}
	if dup.Hash != hash {
		t.Errorf("duplicate hash = %q, want %q", dup.Hash, hash)
	}
}

func TestMockClient_HashWithoutInfoHash(t *testing.T) {
	client := mock.NewClient(1, "nzb-box", types.ProtocolUsenet)
	hash, err := client.AddDownload(context.Background(), downloader.AddRequest{
		DownloadURL: "https://indexer.example.com/api?t=get&id=1",
		Title:       "Some.Show.S01E01.1080p.WEB-DL.x264-GRP",
	})
	if err != nil {
		t.Fatalf("AddDownload: %v", err)
	}
	if len(hash) != 40 {
		t.Errorf("hash length = %d, want 40 hex chars", len(hash))
	}
}
