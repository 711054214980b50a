package newznab

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gatherr/gatherr/internal/indexer"
	"github.com/gatherr/gatherr/internal/indexer/types"
	"github.com/gatherr/gatherr/internal/testutil"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:torznab="http://torznab.com/schemas/2015/feed">
  <channel>
    <title>mock</title>
    <item>
      <title>Some.Movie.2023.1080p.BluRay.x264-GRP</title>
      <guid>https://indexer.example.com/details/1</guid>
      <link>https://indexer.example.com/dl/1</link>
      <pubDate>Fri, 01 Aug 2025 10:00:00 +0000</pubDate>
      <enclosure url="https://indexer.example.com/dl/1.torrent" length="4294967296" type="application/x-bittorrent"/>
      <torznab:attr name="category" value="2000"/>
      <torznab:attr name="category" value="2040"/>
      <torznab:attr name="seeders" value="52"/>
      <torznab:attr name="peers" value="60"/>
      <torznab:attr name="infohash" value="ABCDEF1234567890ABCDEF1234567890ABCDEF12"/>
    </item>
    <item>
      <title>No.Link.Release</title>
      <guid>https://indexer.example.com/details/2</guid>
      <pubDate>Fri, 01 Aug 2025 09:00:00 +0000</pubDate>
    </item>
  </channel>
</rss>`

func testDefinition(baseURL string) *types.IndexerDefinition {
	settings, _ := json.Marshal(Settings{APIKey: "secret"})
	return &types.IndexerDefinition{
		ID:       1,
		Name:     "mock-nzb",
		Protocol: types.ProtocolTorrent,
		BaseURL:  baseURL,
		Capabilities: types.Capabilities{
			Categories: []int{2000, 5000},
			MovieSearch: types.SearchMode{
				Available:       true,
				SupportedParams: []string{"q", "imdbId", "tmdbId"},
			},
			TVSearch: types.SearchMode{
				Available:       true,
				SupportedParams: []string{"q", "tvdbId", "season", "ep"},
			},
		},
		ProtocolSettings: settings,
	}
}

func TestSearch_MapsFeedItems(t *testing.T) {
	var gotQuery url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	client, err := New(testDefinition(server.URL), testutil.NopLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	releases, err := client.Search(context.Background(), types.SearchCriteria{
		Type:   types.SearchTypeMovie,
		Query:  "Some Movie",
		Year:   2023,
		ImdbID: "tt1234567",
		Limit:  50,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if gotQuery.Get("t") != "movie" {
		t.Errorf("t = %q, want movie", gotQuery.Get("t"))
	}
	if gotQuery.Get("apikey") != "secret" {
		t.Errorf("apikey = %q, want secret", gotQuery.Get("apikey"))
	}
	if gotQuery.Get("imdbid") != "1234567" {
		t.Errorf("imdbid = %q, want tt prefix stripped", gotQuery.Get("imdbid"))
	}
	if gotQuery.Get("year") != "2023" {
		t.Errorf("year = %q, want 2023", gotQuery.Get("year"))
	}
	if gotQuery.Get("cat") != "2000,5000" {
		t.Errorf("cat = %q, want 2000,5000", gotQuery.Get("cat"))
	}

	if len(releases) != 1 {
		t.Fatalf("releases = %d, want 1 (linkless item dropped)", len(releases))
	}
	rel := releases[0]
	if rel.Title != "Some.Movie.2023.1080p.BluRay.x264-GRP" {
		t.Errorf("title = %q", rel.Title)
	}
	if rel.DownloadURL != "https://indexer.example.com/dl/1.torrent" {
		t.Errorf("downloadUrl = %q, want the enclosure url", rel.DownloadURL)
	}
	if rel.Seeders != 52 || rel.Leechers != 8 {
		t.Errorf("seeders/leechers = %d/%d, want 52/8", rel.Seeders, rel.Leechers)
	}
	if rel.InfoHash != "abcdef1234567890abcdef1234567890abcdef12" {
		t.Errorf("infoHash = %q, want lowercased", rel.InfoHash)
	}
	if len(rel.Categories) != 2 || rel.Categories[0] != 2000 {
		t.Errorf("categories = %v, want [2000 2040]", rel.Categories)
	}
	if rel.Size != 4294967296 {
		t.Errorf("size = %d, want enclosure length", rel.Size)
	}
	if rel.PublishDate.IsZero() {
		t.Error("publishDate should be parsed")
	}
}

func TestSearch_TVParams(t *testing.T) {
	var gotQuery url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	client, err := New(testDefinition(server.URL), testutil.NopLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = client.Search(context.Background(), types.SearchCriteria{
		Type:    types.SearchTypeTV,
		Query:   "Some Show",
		Season:  2,
		Episode: 5,
		TvdbID:  121361,
		TmdbID:  1399,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if gotQuery.Get("t") != "tvsearch" {
		t.Errorf("t = %q, want tvsearch", gotQuery.Get("t"))
	}
	if gotQuery.Get("season") != "2" || gotQuery.Get("ep") != "5" {
		t.Errorf("season/ep = %q/%q, want 2/5", gotQuery.Get("season"), gotQuery.Get("ep"))
	}
	if gotQuery.Get("tvdbid") != "121361" {
		t.Errorf("tvdbid = %q, want 121361", gotQuery.Get("tvdbid"))
	}
	// tmdbId is not in the declared TV params.
	if gotQuery.Get("tmdbid") != "" {
		t.Errorf("tmdbid = %q, want unset", gotQuery.Get("tmdbid"))
	}
	// Season goes through parameters, not the keyword.
	if gotQuery.Get("q") != "Some Show" {
		t.Errorf("q = %q, want plain title", gotQuery.Get("q"))
	}
}

func TestSearch_EpisodeKeywordFallback(t *testing.T) {
	var gotQuery url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	def := testDefinition(server.URL)
	def.Capabilities.TVSearch.SupportedParams = []string{"q"}
	client, err := New(def, testutil.NopLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = client.Search(context.Background(), types.SearchCriteria{
		Type:    types.SearchTypeTV,
		Query:   "Some Show",
		Season:  2,
		Episode: 5,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotQuery.Get("q") != "Some Show S02E05" {
		t.Errorf("q = %q, want episode token folded into keyword", gotQuery.Get("q"))
	}
	if gotQuery.Get("season") != "" {
		t.Errorf("season = %q, want unset", gotQuery.Get("season"))
	}
}

func TestSearch_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		headers map[string]string
		check   func(error) bool
	}{
		{"unauthorized", http.StatusUnauthorized, nil, func(err error) bool {
			return indexer.GetErrorCode(err) == indexer.ErrCodeUnauthorized
		}},
		{"cloudflare", http.StatusForbidden, map[string]string{"Server": "cloudflare"}, indexer.IsCloudflareError},
		{"rate limited", http.StatusTooManyRequests, nil, indexer.IsRateLimitError},
		{"transport", http.StatusBadGateway, nil, func(err error) bool {
			return indexer.GetErrorCode(err) == indexer.ErrCodeTransport
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.headers {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client, err := New(testDefinition(server.URL), testutil.NopLogger())
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			_, err = client.Search(context.Background(), types.SearchCriteria{Type: types.SearchTypeMovie, Query: "x"})
			if err == nil || !tt.check(err) {
				t.Errorf("error = %v, wrong classification", err)
			}
		})
	}
}

func TestSearch_DeadlineMapsToTimeout(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	client, err := New(testDefinition(server.URL), testutil.NopLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.Search(ctx, types.SearchCriteria{Type: types.SearchTypeMovie, Query: "x"})
	if !indexer.IsTimeoutError(err) {
		t.Errorf("error = %v, want timeout classification", err)
	}
	if !indexer.IsRetryable(err) {
		t.Error("timeout not marked retryable")
	}
}

func TestDownloadTorrent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("d4:infod4:name3:fooee"))
	}))
	defer server.Close()

	client, err := New(testDefinition(server.URL), testutil.NopLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	data, err := client.DownloadTorrent(context.Background(), server.URL+"/dl/1")
	if err != nil {
		t.Fatalf("DownloadTorrent: %v", err)
	}
	if string(data) != "d4:infod4:name3:fooee" {
		t.Errorf("data = %q", data)
	}
}

func TestReconstructDownloadURL(t *testing.T) {
	client, err := New(testDefinition("https://indexer.example.com"), testutil.NopLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := client.ReconstructDownloadURL("https://indexer.example.com/dl/1?apikey={apikey}")
	if got != "https://indexer.example.com/dl/1?apikey=secret" {
		t.Errorf("reconstructed = %q", got)
	}
}
