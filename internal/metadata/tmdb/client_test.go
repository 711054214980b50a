package tmdb

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gatherr/gatherr/internal/testutil"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{APIKey: "test-key", BaseURL: srv.URL}, testutil.NopLogger())
}

func TestGetMovieExternalIDs(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/movie/693134/external_ids" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("api_key") != "test-key" {
			t.Error("api_key not sent")
		}
		json.NewEncoder(w).Encode(map[string]any{"imdb_id": "tt15239678"})
	})

	ids, err := c.GetMovieExternalIDs(context.Background(), 693134)
	if err != nil {
		t.Fatalf("GetMovieExternalIDs failed: %v", err)
	}
	if ids.ImdbID != "tt15239678" {
		t.Errorf("ImdbID = %q", ids.ImdbID)
	}
}

func TestGetTVExternalIDs(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"imdb_id": "tt0944947", "tvdb_id": 121361})
	})

	ids, err := c.GetTVExternalIDs(context.Background(), 1399)
	if err != nil {
		t.Fatalf("GetTVExternalIDs failed: %v", err)
	}
	if ids.ImdbID != "tt0944947" || ids.TvdbID != 121361 {
		t.Errorf("ids = %+v", ids)
	}
}

func TestGetTVShow(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"name":               "Game of Thrones",
			"number_of_episodes": 73,
			"seasons": []map[string]any{
				{"season_number": 1, "episode_count": 10},
				{"season_number": 2, "episode_count": 10},
			},
		})
	})

	show, err := c.GetTVShow(context.Background(), 1399)
	if err != nil {
		t.Fatalf("GetTVShow failed: %v", err)
	}
	if show.NumberOfEpisodes != 73 || len(show.Seasons) != 2 {
		t.Errorf("show = %+v", show)
	}
}

func TestGetSeason_CountsEpisodes(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"season_number": 1,
			"episodes": []map[string]any{
				{"episode_number": 1}, {"episode_number": 2}, {"episode_number": 3},
			},
		})
	})

	season, err := c.GetSeason(context.Background(), 1399, 1)
	if err != nil {
		t.Fatalf("GetSeason failed: %v", err)
	}
	if season.EpisodeCount != 3 {
		t.Errorf("EpisodeCount = %d, want 3", season.EpisodeCount)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, ErrNotFound},
		{http.StatusTooManyRequests, ErrRateLimited},
	}
	for _, tt := range tests {
		c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		})
		_, err := c.GetMovieExternalIDs(context.Background(), 1)
		if err != tt.want {
			t.Errorf("status %d: err = %v, want %v", tt.status, err, tt.want)
		}
	}
}

func TestUnconfiguredClient(t *testing.T) {
	c := NewClient(Config{}, testutil.NopLogger())
	if _, err := c.GetMovieExternalIDs(context.Background(), 1); err != ErrAPIKeyMissing {
		t.Errorf("err = %v, want ErrAPIKeyMissing", err)
	}
}
