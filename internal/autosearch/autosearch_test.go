package autosearch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gatherr/gatherr/internal/decisioning"
	"github.com/gatherr/gatherr/internal/downloader"
	dlmock "github.com/gatherr/gatherr/internal/downloader/mock"
	"github.com/gatherr/gatherr/internal/indexer"
	"github.com/gatherr/gatherr/internal/indexer/cache"
	"github.com/gatherr/gatherr/internal/indexer/grab"
	ixmock "github.com/gatherr/gatherr/internal/indexer/mock"
	"github.com/gatherr/gatherr/internal/indexer/ratelimit"
	"github.com/gatherr/gatherr/internal/indexer/scoring"
	"github.com/gatherr/gatherr/internal/indexer/search"
	"github.com/gatherr/gatherr/internal/indexer/status"
	"github.com/gatherr/gatherr/internal/indexer/types"
	"github.com/gatherr/gatherr/internal/quality"
	"github.com/gatherr/gatherr/internal/testutil"
)

type fakeWanted struct {
	items []WantedItem
	err   error
}

func (f *fakeWanted) ListWanted(context.Context) ([]WantedItem, error) {
	return f.items, f.err
}

type fakeSource struct {
	indexers []indexer.Indexer
}

func (f *fakeSource) ActiveIndexers(context.Context) ([]indexer.Indexer, error) {
	return f.indexers, nil
}

type autosearchEnv struct {
	svc    *Service
	ix     *ixmock.Indexer
	client *dlmock.Client
	wanted *fakeWanted
}

func newAutosearchEnv(t *testing.T, library decisioning.Library) *autosearchEnv {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	logger := testutil.NopLogger()
	profiles := quality.NewRegistry()

	ix := ixmock.NewIndexer(1, "mock-torrent")
	if err := tdb.Store.CreateIndexer(context.Background(), ix.Definition()); err != nil {
		t.Fatalf("CreateIndexer: %v", err)
	}

	statusSvc := status.NewService(tdb.Store, status.DefaultBackoffConfig(), logger)
	limiter := ratelimit.NewLimiter(ratelimit.DefaultConfig(), logger)
	releaseCache := cache.NewReleaseCache(cache.DefaultTTL, logger)
	enricher := scoring.NewEnricher(profiles, logger)
	searcher := search.NewService(statusSvc, limiter, releaseCache, enricher, logger)

	client := dlmock.NewClient(10, "torrent-box", types.ProtocolTorrent)
	registry := downloader.NewRegistry()
	registry.Register(client)

	grabber := grab.NewService(tdb.Store, registry, logger)
	grabber.SetStatusService(statusSvc)
	grabber.SetRateLimiter(limiter)
	if library != nil {
		grabber.SetDecisionService(decisioning.NewService(library, profiles, logger))
	}

	wanted := &fakeWanted{}
	svc := NewService(wanted, &fakeSource{indexers: []indexer.Indexer{ix}}, searcher, grabber, Config{
		Interval:    time.Hour,
		SearchLimit: 20,
	}, logger)

	return &autosearchEnv{svc: svc, ix: ix, client: client, wanted: wanted}
}

func TestRun_GrabsBestRelease(t *testing.T) {
	env := newAutosearchEnv(t, nil)
	env.ix.Releases = []types.ReleaseResult{
		ixmock.Release("g1", "Some.Movie.2023.720p.WEBRip.x264-GRP", 10),
		ixmock.Release("g2", "Some.Movie.2023.2160p.BluRay.x265-GRP", 40),
	}
	env.wanted.items = []WantedItem{{
		MediaType: grab.MediaTypeMovie,
		MediaID:   100,
		Title:     "Some Movie",
		Year:      2023,
	}}

	stats, err := env.svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Grabbed != 1 || stats.Failed != 0 {
		t.Fatalf("stats = %+v, want one grab", stats)
	}

	downloads := env.client.Downloads()
	if len(downloads) != 1 {
		t.Fatalf("client downloads = %d, want 1", len(downloads))
	}
	for _, d := range downloads {
		if d.Title != "Some.Movie.2023.2160p.BluRay.x265-GRP" {
			t.Errorf("grabbed %q, want the highest-scored release", d.Title)
		}
	}
}

func TestRun_SkipsWhenNothingFound(t *testing.T) {
	env := newAutosearchEnv(t, nil)
	env.wanted.items = []WantedItem{{
		MediaType: grab.MediaTypeMovie,
		MediaID:   100,
		Title:     "Some Movie",
		Year:      2023,
	}}

	stats, err := env.svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Skipped != 1 || stats.Grabbed != 0 {
		t.Errorf("stats = %+v, want one skip", stats)
	}
}

func TestRun_DecisionRejectionIsSkipNotFailure(t *testing.T) {
	env := newAutosearchEnv(t, alreadyUpgradedLibrary{})
	env.ix.Releases = []types.ReleaseResult{
		ixmock.Release("g1", "Some.Movie.2023.720p.WEBRip.x264-GRP", 10),
	}
	env.wanted.items = []WantedItem{{
		MediaType: grab.MediaTypeMovie,
		MediaID:   100,
		Title:     "Some Movie",
		Year:      2023,
	}}

	stats, err := env.svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Skipped != 1 || stats.Failed != 0 || stats.Grabbed != 0 {
		t.Errorf("stats = %+v, want one skip", stats)
	}
	if len(env.client.Downloads()) != 0 {
		t.Error("rejected release must not reach the download client")
	}
}

type alreadyUpgradedLibrary struct{}

func (alreadyUpgradedLibrary) MovieState(context.Context, int64) (decisioning.EntityState, error) {
	return decisioning.EntityState{
		Files: []decisioning.ExistingFile{{ReleaseTitle: "Some.Movie.2023.2160p.BluRay.x265-GRP", Score: 160}},
	}, nil
}
func (alreadyUpgradedLibrary) SeasonState(context.Context, int64, int) (decisioning.EntityState, error) {
	return decisioning.EntityState{}, nil
}
func (alreadyUpgradedLibrary) EpisodeState(context.Context, int64) (decisioning.EntityState, error) {
	return decisioning.EntityState{}, nil
}
func (alreadyUpgradedLibrary) SeriesState(context.Context, int64) (decisioning.EntityState, error) {
	return decisioning.EntityState{}, nil
}

func TestRun_WantedProviderError(t *testing.T) {
	env := newAutosearchEnv(t, nil)
	env.wanted.err = errors.New("library offline")

	if _, err := env.svc.Run(context.Background()); err == nil {
		t.Fatal("expected error from wanted provider")
	}
}

func TestRun_MaxItemsPerRun(t *testing.T) {
	env := newAutosearchEnv(t, nil)
	env.svc.config.MaxItemsPerRun = 1
	env.wanted.items = []WantedItem{
		{MediaType: grab.MediaTypeMovie, MediaID: 1, Title: "First Movie", Year: 2023},
		{MediaType: grab.MediaTypeMovie, MediaID: 2, Title: "Second Movie", Year: 2023},
	}

	stats, err := env.svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Items != 1 {
		t.Errorf("items = %d, want 1", stats.Items)
	}
}

func TestCriteriaFor(t *testing.T) {
	svc := &Service{config: DefaultConfig()}

	criteria, err := svc.criteriaFor(WantedItem{
		MediaType: grab.MediaTypeEpisode,
		MediaID:   7,
		Title:     "Some Show",
		Season:    2,
		Episode:   5,
		TmdbID:    1399,
	})
	if err != nil {
		t.Fatalf("criteriaFor: %v", err)
	}
	if criteria.Type != types.SearchTypeTV || criteria.Season != 2 || criteria.Episode != 5 {
		t.Errorf("criteria = %+v", criteria)
	}
	if criteria.Source != types.SearchSourceAutomatic {
		t.Errorf("source = %q, want automatic", criteria.Source)
	}

	if _, err := svc.criteriaFor(WantedItem{MediaType: "album", Title: "x"}); err == nil {
		t.Error("unknown media type should error")
	}
}
