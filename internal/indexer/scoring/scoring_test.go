package scoring

import (
	"testing"

	"github.com/gatherr/gatherr/internal/indexer/types"
	"github.com/gatherr/gatherr/internal/quality"
	"github.com/gatherr/gatherr/internal/testutil"
)

func newEnricher() *Enricher {
	return NewEnricher(quality.NewRegistry(), testutil.NopLogger())
}

func view(title string, protocol types.Protocol, seeders int, size int64) types.ReleaseView {
	return types.NewReleaseView(types.ReleaseResult{
		GUID:     title,
		Title:    title,
		Protocol: protocol,
		Seeders:  seeders,
		Size:     size,
	})
}

func TestEnrich_SortsBestFirst(t *testing.T) {
	e := newEnricher()
	views := []types.ReleaseView{
		view("Movie.2024.720p.HDTV.x264-GRP", types.ProtocolTorrent, 10, 2<<30),
		view("Movie.2024.2160p.BluRay.x265-GRP", types.ProtocolTorrent, 10, 20<<30),
		view("Movie.2024.1080p.WEB-DL.x264-GRP", types.ProtocolTorrent, 10, 8<<30),
	}

	res := e.Enrich(views, Options{MediaType: MediaTypeMovie})
	if len(res.Releases) != 3 {
		t.Fatalf("got %d releases, want 3", len(res.Releases))
	}
	for i := 1; i < len(res.Releases); i++ {
		if res.Releases[i-1].Score < res.Releases[i].Score {
			t.Errorf("releases out of order at %d: %d < %d", i, res.Releases[i-1].Score, res.Releases[i].Score)
		}
	}
	if res.Releases[0].Title != "Movie.2024.2160p.BluRay.x265-GRP" {
		t.Errorf("best = %q", res.Releases[0].Title)
	}
	if res.ScoringProfile != quality.DefaultProfileID {
		t.Errorf("ScoringProfile = %q", res.ScoringProfile)
	}
}

func TestEnrich_RejectsDeadTorrent(t *testing.T) {
	e := newEnricher()
	views := []types.ReleaseView{
		view("Movie.2024.1080p.WEB-DL.x264-GRP", types.ProtocolTorrent, 0, 8<<30),
		view("Movie.2024.1080p.WEB-DL.x264-OTH", types.ProtocolTorrent, 50, 8<<30),
	}

	res := e.Enrich(views, Options{MediaType: MediaTypeMovie})
	if res.RejectedCount != 1 {
		t.Fatalf("RejectedCount = %d, want 1", res.RejectedCount)
	}
	// Rejected releases sort last.
	last := res.Releases[len(res.Releases)-1]
	if !last.Rejected {
		t.Fatal("dead torrent not rejected")
	}
	if last.RejectionReasons[0] != RejectDeadTorrent {
		t.Errorf("reason = %q, want %q", last.RejectionReasons[0], RejectDeadTorrent)
	}
}

func TestEnrich_MinSeedersNotAppliedToUsenet(t *testing.T) {
	e := newEnricher()
	views := []types.ReleaseView{
		view("Movie.2024.1080p.WEB-DL.x264-GRP", types.ProtocolUsenet, 0, 8<<30),
	}

	res := e.Enrich(views, Options{MediaType: MediaTypeMovie})
	if res.RejectedCount != 0 {
		t.Errorf("usenet release rejected for seeders: %v", res.Releases[0].RejectionReasons)
	}
}

func TestEnrich_FilterRejectedOmitsButCounts(t *testing.T) {
	e := newEnricher()
	views := []types.ReleaseView{
		view("Movie.2024.1080p.WEB-DL.x264-GRP", types.ProtocolTorrent, 0, 8<<30),
		view("Movie.2024.1080p.WEB-DL.x264-OTH", types.ProtocolTorrent, 50, 8<<30),
	}

	res := e.Enrich(views, Options{MediaType: MediaTypeMovie, FilterRejected: true})
	if len(res.Releases) != 1 {
		t.Fatalf("got %d releases, want 1", len(res.Releases))
	}
	if res.RejectedCount != 1 {
		t.Errorf("RejectedCount = %d, want 1", res.RejectedCount)
	}
}

func TestEnrich_MovieSizeBounds(t *testing.T) {
	e := newEnricher()
	views := []types.ReleaseView{
		view("Movie.2024.2160p.WEB-DL.x265-SML", types.ProtocolTorrent, 50, 1<<30),
		view("Movie.2024.2160p.WEB-DL.x265-OK", types.ProtocolTorrent, 50, 20<<30),
	}

	res := e.Enrich(views, Options{
		ScoringProfileID: quality.QualityProfileID,
		MediaType:        MediaTypeMovie,
	})

	var small, ok *types.EnhancedReleaseResult
	for i := range res.Releases {
		switch res.Releases[i].GUID {
		case "Movie.2024.2160p.WEB-DL.x265-SML":
			small = &res.Releases[i]
		case "Movie.2024.2160p.WEB-DL.x265-OK":
			ok = &res.Releases[i]
		}
	}
	if small == nil || !small.Rejected {
		t.Fatal("undersized movie not rejected")
	}
	if small.RejectionReasons[0] != RejectSizeTooSmall {
		t.Errorf("reason = %q", small.RejectionReasons[0])
	}
	if ok.Rejected {
		t.Errorf("normal-sized movie rejected: %v", ok.RejectionReasons)
	}
}

func TestEnrich_SeasonPackSizeScalesWithEpisodeCount(t *testing.T) {
	e := newEnricher()
	// 10 GiB for a 10-episode season is 1 GiB per episode: fine.
	pack := view("Show.S01.1080p.WEB-DL.x265-GRP", types.ProtocolTorrent, 50, 10<<30)

	res := e.Enrich([]types.ReleaseView{pack}, Options{
		ScoringProfileID:    quality.QualityProfileID,
		MediaType:           MediaTypeTV,
		SeasonEpisodeCounts: map[int]int{1: 10},
	})
	if res.Releases[0].Rejected {
		t.Errorf("season pack rejected: %v", res.Releases[0].RejectionReasons)
	}

	// The same 10 GiB claimed as a 40-episode season is under the
	// per-episode floor.
	res = e.Enrich([]types.ReleaseView{pack}, Options{
		ScoringProfileID:    quality.QualityProfileID,
		MediaType:           MediaTypeTV,
		SeasonEpisodeCounts: map[int]int{1: 40},
	})
	if !res.Releases[0].Rejected {
		t.Error("undersized season pack not rejected")
	}
}

func TestEnrich_SizeBoundsSkippedWithoutEpisodeCounts(t *testing.T) {
	e := newEnricher()
	pack := view("Show.S01.1080p.WEB-DL.x265-GRP", types.ProtocolTorrent, 50, 1<<30)

	res := e.Enrich([]types.ReleaseView{pack}, Options{
		ScoringProfileID: quality.QualityProfileID,
		MediaType:        MediaTypeTV,
	})
	if res.Releases[0].Rejected {
		t.Errorf("release rejected despite unknown episode count: %v", res.Releases[0].RejectionReasons)
	}
}

func TestEnrich_MinScore(t *testing.T) {
	e := newEnricher()
	views := []types.ReleaseView{
		view("Movie.2024.CAM.x264-GRP", types.ProtocolTorrent, 50, 2<<30),
		view("Movie.2024.1080p.BluRay.x264-GRP", types.ProtocolTorrent, 50, 8<<30),
	}

	res := e.Enrich(views, Options{MediaType: MediaTypeMovie, MinScore: 50})
	cam := res.Releases[len(res.Releases)-1]
	if !cam.Rejected {
		t.Fatal("cam release not rejected by min score")
	}
	found := false
	for _, r := range cam.RejectionReasons {
		if r == RejectBelowMinScore {
			found = true
		}
	}
	if !found {
		t.Errorf("reasons = %v, want %q", cam.RejectionReasons, RejectBelowMinScore)
	}
}

func TestEnrich_ProtocolDisallowed(t *testing.T) {
	registry := quality.NewRegistry()
	registry.Register(&quality.Profile{
		ID:               "torrent-only",
		Name:             "Torrent Only",
		AllowedProtocols: []types.Protocol{types.ProtocolTorrent},
	})
	e := NewEnricher(registry, testutil.NopLogger())

	views := []types.ReleaseView{
		view("Movie.2024.1080p.WEB-DL.x264-GRP", types.ProtocolUsenet, 0, 8<<30),
	}
	res := e.Enrich(views, Options{ScoringProfileID: "torrent-only", MediaType: MediaTypeMovie})
	if !res.Releases[0].Rejected || res.Releases[0].RejectionReasons[0] != RejectProtocolDisallowed {
		t.Errorf("usenet release not rejected by protocol rule: %+v", res.Releases[0])
	}
}
