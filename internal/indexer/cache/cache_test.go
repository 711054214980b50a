package cache

import (
	"testing"
	"time"

	"github.com/gatherr/gatherr/internal/indexer/types"
	"github.com/gatherr/gatherr/internal/testutil"
)

func movieCriteria() types.SearchCriteria {
	return types.SearchCriteria{
		Type:   types.SearchTypeMovie,
		Query:  "Dune Part Two",
		Year:   2024,
		TmdbID: 693134,
	}
}

func TestFingerprint_Stable(t *testing.T) {
	a := Fingerprint(movieCriteria())
	b := Fingerprint(movieCriteria())
	if a != b {
		t.Errorf("same criteria fingerprinted differently: %s vs %s", a, b)
	}
}

func TestFingerprint_IgnoresSourceAndLimit(t *testing.T) {
	c1 := movieCriteria()
	c1.Source = types.SearchSourceInteractive
	c1.Limit = 50
	c2 := movieCriteria()
	c2.Source = types.SearchSourceAutomatic
	c2.Limit = 100

	if Fingerprint(c1) != Fingerprint(c2) {
		t.Error("source/limit changed the fingerprint")
	}
}

func TestFingerprint_Distinguishes(t *testing.T) {
	base := movieCriteria()
	variants := []types.SearchCriteria{
		{Type: types.SearchTypeMovie, Query: "Dune Part Two", Year: 2021, TmdbID: 693134},
		{Type: types.SearchTypeMovie, Query: "Dune", Year: 2024, TmdbID: 693134},
		{Type: types.SearchTypeTV, Query: "Dune Part Two", Year: 2024, TmdbID: 693134},
		{Type: types.SearchTypeMovie, Query: "Dune Part Two", Year: 2024, TmdbID: 1},
	}
	for i, v := range variants {
		if Fingerprint(base) == Fingerprint(v) {
			t.Errorf("variant %d collided with base", i)
		}
	}
}

func TestFingerprint_IndexerOrderIndependent(t *testing.T) {
	c1 := movieCriteria()
	c1.IndexerIDs = []int64{3, 1, 2}
	c2 := movieCriteria()
	c2.IndexerIDs = []int64{1, 2, 3}
	if Fingerprint(c1) != Fingerprint(c2) {
		t.Error("indexer ID order changed the fingerprint")
	}
}

func TestReleaseCache_GetSet(t *testing.T) {
	c := NewReleaseCache(5*time.Minute, testutil.NopLogger())
	criteria := movieCriteria()

	if _, ok := c.Get(criteria); ok {
		t.Fatal("unexpected hit on empty cache")
	}

	releases := []types.ReleaseResult{
		{GUID: "a", Title: "Dune.Part.Two.2024.2160p.WEB-DL.x265-GRP", IndexerID: 1},
		{GUID: "b", Title: "Dune.Part.Two.2024.1080p.BluRay.x264-GRP", IndexerID: 2},
	}
	c.Set(criteria, releases)

	got, ok := c.Get(criteria)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if len(got) != 2 {
		t.Fatalf("got %d releases, want 2", len(got))
	}

	// Mutating the returned slice must not affect the cached copy.
	got[0].Title = "mutated"
	again, _ := c.Get(criteria)
	if again[0].Title == "mutated" {
		t.Error("cache returned a shared slice")
	}
}

func TestReleaseCache_TTLExpiry(t *testing.T) {
	c := NewReleaseCache(5*time.Minute, testutil.NopLogger())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.SetClock(func() time.Time { return now })

	criteria := movieCriteria()
	c.Set(criteria, []types.ReleaseResult{{GUID: "a"}})

	if _, ok := c.Get(criteria); !ok {
		t.Fatal("expected hit before expiry")
	}

	now = now.Add(5*time.Minute + time.Second)
	if _, ok := c.Get(criteria); ok {
		t.Error("expected miss after TTL")
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d after expiry, want 0", c.Len())
	}
}

func TestReleaseCache_Invalidate(t *testing.T) {
	c := NewReleaseCache(5*time.Minute, testutil.NopLogger())
	criteria := movieCriteria()
	c.Set(criteria, []types.ReleaseResult{{GUID: "a"}})

	c.Invalidate(criteria)
	if _, ok := c.Get(criteria); ok {
		t.Error("expected miss after invalidation")
	}
}
