package quality

import (
	"testing"

	"github.com/gatherr/gatherr/internal/indexer/types"
	"github.com/gatherr/gatherr/internal/release"
)

func TestRegistry_Builtins(t *testing.T) {
	r := NewRegistry()

	for _, id := range []string{DefaultProfileID, QualityProfileID, EfficientProfileID} {
		if _, err := r.Get(id); err != nil {
			t.Errorf("Get(%q) failed: %v", id, err)
		}
	}
	if _, err := r.Get("nope"); err == nil {
		t.Error("Get of unknown profile did not fail")
	}
	if p := r.GetOrDefault(""); p.ID != DefaultProfileID {
		t.Errorf("GetOrDefault(\"\") = %q, want default", p.ID)
	}
	if p := r.GetOrDefault(EfficientProfileID); p.ID != EfficientProfileID {
		t.Errorf("GetOrDefault = %q, want efficient", p.ID)
	}
}

func TestProfile_Score(t *testing.T) {
	r := NewRegistry()
	profile := r.GetOrDefault(DefaultProfileID)

	tests := []struct {
		name   string
		higher string
		lower  string
	}{
		{"resolution ordering", "Movie.2024.2160p.WEB-DL.x265-GRP", "Movie.2024.720p.WEB-DL.x265-GRP"},
		{"source ordering", "Movie.2024.1080p.BluRay.x264-GRP", "Movie.2024.1080p.HDTV.x264-GRP"},
		{"cam penalized", "Movie.2024.1080p.WEBRip.x264-GRP", "Movie.2024.CAM.x264-GRP"},
		{"proper bonus", "Movie.2024.1080p.WEB-DL.PROPER.x264-GRP", "Movie.2024.1080p.WEB-DL.x264-GRP"},
		{"remux bonus", "Movie.2024.1080p.BluRay.REMUX.AVC-GRP", "Movie.2024.1080p.BluRay.x264-GRP"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hi := profile.Score(release.ParseRelease(tt.higher))
			lo := profile.Score(release.ParseRelease(tt.lower))
			if hi <= lo {
				t.Errorf("score(%q) = %d, score(%q) = %d; want first higher", tt.higher, hi, tt.lower, lo)
			}
		})
	}
}

func TestProfile_EnhancedScoringAddsHDRAndAudio(t *testing.T) {
	r := NewRegistry()
	enhanced := r.GetOrDefault(QualityProfileID)

	hdr := release.ParseRelease("Movie.2024.2160p.WEB-DL.DV.HDR10.Atmos.x265-GRP")
	sdr := release.ParseRelease("Movie.2024.2160p.WEB-DL.x265-GRP")
	if enhanced.Score(hdr) <= enhanced.Score(sdr) {
		t.Error("enhanced profile did not reward HDR/audio attributes")
	}

	// The non-enhanced default profile ignores HDR entirely.
	plain := r.GetOrDefault(DefaultProfileID)
	if plain.Score(hdr) != plain.Score(sdr) {
		t.Error("plain profile scored HDR attributes")
	}
}

func TestProfile_AllowsProtocol(t *testing.T) {
	open := &Profile{}
	if !open.AllowsProtocol(types.ProtocolTorrent) || !open.AllowsProtocol(types.ProtocolUsenet) {
		t.Error("empty AllowedProtocols should allow everything")
	}

	torrentOnly := &Profile{AllowedProtocols: []types.Protocol{types.ProtocolTorrent}}
	if !torrentOnly.AllowsProtocol(types.ProtocolTorrent) {
		t.Error("torrent should be allowed")
	}
	if torrentOnly.AllowsProtocol(types.ProtocolUsenet) {
		t.Error("usenet should not be allowed")
	}
}

func TestProfile_ScoreNilParse(t *testing.T) {
	p := NewRegistry().GetOrDefault(DefaultProfileID)
	if got := p.Score(nil); got != 0 {
		t.Errorf("Score(nil) = %d, want 0", got)
	}
}

func TestRegistry_RegisterCustom(t *testing.T) {
	r := NewRegistry()
	r.Register(&Profile{ID: "anime", Name: "Anime", MinSeeders: 1})

	p, err := r.Get("anime")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if p.Name != "Anime" {
		t.Errorf("Name = %q, want Anime", p.Name)
	}
	if len(r.List()) != 4 {
		t.Errorf("List returned %d profiles, want 4", len(r.List()))
	}
}
