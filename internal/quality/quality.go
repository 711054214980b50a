// Package quality defines scoring profiles: per-attribute weights and
// filter thresholds that the enricher applies to parsed releases.
package quality

import (
	"fmt"
	"sync"

	"github.com/gatherr/gatherr/internal/indexer/types"
	"github.com/gatherr/gatherr/internal/release"
)

// Profile weights parsed release attributes and carries the filter
// thresholds applied during enrichment.
type Profile struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// AllowedProtocols restricts which transports score at all. Empty
	// means all protocols are allowed.
	AllowedProtocols []types.Protocol `json:"allowedProtocols,omitempty"`

	// MinScore rejects releases scoring below it when positive.
	MinScore int `json:"minScore,omitempty"`

	// UseEnhancedScoring enables the HDR/audio bonus dimensions.
	UseEnhancedScoring bool `json:"useEnhancedScoring"`

	// MinSeeders rejects torrents with fewer seeders when positive.
	MinSeeders int `json:"minSeeders,omitempty"`

	// Size bounds in bytes. Episode bounds are per episode; movie
	// bounds are absolute. Zero disables the bound.
	MinEpisodeSize int64 `json:"minEpisodeSize,omitempty"`
	MaxEpisodeSize int64 `json:"maxEpisodeSize,omitempty"`
	MinMovieSize   int64 `json:"minMovieSize,omitempty"`
	MaxMovieSize   int64 `json:"maxMovieSize,omitempty"`

	ResolutionWeights map[release.Resolution]int `json:"resolutionWeights"`
	SourceWeights     map[release.Source]int     `json:"sourceWeights"`
	CodecWeights      map[release.Codec]int      `json:"codecWeights"`
	HDRWeights        map[release.HDR]int        `json:"hdrWeights,omitempty"`
	AudioWeights      map[release.Audio]int      `json:"audioWeights,omitempty"`

	ProperBonus     int `json:"properBonus"`
	RepackBonus     int `json:"repackBonus"`
	RemuxBonus      int `json:"remuxBonus"`
	SeasonPackBonus int `json:"seasonPackBonus"`
}

// AllowsProtocol reports whether the profile accepts the protocol.
func (p *Profile) AllowsProtocol(protocol types.Protocol) bool {
	if len(p.AllowedProtocols) == 0 {
		return true
	}
	for _, allowed := range p.AllowedProtocols {
		if allowed == protocol {
			return true
		}
	}
	return false
}

// Score computes the weighted score for a parsed release.
func (p *Profile) Score(parsed *release.ParsedRelease) int {
	if parsed == nil {
		return 0
	}

	score := p.ResolutionWeights[parsed.Resolution]
	score += p.SourceWeights[parsed.Source]
	score += p.CodecWeights[parsed.Codec]

	if p.UseEnhancedScoring {
		score += p.HDRWeights[parsed.HDR]
		score += p.AudioWeights[parsed.Audio]
	}

	if parsed.IsProper {
		score += p.ProperBonus
	}
	if parsed.IsRepack {
		score += p.RepackBonus
	}
	if parsed.IsRemux {
		score += p.RemuxBonus
	}
	if parsed.Episode != nil && parsed.Episode.IsSeasonPack {
		score += p.SeasonPackBonus
	}

	return score
}

// Registry holds the known profiles.
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

// NewRegistry creates a registry seeded with the built-in profiles.
func NewRegistry() *Registry {
	r := &Registry{profiles: make(map[string]*Profile)}
	for _, p := range builtinProfiles() {
		r.profiles[p.ID] = p
	}
	return r
}

// Get returns the profile by ID.
func (r *Registry) Get(id string) (*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[id]
	if !ok {
		return nil, fmt.Errorf("unknown scoring profile %q", id)
	}
	return p, nil
}

// GetOrDefault returns the profile by ID, falling back to the default
// profile when id is empty or unknown.
func (r *Registry) GetOrDefault(id string) *Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.profiles[id]; ok {
		return p
	}
	return r.profiles[DefaultProfileID]
}

// Register adds or replaces a profile.
func (r *Registry) Register(p *Profile) {
	r.mu.Lock()
	r.profiles[p.ID] = p
	r.mu.Unlock()
}

// List returns all registered profiles.
func (r *Registry) List() []*Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, p)
	}
	return out
}

// Built-in profile IDs.
const (
	DefaultProfileID   = "default"
	QualityProfileID   = "quality-first"
	EfficientProfileID = "efficient"
)

const gigabyte = int64(1 << 30)

func builtinProfiles() []*Profile {
	return []*Profile{
		{
			ID:         DefaultProfileID,
			Name:       "Balanced",
			MinSeeders: 1,
			ResolutionWeights: map[release.Resolution]int{
				release.Resolution2160p: 80,
				release.Resolution1440p: 60,
				release.Resolution1080p: 70,
				release.Resolution720p:  40,
				release.Resolution480p:  10,
			},
			SourceWeights: map[release.Source]int{
				release.SourceRemux:     60,
				release.SourceBluRay:    50,
				release.SourceWebDL:     45,
				release.SourceWebRip:    30,
				release.SourceHDTV:      20,
				release.SourceDVD:       10,
				release.SourceTelesync: -50,
				release.SourceCam:      -80,
			},
			CodecWeights: map[release.Codec]int{
				release.CodecH265: 30,
				release.CodecAV1:  25,
				release.CodecH264: 20,
				release.CodecXvid: 0,
			},
			ProperBonus:     10,
			RepackBonus:     8,
			RemuxBonus:      15,
			SeasonPackBonus: 5,
		},
		{
			ID:                 QualityProfileID,
			Name:               "Quality First",
			UseEnhancedScoring: true,
			MinSeeders:         1,
			MinMovieSize:       4 * gigabyte,
			MinEpisodeSize:     500 << 20,
			ResolutionWeights: map[release.Resolution]int{
				release.Resolution2160p: 100,
				release.Resolution1440p: 60,
				release.Resolution1080p: 50,
				release.Resolution720p:  20,
			},
			SourceWeights: map[release.Source]int{
				release.SourceRemux:    80,
				release.SourceBluRay:   70,
				release.SourceWebDL:    50,
				release.SourceWebRip:   25,
				release.SourceHDTV:     10,
				release.SourceTelesync: -100,
				release.SourceCam:      -100,
			},
			CodecWeights: map[release.Codec]int{
				release.CodecH265: 30,
				release.CodecAV1:  25,
				release.CodecH264: 15,
			},
			HDRWeights: map[release.HDR]int{
				release.HDRDolbyVisionHDR10: 40,
				release.HDRDolbyVision:      30,
				release.HDR10Plus:           25,
				release.HDR10:               20,
				release.HDRGeneric:          10,
				release.HDRHLG:              5,
			},
			AudioWeights: map[release.Audio]int{
				release.AudioAtmos:   30,
				release.AudioDTSX:    25,
				release.AudioDTSHDMA: 20,
				release.AudioTrueHD:  20,
				release.AudioDTSHD:   15,
				release.AudioDTS:     10,
				release.AudioDDPlus:  8,
				release.AudioDD:      5,
				release.AudioFLAC:    5,
			},
			ProperBonus:     10,
			RepackBonus:     8,
			RemuxBonus:      25,
			SeasonPackBonus: 5,
		},
		{
			ID:             EfficientProfileID,
			Name:           "Space Efficient",
			MinSeeders:     3,
			MaxMovieSize:   8 * gigabyte,
			MaxEpisodeSize: 2 * gigabyte,
			ResolutionWeights: map[release.Resolution]int{
				release.Resolution1080p: 70,
				release.Resolution720p:  50,
				release.Resolution2160p: 20,
				release.Resolution480p:  10,
			},
			SourceWeights: map[release.Source]int{
				release.SourceWebDL:    50,
				release.SourceWebRip:   40,
				release.SourceBluRay:   35,
				release.SourceHDTV:     25,
				release.SourceRemux:    -20,
				release.SourceTelesync: -80,
				release.SourceCam:      -80,
			},
			CodecWeights: map[release.Codec]int{
				release.CodecAV1:  35,
				release.CodecH265: 30,
				release.CodecH264: 10,
			},
			ProperBonus:     10,
			RepackBonus:     8,
			SeasonPackBonus: 5,
		},
	}
}
