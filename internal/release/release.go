// Package release parses release titles into structured quality attributes.
// Parsing is pure string work: no I/O, no state, and it never fails — missing
// attributes come back as their unknown/zero values.
package release

// Resolution is the canonical video resolution of a release.
type Resolution string

const (
	Resolution480p    Resolution = "480p"
	Resolution720p    Resolution = "720p"
	Resolution1080p   Resolution = "1080p"
	Resolution1440p   Resolution = "1440p"
	Resolution2160p   Resolution = "2160p"
	ResolutionUnknown Resolution = "unknown"
)

// Source is the canonical media source of a release.
type Source string

const (
	SourceBluRay   Source = "bluray"
	SourceRemux    Source = "remux"
	SourceWebDL    Source = "webdl"
	SourceWebRip   Source = "webrip"
	SourceHDTV     Source = "hdtv"
	SourceDVD      Source = "dvd"
	SourceCam      Source = "cam"
	SourceTelesync Source = "telesync"
	SourceUnknown  Source = "unknown"
)

// Codec is the canonical video codec of a release.
type Codec string

const (
	CodecH264    Codec = "h264"
	CodecH265    Codec = "h265"
	CodecAV1     Codec = "av1"
	CodecXvid    Codec = "xvid"
	CodecUnknown Codec = "unknown"
)

// HDR is the canonical HDR format of a release.
type HDR string

const (
	HDRNone             HDR = "none"
	HDRGeneric          HDR = "hdr"
	HDR10               HDR = "hdr10"
	HDR10Plus           HDR = "hdr10+"
	HDRDolbyVision      HDR = "dolby-vision"
	HDRDolbyVisionHDR10 HDR = "dolby-vision-hdr10"
	HDRHLG              HDR = "hlg"
)

// Audio is the canonical audio format of a release.
type Audio string

const (
	AudioAAC     Audio = "aac"
	AudioDD      Audio = "dd"
	AudioDDPlus  Audio = "dd+"
	AudioDTS     Audio = "dts"
	AudioDTSHD   Audio = "dts-hd"
	AudioDTSHDMA Audio = "dts-hdma"
	AudioDTSX    Audio = "dts-x"
	AudioTrueHD  Audio = "truehd"
	AudioAtmos   Audio = "atmos"
	AudioFLAC    Audio = "flac"
	AudioUnknown Audio = "unknown"
)

// EpisodeInfo describes the TV episode information recovered from a title.
// A nil EpisodeInfo means the title carries no TV markers at all.
type EpisodeInfo struct {
	Season          int    `json:"season,omitempty"`
	Episodes        []int  `json:"episodes,omitempty"`
	Seasons         []int  `json:"seasons,omitempty"`
	AbsoluteEpisode int    `json:"absoluteEpisode,omitempty"`
	AirDate         string `json:"airDate,omitempty"` // ISO date for daily shows
	IsSeasonPack    bool   `json:"isSeasonPack"`
	IsCompleteSeries bool  `json:"isCompleteSeries"`
	IsDaily         bool   `json:"isDaily"`
}

// ExternalIDs holds provider identifiers recovered from a title or path.
type ExternalIDs struct {
	ImdbID string `json:"imdbId,omitempty"`
	TmdbID int    `json:"tmdbId,omitempty"`
	TvdbID int    `json:"tvdbId,omitempty"`
}

// ParsedRelease is the structured form of a release title.
type ParsedRelease struct {
	CleanTitle   string       `json:"cleanTitle"`
	Year         int          `json:"year,omitempty"`
	Languages    []string     `json:"languages"`
	Resolution   Resolution   `json:"resolution"`
	Source       Source       `json:"source"`
	Codec        Codec        `json:"codec"`
	HDR          HDR          `json:"hdr"`
	Audio        Audio        `json:"audio"`
	ReleaseGroup string       `json:"releaseGroup,omitempty"`
	IsProper     bool         `json:"isProper"`
	IsRepack     bool         `json:"isRepack"`
	Is3D         bool         `json:"is3d"`
	IsRemux      bool         `json:"isRemux"`
	Episode      *EpisodeInfo `json:"episode,omitempty"`
	ExternalIDs  ExternalIDs  `json:"externalIds"`
	Confidence   float64      `json:"confidence"`
}

// HasEpisodeInfo reports whether any TV marker was recovered.
func (p *ParsedRelease) HasEpisodeInfo() bool {
	return p.Episode != nil
}
