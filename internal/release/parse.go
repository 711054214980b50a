package release

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

var (
	extensionPattern  = regexp.MustCompile(`(?i)\.(mkv|mp4|avi|m4v|ts|wmv|mov|mpg|mpeg|webm)$`)
	sitePrefixPattern = regexp.MustCompile(`(?i)^(?:www[\s.])?[a-z0-9-]+[\s.](?:com|net|org|info|me|tv|cc|to|ws|li|vip|xyz)\s*-+\s*`)
	siteTagPattern    = regexp.MustCompile(`(?i)^\[\s*(?:www\.)?[a-z0-9-]+\.[a-z]{2,}\s*\]\s*`)
	separatorPattern      = regexp.MustCompile(`[._]`)
	leadingBracketPattern = regexp.MustCompile(`^\[[^\]]*\]\s*`)
	whitespacePattern = regexp.MustCompile(`\s+`)

	// Indexer suffixes are stripped before any attribute matching so they
	// never leak into the release group.
	indexerSuffixPattern = regexp.MustCompile(`(?i)\s*(?:\[(?:eztv|ettv|rartv|rarbg|tgx)\]|-\s*(?:eztv|ettv|rartv))\s*$`)
)

type tokenMatch struct {
	value string
	start int
	end   int
}

type tokenPattern struct {
	value   string
	pattern *regexp.Regexp
}

var resolutionPatterns = []tokenPattern{
	{string(Resolution2160p), regexp.MustCompile(`(?i)\b(2160p|4k|uhd)\b`)},
	{string(Resolution1440p), regexp.MustCompile(`(?i)\b1440p\b`)},
	{string(Resolution1080p), regexp.MustCompile(`(?i)\b(1080[pi]|fhd|fullhd)\b`)},
	{string(Resolution720p), regexp.MustCompile(`(?i)\b720[pi]\b`)},
	{string(Resolution480p), regexp.MustCompile(`(?i)\b(480[pi]|576[pi])\b`)},
}

// Order matters: webrip before webdl (shared "web" token), remux before
// bluray so "BluRay REMUX" resolves to remux.
var sourcePatterns = []tokenPattern{
	{string(SourceRemux), regexp.MustCompile(`(?i)\b(remux|bdremux)\b`)},
	{string(SourceWebRip), regexp.MustCompile(`(?i)\bweb[\s-]?rip\b`)},
	{string(SourceWebDL), regexp.MustCompile(`(?i)\b(web[\s-]?dl|web)\b`)},
	{string(SourceBluRay), regexp.MustCompile(`(?i)\b(blu[\s-]?ray|bd[\s-]?rip|br[\s-]?rip|bd(?:25|50)?)\b`)},
	{string(SourceHDTV), regexp.MustCompile(`(?i)\b(hdtv|pdtv|sdtv|tvrip|dsr)\b`)},
	{string(SourceDVD), regexp.MustCompile(`(?i)\b(dvd(?:rip)?|dvd-?r|ntsc|pal)\b`)},
	{string(SourceTelesync), regexp.MustCompile(`(?i)\b(hd-?ts|telesync|telecine|hd-?tc)\b`)},
	{string(SourceCam), regexp.MustCompile(`(?i)\b(hd-?cam|cam(?:rip)?)\b`)},
}

var codecPatterns = []tokenPattern{
	{string(CodecH265), regexp.MustCompile(`(?i)\b(x\s?265|h\s?265|hevc)\b`)},
	{string(CodecH264), regexp.MustCompile(`(?i)\b(x\s?264|h\s?264|avc)\b`)},
	{string(CodecAV1), regexp.MustCompile(`(?i)\bav1\b`)},
	{string(CodecXvid), regexp.MustCompile(`(?i)\b(xvid|divx)\b`)},
}

// Most specific first: dts-hdma before dts-hd before dts, atmos before
// truehd, dd+ before dd.
var audioPatterns = []tokenPattern{
	{string(AudioAtmos), regexp.MustCompile(`(?i)\batmos\b`)},
	{string(AudioDTSX), regexp.MustCompile(`(?i)\bdts[\s-]?x\b`)},
	{string(AudioDTSHDMA), regexp.MustCompile(`(?i)\bdts[\s-]?hd[\s-]?ma\b`)},
	{string(AudioDTSHD), regexp.MustCompile(`(?i)\bdts[\s-]?hd\b`)},
	{string(AudioTrueHD), regexp.MustCompile(`(?i)\btrue[\s-]?hd\b`)},
	{string(AudioDTS), regexp.MustCompile(`(?i)\bdts\b`)},
	{string(AudioDDPlus), regexp.MustCompile(`(?i)(dd\+|\bddp|\b(eac3|e-?ac-?3)\b)`)},
	{string(AudioDD), regexp.MustCompile(`(?i)\b(dd|ac3|dolby\s?digital)\b`)},
	{string(AudioFLAC), regexp.MustCompile(`(?i)\bflac\b`)},
	{string(AudioAAC), regexp.MustCompile(`(?i)\baac(?:2?\s?0)?\b`)},
}

var (
	dolbyVisionPattern = regexp.MustCompile(`(?i)\b(dolby[\s.]?vision|dovi|dv)\b`)
	hdr10PlusPattern   = regexp.MustCompile(`(?i)(hdr10\+|\bhdr10plus\b)`)
	hdr10Pattern       = regexp.MustCompile(`(?i)\bhdr10\b`)
	hdrPattern         = regexp.MustCompile(`(?i)\bhdr\b`)
	hlgPattern         = regexp.MustCompile(`(?i)\bhlg\b`)

	properPattern = regexp.MustCompile(`(?i)\bproper\b`)
	repackPattern = regexp.MustCompile(`(?i)\b(repack|rerip)\b`)
	threeDPattern = regexp.MustCompile(`(?i)\b3d\b`)

	yearPattern = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
)

var languagePatterns = []tokenPattern{
	{"multi", regexp.MustCompile(`(?i)\bmulti\b`)},
	{"de", regexp.MustCompile(`(?i)\b(german|deutsch)\b`)},
	{"fr", regexp.MustCompile(`(?i)\b(french|vff|vfq|vostfr|truefrench)\b`)},
	{"es", regexp.MustCompile(`(?i)\b(spanish|castellano|latino)\b`)},
	{"it", regexp.MustCompile(`(?i)\b(italian|ita)\b`)},
	{"ru", regexp.MustCompile(`(?i)\brussian\b`)},
	{"ja", regexp.MustCompile(`(?i)\b(japanese|jpn)\b`)},
	{"ko", regexp.MustCompile(`(?i)\bkorean\b`)},
	{"hi", regexp.MustCompile(`(?i)\bhindi\b`)},
	{"nl", regexp.MustCompile(`(?i)\b(dutch|flemish)\b`)},
	{"pl", regexp.MustCompile(`(?i)\bpolish\b`)},
	{"sv", regexp.MustCompile(`(?i)\b(swedish|nordic)\b`)},
	{"pt", regexp.MustCompile(`(?i)\bportuguese\b`)},
}

// ParseRelease parses a release title into its structured attributes.
// It is idempotent and never fails; unrecognized attributes default to
// their unknown values.
func ParseRelease(title string) *ParsedRelease {
	parsed := &ParsedRelease{
		Resolution: ResolutionUnknown,
		Source:     SourceUnknown,
		Codec:      CodecUnknown,
		HDR:        HDRNone,
		Audio:      AudioUnknown,
	}
	if strings.TrimSpace(title) == "" {
		parsed.Languages = []string{"en"}
		return parsed
	}

	original := strings.TrimSpace(title)
	original = extensionPattern.ReplaceAllString(original, "")
	original = indexerSuffixPattern.ReplaceAllString(original, "")
	original = siteTagPattern.ReplaceAllString(original, "")

	normalized := leadingBracketPattern.ReplaceAllString(original, "")
	normalized = separatorPattern.ReplaceAllString(normalized, " ")
	normalized = sitePrefixPattern.ReplaceAllString(normalized, "")
	normalized = whitespacePattern.ReplaceAllString(normalized, " ")
	normalized = strings.TrimSpace(normalized)

	// cutoff tracks the earliest metadata token so the clean title can be
	// cut in front of it.
	cutoff := len(normalized)
	note := func(m *tokenMatch) {
		if m != nil && m.start > 0 && m.start < cutoff {
			cutoff = m.start
		}
	}

	if m := firstToken(resolutionPatterns, normalized); m != nil {
		parsed.Resolution = Resolution(m.value)
		note(m)
	}
	if m := firstToken(sourcePatterns, normalized); m != nil {
		parsed.Source = Source(m.value)
		note(m)
	}
	parsed.IsRemux = parsed.Source == SourceRemux
	if m := firstToken(codecPatterns, normalized); m != nil {
		parsed.Codec = Codec(m.value)
		note(m)
	}
	if m := firstToken(audioPatterns, normalized); m != nil {
		parsed.Audio = Audio(m.value)
		note(m)
	}
	parsed.HDR = parseHDR(normalized, note)

	if loc := properPattern.FindStringIndex(normalized); loc != nil {
		parsed.IsProper = true
		note(&tokenMatch{start: loc[0], end: loc[1]})
	}
	if loc := repackPattern.FindStringIndex(normalized); loc != nil {
		parsed.IsRepack = true
		note(&tokenMatch{start: loc[0], end: loc[1]})
	}
	if loc := threeDPattern.FindStringIndex(normalized); loc != nil {
		parsed.Is3D = true
		note(&tokenMatch{start: loc[0], end: loc[1]})
	}

	parsed.Episode = parseEpisodeInfo(normalized, note)

	if year, loc := parseYear(normalized, parsed.Episode); year > 0 {
		parsed.Year = year
		note(&tokenMatch{start: loc[0], end: loc[1]})
	}

	parsed.Languages = parseLanguages(normalized)
	parsed.ReleaseGroup = ExtractReleaseGroup(original)
	parsed.ExternalIDs = ExtractExternalIDs(original)
	parsed.CleanTitle = cleanTitle(normalized, cutoff)
	parsed.Confidence = confidence(parsed)

	return parsed
}

func firstToken(patterns []tokenPattern, s string) *tokenMatch {
	for _, p := range patterns {
		if loc := p.pattern.FindStringIndex(s); loc != nil {
			return &tokenMatch{value: p.value, start: loc[0], end: loc[1]}
		}
	}
	return nil
}

// parseHDR applies the format precedence: Dolby Vision combined with a
// base HDR10/HDR layer collapses to dolby-vision-hdr10, then
// hdr10+ > hdr10 > hdr > hlg.
func parseHDR(s string, note func(*tokenMatch)) HDR {
	dvLoc := dolbyVisionPattern.FindStringIndex(s)
	hdr10PlusLoc := hdr10PlusPattern.FindStringIndex(s)
	hdr10Loc := hdr10Pattern.FindStringIndex(s)
	hdrLoc := hdrPattern.FindStringIndex(s)
	hlgLoc := hlgPattern.FindStringIndex(s)

	for _, loc := range [][]int{dvLoc, hdr10PlusLoc, hdr10Loc, hdrLoc, hlgLoc} {
		if loc != nil {
			note(&tokenMatch{start: loc[0], end: loc[1]})
		}
	}

	switch {
	case dvLoc != nil && (hdr10Loc != nil || hdrLoc != nil):
		return HDRDolbyVisionHDR10
	case dvLoc != nil:
		return HDRDolbyVision
	case hdr10PlusLoc != nil:
		return HDR10Plus
	case hdr10Loc != nil:
		return HDR10
	case hdrLoc != nil:
		return HDRGeneric
	case hlgLoc != nil:
		return HDRHLG
	}
	return HDRNone
}

// parseYear picks the first 4-digit token in [1900, now+2]. Titles that
// open with a 4-digit number ("2001") keep it as title text when a later
// candidate exists.
func parseYear(s string, episode *EpisodeInfo) (int, []int) {
	maxYear := time.Now().Year() + 2
	matches := yearPattern.FindAllStringIndex(s, -1)
	var candidates [][]int
	for _, loc := range matches {
		year, _ := strconv.Atoi(s[loc[0]:loc[1]])
		if year < 1900 || year > maxYear {
			continue
		}
		// A daily-show air date is not a release year.
		if episode != nil && episode.IsDaily {
			continue
		}
		candidates = append(candidates, loc)
	}
	if len(candidates) == 0 {
		return 0, nil
	}
	pick := candidates[0]
	if pick[0] == 0 && len(candidates) > 1 {
		pick = candidates[1]
	}
	year, _ := strconv.Atoi(s[pick[0]:pick[1]])
	return year, pick
}

func parseLanguages(s string) []string {
	var langs []string
	seen := make(map[string]bool)
	for _, p := range languagePatterns {
		if p.pattern.MatchString(s) && !seen[p.value] {
			langs = append(langs, p.value)
			seen[p.value] = true
		}
	}
	if len(langs) == 0 {
		return []string{"en"}
	}
	return langs
}

func cleanTitle(normalized string, cutoff int) string {
	s := normalized
	if cutoff > 0 && cutoff <= len(normalized) {
		s = normalized[:cutoff]
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case '(', ')', '[', ']', '{', '}':
			return ' '
		}
		return r
	}, s)
	s = strings.TrimRight(strings.TrimSpace(s), "-: ")
	s = whitespacePattern.ReplaceAllString(s, " ")
	return titleCase(strings.TrimSpace(s))
}

func titleCase(s string) string {
	words := strings.Split(s, " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// confidence is the weighted fraction of independently recovered facts.
// Adding canonical tokens to a title can only raise it. Weights are
// summed as integer percentages so a full recovery is exactly 1.
func confidence(p *ParsedRelease) float64 {
	var weight int
	if p.Year > 0 {
		weight += 20
	}
	if p.Resolution != ResolutionUnknown {
		weight += 20
	}
	if p.Source != SourceUnknown {
		weight += 20
	}
	if p.Codec != CodecUnknown {
		weight += 15
	}
	if p.ReleaseGroup != "" {
		weight += 15
	}
	if p.Episode != nil {
		weight += 10
	}
	return float64(weight) / 100
}
