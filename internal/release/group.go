package release

import (
	"regexp"
	"strings"
)

var (
	animeGroupPattern     = regexp.MustCompile(`^\[([A-Za-z0-9][A-Za-z0-9\s_-]{1,19})\]`)
	ytsPattern            = regexp.MustCompile(`(?i)\b(yts(?:[.\s](?:mx|am|lt|ag))?|yify)\b`)
	hyphenTokenPattern    = regexp.MustCompile(`^[A-Za-z0-9]+$`)
	bracketSuffixPattern  = regexp.MustCompile(`[\[({]([A-Za-z0-9][A-Za-z0-9.\s_-]{1,19})[\])}]\s*$`)
	atGroupPattern        = regexp.MustCompile(`@([A-Za-z0-9_-]{2,20})\s*$`)
	tildeGroupPattern     = regexp.MustCompile(`~([A-Za-z0-9_-]{2,20})~`)
	trailingWordPattern   = regexp.MustCompile(`\s([A-Z][A-Za-z0-9]{1,19})$`)
	embeddedGroupPattern  = regexp.MustCompile(`\[[^\]]*-([A-Za-z0-9]{2,20})\]`)
	fileSizePattern       = regexp.MustCompile(`(?i)^\d+(\.\d+)?\s?(gb|mb|gib|mib)$`)
	bareYearPattern       = regexp.MustCompile(`^(19|20)\d{2}$`)
	validGroupPattern     = regexp.MustCompile(`^[A-Za-z0-9]+(?:[\s_-][A-Za-z0-9]+)*$`)
)

// groupBlacklist rejects candidates that are quality vocabulary rather
// than an actual group name.
var groupBlacklist = map[string]bool{
	"720p": true, "1080p": true, "1080i": true, "2160p": true, "480p": true, "4k": true, "uhd": true,
	"x264": true, "x265": true, "h264": true, "h265": true, "hevc": true, "avc": true, "av1": true,
	"xvid": true, "divx": true,
	"bluray": true, "brrip": true, "bdrip": true, "remux": true, "webdl": true, "webrip": true,
	"web": true, "dl": true, "hdtv": true, "pdtv": true, "dvdrip": true, "dvd": true, "cam": true, "hdcam": true,
	"telesync": true, "hdts": true,
	"aac": true, "ac3": true, "dts": true, "truehd": true, "atmos": true, "flac": true, "eac3": true,
	"ddp": true, "dd": true,
	"hdr": true, "hdr10": true, "dv": true, "dovi": true, "hlg": true, "sdr": true,
	"proper": true, "repack": true, "rerip": true, "internal": true, "limited": true,
	"extended": true, "unrated": true, "multi": true, "dubbed": true, "subbed": true,
	"complete": true, "5": true, "7": true, "1": true, "0": true,
	"eztv": true, "ettv": true, "rartv": true, "rarbg": true, "tgx": true,
}

// ExtractReleaseGroup recovers the release group from a title, trying the
// common placement conventions in order. Returns "" when no plausible
// candidate survives the blacklist.
func ExtractReleaseGroup(title string) string {
	title = strings.TrimSpace(extensionPattern.ReplaceAllString(title, ""))
	title = indexerSuffixPattern.ReplaceAllString(title, "")
	if title == "" {
		return ""
	}

	// Anime fansub convention: [Group] at the very start.
	if m := animeGroupPattern.FindStringSubmatch(title); m != nil {
		if g := validateGroup(m[1]); g != "" {
			return g
		}
	}

	// YTS family normalizes to the canonical string.
	if ytsPattern.MatchString(title) {
		return "YTS"
	}

	// The remaining conventions only make sense on titles that carry
	// quality metadata; a bare title like "Spider-Man" has no group.
	if !hasQualityMarkers(title) {
		return ""
	}

	// Hyphen-suffix group, supporting compounds like D-Z0N3.
	if g := hyphenSuffixGroup(title); g != "" {
		return g
	}

	// Bracketed suffix.
	if m := bracketSuffixPattern.FindStringSubmatch(title); m != nil {
		candidate := strings.TrimSuffix(m[1], ".")
		if g := validateGroup(candidate); g != "" {
			return g
		}
	}

	if m := atGroupPattern.FindStringSubmatch(title); m != nil {
		if g := validateGroup(m[1]); g != "" {
			return g
		}
	}
	if m := tildeGroupPattern.FindStringSubmatch(title); m != nil {
		if g := validateGroup(m[1]); g != "" {
			return g
		}
	}

	// Trailing capitalized word after a space.
	if m := trailingWordPattern.FindStringSubmatch(title); m != nil {
		if g := validateGroup(m[1]); g != "" {
			return g
		}
	}

	// Group embedded in a quality bracket: [1080p-GROUP].
	if m := embeddedGroupPattern.FindStringSubmatch(title); m != nil {
		if g := validateGroup(m[1]); g != "" {
			return g
		}
	}

	// Last resort: final dash-separated token.
	if idx := strings.LastIndex(title, "-"); idx >= 0 && idx < len(title)-1 {
		if g := validateGroup(strings.TrimSpace(title[idx+1:])); g != "" {
			return g
		}
	}

	return ""
}

// hyphenSuffixGroup extracts a trailing "-GROUP" tag. Compound names like
// D-Z0N3 span the last two dash segments; the compound is preferred only
// when its leading segment is not quality vocabulary (so WEB-DL-GRP still
// yields GRP).
func hyphenSuffixGroup(title string) string {
	title = strings.TrimRight(title, " ])}")
	last := strings.LastIndex(title, "-")
	if last < 0 || last == len(title)-1 {
		return ""
	}
	tail := strings.TrimSpace(title[last+1:])
	if !hyphenTokenPattern.MatchString(tail) {
		return ""
	}
	if prev := strings.LastIndex(title[:last], "-"); prev >= 0 {
		head := strings.TrimSpace(title[prev+1 : last])
		if hyphenTokenPattern.MatchString(head) && !groupBlacklist[strings.ToLower(head)] && !isQualityToken(strings.ToLower(head)) {
			if g := validateGroup(head + "-" + tail); g != "" {
				return g
			}
		}
	}
	return validateGroup(tail)
}

func hasQualityMarkers(title string) bool {
	normalized := separatorPattern.ReplaceAllString(title, " ")
	for _, patterns := range [][]tokenPattern{resolutionPatterns, sourcePatterns, codecPatterns} {
		for _, p := range patterns {
			if p.pattern.MatchString(normalized) {
				return true
			}
		}
	}
	return standardEpisodePattern.MatchString(normalized)
}

func validateGroup(candidate string) string {
	candidate = strings.TrimSpace(candidate)
	if len(candidate) < 2 || len(candidate) > 20 {
		return ""
	}
	if !validGroupPattern.MatchString(candidate) {
		return ""
	}
	lower := strings.ToLower(candidate)
	if groupBlacklist[lower] {
		return ""
	}
	if isQualityToken(lower) {
		return ""
	}
	if bareYearPattern.MatchString(candidate) || fileSizePattern.MatchString(candidate) {
		return ""
	}
	return candidate
}

// isQualityToken catches candidates the static blacklist misses, such as
// resolution or codec aliases with separators.
func isQualityToken(lower string) bool {
	probe := " " + strings.ReplaceAll(lower, "-", " ") + " "
	for _, patterns := range [][]tokenPattern{resolutionPatterns, sourcePatterns, codecPatterns, audioPatterns} {
		for _, p := range patterns {
			if loc := p.pattern.FindStringIndex(probe); loc != nil && loc[1]-loc[0] >= len(lower) {
				return true
			}
		}
	}
	return false
}
