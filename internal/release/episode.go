package release

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	standardEpisodePattern = regexp.MustCompile(`(?i)\bS(\d{1,2})\s?E(\d{1,3})`)
	extraEpisodePattern    = regexp.MustCompile(`(?i)^(\s*-\s*E?|\s?E)(\d{1,3})`)
	multiSeasonPattern     = regexp.MustCompile(`(?i)\b(?:S(\d{1,2})\s*-\s*S(\d{1,2})|Seasons?\s+(\d{1,2})\s*(?:-|to|thru)\s*(\d{1,2}))\b`)
	seasonPackPattern      = regexp.MustCompile(`(?i)\b(?:S(\d{1,2})|Season\s+(\d{1,2}))\b`)
	completeSeriesPattern  = regexp.MustCompile(`(?i)\b(complete\s+(?:series|collection)|all\s+seasons)\b`)
	europeanPattern        = regexp.MustCompile(`(?i)\b(\d{1,2})\s?x\s?(\d{2,3})\b`)
	dailyPattern           = regexp.MustCompile(`\b((?:19|20)\d{2})[\s.-](\d{2})[\s.-](\d{2})\b`)
	absolutePattern        = regexp.MustCompile(`\s-\s(\d{2,3})\s*(?:\(|\[|\s|$)`)
)

// parseEpisodeInfo runs the episode matchers in order of specificity and
// returns nil when the title carries no TV markers.
func parseEpisodeInfo(s string, note func(*tokenMatch)) *EpisodeInfo {
	if m := standardEpisodePattern.FindStringSubmatchIndex(s); m != nil {
		season, _ := strconv.Atoi(s[m[2]:m[3]])
		first, _ := strconv.Atoi(s[m[4]:m[5]])
		episodes := []int{first}
		end := m[1]

		// Scan for continuation episodes: S01E01E02 appends, S01E01-E03
		// expands the inclusive range.
		rest := s[end:]
		for {
			em := extraEpisodePattern.FindStringSubmatchIndex(rest)
			if em == nil {
				break
			}
			sep := rest[em[2]:em[3]]
			num, _ := strconv.Atoi(rest[em[4]:em[5]])
			if strings.Contains(sep, "-") {
				for e := episodes[len(episodes)-1] + 1; e <= num; e++ {
					episodes = append(episodes, e)
				}
			} else if num > episodes[len(episodes)-1] {
				episodes = append(episodes, num)
			}
			end += em[1]
			rest = rest[em[1]:]
		}

		note(&tokenMatch{start: m[0], end: end})
		return &EpisodeInfo{Season: season, Episodes: episodes}
	}

	if m := multiSeasonPattern.FindStringSubmatchIndex(s); m != nil {
		from, to := multiSeasonRange(s, m)
		var seasons []int
		for n := from; n <= to; n++ {
			seasons = append(seasons, n)
		}
		note(&tokenMatch{start: m[0], end: m[1]})
		return &EpisodeInfo{
			Season:           from,
			Seasons:          seasons,
			IsSeasonPack:     true,
			IsCompleteSeries: from == 1,
		}
	}

	if m := completeSeriesPattern.FindStringIndex(s); m != nil {
		note(&tokenMatch{start: m[0], end: m[1]})
		return &EpisodeInfo{
			Seasons:          []int{1},
			IsSeasonPack:     true,
			IsCompleteSeries: true,
		}
	}

	for _, m := range europeanPattern.FindAllStringSubmatchIndex(s, -1) {
		episodeDigits := s[m[4]:m[5]]
		// "5.1.x264" normalizes to "5 1 x264"; the codec digits are not
		// an episode number.
		if episodeDigits == "264" || episodeDigits == "265" {
			continue
		}
		season, _ := strconv.Atoi(s[m[2]:m[3]])
		episode, _ := strconv.Atoi(episodeDigits)
		note(&tokenMatch{start: m[0], end: m[1]})
		return &EpisodeInfo{Season: season, Episodes: []int{episode}}
	}

	if m := seasonPackPattern.FindStringSubmatchIndex(s); m != nil {
		var season int
		if m[2] >= 0 {
			season, _ = strconv.Atoi(s[m[2]:m[3]])
		} else {
			season, _ = strconv.Atoi(s[m[4]:m[5]])
		}
		note(&tokenMatch{start: m[0], end: m[1]})
		return &EpisodeInfo{Season: season, IsSeasonPack: true}
	}

	if m := dailyPattern.FindStringSubmatchIndex(s); m != nil {
		airDate := fmt.Sprintf("%s-%s-%s", s[m[2]:m[3]], s[m[4]:m[5]], s[m[6]:m[7]])
		note(&tokenMatch{start: m[0], end: m[1]})
		return &EpisodeInfo{AirDate: airDate, IsDaily: true}
	}

	if m := absolutePattern.FindStringSubmatchIndex(s); m != nil {
		episode, _ := strconv.Atoi(s[m[2]:m[3]])
		note(&tokenMatch{start: m[0], end: m[1]})
		return &EpisodeInfo{AbsoluteEpisode: episode, Episodes: []int{episode}}
	}

	return nil
}

func multiSeasonRange(s string, m []int) (int, int) {
	if m[2] >= 0 {
		from, _ := strconv.Atoi(s[m[2]:m[3]])
		to, _ := strconv.Atoi(s[m[4]:m[5]])
		return from, to
	}
	from, _ := strconv.Atoi(s[m[6]:m[7]])
	to, _ := strconv.Atoi(s[m[8]:m[9]])
	return from, to
}
