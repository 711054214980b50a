package indexer

import (
	"fmt"

	"github.com/gatherr/gatherr/internal/indexer/types"
)

// ComposeEpisodeKeyword builds the search keyword for an episode or
// season search using the requested query-format variant.
//
//	standard: Title S01E02 / Title S01
//	european: Title 1x02  / Title 1x
//	compact:  Title 102   / Title S1
//
// The compact form is only unambiguous for single-digit seasons; higher
// seasons fall back to the standard tokens.
func ComposeEpisodeKeyword(title string, season, episode int, format string) string {
	if season <= 0 {
		return title
	}
	switch format {
	case types.EpisodeFormatEuropean:
		if episode > 0 {
			return fmt.Sprintf("%s %dx%02d", title, season, episode)
		}
		return fmt.Sprintf("%s %dx", title, season)
	case types.EpisodeFormatCompact:
		if season <= 9 {
			if episode > 0 {
				return fmt.Sprintf("%s %d%02d", title, season, episode)
			}
			return fmt.Sprintf("%s S%d", title, season)
		}
		fallthrough
	default:
		if episode > 0 {
			return fmt.Sprintf("%s S%02dE%02d", title, season, episode)
		}
		return fmt.Sprintf("%s S%02d", title, season)
	}
}

// ComposeMovieKeyword builds the search keyword for a movie search
// variant, returning the query text and the year parameter to send.
func ComposeMovieKeyword(title string, year int, format string) (string, int) {
	switch format {
	case types.MovieFormatNoYear:
		return title, 0
	case types.MovieFormatYearOnly:
		if year > 0 {
			return fmt.Sprintf("%d", year), 0
		}
		return title, 0
	default:
		return title, year
	}
}
