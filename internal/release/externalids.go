package release

import (
	"regexp"
	"strconv"
)

var (
	tmdbIDPattern = regexp.MustCompile(`(?i)[\[{\s.(]tmdb(?:id)?[-_= ]?(\d+)`)
	tvdbIDPattern = regexp.MustCompile(`(?i)[\[{\s.(]tvdb(?:id)?[-_= ]?(\d+)`)
	imdbIDPattern = regexp.MustCompile(`(?i)imdb(?:id)?[-_= ]?(tt\d{7,})`)
	bareImdbIDPattern = regexp.MustCompile(`(?i)\b(tt\d{7,})\b`)
)

// ExtractExternalIDs recovers provider identifiers embedded in a file path
// or release title, e.g. "{tmdb-603}" or "[imdbid-tt0068646]". IMDB IDs
// shorter than seven digits are ignored. Pure, never fails.
func ExtractExternalIDs(path string) ExternalIDs {
	var ids ExternalIDs
	// Pad so the boundary classes match ids at the very start.
	probe := " " + path

	if m := tmdbIDPattern.FindStringSubmatch(probe); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			ids.TmdbID = n
		}
	}
	if m := tvdbIDPattern.FindStringSubmatch(probe); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			ids.TvdbID = n
		}
	}
	if m := imdbIDPattern.FindStringSubmatch(probe); m != nil {
		ids.ImdbID = m[1]
	} else if m := bareImdbIDPattern.FindStringSubmatch(probe); m != nil {
		ids.ImdbID = m[1]
	}
	return ids
}
