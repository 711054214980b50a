// Package capabilities answers what a configured indexer can do for a
// given search shape. Capability data is immutable after startup, so all
// functions here are lock-free reads over the declaration.
package capabilities

import (
	"github.com/gatherr/gatherr/internal/indexer"
	"github.com/gatherr/gatherr/internal/indexer/types"
)

// Search parameter names as declared in capability sets.
const (
	ParamQuery   = "q"
	ParamImdbID  = "imdbId"
	ParamTmdbID  = "tmdbId"
	ParamTvdbID  = "tvdbId"
	ParamTVMaze  = "tvMazeId"
	ParamSeason  = "season"
	ParamEpisode = "ep"
)

// SupportsParam reports whether the capability set declares the named
// parameter for the given search type.
func SupportsParam(caps types.Capabilities, searchType types.SearchType, param string) bool {
	var mode types.SearchMode
	switch searchType {
	case types.SearchTypeMovie:
		mode = caps.MovieSearch
	case types.SearchTypeTV:
		mode = caps.TVSearch
	default:
		// Basic search carries only free text.
		return param == ParamQuery
	}
	if !mode.Available {
		return false
	}
	for _, p := range mode.SupportedParams {
		if p == param {
			return true
		}
	}
	return false
}

// SupportsAnyID reports whether the indexer can serve an ID-tier query
// for any of the IDs present on the criteria.
func SupportsAnyID(caps types.Capabilities, criteria types.SearchCriteria) bool {
	if criteria.ImdbID != "" && SupportsParam(caps, criteria.Type, ParamImdbID) {
		return true
	}
	if criteria.TmdbID > 0 && SupportsParam(caps, criteria.Type, ParamTmdbID) {
		return true
	}
	if criteria.TvdbID > 0 && SupportsParam(caps, criteria.Type, ParamTvdbID) {
		return true
	}
	if criteria.TVMazeID > 0 && SupportsParam(caps, criteria.Type, ParamTVMaze) {
		return true
	}
	return false
}

// HasCategoriesForSearchType reports whether the indexer declares at least
// one category whose content type matches the search type.
func HasCategoriesForSearchType(caps types.Capabilities, searchType types.SearchType) bool {
	var want indexer.ContentType
	switch searchType {
	case types.SearchTypeMovie:
		want = indexer.ContentTypeMovie
	case types.SearchTypeTV:
		want = indexer.ContentTypeTV
	default:
		return true
	}
	for _, cat := range caps.Categories {
		if indexer.GetCategoryContentType(cat) == want {
			return true
		}
	}
	return false
}

// CanHandleSearchType combines mode availability with category coverage:
// movie search needs a movie category plus movieSearch.available, tv
// analogously, and basic is always accepted.
func CanHandleSearchType(caps types.Capabilities, searchType types.SearchType) bool {
	switch searchType {
	case types.SearchTypeMovie:
		return caps.MovieSearch.Available && HasCategoriesForSearchType(caps, searchType)
	case types.SearchTypeTV:
		return caps.TVSearch.Available && HasCategoriesForSearchType(caps, searchType)
	default:
		return true
	}
}

// EffectiveEpisodeFormats returns the episode query formats to iterate in
// the text tier. With no declaration and useAllFormats set, all known
// formats are tried in order of reliability.
func EffectiveEpisodeFormats(declared []string, useAllFormats bool) []string {
	if len(declared) > 0 {
		return declared
	}
	if useAllFormats {
		return []string{types.EpisodeFormatStandard, types.EpisodeFormatEuropean, types.EpisodeFormatCompact}
	}
	return []string{types.EpisodeFormatStandard}
}

// EffectiveMovieFormats returns the movie query formats to iterate.
func EffectiveMovieFormats(declared []string, useAllFormats bool) []string {
	if len(declared) > 0 {
		return declared
	}
	if useAllFormats {
		return []string{types.MovieFormatStandard, types.MovieFormatNoYear}
	}
	return []string{types.MovieFormatStandard}
}
