package search

import (
	"github.com/gatherr/gatherr/internal/indexer"
	"github.com/gatherr/gatherr/internal/indexer/types"
	"github.com/gatherr/gatherr/internal/release"
)

// applyHardFilters drops releases that cannot match the request
// regardless of quality: TV noise in movie searches, wrong seasons,
// category mismatches, and title-irrelevant results.
func (s *Service) applyHardFilters(views []types.ReleaseView, criteria types.SearchCriteria, opts Options) []types.ReleaseView {
	interactive := opts.Source != types.SearchSourceAutomatic
	refs := relevanceReferences(criteria)

	out := make([]types.ReleaseView, 0, len(views))
	for _, v := range views {
		if criteria.Type == types.SearchTypeMovie && v.Parsed != nil && v.Parsed.HasEpisodeInfo() {
			s.logger.Debug().Str("title", v.Release.Title).Msg("Dropping TV release for movie search")
			continue
		}

		if criteria.Type == types.SearchTypeTV && (criteria.Season > 0 || criteria.Episode > 0) {
			var ep *release.EpisodeInfo
			if v.Parsed != nil {
				ep = v.Parsed.Episode
			}
			if ep == nil {
				continue
			}
			if !episodeAllowed(ep, criteria.Season, criteria.Episode, interactive) {
				continue
			}
		}

		if !categoryCompatible(v.Release.Categories, criteria.Type) {
			s.logger.Debug().
				Str("title", v.Release.Title).
				Ints("categories", v.Release.Categories).
				Msg("Dropping release with mismatched category")
			continue
		}

		if len(refs) > 0 && !titleRelevant(v, refs) {
			s.logger.Debug().Str("title", v.Release.Title).Msg("Dropping title-irrelevant release")
			continue
		}

		out = append(out, v)
	}
	return out
}

// episodeAllowed implements the season/episode inclusion policy.
// Season packs are only acceptable substitutes for an episode target
// on automatic searches.
func episodeAllowed(ep *release.EpisodeInfo, season, episode int, interactive bool) bool {
	singleSeasonPack := ep.IsSeasonPack && !ep.IsCompleteSeries && len(ep.Seasons) <= 1

	switch {
	case season > 0 && episode == 0:
		return singleSeasonPack && ep.Season == season

	case season > 0 && episode > 0:
		if ep.IsSeasonPack {
			return !interactive && singleSeasonPack && ep.Season == season
		}
		return ep.Season == season && containsEpisode(ep.Episodes, episode)

	case episode > 0:
		if ep.IsSeasonPack {
			return !interactive
		}
		return containsEpisode(ep.Episodes, episode)

	default:
		return true
	}
}

func containsEpisode(episodes []int, episode int) bool {
	for _, e := range episodes {
		if e == episode {
			return true
		}
	}
	return false
}

// categoryCompatible checks the release's first category against the
// search type. Releases without categories pass.
func categoryCompatible(categories []int, searchType types.SearchType) bool {
	if len(categories) == 0 {
		return true
	}
	contentType := indexer.GetCategoryContentType(categories[0])

	switch searchType {
	case types.SearchTypeMovie:
		return contentType == indexer.ContentTypeMovie
	case types.SearchTypeTV:
		return contentType == indexer.ContentTypeTV
	default:
		return true
	}
}
