// Package dedupe collapses the same logical release reported by
// multiple indexers down to a single winner.
package dedupe

import (
	"fmt"
	"strings"

	"github.com/gatherr/gatherr/internal/indexer/types"
	"github.com/gatherr/gatherr/internal/release"
)

// ReleaseKey derives the identity of a logical release. Torrents with
// an info hash key on it directly; everything else keys on the
// normalized parsed attributes.
func ReleaseKey(rel types.ReleaseResult, parsed *release.ParsedRelease) string {
	if rel.InfoHash != "" {
		return "hash:" + strings.ToLower(rel.InfoHash)
	}
	if parsed == nil {
		p := release.ParseRelease(rel.Title)
		parsed = p
	}
	return fmt.Sprintf("attr:%s|%s|%s|%s|%s",
		strings.ToLower(parsed.CleanTitle),
		parsed.Resolution, parsed.Source, parsed.Codec,
		strings.ToLower(parsed.ReleaseGroup))
}

// Deduplicate is the early pass over raw parsed views. Within a key it
// prefers higher seeders, then larger size, then lexically smaller
// guid. Output preserves the input order of the surviving elements.
func Deduplicate(views []types.ReleaseView) []types.ReleaseView {
	type slot struct {
		index int
		view  types.ReleaseView
	}
	best := make(map[string]slot, len(views))
	order := make([]string, 0, len(views))

	for i, v := range views {
		key := ReleaseKey(v.Release, v.Parsed)
		current, seen := best[key]
		if !seen {
			best[key] = slot{index: i, view: v}
			order = append(order, key)
			continue
		}
		if earlyPassBetter(v.Release, current.view.Release) {
			best[key] = slot{index: current.index, view: v}
		}
	}

	out := make([]types.ReleaseView, 0, len(order))
	for _, key := range order {
		out = append(out, best[key].view)
	}
	return out
}

func earlyPassBetter(a, b types.ReleaseResult) bool {
	if a.Seeders != b.Seeders {
		return a.Seeders > b.Seeders
	}
	if a.Size != b.Size {
		return a.Size > b.Size
	}
	return a.GUID < b.GUID
}

// DeduplicateEnhanced is the late pass over scored releases. Within a
// key it prefers fewer rejection reasons, then higher score, then lower
// (better) indexer priority, then higher seeders. Output preserves the
// input order of the surviving elements.
func DeduplicateEnhanced(releases []types.EnhancedReleaseResult) []types.EnhancedReleaseResult {
	type slot struct {
		index int
		rel   types.EnhancedReleaseResult
	}
	best := make(map[string]slot, len(releases))
	order := make([]string, 0, len(releases))

	for i, r := range releases {
		key := ReleaseKey(r.ReleaseResult, r.Parsed)
		current, seen := best[key]
		if !seen {
			best[key] = slot{index: i, rel: r}
			order = append(order, key)
			continue
		}
		if latePassBetter(r, current.rel) {
			best[key] = slot{index: current.index, rel: r}
		}
	}

	out := make([]types.EnhancedReleaseResult, 0, len(order))
	for _, key := range order {
		out = append(out, best[key].rel)
	}
	return out
}

func latePassBetter(a, b types.EnhancedReleaseResult) bool {
	if len(a.RejectionReasons) != len(b.RejectionReasons) {
		return len(a.RejectionReasons) < len(b.RejectionReasons)
	}
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.IndexerPriority != b.IndexerPriority {
		return a.IndexerPriority < b.IndexerPriority
	}
	return a.Seeders > b.Seeders
}
