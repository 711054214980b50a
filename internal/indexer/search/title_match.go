package search

import (
	"regexp"
	"strings"

	"github.com/gatherr/gatherr/internal/indexer/types"
)

var nonAlnumPattern = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeTitle lowercases a title and strips everything that is not
// a letter or digit, so "Schitt's Creek" and "Schitts.Creek" compare
// equal.
func NormalizeTitle(title string) string {
	return nonAlnumPattern.ReplaceAllString(strings.ToLower(title), "")
}

// relevanceReferences collects the normalized reference titles for the
// relevance filter. Empty when the criteria has no text, or when the
// search is type basic.
func relevanceReferences(criteria types.SearchCriteria) []string {
	if criteria.Type == types.SearchTypeBasic {
		return nil
	}
	var refs []string
	if norm := NormalizeTitle(criteria.Query); norm != "" {
		refs = append(refs, norm)
	}
	for _, title := range criteria.SearchTitles {
		if norm := NormalizeTitle(title); norm != "" {
			refs = append(refs, norm)
		}
	}
	return refs
}

// titleRelevant reports whether the release's extracted name shares a
// substring with any reference title.
func titleRelevant(v types.ReleaseView, refs []string) bool {
	name := v.Release.Title
	if v.Parsed != nil && v.Parsed.CleanTitle != "" {
		name = v.Parsed.CleanTitle
	}
	norm := NormalizeTitle(name)
	if norm == "" {
		return true
	}
	for _, ref := range refs {
		if strings.Contains(norm, ref) || strings.Contains(ref, norm) {
			return true
		}
	}
	return false
}
