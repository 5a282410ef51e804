package search

import (
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/mmcdole/folio/internal/domain"
)

// Result is a filter match with the matched title positions for
// highlighting.
type Result struct {
	Index          int // position in the filtered slice
	Item           domain.ListItem
	MatchedIndexes []int
	Score          int // higher is better
}

// filterSource implements fuzzy.Source over precomputed lowercase titles
type filterSource struct {
	items       []domain.ListItem
	lowerTitles []string
}

func (s *filterSource) String(i int) string { return s.lowerTitles[i] }

func (s *filterSource) Len() int { return len(s.items) }

// Filter fuzzy-matches query against item titles, best match first. An
// empty query matches nothing.
func Filter(query string, items []domain.ListItem) []Result {
	query = strings.TrimSpace(query)
	if query == "" || len(items) == 0 {
		return nil
	}

	src := &filterSource{items: items, lowerTitles: make([]string, len(items))}
	for i, item := range items {
		src.lowerTitles[i] = strings.ToLower(item.GetTitle())
	}

	matches := fuzzy.FindFrom(strings.ToLower(query), src)
	results := make([]Result, len(matches))
	for i, m := range matches {
		results[i] = Result{
			Index:          m.Index,
			Item:           items[m.Index],
			MatchedIndexes: m.MatchedIndexes,
			Score:          m.Score,
		}
	}
	return results
}

// Indices returns the positions of the items matching query in match order.
func Indices(query string, items []domain.ListItem) []int {
	results := Filter(query, items)
	idx := make([]int, len(results))
	for i, r := range results {
		idx[i] = r.Index
	}
	return idx
}
