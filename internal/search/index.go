package search

import (
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/mmcdole/folio/internal/domain"
	"github.com/mmcdole/folio/internal/store"
)

// Hit is one entity found by Index.Find.
type Hit struct {
	Tag      store.Tag // list tag the entity was cached under
	Item     domain.ListItem
	Distance int // lower is better
}

// Extractor turns a cached list value into its items.
type Extractor func(v any) []domain.ListItem

// Items is the Extractor for pages of T.
func Items[T domain.ListItem](v any) []domain.ListItem {
	p, ok := v.(domain.Page[T])
	if !ok {
		return nil
	}
	return domain.ListItems(p.Items)
}

// Index keeps a title index over every cached list page so the dashboard
// can search across entity types without a request.
type Index struct {
	logger *slog.Logger

	mu     sync.RWMutex
	pages  map[store.Key][]domain.ListItem
	unsubs []func()
}

// NewIndex creates an empty index.
func NewIndex(logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{logger: logger, pages: make(map[store.Key][]domain.ListItem)}
}

// Track indexes the list pages of tag as they are written to st.
func (idx *Index) Track(st *store.Store, tag store.Tag, extract Extractor) {
	unsub := st.SubscribeMatch(store.Lists(tag, ""), func(ev store.Event) {
		idx.mu.Lock()
		defer idx.mu.Unlock()
		switch ev.Type {
		case store.EventSet:
			if ev.Entry.HasValue() {
				idx.pages[ev.Key] = extract(ev.Entry.Value)
			}
		case store.EventRemove:
			delete(idx.pages, ev.Key)
		}
	})

	idx.mu.Lock()
	idx.unsubs = append(idx.unsubs, unsub)
	idx.mu.Unlock()
}

// Close stops tracking.
func (idx *Index) Close() {
	idx.mu.Lock()
	unsubs := idx.unsubs
	idx.unsubs = nil
	idx.mu.Unlock()
	for _, fn := range unsubs {
		fn()
	}
}

// Clear drops every indexed page.
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.pages = make(map[store.Key][]domain.ListItem)
	idx.logger.Debug("cleared search index")
}

// Find ranks indexed entities whose title contains the letters of query in
// order. Optimistic placeholders are skipped, and an entity cached on
// several pages is returned once.
func (idx *Index) Find(query string) []Hit {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	type candidate struct {
		tag  store.Tag
		item domain.ListItem
	}

	idx.mu.RLock()
	seen := make(map[string]bool)
	var titles []string
	byTitle := make(map[string][]candidate)
	for key, items := range idx.pages {
		for _, item := range items {
			id := string(key.Tag) + "/" + item.GetID()
			if seen[id] || domain.IsPlaceholder(item.GetID()) {
				continue
			}
			seen[id] = true
			t := item.GetTitle()
			if _, ok := byTitle[t]; !ok {
				titles = append(titles, t)
			}
			byTitle[t] = append(byTitle[t], candidate{tag: key.Tag, item: item})
		}
	}
	idx.mu.RUnlock()

	matches := fuzzy.RankFindFold(query, titles)
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].Target < matches[j].Target
	})

	var hits []Hit
	for _, m := range matches {
		for _, c := range byTitle[m.Target] {
			hits = append(hits, Hit{Tag: c.tag, Item: c.item, Distance: m.Distance})
		}
	}
	return hits
}

// RankKeywords returns the keyword rows matching query, closest first.
func RankKeywords(query string, rows []domain.KeywordCount) []domain.KeywordCount {
	query = strings.TrimSpace(query)
	if query == "" {
		return rows
	}
	keywords := make([]string, len(rows))
	byKeyword := make(map[string]domain.KeywordCount, len(rows))
	for i, r := range rows {
		keywords[i] = r.Keyword
		byKeyword[r.Keyword] = r
	}

	matches := fuzzy.RankFindFold(query, keywords)
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return byKeyword[matches[i].Target].Count > byKeyword[matches[j].Target].Count
	})

	out := make([]domain.KeywordCount, 0, len(matches))
	for _, m := range matches {
		out = append(out, byKeyword[m.Target])
	}
	return out
}
