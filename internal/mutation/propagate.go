package mutation

import "github.com/mmcdole/folio/internal/store"

// Target names everything a mutation on one entity can affect.
type Target struct {
	Record   store.Tag // single-record tag of the mutated type
	List     store.Tag // list tag of the mutated type
	Parent   store.Tag // single-record tag of the owning type, if any
	ID       string    // mutated entity; empty for a failed create
	ParentID string    // owning entity, when the caller scoped the mutation

	// Also lists extra key families derived from the mutated type, such as
	// chart aggregates.
	Also []store.Pattern
}

// ListKeys returns the cached list pages of tag that could contain an entity
// owned by parentID: pages scoped to that parent and unscoped pages. An
// empty parentID selects every page of tag.
func ListKeys(st *store.Store, tag store.Tag, parentID string) []store.Key {
	all := st.Keys(store.Lists(tag, ""))
	if parentID == "" {
		return all
	}
	keys := all[:0]
	for _, k := range all {
		if k.ParentID == "" || k.ParentID == parentID {
			keys = append(keys, k)
		}
	}
	return keys
}

// Propagate applies the fixed two-level invalidation rule: the entity's own
// record, every list that could contain it, and the immediate parent's
// record. It never climbs further than one level.
func Propagate(st *store.Store, t Target) {
	if t.ID != "" {
		st.Invalidate(store.RecordKey(t.Record, t.ID))
	}
	for _, k := range ListKeys(st, t.List, t.ParentID) {
		st.Invalidate(k)
	}
	if t.Parent != "" && t.ParentID != "" {
		st.Invalidate(store.RecordKey(t.Parent, t.ParentID))
	}
	for _, p := range t.Also {
		st.InvalidateMatch(p)
	}
}
