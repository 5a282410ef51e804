package store

import (
	"fmt"
	"strings"
)

// Tag names an entity type in a cache key ("quiz", "quizzes", ...).
type Tag string

// Kind discriminates the payload of a Key.
type Kind uint8

const (
	KindRecord    Kind = iota + 1 // single entity, keyed by ID
	KindList                      // one page of a scoped list
	KindAggregate                 // derived query such as chart counts
)

func (k Kind) String() string {
	switch k {
	case KindRecord:
		return "record"
	case KindList:
		return "list"
	case KindAggregate:
		return "aggregate"
	default:
		return "unknown"
	}
}

// Key identifies a cache entry. Keys are plain comparable values: two keys
// are equal iff every field is equal, so they can be used as map keys.
//
// Only the fields relevant to Kind are set: ID for records; ParentID, Page,
// PageSize and Filter for lists; Filter for aggregates.
type Key struct {
	Tag      Tag
	Kind     Kind
	ID       string
	ParentID string
	Page     int
	PageSize int
	Filter   string
}

// RecordKey is the key of a single entity.
func RecordKey(tag Tag, id string) Key {
	return Key{Tag: tag, Kind: KindRecord, ID: id}
}

// ListKey is the key of one page of a list scoped by parentID and filter.
func ListKey(tag Tag, parentID string, page, pageSize int, filter string) Key {
	return Key{Tag: tag, Kind: KindList, ParentID: parentID, Page: page, PageSize: pageSize, Filter: filter}
}

// AggregateKey is the key of a derived query over tag.
func AggregateKey(tag Tag, name string) Key {
	return Key{Tag: tag, Kind: KindAggregate, Filter: name}
}

// Equal reports structural equality.
func (k Key) Equal(other Key) bool {
	return k == other
}

// String renders a stable, hierarchical form used for logging and as the
// persistence key (tag:kind:...).
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(string(k.Tag))
	b.WriteByte(':')
	b.WriteString(k.Kind.String())
	switch k.Kind {
	case KindRecord:
		b.WriteByte(':')
		b.WriteString(k.ID)
	case KindList:
		fmt.Fprintf(&b, ":parent=%s:filter=%s:page=%d:size=%d", k.ParentID, k.Filter, k.Page, k.PageSize)
	case KindAggregate:
		b.WriteByte(':')
		b.WriteString(k.Filter)
	}
	return b.String()
}

// Pattern selects a family of keys. Zero fields match anything.
type Pattern struct {
	Tag      Tag
	Kind     Kind
	ParentID string
}

// Match reports whether k belongs to the family.
func (p Pattern) Match(k Key) bool {
	if p.Tag != "" && p.Tag != k.Tag {
		return false
	}
	if p.Kind != 0 && p.Kind != k.Kind {
		return false
	}
	if p.ParentID != "" && p.ParentID != k.ParentID {
		return false
	}
	return true
}

// Lists matches every list page of tag, optionally narrowed to one parent.
func Lists(tag Tag, parentID string) Pattern {
	return Pattern{Tag: tag, Kind: KindList, ParentID: parentID}
}
