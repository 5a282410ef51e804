package domain

import "strings"

// Pagination mirrors the backend's paging envelope. CurrentPage is 0-indexed.
type Pagination struct {
	TotalCount      int `json:"totalCount"`
	TotalPages      int `json:"totalPages"`
	CurrentPage     int `json:"currentPage"`
	CurrentPageSize int `json:"currentPageSize"`
}

// Page is one server-ordered slice of a list.
type Page[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// Scope narrows a list: ParentID is the owning course for quizzes and the
// owning quiz for mcqs. Status filters server-side when set.
type Scope struct {
	ParentID string
	Status   DocumentStatus
}

// IndexOf returns the position of the item with id, or -1.
func IndexOf[T Entity[T]](p Page[T], id string) int {
	for i, item := range p.Items {
		if item.GetID() == id {
			return i
		}
	}
	return -1
}

// Prepend returns a copy of p with item at the head and TotalCount+1.
func Prepend[T any](p Page[T], item T) Page[T] {
	items := make([]T, 0, len(p.Items)+1)
	items = append(items, item)
	items = append(items, p.Items...)
	p.Items = items
	p.Pagination.TotalCount++
	p.Pagination.CurrentPageSize = len(items)
	return p
}

// Replace returns a copy of p with the item matching id swapped for item,
// position preserved. ok is false when id is absent.
func Replace[T Entity[T]](p Page[T], id string, item T) (Page[T], bool) {
	i := IndexOf(p, id)
	if i < 0 {
		return p, false
	}
	items := make([]T, len(p.Items))
	copy(items, p.Items)
	items[i] = item
	p.Items = items
	return p, true
}

// Remove returns a copy of p without id and TotalCount-1.
func Remove[T Entity[T]](p Page[T], id string) (Page[T], bool) {
	i := IndexOf(p, id)
	if i < 0 {
		return p, false
	}
	items := make([]T, 0, len(p.Items)-1)
	items = append(items, p.Items[:i]...)
	items = append(items, p.Items[i+1:]...)
	p.Items = items
	if p.Pagination.TotalCount > 0 {
		p.Pagination.TotalCount--
	}
	p.Pagination.CurrentPageSize = len(items)
	return p, true
}

// PlaceholderPrefix marks ids of optimistic entities not yet confirmed by
// the server.
const PlaceholderPrefix = "optimistic-"

// IsPlaceholder reports whether id belongs to an optimistic entity.
func IsPlaceholder(id string) bool { return strings.HasPrefix(id, PlaceholderPrefix) }
