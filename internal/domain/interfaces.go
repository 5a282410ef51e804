package domain

// ListItem is the common read-only view the dashboard and search use to
// display and filter any entity without knowing its concrete type.
type ListItem interface {
	// GetID returns the server identifier
	GetID() string

	// GetTitle returns the display title (question text for mcqs)
	GetTitle() string

	// GetStatus returns the publish status for indicator rendering
	GetStatus() DocumentStatus
}

// ListItems converts a typed slice into ListItems.
func ListItems[T ListItem](items []T) []ListItem {
	out := make([]ListItem, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}
