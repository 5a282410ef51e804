package tui

// Message types for the TUI

// ErrMsg represents an error
type ErrMsg struct {
	Err     error
	Context string
}

// Error implements the error interface
func (e ErrMsg) Error() string {
	if e.Context != "" {
		return e.Context + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

// CacheChangedMsg signals that an observed cache entry changed
type CacheChangedMsg struct {
	Section string
}

// MutationDoneMsg reports the outcome of a mutation started from the UI
type MutationDoneMsg struct {
	Section string
	Action  string
	ID      string
	Title   string
	Err     error
}

// TickMsg drives the spinner
type TickMsg struct{}
