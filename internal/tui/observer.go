package tui

import tea "github.com/charmbracelet/bubbletea"

// ChannelObserver forwards cache notifications to Bubble Tea. Store
// callbacks run on whichever goroutine wrote to the cache, so they only
// signal; the program reads state on its own goroutine.
type ChannelObserver struct {
	ch chan CacheChangedMsg
}

// NewChannelObserver creates a new channel-based observer.
func NewChannelObserver(size int) *ChannelObserver {
	return &ChannelObserver{ch: make(chan CacheChangedMsg, size)}
}

// Notify signals a change to section (non-blocking if full).
func (o *ChannelObserver) Notify(section string) {
	select {
	case o.ch <- CacheChangedMsg{Section: section}:
	default: // a pending message already triggers a redraw
	}
}

// Wait returns a command that delivers the next change.
func (o *ChannelObserver) Wait() tea.Cmd {
	return func() tea.Msg {
		return <-o.ch
	}
}
