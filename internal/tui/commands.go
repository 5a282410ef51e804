package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/folio/internal/domain"
)

// Command factories for async operations

const mutationTimeout = 30 * time.Second

// TickCmd schedules the next spinner frame
func TickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return TickMsg{}
	})
}

// CreateCmd creates an entry from form values in section s. The first
// value is the entry's title.
func CreateCmd(s Section, scope domain.Scope, values []string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), mutationTimeout)
		defer cancel()

		var title string
		if len(values) > 0 {
			title = values[0]
		}
		item, err := s.Create(ctx, scope, values)
		msg := MutationDoneMsg{Section: s.Name(), Action: "created", Title: title, Err: err}
		if item != nil {
			msg.ID = item.GetID()
		}
		return msg
	}
}

// SetStatusCmd activates or deactivates item
func SetStatusCmd(s Section, scope domain.Scope, item domain.ListItem, active bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), mutationTimeout)
		defer cancel()

		var err error
		action := "activated"
		if active {
			err = s.Activate(ctx, scope, item.GetID())
		} else {
			action = "deactivated"
			err = s.Deactivate(ctx, scope, item.GetID())
		}
		return MutationDoneMsg{Section: s.Name(), Action: action, ID: item.GetID(), Title: item.GetTitle(), Err: err}
	}
}

// DeleteCmd deletes item
func DeleteCmd(s Section, scope domain.Scope, item domain.ListItem) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), mutationTimeout)
		defer cancel()

		err := s.Delete(ctx, scope, item.GetID())
		return MutationDoneMsg{Section: s.Name(), Action: "deleted", ID: item.GetID(), Title: item.GetTitle(), Err: err}
	}
}
