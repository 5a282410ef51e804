package components

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mmcdole/folio/internal/tui/styles"
)

// SectionState is what the sidebar shows next to a section name
type SectionState struct {
	Total    int  // totalCount of the last loaded page
	Loaded   bool // a page has been loaded at least once
	Fetching bool
	Failed   bool
}

// SectionItem implements list.Item for entity sections
type SectionItem struct {
	Name  string
	State SectionState
	Frame int
}

// Spinner frames for fetching animation
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

func (i SectionItem) FilterValue() string { return i.Name }

func (i SectionItem) Title() string {
	switch {
	case i.State.Fetching:
		return spinnerFrames[i.Frame%len(spinnerFrames)] + " " + i.Name
	case i.State.Failed:
		return "✗ " + i.Name
	case i.State.Loaded:
		return fmt.Sprintf("  %s (%d)", i.Name, i.State.Total)
	default:
		return "  " + i.Name
	}
}

func (i SectionItem) Description() string { return "" }

// Border overhead for the sidebar panel
const BorderSize = 2

// Sidebar lists the top-level entity sections
type Sidebar struct {
	list         list.Model
	focused      bool
	width        int
	height       int
	names        []string
	states       map[string]SectionState
	spinnerFrame int
}

// NewSidebar creates a sidebar over the named sections
func NewSidebar(names []string) Sidebar {
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = false
	delegate.SetSpacing(0)

	delegate.Styles.SelectedTitle = lipgloss.NewStyle().
		Foreground(styles.White).
		Background(styles.SlateLight).
		Padding(0, 1)
	delegate.Styles.NormalTitle = lipgloss.NewStyle().
		Foreground(styles.LightGray).
		Padding(0, 1)

	l := list.New([]list.Item{}, delegate, 0, 0)
	l.Title = "Content"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.SetShowPagination(false)
	l.Styles.Title = lipgloss.NewStyle().
		Foreground(styles.Accent).
		Bold(true).
		Padding(0, 1)

	s := Sidebar{
		list:   l,
		names:  names,
		states: make(map[string]SectionState),
	}
	s.refreshItems()
	return s
}

// SetState updates one section's indicator
func (s *Sidebar) SetState(name string, state SectionState) {
	if s.states[name] == state {
		return
	}
	s.states[name] = state
	s.refreshItems()
}

// SetSpinnerFrame updates the spinner animation frame
func (s *Sidebar) SetSpinnerFrame(frame int) {
	s.spinnerFrame = frame
	for _, st := range s.states {
		if st.Fetching {
			s.refreshItems()
			return
		}
	}
}

func (s *Sidebar) refreshItems() {
	items := make([]list.Item, len(s.names))
	for i, name := range s.names {
		items[i] = SectionItem{Name: name, State: s.states[name], Frame: s.spinnerFrame}
	}
	s.list.SetItems(items)
}

// SetSize updates the component dimensions
func (s *Sidebar) SetSize(width, height int) {
	s.width = width
	s.height = height
	s.list.SetSize(width-BorderSize, height-BorderSize)
}

// SetFocused sets the focus state
func (s *Sidebar) SetFocused(focused bool) {
	s.focused = focused
}

// IsFocused returns the focus state
func (s Sidebar) IsFocused() bool {
	return s.focused
}

// Selected returns the name of the highlighted section
func (s Sidebar) Selected() string {
	item, ok := s.list.SelectedItem().(SectionItem)
	if !ok {
		return ""
	}
	return item.Name
}

// Update handles messages
func (s Sidebar) Update(msg tea.Msg) (Sidebar, tea.Cmd) {
	if !s.focused {
		return s, nil
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "j", "down":
			s.list.CursorDown()
		case "k", "up":
			s.list.CursorUp()
		case "g":
			s.list.Select(0)
		case "G":
			s.list.Select(len(s.list.Items()) - 1)
		}
	}
	return s, nil
}

// View renders the component
func (s Sidebar) View() string {
	style := styles.InactiveBorder
	if s.focused {
		style = styles.ActiveBorder
	}

	frameW, frameH := style.GetFrameSize()
	return style.
		Width(s.width - frameW).
		Height(s.height - frameH).
		Render(s.list.View())
}
