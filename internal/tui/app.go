package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/folio/internal/domain"
	"github.com/mmcdole/folio/internal/hooks"
	"github.com/mmcdole/folio/internal/query"
	"github.com/mmcdole/folio/internal/search"
	"github.com/mmcdole/folio/internal/tui/components"
	"github.com/mmcdole/folio/internal/tui/styles"
)

// ApplicationState represents the current state of the application
type ApplicationState int

const (
	StateBrowsing ApplicationState = iota
	StateFiltering
	StateSearching
	StateCreating
	StateConfirmDelete
	StateHelp
)

// Layout
const (
	SidebarWidth = 26
	ChromeHeight = 1 // footer line
	tickInterval = 100 * time.Millisecond
)

// frame is one level of drill-down: a section opened in a scope.
type frame struct {
	section string
	scope   domain.Scope
	parent  string // title of the row this frame was opened from
	page    int
	cursor  int
}

// Model is the main Bubble Tea model for the application
type Model struct {
	// Application state
	State ApplicationState
	Ready bool

	// Cache
	client   *query.Client
	index    *search.Index
	observer *ChannelObserver
	sections map[string]Section
	order    []string // sidebar sections
	pageSize int
	keywords *query.Observer[[]domain.KeywordCount]

	// UI Components
	Sidebar    components.Sidebar
	EntryForm  components.EntryForm
	Filter     textinput.Model
	Search     textinput.Model

	stack     []frame
	focusList bool

	searchHits []search.Hit
	pending    domain.ListItem // awaiting delete confirmation

	// Dimensions
	Width  int
	Height int

	// UI state
	StatusMsg    string
	StatusIsErr  bool
	SpinnerFrame int
}

// NewModel creates the dashboard over reg. idx may be nil to disable
// cross-section search.
func NewModel(reg *hooks.Registry, idx *search.Index, pageSize int) Model {
	if pageSize <= 0 {
		pageSize = 10
	}

	m := Model{
		State:      StateBrowsing,
		client:     reg.Client,
		index:      idx,
		observer:   NewChannelObserver(64),
		sections:   make(map[string]Section),
		pageSize:   pageSize,
		EntryForm:  components.NewEntryForm(),
		Filter:     newInput("/ ", "filter this page"),
		Search:     newInput("f ", "search cached titles"),
	}
	for _, s := range Sections(reg) {
		m.sections[s.Name()] = s
		if s.Name() != SectionQuizzes && s.Name() != SectionMcqs {
			m.order = append(m.order, s.Name())
		}
	}

	obs := m.observer
	m.keywords = reg.Publications.Keywords()
	m.keywords.Subscribe(func(query.State[[]domain.KeywordCount]) { obs.Notify(SectionPublications) })

	m.Sidebar = components.NewSidebar(m.order)
	m.Sidebar.SetFocused(true)
	m.resetStack(m.order[0])
	return m
}

func newInput(prompt, placeholder string) textinput.Model {
	ti := textinput.New()
	ti.Prompt = prompt
	ti.Placeholder = placeholder
	ti.CharLimit = 80
	ti.PromptStyle = styles.AccentStyle
	ti.PlaceholderStyle = styles.DimStyle
	return ti
}

// Init initializes the application
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.observer.Wait(),
		TickCmd(tickInterval),
	)
}

// Close unmounts every observer.
func (m Model) Close() {
	for _, s := range m.sections {
		s.Close()
	}
	if m.keywords != nil {
		m.keywords.Close()
	}
}

// Update handles all messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Ready = true
		m.Sidebar.SetSize(SidebarWidth, m.Height-ChromeHeight)
		return m, nil

	case tea.FocusMsg:
		m.client.Focus()
		return m, nil

	case TickMsg:
		m.SpinnerFrame++
		m.Sidebar.SetSpinnerFrame(m.SpinnerFrame)
		return m, TickCmd(tickInterval)

	case CacheChangedMsg:
		m.syncSidebar()
		m.clampCursor()
		if m.State == StateSearching {
			m.searchHits = m.find()
		}
		return m, m.observer.Wait()

	case MutationDoneMsg:
		if msg.Err != nil {
			m.StatusMsg = ErrMsg{Err: msg.Err, Context: strings.TrimSuffix(msg.Action, "d") + " " + msg.Title}.Error()
			m.StatusIsErr = true
			return m, nil
		}
		m.StatusMsg = fmt.Sprintf("%s %q", capitalize(msg.Action), msg.Title)
		m.StatusIsErr = false
		return m, nil

	case ErrMsg:
		m.StatusMsg = msg.Error()
		m.StatusIsErr = true
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}
	return m, nil
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.State {
	case StateHelp:
		m.State = StateBrowsing
		return m, nil

	case StateCreating:
		var cmd tea.Cmd
		var submitted bool
		m.EntryForm, cmd, submitted = m.EntryForm.Update(msg)
		if !m.EntryForm.IsVisible() {
			m.State = StateBrowsing
			return m, cmd
		}
		if submitted {
			f := m.top()
			if m.EntryForm.Target() != f.section {
				m.EntryForm.Hide()
				m.State = StateBrowsing
				return m, nil
			}
			sec := m.sections[f.section]
			values := m.EntryForm.Values()
			if err := sec.Validate(values); err != nil {
				m.EntryForm.SetError(err.Error())
				return m, nil
			}
			m.EntryForm.Hide()
			m.State = StateBrowsing
			return m, CreateCmd(sec, f.scope, values)
		}
		return m, cmd

	case StateConfirmDelete:
		switch {
		case key.Matches(msg, Keys.Confirm):
			item := m.pending
			m.pending = nil
			m.State = StateBrowsing
			f := m.top()
			return m, DeleteCmd(m.sections[f.section], f.scope, item)
		case key.Matches(msg, Keys.Deny):
			m.pending = nil
			m.State = StateBrowsing
		}
		return m, nil

	case StateFiltering:
		switch msg.Type {
		case tea.KeyEsc:
			m.Filter.SetValue("")
			m.Filter.Blur()
			m.State = StateBrowsing
			m.clampCursor()
			return m, nil
		case tea.KeyEnter:
			m.Filter.Blur()
			m.State = StateBrowsing
			return m, nil
		}
		var cmd tea.Cmd
		m.Filter, cmd = m.Filter.Update(msg)
		m.stack[len(m.stack)-1].cursor = 0
		return m, cmd

	case StateSearching:
		switch msg.Type {
		case tea.KeyEsc, tea.KeyEnter:
			m.Search.Blur()
			m.Search.SetValue("")
			m.searchHits = nil
			m.State = StateBrowsing
			return m, nil
		}
		var cmd tea.Cmd
		m.Search, cmd = m.Search.Update(msg)
		m.searchHits = m.find()
		return m, cmd
	}

	return m.handleBrowsingKey(msg)
}

func (m Model) handleBrowsingKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, Keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, Keys.Help):
		m.State = StateHelp
		return m, nil
	case key.Matches(msg, Keys.Switch):
		m.setListFocus(!m.focusList)
		return m, nil
	case key.Matches(msg, Keys.Search) && m.index != nil:
		m.State = StateSearching
		return m, m.Search.Focus()
	case key.Matches(msg, Keys.RefreshAll):
		for _, s := range m.sections {
			s.Invalidate()
		}
		m.StatusMsg, m.StatusIsErr = "Refreshing everything", false
		return m, nil
	}

	if !m.focusList {
		before := m.Sidebar.Selected()
		var cmd tea.Cmd
		m.Sidebar, cmd = m.Sidebar.Update(msg)
		if after := m.Sidebar.Selected(); after != before && after != "" {
			m.resetStack(after)
		}
		if key.Matches(msg, Keys.Enter) {
			m.setListFocus(true)
		}
		return m, cmd
	}

	f := &m.stack[len(m.stack)-1]
	sec := m.sections[f.section]
	visible := m.visible()

	switch {
	case key.Matches(msg, Keys.Up):
		if f.cursor > 0 {
			f.cursor--
		}
	case key.Matches(msg, Keys.Down):
		if f.cursor < len(visible)-1 {
			f.cursor++
		}
	case key.Matches(msg, Keys.Home):
		f.cursor = 0
	case key.Matches(msg, Keys.End):
		f.cursor = max(len(visible)-1, 0)

	case key.Matches(msg, Keys.Enter):
		item := m.selected()
		if item == nil || sec.Child() == "" || domain.IsPlaceholder(item.GetID()) {
			return m, nil
		}
		m.push(frame{
			section: sec.Child(),
			scope:   domain.Scope{ParentID: item.GetID()},
			parent:  item.GetTitle(),
		})

	case key.Matches(msg, Keys.Back):
		if len(m.stack) > 1 {
			m.pop()
		} else {
			m.setListFocus(false)
		}

	case key.Matches(msg, Keys.NextPage):
		pg := sec.View().Pagination
		if pg.TotalPages == 0 || f.page+1 < pg.TotalPages {
			f.page++
			f.cursor = 0
			m.openTop()
		}
	case key.Matches(msg, Keys.PrevPage):
		if f.page > 0 {
			f.page--
			f.cursor = 0
			m.openTop()
		}

	case key.Matches(msg, Keys.Filter):
		m.State = StateFiltering
		return m, m.Filter.Focus()

	case key.Matches(msg, Keys.Refresh):
		sec.Refetch()

	case key.Matches(msg, Keys.Activate), key.Matches(msg, Keys.Deactivate):
		item := m.selected()
		if item == nil || domain.IsPlaceholder(item.GetID()) {
			return m, nil
		}
		return m, SetStatusCmd(sec, f.scope, item, key.Matches(msg, Keys.Activate))

	case key.Matches(msg, Keys.Delete):
		item := m.selected()
		if item == nil || domain.IsPlaceholder(item.GetID()) {
			return m, nil
		}
		m.pending = item
		m.State = StateConfirmDelete

	case key.Matches(msg, Keys.New):
		if !sec.CanCreate() {
			m.StatusMsg, m.StatusIsErr = sec.Name()+" cannot be created here", true
			return m, nil
		}
		m.EntryForm.Show("New "+strings.ToLower(singular(sec.Name())), sec.Name(), sec.Fields())
		m.State = StateCreating
	}
	return m, nil
}

func (m *Model) setListFocus(list bool) {
	m.focusList = list
	m.Sidebar.SetFocused(!list)
}

func (m *Model) top() frame { return m.stack[len(m.stack)-1] }

// resetStack closes every open frame and opens section at its first page.
func (m *Model) resetStack(section string) {
	for _, f := range m.stack {
		m.sections[f.section].Close()
	}
	m.stack = []frame{{section: section}}
	m.Filter.SetValue("")
	m.openTop()
}

func (m *Model) push(f frame) {
	m.stack = append(m.stack, f)
	m.Filter.SetValue("")
	m.openTop()
}

func (m *Model) pop() {
	m.sections[m.top().section].Close()
	m.stack = m.stack[:len(m.stack)-1]
	m.Filter.SetValue("")
	m.openTop()
}

// openTop mounts the top frame's page, replacing whatever its section had
// open.
func (m *Model) openTop() {
	f := m.top()
	obs := m.observer
	name := f.section
	m.sections[name].Open(f.scope, f.page, m.pageSize, func() { obs.Notify(name) })
	m.syncSidebar()
}

// syncSidebar reflects the root frame's state next to its section name.
func (m *Model) syncSidebar() {
	root := m.stack[0]
	v := m.sections[root.section].View()
	m.Sidebar.SetState(root.section, components.SectionState{
		Total:    v.Pagination.TotalCount,
		Loaded:   len(v.Items) > 0 || !v.Pending,
		Fetching: v.Fetching,
		Failed:   v.Err != nil,
	})
}

// visible returns the indexes of the top page's items that pass the filter.
func (m Model) visible() []int {
	items := m.sections[m.top().section].View().Items
	if q := m.Filter.Value(); strings.TrimSpace(q) != "" {
		return search.Indices(q, items)
	}
	idx := make([]int, len(items))
	for i := range items {
		idx[i] = i
	}
	return idx
}

func (m Model) selected() domain.ListItem {
	f := m.top()
	items := m.sections[f.section].View().Items
	visible := m.visible()
	if f.cursor < 0 || f.cursor >= len(visible) {
		return nil
	}
	return items[visible[f.cursor]]
}

func (m *Model) clampCursor() {
	f := &m.stack[len(m.stack)-1]
	n := len(m.visible())
	if f.cursor >= n {
		f.cursor = max(n-1, 0)
	}
}

func (m Model) find() []search.Hit {
	if m.index == nil {
		return nil
	}
	hits := m.index.Find(m.Search.Value())
	if len(hits) > 10 {
		hits = hits[:10]
	}
	return hits
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func singular(name string) string {
	switch name {
	case SectionResearch:
		return "research project"
	case SectionMcqs:
		return "question"
	case SectionQuizzes:
		return "quiz"
	}
	return strings.TrimSuffix(name, "s")
}
