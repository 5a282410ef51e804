package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mmcdole/folio/internal/domain"
	"github.com/mmcdole/folio/internal/search"
	"github.com/mmcdole/folio/internal/tui/styles"
)

// View renders the application
func (m Model) View() string {
	if !m.Ready {
		return "Loading..."
	}
	if m.State == StateHelp {
		return m.renderHelp()
	}

	height := m.Height - ChromeHeight
	listWidth := m.Width - SidebarWidth
	if listWidth < 20 {
		listWidth = 20
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		m.Sidebar.View(),
		m.renderList(listWidth, height),
	)

	var modal string
	switch m.State {
	case StateCreating:
		modal = m.EntryForm.View()
	case StateConfirmDelete:
		modal = m.renderDeleteConfirmation()
	case StateSearching:
		modal = m.renderSearch()
	}
	if modal != "" {
		body = lipgloss.Place(m.Width, height, lipgloss.Center, lipgloss.Center, modal)
	}

	return lipgloss.JoinVertical(lipgloss.Left, body, m.renderFooter())
}

func (m Model) renderList(width, height int) string {
	style := styles.InactiveBorder
	if m.focusList {
		style = styles.ActiveBorder
	}
	frameW, frameH := style.GetFrameSize()
	innerW := width - frameW
	innerH := height - frameH

	f := m.top()
	v := m.sections[f.section].View()

	var lines []string
	lines = append(lines, m.renderHeader(f, v))

	// Last good data stays visible under the error line
	if v.Err != nil {
		lines = append(lines, RenderError(v.Err, innerW))
	}
	if m.State == StateFiltering || m.Filter.Value() != "" {
		lines = append(lines, m.Filter.View())
	}

	rows := innerH - len(lines)
	if f.section == SectionPublications && len(m.stack) == 1 {
		rows -= 2
	}

	switch {
	case v.Pending && len(v.Items) == 0:
		lines = append(lines, RenderSpinner(m.SpinnerFrame)+styles.DimStyle.Render(" Loading..."))
	case len(v.Items) == 0:
		lines = append(lines, styles.DimStyle.Render("Nothing here yet"))
	default:
		lines = append(lines, m.renderRows(v.Items, f.cursor, rows, innerW)...)
	}

	content := strings.Join(lines, "\n")
	if f.section == SectionPublications && len(m.stack) == 1 {
		content = lipgloss.JoinVertical(lipgloss.Left,
			lipgloss.NewStyle().Height(innerH-2).Render(content),
			m.renderKeywords(innerW),
		)
	}

	return style.
		Width(innerW).
		Height(innerH).
		Render(content)
}

// renderHeader renders the breadcrumb and page position
func (m Model) renderHeader(f frame, v PageView) string {
	crumbs := make([]string, 0, len(m.stack)*2)
	for i, fr := range m.stack {
		if i > 0 {
			crumbs = append(crumbs, fr.parent)
		}
		crumbs = append(crumbs, fr.section)
	}
	title := styles.TitleStyle.Render(strings.Join(crumbs, " › "))

	pg := v.Pagination
	pages := pg.TotalPages
	if pages == 0 {
		pages = 1
	}
	info := styles.DimStyle.Render(fmt.Sprintf("  page %d/%d · %d total", f.page+1, pages, pg.TotalCount))

	var state string
	switch {
	case v.Fetching:
		state = " " + RenderSpinner(m.SpinnerFrame)
	case v.Stale:
		state = styles.DimStyle.Render(" (stale)")
	}
	return title + info + state
}

func (m Model) renderRows(items []domain.ListItem, cursor, rows, width int) []string {
	visible := m.visible()
	filter := m.Filter.Value()

	var matches map[int][]int
	if strings.TrimSpace(filter) != "" {
		matches = make(map[int][]int)
		for _, r := range search.Filter(filter, items) {
			matches[r.Index] = r.MatchedIndexes
		}
	}

	start := 0
	if rows > 0 && cursor >= rows {
		start = cursor - rows + 1
	}

	var out []string
	for i := start; i < len(visible) && (rows <= 0 || i < start+rows); i++ {
		item := items[visible[i]]
		title := truncate(item.GetTitle(), width-6)

		var line string
		if i == cursor && m.focusList {
			line = styles.SelectedItemStyle.Render(statusChar(item) + " " + title)
		} else {
			line = statusDot(item) + " " + styles.NormalItemStyle.Render(highlight(title, matches[visible[i]]))
		}
		out = append(out, line)
	}
	return out
}

func (m Model) renderKeywords(width int) string {
	st := m.keywords.State()
	if !st.HasData {
		if st.IsError {
			return RenderError(st.Err, width)
		}
		return styles.DimStyle.Render("Keywords loading...")
	}

	rows := search.RankKeywords(m.Filter.Value(), st.Data)
	parts := make([]string, 0, 6)
	for i, r := range rows {
		if i == 6 {
			break
		}
		parts = append(parts, fmt.Sprintf("%s (%d)", r.Keyword, r.Count))
	}
	return styles.SubtitleStyle.Render("Keywords") + "\n" +
		styles.DimStyle.Render(truncate(strings.Join(parts, " · "), width))
}

func (m Model) renderSearch() string {
	var b strings.Builder
	b.WriteString(styles.ModalTitleStyle.Render("Search cached content"))
	b.WriteString("\n")
	b.WriteString(m.Search.View())
	b.WriteString("\n\n")
	if len(m.searchHits) == 0 && m.Search.Value() != "" {
		b.WriteString(styles.DimStyle.Render("No matches in cached pages"))
	}
	for _, h := range m.searchHits {
		b.WriteString(statusDot(h.Item) + " " + truncate(h.Item.GetTitle(), 48))
		b.WriteString(styles.DimStyle.Render("  " + string(h.Tag)))
		b.WriteString("\n")
	}
	return styles.ModalStyle.Width(64).Render(b.String())
}

func (m Model) renderDeleteConfirmation() string {
	if m.pending == nil {
		return ""
	}
	content := styles.ModalTitleStyle.Render("Delete "+truncate(m.pending.GetTitle(), 40)+"?") + "\n" +
		styles.AccentStyle.Render("y") + styles.DimStyle.Render(" delete   ") +
		styles.AccentStyle.Render("n") + styles.DimStyle.Render(" cancel")
	return styles.ModalStyle.Render(content)
}

func (m Model) renderFooter() string {
	var left string
	if m.StatusMsg != "" {
		if m.StatusIsErr {
			left = styles.ErrorStyle.Render(m.StatusMsg)
		} else {
			left = styles.DimStyle.Render(m.StatusMsg)
		}
	}

	right := styles.AccentStyle.Render("?") + styles.DimStyle.Render(" help")

	gap := m.Width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	return left + strings.Repeat(" ", gap) + right
}

// renderHelp renders the help screen
func (m Model) renderHelp() string {
	help := `
NAVIGATION                      CONTENT
  j/k        Up/down               a      Activate
  enter/l    Open children         d      Deactivate
  h/←        Back                  x      Delete
  ]/[        Next/prev page        n      New entry
  g/G        Top/bottom            r      Refresh page
  tab        Switch pane           R      Refresh everything

SEARCH                          OTHER
  /          Filter this page      ?      Toggle help
  f          Search cached titles  q      Quit
  esc        Clear
`
	return styles.ModalStyle.Render(strings.TrimPrefix(help, "\n"))
}

// RenderSpinner renders the spinner frame
func RenderSpinner(frame int) string {
	frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	return styles.SpinnerStyle.Render(frames[frame%len(frames)])
}

// RenderError renders an inline error message
func RenderError(err error, width int) string {
	return styles.ErrorStyle.Render(truncate("Error: "+err.Error(), width))
}

func statusChar(item domain.ListItem) string {
	switch {
	case domain.IsPlaceholder(item.GetID()):
		return styles.PlaceholderChar
	case item.GetStatus() == domain.StatusActive:
		return styles.ActiveChar
	default:
		return styles.InactiveChar
	}
}

func statusDot(item domain.ListItem) string {
	switch {
	case domain.IsPlaceholder(item.GetID()):
		return styles.PlaceholderDot
	case item.GetStatus() == domain.StatusActive:
		return styles.ActiveDot
	default:
		return styles.InactiveDot
	}
}

// highlight underlines the matched rune positions of title
func highlight(title string, matched []int) string {
	if len(matched) == 0 {
		return title
	}
	set := make(map[int]bool, len(matched))
	for _, i := range matched {
		set[i] = true
	}
	var b strings.Builder
	for i, r := range []rune(title) {
		if set[i] {
			b.WriteString(styles.MatchStyle.Render(string(r)))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func truncate(s string, width int) string {
	if width <= 1 {
		return ""
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}
