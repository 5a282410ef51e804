package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mmcdole/folio/internal/tui/styles"
)

// Field is one labelled line of an entry form.
type Field struct {
	Label       string
	Placeholder string
	Value       string
}

const formWidth = 48

// EntryForm collects the fields of a new entry. Enter on the last field
// submits; the caller validates and either hides the form or reports the
// problem with SetError.
type EntryForm struct {
	visible bool
	title   string
	target  string
	labels  []string
	inputs  []textinput.Model
	focus   int
	err     string
}

// NewEntryForm creates a hidden form.
func NewEntryForm() EntryForm {
	return EntryForm{}
}

func newFieldInput(f Field) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = f.Placeholder
	ti.CharLimit = 240
	ti.Width = formWidth - 2
	ti.Prompt = ""
	ti.TextStyle = lipgloss.NewStyle().Foreground(styles.White)
	ti.PlaceholderStyle = styles.DimStyle
	ti.SetValue(f.Value)
	return ti
}

// Show opens the form for target with the given fields, focusing the first.
func (f *EntryForm) Show(title, target string, fields []Field) {
	f.visible = true
	f.title = title
	f.target = target
	f.err = ""
	f.focus = 0
	f.labels = make([]string, 0, len(fields))
	f.inputs = make([]textinput.Model, 0, len(fields))
	for _, fd := range fields {
		f.labels = append(f.labels, fd.Label)
		f.inputs = append(f.inputs, newFieldInput(fd))
	}
	if len(f.inputs) > 0 {
		f.inputs[0].Focus()
	}
}

// Hide dismisses the form.
func (f *EntryForm) Hide() {
	f.visible = false
	for i := range f.inputs {
		f.inputs[i].Blur()
	}
}

func (f EntryForm) IsVisible() bool { return f.visible }

// Target returns the section name passed to Show.
func (f EntryForm) Target() string { return f.target }

// Values returns the trimmed field values in display order.
func (f EntryForm) Values() []string {
	out := make([]string, len(f.inputs))
	for i, in := range f.inputs {
		out[i] = strings.TrimSpace(in.Value())
	}
	return out
}

// SetError shows msg under the fields until the next keystroke.
func (f *EntryForm) SetError(msg string) { f.err = msg }

func (f *EntryForm) move(delta int) {
	if len(f.inputs) == 0 {
		return
	}
	f.inputs[f.focus].Blur()
	f.focus = (f.focus + delta + len(f.inputs)) % len(f.inputs)
	f.inputs[f.focus].Focus()
}

// Update handles input events and reports whether the form was submitted.
func (f EntryForm) Update(msg tea.Msg) (EntryForm, tea.Cmd, bool) {
	if !f.visible {
		return f, nil, false
	}

	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			f.Hide()
			return f, nil, false
		case "tab", "down":
			f.move(1)
			return f, nil, false
		case "shift+tab", "up":
			f.move(-1)
			return f, nil, false
		case "enter":
			if f.focus < len(f.inputs)-1 {
				f.move(1)
				return f, nil, false
			}
			return f, nil, true
		}
		f.err = ""
	}

	if len(f.inputs) == 0 {
		return f, nil, false
	}
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return f, cmd, false
}

// View renders the form.
func (f EntryForm) View() string {
	if !f.visible {
		return ""
	}

	bg := lipgloss.NewStyle().Width(formWidth).Background(styles.SlateDark)
	label := bg.Foreground(styles.LightGray)
	focused := bg.Foreground(styles.Accent).Bold(true)

	rows := []string{bg.Foreground(styles.White).Bold(true).Render(f.title), bg.Render("")}
	for i, in := range f.inputs {
		l := label
		if i == f.focus {
			l = focused
		}
		rows = append(rows, l.Render(f.labels[i]), bg.Render(in.View()))
	}
	if f.err != "" {
		rows = append(rows, bg.Render(""), bg.Foreground(styles.Red).Render(f.err))
	}
	rows = append(rows, bg.Render(""), bg.Foreground(styles.DimGray).Render("tab next · enter save · esc cancel"))

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Accent).
		Background(styles.SlateDark).
		Padding(1, 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
