package styles

import "github.com/charmbracelet/lipgloss"

// Color palette
var (
	Accent     = lipgloss.Color("#6D5DFC")
	SlateDark  = lipgloss.Color("#1F2937")
	SlateLight = lipgloss.Color("#374151")
	DimGray    = lipgloss.Color("#6B7280")
	LightGray  = lipgloss.Color("#9CA3AF")
	White      = lipgloss.Color("#F9FAFB")
	Green      = lipgloss.Color("#10B981")
	Red        = lipgloss.Color("#EF4444")
	Amber      = lipgloss.Color("#F59E0B")
)

// Borders
var (
	ActiveBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Accent)

	InactiveBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(DimGray)
)

// Text styles
var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(White).
			Bold(true)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(LightGray)

	DimStyle = lipgloss.NewStyle().
			Foreground(DimGray)

	AccentStyle = lipgloss.NewStyle().
			Foreground(Accent)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Red)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(Accent)

	MatchStyle = lipgloss.NewStyle().
			Foreground(Accent).
			Underline(true)
)

// Raw status characters (unstyled)
const (
	ActiveChar      = "●"
	InactiveChar    = "○"
	PlaceholderChar = "◌"
)

// Status indicator styles
var (
	ActiveStyle      = lipgloss.NewStyle().Foreground(Green)
	InactiveStyle    = lipgloss.NewStyle().Foreground(DimGray)
	PlaceholderStyle = lipgloss.NewStyle().Foreground(Amber)
)

// Pre-rendered status indicators
var (
	ActiveDot      = ActiveStyle.Render(ActiveChar)
	InactiveDot    = InactiveStyle.Render(InactiveChar)
	PlaceholderDot = PlaceholderStyle.Render(PlaceholderChar)
)

// List item styles
var (
	SelectedItemStyle = lipgloss.NewStyle().
				Foreground(White).
				Background(SlateLight).
				Padding(0, 1)

	NormalItemStyle = lipgloss.NewStyle().
			Foreground(LightGray).
			Padding(0, 1)
)

// Modal styles
var (
	ModalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Accent).
			Padding(1, 2).
			Background(SlateDark)

	ModalTitleStyle = lipgloss.NewStyle().
			Foreground(White).
			Bold(true).
			MarginBottom(1)
)
