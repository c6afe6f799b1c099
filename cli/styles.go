package cli

import "github.com/charmbracelet/lipgloss"

// Color palette
var (
	PrimaryColor = lipgloss.Color("#00D4FF") // Cyan
	AccentColor  = lipgloss.Color("#7C3AED") // Purple accent
	SuccessColor = lipgloss.Color("#10B981") // Green
	ErrorColor   = lipgloss.Color("#EF4444") // Red
	MutedColor   = lipgloss.Color("#9CA3AF") // Muted text
	DimColor     = lipgloss.Color("#6B7280") // Dim text
)

// styles are bound to one lipgloss renderer so color detection follows the
// writer they print to rather than os.Stdout.
type styles struct {
	header    lipgloss.Style
	user      lipgloss.Style
	assistant lipgloss.Style
	audio     lipgloss.Style
	info      lipgloss.Style
	err       lipgloss.Style
	current   lipgloss.Style
	muted     lipgloss.Style
	prompt    lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		header: r.NewStyle().
			Bold(true).
			Foreground(PrimaryColor),
		user: r.NewStyle().
			Bold(true).
			Foreground(AccentColor),
		assistant: r.NewStyle().
			Bold(true).
			Foreground(SuccessColor),
		audio: r.NewStyle().
			Foreground(MutedColor).
			Italic(true),
		info: r.NewStyle().
			Foreground(MutedColor),
		err: r.NewStyle().
			Bold(true).
			Foreground(ErrorColor),
		current: r.NewStyle().
			Bold(true).
			Foreground(PrimaryColor),
		muted: r.NewStyle().
			Foreground(DimColor),
		prompt: r.NewStyle().
			Foreground(PrimaryColor),
	}
}
