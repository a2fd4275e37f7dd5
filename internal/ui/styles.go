package ui

import "github.com/charmbracelet/lipgloss"

// Semantic color palette.
var (
	colorPrimary    = lipgloss.Color("#00BFFF") // Cyan: headers
	colorAccent     = lipgloss.Color("#FFD700") // Gold: warnings
	colorSuccess    = lipgloss.Color("#00E676") // Green: completed
	colorDanger     = lipgloss.Color("#FF5252") // Red: critical
	colorMuted      = lipgloss.Color("#636363") // Gray: de-emphasized
	colorMutedLight = lipgloss.Color("#8C8C8C") // Lighter gray: labels
	colorBlue       = lipgloss.Color("#5B8DEF") // Blue: in progress
)

// Status icons.
const (
	iconDone     = "✓"
	iconFailed   = "✗"
	iconWorking  = "◎"
	iconWaiting  = "·"
	iconWarning  = "⚠"
	iconCritical = "◆"
)

// styles holds every style the printer uses. With color disabled every
// style is empty and renders text unchanged.
type styles struct {
	header   lipgloss.Style
	section  lipgloss.Style
	label    lipgloss.Style
	muted    lipgloss.Style
	success  lipgloss.Style
	warning  lipgloss.Style
	danger   lipgloss.Style
	active   lipgloss.Style
	critical lipgloss.Style
}

func newStyles(r *lipgloss.Renderer, color bool) styles {
	if !color {
		plain := r.NewStyle()
		return styles{
			header: plain, section: plain, label: plain, muted: plain,
			success: plain, warning: plain, danger: plain, active: plain, critical: plain,
		}
	}
	return styles{
		header:   r.NewStyle().Bold(true).Foreground(colorPrimary),
		section:  r.NewStyle().Bold(true),
		label:    r.NewStyle().Foreground(colorMutedLight),
		muted:    r.NewStyle().Foreground(colorMuted),
		success:  r.NewStyle().Foreground(colorSuccess),
		warning:  r.NewStyle().Foreground(colorAccent),
		danger:   r.NewStyle().Bold(true).Foreground(colorDanger),
		active:   r.NewStyle().Foreground(colorBlue),
		critical: r.NewStyle().Foreground(colorDanger),
	}
}
