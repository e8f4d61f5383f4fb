package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/civicmap/pkg/model"
)

// ══════════════════════════════════════════════════════════════════════════════
// COLOR PALETTE - Adaptive colors for light and dark terminals
// ══════════════════════════════════════════════════════════════════════════════

var (
	ColorBgSubtle    = lipgloss.AdaptiveColor{Light: "#E8E8E8", Dark: "#363949"}
	ColorBgHighlight = lipgloss.AdaptiveColor{Light: "#D0D0D0", Dark: "#44475A"}
	ColorText        = lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#F8F8F2"}
	ColorMuted       = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#6272A4"}

	ColorPrimary = lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"}
	ColorInfo    = lipgloss.AdaptiveColor{Light: "#006080", Dark: "#8BE9FD"}
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#007700", Dark: "#50FA7B"}
	ColorWarning = lipgloss.AdaptiveColor{Light: "#B06800", Dark: "#FFB86C"}
	ColorDanger  = lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"}

	ColorSuccessBg = lipgloss.AdaptiveColor{Light: "#D4EDDA", Dark: "#1A3D2A"}
	ColorDangerBg  = lipgloss.AdaptiveColor{Light: "#F8D7DA", Dark: "#3D1A1A"}

	// Urbanicity badge colours.
	ColorUrban    = lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"}
	ColorSuburban = lipgloss.AdaptiveColor{Light: "#006080", Dark: "#8BE9FD"}
	ColorRural    = lipgloss.AdaptiveColor{Light: "#007700", Dark: "#50FA7B"}
)

// ══════════════════════════════════════════════════════════════════════════════
// PANEL STYLES
// ══════════════════════════════════════════════════════════════════════════════

var (
	// PanelStyle is the default style for unfocused panels
	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBgHighlight).
			Padding(0, 1)

	// FocusedPanelStyle is the style for the panel holding keyboard focus
	FocusedPanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(ColorPrimary).
				Padding(0, 1)
)

// RenderUrbanicityBadge returns a short coloured class label.
func RenderUrbanicityBadge(u model.Urbanicity) string {
	var fg lipgloss.AdaptiveColor
	var label string
	switch u {
	case model.Urban:
		fg, label = ColorUrban, "URB"
	case model.Suburban:
		fg, label = ColorSuburban, "SUB"
	case model.Rural:
		fg, label = ColorRural, "RUR"
	default:
		fg, label = ColorMuted, "???"
	}
	return lipgloss.NewStyle().
		Foreground(fg).
		Background(ColorBgSubtle).
		Bold(true).
		Render(label)
}

// RenderMiniBar renders a mini horizontal bar for a value between 0 and 1
func RenderMiniBar(value float64, width int, t Theme) string {
	if width <= 0 {
		return ""
	}
	value = min(max(value, 0), 1)
	filled := min(int(value*float64(width)), width)

	var barColor lipgloss.AdaptiveColor
	switch {
	case value >= 0.75:
		barColor = ColorSuccess
	case value >= 0.5:
		barColor = ColorWarning
	case value >= 0.25:
		barColor = ColorInfo
	default:
		barColor = t.Secondary
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return t.Renderer.NewStyle().Foreground(barColor).Render(bar)
}

// RenderRankBadge renders a rank like "#3/58" coloured by how high it is.
func RenderRankBadge(rank, total int) string {
	if rank <= 0 {
		return lipgloss.NewStyle().Foreground(ColorMuted).Render("#?")
	}
	label := fmt.Sprintf("#%d", rank)
	if total > 0 {
		label = fmt.Sprintf("#%d/%d", rank, total)
	}
	color := ColorMuted
	if total > 0 {
		switch pct := float64(rank) / float64(total); {
		case pct <= 0.1:
			color = ColorSuccess
		case pct <= 0.25:
			color = ColorInfo
		case pct <= 0.5:
			color = ColorWarning
		}
	}
	return lipgloss.NewStyle().Foreground(color).Render(label)
}

// RenderGap renders a signed state gap, green when A leads.
func RenderGap(v float64) string {
	color := ColorMuted
	switch {
	case v > 0:
		color = ColorSuccess
	case v < 0:
		color = ColorDanger
	}
	return lipgloss.NewStyle().Foreground(color).Render(fmt.Sprintf("%+.2f", v))
}

// RenderDivider renders a horizontal divider line
func RenderDivider(width int) string {
	if width <= 0 {
		return ""
	}
	return lipgloss.NewStyle().
		Foreground(ColorBgHighlight).
		Render(strings.Repeat("─", width))
}

// RenderStatus renders the footer status message.
func RenderStatus(msg string, isErr bool, width int) string {
	style := lipgloss.NewStyle().
		Background(ColorSuccessBg).
		Foreground(ColorSuccess).
		Bold(true).
		Padding(0, 2)
	prefix := "✓ "
	if isErr {
		style = style.Background(ColorDangerBg).Foreground(ColorDanger)
		prefix = "✗ "
	}
	section := style.Render(truncate(prefix+msg, max(width-4, 1)))
	remaining := max(width-lipgloss.Width(section), 0)
	return lipgloss.JoinHorizontal(lipgloss.Bottom, section, lipgloss.NewStyle().Width(remaining).Render(""))
}
