package chart

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

const (
	barRune       = "█"
	defaultWidth  = 40
	maxLabelWidth = 16
)

// TermSurface renders horizontal bars as styled terminal text.
type TermSurface struct {
	out       string
	destroyed bool
}

// NewTermSurface is a Factory for terminal charts.
func NewTermSurface() Surface { return &TermSurface{} }

// Render draws cfg.
func (t *TermSurface) Render(cfg Config) error {
	width := cfg.Width
	if width <= 0 {
		width = defaultWidth
	}
	bar := lipgloss.NewStyle()
	if cfg.Color != "" {
		bar = bar.Foreground(lipgloss.Color(cfg.Color))
	}
	title := lipgloss.NewStyle().Bold(true)

	var b strings.Builder
	for i, s := range cfg.Series {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(title.Render(runewidth.Truncate(s.Title, width, "…")))
		b.WriteString("\n")
		if s.Len() == 0 {
			b.WriteString("  (no data)\n")
			continue
		}

		labelW := 0
		for _, l := range s.Labels {
			labelW = max(labelW, runewidth.StringWidth(l))
		}
		labelW = min(labelW, maxLabelWidth)

		peak := s.Max()
		valueW := 9
		barW := max(width-labelW-valueW-2, 1)
		for j, l := range s.Labels {
			v := s.Values[j]
			n := 0
			if peak > 0 {
				n = int(math.Round(v / peak * float64(barW)))
			}
			label := runewidth.FillRight(runewidth.Truncate(l, labelW, "…"), labelW)
			fmt.Fprintf(&b, "%s %s%s %s\n",
				label,
				bar.Render(strings.Repeat(barRune, n)),
				strings.Repeat(" ", barW-n),
				formatValue(v))
		}
	}
	t.out = strings.TrimRight(b.String(), "\n")
	return nil
}

// View returns the rendered chart, or "" once destroyed.
func (t *TermSurface) View() string {
	if t.destroyed {
		return ""
	}
	return t.out
}

// Destroy releases the rendered text.
func (t *TermSurface) Destroy() {
	t.destroyed = true
	t.out = ""
}

// Destroyed reports whether Destroy was called.
func (t *TermSurface) Destroyed() bool { return t.destroyed }

func formatValue(v float64) string {
	switch {
	case math.Abs(v) >= 1e6:
		return fmt.Sprintf("%.1fM", v/1e6)
	case math.Abs(v) >= 1e4:
		return fmt.Sprintf("%.1fk", v/1e3)
	case v == math.Trunc(v):
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}
