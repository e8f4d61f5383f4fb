package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/paulmach/orb"

	"github.com/vanderheijden86/civicmap/pkg/geo"
	"github.com/vanderheijden86/civicmap/pkg/highlight"
	"github.com/vanderheijden86/civicmap/pkg/metrics"
)

// Terminal cells are about twice as tall as they are wide.
const cellAspect = 0.5

const (
	glyphFill     = "░"
	glyphEmphasis = "▓"
	glyphShared   = "█"
	glyphEmpty    = " "
)

// renderMap rasterizes the map surface's layers into a width x height block
// of cells. Cells inside a layer's polygon take the layer's colour; cells
// covered by more than one layer (the same county in both slots) are drawn
// solid.
func renderMap(surf *highlight.Surface, width, height int, t Theme) string {
	defer metrics.Timer(metrics.MapRender)()
	if width <= 0 || height <= 0 {
		return ""
	}
	layers := surf.Layers()
	if len(layers) == 0 {
		return placeholder("No county on the map", width, height, t)
	}

	var b orb.Bound
	if v, ok := surf.View(); ok {
		b = v
	} else {
		b = layers[0].Feature.Bound
	}
	for _, l := range layers {
		b = b.Union(l.Feature.Bound)
	}
	vp := geo.Fit(b, float64(width), float64(height), cellAspect, 0.1)

	styles := make([]lipgloss.Style, len(layers))
	for i, l := range layers {
		styles[i] = t.Renderer.NewStyle().Foreground(ThemeFg(l.Current.Color))
	}

	var out strings.Builder
	for row := 0; row < height; row++ {
		if row > 0 {
			out.WriteByte('\n')
		}
		for col := 0; col < width; col++ {
			pt := vp.FromPixel(float64(col)+0.5, float64(row)+0.5)
			hit, hits := -1, 0
			for i, l := range layers {
				if l.Feature.Contains(pt) {
					hit = i
					hits++
				}
			}
			switch {
			case hits == 0:
				out.WriteString(glyphEmpty)
			case hits > 1:
				out.WriteString(styles[hit].Render(glyphShared))
			case layers[hit].Emphasized():
				out.WriteString(styles[hit].Render(glyphEmphasis))
			default:
				out.WriteString(styles[hit].Render(glyphFill))
			}
		}
	}
	return out.String()
}

func placeholder(msg string, width, height int, t Theme) string {
	return t.Renderer.NewStyle().
		Width(width).
		Height(height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(t.Muted).
		Render(truncate(msg, width))
}
