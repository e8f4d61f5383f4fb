package chart

import (
	"bytes"
	"fmt"
	"io"

	svg "github.com/ajstarks/svgo"
)

// SVGSurface renders grouped bars as a standalone SVG document.
type SVGSurface struct {
	buf       bytes.Buffer
	destroyed bool
}

// NewSVGSurface is a Factory for SVG charts.
func NewSVGSurface() Surface { return &SVGSurface{} }

// Render draws cfg.
func (s *SVGSurface) Render(cfg Config) error {
	s.buf.Reset()
	w, h := cfg.Width, cfg.Height
	if w <= 0 {
		w = 480
	}
	if h <= 0 {
		h = 160 * max(len(cfg.Series), 1)
	}
	DrawSVG(&s.buf, cfg, 0, 0, w, h)
	return nil
}

// DrawSVG writes a complete SVG chart of size w x h at (x, y) to out. It is
// shared with the snapshot exporter, which embeds charts beside the map.
func DrawSVG(out io.Writer, cfg Config, x, y, w, h int) {
	canvas := svg.New(out)
	canvas.Start(w, h)
	canvas.Rect(x, y, w, h, "fill:#ffffff")
	DrawSVGInto(canvas, cfg, x, y, w, h)
	canvas.End()
}

// DrawSVGInto draws the bars onto an existing canvas.
func DrawSVGInto(canvas *svg.SVG, cfg Config, x, y, w, h int) {
	color := cfg.Color
	if color == "" {
		color = "#1f78b4"
	}
	n := max(len(cfg.Series), 1)
	block := h / n
	for i, series := range cfg.Series {
		top := y + i*block
		canvas.Text(x+8, top+16, series.Title, "font-family:sans-serif;font-size:12px;font-weight:bold;fill:#333")
		if series.Len() == 0 {
			canvas.Text(x+8, top+36, "no data", "font-family:sans-serif;font-size:11px;fill:#888")
			continue
		}
		plotTop := top + 24
		plotH := block - 44
		if plotH < 10 {
			plotH = 10
		}
		barSlot := (w - 16) / series.Len()
		barW := max(barSlot*6/10, 2)
		peak := series.Max()
		for j, label := range series.Labels {
			bh := 0
			if peak > 0 {
				bh = int(series.Values[j] / peak * float64(plotH))
			}
			bx := x + 8 + j*barSlot + (barSlot-barW)/2
			canvas.Rect(bx, plotTop+plotH-bh, barW, bh, fmt.Sprintf("fill:%s;fill-opacity:0.85", color))
			canvas.Text(bx+barW/2, plotTop+plotH+12, label, "font-family:sans-serif;font-size:9px;text-anchor:middle;fill:#555")
		}
		canvas.Line(x+8, plotTop+plotH, x+w-8, plotTop+plotH, "stroke:#999;stroke-width:1")
	}
}

// Bytes returns the SVG document, or nil once destroyed.
func (s *SVGSurface) Bytes() []byte {
	if s.destroyed {
		return nil
	}
	return s.buf.Bytes()
}

// Destroy releases the document.
func (s *SVGSurface) Destroy() {
	s.destroyed = true
	s.buf.Reset()
}
