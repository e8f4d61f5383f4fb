// Package export writes static snapshots of a comparison: the shared map with
// each slot's polygon, and each slot's chart beside it.
package export

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"git.sr.ht/~sbinet/gg"
	svg "github.com/ajstarks/svgo"
	"github.com/paulmach/orb"
	"golang.org/x/image/font/basicfont"

	"github.com/vanderheijden86/civicmap/pkg/chart"
	"github.com/vanderheijden86/civicmap/pkg/geo"
	"github.com/vanderheijden86/civicmap/pkg/highlight"
	"github.com/vanderheijden86/civicmap/pkg/metrics"
)

// SnapshotOptions controls snapshot export.
type SnapshotOptions struct {
	Path   string // format inferred from extension when Format is empty
	Format string // "svg" or "png"
	Title  string
	Map    *highlight.Surface
	// Index, when set, draws every county as a faint outline behind the
	// slot layers.
	Index  *geo.Index
	Charts []chart.Config
}

var (
	colorBackdrop = color.RGBA{0xfa, 0xfa, 0xf7, 0xff}
	colorHeaderBG = color.RGBA{0xe8, 0xee, 0xf4, 0xff}
	colorOutline  = color.RGBA{0xc8, 0xc8, 0xc8, 0xff}
	colorText     = color.RGBA{0x22, 0x22, 0x22, 0xff}
	colorSubtle   = color.RGBA{0x66, 0x66, 0x66, 0xff}
	colorPanel    = color.RGBA{0xff, 0xff, 0xff, 0xff}
)

const (
	snapWidth  = 1100
	headerH    = 56
	mapW       = 620
	mapH       = 460
	chartW     = 440
	chartBlock = 150
	margin     = 20
)

// SaveSnapshot renders the map and charts to opts.Path.
func SaveSnapshot(opts SnapshotOptions) error {
	defer metrics.Timer(metrics.SnapshotExport)()
	if opts.Path == "" {
		return fmt.Errorf("output path is required")
	}
	if opts.Map == nil {
		return fmt.Errorf("nothing to export: no map")
	}

	format, path := inferFormat(opts.Format, opts.Path)
	if format != "svg" && format != "png" {
		return fmt.Errorf("unsupported format %q (want svg or png)", format)
	}
	opts.Path = path

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	l := buildLayout(opts)
	switch format {
	case "png":
		return renderPNG(opts, l)
	default:
		f, err := os.Create(opts.Path)
		if err != nil {
			return err
		}
		defer f.Close()
		return renderSVG(f, opts, l)
	}
}

func inferFormat(format, path string) (string, string) {
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	if format != "" {
		return format, path
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "png", path
	case ".svg":
		return "svg", path
	case "":
		return "svg", path + ".svg"
	default:
		return "svg", path
	}
}

type layout struct {
	width, height int
	view          geo.Viewport
	hasView       bool
}

func buildLayout(opts SnapshotOptions) layout {
	h := headerH + margin + mapH + margin
	if ch := headerH + margin + len(opts.Charts)*chartBlock + margin; ch > h {
		h = ch
	}
	l := layout{width: snapWidth, height: h}

	var b orb.Bound
	if v, ok := opts.Map.View(); ok {
		b, l.hasView = v, true
	}
	// Fit all layers, not only the last bound one.
	for i, layer := range opts.Map.Layers() {
		if i == 0 && !l.hasView {
			b = layer.Feature.Bound
		} else {
			b = b.Union(layer.Feature.Bound)
		}
		l.hasView = true
	}
	if !l.hasView && opts.Index != nil && opts.Index.Len() > 0 {
		b, l.hasView = opts.Index.Bound(), true
	}
	if l.hasView {
		l.view = geo.Fit(b, mapW, mapH, 1, 0.15)
	}
	return l
}

func title(opts SnapshotOptions) string {
	if opts.Title != "" {
		return opts.Title
	}
	var names []string
	for _, c := range opts.Charts {
		names = append(names, c.Title)
	}
	if len(names) == 0 {
		return "civicmap"
	}
	return strings.Join(names, " vs ")
}

func renderPNG(opts SnapshotOptions, l layout) error {
	dc := gg.NewContext(l.width, l.height)
	dc.SetColor(colorBackdrop)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	dc.SetColor(colorHeaderBG)
	dc.DrawRoundedRectangle(margin, 8, float64(l.width-2*margin), headerH-12, 10)
	dc.Fill()
	dc.SetColor(colorText)
	dc.DrawStringAnchored(title(opts), margin+16, 8+(headerH-12)/2, 0, 0.5)

	mx, my := float64(margin), float64(headerH+margin)
	dc.SetColor(colorPanel)
	dc.DrawRectangle(mx, my, mapW, mapH)
	dc.Fill()

	if l.hasView {
		dc.Push()
		dc.DrawRectangle(mx, my, mapW, mapH)
		dc.Clip()
		if opts.Index != nil {
			dc.SetColor(colorOutline)
			dc.SetLineWidth(0.5)
			for _, f := range opts.Index.Features() {
				tracePNG(dc, l.view.Rings(f.Geometry), mx, my)
				dc.Stroke()
			}
		}
		for _, layer := range opts.Map.Layers() {
			c := parseHex(layer.Current.Color)
			rings := l.view.Rings(layer.Feature.Geometry)
			tracePNG(dc, rings, mx, my)
			dc.SetColor(color.NRGBA{c.R, c.G, c.B, uint8(layer.Current.FillOpacity * 255)})
			dc.FillPreserve()
			dc.SetColor(c)
			dc.SetLineWidth(layer.Current.Weight)
			dc.Stroke()
		}
		dc.ResetClip()
		dc.Pop()
	} else {
		dc.SetColor(colorSubtle)
		dc.DrawStringAnchored("no polygons to show", mx+mapW/2, my+mapH/2, 0.5, 0.5)
	}

	cx := float64(margin + mapW + margin)
	for i, cfg := range opts.Charts {
		drawChartPNG(dc, cfg, cx, float64(headerH+margin+i*chartBlock), chartW, chartBlock-12)
	}

	return dc.SavePNG(opts.Path)
}

func tracePNG(dc *gg.Context, rings [][][2]float64, ox, oy float64) {
	for _, ring := range rings {
		dc.NewSubPath()
		for i, p := range ring {
			if i == 0 {
				dc.MoveTo(ox+p[0], oy+p[1])
			} else {
				dc.LineTo(ox+p[0], oy+p[1])
			}
		}
		dc.ClosePath()
	}
}

func drawChartPNG(dc *gg.Context, cfg chart.Config, x, y, w, h float64) {
	dc.SetColor(colorPanel)
	dc.DrawRoundedRectangle(x, y, w, h, 8)
	dc.Fill()
	dc.SetColor(colorText)
	dc.DrawStringAnchored(cfg.Title, x+10, y+14, 0, 0.5)
	if len(cfg.Series) == 0 || cfg.Series[0].Len() == 0 {
		return
	}
	s := cfg.Series[0]
	bar := parseHex(cfg.Color)
	peak := s.Max()
	rowH := (h - 28) / float64(s.Len())
	for j, label := range s.Labels {
		ry := y + 28 + float64(j)*rowH
		dc.SetColor(colorSubtle)
		dc.DrawStringAnchored(label, x+10, ry+rowH/2, 0, 0.5)
		bw := 0.0
		if peak > 0 {
			bw = s.Values[j] / peak * (w - 150)
		}
		dc.SetColor(bar)
		dc.DrawRectangle(x+110, ry+2, bw, rowH-4)
		dc.Fill()
		dc.SetColor(colorSubtle)
		dc.DrawStringAnchored(strconv.FormatFloat(s.Values[j], 'f', -1, 64), x+114+bw, ry+rowH/2, 0, 0.5)
	}
}

func renderSVG(w io.Writer, opts SnapshotOptions, l layout) error {
	canvas := svg.New(w)
	canvas.Start(l.width, l.height)
	canvas.Rect(0, 0, l.width, l.height, "fill:"+css(colorBackdrop))
	canvas.Roundrect(margin, 8, l.width-2*margin, headerH-12, 10, 10, "fill:"+css(colorHeaderBG))
	canvas.Text(margin+16, 8+(headerH-12)/2+5, title(opts),
		fmt.Sprintf("fill:%s;font-size:15px;font-family:sans-serif;font-weight:bold", css(colorText)))

	mx, my := margin, headerH+margin
	canvas.Rect(mx, my, mapW, mapH, "fill:"+css(colorPanel))
	if l.hasView {
		if opts.Index != nil {
			for _, f := range opts.Index.Features() {
				for _, ring := range l.view.Rings(f.Geometry) {
					xs, ys := ringInts(ring, mx, my)
					canvas.Polygon(xs, ys, fmt.Sprintf("fill:none;stroke:%s;stroke-width:0.5", css(colorOutline)))
				}
			}
		}
		for _, layer := range opts.Map.Layers() {
			st := layer.Current
			for _, ring := range l.view.Rings(layer.Feature.Geometry) {
				xs, ys := ringInts(ring, mx, my)
				canvas.Polygon(xs, ys, fmt.Sprintf("fill:%s;fill-opacity:%.2f;stroke:%s;stroke-width:%.1f",
					st.Color, st.FillOpacity, st.Color, st.Weight))
			}
		}
	} else {
		canvas.Text(mx+mapW/2, my+mapH/2, "no polygons to show",
			fmt.Sprintf("fill:%s;font-size:13px;font-family:sans-serif;text-anchor:middle", css(colorSubtle)))
	}

	cx := margin + mapW + margin
	for i, cfg := range opts.Charts {
		chart.DrawSVGInto(canvas, cfg, cx, headerH+margin+i*chartBlock, chartW, chartBlock-12)
	}
	canvas.End()
	return nil
}

func ringInts(ring [][2]float64, ox, oy int) ([]int, []int) {
	xs := make([]int, len(ring))
	ys := make([]int, len(ring))
	for i, p := range ring {
		xs[i] = ox + int(p[0])
		ys[i] = oy + int(p[1])
	}
	return xs, ys
}

// parseHex reads #rrggbb, falling back to slot A's blue.
func parseHex(s string) color.RGBA {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return color.RGBA{0x1f, 0x78, 0xb4, 0xff}
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{0x1f, 0x78, 0xb4, 0xff}
	}
	return color.RGBA{uint8(v >> 16), uint8(v >> 8), uint8(v), 0xff}
}

func css(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
