package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// Viewport maps lon/lat bounds onto a pixel or cell grid, keeping the
// aspect ratio of the bound at its centre latitude.
type Viewport struct {
	Bound  orb.Bound
	Width  float64
	Height float64
	// Aspect scales vertical units, e.g. 0.5 for terminal cells which are
	// twice as tall as they are wide.
	Aspect float64

	scale   float64
	offsetX float64
	offsetY float64
	lonK    float64
}

// Fit builds a viewport showing b padded by pad (a fraction of its size).
func Fit(b orb.Bound, width, height, aspect, pad float64) Viewport {
	if aspect <= 0 {
		aspect = 1
	}
	w := b.Max[0] - b.Min[0]
	h := b.Max[1] - b.Min[1]
	if w <= 0 {
		w = 0.01
	}
	if h <= 0 {
		h = 0.01
	}
	b = orb.Bound{
		Min: orb.Point{b.Min[0] - w*pad, b.Min[1] - h*pad},
		Max: orb.Point{b.Max[0] + w*pad, b.Max[1] + h*pad},
	}

	v := Viewport{Bound: b, Width: width, Height: height, Aspect: aspect}
	v.lonK = math.Cos(b.Center()[1] * math.Pi / 180)
	if v.lonK < 0.1 {
		v.lonK = 0.1
	}
	spanX := (b.Max[0] - b.Min[0]) * v.lonK
	spanY := (b.Max[1] - b.Min[1]) * aspect
	v.scale = math.Min(width/spanX, height/spanY)
	v.offsetX = (width - spanX*v.scale) / 2
	v.offsetY = (height - spanY*v.scale) / 2
	return v
}

// ToPixel projects a lon/lat point.
func (v Viewport) ToPixel(p orb.Point) (x, y float64) {
	x = v.offsetX + (p[0]-v.Bound.Min[0])*v.lonK*v.scale
	y = v.offsetY + (v.Bound.Max[1]-p[1])*v.Aspect*v.scale
	return x, y
}

// FromPixel is the inverse of ToPixel.
func (v Viewport) FromPixel(x, y float64) orb.Point {
	if v.scale == 0 {
		return v.Bound.Center()
	}
	lon := v.Bound.Min[0] + (x-v.offsetX)/(v.lonK*v.scale)
	lat := v.Bound.Max[1] - (y-v.offsetY)/(v.Aspect*v.scale)
	return orb.Point{lon, lat}
}

// Rings returns the exterior rings of a polygonal geometry, projected.
func (v Viewport) Rings(g orb.Geometry) [][][2]float64 {
	var polys []orb.Polygon
	switch t := g.(type) {
	case orb.Polygon:
		polys = []orb.Polygon{t}
	case orb.MultiPolygon:
		polys = t
	default:
		return nil
	}
	var out [][][2]float64
	for _, p := range polys {
		if len(p) == 0 {
			continue
		}
		ring := make([][2]float64, 0, len(p[0]))
		for _, pt := range p[0] {
			x, y := v.ToPixel(pt)
			ring = append(ring, [2]float64{x, y})
		}
		out = append(out, ring)
	}
	return out
}
