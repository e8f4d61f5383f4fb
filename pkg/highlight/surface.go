// Package highlight keeps the shared map surface in step with slot bindings
// and mirrors hover emphasis between slots showing the same entity.
package highlight

import (
	"github.com/paulmach/orb"

	"github.com/vanderheijden86/civicmap/pkg/geo"
	"github.com/vanderheijden86/civicmap/pkg/slot"
)

// Style is how a polygon layer is drawn.
type Style struct {
	Color       string
	Weight      float64
	FillOpacity float64
}

// Layer is one slot's polygon on the map.
type Layer struct {
	Slot    slot.Name
	ID      string
	Feature *geo.Feature
	Base    Style
	Current Style
}

// Emphasized reports whether the layer is drawn in its hover style.
func (l *Layer) Emphasized() bool {
	return l.Current != l.Base
}

// Surface is the single shared map. It holds at most one layer per slot;
// two slots bound to the same entity get independent layers.
type Surface struct {
	layers  map[slot.Name]*Layer
	order   []slot.Name
	view    orb.Bound
	hasView bool
}

// NewSurface returns an empty map.
func NewSurface() *Surface {
	return &Surface{layers: make(map[slot.Name]*Layer)}
}

// Layer returns the slot's layer, or nil.
func (s *Surface) Layer(name slot.Name) *Layer {
	return s.layers[name]
}

// Layers returns layers in the order they were added.
func (s *Surface) Layers() []*Layer {
	out := make([]*Layer, 0, len(s.order))
	for _, n := range s.order {
		out = append(out, s.layers[n])
	}
	return out
}

// Len returns the number of layers.
func (s *Surface) Len() int { return len(s.order) }

// View returns the bound the map is fitted to and whether one was set.
func (s *Surface) View() (orb.Bound, bool) {
	return s.view, s.hasView
}

// SetView fits the map to b.
func (s *Surface) SetView(b orb.Bound) {
	s.view = b
	s.hasView = true
}

func (s *Surface) put(l *Layer) {
	if _, ok := s.layers[l.Slot]; !ok {
		s.order = append(s.order, l.Slot)
	}
	s.layers[l.Slot] = l
}

func (s *Surface) remove(name slot.Name) bool {
	if _, ok := s.layers[name]; !ok {
		return false
	}
	delete(s.layers, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *Surface) clear() {
	s.layers = make(map[slot.Name]*Layer)
	s.order = nil
	s.hasView = false
	s.view = orb.Bound{}
}
