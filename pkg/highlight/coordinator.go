package highlight

import (
	"go.uber.org/zap"

	"github.com/vanderheijden86/civicmap/pkg/geo"
	"github.com/vanderheijden86/civicmap/pkg/logging"
	"github.com/vanderheijden86/civicmap/pkg/model"
	"github.com/vanderheijden86/civicmap/pkg/slot"
)

// Default styles of the comparison panels.
var (
	DefaultStyleA = Style{Color: "#1f78b4", Weight: 2, FillOpacity: 0.2}
	DefaultStyleB = Style{Color: "#33a02c", Weight: 2, FillOpacity: 0.2}
	// DefaultEmphasis applies on hover; the slot keeps its own colour.
	DefaultEmphasis = Style{Weight: 5, FillOpacity: 0.35}
)

// Coordinator owns the map surface's layers. It is driven from the update
// loop only, after a bind or clear has completed.
type Coordinator struct {
	surface  *Surface
	index    *geo.Index
	styles   map[slot.Name]Style
	emphasis Style
	logger   *zap.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithStyle sets a slot's base style.
func WithStyle(name slot.Name, s Style) Option {
	return func(c *Coordinator) { c.styles[name] = s }
}

// WithEmphasis sets the hover weight and fill opacity.
func WithEmphasis(s Style) Option {
	return func(c *Coordinator) { c.emphasis = s }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// NewCoordinator draws on surface using polygons from index.
func NewCoordinator(surface *Surface, index *geo.Index, opts ...Option) *Coordinator {
	c := &Coordinator{
		surface:  surface,
		index:    index,
		styles:   map[slot.Name]Style{slot.A: DefaultStyleA, slot.B: DefaultStyleB},
		emphasis: DefaultEmphasis,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrNop(c.logger).Named("highlight")
	return c
}

// Surface returns the map being drawn.
func (c *Coordinator) Surface() *Surface { return c.surface }

// Index returns the polygon index in use.
func (c *Coordinator) Index() *geo.Index { return c.index }

// BaseStyle returns a slot's base style; unknown slots use A's.
func (c *Coordinator) BaseStyle(name slot.Name) Style {
	if s, ok := c.styles[name]; ok {
		return s
	}
	return DefaultStyleA
}

// UpdateMap replaces the slot's layer with one for e and fits the view to
// it. A nil entity removes the layer. An entity with no polygon leaves the
// slot without a layer and returns false.
func (c *Coordinator) UpdateMap(name slot.Name, e *model.Entity) bool {
	c.drop(name)
	if e == nil {
		return false
	}
	f, ok := c.index.Lookup(e.ID)
	if !ok {
		c.logger.Debug("no polygon for entity", zap.String("slot", string(name)), zap.String("id", e.ID))
		return false
	}
	base := c.BaseStyle(name)
	c.surface.put(&Layer{Slot: name, ID: f.ID, Feature: f, Base: base, Current: base})
	c.surface.SetView(f.Bound)
	return true
}

// Remove drops the slot's layer only. Emphasis it spread to layers of the
// same entity is undone first.
func (c *Coordinator) Remove(name slot.Name) bool {
	return c.drop(name)
}

func (c *Coordinator) drop(name slot.Name) bool {
	c.HoverLeave(name)
	return c.surface.remove(name)
}

// HoverEnter emphasizes the slot's layer and every layer showing the same
// entity. It returns the slots affected.
func (c *Coordinator) HoverEnter(name slot.Name) []slot.Name {
	return c.forSameEntity(name, func(l *Layer) {
		l.Current = Style{Color: l.Base.Color, Weight: c.emphasis.Weight, FillOpacity: c.emphasis.FillOpacity}
	})
}

// HoverLeave restores each affected layer to its own slot's base style.
func (c *Coordinator) HoverLeave(name slot.Name) []slot.Name {
	return c.forSameEntity(name, func(l *Layer) { l.Current = l.Base })
}

func (c *Coordinator) forSameEntity(name slot.Name, fn func(*Layer)) []slot.Name {
	src := c.surface.Layer(name)
	if src == nil {
		return nil
	}
	var touched []slot.Name
	for _, l := range c.surface.Layers() {
		if l.ID == src.ID {
			fn(l)
			touched = append(touched, l.Slot)
		}
	}
	return touched
}

// Reset removes every layer and the fitted view.
func (c *Coordinator) Reset() {
	c.surface.clear()
}

// SetIndex swaps in a reloaded polygon index. Layers are re-pointed at the
// new polygons; layers whose entity vanished from the file are dropped.
func (c *Coordinator) SetIndex(idx *geo.Index) {
	c.index = idx
	for _, l := range c.surface.Layers() {
		f, ok := idx.Lookup(l.ID)
		if !ok {
			c.drop(l.Slot)
			continue
		}
		l.Feature = f
	}
}
