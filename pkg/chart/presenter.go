// Package chart draws one categorical bar chart per bound slot. A chart is
// never updated in place: every render destroys the old surface and builds
// a new one.
package chart

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/vanderheijden86/civicmap/pkg/logging"
	"github.com/vanderheijden86/civicmap/pkg/metrics"
	"github.com/vanderheijden86/civicmap/pkg/model"
	"github.com/vanderheijden86/civicmap/pkg/slot"
)

// Config describes one chart.
type Config struct {
	Slot   slot.Name
	Title  string
	Series []model.Series
	Color  string
	Width  int
	Height int
}

// Surface is a drawable chart. Render is called exactly once per surface.
type Surface interface {
	Render(cfg Config) error
	Destroy()
}

// Factory creates a fresh surface.
type Factory func() Surface

// Presenter owns the chart surface of each slot.
type Presenter struct {
	factory  Factory
	surfaces map[slot.Name]Surface
	logger   *zap.Logger
}

// NewPresenter creates surfaces with factory.
func NewPresenter(factory Factory, logger *zap.Logger) *Presenter {
	return &Presenter{
		factory:  factory,
		surfaces: make(map[slot.Name]Surface),
		logger:   logging.OrNop(logger).Named("chart"),
	}
}

// Render replaces the slot's chart with a new one drawn from cfg. The new
// surface is kept even if drawing fails so that a bound slot always has one.
func (p *Presenter) Render(name slot.Name, cfg Config) error {
	defer metrics.Timer(metrics.ChartRender)()
	p.Destroy(name)

	cfg.Slot = name
	s := p.factory()
	p.surfaces[name] = s
	if err := s.Render(cfg); err != nil {
		p.logger.Warn("chart render failed", zap.String("slot", string(name)), zap.Error(err))
		return fmt.Errorf("rendering chart for slot %s: %w", name, err)
	}
	return nil
}

// Destroy releases the slot's chart, if any.
func (p *Presenter) Destroy(name slot.Name) {
	if s, ok := p.surfaces[name]; ok {
		s.Destroy()
		delete(p.surfaces, name)
	}
}

// DestroyAll releases every chart.
func (p *Presenter) DestroyAll() {
	for name := range p.surfaces {
		p.Destroy(name)
	}
}

// Has reports whether the slot has a chart.
func (p *Presenter) Has(name slot.Name) bool {
	_, ok := p.surfaces[name]
	return ok
}

// Surface returns the slot's chart, or nil.
func (p *Presenter) Surface(name slot.Name) Surface {
	return p.surfaces[name]
}

// Len returns the number of live charts.
func (p *Presenter) Len() int { return len(p.surfaces) }

// ConfigFor builds the standard chart of an entity: engagement totals, then
// the organization breakdown when the entity has one.
func ConfigFor(e *model.Entity, color string) Config {
	cfg := Config{Title: e.Display(), Color: color}
	cfg.Series = append(cfg.Series, model.EngagementSeries(e))
	if org := model.OrgTypeSeries(e); org.Len() > 0 {
		cfg.Series = append(cfg.Series, org)
	}
	return cfg
}
