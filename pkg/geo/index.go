// Package geo loads county polygons and normalizes their identifiers so the
// rest of the application can look features up by entity id.
package geo

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/vanderheijden86/civicmap/pkg/metrics"
	"github.com/vanderheijden86/civicmap/pkg/model"
)

// idProperties are tried in order; source files disagree on casing.
var idProperties = []string{"GEOID", "geoid"}

// Feature is one county polygon keyed by its normalized id.
type Feature struct {
	ID       string
	Name     string
	Geometry orb.Geometry
	Bound    orb.Bound
}

// Contains reports whether pt lies inside the feature's polygon(s).
func (f *Feature) Contains(pt orb.Point) bool {
	if f == nil || !f.Bound.Contains(pt) {
		return false
	}
	switch g := f.Geometry.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, pt)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, pt)
	default:
		return false
	}
}

// Unmatched records a feature whose identifier was missing or malformed.
type Unmatched struct {
	Index  int
	Reason string
}

// Index maps normalized ids to features.
type Index struct {
	byID      map[string]*Feature
	ordered   []*Feature
	unmatched []Unmatched
	bound     orb.Bound
}

// Load parses a GeoJSON feature collection.
func Load(data []byte) (*Index, error) {
	defer metrics.Timer(metrics.GeoLoad)()

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parsing geojson: %w", err)
	}

	idx := &Index{byID: make(map[string]*Feature, len(fc.Features))}
	first := true
	for i, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			idx.unmatched = append(idx.unmatched, Unmatched{Index: i, Reason: "no geometry"})
			continue
		}
		id, ok := featureID(f.Properties)
		if !ok {
			idx.unmatched = append(idx.unmatched, Unmatched{Index: i, Reason: "missing or malformed GEOID"})
			continue
		}
		feat := &Feature{
			ID:       id,
			Name:     f.Properties.MustString("NAME", ""),
			Geometry: f.Geometry,
			Bound:    f.Geometry.Bound(),
		}
		if _, dup := idx.byID[id]; dup {
			idx.unmatched = append(idx.unmatched, Unmatched{Index: i, Reason: "duplicate GEOID " + id})
			continue
		}
		idx.byID[id] = feat
		idx.ordered = append(idx.ordered, feat)
		if first {
			idx.bound = feat.Bound
			first = false
		} else {
			idx.bound = idx.bound.Union(feat.Bound)
		}
	}
	return idx, nil
}

// featureID extracts and normalizes the GEOID property. Numeric values are
// accepted since some exports drop the leading zeros and the quotes.
func featureID(props geojson.Properties) (string, bool) {
	for _, key := range idProperties {
		raw, ok := props[key]
		if !ok || raw == nil {
			continue
		}
		var s string
		switch v := raw.(type) {
		case string:
			s = strings.TrimSpace(v)
		case float64:
			if v < 0 || v != math.Trunc(v) {
				return "", false
			}
			s = strconv.FormatFloat(v, 'f', 0, 64)
		case int:
			s = strconv.Itoa(v)
		default:
			return "", false
		}
		if !model.IsDigits(s) {
			return "", false
		}
		return model.NormalizeID(s), true
	}
	return "", false
}

// Lookup finds the feature for an entity id in any padding.
func (idx *Index) Lookup(id string) (*Feature, bool) {
	if idx == nil {
		return nil, false
	}
	f, ok := idx.byID[model.NormalizeID(id)]
	return f, ok
}

// Len returns the number of indexed features.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.ordered)
}

// Features returns the indexed features in file order.
func (idx *Index) Features() []*Feature {
	if idx == nil {
		return nil
	}
	return idx.ordered
}

// Unmatched lists features that could not be indexed.
func (idx *Index) Unmatched() []Unmatched {
	if idx == nil {
		return nil
	}
	return idx.unmatched
}

// Bound is the union of all indexed feature bounds.
func (idx *Index) Bound() orb.Bound {
	if idx == nil {
		return orb.Bound{}
	}
	return idx.bound
}

// FeatureAt returns the first feature containing pt among ids, in the given
// order. Restricting the search keeps canvas rendering proportional to the
// number of drawn layers.
func (idx *Index) FeatureAt(pt orb.Point, ids ...string) (*Feature, bool) {
	for _, id := range ids {
		if f, ok := idx.Lookup(id); ok && f.Contains(pt) {
			return f, true
		}
	}
	return nil, false
}

// IDs returns all indexed ids, sorted.
func (idx *Index) IDs() []string {
	ids := make([]string, 0, idx.Len())
	for _, f := range idx.Features() {
		ids = append(ids, f.ID)
	}
	sort.Strings(ids)
	return ids
}
