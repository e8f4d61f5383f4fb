package highlight_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanderheijden86/civicmap/pkg/geo"
	"github.com/vanderheijden86/civicmap/pkg/highlight"
	"github.com/vanderheijden86/civicmap/pkg/model"
	"github.com/vanderheijden86/civicmap/pkg/slot"
)

const counties = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"GEOID":"06075"},
  "geometry":{"type":"Polygon","coordinates":[[[-123,37],[-122,37],[-122,38],[-123,38],[-123,37]]]}},
 {"type":"Feature","properties":{"GEOID":"1001"},
  "geometry":{"type":"Polygon","coordinates":[[[-87,32],[-86,32],[-86,33],[-87,33],[-87,32]]]}}
]}`

func newCoordinator(t *testing.T) *highlight.Coordinator {
	t.Helper()
	idx, err := geo.Load([]byte(counties))
	require.NoError(t, err)
	return highlight.NewCoordinator(highlight.NewSurface(), idx)
}

func county(id string) *model.Entity {
	return &model.Entity{ID: id, Kind: model.KindCounty}
}

func TestUpdateMapAddsLayerAndFitsView(t *testing.T) {
	c := newCoordinator(t)

	require.True(t, c.UpdateMap(slot.A, county("06075")))
	l := c.Surface().Layer(slot.A)
	require.NotNil(t, l)
	assert.Equal(t, highlight.DefaultStyleA, l.Current)

	view, ok := c.Surface().View()
	require.True(t, ok)
	assert.Equal(t, l.Feature.Bound, view)

	// Rebinding replaces the layer rather than adding one.
	require.True(t, c.UpdateMap(slot.A, county("01001")))
	assert.Equal(t, 1, c.Surface().Len())
	assert.Equal(t, "01001", c.Surface().Layer(slot.A).ID)
}

func TestNoMatchLeavesNoLayer(t *testing.T) {
	c := newCoordinator(t)
	require.True(t, c.UpdateMap(slot.A, county("06075")))

	assert.False(t, c.UpdateMap(slot.A, county("99999")))
	assert.Nil(t, c.Surface().Layer(slot.A), "the previous polygon must not linger")

	assert.False(t, c.UpdateMap(slot.B, &model.Entity{ID: "CA", Kind: model.KindState}))
	assert.Equal(t, 0, c.Surface().Len())
}

func TestUnpaddedFeatureMatchesEntity(t *testing.T) {
	c := newCoordinator(t)
	assert.True(t, c.UpdateMap(slot.A, county("01001")))
}

func TestMutualHighlight(t *testing.T) {
	c := newCoordinator(t)
	c.UpdateMap(slot.A, county("06075"))
	c.UpdateMap(slot.B, county("06075"))
	a, b := c.Surface().Layer(slot.A), c.Surface().Layer(slot.B)
	require.NotSame(t, a, b, "each slot owns its own layer")

	touched := c.HoverEnter(slot.B)
	assert.ElementsMatch(t, []slot.Name{slot.A, slot.B}, touched)
	assert.Equal(t, highlight.Style{Color: "#1f78b4", Weight: 5, FillOpacity: 0.35}, a.Current)
	assert.Equal(t, highlight.Style{Color: "#33a02c", Weight: 5, FillOpacity: 0.35}, b.Current)

	c.HoverLeave(slot.B)
	assert.Equal(t, highlight.DefaultStyleA, a.Current)
	assert.Equal(t, highlight.DefaultStyleB, b.Current)
}

func TestHoverOnlyTouchesSameEntity(t *testing.T) {
	c := newCoordinator(t)
	c.UpdateMap(slot.A, county("06075"))
	c.UpdateMap(slot.B, county("01001"))

	assert.Equal(t, []slot.Name{slot.A}, c.HoverEnter(slot.A))
	assert.True(t, c.Surface().Layer(slot.A).Emphasized())
	assert.False(t, c.Surface().Layer(slot.B).Emphasized())

	assert.Nil(t, c.HoverEnter(slot.Mine), "hovering an empty slot does nothing")
}

func TestSharedEntityScenario(t *testing.T) {
	c := newCoordinator(t)
	c.UpdateMap(slot.A, county("06075"))
	c.UpdateMap(slot.B, county("06075"))
	assert.Equal(t, 2, c.Surface().Len())

	assert.Len(t, c.HoverEnter(slot.A), 2)
	c.HoverLeave(slot.A)

	assert.True(t, c.Remove(slot.A))
	assert.Nil(t, c.Surface().Layer(slot.A))
	require.NotNil(t, c.Surface().Layer(slot.B))
	assert.Equal(t, highlight.DefaultStyleB, c.Surface().Layer(slot.B).Current)
}

func TestDroppingHoveredLayerRestoresSharedLayers(t *testing.T) {
	t.Run("remove", func(t *testing.T) {
		c := newCoordinator(t)
		c.UpdateMap(slot.A, county("06075"))
		c.UpdateMap(slot.B, county("06075"))
		c.HoverEnter(slot.A)

		c.Remove(slot.A)
		c.HoverLeave(slot.A)
		b := c.Surface().Layer(slot.B)
		assert.False(t, b.Emphasized())
		assert.Equal(t, highlight.DefaultStyleB, b.Current)
	})
	t.Run("rebind", func(t *testing.T) {
		c := newCoordinator(t)
		c.UpdateMap(slot.A, county("06075"))
		c.UpdateMap(slot.B, county("06075"))
		c.HoverEnter(slot.A)

		c.UpdateMap(slot.A, county("01001"))
		c.HoverLeave(slot.A)
		assert.False(t, c.Surface().Layer(slot.B).Emphasized())
		assert.Equal(t, highlight.DefaultStyleA, c.Surface().Layer(slot.A).Current)
	})
}

func TestCustomStyles(t *testing.T) {
	idx, err := geo.Load([]byte(counties))
	require.NoError(t, err)
	mine := highlight.Style{Color: "#ff7f00", Weight: 3, FillOpacity: 0.25}
	c := highlight.NewCoordinator(highlight.NewSurface(), idx,
		highlight.WithStyle(slot.Mine, mine),
		highlight.WithEmphasis(highlight.Style{Weight: 6, FillOpacity: 0.5}))

	c.UpdateMap(slot.Mine, county("06075"))
	c.HoverEnter(slot.Mine)
	assert.Equal(t, highlight.Style{Color: "#ff7f00", Weight: 6, FillOpacity: 0.5}, c.Surface().Layer(slot.Mine).Current)
}

func TestResetAndReindex(t *testing.T) {
	c := newCoordinator(t)
	c.UpdateMap(slot.A, county("06075"))
	c.UpdateMap(slot.B, county("01001"))

	smaller, err := geo.Load([]byte(`{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"GEOID":"06075"},
		 "geometry":{"type":"Polygon","coordinates":[[[-123,37],[-122,37],[-122,38],[-123,37]]]}}]}`))
	require.NoError(t, err)
	c.SetIndex(smaller)
	assert.NotNil(t, c.Surface().Layer(slot.A))
	assert.Nil(t, c.Surface().Layer(slot.B))

	c.Reset()
	assert.Equal(t, 0, c.Surface().Len())
	_, ok := c.Surface().View()
	assert.False(t, ok)
}
