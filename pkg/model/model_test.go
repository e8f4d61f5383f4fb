package model_test

import (
	"strconv"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/vanderheijden86/civicmap/pkg/model"
)

func TestNormalizeID(t *testing.T) {
	cases := map[string]string{
		"1001":   "01001",
		"01001":  "01001",
		" 6075 ": "06075",
		"ca":     "CA",
		"":       "",
		"123456": "123456",
	}
	for in, want := range cases {
		assert.Equal(t, want, model.NormalizeID(in), "input %q", in)
	}
}

func TestNormalizeIDProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 99999).Draw(t, "n")
		raw := strconv.Itoa(n)
		got := model.NormalizeID(raw)
		if len(got) != model.CountyIDWidth {
			t.Fatalf("NormalizeID(%q) = %q, want width %d", raw, got, model.CountyIDWidth)
		}
		if model.NormalizeID(got) != got {
			t.Fatalf("NormalizeID not idempotent for %q", raw)
		}
	})
}

func TestEntitySummaryAcceptsFipsOrID(t *testing.T) {
	var hits []model.EntitySummary
	payload := `[{"fips":"06075","display":"San Francisco, CA","population":870000},
		{"id":"01001","display":"Autauga, AL","population":58000,"urbanicity":"rural"}]`
	require.NoError(t, json.Unmarshal([]byte(payload), &hits))
	require.Len(t, hits, 2)
	assert.Equal(t, "06075", hits[0].ID)
	assert.Equal(t, "01001", hits[1].ID)
	assert.Equal(t, model.Rural, hits[1].Urbanicity)
}

func TestEngagementSeriesFallsBackToSumKeys(t *testing.T) {
	e := &model.Entity{ID: "06075", Name: "San Francisco", ParentRegion: "CA", Metrics: map[string]float64{
		"membership_sum": 4, "volunteer": 3, "events_sum": 2,
	}}
	s := model.EngagementSeries(e)
	assert.Equal(t, []float64{4, 3, 2, 0}, s.Values)
	assert.Equal(t, "Engagement: San Francisco, CA", s.Title)
	assert.Equal(t, 4.0, s.Max())
}

func TestStateEntityCarriesSummary(t *testing.T) {
	e := model.StateEntity(model.StateSummary{State: "ca", AvgScore: 51.2, UrbanAvg: 60})
	assert.Equal(t, "CA", e.ID)
	assert.Equal(t, model.KindState, e.Kind)
	require.NotNil(t, e.Summary)
	s := model.EngagementSeries(e)
	assert.Equal(t, []float64{51.2, 60, 0, 0}, s.Values)
}

func TestGaps(t *testing.T) {
	g := model.Gaps(
		model.StateSummary{AvgScore: 50, UrbanAvg: 60.5, SuburbanAvg: 40, RuralAvg: 30},
		model.StateSummary{AvgScore: 45, UrbanAvg: 50, SuburbanAvg: 42, RuralAvg: 30},
	)
	assert.Equal(t, 5.0, g.AvgScoreGap)
	assert.Equal(t, 10.5, g.UrbanGap)
	assert.Equal(t, -2.0, g.SuburbanGap)
	assert.Equal(t, 0.0, g.RuralGap)
}
