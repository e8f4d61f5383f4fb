package ui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanderheijden86/civicmap/pkg/model"
	"github.com/vanderheijden86/civicmap/pkg/quest"
	"github.com/vanderheijden86/civicmap/pkg/resolver"
	"github.com/vanderheijden86/civicmap/pkg/session"
	"github.com/vanderheijden86/civicmap/pkg/slot"
)

const polygons = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"GEOID":"06075"},
  "geometry":{"type":"Polygon","coordinates":[[[-123,37],[-122,37],[-122,38],[-123,38],[-123,37]]]}},
 {"type":"Feature","properties":{"GEOID":"06001"},
  "geometry":{"type":"Polygon","coordinates":[[[-122,37],[-121,37],[-121,38],[-122,38],[-122,37]]]}},
 {"type":"Feature","properties":{"GEOID":"01001"},
  "geometry":{"type":"Polygon","coordinates":[[[-87,32],[-86,32],[-86,33],[-87,33],[-87,32]]]}}
]}`

var errMissing = errors.New("missing")

type fakeService struct {
	mu       sync.Mutex
	counties map[string]*model.Entity
}

func newFakeService() *fakeService {
	return &fakeService{counties: map[string]*model.Entity{
		"06075": {ID: "06075", Name: "San Francisco", ParentRegion: "CA", Score: 81.2, Population: 870000,
			Urbanicity: model.Urban, NationalRank: 1, NationalPercentile: 100, StateRank: 1,
			Metrics: map[string]float64{"membership": 10},
			Peers:   []model.PeerSummary{{ID: "06001", Name: "Alameda", State: "CA", Score: 74.4}}},
		"06001": {ID: "06001", Name: "Alameda", ParentRegion: "CA", Score: 74.4, Urbanicity: model.Urban},
		"01001": {ID: "01001", Name: "Autauga", ParentRegion: "AL", Score: 52.5, Urbanicity: model.Suburban},
	}}
}

func (f *fakeService) Search(_ context.Context, q string) ([]model.EntitySummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.EntitySummary
	for _, id := range []string{"06075", "06001", "01001"} {
		e := f.counties[id]
		if strings.Contains(strings.ToLower(e.Name), strings.ToLower(q)) {
			out = append(out, model.EntitySummary{ID: id, Display: e.Display()})
		}
	}
	return out, nil
}

func (f *fakeService) County(_ context.Context, fips string) (*model.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.counties[fips]
	if !ok {
		return nil, errMissing
	}
	cp := *e
	cp.Kind = model.KindCounty
	return &cp, nil
}

func (f *fakeService) State(_ context.Context, code string) (*model.StateSummary, error) {
	switch code {
	case "CA":
		return &model.StateSummary{State: "CA", AvgScore: 77.8, CountyCount: 2, UrbanAvg: 77.8, UrbanCount: 2}, nil
	case "AL":
		return &model.StateSummary{State: "AL", AvgScore: 52.5, CountyCount: 1, SuburbanAvg: 52.5, SuburbanCount: 1}, nil
	}
	return nil, errMissing
}

func (f *fakeService) CompareStates(_ context.Context, a, b string) (*model.StateGaps, error) {
	return &model.StateGaps{AvgScoreGap: 25.3}, nil
}

func newTestModel(t *testing.T, mode session.Mode, mutate ...func(*Options)) Model {
	t.Helper()
	s := session.New(newFakeService(), session.Options{
		Mode:     mode,
		Resolver: []resolver.Option{resolver.WithDebounce(time.Millisecond)},
	})
	t.Cleanup(s.Close)
	opts := Options{
		Session: s,
		LoadGeo: func(context.Context) ([]byte, error) { return []byte(polygons), nil },
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	m := New(opts)
	for i := range m.fields {
		m.fields[i].input.Cursor.SetMode(cursor.CursorStatic)
	}
	return pump(m, loadGeoCmd(opts.LoadGeo))
}

// pump plays the part of the bubbletea runtime: it runs commands and feeds
// their messages back until nothing is left.
func pump(m Model, cmd tea.Cmd) Model {
	if cmd == nil {
		return m
	}
	switch msg := cmd().(type) {
	case nil, tea.QuitMsg:
	case tea.BatchMsg:
		for _, c := range msg {
			m = pump(m, c)
		}
	default:
		next, c := m.Update(msg)
		m = pump(next.(Model), c)
	}
	return m
}

func press(m Model, keys ...tea.KeyMsg) Model {
	for _, k := range keys {
		next, cmd := m.Update(k)
		m = pump(next.(Model), cmd)
	}
	return m
}

func typed(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

var (
	enter = tea.KeyMsg{Type: tea.KeyEnter}
	tab   = tea.KeyMsg{Type: tea.KeyTab}
	esc   = tea.KeyMsg{Type: tea.KeyEsc}
)

func alt(n string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(n), Alt: true} }

func TestGeoLoadSetsIndex(t *testing.T) {
	m := newTestModel(t, session.Compare)
	assert.Equal(t, 3, m.geoCount)
	status, isErr := m.Status()
	assert.Equal(t, "Loaded 3 county shapes", status)
	assert.False(t, isErr)
	assert.NotNil(t, m.Session().Coordinator().Index())
}

func TestGeoLoadFailureKeepsRunning(t *testing.T) {
	m := newTestModel(t, session.Compare, func(o *Options) {
		o.LoadGeo = func(context.Context) ([]byte, error) { return nil, errors.New("offline") }
	})
	status, isErr := m.Status()
	assert.True(t, isErr)
	assert.Contains(t, status, "offline")

	m = press(m, typed("san"), enter)
	assert.Equal(t, "06075", m.Session().Binding(slot.A).ID, "binding works without polygons")
	assert.Nil(t, m.Session().Map().Layer(slot.A))
}

func TestTypeAndSelectBindsSlot(t *testing.T) {
	m := newTestModel(t, session.Compare)
	m = press(m, typed("san"))
	require.Len(t, m.Session().Suggestions(slot.A), 1)

	m = press(m, enter)
	assert.Equal(t, "06075", m.Session().Binding(slot.A).ID)
	assert.Equal(t, "San Francisco, CA", m.fields[0].input.Value())
	assert.NotNil(t, m.Session().Map().Layer(slot.A))
	assert.True(t, m.Session().Charts().Has(slot.A))

	view := m.View()
	assert.Contains(t, view, "San Francisco, CA")
	assert.Contains(t, view, "peers: Alameda")
}

func TestCursorPicksSecondSuggestion(t *testing.T) {
	m := newTestModel(t, session.Compare)
	m = press(m, typed("a"))
	require.Len(t, m.Session().Suggestions(slot.A), 3)

	m = press(m, tea.KeyMsg{Type: tea.KeyDown}, tea.KeyMsg{Type: tea.KeyDown}, tea.KeyMsg{Type: tea.KeyUp}, enter)
	assert.Equal(t, "06001", m.Session().Binding(slot.A).ID)
}

func TestTypedFIPSBindsWithoutSuggestions(t *testing.T) {
	m := newTestModel(t, session.Compare)
	m = press(m, typed("1001"), enter)
	assert.Equal(t, "01001", m.Session().Binding(slot.A).ID)
}

func TestUnknownFIPSShowsNotice(t *testing.T) {
	m := newTestModel(t, session.Compare)
	m = press(m, typed("99999"), enter)
	assert.False(t, m.Session().Binding(slot.A).Bound())
	assert.Contains(t, m.View(), "Could not load 99999.")
}

func TestTabSwapAndClear(t *testing.T) {
	m := newTestModel(t, session.Compare)
	m = press(m, typed("san"), enter, tab, typed("autauga"), enter)
	require.Equal(t, "01001", m.Session().Binding(slot.B).ID)

	m = press(m, tea.KeyMsg{Type: tea.KeyCtrlS})
	assert.Equal(t, "01001", m.Session().Binding(slot.A).ID)
	assert.Equal(t, "06075", m.Session().Binding(slot.B).ID)
	assert.Equal(t, "Autauga, AL", m.fields[0].input.Value())

	// Focus is still on B.
	m = press(m, tea.KeyMsg{Type: tea.KeyCtrlX})
	assert.False(t, m.Session().Binding(slot.B).Bound())
	assert.Nil(t, m.Session().Map().Layer(slot.B))
	assert.Empty(t, m.fields[1].input.Value())
	assert.True(t, m.Session().Binding(slot.A).Bound())
}

func TestHoverToggleEmphasizesSharedEntity(t *testing.T) {
	m := newTestModel(t, session.Compare)
	m = press(m, typed("san"), enter, tab, typed("san"), enter)

	m = press(m, tea.KeyMsg{Type: tea.KeyCtrlT})
	assert.Equal(t, slot.B, m.hovered)
	assert.True(t, m.Session().Map().Layer(slot.A).Emphasized())
	assert.True(t, m.Session().Map().Layer(slot.B).Emphasized())

	m = press(m, tea.KeyMsg{Type: tea.KeyCtrlT})
	assert.Empty(t, m.hovered)
	assert.False(t, m.Session().Map().Layer(slot.A).Emphasized())
	assert.False(t, m.Session().Map().Layer(slot.B).Emphasized())
}

func TestClearingHoveredSlotRestoresOtherLayer(t *testing.T) {
	m := newTestModel(t, session.Compare)
	m = press(m, typed("san"), enter, tab, typed("san"), enter)

	m = press(m, tea.KeyMsg{Type: tea.KeyCtrlT}, tea.KeyMsg{Type: tea.KeyCtrlX})
	assert.Empty(t, m.hovered)
	assert.Nil(t, m.Session().Map().Layer(slot.B))
	a := m.Session().Map().Layer(slot.A)
	require.NotNil(t, a)
	assert.False(t, a.Emphasized())
}

func TestCopyComparison(t *testing.T) {
	var copied string
	m := newTestModel(t, session.Compare, func(o *Options) {
		o.Copy = func(s string) error { copied = s; return nil }
	})
	m = press(m, typed("san"), enter, tab, typed("autauga"), enter, tea.KeyMsg{Type: tea.KeyCtrlY})

	assert.Contains(t, copied, "A: San Francisco, CA, score 81.20")
	assert.Contains(t, copied, "B: Autauga, AL, score 52.50")
	assert.Contains(t, copied, "Score difference: +28.70")
	status, _ := m.Status()
	assert.Equal(t, "Copied comparison to clipboard", status)
}

func TestCopyFailureIsReported(t *testing.T) {
	m := newTestModel(t, session.Compare, func(o *Options) {
		o.Copy = func(string) error { return errors.New("no display") }
	})
	m = press(m, tea.KeyMsg{Type: tea.KeyCtrlY})
	status, isErr := m.Status()
	assert.True(t, isErr)
	assert.Contains(t, status, "no display")
}

func TestSnapshotWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.svg")
	m := newTestModel(t, session.Compare, func(o *Options) { o.SnapshotPath = path })
	m = press(m, typed("san"), enter, tea.KeyMsg{Type: tea.KeyCtrlE})

	status, isErr := m.Status()
	require.False(t, isErr, status)
	assert.Equal(t, "Snapshot written to "+path, status)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "San Francisco")
}

func TestEscClosesSuggestionsThenQuits(t *testing.T) {
	m := newTestModel(t, session.Compare)
	m = press(m, typed("san"))
	require.NotEmpty(t, m.Session().Suggestions(slot.A))

	next, cmd := m.Update(esc)
	m = pump(next.(Model), cmd)
	assert.False(t, m.quitting)
	assert.Empty(t, m.Session().Suggestions(slot.A))

	next, cmd = m.Update(esc)
	m = next.(Model)
	assert.True(t, m.quitting)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, m.View())
}

func TestQuestCountyChallenge(t *testing.T) {
	m := newTestModel(t, session.Quest)
	require.Len(t, m.fields, 3)

	m = press(m, typed("san"), enter)
	q := m.Session().Quest()
	require.NotNil(t, q.HomeCounty())
	status, _ := m.Status()
	assert.NotEmpty(t, status, "the home county award is shown")

	m = press(m, alt("1"))
	assert.Equal(t, quest.StateExplorer, q.Stage())
	assert.Contains(t, m.mdCache, "CA at a glance")

	m = press(m, alt("1"))
	assert.Equal(t, quest.ChallengeMode, q.Stage())

	m = press(m, tab, typed("autauga"), enter)
	assert.Equal(t, quest.CivicStrategist, q.Stage())
	assert.Equal(t, "06075", m.Session().Binding(slot.Mine).ID)
	assert.Equal(t, "01001", m.Session().Binding(slot.Other).ID)
	assert.True(t, q.HasBadge(quest.BadgeCountyChallenger))
}

func TestQuestStateChallengeFromStatesBox(t *testing.T) {
	m := newTestModel(t, session.Quest)
	m = press(m, typed("san"), enter, alt("2"))
	q := m.Session().Quest()
	require.Equal(t, quest.ChallengeMode, q.Stage())

	m = press(m, tab, tab, typed("ca al"), enter)
	assert.Equal(t, quest.CivicStrategist, q.Stage())
	assert.Equal(t, "CA", m.Session().Binding(slot.Mine).ID)
	assert.Equal(t, "AL", m.Session().Binding(slot.Other).ID)
	require.NotNil(t, m.Session().Gaps())
	assert.InDelta(t, 25.3, m.Session().Gaps().AvgScoreGap, 1e-9)

	m = press(m, alt("1"))
	assert.Equal(t, quest.CountyScout, q.Stage())
	assert.False(t, m.Session().Binding(slot.Mine).Bound())
	for _, f := range m.fields {
		assert.Empty(t, f.input.Value())
	}
}

func TestQuestPeersChallenge(t *testing.T) {
	m := newTestModel(t, session.Quest)
	m = press(m, typed("san"), enter, alt("2"), alt("3"))
	q := m.Session().Quest()
	assert.Equal(t, quest.CivicStrategist, q.Stage())
	assert.Equal(t, "06001", m.Session().Binding(slot.Other).ID)
}

func TestQuestActionOutOfRangeIsIgnored(t *testing.T) {
	m := newTestModel(t, session.Quest)
	m = press(m, alt("4"))
	assert.Equal(t, quest.CountyScout, m.Session().Quest().Stage())
}

func TestParseStatePair(t *testing.T) {
	tests := []struct {
		in, fallback string
		a, b         string
	}{
		{"CA TX", "", "CA", "TX"},
		{"ca,tx", "", "CA", "TX"},
		{"ca / tx", "", "CA", "TX"},
		{"tx", "CA", "CA", "TX"},
		{"", "CA", "CA", ""},
	}
	for _, tt := range tests {
		a, b := parseStatePair(tt.in, tt.fallback)
		assert.Equal(t, tt.a, a, tt.in)
		assert.Equal(t, tt.b, b, tt.in)
	}
}

func TestWindowResizeReflowsQuestPanel(t *testing.T) {
	m := newTestModel(t, session.Quest)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 160, Height: 50})
	m = next.(Model)
	assert.Equal(t, 160/2-4, m.questVP.Width)
	assert.NotEmpty(t, m.View())
}
