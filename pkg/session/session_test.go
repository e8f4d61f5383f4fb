package session_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanderheijden86/civicmap/internal/datasource"
	"github.com/vanderheijden86/civicmap/pkg/geo"
	"github.com/vanderheijden86/civicmap/pkg/model"
	"github.com/vanderheijden86/civicmap/pkg/quest"
	"github.com/vanderheijden86/civicmap/pkg/resolver"
	"github.com/vanderheijden86/civicmap/pkg/session"
	"github.com/vanderheijden86/civicmap/pkg/slot"
)

const polygons = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"GEOID":"06075"},
  "geometry":{"type":"Polygon","coordinates":[[[-123,37],[-122,37],[-122,38],[-123,38],[-123,37]]]}},
 {"type":"Feature","properties":{"GEOID":"6001"},
  "geometry":{"type":"Polygon","coordinates":[[[-122,37],[-121,37],[-121,38],[-122,38],[-122,37]]]}},
 {"type":"Feature","properties":{"GEOID":"1001"},
  "geometry":{"type":"Polygon","coordinates":[[[-87,32],[-86,32],[-86,33],[-87,33],[-87,32]]]}}
]}`

type fakeService struct {
	mu       sync.Mutex
	counties map[string]*model.Entity
	calls    map[string]int
	searches []string
}

func newFakeService() *fakeService {
	sf := &model.Entity{ID: "06075", Name: "San Francisco", ParentRegion: "CA", Score: 71.2,
		Metrics: map[string]float64{"membership": 10},
		Peers:   []model.PeerSummary{{ID: "06001", Name: "Alameda", State: "CA", Score: 70.1}}}
	return &fakeService{
		counties: map[string]*model.Entity{
			"06075": sf,
			"06001": {ID: "06001", Name: "Alameda", ParentRegion: "CA", Score: 70.1},
			"01001": {ID: "01001", Name: "Autauga", ParentRegion: "AL", Score: 40},
			"02013": {ID: "02013", Name: "Aleutians East", ParentRegion: "AK", Score: 12},
		},
		calls: make(map[string]int),
	}
}

func (f *fakeService) Search(_ context.Context, q string) ([]model.EntitySummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, q)
	var out []model.EntitySummary
	for id, e := range f.counties {
		if strings.Contains(strings.ToLower(e.Name), strings.ToLower(q)) {
			out = append(out, model.EntitySummary{ID: id, Display: e.Display()})
		}
	}
	return out, nil
}

func (f *fakeService) County(_ context.Context, fips string) (*model.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[fips]++
	e, ok := f.counties[fips]
	if !ok {
		return nil, &datasource.RequestError{Endpoint: "/api/county/" + fips, Status: 404, Err: datasource.ErrNotFound}
	}
	cp := *e
	cp.Kind = model.KindCounty
	return &cp, nil
}

func (f *fakeService) State(_ context.Context, code string) (*model.StateSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[code]++
	switch code {
	case "CA", "AL", "NY":
		return &model.StateSummary{State: code, AvgScore: float64(len(code)) * 10, CountyCount: 3}, nil
	}
	return nil, datasource.ErrNotFound
}

func (f *fakeService) CompareStates(_ context.Context, a, b string) (*model.StateGaps, error) {
	return &model.StateGaps{AvgScoreGap: 1.25}, nil
}

func (f *fakeService) callCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func newSession(t *testing.T, mode session.Mode) (*session.Session, *fakeService) {
	t.Helper()
	idx, err := geo.Load([]byte(polygons))
	require.NoError(t, err)
	svc := newFakeService()
	s := session.New(svc, session.Options{
		Mode:     mode,
		Index:    idx,
		Resolver: []resolver.Option{resolver.WithDebounce(time.Millisecond)},
	})
	t.Cleanup(s.Close)
	return s, svc
}

// pump plays the part of the bubbletea runtime: it runs commands and feeds
// their messages back until nothing is left.
func pump(s *session.Session, cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	switch msg := cmd().(type) {
	case nil:
	case tea.BatchMsg:
		for _, c := range msg {
			pump(s, c)
		}
	default:
		pump(s, s.Update(msg))
	}
}

func send(s *session.Session, msg tea.Msg) {
	pump(s, s.Update(msg))
}

func TestBindRendersChartAndLayer(t *testing.T) {
	s, _ := newSession(t, session.Compare)
	send(s, session.SelectEntity{Slot: slot.A, ID: "6075"})

	assert.Equal(t, "06075", s.Binding(slot.A).ID)
	assert.True(t, s.Charts().Has(slot.A))
	require.NotNil(t, s.Map().Layer(slot.A))
	assert.Equal(t, "San Francisco", s.Entity(slot.A).Name)
}

func TestClearRemovesEverything(t *testing.T) {
	s, _ := newSession(t, session.Compare)
	send(s, session.SelectEntity{Slot: slot.A, ID: "06075"})
	send(s, session.ClearSlot{Slot: slot.A})

	assert.False(t, s.Binding(slot.A).Bound())
	assert.False(t, s.Charts().Has(slot.A))
	assert.Nil(t, s.Map().Layer(slot.A))
	assert.Nil(t, s.Entity(slot.A))

	send(s, session.ClearSlot{Slot: slot.A}) // no-op on empty
	assert.Equal(t, 0, s.Charts().Len())
}

func TestSwapRebindsWithoutRefetching(t *testing.T) {
	s, svc := newSession(t, session.Compare)
	send(s, session.SelectEntity{Slot: slot.A, ID: "06075"})
	send(s, session.SelectEntity{Slot: slot.B, ID: "01001"})

	send(s, session.Swap{X: slot.A, Y: slot.B})
	assert.Equal(t, "01001", s.Binding(slot.A).ID)
	assert.Equal(t, "06075", s.Binding(slot.B).ID)
	assert.Equal(t, "01001", s.Map().Layer(slot.A).ID)
	assert.Equal(t, "#1f78b4", s.Map().Layer(slot.A).Base.Color, "layers take the style of their new slot")

	send(s, session.Swap{X: slot.A, Y: slot.B})
	assert.Equal(t, "06075", s.Binding(slot.A).ID)
	assert.Equal(t, "01001", s.Binding(slot.B).ID)
	assert.Equal(t, 1, svc.callCount("06075"))
	assert.Equal(t, 1, svc.callCount("01001"))
}

func TestSwapWithEmptySide(t *testing.T) {
	s, _ := newSession(t, session.Compare)
	send(s, session.SelectEntity{Slot: slot.A, ID: "06075"})
	send(s, session.Swap{X: slot.A, Y: slot.B})

	assert.False(t, s.Binding(slot.A).Bound())
	assert.Equal(t, "06075", s.Binding(slot.B).ID)
	assert.False(t, s.Charts().Has(slot.A))
	assert.True(t, s.Charts().Has(slot.B))
	assert.Nil(t, s.Map().Layer(slot.A))

	send(s, session.ClearSlot{Slot: slot.B})
	send(s, session.Swap{X: slot.A, Y: slot.B})
	assert.Equal(t, 0, s.Charts().Len())
}

func TestFetchFailureLeavesSlotUntouched(t *testing.T) {
	s, _ := newSession(t, session.Compare)
	send(s, session.SelectEntity{Slot: slot.A, ID: "06075"})
	send(s, session.SelectEntity{Slot: slot.A, ID: "99999"})

	assert.Equal(t, "06075", s.Binding(slot.A).ID)
	assert.NotNil(t, s.Map().Layer(slot.A))
	assert.True(t, s.Charts().Has(slot.A))
	assert.Contains(t, s.Notice(slot.A), "99999")

	send(s, session.SelectEntity{Slot: slot.A, ID: "01001"})
	assert.Empty(t, s.Notice(slot.A))
}

func TestNoPolygonStillBinds(t *testing.T) {
	s, _ := newSession(t, session.Compare)
	send(s, session.SelectEntity{Slot: slot.A, ID: "02013"})

	assert.Equal(t, "02013", s.Binding(slot.A).ID)
	assert.True(t, s.Charts().Has(slot.A))
	assert.Nil(t, s.Map().Layer(slot.A))
}

func TestLaterBindWinsOverSlowEarlierBind(t *testing.T) {
	s, _ := newSession(t, session.Compare)
	first := s.Update(session.SelectEntity{Slot: slot.A, ID: "06075"})
	second := s.Update(session.SelectEntity{Slot: slot.A, ID: "01001"})

	late := first()
	s.Update(second())
	s.Update(late)

	assert.Equal(t, "01001", s.Binding(slot.A).ID)
	assert.Equal(t, "01001", s.Map().Layer(slot.A).ID)
}

func TestClearCancelsInFlightBind(t *testing.T) {
	s, _ := newSession(t, session.Compare)
	cmd := s.Update(session.SelectEntity{Slot: slot.A, ID: "06075"})
	s.Update(session.ClearSlot{Slot: slot.A})
	s.Update(cmd())

	assert.False(t, s.Binding(slot.A).Bound())
	assert.Nil(t, s.Map().Layer(slot.A))
}

func TestSharedEntityAcrossSlots(t *testing.T) {
	s, _ := newSession(t, session.Compare)
	send(s, session.SelectEntity{Slot: slot.A, ID: "06075"})
	send(s, session.SelectEntity{Slot: slot.B, ID: "06075"})
	require.Equal(t, 2, s.Map().Len())

	send(s, session.HoverEnter{Slot: slot.A})
	assert.True(t, s.Map().Layer(slot.A).Emphasized())
	assert.True(t, s.Map().Layer(slot.B).Emphasized())
	send(s, session.HoverLeave{Slot: slot.A})

	send(s, session.HoverEnter{Slot: slot.B})
	assert.True(t, s.Map().Layer(slot.A).Emphasized())
	send(s, session.HoverLeave{Slot: slot.B})
	assert.False(t, s.Map().Layer(slot.A).Emphasized())
	assert.False(t, s.Map().Layer(slot.B).Emphasized())

	send(s, session.ClearSlot{Slot: slot.A})
	assert.Nil(t, s.Map().Layer(slot.A))
	assert.NotNil(t, s.Map().Layer(slot.B))
}

func TestClearingHoveredSlotRestoresSharedLayer(t *testing.T) {
	s, _ := newSession(t, session.Compare)
	send(s, session.SelectEntity{Slot: slot.A, ID: "06075"})
	send(s, session.SelectEntity{Slot: slot.B, ID: "06075"})
	send(s, session.HoverEnter{Slot: slot.A})

	send(s, session.ClearSlot{Slot: slot.A})
	send(s, session.HoverLeave{Slot: slot.A})
	b := s.Map().Layer(slot.B)
	require.NotNil(t, b)
	assert.False(t, b.Emphasized())
	assert.Equal(t, b.Base, b.Current)
}

func TestRebindingHoveredSlotRestoresSharedLayer(t *testing.T) {
	s, _ := newSession(t, session.Compare)
	send(s, session.SelectEntity{Slot: slot.A, ID: "06075"})
	send(s, session.SelectEntity{Slot: slot.B, ID: "06075"})
	send(s, session.HoverEnter{Slot: slot.A})

	send(s, session.SelectEntity{Slot: slot.A, ID: "01001"})
	send(s, session.HoverLeave{Slot: slot.A})
	assert.False(t, s.Map().Layer(slot.B).Emphasized())
	assert.False(t, s.Map().Layer(slot.A).Emphasized())
}

func TestQueryProducesSuggestions(t *testing.T) {
	s, svc := newSession(t, session.Compare)
	send(s, session.QueryChanged{Slot: slot.A, Text: "alameda"})

	sugg := s.Suggestions(slot.A)
	require.Len(t, sugg, 1)
	assert.Equal(t, "06001", sugg[0].ID)
	assert.Empty(t, s.Suggestions(slot.B))

	send(s, session.QueryChanged{Slot: slot.A, Text: " "})
	assert.Empty(t, s.Suggestions(slot.A))
	assert.Equal(t, []string{"alameda"}, svc.searches)
}

func TestUnknownSlotIgnored(t *testing.T) {
	s, _ := newSession(t, session.Compare)
	assert.Nil(t, s.Update(session.SelectEntity{Slot: slot.Mine, ID: "06075"}))
	assert.Nil(t, s.Update(session.Advance{Action: session.Restart}))
}

func TestQuestHomeCountyAwardedOnce(t *testing.T) {
	s, _ := newSession(t, session.Quest)
	q := s.Quest()
	send(s, session.SelectEntity{Slot: slot.Mine, ID: "06075"})
	assert.Equal(t, 20, q.XP())
	send(s, session.SelectEntity{Slot: slot.Mine, ID: "01001"})
	send(s, session.SelectEntity{Slot: slot.Mine, ID: "06075"})
	assert.Equal(t, 20, q.XP())
	assert.Equal(t, []quest.Badge{quest.BadgeHomeCounty}, q.Badges())
}

func TestQuestLearnStateThenStateChallenge(t *testing.T) {
	s, _ := newSession(t, session.Quest)
	q := s.Quest()

	send(s, session.Advance{Action: session.LearnState})
	assert.Equal(t, quest.CountyScout, q.Stage())
	assert.NotEmpty(t, q.Notice())

	send(s, session.SelectEntity{Slot: slot.Mine, ID: "06075"})
	send(s, session.Advance{Action: session.LearnState})
	require.Equal(t, quest.StateExplorer, q.Stage())
	assert.Equal(t, "CA", q.StateSummary().State)

	send(s, session.Advance{Action: session.StartChallenge})
	send(s, session.Advance{Action: session.ChallengeStates, StateA: "CA", StateB: "CA"})
	assert.Equal(t, quest.ChallengeMode, q.Stage())
	assert.Equal(t, "Choose two different states to compare.", q.Notice())

	send(s, session.Advance{Action: session.ChallengeStates, StateA: "ca", StateB: "al"})
	require.Equal(t, quest.CivicStrategist, q.Stage())
	assert.Equal(t, "CA", s.Binding(slot.Mine).ID)
	assert.Equal(t, "AL", s.Binding(slot.Other).ID)
	assert.True(t, s.Charts().Has(slot.Other))
	require.NotNil(t, s.Gaps())
	assert.Equal(t, 1.25, s.Gaps().AvgScoreGap)
	assert.True(t, q.HasBadge(quest.BadgeStateRival))
}

func TestQuestStateChallengeFailure(t *testing.T) {
	s, _ := newSession(t, session.Quest)
	q := s.Quest()
	send(s, session.Advance{Action: session.JumpToChallenge})
	send(s, session.Advance{Action: session.ChallengeStates, StateA: "CA", StateB: "ZZ"})

	assert.Equal(t, quest.ChallengeMode, q.Stage())
	assert.NotEmpty(t, q.Notice())
	assert.False(t, s.Binding(slot.Mine).Bound())
}

func TestQuestCountyChallenge(t *testing.T) {
	s, _ := newSession(t, session.Quest)
	q := s.Quest()
	send(s, session.Advance{Action: session.JumpToChallenge})

	send(s, session.Advance{Action: session.ChallengeCounty, OtherID: "01001"})
	assert.Equal(t, quest.ChallengeMode, q.Stage(), "county challenges need a home county")

	send(s, session.Advance{Action: session.Restart})
	send(s, session.SelectEntity{Slot: slot.Mine, ID: "06075"})
	send(s, session.Advance{Action: session.JumpToChallenge})
	send(s, session.Advance{Action: session.ChallengeCounty, OtherID: "1001"})

	assert.Equal(t, quest.CivicStrategist, q.Stage())
	assert.Equal(t, "06075", s.Binding(slot.Mine).ID)
	assert.Equal(t, "01001", s.Binding(slot.Other).ID)
	assert.Equal(t, 2, s.Map().Len())
	assert.Equal(t, 70, q.XP())
}

func TestQuestCountyChallengeNeedsMineBound(t *testing.T) {
	s, _ := newSession(t, session.Quest)
	q := s.Quest()
	send(s, session.SelectEntity{Slot: slot.Mine, ID: "06075"})
	send(s, session.Advance{Action: session.JumpToChallenge})
	send(s, session.ClearSlot{Slot: slot.Mine})

	send(s, session.Advance{Action: session.ChallengeCounty, OtherID: "01001"})
	assert.Equal(t, quest.ChallengeMode, q.Stage())
	assert.NotEmpty(t, q.Notice())
	assert.False(t, q.HasBadge(quest.BadgeCountyChallenger))
	assert.False(t, s.Binding(slot.Mine).Bound(), "mine must not be rebound behind the user's back")
	assert.False(t, s.Binding(slot.Other).Bound())

	send(s, session.Advance{Action: session.ChallengePeers})
	assert.Equal(t, quest.ChallengeMode, q.Stage())
	assert.False(t, q.HasBadge(quest.BadgePeerReviewer))

	send(s, session.SelectEntity{Slot: slot.Mine, ID: "06075"})
	send(s, session.Advance{Action: session.ChallengeCounty, OtherID: "01001"})
	assert.Equal(t, quest.CivicStrategist, q.Stage())
}

func TestQuestPeersWithoutPeers(t *testing.T) {
	s, _ := newSession(t, session.Quest)
	q := s.Quest()
	send(s, session.SelectEntity{Slot: slot.Mine, ID: "01001"})
	send(s, session.Advance{Action: session.JumpToChallenge})
	send(s, session.Advance{Action: session.ChallengePeers})

	assert.Equal(t, quest.ChallengeMode, q.Stage())
	assert.Contains(t, q.Notice(), "No peer counties")
	assert.False(t, q.HasBadge(quest.BadgePeerReviewer))
	assert.Equal(t, 20, q.XP())
}

func TestQuestPeersBindsClosestPeer(t *testing.T) {
	s, _ := newSession(t, session.Quest)
	q := s.Quest()
	send(s, session.SelectEntity{Slot: slot.Mine, ID: "06075"})
	send(s, session.Advance{Action: session.JumpToChallenge})
	send(s, session.Advance{Action: session.ChallengePeers})

	assert.Equal(t, quest.CivicStrategist, q.Stage())
	assert.Equal(t, "06001", s.Binding(slot.Other).ID)
	assert.True(t, q.HasBadge(quest.BadgePeerReviewer))
}

func TestQuestRestartClearsMap(t *testing.T) {
	s, _ := newSession(t, session.Quest)
	q := s.Quest()
	send(s, session.SelectEntity{Slot: slot.Mine, ID: "06075"})
	send(s, session.Advance{Action: session.JumpToChallenge})
	send(s, session.Advance{Action: session.ChallengePeers})
	require.Equal(t, 2, s.Map().Len())

	send(s, session.Advance{Action: session.Restart})
	assert.Equal(t, quest.CountyScout, q.Stage())
	assert.Equal(t, 0, s.Map().Len())
	assert.Equal(t, 0, s.Charts().Len())
	assert.False(t, s.Binding(slot.Mine).Bound())
	assert.Zero(t, q.XP())
}

func TestSessionsAreIndependent(t *testing.T) {
	a, _ := newSession(t, session.Compare)
	b, _ := newSession(t, session.Compare)
	send(a, session.SelectEntity{Slot: slot.A, ID: "06075"})

	assert.NotEqual(t, a.ID(), b.ID())
	assert.False(t, b.Binding(slot.A).Bound())
	assert.Equal(t, 0, b.Map().Len())
}

func TestFetchErrorIsNotFound(t *testing.T) {
	s, _ := newSession(t, session.Compare)
	_, err := s.Store().Fetch(context.Background(), "99999")
	assert.True(t, errors.Is(err, datasource.ErrNotFound))
}
