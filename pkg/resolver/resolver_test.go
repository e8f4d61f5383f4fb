package resolver_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vanderheijden86/civicmap/pkg/model"
	"github.com/vanderheijden86/civicmap/pkg/resolver"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingSearcher struct {
	mu      sync.Mutex
	queries []string
	err     error
	hits    int
}

func (s *recordingSearcher) Search(_ context.Context, q string) ([]model.EntitySummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, q)
	if s.err != nil {
		return nil, s.err
	}
	n := s.hits
	if n == 0 {
		n = 1
	}
	out := make([]model.EntitySummary, n)
	for i := range out {
		out[i] = model.EntitySummary{ID: "06075", Display: q}
	}
	return out, nil
}

// drive runs each tick command and feeds the resulting messages back through
// the resolver, returning every search command that survived debouncing.
func drive(t *testing.T, r *resolver.Resolver, cmds ...tea.Cmd) []tea.Cmd {
	t.Helper()
	var searches []tea.Cmd
	for _, cmd := range cmds {
		require.NotNil(t, cmd)
		tick, ok := cmd().(resolver.QueryTickMsg)
		require.True(t, ok)
		if search := r.Tick(tick); search != nil {
			searches = append(searches, search)
		}
	}
	return searches
}

func TestRapidTypingIssuesOneSearch(t *testing.T) {
	s := &recordingSearcher{}
	r := resolver.New(s, resolver.WithDebounce(10*time.Millisecond))

	var cmds []tea.Cmd
	for _, text := range []string{"a", "al", "ala"} {
		res, cmd := r.Query("A", text)
		assert.Nil(t, res)
		cmds = append(cmds, cmd)
	}

	searches := drive(t, r, cmds...)
	require.Len(t, searches, 1)
	msg := searches[0]().(resolver.SuggestionsMsg)

	got, ok := r.Accept(msg)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"ala"}, s.queries)
	assert.Equal(t, "ala", msg.Query)
}

func TestBlankQueryAnswersImmediately(t *testing.T) {
	s := &recordingSearcher{}
	r := resolver.New(s, resolver.WithDebounce(10*time.Millisecond))

	_, pending := r.Query("A", "ala")
	res, cmd := r.Query("A", "   ")
	assert.Nil(t, cmd)
	assert.NotNil(t, res)
	assert.Empty(t, res)

	assert.Empty(t, drive(t, r, pending), "blank text cancels the pending query")
	assert.Empty(t, s.queries)
}

func TestStaleResultsAreDiscarded(t *testing.T) {
	s := &recordingSearcher{}
	r := resolver.New(s, resolver.WithDebounce(time.Millisecond))

	_, first := r.Query("A", "alameda")
	searches := drive(t, r, first)
	require.Len(t, searches, 1)
	stale := searches[0]().(resolver.SuggestionsMsg)

	// A newer query arrives before the first response is handled.
	_, _ = r.Query("A", "alpine")
	_, ok := r.Accept(stale)
	assert.False(t, ok)
}

func TestControlsAreIndependent(t *testing.T) {
	s := &recordingSearcher{}
	r := resolver.New(s, resolver.WithDebounce(time.Millisecond))

	_, a := r.Query("A", "marin")
	_, b := r.Query("B", "napa")
	assert.Len(t, drive(t, r, a, b), 2)
}

func TestSearchFailureYieldsEmptyResults(t *testing.T) {
	s := &recordingSearcher{err: errors.New("connection refused")}
	r := resolver.New(s, resolver.WithDebounce(time.Millisecond))

	_, cmd := r.Query("A", "marin")
	searches := drive(t, r, cmd)
	require.Len(t, searches, 1)
	msg := searches[0]().(resolver.SuggestionsMsg)
	got, ok := r.Accept(msg)
	assert.True(t, ok)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestResultsAreCapped(t *testing.T) {
	s := &recordingSearcher{hits: 30}
	r := resolver.New(s, resolver.WithDebounce(time.Millisecond), resolver.WithMaxResults(12))

	_, cmd := r.Query("A", "county")
	msg := drive(t, r, cmd)[0]().(resolver.SuggestionsMsg)
	assert.Len(t, msg.Results, 12)
}
