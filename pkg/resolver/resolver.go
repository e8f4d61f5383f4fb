// Package resolver turns free text typed into a search control into entity
// candidates. Each control is debounced on its own and only the newest query
// of a control may deliver results.
package resolver

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/vanderheijden86/civicmap/pkg/logging"
	"github.com/vanderheijden86/civicmap/pkg/model"
)

// DefaultDebounce is the quiet period before a query is sent.
const DefaultDebounce = 200 * time.Millisecond

// DefaultMaxResults caps the suggestion list.
const DefaultMaxResults = 12

// Searcher performs a free-text search.
type Searcher interface {
	Search(ctx context.Context, q string) ([]model.EntitySummary, error)
}

// QueryTickMsg fires when a control's quiet period ends.
type QueryTickMsg struct {
	Control string
	Token   uint64
	Query   string
}

// SuggestionsMsg carries search results back to the update loop.
type SuggestionsMsg struct {
	Control string
	Token   uint64
	Query   string
	Results []model.EntitySummary
}

// Resolver debounces queries per control. It is not safe for concurrent
// use; call it from the update loop only. The commands it returns run
// elsewhere but touch nothing but the Searcher.
type Resolver struct {
	searcher Searcher
	delay    time.Duration
	max      int
	logger   *zap.Logger
	tokens   map[string]uint64
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithDebounce sets the quiet period.
func WithDebounce(d time.Duration) Option {
	return func(r *Resolver) { r.delay = d }
}

// WithMaxResults caps the number of suggestions kept.
func WithMaxResults(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.max = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// New creates a resolver over s.
func New(s Searcher, opts ...Option) *Resolver {
	r := &Resolver{
		searcher: s,
		delay:    DefaultDebounce,
		max:      DefaultMaxResults,
		tokens:   make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.OrNop(r.logger).Named("resolver")
	return r
}

// Query registers new text for control. Blank text answers immediately with
// no results and cancels whatever the control was waiting for. Otherwise it
// returns a command that ticks after the quiet period.
func (r *Resolver) Query(control, text string) ([]model.EntitySummary, tea.Cmd) {
	r.tokens[control]++
	token := r.tokens[control]
	q := strings.TrimSpace(text)
	if q == "" {
		return []model.EntitySummary{}, nil
	}
	return nil, tea.Tick(r.delay, func(time.Time) tea.Msg {
		return QueryTickMsg{Control: control, Token: token, Query: q}
	})
}

// Tick handles the end of a quiet period. Only the control's latest query
// is searched.
func (r *Resolver) Tick(msg QueryTickMsg) tea.Cmd {
	if !r.Latest(msg.Control, msg.Token) {
		return nil
	}
	s, max, logger := r.searcher, r.max, r.logger
	return func() tea.Msg {
		hits, err := s.Search(context.Background(), msg.Query)
		if err != nil {
			logger.Warn("search failed", zap.String("control", msg.Control), zap.Error(err))
			hits = nil
		}
		if len(hits) > max {
			hits = hits[:max]
		}
		if hits == nil {
			hits = []model.EntitySummary{}
		}
		return SuggestionsMsg{Control: msg.Control, Token: msg.Token, Query: msg.Query, Results: hits}
	}
}

// Accept returns the results of msg if it answers the control's latest
// query, and false for stale responses.
func (r *Resolver) Accept(msg SuggestionsMsg) ([]model.EntitySummary, bool) {
	if !r.Latest(msg.Control, msg.Token) {
		return nil, false
	}
	return msg.Results, true
}

// Latest reports whether token is the newest one issued for control.
func (r *Resolver) Latest(control string, token uint64) bool {
	return r.tokens[control] == token
}

// Reset forgets any pending query for control.
func (r *Resolver) Reset(control string) {
	r.tokens[control]++
}
