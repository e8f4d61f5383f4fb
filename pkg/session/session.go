// Package session owns everything one user sees: slot bindings, the shared
// map, the per-slot charts and the quest. It consumes intents and completion
// messages on the bubbletea update loop and is the only place their side
// effects are sequenced.
package session

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vanderheijden86/civicmap/pkg/chart"
	"github.com/vanderheijden86/civicmap/pkg/geo"
	"github.com/vanderheijden86/civicmap/pkg/highlight"
	"github.com/vanderheijden86/civicmap/pkg/logging"
	"github.com/vanderheijden86/civicmap/pkg/model"
	"github.com/vanderheijden86/civicmap/pkg/quest"
	"github.com/vanderheijden86/civicmap/pkg/resolver"
	"github.com/vanderheijden86/civicmap/pkg/slot"
	"github.com/vanderheijden86/civicmap/pkg/store"
)

// Mode selects the slots a session exposes.
type Mode int

const (
	// Compare is the two-panel A vs B mode.
	Compare Mode = iota
	// Quest binds mine and other through the quest stages.
	Quest
)

func (m Mode) String() string {
	if m == Quest {
		return "quest"
	}
	return "compare"
}

// Service is the data service a session talks to.
type Service interface {
	resolver.Searcher
	store.Source
	CompareStates(ctx context.Context, a, b string) (*model.StateGaps, error)
}

// Options configures a session. Zero values pick defaults.
type Options struct {
	Mode     Mode
	Index    *geo.Index
	Store    *store.Store // shared across sessions when set
	Charts   chart.Factory
	Styles   map[slot.Name]highlight.Style
	Emphasis *highlight.Style
	Resolver []resolver.Option
	Quest    []quest.Option
	Logger   *zap.Logger

	// ChartWidth is passed to every chart render; 0 leaves the surface default.
	ChartWidth int
}

// Session is one user's comparison context.
type Session struct {
	id      string
	mode    Mode
	service Service
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	slots    *slot.Set
	store    *store.Store
	resolver *resolver.Resolver
	coord    *highlight.Coordinator
	charts   *chart.Presenter
	quest    *quest.Controller

	chartWidth int

	seq         map[slot.Name]uint64
	notices     map[slot.Name]string
	suggestions map[slot.Name][]model.EntitySummary
	gaps        *model.StateGaps
}

// New creates a session over service.
func New(service Service, opts Options) *Session {
	id := uuid.NewString()
	logger := logging.OrNop(opts.Logger).With(zap.String("session", id), zap.Stringer("mode", opts.Mode))

	names := slot.CompareSlots
	if opts.Mode == Quest {
		names = slot.QuestSlots
	}

	st := opts.Store
	if st == nil {
		st = store.New(service, logger)
	}
	factory := opts.Charts
	if factory == nil {
		factory = chart.NewTermSurface
	}

	hopts := []highlight.Option{highlight.WithLogger(logger)}
	for name, style := range opts.Styles {
		hopts = append(hopts, highlight.WithStyle(name, style))
	}
	if opts.Emphasis != nil {
		hopts = append(hopts, highlight.WithEmphasis(*opts.Emphasis))
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:          id,
		mode:        opts.Mode,
		service:     service,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
		slots:       slot.NewSet(names...),
		store:       st,
		resolver:    resolver.New(service, append([]resolver.Option{resolver.WithLogger(logger)}, opts.Resolver...)...),
		coord:       highlight.NewCoordinator(highlight.NewSurface(), opts.Index, hopts...),
		charts:      chart.NewPresenter(factory, logger),
		chartWidth:  opts.ChartWidth,
		seq:         make(map[slot.Name]uint64),
		notices:     make(map[slot.Name]string),
		suggestions: make(map[slot.Name][]model.EntitySummary),
	}
	if opts.Mode == Quest {
		s.quest = quest.New(opts.Quest...)
	}
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Mode returns the session mode.
func (s *Session) Mode() Mode { return s.mode }

// Close abandons in-flight requests.
func (s *Session) Close() { s.cancel() }

// Update applies an intent or completion message and returns the follow-up
// command, if any. Unknown messages are ignored.
func (s *Session) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case QueryChanged:
		if !s.slots.Has(msg.Slot) {
			return nil
		}
		res, cmd := s.resolver.Query(string(msg.Slot), msg.Text)
		if res != nil {
			s.suggestions[msg.Slot] = res
		}
		return cmd

	case resolver.QueryTickMsg:
		return s.resolver.Tick(msg)

	case resolver.SuggestionsMsg:
		if res, ok := s.resolver.Accept(msg); ok {
			s.suggestions[slot.Name(msg.Control)] = res
		}
		return nil

	case SelectEntity:
		return s.selectEntity(msg.Slot, msg.ID)

	case FetchedMsg:
		s.fetched(msg)
		return nil

	case ClearSlot:
		s.clear(msg.Slot)
		return nil

	case Swap:
		return s.swap(msg.X, msg.Y)

	case HoverEnter:
		s.coord.HoverEnter(msg.Slot)
		return nil

	case HoverLeave:
		s.coord.HoverLeave(msg.Slot)
		return nil

	case Advance:
		return s.advance(msg)

	case StateLearnedMsg:
		s.stateLearned(msg)
		return nil

	case ChallengeMsg:
		s.challengeDone(msg)
		return nil
	}
	return nil
}

func (s *Session) selectEntity(name slot.Name, id string) tea.Cmd {
	if !s.slots.Has(name) {
		return nil
	}
	id = model.NormalizeID(id)
	if id == "" {
		return nil
	}
	s.seq[name]++
	seq := s.seq[name]
	s.resolver.Reset(string(name))
	delete(s.suggestions, name)
	return s.fetchCmd(name, seq, id)
}

func (s *Session) fetchCmd(name slot.Name, seq uint64, id string) tea.Cmd {
	ctx, st := s.ctx, s.store
	return func() tea.Msg {
		e, err := st.Fetch(ctx, id)
		return FetchedMsg{Slot: name, Seq: seq, ID: id, Entity: e, Err: err}
	}
}

func (s *Session) fetched(msg FetchedMsg) {
	if msg.Seq != s.seq[msg.Slot] {
		s.logger.Debug("dropping stale fetch", zap.String("slot", string(msg.Slot)), zap.String("id", msg.ID))
		return
	}
	if msg.Err != nil {
		s.notices[msg.Slot] = fmt.Sprintf("Could not load %s.", msg.ID)
		s.logger.Info("bind failed", zap.String("slot", string(msg.Slot)), zap.String("id", msg.ID), zap.Error(msg.Err))
		return
	}
	s.bind(msg.Slot, msg.Entity)

	if s.quest != nil && msg.Slot == slot.Mine && s.quest.Stage() == quest.CountyScout {
		_ = s.quest.SetHomeCounty(msg.Entity)
	}
}

// bind applies a fetched entity to a slot and runs its side effects.
func (s *Session) bind(name slot.Name, e *model.Entity) {
	if err := s.slots.Bind(name, e.ID); err != nil {
		s.logger.Warn("bind rejected", zap.String("slot", string(name)), zap.Error(err))
		return
	}
	delete(s.notices, name)
	color := s.coord.BaseStyle(name).Color
	cfg := chart.ConfigFor(e, color)
	cfg.Width = s.chartWidth
	if err := s.charts.Render(name, cfg); err != nil {
		s.logger.Warn("chart render failed", zap.Error(err))
	}
	if !s.coord.UpdateMap(name, e) {
		s.logger.Debug("bound without polygon", zap.String("slot", string(name)), zap.String("id", e.ID))
	}
	s.logger.Debug("bound", zap.String("slot", string(name)), zap.String("id", e.ID))
}

func (s *Session) clear(name slot.Name) {
	if !s.slots.Has(name) {
		return
	}
	s.seq[name]++
	delete(s.notices, name)
	if !s.slots.Clear(name) {
		return
	}
	s.charts.Destroy(name)
	s.coord.Remove(name)
	s.logger.Debug("cleared", zap.String("slot", string(name)))
}

// swap re-runs bind for both slots from the cache. A slot whose entity is
// somehow no longer cached is refetched.
func (s *Session) swap(x, y slot.Name) tea.Cmd {
	if !s.slots.Has(x) || !s.slots.Has(y) || x == y {
		return nil
	}
	plan := s.slots.SwapPlan(x, y)
	var cmds []tea.Cmd
	for _, op := range plan {
		if op.Clears() {
			s.clear(op.Slot)
			continue
		}
		s.seq[op.Slot]++
		if e, ok := s.store.Cached(op.ID); ok {
			s.bind(op.Slot, e)
			continue
		}
		cmds = append(cmds, s.fetchCmd(op.Slot, s.seq[op.Slot], op.ID))
	}
	return tea.Batch(cmds...)
}

// Bindings returns every slot's binding.
func (s *Session) Bindings() []slot.Binding { return s.slots.Bindings() }

// Slots returns the slot names of this session.
func (s *Session) Slots() []slot.Name { return s.slots.Names() }

// Binding returns one slot's binding.
func (s *Session) Binding(name slot.Name) slot.Binding { return s.slots.Get(name) }

// Entity returns the entity bound to a slot, or nil.
func (s *Session) Entity(name slot.Name) *model.Entity {
	id := s.slots.ID(name)
	if id == "" {
		return nil
	}
	e, _ := s.store.Cached(id)
	return e
}

// Pending reports whether a fetch of id is in flight.
func (s *Session) Pending(id string) bool {
	status, _ := s.store.Lookup(id)
	return status == store.Pending
}

// Suggestions returns the latest suggestions for a slot's search box.
func (s *Session) Suggestions(name slot.Name) []model.EntitySummary { return s.suggestions[name] }

// Notice returns the slot's inline notice, or "".
func (s *Session) Notice(name slot.Name) string { return s.notices[name] }

// Map returns the shared map surface.
func (s *Session) Map() *highlight.Surface { return s.coord.Surface() }

// Coordinator returns the highlight coordinator.
func (s *Session) Coordinator() *highlight.Coordinator { return s.coord }

// Charts returns the chart presenter.
func (s *Session) Charts() *chart.Presenter { return s.charts }

// Quest returns the quest controller, or nil in compare mode.
func (s *Session) Quest() *quest.Controller { return s.quest }

// Store returns the entity store.
func (s *Session) Store() *store.Store { return s.store }

// Gaps returns the last state comparison, or nil.
func (s *Session) Gaps() *model.StateGaps { return s.gaps }

// SetIndex swaps in reloaded polygons.
func (s *Session) SetIndex(idx *geo.Index) { s.coord.SetIndex(idx) }
