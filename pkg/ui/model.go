// Package ui is the terminal front end: a search box, overview card and
// chart per slot, a shared map, and in quest mode the quest panel.
package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/vanderheijden86/civicmap/pkg/chart"
	"github.com/vanderheijden86/civicmap/pkg/export"
	"github.com/vanderheijden86/civicmap/pkg/geo"
	"github.com/vanderheijden86/civicmap/pkg/logging"
	"github.com/vanderheijden86/civicmap/pkg/metrics"
	"github.com/vanderheijden86/civicmap/pkg/model"
	"github.com/vanderheijden86/civicmap/pkg/quest"
	"github.com/vanderheijden86/civicmap/pkg/session"
	"github.com/vanderheijden86/civicmap/pkg/slot"
	"github.com/vanderheijden86/civicmap/pkg/watcher"
)

const (
	defaultWidth  = 120
	defaultHeight = 40
	maxShownHits  = 6
)

// GeoLoader fetches the raw county boundary collection.
type GeoLoader func(ctx context.Context) ([]byte, error)

// Options configures the TUI.
type Options struct {
	Session *session.Session
	// LoadGeo runs once at startup. Nil leaves the map without polygons.
	LoadGeo GeoLoader
	// Watcher, when set, reloads the boundaries whenever its file changes.
	Watcher      *watcher.Watcher
	SlotColors   map[slot.Name]string
	SnapshotPath string
	// Copy replaces the system clipboard, mainly for tests.
	Copy   func(string) error
	Debug  bool
	Logger *zap.Logger
}

// field is one text box: a slot's search box or the quest's state pair.
type field struct {
	slot   slot.Name // "" for the state pair box
	input  textinput.Model
	cursor int
}

// Model is the bubbletea model.
type Model struct {
	sess   *session.Session
	opts   Options
	logger *zap.Logger
	theme  Theme
	keys   KeyMap
	help   help.Model

	fields []field
	focus  int

	// requested remembers what each slot asked for so the card can show a
	// loading line while the fetch is in flight.
	requested map[slot.Name]string
	hovered   slot.Name

	questVP  viewport.Model
	mdCache  string
	mdWidth  int
	renderer *glamour.TermRenderer

	geoCount  int
	statusMsg string
	statusErr bool

	width, height int
	quitting      bool
}

// geoLoadedMsg carries a parsed boundary index.
type geoLoadedMsg struct {
	index *geo.Index
	err   error
}

type snapshotDoneMsg struct {
	path string
	err  error
}

type copiedMsg struct {
	what string
	err  error
}

// New builds the model around an existing session.
func New(opts Options) Model {
	if opts.SnapshotPath == "" {
		opts.SnapshotPath = "civicmap-snapshot.svg"
	}
	if opts.Copy == nil {
		opts.Copy = clipboard.WriteAll
	}
	m := Model{
		sess:      opts.Session,
		opts:      opts,
		logger:    logging.OrNop(opts.Logger),
		theme:     DefaultTheme(lipgloss.DefaultRenderer(), opts.SlotColors),
		keys:      DefaultKeyMap(),
		help:      help.New(),
		requested: make(map[slot.Name]string),
		questVP:   viewport.New(40, 10),
		width:     defaultWidth,
		height:    defaultHeight,
	}
	for _, name := range m.sess.Slots() {
		m.fields = append(m.fields, field{slot: name, input: newInput(placeholderFor(name))})
	}
	if m.sess.Mode() == session.Quest {
		m.fields = append(m.fields, field{input: newInput("two states, e.g. CA TX")})
	}
	m.fields[0].input.Focus()
	m.refreshQuest()
	return m
}

func newInput(placeholder string) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Prompt = "› "
	ti.CharLimit = 64
	return ti
}

func placeholderFor(name slot.Name) string {
	switch name {
	case slot.Mine:
		return "your home county"
	case slot.Other:
		return "a county to compare"
	default:
		return "search a county"
	}
}

// Init starts the boundary load and the file watcher.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if m.opts.LoadGeo != nil {
		cmds = append(cmds, loadGeoCmd(m.opts.LoadGeo))
	}
	if m.opts.Watcher != nil {
		cmds = append(cmds, watcher.WaitCmd(m.opts.Watcher))
	}
	return tea.Batch(cmds...)
}

func loadGeoCmd(load GeoLoader) tea.Cmd {
	return func() tea.Msg {
		data, err := load(context.Background())
		if err != nil {
			return geoLoadedMsg{err: err}
		}
		return parseGeo(data)
	}
}

func parseGeo(data []byte) geoLoadedMsg {
	defer metrics.Timer(metrics.GeoLoad)()
	idx, err := geo.Load(data)
	return geoLoadedMsg{index: idx, err: err}
}

// Update handles keys, window changes and every session message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.refreshQuest()
		return m, nil

	case tea.KeyMsg:
		cmd := m.handleKey(msg)
		return m, cmd

	case geoLoadedMsg:
		if msg.err != nil {
			m.setStatus("Map unavailable: "+msg.err.Error(), true)
			m.logger.Warn("geojson load failed", zap.Error(msg.err))
			return m, nil
		}
		m.sess.SetIndex(msg.index)
		m.geoCount = msg.index.Len()
		status := fmt.Sprintf("Loaded %d county shapes", m.geoCount)
		if n := len(msg.index.Unmatched()); n > 0 {
			status += fmt.Sprintf(" (%d skipped)", n)
		}
		m.setStatus(status, false)
		return m, nil

	case watcher.ChangedMsg:
		next := watcher.WaitCmd(m.opts.Watcher)
		if msg.Err != nil {
			m.setStatus("Reload failed: "+msg.Err.Error(), true)
			return m, next
		}
		data := msg.Data
		return m, tea.Batch(next, func() tea.Msg { return parseGeo(data) })

	case snapshotDoneMsg:
		if msg.err != nil {
			m.setStatus("Snapshot failed: "+msg.err.Error(), true)
		} else {
			m.setStatus("Snapshot written to "+msg.path, false)
		}
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.setStatus("Clipboard unavailable: "+msg.err.Error(), true)
		} else {
			m.setStatus("Copied "+msg.what+" to clipboard", false)
		}
		return m, nil
	}

	cmd := m.sess.Update(msg)
	m.afterSession()
	return m, cmd
}

// afterSession turns quest awards into a toast and refreshes the quest text.
func (m *Model) afterSession() {
	q := m.sess.Quest()
	if q == nil {
		return
	}
	var texts []string
	for _, a := range q.TakeAwards() {
		texts = append(texts, q.AwardText(a))
	}
	if len(texts) > 0 {
		m.setStatus(strings.Join(texts, " · "), false)
	}
	m.refreshQuest()
}

func (m *Model) setStatus(msg string, isErr bool) {
	m.statusMsg, m.statusErr = msg, isErr
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	// Any key dismisses a toast.
	m.statusMsg = ""

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		m.sess.Close()
		return tea.Quit

	case key.Matches(msg, m.keys.Dismiss):
		f := &m.fields[m.focus]
		if f.slot != "" && len(m.sess.Suggestions(f.slot)) > 0 {
			f.input.SetValue("")
			return m.sess.Update(session.QueryChanged{Slot: f.slot, Text: ""})
		}
		m.quitting = true
		m.sess.Close()
		return tea.Quit

	case key.Matches(msg, m.keys.Next):
		m.moveFocus(1)
		return nil
	case key.Matches(msg, m.keys.Prev):
		m.moveFocus(-1)
		return nil

	case key.Matches(msg, m.keys.Up):
		if f := &m.fields[m.focus]; f.cursor > 0 {
			f.cursor--
		}
		return nil
	case key.Matches(msg, m.keys.Down):
		f := &m.fields[m.focus]
		if n := min(len(m.sess.Suggestions(f.slot)), maxShownHits); f.cursor < n-1 {
			f.cursor++
		}
		return nil

	case key.Matches(msg, m.keys.Select):
		return m.selectFocused()

	case key.Matches(msg, m.keys.Clear):
		f := &m.fields[m.focus]
		f.input.SetValue("")
		if f.slot == "" {
			return nil
		}
		delete(m.requested, f.slot)
		m.unhover(f.slot)
		return m.sessionCmd(session.ClearSlot{Slot: f.slot})

	case key.Matches(msg, m.keys.Swap):
		names := m.sess.Slots()
		if len(names) < 2 {
			return nil
		}
		m.requested[names[0]], m.requested[names[1]] = m.requested[names[1]], m.requested[names[0]]
		x, y := m.fields[0].input.Value(), m.fields[1].input.Value()
		m.fields[0].input.SetValue(y)
		m.fields[1].input.SetValue(x)
		return m.sessionCmd(session.Swap{X: names[0], Y: names[1]})

	case key.Matches(msg, m.keys.Hover):
		return m.toggleHover()

	case key.Matches(msg, m.keys.Copy):
		return m.copyCmd()

	case key.Matches(msg, m.keys.Export):
		return m.snapshotCmd()

	case key.Matches(msg, m.keys.PageUp):
		m.questVP.HalfPageUp()
		return nil
	case key.Matches(msg, m.keys.PageDown):
		m.questVP.HalfPageDown()
		return nil
	}

	for i, b := range m.keys.Actions {
		if key.Matches(msg, b) {
			return m.questAction(i)
		}
	}

	// Everything else is typing.
	f := &m.fields[m.focus]
	before := f.input.Value()
	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	if f.slot != "" && f.input.Value() != before {
		f.cursor = 0
		return tea.Batch(cmd, m.sess.Update(session.QueryChanged{Slot: f.slot, Text: f.input.Value()}))
	}
	return cmd
}

func (m *Model) sessionCmd(msg tea.Msg) tea.Cmd {
	cmd := m.sess.Update(msg)
	m.afterSession()
	return cmd
}

func (m *Model) moveFocus(delta int) {
	m.fields[m.focus].input.Blur()
	n := len(m.fields)
	m.focus = ((m.focus+delta)%n + n) % n
	m.fields[m.focus].input.Focus()
}

// selectFocused binds the highlighted suggestion, or a typed FIPS code when
// there are no suggestions. On the state pair box it runs the state
// challenge.
func (m *Model) selectFocused() tea.Cmd {
	f := &m.fields[m.focus]
	if f.slot == "" {
		a, b := parseStatePair(f.input.Value(), m.homeState())
		return m.sessionCmd(session.Advance{Action: session.ChallengeStates, StateA: a, StateB: b})
	}

	id, display := "", ""
	if hits := m.sess.Suggestions(f.slot); len(hits) > 0 {
		hit := hits[min(f.cursor, len(hits)-1)]
		id, display = hit.ID, hit.Display
	} else if text := strings.TrimSpace(f.input.Value()); model.IsCountyID(text) {
		id, display = model.NormalizeID(text), model.NormalizeID(text)
	}
	if id == "" {
		return nil
	}
	f.input.SetValue(display)
	f.input.CursorEnd()
	f.cursor = 0

	// In challenge mode, picking the other county is the challenge.
	if q := m.sess.Quest(); q != nil && f.slot == slot.Other && q.Stage() == quest.ChallengeMode {
		return m.sessionCmd(session.Advance{Action: session.ChallengeCounty, OtherID: id})
	}
	m.requested[f.slot] = model.NormalizeID(id)
	m.unhover(f.slot)
	return m.sessionCmd(session.SelectEntity{Slot: f.slot, ID: id})
}

func (m Model) homeState() string {
	if q := m.sess.Quest(); q != nil {
		return q.HomeState()
	}
	return ""
}

// parseStatePair reads "CA TX" or "CA,TX". A single code is compared
// against fallback.
func parseStatePair(text, fallback string) (string, string) {
	parts := strings.FieldsFunc(strings.ToUpper(text), func(r rune) bool {
		return r == ' ' || r == ',' || r == '/'
	})
	switch len(parts) {
	case 0:
		return fallback, ""
	case 1:
		return fallback, parts[0]
	default:
		return parts[0], parts[1]
	}
}

func (m *Model) toggleHover() tea.Cmd {
	f := m.fields[m.focus]
	if f.slot == "" {
		return nil
	}
	var cmds []tea.Cmd
	if m.hovered != "" {
		cmds = append(cmds, m.sess.Update(session.HoverLeave{Slot: m.hovered}))
		if m.hovered == f.slot {
			m.hovered = ""
			return tea.Batch(cmds...)
		}
	}
	m.hovered = f.slot
	cmds = append(cmds, m.sess.Update(session.HoverEnter{Slot: f.slot}))
	return tea.Batch(cmds...)
}

// unhover ends a sticky hover on name before its layer goes away.
func (m *Model) unhover(name slot.Name) {
	if m.hovered != name {
		return
	}
	m.sess.Update(session.HoverLeave{Slot: name})
	m.hovered = ""
}

// questActionFor maps the quest's action copy ids onto session actions.
var questActionFor = map[string]session.Action{
	"ACTION_LEARN_STATE":      session.LearnState,
	"ACTION_JUMP_CHALLENGE":   session.JumpToChallenge,
	"ACTION_START_CHALLENGE":  session.StartChallenge,
	"ACTION_BACK":             session.Back,
	"ACTION_CHALLENGE_STATES": session.ChallengeStates,
	"ACTION_CHALLENGE_COUNTY": session.ChallengeCounty,
	"ACTION_CHALLENGE_PEERS":  session.ChallengePeers,
	"ACTION_RESTART":          session.Restart,
}

func (m *Model) questAction(i int) tea.Cmd {
	q := m.sess.Quest()
	if q == nil {
		return nil
	}
	actions := q.Actions()
	if i >= len(actions) {
		return nil
	}
	adv := session.Advance{Action: questActionFor[actions[i]]}
	switch adv.Action {
	case session.ChallengeStates:
		adv.StateA, adv.StateB = parseStatePair(m.statePairText(), q.HomeState())
	case session.ChallengeCounty:
		adv.OtherID = m.sess.Binding(slot.Other).ID
		if adv.OtherID == "" {
			if hits := m.sess.Suggestions(slot.Other); len(hits) > 0 {
				adv.OtherID = hits[0].ID
			}
		}
	case session.Restart:
		for i := range m.fields {
			m.fields[i].input.SetValue("")
		}
		m.requested = make(map[slot.Name]string)
		m.hovered = ""
	}
	cmd := m.sess.Update(adv)
	m.afterSession()
	return cmd
}

func (m Model) statePairText() string {
	for _, f := range m.fields {
		if f.slot == "" {
			return f.input.Value()
		}
	}
	return ""
}

func (m Model) copyCmd() tea.Cmd {
	text, what := ComparisonText(m.sess), "comparison"
	if q := m.sess.Quest(); q != nil {
		text, what = q.Markdown(), "quest summary"
	}
	write := m.opts.Copy
	return func() tea.Msg {
		return copiedMsg{what: what, err: write(text)}
	}
}

func (m Model) snapshotCmd() tea.Cmd {
	opts := export.SnapshotOptions{
		Path:  m.opts.SnapshotPath,
		Map:   m.sess.Map(),
		Index: m.sess.Coordinator().Index(),
	}
	for _, b := range m.sess.Bindings() {
		if e := m.sess.Entity(b.Name); e != nil {
			opts.Charts = append(opts.Charts, chart.ConfigFor(e, m.sess.Coordinator().BaseStyle(b.Name).Color))
		}
	}
	return func() tea.Msg {
		return snapshotDoneMsg{path: opts.Path, err: export.SaveSnapshot(opts)}
	}
}

// refreshQuest re-renders the quest Markdown when it or the width changed.
func (m *Model) refreshQuest() {
	q := m.sess.Quest()
	if q == nil {
		return
	}
	w := max(m.width/2-4, 20)
	h := max(m.height-m.slotPanelHeight()-6, 5)
	m.questVP.Width, m.questVP.Height = w, h

	md := q.Markdown()
	if md == m.mdCache && w == m.mdWidth {
		return
	}
	if m.renderer == nil || w != m.mdWidth {
		r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(w))
		if err != nil {
			m.logger.Debug("glamour unavailable", zap.Error(err))
		}
		m.renderer = r
	}
	m.mdCache, m.mdWidth = md, w

	out := md
	if m.renderer != nil {
		if rendered, err := m.renderer.Render(md); err == nil {
			out = strings.TrimRight(rendered, "\n ")
		}
	}
	m.questVP.SetContent(out)
}

// Session returns the underlying session.
func (m Model) Session() *session.Session { return m.sess }

// Status returns the footer message and whether it is an error.
func (m Model) Status() (string, bool) { return m.statusMsg, m.statusErr }
