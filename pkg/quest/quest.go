// Package quest runs the staged civic quest: find a home county, learn about
// its state, complete a comparison challenge, and collect XP and badges along
// the way. The controller only validates and records progress; fetching and
// slot binding belong to the session driving it.
package quest

import (
	"context"
	"errors"
	"fmt"

	"github.com/looplab/fsm"
	"github.com/zyedidia/generic/mapset"

	"github.com/vanderheijden86/civicmap/pkg/model"
)

// Stage is a quest stage, numbered 1 to 4.
type Stage int

const (
	CountyScout Stage = iota + 1
	StateExplorer
	ChallengeMode
	CivicStrategist
)

var stageStates = map[Stage]string{
	CountyScout:     "county_scout",
	StateExplorer:   "state_explorer",
	ChallengeMode:   "challenge_mode",
	CivicStrategist: "civic_strategist",
}

func (s Stage) state() string { return stageStates[s] }

func stageOf(state string) Stage {
	for s, name := range stageStates {
		if name == state {
			return s
		}
	}
	return CountyScout
}

func (s Stage) String() string { return s.state() }

// Events of the stage machine.
const (
	evLearnState     = "learn_state"
	evJumpChallenge  = "jump_challenge"
	evStartChallenge = "start_challenge"
	evBack           = "back"
	evComplete       = "complete_challenge"
	evRestart        = "restart"
)

// Badge identifies an award. Labels come from Copy.
type Badge string

const (
	BadgeHomeCounty       Badge = "BADGE_HOME_COUNTY"
	BadgeStateDecoder     Badge = "BADGE_STATE_DECODER"
	BadgeStateRival       Badge = "BADGE_STATE_RIVAL"
	BadgeCountyChallenger Badge = "BADGE_COUNTY_CHALLENGER"
	BadgePeerReviewer     Badge = "BADGE_PEER_REVIEWER"
)

// Challenge is one of the stage 3 comparisons.
type Challenge string

const (
	ChallengeStates Challenge = "states"
	ChallengeCounty Challenge = "county"
	ChallengePeers  Challenge = "peers"
)

var challengeBadges = map[Challenge]Badge{
	ChallengeStates: BadgeStateRival,
	ChallengeCounty: BadgeCountyChallenger,
	ChallengePeers:  BadgePeerReviewer,
}

// ErrPreconditionMissing marks an action the quest cannot take yet. The
// quest is left unchanged and a notice explains why.
var ErrPreconditionMissing = errors.New("precondition missing")

// PreconditionError names the missing precondition by its notice id.
type PreconditionError struct {
	Notice string
	Args   []any
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%v: %s", ErrPreconditionMissing, e.Notice)
}

// Is matches ErrPreconditionMissing.
func (e *PreconditionError) Is(target error) bool { return target == ErrPreconditionMissing }

// Award is XP and an optional badge granted by one action.
type Award struct {
	XP    int
	Badge Badge
}

// Zero reports whether nothing was granted.
func (a Award) Zero() bool { return a.XP == 0 && a.Badge == "" }

// XP amounts per milestone.
type XP struct {
	HomeCounty int
	State      int
	Challenge  int
}

// DefaultXP matches the amounts shown in the quest copy.
var DefaultXP = XP{HomeCounty: 20, State: 30, Challenge: 50}

// Result is the outcome of a completed challenge, kept for the summary.
type Result struct {
	Challenge Challenge
	Mine      *model.Entity
	Other     *model.Entity
	Gaps      *model.StateGaps
}

// Controller holds the quest state of one session.
type Controller struct {
	machine *fsm.FSM
	xpTable XP
	copy    *Copy

	xp         int
	badges     mapset.Set[Badge]
	badgeOrder []Badge
	home       *model.Entity
	summary    *model.StateSummary
	results    []Result
	notice     string
	awards     []Award // drained by TakeAwards
}

// Option configures a Controller.
type Option func(*Controller)

// WithXP overrides XP amounts.
func WithXP(xp XP) Option {
	return func(c *Controller) { c.xpTable = xp }
}

// WithCopy sets the narrative catalog.
func WithCopy(cp *Copy) Option {
	return func(c *Controller) { c.copy = cp }
}

// New starts a quest at stage 1.
func New(opts ...Option) *Controller {
	c := &Controller{xpTable: DefaultXP, badges: mapset.New[Badge]()}
	for _, opt := range opts {
		opt(c)
	}
	if c.copy == nil {
		c.copy = mustDefaultCopy()
	}
	all := []string{CountyScout.state(), StateExplorer.state(), ChallengeMode.state(), CivicStrategist.state()}
	c.machine = fsm.NewFSM(
		CountyScout.state(),
		fsm.Events{
			{Name: evLearnState, Src: []string{CountyScout.state()}, Dst: StateExplorer.state()},
			{Name: evJumpChallenge, Src: []string{CountyScout.state()}, Dst: ChallengeMode.state()},
			{Name: evStartChallenge, Src: []string{StateExplorer.state()}, Dst: ChallengeMode.state()},
			{Name: evBack, Src: []string{StateExplorer.state()}, Dst: CountyScout.state()},
			{Name: evComplete, Src: []string{ChallengeMode.state()}, Dst: CivicStrategist.state()},
			{Name: evRestart, Src: all, Dst: CountyScout.state()},
		},
		fsm.Callbacks{
			"enter_" + StateExplorer.state(): func(_ context.Context, _ *fsm.Event) {
				c.grant(Award{XP: c.xpTable.State, Badge: BadgeStateDecoder})
			},
		},
	)
	return c
}

// Copy returns the narrative catalog.
func (c *Controller) Copy() *Copy { return c.copy }

// Stage returns the current stage.
func (c *Controller) Stage() Stage { return stageOf(c.machine.Current()) }

// XP returns the accumulated XP.
func (c *Controller) XP() int { return c.xp }

// Badges returns earned badges in award order.
func (c *Controller) Badges() []Badge {
	return append([]Badge(nil), c.badgeOrder...)
}

// HasBadge reports whether b was earned.
func (c *Controller) HasBadge(b Badge) bool { return c.badges.Has(b) }

// BadgeLabel returns the display label of b.
func (c *Controller) BadgeLabel(b Badge) string { return c.copy.Get(string(b)) }

// HomeCounty returns the chosen home county, or nil.
func (c *Controller) HomeCounty() *model.Entity { return c.home }

// HomeState returns the home county's state code, or "".
func (c *Controller) HomeState() string {
	if c.home == nil {
		return ""
	}
	return c.home.ParentRegion
}

// StateSummary returns the last learned state summary, or nil.
func (c *Controller) StateSummary() *model.StateSummary { return c.summary }

// Results returns completed challenges in order.
func (c *Controller) Results() []Result { return c.results }

// Notice returns the inline notice to show, or "".
func (c *Controller) Notice() string { return c.notice }

// SetNotice shows a notice built from a copy id.
func (c *Controller) SetNotice(id string, args ...any) {
	c.notice = c.copy.Format(id, args)
}

// ClearNotice hides the notice.
func (c *Controller) ClearNotice() { c.notice = "" }

// TakeAwards returns and forgets the awards granted since the last call.
func (c *Controller) TakeAwards() []Award {
	out := c.awards
	c.awards = nil
	return out
}

// AwardText formats an award for display.
func (c *Controller) AwardText(a Award) string {
	if a.Badge == "" {
		return c.copy.Format("AWARD", []any{a.XP, ""})
	}
	return c.copy.Format("AWARD", []any{a.XP, c.BadgeLabel(a.Badge)})
}

// grant adds XP and the badge, but only the first time the badge is earned.
func (c *Controller) grant(a Award) bool {
	if a.Badge != "" && c.badges.Has(a.Badge) {
		return false
	}
	c.xp += a.XP
	if a.Badge != "" {
		c.badges.Put(a.Badge)
		c.badgeOrder = append(c.badgeOrder, a.Badge)
	}
	c.awards = append(c.awards, a)
	return true
}

func (c *Controller) fail(notice string, args ...any) error {
	c.SetNotice(notice, args...)
	return &PreconditionError{Notice: notice, Args: args}
}

func (c *Controller) fire(event string) error {
	err := c.machine.Event(context.Background(), event)
	var noTransition fsm.NoTransitionError
	if err != nil && !errors.As(err, &noTransition) {
		return c.fail("NOTICE_WRONG_STAGE")
	}
	return nil
}

// SetHomeCounty records the county bound to the mine slot in stage 1. The
// first choice earns the home county badge; later choices replace the county
// without a second award.
func (c *Controller) SetHomeCounty(e *model.Entity) error {
	if c.Stage() != CountyScout {
		return c.fail("NOTICE_WRONG_STAGE")
	}
	if e == nil || e.Kind == model.KindState {
		return c.fail("NOTICE_NEED_HOME_COUNTY")
	}
	c.home = e
	c.ClearNotice()
	c.grant(Award{XP: c.xpTable.HomeCounty, Badge: BadgeHomeCounty})
	return nil
}

// CanLearnState checks the preconditions of LearnState before the state
// summary is fetched.
func (c *Controller) CanLearnState() error {
	if !c.machine.Can(evLearnState) {
		return c.fail("NOTICE_WRONG_STAGE")
	}
	if c.home == nil {
		return c.fail("NOTICE_NEED_HOME_COUNTY")
	}
	return nil
}

// LearnState moves to stage 2 with the fetched summary of the home state.
func (c *Controller) LearnState(sum *model.StateSummary) error {
	if err := c.CanLearnState(); err != nil {
		return err
	}
	if sum == nil {
		return c.fail("NOTICE_NOT_FOUND", c.HomeState())
	}
	c.summary = sum
	c.ClearNotice()
	return c.fire(evLearnState)
}

// JumpToChallenge skips stage 2.
func (c *Controller) JumpToChallenge() error {
	if err := c.fire(evJumpChallenge); err != nil {
		return err
	}
	c.ClearNotice()
	return nil
}

// StartChallenge moves from stage 2 to 3.
func (c *Controller) StartChallenge() error {
	if err := c.fire(evStartChallenge); err != nil {
		return err
	}
	c.ClearNotice()
	return nil
}

// Back returns from stage 2 to 1.
func (c *Controller) Back() error {
	if err := c.fire(evBack); err != nil {
		return err
	}
	c.ClearNotice()
	return nil
}

// CheckStates validates a state-vs-state challenge before anything is
// fetched. Codes are compared case-insensitively.
func (c *Controller) CheckStates(a, b string) error {
	if c.Stage() != ChallengeMode {
		return c.fail("NOTICE_WRONG_STAGE")
	}
	a, b = model.NormalizeID(a), model.NormalizeID(b)
	if a == "" || b == "" {
		return c.fail("NOTICE_NEED_STATES")
	}
	if a == b {
		return c.fail("NOTICE_SAME_STATE")
	}
	return nil
}

// CheckCounty validates a county-vs-county challenge. mine is the entity
// currently bound to the mine slot; the challenge needs a county there.
func (c *Controller) CheckCounty(mine *model.Entity, otherID string) error {
	if c.Stage() != ChallengeMode {
		return c.fail("NOTICE_WRONG_STAGE")
	}
	if !isCounty(mine) {
		return c.fail("NOTICE_NEED_HOME_COUNTY")
	}
	if model.NormalizeID(otherID) == "" {
		return c.fail("NOTICE_NEED_OTHER_COUNTY")
	}
	return nil
}

// CheckPeers validates a county-vs-peers challenge against the county bound
// to the mine slot. A county without peers is reported as a notice; the
// quest stays in stage 3.
func (c *Controller) CheckPeers(mine *model.Entity) error {
	if c.Stage() != ChallengeMode {
		return c.fail("NOTICE_WRONG_STAGE")
	}
	if !isCounty(mine) {
		return c.fail("NOTICE_NEED_HOME_COUNTY")
	}
	if !mine.HasPeers() {
		return c.fail("NOTICE_NO_PEERS", mine.Display())
	}
	return nil
}

func isCounty(e *model.Entity) bool { return e != nil && e.Kind != model.KindState }

// Complete records a finished challenge, grants its XP and badge and moves
// to stage 4.
func (c *Controller) Complete(r Result) error {
	if !c.machine.Can(evComplete) {
		return c.fail("NOTICE_WRONG_STAGE")
	}
	badge, ok := challengeBadges[r.Challenge]
	if !ok {
		return fmt.Errorf("unknown challenge %q", r.Challenge)
	}
	if err := c.fire(evComplete); err != nil {
		return err
	}
	c.results = append(c.results, r)
	c.ClearNotice()
	c.grant(Award{XP: c.xpTable.Challenge, Badge: badge})
	return nil
}

// Restart clears all quest state and returns to stage 1.
func (c *Controller) Restart() {
	_ = c.fire(evRestart)
	c.xp = 0
	c.badges = mapset.New[Badge]()
	c.badgeOrder = nil
	c.home = nil
	c.summary = nil
	c.results = nil
	c.notice = ""
	c.awards = nil
}

// Actions lists the copy ids of the actions available in the current stage.
func (c *Controller) Actions() []string {
	switch c.Stage() {
	case CountyScout:
		return []string{"ACTION_LEARN_STATE", "ACTION_JUMP_CHALLENGE"}
	case StateExplorer:
		return []string{"ACTION_START_CHALLENGE", "ACTION_BACK"}
	case ChallengeMode:
		return []string{"ACTION_CHALLENGE_STATES", "ACTION_CHALLENGE_COUNTY", "ACTION_CHALLENGE_PEERS"}
	default:
		return []string{"ACTION_RESTART"}
	}
}
