package session

import (
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/civicmap/pkg/model"
	"github.com/vanderheijden86/civicmap/pkg/quest"
	"github.com/vanderheijden86/civicmap/pkg/slot"
)

func (s *Session) advance(msg Advance) tea.Cmd {
	q := s.quest
	if q == nil {
		return nil
	}
	s.logger.Debug("quest action", zap.Stringer("action", msg.Action), zap.Stringer("stage", q.Stage()))

	switch msg.Action {
	case LearnState:
		if q.CanLearnState() != nil {
			return nil
		}
		code := q.HomeState()
		ctx, svc := s.ctx, s.service
		return func() tea.Msg {
			sum, err := svc.State(ctx, code)
			return StateLearnedMsg{State: code, Summary: sum, Err: err}
		}

	case JumpToChallenge:
		_ = q.JumpToChallenge()
	case StartChallenge:
		_ = q.StartChallenge()
	case Back:
		_ = q.Back()

	case ChallengeStates:
		if q.CheckStates(msg.StateA, msg.StateB) != nil {
			return nil
		}
		return s.stateChallenge(model.NormalizeID(msg.StateA), model.NormalizeID(msg.StateB))

	case ChallengeCounty:
		mine := s.Entity(slot.Mine)
		if q.CheckCounty(mine, msg.OtherID) != nil {
			return nil
		}
		return s.countyChallenge(ChallengeCounty, mine, model.NormalizeID(msg.OtherID))

	case ChallengePeers:
		mine := s.Entity(slot.Mine)
		if q.CheckPeers(mine) != nil {
			return nil
		}
		return s.countyChallenge(ChallengePeers, mine, mine.Peers[0].ID)

	case Restart:
		q.Restart()
		for _, name := range s.slots.Names() {
			s.clear(name)
		}
		s.coord.Reset()
		s.gaps = nil
	}
	return nil
}

func (s *Session) nextSeqs(names ...slot.Name) map[slot.Name]uint64 {
	out := make(map[slot.Name]uint64, len(names))
	for _, n := range names {
		s.seq[n]++
		out[n] = s.seq[n]
	}
	return out
}

// stateChallenge fetches both states and their gaps in parallel, then binds
// mine to a and other to b.
func (s *Session) stateChallenge(a, b string) tea.Cmd {
	seqs := s.nextSeqs(slot.Mine, slot.Other)
	ctx, st, svc := s.ctx, s.store, s.service
	return func() tea.Msg {
		var mine, other *model.Entity
		var gaps *model.StateGaps
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			mine, err = st.Fetch(gctx, a)
			return err
		})
		g.Go(func() (err error) {
			other, err = st.Fetch(gctx, b)
			return err
		})
		g.Go(func() (err error) {
			gaps, err = svc.CompareStates(gctx, a, b)
			return err
		})
		err := g.Wait()
		return ChallengeMsg{Challenge: ChallengeStates, Seqs: seqs, Mine: mine, Other: other, Gaps: gaps, Err: err}
	}
}

// countyChallenge keeps mine bound and binds otherID to other.
func (s *Session) countyChallenge(kind Action, mine *model.Entity, otherID string) tea.Cmd {
	seqs := s.nextSeqs(slot.Mine, slot.Other)
	ctx, st := s.ctx, s.store
	return func() tea.Msg {
		other, err := st.Fetch(ctx, otherID)
		return ChallengeMsg{Challenge: kind, Seqs: seqs, Mine: mine, Other: other, Err: err}
	}
}

func (s *Session) stateLearned(msg StateLearnedMsg) {
	if s.quest == nil {
		return
	}
	if msg.Err != nil {
		s.quest.SetNotice("NOTICE_NOT_FOUND", msg.State)
		s.logger.Info("state summary failed", zap.String("state", msg.State), zap.Error(msg.Err))
		return
	}
	_ = s.quest.LearnState(msg.Summary)
}

func (s *Session) challengeDone(msg ChallengeMsg) {
	q := s.quest
	if q == nil {
		return
	}
	for name, seq := range msg.Seqs {
		if s.seq[name] != seq {
			s.logger.Debug("dropping stale challenge", zap.Stringer("challenge", msg.Challenge))
			return
		}
	}
	if msg.Err != nil {
		what := "comparison"
		if msg.Other == nil && msg.Mine != nil {
			what = "the other county"
		}
		q.SetNotice("NOTICE_NOT_FOUND", what)
		s.logger.Info("challenge failed", zap.Stringer("challenge", msg.Challenge), zap.Error(msg.Err))
		return
	}

	s.bind(slot.Mine, msg.Mine)
	s.bind(slot.Other, msg.Other)

	r := quest.Result{Mine: msg.Mine, Other: msg.Other, Gaps: msg.Gaps}
	switch msg.Challenge {
	case ChallengeStates:
		r.Challenge = quest.ChallengeStates
		s.gaps = msg.Gaps
	case ChallengeCounty:
		r.Challenge = quest.ChallengeCounty
	case ChallengePeers:
		r.Challenge = quest.ChallengePeers
	}
	_ = q.Complete(r)
}
