package session

import (
	"github.com/vanderheijden86/civicmap/pkg/model"
	"github.com/vanderheijden86/civicmap/pkg/slot"
)

// Intents are the user actions a Session accepts through Update.

// QueryChanged reports new text in a slot's search box.
type QueryChanged struct {
	Slot slot.Name
	Text string
}

// SelectEntity binds a search suggestion to a slot.
type SelectEntity struct {
	Slot slot.Name
	ID   string
}

// ClearSlot empties a slot.
type ClearSlot struct {
	Slot slot.Name
}

// Swap exchanges two slots.
type Swap struct {
	X, Y slot.Name
}

// HoverEnter starts hovering a slot's polygon or panel.
type HoverEnter struct {
	Slot slot.Name
}

// HoverLeave ends a hover.
type HoverLeave struct {
	Slot slot.Name
}

// Action is a quest step.
type Action int

const (
	LearnState Action = iota
	JumpToChallenge
	StartChallenge
	Back
	ChallengeStates
	ChallengeCounty
	ChallengePeers
	Restart
)

func (a Action) String() string {
	switch a {
	case LearnState:
		return "learn_state"
	case JumpToChallenge:
		return "jump_to_challenge"
	case StartChallenge:
		return "start_challenge"
	case Back:
		return "back"
	case ChallengeStates:
		return "challenge_states"
	case ChallengeCounty:
		return "challenge_county"
	case ChallengePeers:
		return "challenge_peers"
	case Restart:
		return "restart"
	default:
		return "unknown"
	}
}

// Advance asks the quest to take an action. StateA and StateB are used by
// ChallengeStates, OtherID by ChallengeCounty.
type Advance struct {
	Action  Action
	StateA  string
	StateB  string
	OtherID string
}

// Completion messages produced by the commands a Session returns.

// FetchedMsg completes a bind.
type FetchedMsg struct {
	Slot   slot.Name
	Seq    uint64
	ID     string
	Entity *model.Entity
	Err    error
}

// StateLearnedMsg completes LearnState.
type StateLearnedMsg struct {
	State   string
	Summary *model.StateSummary
	Err     error
}

// ChallengeMsg completes a quest challenge.
type ChallengeMsg struct {
	Challenge Action
	Seqs      map[slot.Name]uint64
	Mine      *model.Entity
	Other     *model.Entity
	Gaps      *model.StateGaps
	Err       error
}
