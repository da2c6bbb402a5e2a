package models

// Phase defines the stage a room is in.
type Phase string

const (
	PhaseLobby  Phase = "LOBBY"
	PhaseIntro  Phase = "INTRO"
	PhaseReveal Phase = "REVEAL"
	PhaseDebate Phase = "DEBATE"
	PhaseVote   Phase = "VOTE"
	PhaseEnded  Phase = "ENDED"
)

// IsTurnPhase reports whether input in this phase is gated by the turn queue.
func (p Phase) IsTurnPhase() bool {
	return p == PhaseReveal || p == PhaseVote
}

// IsGlobalTimerPhase reports whether the phase runs one room-wide countdown.
func (p Phase) IsGlobalTimerPhase() bool {
	return p == PhaseIntro || p == PhaseDebate
}

// InGame reports whether a game has started and not yet ended.
func (p Phase) InGame() bool {
	return p != PhaseLobby && p != PhaseEnded
}

// Next returns the phase entered when p exits normally. VOTE has no fixed
// successor since it depends on the tally.
func (p Phase) Next() (Phase, bool) {
	switch p {
	case PhaseIntro:
		return PhaseReveal, true
	case PhaseReveal:
		return PhaseDebate, true
	case PhaseDebate:
		return PhaseVote, true
	}
	return "", false
}
