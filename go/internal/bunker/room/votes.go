package room

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bunker/go/internal/bunker/events"
	"github.com/mcdev12/bunker/go/internal/models"
)

// voteLedger holds one round of votes keyed by voter.
type voteLedger struct {
	byVoter map[uuid.UUID]uuid.UUID
}

func newVoteLedger() voteLedger {
	return voteLedger{byVoter: make(map[uuid.UUID]uuid.UUID)}
}

func (l *voteLedger) reset() {
	clear(l.byVoter)
}

// cast records a vote. A later vote by the same voter overwrites the earlier one.
func (l *voteLedger) cast(voter, target uuid.UUID) {
	l.byVoter[voter] = target
}

func (l *voteLedger) get(voter uuid.UUID) (uuid.UUID, bool) {
	t, ok := l.byVoter[voter]
	return t, ok
}

func (l *voteLedger) drop(voter uuid.UUID) {
	delete(l.byVoter, voter)
}

func (l *voteLedger) size() int {
	return len(l.byVoter)
}

// counts sums votes per target, ignoring targets that are no longer active.
func (l *voteLedger) counts(active func(uuid.UUID) bool) map[uuid.UUID]int {
	out := make(map[uuid.UUID]int)
	for _, target := range l.byVoter {
		if active(target) {
			out[target]++
		}
	}
	return out
}

// winner returns the target with the strictly highest count. A tie at the
// maximum, or no votes at all, yields no winner.
func winner(counts map[uuid.UUID]int) (uuid.UUID, bool) {
	var (
		best uuid.UUID
		top  int
		tied bool
	)
	for target, n := range counts {
		switch {
		case n > top:
			best, top, tied = target, n, false
		case n == top:
			tied = true
		}
	}
	if top == 0 || tied {
		return uuid.Nil, false
	}
	return best, true
}

// SubmitVote records the turn holder's vote and passes the turn on.
func (r *Room) SubmitVote(handle, targetID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.playerByHandleLocked(handle)
	if err != nil {
		return err
	}
	if r.phase != models.PhaseVote {
		return ErrWrongPhase
	}
	if p.Eliminated {
		return ErrNotEligible
	}
	if _, voted := r.votes.get(p.ID); voted {
		return ErrAlreadyActed
	}
	if !r.queue.holds(p.ID) {
		return ErrNotYourTurn
	}
	target, err := uuid.Parse(targetID)
	if err != nil || !r.isActiveLocked(target) {
		return ErrInvalidTarget
	}
	r.touchLocked()

	r.votes.cast(p.ID, target)
	log.Debug().
		Str("room_code", r.code).
		Str("player_id", p.ID.String()).
		Str("target_id", target.String()).
		Msg("vote cast")
	r.broadcastTallyLocked()
	r.advanceLocked()
	return nil
}

func (r *Room) tallyPayloadLocked() events.VoteTallyUpdatePayload {
	counts := r.votes.counts(r.isActiveLocked)
	byID := make(map[string]int, len(counts))
	for id, n := range counts {
		byID[id.String()] = n
	}
	return events.VoteTallyUpdatePayload{
		Counts:     byID,
		TotalVoted: r.votes.size(),
		Quorum:     len(r.activeOrderLocked()),
	}
}

func (r *Room) broadcastTallyLocked() {
	r.broadcastLocked(r.tallyPayloadLocked())
}

// tallyLocked resolves the round's votes once the VOTE phase exits.
func (r *Room) tallyLocked() {
	r.tallied = true

	loserID, ok := winner(r.votes.counts(r.isActiveLocked))
	if !ok {
		log.Info().
			Str("room_code", r.code).
			Int("round", r.round).
			Msg("vote ended without elimination")
		r.broadcastLocked(events.VotingResultPayload{Message: "No decision. Nobody leaves the bunker this round."})
		r.scheduleLocked(r.settings.NoEliminationDelay, r.returnToRevealLocked)
		return
	}

	loser := r.players[loserID]
	loser.Eliminated = true
	r.eliminated = append(r.eliminated, loserID)
	r.votes.drop(loserID)

	survivors := len(r.activeOrderLocked())
	log.Info().
		Str("room_code", r.code).
		Str("player_id", loserID.String()).
		Int("round", r.round).
		Int("survivors", survivors).
		Int("places", r.scenario.Places).
		Msg("player voted out")

	r.broadcastLocked(events.VotingResultPayload{
		EliminatedID:   loserID.String(),
		EliminatedName: loser.Name,
		Message:        fmt.Sprintf("VOTED OUT: %s", loser.Name),
	})
	r.broadcastPlayersLocked()

	if survivors <= r.scenario.Places {
		r.finishLocked()
		return
	}
	r.round++
	r.votes.reset()
	r.scheduleLocked(r.settings.EliminationDelay, r.returnToRevealLocked)
}

func (r *Room) returnToRevealLocked() {
	r.enterPhaseLocked(models.PhaseReveal)
}
