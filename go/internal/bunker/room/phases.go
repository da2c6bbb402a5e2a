package room

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bunker/go/internal/bunker/events"
	"github.com/mcdev12/bunker/go/internal/models"
)

func (r *Room) phaseTitleLocked(p models.Phase) string {
	switch p {
	case models.PhaseIntro:
		return fmt.Sprintf("ROUND %d: INTRODUCTIONS", r.round)
	case models.PhaseReveal:
		return fmt.Sprintf("ROUND %d: REVEAL", r.round)
	case models.PhaseDebate:
		return fmt.Sprintf("ROUND %d: DEBATE", r.round)
	case models.PhaseVote:
		return fmt.Sprintf("ROUND %d: VOTE", r.round)
	case models.PhaseEnded:
		return "GAME OVER"
	}
	return "LOBBY"
}

func (r *Room) phaseChangeLocked() events.PhaseChangePayload {
	return events.PhaseChangePayload{
		Phase: r.phase,
		Title: r.phaseTitleLocked(r.phase),
		Round: r.round,
		Time:  r.settings.seed(r.phase),
	}
}

// enterPhaseLocked runs the entry behaviour of p. Any live timer is replaced.
func (r *Room) enterPhaseLocked(p models.Phase) {
	r.cancelTimerLocked()
	r.phase = p
	r.tallied = false
	r.queue.clear()
	if p == models.PhaseVote {
		r.votes.reset()
	}

	change := r.phaseChangeLocked()
	log.Info().
		Str("room_code", r.code).
		Str("phase", string(p)).
		Int("round", r.round).
		Msg("phase started")
	r.broadcastLocked(change)

	if p.IsGlobalTimerPhase() {
		r.systemLocked(fmt.Sprintf("%s has started.", change.Title))
		r.broadcastLocked(events.TurnUpdatePayload{})
		r.countdownLocked(change.Time, r.exitPhaseLocked)
		return
	}

	r.systemLocked(fmt.Sprintf("%s. Take turns!", change.Title))
	r.queue = newTurnQueue(r.activeOrderLocked())
	r.advanceLocked()
}

// exitPhaseLocked runs the exit behaviour of the current phase, on timer
// expiry, queue exhaustion or a forced skip.
func (r *Room) exitPhaseLocked() {
	r.cancelTimerLocked()

	switch r.phase {
	case models.PhaseReveal:
		clear(r.acted)
	case models.PhaseVote:
		r.tallyLocked()
		return
	}
	if next, ok := r.phase.Next(); ok {
		r.enterPhaseLocked(next)
	}
}

// advanceLocked passes the turn to the next active player in the queue.
func (r *Room) advanceLocked() {
	id, ok := r.queue.next(r.isActiveLocked)
	if !ok {
		r.broadcastLocked(events.TurnUpdatePayload{})
		r.systemLocked("Everyone has moved. The phase is ending...")
		r.scheduleLocked(r.settings.ExhaustedGrace, r.exitPhaseLocked)
		return
	}

	holder := r.players[id]
	r.countdownLocked(r.settings.TurnSeconds, r.turnTimeoutLocked)
	r.broadcastLocked(events.TurnUpdatePayload{ActivePlayerID: id.String(), ActiveName: holder.Name})
	r.broadcastLocked(events.TimerTickPayload{Remaining: r.settings.TurnSeconds, Phase: r.phase})
}

// turnTimeoutLocked acts for a holder whose turn ran out, then advances.
func (r *Room) turnTimeoutLocked() {
	id, ok := r.queue.current()
	if !ok {
		return
	}
	holder := r.players[id]

	switch r.phase {
	case models.PhaseReveal:
		if !r.acted[id] {
			if key, ok := r.revealRandomLocked(id); ok {
				r.systemLocked(fmt.Sprintf("%s ran out of time. Their %s was revealed.", holder.Name, key))
			}
			r.acted[id] = true
		}
	case models.PhaseVote:
		if _, voted := r.votes.get(id); !voted {
			r.votes.cast(id, id)
			r.broadcastTallyLocked()
			r.systemLocked(fmt.Sprintf("%s slept through their turn and votes against themselves!", holder.Name))
		}
	}

	log.Debug().
		Str("room_code", r.code).
		Str("player_id", id.String()).
		Str("phase", string(r.phase)).
		Msg("turn timed out")
	r.advanceLocked()
}

// SkipPhase ends the current phase early. Admin only.
func (r *Room) SkipPhase(handle string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.playerByHandleLocked(handle)
	if err != nil {
		return err
	}
	if !p.Admin {
		return ErrNotAdmin
	}
	if !r.phase.InGame() {
		return ErrGameNotStarted
	}
	r.touchLocked()

	log.Info().
		Str("room_code", r.code).
		Str("phase", string(r.phase)).
		Msg("phase skipped by admin")
	r.systemLocked("The admin skipped the phase.")

	// The tally already ran; only the delayed return to REVEAL is pending.
	if r.tallied {
		r.enterPhaseLocked(models.PhaseReveal)
		return nil
	}
	r.exitPhaseLocked()
	return nil
}
