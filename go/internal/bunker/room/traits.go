package room

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bunker/go/internal/bunker/events"
	"github.com/mcdev12/bunker/go/internal/models"
)

// RevealTrait discloses one of the turn holder's traits and passes the turn on.
func (r *Room) RevealTrait(handle, trait string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.playerByHandleLocked(handle)
	if err != nil {
		return err
	}
	if r.phase != models.PhaseReveal {
		return ErrWrongPhase
	}
	if p.Eliminated {
		return ErrNotEligible
	}
	if !r.queue.holds(p.ID) {
		return ErrNotYourTurn
	}
	if r.acted[p.ID] {
		return ErrAlreadyActed
	}
	key, err := models.ParseTraitKey(trait)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownTrait, trait)
	}
	if r.isRevealedLocked(p.ID, key) {
		return ErrTraitRevealed
	}
	r.touchLocked()

	r.revealLocked(p.ID, key)
	r.acted[p.ID] = true
	r.advanceLocked()
	return nil
}

func (r *Room) isRevealedLocked(id uuid.UUID, key models.TraitKey) bool {
	return slices.Contains(r.revealed[id], key)
}

// revealLocked appends key to the player's log and announces its value.
func (r *Room) revealLocked(id uuid.UUID, key models.TraitKey) {
	if r.isRevealedLocked(id, key) {
		return
	}
	r.revealed[id] = append(r.revealed[id], key)
	r.broadcastLocked(r.traitPayloadLocked(id, key))
}

func (r *Room) traitPayloadLocked(id uuid.UUID, key models.TraitKey) events.TraitRevealedPayload {
	return events.TraitRevealedPayload{
		PlayerID: id.String(),
		Trait:    key,
		Value:    r.characters[id].Value(key),
	}
}

// revealRandomLocked discloses a uniformly chosen trait not yet revealed.
func (r *Room) revealRandomLocked(id uuid.UUID) (models.TraitKey, bool) {
	candidates := make([]models.TraitKey, 0, len(models.AllTraits))
	for _, key := range models.AllTraits {
		if !r.isRevealedLocked(id, key) {
			candidates = append(candidates, key)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}
	key := candidates[r.rng.IntN(len(candidates))]
	r.revealLocked(id, key)
	return key, true
}

// UseAbility spends the turn holder's ability on a target player. It does
// not consume the turn.
func (r *Room) UseAbility(handle, trait, targetName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.playerByHandleLocked(handle)
	if err != nil {
		return err
	}
	if r.phase != models.PhaseReveal {
		return ErrWrongPhase
	}
	if p.Eliminated {
		return ErrNotEligible
	}
	if !r.queue.holds(p.ID) {
		return ErrNotYourTurn
	}
	char := r.characters[p.ID]
	if char == nil || !char.Ability.Available() {
		return ErrNoAbility
	}
	key, err := models.ParseTraitKey(trait)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownTrait, trait)
	}
	if want, _ := char.Ability.TargetTrait(); want != key {
		return ErrAbilityTrait
	}
	target := r.playerByNameLocked(targetName)
	if target == nil {
		return ErrUnknownPlayer
	}
	if target.Eliminated {
		return ErrInvalidTarget
	}
	r.touchLocked()

	targetChar := r.characters[target.ID]
	key, value, err := char.ApplyAbility(targetChar)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoAbility, err)
	}

	log.Info().
		Str("room_code", r.code).
		Str("player_id", p.ID.String()).
		Str("target_id", target.ID.String()).
		Str("ability", string(char.Ability.Kind)).
		Msg("ability used")

	r.broadcastLocked(events.AbilityUsedPayload{
		PlayerID: p.ID.String(),
		TargetID: target.ID.String(),
		Ability:  string(char.Ability.Kind),
		Trait:    key,
		Value:    value,
	})
	r.systemLocked(fmt.Sprintf("%s used %s on %s.", p.Name, char.Ability.Kind, target.Name))

	// Already disclosed values are re-announced with their new absolute value.
	if r.isRevealedLocked(target.ID, key) {
		r.broadcastLocked(r.traitPayloadLocked(target.ID, key))
	}
	r.sendToPlayerLocked(p.ID, events.CharacterAssignedPayload{Character: *char})
	if target.ID != p.ID {
		r.sendToPlayerLocked(target.ID, events.CharacterAssignedPayload{Character: *targetChar})
	}
	return nil
}

// AddTime extends the live countdown by one bonus.
func (r *Room) AddTime(handle string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.playerByHandleLocked(handle)
	if err != nil {
		return err
	}
	if p.Eliminated {
		return ErrNotEligible
	}
	if p.BonusUsed >= r.settings.MaxBonus {
		return ErrBonusExhausted
	}
	switch {
	case r.phase.IsGlobalTimerPhase():
	case r.phase.IsTurnPhase():
		if !r.queue.holds(p.ID) {
			return ErrNotYourTurn
		}
	default:
		return ErrWrongPhase
	}
	if !r.countingLocked() {
		return ErrWrongPhase
	}
	r.touchLocked()

	p.BonusUsed++
	r.timer.remaining += r.settings.BonusSeconds

	log.Debug().
		Str("room_code", r.code).
		Str("player_id", p.ID.String()).
		Int("bonus_used", p.BonusUsed).
		Int("remaining", r.timer.remaining).
		Msg("bonus time added")

	r.broadcastLocked(events.TimerTickPayload{Remaining: r.timer.remaining, Phase: r.phase})
	r.systemLocked(fmt.Sprintf("%s added %d seconds.", p.Name, r.settings.BonusSeconds))
	r.sendLocked(handle, events.BonusUsedUpdatePayload{Used: p.BonusUsed, Max: r.settings.MaxBonus})
	r.broadcastPlayersLocked()
	return nil
}
