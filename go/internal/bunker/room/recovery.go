package room

import (
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/bunker/go/internal/bunker/events"
	"github.com/mcdev12/bunker/go/internal/models"
)

// replayLocked brings a reconnecting client up to date. Every notification
// carries absolute state, so a client that already saw some of it ends up
// in the same place.
func (r *Room) replayLocked(id uuid.UUID, handle string) {
	if r.scenario != nil {
		r.sendLocked(handle, events.ScenarioUpdatePayload{Scenario: *r.scenario, Round: r.round})
	}
	if char, ok := r.characters[id]; ok {
		r.sendLocked(handle, events.CharacterAssignedPayload{Character: *char})
	}
	for _, pid := range r.order {
		for _, key := range r.revealed[pid] {
			r.sendLocked(handle, r.traitPayloadLocked(pid, key))
		}
	}

	change := r.phaseChangeLocked()
	change.Time = r.remainingLocked()
	r.sendLocked(handle, change)
	r.sendLocked(handle, r.turnPayloadLocked())
	if r.countingLocked() {
		r.sendLocked(handle, events.TimerTickPayload{Remaining: r.timer.remaining, Phase: r.phase})
	}
	if r.phase == models.PhaseVote {
		r.sendLocked(handle, r.tallyPayloadLocked())
	}
	r.sendLocked(handle, events.BonusUsedUpdatePayload{Used: r.players[id].BonusUsed, Max: r.settings.MaxBonus})
	if r.phase == models.PhaseEnded && r.story != "" {
		r.sendLocked(handle, events.GameOverPayload{Story: r.story, Survivors: r.survivorNamesLocked()})
	}
}

func (r *Room) turnPayloadLocked() events.TurnUpdatePayload {
	id, ok := r.queue.current()
	if !ok {
		return events.TurnUpdatePayload{}
	}
	return events.TurnUpdatePayload{ActivePlayerID: id.String(), ActiveName: r.players[id].Name}
}

// Snapshot is the public view of a room for spectators. It never contains
// undisclosed traits.
type Snapshot struct {
	Code           string                                `json:"code"`
	Phase          models.Phase                          `json:"phase"`
	Round          int                                   `json:"round"`
	Scenario       *models.Scenario                      `json:"scenario,omitempty"`
	Players        []models.PlayerView                   `json:"players"`
	ActivePlayerID string                                `json:"active_player_id,omitempty"`
	Remaining      int                                   `json:"remaining"`
	Revealed       map[string]map[models.TraitKey]string `json:"revealed"`
	Queue          []string                              `json:"queue,omitempty"`
	CreatedAt      time.Time                             `json:"created_at"`
}

// Snapshot returns the current public state of the room.
func (r *Room) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Snapshot{
		Code:      r.code,
		Phase:     r.phase,
		Round:     r.round,
		Players:   make([]models.PlayerView, 0, len(r.order)),
		Remaining: r.remainingLocked(),
		Revealed:  make(map[string]map[models.TraitKey]string, len(r.revealed)),
		CreatedAt: r.createdAt,
	}
	if r.scenario != nil {
		sc := *r.scenario
		s.Scenario = &sc
	}
	for _, id := range r.order {
		s.Players = append(s.Players, r.players[id].View())
		if keys := r.revealed[id]; len(keys) > 0 {
			traits := make(map[models.TraitKey]string, len(keys))
			for _, key := range keys {
				traits[key] = r.characters[id].Value(key)
			}
			s.Revealed[id.String()] = traits
		}
	}
	if id, ok := r.queue.current(); ok {
		s.ActivePlayerID = id.String()
	}
	for _, id := range r.queue.ids {
		s.Queue = append(s.Queue, id.String())
	}
	return s
}

// Phase returns the current phase.
func (r *Room) Phase() models.Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}
