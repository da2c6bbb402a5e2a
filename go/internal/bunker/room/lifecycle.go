package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bunker/go/internal/bunker/events"
	"github.com/mcdev12/bunker/go/internal/models"
)

// StartGame asks the narrative service for a scenario and character sheets.
// The room stays in LOBBY until the setup arrives.
func (r *Room) StartGame(handle string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.playerByHandleLocked(handle)
	if err != nil {
		return err
	}
	if !p.Admin {
		return ErrNotAdmin
	}
	if r.phase != models.PhaseLobby {
		return ErrAlreadyStarted
	}
	if r.startToken != 0 {
		return ErrStartPending
	}
	if len(r.order) < r.settings.MinPlayers {
		return fmt.Errorf("%w: need %d, have %d", ErrNotEnoughPlayers, r.settings.MinPlayers, len(r.order))
	}
	r.touchLocked()

	r.startSeq++
	token := r.startSeq
	r.startToken = token
	r.starter = p.ID
	count := len(r.order)

	log.Info().
		Str("room_code", r.code).
		Int("players", count).
		Msg("generating game setup")
	r.systemLocked("Generating the world... please wait.")

	r.dispatch(func(ctx context.Context) {
		var (
			setup *models.GameSetup
			err   = errors.New("narrative service not configured")
		)
		if r.generator != nil {
			setup, err = r.generator.GenerateSetup(ctx, count)
		}
		r.completeStart(token, setup, err)
	})
	return nil
}

// completeStart applies a setup result if the request is still current.
func (r *Room) completeStart(token uint64, setup *models.GameSetup, genErr error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.startToken != token {
		return
	}
	r.startToken = 0

	err := genErr
	if err == nil {
		switch {
		case setup == nil:
			err = errors.New("empty setup")
		case len(r.order) < r.settings.MinPlayers:
			err = ErrNotEnoughPlayers
		case len(setup.Characters) < len(r.order):
			err = fmt.Errorf("setup has %d characters for %d players", len(setup.Characters), len(r.order))
		}
	}
	if err != nil {
		log.Error().
			Err(err).
			Str("room_code", r.code).
			Msg("game setup failed")
		reason := ErrGenerationFailed.Error()
		if errors.Is(err, ErrNotEnoughPlayers) {
			reason = ErrNotEnoughPlayers.Error()
		}
		r.sendToPlayerLocked(r.starter, events.ErrorPayload{Message: reason})
		r.sendToPlayerLocked(r.starter, events.StartFailedPayload{Reason: reason})
		return
	}

	scenario := setup.Scenario
	if scenario.Places <= 0 {
		scenario.Places = models.DefaultPlaces
	}
	if scenario.Places >= len(r.order) {
		scenario.Places = max(len(r.order)-1, 1)
	}
	r.scenario = &scenario
	r.round = 1
	clear(r.characters)
	clear(r.revealed)
	clear(r.acted)
	r.votes.reset()
	r.eliminated = nil
	r.story = ""

	for i, id := range r.order {
		char := setup.Characters[i]
		r.characters[id] = &char
	}

	log.Info().
		Str("room_code", r.code).
		Str("scenario", scenario.Title).
		Int("places", scenario.Places).
		Int("players", len(r.order)).
		Msg("game started")

	r.broadcastLocked(events.ScenarioUpdatePayload{Scenario: scenario, Round: r.round})
	for _, id := range r.order {
		r.sendToPlayerLocked(id, events.CharacterAssignedPayload{Character: *r.characters[id]})
	}
	for _, id := range r.order {
		for _, key := range models.OpeningTraits {
			r.revealLocked(id, key)
		}
	}
	r.enterPhaseLocked(models.PhaseIntro)
}

// FinishGame ends the game with the current survivors. Admin only.
func (r *Room) FinishGame(handle string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.playerByHandleLocked(handle)
	if err != nil {
		return err
	}
	if !p.Admin {
		return ErrNotAdmin
	}
	if r.phase == models.PhaseLobby {
		return ErrGameNotStarted
	}
	if r.phase == models.PhaseEnded {
		return ErrWrongPhase
	}
	r.touchLocked()
	r.finishLocked()
	return nil
}

func (r *Room) survivorsLocked() []models.Survivor {
	active := r.activeOrderLocked()
	out := make([]models.Survivor, 0, len(active))
	for _, id := range active {
		out = append(out, models.Survivor{Name: r.players[id].Name, Character: *r.characters[id]})
	}
	return out
}

// finishLocked enters ENDED and requests the ending story.
func (r *Room) finishLocked() {
	r.cancelTimerLocked()
	r.queue.clear()
	r.phase = models.PhaseEnded

	log.Info().
		Str("room_code", r.code).
		Int("round", r.round).
		Msg("game ended")

	r.broadcastLocked(r.phaseChangeLocked())
	r.broadcastLocked(events.TurnUpdatePayload{})
	r.systemLocked("Processing data... calculating odds of survival...")

	scenario := *r.scenario
	survivors := r.survivorsLocked()
	eliminated := make([]string, 0, len(r.eliminated))
	for _, id := range r.eliminated {
		eliminated = append(eliminated, r.players[id].Name)
	}
	rounds := r.round

	r.dispatch(func(ctx context.Context) {
		story := FallbackEnding
		if r.generator != nil {
			s, err := r.generator.GenerateEnding(ctx, scenario, survivors)
			if err != nil {
				log.Error().
					Err(err).
					Str("room_code", r.code).
					Msg("ending generation failed, using fallback")
			} else {
				story = s
			}
		}

		if !r.completeEnding(story, survivors) || r.archiver == nil {
			return
		}
		record := models.GameRecord{
			RoomCode:   r.code,
			Scenario:   scenario,
			Rounds:     rounds,
			Survivors:  survivors,
			Eliminated: eliminated,
			Story:      story,
			EndedAt:    r.clock.Now().UTC(),
		}
		if err := r.archiver.ArchiveGame(ctx, record); err != nil {
			log.Error().
				Err(err).
				Str("room_code", r.code).
				Msg("failed to archive game")
		}
	})
}

func (r *Room) completeEnding(story string, survivors []models.Survivor) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false
	}
	r.story = story
	names := make([]string, 0, len(survivors))
	for _, s := range survivors {
		names = append(names, s.Name)
	}
	r.broadcastLocked(events.GameOverPayload{Story: story, Survivors: names})
	return true
}

// survivorNamesLocked lists active players in join order.
func (r *Room) survivorNamesLocked() []string {
	ids := r.activeOrderLocked()
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, r.players[id].Name)
	}
	return names
}
