package room

import (
	"time"

	"github.com/mcdev12/bunker/go/internal/models"
)

// Settings tunes the timing and thresholds of every room.
type Settings struct {
	IntroSeconds  int `yaml:"intro_seconds"`
	DebateSeconds int `yaml:"debate_seconds"`
	TurnSeconds   int `yaml:"turn_seconds"`
	BonusSeconds  int `yaml:"bonus_seconds"`
	MaxBonus      int `yaml:"max_bonus"`
	MinPlayers    int `yaml:"min_players"`

	// Delays before the next phase once a queue is exhausted or a tally resolved.
	ExhaustedGrace     time.Duration `yaml:"exhausted_grace"`
	EliminationDelay   time.Duration `yaml:"elimination_delay"`
	NoEliminationDelay time.Duration `yaml:"no_elimination_delay"`

	// Deadline for one call to the narrative service.
	NarrativeTimeout time.Duration `yaml:"narrative_timeout"`

	MaxMessageLength int `yaml:"max_message_length"`
}

// DefaultSettings returns the production tuning.
func DefaultSettings() Settings {
	return Settings{
		IntroSeconds:       120,
		DebateSeconds:      180,
		TurnSeconds:        30,
		BonusSeconds:       30,
		MaxBonus:           2,
		MinPlayers:         5,
		ExhaustedGrace:     2 * time.Second,
		EliminationDelay:   5 * time.Second,
		NoEliminationDelay: 3 * time.Second,
		NarrativeTimeout:   90 * time.Second,
		MaxMessageLength:   500,
	}
}

// seed returns the countdown value announced when phase p starts.
func (s Settings) seed(p models.Phase) int {
	switch p {
	case models.PhaseIntro:
		return s.IntroSeconds
	case models.PhaseDebate:
		return s.DebateSeconds
	case models.PhaseReveal, models.PhaseVote:
		return s.TurnSeconds
	}
	return 0
}
