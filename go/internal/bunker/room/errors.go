package room

import "errors"

// Validation errors are reported to the requesting client.
var (
	ErrEmptyName        = errors.New("name is required")
	ErrNameTaken        = errors.New("name is already taken in this room")
	ErrAlreadyJoined    = errors.New("already in this room")
	ErrGameInProgress   = errors.New("game already in progress")
	ErrNotInRoom        = errors.New("you are not in this room")
	ErrNotAdmin         = errors.New("only the room admin can do that")
	ErrNotEnoughPlayers = errors.New("not enough players to start")
	ErrAlreadyStarted   = errors.New("game already started")
	ErrStartPending     = errors.New("game is starting")
	ErrGameNotStarted   = errors.New("game has not started")
	ErrUnknownTrait     = errors.New("unknown trait")
	ErrTraitRevealed    = errors.New("trait already revealed")
	ErrInvalidTarget    = errors.New("invalid target")
	ErrUnknownPlayer    = errors.New("no such player")
	ErrNoAbility        = errors.New("no ability available")
	ErrAbilityTrait     = errors.New("ability does not act on that trait")
	ErrEmptyMessage     = errors.New("message is empty")
	ErrRoomClosed       = errors.New("room is closed")
)

// Ownership errors. ErrNotYourTurn is reported; the rest are dropped silently.
var (
	ErrNotYourTurn    = errors.New("it is not your turn")
	ErrWrongPhase     = errors.New("action not allowed in this phase")
	ErrAlreadyActed   = errors.New("already acted this turn")
	ErrNotEligible    = errors.New("eliminated players cannot act")
	ErrBonusExhausted = errors.New("no bonus time left")
)

// ErrGenerationFailed is reported when the narrative service could not set up a game.
var ErrGenerationFailed = errors.New("could not generate the game, try again")

var silentErrors = []error{
	ErrWrongPhase,
	ErrAlreadyActed,
	ErrNotEligible,
	ErrBonusExhausted,
}

// IsSilent reports whether err is rejected without telling the client.
func IsSilent(err error) bool {
	for _, s := range silentErrors {
		if errors.Is(err, s) {
			return true
		}
	}
	return false
}
