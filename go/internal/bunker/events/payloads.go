package events

import (
	"github.com/mcdev12/bunker/go/internal/models"
)

// Outbound notification payloads. Every payload names its own EventType so a
// notification can never be sent under the wrong tag.

// EventType represents the type of an outbound notification
type EventType string

const (
	EventTypeRoomJoined        EventType = "room_joined"
	EventTypePlayerListUpdate  EventType = "player_list_update"
	EventTypeScenarioUpdate    EventType = "scenario_update"
	EventTypeCharacterAssigned EventType = "character_assigned"
	EventTypePhaseChange       EventType = "phase_change"
	EventTypeTurnUpdate        EventType = "turn_update"
	EventTypeTimerTick         EventType = "timer_tick"
	EventTypeBonusUsedUpdate   EventType = "bonus_used_update"
	EventTypeTraitRevealed     EventType = "trait_revealed"
	EventTypeVoteTallyUpdate   EventType = "vote_tally_update"
	EventTypeVotingResult      EventType = "voting_result"
	EventTypeGameOver          EventType = "game_over"
	EventTypeError             EventType = "error"
	EventTypeChatMessage       EventType = "chat_message"
	EventTypeStartFailed       EventType = "start_failed"
	EventTypeAbilityUsed       EventType = "ability_used"
)

// Payload is implemented by every outbound notification payload.
type Payload interface {
	EventType() EventType
}

// RoomJoinedPayload is sent to a client once it is bound to a room
type RoomJoinedPayload struct {
	RoomCode    string `json:"room_code"`
	PlayerID    string `json:"player_id"`
	IsAdmin     bool   `json:"is_admin"`
	Reconnected bool   `json:"reconnected"`
}

// PlayerListUpdatePayload carries the full player map keyed by player ID
type PlayerListUpdatePayload struct {
	Players map[string]models.PlayerView `json:"players"`
}

// ScenarioUpdatePayload announces the scenario and the current round
type ScenarioUpdatePayload struct {
	Scenario models.Scenario `json:"scenario"`
	Round    int             `json:"round"`
}

// CharacterAssignedPayload is the private character sheet of the recipient
type CharacterAssignedPayload struct {
	Character models.Character `json:"character"`
}

// PhaseChangePayload announces a phase entry with its countdown seed
type PhaseChangePayload struct {
	Phase models.Phase `json:"phase"`
	Title string       `json:"title"`
	Round int          `json:"round"`
	Time  int          `json:"time"`
}

// TurnUpdatePayload names the current turn holder. An empty ActivePlayerID
// means nobody holds the turn.
type TurnUpdatePayload struct {
	ActivePlayerID string `json:"active_player_id,omitempty"`
	ActiveName     string `json:"active_name,omitempty"`
}

// TimerTickPayload carries the remaining seconds of the live countdown
type TimerTickPayload struct {
	Remaining int          `json:"remaining"`
	Phase     models.Phase `json:"phase"`
}

// BonusUsedUpdatePayload tells a player how many extensions they spent
type BonusUsedUpdatePayload struct {
	Used int `json:"used"`
	Max  int `json:"max"`
}

// TraitRevealedPayload discloses one trait value of one player. Clients key
// the display by (PlayerID, Trait) so replays are idempotent.
type TraitRevealedPayload struct {
	PlayerID string          `json:"player_id"`
	Trait    models.TraitKey `json:"trait"`
	Value    string          `json:"value"`
}

// VoteTallyUpdatePayload carries live counts per active target
type VoteTallyUpdatePayload struct {
	Counts     map[string]int `json:"counts"`
	TotalVoted int            `json:"total_voted"`
	Quorum     int            `json:"quorum"`
}

// VotingResultPayload announces the outcome of a tally
type VotingResultPayload struct {
	EliminatedID   string `json:"eliminated_id,omitempty"`
	EliminatedName string `json:"eliminated_name,omitempty"`
	Message        string `json:"message"`
}

// GameOverPayload carries the ending narrative
type GameOverPayload struct {
	Story     string   `json:"story"`
	Survivors []string `json:"survivors"`
}

// ErrorPayload is a user-visible rejection
type ErrorPayload struct {
	Message string `json:"message"`
}

// ChatMessagePayload is a relayed chat line or a system notice
type ChatMessagePayload struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// StartFailedPayload tells the admin the start request did not happen
type StartFailedPayload struct {
	Reason string `json:"reason"`
}

// AbilityUsedPayload announces an ability and its effect
type AbilityUsedPayload struct {
	PlayerID string          `json:"player_id"`
	TargetID string          `json:"target_id"`
	Ability  string          `json:"ability"`
	Trait    models.TraitKey `json:"trait"`
	Value    string          `json:"value"`
}

func (RoomJoinedPayload) EventType() EventType        { return EventTypeRoomJoined }
func (PlayerListUpdatePayload) EventType() EventType  { return EventTypePlayerListUpdate }
func (ScenarioUpdatePayload) EventType() EventType    { return EventTypeScenarioUpdate }
func (CharacterAssignedPayload) EventType() EventType { return EventTypeCharacterAssigned }
func (PhaseChangePayload) EventType() EventType       { return EventTypePhaseChange }
func (TurnUpdatePayload) EventType() EventType        { return EventTypeTurnUpdate }
func (TimerTickPayload) EventType() EventType         { return EventTypeTimerTick }
func (BonusUsedUpdatePayload) EventType() EventType   { return EventTypeBonusUsedUpdate }
func (TraitRevealedPayload) EventType() EventType     { return EventTypeTraitRevealed }
func (VoteTallyUpdatePayload) EventType() EventType   { return EventTypeVoteTallyUpdate }
func (VotingResultPayload) EventType() EventType      { return EventTypeVotingResult }
func (GameOverPayload) EventType() EventType          { return EventTypeGameOver }
func (ErrorPayload) EventType() EventType             { return EventTypeError }
func (ChatMessagePayload) EventType() EventType       { return EventTypeChatMessage }
func (StartFailedPayload) EventType() EventType       { return EventTypeStartFailed }
func (AbilityUsedPayload) EventType() EventType       { return EventTypeAbilityUsed }
