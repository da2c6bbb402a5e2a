package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RoomEvent is the wire envelope of every outbound notification
type RoomEvent struct {
	ID        string          `json:"id"`        // Event UUID
	RoomCode  string          `json:"room_code"` // Room code
	Type      EventType       `json:"type"`      // Event type
	Timestamp time.Time       `json:"timestamp"` // Event creation time
	Data      json.RawMessage `json:"data"`      // Event-specific payload
}

// NewRoomEvent wraps a payload in an envelope for the given room
func NewRoomEvent(roomCode string, payload Payload, now time.Time) (*RoomEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", payload.EventType(), err)
	}
	return &RoomEvent{
		ID:        uuid.New().String(),
		RoomCode:  roomCode,
		Type:      payload.EventType(),
		Timestamp: now.UTC(),
		Data:      data,
	}, nil
}

// ParseEventPayload decodes an envelope back into its typed payload
func ParseEventPayload(event *RoomEvent) (Payload, error) {
	var payload Payload
	switch event.Type {
	case EventTypeRoomJoined:
		payload = &RoomJoinedPayload{}
	case EventTypePlayerListUpdate:
		payload = &PlayerListUpdatePayload{}
	case EventTypeScenarioUpdate:
		payload = &ScenarioUpdatePayload{}
	case EventTypeCharacterAssigned:
		payload = &CharacterAssignedPayload{}
	case EventTypePhaseChange:
		payload = &PhaseChangePayload{}
	case EventTypeTurnUpdate:
		payload = &TurnUpdatePayload{}
	case EventTypeTimerTick:
		payload = &TimerTickPayload{}
	case EventTypeBonusUsedUpdate:
		payload = &BonusUsedUpdatePayload{}
	case EventTypeTraitRevealed:
		payload = &TraitRevealedPayload{}
	case EventTypeVoteTallyUpdate:
		payload = &VoteTallyUpdatePayload{}
	case EventTypeVotingResult:
		payload = &VotingResultPayload{}
	case EventTypeGameOver:
		payload = &GameOverPayload{}
	case EventTypeError:
		payload = &ErrorPayload{}
	case EventTypeChatMessage:
		payload = &ChatMessagePayload{}
	case EventTypeStartFailed:
		payload = &StartFailedPayload{}
	case EventTypeAbilityUsed:
		payload = &AbilityUsedPayload{}
	default:
		return nil, fmt.Errorf("unknown event type: %s", event.Type)
	}
	if err := json.Unmarshal(event.Data, payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s payload: %w", event.Type, err)
	}
	return payload, nil
}
