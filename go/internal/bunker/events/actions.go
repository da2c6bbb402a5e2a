package events

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ActionType represents the type of an inbound client action
type ActionType string

const (
	ActionCreateRoom  ActionType = "create_room"
	ActionJoinRoom    ActionType = "join_room"
	ActionLeaveRoom   ActionType = "leave_room"
	ActionStartGame   ActionType = "start_game"
	ActionRevealTrait ActionType = "reveal_trait"
	ActionUseAbility  ActionType = "use_ability"
	ActionSubmitVote  ActionType = "submit_vote"
	ActionAddTime     ActionType = "add_time"
	ActionSendMessage ActionType = "send_message"
	ActionSkipPhase   ActionType = "skip_phase"
	ActionFinishGame  ActionType = "finish_game"
)

// ClientMessage is the wire envelope of an inbound action
type ClientMessage struct {
	Type ActionType      `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Action is implemented by every inbound action.
type Action interface {
	ActionType() ActionType
}

type CreateRoom struct {
	Name string `json:"name"`
}

type JoinRoom struct {
	RoomCode string `json:"room_code"`
	Name     string `json:"name"`
}

type LeaveRoom struct{}

type StartGame struct{}

type RevealTrait struct {
	Trait string `json:"trait"`
}

type UseAbility struct {
	Trait      string `json:"trait"`
	TargetName string `json:"target_name"`
}

type SubmitVote struct {
	TargetID string `json:"target_id"`
}

type AddTime struct{}

type SendMessage struct {
	Text string `json:"text"`
}

type SkipPhase struct{}

type FinishGame struct{}

func (CreateRoom) ActionType() ActionType  { return ActionCreateRoom }
func (JoinRoom) ActionType() ActionType    { return ActionJoinRoom }
func (LeaveRoom) ActionType() ActionType   { return ActionLeaveRoom }
func (StartGame) ActionType() ActionType   { return ActionStartGame }
func (RevealTrait) ActionType() ActionType { return ActionRevealTrait }
func (UseAbility) ActionType() ActionType  { return ActionUseAbility }
func (SubmitVote) ActionType() ActionType  { return ActionSubmitVote }
func (AddTime) ActionType() ActionType     { return ActionAddTime }
func (SendMessage) ActionType() ActionType { return ActionSendMessage }
func (SkipPhase) ActionType() ActionType   { return ActionSkipPhase }
func (FinishGame) ActionType() ActionType  { return ActionFinishGame }

// ParseAction decodes a raw client frame into its typed action
func ParseAction(raw []byte) (Action, error) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal client message: %w", err)
	}

	var action Action
	switch msg.Type {
	case ActionCreateRoom:
		action = &CreateRoom{}
	case ActionJoinRoom:
		action = &JoinRoom{}
	case ActionLeaveRoom:
		return LeaveRoom{}, nil
	case ActionStartGame:
		return StartGame{}, nil
	case ActionRevealTrait:
		action = &RevealTrait{}
	case ActionUseAbility:
		action = &UseAbility{}
	case ActionSubmitVote:
		action = &SubmitVote{}
	case ActionAddTime:
		return AddTime{}, nil
	case ActionSendMessage:
		action = &SendMessage{}
	case ActionSkipPhase:
		return SkipPhase{}, nil
	case ActionFinishGame:
		return FinishGame{}, nil
	default:
		return nil, fmt.Errorf("unknown action type: %q", msg.Type)
	}

	if len(msg.Data) == 0 {
		return nil, fmt.Errorf("%s: missing data", msg.Type)
	}
	if err := json.Unmarshal(msg.Data, action); err != nil {
		return nil, fmt.Errorf("%s: unmarshal data: %w", msg.Type, err)
	}

	// Dereference so callers switch on value types only.
	switch a := action.(type) {
	case *CreateRoom:
		a.Name = strings.TrimSpace(a.Name)
		return *a, nil
	case *JoinRoom:
		a.Name = strings.TrimSpace(a.Name)
		a.RoomCode = strings.ToUpper(strings.TrimSpace(a.RoomCode))
		return *a, nil
	case *RevealTrait:
		return *a, nil
	case *UseAbility:
		return *a, nil
	case *SubmitVote:
		return *a, nil
	case *SendMessage:
		return *a, nil
	}
	return action, nil
}
