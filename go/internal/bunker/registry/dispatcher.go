package registry

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bunker/go/internal/bunker/events"
	"github.com/mcdev12/bunker/go/internal/bunker/room"
)

// HandleAction routes one inbound action from a connection. Rejections are
// reported to that connection unless they are silent ownership errors.
func (r *Registry) HandleAction(handle string, action events.Action) {
	code, err := r.dispatch(handle, action)
	if err == nil {
		return
	}

	logger := log.Debug().
		Err(err).
		Str("connection_id", handle).
		Str("action", string(action.ActionType()))
	if code != "" {
		logger = logger.Str("room_code", code)
	}
	logger.Msg("action rejected")

	if room.IsSilent(err) || r.deps.Notifier == nil {
		return
	}
	r.deps.Notifier.Send(code, handle, events.ErrorPayload{Message: userMessage(err)})
}

func (r *Registry) dispatch(handle string, action events.Action) (string, error) {
	switch a := action.(type) {
	case events.CreateRoom:
		rm, _, err := r.CreateRoom(handle, a.Name)
		if err != nil {
			return "", err
		}
		return rm.Code(), nil
	case events.JoinRoom:
		_, _, err := r.JoinRoom(handle, a.RoomCode, a.Name)
		return a.RoomCode, err
	case events.LeaveRoom:
		return "", r.LeaveRoom(handle)
	}

	rm, err := r.RoomOf(handle)
	if err != nil {
		return "", err
	}
	code := rm.Code()

	switch a := action.(type) {
	case events.StartGame:
		err = rm.StartGame(handle)
	case events.RevealTrait:
		err = rm.RevealTrait(handle, a.Trait)
	case events.UseAbility:
		err = rm.UseAbility(handle, a.Trait, a.TargetName)
	case events.SubmitVote:
		err = rm.SubmitVote(handle, a.TargetID)
	case events.AddTime:
		err = rm.AddTime(handle)
	case events.SendMessage:
		err = rm.SendMessage(handle, a.Text)
	case events.SkipPhase:
		err = rm.SkipPhase(handle)
	case events.FinishGame:
		err = rm.FinishGame(handle)
	default:
		err = errUnsupported
	}
	return code, err
}

var errUnsupported = errors.New("unsupported action")

// userMessage strips wrapping detail that only matters in logs.
func userMessage(err error) string {
	for _, known := range []error{
		ErrRoomNotFound,
		room.ErrGenerationFailed,
		room.ErrUnknownTrait,
		room.ErrNoAbility,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return err.Error()
}
