package stream

import (
	"github.com/mcdev12/bunker/go/internal/bunker/events"
	"github.com/mcdev12/bunker/go/internal/bunker/room"
)

// Fanout delivers to a primary notifier and mirrors broadcasts to the rest.
// Direct sends only go to the primary.
type Fanout struct {
	primary room.Notifier
	mirrors []room.Notifier
}

// NewFanout returns primary unchanged when there is nothing to mirror to.
func NewFanout(primary room.Notifier, mirrors ...room.Notifier) room.Notifier {
	var live []room.Notifier
	for _, m := range mirrors {
		if m != nil {
			live = append(live, m)
		}
	}
	if len(live) == 0 {
		return primary
	}
	return &Fanout{primary: primary, mirrors: live}
}

func (f *Fanout) Broadcast(roomCode string, handles []string, payload events.Payload) {
	f.primary.Broadcast(roomCode, handles, payload)
	for _, m := range f.mirrors {
		m.Broadcast(roomCode, handles, payload)
	}
}

func (f *Fanout) Send(roomCode, handle string, payload events.Payload) {
	f.primary.Send(roomCode, handle, payload)
}
