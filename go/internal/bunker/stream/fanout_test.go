package stream

import (
	"testing"

	"github.com/mcdev12/bunker/go/internal/bunker/events"
)

type counter struct {
	broadcasts int
	sends      int
}

func (c *counter) Broadcast(string, []string, events.Payload) { c.broadcasts++ }
func (c *counter) Send(string, string, events.Payload)        { c.sends++ }

func TestFanout(t *testing.T) {
	primary, mirror := &counter{}, &counter{}
	n := NewFanout(primary, mirror)

	n.Broadcast("ABCDE", []string{"h1"}, events.TimerTickPayload{})
	n.Send("ABCDE", "h1", events.ErrorPayload{Message: "no"})

	if primary.broadcasts != 1 || primary.sends != 1 {
		t.Errorf("primary = %+v, want one of each", primary)
	}
	if mirror.broadcasts != 1 || mirror.sends != 0 {
		t.Errorf("mirror = %+v, want broadcasts only", mirror)
	}
}

func TestFanoutWithoutMirrorsIsPrimary(t *testing.T) {
	primary := &counter{}
	if n := NewFanout(primary, nil); n != primary {
		t.Fatalf("NewFanout() = %T, want the primary itself", n)
	}
}
