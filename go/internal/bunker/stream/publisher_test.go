package stream

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/mcdev12/bunker/go/internal/bunker/events"
	"github.com/mcdev12/bunker/go/internal/models"
)

type fakeJetStream struct {
	mu   sync.Mutex
	msgs []*nats.Msg
	err  error
}

func (f *fakeJetStream) PublishMsg(_ context.Context, msg *nats.Msg, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.msgs = append(f.msgs, msg)
	return &jetstream.PubAck{Stream: "BUNKER_EVENTS", Sequence: uint64(len(f.msgs))}, nil
}

func (f *fakeJetStream) published() []*nats.Msg {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*nats.Msg(nil), f.msgs...)
}

func TestPublishSubjectAndHeaders(t *testing.T) {
	js := &fakeJetStream{}
	clock := clockwork.NewFakeClock()
	p := newPublisher(js, DefaultJetStreamConfig(), clock)

	event, err := events.NewRoomEvent("ABCDE", events.PhaseChangePayload{Phase: models.PhaseVote, Round: 1, Time: 30}, clock.Now())
	if err != nil {
		t.Fatalf("NewRoomEvent(): %v", err)
	}
	if err := p.Publish(context.Background(), event); err != nil {
		t.Fatalf("Publish(): %v", err)
	}

	msgs := js.published()
	if len(msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(msgs))
	}
	msg := msgs[0]
	if msg.Subject != "bunker.events.ABCDE.phase_change" {
		t.Fatalf("subject = %q", msg.Subject)
	}
	if got := msg.Header.Get("Event-ID"); got != event.ID {
		t.Fatalf("Event-ID = %q, want %q", got, event.ID)
	}
	if got := msg.Header.Get("Room-Code"); got != "ABCDE" {
		t.Fatalf("Room-Code = %q", got)
	}

	var decoded events.RoomEvent
	if err := json.Unmarshal(msg.Data, &decoded); err != nil {
		t.Fatalf("Unmarshal(): %v", err)
	}
	payload, err := events.ParseEventPayload(&decoded)
	if err != nil {
		t.Fatalf("ParseEventPayload(): %v", err)
	}
	if change := payload.(*events.PhaseChangePayload); change.Phase != models.PhaseVote || change.Time != 30 {
		t.Fatalf("payload = %+v", change)
	}
}

func TestPublishError(t *testing.T) {
	js := &fakeJetStream{err: errors.New("no responders")}
	p := newPublisher(js, DefaultJetStreamConfig(), clockwork.NewFakeClock())

	event, err := events.NewRoomEvent("ABCDE", events.ChatMessagePayload{Sender: "SYSTEM", Text: "hi"}, time.Now())
	if err != nil {
		t.Fatalf("NewRoomEvent(): %v", err)
	}
	if err := p.Publish(context.Background(), event); err == nil {
		t.Fatal("Publish() succeeded with a failing stream")
	}
}

func TestRunMirrorsBroadcastsOnly(t *testing.T) {
	js := &fakeJetStream{}
	p := newPublisher(js, DefaultJetStreamConfig(), clockwork.NewFakeClock())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	p.Send("ABCDE", "h1", events.CharacterAssignedPayload{})
	p.Broadcast("ABCDE", []string{"h1", "h2"}, events.TimerTickPayload{Remaining: 10})

	deadline := time.Now().Add(2 * time.Second)
	for len(js.published()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("broadcast never published")
		}
		time.Sleep(5 * time.Millisecond)
	}
	msgs := js.published()
	if len(msgs) != 1 || msgs[0].Subject != "bunker.events.ABCDE.timer_tick" {
		t.Fatalf("published %d messages, first subject %q", len(msgs), msgs[0].Subject)
	}
}

func TestBroadcastDropsWhenQueueFull(t *testing.T) {
	cfg := DefaultJetStreamConfig()
	cfg.QueueSize = 1
	p := newPublisher(&fakeJetStream{}, cfg, clockwork.NewFakeClock())

	for range 3 {
		p.Broadcast("ABCDE", nil, events.TimerTickPayload{Remaining: 1})
	}
	if len(p.queue) != 1 {
		t.Fatalf("queue length = %d, want 1", len(p.queue))
	}
}
