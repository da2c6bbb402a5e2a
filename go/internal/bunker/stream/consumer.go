package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bunker/go/internal/bunker/events"
)

// TailConfig selects what a Tailer follows.
type TailConfig struct {
	URL           string
	StreamName    string
	SubjectPrefix string
	// RoomCode limits the tail to one room; empty follows every room.
	RoomCode string
	// Since replays events newer than this age; zero starts at new events.
	Since time.Duration
}

func DefaultTailConfig() TailConfig {
	cfg := DefaultJetStreamConfig()
	return TailConfig{
		URL:           cfg.URL,
		StreamName:    cfg.StreamName,
		SubjectPrefix: cfg.SubjectPrefix,
	}
}

// FilterSubject returns the subject filter of the tail.
func (c TailConfig) FilterSubject() string {
	if c.RoomCode == "" {
		return c.SubjectPrefix + ".>"
	}
	return fmt.Sprintf("%s.%s.>", c.SubjectPrefix, c.RoomCode)
}

// Tailer follows mirrored room events with an ordered consumer.
type Tailer struct {
	nc       *nats.Conn
	consumer jetstream.Consumer
	config   TailConfig
}

func NewTailer(ctx context.Context, cfg TailConfig) (*Tailer, error) {
	nc, err := nats.Connect(cfg.URL, nats.Name("bunker-tail"))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	occ := jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{cfg.FilterSubject()},
		DeliverPolicy:  jetstream.DeliverNewPolicy,
	}
	if cfg.Since > 0 {
		start := time.Now().Add(-cfg.Since)
		occ.DeliverPolicy = jetstream.DeliverByStartTimePolicy
		occ.OptStartTime = &start
	}

	consumer, err := js.OrderedConsumer(ctx, cfg.StreamName, occ)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create ordered consumer: %w", err)
	}

	return &Tailer{nc: nc, consumer: consumer, config: cfg}, nil
}

// Run hands every decoded event to fn until ctx is done.
func (t *Tailer) Run(ctx context.Context, fn func(*events.RoomEvent, events.Payload)) error {
	log.Info().
		Str("stream", t.config.StreamName).
		Str("filter", t.config.FilterSubject()).
		Msg("tailing room events")

	consumeCtx, err := t.consumer.Consume(func(msg jetstream.Msg) {
		event, payload, err := decodeMessage(msg.Data())
		if err != nil {
			log.Error().
				Err(err).
				Str("subject", msg.Subject()).
				Msg("failed to decode room event")
			return
		}
		fn(event, payload)
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	<-ctx.Done()
	return nil
}

func (t *Tailer) Close() {
	t.nc.Close()
}

func decodeMessage(data []byte) (*events.RoomEvent, events.Payload, error) {
	var event events.RoomEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, nil, fmt.Errorf("unmarshal event envelope: %w", err)
	}
	payload, err := events.ParseEventPayload(&event)
	if err != nil {
		return nil, nil, err
	}
	return &event, payload, nil
}
