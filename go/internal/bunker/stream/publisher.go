package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bunker/go/internal/bunker/events"
)

type JetStreamConfig struct {
	URL             string
	StreamName      string
	SubjectPrefix   string
	MaxReconnects   int
	ReconnectWait   time.Duration
	MaxAge          time.Duration // How long to keep messages
	MaxMsgs         int64         // Max number of messages to keep
	Replicas        int           // Number of replicas for the stream
	DuplicateWindow time.Duration // Window for duplicate detection
	QueueSize       int
	PublishTimeout  time.Duration
}

func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:             nats.DefaultURL,
		StreamName:      "BUNKER_EVENTS",
		SubjectPrefix:   "bunker.events",
		MaxReconnects:   -1, // Infinite
		ReconnectWait:   2 * time.Second,
		MaxAge:          24 * time.Hour,
		MaxMsgs:         -1, // No limit
		Replicas:        1,
		DuplicateWindow: 2 * time.Minute,
		QueueSize:       1000,
		PublishTimeout:  5 * time.Second,
	}
}

// msgPublisher is the slice of jetstream.JetStream the publisher uses.
type msgPublisher interface {
	PublishMsg(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// JetStreamPublisher mirrors room broadcasts onto a JetStream stream so
// other services can follow games. Private sends are never mirrored since
// they carry hidden character sheets.
type JetStreamPublisher struct {
	nc     *nats.Conn
	js     msgPublisher
	config JetStreamConfig
	clock  clockwork.Clock
	queue  chan *events.RoomEvent
}

func NewJetStreamPublisher(ctx context.Context, cfg JetStreamConfig) (*JetStreamPublisher, error) {
	opts := []nats.Option{
		nats.Name("bunker"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	if err := ensureStream(ctx, js, cfg); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	p := newPublisher(js, cfg, clockwork.NewRealClock())
	p.nc = nc
	return p, nil
}

func newPublisher(js msgPublisher, cfg JetStreamConfig, clock clockwork.Clock) *JetStreamPublisher {
	return &JetStreamPublisher{
		js:     js,
		config: cfg,
		clock:  clock,
		queue:  make(chan *events.RoomEvent, cfg.QueueSize),
	}
}

func ensureStream(ctx context.Context, js jetstream.JetStream, cfg JetStreamConfig) error {
	sc := jetstream.StreamConfig{
		Name:        cfg.StreamName,
		Description: "Bunker room notifications",
		Subjects:    []string{fmt.Sprintf("%s.>", cfg.SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      cfg.MaxAge,
		MaxMsgs:     cfg.MaxMsgs,
		Storage:     jetstream.FileStorage,
		Replicas:    cfg.Replicas,
		Duplicates:  cfg.DuplicateWindow,
	}

	stream, err := js.Stream(ctx, cfg.StreamName)
	if err != nil {
		if _, err = js.CreateStream(ctx, sc); err != nil {
			return fmt.Errorf("create stream: %w", err)
		}
		log.Info().
			Str("stream", cfg.StreamName).
			Msg("created JetStream stream")
		return nil
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("get stream info: %w", err)
	}
	if !isStreamConfigEqual(info.Config, sc) {
		if _, err = js.UpdateStream(ctx, sc); err != nil {
			return fmt.Errorf("update stream: %w", err)
		}
		log.Info().
			Str("stream", cfg.StreamName).
			Msg("updated JetStream stream")
	}
	return nil
}

// Broadcast queues a room-wide notification for publishing. It never blocks;
// a full queue drops the event.
func (p *JetStreamPublisher) Broadcast(roomCode string, _ []string, payload events.Payload) {
	event, err := events.NewRoomEvent(roomCode, payload, p.clock.Now())
	if err != nil {
		log.Error().Err(err).Str("room_code", roomCode).Msg("failed to build stream event")
		return
	}
	select {
	case p.queue <- event:
	default:
		log.Warn().
			Str("room_code", roomCode).
			Str("event_type", string(event.Type)).
			Msg("stream queue full, dropping event")
	}
}

// Send is a no-op: direct notifications stay private to their recipient.
func (p *JetStreamPublisher) Send(string, string, events.Payload) {}

// Run publishes queued events until ctx is done.
func (p *JetStreamPublisher) Run(ctx context.Context) {
	log.Info().
		Str("stream", p.config.StreamName).
		Str("subject_prefix", p.config.SubjectPrefix).
		Msg("stream publisher started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("stream publisher shutting down")
			return
		case event := <-p.queue:
			pubCtx, cancel := context.WithTimeout(ctx, p.config.PublishTimeout)
			if err := p.Publish(pubCtx, event); err != nil {
				log.Error().
					Err(err).
					Str("room_code", event.RoomCode).
					Str("event_type", string(event.Type)).
					Msg("failed to publish room event")
			}
			cancel()
		}
	}
}

// Subject returns the subject an event of type t in roomCode is published on.
func (p *JetStreamPublisher) Subject(roomCode string, t events.EventType) string {
	return fmt.Sprintf("%s.%s.%s", p.config.SubjectPrefix, roomCode, t)
}

func (p *JetStreamPublisher) Publish(ctx context.Context, event *events.RoomEvent) error {
	subject := p.Subject(event.RoomCode, event.Type)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ack, err := p.js.PublishMsg(ctx, &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"Event-Type": []string{string(event.Type)},
			"Room-Code":  []string{event.RoomCode},
			"Event-ID":   []string{event.ID},
		},
	},
		jetstream.WithMsgID(event.ID),
		jetstream.WithExpectStream(p.config.StreamName),
	)
	if err != nil {
		return fmt.Errorf("publish to JetStream: %w", err)
	}

	log.Debug().
		Str("subject", subject).
		Str("event_id", event.ID).
		Uint64("sequence", ack.Sequence).
		Str("stream", ack.Stream).
		Msg("published to JetStream")

	return nil
}

func (p *JetStreamPublisher) Close() error {
	if p.nc != nil {
		if err := p.nc.Drain(); err != nil {
			p.nc.Close()
			return fmt.Errorf("drain NATS connection: %w", err)
		}
	}
	return nil
}

func isStreamConfigEqual(a, b jetstream.StreamConfig) bool {
	return a.Name == b.Name &&
		a.MaxAge == b.MaxAge &&
		a.MaxMsgs == b.MaxMsgs &&
		a.Replicas == b.Replicas &&
		a.Duplicates == b.Duplicates
}
