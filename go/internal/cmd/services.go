package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bunker/go/internal/bunker/archive"
	"github.com/mcdev12/bunker/go/internal/bunker/gateway"
	"github.com/mcdev12/bunker/go/internal/bunker/narrative"
	"github.com/mcdev12/bunker/go/internal/bunker/registry"
	"github.com/mcdev12/bunker/go/internal/bunker/room"
	"github.com/mcdev12/bunker/go/internal/bunker/stream"
)

type Services struct {
	Registry  *registry.Registry
	Gateway   *gateway.Service
	Publisher *stream.JetStreamPublisher // nil without NATS_URL
	Archive   *archive.Repository        // nil unless ARCHIVE_ENABLED
	database  *sql.DB
}

func setupServices(ctx context.Context, cfg Config, settings room.Settings) (*Services, error) {
	// Wire up dependency injection chain
	// Transport → Notifier fan-out → Registry → Rooms
	s := &Services{}
	clock := clockwork.NewRealClock()

	// Narrative
	var generator room.Generator
	if cfg.GeminiAPIKey != "" {
		generator = narrative.NewGeminiClient(narrative.Config{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
			BaseURL: cfg.GeminiBaseURL,
			Timeout: cfg.GeminiTimeout,
		})
		log.Info().Str("model", cfg.GeminiModel).Msg("narrative service: gemini")
	} else {
		generator = narrative.NewOffline(nil)
		log.Warn().Msg("GEMINI_API_KEY not set, using offline narrative decks")
	}

	// Archive
	var archiver room.Archiver
	if cfg.ArchiveEnabled {
		database, err := setupDatabase(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		s.database = database
		s.Archive = archive.NewRepository(database)
		if err := s.Archive.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		archiver = s.Archive
	}

	// Event stream
	connections := gateway.NewConnectionManager(gateway.DefaultConnectionConfig(), clock)
	var mirrors []room.Notifier
	if cfg.NATSURL != "" {
		jsCfg := stream.DefaultJetStreamConfig()
		jsCfg.URL = cfg.NATSURL
		jsCfg.StreamName = cfg.NATSStream
		publisher, err := stream.NewJetStreamPublisher(ctx, jsCfg)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("create JetStream publisher: %w", err)
		}
		s.Publisher = publisher
		mirrors = append(mirrors, publisher)
	}

	// Registry
	regCfg := registry.DefaultConfig()
	regCfg.Settings = settings
	regCfg.IdleTTL = cfg.RoomIdleTTL
	regCfg.SweepInterval = cfg.SweepInterval
	s.Registry = registry.New(regCfg, room.Deps{
		Clock:     clock,
		Notifier:  stream.NewFanout(connections, mirrors...),
		Generator: generator,
		Archiver:  archiver,
	})

	// Gateway
	s.Gateway = gateway.NewService(connections, s.Registry, s.Registry)

	return s, nil
}

// Run starts the background loops and blocks until ctx is done.
func (s *Services) Run(ctx context.Context) {
	done := make(chan struct{}, 3)
	run := func(fn func(context.Context)) {
		go func() {
			fn(ctx)
			done <- struct{}{}
		}()
	}

	run(s.Registry.Run)
	run(func(ctx context.Context) {
		if err := s.Gateway.Start(ctx); err != nil {
			log.Error().Err(err).Msg("gateway failed")
		}
	})
	loops := 2
	if s.Publisher != nil {
		run(s.Publisher.Run)
		loops++
	}

	for range loops {
		<-done
	}
}

// Close shuts rooms down, then releases external connections.
func (s *Services) Close() {
	if s.Registry != nil {
		s.Registry.Close()
	}
	if s.Publisher != nil {
		if err := s.Publisher.Close(); err != nil {
			log.Error().Err(err).Msg("close publisher")
		}
	}
	if s.database != nil {
		if err := s.database.Close(); err != nil {
			log.Error().Err(err).Msg("close database")
		}
	}
}
