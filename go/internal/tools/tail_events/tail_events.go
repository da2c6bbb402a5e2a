package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bunker/go/internal/bunker/events"
	"github.com/mcdev12/bunker/go/internal/bunker/stream"
)

func main() {
	cfg := stream.DefaultTailConfig()
	flag.StringVar(&cfg.RoomCode, "room", "", "room code to follow (default: every room)")
	flag.DurationVar(&cfg.Since, "since", 0, "replay events newer than this age")
	flag.Parse()
	cfg.RoomCode = strings.ToUpper(cfg.RoomCode)

	_ = godotenv.Load()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if url := os.Getenv("NATS_URL"); url != "" {
		cfg.URL = url
	}
	if name := os.Getenv("NATS_STREAM"); name != "" {
		cfg.StreamName = name
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tailer, err := stream.NewTailer(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("create tailer")
	}
	defer tailer.Close()

	err = tailer.Run(ctx, func(event *events.RoomEvent, payload events.Payload) {
		fmt.Printf("%s %s %-18s %+v\n",
			event.Timestamp.Local().Format("15:04:05"), event.RoomCode, event.Type, payload)
	})
	if err != nil {
		log.Fatal().Err(err).Msg("tail events")
	}
}
