package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/bunker/go/internal/bunker/room"
	"github.com/mcdev12/bunker/go/internal/dbconfig"
)

// Config is the process configuration read from the environment.
type Config struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"console"`
	TuningFile      string        `env:"BUNKER_CONFIG" envDefault:"bunker.yaml"`
	AllowedOrigins  []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	RoomIdleTTL   time.Duration `env:"ROOM_IDLE_TTL" envDefault:"30m"`
	SweepInterval time.Duration `env:"ROOM_SWEEP_INTERVAL" envDefault:"1m"`

	GeminiAPIKey  string        `env:"GEMINI_API_KEY"`
	GeminiModel   string        `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
	GeminiBaseURL string        `env:"GEMINI_BASE_URL"`
	GeminiTimeout time.Duration `env:"GEMINI_TIMEOUT" envDefault:"60s"`

	// NATSURL enables the JetStream event mirror when set.
	NATSURL    string `env:"NATS_URL"`
	NATSStream string `env:"NATS_STREAM" envDefault:"BUNKER_EVENTS"`

	ArchiveEnabled bool `env:"ARCHIVE_ENABLED" envDefault:"false"`
	Database       dbconfig.Config
}

// tuning is the layout of the optional game tuning file.
type tuning struct {
	Room room.Settings `yaml:"room"`
}

func loadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.SweepInterval <= 0 {
		return Config{}, fmt.Errorf("ROOM_SWEEP_INTERVAL must be positive, got %s", cfg.SweepInterval)
	}
	return cfg, nil
}

// loadTuning overlays the tuning file at path onto base. A missing file
// leaves base unchanged.
func loadTuning(path string, base room.Settings) (room.Settings, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return base, nil
	}
	if err != nil {
		return room.Settings{}, fmt.Errorf("failed to read config file: %w", err)
	}

	t := tuning{Room: base}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return room.Settings{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := validateSettings(t.Room); err != nil {
		return room.Settings{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return t.Room, nil
}

func validateSettings(s room.Settings) error {
	for name, v := range map[string]int{
		"intro_seconds":      s.IntroSeconds,
		"debate_seconds":     s.DebateSeconds,
		"turn_seconds":       s.TurnSeconds,
		"bonus_seconds":      s.BonusSeconds,
		"max_message_length": s.MaxMessageLength,
	} {
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, v)
		}
	}
	if s.MaxBonus < 0 {
		return fmt.Errorf("max_bonus must not be negative, got %d", s.MaxBonus)
	}
	if s.MinPlayers < 2 {
		return fmt.Errorf("min_players must be at least 2, got %d", s.MinPlayers)
	}
	if s.NarrativeTimeout <= 0 {
		return fmt.Errorf("narrative_timeout must be positive, got %s", s.NarrativeTimeout)
	}
	return nil
}
