package archive

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sqlc-dev/pqtype"

	"github.com/mcdev12/bunker/go/internal/models"
	"github.com/mcdev12/bunker/go/internal/sqlutil"
)

//go:embed schema.sql
var schema string

// Repository stores finished games in Postgres.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates the archive tables if they do not exist.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply archive schema: %w", err)
	}
	return nil
}

// ArchiveGame writes a game and its survivors in one transaction.
func (r *Repository) ArchiveGame(ctx context.Context, record models.GameRecord) error {
	game, survivors, err := toRows(uuid.New(), record)
	if err != nil {
		return err
	}

	err = sqlutil.Run(ctx, r.db, func(tx *sql.Tx) *Queries { return New(tx) }, func(q *Queries) error {
		if err := q.InsertGame(ctx, game); err != nil {
			return fmt.Errorf("failed to insert game: %w", err)
		}
		for _, s := range survivors {
			if err := q.InsertSurvivor(ctx, s); err != nil {
				return fmt.Errorf("failed to insert survivor %q: %w", s.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().
		Str("room_code", record.RoomCode).
		Str("game_id", game.ID.String()).
		Int("survivors", len(survivors)).
		Msg("game archived")
	return nil
}

// RecentGames returns up to limit finished games, newest first.
func (r *Repository) RecentGames(ctx context.Context, limit int) ([]models.GameRecord, error) {
	q := New(r.db)
	games, err := q.ListRecentGames(ctx, int32(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}

	records := make([]models.GameRecord, 0, len(games))
	for _, g := range games {
		survivors, err := q.ListSurvivors(ctx, g.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list survivors of game %s: %w", g.ID, err)
		}
		record, err := fromRows(g, survivors)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func toRows(id uuid.UUID, record models.GameRecord) (Game, []GameSurvivor, error) {
	scenario, err := json.Marshal(record.Scenario)
	if err != nil {
		return Game{}, nil, fmt.Errorf("failed to marshal scenario: %w", err)
	}
	var eliminated json.RawMessage
	if len(record.Eliminated) > 0 {
		if eliminated, err = json.Marshal(record.Eliminated); err != nil {
			return Game{}, nil, fmt.Errorf("failed to marshal eliminated: %w", err)
		}
	}

	game := Game{
		ID:         id,
		RoomCode:   record.RoomCode,
		Scenario:   scenario,
		Rounds:     int32(record.Rounds),
		Eliminated: pqtype.NullRawMessage{RawMessage: eliminated, Valid: len(eliminated) > 0},
		Story:      sqlutil.NullString(record.Story),
		EndedAt:    record.EndedAt,
	}

	survivors := make([]GameSurvivor, 0, len(record.Survivors))
	for i, s := range record.Survivors {
		character, err := json.Marshal(s.Character)
		if err != nil {
			return Game{}, nil, fmt.Errorf("failed to marshal character of %q: %w", s.Name, err)
		}
		survivors = append(survivors, GameSurvivor{
			GameID:    id,
			Seat:      int32(i),
			Name:      s.Name,
			Character: character,
		})
	}
	return game, survivors, nil
}

func fromRows(g Game, survivors []GameSurvivor) (models.GameRecord, error) {
	record := models.GameRecord{
		RoomCode:  g.RoomCode,
		Rounds:    int(g.Rounds),
		Story:     sqlutil.FromNullString(g.Story),
		EndedAt:   g.EndedAt,
		Survivors: make([]models.Survivor, 0, len(survivors)),
	}
	if err := json.Unmarshal(g.Scenario, &record.Scenario); err != nil {
		return models.GameRecord{}, fmt.Errorf("failed to unmarshal scenario of game %s: %w", g.ID, err)
	}
	if g.Eliminated.Valid {
		if err := json.Unmarshal(g.Eliminated.RawMessage, &record.Eliminated); err != nil {
			return models.GameRecord{}, fmt.Errorf("failed to unmarshal eliminated of game %s: %w", g.ID, err)
		}
	}
	for _, s := range survivors {
		survivor := models.Survivor{Name: s.Name}
		if err := json.Unmarshal(s.Character, &survivor.Character); err != nil {
			return models.GameRecord{}, fmt.Errorf("failed to unmarshal character of %q: %w", s.Name, err)
		}
		record.Survivors = append(record.Survivors, survivor)
	}
	return record, nil
}
