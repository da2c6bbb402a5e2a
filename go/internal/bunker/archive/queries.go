package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

type Game struct {
	ID         uuid.UUID
	RoomCode   string
	Scenario   json.RawMessage
	Rounds     int32
	Eliminated pqtype.NullRawMessage
	Story      sql.NullString
	EndedAt    time.Time
}

type GameSurvivor struct {
	GameID    uuid.UUID
	Seat      int32
	Name      string
	Character json.RawMessage
}

const insertGame = `
INSERT INTO games (id, room_code, scenario, rounds, eliminated, story, ended_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`

func (q *Queries) InsertGame(ctx context.Context, g Game) error {
	_, err := q.db.ExecContext(ctx, insertGame,
		g.ID,
		g.RoomCode,
		g.Scenario,
		g.Rounds,
		g.Eliminated,
		g.Story,
		g.EndedAt,
	)
	return err
}

const insertSurvivor = `
INSERT INTO game_survivors (game_id, seat, name, character)
VALUES ($1, $2, $3, $4)
`

func (q *Queries) InsertSurvivor(ctx context.Context, s GameSurvivor) error {
	_, err := q.db.ExecContext(ctx, insertSurvivor, s.GameID, s.Seat, s.Name, s.Character)
	return err
}

const listRecentGames = `
SELECT id, room_code, scenario, rounds, eliminated, story, ended_at
FROM games
ORDER BY ended_at DESC
LIMIT $1
`

func (q *Queries) ListRecentGames(ctx context.Context, limit int32) ([]Game, error) {
	rows, err := q.db.QueryContext(ctx, listRecentGames, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Game
	for rows.Next() {
		var i Game
		if err := rows.Scan(
			&i.ID,
			&i.RoomCode,
			&i.Scenario,
			&i.Rounds,
			&i.Eliminated,
			&i.Story,
			&i.EndedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listSurvivors = `
SELECT game_id, seat, name, character
FROM game_survivors
WHERE game_id = $1
ORDER BY seat
`

func (q *Queries) ListSurvivors(ctx context.Context, gameID uuid.UUID) ([]GameSurvivor, error) {
	rows, err := q.db.QueryContext(ctx, listSurvivors, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GameSurvivor
	for rows.Next() {
		var i GameSurvivor
		if err := rows.Scan(&i.GameID, &i.Seat, &i.Name, &i.Character); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
