package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcdev12/bunker/go/internal/dbconfig"
)

// GameLine is one archived game as written to the export, one JSON object
// per line.
type GameLine struct {
	ID         string          `json:"id"`
	RoomCode   string          `json:"room_code"`
	Scenario   json.RawMessage `json:"scenario"`
	Rounds     int32           `json:"rounds"`
	Eliminated json.RawMessage `json:"eliminated,omitempty"`
	Story      *string         `json:"story,omitempty"`
	EndedAt    time.Time       `json:"ended_at"`
	Survivors  []SurvivorLine  `json:"survivors"`
}

type SurvivorLine struct {
	Name      string          `json:"name"`
	Character json.RawMessage `json:"character"`
}

func main() {
	since := flag.Duration("since", 7*24*time.Hour, "export games that ended within this window")
	flag.Parse()

	ctx := context.Background()

	// 1) Connect using shared dbconfig
	cfg, err := dbconfig.NewConfigFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 2) Load games in the window, oldest first
	rows, err := pool.Query(ctx, `
        SELECT id::text, room_code, scenario, rounds, eliminated, story, ended_at
        FROM games
        WHERE ended_at >= $1
        ORDER BY ended_at
    `, time.Now().Add(-*since))
	if err != nil {
		fmt.Fprintf(os.Stderr, "query games: %v\n", err)
		os.Exit(1)
	}
	var games []GameLine
	for rows.Next() {
		var g GameLine
		if err := rows.Scan(&g.ID, &g.RoomCode, &g.Scenario, &g.Rounds, &g.Eliminated, &g.Story, &g.EndedAt); err != nil {
			fmt.Fprintf(os.Stderr, "scan game: %v\n", err)
			os.Exit(1)
		}
		games = append(games, g)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "read games: %v\n", err)
		os.Exit(1)
	}

	// 3) Attach survivors and write JSON lines
	enc := json.NewEncoder(os.Stdout)
	errs := 0
	for _, g := range games {
		survivors, err := pool.Query(ctx, `
            SELECT name, character FROM game_survivors WHERE game_id = $1::uuid ORDER BY seat
        `, g.ID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "query survivors of %s: %v\n", g.ID, err)
			errs++
			continue
		}
		g.Survivors = []SurvivorLine{}
		for survivors.Next() {
			var s SurvivorLine
			if err := survivors.Scan(&s.Name, &s.Character); err != nil {
				fmt.Fprintf(os.Stderr, "scan survivor of %s: %v\n", g.ID, err)
				errs++
				break
			}
			g.Survivors = append(g.Survivors, s)
		}
		survivors.Close()

		if err := enc.Encode(g); err != nil {
			fmt.Fprintf(os.Stderr, "write %s: %v\n", g.ID, err)
			os.Exit(1)
		}
	}

	// 4) Print summary
	fmt.Fprintf(os.Stderr, "Archive export complete: %d games, %d errors\n", len(games), errs)
}
