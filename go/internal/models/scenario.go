package models

import "time"

// DefaultPlaces is the bunker capacity used when a scenario does not name one.
const DefaultPlaces = 2

// Scenario is the shared catastrophe premise of one game.
type Scenario struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Places      int    `json:"places"`
	Duration    string `json:"duration"`
}

// Survivor is a surviving player's name with their full character sheet.
type Survivor struct {
	Name string `json:"name"`
	Character
}

// GameSetup is what the narrative service deals for a new game: one scenario
// and one character per player, in seat order.
type GameSetup struct {
	Scenario   Scenario    `json:"scenario"`
	Characters []Character `json:"players"`
}

// GameRecord summarises a finished game for the archive.
type GameRecord struct {
	RoomCode   string     `json:"room_code"`
	Scenario   Scenario   `json:"scenario"`
	Rounds     int        `json:"rounds"`
	Survivors  []Survivor `json:"survivors"`
	Eliminated []string   `json:"eliminated"`
	Story      string     `json:"story"`
	EndedAt    time.Time  `json:"ended_at"`
}
