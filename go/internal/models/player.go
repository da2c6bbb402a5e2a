package models

import (
	"github.com/google/uuid"
)

// Presence is the connection state of a player: Online with a handle, or Offline.
type Presence struct {
	handle string
}

// Online binds a player to a live connection handle.
func Online(handle string) Presence {
	return Presence{handle: handle}
}

// Offline is the presence of a player without a live connection.
func Offline() Presence {
	return Presence{}
}

// IsOnline reports whether the presence holds a connection handle.
func (p Presence) IsOnline() bool {
	return p.handle != ""
}

// Handle returns the bound connection handle, or "" when offline.
func (p Presence) Handle() string {
	return p.handle
}

// Player is a named participant of one room.
type Player struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Eliminated bool      `json:"eliminated"`
	Admin      bool      `json:"admin"`
	BonusUsed  int       `json:"bonus_used"`
	Presence   Presence  `json:"-"`
}

// Active reports whether the player still takes part in turns and votes.
func (p *Player) Active() bool {
	return !p.Eliminated
}

// PlayerView is the public projection of a player broadcast in player lists.
type PlayerView struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Eliminated bool   `json:"eliminated"`
	Online     bool   `json:"online"`
	Admin      bool   `json:"admin"`
	BonusUsed  int    `json:"bonus_used"`
}

// View builds the public projection of the player.
func (p *Player) View() PlayerView {
	return PlayerView{
		ID:         p.ID.String(),
		Name:       p.Name,
		Eliminated: p.Eliminated,
		Online:     p.Presence.IsOnline(),
		Admin:      p.Admin,
		BonusUsed:  p.BonusUsed,
	}
}
