package registry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bunker/go/internal/bunker/room"
)

const (
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 5
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrNoRoom       = errors.New("you are not in a room")
)

// Config controls room settings and eviction.
type Config struct {
	Settings      room.Settings
	IdleTTL       time.Duration
	SweepInterval time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Settings:      room.DefaultSettings(),
		IdleTTL:       30 * time.Minute,
		SweepInterval: time.Minute,
	}
}

// Registry owns every live room and the binding of connection handles to
// rooms. Its lock only guards the two maps; room operations, including
// joins and leaves, run under the room's own lock with the registry lock
// released.
type Registry struct {
	mu      sync.RWMutex
	rooms   map[string]*room.Room
	handles map[string]string // connection handle -> room code

	config Config
	deps   room.Deps
	clock  clockwork.Clock
	rng    *rand.Rand
}

// New creates an empty registry. deps are handed to every room it creates.
func New(config Config, deps room.Deps) *Registry {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	return &Registry{
		rooms:   make(map[string]*room.Room),
		handles: make(map[string]string),
		config:  config,
		deps:    deps,
		clock:   deps.Clock,
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// CreateRoom opens a new room with handle as its first player and admin.
func (r *Registry) CreateRoom(handle, name string) (*room.Room, room.JoinResult, error) {
	if strings.TrimSpace(name) == "" {
		return nil, room.JoinResult{}, room.ErrEmptyName
	}
	r.leave(handle)

	r.mu.Lock()
	code := r.newCodeLocked()
	deps := r.deps
	deps.Rand = rand.New(rand.NewPCG(r.rng.Uint64(), r.rng.Uint64()))
	rm := room.New(code, r.config.Settings, deps)
	r.rooms[code] = rm
	r.handles[handle] = code
	count := len(r.rooms)
	r.mu.Unlock()

	res, err := rm.Join(handle, name)
	if err != nil {
		r.mu.Lock()
		if r.handles[handle] == code {
			delete(r.handles, handle)
		}
		r.deleteLocked(code, rm, "create failed")
		r.mu.Unlock()
		return nil, room.JoinResult{}, err
	}

	log.Info().
		Str("room_code", code).
		Str("connection_id", handle).
		Int("rooms", count).
		Msg("room created")
	return rm, res, nil
}

// JoinRoom binds handle to the room with code, as a new player or as a
// reconnect of an existing one.
func (r *Registry) JoinRoom(handle, code, name string) (*room.Room, room.JoinResult, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	r.mu.RLock()
	rm, ok := r.rooms[code]
	current, bound := r.handles[handle]
	r.mu.RUnlock()
	if !ok {
		return nil, room.JoinResult{}, fmt.Errorf("%w: %s", ErrRoomNotFound, code)
	}
	// A connection plays in one room at a time.
	if bound && current != code {
		r.leave(handle)
	}

	res, err := rm.Join(handle, name)
	if errors.Is(err, room.ErrRoomClosed) {
		return nil, room.JoinResult{}, fmt.Errorf("%w: %s", ErrRoomNotFound, code)
	}
	if err != nil {
		return nil, room.JoinResult{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rooms[code] != rm {
		return nil, room.JoinResult{}, fmt.Errorf("%w: %s", ErrRoomNotFound, code)
	}
	if res.ReplacedHandle != "" && r.handles[res.ReplacedHandle] == code {
		delete(r.handles, res.ReplacedHandle)
	}
	r.handles[handle] = code
	return rm, res, nil
}

// LeaveRoom is a voluntary leave of handle's room.
func (r *Registry) LeaveRoom(handle string) error {
	if !r.leave(handle) {
		return ErrNoRoom
	}
	return nil
}

// Disconnect handles the loss of handle's connection.
func (r *Registry) Disconnect(handle string) {
	code, rm, ok := r.unbind(handle)
	if !ok {
		return
	}
	empty, err := rm.Disconnect(handle)
	if err != nil {
		log.Debug().Err(err).Str("room_code", code).Str("connection_id", handle).Msg("disconnect from room")
		return
	}
	if empty {
		r.remove(code, rm, "empty lobby")
	}
}

// leave runs a voluntary leave of handle's room and reports whether handle
// was in one.
func (r *Registry) leave(handle string) bool {
	code, rm, ok := r.unbind(handle)
	if !ok {
		return false
	}
	empty, err := rm.Leave(handle)
	if err != nil {
		log.Debug().Err(err).Str("room_code", code).Str("connection_id", handle).Msg("leave room")
		return true
	}
	if empty {
		r.remove(code, rm, "empty lobby")
	}
	return true
}

// unbind drops handle's room binding. The room itself is called without
// the registry lock held.
func (r *Registry) unbind(handle string) (string, *room.Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	code, ok := r.handles[handle]
	if !ok {
		return "", nil, false
	}
	delete(r.handles, handle)
	rm, ok := r.rooms[code]
	return code, rm, ok
}

func (r *Registry) remove(code string, rm *room.Room, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleteLocked(code, rm, reason)
}

// deleteLocked removes rm if it still owns code.
func (r *Registry) deleteLocked(code string, rm *room.Room, reason string) {
	if r.rooms[code] != rm {
		return
	}
	delete(r.rooms, code)
	for _, h := range rm.Handles() {
		if r.handles[h] == code {
			delete(r.handles, h)
		}
	}
	rm.Close()

	log.Info().
		Str("room_code", code).
		Str("reason", reason).
		Int("rooms", len(r.rooms)).
		Msg("room deleted")
}

func (r *Registry) newCodeLocked() string {
	b := make([]byte, codeLength)
	for {
		for i := range b {
			b[i] = codeAlphabet[r.rng.IntN(len(codeAlphabet))]
		}
		if _, taken := r.rooms[string(b)]; !taken {
			return string(b)
		}
	}
}

// Room looks up a room by code.
func (r *Registry) Room(code string) (*room.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[strings.ToUpper(code)]
	return rm, ok
}

// Snapshot returns the public state of the room with code.
func (r *Registry) Snapshot(code string) (room.Snapshot, bool) {
	rm, ok := r.Room(code)
	if !ok {
		return room.Snapshot{}, false
	}
	return rm.Snapshot(), true
}

// RoomOf returns the room handle is bound to.
func (r *Registry) RoomOf(handle string) (*room.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	code, ok := r.handles[handle]
	if !ok {
		return nil, ErrNoRoom
	}
	rm, ok := r.rooms[code]
	if !ok {
		return nil, ErrNoRoom
	}
	return rm, nil
}

// Len returns the number of live rooms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Run evicts idle rooms until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	ticker := r.clock.NewTicker(r.config.SweepInterval)
	defer ticker.Stop()

	log.Info().
		Dur("idle_ttl", r.config.IdleTTL).
		Dur("interval", r.config.SweepInterval).
		Msg("room sweeper started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("room sweeper shutting down")
			return
		case <-ticker.Chan():
			r.Sweep()
		}
	}
}

// Sweep deletes every room that has been idle for the configured TTL and
// returns how many it removed.
func (r *Registry) Sweep() int {
	now := r.clock.Now()

	r.mu.RLock()
	var idle []string
	for code, rm := range r.rooms {
		if rm.Idle(now, r.config.IdleTTL) {
			idle = append(idle, code)
		}
	}
	r.mu.RUnlock()

	if len(idle) == 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for _, code := range idle {
		rm, ok := r.rooms[code]
		if !ok || !rm.Idle(now, r.config.IdleTTL) {
			continue
		}
		r.deleteLocked(code, rm, "idle")
		removed++
	}
	return removed
}

// Close shuts every room down.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for code, rm := range r.rooms {
		r.deleteLocked(code, rm, "shutdown")
	}
}
