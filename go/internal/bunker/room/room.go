package room

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bunker/go/internal/bunker/events"
	"github.com/mcdev12/bunker/go/internal/models"
)

// Notifier delivers outbound notifications. Implementations must not block and
// must not call back into the room.
type Notifier interface {
	// Broadcast sends payload to every listed connection handle of a room.
	Broadcast(roomCode string, handles []string, payload events.Payload)
	// Send delivers payload to a single connection handle.
	Send(roomCode string, handle string, payload events.Payload)
}

// Generator is the narrative service used at game start and game end.
type Generator interface {
	GenerateSetup(ctx context.Context, playerCount int) (*models.GameSetup, error)
	GenerateEnding(ctx context.Context, scenario models.Scenario, survivors []models.Survivor) (string, error)
}

// Archiver records finished games.
type Archiver interface {
	ArchiveGame(ctx context.Context, record models.GameRecord) error
}

// FallbackEnding is broadcast when the narrative service cannot tell the ending.
const FallbackEnding = "SYSTEM DAMAGED... DATA LOST... The fate of the bunker remains unknown."

// SystemSender is the chat sender name of room notices.
const SystemSender = "SYSTEM"

// Deps are the collaborators of a room.
type Deps struct {
	Clock     clockwork.Clock
	Notifier  Notifier
	Generator Generator
	Archiver  Archiver
	Rand      *rand.Rand
}

// Room is one isolated game. All state is guarded by mu; timer callbacks and
// collaborator completions take mu like any inbound action does.
type Room struct {
	mu sync.Mutex

	code      string
	settings  Settings
	clock     clockwork.Clock
	notifier  Notifier
	generator Generator
	archiver  Archiver
	rng       *rand.Rand

	ctx     context.Context
	cancel  context.CancelFunc
	pending sync.WaitGroup
	closed  bool

	players map[uuid.UUID]*models.Player
	order   []uuid.UUID          // join order
	handles map[string]uuid.UUID // connection handle -> player

	phase      models.Phase
	round      int
	scenario   *models.Scenario
	characters map[uuid.UUID]*models.Character
	revealed   map[uuid.UUID][]models.TraitKey
	acted      map[uuid.UUID]bool
	queue      turnQueue
	votes      voteLedger
	timer      timerHandle
	tallied    bool

	startSeq   uint64
	startToken uint64 // non-zero while a setup request is in flight
	starter    uuid.UUID
	eliminated []uuid.UUID
	story      string
	lastActive time.Time
	createdAt  time.Time
}

// New creates an empty room in LOBBY.
func New(code string, settings Settings, deps Deps) *Room {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	ctx, cancel := context.WithCancel(context.Background())
	now := deps.Clock.Now()
	return &Room{
		code:       code,
		settings:   settings,
		clock:      deps.Clock,
		notifier:   deps.Notifier,
		generator:  deps.Generator,
		archiver:   deps.Archiver,
		rng:        deps.Rand,
		ctx:        ctx,
		cancel:     cancel,
		players:    make(map[uuid.UUID]*models.Player),
		handles:    make(map[string]uuid.UUID),
		phase:      models.PhaseLobby,
		characters: make(map[uuid.UUID]*models.Character),
		revealed:   make(map[uuid.UUID][]models.TraitKey),
		acted:      make(map[uuid.UUID]bool),
		votes:      newVoteLedger(),
		lastActive: now,
		createdAt:  now,
	}
}

// Code returns the room code.
func (r *Room) Code() string {
	return r.code
}

// JoinResult describes how a connection was bound to a player.
type JoinResult struct {
	PlayerID    uuid.UUID
	Reconnected bool
	// ReplacedHandle is the previous handle of a reconnecting player, if it was
	// still bound. The caller must forget it.
	ReplacedHandle string
}

// Join binds handle to a new player in LOBBY, or re-binds it to the existing
// player of the same name once the game has started.
func (r *Room) Join(handle, name string) (JoinResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return JoinResult{}, ErrRoomClosed
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return JoinResult{}, ErrEmptyName
	}
	r.touchLocked()

	existing := r.playerByNameLocked(name)
	if r.phase == models.PhaseLobby {
		if r.startToken != 0 {
			return JoinResult{}, ErrStartPending
		}
		if _, bound := r.handles[handle]; bound {
			return JoinResult{}, ErrAlreadyJoined
		}
		if existing != nil {
			return JoinResult{}, ErrNameTaken
		}
		return r.addPlayerLocked(handle, name), nil
	}

	if existing == nil {
		return JoinResult{}, ErrGameInProgress
	}
	// One connection speaks for one player.
	if bound, ok := r.handles[handle]; ok && bound != existing.ID {
		return JoinResult{}, ErrAlreadyJoined
	}
	return r.reconnectLocked(handle, existing), nil
}

func (r *Room) addPlayerLocked(handle, name string) JoinResult {
	p := &models.Player{
		ID:       uuid.New(),
		Name:     name,
		Admin:    len(r.players) == 0,
		Presence: models.Online(handle),
	}
	r.players[p.ID] = p
	r.order = append(r.order, p.ID)
	r.handles[handle] = p.ID

	log.Info().
		Str("room_code", r.code).
		Str("player_id", p.ID.String()).
		Str("name", name).
		Bool("admin", p.Admin).
		Msg("player joined")

	r.sendLocked(handle, events.RoomJoinedPayload{RoomCode: r.code, PlayerID: p.ID.String(), IsAdmin: p.Admin})
	r.broadcastPlayersLocked()
	return JoinResult{PlayerID: p.ID}
}

func (r *Room) reconnectLocked(handle string, p *models.Player) JoinResult {
	res := JoinResult{PlayerID: p.ID, Reconnected: true}
	if old := p.Presence.Handle(); old != "" && old != handle {
		delete(r.handles, old)
		res.ReplacedHandle = old
	}
	p.Presence = models.Online(handle)
	r.handles[handle] = p.ID

	log.Info().
		Str("room_code", r.code).
		Str("player_id", p.ID.String()).
		Str("phase", string(r.phase)).
		Bool("replaced", res.ReplacedHandle != "").
		Msg("player reconnected")

	r.sendLocked(handle, events.RoomJoinedPayload{RoomCode: r.code, PlayerID: p.ID.String(), IsAdmin: p.Admin, Reconnected: true})
	r.broadcastPlayersLocked()
	r.replayLocked(p.ID, handle)
	return res
}

// Leave handles a voluntary leave. It reports whether the room became empty
// in LOBBY and should be deleted.
func (r *Room) Leave(handle string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.playerByHandleLocked(handle)
	if err != nil {
		return false, err
	}
	r.touchLocked()
	delete(r.handles, handle)

	if r.phase == models.PhaseLobby {
		r.removePlayerLocked(p)
		return r.closeIfEmptyLocked(), nil
	}

	p.Presence = models.Offline()
	if p.Admin {
		r.promoteAdminLocked(p)
	}
	if r.phase.InGame() && !p.Eliminated {
		p.Eliminated = true
		r.eliminated = append(r.eliminated, p.ID)
		r.votes.drop(p.ID)
		r.systemLocked(fmt.Sprintf("%s left the bunker.", p.Name))
		r.broadcastPlayersLocked()

		if r.scenario != nil && len(r.activeOrderLocked()) <= r.scenario.Places {
			log.Info().
				Str("room_code", r.code).
				Str("player_id", p.ID.String()).
				Int("places", r.scenario.Places).
				Msg("survivors fit the bunker after leave")
			r.finishLocked()
			return false, nil
		}
	} else {
		r.broadcastPlayersLocked()
	}

	if r.phase.IsTurnPhase() {
		if holder, ok := r.queue.current(); ok && holder == p.ID {
			r.advanceLocked()
		}
	}
	return false, nil
}

// Disconnect handles an abrupt connection loss. Mid-game only presence
// changes; in LOBBY the player is removed.
func (r *Room) Disconnect(handle string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.playerByHandleLocked(handle)
	if err != nil {
		return false, err
	}
	delete(r.handles, handle)

	if r.phase == models.PhaseLobby {
		r.removePlayerLocked(p)
		return r.closeIfEmptyLocked(), nil
	}

	p.Presence = models.Offline()
	log.Info().
		Str("room_code", r.code).
		Str("player_id", p.ID.String()).
		Msg("player went offline")
	r.broadcastPlayersLocked()
	return false, nil
}

func (r *Room) removePlayerLocked(p *models.Player) {
	delete(r.players, p.ID)
	for i, id := range r.order {
		if id == p.ID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if p.Admin {
		r.promoteAdminLocked(p)
	}
	log.Info().
		Str("room_code", r.code).
		Str("player_id", p.ID.String()).
		Int("remaining", len(r.players)).
		Msg("player removed from lobby")
	r.broadcastPlayersLocked()
}

// closeIfEmptyLocked stops an empty lobby from accepting joins so the
// registry can delete it.
func (r *Room) closeIfEmptyLocked() bool {
	if len(r.players) > 0 {
		return false
	}
	r.closed = true
	return true
}

// promoteAdminLocked hands the admin flag from p to the first remaining
// player in join order, preferring active ones.
func (r *Room) promoteAdminLocked(p *models.Player) {
	p.Admin = false
	var next *models.Player
	for _, id := range r.order {
		cand := r.players[id]
		if cand == p {
			continue
		}
		if cand.Active() {
			next = cand
			break
		}
		if next == nil {
			next = cand
		}
	}
	if next == nil {
		return
	}
	next.Admin = true
	log.Info().
		Str("room_code", r.code).
		Str("player_id", next.ID.String()).
		Msg("admin reassigned")
	if h := next.Presence.Handle(); h != "" {
		r.sendLocked(h, events.RoomJoinedPayload{RoomCode: r.code, PlayerID: next.ID.String(), IsAdmin: true})
	}
}

// SendMessage relays a chat line from a player to the room.
func (r *Room) SendMessage(handle, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.playerByHandleLocked(handle)
	if err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	if limit := r.settings.MaxMessageLength; limit > 0 {
		if runes := []rune(text); len(runes) > limit {
			text = string(runes[:limit])
		}
	}
	r.touchLocked()
	r.broadcastLocked(events.ChatMessagePayload{Sender: p.Name, Text: text})
	return nil
}

// Idle reports whether no player has been online or active for ttl.
func (r *Room) Idle(now time.Time, ttl time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.players {
		if p.Presence.IsOnline() {
			return false
		}
	}
	return now.Sub(r.lastActive) >= ttl
}

// Handles returns every connection handle currently bound to the room.
func (r *Room) Handles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.onlineHandlesLocked()
}

// Close cancels the live timer and any in-flight narrative call.
func (r *Room) Close() {
	r.mu.Lock()
	r.closed = true
	r.cancelTimerLocked()
	r.startToken = 0
	r.mu.Unlock()

	r.cancel()
}

// Wait blocks until in-flight narrative calls have completed.
func (r *Room) Wait() {
	r.pending.Wait()
}

// dispatch runs fn outside the room lock with a deadline.
func (r *Room) dispatch(fn func(ctx context.Context)) {
	r.pending.Add(1)
	go func() {
		defer r.pending.Done()
		ctx, cancel := context.WithTimeout(r.ctx, r.settings.NarrativeTimeout)
		defer cancel()
		fn(ctx)
	}()
}

func (r *Room) touchLocked() {
	r.lastActive = r.clock.Now()
}

func (r *Room) playerByHandleLocked(handle string) (*models.Player, error) {
	id, ok := r.handles[handle]
	if !ok {
		return nil, ErrNotInRoom
	}
	return r.players[id], nil
}

func (r *Room) playerByNameLocked(name string) *models.Player {
	for _, id := range r.order {
		if p := r.players[id]; p.Name == name {
			return p
		}
	}
	return nil
}

func (r *Room) isActiveLocked(id uuid.UUID) bool {
	p, ok := r.players[id]
	return ok && p.Active()
}

// activeOrderLocked returns active players in join order.
func (r *Room) activeOrderLocked() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(r.order))
	for _, id := range r.order {
		if r.players[id].Active() {
			ids = append(ids, id)
		}
	}
	return ids
}

func (r *Room) onlineHandlesLocked() []string {
	handles := make([]string, 0, len(r.order))
	for _, id := range r.order {
		if h := r.players[id].Presence.Handle(); h != "" {
			handles = append(handles, h)
		}
	}
	return handles
}

func (r *Room) broadcastLocked(payload events.Payload) {
	if r.notifier == nil {
		return
	}
	r.notifier.Broadcast(r.code, r.onlineHandlesLocked(), payload)
}

func (r *Room) sendLocked(handle string, payload events.Payload) {
	if r.notifier == nil || handle == "" {
		return
	}
	r.notifier.Send(r.code, handle, payload)
}

// sendToPlayerLocked delivers to a player's current handle, if online.
func (r *Room) sendToPlayerLocked(id uuid.UUID, payload events.Payload) {
	if p, ok := r.players[id]; ok {
		r.sendLocked(p.Presence.Handle(), payload)
	}
}

func (r *Room) systemLocked(text string) {
	r.broadcastLocked(events.ChatMessagePayload{Sender: SystemSender, Text: text})
}

func (r *Room) playerViewsLocked() map[string]models.PlayerView {
	views := make(map[string]models.PlayerView, len(r.players))
	for id, p := range r.players {
		views[id.String()] = p.View()
	}
	return views
}

func (r *Room) broadcastPlayersLocked() {
	r.broadcastLocked(events.PlayerListUpdatePayload{Players: r.playerViewsLocked()})
}
