package room

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/bunker/go/internal/bunker/events"
	"github.com/mcdev12/bunker/go/internal/models"
)

type delivery struct {
	handle    string
	payload   events.Payload
	broadcast bool
}

// recorder is a Notifier that keeps every delivery.
type recorder struct {
	mu         sync.Mutex
	deliveries []delivery
	broadcasts []events.Payload
}

func (r *recorder) Broadcast(_ string, handles []string, payload events.Payload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcasts = append(r.broadcasts, payload)
	for _, h := range handles {
		r.deliveries = append(r.deliveries, delivery{handle: h, payload: payload, broadcast: true})
	}
}

func (r *recorder) Send(_ string, handle string, payload events.Payload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, delivery{handle: handle, payload: payload})
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = nil
	r.broadcasts = nil
}

// received returns the payloads of type T delivered to handle, in order.
func received[T events.Payload](r *recorder, handle string) []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []T
	for _, d := range r.deliveries {
		if p, ok := d.payload.(T); ok && d.handle == handle {
			out = append(out, p)
		}
	}
	return out
}

// sentTo returns only direct sends of type T to handle.
func sentTo[T events.Payload](r *recorder, handle string) []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []T
	for _, d := range r.deliveries {
		if p, ok := d.payload.(T); ok && d.handle == handle && !d.broadcast {
			out = append(out, p)
		}
	}
	return out
}

func broadcasts[T events.Payload](r *recorder) []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []T
	for _, b := range r.broadcasts {
		if p, ok := b.(T); ok {
			out = append(out, p)
		}
	}
	return out
}

func last[T any](t *testing.T, items []T) T {
	t.Helper()
	if len(items) == 0 {
		var zero T
		t.Fatalf("expected at least one %T", zero)
	}
	return items[len(items)-1]
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type fakeGenerator struct {
	mu        sync.Mutex
	places    int
	setupErr  error
	ending    string
	endingErr error
	calls     int
}

func (g *fakeGenerator) GenerateSetup(_ context.Context, n int) (*models.GameSetup, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.setupErr != nil {
		return nil, g.setupErr
	}
	setup := &models.GameSetup{
		Scenario: models.Scenario{Title: "Flood", Description: "The sea rose.", Places: g.places, Duration: "2 years"},
	}
	for i := range n {
		c := models.Character{
			Profession: fmt.Sprintf("profession-%d", i),
			Gender:     fmt.Sprintf("gender-%d", i),
			Age:        fmt.Sprintf("age-%d", i),
			Health:     fmt.Sprintf("health-%d", i),
			Hobby:      fmt.Sprintf("hobby-%d", i),
			Inventory:  fmt.Sprintf("inventory-%d", i),
			Trait:      fmt.Sprintf("trait-%d", i),
		}
		if i == 0 {
			c.Ability = models.Ability{Kind: models.AbilityHeal}
		}
		setup.Characters = append(setup.Characters, c)
	}
	return setup, nil
}

func (g *fakeGenerator) GenerateEnding(_ context.Context, _ models.Scenario, survivors []models.Survivor) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.endingErr != nil {
		return "", g.endingErr
	}
	if g.ending != "" {
		return g.ending, nil
	}
	return fmt.Sprintf("%d survivors walked out.", len(survivors)), nil
}

type recordingArchiver struct {
	mu      sync.Mutex
	records []models.GameRecord
}

func (a *recordingArchiver) ArchiveGame(_ context.Context, record models.GameRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, record)
	return nil
}

type fixture struct {
	t        *testing.T
	room     *Room
	rec      *recorder
	clock    *clockwork.FakeClock
	gen      *fakeGenerator
	archiver *recordingArchiver
	handles  []string
	ids      []uuid.UUID
}

func newFixture(t *testing.T, players int) *fixture {
	t.Helper()
	f := &fixture{
		t:        t,
		rec:      &recorder{},
		clock:    clockwork.NewFakeClock(),
		gen:      &fakeGenerator{places: 2},
		archiver: &recordingArchiver{},
	}
	f.room = New("ABCDE", DefaultSettings(), Deps{
		Clock:     f.clock,
		Notifier:  f.rec,
		Generator: f.gen,
		Archiver:  f.archiver,
		Rand:      rand.New(rand.NewPCG(1, 2)),
	})
	t.Cleanup(func() {
		f.room.Close()
		f.room.Wait()
	})
	for i := range players {
		handle := fmt.Sprintf("h%d", i)
		res, err := f.room.Join(handle, fmt.Sprintf("Player%d", i))
		if err != nil {
			t.Fatalf("join %d: %v", i, err)
		}
		f.handles = append(f.handles, handle)
		f.ids = append(f.ids, res.PlayerID)
	}
	return f
}

// start runs StartGame for the admin and waits for the setup to apply.
func (f *fixture) start() {
	f.t.Helper()
	if err := f.room.StartGame(f.handles[0]); err != nil {
		f.t.Fatalf("start game: %v", err)
	}
	f.room.Wait()
	if got := f.room.Phase(); got != models.PhaseIntro {
		f.t.Fatalf("phase after start = %s, want %s", got, models.PhaseIntro)
	}
}

// tick advances the clock one second and waits for the countdown to handle it.
func (f *fixture) tick() {
	f.t.Helper()
	before := len(broadcasts[events.TimerTickPayload](f.rec))
	f.clock.Advance(time.Second)
	waitFor(f.t, "timer tick", func() bool {
		return len(broadcasts[events.TimerTickPayload](f.rec)) > before
	})
	f.room.Phase()
}

// elapse advances the clock past a delay and waits until cond holds.
func (f *fixture) elapse(d time.Duration, what string, cond func() bool) {
	f.t.Helper()
	f.clock.Advance(d)
	waitFor(f.t, what, cond)
}

func (f *fixture) phaseIs(p models.Phase) func() bool {
	return func() bool { return f.room.Phase() == p }
}

func (f *fixture) skip() {
	f.t.Helper()
	if err := f.room.SkipPhase(f.handles[0]); err != nil {
		f.t.Fatalf("skip phase: %v", err)
	}
}

func (f *fixture) holder() uuid.UUID {
	f.room.mu.Lock()
	defer f.room.mu.Unlock()
	id, _ := f.room.queue.current()
	return id
}

func (f *fixture) handleOf(id uuid.UUID) string {
	for i, pid := range f.ids {
		if pid == id {
			return f.handles[i]
		}
	}
	f.t.Fatalf("unknown player %s", id)
	return ""
}

// toReveal starts a game and skips INTRO.
func (f *fixture) toReveal() {
	f.t.Helper()
	f.start()
	f.skip()
	if got := f.room.Phase(); got != models.PhaseReveal {
		f.t.Fatalf("phase = %s, want %s", got, models.PhaseReveal)
	}
}

// unrevealed returns the first trait of id not yet disclosed.
func (f *fixture) unrevealed(id uuid.UUID) models.TraitKey {
	f.room.mu.Lock()
	defer f.room.mu.Unlock()
	for _, key := range models.AllTraits {
		if !f.room.isRevealedLocked(id, key) {
			return key
		}
	}
	f.t.Fatalf("player %s has nothing left to reveal", id)
	return ""
}

// toDebate plays a REVEAL round where every holder reveals one trait.
func (f *fixture) toDebate() {
	f.t.Helper()
	for f.room.Phase() == models.PhaseReveal {
		id := f.holder()
		if id == uuid.Nil {
			break
		}
		if err := f.room.RevealTrait(f.handleOf(id), string(f.unrevealed(id))); err != nil {
			f.t.Fatalf("reveal: %v", err)
		}
	}
	f.elapse(f.room.settings.ExhaustedGrace, "debate", f.phaseIs(models.PhaseDebate))
}

// toVote plays a REVEAL round, then skips DEBATE.
func (f *fixture) toVote() {
	f.t.Helper()
	f.toDebate()
	f.skip()
	if got := f.room.Phase(); got != models.PhaseVote {
		f.t.Fatalf("phase = %s, want %s", got, models.PhaseVote)
	}
}

// vote casts the holder's vote for target.
func (f *fixture) vote(target uuid.UUID) {
	f.t.Helper()
	id := f.holder()
	if err := f.room.SubmitVote(f.handleOf(id), target.String()); err != nil {
		f.t.Fatalf("vote by %s: %v", id, err)
	}
}
