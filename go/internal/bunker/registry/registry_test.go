package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/bunker/go/internal/bunker/events"
	"github.com/mcdev12/bunker/go/internal/bunker/room"
	"github.com/mcdev12/bunker/go/internal/models"
)

type sent struct {
	code    string
	handle  string
	payload events.Payload
}

type recorder struct {
	mu   sync.Mutex
	sent []sent
}

func (r *recorder) Broadcast(code string, handles []string, payload events.Payload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range handles {
		r.sent = append(r.sent, sent{code: code, handle: h, payload: payload})
	}
}

func (r *recorder) Send(code, handle string, payload events.Payload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sent{code: code, handle: handle, payload: payload})
}

func (r *recorder) errorsFor(handle string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, s := range r.sent {
		if p, ok := s.payload.(events.ErrorPayload); ok && s.handle == handle {
			out = append(out, p.Message)
		}
	}
	return out
}

type stubGenerator struct{}

func (stubGenerator) GenerateSetup(_ context.Context, n int) (*models.GameSetup, error) {
	setup := &models.GameSetup{Scenario: models.Scenario{Title: "Ash", Places: 2}}
	for i := range n {
		setup.Characters = append(setup.Characters, models.Character{Profession: fmt.Sprintf("p%d", i)})
	}
	return setup, nil
}

func (stubGenerator) GenerateEnding(context.Context, models.Scenario, []models.Survivor) (string, error) {
	return "the end", nil
}

func newTestRegistry(t *testing.T) (*Registry, *recorder, *clockwork.FakeClock) {
	t.Helper()
	rec := &recorder{}
	clock := clockwork.NewFakeClock()
	reg := New(DefaultConfig(), room.Deps{Clock: clock, Notifier: rec, Generator: stubGenerator{}})
	t.Cleanup(reg.Close)
	return reg, rec, clock
}

func TestCreateRoomCode(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	seen := make(map[string]bool)
	for i := range 20 {
		rm, res, err := reg.CreateRoom(fmt.Sprintf("h%d", i), "Host")
		if err != nil {
			t.Fatalf("CreateRoom(): %v", err)
		}
		code := rm.Code()
		if len(code) != codeLength {
			t.Fatalf("code %q has length %d", code, len(code))
		}
		for _, c := range code {
			if !strings.ContainsRune(codeAlphabet, c) {
				t.Fatalf("code %q has character %q outside the alphabet", code, c)
			}
		}
		if seen[code] {
			t.Fatalf("duplicate code %q", code)
		}
		seen[code] = true
		if res.Reconnected {
			t.Fatal("CreateRoom() reported a reconnect")
		}
	}
	if reg.Len() != 20 {
		t.Fatalf("Len() = %d, want 20", reg.Len())
	}
}

func TestJoinRoom(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	rm, _, err := reg.CreateRoom("host", "Host")
	if err != nil {
		t.Fatalf("CreateRoom(): %v", err)
	}

	if _, _, err := reg.JoinRoom("g1", "ZZZZZ", "Guest"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("JoinRoom() unknown code error = %v, want %v", err, ErrRoomNotFound)
	}
	if _, _, err := reg.JoinRoom("g1", strings.ToLower(rm.Code()), "Guest"); err != nil {
		t.Fatalf("JoinRoom() lower case code: %v", err)
	}
	got, err := reg.RoomOf("g1")
	if err != nil || got != rm {
		t.Fatalf("RoomOf() = %v, %v", got, err)
	}
}

func TestEmptyLobbyIsDeleted(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	rm, _, err := reg.CreateRoom("host", "Host")
	if err != nil {
		t.Fatalf("CreateRoom(): %v", err)
	}
	if _, _, err := reg.JoinRoom("g1", rm.Code(), "Guest"); err != nil {
		t.Fatalf("JoinRoom(): %v", err)
	}

	if err := reg.LeaveRoom("host"); err != nil {
		t.Fatalf("LeaveRoom(): %v", err)
	}
	if _, ok := reg.Room(rm.Code()); !ok {
		t.Fatal("room deleted while a player remains")
	}
	reg.Disconnect("g1")
	if _, ok := reg.Room(rm.Code()); ok {
		t.Fatal("empty lobby was not deleted")
	}
	if err := reg.LeaveRoom("g1"); !errors.Is(err, ErrNoRoom) {
		t.Fatalf("LeaveRoom() after delete error = %v, want %v", err, ErrNoRoom)
	}
	if _, err := rm.Join("late", "Late"); !errors.Is(err, room.ErrRoomClosed) {
		t.Fatalf("Join() on a deleted lobby error = %v, want %v", err, room.ErrRoomClosed)
	}
}

// gatedNotifier blocks broadcasts for one room until released.
type gatedNotifier struct {
	recorder
	code    string
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (n *gatedNotifier) Broadcast(code string, handles []string, payload events.Payload) {
	if code == n.code {
		n.once.Do(func() { close(n.entered) })
		<-n.release
	}
	n.recorder.Broadcast(code, handles, payload)
}

func TestSlowRoomDoesNotBlockOtherRooms(t *testing.T) {
	notifier := &gatedNotifier{entered: make(chan struct{}), release: make(chan struct{})}
	reg := New(DefaultConfig(), room.Deps{Clock: clockwork.NewFakeClock(), Notifier: notifier, Generator: stubGenerator{}})
	t.Cleanup(reg.Close)
	release := sync.OnceFunc(func() { close(notifier.release) })
	t.Cleanup(release)

	slow, _, err := reg.CreateRoom("host", "Host")
	if err != nil {
		t.Fatalf("CreateRoom(): %v", err)
	}
	notifier.code = slow.Code()

	joined := make(chan error, 1)
	go func() {
		_, _, err := reg.JoinRoom("g1", slow.Code(), "Guest")
		joined <- err
	}()
	<-notifier.entered

	done := make(chan error, 1)
	go func() {
		_, _, err := reg.CreateRoom("other", "Other")
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("CreateRoom() while another room broadcasts: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("CreateRoom() blocked behind another room's join")
	}

	release()
	if err := <-joined; err != nil {
		t.Fatalf("JoinRoom(): %v", err)
	}
	if rm, err := reg.RoomOf("g1"); err != nil || rm != slow {
		t.Fatalf("RoomOf(g1) = %v, %v", rm, err)
	}
}

func TestCreatingAnotherRoomLeavesThePrevious(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	first, _, err := reg.CreateRoom("host", "Host")
	if err != nil {
		t.Fatalf("CreateRoom(): %v", err)
	}
	second, _, err := reg.CreateRoom("host", "Host")
	if err != nil {
		t.Fatalf("CreateRoom(): %v", err)
	}
	if _, ok := reg.Room(first.Code()); ok {
		t.Fatal("abandoned lobby still registered")
	}
	if got, _ := reg.RoomOf("host"); got != second {
		t.Fatal("handle not bound to the new room")
	}
}

func TestHandleActionReportsErrors(t *testing.T) {
	reg, rec, _ := newTestRegistry(t)

	reg.HandleAction("h0", events.StartGame{})
	reg.HandleAction("h0", events.JoinRoom{RoomCode: "QQQQQ", Name: "A"})
	reg.HandleAction("h0", events.CreateRoom{Name: "Host"})
	reg.HandleAction("h0", events.StartGame{})
	reg.HandleAction("h0", events.AddTime{}) // silent in LOBBY

	want := []string{
		ErrNoRoom.Error(),
		ErrRoomNotFound.Error(),
		room.ErrNotEnoughPlayers.Error() + ": need 5, have 1",
	}
	got := rec.errorsFor("h0")
	if len(got) != len(want) {
		t.Fatalf("errors = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("error %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestReconnectDropsReplacedHandle(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	rm, _, err := reg.CreateRoom("h0", "P0")
	if err != nil {
		t.Fatalf("CreateRoom(): %v", err)
	}
	for i := 1; i < 5; i++ {
		if _, _, err := reg.JoinRoom(fmt.Sprintf("h%d", i), rm.Code(), fmt.Sprintf("P%d", i)); err != nil {
			t.Fatalf("JoinRoom(): %v", err)
		}
	}
	reg.HandleAction("h0", events.StartGame{})
	rm.Wait()
	if rm.Phase() != models.PhaseIntro {
		t.Fatalf("phase = %s, want %s", rm.Phase(), models.PhaseIntro)
	}

	_, res, err := reg.JoinRoom("h3-new", rm.Code(), "P3")
	if err != nil {
		t.Fatalf("JoinRoom() reconnect: %v", err)
	}
	if res.ReplacedHandle != "h3" {
		t.Fatalf("replaced = %q, want h3", res.ReplacedHandle)
	}
	if _, err := reg.RoomOf("h3"); !errors.Is(err, ErrNoRoom) {
		t.Fatalf("RoomOf(old handle) error = %v, want %v", err, ErrNoRoom)
	}
	if got, _ := reg.RoomOf("h3-new"); got != rm {
		t.Fatal("new handle not bound")
	}

	// A mid-game disconnect keeps the room.
	for i := range 5 {
		reg.Disconnect(fmt.Sprintf("h%d", i))
	}
	reg.Disconnect("h3-new")
	if _, ok := reg.Room(rm.Code()); !ok {
		t.Fatal("mid-game room deleted on disconnect")
	}
}

// abandonedGame creates a started room whose players have all dropped.
func abandonedGame(t *testing.T, reg *Registry, prefix string) *room.Room {
	t.Helper()
	handles := make([]string, 5)
	for i := range handles {
		handles[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	rm, _, err := reg.CreateRoom(handles[0], "Host")
	if err != nil {
		t.Fatalf("CreateRoom(): %v", err)
	}
	for i, h := range handles[1:] {
		if _, _, err := reg.JoinRoom(h, rm.Code(), fmt.Sprintf("Guest%d", i)); err != nil {
			t.Fatalf("JoinRoom(): %v", err)
		}
	}
	reg.HandleAction(handles[0], events.StartGame{})
	rm.Wait()
	if rm.Phase() != models.PhaseIntro {
		t.Fatalf("phase = %s, want %s", rm.Phase(), models.PhaseIntro)
	}
	for _, h := range handles {
		reg.Disconnect(h)
	}
	return rm
}

func TestSweepEvictsIdleRooms(t *testing.T) {
	reg, _, clock := newTestRegistry(t)

	busy, _, err := reg.CreateRoom("online", "Online")
	if err != nil {
		t.Fatalf("CreateRoom(): %v", err)
	}
	idle := abandonedGame(t, reg, "g")

	clock.Advance(reg.config.IdleTTL / 2)
	if n := reg.Sweep(); n != 0 {
		t.Fatalf("Sweep() before ttl removed %d rooms", n)
	}
	clock.Advance(reg.config.IdleTTL)
	if n := reg.Sweep(); n != 1 {
		t.Fatalf("Sweep() removed %d rooms, want 1", n)
	}
	if _, ok := reg.Room(idle.Code()); ok {
		t.Fatal("idle room survived the sweep")
	}
	if _, ok := reg.Room(busy.Code()); !ok {
		t.Fatal("room with an online player was swept")
	}
}

func TestRunSweepsOnInterval(t *testing.T) {
	reg, _, clock := newTestRegistry(t)
	abandonedGame(t, reg, "g")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reg.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	deadline := time.Now().Add(2 * time.Second)
	for reg.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("sweeper never evicted the abandoned room")
		}
		clock.Advance(reg.config.SweepInterval)
		time.Sleep(5 * time.Millisecond)
	}
}
