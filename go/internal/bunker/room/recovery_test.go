package room

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mcdev12/bunker/go/internal/bunker/events"
	"github.com/mcdev12/bunker/go/internal/models"
)

// table folds trait notifications into the view a client renders.
func table(reveals []events.TraitRevealedPayload) map[string]map[models.TraitKey]string {
	out := make(map[string]map[models.TraitKey]string)
	for _, r := range reveals {
		if out[r.PlayerID] == nil {
			out[r.PlayerID] = make(map[models.TraitKey]string)
		}
		out[r.PlayerID][r.Trait] = r.Value
	}
	return out
}

// Scenario D: a player drops mid-game and comes back under the same name.
func TestReconnectReplaysStateAndKeepsQueueSlot(t *testing.T) {
	f := newFixture(t, 5)
	f.toReveal()

	if _, err := f.room.Disconnect("h2"); err != nil {
		t.Fatalf("Disconnect(): %v", err)
	}
	if got := f.room.Phase(); got != models.PhaseReveal {
		t.Fatalf("disconnect changed phase to %s", got)
	}
	if err := f.room.RevealTrait("h0", "hobby"); err != nil {
		t.Fatalf("RevealTrait(): %v", err)
	}

	res, err := f.room.Join("h2b", "Player2")
	if err != nil {
		t.Fatalf("Join() reconnect: %v", err)
	}
	if !res.Reconnected || res.PlayerID != f.ids[2] || res.ReplacedHandle != "" {
		t.Fatalf("Join() = %+v", res)
	}

	joined := last(t, sentTo[events.RoomJoinedPayload](f.rec, "h2b"))
	if !joined.Reconnected || joined.PlayerID != f.ids[2].String() {
		t.Fatalf("room joined = %+v", joined)
	}
	sheet := last(t, sentTo[events.CharacterAssignedPayload](f.rec, "h2b"))
	if sheet.Character.Profession != "profession-2" {
		t.Fatalf("replayed sheet = %+v", sheet.Character)
	}
	replayed := sentTo[events.TraitRevealedPayload](f.rec, "h2b")
	if len(replayed) != 2*5+1 {
		t.Fatalf("replayed %d traits, want %d", len(replayed), 2*5+1)
	}
	change := last(t, sentTo[events.PhaseChangePayload](f.rec, "h2b"))
	if change.Phase != models.PhaseReveal || change.Time != 30 {
		t.Fatalf("replayed phase = %+v", change)
	}
	turn := last(t, sentTo[events.TurnUpdatePayload](f.rec, "h2b"))
	if turn.ActivePlayerID != f.ids[1].String() {
		t.Fatalf("replayed turn = %+v, want %s", turn, f.ids[1])
	}

	// The slot is kept: Player2 moves after Player1 on the new handle.
	if err := f.room.RevealTrait("h1", "hobby"); err != nil {
		t.Fatalf("RevealTrait(): %v", err)
	}
	if f.holder() != f.ids[2] {
		t.Fatalf("holder = %s, want %s", f.holder(), f.ids[2])
	}
	if err := f.room.RevealTrait("h2", "hobby"); !errors.Is(err, ErrNotInRoom) {
		t.Fatalf("RevealTrait() on old handle error = %v, want %v", err, ErrNotInRoom)
	}
	if err := f.room.RevealTrait("h2b", "hobby"); err != nil {
		t.Fatalf("RevealTrait() on new handle: %v", err)
	}
}

func TestReplayMatchesLiveObserver(t *testing.T) {
	f := newFixture(t, 5)
	f.toReveal()

	for _, h := range []string{"h0", "h1"} {
		if err := f.room.RevealTrait(h, "inventory"); err != nil {
			t.Fatalf("RevealTrait(%s): %v", h, err)
		}
	}

	live := table(received[events.TraitRevealedPayload](f.rec, "h4"))

	// h4 reconnects while its old handle is still bound.
	res, err := f.room.Join("h4b", "Player4")
	if err != nil {
		t.Fatalf("Join(): %v", err)
	}
	if res.ReplacedHandle != "h4" {
		t.Fatalf("replaced handle = %q, want h4", res.ReplacedHandle)
	}

	replay := table(sentTo[events.TraitRevealedPayload](f.rec, "h4b"))
	if diff := cmp.Diff(live, replay); diff != "" {
		t.Fatalf("replay differs from live view (-live +replay):\n%s", diff)
	}

	// Replaying on top of an up to date view changes nothing.
	both := append(received[events.TraitRevealedPayload](f.rec, "h4"), sentTo[events.TraitRevealedPayload](f.rec, "h4b")...)
	if diff := cmp.Diff(live, table(both)); diff != "" {
		t.Fatalf("double replay changed the view (-live +merged):\n%s", diff)
	}
}

func TestReconnectDuringVoteReplaysTally(t *testing.T) {
	f := newFixture(t, 5)
	f.toReveal()
	f.toVote()

	f.vote(f.ids[4])
	if _, err := f.room.Disconnect("h3"); err != nil {
		t.Fatalf("Disconnect(): %v", err)
	}
	if _, err := f.room.Join("h3b", "Player3"); err != nil {
		t.Fatalf("Join(): %v", err)
	}

	tally := last(t, sentTo[events.VoteTallyUpdatePayload](f.rec, "h3b"))
	if tally.TotalVoted != 1 || tally.Counts[f.ids[4].String()] != 1 {
		t.Fatalf("replayed tally = %+v", tally)
	}
	bonus := last(t, sentTo[events.BonusUsedUpdatePayload](f.rec, "h3b"))
	if bonus.Used != 0 || bonus.Max != 2 {
		t.Fatalf("replayed bonus = %+v", bonus)
	}
}
