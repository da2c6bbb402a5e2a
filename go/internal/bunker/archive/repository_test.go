package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/mcdev12/bunker/go/internal/models"
)

func sampleRecord() models.GameRecord {
	return models.GameRecord{
		RoomCode: "ABCDE",
		Scenario: models.Scenario{Title: "Ash", Places: 2},
		Rounds:   3,
		Survivors: []models.Survivor{
			{Name: "Ana", Character: models.Character{Profession: "Doctor", Ability: models.Ability{Kind: models.AbilityHeal, Used: true}}},
			{Name: "Bo", Character: models.Character{Profession: "Cook"}},
		},
		Eliminated: []string{"Cy", "Di"},
		Story:      "They lived.",
		EndedAt:    time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestRowsKeepSeatOrder(t *testing.T) {
	id := uuid.New()
	game, survivors, err := toRows(id, sampleRecord())
	if err != nil {
		t.Fatalf("toRows(): %v", err)
	}
	if !game.Eliminated.Valid || !game.Story.Valid {
		t.Fatalf("game row = %+v", game)
	}
	for i, s := range survivors {
		if s.Seat != int32(i) || s.GameID != id {
			t.Fatalf("survivor %d = %+v", i, s)
		}
	}

	got, err := fromRows(game, survivors)
	if err != nil {
		t.Fatalf("fromRows(): %v", err)
	}
	if diff := cmp.Diff(sampleRecord(), got); diff != "" {
		t.Fatalf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestRowsWithNobodyEliminated(t *testing.T) {
	record := sampleRecord()
	record.Eliminated = nil
	record.Story = ""

	game, _, err := toRows(uuid.New(), record)
	if err != nil {
		t.Fatalf("toRows(): %v", err)
	}
	if game.Eliminated.Valid || game.Story.Valid {
		t.Fatalf("empty values stored as non-null: %+v", game)
	}
}

func TestFromRowsRejectsCorruptScenario(t *testing.T) {
	_, err := fromRows(Game{ID: uuid.New(), Scenario: json.RawMessage(`{`)}, nil)
	if err == nil {
		t.Fatal("fromRows() accepted a corrupt scenario")
	}
}

type fakeLister struct {
	gotLimit int
	games    []models.GameRecord
	err      error
}

func (f *fakeLister) RecentGames(_ context.Context, limit int) ([]models.GameRecord, error) {
	f.gotLimit = limit
	return f.games, f.err
}

func TestHandleListGames(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		err       error
		wantCode  int
		wantLimit int
	}{
		{name: "default limit", query: "", wantCode: http.StatusOK, wantLimit: defaultListLimit},
		{name: "capped limit", query: "?limit=1000", wantCode: http.StatusOK, wantLimit: maxListLimit},
		{name: "bad limit", query: "?limit=-1", wantCode: http.StatusBadRequest},
		{name: "store failure", query: "?limit=5", err: errors.New("down"), wantCode: http.StatusInternalServerError, wantLimit: 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lister := &fakeLister{games: []models.GameRecord{sampleRecord()}, err: tt.err}
			mux := http.NewServeMux()
			NewHandler(lister).RegisterRoutes(mux)

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/games"+tt.query, nil))

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if lister.gotLimit != tt.wantLimit {
				t.Fatalf("limit = %d, want %d", lister.gotLimit, tt.wantLimit)
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			var got []models.GameRecord
			if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
				t.Fatalf("Decode(): %v", err)
			}
			if len(got) != 1 || got[0].RoomCode != "ABCDE" {
				t.Fatalf("games = %+v", got)
			}
		})
	}
}

// TestRepositoryPostgres runs against a real database when
// BUNKER_TEST_DATABASE_URL is set.
func TestRepositoryPostgres(t *testing.T) {
	dsn := os.Getenv("BUNKER_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("BUNKER_TEST_DATABASE_URL not set")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("sql.Open(): %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	repo := NewRepository(db)
	if err := repo.Migrate(ctx); err != nil {
		t.Fatalf("Migrate(): %v", err)
	}

	record := sampleRecord()
	record.RoomCode = "T" + uuid.NewString()[:4]
	record.EndedAt = time.Now().UTC().Add(time.Hour).Truncate(time.Microsecond)
	if err := repo.ArchiveGame(ctx, record); err != nil {
		t.Fatalf("ArchiveGame(): %v", err)
	}

	games, err := repo.RecentGames(ctx, 1)
	if err != nil {
		t.Fatalf("RecentGames(): %v", err)
	}
	if len(games) != 1 {
		t.Fatalf("RecentGames() returned %d games", len(games))
	}
	if diff := cmp.Diff(record, games[0], cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) })); diff != "" {
		t.Fatalf("archived game mismatch (-want +got):\n%s", diff)
	}
}
