package archive

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bunker/go/internal/models"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// GameLister reads archived games.
type GameLister interface {
	RecentGames(ctx context.Context, limit int) ([]models.GameRecord, error)
}

// Handler serves archived games over HTTP.
type Handler struct {
	games GameLister
}

func NewHandler(games GameLister) *Handler {
	return &Handler{games: games}
}

// HandleListGames handles GET /api/games?limit=N
func (h *Handler) HandleListGames(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxListLimit)
	}

	games, err := h.games.RecentGames(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to list archived games")
		http.Error(w, "Failed to list games", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(games); err != nil {
		log.Error().Err(err).Msg("failed to encode games response")
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/games", h.HandleListGames)
}
