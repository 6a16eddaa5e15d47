package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/keepwaifu/backend/internal/models"
	"github.com/keepwaifu/backend/internal/services"
)

type LeaderboardHandler struct {
	leaderboard *services.LeaderboardService
}

func NewLeaderboardHandler(core *services.Core) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboard: core.Leaderboard}
}

// Top returns the ranked list for ?type (global when absent). A missing or
// non-positive limit means the maximum.
func (h *LeaderboardHandler) Top(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", services.MaxTopLimit)
	if limit <= 0 {
		limit = services.MaxTopLimit
	}
	category := r.URL.Query().Get("type")

	entries, source := h.leaderboard.Top(r.Context(), category, limit)
	log.Debug().Str("type", category).Str("source", string(source)).Int("rows", len(entries)).Msg("top")

	items := make([]models.TopItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, models.TopItem{
			Rank:     e.Rank,
			UserID:   e.UserID,
			Name:     e.DisplayName,
			Username: e.Username,
			Avatar:   e.AvatarURL,
			Charms:   e.Score,
			Score:    e.Score,
			Count:    e.Score,
		})
	}
	writeJSON(w, http.StatusOK, models.NewItemsResponse(items))
}

// Rebuild recomputes a sorted set. ?dry=1 reports without writing.
func (h *LeaderboardHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	res, err := h.leaderboard.Rebuild(r.Context(), r.URL.Query().Get("type"), queryBool(r, "dry"))
	if err != nil {
		log.Warn().Err(err).Str("key", res.Key).Msg("leaderboard rebuild failed")
		status := http.StatusInternalServerError
		if errors.Is(err, services.ErrSourceUnavailable) {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, models.NewErrorResponse("Rebuild failed"))
		return
	}
	writeJSON(w, http.StatusOK, models.RebuildResponse{OK: true, Result: res})
}
