package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"quizlive/internal/cache"
)

// RoomHandler serves room standings to dashboards from the Redis mirror.
type RoomHandler struct {
	leaderboard cache.LeaderboardCache
	limit       int
}

// NewRoomHandler creates a new room handler.
func NewRoomHandler(leaderboard cache.LeaderboardCache, limit int) *RoomHandler {
	return &RoomHandler{leaderboard: leaderboard, limit: limit}
}

// Leaderboard handles GET /v1/rooms/{code}/leaderboard.
func (h *RoomHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	entries, err := h.leaderboard.GetTop(r.Context(), code, h.limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"roomCode":    code,
		"leaderboard": entries,
	})
}
