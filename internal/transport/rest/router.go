package rest

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"quizlive/internal/cache"
	"quizlive/internal/repository"
	"quizlive/internal/transport/rest/handler"
	"quizlive/internal/transport/ws"
)

// Container holds all dependencies for the router.
type Container struct {
	QuizRepo        repository.QuizRepo
	Leaderboard     cache.LeaderboardCache
	LeaderboardSize int
	WSHandler       *ws.Handler
}

// NewRouter creates the API router with all endpoints.
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	quizHandler := handler.NewQuizHandler(c.QuizRepo)
	roomHandler := handler.NewRoomHandler(c.Leaderboard, c.LeaderboardSize)

	v1 := r.PathPrefix("/v1").Subrouter()

	// Quiz definitions: the authoring surface the engine reads from.
	v1.HandleFunc("/quizzes", quizHandler.Create).Methods("POST")
	v1.HandleFunc("/quizzes/{quizId}", quizHandler.Get).Methods("GET")

	// Standings snapshot for dashboards, served from the Redis mirror.
	v1.HandleFunc("/rooms/{code}/leaderboard", roomHandler.Leaderboard).Methods("GET")

	// Game traffic.
	v1.HandleFunc("/ws", c.WSHandler.ServeWS).Methods("GET")

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	return cors.AllowAll().Handler(r)
}
