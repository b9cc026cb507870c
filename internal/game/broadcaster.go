package game

import (
	"context"

	"quizlive/internal/model"
)

// Broadcaster fans events out to connected clients. Implemented by the
// websocket hub; declared here so the controller does not import the
// transport layer. Implementations must never block the caller.
type Broadcaster interface {
	ToRoom(roomCode string, event string, payload interface{})
	ToConn(connID string, event string, payload interface{})
}

// QuizSource resolves quiz definitions referenced by host-room commands.
type QuizSource interface {
	GetByID(ctx context.Context, id string) (*model.Quiz, error)
}

// LeaderboardMirror receives a copy of a room's standings after every
// scoring pass. The in-memory room stays the source of truth; mirror
// failures are logged and otherwise ignored.
type LeaderboardMirror interface {
	Replace(ctx context.Context, roomCode string, entries []model.LeaderboardEntry) error
	Clear(ctx context.Context, roomCode string) error
}
