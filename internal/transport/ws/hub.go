package ws

import (
	"log"
	"sync"

	"quizlive/internal/model"
)

// Connection is one websocket client. Its ID is the transport handle the
// engine knows as connectionId; it is never reused across reconnects.
type Connection struct {
	ID       string
	RoomCode string // set when the client hosts or joins a room
	IsHost   bool
	Send     chan []byte
}

// Hub tracks live connections and their room membership and fans events
// out to them. It implements game.Broadcaster. Sends never block: each
// connection has a buffered channel and messages to a full buffer are
// dropped, since a client that missed events gets a fresh snapshot on
// rejoin anyway.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*Connection            // connID -> conn
	rooms map[string]map[string]*Connection // roomCode -> connID -> conn
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		conns: make(map[string]*Connection),
		rooms: make(map[string]map[string]*Connection),
	}
}

// Add registers a freshly upgraded connection.
func (h *Hub) Add(conn *Connection) {
	h.mu.Lock()
	h.conns[conn.ID] = conn
	h.mu.Unlock()
}

// Bind attaches a connection to a room, moving it if it was bound elsewhere.
func (h *Hub) Bind(connID, roomCode string, isHost bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn, ok := h.conns[connID]
	if !ok {
		return
	}
	if conn.RoomCode != "" && conn.RoomCode != roomCode {
		if members, ok := h.rooms[conn.RoomCode]; ok {
			delete(members, connID)
		}
	}
	conn.RoomCode = roomCode
	conn.IsHost = isHost
	if h.rooms[roomCode] == nil {
		h.rooms[roomCode] = make(map[string]*Connection)
	}
	h.rooms[roomCode][connID] = conn
}

// Remove drops a connection and returns the room it was bound to, so the
// caller can notify the engine.
func (h *Hub) Remove(connID string) (roomCode string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn, ok := h.conns[connID]
	if !ok {
		return ""
	}
	delete(h.conns, connID)
	if conn.RoomCode != "" {
		if members, ok := h.rooms[conn.RoomCode]; ok {
			delete(members, connID)
			if len(members) == 0 {
				delete(h.rooms, conn.RoomCode)
			}
		}
	}
	close(conn.Send)
	return conn.RoomCode
}

// ToRoom sends an event to every connection in a room.
func (h *Hub) ToRoom(roomCode string, event string, payload interface{}) {
	data, err := model.NewEnvelope(event, payload)
	if err != nil {
		log.Printf("ws: marshal %s for room %s failed: %v", event, roomCode, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, conn := range h.rooms[roomCode] {
		select {
		case conn.Send <- data:
		default:
			log.Printf("ws: dropped %s to conn %s (buffer full)", event, conn.ID)
		}
	}
}

// ToConn sends an event to a single connection.
func (h *Hub) ToConn(connID string, event string, payload interface{}) {
	data, err := model.NewEnvelope(event, payload)
	if err != nil {
		log.Printf("ws: marshal %s for conn %s failed: %v", event, connID, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	conn, ok := h.conns[connID]
	if !ok {
		return
	}
	select {
	case conn.Send <- data:
	default:
		log.Printf("ws: dropped %s to conn %s (buffer full)", event, connID)
	}
}
