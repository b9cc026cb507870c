package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"quizlive/internal/game"
	"quizlive/internal/model"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// host-room may carry a full inline question set.
	maxMessageSize = 64 * 1024

	commandTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for dev
	},
}

// Handler upgrades websocket connections and routes decoded commands into
// the game controller.
type Handler struct {
	hub  *Hub
	ctrl *game.Controller
}

// NewHandler creates a new websocket handler.
func NewHandler(hub *Hub, ctrl *game.Controller) *Handler {
	return &Handler{hub: hub, ctrl: ctrl}
}

// ServeWS handles GET /v1/ws.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade error: %v", err)
		return
	}

	conn := &Connection{
		ID:   "c_" + uuid.New().String()[:8],
		Send: make(chan []byte, 256),
	}
	h.hub.Add(conn)
	log.Printf("ws: conn %s connected", conn.ID)

	go h.writePump(wsConn, conn)
	go h.readPump(wsConn, conn)
}

func (h *Handler) readPump(wsConn *websocket.Conn, conn *Connection) {
	defer func() {
		roomCode := h.hub.Remove(conn.ID)
		h.ctrl.Disconnect(conn.ID, roomCode)
		wsConn.Close()
		log.Printf("ws: conn %s disconnected", conn.ID)
	}()

	wsConn.SetReadLimit(maxMessageSize)
	wsConn.SetReadDeadline(time.Now().Add(pongWait))
	wsConn.SetPongHandler(func(string) error {
		wsConn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := wsConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("ws: conn %s read error: %v", conn.ID, err)
			}
			break
		}
		h.route(conn, message)
	}
}

// route validates the envelope and payload at the boundary; malformed
// messages never reach the state machine.
func (h *Handler) route(conn *Connection, message []byte) {
	var env model.Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		log.Printf("ws: conn %s sent malformed envelope: %v", conn.ID, err)
		return
	}

	switch env.Event {
	case model.CmdHostRoom:
		cmd, err := model.DecodeHostRoom(env.Data)
		if err != nil {
			log.Printf("ws: conn %s: bad %s: %v", conn.ID, env.Event, err)
			return
		}
		h.hub.Bind(conn.ID, cmd.RoomCode, true)
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		h.ctrl.HostRoom(ctx, conn.ID, cmd)

	case model.CmdJoinRoom:
		cmd, err := model.DecodeJoinRoom(env.Data)
		if err != nil {
			log.Printf("ws: conn %s: bad %s: %v", conn.ID, env.Event, err)
			return
		}
		h.hub.Bind(conn.ID, cmd.RoomCode, false)
		h.ctrl.JoinRoom(conn.ID, cmd)

	case model.CmdStartGame, model.CmdNextQuestion, model.CmdShowLeaderboard, model.CmdEndGame:
		cmd, err := model.DecodeRoomCmd(env.Data)
		if err != nil {
			log.Printf("ws: conn %s: bad %s: %v", conn.ID, env.Event, err)
			return
		}
		switch env.Event {
		case model.CmdStartGame:
			h.ctrl.StartGame(conn.ID, cmd.RoomCode)
		case model.CmdNextQuestion:
			h.ctrl.NextQuestion(conn.ID, cmd.RoomCode)
		case model.CmdShowLeaderboard:
			h.ctrl.ShowLeaderboard(conn.ID, cmd.RoomCode)
		case model.CmdEndGame:
			h.ctrl.EndGame(conn.ID, cmd.RoomCode)
		}

	case model.CmdSubmitAnswer:
		cmd, err := model.DecodeSubmitAnswer(env.Data)
		if err != nil {
			log.Printf("ws: conn %s: bad %s: %v", conn.ID, env.Event, err)
			return
		}
		h.ctrl.SubmitAnswer(conn.ID, cmd)

	default:
		log.Printf("ws: conn %s sent unknown event %q", conn.ID, env.Event)
	}
}

func (h *Handler) writePump(wsConn *websocket.Conn, conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		wsConn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				wsConn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := wsConn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
