package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Incoming event names (client -> server).
const (
	CmdHostRoom        = "host-room"
	CmdStartGame       = "start-game"
	CmdNextQuestion    = "next-question"
	CmdShowLeaderboard = "show-leaderboard"
	CmdEndGame         = "end-game"
	CmdJoinRoom        = "join-room"
	CmdSubmitAnswer    = "submit-answer"
)

// Outgoing event names (server -> clients).
const (
	EvtRoomJoined     = "room-joined"
	EvtPlayerJoined   = "player-joined"
	EvtPlayerLeft     = "player-left"
	EvtPlayerCount    = "player-count-update"
	EvtGameState      = "game-state"
	EvtAnswerReceived = "answer-received"
	EvtRoundFeedback  = "round-feedback"
)

var (
	ErrUnknownEvent   = errors.New("unknown event")
	ErrMissingField   = errors.New("missing required field")
	ErrMalformedEvent = errors.New("malformed event payload")
)

// Envelope is the wire format for every message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals a payload into an outgoing envelope.
func NewEnvelope(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// HostRoomCmd attaches (or creates) a room as its host. Questions may be
// given inline or referenced by QuizID; both empty means attach-only.
type HostRoomCmd struct {
	RoomCode  string     `json:"roomCode"`
	QuizID    string     `json:"quizId,omitempty"`
	Questions []Question `json:"questions,omitempty"`
}

// RoomCmd covers the host control commands that carry only a room code.
type RoomCmd struct {
	RoomCode string `json:"roomCode"`
}

// JoinRoomCmd registers a player in a room. PlayerID is set on rejoin only.
type JoinRoomCmd struct {
	RoomCode string `json:"roomId"`
	Name     string `json:"name"`
	Color    string `json:"color,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
	PlayerID string `json:"playerId,omitempty"`
}

// SubmitAnswerCmd submits one answer for the current question.
type SubmitAnswerCmd struct {
	RoomCode    string `json:"roomId"`
	AnswerIndex *int   `json:"answerIndex"`
}

// DecodeHostRoom accepts both the canonical object payload and the legacy
// bare-string form (just a room code) and normalizes to HostRoomCmd.
func DecodeHostRoom(data json.RawMessage) (*HostRoomCmd, error) {
	var code string
	if err := json.Unmarshal(data, &code); err == nil {
		if code == "" {
			return nil, fmt.Errorf("%w: roomCode", ErrMissingField)
		}
		return &HostRoomCmd{RoomCode: code}, nil
	}

	var cmd HostRoomCmd
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if cmd.RoomCode == "" {
		return nil, fmt.Errorf("%w: roomCode", ErrMissingField)
	}
	return &cmd, nil
}

// DecodeRoomCmd decodes start-game, next-question, show-leaderboard and
// end-game payloads.
func DecodeRoomCmd(data json.RawMessage) (*RoomCmd, error) {
	var cmd RoomCmd
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if cmd.RoomCode == "" {
		return nil, fmt.Errorf("%w: roomCode", ErrMissingField)
	}
	return &cmd, nil
}

func DecodeJoinRoom(data json.RawMessage) (*JoinRoomCmd, error) {
	var cmd JoinRoomCmd
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if cmd.RoomCode == "" {
		return nil, fmt.Errorf("%w: roomId", ErrMissingField)
	}
	if cmd.Name == "" {
		return nil, fmt.Errorf("%w: name", ErrMissingField)
	}
	return &cmd, nil
}

func DecodeSubmitAnswer(data json.RawMessage) (*SubmitAnswerCmd, error) {
	var cmd SubmitAnswerCmd
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if cmd.RoomCode == "" {
		return nil, fmt.Errorf("%w: roomId", ErrMissingField)
	}
	if cmd.AnswerIndex == nil {
		return nil, fmt.Errorf("%w: answerIndex", ErrMissingField)
	}
	return &cmd, nil
}

// LeaderboardEntry is one row of a room leaderboard, computed in memory and
// mirrored to Redis after every scoring pass.
type LeaderboardEntry struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
	Rank     int    `json:"rank"`
}

// RoomJoinedPayload acknowledges a join to the joining player. PlayerID must
// be stored by the client and replayed on rejoin.
type RoomJoinedPayload struct {
	PlayerCount int    `json:"playerCount"`
	PlayerID    string `json:"playerId"`
}

type PlayerLeftPayload struct {
	ConnectionID string `json:"connectionId"`
}

type PlayerCountPayload struct {
	Count int `json:"count"`
}

// GameStatePayload is the phase broadcast. Fields beyond State are
// phase-specific: reading/answering carry the question, result adds the
// correct index and leaderboard, leaderboard/finished carry standings only.
type GameStatePayload struct {
	State        string             `json:"state"`
	QuestionText string             `json:"questionText,omitempty"`
	Answers      []string           `json:"answers,omitempty"`
	QIndex       int                `json:"qIndex"`
	TotalQ       int                `json:"totalQ"`
	Duration     int                `json:"duration,omitempty"` // seconds
	CorrectIndex *int               `json:"correctIndex,omitempty"`
	Leaderboard  []LeaderboardEntry `json:"leaderboard,omitempty"`
}

// RoundFeedbackPayload is unicast to each submitter at the result transition.
type RoundFeedbackPayload struct {
	Correct bool `json:"correct"`
	Points  int  `json:"points"`
	Score   int  `json:"score"`
	Streak  int  `json:"streak"`
}
