package game

import (
	"context"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"quizlive/internal/config"
	"quizlive/internal/model"
)

// Controller drives the per-question state machine for every room. Host
// commands, player submissions, timer expirations and disconnects all enter
// here; each acquires the target room's lock, mutates, snapshots the
// outgoing payloads, and broadcasts only after releasing the lock.
//
// No command path ever returns an error to the transport: per the engine's
// error taxonomy, unauthorized commands, invalid submissions, unknown rooms
// and stale timers are logged and dropped.
type Controller struct {
	cfg     *config.Config
	reg     *Registry
	bc      Broadcaster
	quizzes QuizSource        // optional
	mirror  LeaderboardMirror // optional
}

// NewController wires the state machine to its collaborators. quizzes and
// mirror may be nil.
func NewController(cfg *config.Config, reg *Registry, bc Broadcaster, quizzes QuizSource, mirror LeaderboardMirror) *Controller {
	return &Controller{cfg: cfg, reg: reg, bc: bc, quizzes: quizzes, mirror: mirror}
}

// Registry exposes the room table for transports and housekeeping.
func (c *Controller) Registry() *Registry { return c.reg }

// HostRoom attaches connID as the host of a room, creating the room if the
// code is unknown. A question snapshot is taken from the inline questions or
// the referenced quiz, but never mid-game.
func (c *Controller) HostRoom(ctx context.Context, connID string, cmd *model.HostRoomCmd) {
	questions := cmd.Questions
	if len(questions) == 0 && cmd.QuizID != "" && c.quizzes != nil {
		quiz, err := c.quizzes.GetByID(ctx, cmd.QuizID)
		switch {
		case err != nil:
			log.Printf("game: room %s: quiz %s lookup failed: %v", cmd.RoomCode, cmd.QuizID, err)
		case quiz == nil:
			log.Printf("game: room %s: quiz %s not found", cmd.RoomCode, cmd.QuizID)
		default:
			questions = quiz.Questions
		}
	}

	room := c.reg.GetOrCreate(cmd.RoomCode)
	room.mu.Lock()
	room.hostConnID = connID
	if len(questions) > 0 && (room.phase == PhaseWaiting || room.phase == PhaseFinished) {
		room.questions = questions
	}
	count := room.connectedCountLocked()
	snapshot := c.stateSnapshotLocked(room)
	room.mu.Unlock()

	log.Printf("game: room %s: host attached (conn %s, %d questions)", cmd.RoomCode, connID, len(questions))
	c.bc.ToConn(connID, model.EvtGameState, snapshot)
	c.bc.ToConn(connID, model.EvtPlayerCount, model.PlayerCountPayload{Count: count})
}

// JoinRoom registers a player, or re-binds an existing session when the
// command replays a previously issued playerId. A rejoin swaps only the
// connection handle; score and streak survive untouched.
func (c *Controller) JoinRoom(connID string, cmd *model.JoinRoomCmd) {
	room := c.reg.GetOrCreate(cmd.RoomCode)

	room.mu.Lock()
	var session *model.PlayerSession
	rejoin := false
	if cmd.PlayerID != "" {
		if existing, ok := room.players[cmd.PlayerID]; ok {
			existing.ConnectionID = connID
			existing.Connected = true
			session = existing
			rejoin = true
		}
	}
	if session == nil {
		session = &model.PlayerSession{
			PlayerID:     "p_" + uuid.New().String()[:8],
			ConnectionID: connID,
			DisplayName:  cmd.Name,
			Color:        cmd.Color,
			Avatar:       cmd.Avatar,
			Connected:    true,
			AnswerIndex:  -1,
		}
		room.players[session.PlayerID] = session
		room.joinOrder = append(room.joinOrder, session.PlayerID)
	}
	count := room.connectedCountLocked()
	playerID := session.PlayerID
	joined := *session
	inGame := room.phase != PhaseWaiting
	snapshot := c.stateSnapshotLocked(room)
	room.mu.Unlock()

	log.Printf("game: room %s: player %s joined (rejoin=%v)", cmd.RoomCode, playerID, rejoin)
	c.bc.ToConn(connID, model.EvtRoomJoined, model.RoomJoinedPayload{PlayerCount: count, PlayerID: playerID})
	c.bc.ToRoom(cmd.RoomCode, model.EvtPlayerJoined, joined)
	c.bc.ToRoom(cmd.RoomCode, model.EvtPlayerCount, model.PlayerCountPayload{Count: count})
	if inGame {
		// A reconnecting client gets a complete snapshot instead of a
		// replay of whatever it missed.
		c.bc.ToConn(connID, model.EvtGameState, snapshot)
	}
}

// StartGame resets every session and enters reading for question zero. Only
// the recorded host connection may start, and only from waiting or finished.
func (c *Controller) StartGame(connID, code string) {
	room := c.reg.Get(code)
	if room == nil {
		log.Printf("game: start-game for unknown room %s", code)
		return
	}

	room.mu.Lock()
	if room.hostConnID != connID {
		room.mu.Unlock()
		log.Printf("game: room %s: start-game from non-host conn %s ignored", code, connID)
		return
	}
	if room.phase != PhaseWaiting && room.phase != PhaseFinished {
		room.mu.Unlock()
		log.Printf("game: room %s: start-game in phase %s ignored", code, room.phase)
		return
	}
	if len(room.questions) == 0 {
		room.mu.Unlock()
		log.Printf("game: room %s: start-game with no questions ignored", code)
		return
	}
	for _, p := range room.players {
		p.ResetForNewGame()
	}
	payload := c.enterReadingLocked(room, 0)
	room.mu.Unlock()

	log.Printf("game: room %s: game started", code)
	c.bc.ToRoom(code, model.EvtGameState, payload)
}

// NextQuestion advances from result or leaderboard to the next reading
// phase, or to finished when the questions are exhausted.
func (c *Controller) NextQuestion(connID, code string) {
	room := c.reg.Get(code)
	if room == nil {
		log.Printf("game: next-question for unknown room %s", code)
		return
	}

	room.mu.Lock()
	if room.hostConnID != connID {
		room.mu.Unlock()
		log.Printf("game: room %s: next-question from non-host conn %s ignored", code, connID)
		return
	}
	if room.phase != PhaseResult && room.phase != PhaseLeaderboard {
		room.mu.Unlock()
		log.Printf("game: room %s: next-question in phase %s ignored", code, room.phase)
		return
	}
	var payload model.GameStatePayload
	if room.qIndex+1 >= len(room.questions) {
		payload = c.enterFinishedLocked(room)
	} else {
		payload = c.enterReadingLocked(room, room.qIndex+1)
	}
	room.mu.Unlock()

	c.bc.ToRoom(code, model.EvtGameState, payload)
}

// ShowLeaderboard moves from result to the standings-only leaderboard phase.
func (c *Controller) ShowLeaderboard(connID, code string) {
	room := c.reg.Get(code)
	if room == nil {
		log.Printf("game: show-leaderboard for unknown room %s", code)
		return
	}

	room.mu.Lock()
	if room.hostConnID != connID {
		room.mu.Unlock()
		log.Printf("game: room %s: show-leaderboard from non-host conn %s ignored", code, connID)
		return
	}
	if room.phase != PhaseResult {
		room.mu.Unlock()
		log.Printf("game: room %s: show-leaderboard in phase %s ignored", code, room.phase)
		return
	}
	room.phase = PhaseLeaderboard
	payload := model.GameStatePayload{
		State:       string(PhaseLeaderboard),
		QIndex:      room.qIndex,
		TotalQ:      len(room.questions),
		Leaderboard: room.leaderboardLocked(c.cfg.LeaderboardSize),
	}
	room.mu.Unlock()

	c.bc.ToRoom(code, model.EvtGameState, payload)
}

// EndGame terminates the game from any phase, cancelling the pending timer
// immediately.
func (c *Controller) EndGame(connID, code string) {
	room := c.reg.Get(code)
	if room == nil {
		log.Printf("game: end-game for unknown room %s", code)
		return
	}

	room.mu.Lock()
	if room.hostConnID != connID {
		room.mu.Unlock()
		log.Printf("game: room %s: end-game from non-host conn %s ignored", code, connID)
		return
	}
	payload := c.enterFinishedLocked(room)
	room.mu.Unlock()

	log.Printf("game: room %s: game ended by host", code)
	c.bc.ToRoom(code, model.EvtGameState, payload)
}

// SubmitAnswer records a player's answer for the current question. Accepted
// only during the answering phase, once per player per question, with an
// in-range index; anything else is dropped without feedback. Scoring happens
// later, in one pass at the result transition.
func (c *Controller) SubmitAnswer(connID string, cmd *model.SubmitAnswerCmd) {
	room := c.reg.Get(cmd.RoomCode)
	if room == nil {
		log.Printf("game: submit-answer for unknown room %s", cmd.RoomCode)
		return
	}

	room.mu.Lock()
	session := room.sessionByConnLocked(connID)
	if session == nil {
		room.mu.Unlock()
		log.Printf("game: room %s: submit-answer from unknown conn %s ignored", cmd.RoomCode, connID)
		return
	}
	if room.phase != PhaseAnswering {
		room.mu.Unlock()
		log.Printf("game: room %s: submit-answer outside answering phase ignored (player %s)", cmd.RoomCode, session.PlayerID)
		return
	}
	if session.HasAnsweredCurrent {
		room.mu.Unlock()
		log.Printf("game: room %s: duplicate answer from player %s ignored", cmd.RoomCode, session.PlayerID)
		return
	}
	idx := *cmd.AnswerIndex
	if idx < 0 || idx >= len(room.questions[room.qIndex].Answers) {
		room.mu.Unlock()
		log.Printf("game: room %s: out-of-range answer %d from player %s ignored", cmd.RoomCode, idx, session.PlayerID)
		return
	}
	elapsed := time.Since(room.phaseStartedAt).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	session.HasAnsweredCurrent = true
	session.AnswerIndex = idx
	session.AnswerElapsed = elapsed
	room.mu.Unlock()

	c.bc.ToConn(connID, model.EvtAnswerReceived, struct{}{})
}

// Disconnect detaches a transport connection from its room. Player sessions
// are marked disconnected, never deleted, so a rejoin is lossless. A host
// drop leaves the room hostless: timers keep firing and answering stays
// open, but control commands are refused until a host reattaches.
func (c *Controller) Disconnect(connID, code string) {
	if code == "" {
		return
	}
	room := c.reg.Get(code)
	if room == nil {
		return
	}

	room.mu.Lock()
	if room.hostConnID == connID {
		room.hostConnID = ""
		room.mu.Unlock()
		log.Printf("game: room %s: host detached", code)
		return
	}
	var left *model.PlayerSession
	for _, p := range room.players {
		if p.ConnectionID == connID {
			p.Connected = false
			left = p
			break
		}
	}
	count := room.connectedCountLocked()
	room.mu.Unlock()

	if left == nil {
		return
	}
	log.Printf("game: room %s: player %s disconnected", code, left.PlayerID)
	c.bc.ToRoom(code, model.EvtPlayerLeft, model.PlayerLeftPayload{ConnectionID: connID})
	c.bc.ToRoom(code, model.EvtPlayerCount, model.PlayerCountPayload{Count: count})
}

// --- phase transitions (all *Locked helpers require room.mu held) ---

func (c *Controller) enterReadingLocked(room *Room, q int) model.GameStatePayload {
	room.phase = PhaseReading
	room.qIndex = q
	room.phaseStartedAt = time.Now()
	for _, p := range room.players {
		p.ResetForQuestion()
	}
	c.scheduleLocked(room, c.cfg.ReadingDuration, c.onReadingExpired)

	question := room.questions[q]
	return model.GameStatePayload{
		State:        string(PhaseReading),
		QuestionText: question.Prompt,
		Answers:      question.AnswerTexts(),
		QIndex:       q,
		TotalQ:       len(room.questions),
		Duration:     int(c.cfg.ReadingDuration.Seconds()),
	}
}

func (c *Controller) enterAnsweringLocked(room *Room) model.GameStatePayload {
	room.phase = PhaseAnswering
	room.phaseStartedAt = time.Now()
	question := room.questions[room.qIndex]
	limit := c.answerLimit(&question)
	c.scheduleLocked(room, limit, c.onAnsweringExpired)

	return model.GameStatePayload{
		State:        string(PhaseAnswering),
		QuestionText: question.Prompt,
		Answers:      question.AnswerTexts(),
		QIndex:       room.qIndex,
		TotalQ:       len(room.questions),
		Duration:     int(limit.Seconds()),
	}
}

type feedbackMsg struct {
	connID  string
	payload model.RoundFeedbackPayload
}

// enterResultLocked scores every player for the question that just closed
// and builds the result broadcast plus the per-submitter feedback.
func (c *Controller) enterResultLocked(room *Room) (model.GameStatePayload, []feedbackMsg, []model.LeaderboardEntry) {
	room.cancelTimerLocked()
	room.phase = PhaseResult

	question := room.questions[room.qIndex]
	correctIdx := question.CorrectIndex()
	limitSec := c.answerLimit(&question).Seconds()

	var feedback []feedbackMsg
	for _, p := range room.players {
		if !p.HasAnsweredCurrent {
			// No answer counts as a miss for the streak, but no
			// feedback is sent.
			p.Streak = 0
			p.LastPoints = 0
			p.LastAnswerCorrect = false
			continue
		}
		correct := p.AnswerIndex == correctIdx
		points, streak := Score(correct, p.AnswerElapsed, limitSec, p.Streak)
		p.Streak = streak
		p.LastPoints = points
		p.LastAnswerCorrect = correct
		p.Score += points
		if p.Connected {
			feedback = append(feedback, feedbackMsg{
				connID: p.ConnectionID,
				payload: model.RoundFeedbackPayload{
					Correct: correct,
					Points:  points,
					Score:   p.Score,
					Streak:  streak,
				},
			})
		}
	}

	entries := room.leaderboardLocked(c.cfg.LeaderboardSize)
	payload := model.GameStatePayload{
		State:        string(PhaseResult),
		QuestionText: question.Prompt,
		Answers:      question.AnswerTexts(),
		QIndex:       room.qIndex,
		TotalQ:       len(room.questions),
		CorrectIndex: &correctIdx,
		Leaderboard:  entries,
	}
	return payload, feedback, entries
}

func (c *Controller) enterFinishedLocked(room *Room) model.GameStatePayload {
	room.cancelTimerLocked()
	room.phase = PhaseFinished
	return model.GameStatePayload{
		State:       string(PhaseFinished),
		QIndex:      room.qIndex,
		TotalQ:      len(room.questions),
		Leaderboard: room.leaderboardLocked(c.cfg.LeaderboardSize),
	}
}

// scheduleLocked replaces the room's pending phase timer. The callback
// carries the room code and a generation stamp instead of the *Room itself:
// it re-fetches the room at fire time, so a room evicted or restarted in the
// meantime can never be mutated by the stale closure.
func (c *Controller) scheduleLocked(room *Room, d time.Duration, fire func(code string, gen uint64)) {
	room.cancelTimerLocked()
	gen := room.timerGen
	code := room.code
	room.timer = time.AfterFunc(d, func() { fire(code, gen) })
}

func (c *Controller) onReadingExpired(code string, gen uint64) {
	room := c.reg.Get(code)
	if room == nil {
		log.Printf("game: reading timer fired for evicted room %s, discarded", code)
		return
	}
	room.mu.Lock()
	if room.timerGen != gen || room.phase != PhaseReading {
		room.mu.Unlock()
		log.Printf("game: room %s: stale reading timer discarded", code)
		return
	}
	payload := c.enterAnsweringLocked(room)
	room.mu.Unlock()

	c.bc.ToRoom(code, model.EvtGameState, payload)
}

func (c *Controller) onAnsweringExpired(code string, gen uint64) {
	room := c.reg.Get(code)
	if room == nil {
		log.Printf("game: answering timer fired for evicted room %s, discarded", code)
		return
	}
	room.mu.Lock()
	if room.timerGen != gen || room.phase != PhaseAnswering {
		room.mu.Unlock()
		log.Printf("game: room %s: stale answering timer discarded", code)
		return
	}
	payload, feedback, entries := c.enterResultLocked(room)
	room.mu.Unlock()

	for _, fb := range feedback {
		c.bc.ToConn(fb.connID, model.EvtRoundFeedback, fb.payload)
	}
	c.bc.ToRoom(code, model.EvtGameState, payload)
	c.pushMirror(code, entries)
}

// pushMirror copies the standings to the external leaderboard mirror without
// blocking the transition path.
func (c *Controller) pushMirror(code string, entries []model.LeaderboardEntry) {
	if c.mirror == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.mirror.Replace(ctx, code, entries); err != nil {
			log.Printf("game: room %s: leaderboard mirror update failed: %v", code, err)
		}
	}()
}

// stateSnapshotLocked builds a complete game-state view of the room as it
// stands, used for host attach and player rejoin instead of delta replay.
func (c *Controller) stateSnapshotLocked(room *Room) model.GameStatePayload {
	payload := model.GameStatePayload{
		State:  string(room.phase),
		QIndex: room.qIndex,
		TotalQ: len(room.questions),
	}
	if room.qIndex >= 0 && room.qIndex < len(room.questions) {
		question := room.questions[room.qIndex]
		switch room.phase {
		case PhaseReading:
			payload.QuestionText = question.Prompt
			payload.Answers = question.AnswerTexts()
			payload.Duration = remainingSeconds(room.phaseStartedAt, c.cfg.ReadingDuration)
		case PhaseAnswering:
			payload.QuestionText = question.Prompt
			payload.Answers = question.AnswerTexts()
			payload.Duration = remainingSeconds(room.phaseStartedAt, c.answerLimit(&question))
		case PhaseResult:
			correctIdx := question.CorrectIndex()
			payload.QuestionText = question.Prompt
			payload.Answers = question.AnswerTexts()
			payload.CorrectIndex = &correctIdx
			payload.Leaderboard = room.leaderboardLocked(c.cfg.LeaderboardSize)
		case PhaseLeaderboard, PhaseFinished:
			payload.Leaderboard = room.leaderboardLocked(c.cfg.LeaderboardSize)
		}
	}
	return payload
}

func (c *Controller) answerLimit(q *model.Question) time.Duration {
	if q.TimeLimitSec > 0 {
		return time.Duration(q.TimeLimitSec) * time.Second
	}
	return c.cfg.DefaultAnswerTime
}

func remainingSeconds(startedAt time.Time, total time.Duration) int {
	remaining := total - time.Since(startedAt)
	if remaining < 0 {
		return 0
	}
	return int(math.Ceil(remaining.Seconds()))
}
