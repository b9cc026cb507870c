package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizlive/internal/config"
	"quizlive/internal/model"
)

type sentMsg struct {
	target  string
	event   string
	payload interface{}
}

type fakeBroadcaster struct {
	mu       sync.Mutex
	roomMsgs []sentMsg
	connMsgs []sentMsg
}

func (f *fakeBroadcaster) ToRoom(roomCode string, event string, payload interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roomMsgs = append(f.roomMsgs, sentMsg{target: roomCode, event: event, payload: payload})
}

func (f *fakeBroadcaster) ToConn(connID string, event string, payload interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connMsgs = append(f.connMsgs, sentMsg{target: connID, event: event, payload: payload})
}

func (f *fakeBroadcaster) lastRoom(event string) (sentMsg, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.roomMsgs) - 1; i >= 0; i-- {
		if f.roomMsgs[i].event == event {
			return f.roomMsgs[i], true
		}
	}
	return sentMsg{}, false
}

func (f *fakeBroadcaster) lastConn(connID, event string) (sentMsg, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.connMsgs) - 1; i >= 0; i-- {
		if f.connMsgs[i].target == connID && f.connMsgs[i].event == event {
			return f.connMsgs[i], true
		}
	}
	return sentMsg{}, false
}

func (f *fakeBroadcaster) countConn(connID, event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.connMsgs {
		if m.target == connID && m.event == event {
			n++
		}
	}
	return n
}

// Timers are parked an hour out so tests drive transitions deterministically
// through the expiry callbacks.
func newTestController() (*Controller, *fakeBroadcaster) {
	cfg := &config.Config{
		ReadingDuration:   time.Hour,
		DefaultAnswerTime: time.Hour,
		SweepInterval:     time.Hour,
		RoomRetention:     time.Hour,
		LeaderboardSize:   10,
	}
	bc := &fakeBroadcaster{}
	ctrl := NewController(cfg, NewRegistry(cfg.RoomRetention), bc, nil, nil)
	return ctrl, bc
}

func testQuestions() []model.Question {
	return []model.Question{
		{
			ID:     "q1",
			Prompt: "What is 2+2?",
			Answers: []model.Answer{
				{Text: "3"},
				{Text: "4", IsCorrect: true},
				{Text: "5"},
			},
		},
		{
			ID:     "q2",
			Prompt: "Capital of France?",
			Answers: []model.Answer{
				{Text: "Paris", IsCorrect: true},
				{Text: "Rome"},
			},
		},
	}
}

func hostRoom(ctrl *Controller, code, connID string) {
	ctrl.HostRoom(context.Background(), connID, &model.HostRoomCmd{
		RoomCode:  code,
		Questions: testQuestions(),
	})
}

func joinPlayer(t *testing.T, ctrl *Controller, bc *fakeBroadcaster, code, connID, name string) string {
	t.Helper()
	ctrl.JoinRoom(connID, &model.JoinRoomCmd{RoomCode: code, Name: name})
	msg, ok := bc.lastConn(connID, model.EvtRoomJoined)
	require.True(t, ok, "expected room-joined for %s", connID)
	return msg.payload.(model.RoomJoinedPayload).PlayerID
}

func submit(ctrl *Controller, code, connID string, index int) {
	ctrl.SubmitAnswer(connID, &model.SubmitAnswerCmd{RoomCode: code, AnswerIndex: &index})
}

func fireReadingTimer(ctrl *Controller, code string) {
	room := ctrl.reg.Get(code)
	room.mu.Lock()
	gen := room.timerGen
	room.mu.Unlock()
	ctrl.onReadingExpired(code, gen)
}

func fireAnsweringTimer(ctrl *Controller, code string) {
	room := ctrl.reg.Get(code)
	room.mu.Lock()
	gen := room.timerGen
	room.mu.Unlock()
	ctrl.onAnsweringExpired(code, gen)
}

func roomPhase(ctrl *Controller, code string) Phase {
	room := ctrl.reg.Get(code)
	room.mu.Lock()
	defer room.mu.Unlock()
	return room.phase
}

func TestHostRoomCreatesRoomAndSendsSnapshot(t *testing.T) {
	ctrl, bc := newTestController()

	hostRoom(ctrl, "ROOM1", "host1")

	require.NotNil(t, ctrl.reg.Get("ROOM1"))
	assert.Equal(t, PhaseWaiting, roomPhase(ctrl, "ROOM1"))

	msg, ok := bc.lastConn("host1", model.EvtGameState)
	require.True(t, ok)
	assert.Equal(t, "waiting", msg.payload.(model.GameStatePayload).State)
}

func TestStartGameFromNonHostIgnored(t *testing.T) {
	ctrl, _ := newTestController()
	hostRoom(ctrl, "ROOM1", "host1")

	ctrl.StartGame("intruder", "ROOM1")

	assert.Equal(t, PhaseWaiting, roomPhase(ctrl, "ROOM1"))
}

func TestStartGameEntersReadingAndResetsPlayers(t *testing.T) {
	ctrl, bc := newTestController()
	hostRoom(ctrl, "ROOM1", "host1")
	playerID := joinPlayer(t, ctrl, bc, "ROOM1", "conn1", "ada")

	// Dirty the session as if a previous game ran.
	room := ctrl.reg.Get("ROOM1")
	room.mu.Lock()
	room.players[playerID].Score = 900
	room.players[playerID].Streak = 3
	room.mu.Unlock()

	ctrl.StartGame("host1", "ROOM1")

	assert.Equal(t, PhaseReading, roomPhase(ctrl, "ROOM1"))
	room.mu.Lock()
	assert.Equal(t, 0, room.players[playerID].Score)
	assert.Equal(t, 0, room.players[playerID].Streak)
	assert.Equal(t, 0, room.qIndex)
	room.mu.Unlock()

	msg, ok := bc.lastRoom(model.EvtGameState)
	require.True(t, ok)
	state := msg.payload.(model.GameStatePayload)
	assert.Equal(t, "reading", state.State)
	assert.Equal(t, "What is 2+2?", state.QuestionText)
	assert.Equal(t, []string{"3", "4", "5"}, state.Answers)
	assert.Equal(t, 2, state.TotalQ)
}

func TestStartGameWithoutQuestionsIgnored(t *testing.T) {
	ctrl, _ := newTestController()
	ctrl.HostRoom(context.Background(), "host1", &model.HostRoomCmd{RoomCode: "EMPTY"})

	ctrl.StartGame("host1", "EMPTY")

	assert.Equal(t, PhaseWaiting, roomPhase(ctrl, "EMPTY"))
}

func TestReadingTimerAdvancesToAnswering(t *testing.T) {
	ctrl, bc := newTestController()
	hostRoom(ctrl, "ROOM1", "host1")
	ctrl.StartGame("host1", "ROOM1")

	fireReadingTimer(ctrl, "ROOM1")

	assert.Equal(t, PhaseAnswering, roomPhase(ctrl, "ROOM1"))
	msg, ok := bc.lastRoom(model.EvtGameState)
	require.True(t, ok)
	assert.Equal(t, "answering", msg.payload.(model.GameStatePayload).State)
}

func TestStaleTimerDiscarded(t *testing.T) {
	ctrl, _ := newTestController()
	hostRoom(ctrl, "ROOM1", "host1")
	ctrl.StartGame("host1", "ROOM1")

	room := ctrl.reg.Get("ROOM1")
	room.mu.Lock()
	staleGen := room.timerGen
	room.mu.Unlock()

	fireReadingTimer(ctrl, "ROOM1")
	require.Equal(t, PhaseAnswering, roomPhase(ctrl, "ROOM1"))

	// The reading timer's generation is obsolete now; a late fire must not
	// move the phase again.
	ctrl.onReadingExpired("ROOM1", staleGen)
	assert.Equal(t, PhaseAnswering, roomPhase(ctrl, "ROOM1"))
}

func TestTimerForEvictedRoomDiscarded(t *testing.T) {
	ctrl, _ := newTestController()
	hostRoom(ctrl, "ROOM1", "host1")
	ctrl.StartGame("host1", "ROOM1")

	ctrl.reg.Remove("ROOM1")

	assert.NotPanics(t, func() { ctrl.onReadingExpired("ROOM1", 1) })
}

func TestSchedulingReplacesPendingTimer(t *testing.T) {
	ctrl, _ := newTestController()
	hostRoom(ctrl, "ROOM1", "host1")
	ctrl.StartGame("host1", "ROOM1")

	room := ctrl.reg.Get("ROOM1")
	room.mu.Lock()
	readingGen := room.timerGen
	room.mu.Unlock()

	fireReadingTimer(ctrl, "ROOM1")

	room.mu.Lock()
	answeringGen := room.timerGen
	pending := room.timer != nil
	room.mu.Unlock()

	assert.Greater(t, answeringGen, readingGen)
	assert.True(t, pending, "answering phase must have exactly one pending timer")
}

func TestAnswerFlowScoringAndLeaderboard(t *testing.T) {
	ctrl, bc := newTestController()
	hostRoom(ctrl, "ROOM1", "host1")
	adaID := joinPlayer(t, ctrl, bc, "ROOM1", "conn1", "ada")
	joinPlayer(t, ctrl, bc, "ROOM1", "conn2", "bob")

	ctrl.StartGame("host1", "ROOM1")
	fireReadingTimer(ctrl, "ROOM1")

	submit(ctrl, "ROOM1", "conn1", 1) // correct
	submit(ctrl, "ROOM1", "conn2", 0) // wrong

	assert.Equal(t, 1, bc.countConn("conn1", model.EvtAnswerReceived))
	assert.Equal(t, 1, bc.countConn("conn2", model.EvtAnswerReceived))

	fireAnsweringTimer(ctrl, "ROOM1")
	assert.Equal(t, PhaseResult, roomPhase(ctrl, "ROOM1"))

	fb, ok := bc.lastConn("conn1", model.EvtRoundFeedback)
	require.True(t, ok)
	adaFb := fb.payload.(model.RoundFeedbackPayload)
	assert.True(t, adaFb.Correct)
	assert.Equal(t, 1100, adaFb.Points) // near-instant answer, first streak
	assert.Equal(t, 1100, adaFb.Score)
	assert.Equal(t, 1, adaFb.Streak)

	fb, ok = bc.lastConn("conn2", model.EvtRoundFeedback)
	require.True(t, ok)
	bobFb := fb.payload.(model.RoundFeedbackPayload)
	assert.False(t, bobFb.Correct)
	assert.Equal(t, 0, bobFb.Points)
	assert.Equal(t, 0, bobFb.Streak)

	msg, ok := bc.lastRoom(model.EvtGameState)
	require.True(t, ok)
	state := msg.payload.(model.GameStatePayload)
	assert.Equal(t, "result", state.State)
	require.NotNil(t, state.CorrectIndex)
	assert.Equal(t, 1, *state.CorrectIndex)
	require.Len(t, state.Leaderboard, 2)
	assert.Equal(t, adaID, state.Leaderboard[0].PlayerID)
	assert.Equal(t, 1100, state.Leaderboard[0].Score)
	assert.Equal(t, 1, state.Leaderboard[0].Rank)
}

func TestDuplicateSubmissionRejected(t *testing.T) {
	ctrl, bc := newTestController()
	hostRoom(ctrl, "ROOM1", "host1")
	joinPlayer(t, ctrl, bc, "ROOM1", "conn1", "ada")

	ctrl.StartGame("host1", "ROOM1")
	fireReadingTimer(ctrl, "ROOM1")

	submit(ctrl, "ROOM1", "conn1", 1)
	submit(ctrl, "ROOM1", "conn1", 0) // must not overwrite the first answer

	assert.Equal(t, 1, bc.countConn("conn1", model.EvtAnswerReceived))

	fireAnsweringTimer(ctrl, "ROOM1")
	fb, ok := bc.lastConn("conn1", model.EvtRoundFeedback)
	require.True(t, ok)
	assert.True(t, fb.payload.(model.RoundFeedbackPayload).Correct)
	assert.Equal(t, 1100, fb.payload.(model.RoundFeedbackPayload).Score)
}

func TestSubmissionOutsideAnsweringIgnored(t *testing.T) {
	ctrl, bc := newTestController()
	hostRoom(ctrl, "ROOM1", "host1")
	joinPlayer(t, ctrl, bc, "ROOM1", "conn1", "ada")
	ctrl.StartGame("host1", "ROOM1")

	submit(ctrl, "ROOM1", "conn1", 1) // still reading

	assert.Equal(t, 0, bc.countConn("conn1", model.EvtAnswerReceived))
}

func TestOutOfRangeIndexIgnoredWithoutStreakPenalty(t *testing.T) {
	ctrl, bc := newTestController()
	hostRoom(ctrl, "ROOM1", "host1")
	joinPlayer(t, ctrl, bc, "ROOM1", "conn1", "ada")
	ctrl.StartGame("host1", "ROOM1")
	fireReadingTimer(ctrl, "ROOM1")

	submit(ctrl, "ROOM1", "conn1", 99)
	assert.Equal(t, 0, bc.countConn("conn1", model.EvtAnswerReceived))

	// The rejected submission left the player free to answer properly.
	submit(ctrl, "ROOM1", "conn1", 1)
	assert.Equal(t, 1, bc.countConn("conn1", model.EvtAnswerReceived))
}

func TestWrongAnswerResetsStreakAcrossQuestions(t *testing.T) {
	ctrl, bc := newTestController()
	hostRoom(ctrl, "ROOM1", "host1")
	joinPlayer(t, ctrl, bc, "ROOM1", "conn1", "ada")

	ctrl.StartGame("host1", "ROOM1")
	fireReadingTimer(ctrl, "ROOM1")
	submit(ctrl, "ROOM1", "conn1", 1) // correct
	fireAnsweringTimer(ctrl, "ROOM1")

	ctrl.NextQuestion("host1", "ROOM1")
	assert.Equal(t, PhaseReading, roomPhase(ctrl, "ROOM1"))
	fireReadingTimer(ctrl, "ROOM1")
	submit(ctrl, "ROOM1", "conn1", 1) // wrong, Paris is index 0
	fireAnsweringTimer(ctrl, "ROOM1")

	fb, ok := bc.lastConn("conn1", model.EvtRoundFeedback)
	require.True(t, ok)
	feedback := fb.payload.(model.RoundFeedbackPayload)
	assert.False(t, feedback.Correct)
	assert.Equal(t, 0, feedback.Points)
	assert.Equal(t, 0, feedback.Streak)
	assert.Equal(t, 1100, feedback.Score) // unchanged from question one
}

func TestNextQuestionExhaustionFinishes(t *testing.T) {
	ctrl, bc := newTestController()
	hostRoom(ctrl, "ROOM1", "host1")
	ctrl.StartGame("host1", "ROOM1")

	for i := 0; i < 2; i++ {
		fireReadingTimer(ctrl, "ROOM1")
		fireAnsweringTimer(ctrl, "ROOM1")
		ctrl.NextQuestion("host1", "ROOM1")
	}

	assert.Equal(t, PhaseFinished, roomPhase(ctrl, "ROOM1"))
	msg, ok := bc.lastRoom(model.EvtGameState)
	require.True(t, ok)
	assert.Equal(t, "finished", msg.payload.(model.GameStatePayload).State)
}

func TestShowLeaderboardOnlyFromResult(t *testing.T) {
	ctrl, bc := newTestController()
	hostRoom(ctrl, "ROOM1", "host1")
	ctrl.StartGame("host1", "ROOM1")

	ctrl.ShowLeaderboard("host1", "ROOM1") // reading, ignored
	assert.Equal(t, PhaseReading, roomPhase(ctrl, "ROOM1"))

	fireReadingTimer(ctrl, "ROOM1")
	fireAnsweringTimer(ctrl, "ROOM1")
	ctrl.ShowLeaderboard("host1", "ROOM1")

	assert.Equal(t, PhaseLeaderboard, roomPhase(ctrl, "ROOM1"))
	msg, ok := bc.lastRoom(model.EvtGameState)
	require.True(t, ok)
	assert.Equal(t, "leaderboard", msg.payload.(model.GameStatePayload).State)

	// leaderboard -> next question continues the sequence
	ctrl.NextQuestion("host1", "ROOM1")
	assert.Equal(t, PhaseReading, roomPhase(ctrl, "ROOM1"))
}

func TestEndGameCancelsPendingTimer(t *testing.T) {
	ctrl, _ := newTestController()
	hostRoom(ctrl, "ROOM1", "host1")
	ctrl.StartGame("host1", "ROOM1")

	room := ctrl.reg.Get("ROOM1")
	room.mu.Lock()
	readingGen := room.timerGen
	room.mu.Unlock()

	ctrl.EndGame("host1", "ROOM1")
	assert.Equal(t, PhaseFinished, roomPhase(ctrl, "ROOM1"))

	room.mu.Lock()
	assert.Nil(t, room.timer)
	room.mu.Unlock()

	// The cancelled reading timer must be a no-op even if it already fired.
	ctrl.onReadingExpired("ROOM1", readingGen)
	assert.Equal(t, PhaseFinished, roomPhase(ctrl, "ROOM1"))
}

func TestRestartAfterFinish(t *testing.T) {
	ctrl, _ := newTestController()
	hostRoom(ctrl, "ROOM1", "host1")
	ctrl.StartGame("host1", "ROOM1")
	ctrl.EndGame("host1", "ROOM1")

	ctrl.StartGame("host1", "ROOM1")

	assert.Equal(t, PhaseReading, roomPhase(ctrl, "ROOM1"))
}

func TestRejoinRestoresScoreAndStreak(t *testing.T) {
	ctrl, bc := newTestController()
	hostRoom(ctrl, "ROOM1", "host1")
	playerID := joinPlayer(t, ctrl, bc, "ROOM1", "conn1", "ada")

	ctrl.StartGame("host1", "ROOM1")
	fireReadingTimer(ctrl, "ROOM1")
	submit(ctrl, "ROOM1", "conn1", 1)
	fireAnsweringTimer(ctrl, "ROOM1")

	ctrl.Disconnect("conn1", "ROOM1")
	room := ctrl.reg.Get("ROOM1")
	room.mu.Lock()
	assert.False(t, room.players[playerID].Connected)
	room.mu.Unlock()

	ctrl.JoinRoom("conn9", &model.JoinRoomCmd{RoomCode: "ROOM1", Name: "ada", PlayerID: playerID})

	msg, ok := bc.lastConn("conn9", model.EvtRoomJoined)
	require.True(t, ok)
	assert.Equal(t, playerID, msg.payload.(model.RoomJoinedPayload).PlayerID)

	room.mu.Lock()
	session := room.players[playerID]
	assert.True(t, session.Connected)
	assert.Equal(t, "conn9", session.ConnectionID)
	assert.Equal(t, 1100, session.Score)
	assert.Equal(t, 1, session.Streak)
	assert.Len(t, room.players, 1, "rejoin must not create a second session")
	room.mu.Unlock()

	// Mid-game rejoin gets a complete snapshot, not a delta replay.
	snap, ok := bc.lastConn("conn9", model.EvtGameState)
	require.True(t, ok)
	assert.Equal(t, "result", snap.payload.(model.GameStatePayload).State)
}

func TestHostlessRoomKeepsAdvancingAndAnswering(t *testing.T) {
	ctrl, bc := newTestController()
	hostRoom(ctrl, "ROOM1", "host1")
	joinPlayer(t, ctrl, bc, "ROOM1", "conn1", "ada")
	ctrl.StartGame("host1", "ROOM1")

	ctrl.Disconnect("host1", "ROOM1")

	// Timers still advance phases and answers are still accepted.
	fireReadingTimer(ctrl, "ROOM1")
	assert.Equal(t, PhaseAnswering, roomPhase(ctrl, "ROOM1"))
	submit(ctrl, "ROOM1", "conn1", 1)
	assert.Equal(t, 1, bc.countConn("conn1", model.EvtAnswerReceived))

	// But control is gone until a host reattaches.
	fireAnsweringTimer(ctrl, "ROOM1")
	ctrl.NextQuestion("host1", "ROOM1")
	assert.Equal(t, PhaseResult, roomPhase(ctrl, "ROOM1"))

	hostRoom(ctrl, "ROOM1", "host2")
	ctrl.NextQuestion("host2", "ROOM1")
	assert.Equal(t, PhaseReading, roomPhase(ctrl, "ROOM1"))
}

func TestCommandsForUnknownRoomAreNoops(t *testing.T) {
	ctrl, _ := newTestController()

	assert.NotPanics(t, func() {
		ctrl.StartGame("host1", "NOPE")
		ctrl.NextQuestion("host1", "NOPE")
		ctrl.ShowLeaderboard("host1", "NOPE")
		ctrl.EndGame("host1", "NOPE")
		submit(ctrl, "NOPE", "conn1", 0)
		ctrl.Disconnect("conn1", "NOPE")
	})
}

func TestDisconnectBroadcastsPlayerLeft(t *testing.T) {
	ctrl, bc := newTestController()
	hostRoom(ctrl, "ROOM1", "host1")
	joinPlayer(t, ctrl, bc, "ROOM1", "conn1", "ada")
	joinPlayer(t, ctrl, bc, "ROOM1", "conn2", "bob")

	ctrl.Disconnect("conn1", "ROOM1")

	msg, ok := bc.lastRoom(model.EvtPlayerLeft)
	require.True(t, ok)
	assert.Equal(t, "conn1", msg.payload.(model.PlayerLeftPayload).ConnectionID)

	count, ok := bc.lastRoom(model.EvtPlayerCount)
	require.True(t, ok)
	assert.Equal(t, 1, count.payload.(model.PlayerCountPayload).Count)
}

func TestHostRoomDoesNotReplaceQuestionsMidGame(t *testing.T) {
	ctrl, _ := newTestController()
	hostRoom(ctrl, "ROOM1", "host1")
	ctrl.StartGame("host1", "ROOM1")

	ctrl.HostRoom(context.Background(), "host2", &model.HostRoomCmd{
		RoomCode:  "ROOM1",
		Questions: []model.Question{{ID: "x", Prompt: "swap?", Answers: []model.Answer{{Text: "y", IsCorrect: true}}}},
	})

	room := ctrl.reg.Get("ROOM1")
	room.mu.Lock()
	defer room.mu.Unlock()
	assert.Len(t, room.questions, 2, "question snapshot is immutable while a game runs")
	assert.Equal(t, "host2", room.hostConnID, "host control still transfers")
}
