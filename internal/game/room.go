package game

import (
	"sort"
	"sync"
	"time"

	"quizlive/internal/model"
)

// Phase is one state of the per-question game state machine.
type Phase string

const (
	PhaseWaiting     Phase = "waiting"
	PhaseReading     Phase = "reading"
	PhaseAnswering   Phase = "answering"
	PhaseResult      Phase = "result"
	PhaseLeaderboard Phase = "leaderboard"
	PhaseFinished    Phase = "finished"
)

// Room is the aggregate state of one live game. All mutable fields are
// guarded by mu; commands, timer fires and sweep eviction all serialize
// through it, so two phase transitions can never run concurrently.
type Room struct {
	mu sync.Mutex

	code       string
	hostConnID string

	players   map[string]*model.PlayerSession // keyed by playerId
	joinOrder []string                        // insertion order, breaks leaderboard ties

	phase          Phase
	qIndex         int
	phaseStartedAt time.Time
	questions      []model.Question // immutable snapshot, set at host attach
	createdAt      time.Time

	// At most one phase-transition timer is pending at a time. timerGen
	// is bumped on every schedule/cancel so a stale callback that already
	// fired can detect it lost the race and back off.
	timer    *time.Timer
	timerGen uint64
}

func newRoom(code string) *Room {
	return &Room{
		code:      code,
		players:   make(map[string]*model.PlayerSession),
		phase:     PhaseWaiting,
		qIndex:    -1,
		createdAt: time.Now(),
	}
}

// Code returns the room's immutable join code.
func (r *Room) Code() string { return r.code }

// cancelTimerLocked stops any pending phase timer and invalidates callbacks
// already in flight. Callers must hold r.mu.
func (r *Room) cancelTimerLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.timerGen++
}

// connectedCountLocked counts players whose transport is currently attached.
func (r *Room) connectedCountLocked() int {
	n := 0
	for _, p := range r.players {
		if p.Connected {
			n++
		}
	}
	return n
}

// sessionByConnLocked resolves a connection id to its player session.
func (r *Room) sessionByConnLocked(connID string) *model.PlayerSession {
	for _, p := range r.players {
		if p.Connected && p.ConnectionID == connID {
			return p
		}
	}
	return nil
}

// leaderboardLocked returns up to limit entries sorted by score descending,
// ties broken by join order.
func (r *Room) leaderboardLocked(limit int) []model.LeaderboardEntry {
	ordered := make([]*model.PlayerSession, 0, len(r.players))
	for _, id := range r.joinOrder {
		if p, ok := r.players[id]; ok {
			ordered = append(ordered, p)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Score > ordered[j].Score
	})

	if len(ordered) > limit {
		ordered = ordered[:limit]
	}
	entries := make([]model.LeaderboardEntry, len(ordered))
	for i, p := range ordered {
		entries[i] = model.LeaderboardEntry{
			PlayerID: p.PlayerID,
			Name:     p.DisplayName,
			Score:    p.Score,
			Rank:     i + 1,
		}
	}
	return entries
}
