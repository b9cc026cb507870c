package game

import (
	"context"
	"log"
	"sync"
	"time"
)

// Registry owns the live room table. Rooms are created lazily on the first
// host attach or player join for an unknown code and evicted by Remove or by
// the periodic sweep.
type Registry struct {
	mu        sync.Mutex
	rooms     map[string]*Room
	retention time.Duration

	// onEvict, when set, runs after a room is dropped (outside all locks)
	// so external mirrors can clean up.
	onEvict func(code string)
}

// NewRegistry creates a registry. Rooms older than retention are evicted by
// the sweep regardless of occupancy.
func NewRegistry(retention time.Duration) *Registry {
	return &Registry{
		rooms:     make(map[string]*Room),
		retention: retention,
	}
}

// SetEvictHook registers a callback invoked with the code of every room the
// registry drops. Must be called before the sweep loop starts.
func (reg *Registry) SetEvictHook(fn func(code string)) {
	reg.onEvict = fn
}

// Get returns the room for code, or nil if none exists.
func (reg *Registry) Get(code string) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.rooms[code]
}

// GetOrCreate returns the room for code, creating an empty waiting room if
// the code is unknown.
func (reg *Registry) GetOrCreate(code string) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if room, ok := reg.rooms[code]; ok {
		return room
	}
	room := newRoom(code)
	reg.rooms[code] = room
	log.Printf("registry: created room %s", code)
	return room
}

// Remove drops a room, cancelling its pending timer first so no orphaned
// callback can mutate a deleted room.
func (reg *Registry) Remove(code string) {
	reg.mu.Lock()
	room, ok := reg.rooms[code]
	if ok {
		room.mu.Lock()
		room.cancelTimerLocked()
		room.mu.Unlock()
		delete(reg.rooms, code)
	}
	reg.mu.Unlock()

	if ok {
		log.Printf("registry: removed room %s", code)
		if reg.onEvict != nil {
			reg.onEvict(code)
		}
	}
}

// Sweep makes one eviction pass: rooms with no connected players and no host
// are dropped, as are rooms past the retention window regardless of
// occupancy. Returns the codes evicted.
func (reg *Registry) Sweep() []string {
	now := time.Now()

	reg.mu.Lock()
	var evicted []string
	for code, room := range reg.rooms {
		room.mu.Lock()
		abandoned := room.connectedCountLocked() == 0 && room.hostConnID == ""
		expired := now.Sub(room.createdAt) > reg.retention
		if abandoned || expired {
			room.cancelTimerLocked()
			delete(reg.rooms, code)
			evicted = append(evicted, code)
		}
		room.mu.Unlock()
	}
	reg.mu.Unlock()

	for _, code := range evicted {
		log.Printf("registry: swept room %s", code)
		if reg.onEvict != nil {
			reg.onEvict(code)
		}
	}
	return evicted
}

// Run sweeps on interval until ctx is cancelled.
func (reg *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			reg.Sweep()
		case <-ctx.Done():
			return
		}
	}
}
