package correlator

import (
	"sync"
	"time"

	"go-antiraid/internal/metrics"
)

// lane serializes every state-changing operation for one guild.
type lane struct {
	mu       sync.Mutex
	refs     int
	lastUsed time.Time
}

// LaneRegistry hands out one lane per guild. Different guilds never wait on
// each other; idle lanes are swept by the janitor.
type LaneRegistry struct {
	mu    sync.Mutex
	lanes map[string]*lane
	now   func() time.Time
}

func NewLaneRegistry() *LaneRegistry {
	return &LaneRegistry{
		lanes: make(map[string]*lane),
		now:   time.Now,
	}
}

// Acquire blocks until the guild's lane is free and returns its release func.
func (r *LaneRegistry) Acquire(guildID string) func() {
	r.mu.Lock()
	l, ok := r.lanes[guildID]
	if !ok {
		l = &lane{}
		r.lanes[guildID] = l
		metrics.ActiveLanes.Set(float64(len(r.lanes)))
	}
	l.refs++
	r.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		r.mu.Lock()
		l.refs--
		l.lastUsed = r.now()
		r.mu.Unlock()
	}
}

// Sweep drops lanes nobody holds or waits on that have been idle for ttl.
func (r *LaneRegistry) Sweep(ttl time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-ttl)
	removed := 0
	for guildID, l := range r.lanes {
		if l.refs == 0 && l.lastUsed.Before(cutoff) {
			delete(r.lanes, guildID)
			removed++
		}
	}
	metrics.ActiveLanes.Set(float64(len(r.lanes)))
	return removed
}

func (r *LaneRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lanes)
}
