package state

import (
	"slices"
	"sync"
	"time"
)

// ChannelSnapshot is the @everyone overwrite of a channel before lockdown.
// Present is false when the channel had no such overwrite.
type ChannelSnapshot struct {
	ChannelID string `json:"channel_id"`
	Present   bool   `json:"present"`
	Allow     int64  `json:"allow"`
	Deny      int64  `json:"deny"`
}

// Locked is the only representation of a locked guild. An unlocked guild has
// no entry at all, so snapshots cannot be read outside a lockdown.
type Locked struct {
	Reason    string            `json:"reason"`
	LockedAt  time.Time         `json:"locked_at"`
	Snapshots []ChannelSnapshot `json:"snapshots"`
}

func (l *Locked) clone() *Locked {
	c := *l
	c.Snapshots = slices.Clone(l.Snapshots)
	return &c
}

// LockdownTable holds the Locked state of every guild currently in lockdown.
type LockdownTable struct {
	mu     sync.RWMutex
	locked map[string]*Locked
}

func NewLockdownTable() *LockdownTable {
	return &LockdownTable{locked: make(map[string]*Locked)}
}

// Get returns a copy of the guild's Locked state.
func (t *LockdownTable) Get(guildID string) (*Locked, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	l, ok := t.locked[guildID]
	if !ok {
		return nil, false
	}
	return l.clone(), true
}

func (t *LockdownTable) IsLocked(guildID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.locked[guildID]
	return ok
}

func (t *LockdownTable) Set(guildID string, l *Locked) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.locked[guildID] = l.clone()
}

// SetReason updates the reason of a locked guild and reports whether it was locked.
func (t *LockdownTable) SetReason(guildID, reason string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.locked[guildID]
	if ok {
		l.Reason = reason
	}
	return ok
}

// Take removes and returns the guild's Locked state.
func (t *LockdownTable) Take(guildID string) (*Locked, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.locked[guildID]
	if ok {
		delete(t.locked, guildID)
	}
	return l, ok
}

func (t *LockdownTable) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.locked)
}
