package state

import (
	"slices"
	"sync"
	"time"
)

// JoinEntry is one counted join inside a guild's window.
type JoinEntry struct {
	MemberID string
	JoinedAt time.Time
	Seq      uint64
	Weight   int
	RoleIDs  []string
	HighRisk bool

	seenAt int64
}

type joinKey struct {
	memberID string
	joinedAt int64
}

// JoinWindow is a front-pruned queue of joins for one guild. Timestamps in
// the queue never decrease, so pruning only ever looks at the head.
type JoinWindow struct {
	mu      sync.Mutex
	entries []JoinEntry
	head    int
	seen    map[joinKey]struct{}
	total   int
	seq     uint64
	last    time.Time
	dead    bool
}

func newJoinWindow() *JoinWindow {
	return &JoinWindow{seen: make(map[joinKey]struct{})}
}

// prune drops entries strictly older than cutoff. An entry exactly at the
// cutoff still counts.
func (w *JoinWindow) prune(cutoff time.Time) {
	for w.head < len(w.entries) && w.entries[w.head].JoinedAt.Before(cutoff) {
		e := w.entries[w.head]
		w.total -= e.Weight
		delete(w.seen, e.keyFor())
		w.entries[w.head] = JoinEntry{}
		w.head++
	}

	if w.head == len(w.entries) {
		w.entries = w.entries[:0]
		w.head = 0
		return
	}
	if w.head > 64 && w.head*2 > len(w.entries) {
		n := copy(w.entries, w.entries[w.head:])
		clear(w.entries[n:])
		w.entries = w.entries[:n]
		w.head = 0
	}
}

func (e JoinEntry) keyFor() joinKey {
	return joinKey{memberID: e.MemberID, joinedAt: e.seenAt}
}

func (w *JoinWindow) size() int {
	return len(w.entries) - w.head
}

// JoinWindowTracker owns every guild's join window. The registry lock is only
// held for lookup; each window has its own lock.
type JoinWindowTracker struct {
	mu      sync.Mutex
	windows map[string]*JoinWindow
}

func NewJoinWindowTracker() *JoinWindowTracker {
	return &JoinWindowTracker{windows: make(map[string]*JoinWindow)}
}

func (t *JoinWindowTracker) acquire(guildID string) *JoinWindow {
	for {
		t.mu.Lock()
		w, ok := t.windows[guildID]
		if !ok {
			w = newJoinWindow()
			t.windows[guildID] = w
		}
		t.mu.Unlock()

		w.mu.Lock()
		if !w.dead {
			return w
		}
		w.mu.Unlock()
	}
}

// RecordResult describes what Record did with a join.
type RecordResult struct {
	Count    int
	Inserted bool
	Clamped  bool
	// Stale is set when the join was already outside the window on arrival.
	Stale bool
}

// Record prunes the guild's window to [now-window, now] and appends the join.
// Duplicate (memberID, joinedAt) pairs and joins already outside the window
// are not inserted. A zero or future joinedAt is treated as now.
func (t *JoinWindowTracker) Record(guildID string, entry JoinEntry, window time.Duration, now time.Time) RecordResult {
	w := t.acquire(guildID)
	defer w.mu.Unlock()

	cutoff := now.Add(-window)
	w.prune(cutoff)

	var res RecordResult
	original := entry.JoinedAt
	if original.IsZero() || original.After(now) {
		res.Clamped = !original.IsZero()
		entry.JoinedAt = now
	}
	if entry.JoinedAt.Before(cutoff) {
		res.Count = w.total
		res.Stale = true
		return res
	}

	keyTime := original
	if keyTime.IsZero() {
		keyTime = now
	}
	key := joinKey{memberID: entry.MemberID, joinedAt: keyTime.UnixNano()}
	if _, dup := w.seen[key]; dup {
		res.Count = w.total
		return res
	}

	if entry.JoinedAt.Before(w.last) {
		entry.JoinedAt = w.last
	}
	if entry.Weight < 1 {
		entry.Weight = 1
	}
	w.seq++
	entry.Seq = w.seq
	entry.seenAt = key.joinedAt
	entry.RoleIDs = slices.Clone(entry.RoleIDs)

	w.entries = append(w.entries, entry)
	w.seen[key] = struct{}{}
	w.total += entry.Weight
	w.last = entry.JoinedAt

	res.Count = w.total
	res.Inserted = true
	return res
}

// Entries returns the live entries of a guild's window ordered by
// (JoinedAt, Seq), after pruning to the window ending at now.
func (t *JoinWindowTracker) Entries(guildID string, window time.Duration, now time.Time) []JoinEntry {
	t.mu.Lock()
	w, ok := t.windows[guildID]
	t.mu.Unlock()
	if !ok {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.dead {
		return nil
	}
	w.prune(now.Add(-window))

	out := make([]JoinEntry, 0, w.size())
	for _, e := range w.entries[w.head:] {
		e.RoleIDs = slices.Clone(e.RoleIDs)
		out = append(out, e)
	}
	return out
}

// Count returns the weighted join count of a guild's window at now.
func (t *JoinWindowTracker) Count(guildID string, window time.Duration, now time.Time) int {
	t.mu.Lock()
	w, ok := t.windows[guildID]
	t.mu.Unlock()
	if !ok {
		return 0
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.dead {
		return 0
	}
	w.prune(now.Add(-window))
	return w.total
}

// Reset discards a guild's window.
func (t *JoinWindowTracker) Reset(guildID string) {
	t.mu.Lock()
	w, ok := t.windows[guildID]
	delete(t.windows, guildID)
	t.mu.Unlock()

	if ok {
		w.mu.Lock()
		w.dead = true
		w.mu.Unlock()
	}
}

// Sweep prunes every window against maxWindow and drops the ones left empty.
// It returns the number of windows removed.
func (t *JoinWindowTracker) Sweep(now time.Time, maxWindow time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	cutoff := now.Add(-maxWindow)
	for guildID, w := range t.windows {
		if !w.mu.TryLock() {
			continue
		}
		w.prune(cutoff)
		if w.size() == 0 {
			w.dead = true
			delete(t.windows, guildID)
			removed++
		}
		w.mu.Unlock()
	}
	return removed
}

// Guilds returns how many guilds currently hold a window.
func (t *JoinWindowTracker) Guilds() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.windows)
}
