package decision

import "sync"

// Debounce latches a guild after a raid fires so the same burst cannot fire
// twice. The latch is cleared when the window drops below threshold or a
// lockdown is lifted by hand.
type Debounce struct {
	mu      sync.RWMutex
	latched map[string]struct{}
}

func NewDebounce() *Debounce {
	return &Debounce{latched: make(map[string]struct{})}
}

// TryArm latches the guild and reports whether it was previously clear.
func (d *Debounce) TryArm(guildID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.latched[guildID]; ok {
		return false
	}
	d.latched[guildID] = struct{}{}
	return true
}

func (d *Debounce) Clear(guildID string) {
	d.mu.Lock()
	delete(d.latched, guildID)
	d.mu.Unlock()
}

func (d *Debounce) IsLatched(guildID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.latched[guildID]
	return ok
}
