package watchdog

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go-antiraid/internal/logging"
)

// Watchdog tracks heartbeats from long-running components and marks the ones
// that fall silent as unhealthy. Its status backs /healthz.
type Watchdog struct {
	mu            sync.RWMutex
	components    map[string]*ComponentHealth
	checkInterval time.Duration
	now           func() time.Time
}

type ComponentHealth struct {
	Name          string
	LastHeartbeat int64
	IsHealthy     uint32
	Threshold     time.Duration
}

func NewWatchdog(checkInterval time.Duration) *Watchdog {
	return &Watchdog{
		components:    make(map[string]*ComponentHealth),
		checkInterval: checkInterval,
		now:           time.Now,
	}
}

// RegisterComponent starts tracking name. A component is healthy until it
// misses its threshold.
func (w *Watchdog) RegisterComponent(name string, threshold time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.components[name] = &ComponentHealth{
		Name:          name,
		IsHealthy:     1,
		Threshold:     threshold,
		LastHeartbeat: w.now().UnixNano(),
	}
}

func (w *Watchdog) Heartbeat(name string) {
	w.mu.RLock()
	comp, exists := w.components[name]
	w.mu.RUnlock()
	if exists {
		atomic.StoreInt64(&comp.LastHeartbeat, w.now().UnixNano())
		atomic.StoreUint32(&comp.IsHealthy, 1)
	}
}

// MarkUnhealthy flags a component without waiting for its threshold.
func (w *Watchdog) MarkUnhealthy(name string) {
	w.mu.RLock()
	comp, exists := w.components[name]
	w.mu.RUnlock()
	if exists {
		atomic.StoreUint32(&comp.IsHealthy, 0)
	}
}

// Serve runs the check loop until ctx is done.
func (w *Watchdog) Serve(ctx context.Context) error {
	ticker := time.NewTicker(w.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.CheckAll()
		}
	}
}

func (w *Watchdog) CheckAll() {
	now := w.now().UnixNano()

	w.mu.RLock()
	defer w.mu.RUnlock()
	for name, comp := range w.components {
		lastBeat := atomic.LoadInt64(&comp.LastHeartbeat)
		elapsed := time.Duration(now - lastBeat)
		if elapsed > comp.Threshold && atomic.SwapUint32(&comp.IsHealthy, 0) == 1 {
			logging.Error("Watchdog: %s unhealthy (no heartbeat for %v)", name, elapsed)
		}
	}
}

func (w *Watchdog) IsHealthy(name string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if comp, exists := w.components[name]; exists {
		return atomic.LoadUint32(&comp.IsHealthy) == 1
	}
	return false
}

// Status implements metrics.HealthReporter.
func (w *Watchdog) Status() map[string]bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	status := make(map[string]bool, len(w.components))
	for name, comp := range w.components {
		status[name] = atomic.LoadUint32(&comp.IsHealthy) == 1
	}
	return status
}

func (w *Watchdog) String() string {
	return "watchdog"
}
