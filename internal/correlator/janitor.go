package correlator

import (
	"context"
	"time"

	"go-antiraid/internal/logging"
	"go-antiraid/internal/metrics"
	"go-antiraid/internal/models"
	"go-antiraid/internal/state"
)

// Heartbeater is fed once per janitor pass.
type Heartbeater interface {
	Heartbeat(name string)
}

// Janitor periodically drops idle lanes and empty join windows so memory
// stays bounded by active guilds.
type Janitor struct {
	lanes    *LaneRegistry
	tracker  *state.JoinWindowTracker
	interval time.Duration
	laneTTL  time.Duration
	health   Heartbeater
}

func NewJanitor(lanes *LaneRegistry, tracker *state.JoinWindowTracker, interval, laneTTL time.Duration, health Heartbeater) *Janitor {
	return &Janitor{
		lanes:    lanes,
		tracker:  tracker,
		interval: interval,
		laneTTL:  laneTTL,
		health:   health,
	}
}

// Serve runs sweeps until ctx is done.
func (j *Janitor) Serve(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			j.Sweep(now)
		}
	}
}

func (j *Janitor) Sweep(now time.Time) {
	maxWindow := time.Duration(models.MaxJoinTimeWindowMs) * time.Millisecond
	windows := j.tracker.Sweep(now, maxWindow)
	lanes := j.lanes.Sweep(j.laneTTL)
	metrics.TrackedWindows.Set(float64(j.tracker.Guilds()))

	if windows > 0 || lanes > 0 {
		logging.Debug("Janitor: dropped %d join windows and %d lanes", windows, lanes)
	}
	if j.health != nil {
		j.health.Heartbeat(j.String())
	}
}

func (j *Janitor) String() string {
	return "janitor"
}
