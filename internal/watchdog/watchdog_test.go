package watchdog

import (
	"testing"
	"time"
)

func TestWatchdog_MissedHeartbeat(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	w := NewWatchdog(time.Second)
	w.now = func() time.Time { return now }

	w.RegisterComponent("session", 30*time.Second)
	w.RegisterComponent("janitor", 5*time.Minute)

	now = now.Add(time.Minute)
	w.CheckAll()

	if w.IsHealthy("session") {
		t.Error("session should be unhealthy after a missed heartbeat")
	}
	if !w.IsHealthy("janitor") {
		t.Error("janitor should still be healthy")
	}

	w.Heartbeat("session")
	if !w.Status()["session"] {
		t.Error("heartbeat should restore health")
	}

	w.MarkUnhealthy("janitor")
	if w.Status()["janitor"] {
		t.Error("MarkUnhealthy had no effect")
	}
	if w.IsHealthy("unknown") {
		t.Error("unknown component reported healthy")
	}
}
