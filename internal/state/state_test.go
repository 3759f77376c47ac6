package state

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var base = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func join(id string, at time.Time) JoinEntry {
	return JoinEntry{MemberID: id, JoinedAt: at}
}

func TestJoinWindow_InclusiveBoundary(t *testing.T) {
	tr := NewJoinWindowTracker()
	window := 10 * time.Second

	tr.Record("g", join("a", base), window, base)
	res := tr.Record("g", join("b", base.Add(window)), window, base.Add(window))
	if res.Count != 2 {
		t.Fatalf("join exactly one window old should still count, got %d", res.Count)
	}

	res = tr.Record("g", join("c", base.Add(window+time.Millisecond)), window, base.Add(window+time.Millisecond))
	if res.Count != 2 {
		t.Errorf("count after first entry expires = %d, want 2", res.Count)
	}
}

func TestJoinWindow_Duplicates(t *testing.T) {
	tr := NewJoinWindowTracker()
	window := 10 * time.Second

	first := tr.Record("g", join("a", base), window, base)
	dup := tr.Record("g", join("a", base), window, base.Add(time.Second))
	if !first.Inserted || dup.Inserted {
		t.Fatalf("Inserted = %v/%v, want true/false", first.Inserted, dup.Inserted)
	}
	if dup.Count != 1 {
		t.Errorf("count after duplicate = %d, want 1", dup.Count)
	}

	rejoin := tr.Record("g", join("a", base.Add(2*time.Second)), window, base.Add(2*time.Second))
	if !rejoin.Inserted || rejoin.Count != 2 {
		t.Errorf("rejoin at a new time should count, got %+v", rejoin)
	}
}

func TestJoinWindow_ClockSkew(t *testing.T) {
	tr := NewJoinWindowTracker()
	window := 10 * time.Second

	res := tr.Record("g", join("future", base.Add(time.Hour)), window, base)
	if !res.Inserted || !res.Clamped {
		t.Fatalf("future join should be clamped and inserted, got %+v", res)
	}
	entries := tr.Entries("g", window, base)
	if len(entries) != 1 || !entries[0].JoinedAt.Equal(base) {
		t.Errorf("future join stored at %v, want %v", entries[0].JoinedAt, base)
	}

	stale := tr.Record("g", join("stale", base.Add(-time.Minute)), window, base)
	if stale.Inserted || !stale.Stale {
		t.Errorf("join older than the window = %+v, want stale and not inserted", stale)
	}
	if dup := tr.Record("g", join("future", base.Add(time.Hour)), window, base); dup.Inserted || dup.Stale {
		t.Errorf("duplicate join = %+v, want not inserted and not stale", dup)
	}
}

func TestJoinWindow_MonotonicOrder(t *testing.T) {
	tr := NewJoinWindowTracker()
	window := 10 * time.Second
	now := base.Add(5 * time.Second)

	tr.Record("g", join("a", base.Add(3*time.Second)), window, now)
	tr.Record("g", join("b", base.Add(1*time.Second)), window, now)
	tr.Record("g", join("c", base.Add(3*time.Second)), window, now)

	var got []string
	for i, e := range tr.Entries("g", window, now) {
		got = append(got, e.MemberID)
		if e.Seq != uint64(i+1) {
			t.Errorf("entry %s seq = %d, want %d", e.MemberID, e.Seq, i+1)
		}
		if e.JoinedAt.Before(base.Add(3 * time.Second)) {
			t.Errorf("entry %s went back in time: %v", e.MemberID, e.JoinedAt)
		}
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestJoinWindow_Weights(t *testing.T) {
	tr := NewJoinWindowTracker()
	window := 10 * time.Second

	tr.Record("g", JoinEntry{MemberID: "a", JoinedAt: base, Weight: 2, HighRisk: true}, window, base)
	res := tr.Record("g", join("b", base), window, base)
	if res.Count != 3 {
		t.Errorf("weighted count = %d, want 3", res.Count)
	}
}

func TestJoinWindow_ResetAndSweep(t *testing.T) {
	tr := NewJoinWindowTracker()
	window := 10 * time.Second

	tr.Record("g1", join("a", base), window, base)
	tr.Record("g2", join("b", base), window, base)
	tr.Reset("g1")
	if got := tr.Count("g1", window, base); got != 0 {
		t.Errorf("count after reset = %d", got)
	}

	if removed := tr.Sweep(base.Add(time.Minute), 30*time.Second); removed != 1 {
		t.Errorf("Sweep removed %d windows, want 1", removed)
	}
	if tr.Guilds() != 0 {
		t.Errorf("Guilds() = %d after sweep", tr.Guilds())
	}

	res := tr.Record("g2", join("c", base.Add(time.Minute)), window, base.Add(time.Minute))
	if res.Count != 1 {
		t.Errorf("window recreated after sweep has count %d", res.Count)
	}
}

func TestJoinWindow_LongRunCompacts(t *testing.T) {
	tr := NewJoinWindowTracker()
	window := time.Second

	var res RecordResult
	for i := 0; i < 1000; i++ {
		at := base.Add(time.Duration(i) * 100 * time.Millisecond)
		res = tr.Record("g", join(fmt.Sprint(i), at), window, at)
	}
	if res.Count != 11 {
		t.Errorf("steady-state count = %d, want 11", res.Count)
	}
}

func TestJoinWindow_ConcurrentGuilds(t *testing.T) {
	tr := NewJoinWindowTracker()
	window := time.Minute

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			guild := fmt.Sprint("guild-", g)
			for i := 0; i < 100; i++ {
				tr.Record(guild, join(fmt.Sprint(i), base), window, base)
			}
		}(g)
	}
	wg.Wait()

	for g := 0; g < 8; g++ {
		if got := tr.Count(fmt.Sprint("guild-", g), window, base); got != 100 {
			t.Errorf("guild %d count = %d, want 100", g, got)
		}
	}
}

func TestLockdownTable(t *testing.T) {
	lt := NewLockdownTable()
	if lt.IsLocked("g") {
		t.Fatal("new table reports locked")
	}
	if lt.SetReason("g", "x") {
		t.Error("SetReason on unlocked guild reported true")
	}

	lt.Set("g", &Locked{Reason: "raid", LockedAt: base, Snapshots: []ChannelSnapshot{{ChannelID: "1", Present: true, Deny: 8}}})

	got, ok := lt.Get("g")
	if !ok {
		t.Fatal("Get after Set: not locked")
	}
	got.Snapshots[0].Deny = 0
	again, _ := lt.Get("g")
	if again.Snapshots[0].Deny != 8 {
		t.Error("Get returned shared snapshots")
	}

	if !lt.SetReason("g", "manual") {
		t.Error("SetReason on locked guild reported false")
	}
	taken, ok := lt.Take("g")
	if !ok || taken.Reason != "manual" {
		t.Errorf("Take = %+v, %v", taken, ok)
	}
	if lt.IsLocked("g") || lt.Count() != 0 {
		t.Error("guild still locked after Take")
	}
}
