package bot

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/go-cmp/cmp"

	"go-antiraid/internal/decision"
	"go-antiraid/internal/models"
)

var base = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

// 175928847299117063 was created 2016-04-30 11:18:25.796 UTC.
const knownSnowflake = "175928847299117063"

func TestJoinEventFromMember(t *testing.T) {
	m := &discordgo.Member{
		GuildID:  "1",
		JoinedAt: base,
		Roles:    []string{"7"},
		User:     &discordgo.User{ID: knownSnowflake},
	}
	ev, err := JoinEventFromMember(m, base.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	want := &models.JoinEvent{
		MemberID:         knownSnowflake,
		GuildID:          "1",
		AccountCreatedAt: time.Date(2016, 4, 30, 11, 18, 25, 796000000, time.UTC),
		JoinedAt:         base,
		RoleIDs:          []string{"7"},
	}
	if diff := cmp.Diff(want, ev, cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) })); diff != "" {
		t.Errorf("event mismatch (-want +got):\n%s", diff)
	}
}

func TestJoinEventFromMember_Fallbacks(t *testing.T) {
	now := base
	ev, err := JoinEventFromMember(&discordgo.Member{GuildID: "1", User: &discordgo.User{ID: knownSnowflake, Bot: true}}, now)
	if err != nil {
		t.Fatal(err)
	}
	if !ev.JoinedAt.Equal(now) || !ev.Bot {
		t.Errorf("event = %+v", ev)
	}

	if _, err := JoinEventFromMember(&discordgo.Member{GuildID: "1"}, now); err == nil {
		t.Error("member without user should fail")
	}
	if _, err := JoinEventFromMember(&discordgo.Member{User: &discordgo.User{ID: "not-a-number"}}, now); err == nil {
		t.Error("bad snowflake should fail")
	}
}

type recordingMonitor struct {
	events []*models.JoinEvent
	hasDL  bool
}

func (r *recordingMonitor) HandleJoin(ctx context.Context, ev *models.JoinEvent) (decision.Decision, *models.RaidIncident, error) {
	r.events = append(r.events, ev)
	_, r.hasDL = ctx.Deadline()
	return decision.Decision{Kind: decision.NoAction}, nil, nil
}

func TestOnGuildMemberAdd(t *testing.T) {
	mon := &recordingMonitor{}
	h := NewEventHandlers(mon, time.Minute)

	h.OnGuildMemberAdd(nil, &discordgo.GuildMemberAdd{Member: &discordgo.Member{
		GuildID: "1", JoinedAt: base, User: &discordgo.User{ID: knownSnowflake},
	}})
	h.OnGuildMemberAdd(nil, &discordgo.GuildMemberAdd{Member: &discordgo.Member{GuildID: "1"}})

	if len(mon.events) != 1 || mon.events[0].MemberID != knownSnowflake {
		t.Fatalf("events = %+v", mon.events)
	}
	if !mon.hasDL {
		t.Error("join handled without a deadline")
	}
}

type beats struct{ n int }

func (b *beats) Heartbeat(string) { b.n++ }

func TestGatewayProbe(t *testing.T) {
	ack := time.Time{}
	hb := &beats{}
	p := &GatewayProbe{
		lastAck: func() time.Time { return ack },
		health:  hb,
		maxAge:  2 * time.Minute,
		now:     func() time.Time { return base },
	}

	if p.Check() {
		t.Error("probe healthy before first ack")
	}
	ack = base.Add(-time.Minute)
	if !p.Check() || hb.n != 1 {
		t.Errorf("probe with fresh ack: beats = %d", hb.n)
	}
	ack = base.Add(-5 * time.Minute)
	if p.Check() {
		t.Error("probe healthy with stale ack")
	}
}
