package commands

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/go-cmp/cmp"

	"go-antiraid/internal/correlator"
	"go-antiraid/internal/decision"
	"go-antiraid/internal/models"
)

type fakeMonitor struct {
	settings    *models.RaidSettings
	lockReason  string
	lockActor   string
	listLimit   int
	lockResult  *decision.LockdownResult
	updateCalls int
}

func newFakeMonitor() *fakeMonitor {
	return &fakeMonitor{settings: models.DefaultRaidSettings("1")}
}

func (f *fakeMonitor) UpdateSettings(_ context.Context, _ string, fn func(s *models.RaidSettings) error) (*models.RaidSettings, error) {
	f.updateCalls++
	next := f.settings.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}
	f.settings = next
	return next.Clone(), nil
}

func (f *fakeMonitor) ManualLockdown(_ context.Context, _, actorID, reason string) (*correlator.Report, error) {
	f.lockReason = reason
	f.lockActor = actorID
	res := f.lockResult
	if res == nil {
		res = &decision.LockdownResult{Outcome: &models.Outcome{Succeeded: 3}, Locked: true}
	}
	return &correlator.Report{Result: res}, nil
}

func (f *fakeMonitor) ManualUnlock(context.Context, string, string) (*correlator.Report, error) {
	return &correlator.Report{Result: &decision.LockdownResult{Outcome: &models.Outcome{}, Noop: true}}, nil
}

func (f *fakeMonitor) ListIncidents(_ context.Context, _ string, limit int) ([]*models.RaidIncident, error) {
	f.listLimit = limit
	return nil, nil
}

func (f *fakeMonitor) Status(context.Context, string) (*correlator.GuildStatus, error) {
	return &correlator.GuildStatus{Settings: f.settings.Clone(), Locked: true, LockReason: "raid", LockedAt: time.Unix(1700000000, 0), LockedChannels: 4}, nil
}

func sub(name string, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionSubCommand, Options: opts}
}

func group(name string, child *discordgo.ApplicationCommandInteractionDataOption) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:    name,
		Type:    discordgo.ApplicationCommandOptionSubCommandGroup,
		Options: []*discordgo.ApplicationCommandInteractionDataOption{child},
	}
}

func intOpt(name string, v int) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionInteger, Value: float64(v)}
}

func boolOpt(name string, v bool) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionBoolean, Value: v}
}

func strOpt(name string, typ discordgo.ApplicationCommandOptionType, v string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: typ, Value: v}
}

func invoke(h *Handler, opt *discordgo.ApplicationCommandInteractionDataOption) *Reply {
	return h.Execute(context.Background(), Invocation{
		GuildID: "1",
		UserID:  "42",
		Data: discordgo.ApplicationCommandInteractionData{
			Name:    CommandName,
			Options: []*discordgo.ApplicationCommandInteractionDataOption{opt},
		},
	})
}

func TestSettingsSubcommands(t *testing.T) {
	mon := newFakeMonitor()
	h := NewHandler(mon, time.Second)

	invoke(h, sub("toggle", boolOpt("enabled", true)))
	invoke(h, sub("action", strOpt("type", discordgo.ApplicationCommandOptionString, "kick")))
	invoke(h, sub("threshold", intOpt("joins", 8), intOpt("seconds", 30)))
	invoke(h, sub("account-age", intOpt("days", 7)))
	invoke(h, group("exempt-role", sub("add", strOpt("role", discordgo.ApplicationCommandOptionRole, "100"))))
	invoke(h, group("exempt-channel", sub("add", strOpt("channel", discordgo.ApplicationCommandOptionChannel, "200"))))
	invoke(h, sub("alert-channel", strOpt("channel", discordgo.ApplicationCommandOptionChannel, "300")))
	invoke(h, sub("notify-role", strOpt("role", discordgo.ApplicationCommandOptionRole, "400")))

	want := models.DefaultRaidSettings("1")
	want.Enabled = true
	want.ActionType = models.ActionKick
	want.JoinThreshold = 8
	want.JoinTimeWindowMs = 30000
	want.AccountAgeDaysMin = 7
	want.ExemptRoleIDs = []string{"100"}
	want.ExemptChannelIDs = []string{"200"}
	want.AlertChannelID = "300"
	want.NotifyRoleID = "400"
	if diff := cmp.Diff(want, mon.settings); diff != "" {
		t.Errorf("settings mismatch (-want +got):\n%s", diff)
	}

	invoke(h, sub("alert-channel"))
	invoke(h, sub("notify-role"))
	if mon.settings.AlertChannelID != "" || mon.settings.NotifyRoleID != "" {
		t.Errorf("alert target not cleared: %+v", mon.settings)
	}
}

func TestExemptRoleMessages(t *testing.T) {
	h := NewHandler(newFakeMonitor(), time.Second)
	role := func(action string) *Reply {
		return invoke(h, group("exempt-role", sub(action, strOpt("role", discordgo.ApplicationCommandOptionRole, "100"))))
	}

	tests := []struct {
		action string
		want   string
	}{
		{"add", "✅ Added <@&100> to exempt roles."},
		{"add", "ℹ️ <@&100> is already in exempt roles."},
		{"remove", "✅ Removed <@&100> from exempt roles."},
		{"remove", "ℹ️ <@&100> is not in exempt roles."},
	}
	for _, tt := range tests {
		if got := role(tt.action).Content; got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.action, got, tt.want)
		}
	}
}

func TestThresholdRejectsOutOfRange(t *testing.T) {
	mon := newFakeMonitor()
	h := NewHandler(mon, time.Second)

	tests := []struct {
		name          string
		joins, second int
		field         string
	}{
		{"too many joins", 51, 10, "join_threshold"},
		{"too few joins", 2, 10, "join_threshold"},
		{"window too long", 5, 301, "join_time_window_ms"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := invoke(h, sub("threshold", intOpt("joins", tt.joins), intOpt("seconds", tt.second)))
			if !strings.Contains(reply.Content, "`"+tt.field+"`") {
				t.Errorf("reply = %q, want mention of %s", reply.Content, tt.field)
			}
		})
	}
	if mon.settings.JoinThreshold != models.DefaultJoinThreshold || mon.settings.JoinTimeWindowMs != models.DefaultJoinTimeWindowMs {
		t.Errorf("invalid threshold was applied: %+v", mon.settings)
	}
}

func TestLockdownSubcommands(t *testing.T) {
	mon := newFakeMonitor()
	h := NewHandler(mon, time.Second)

	reply := invoke(h, group("lockdown", sub("enable")))
	if mon.lockReason != defaultLockdownReason || mon.lockActor != "42" {
		t.Errorf("lockdown called with %q by %q", mon.lockReason, mon.lockActor)
	}
	if reply.Content != "🔒 Server locked down. 3 channels locked." {
		t.Errorf("reply = %q", reply.Content)
	}

	invoke(h, group("lockdown", sub("enable", strOpt("reason", discordgo.ApplicationCommandOptionString, "  spam wave "))))
	if mon.lockReason != "spam wave" {
		t.Errorf("reason = %q", mon.lockReason)
	}

	mon.lockResult = &decision.LockdownResult{Outcome: &models.Outcome{Failed: 5}}
	if reply := invoke(h, group("lockdown", sub("enable"))); !strings.HasPrefix(reply.Content, "❌ Lockdown failed") {
		t.Errorf("failed lockdown reply = %q", reply.Content)
	}

	if reply := invoke(h, group("lockdown", sub("disable"))); reply.Content != "ℹ️ The server is not locked down." {
		t.Errorf("unlock reply = %q", reply.Content)
	}
}

func TestIncidentsDefaultLimit(t *testing.T) {
	mon := newFakeMonitor()
	h := NewHandler(mon, time.Second)

	reply := invoke(h, sub("incidents"))
	if mon.listLimit != models.DefaultIncidentListLimit {
		t.Errorf("limit = %d, want %d", mon.listLimit, models.DefaultIncidentListLimit)
	}
	if reply.Content != "No raid incidents recorded for this server." {
		t.Errorf("reply = %q", reply.Content)
	}

	invoke(h, sub("incidents", intOpt("limit", 25)))
	if mon.listLimit != 25 {
		t.Errorf("limit = %d, want 25", mon.listLimit)
	}
}

func TestViewEmbed(t *testing.T) {
	h := NewHandler(newFakeMonitor(), time.Second)
	reply := invoke(h, sub("view"))
	if len(reply.Embeds) != 1 {
		t.Fatalf("embeds = %d", len(reply.Embeds))
	}
	fields := map[string]string{}
	for _, f := range reply.Embeds[0].Fields {
		fields[f.Name] = f.Value
	}
	if fields["Protection"] != "Disabled" || fields["Action"] != "`lockdown`" {
		t.Errorf("fields = %v", fields)
	}
	if !strings.Contains(fields["Lockdown"], "4 channels locked") {
		t.Errorf("lockdown field = %q", fields["Lockdown"])
	}
	if fields["Threshold"] != "5 joins within 10s" {
		t.Errorf("threshold field = %q", fields["Threshold"])
	}
}

func TestErrorReplies(t *testing.T) {
	h := NewHandler(newFakeMonitor(), time.Second)
	if reply := invoke(h, sub("nope")); !strings.HasPrefix(reply.Content, "❌ Error: unknown subcommand") {
		t.Errorf("unknown subcommand reply = %q", reply.Content)
	}

	reply := errorReply("toggle", errors.Join(models.ErrPersistence, errors.New("disk full")))
	if !strings.Contains(reply.Content, "could not be saved") {
		t.Errorf("persistence reply = %q", reply.Content)
	}
}

type fakeResponder struct {
	responses []*discordgo.InteractionResponse
	edits     []*discordgo.WebhookEdit
}

func (f *fakeResponder) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	f.responses = append(f.responses, resp)
	return nil
}

func (f *fakeResponder) InteractionResponseEdit(_ *discordgo.Interaction, edit *discordgo.WebhookEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.edits = append(f.edits, edit)
	return &discordgo.Message{}, nil
}

func interaction(guildID string, member *discordgo.Member, opt *discordgo.ApplicationCommandInteractionDataOption) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type:    discordgo.InteractionApplicationCommand,
		GuildID: guildID,
		Member:  member,
		Data: discordgo.ApplicationCommandInteractionData{
			Name:    CommandName,
			Options: []*discordgo.ApplicationCommandInteractionDataOption{opt},
		},
	}}
}

func TestRespond_DefersThenEdits(t *testing.T) {
	h := NewHandler(newFakeMonitor(), time.Second)
	r := &fakeResponder{}

	h.respond(r, interaction("1", &discordgo.Member{User: &discordgo.User{ID: "42"}}, sub("toggle", boolOpt("enabled", true))))

	if len(r.responses) != 1 || r.responses[0].Type != discordgo.InteractionResponseDeferredChannelMessageWithSource {
		t.Fatalf("responses = %+v", r.responses)
	}
	if r.responses[0].Data.Flags != discordgo.MessageFlagsEphemeral {
		t.Error("deferred reply is not ephemeral")
	}
	if len(r.edits) != 1 || *r.edits[0].Content != "✅ Raid protection **enabled**." {
		t.Errorf("edits = %+v", r.edits)
	}
}

func TestRespond_RejectsDirectMessages(t *testing.T) {
	mon := newFakeMonitor()
	h := NewHandler(mon, time.Second)
	r := &fakeResponder{}

	h.respond(r, interaction("", nil, sub("toggle", boolOpt("enabled", true))))

	if len(r.responses) != 1 || r.responses[0].Type != discordgo.InteractionResponseChannelMessageWithSource {
		t.Fatalf("responses = %+v", r.responses)
	}
	if mon.updateCalls != 0 || len(r.edits) != 0 {
		t.Error("DM invocation reached the monitor")
	}
}

func TestDefinitions(t *testing.T) {
	defs := Definitions()
	if len(defs) != 1 || defs[0].Name != CommandName {
		t.Fatalf("definitions = %+v", defs)
	}
	var names []string
	for _, o := range defs[0].Options {
		names = append(names, o.Name)
	}
	want := []string{"toggle", "action", "threshold", "account-age", "exempt-role", "exempt-channel", "alert-channel", "notify-role", "view", "lockdown", "incidents"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("subcommands (-want +got):\n%s", diff)
	}
}
