package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"go-antiraid/internal/correlator"
)

func (h *Handler) view(ctx context.Context, inv Invocation) (*Reply, error) {
	st, err := h.monitor.Status(ctx, inv.GuildID)
	if err != nil {
		return nil, err
	}
	return &Reply{Embeds: []*discordgo.MessageEmbed{statusEmbed(st)}}, nil
}

func statusEmbed(st *correlator.GuildStatus) *discordgo.MessageEmbed {
	s := st.Settings

	protection := "Disabled"
	if s.Enabled {
		protection = "**Enabled**"
	}
	lockdown := "Not active"
	if st.Locked {
		lockdown = fmt.Sprintf("🔒 **Active** since <t:%d:R>\n%d channels locked\nReason: %s",
			st.LockedAt.Unix(), st.LockedChannels, st.LockReason)
	}
	accountAge := "Disabled"
	if s.AccountAgeDaysMin > 0 {
		accountAge = fmt.Sprintf("%d days", s.AccountAgeDaysMin)
	}
	window := fmt.Sprintf("%d joins within %s", s.JoinThreshold, time.Duration(s.JoinTimeWindowMs)*time.Millisecond)
	if st.WindowCount > 0 {
		window += fmt.Sprintf("\nCurrently counted: %d", st.WindowCount)
	}

	return &discordgo.MessageEmbed{
		Title:       "Raid Protection Status",
		Description: "Current anti-raid configuration for this server.",
		Color:       0x2B2D31,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Protection", Value: protection, Inline: true},
			{Name: "Action", Value: fmt.Sprintf("`%s`", s.ActionType), Inline: true},
			{Name: "Account Age", Value: accountAge, Inline: true},
			{Name: "Threshold", Value: window},
			{Name: "Lockdown", Value: lockdown},
			{Name: "Exempt Roles", Value: mentions(s.ExemptRoleIDs, "<@&%s>"), Inline: true},
			{Name: "Exempt Channels", Value: mentions(s.ExemptChannelIDs, "<#%s>"), Inline: true},
			{Name: "Alerts", Value: alertTarget(s.AlertChannelID, s.NotifyRoleID)},
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

func mentions(ids []string, format string) string {
	if len(ids) == 0 {
		return "None"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf(format, id)
	}
	return strings.Join(parts, " ")
}

func alertTarget(channelID, roleID string) string {
	if channelID == "" {
		return "Not configured"
	}
	out := fmt.Sprintf("<#%s>", channelID)
	if roleID != "" {
		out += fmt.Sprintf(", pinging <@&%s>", roleID)
	}
	return out
}
