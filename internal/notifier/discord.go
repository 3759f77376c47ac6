package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"go-antiraid/internal/logging"
	"go-antiraid/internal/metrics"
	"go-antiraid/internal/models"
)

const (
	colorRaid     = 0xED4245
	colorLockdown = 0xFEE75C
	colorUnlock   = 0x57F287

	maxListedMembers = 20
)

// MessageSender is the part of *discordgo.Session the notifier uses.
type MessageSender interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// AlertNotifier posts incident alerts to a guild's alert channel.
type AlertNotifier struct {
	sender MessageSender
}

func NewAlertNotifier(sender MessageSender) *AlertNotifier {
	return &AlertNotifier{sender: sender}
}

// Notify sends the incident to the guild's alert channel, pinging the notify
// role when one is set. Guilds without an alert channel are skipped.
func (n *AlertNotifier) Notify(ctx context.Context, settings *models.RaidSettings, incident *models.RaidIncident) error {
	if n.sender == nil || settings == nil || settings.AlertChannelID == "" {
		metrics.Notifications.WithLabelValues("skipped").Inc()
		return nil
	}

	msg := BuildAlert(settings, incident)
	if _, err := n.sender.ChannelMessageSendComplex(settings.AlertChannelID, msg, discordgo.WithContext(ctx)); err != nil {
		metrics.Notifications.WithLabelValues("failure").Inc()
		return fmt.Errorf("send alert to channel %s: %w", settings.AlertChannelID, err)
	}

	metrics.Notifications.WithLabelValues("sent").Inc()
	logging.Debug("Alert for incident %s sent to channel %s", incident.ID, settings.AlertChannelID)
	return nil
}

// BuildAlert renders an incident as a Discord message.
func BuildAlert(settings *models.RaidSettings, incident *models.RaidIncident) *discordgo.MessageSend {
	color := colorRaid
	emoji := "🚨"
	switch incident.IncidentType {
	case models.IncidentManualLockdown:
		color, emoji = colorLockdown, "🔒"
	case models.IncidentManualUnlock:
		color, emoji = colorUnlock, "🔓"
	}

	fields := []*discordgo.MessageEmbedField{
		{
			Name:   "⚙️ Action Taken",
			Value:  fmt.Sprintf("`%s`", incident.ActionTaken),
			Inline: true,
		},
	}
	if incident.IncidentType == models.IncidentRaidDetected {
		fields = append(fields,
			&discordgo.MessageEmbedField{
				Name:   "👥 Affected Members",
				Value:  fmt.Sprintf("**%d**", len(incident.AffectedMemberIDs)),
				Inline: true,
			},
			&discordgo.MessageEmbedField{
				Name:   "📊 Results",
				Value:  fmt.Sprintf("✅ %d  ❌ %d", incident.Succeeded, incident.Failed),
				Inline: true,
			},
		)
		if len(incident.AffectedMemberIDs) > 0 {
			fields = append(fields, &discordgo.MessageEmbedField{
				Name:  "📋 Members",
				Value: mentionList(incident.AffectedMemberIDs),
			})
		}
	}
	fields = append(fields, &discordgo.MessageEmbedField{
		Name:  "🕐 Timestamp",
		Value: fmt.Sprintf("<t:%d:F>", incident.Timestamp.Unix()),
	})

	msg := &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       fmt.Sprintf("%s %s", emoji, incident.Title()),
			Color:       color,
			Description: incident.Details,
			Fields:      fields,
			Footer:      &discordgo.MessageEmbedFooter{Text: "Incident " + incident.ID},
			Timestamp:   incident.Timestamp.Format(time.RFC3339),
		}},
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}

	if settings.NotifyRoleID != "" {
		msg.Content = fmt.Sprintf("<@&%s>", settings.NotifyRoleID)
		msg.AllowedMentions.Roles = []string{settings.NotifyRoleID}
	}
	return msg
}

func mentionList(ids []string) string {
	shown := ids
	if len(shown) > maxListedMembers {
		shown = shown[:maxListedMembers]
	}
	var b strings.Builder
	for i, id := range shown {
		if i > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "<@%s>", id)
	}
	if extra := len(ids) - len(shown); extra > 0 {
		fmt.Fprintf(&b, " and %d more", extra)
	}
	return b.String()
}
