package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"go-antiraid/internal/models"
)

func (h *Handler) incidents(ctx context.Context, inv Invocation, opts optionSet) (*Reply, error) {
	limit := models.DefaultIncidentListLimit
	if o := opts["limit"]; o != nil {
		limit = int(o.IntValue())
	}

	list, err := h.monitor.ListIncidents(ctx, inv.GuildID, limit)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return &Reply{Content: "No raid incidents recorded for this server."}, nil
	}
	return &Reply{Embeds: []*discordgo.MessageEmbed{incidentsEmbed(list)}}, nil
}

func incidentsEmbed(list []*models.RaidIncident) *discordgo.MessageEmbed {
	var b strings.Builder
	for _, inc := range list {
		fmt.Fprintf(&b, "**%s** <t:%d:f> `%s`", inc.Title(), inc.Timestamp.Unix(), inc.ActionTaken)
		if inc.IncidentType == models.IncidentRaidDetected {
			fmt.Fprintf(&b, " %d affected", len(inc.AffectedMemberIDs))
			if inc.Failed > 0 {
				fmt.Fprintf(&b, " (%d failed)", inc.Failed)
			}
		}
		b.WriteString("\n")
		if inc.Details != "" {
			fmt.Fprintf(&b, "└ %s\n", inc.Details)
		}
	}

	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Recent Raid Incidents (%d)", len(list)),
		Description: b.String(),
		Color:       0x2B2D31,
	}
}
