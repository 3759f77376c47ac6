package commands

import (
	"github.com/bwmarrin/discordgo"

	"go-antiraid/internal/models"
)

const CommandName = "antiraid"

func floatPtr(f float64) *float64 { return &f }

// Definitions returns the /antiraid application command.
func Definitions() []*discordgo.ApplicationCommand {
	manageGuild := int64(discordgo.PermissionManageServer)
	dmAllowed := false

	return []*discordgo.ApplicationCommand{
		{
			Name:                     CommandName,
			Description:              "Configure raid protection",
			DefaultMemberPermissions: &manageGuild,
			DMPermission:             &dmAllowed,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        "toggle",
					Description: "Turn raid detection on or off",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{
							Name:        "enabled",
							Description: "Whether raid detection is active",
							Type:        discordgo.ApplicationCommandOptionBoolean,
							Required:    true,
						},
					},
				},
				{
					Name:        "action",
					Description: "Choose what happens when a raid is detected",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{
							Name:        "type",
							Description: "Mitigation action",
							Type:        discordgo.ApplicationCommandOptionString,
							Required:    true,
							Choices: []*discordgo.ApplicationCommandOptionChoice{
								{Name: "Lockdown", Value: string(models.ActionLockdown)},
								{Name: "Ban", Value: string(models.ActionBan)},
								{Name: "Kick", Value: string(models.ActionKick)},
							},
						},
					},
				},
				{
					Name:        "threshold",
					Description: "Set how many joins within how many seconds count as a raid",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{
							Name:        "joins",
							Description: "Joins that trigger detection",
							Type:        discordgo.ApplicationCommandOptionInteger,
							Required:    true,
							MinValue:    floatPtr(models.MinJoinThreshold),
							MaxValue:    maxThresholdJoins,
						},
						{
							Name:        "seconds",
							Description: "Window length in seconds",
							Type:        discordgo.ApplicationCommandOptionInteger,
							Required:    true,
							MinValue:    floatPtr(1),
							MaxValue:    models.MaxJoinTimeWindowMs / 1000,
						},
					},
				},
				{
					Name:        "account-age",
					Description: "Weight joins from accounts younger than this many days (0 disables)",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{
							Name:        "days",
							Description: "Minimum account age in days",
							Type:        discordgo.ApplicationCommandOptionInteger,
							Required:    true,
							MinValue:    floatPtr(0),
							MaxValue:    models.MaxAccountAgeDays,
						},
					},
				},
				{
					Name:        "exempt-role",
					Description: "Manage roles that are never counted or removed",
					Type:        discordgo.ApplicationCommandOptionSubCommandGroup,
					Options:     addRemove("role", "Role", discordgo.ApplicationCommandOptionRole),
				},
				{
					Name:        "exempt-channel",
					Description: "Manage channels that lockdown leaves alone",
					Type:        discordgo.ApplicationCommandOptionSubCommandGroup,
					Options:     addRemove("channel", "Channel", discordgo.ApplicationCommandOptionChannel),
				},
				{
					Name:        "alert-channel",
					Description: "Set the channel raid alerts are posted to (omit to clear)",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{
							Name:        "channel",
							Description: "Alert channel",
							Type:        discordgo.ApplicationCommandOptionChannel,
							ChannelTypes: []discordgo.ChannelType{
								discordgo.ChannelTypeGuildText,
								discordgo.ChannelTypeGuildNews,
							},
						},
					},
				},
				{
					Name:        "notify-role",
					Description: "Set the role pinged on alerts (omit to clear)",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{
							Name:        "role",
							Description: "Role to ping",
							Type:        discordgo.ApplicationCommandOptionRole,
						},
					},
				},
				{
					Name:        "view",
					Description: "Show the current raid protection settings",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
				},
				{
					Name:        "lockdown",
					Description: "Lock or unlock the server by hand",
					Type:        discordgo.ApplicationCommandOptionSubCommandGroup,
					Options: []*discordgo.ApplicationCommandOption{
						{
							Name:        "enable",
							Description: "Lock every channel for @everyone",
							Type:        discordgo.ApplicationCommandOptionSubCommand,
							Options: []*discordgo.ApplicationCommandOption{
								{
									Name:        "reason",
									Description: "Reason shown in the audit trail",
									Type:        discordgo.ApplicationCommandOptionString,
									MaxLength:   400,
								},
							},
						},
						{
							Name:        "disable",
							Description: "Restore every channel locked by the lockdown",
							Type:        discordgo.ApplicationCommandOptionSubCommand,
						},
					},
				},
				{
					Name:        "incidents",
					Description: "List recent raid incidents",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{
							Name:        "limit",
							Description: "How many incidents to show",
							Type:        discordgo.ApplicationCommandOptionInteger,
							MinValue:    floatPtr(1),
							MaxValue:    models.MaxIncidentListLimit,
						},
					},
				},
			},
		},
	}
}

const maxThresholdJoins = 50

func addRemove(option, label string, typ discordgo.ApplicationCommandOptionType) []*discordgo.ApplicationCommandOption {
	return []*discordgo.ApplicationCommandOption{
		{
			Name:        "add",
			Description: "Add an exempt " + option,
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Options: []*discordgo.ApplicationCommandOption{
				{Name: option, Description: label, Type: typ, Required: true},
			},
		},
		{
			Name:        "remove",
			Description: "Remove an exempt " + option,
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Options: []*discordgo.ApplicationCommandOption{
				{Name: option, Description: label, Type: typ, Required: true},
			},
		},
	}
}
