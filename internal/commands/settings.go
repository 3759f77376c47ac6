package commands

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"go-antiraid/internal/models"
)

type optionSet = map[string]*discordgo.ApplicationCommandInteractionDataOption

func (h *Handler) toggle(ctx context.Context, inv Invocation, opts optionSet) (*Reply, error) {
	enabled := opts["enabled"] != nil && opts["enabled"].BoolValue()
	if _, err := h.monitor.UpdateSettings(ctx, inv.GuildID, func(s *models.RaidSettings) error {
		s.Enabled = enabled
		return nil
	}); err != nil {
		return nil, err
	}
	if enabled {
		return &Reply{Content: "✅ Raid protection **enabled**."}, nil
	}
	return &Reply{Content: "⏸️ Raid protection **disabled**. Join tracking has been reset."}, nil
}

func (h *Handler) action(ctx context.Context, inv Invocation, opts optionSet) (*Reply, error) {
	if opts["type"] == nil {
		return nil, &models.ConfigurationError{Field: "action_type", Reason: "is required"}
	}
	action, err := models.ParseActionType(opts["type"].StringValue())
	if err != nil {
		return nil, err
	}
	if _, err := h.monitor.UpdateSettings(ctx, inv.GuildID, func(s *models.RaidSettings) error {
		s.ActionType = action
		return nil
	}); err != nil {
		return nil, err
	}
	return &Reply{Content: fmt.Sprintf("✅ Raid action set to **%s**.", action)}, nil
}

func (h *Handler) threshold(ctx context.Context, inv Invocation, opts optionSet) (*Reply, error) {
	if opts["joins"] == nil || opts["seconds"] == nil {
		return nil, &models.ConfigurationError{Field: "join_threshold", Reason: "joins and seconds are required"}
	}
	joins := int(opts["joins"].IntValue())
	seconds := int(opts["seconds"].IntValue())
	if joins > maxThresholdJoins {
		return nil, &models.ConfigurationError{Field: "join_threshold", Reason: fmt.Sprintf("must be at most %d", maxThresholdJoins)}
	}

	if _, err := h.monitor.UpdateSettings(ctx, inv.GuildID, func(s *models.RaidSettings) error {
		s.JoinThreshold = joins
		s.JoinTimeWindowMs = seconds * 1000
		return nil
	}); err != nil {
		return nil, err
	}
	return &Reply{Content: fmt.Sprintf("✅ A raid is now **%d joins within %d seconds**.", joins, seconds)}, nil
}

func (h *Handler) accountAge(ctx context.Context, inv Invocation, opts optionSet) (*Reply, error) {
	if opts["days"] == nil {
		return nil, &models.ConfigurationError{Field: "account_age_days_min", Reason: "is required"}
	}
	days := int(opts["days"].IntValue())
	if _, err := h.monitor.UpdateSettings(ctx, inv.GuildID, func(s *models.RaidSettings) error {
		s.AccountAgeDaysMin = days
		return nil
	}); err != nil {
		return nil, err
	}
	if days == 0 {
		return &Reply{Content: "✅ Account age weighting **disabled**."}, nil
	}
	return &Reply{Content: fmt.Sprintf("✅ Accounts younger than **%d days** now count extra toward the threshold.", days)}, nil
}

func (h *Handler) exemptRole(ctx context.Context, inv Invocation, add bool, opts optionSet) (*Reply, error) {
	roleID := idValue(opts["role"])
	if roleID == "" {
		return nil, &models.ConfigurationError{Field: "exempt_role_ids", Reason: "a role is required"}
	}

	var changed bool
	if _, err := h.monitor.UpdateSettings(ctx, inv.GuildID, func(s *models.RaidSettings) error {
		if add {
			changed = s.AddExemptRole(roleID)
		} else {
			changed = s.RemoveExemptRole(roleID)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &Reply{Content: setChangeMessage(fmt.Sprintf("<@&%s>", roleID), "exempt roles", add, changed)}, nil
}

func (h *Handler) exemptChannel(ctx context.Context, inv Invocation, add bool, opts optionSet) (*Reply, error) {
	channelID := idValue(opts["channel"])
	if channelID == "" {
		return nil, &models.ConfigurationError{Field: "exempt_channel_ids", Reason: "a channel is required"}
	}

	var changed bool
	if _, err := h.monitor.UpdateSettings(ctx, inv.GuildID, func(s *models.RaidSettings) error {
		if add {
			changed = s.AddExemptChannel(channelID)
		} else {
			changed = s.RemoveExemptChannel(channelID)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &Reply{Content: setChangeMessage(fmt.Sprintf("<#%s>", channelID), "exempt channels", add, changed)}, nil
}

func setChangeMessage(mention, set string, add, changed bool) string {
	switch {
	case add && changed:
		return fmt.Sprintf("✅ Added %s to %s.", mention, set)
	case add:
		return fmt.Sprintf("ℹ️ %s is already in %s.", mention, set)
	case changed:
		return fmt.Sprintf("✅ Removed %s from %s.", mention, set)
	default:
		return fmt.Sprintf("ℹ️ %s is not in %s.", mention, set)
	}
}

func (h *Handler) alertChannel(ctx context.Context, inv Invocation, opts optionSet) (*Reply, error) {
	channelID := idValue(opts["channel"])
	if _, err := h.monitor.UpdateSettings(ctx, inv.GuildID, func(s *models.RaidSettings) error {
		s.AlertChannelID = channelID
		return nil
	}); err != nil {
		return nil, err
	}
	if channelID == "" {
		return &Reply{Content: "✅ Alert channel cleared. Raid alerts will not be posted."}, nil
	}
	return &Reply{Content: fmt.Sprintf("✅ Raid alerts will be posted to <#%s>.", channelID)}, nil
}

func (h *Handler) notifyRole(ctx context.Context, inv Invocation, opts optionSet) (*Reply, error) {
	roleID := idValue(opts["role"])
	if _, err := h.monitor.UpdateSettings(ctx, inv.GuildID, func(s *models.RaidSettings) error {
		s.NotifyRoleID = roleID
		return nil
	}); err != nil {
		return nil, err
	}
	if roleID == "" {
		return &Reply{Content: "✅ Notify role cleared."}, nil
	}
	return &Reply{Content: fmt.Sprintf("✅ <@&%s> will be pinged on raid alerts.", roleID)}, nil
}
