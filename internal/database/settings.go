package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go-antiraid/internal/models"
)

// GetRaidSettings loads a guild's settings. found is false when the guild has
// never been configured.
func (d *Database) GetRaidSettings(ctx context.Context, guildID string) (*models.RaidSettings, bool, error) {
	query := `
		SELECT enabled, action_type, join_threshold, join_time_window_ms, account_age_days_min,
		       exempt_role_ids, exempt_channel_ids, alert_channel_id, notify_role_id, created_at, updated_at
		FROM raid_settings WHERE guild_id = ?
	`

	s := &models.RaidSettings{GuildID: guildID}
	var enabled int
	var action, roles, channels string
	var createdAt, updatedAt int64

	err := d.db.QueryRowContext(ctx, query, guildID).Scan(
		&enabled, &action, &s.JoinThreshold, &s.JoinTimeWindowMs, &s.AccountAgeDaysMin,
		&roles, &channels, &s.AlertChannelID, &s.NotifyRoleID, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query raid settings for guild %s: %w", guildID, err)
	}

	s.Enabled = enabled == 1
	s.ActionType = models.ActionType(action)
	s.CreatedAt = time.UnixMilli(createdAt).UTC()
	s.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	if err := json.Unmarshal([]byte(roles), &s.ExemptRoleIDs); err != nil {
		return nil, false, fmt.Errorf("decode exempt roles for guild %s: %w", guildID, err)
	}
	if err := json.Unmarshal([]byte(channels), &s.ExemptChannelIDs); err != nil {
		return nil, false, fmt.Errorf("decode exempt channels for guild %s: %w", guildID, err)
	}
	return s, true, nil
}

// SaveRaidSettings upserts a guild's settings, keeping the original created_at.
func (d *Database) SaveRaidSettings(ctx context.Context, s *models.RaidSettings) error {
	roles, err := json.Marshal(nonNil(s.ExemptRoleIDs))
	if err != nil {
		return err
	}
	channels, err := json.Marshal(nonNil(s.ExemptChannelIDs))
	if err != nil {
		return err
	}

	now := time.Now().UnixMilli()
	createdAt := now
	if !s.CreatedAt.IsZero() {
		createdAt = s.CreatedAt.UnixMilli()
	}

	query := `
		INSERT INTO raid_settings (guild_id, enabled, action_type, join_threshold, join_time_window_ms,
			account_age_days_min, exempt_role_ids, exempt_channel_ids, alert_channel_id, notify_role_id,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET
			enabled = excluded.enabled,
			action_type = excluded.action_type,
			join_threshold = excluded.join_threshold,
			join_time_window_ms = excluded.join_time_window_ms,
			account_age_days_min = excluded.account_age_days_min,
			exempt_role_ids = excluded.exempt_role_ids,
			exempt_channel_ids = excluded.exempt_channel_ids,
			alert_channel_id = excluded.alert_channel_id,
			notify_role_id = excluded.notify_role_id,
			updated_at = excluded.updated_at
	`

	_, err = d.db.ExecContext(ctx, query,
		s.GuildID, boolToInt(s.Enabled), string(s.ActionType), s.JoinThreshold, s.JoinTimeWindowMs,
		s.AccountAgeDaysMin, string(roles), string(channels), s.AlertChannelID, s.NotifyRoleID,
		createdAt, now,
	)
	if err != nil {
		return fmt.Errorf("save raid settings for guild %s: %w", s.GuildID, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
