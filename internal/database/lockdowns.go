package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go-antiraid/internal/state"
)

func (d *Database) SaveLockdown(ctx context.Context, guildID string, l *state.Locked) error {
	snapshots, err := json.Marshal(l.Snapshots)
	if err != nil {
		return err
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO lockdown_state (guild_id, reason, locked_at, snapshots)
		VALUES (?, ?, ?, ?)
	`, guildID, l.Reason, l.LockedAt.UnixMilli(), string(snapshots))
	if err != nil {
		return fmt.Errorf("save lockdown for guild %s: %w", guildID, err)
	}
	return nil
}

func (d *Database) DeleteLockdown(ctx context.Context, guildID string) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM lockdown_state WHERE guild_id = ?`, guildID); err != nil {
		return fmt.Errorf("delete lockdown for guild %s: %w", guildID, err)
	}
	return nil
}

// LoadLockdowns returns every persisted lockdown keyed by guild.
func (d *Database) LoadLockdowns(ctx context.Context) (map[string]*state.Locked, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT guild_id, reason, locked_at, snapshots FROM lockdown_state`)
	if err != nil {
		return nil, fmt.Errorf("query lockdowns: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*state.Locked)
	for rows.Next() {
		var guildID, snapshots string
		var lockedAt int64
		l := &state.Locked{}
		if err := rows.Scan(&guildID, &l.Reason, &lockedAt, &snapshots); err != nil {
			return nil, fmt.Errorf("scan lockdown: %w", err)
		}
		l.LockedAt = time.UnixMilli(lockedAt).UTC()
		if err := json.Unmarshal([]byte(snapshots), &l.Snapshots); err != nil {
			return nil, fmt.Errorf("decode snapshots for guild %s: %w", guildID, err)
		}
		out[guildID] = l
	}
	return out, rows.Err()
}
