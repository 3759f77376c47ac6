package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go-antiraid/internal/models"
)

// InsertIncident appends an incident. Re-inserting the same id is a no-op, so
// a retried write never duplicates a record.
func (d *Database) InsertIncident(ctx context.Context, inc *models.RaidIncident) error {
	affected, err := json.Marshal(nonNil(inc.AffectedMemberIDs))
	if err != nil {
		return err
	}

	query := `
		INSERT OR IGNORE INTO raid_incidents
			(id, guild_id, incident_type, timestamp, details, action_taken, affected_member_ids, succeeded, failed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = d.db.ExecContext(ctx, query,
		inc.ID, inc.GuildID, string(inc.IncidentType), inc.Timestamp.UnixMilli(), inc.Details,
		inc.ActionTaken, string(affected), inc.Succeeded, inc.Failed,
	)
	if err != nil {
		return fmt.Errorf("insert incident %s: %w", inc.ID, err)
	}
	return nil
}

// ListIncidents returns a guild's incidents, most recent first.
func (d *Database) ListIncidents(ctx context.Context, guildID string, limit int) ([]*models.RaidIncident, error) {
	query := `
		SELECT id, incident_type, timestamp, details, action_taken, affected_member_ids, succeeded, failed
		FROM raid_incidents
		WHERE guild_id = ?
		ORDER BY timestamp DESC, rowid DESC
		LIMIT ?
	`

	rows, err := d.db.QueryContext(ctx, query, guildID, limit)
	if err != nil {
		return nil, fmt.Errorf("query incidents for guild %s: %w", guildID, err)
	}
	defer rows.Close()

	var incidents []*models.RaidIncident
	for rows.Next() {
		inc := &models.RaidIncident{GuildID: guildID}
		var incidentType, affected string
		var ts int64
		if err := rows.Scan(&inc.ID, &incidentType, &ts, &inc.Details, &inc.ActionTaken, &affected, &inc.Succeeded, &inc.Failed); err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		inc.IncidentType = models.IncidentType(incidentType)
		inc.Timestamp = time.UnixMilli(ts).UTC()
		if err := json.Unmarshal([]byte(affected), &inc.AffectedMemberIDs); err != nil {
			return nil, fmt.Errorf("decode affected members of incident %s: %w", inc.ID, err)
		}
		incidents = append(incidents, inc)
	}
	return incidents, rows.Err()
}
