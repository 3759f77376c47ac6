package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// IncidentType classifies an audit record.
type IncidentType string

const (
	IncidentRaidDetected   IncidentType = "raid_detected"
	IncidentManualLockdown IncidentType = "manual_lockdown"
	IncidentManualUnlock   IncidentType = "manual_unlock"
)

const (
	ActionTakenUnlock         = "unlock"
	ActionTakenLockdownFailed = "lockdown_failed"
	ActionTakenBanFailed      = "ban_failed"
	ActionTakenKickFailed     = "kick_failed"
)

// RemovalActionTaken is the incident action for a ban or kick run. A run in
// which every attempted removal failed is recorded as failed.
func RemovalActionTaken(action ActionType, o *Outcome) string {
	if o != nil && o.Succeeded == 0 && o.Failed > 0 {
		if action == ActionKick {
			return ActionTakenKickFailed
		}
		return ActionTakenBanFailed
	}
	return string(action)
}

// RaidIncident is an append-only audit record. It is never modified after
// it has been written.
type RaidIncident struct {
	ID                string       `json:"id"`
	GuildID           string       `json:"guild_id"`
	IncidentType      IncidentType `json:"incident_type"`
	Timestamp         time.Time    `json:"timestamp"`
	Details           string       `json:"details"`
	ActionTaken       string       `json:"action_taken"`
	AffectedMemberIDs []string     `json:"affected_member_ids"`
	Succeeded         int          `json:"succeeded"`
	Failed            int          `json:"failed"`
}

func NewRaidIncident(guildID string, incidentType IncidentType, details, actionTaken string, affected []string) *RaidIncident {
	if affected == nil {
		affected = []string{}
	}
	return &RaidIncident{
		ID:                uuid.NewString(),
		GuildID:           guildID,
		IncidentType:      incidentType,
		Timestamp:         time.Now().UTC(),
		Details:           details,
		ActionTaken:       actionTaken,
		AffectedMemberIDs: slices.Clone(affected),
	}
}

// Title is the short heading used in alerts and listings.
func (i *RaidIncident) Title() string {
	switch i.IncidentType {
	case IncidentRaidDetected:
		return "Raid Detected"
	case IncidentManualLockdown:
		return "Manual Lockdown"
	case IncidentManualUnlock:
		return "Lockdown Lifted"
	default:
		return string(i.IncidentType)
	}
}
