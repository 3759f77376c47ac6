package models

import "time"

// JoinEvent is one member joining a guild. It is aggregated into the join
// window and never stored on its own.
type JoinEvent struct {
	MemberID         string
	GuildID          string
	AccountCreatedAt time.Time
	JoinedAt         time.Time
	RoleIDs          []string
	// Bot is set for bot accounts, which only join through an authorized
	// OAuth install and are never counted.
	Bot bool
}

// AccountAge returns the account age at now, never negative.
func (e *JoinEvent) AccountAge(now time.Time) time.Duration {
	if e.AccountCreatedAt.IsZero() {
		return 0
	}
	age := now.Sub(e.AccountCreatedAt)
	if age < 0 {
		return 0
	}
	return age
}

// AccountAgeDays truncates the account age to whole days.
func (e *JoinEvent) AccountAgeDays(now time.Time) int {
	return int(e.AccountAge(now) / (24 * time.Hour))
}

// Target is a mitigation candidate: a member seen inside the join window.
type Target struct {
	MemberID string
	JoinedAt time.Time
	RoleIDs  []string
	HighRisk bool
}
