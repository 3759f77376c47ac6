package detectors

import (
	"time"

	"go-antiraid/internal/models"
)

// IsHighRisk reports whether the account is younger than the guild's minimum
// account age. A minimum of zero disables the signal.
func IsHighRisk(ev *models.JoinEvent, settings *models.RaidSettings, now time.Time) bool {
	if settings.AccountAgeDaysMin <= 0 {
		return false
	}
	return ev.AccountAgeDays(now) < settings.AccountAgeDaysMin
}

// JoinWeight is how much a join counts toward the threshold.
func JoinWeight(highRisk bool, highRiskWeight int) int {
	if highRisk && highRiskWeight > 1 {
		return highRiskWeight
	}
	return 1
}

// ThresholdReached is the inclusive raid comparison.
func ThresholdReached(count, threshold int) bool {
	return count >= threshold
}
