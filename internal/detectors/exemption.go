package detectors

import (
	"slices"

	"go-antiraid/internal/models"
)

// IsExemptMember reports whether any of the member's roles is exempt. Both the
// join path and the mitigation path call this one predicate.
func IsExemptMember(roleIDs []string, settings *models.RaidSettings) bool {
	if settings == nil || len(settings.ExemptRoleIDs) == 0 {
		return false
	}
	for _, id := range roleIDs {
		if slices.Contains(settings.ExemptRoleIDs, id) {
			return true
		}
	}
	return false
}

func IsExemptChannel(channelID string, settings *models.RaidSettings) bool {
	if settings == nil {
		return false
	}
	return slices.Contains(settings.ExemptChannelIDs, channelID)
}
