package models

import (
	"fmt"
	"strings"
)

// ActionType is the mitigation applied when a raid fires.
type ActionType string

const (
	ActionLockdown ActionType = "lockdown"
	ActionBan      ActionType = "ban"
	ActionKick     ActionType = "kick"
)

func ParseActionType(s string) (ActionType, error) {
	switch ActionType(strings.ToLower(strings.TrimSpace(s))) {
	case ActionLockdown:
		return ActionLockdown, nil
	case ActionBan:
		return ActionBan, nil
	case ActionKick:
		return ActionKick, nil
	default:
		return "", &ConfigurationError{Field: "actionType", Reason: fmt.Sprintf("unknown action %q", s)}
	}
}

// Removes reports whether the action removes members rather than locking channels.
func (a ActionType) Removes() bool {
	return a == ActionBan || a == ActionKick
}

func (a ActionType) String() string {
	return string(a)
}
