package models

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	DefaultJoinThreshold     = 5
	DefaultJoinTimeWindowMs  = 10000
	MinJoinThreshold         = 3
	MinJoinTimeWindowMs      = 1000
	MaxJoinTimeWindowMs      = 300000
	MaxAccountAgeDays        = 365
	DefaultIncidentListLimit = 10
	MaxIncidentListLimit     = 25
)

// RaidSettings is the per-guild anti-raid configuration.
type RaidSettings struct {
	GuildID           string     `json:"guild_id" validate:"required,numeric"`
	Enabled           bool       `json:"enabled"`
	ActionType        ActionType `json:"action_type" validate:"required,oneof=lockdown ban kick"`
	JoinThreshold     int        `json:"join_threshold" validate:"min=3"`
	JoinTimeWindowMs  int        `json:"join_time_window_ms" validate:"min=1000,max=300000"`
	AccountAgeDaysMin int        `json:"account_age_days_min" validate:"min=0,max=365"`
	ExemptRoleIDs     []string   `json:"exempt_role_ids" validate:"dive,numeric"`
	ExemptChannelIDs  []string   `json:"exempt_channel_ids" validate:"dive,numeric"`
	AlertChannelID    string     `json:"alert_channel_id" validate:"omitempty,numeric"`
	NotifyRoleID      string     `json:"notify_role_id" validate:"omitempty,numeric"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// DefaultRaidSettings returns the settings a guild starts with.
func DefaultRaidSettings(guildID string) *RaidSettings {
	return &RaidSettings{
		GuildID:           guildID,
		Enabled:           false,
		ActionType:        ActionLockdown,
		JoinThreshold:     DefaultJoinThreshold,
		JoinTimeWindowMs:  DefaultJoinTimeWindowMs,
		AccountAgeDaysMin: 0,
		ExemptRoleIDs:     []string{},
		ExemptChannelIDs:  []string{},
	}
}

// Window returns the join window as a duration.
func (s *RaidSettings) Window() time.Duration {
	return time.Duration(s.JoinTimeWindowMs) * time.Millisecond
}

// Clone deep-copies the settings so cached values are never shared.
func (s *RaidSettings) Clone() *RaidSettings {
	if s == nil {
		return nil
	}
	c := *s
	c.ExemptRoleIDs = slices.Clone(s.ExemptRoleIDs)
	c.ExemptChannelIDs = slices.Clone(s.ExemptChannelIDs)
	if c.ExemptRoleIDs == nil {
		c.ExemptRoleIDs = []string{}
	}
	if c.ExemptChannelIDs == nil {
		c.ExemptChannelIDs = []string{}
	}
	return &c
}

// AddExemptRole adds roleID once; it reports whether the set changed.
func (s *RaidSettings) AddExemptRole(roleID string) bool {
	if slices.Contains(s.ExemptRoleIDs, roleID) {
		return false
	}
	s.ExemptRoleIDs = append(s.ExemptRoleIDs, roleID)
	return true
}

func (s *RaidSettings) RemoveExemptRole(roleID string) bool {
	before := len(s.ExemptRoleIDs)
	s.ExemptRoleIDs = slices.DeleteFunc(s.ExemptRoleIDs, func(id string) bool { return id == roleID })
	return len(s.ExemptRoleIDs) != before
}

func (s *RaidSettings) AddExemptChannel(channelID string) bool {
	if slices.Contains(s.ExemptChannelIDs, channelID) {
		return false
	}
	s.ExemptChannelIDs = append(s.ExemptChannelIDs, channelID)
	return true
}

func (s *RaidSettings) RemoveExemptChannel(channelID string) bool {
	before := len(s.ExemptChannelIDs)
	s.ExemptChannelIDs = slices.DeleteFunc(s.ExemptChannelIDs, func(id string) bool { return id == channelID })
	return len(s.ExemptChannelIDs) != before
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func settingsValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks every invariant and returns a ConfigurationError for the
// first violated field.
func (s *RaidSettings) Validate() error {
	err := settingsValidator().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ConfigurationError{Field: fe.Field(), Reason: describeTag(fe)}
	}
	return &ConfigurationError{Field: "settings", Reason: err.Error()}
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min":
		return fmt.Sprintf("must be at least %s (got %v)", fe.Param(), fe.Value())
	case "max":
		return fmt.Sprintf("must be at most %s (got %v)", fe.Param(), fe.Value())
	case "oneof":
		return fmt.Sprintf("must be one of [%s] (got %v)", fe.Param(), fe.Value())
	case "numeric":
		return fmt.Sprintf("must be a snowflake id (got %q)", fe.Value())
	case "required":
		return "is required"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
