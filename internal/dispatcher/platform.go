package dispatcher

import (
	"context"
	"errors"
	"net/http"

	"github.com/bwmarrin/discordgo"
)

// Overwrite is a channel permission overwrite for one role.
type Overwrite struct {
	Allow int64
	Deny  int64
}

// Channel is a guild channel with its current @everyone overwrite, nil when
// the channel has none.
type Channel struct {
	ID       string
	Name     string
	Type     discordgo.ChannelType
	Everyone *Overwrite
}

// Platform is every call the raid engine makes against Discord. Each call is
// bounded by ctx and reports its own error.
type Platform interface {
	GuildChannels(ctx context.Context, guildID string) ([]Channel, error)
	SetEveryoneOverwrite(ctx context.Context, guildID, channelID string, ow Overwrite) error
	DeleteEveryoneOverwrite(ctx context.Context, guildID, channelID string) error
	MemberRoles(ctx context.Context, guildID, memberID string) ([]string, error)
	Ban(ctx context.Context, guildID, memberID, reason string) error
	Kick(ctx context.Context, guildID, memberID, reason string) error
}

var (
	ErrRateLimited = errors.New("rate limited")
	ErrSkipped     = errors.New("target skipped")
)

// IsNotFound reports whether err is a 404 from Discord, from either the
// discordgo session or the fasthttp client.
func IsNotFound(err error) bool {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		return restErr.Response.StatusCode == http.StatusNotFound
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusNotFound
	}
	return false
}
