package dispatcher

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// DiscordPlatform implements Platform on a discordgo session. Bans and kicks
// go through the fasthttp REST client when one is configured.
type DiscordPlatform struct {
	session           *discordgo.Session
	rest              *RESTClient
	deleteMessageDays int
}

func NewDiscordPlatform(session *discordgo.Session, rest *RESTClient, deleteMessageDays int) *DiscordPlatform {
	return &DiscordPlatform{
		session:           session,
		rest:              rest,
		deleteMessageDays: deleteMessageDays,
	}
}

func (p *DiscordPlatform) GuildChannels(ctx context.Context, guildID string) ([]Channel, error) {
	raw, err := p.session.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("list channels of guild %s: %w", guildID, err)
	}

	channels := make([]Channel, 0, len(raw))
	for _, ch := range raw {
		c := Channel{ID: ch.ID, Name: ch.Name, Type: ch.Type}
		for _, ow := range ch.PermissionOverwrites {
			if ow.Type == discordgo.PermissionOverwriteTypeRole && ow.ID == guildID {
				c.Everyone = &Overwrite{Allow: ow.Allow, Deny: ow.Deny}
				break
			}
		}
		channels = append(channels, c)
	}
	return channels, nil
}

// The @everyone role shares the guild's id.
func (p *DiscordPlatform) SetEveryoneOverwrite(ctx context.Context, guildID, channelID string, ow Overwrite) error {
	return p.session.ChannelPermissionSet(channelID, guildID, discordgo.PermissionOverwriteTypeRole,
		ow.Allow, ow.Deny, discordgo.WithContext(ctx))
}

func (p *DiscordPlatform) DeleteEveryoneOverwrite(ctx context.Context, guildID, channelID string) error {
	return p.session.ChannelPermissionDelete(channelID, guildID, discordgo.WithContext(ctx))
}

func (p *DiscordPlatform) MemberRoles(ctx context.Context, guildID, memberID string) ([]string, error) {
	m, err := p.session.GuildMember(guildID, memberID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	return m.Roles, nil
}

func (p *DiscordPlatform) Ban(ctx context.Context, guildID, memberID, reason string) error {
	if p.rest != nil {
		return p.rest.Ban(ctx, guildID, memberID, reason)
	}
	return p.session.GuildBanCreateWithReason(guildID, memberID, reason, p.deleteMessageDays, discordgo.WithContext(ctx))
}

func (p *DiscordPlatform) Kick(ctx context.Context, guildID, memberID, reason string) error {
	if p.rest != nil {
		return p.rest.Kick(ctx, guildID, memberID, reason)
	}
	return p.session.GuildMemberDeleteWithReason(guildID, memberID, reason, discordgo.WithContext(ctx))
}
