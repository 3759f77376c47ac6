// Package dispatchertest provides an in-memory dispatcher.Platform for tests.
package dispatchertest

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"

	"go-antiraid/internal/dispatcher"
)

// Platform is a fake guild: a set of channels with @everyone overwrites, a set
// of members with roles, and records of every ban and kick.
type Platform struct {
	mu       sync.Mutex
	channels map[string][]dispatcher.Channel
	members  map[string]map[string][]string
	banned   map[string][]string
	kicked   map[string][]string

	// FailSet, FailRemove and FailList make the matching call return an error
	// for the given channel or member id ("*" for every id).
	FailSet    map[string]error
	FailRemove map[string]error
	FailList   error

	SetCalls    atomic.Int64
	DeleteCalls atomic.Int64
}

// ErrNotFound is returned for unknown channels and members.
var ErrNotFound = &dispatcher.StatusError{Route: "fake", StatusCode: http.StatusNotFound, Body: "unknown"}

func New() *Platform {
	return &Platform{
		channels:   make(map[string][]dispatcher.Channel),
		members:    make(map[string]map[string][]string),
		banned:     make(map[string][]string),
		kicked:     make(map[string][]string),
		FailSet:    make(map[string]error),
		FailRemove: make(map[string]error),
	}
}

func (p *Platform) AddChannel(guildID string, ch dispatcher.Channel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ch.Everyone != nil {
		ow := *ch.Everyone
		ch.Everyone = &ow
	}
	p.channels[guildID] = append(p.channels[guildID], ch)
}

func (p *Platform) AddMember(guildID, memberID string, roles ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.members[guildID] == nil {
		p.members[guildID] = make(map[string][]string)
	}
	p.members[guildID][memberID] = roles
}

// Overwrite returns a copy of the channel's @everyone overwrite.
func (p *Platform) Overwrite(guildID, channelID string) (*dispatcher.Overwrite, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.channels[guildID] {
		if ch.ID == channelID {
			if ch.Everyone == nil {
				return nil, true
			}
			ow := *ch.Everyone
			return &ow, true
		}
	}
	return nil, false
}

func (p *Platform) Banned(guildID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return sorted(p.banned[guildID])
}

func (p *Platform) Kicked(guildID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return sorted(p.kicked[guildID])
}

func sorted(ids []string) []string {
	out := slices.Clone(ids)
	slices.Sort(out)
	return out
}

func (p *Platform) GuildChannels(ctx context.Context, guildID string) ([]dispatcher.Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailList != nil {
		return nil, p.FailList
	}
	out := make([]dispatcher.Channel, 0, len(p.channels[guildID]))
	for _, ch := range p.channels[guildID] {
		if ch.Everyone != nil {
			ow := *ch.Everyone
			ch.Everyone = &ow
		}
		out = append(out, ch)
	}
	return out, nil
}

func (p *Platform) SetEveryoneOverwrite(ctx context.Context, guildID, channelID string, ow dispatcher.Overwrite) error {
	p.SetCalls.Add(1)
	return p.updateChannel(ctx, guildID, channelID, &ow)
}

func (p *Platform) DeleteEveryoneOverwrite(ctx context.Context, guildID, channelID string) error {
	p.DeleteCalls.Add(1)
	return p.updateChannel(ctx, guildID, channelID, nil)
}

func (p *Platform) updateChannel(ctx context.Context, guildID, channelID string, ow *dispatcher.Overwrite) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := failFor(p.FailSet, channelID); err != nil {
		return err
	}
	for i, ch := range p.channels[guildID] {
		if ch.ID == channelID {
			p.channels[guildID][i].Everyone = ow
			return nil
		}
	}
	return fmt.Errorf("channel %s: %w", channelID, ErrNotFound)
}

func (p *Platform) MemberRoles(ctx context.Context, guildID, memberID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	roles, ok := p.members[guildID][memberID]
	if !ok {
		return nil, fmt.Errorf("member %s: %w", memberID, ErrNotFound)
	}
	return slices.Clone(roles), nil
}

func (p *Platform) Ban(ctx context.Context, guildID, memberID, _ string) error {
	return p.remove(ctx, p.banned, guildID, memberID)
}

func (p *Platform) Kick(ctx context.Context, guildID, memberID, _ string) error {
	return p.remove(ctx, p.kicked, guildID, memberID)
}

func (p *Platform) remove(ctx context.Context, into map[string][]string, guildID, memberID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := failFor(p.FailRemove, memberID); err != nil {
		return err
	}
	into[guildID] = append(into[guildID], memberID)
	delete(p.members[guildID], memberID)
	return nil
}

func failFor(fail map[string]error, id string) error {
	if err, ok := fail[id]; ok {
		return err
	}
	return fail["*"]
}

// Snapshot returns every channel overwrite of a guild keyed by channel id.
func (p *Platform) Snapshot(guildID string) map[string]*dispatcher.Overwrite {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]*dispatcher.Overwrite, len(p.channels[guildID]))
	for _, ch := range p.channels[guildID] {
		if ch.Everyone == nil {
			out[ch.ID] = nil
			continue
		}
		ow := *ch.Everyone
		out[ch.ID] = &ow
	}
	return out
}
