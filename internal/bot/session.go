package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"go-antiraid/internal/logging"
)

// Session owns the Discord gateway connection.
type Session struct {
	discord *discordgo.Session
	BotID   string
}

// New creates a session with the intents the raid monitor needs: guild
// channels and member joins.
func New(token string) (*Session, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers

	return &Session{discord: dg}, nil
}

func (s *Session) Discord() *discordgo.Session {
	return s.discord
}

// Connect opens the gateway websocket.
func (s *Session) Connect() error {
	if err := s.discord.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}
	if s.discord.State.User != nil {
		s.BotID = s.discord.State.User.ID
		logging.Info("Bot ID: %s", s.BotID)
	}
	logging.Info("Discord bot connected successfully")
	return nil
}

func (s *Session) Close() error {
	if s.discord != nil {
		return s.discord.Close()
	}
	return nil
}

// RegisterCommands registers slash commands globally, or in one guild when
// guildID is set.
func (s *Session) RegisterCommands(guildID string, commands []*discordgo.ApplicationCommand) error {
	logging.Info("Registering %d slash commands...", len(commands))

	for _, cmd := range commands {
		if _, err := s.discord.ApplicationCommandCreate(s.discord.State.User.ID, guildID, cmd); err != nil {
			return fmt.Errorf("failed to register command %s: %w", cmd.Name, err)
		}
		logging.Info("Registered command: /%s", cmd.Name)
	}
	return nil
}

// AddHandler adds an event handler and returns its remover.
func (s *Session) AddHandler(handler interface{}) func() {
	return s.discord.AddHandler(handler)
}

// Heartbeater receives liveness signals.
type Heartbeater interface {
	Heartbeat(name string)
}

// GatewayProbe reports the gateway healthy while Discord keeps acknowledging
// heartbeats.
type GatewayProbe struct {
	lastAck  func() time.Time
	health   Heartbeater
	interval time.Duration
	maxAge   time.Duration
	now      func() time.Time
}

func NewGatewayProbe(s *Session, health Heartbeater, interval time.Duration) *GatewayProbe {
	return &GatewayProbe{
		lastAck: func() time.Time {
			s.discord.RLock()
			defer s.discord.RUnlock()
			return s.discord.LastHeartbeatAck
		},
		health:   health,
		interval: interval,
		maxAge:   2 * time.Minute,
		now:      time.Now,
	}
}

func (p *GatewayProbe) Serve(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.Check()
		}
	}
}

// Check beats when the last heartbeat ack is recent.
func (p *GatewayProbe) Check() bool {
	ack := p.lastAck()
	if ack.IsZero() || p.now().Sub(ack) > p.maxAge {
		return false
	}
	p.health.Heartbeat(p.String())
	return true
}

func (p *GatewayProbe) String() string {
	return "gateway"
}
