package bot

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/discordgo"

	"go-antiraid/internal/decision"
	"go-antiraid/internal/logging"
	"go-antiraid/internal/models"
)

// JoinHandler is the raid monitor as seen from the gateway.
type JoinHandler interface {
	HandleJoin(ctx context.Context, ev *models.JoinEvent) (decision.Decision, *models.RaidIncident, error)
}

// EventHandlers turns gateway events into monitor calls.
type EventHandlers struct {
	monitor JoinHandler
	timeout time.Duration
	now     func() time.Time
}

func NewEventHandlers(monitor JoinHandler, timeout time.Duration) *EventHandlers {
	return &EventHandlers{
		monitor: monitor,
		timeout: timeout,
		now:     time.Now,
	}
}

// Register attaches every handler to the session.
func (h *EventHandlers) Register(s *Session) {
	s.AddHandler(h.OnReady)
	s.AddHandler(h.OnGuildMemberAdd)
}

func (h *EventHandlers) OnReady(_ *discordgo.Session, r *discordgo.Ready) {
	logging.Info("Gateway ready as %s in %d guilds", r.User.Username, len(r.Guilds))
}

func (h *EventHandlers) OnGuildMemberAdd(_ *discordgo.Session, m *discordgo.GuildMemberAdd) {
	ev, err := JoinEventFromMember(m.Member, h.now())
	if err != nil {
		logging.Warn("Dropping member join: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	d, inc, err := h.monitor.HandleJoin(ctx, ev)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrPersistence):
			logging.Error("Guild %s: join of %s handled but not fully persisted: %v", ev.GuildID, ev.MemberID, err)
		default:
			logging.Error("Guild %s: join of %s: %v", ev.GuildID, ev.MemberID, err)
		}
	}
	if inc != nil {
		logging.Info("Guild %s: incident %s recorded (%s, %d affected)", ev.GuildID, inc.ID, inc.ActionTaken, len(inc.AffectedMemberIDs))
		return
	}
	logging.Debug("Guild %s: join of %s -> %s (%s)", ev.GuildID, ev.MemberID, d.Kind, d.Reason)
}

// JoinEventFromMember builds a JoinEvent from a gateway member. The account
// creation time is read from the user's snowflake.
func JoinEventFromMember(m *discordgo.Member, now time.Time) (*models.JoinEvent, error) {
	if m == nil || m.User == nil {
		return nil, errors.New("member without user")
	}
	created, err := discordgo.SnowflakeTimestamp(m.User.ID)
	if err != nil {
		return nil, err
	}
	joinedAt := m.JoinedAt
	if joinedAt.IsZero() {
		joinedAt = now
	}
	return &models.JoinEvent{
		MemberID:         m.User.ID,
		GuildID:          m.GuildID,
		AccountCreatedAt: created,
		JoinedAt:         joinedAt,
		RoleIDs:          m.Roles,
		Bot:              m.User.Bot,
	}, nil
}
