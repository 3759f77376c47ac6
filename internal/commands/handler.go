package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"go-antiraid/internal/correlator"
	"go-antiraid/internal/logging"
	"go-antiraid/internal/models"
)

// RaidMonitor is what the command surface needs from the monitor.
type RaidMonitor interface {
	UpdateSettings(ctx context.Context, guildID string, fn func(s *models.RaidSettings) error) (*models.RaidSettings, error)
	ManualLockdown(ctx context.Context, guildID, actorID, reason string) (*correlator.Report, error)
	ManualUnlock(ctx context.Context, guildID, actorID string) (*correlator.Report, error)
	ListIncidents(ctx context.Context, guildID string, limit int) ([]*models.RaidIncident, error)
	Status(ctx context.Context, guildID string) (*correlator.GuildStatus, error)
}

// Responder is the part of *discordgo.Session used to answer interactions.
type Responder interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Invocation is one /antiraid call.
type Invocation struct {
	GuildID string
	UserID  string
	Data    discordgo.ApplicationCommandInteractionData
}

// Reply is the ephemeral answer to an invocation.
type Reply struct {
	Content string
	Embeds  []*discordgo.MessageEmbed
}

// Handler routes /antiraid interactions to the monitor.
type Handler struct {
	monitor RaidMonitor
	timeout time.Duration
}

func NewHandler(monitor RaidMonitor, timeout time.Duration) *Handler {
	return &Handler{monitor: monitor, timeout: timeout}
}

// HandleInteraction is registered on the session. Every reply is deferred
// first, since a lockdown can outlast the interaction deadline.
func (h *Handler) HandleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	h.respond(s, i)
}

func (h *Handler) respond(r Responder, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	if data.Name != CommandName {
		return
	}
	if i.GuildID == "" || i.Member == nil || i.Member.User == nil {
		_ = r.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: "❌ This command only works inside a server.",
				Flags:   discordgo.MessageFlagsEphemeral,
			},
		})
		return
	}

	err := r.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		logging.Error("Command %s: defer failed: %v", data.Name, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	reply := h.Execute(ctx, Invocation{GuildID: i.GuildID, UserID: i.Member.User.ID, Data: data})
	edit := &discordgo.WebhookEdit{Content: &reply.Content}
	if len(reply.Embeds) > 0 {
		edit.Embeds = &reply.Embeds
	}
	if _, err := r.InteractionResponseEdit(i.Interaction, edit); err != nil {
		logging.Error("Command %s: reply failed: %v", data.Name, err)
	}
}

// Execute runs an invocation and renders its reply. Errors become ephemeral
// error replies.
func (h *Handler) Execute(ctx context.Context, inv Invocation) *Reply {
	path, opts := subcommand(inv.Data.Options)

	var (
		reply *Reply
		err   error
	)
	switch path {
	case "toggle":
		reply, err = h.toggle(ctx, inv, opts)
	case "action":
		reply, err = h.action(ctx, inv, opts)
	case "threshold":
		reply, err = h.threshold(ctx, inv, opts)
	case "account-age":
		reply, err = h.accountAge(ctx, inv, opts)
	case "exempt-role add", "exempt-role remove":
		reply, err = h.exemptRole(ctx, inv, path == "exempt-role add", opts)
	case "exempt-channel add", "exempt-channel remove":
		reply, err = h.exemptChannel(ctx, inv, path == "exempt-channel add", opts)
	case "alert-channel":
		reply, err = h.alertChannel(ctx, inv, opts)
	case "notify-role":
		reply, err = h.notifyRole(ctx, inv, opts)
	case "view":
		reply, err = h.view(ctx, inv)
	case "lockdown enable":
		reply, err = h.lockdown(ctx, inv, opts)
	case "lockdown disable":
		reply, err = h.unlock(ctx, inv)
	case "incidents":
		reply, err = h.incidents(ctx, inv, opts)
	default:
		err = fmt.Errorf("unknown subcommand %q", path)
	}

	if err != nil {
		return errorReply(path, err)
	}
	return reply
}

func errorReply(path string, err error) *Reply {
	var cfgErr *models.ConfigurationError
	if errors.As(err, &cfgErr) {
		return &Reply{Content: fmt.Sprintf("❌ Invalid value for `%s`: %s", cfgErr.Field, cfgErr.Reason)}
	}
	logging.Error("Command error [/%s %s]: %v", CommandName, path, err)
	if errors.Is(err, models.ErrPersistence) {
		return &Reply{Content: "❌ Error: the change could not be saved, please try again."}
	}
	return &Reply{Content: fmt.Sprintf("❌ Error: %s", err)}
}

// subcommand flattens the option tree into "group sub" and the leaf options.
func subcommand(options []*discordgo.ApplicationCommandInteractionDataOption) (string, map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	if len(options) == 0 {
		return "", nil
	}
	first := options[0]
	path := first.Name
	leaf := first.Options
	if first.Type == discordgo.ApplicationCommandOptionSubCommandGroup && len(first.Options) > 0 {
		path += " " + first.Options[0].Name
		leaf = first.Options[0].Options
	}

	opts := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(leaf))
	for _, o := range leaf {
		opts[o.Name] = o
	}
	return path, opts
}

// idValue reads a role, channel or user option, which carries a snowflake.
func idValue(o *discordgo.ApplicationCommandInteractionDataOption) string {
	if o == nil {
		return ""
	}
	if id, ok := o.Value.(string); ok {
		return id
	}
	return ""
}
