package commands

import (
	"context"
	"fmt"
	"strings"
)

const defaultLockdownReason = "Manual lockdown"

func (h *Handler) lockdown(ctx context.Context, inv Invocation, opts optionSet) (*Reply, error) {
	reason := defaultLockdownReason
	if o := opts["reason"]; o != nil {
		if r := strings.TrimSpace(o.StringValue()); r != "" {
			reason = r
		}
	}

	rep, err := h.monitor.ManualLockdown(ctx, inv.GuildID, inv.UserID, reason)
	if rep == nil {
		return nil, err
	}

	res := rep.Result
	var msg string
	switch {
	case res.Noop:
		msg = fmt.Sprintf("ℹ️ The server is already locked down. Reason updated to: %s", reason)
	case !res.Locked:
		msg = fmt.Sprintf("❌ Lockdown failed: none of the %d channels could be locked. Check my permissions.", res.Outcome.Failed)
	case res.Outcome.Degraded():
		msg = fmt.Sprintf("🔒 Server locked down. %d channels locked, %d could not be changed.", res.Outcome.Succeeded, res.Outcome.Failed)
	default:
		msg = fmt.Sprintf("🔒 Server locked down. %d channels locked.", res.Outcome.Succeeded)
	}
	if err != nil {
		msg += "\n⚠️ The lockdown state could not be saved; unlock before restarting the bot."
	}
	return &Reply{Content: msg}, nil
}

func (h *Handler) unlock(ctx context.Context, inv Invocation) (*Reply, error) {
	rep, err := h.monitor.ManualUnlock(ctx, inv.GuildID, inv.UserID)
	if rep == nil {
		return nil, err
	}

	res := rep.Result
	var msg string
	switch {
	case res.Noop:
		msg = "ℹ️ The server is not locked down."
	case res.Locked:
		msg = fmt.Sprintf("⚠️ %d channels restored, %d could not be restored. Run the command again to retry.",
			res.Outcome.Succeeded+res.Outcome.Skipped, res.Outcome.Failed)
	default:
		msg = fmt.Sprintf("🔓 Lockdown lifted. %d channels restored.", res.Outcome.Succeeded+res.Outcome.Skipped)
	}
	if err != nil {
		msg += "\n⚠️ The change could not be fully saved."
	}
	return &Reply{Content: msg}, nil
}
