package decision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-antiraid/internal/detectors"
	"go-antiraid/internal/dispatcher"
	"go-antiraid/internal/logging"
	"go-antiraid/internal/metrics"
	"go-antiraid/internal/models"
	"go-antiraid/internal/state"
)

// LockdownStore persists Locked state so a restart can still restore channels.
type LockdownStore interface {
	SaveLockdown(ctx context.Context, guildID string, l *state.Locked) error
	DeleteLockdown(ctx context.Context, guildID string) error
}

// LockdownResult describes one lockdown or unlock attempt.
type LockdownResult struct {
	Outcome *models.Outcome
	// Noop is set when the guild was already in the requested state.
	Noop bool
	// Locked is the guild's state once the attempt finished.
	Locked bool
}

// ActionTaken is the incident action for a lockdown attempt.
func (r *LockdownResult) ActionTaken() string {
	if r == nil || !r.Locked {
		return models.ActionTakenLockdownFailed
	}
	return string(models.ActionLockdown)
}

// LockdownController applies and lifts lockdowns and removes raid members.
// Calls for one guild must be serialized by the caller.
type LockdownController struct {
	platform    dispatcher.Platform
	executor    *dispatcher.Executor
	table       *state.LockdownTable
	store       LockdownStore
	callTimeout time.Duration
	now         func() time.Time
}

func NewLockdownController(platform dispatcher.Platform, executor *dispatcher.Executor, table *state.LockdownTable, store LockdownStore, callTimeout time.Duration) *LockdownController {
	if callTimeout <= 0 {
		callTimeout = dispatcher.DefaultExecutorConfig().CallTimeout
	}
	return &LockdownController{
		platform:    platform,
		executor:    executor,
		table:       table,
		store:       store,
		callTimeout: callTimeout,
		now:         time.Now,
	}
}

func (c *LockdownController) SetClock(now func() time.Time) {
	c.now = now
}

func (c *LockdownController) IsLocked(guildID string) bool {
	return c.table.IsLocked(guildID)
}

// State returns a copy of the guild's Locked state.
func (c *LockdownController) State(guildID string) (*state.Locked, bool) {
	return c.table.Get(guildID)
}

// Rehydrate loads persisted lockdowns into the table.
func (c *LockdownController) Rehydrate(locked map[string]*state.Locked) {
	for guildID, l := range locked {
		c.table.Set(guildID, l)
	}
	metrics.LockdownsActive.Set(float64(c.table.Count()))
}

// EnterLockdown snapshots every lockable, non-exempt channel and denies the
// lockdown bits to @everyone. Only channels that were actually changed are
// snapshotted. A guild that is already locked only gets its reason updated.
// The returned error is non-nil when the channel list could not be read, in
// which case nothing was changed and the result is nil, or when the Locked
// state could not be persisted.
func (c *LockdownController) EnterLockdown(ctx context.Context, guildID string, s *models.RaidSettings, reason string) (*LockdownResult, error) {
	outcome := &models.Outcome{Action: string(models.ActionLockdown)}

	if c.table.SetReason(guildID, reason) {
		logging.Info("Guild %s already locked, reason updated to %q", guildID, reason)
		l, _ := c.table.Get(guildID)
		return &LockdownResult{Outcome: outcome, Noop: true, Locked: true}, c.persist(ctx, guildID, l)
	}

	listCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	channels, err := c.platform.GuildChannels(listCtx, guildID)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("lockdown guild %s: %w", guildID, err)
	}

	var (
		snapshots []state.ChannelSnapshot
		tasks     []dispatcher.Task
	)
	for _, ch := range channels {
		if !detectors.IsLockableChannel(ch.Type) || detectors.IsExemptChannel(ch.ID, s) {
			continue
		}
		snap := state.ChannelSnapshot{ChannelID: ch.ID}
		if ch.Everyone != nil {
			snap.Present = true
			snap.Allow = ch.Everyone.Allow
			snap.Deny = ch.Everyone.Deny
		}
		snapshots = append(snapshots, snap)
		tasks = append(tasks, dispatcher.Task{
			ID: ch.ID,
			Run: func(ctx context.Context) error {
				allow, deny := detectors.ApplyLockdown(snap.Allow, snap.Deny)
				return c.platform.SetEveryoneOverwrite(ctx, guildID, snap.ChannelID, dispatcher.Overwrite{Allow: allow, Deny: deny})
			},
		})
	}

	start := time.Now()
	results := c.executor.Run(ctx, string(models.ActionLockdown), tasks)
	metrics.MitigationDuration.WithLabelValues(string(models.ActionLockdown)).Observe(time.Since(start).Seconds())

	applied := make([]state.ChannelSnapshot, 0, len(snapshots))
	for i, r := range results {
		outcome.Add(r)
		if r.Err != nil {
			logging.Warn("Guild %s: could not lock channel %s: %v", guildID, r.ID, r.Err)
			continue
		}
		applied = append(applied, snapshots[i])
	}

	if len(tasks) > 0 && len(applied) == 0 {
		logging.Error("Guild %s: lockdown failed on all %d channels, guild stays unlocked", guildID, len(tasks))
		return &LockdownResult{Outcome: outcome}, nil
	}

	locked := &state.Locked{Reason: reason, LockedAt: c.now(), Snapshots: applied}
	c.table.Set(guildID, locked)
	metrics.LockdownsActive.Set(float64(c.table.Count()))
	logging.Info("Guild %s locked: %d channels (%d failed): %s", guildID, outcome.Succeeded, outcome.Failed, reason)

	return &LockdownResult{Outcome: outcome, Locked: true}, c.persist(ctx, guildID, locked)
}

// ExitLockdown restores every snapshotted channel to exactly its pre-lockdown
// overwrite, deleting the overwrite where none existed. Channels deleted since
// the lockdown count as restored. Channels that could not be restored stay in
// the Locked state so a later unlock can retry them.
func (c *LockdownController) ExitLockdown(ctx context.Context, guildID string) (*LockdownResult, error) {
	outcome := &models.Outcome{Action: models.ActionTakenUnlock}

	locked, ok := c.table.Take(guildID)
	if !ok {
		return &LockdownResult{Outcome: outcome, Noop: true}, nil
	}

	tasks := make([]dispatcher.Task, 0, len(locked.Snapshots))
	for _, snap := range locked.Snapshots {
		tasks = append(tasks, dispatcher.Task{
			ID: snap.ChannelID,
			Run: func(ctx context.Context) error {
				var err error
				if snap.Present {
					err = c.platform.SetEveryoneOverwrite(ctx, guildID, snap.ChannelID, dispatcher.Overwrite{Allow: snap.Allow, Deny: snap.Deny})
				} else {
					err = c.platform.DeleteEveryoneOverwrite(ctx, guildID, snap.ChannelID)
				}
				if dispatcher.IsNotFound(err) {
					return dispatcher.ErrSkipped
				}
				return err
			},
		})
	}

	start := time.Now()
	results := c.executor.Run(ctx, models.ActionTakenUnlock, tasks)
	metrics.MitigationDuration.WithLabelValues(models.ActionTakenUnlock).Observe(time.Since(start).Seconds())

	var remaining []state.ChannelSnapshot
	for i, r := range results {
		outcome.Add(r)
		if r.Err != nil {
			logging.Warn("Guild %s: could not restore channel %s: %v", guildID, r.ID, r.Err)
			remaining = append(remaining, locked.Snapshots[i])
		}
	}

	if len(remaining) > 0 {
		locked.Snapshots = remaining
		c.table.Set(guildID, locked)
		metrics.LockdownsActive.Set(float64(c.table.Count()))
		return &LockdownResult{Outcome: outcome, Locked: true}, c.persist(ctx, guildID, locked)
	}

	metrics.LockdownsActive.Set(float64(c.table.Count()))
	logging.Info("Guild %s unlocked: %d channels restored", guildID, outcome.Succeeded+outcome.Skipped)

	var err error
	if c.store != nil {
		if derr := c.store.DeleteLockdown(ctx, guildID); derr != nil {
			err = fmt.Errorf("%w: delete lockdown of guild %s: %v", models.ErrPersistence, guildID, derr)
		}
	}
	return &LockdownResult{Outcome: outcome}, err
}

// RemoveMembers bans or kicks every target. Each member's current roles are
// checked against the exempt roles right before the call; the join-time roles
// are used when the lookup fails. Exempt members are skipped.
func (c *LockdownController) RemoveMembers(ctx context.Context, guildID string, s *models.RaidSettings, action models.ActionType, targets []models.Target, reason string) *models.Outcome {
	outcome := &models.Outcome{Action: string(action)}
	if !action.Removes() {
		return outcome
	}

	tasks := make([]dispatcher.Task, 0, len(targets))
	for _, target := range targets {
		tasks = append(tasks, dispatcher.Task{
			ID: target.MemberID,
			Run: func(ctx context.Context) error {
				roles, err := c.platform.MemberRoles(ctx, guildID, target.MemberID)
				switch {
				case err == nil:
				case dispatcher.IsNotFound(err) && action == models.ActionKick:
					return dispatcher.ErrSkipped
				default:
					if errors.Is(err, context.DeadlineExceeded) {
						return err
					}
					logging.Debug("Guild %s: role lookup for %s failed, using join-time roles: %v", guildID, target.MemberID, err)
					roles = target.RoleIDs
				}
				if detectors.IsExemptMember(roles, s) {
					return dispatcher.ErrSkipped
				}
				if action == models.ActionBan {
					return c.platform.Ban(ctx, guildID, target.MemberID, reason)
				}
				return c.platform.Kick(ctx, guildID, target.MemberID, reason)
			},
		})
	}

	start := time.Now()
	for _, r := range c.executor.Run(ctx, string(action), tasks) {
		outcome.Add(r)
		if r.Err != nil {
			logging.Warn("Guild %s: %s of %s failed: %v", guildID, action, r.ID, r.Err)
		}
	}
	metrics.MitigationDuration.WithLabelValues(string(action)).Observe(time.Since(start).Seconds())
	return outcome
}

func (c *LockdownController) persist(ctx context.Context, guildID string, l *state.Locked) error {
	if c.store == nil || l == nil {
		return nil
	}
	if err := c.store.SaveLockdown(ctx, guildID, l); err != nil {
		return fmt.Errorf("%w: save lockdown of guild %s: %v", models.ErrPersistence, guildID, err)
	}
	return nil
}
