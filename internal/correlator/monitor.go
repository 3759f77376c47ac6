package correlator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go-antiraid/internal/decision"
	"go-antiraid/internal/logging"
	"go-antiraid/internal/metrics"
	"go-antiraid/internal/models"
)

type SettingsProvider interface {
	GetSettings(ctx context.Context, guildID string) (*models.RaidSettings, error)
	Update(ctx context.Context, guildID string, fn func(s *models.RaidSettings) error) (*models.RaidSettings, error)
}

type IncidentRecorder interface {
	Record(ctx context.Context, inc *models.RaidIncident) error
	List(ctx context.Context, guildID string, limit int) ([]*models.RaidIncident, error)
}

type Notifier interface {
	Notify(ctx context.Context, settings *models.RaidSettings, incident *models.RaidIncident) error
}

// Report is the result of a manual lockdown or unlock. Incident is nil when
// nothing changed.
type Report struct {
	Result   *decision.LockdownResult
	Incident *models.RaidIncident
}

// GuildStatus is a point-in-time view of a guild for /antiraid view.
type GuildStatus struct {
	Settings       *models.RaidSettings
	Locked         bool
	LockReason     string
	LockedAt       time.Time
	LockedChannels int
	WindowCount    int
	Latched        bool
}

// Monitor runs every join and every manual action of a guild through that
// guild's lane, so decisions, lockdowns and incident writes for one guild
// never interleave.
type Monitor struct {
	settings      SettingsProvider
	engine        *decision.Engine
	controller    *decision.LockdownController
	recorder      IncidentRecorder
	notifier      Notifier
	lanes         *LaneRegistry
	notifyTimeout time.Duration
	pending       sync.WaitGroup
}

func NewMonitor(settings SettingsProvider, engine *decision.Engine, controller *decision.LockdownController, recorder IncidentRecorder, notifier Notifier, lanes *LaneRegistry) *Monitor {
	return &Monitor{
		settings:      settings,
		engine:        engine,
		controller:    controller,
		recorder:      recorder,
		notifier:      notifier,
		lanes:         lanes,
		notifyTimeout: 10 * time.Second,
	}
}

// HandleJoin evaluates one join and, when it completes a raid, mitigates it
// and records the incident. The returned error reports mitigation or
// persistence problems; the decision is valid either way.
func (m *Monitor) HandleJoin(ctx context.Context, ev *models.JoinEvent) (decision.Decision, *models.RaidIncident, error) {
	release := m.lanes.Acquire(ev.GuildID)
	defer release()

	s, err := m.settings.GetSettings(ctx, ev.GuildID)
	if err != nil {
		return decision.Decision{Kind: decision.NoAction}, nil, fmt.Errorf("load settings of guild %s: %w", ev.GuildID, err)
	}

	d := m.engine.OnMemberJoin(ev, s)
	switch d.Kind {
	case decision.Suppressed:
		logging.Debug("Guild %s: join of %s suppressed, raid already handled", ev.GuildID, ev.MemberID)
		return d, nil, nil
	case decision.NoAction:
		return d, nil, nil
	}

	metrics.RaidsDetected.WithLabelValues(string(d.Action)).Inc()
	details := raidDetails(d, s)
	logging.Warn("[RAID] Guild %s: %s, action %s", ev.GuildID, details, d.Action)

	var (
		actionTaken = string(d.Action)
		outcome     *models.Outcome
		errs        []error
	)
	reason := "Anti-raid: " + details

	mitigated := true
	switch d.Action {
	case models.ActionLockdown:
		res, lerr := m.controller.EnterLockdown(ctx, ev.GuildID, s, reason)
		if lerr != nil {
			errs = append(errs, lerr)
		}
		actionTaken = res.ActionTaken()
		mitigated = res != nil && res.Locked
		if res != nil {
			outcome = res.Outcome
		}
	case models.ActionBan, models.ActionKick:
		outcome = m.controller.RemoveMembers(ctx, ev.GuildID, s, d.Action, d.Affected, reason)
		actionTaken = models.RemovalActionTaken(d.Action, outcome)
		mitigated = actionTaken == string(d.Action)
	}
	if !mitigated {
		// Nothing was mitigated, so the next counted join must be able to fire.
		m.engine.Rearm(ev.GuildID)
		logging.Error("Guild %s: raid mitigation %s failed, detection rearmed", ev.GuildID, d.Action)
	}

	inc := models.NewRaidIncident(ev.GuildID, models.IncidentRaidDetected, details, actionTaken, d.AffectedIDs())
	if outcome != nil {
		inc.Succeeded = outcome.Succeeded
		inc.Failed = outcome.Failed
		if outcome.Degraded() {
			logging.Warn("Guild %s: %s degraded, %d succeeded, %d failed, %d skipped",
				ev.GuildID, outcome.Action, outcome.Succeeded, outcome.Failed, outcome.Skipped)
		}
	}

	if rerr := m.recorder.Record(ctx, inc); rerr != nil {
		errs = append(errs, rerr)
	}
	m.notify(s, inc)

	return d, inc, errors.Join(errs...)
}

// ManualLockdown locks the guild on behalf of actorID. Locking a locked guild
// only updates the reason and records nothing.
func (m *Monitor) ManualLockdown(ctx context.Context, guildID, actorID, reason string) (*Report, error) {
	release := m.lanes.Acquire(guildID)
	defer release()

	s, err := m.settings.GetSettings(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("load settings of guild %s: %w", guildID, err)
	}

	res, err := m.controller.EnterLockdown(ctx, guildID, s, reason)
	if res == nil {
		return nil, err
	}
	report := &Report{Result: res}
	if res.Noop {
		return report, err
	}

	details := fmt.Sprintf("Manual lockdown by <@%s>: %s", actorID, reason)
	report.Incident = m.recordAction(ctx, s, models.IncidentManualLockdown, details, res, &err)
	return report, err
}

// ManualUnlock restores the guild's channels and clears its detection state.
func (m *Monitor) ManualUnlock(ctx context.Context, guildID, actorID string) (*Report, error) {
	release := m.lanes.Acquire(guildID)
	defer release()

	s, err := m.settings.GetSettings(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("load settings of guild %s: %w", guildID, err)
	}

	res, err := m.controller.ExitLockdown(ctx, guildID)
	m.engine.Reset(guildID)
	report := &Report{Result: res}
	if res.Noop {
		return report, err
	}

	details := fmt.Sprintf("Lockdown lifted by <@%s>", actorID)
	if res.Locked {
		details += fmt.Sprintf(" (%d channels could not be restored)", res.Outcome.Failed)
	}
	report.Incident = m.recordAction(ctx, s, models.IncidentManualUnlock, details, res, &err)
	return report, err
}

func (m *Monitor) recordAction(ctx context.Context, s *models.RaidSettings, typ models.IncidentType, details string, res *decision.LockdownResult, errp *error) *models.RaidIncident {
	actionTaken := models.ActionTakenUnlock
	if typ == models.IncidentManualLockdown {
		actionTaken = res.ActionTaken()
	}
	inc := models.NewRaidIncident(s.GuildID, typ, details, actionTaken, nil)
	inc.Succeeded = res.Outcome.Succeeded
	inc.Failed = res.Outcome.Failed

	if rerr := m.recorder.Record(ctx, inc); rerr != nil {
		*errp = errors.Join(*errp, rerr)
	}
	m.notify(s, inc)
	return inc
}

// UpdateSettings applies fn to the guild's settings inside its lane. Turning
// detection off discards the guild's join window.
func (m *Monitor) UpdateSettings(ctx context.Context, guildID string, fn func(s *models.RaidSettings) error) (*models.RaidSettings, error) {
	release := m.lanes.Acquire(guildID)
	defer release()

	s, err := m.settings.Update(ctx, guildID, fn)
	if err != nil {
		return nil, err
	}
	if !s.Enabled {
		m.engine.Reset(guildID)
	}
	return s, nil
}

func (m *Monitor) Settings(ctx context.Context, guildID string) (*models.RaidSettings, error) {
	return m.settings.GetSettings(ctx, guildID)
}

func (m *Monitor) ListIncidents(ctx context.Context, guildID string, limit int) ([]*models.RaidIncident, error) {
	return m.recorder.List(ctx, guildID, limit)
}

func (m *Monitor) Status(ctx context.Context, guildID string) (*GuildStatus, error) {
	s, err := m.settings.GetSettings(ctx, guildID)
	if err != nil {
		return nil, err
	}
	st := &GuildStatus{
		Settings:    s,
		WindowCount: m.engine.WindowCount(guildID, s),
		Latched:     m.engine.IsLatched(guildID),
	}
	if l, ok := m.controller.State(guildID); ok {
		st.Locked = true
		st.LockReason = l.Reason
		st.LockedAt = l.LockedAt
		st.LockedChannels = len(l.Snapshots)
	}
	return st, nil
}

// Wait blocks until every pending alert has been sent or has failed.
func (m *Monitor) Wait() {
	m.pending.Wait()
}

func (m *Monitor) notify(s *models.RaidSettings, inc *models.RaidIncident) {
	if m.notifier == nil {
		return
	}
	m.pending.Add(1)
	go func() {
		defer m.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), m.notifyTimeout)
		defer cancel()
		if err := m.notifier.Notify(ctx, s, inc); err != nil {
			logging.Warn("Guild %s: alert for incident %s not delivered: %v", inc.GuildID, inc.ID, err)
		}
	}()
}

func raidDetails(d decision.Decision, s *models.RaidSettings) string {
	details := fmt.Sprintf("%d joins within %s (threshold %d)", len(d.Affected), s.Window(), s.JoinThreshold)
	if n := d.HighRiskCount(); n > 0 {
		details += fmt.Sprintf(", %d accounts younger than %d days, weighted count %d", n, s.AccountAgeDaysMin, d.Count)
	}
	return details
}
