package decision

import (
	"slices"
	"time"

	"go-antiraid/internal/detectors"
	"go-antiraid/internal/logging"
	"go-antiraid/internal/metrics"
	"go-antiraid/internal/models"
	"go-antiraid/internal/state"
)

type Kind uint8

const (
	NoAction Kind = iota
	Suppressed
	RaidDetected
)

func (k Kind) String() string {
	switch k {
	case Suppressed:
		return "suppressed"
	case RaidDetected:
		return "raid_detected"
	default:
		return "no_action"
	}
}

// Reasons a join produced NoAction.
const (
	ReasonDisabled       = "disabled"
	ReasonExempt         = "exempt"
	ReasonBot            = "bot"
	ReasonDuplicate      = "duplicate"
	ReasonStale          = "stale"
	ReasonBelowThreshold = "below_threshold"
)

type Decision struct {
	Kind     Kind
	Action   models.ActionType
	Affected []models.Target
	Count    int
	HighRisk bool
	Reason   string
}

// AffectedIDs lists the member ids of the mitigation targets in join order.
func (d Decision) AffectedIDs() []string {
	ids := make([]string, 0, len(d.Affected))
	for _, t := range d.Affected {
		ids = append(ids, t.MemberID)
	}
	return ids
}

// HighRiskCount is how many targets joined with a young account.
func (d Decision) HighRiskCount() int {
	n := 0
	for _, t := range d.Affected {
		if t.HighRisk {
			n++
		}
	}
	return n
}

// Engine decides, per join, whether a guild is being raided. Callers must
// serialize calls for the same guild; different guilds may run in parallel.
type Engine struct {
	tracker        *state.JoinWindowTracker
	debounce       *Debounce
	highRiskWeight int
	now            func() time.Time
}

func NewEngine(tracker *state.JoinWindowTracker, highRiskWeight int) *Engine {
	if highRiskWeight < 1 {
		highRiskWeight = 1
	}
	return &Engine{
		tracker:        tracker,
		debounce:       NewDebounce(),
		highRiskWeight: highRiskWeight,
		now:            time.Now,
	}
}

// SetClock replaces the engine's time source.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

func (e *Engine) OnMemberJoin(ev *models.JoinEvent, s *models.RaidSettings) Decision {
	guildID := ev.GuildID

	if !s.Enabled {
		e.Reset(guildID)
		metrics.JoinsObserved.WithLabelValues(ReasonDisabled).Inc()
		return Decision{Kind: NoAction, Reason: ReasonDisabled}
	}
	if ev.Bot {
		metrics.JoinsObserved.WithLabelValues(ReasonBot).Inc()
		return Decision{Kind: NoAction, Reason: ReasonBot}
	}
	if detectors.IsExemptMember(ev.RoleIDs, s) {
		metrics.JoinsObserved.WithLabelValues(ReasonExempt).Inc()
		return Decision{Kind: NoAction, Reason: ReasonExempt}
	}

	now := e.now()
	if ev.AccountCreatedAt.After(now) {
		logging.Debug("Guild %s: member %s account created in the future (%v), treating age as zero", guildID, ev.MemberID, ev.AccountCreatedAt)
	}
	highRisk := detectors.IsHighRisk(ev, s, now)
	if highRisk {
		metrics.HighRiskJoins.Inc()
	}

	res := e.tracker.Record(guildID, state.JoinEntry{
		MemberID: ev.MemberID,
		JoinedAt: ev.JoinedAt,
		Weight:   detectors.JoinWeight(highRisk, e.highRiskWeight),
		RoleIDs:  ev.RoleIDs,
		HighRisk: highRisk,
	}, s.Window(), now)
	if res.Clamped {
		logging.Debug("Guild %s: join of %s stamped %v ahead of local clock, clamped", guildID, ev.MemberID, ev.JoinedAt.Sub(now))
	}

	d := Decision{Kind: NoAction, Count: res.Count, HighRisk: highRisk}

	if !detectors.ThresholdReached(res.Count, s.JoinThreshold) {
		e.debounce.Clear(guildID)
		d.Reason = ReasonBelowThreshold
		if !res.Inserted {
			d.Reason = notInsertedReason(res)
		}
		metrics.JoinsObserved.WithLabelValues(d.Reason).Inc()
		return d
	}
	if !res.Inserted {
		d.Reason = notInsertedReason(res)
		metrics.JoinsObserved.WithLabelValues(d.Reason).Inc()
		return d
	}
	metrics.JoinsObserved.WithLabelValues("counted").Inc()

	if !e.debounce.TryArm(guildID) {
		d.Kind = Suppressed
		metrics.RaidsSuppressed.Inc()
		return d
	}

	entries := e.tracker.Entries(guildID, s.Window(), now)
	d.Kind = RaidDetected
	d.Action = s.ActionType
	d.Affected = make([]models.Target, 0, len(entries))
	for _, en := range entries {
		d.Affected = append(d.Affected, models.Target{
			MemberID: en.MemberID,
			JoinedAt: en.JoinedAt,
			RoleIDs:  slices.Clone(en.RoleIDs),
			HighRisk: en.HighRisk,
		})
	}
	return d
}

func notInsertedReason(res state.RecordResult) string {
	if res.Stale {
		return ReasonStale
	}
	return ReasonDuplicate
}

// Rearm clears the guild's latch but keeps its window, so the next counted
// join at or above the threshold fires again.
func (e *Engine) Rearm(guildID string) {
	e.debounce.Clear(guildID)
}

// Reset forgets the guild's window and clears its latch.
func (e *Engine) Reset(guildID string) {
	e.tracker.Reset(guildID)
	e.debounce.Clear(guildID)
}

func (e *Engine) IsLatched(guildID string) bool {
	return e.debounce.IsLatched(guildID)
}

// WindowCount is the guild's live weighted join count.
func (e *Engine) WindowCount(guildID string, s *models.RaidSettings) int {
	return e.tracker.Count(guildID, s.Window(), e.now())
}
