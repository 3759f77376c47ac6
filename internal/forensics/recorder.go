package forensics

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"go-antiraid/internal/logging"
	"go-antiraid/internal/metrics"
	"go-antiraid/internal/models"
)

// IncidentStore is the append-only incident table.
type IncidentStore interface {
	InsertIncident(ctx context.Context, inc *models.RaidIncident) error
	ListIncidents(ctx context.Context, guildID string, limit int) ([]*models.RaidIncident, error)
}

// Recorder writes the audit trail. A failed write is retried with
// exponential backoff; the mitigation it describes is never re-run.
type Recorder struct {
	store          IncidentStore
	attempts       int
	initialBackoff time.Duration
}

func NewRecorder(store IncidentStore, attempts int, initialBackoff time.Duration) *Recorder {
	if attempts < 1 {
		attempts = 1
	}
	if initialBackoff <= 0 {
		initialBackoff = 200 * time.Millisecond
	}
	return &Recorder{
		store:          store,
		attempts:       attempts,
		initialBackoff: initialBackoff,
	}
}

// Record appends inc. After the last failed attempt the error is returned
// wrapped in models.ErrPersistence.
func (r *Recorder) Record(ctx context.Context, inc *models.RaidIncident) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initialBackoff
	b.MaxInterval = 8 * r.initialBackoff
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.attempts-1)), ctx)

	op := func() error {
		return r.store.InsertIncident(ctx, inc)
	}
	notify := func(err error, next time.Duration) {
		metrics.IncidentWrites.WithLabelValues("retry").Inc()
		logging.Warn("Incident %s write failed, retrying in %v: %v", inc.ID, next, err)
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		metrics.IncidentWrites.WithLabelValues("failure").Inc()
		return fmt.Errorf("%w: record incident %s for guild %s: %w", models.ErrPersistence, inc.ID, inc.GuildID, err)
	}

	metrics.IncidentWrites.WithLabelValues("success").Inc()
	logging.With().Info().
		Str("guild_id", inc.GuildID).
		Str("incident_id", inc.ID).
		Str("type", string(inc.IncidentType)).
		Str("action", inc.ActionTaken).
		Int("affected", len(inc.AffectedMemberIDs)).
		Msg("incident recorded")
	return nil
}

// List returns the guild's most recent incidents. limit defaults to 10 and
// is capped at 25.
func (r *Recorder) List(ctx context.Context, guildID string, limit int) ([]*models.RaidIncident, error) {
	limit = ClampLimit(limit)
	incidents, err := r.store.ListIncidents(ctx, guildID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list incidents for guild %s: %w", models.ErrPersistence, guildID, err)
	}
	return incidents, nil
}

func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return models.DefaultIncidentListLimit
	case limit > models.MaxIncidentListLimit:
		return models.MaxIncidentListLimit
	default:
		return limit
	}
}
