package config

import (
	"context"
	"fmt"
	"sync"

	"go-antiraid/internal/models"
)

// SettingsRepository is the durable side of the settings store.
type SettingsRepository interface {
	GetRaidSettings(ctx context.Context, guildID string) (*models.RaidSettings, bool, error)
	SaveRaidSettings(ctx context.Context, s *models.RaidSettings) error
}

// SettingsStore caches per-guild RaidSettings in front of the repository.
// Callers always get a private copy.
type SettingsStore struct {
	mu      sync.RWMutex
	writeMu sync.Mutex
	repo    SettingsRepository
	cache   map[string]*models.RaidSettings
}

func NewSettingsStore(repo SettingsRepository) *SettingsStore {
	return &SettingsStore{
		repo:  repo,
		cache: make(map[string]*models.RaidSettings),
	}
}

// GetSettings returns the guild's settings, creating and persisting the
// defaults the first time a guild is seen.
func (ss *SettingsStore) GetSettings(ctx context.Context, guildID string) (*models.RaidSettings, error) {
	ss.mu.RLock()
	s, ok := ss.cache[guildID]
	ss.mu.RUnlock()
	if ok {
		return s.Clone(), nil
	}

	ss.writeMu.Lock()
	defer ss.writeMu.Unlock()
	return ss.loadLocked(ctx, guildID)
}

func (ss *SettingsStore) loadLocked(ctx context.Context, guildID string) (*models.RaidSettings, error) {
	ss.mu.RLock()
	s, ok := ss.cache[guildID]
	ss.mu.RUnlock()
	if ok {
		return s.Clone(), nil
	}

	s, found, err := ss.repo.GetRaidSettings(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrPersistence, err)
	}
	if !found {
		s = models.DefaultRaidSettings(guildID)
		if err := ss.repo.SaveRaidSettings(ctx, s); err != nil {
			return nil, fmt.Errorf("%w: %w", models.ErrPersistence, err)
		}
	}

	ss.mu.Lock()
	ss.cache[guildID] = s.Clone()
	ss.mu.Unlock()
	return s, nil
}

// UpdateSettings validates and persists s as the guild's settings. Invalid
// settings are rejected with a ConfigurationError and nothing is written.
func (ss *SettingsStore) UpdateSettings(ctx context.Context, guildID string, s *models.RaidSettings) error {
	ss.writeMu.Lock()
	defer ss.writeMu.Unlock()
	return ss.saveLocked(ctx, guildID, s)
}

func (ss *SettingsStore) saveLocked(ctx context.Context, guildID string, s *models.RaidSettings) error {
	next := s.Clone()
	next.GuildID = guildID
	if err := next.Validate(); err != nil {
		return err
	}
	if err := ss.repo.SaveRaidSettings(ctx, next); err != nil {
		return fmt.Errorf("%w: %w", models.ErrPersistence, err)
	}

	ss.mu.Lock()
	ss.cache[guildID] = next
	ss.mu.Unlock()
	return nil
}

// Update applies fn to the current settings and saves the result.
func (ss *SettingsStore) Update(ctx context.Context, guildID string, fn func(s *models.RaidSettings) error) (*models.RaidSettings, error) {
	ss.writeMu.Lock()
	defer ss.writeMu.Unlock()

	current, err := ss.loadLocked(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if err := fn(current); err != nil {
		return nil, err
	}
	if err := ss.saveLocked(ctx, guildID, current); err != nil {
		return nil, err
	}
	return current.Clone(), nil
}

func (ss *SettingsStore) Invalidate(guildID string) {
	ss.mu.Lock()
	delete(ss.cache, guildID)
	ss.mu.Unlock()
}
