package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go-antiraid/internal/models"
)

func TestLoad_LayersFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
bot:
  token: file-token
detection:
  high_risk_weight: 3
mitigation:
  call_timeout: 2s
  max_parallel: 4
metrics:
  enabled: true
  listen_addr: ":9100"
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ANTIRAID_MITIGATION_MAX_PARALLEL", "6")
	t.Setenv("ANTIRAID_LOGGING_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Bot.Token != "file-token" {
		t.Errorf("token = %q", cfg.Bot.Token)
	}
	if cfg.Detection.HighRiskWeight != 3 {
		t.Errorf("high_risk_weight = %d, want 3", cfg.Detection.HighRiskWeight)
	}
	if cfg.Mitigation.CallTimeout != 2*time.Second {
		t.Errorf("call_timeout = %v, want 2s", cfg.Mitigation.CallTimeout)
	}
	if cfg.Mitigation.MaxParallel != 6 {
		t.Errorf("env should override file: max_parallel = %d", cfg.Mitigation.MaxParallel)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging.level = %q", cfg.Logging.Level)
	}
	if cfg.Incidents.WriteAttempts != 4 || cfg.Database.Path != "antiraid.db" {
		t.Error("defaults were not kept for unset keys")
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.ListenAddr != ":9100" {
		t.Errorf("metrics = %+v", cfg.Metrics)
	}
}

func TestLoad_DiscordTokenFallback(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "env-token")
	t.Setenv(ConfigPathEnv, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Bot.Token != "env-token" {
		t.Errorf("token = %q, want env-token", cfg.Bot.Token)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing token", func(c *Config) { c.Bot.Token = "" }, "Token"},
		{"zero weight", func(c *Config) { c.Detection.HighRiskWeight = 0 }, "HighRiskWeight"},
		{"tiny timeout", func(c *Config) { c.Mitigation.CallTimeout = time.Millisecond }, "CallTimeout"},
		{"metrics without addr", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.ListenAddr = "" }, "ListenAddr"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "Level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			c.Bot.Token = "t"
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

type memRepo struct {
	data    map[string]*models.RaidSettings
	saves   int
	failErr error
}

func newMemRepo() *memRepo {
	return &memRepo{data: make(map[string]*models.RaidSettings)}
}

func (r *memRepo) GetRaidSettings(_ context.Context, guildID string) (*models.RaidSettings, bool, error) {
	s, ok := r.data[guildID]
	if !ok {
		return nil, false, nil
	}
	return s.Clone(), true, nil
}

func (r *memRepo) SaveRaidSettings(_ context.Context, s *models.RaidSettings) error {
	if r.failErr != nil {
		return r.failErr
	}
	r.saves++
	r.data[s.GuildID] = s.Clone()
	return nil
}

func TestSettingsStore_CreatesDefaults(t *testing.T) {
	repo := newMemRepo()
	store := NewSettingsStore(repo)
	ctx := context.Background()

	s, err := store.GetSettings(ctx, "100")
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if s.Enabled || s.ActionType != models.ActionLockdown || s.JoinThreshold != 5 || s.JoinTimeWindowMs != 10000 {
		t.Errorf("defaults = %+v", s)
	}
	if _, ok := repo.data["100"]; !ok {
		t.Error("defaults were not persisted")
	}

	s.JoinThreshold = 99
	again, _ := store.GetSettings(ctx, "100")
	if again.JoinThreshold != 5 {
		t.Error("caller mutation leaked into the cache")
	}
	if repo.saves != 1 {
		t.Errorf("saves = %d, want 1", repo.saves)
	}
}

func TestSettingsStore_RejectsInvalid(t *testing.T) {
	repo := newMemRepo()
	store := NewSettingsStore(repo)
	ctx := context.Background()

	bad := models.DefaultRaidSettings("100")
	bad.JoinThreshold = 2
	err := store.UpdateSettings(ctx, "100", bad)
	if !models.IsConfigurationError(err) {
		t.Fatalf("UpdateSettings = %v, want ConfigurationError", err)
	}
	if len(repo.data) != 0 {
		t.Error("invalid settings reached the repository")
	}

	_, err = store.Update(ctx, "100", func(s *models.RaidSettings) error {
		s.JoinTimeWindowMs = 500
		return nil
	})
	if !models.IsConfigurationError(err) {
		t.Fatalf("Update = %v, want ConfigurationError", err)
	}
	cur, _ := store.GetSettings(ctx, "100")
	if cur.JoinTimeWindowMs != 10000 {
		t.Errorf("rejected update was partially applied: %d", cur.JoinTimeWindowMs)
	}
}

func TestSettingsStore_UpdateAndPersistenceFailure(t *testing.T) {
	repo := newMemRepo()
	store := NewSettingsStore(repo)
	ctx := context.Background()

	got, err := store.Update(ctx, "100", func(s *models.RaidSettings) error {
		s.Enabled = true
		s.AddExemptRole("42")
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !got.Enabled || len(repo.data["100"].ExemptRoleIDs) != 1 {
		t.Errorf("update not persisted: %+v", repo.data["100"])
	}

	repo.failErr = errors.New("disk full")
	err = store.UpdateSettings(ctx, "100", got)
	if !errors.Is(err, models.ErrPersistence) {
		t.Errorf("UpdateSettings = %v, want ErrPersistence", err)
	}
}
