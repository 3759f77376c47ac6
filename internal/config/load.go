package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	EnvPrefix     = "ANTIRAID_"
	ConfigPathEnv = "ANTIRAID_CONFIG"
)

var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
}

type Config struct {
	Bot        BotConfig        `koanf:"bot"`
	Database   DatabaseConfig   `koanf:"database"`
	Logging    LoggingConfig    `koanf:"logging"`
	Detection  DetectionConfig  `koanf:"detection"`
	Mitigation MitigationConfig `koanf:"mitigation"`
	Incidents  IncidentsConfig  `koanf:"incidents"`
	Metrics    MetricsConfig    `koanf:"metrics"`
}

type BotConfig struct {
	Token string `koanf:"token" validate:"required"`
	// CommandGuildID registers /antiraid on one guild only. Empty registers it globally.
	CommandGuildID string `koanf:"command_guild_id" validate:"omitempty,numeric"`
}

type DatabaseConfig struct {
	Path string `koanf:"path" validate:"required"`
}

type LoggingConfig struct {
	Level string `koanf:"level" validate:"oneof=debug info warn warning error critical"`
	Path  string `koanf:"path"`
}

type DetectionConfig struct {
	// HighRiskWeight is how many joins an account younger than the guild's
	// minimum age counts for. 1 disables the weighting.
	HighRiskWeight  int           `koanf:"high_risk_weight" validate:"min=1,max=10"`
	JanitorInterval time.Duration `koanf:"janitor_interval" validate:"min=1s"`
	LaneIdleTTL     time.Duration `koanf:"lane_idle_ttl" validate:"min=1m"`
}

type MitigationConfig struct {
	CallTimeout          time.Duration `koanf:"call_timeout" validate:"min=100ms,max=1m"`
	MaxParallel          int           `koanf:"max_parallel" validate:"min=1,max=64"`
	RequestsPerSecond    float64       `koanf:"requests_per_second" validate:"gt=0"`
	Burst                int           `koanf:"burst" validate:"min=1"`
	BanDeleteMessageDays int           `koanf:"ban_delete_message_days" validate:"min=0,max=7"`
	UseFastHTTP          bool          `koanf:"use_fasthttp"`
	HTTPPoolSize         int           `koanf:"http_pool_size" validate:"min=1,max=64"`
	APIBaseURL           string        `koanf:"api_base_url" validate:"required,url"`
}

type IncidentsConfig struct {
	WriteAttempts  int           `koanf:"write_attempts" validate:"min=1,max=10"`
	InitialBackoff time.Duration `koanf:"initial_backoff" validate:"min=1ms"`
}

type MetricsConfig struct {
	Enabled    bool   `koanf:"enabled"`
	ListenAddr string `koanf:"listen_addr" validate:"required_if=Enabled true"`
}

func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "antiraid.db"},
		Logging:  LoggingConfig{Level: "info", Path: "antiraid.log"},
		Detection: DetectionConfig{
			HighRiskWeight:  2,
			JanitorInterval: time.Minute,
			LaneIdleTTL:     30 * time.Minute,
		},
		Mitigation: MitigationConfig{
			CallTimeout:          5 * time.Second,
			MaxParallel:          8,
			RequestsPerSecond:    40,
			Burst:                10,
			BanDeleteMessageDays: 1,
			UseFastHTTP:          true,
			HTTPPoolSize:         4,
			APIBaseURL:           "https://discord.com/api/v10",
		},
		Incidents: IncidentsConfig{
			WriteAttempts:  4,
			InitialBackoff: 200 * time.Millisecond,
		},
		Metrics: MetricsConfig{
			Enabled:    false,
			ListenAddr: ":9464",
		},
	}
}

// Load layers defaults, the YAML file at path (or the first default path
// found) and ANTIRAID_ environment variables, then validates the result.
// DISCORD_TOKEN is honored when no token was configured.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if cfg.Bot.Token == "" {
		cfg.Bot.Token = os.Getenv("DISCORD_TOKEN")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// envTransform maps ANTIRAID_MITIGATION_CALL_TIMEOUT to mitigation.call_timeout.
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	return strings.Replace(key, "_", ".", 1)
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnv); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q (%s)", fe.Namespace(), fe.Tag(), fe.Param()))
	}
	return errors.New(strings.Join(msgs, "; "))
}
