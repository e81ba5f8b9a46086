// Package config holds the explicit configuration struct passed to every
// constructor. There are no ambient globals; main loads this once.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"focusd/internal/logging"
)

// Config is the full daemon configuration
type Config struct {
	// Data locations
	DataDir string `yaml:"data_dir"`

	// Session thresholds (seconds)
	WarnThresholdSec    float64 `yaml:"warn_threshold_sec"`
	LongThresholdSec    float64 `yaml:"long_threshold_sec"`
	FollowUpIntervalSec float64 `yaml:"follow_up_interval_sec"`

	// Intervention policy
	CooldownSec         float64 `yaml:"cooldown_sec"`
	AssistantTimeoutSec float64 `yaml:"assistant_timeout_sec"`

	// Ingestion
	PollIntervalSec float64 `yaml:"poll_interval_sec"`
	BufferSize      int     `yaml:"buffer_size"`
	ListenAddr      string  `yaml:"listen_addr"`

	// Local fallback monitor (gopsutil)
	WatchedApps []string `yaml:"watched_apps"`
	MinCPU      float64  `yaml:"min_cpu_percent"`

	// Assistant endpoint
	AssistantBaseURL string `yaml:"assistant_base_url"`
	AssistantModel   string `yaml:"assistant_model"`
	AssistantAPIKey  string `yaml:"-"` // env only, never written to disk

	// Optional Discord feedback channel
	DiscordToken   string `yaml:"-"` // env only
	DiscordChannel string `yaml:"discord_channel_id"`
}

// Default returns the baseline configuration
func Default() Config {
	return Config{
		DataDir:             "data",
		WarnThresholdSec:    120,
		LongThresholdSec:    180,
		FollowUpIntervalSec: 90,
		CooldownSec:         180,
		AssistantTimeoutSec: 30,
		PollIntervalSec:     2,
		BufferSize:          15,
		ListenAddr:          ":8765",
	}
}

// Load reads the YAML file at path (missing file is fine: defaults apply),
// then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			logging.Info("config", "no config file at %s, using defaults", path)
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
			logging.Info("config", "loaded %s", path)
		}
	}

	applyEnv(&cfg)

	if cfg.WarnThresholdSec >= cfg.LongThresholdSec {
		logging.Warn("config", "warn_threshold_sec (%.0f) >= long_threshold_sec (%.0f): warn events will never fire",
			cfg.WarnThresholdSec, cfg.LongThresholdSec)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("FOCUSD_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("FOCUSD_LISTEN"); v != "" {
		cfg.ListenAddr = v
	}
	cfg.AssistantAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	if v := os.Getenv("ANTHROPIC_MODEL"); v != "" {
		cfg.AssistantModel = v
	}
	cfg.DiscordToken = os.Getenv("DISCORD_TOKEN")
	if v := os.Getenv("DISCORD_CHANNEL_ID"); v != "" {
		cfg.DiscordChannel = v
	}
}

// Duration accessors

func (c Config) WarnThreshold() time.Duration    { return secs(c.WarnThresholdSec) }
func (c Config) LongThreshold() time.Duration    { return secs(c.LongThresholdSec) }
func (c Config) FollowUpInterval() time.Duration { return secs(c.FollowUpIntervalSec) }
func (c Config) Cooldown() time.Duration         { return secs(c.CooldownSec) }
func (c Config) AssistantTimeout() time.Duration { return secs(c.AssistantTimeoutSec) }
func (c Config) PollInterval() time.Duration     { return secs(c.PollIntervalSec) }

// DBPath is where the sqlite session history lives
func (c Config) DBPath() string { return filepath.Join(c.DataDir, "sessions.db") }

func secs(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}
