package infra

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every application setting. Sensitive values can be overridden
// through environment variables after the file is loaded.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	API struct {
		BaseURL string `yaml:"base_url"`
		WSURL   string `yaml:"ws_url"`
		Token   string `yaml:"token"`
	} `yaml:"api"`

	Sync struct {
		Role             string `yaml:"role"` // "trader" or "merchant"
		PollIntervalSec  int    `yaml:"poll_interval_sec"`
		FetchTimeoutSec  int    `yaml:"fetch_timeout_sec"`
		MerchantView     bool   `yaml:"merchant_view"`
		PersistSnapshots bool   `yaml:"persist_snapshots"`
	} `yaml:"sync"`

	Notify struct {
		MinSoundIntervalMS int `yaml:"min_sound_interval_ms"`
	} `yaml:"notify"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.API.BaseURL == "" || (!hasPrefix(c.API.BaseURL, "http://") && !hasPrefix(c.API.BaseURL, "https://")) {
		return fmt.Errorf("invalid API base URL: %s", c.API.BaseURL)
	}
	if c.API.WSURL != "" && !hasPrefix(c.API.WSURL, "ws://") && !hasPrefix(c.API.WSURL, "wss://") {
		return fmt.Errorf("invalid push WS URL: %s", c.API.WSURL)
	}
	if c.Sync.PollIntervalSec <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	switch c.Sync.Role {
	case "trader", "merchant":
	default:
		return fmt.Errorf("unknown role: %q", c.Sync.Role)
	}
	return nil
}

// PollInterval returns the polling period for the sync engine.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Sync.PollIntervalSec) * time.Second
}

// FetchTimeout returns the per-fetch deadline, defaulting to 15s.
func (c *Config) FetchTimeout() time.Duration {
	if c.Sync.FetchTimeoutSec <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.Sync.FetchTimeoutSec) * time.Second
}

// MinSoundInterval returns the audio throttle window, defaulting to 2s.
func (c *Config) MinSoundInterval() time.Duration {
	if c.Notify.MinSoundIntervalMS <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.Notify.MinSoundIntervalMS) * time.Millisecond
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[0:len(prefix)] == prefix
}

// overrideWithEnv applies environment variable overrides when present.
func overrideWithEnv(cfg *Config) {
	if token := os.Getenv("MAFITA_API_TOKEN"); token != "" {
		cfg.API.Token = token
	}
	if base := os.Getenv("MAFITA_API_URL"); base != "" {
		cfg.API.BaseURL = base
	}
	if ws := os.Getenv("MAFITA_WS_URL"); ws != "" {
		cfg.API.WSURL = ws
	}
}
