package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/knightmint/knightmint/internal/domain"
)

// Prices holds the fixed token amount charged per unlock kind.
type Prices struct {
	Revive float64 `json:"revive"`
	Hint   float64 `json:"hint"`
	Answer float64 `json:"answer"`
}

// For returns the price for an unlock kind.
func (p Prices) For(kind domain.UnlockKind) float64 {
	switch kind {
	case domain.UnlockRevive:
		return p.Revive
	case domain.UnlockHint:
		return p.Hint
	case domain.UnlockAnswer:
		return p.Answer
	}
	return 0
}

// Config holds the service's runtime configuration.
type Config struct {
	ListenAddr         string  `json:"listen_addr"`
	DBPath             string  `json:"db_path"`
	GuestStoreDir      string  `json:"guest_store_dir"`
	PortalBaseURL      string  `json:"portal_base_url"`
	PortalAppID        string  `json:"portal_app_id"`
	PortalAPIKey       string  `json:"portal_api_key"`
	RecipientAddress   string  `json:"recipient_address"`
	WalletBridgeURL    string  `json:"wallet_bridge_url"`
	Prices             Prices  `json:"prices"`
	PollIntervalMs     int     `json:"poll_interval_ms"`
	PollMaxAttempts    int     `json:"poll_max_attempts"`
	AdvanceDelayMs     int     `json:"advance_delay_ms"`
	RateLimitPerMinute int     `json:"rate_limit_per_minute"`
}

// Load reads a JSON config file, applies env overrides and defaults, and
// validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config JSON: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnv lets secrets come from the environment instead of the file.
func (c *Config) applyEnv() {
	if v := os.Getenv("KNIGHTMINT_PORTAL_API_KEY"); v != "" {
		c.PortalAPIKey = v
	}
	if v := os.Getenv("KNIGHTMINT_PORTAL_APP_ID"); v != "" {
		c.PortalAppID = v
	}
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":9480"
	}
	if c.PollIntervalMs == 0 {
		c.PollIntervalMs = 2000
	}
	if c.PollMaxAttempts == 0 {
		c.PollMaxAttempts = 15
	}
	if c.AdvanceDelayMs == 0 {
		c.AdvanceDelayMs = 1500
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 10
	}
	if c.Prices.Revive == 0 {
		c.Prices.Revive = 0.5
	}
	if c.Prices.Hint == 0 {
		c.Prices.Hint = 0.2
	}
	if c.Prices.Answer == 0 {
		c.Prices.Answer = 1.0
	}
}

func (c *Config) validate() error {
	var problems []string

	if c.DBPath == "" {
		problems = append(problems, "db_path is required")
	}
	if c.RecipientAddress == "" {
		problems = append(problems, "recipient_address is required")
	}
	if c.PortalBaseURL == "" {
		problems = append(problems, "portal_base_url is required")
	}
	if c.PollIntervalMs < 0 || c.PollMaxAttempts < 0 {
		problems = append(problems, "poll settings must not be negative")
	}

	if len(problems) > 0 {
		return &domain.AppError{
			Code:    domain.ErrConfigInvalid.Code,
			Message: fmt.Sprintf("%s: %v", domain.ErrConfigInvalid.Message, problems),
		}
	}
	return nil
}
