package config

import (
	"fmt"
	"strings"
)

// Config is the file-level configuration. Duration fields are Go duration
// strings (e.g. "3s", "1m30s").
type Config struct {
	Campaign  CampaignConfig  `json:"campaign"`
	Monitor   MonitorConfig   `json:"monitor"`
	Messenger MessengerConfig `json:"messenger"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Report    ReportConfig    `json:"report"`
}

type CampaignConfig struct {
	// RetryLimit is the number of extra attempts after the first one.
	RetryLimit int    `json:"retry_limit"`
	MinDelay   string `json:"min_delay"`
	MaxDelay   string `json:"max_delay"`
	// Schedule optionally delays the dispatch pass until the next activation
	// of a cron spec, "@every <dur>" or a plain duration. Empty = start now.
	Schedule string `json:"schedule,omitempty"`
}

type MonitorConfig struct {
	Enabled   bool     `json:"enabled"`
	Interval  string   `json:"interval"`
	Keywords  []string `json:"keywords"`
	AutoReply string   `json:"auto_reply"`
	// ReplyRatePerSec caps outgoing auto-replies within one poll cycle.
	ReplyRatePerSec int `json:"reply_rate_per_sec"`
}

type MessengerConfig struct {
	// Backend selects the messaging session driver: "wagateway" or "telegram".
	Backend  string         `json:"backend"`
	Gateway  GatewayConfig  `json:"gateway"`
	Telegram TelegramConfig `json:"telegram"`
}

type GatewayConfig struct {
	BaseURL string `json:"base_url"`
	Token   string `json:"token"`
	Timeout string `json:"timeout"`
}

type TelegramConfig struct {
	Token       string `json:"token"`
	PollTimeout string `json:"poll_timeout"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig selects the persistence backend for dispatch results and
// the handled-message set. Driver "none" (or empty) disables persistence.
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout"` // sqlite only
}

type ReportConfig struct {
	// Bell rings the terminal bell on each dispatch outcome.
	Bell bool `json:"bell"`
}

// Default returns the built-in configuration, matching a small one-off
// outreach run.
func Default() *Config {
	return &Config{
		Campaign: CampaignConfig{
			RetryLimit: 2,
			MinDelay:   "3s",
			MaxDelay:   "5s",
		},
		Monitor: MonitorConfig{
			Enabled:         true,
			Interval:        "30s",
			Keywords:        []string{"help", "support", "urgent", "problem"},
			AutoReply:       "We'll contact you shortly! Our team is reviewing your request.",
			ReplyRatePerSec: 1,
		},
		Messenger: MessengerConfig{
			Backend: "wagateway",
			Gateway: GatewayConfig{Timeout: "30s"},
		},
		Logging: LoggingConfig{Level: "info", Console: true},
		Storage: StorageConfig{Driver: "none"},
	}
}

// applyDefaults fills zero values so a sparse config file stays usable.
func (c *Config) applyDefaults() {
	d := Default()
	if strings.TrimSpace(c.Campaign.MinDelay) == "" {
		c.Campaign.MinDelay = d.Campaign.MinDelay
	}
	if strings.TrimSpace(c.Campaign.MaxDelay) == "" {
		c.Campaign.MaxDelay = d.Campaign.MaxDelay
	}
	if strings.TrimSpace(c.Monitor.Interval) == "" {
		c.Monitor.Interval = d.Monitor.Interval
	}
	if len(c.Monitor.Keywords) == 0 {
		c.Monitor.Keywords = append([]string(nil), d.Monitor.Keywords...)
	}
	if strings.TrimSpace(c.Monitor.AutoReply) == "" {
		c.Monitor.AutoReply = d.Monitor.AutoReply
	}
	if c.Monitor.ReplyRatePerSec <= 0 {
		c.Monitor.ReplyRatePerSec = d.Monitor.ReplyRatePerSec
	}
	if strings.TrimSpace(c.Messenger.Backend) == "" {
		c.Messenger.Backend = d.Messenger.Backend
	}
	if strings.TrimSpace(c.Messenger.Gateway.Timeout) == "" {
		c.Messenger.Gateway.Timeout = d.Messenger.Gateway.Timeout
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = d.Logging.Level
	}
	if strings.TrimSpace(c.Storage.Driver) == "" {
		c.Storage.Driver = d.Storage.Driver
	}
}

// Error reports an invalid configuration value. Config errors are fatal
// at startup and on hot reload they reject the new file.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

func errf(field, format string, args ...any) *Error {
	return &Error{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks invariants that would make a run meaningless. It assumes
// applyDefaults already ran.
func (c *Config) Validate() error {
	if c.Campaign.RetryLimit < 0 {
		return errf("campaign.retry_limit", "must be >= 0, got %d", c.Campaign.RetryLimit)
	}
	minD, err := ParseDurationField("campaign.min_delay", c.Campaign.MinDelay)
	if err != nil {
		return err
	}
	maxD, err := ParseDurationField("campaign.max_delay", c.Campaign.MaxDelay)
	if err != nil {
		return err
	}
	if minD > maxD {
		return errf("campaign.min_delay", "must be <= campaign.max_delay (%s > %s)", minD, maxD)
	}
	iv, err := ParseDurationField("monitor.interval", c.Monitor.Interval)
	if err != nil {
		return err
	}
	if iv <= 0 {
		return errf("monitor.interval", "must be > 0")
	}
	if strings.TrimSpace(c.Monitor.AutoReply) == "" {
		return errf("monitor.auto_reply", "must not be empty")
	}
	for i, kw := range c.Monitor.Keywords {
		if strings.TrimSpace(kw) == "" {
			return errf("monitor.keywords", "keyword %d is empty", i)
		}
	}
	switch strings.ToLower(strings.TrimSpace(c.Messenger.Backend)) {
	case "wagateway":
		if strings.TrimSpace(c.Messenger.Gateway.BaseURL) == "" {
			return errf("messenger.gateway.base_url", "required for the wagateway backend")
		}
		if _, err := ParseDurationField("messenger.gateway.timeout", c.Messenger.Gateway.Timeout); err != nil {
			return err
		}
	case "telegram":
		if strings.TrimSpace(c.Messenger.Telegram.Token) == "" {
			return errf("messenger.telegram.token", "required for the telegram backend")
		}
		if _, err := ParseDurationField("messenger.telegram.poll_timeout", c.Messenger.Telegram.PollTimeout); err != nil {
			return err
		}
	default:
		return errf("messenger.backend", "unknown backend %q", c.Messenger.Backend)
	}
	switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
	case "", "none", "file", "sqlite", "sqlite3":
	default:
		return errf("storage.driver", "unknown driver %q", c.Storage.Driver)
	}
	if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
		return err
	}
	return nil
}

// NormalizedKeywords returns the keyword set lowercased and de-duplicated,
// preserving first-seen order.
func (c *Config) NormalizedKeywords() []string {
	out := make([]string, 0, len(c.Monitor.Keywords))
	seen := map[string]struct{}{}
	for _, kw := range c.Monitor.Keywords {
		k := strings.ToLower(strings.TrimSpace(kw))
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
