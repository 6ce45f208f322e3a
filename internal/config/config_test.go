package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestDefaultValidates(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Messenger.Gateway.BaseURL = "http://localhost:8080"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default() should validate once a gateway URL is set, got %v", err)
	}
	if cfg.Campaign.RetryLimit != 2 {
		t.Fatalf("default retry_limit = %d, want 2", cfg.Campaign.RetryLimit)
	}
	if cfg.Campaign.MinDelay != "3s" || cfg.Campaign.MaxDelay != "5s" {
		t.Fatalf("default delays = %s..%s, want 3s..5s", cfg.Campaign.MinDelay, cfg.Campaign.MaxDelay)
	}
	if cfg.Monitor.Interval != "30s" {
		t.Fatalf("default monitor interval = %s, want 30s", cfg.Monitor.Interval)
	}
}

func TestValidateRejects(t *testing.T) {
	t.Parallel()

	base := func() *Config {
		cfg := Default()
		cfg.Messenger.Gateway.BaseURL = "http://localhost:8080"
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{
			name:   "negative retry limit",
			mutate: func(c *Config) { c.Campaign.RetryLimit = -1 },
			field:  "campaign.retry_limit",
		},
		{
			name: "min delay above max delay",
			mutate: func(c *Config) {
				c.Campaign.MinDelay = "10s"
				c.Campaign.MaxDelay = "5s"
			},
			field: "campaign.min_delay",
		},
		{
			name:   "unparseable delay",
			mutate: func(c *Config) { c.Campaign.MinDelay = "fast" },
			field:  "campaign.min_delay",
		},
		{
			name:   "zero monitor interval",
			mutate: func(c *Config) { c.Monitor.Interval = "0s" },
			field:  "monitor.interval",
		},
		{
			name:   "empty auto reply",
			mutate: func(c *Config) { c.Monitor.AutoReply = "   " },
			field:  "monitor.auto_reply",
		},
		{
			name:   "blank keyword",
			mutate: func(c *Config) { c.Monitor.Keywords = []string{"help", "  "} },
			field:  "monitor.keywords",
		},
		{
			name:   "gateway without url",
			mutate: func(c *Config) { c.Messenger.Gateway.BaseURL = "" },
			field:  "messenger.gateway.base_url",
		},
		{
			name: "telegram without token",
			mutate: func(c *Config) {
				c.Messenger.Backend = "telegram"
			},
			field: "messenger.telegram.token",
		},
		{
			name:   "unknown backend",
			mutate: func(c *Config) { c.Messenger.Backend = "carrier-pigeon" },
			field:  "messenger.backend",
		},
		{
			name:   "unknown storage driver",
			mutate: func(c *Config) { c.Storage.Driver = "etcd" },
			field:  "storage.driver",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("Validate() accepted invalid config")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Fatalf("Validate() = %v, want error mentioning %q", err, tt.field)
			}
		})
	}
}

func TestNormalizedKeywords(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Monitor.Keywords = []string{"Help", "URGENT", "help", "  support ", ""}
	got := cfg.NormalizedKeywords()
	want := []string{"help", "urgent", "support"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("NormalizedKeywords() = %v, want %v", got, want)
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()

	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty field = (%v, %v), want (0, nil)", d, err)
	}
	if d, err := ParseDurationField("x", "1m30s"); err != nil || d != 90*time.Second {
		t.Fatalf("1m30s = (%v, %v), want (90s, nil)", d, err)
	}
	if _, err := ParseDurationField("x", "-5s"); err == nil {
		t.Fatalf("negative duration accepted")
	}
	if d, err := ParseDurationOrDefault("x", "", 7*time.Second); err != nil || d != 7*time.Second {
		t.Fatalf("default substitution = (%v, %v), want (7s, nil)", d, err)
	}
}

func writeConfigFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestManagerParseYAML(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, "config.yaml", `
campaign:
  retry_limit: 1
  min_delay: 1s
  max_delay: 2s
monitor:
  keywords: [refund, Urgent]
messenger:
  backend: wagateway
  gateway:
    base_url: http://localhost:9000
`)
	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if cfg.Campaign.RetryLimit != 1 {
		t.Fatalf("retry_limit = %d, want 1", cfg.Campaign.RetryLimit)
	}
	// Defaults fill fields the file omits.
	if cfg.Monitor.Interval != "30s" {
		t.Fatalf("interval = %q, want default 30s", cfg.Monitor.Interval)
	}
	if cfg.Monitor.AutoReply == "" {
		t.Fatalf("auto_reply default not applied")
	}
	if want := []string{"refund", "urgent"}; !reflect.DeepEqual(cfg.NormalizedKeywords(), want) {
		t.Fatalf("keywords = %v, want %v", cfg.NormalizedKeywords(), want)
	}
}

func TestManagerParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, "config.yaml", `
campaign:
  retry_limmit: 3
`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatalf("Parse() accepted a misspelled field")
	}
}

func TestManagerLoadValidates(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, "config.json", `{
  "campaign": {"min_delay": "10s", "max_delay": "2s"},
  "messenger": {"backend": "wagateway", "gateway": {"base_url": "http://localhost:9000"}}
}`)
	m := NewManager(path)
	if _, err := m.Load(); err == nil {
		t.Fatalf("Load() accepted min_delay > max_delay")
	}
	if m.Get() != nil {
		t.Fatalf("failed Load() committed a config")
	}
}

func TestManagerSubscribePublish(t *testing.T) {
	t.Parallel()

	m := NewManager("unused")
	ch := m.Subscribe(1)
	cfg := Default()
	m.publish(cfg)

	select {
	case got := <-ch:
		if got != cfg {
			t.Fatalf("published config mismatch")
		}
	default:
		t.Fatalf("no config published")
	}

	m.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatalf("Unsubscribe did not close the channel")
	}
}
