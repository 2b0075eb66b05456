package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestParseJSON(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.json", `{
		"api": {"base_url": "http://astro:1888", "timeout": "10s", "retry_attempts": 2},
		"monitor": {"poll_interval": "5s", "image_cooldown": "60s"},
		"channels": {"discord": {"enabled": true, "webhook_url": "https://discord.com/api/webhooks/x/y"}},
		"logging": {"level": "debug", "console": true}
	}`)

	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.BaseURL != "http://astro:1888" {
		t.Fatalf("BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.API.RetryAttempts != 2 {
		t.Fatalf("RetryAttempts = %d", cfg.API.RetryAttempts)
	}
	if cfg.Channels.Discord == nil || !cfg.Channels.Discord.Enabled {
		t.Fatal("discord channel not parsed")
	}
	if cfg.Channels.Telegram != nil {
		t.Fatal("absent channel must stay nil")
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get must return the committed config")
	}
}

func TestParseYAML(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", `
api:
  base_url: http://astro:1888
monitor:
  poll_interval: 5s
  startup_summary: false
channels:
  telegram:
    enabled: true
    token: "123:abc"
    chat_id: -1001234567890
logging:
  level: info
  console: true
`)

	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Channels.Telegram == nil || cfg.Channels.Telegram.ChatID != -1001234567890 {
		t.Fatalf("telegram = %+v", cfg.Channels.Telegram)
	}
	if cfg.Monitor.StartupSummaryEnabled() {
		t.Fatal("startup_summary: false must disable the startup card")
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.json", `{
		"api": {"base_url": "http://astro:1888"},
		"monitor": {},
		"channels": {},
		"logging": {"level": "info", "console": true},
		"typo_section": {}
	}`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.json",
		`{"api":{"base_url":"http://a"},"monitor":{},"channels":{},"logging":{}} {"extra":1}`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("expected error for trailing data")
	}
}

func TestStartupSummaryDefaultsOn(t *testing.T) {
	t.Parallel()
	var m MonitorConfig
	if !m.StartupSummaryEnabled() {
		t.Fatal("startup summary must default to enabled")
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	if _, err := ParseDurationField("x", "nonsense"); err == nil {
		t.Fatal("expected error")
	}
	d, err := ParseDurationOrDefault("x", "", 30*time.Second)
	if err != nil || d != 30*time.Second {
		t.Fatalf("default = %v, %v", d, err)
	}
	d, err = ParseDurationOrDefault("x", "90s", time.Second)
	if err != nil || d != 90*time.Second {
		t.Fatalf("parsed = %v, %v", d, err)
	}
}

func TestSubscribePublishUnsubscribe(t *testing.T) {
	t.Parallel()
	m := NewManager("unused")
	ch := m.Subscribe(1)

	cfg := &Config{}
	m.publish(cfg)
	select {
	case got := <-ch:
		if got != cfg {
			t.Fatal("wrong config delivered")
		}
	default:
		t.Fatal("expected delivery")
	}

	// Full buffer: oldest is dropped, newest wins.
	first := &Config{}
	second := &Config{}
	m.publish(first)
	m.publish(second)
	if got := <-ch; got != second {
		t.Fatal("expected newest config after drop-oldest")
	}

	m.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatal("unsubscribed channel must be closed")
	}
}
