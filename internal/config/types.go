package config

// Config is the full starwatch configuration. Files may be JSON or YAML;
// both are decoded strictly (unknown fields are rejected).
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	API      APIConfig      `json:"api"`
	Monitor  MonitorConfig  `json:"monitor"`
	Channels ChannelsConfig `json:"channels"`
	Notify   NotifyConfig   `json:"notify,omitempty"`
	Summary  *SummaryConfig `json:"summary,omitempty"`
	Metrics  *MetricsConfig `json:"metrics,omitempty"`
	Storage  *StorageConfig `json:"storage,omitempty"`
	Logging  LoggingConfig  `json:"logging"`
}

// APIConfig points at the imaging control endpoint.
type APIConfig struct {
	BaseURL string `json:"base_url"`

	// Timeout applies per HTTP request. Default "30s".
	Timeout string `json:"timeout,omitempty"`

	// RetryAttempts is the number of retries after the first failed
	// attempt. Default 3.
	RetryAttempts int `json:"retry_attempts,omitempty"`
}

type MonitorConfig struct {
	// PollInterval is the sleep between ticks. Default "5s".
	PollInterval string `json:"poll_interval,omitempty"`

	// ImageCooldown rate-limits new-image notifications. Default "60s".
	ImageCooldown string `json:"image_cooldown,omitempty"`

	// StartupSummary controls the one-time "monitor started" card.
	StartupSummary *bool `json:"startup_summary,omitempty"`
}

type ChannelsConfig struct {
	Discord  *DiscordConfig  `json:"discord,omitempty"`
	Telegram *TelegramConfig `json:"telegram,omitempty"`
	Matrix   *MatrixConfig   `json:"matrix,omitempty"`
}

type DiscordConfig struct {
	Enabled    bool   `json:"enabled"`
	WebhookURL string `json:"webhook_url"`
}

type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
	ChatID  int64  `json:"chat_id"`
}

type MatrixConfig struct {
	Enabled       bool   `json:"enabled"`
	HomeserverURL string `json:"homeserver_url"`
	Username      string `json:"username"`
	Password      string `json:"password"`
	RoomID        string `json:"room_id"`
}

type NotifyConfig struct {
	// SendTimeout bounds each channel send. Default "30s" (same as the
	// API request timeout).
	SendTimeout string `json:"send_timeout,omitempty"`

	// RatePerSec caps outbound sends across all channels. 0 disables.
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

// SummaryConfig schedules a periodic session summary card.
type SummaryConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule"` // cron expression, e.g. "0 8 * * *"
	Timezone string `json:"timezone,omitempty"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Listen  string `json:"listen"` // e.g. ":9619"
}

// StorageConfig configures the optional delivery-history store.
// Driver "file" appends JSONL; "sqlite" needs the sqlite build tag.
type StorageConfig struct {
	Driver string `json:"driver"`
	Path   string `json:"path"`
}

type LoggingConfig struct {
	Level   string     `json:"level"`
	Console bool       `json:"console"`
	File    FileConfig `json:"file,omitempty"`
}

type FileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

func (m MonitorConfig) StartupSummaryEnabled() bool {
	if m.StartupSummary == nil {
		return true
	}
	return *m.StartupSummary
}
