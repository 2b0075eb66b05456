package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"starwatch/internal/config"
	"starwatch/internal/monitor"
	"starwatch/internal/nina"
	"starwatch/internal/notify"
	"starwatch/internal/notify/discord"
	"starwatch/internal/notify/matrix"
	"starwatch/internal/notify/telegram"
	"starwatch/internal/observability/metrics"
	"starwatch/internal/storage"
	logx "starwatch/pkg/logx"
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func buildClient(cfg *config.Config, log logx.Logger) (*nina.Client, error) {
	timeout, err := config.ParseDurationOrDefault("api.timeout", cfg.API.Timeout, 30*time.Second)
	if err != nil {
		return nil, err
	}
	retries := cfg.API.RetryAttempts
	if retries == 0 {
		retries = 3
	}
	return nina.NewClient(nina.Config{
		BaseURL:       cfg.API.BaseURL,
		Timeout:       timeout,
		RetryAttempts: retries,
	}, log)
}

func buildChannels(cfg *config.Config) ([]notify.Channel, error) {
	var channels []notify.Channel

	if d := cfg.Channels.Discord; d != nil && d.Enabled {
		ch, err := discord.New(discord.Config{WebhookURL: d.WebhookURL})
		if err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	if t := cfg.Channels.Telegram; t != nil && t.Enabled {
		ch, err := telegram.New(telegram.Config{Token: t.Token, ChatID: t.ChatID})
		if err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	if m := cfg.Channels.Matrix; m != nil && m.Enabled {
		ch, err := matrix.New(matrix.Config{
			HomeserverURL: m.HomeserverURL,
			Username:      m.Username,
			Password:      m.Password,
			RoomID:        m.RoomID,
		})
		if err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return channels, nil
}

func mapDispatcherConfig(cfg *config.Config) (notify.DispatcherConfig, error) {
	sendTimeout, err := config.ParseDurationOrDefault("notify.send_timeout", cfg.Notify.SendTimeout, 30*time.Second)
	if err != nil {
		return notify.DispatcherConfig{}, err
	}
	if cfg.Notify.RatePerSec < 0 {
		return notify.DispatcherConfig{}, fmt.Errorf("notify.rate_per_sec must be >= 0")
	}
	return notify.DispatcherConfig{
		SendTimeout: sendTimeout,
		RatePerSec:  float64(cfg.Notify.RatePerSec),
	}, nil
}

func mapMonitorConfig(cfg *config.Config) (monitor.Config, error) {
	poll, err := config.ParseDurationOrDefault("monitor.poll_interval", cfg.Monitor.PollInterval, 5*time.Second)
	if err != nil {
		return monitor.Config{}, err
	}
	cooldown, err := config.ParseDurationOrDefault("monitor.image_cooldown", cfg.Monitor.ImageCooldown, time.Minute)
	if err != nil {
		return monitor.Config{}, err
	}
	return monitor.Config{
		PollInterval:   poll,
		ImageCooldown:  cooldown,
		StartupSummary: cfg.Monitor.StartupSummaryEnabled(),
	}, nil
}

// validate rejects a config before it is committed (initial load and every
// hot reload).
func validate(cfg *config.Config) error {
	if strings.TrimSpace(cfg.API.BaseURL) == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if cfg.API.RetryAttempts < 0 {
		return fmt.Errorf("api.retry_attempts must be >= 0")
	}
	if _, err := config.ParseDurationField("api.timeout", cfg.API.Timeout); err != nil {
		return err
	}
	if _, err := config.ParseDurationField("monitor.poll_interval", cfg.Monitor.PollInterval); err != nil {
		return err
	}
	if _, err := config.ParseDurationField("monitor.image_cooldown", cfg.Monitor.ImageCooldown); err != nil {
		return err
	}
	if _, err := config.ParseDurationField("notify.send_timeout", cfg.Notify.SendTimeout); err != nil {
		return err
	}
	if cfg.Notify.RatePerSec < 0 {
		return fmt.Errorf("notify.rate_per_sec must be >= 0")
	}
	if s := cfg.Summary; s != nil && s.Enabled {
		if tz := strings.TrimSpace(s.Timezone); tz != "" {
			if _, err := time.LoadLocation(tz); err != nil {
				return fmt.Errorf("summary.timezone: invalid %q: %w", tz, err)
			}
		}
	}
	if st := cfg.Storage; st != nil {
		driver := strings.ToLower(strings.TrimSpace(st.Driver))
		switch driver {
		case "", "none", "file", "sqlite", "sqlite3":
		default:
			return fmt.Errorf("storage.driver: unknown driver %q", st.Driver)
		}
		if (driver == "file" || driver == "sqlite" || driver == "sqlite3") && strings.TrimSpace(st.Path) == "" {
			return fmt.Errorf("storage.path is required for driver %q", driver)
		}
	}
	return nil
}

// deliveryObserver bridges dispatcher outcomes into metrics and the
// optional store.
type deliveryObserver struct {
	store   storage.Store
	metrics bool
}

func (o *deliveryObserver) NotificationSent(channel, title string) {
	if o.metrics {
		metrics.IncNotificationSent(channel)
	}
	o.record(channel, title, true)
}

func (o *deliveryObserver) NotificationFailed(channel, title string) {
	if o.metrics {
		metrics.IncNotificationFailed(channel)
	}
	o.record(channel, title, false)
}

func (o *deliveryObserver) record(channel, title string, success bool) {
	if o.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = o.store.RecordNotification(ctx, storage.NotificationRecord{
		Time:    time.Now(),
		Channel: channel,
		Title:   title,
		Success: success,
	})
}

// promMetrics adapts the monitor's telemetry hooks onto the Prometheus
// counters.
type promMetrics struct{}

func (promMetrics) PollTick()             { metrics.IncPollTick() }
func (promMetrics) FetchError(ep string)  { metrics.IncFetchError(ep) }
func (promMetrics) ImageObserved(ok bool) { metrics.IncImage(ok) }
func (promMetrics) EventsObserved(n int)  { metrics.AddEvents(n) }

// imageRecorder persists observed frames into the store.
type imageRecorder struct {
	store storage.Store
}

func (r *imageRecorder) RecordImage(ctx context.Context, img nina.ImageMetadata, target string, notified bool) error {
	return r.store.RecordImage(ctx, storage.ImageRecord{
		Time:       time.Now(),
		Camera:     img.CameraName,
		ImageType:  img.ImageType,
		Filter:     img.Filter,
		Exposure:   img.ExposureTime,
		HFR:        img.HFR,
		Stars:      img.Stars,
		Target:     target,
		Notified:   notified,
		CapturedAt: img.Date,
	})
}
