// Package metrics exposes poll-loop and notification counters to
// Prometheus. Init is idempotent; all recorders are safe to call before
// Init (they no-op).
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "starwatch_"

	statusSent   = "sent"
	statusFailed = "failed"
)

var (
	registerOnce sync.Once

	pollTicks   prometheus.Counter
	fetchErrors *prometheus.CounterVec

	notifications *prometheus.CounterVec

	imagesObserved *prometheus.CounterVec
	eventsObserved prometheus.Counter
)

// Init registers the monitor metrics with the default registry.
func Init() {
	registerOnce.Do(func() {
		pollTicks = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "poll_ticks_total",
				Help: "Total completed poll cycles",
			},
		)
		fetchErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "fetch_errors_total",
				Help: "Total API fetch failures by endpoint",
			},
			[]string{"endpoint"},
		)
		notifications = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notifications_total",
				Help: "Total notification deliveries by channel and status",
			},
			[]string{"channel", "status"},
		)
		imagesObserved = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "images_total",
				Help: "Total new frames by disposition",
			},
			[]string{"disposition"},
		)
		eventsObserved = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "events_total",
				Help: "Total new events seen",
			},
		)

		prometheus.MustRegister(
			pollTicks,
			fetchErrors,
			notifications,
			imagesObserved,
			eventsObserved,
		)
	})
}

// IncPollTick counts one completed poll cycle.
func IncPollTick() {
	if pollTicks != nil {
		pollTicks.Inc()
	}
}

// IncFetchError counts an API fetch failure.
func IncFetchError(endpoint string) {
	if endpoint == "" {
		endpoint = "unknown"
	}
	if fetchErrors != nil {
		fetchErrors.WithLabelValues(endpoint).Inc()
	}
}

// IncNotificationSent counts a successful delivery.
func IncNotificationSent(channel string) {
	if notifications != nil {
		notifications.WithLabelValues(channel, statusSent).Inc()
	}
}

// IncNotificationFailed counts a failed delivery.
func IncNotificationFailed(channel string) {
	if notifications != nil {
		notifications.WithLabelValues(channel, statusFailed).Inc()
	}
}

// IncImage counts a new frame; notified says whether a card went out or
// the cooldown swallowed it.
func IncImage(notified bool) {
	if imagesObserved == nil {
		return
	}
	if notified {
		imagesObserved.WithLabelValues("notified").Inc()
	} else {
		imagesObserved.WithLabelValues("suppressed").Inc()
	}
}

// AddEvents counts new events.
func AddEvents(n int) {
	if n > 0 && eventsObserved != nil {
		eventsObserved.Add(float64(n))
	}
}
