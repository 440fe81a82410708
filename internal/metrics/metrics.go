package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "session",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "session",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 30},
	}, []string{"method", "path"})

	ActiveTorrents = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "session",
		Name:      "active_torrents",
		Help:      "Number of handles currently registered.",
	})

	DownloadSpeedBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "session",
		Name:      "download_speed_bytes",
		Help:      "Current aggregate download speed in bytes per second.",
	})

	UploadSpeedBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "session",
		Name:      "upload_speed_bytes",
		Help:      "Current aggregate upload speed in bytes per second.",
	})

	SnapshotEmissionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "session",
		Name:      "snapshot_emissions_total",
		Help:      "Throttled snapshot pairs emitted to subscribers.",
	})

	CoalescedSignalsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "session",
		Name:      "coalesced_signals_total",
		Help:      "Raw engine update signals collapsed by the throttle.",
	})

	EngineErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "session",
		Name:      "engine_errors_total",
		Help:      "Engine-level errors observed via the delegate.",
	})

	CompletionNotificationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "session",
		Name:      "completion_notifications_total",
		Help:      "Download-complete notifications fired.",
	})

	NotificationFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "session",
		Name:      "notification_failures_total",
		Help:      "Notification scheduling failures (logged and swallowed).",
	})

	BadgeCounter = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "session",
		Name:      "badge_counter",
		Help:      "Current application badge counter value.",
	})

	BackgroundTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "session",
		Name:      "background_transitions_total",
		Help:      "Background execution state transitions.",
	}, []string{"from", "to"})

	ScopeResolutionFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "session",
		Name:      "scope_resolution_failures_total",
		Help:      "Storage scope resolution failures.",
	})

	SettingsAppliesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "session",
		Name:      "settings_applies_total",
		Help:      "Combined settings objects applied to the engine.",
	})

	WSClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "session",
		Name:      "ws_clients",
		Help:      "Connected WebSocket subscribers.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ActiveTorrents,
		DownloadSpeedBytes,
		UploadSpeedBytes,
		SnapshotEmissionsTotal,
		CoalescedSignalsTotal,
		EngineErrorsTotal,
		CompletionNotificationsTotal,
		NotificationFailuresTotal,
		BadgeCounter,
		BackgroundTransitionsTotal,
		ScopeResolutionFailuresTotal,
		SettingsAppliesTotal,
		WSClients,
	)
}
