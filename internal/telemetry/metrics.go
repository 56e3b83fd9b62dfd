// Package telemetry provides Prometheus metrics and OpenTelemetry tracing helpers.
package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	PresenceEvents    *prometheus.CounterVec
	NotificationsSent *prometheus.CounterVec
	NotificationsLost *prometheus.CounterVec
	LogWriteFailures  prometheus.Counter
	LogRowsPruned     prometheus.Counter

	// Histograms (seconds)
	DispatchDuration prometheus.Observer

	// Gauges
	ActiveSessionsGauge prometheus.Gauge
	PendingTasksGauge   prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		PresenceEvents = promauto.NewCounterVec(prometheus.CounterOpts{Name: "vcdelay_presence_events_total", Help: "Voice presence events handled, by kind"}, []string{"kind"})
		NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{Name: "vcdelay_notifications_sent_total", Help: "Notifications delivered, by kind"}, []string{"kind"})
		NotificationsLost = promauto.NewCounterVec(prometheus.CounterOpts{Name: "vcdelay_notifications_dropped_total", Help: "Scheduled join notifications that did not fire, by reason"}, []string{"reason"})
		LogWriteFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "vcdelay_notification_log_write_failures_total", Help: "Failed notification log writes"})
		LogRowsPruned = promauto.NewCounter(prometheus.CounterOpts{Name: "vcdelay_notification_log_pruned_total", Help: "Notification log rows removed by retention"})
		DispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "vcdelay_dispatch_duration_seconds", Help: "Notification dispatch duration seconds", Buckets: prometheus.DefBuckets})
		ActiveSessionsGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "vcdelay_active_sessions", Help: "Voice channels currently tracked as occupied"})
		PendingTasksGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "vcdelay_pending_tasks", Help: "Delayed join notifications waiting to fire"})
	})
}

// RecordPresenceEvent counts a handled voice event of the given kind (join, leave, move).
func RecordPresenceEvent(kind string) {
	if PresenceEvents != nil {
		PresenceEvents.WithLabelValues(kind).Inc()
	}
}

func RecordNotificationSent(kind string) {
	if NotificationsSent != nil {
		NotificationsSent.WithLabelValues(kind).Inc()
	}
}

// RecordNotificationDropped counts a join notification that ended cancelled, abandoned or failed.
func RecordNotificationDropped(reason string) {
	if NotificationsLost != nil {
		NotificationsLost.WithLabelValues(reason).Inc()
	}
}

func RecordLogWriteFailure() {
	if LogWriteFailures != nil {
		LogWriteFailures.Inc()
	}
}

func RecordPruned(n int64) {
	if LogRowsPruned != nil && n > 0 {
		LogRowsPruned.Add(float64(n))
	}
}

func ObserveDispatch(seconds float64) {
	if DispatchDuration != nil {
		DispatchDuration.Observe(seconds)
	}
}

func SetActiveSessions(n int) {
	if ActiveSessionsGauge != nil {
		ActiveSessionsGauge.Set(float64(n))
	}
}

func SetPendingTasks(n int) {
	if PendingTasksGauge != nil {
		PendingTasksGauge.Set(float64(n))
	}
}
