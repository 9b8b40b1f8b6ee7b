package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "labsched",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status code.",
		},
		[]string{"endpoint", "status"},
	)

	reservationTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "labsched",
			Name:      "reservation_transitions_total",
			Help:      "Reservation status transitions by target status.",
		},
		[]string{"status"},
	)

	reservationConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "labsched",
			Name:      "reservation_conflicts_total",
			Help:      "Reservation requests rejected due to a schedule conflict.",
		},
	)

	notificationsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "labsched",
			Name:      "notifications_sent_total",
			Help:      "Notifications created by type.",
		},
		[]string{"type"},
	)

	cacheFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "labsched",
			Name:      "cache_fallbacks_total",
			Help:      "Schedule cache operations served by the in-memory fallback.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			reservationTransitions,
			reservationConflicts,
			notificationsSent,
			cacheFallbacks,
		)
	})
}

// IncHTTP increments the request counter for an endpoint and status label.
func IncHTTP(endpoint, status string) {
	httpRequests.WithLabelValues(endpoint, status).Inc()
}

// IncTransition increments the transition counter for a target status.
func IncTransition(status string) {
	reservationTransitions.WithLabelValues(status).Inc()
}

// IncConflict counts a rejected conflicting reservation.
func IncConflict() {
	reservationConflicts.Inc()
}

// IncNotification counts a created notification by type.
func IncNotification(notificationType string) {
	notificationsSent.WithLabelValues(notificationType).Inc()
}

// IncCacheFallback counts a cache operation served by the memory fallback.
func IncCacheFallback() {
	cacheFallbacks.Inc()
}
