// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	entriesSaved = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wellness",
		Subsystem: "tracker",
		Name:      "entries_saved_total",
		Help:      "Tracker entries saved, by tracker and whether the day's entry was inserted or updated.",
	}, []string{"tracker", "op"})

	authEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wellness",
		Subsystem: "auth",
		Name:      "events_total",
		Help:      "Auth state changes by event.",
	}, []string{"event"})

	authFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wellness",
		Subsystem: "auth",
		Name:      "failures_total",
		Help:      "Failed auth operations by mapped error code.",
	}, []string{"code"})

	subscriptions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "wellness",
		Subsystem: "realtime",
		Name:      "subscriptions",
		Help:      "Open change subscriptions.",
	})

	changesDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "wellness",
		Subsystem: "realtime",
		Name:      "changes_dropped_total",
		Help:      "Change notifications dropped because the subscriber already had a full buffer.",
	})
)

func init() {
	prometheus.MustRegister(entriesSaved, authEvents, authFailures, subscriptions, changesDropped)
}

// EntrySaved counts a saved tracker entry. op is "insert" or "update".
func EntrySaved(tracker, op string) {
	entriesSaved.WithLabelValues(tracker, op).Inc()
}

// AuthEvent counts an auth state change.
func AuthEvent(event string) {
	authEvents.WithLabelValues(event).Inc()
}

// AuthFailure counts a failed auth operation.
func AuthFailure(code string) {
	authFailures.WithLabelValues(code).Inc()
}

// SubscriptionOpened counts a new realtime subscription.
func SubscriptionOpened() {
	subscriptions.Inc()
}

// SubscriptionClosed counts a released realtime subscription.
func SubscriptionClosed() {
	subscriptions.Dec()
}

// ChangeDropped counts a change that was not delivered to a full subscriber.
func ChangeDropped() {
	changesDropped.Inc()
}
