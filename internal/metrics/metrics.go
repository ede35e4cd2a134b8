// Package metrics объявляет метрики Prometheus сервиса.
// Метрики регистрируются в реестре по умолчанию и отдаются на /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Исходы шлюза аутентификации.
const (
	OutcomeAuthenticated = "authenticated"
	OutcomeAnonymous     = "anonymous"
	OutcomeInvalidToken  = "invalid_token"
	OutcomeUnknownUser   = "unknown_subject"
	OutcomeLookupFailed  = "lookup_failed"
	OutcomeCancelled     = "cancelled"
)

// Переходы подписки.
const (
	TransitionActivated = "activated"
	TransitionExpired   = "expired"
)

// Результаты записи прогресса.
const (
	ProgressInserted  = "inserted"
	ProgressUpdated   = "updated"
	ProgressDebounced = "debounced"
	ProgressConflict  = "conflict"
)

var (
	// AuthGateOutcomes считает исходы шлюза аутентификации по запросам.
	AuthGateOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "entitlement_core",
		Name:      "auth_gate_outcomes_total",
		Help:      "Authentication gate outcomes per request.",
	}, []string{"outcome"})

	// PolicyRejections считает отказы политик доступа маршрутов.
	PolicyRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "entitlement_core",
		Name:      "policy_rejections_total",
		Help:      "Requests rejected by route access policy.",
	}, []string{"status"})

	// EntitlementTransitions считает переходы ACTIVE/INACTIVE.
	EntitlementTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "entitlement_core",
		Name:      "entitlement_transitions_total",
		Help:      "Entitlement state transitions.",
	}, []string{"transition"})

	// ProgressWrites считает результаты записи прогресса.
	ProgressWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "entitlement_core",
		Name:      "progress_writes_total",
		Help:      "Progress upsert results.",
	}, []string{"result"})

	// HTTPRequestDuration - длительность обработки запросов по маршрутам.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "entitlement_core",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration by route pattern and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)
