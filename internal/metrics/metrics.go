package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "onboarding_sessions_created_total",
			Help: "Total number of onboarding sessions started",
		},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "onboarding_sessions_active",
			Help: "Number of onboarding sessions held in memory",
		},
	)

	SessionsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "onboarding_sessions_expired_total",
			Help: "Total number of idle sessions evicted",
		},
	)

	// SessionActions counts session actions by kind (pick, back, jump, reset)
	// and result (ok, invalid_selection, invalid_transition, not_found).
	SessionActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_session_actions_total",
			Help: "Total number of session actions by kind and result",
		},
		[]string{"action", "result"},
	)

	Submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_submissions_total",
			Help: "Total number of completed pick lists handed to the recommender, by result",
		},
		[]string{"result"},
	)

	RecommendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommend_request_duration_seconds",
			Help:    "Duration of recommendation service requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// CircuitBreakerState is 0 closed, 1 half-open, 2 open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CatalogItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "catalog_items",
			Help: "Number of catalog items per taste category",
		},
		[]string{"category"},
	)
)
