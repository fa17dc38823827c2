package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for monitoring and alerting
var (
	// Request counters by endpoint, client, and status
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyguard_requests_total",
			Help: "Total number of requests by endpoint, client CN, and status",
		},
		[]string{"endpoint", "client_cn", "status"},
	)

	// Admission decisions by purpose and result (ALLOW or error code)
	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyguard_decisions_total",
			Help: "Total number of admission decisions by purpose and result",
		},
		[]string{"purpose", "result"},
	)

	// Authentication denials (security monitoring)
	AuthFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "keyguard_auth_failures_total",
			Help: "Total number of operations denied for missing or invalid auth tokens",
		},
	)

	// ACL failures counter (security monitoring)
	ACLFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "keyguard_acl_failures_total",
			Help: "Total number of ACL check failures (potential security incidents)",
		},
	)

	// Certificate revocation check failures
	RevocationFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "keyguard_revocation_failures_total",
			Help: "Total number of certificate revocation check failures",
		},
	)

	// Request duration histogram
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "keyguard_request_duration_seconds",
			Help:    "Request duration in seconds by endpoint",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// Transport rate limiter hits
	RateLimitHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyguard_rate_limit_hits_total",
			Help: "Total number of rate limit hits by client CN",
		},
		[]string{"client_cn"},
	)

	// Occupancy of the per-boot usage tables
	UsageTableEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "keyguard_usage_table_entries",
			Help: "Current entry count of the bounded usage tables by table name",
		},
		[]string{"table"},
	)
)

// Helper functions for common metric operations

// RecordRequest records a request with endpoint, client, and status
func RecordRequest(endpoint, clientCN, status string) {
	RequestsTotal.WithLabelValues(endpoint, clientCN, status).Inc()
}

// RecordDecision records an admission decision
func RecordDecision(purpose, result string) {
	DecisionsTotal.WithLabelValues(purpose, result).Inc()
}

// RecordAuthFailure records an authentication denial
func RecordAuthFailure() {
	AuthFailuresTotal.Inc()
}

// RecordACLFailure records an ACL check failure
func RecordACLFailure() {
	ACLFailuresTotal.Inc()
}

// RecordRevocationFailure records a certificate revocation failure
func RecordRevocationFailure() {
	RevocationFailuresTotal.Inc()
}

// RecordRateLimitHit records a rate limit hit
func RecordRateLimitHit(clientCN string) {
	RateLimitHitsTotal.WithLabelValues(clientCN).Inc()
}

// RecordTableOccupancy updates the usage table gauges
func RecordTableOccupancy(rateLimited, useCounted int) {
	UsageTableEntries.WithLabelValues("access_time").Set(float64(rateLimited))
	UsageTableEntries.WithLabelValues("access_count").Set(float64(useCounted))
}
