package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PaymentsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_created_total",
		Help: "Total number of payments created",
	}, []string{"provider"})

	PaymentsConfirmedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_confirmed_total",
		Help: "Total number of payments confirmed",
	}, []string{"provider"})

	PaymentsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_failed_total",
		Help: "Total number of failed payments",
	}, []string{"provider", "reason"})

	PaymentsCancelledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_cancelled_total",
		Help: "Total number of cancelled payments (full or partial)",
	}, []string{"provider", "kind"})

	DuplicatePaymentsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_duplicate_total",
		Help: "Total number of rejected duplicate payment attempts",
	})

	GatewayCallLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_call_latency_seconds",
		Help:    "Latency of payment gateway calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider", "operation"})

	GatewayErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_errors_total",
		Help: "Total number of payment gateway call failures",
	}, []string{"provider", "operation", "retryable"})

	WebhooksReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhooks_received_total",
		Help: "Total number of gateway webhooks received",
	}, []string{"provider"})

	WebhooksDuplicateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhooks_duplicate_total",
		Help: "Total number of webhooks discarded as already applied",
	}, []string{"provider"})

	WebhooksInvalidSignatureTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhooks_invalid_signature_total",
		Help: "Total number of webhooks rejected for bad signatures",
	}, []string{"provider"})

	RefundsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "refunds_total",
		Help: "Total number of refunds by type and outcome",
	}, []string{"type", "status"})

	RiskAssessmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "risk_assessments_total",
		Help: "Total number of risk assessments by resulting level",
	}, []string{"level"})

	RiskAutoBlockedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "risk_auto_blocked_total",
		Help: "Total number of transactions auto-blocked by the risk scorer",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
