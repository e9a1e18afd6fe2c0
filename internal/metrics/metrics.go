package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ============================================
	// Payment verification
	// ============================================
	VerificationVerdicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gift_verification_verdicts_total",
			Help: "Payment verification verdicts by outcome code",
		},
		[]string{"verified", "code"},
	)

	LedgerPollAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gift_ledger_poll_attempts",
		Help:    "Ledger lookups performed per confirmation poll",
		Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10},
	})

	LedgerLookupErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gift_ledger_lookup_errors_total",
			Help: "Ledger lookups that returned an error",
		},
		[]string{"ledger"},
	)

	NullifierCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gift_nullifier_collisions_total",
		Help: "Submissions rejected because their nullifier was already consumed",
	})

	// ============================================
	// Card issuance
	// ============================================
	CardIssuance = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gift_card_issuance_total",
			Help: "Card issuance results by path (issuer, protocol_backed, sandbox, rejected)",
		},
		[]string{"path"},
	)

	CardIssuanceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gift_card_issuance_duration_seconds",
			Help:    "Card issuer call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	// ============================================
	// Gift lifecycle
	// ============================================
	GiftsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gift_created_total",
			Help: "CreateGift outcomes by final status",
		},
		[]string{"status"},
	)

	GiftPhaseFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gift_phase_failures_total",
			Help: "Pipeline failures by phase and code",
		},
		[]string{"phase", "code"},
	)

	GiftClaims = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gift_claims_total",
			Help: "Claim attempts by outcome",
		},
		[]string{"outcome"},
	)

	CorruptTokens = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gift_corrupt_tokens_total",
		Help: "Claim tokens that failed to decode",
	})

	// ============================================
	// Side outputs
	// ============================================
	EventPublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gift_event_publish_failures_total",
			Help: "Lifecycle events that could not be published",
		},
		[]string{"sink"},
	)

	BrokerConnectionStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gift_broker_connection_status",
			Help: "Message broker connection status (1=connected, 0=disconnected)",
		},
		[]string{"broker"},
	)

	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gift_websocket_connections",
		Help: "Number of connected websocket clients",
	})

	// ============================================
	// HTTP
	// ============================================
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gift_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gift_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)
