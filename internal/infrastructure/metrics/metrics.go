package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Voucher metrics
	VouchersCreated    *prometheus.CounterVec
	VouchersPosted     prometheus.Counter
	VouchersSuperseded prometheus.Counter
	VouchersVoided     prometheus.Counter
	PostingDuration    prometheus.Histogram
	PostingErrors      *prometheus.CounterVec

	// Journal entry metrics
	EntriesCreated    prometheus.Counter
	IdempotentReplays *prometheus.CounterVec
	VATRoundingLegs   prometheus.Counter

	// Annotation metrics
	AnnotationsCreated *prometheus.CounterVec

	// TOTP gate metrics
	TOTPVerifications *prometheus.CounterVec
	TOTPLockouts      prometheus.Counter
	BackupCodesUsed   prometheus.Counter

	// Maintenance metrics
	IdempotencyRecordsSwept prometheus.Counter

	// API metrics
	HTTPRequests  *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
	RateLimitHits *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics on the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers all metrics on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Voucher metrics
		VouchersCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verifikat_vouchers_created_total",
				Help: "Total number of vouchers created",
			},
			[]string{"type"},
		),
		VouchersPosted: factory.NewCounter(prometheus.CounterOpts{
			Name: "verifikat_vouchers_posted_total",
			Help: "Total number of vouchers posted to account balances",
		}),
		VouchersSuperseded: factory.NewCounter(prometheus.CounterOpts{
			Name: "verifikat_vouchers_superseded_total",
			Help: "Total number of vouchers superseded",
		}),
		VouchersVoided: factory.NewCounter(prometheus.CounterOpts{
			Name: "verifikat_vouchers_voided_total",
			Help: "Total number of vouchers voided",
		}),
		PostingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "verifikat_posting_duration_seconds",
			Help:    "Duration of voucher posting",
			Buckets: prometheus.DefBuckets,
		}),
		PostingErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verifikat_posting_errors_total",
				Help: "Total number of rejected postings",
			},
			[]string{"code"},
		),

		// Journal entry metrics
		EntriesCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "verifikat_journal_entries_created_total",
			Help: "Total number of journal entries created",
		}),
		IdempotentReplays: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verifikat_idempotent_replays_total",
				Help: "Duplicate journal entry submissions answered from a fingerprint",
			},
			[]string{"source"},
		),
		VATRoundingLegs: factory.NewCounter(prometheus.CounterOpts{
			Name: "verifikat_vat_rounding_legs_total",
			Help: "Total number of VAT rounding legs posted",
		}),

		// Annotation metrics
		AnnotationsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verifikat_annotations_created_total",
				Help: "Total number of voucher annotations created",
			},
			[]string{"type"},
		),

		// TOTP gate metrics
		TOTPVerifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verifikat_totp_verifications_total",
				Help: "Total number of TOTP verifications by result",
			},
			[]string{"operation", "result"},
		),
		TOTPLockouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "verifikat_totp_lockouts_total",
			Help: "Total number of users locked out after repeated failures",
		}),
		BackupCodesUsed: factory.NewCounter(prometheus.CounterOpts{
			Name: "verifikat_totp_backup_codes_used_total",
			Help: "Total number of backup codes consumed",
		}),

		// Maintenance metrics
		IdempotencyRecordsSwept: factory.NewCounter(prometheus.CounterOpts{
			Name: "verifikat_idempotency_records_swept_total",
			Help: "Total number of expired idempotency records deleted",
		}),

		// API metrics
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verifikat_http_requests_total",
				Help: "Total number of ops HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "verifikat_http_request_duration_seconds",
				Help:    "Ops HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verifikat_rate_limit_hits_total",
				Help: "Requests rejected by the ops rate limiter",
			},
			[]string{"path"},
		),
	}
}

// RecordVerification counts one gate outcome.
func (m *Metrics) RecordVerification(operation, result string) {
	m.TOTPVerifications.WithLabelValues(operation, result).Inc()
}

// RecordPostingError counts a rejected posting by error code.
func (m *Metrics) RecordPostingError(code string) {
	m.PostingErrors.WithLabelValues(code).Inc()
}
