package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dimitrije/shipyard/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shipyard"

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	WebhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deliveries_total",
			Help:      "GitHub webhook deliveries by event and result",
		},
		[]string{"event", "result"},
	)

	OnboardingOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "onboarding_outcomes_total",
			Help:      "Completed onboarding attempts by outcome",
		},
		[]string{"outcome"},
	)

	OnboardingWaitAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "onboarding_wait_attempts",
			Help:      "Registry lookups needed before an installation became visible",
			Buckets:   []float64{1, 2, 3, 4, 5, 8},
		},
	)

	CrossServiceTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cross_service_tokens_total",
			Help:      "Cross-service tokens issued and rejected",
		},
		[]string{"result"},
	)

	AuthorizationDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authorization_denials_total",
			Help:      "Requests rejected by the authorization gate, by required role",
		},
		[]string{"required"},
	)
)

func RecordWebhookDelivery(event, result string) {
	WebhookDeliveries.WithLabelValues(event, result).Inc()
}

func RecordOnboardingOutcome(outcome string) {
	OnboardingOutcomes.WithLabelValues(outcome).Inc()
}

func RecordOnboardingWait(attempts int) {
	OnboardingWaitAttempts.Observe(float64(attempts))
}

func RecordTokenIssued() {
	CrossServiceTokens.WithLabelValues("issued").Inc()
}

func RecordTokenRejected() {
	CrossServiceTokens.WithLabelValues("rejected").Inc()
}

func RecordAuthorizationDenial(required string) {
	AuthorizationDenials.WithLabelValues(required).Inc()
}

// Middleware records request counts and latencies around next.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &logger.StatusRecorder{ResponseWriter: w}

		next.ServeHTTP(rec, r)

		status := rec.Status
		if status == 0 {
			status = http.StatusOK
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}
