package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "senyo"

var (
	// Registry holds the module's Prometheus collectors.
	Registry = prometheus.NewRegistry()

	clientRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Authenticated requests by outcome.",
		},
		[]string{"outcome"},
	)

	clientRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "token_refreshes_total",
			Help:      "Token refresh attempts by result.",
		},
		[]string{"result"},
	)

	clientLogouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "forced_logouts_total",
			Help:      "Logouts forced by the client, by reason.",
		},
		[]string{"reason"},
	)

	balancePolls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "balance",
			Name:      "polls_total",
			Help:      "Balance polls by result.",
		},
		[]string{"result"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "route"},
	)
)

func init() {
	Registry.MustRegister(
		clientRequests,
		clientRefreshes,
		clientLogouts,
		balancePolls,
		httpRequests,
		httpDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Request outcomes.
const (
	OutcomeOK            = "ok"
	OutcomeAuthRequired  = "auth_required"
	OutcomeRateLimited   = "rate_limited"
	OutcomeHTTPError     = "http_error"
	OutcomeNetworkError  = "network_error"
	OutcomeTimeout       = "timeout"
	ResultSuccess        = "success"
	ResultFailure        = "failure"
	ResultSkipped        = "skipped"
	ResultUpdated        = "updated"
	ResultUnchanged      = "unchanged"
	ReasonPreflight      = "preflight_refresh_failed"
	ReasonUnauthorized   = "unauthorized_after_refresh"
	ReasonSessionTimeout = "session_timeout"
)

func ObserveRequest(outcome string) {
	clientRequests.WithLabelValues(outcome).Inc()
}

func ObserveRefresh(result string) {
	clientRefreshes.WithLabelValues(result).Inc()
}

func ObserveForcedLogout(reason string) {
	clientLogouts.WithLabelValues(reason).Inc()
}

func ObserveBalancePoll(result string) {
	balancePolls.WithLabelValues(result).Inc()
}

// RefreshCount returns the refresh counter for result. Used by tests.
func RefreshCount(result string) prometheus.Counter {
	return clientRefreshes.WithLabelValues(result)
}

// Handler returns an HTTP handler exposing the registered metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler records request counts and durations, labelled with the
// ServeMux pattern that matched rather than the raw path.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
