package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type Outcome string

const (
	Success                  Outcome       = "success"
	Error                    Outcome       = "error"
	MetricRequestTimeout     time.Duration = 5 * time.Second
	MetricRequestIdleTimeout time.Duration = 10 * time.Second
)

func (O Outcome) String() string {
	return string(O)
}

var defaultHistogramBucketsSeconds = []float64{0.1, 0.5, 1, 2.5, 5, 10, 30}

// Collectors are built at declaration so recorders are always safe to
// call; Init only registers them and starts the scrape endpoint.
var (
	once          sync.Once
	metricsRouter *chi.Mux

	clientRequestDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "client_request_duration_seconds",
			Help:    "Histogram of outgoing client request durations in seconds.",
			Buckets: defaultHistogramBucketsSeconds,
		},
		[]string{"baseurl", "method", "path", "status"},
	)

	chainClientLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chain_client_latency_seconds",
			Help:    "Histogram of chain confirmation client durations in seconds.",
			Buckets: defaultHistogramBucketsSeconds,
		},
		[]string{"method", "status"},
	)

	queueSendErrorCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_send_error_count",
			Help: "The total number of errors when sending messages to the queue",
		},
	)

	ledgerOpCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_operation_count",
			Help: "Ledger operations split by operation and execution status.",
		},
		[]string{"operation", "status"},
	)

	dividendRunHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dividend_run_duration_seconds",
			Help:    "Dividend execution run duration in seconds.",
			Buckets: defaultHistogramBucketsSeconds,
		},
		[]string{"status"},
	)

	expiredStakesGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "expired_pending_stakes_count",
			Help: "Number of pending stakes past their deposit deadline",
		},
	)

	breakerStateGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chain_client_breaker_open",
			Help: "1 when the chain client circuit breaker is open, 0 otherwise",
		},
	)

	dbLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "db_latency_seconds",
			Help: "DB latency in seconds splitted by method and execution status",
		},
		[]string{"method", "status"},
	)
)

// Init initializes the metrics package.
func Init(metricsPort int) {
	once.Do(func() {
		initMetricsRouter(metricsPort)
		registerMetrics()
	})
}

// initMetricsRouter initializes the metrics router.
func initMetricsRouter(metricsPort int) {
	metricsRouter = chi.NewRouter()
	metricsRouter.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	metricsAddr := fmt.Sprintf(":%d", metricsPort)
	server := &http.Server{
		Addr:         metricsAddr,
		Handler:      metricsRouter,
		ReadTimeout:  MetricRequestTimeout,
		WriteTimeout: MetricRequestTimeout,
		IdleTimeout:  MetricRequestIdleTimeout,
	}

	go func() {
		log.Info().Msgf("Starting metrics server on %s", metricsAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msgf("Error starting metrics server on %s", metricsAddr)
		}
	}()
}

// registerMetrics registers the Prometheus metrics.
func registerMetrics() {
	prometheus.MustRegister(
		clientRequestDurationHistogram,
		chainClientLatency,
		queueSendErrorCounter,
		ledgerOpCounter,
		dividendRunHistogram,
		expiredStakesGauge,
		breakerStateGauge,
		dbLatency,
	)
}

func RecordChainClientLatency(d time.Duration, method string, failure bool) {
	status := Success
	if failure {
		status = Error
	}

	chainClientLatency.WithLabelValues(method, status.String()).Observe(d.Seconds())
}

func RecordDbLatency(d time.Duration, method string, failure bool) {
	status := Success
	if failure {
		status = Error
	}

	dbLatency.WithLabelValues(method, status.String()).Observe(d.Seconds())
}

func RecordLedgerOp(operation string, failure bool) {
	status := Success
	if failure {
		status = Error
	}

	ledgerOpCounter.WithLabelValues(operation, status.String()).Inc()
}

func RecordDividendRunDuration(d time.Duration, failure bool) {
	status := Success
	if failure {
		status = Error
	}

	dividendRunHistogram.WithLabelValues(status.String()).Observe(d.Seconds())
}

func RecordExpiredStakesCount(count int) {
	expiredStakesGauge.Set(float64(count))
}

func RecordBreakerOpen(open bool) {
	if open {
		breakerStateGauge.Set(1)
	} else {
		breakerStateGauge.Set(0)
	}
}

func IncQueueSendError() {
	queueSendErrorCounter.Inc()
}

// StartClientRequestDurationTimer starts a timer to measure outgoing
// client request duration.
func StartClientRequestDurationTimer(baseUrl, method, path string) func(statusCode int) {
	startTime := time.Now()
	return func(statusCode int) {
		duration := time.Since(startTime).Seconds()
		clientRequestDurationHistogram.WithLabelValues(
			baseUrl,
			method,
			path,
			strconv.Itoa(statusCode),
		).Observe(duration)
	}
}
