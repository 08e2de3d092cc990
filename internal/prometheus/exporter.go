// Package prometheus serves the agent's local observability surface: a
// rate-limited HTTP server exposing Prometheus metrics about the sampling
// loop, a JSON health endpoint and a JSON status endpoint carrying the last
// tick summary. The surface is read-only and independent of the CloudWatch
// emission path.
package prometheus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/humanmade/php-fpm-queue-monitor/internal/config"
	"github.com/humanmade/php-fpm-queue-monitor/internal/telemetry"
	"github.com/humanmade/php-fpm-queue-monitor/internal/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// maxStatusEvents caps how many journal rows a single status request can
// pull regardless of the requested limit.
const maxStatusEvents = 100

// StatusSource provides the live agent state behind the status and health
// endpoints.
type StatusSource interface {
	// LastSample returns the most recent completed tick, if any tick has
	// completed since startup.
	LastSample() (types.AggregateSample, bool)
	// Health reports the aggregated component health.
	Health() types.HealthStatus
}

// Exporter exposes sampling-loop metrics in Prometheus format
type Exporter struct {
	config config.ServerConfig
	logger *zap.Logger

	// HTTP server
	server *http.Server

	// Prometheus metrics registry
	registry *prometheus.Registry

	// Rate limiting
	rateLimiter *rate.Limiter

	mu      sync.RWMutex
	running bool

	// Sources behind /health and /status; both optional
	status StatusSource
	events telemetry.EventStorage

	// Predefined metrics
	listenQueue  prometheus.Gauge
	containers   *prometheus.GaugeVec
	ticks        *prometheus.CounterVec
	emissions    *prometheus.CounterVec
	tickDuration prometheus.Histogram
}

// NewExporter creates a new Prometheus exporter
func NewExporter(config config.ServerConfig, logger *zap.Logger) (*Exporter, error) {
	registry := prometheus.NewRegistry()

	// Create rate limiter: 100 requests per second with burst of 200
	rateLimiter := rate.NewLimiter(100, 200)

	e := &Exporter{
		config:      config,
		logger:      logger,
		registry:    registry,
		rateLimiter: rateLimiter,
	}

	// Initialize predefined metrics
	if err := e.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return e, nil
}

// SetStatusSource wires the component whose state backs the status and
// health endpoints.
func (e *Exporter) SetStatusSource(source StatusSource) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = source
}

// SetEventSource wires the journal consulted when a status request asks for
// recent events. A nil journal leaves the events field empty.
func (e *Exporter) SetEventSource(events telemetry.EventStorage) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = events
}

// Start begins serving metrics and blocks until the context is cancelled
func (e *Exporter) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("exporter is already running")
	}
	e.running = true
	e.mu.Unlock()

	e.logger.Info("Starting observability server",
		zap.String("bind_address", e.config.BindAddress),
		zap.String("metrics_path", e.config.MetricsPath))

	e.server = &http.Server{
		Addr:         e.config.BindAddress,
		Handler:      e.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		err := e.server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			e.logger.Error("HTTP server failed", zap.Error(err))
		}
	}()

	// Wait for context cancellation
	<-ctx.Done()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := e.server.Shutdown(shutdownCtx); err != nil {
		e.logger.Error("Server shutdown failed", zap.Error(err))
		return err
	}

	e.logger.Info("Observability server stopped")
	return nil
}

// Stop halts the metrics server
func (e *Exporter) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	e.mu.Unlock()

	if e.server != nil {
		return e.server.Shutdown(ctx)
	}

	return nil
}

// Handler returns the HTTP handler serving all endpoints. Exposed so the
// routing can be exercised without binding a listener.
func (e *Exporter) Handler() http.Handler {
	mux := http.NewServeMux()

	metricsHandler := promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{
		ErrorLog:      zap.NewStdLog(e.logger),
		ErrorHandling: promhttp.ContinueOnError,
	})
	mux.Handle(e.config.MetricsPath, e.rateLimitMiddleware(metricsHandler))
	mux.Handle(e.config.StatusPath, e.rateLimitMiddleware(http.HandlerFunc(e.statusHandler)))

	// Public endpoints
	mux.HandleFunc("/", e.rootHandler)
	mux.HandleFunc(e.config.HealthPath, e.healthHandler)

	return mux
}

// ObserveTick records the outcome of one sampling tick. Gauges reflect the
// last successful tick only; a failed tick keeps them at their previous
// values so scrapes never report a discovery error as an empty host.
func (e *Exporter) ObserveTick(sample types.AggregateSample, outcome string) {
	e.ticks.WithLabelValues(outcome).Inc()
	e.tickDuration.Observe(sample.Duration.Seconds())

	if outcome != types.TickOutcomeOK {
		return
	}

	e.listenQueue.Set(float64(sample.Queue))
	e.containers.WithLabelValues("discovered").Set(float64(sample.Discovered))
	e.containers.WithLabelValues("matched").Set(float64(sample.Matched))
	e.containers.WithLabelValues("sampled").Set(float64(sample.Sampled))
	e.containers.WithLabelValues("failed").Set(float64(sample.Failed))
}

// ObserveEmission records the emission decision made for one tick.
func (e *Exporter) ObserveEmission(outcome string) {
	e.emissions.WithLabelValues(outcome).Inc()
}

// initMetrics initializes all Prometheus metrics
func (e *Exporter) initMetrics() error {
	e.listenQueue = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "phpfpm_queue_monitor_listen_queue",
			Help: "Aggregate PHP-FPM listen queue depth from the last successful tick",
		},
	)

	e.containers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "phpfpm_queue_monitor_containers",
			Help: "Containers seen by the last successful tick, by pipeline state",
		},
		[]string{"state"},
	)

	e.ticks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phpfpm_queue_monitor_ticks_total",
			Help: "Total sampling ticks by outcome",
		},
		[]string{"outcome"},
	)

	e.emissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phpfpm_queue_monitor_emissions_total",
			Help: "Total emission decisions by outcome",
		},
		[]string{"outcome"},
	)

	e.tickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "phpfpm_queue_monitor_tick_duration_seconds",
			Help:    "Wall-clock duration of sampling ticks",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Register all metrics
	collectors := []prometheus.Collector{
		e.listenQueue,
		e.containers,
		e.ticks,
		e.emissions,
		e.tickDuration,
	}

	for _, collector := range collectors {
		if err := e.registry.Register(collector); err != nil {
			return fmt.Errorf("failed to register collector: %w", err)
		}
	}

	e.logger.Info("Initialized Prometheus metrics", zap.Int("collectors", len(collectors)))
	return nil
}

// rateLimitMiddleware provides rate limiting for endpoints
func (e *Exporter) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Check rate limit
		if !e.rateLimiter.Allow() {
			e.logger.Warn("Rate limit exceeded",
				zap.String("remote_addr", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()))

			w.Header().Set("Retry-After", "1")
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusResponse is the JSON document served on the status endpoint.
type statusResponse struct {
	Timestamp  time.Time              `json:"timestamp"`
	Health     types.HealthStatus     `json:"health"`
	LastSample *types.AggregateSample `json:"last_sample,omitempty"`
	Events     []telemetry.Event      `json:"events,omitempty"`
}

// statusHandler reports the last tick summary. A positive events query
// parameter appends that many recent journal events when a journal is wired.
func (e *Exporter) statusHandler(w http.ResponseWriter, r *http.Request) {
	e.mu.RLock()
	source := e.status
	events := e.events
	e.mu.RUnlock()

	status := statusResponse{
		Timestamp: time.Now().UTC(),
		Health:    types.HealthStatus{Overall: types.HealthStateUnknown},
	}

	if source != nil {
		status.Health = source.Health()
		if sample, ok := source.LastSample(); ok {
			status.LastSample = &sample
		}
	}

	if events != nil {
		if limit := parseEventLimit(r); limit > 0 {
			recent, err := events.GetEvents(r.Context(), telemetry.EventFilter{Limit: limit})
			if err != nil {
				e.logger.Warn("Failed to load journal events for status", zap.Error(err))
			} else {
				status.Events = recent
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		e.logger.Error("Failed to encode status response", zap.Error(err))
	}
}

// parseEventLimit reads the events query parameter. Missing, malformed or
// non-positive values disable the event listing.
func parseEventLimit(r *http.Request) int {
	raw := r.URL.Query().Get("events")
	if raw == "" {
		return 0
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0
	}
	if limit > maxStatusEvents {
		return maxStatusEvents
	}
	return limit
}

// rootHandler handles the root path
func (e *Exporter) rootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprintf(w, `<html>
<head><title>PHP-FPM Queue Monitor</title></head>
<body>
<h1>PHP-FPM Queue Monitor</h1>
<p><a href="%s">Metrics</a></p>
<p><a href="%s">Health</a></p>
<p><a href="%s">Status</a></p>
</body>
</html>`, e.config.MetricsPath, e.config.HealthPath, e.config.StatusPath)
}

// healthHandler handles health checks. The agent reports unhealthy only
// when a wired status source says so; a missing source means the server is
// up but the monitor has not been attached yet.
func (e *Exporter) healthHandler(w http.ResponseWriter, r *http.Request) {
	e.mu.RLock()
	source := e.status
	e.mu.RUnlock()

	overall := types.HealthStateStarting
	if source != nil {
		overall = source.Health().Overall
	}

	code := http.StatusOK
	if overall == types.HealthStateUnhealthy {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"status":%q,"timestamp":%q}`, overall, time.Now().UTC().Format(time.RFC3339))
}
