// Package app assembles the agent's components and runs them as one
// process: the sampling pipeline behind the reporting loop, the metric
// sink, the event journal, tracing, and the observability server.
package app

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/humanmade/php-fpm-queue-monitor/internal/cloudwatch"
	"github.com/humanmade/php-fpm-queue-monitor/internal/config"
	"github.com/humanmade/php-fpm-queue-monitor/internal/docker"
	"github.com/humanmade/php-fpm-queue-monitor/internal/monitor"
	"github.com/humanmade/php-fpm-queue-monitor/internal/platform"
	"github.com/humanmade/php-fpm-queue-monitor/internal/prometheus"
	"github.com/humanmade/php-fpm-queue-monitor/internal/resilience"
	"github.com/humanmade/php-fpm-queue-monitor/internal/sampler"
	"github.com/humanmade/php-fpm-queue-monitor/internal/sockets"
	"github.com/humanmade/php-fpm-queue-monitor/internal/storage"
	"github.com/humanmade/php-fpm-queue-monitor/internal/telemetry"
	"github.com/humanmade/php-fpm-queue-monitor/internal/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Manager coordinates all agent components
type Manager struct {
	config *config.Config
	logger *zap.Logger

	// Journal is nil when the operational event journal is disabled;
	// events are then log-only.
	journal *storage.Journal

	// Exporter is nil when the observability server is disabled.
	exporter *prometheus.Exporter

	monitor          *monitor.Monitor
	telemetryService *telemetry.Service
	eventEmitter     *telemetry.EventEmitter

	// Internal state
	mu        sync.RWMutex
	running   bool
	startTime time.Time

	// Event channel
	events chan ManagerEvent
}

// ManagerEvent represents events from the manager
type ManagerEvent struct {
	Type      ManagerEventType `json:"type"`
	Message   string           `json:"message"`
	Timestamp time.Time        `json:"timestamp"`
	Error     error            `json:"error,omitempty"`
}

// ManagerEventType defines types of manager events
type ManagerEventType string

const (
	ManagerEventStarting ManagerEventType = "starting"
	ManagerEventStarted  ManagerEventType = "started"
	ManagerEventStopping ManagerEventType = "stopping"
	ManagerEventStopped  ManagerEventType = "stopped"
	ManagerEventError    ManagerEventType = "error"
)

// NewManager creates a new manager instance wired for production: the
// docker CLI runtime, the nsenter socket inspector, and the CloudWatch
// sink. Dry-run mode never constructs the sink, so no AWS credentials
// are needed to run with --dry-run.
func NewManager(cfg *config.Config, logger *zap.Logger) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	// Journal first so startup events land in it. Events emitted before
	// Run still persist; only the retention loop waits for Start.
	var journal *storage.Journal
	if cfg.Storage.DatabasePath != "" {
		var err error
		journal, err = storage.NewJournal(cfg.Storage, logger.Named("storage"))
		if err != nil {
			return nil, fmt.Errorf("failed to create event journal: %w", err)
		}
	}

	// Close the journal when a later component fails to construct.
	cleanup := func() {
		if journal != nil {
			journal.Stop(context.Background())
		}
	}

	// Create telemetry service
	telemetryConfig := telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: cfg.Telemetry.ServiceVersion,
		Environment:    cfg.Telemetry.Environment,
		Exporter: telemetry.ExporterConfig{
			Type:     cfg.Telemetry.Exporter.Type,
			Endpoint: cfg.Telemetry.Exporter.Endpoint,
			Headers:  cfg.Telemetry.Exporter.Headers,
			Insecure: cfg.Telemetry.Exporter.Insecure,
		},
		Sampling: telemetry.SamplingConfig{
			Rate: cfg.Telemetry.Sampling.Rate,
		},
	}

	telemetryService, err := telemetry.NewService(telemetryConfig, logger.Named("telemetry"))
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to create telemetry service: %w", err)
	}

	// Create event emitter; without a journal events are log-only
	var eventEmitter *telemetry.EventEmitter
	if journal != nil {
		eventEmitter = telemetry.NewEventEmitter(telemetryService, logger.Named("events"), journal.Events())
	} else {
		eventEmitter = telemetry.NewEventEmitter(telemetryService, logger.Named("events"), nil)
	}

	// Assemble the sampling pipeline
	runtime := docker.NewCLI(cfg.Sampling.ExecTimeout, logger)
	inspector := sockets.NewNSEnter(cfg.Sampling.SudoMode, cfg.Sampling.ExecTimeout, logger)
	classifier := sampler.NewClassifier(runtime, cfg.Sampling.CommandMarker, logger)
	queueSampler := sampler.NewQueueSampler(runtime, inspector, cfg.Sampling.SocketPath, logger)
	aggregator := sampler.NewAggregator(runtime, classifier, queueSampler, cfg.Sampling.MaxConcurrency, logger)

	// Create the metric sink unless emission is disabled
	var sink types.MetricsSink
	if !cfg.CloudWatch.DryRun {
		emitter, err := cloudwatch.NewEmitter(context.Background(), cfg.CloudWatch, logger)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("failed to create cloudwatch emitter: %w", err)
		}
		sink = emitter
	}

	breaker := resilience.NewCircuitBreaker("cloudwatch", resilience.DefaultCircuitBreakerConfig(), logger)

	queueMonitor, err := monitor.NewMonitor(monitor.Config{
		Interval:   cfg.Sampling.Interval,
		DryRun:     cfg.CloudWatch.DryRun,
		Namespace:  cfg.CloudWatch.Namespace,
		MetricName: cfg.CloudWatch.MetricName,
	}, aggregator, sink, breaker, eventEmitter, telemetryService.GetTraceHelper(), logger)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to create monitor: %w", err)
	}

	// Create the observability server when enabled
	var exporter *prometheus.Exporter
	if cfg.Server.Enabled {
		exporter, err = prometheus.NewExporter(cfg.Server, logger.Named("prometheus"))
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("failed to create observability server: %w", err)
		}
	}

	m := &Manager{
		config:           cfg,
		logger:           logger,
		journal:          journal,
		exporter:         exporter,
		monitor:          queueMonitor,
		telemetryService: telemetryService,
		eventEmitter:     eventEmitter,
		events:           make(chan ManagerEvent, config.DefaultEventChannelBuffer),
	}

	// The status and health endpoints read manager state; the monitor
	// feeds tick outcomes back into the Prometheus metrics.
	if exporter != nil {
		exporter.SetStatusSource(m)
		if journal != nil {
			exporter.SetEventSource(journal.Events())
		}
		queueMonitor.SetObserver(exporter)
	}

	return m, nil
}

// Run starts the manager and all its components, blocking until the
// context is cancelled or a component fails.
func (m *Manager) Run(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("manager is already running")
	}
	m.running = true
	m.startTime = time.Now()
	m.mu.Unlock()

	m.emitEvent(ManagerEventStarting, "Starting php-fpm-queue-monitor")

	// Perform pre-flight checks before starting any services
	if err := m.performPreflightChecks(ctx); err != nil {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
		m.emitEvent(ManagerEventError, fmt.Sprintf("Pre-flight checks failed: %v", err))
		return fmt.Errorf("pre-flight checks failed: %w", err)
	}

	// Create error group for coordinated startup/shutdown
	g, gCtx := errgroup.WithContext(ctx)

	// Start event journal
	if m.journal != nil {
		g.Go(func() error {
			m.logger.Info("Starting event journal")
			return m.journal.Start(gCtx)
		})
	}

	// Start telemetry service
	g.Go(func() error {
		m.logger.Info("Starting telemetry service")
		return m.telemetryService.Start(gCtx)
	})

	// Start observability server
	if m.exporter != nil {
		g.Go(func() error {
			m.logger.Info("Starting observability server")
			return m.exporter.Start(gCtx)
		})
	}

	// Start reporting loop
	g.Go(func() error {
		m.logger.Info("Starting reporting loop")
		return m.monitor.Start(gCtx)
	})

	// Start event processing
	g.Go(func() error {
		return m.processEvents(gCtx)
	})

	m.emitEvent(ManagerEventStarted, "Agent started successfully")
	m.emitLifecycle(ctx, "start", "")
	m.logger.Info("Agent started successfully",
		zap.Duration("interval", m.config.Sampling.Interval),
		zap.Bool("dry_run", m.config.CloudWatch.DryRun),
		zap.Duration("startup_time", time.Since(m.startTime)))

	// Wait for completion or error
	err := g.Wait()

	m.emitEvent(ManagerEventStopping, "Shutting down components")
	m.logger.Info("Stopping remaining services")

	// Journal and telemetry Start calls return immediately, so the error
	// group never owns their teardown.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.DefaultShutdownTimeout)
	defer cancel()

	// Journal the stop before closing the journal.
	m.emitLifecycle(shutdownCtx, "stop", shutdownReason(err))

	if stopErr := m.telemetryService.Stop(shutdownCtx); stopErr != nil {
		m.logger.Error("Failed to stop telemetry service", zap.Error(stopErr))
	}
	if m.journal != nil {
		if stopErr := m.journal.Stop(shutdownCtx); stopErr != nil {
			m.logger.Error("Failed to stop event journal", zap.Error(stopErr))
		}
	}

	// Clean shutdown
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()

	m.emitEvent(ManagerEventStopped, "Agent stopped")

	if err != nil && err != context.Canceled {
		m.logger.Error("Agent stopped with error", zap.Error(err))
		return err
	}

	m.logger.Info("Agent stopped gracefully")
	return nil
}

// Health returns the aggregated health of the agent's components. The
// reporting loop drives the overall state: persistent sampling failure
// is the one condition that makes the agent useless while running.
func (m *Manager) Health() types.HealthStatus {
	m.mu.RLock()
	running := m.running
	m.mu.RUnlock()

	if !running {
		return types.HealthStatus{
			Overall: types.HealthStateStopping,
			Updated: time.Now(),
		}
	}

	health := m.monitor.Health()
	if health.Components == nil {
		health.Components = make(map[string]types.HealthState)
	}
	if m.journal != nil {
		// A stopped journal degrades status reporting, never sampling.
		state := types.HealthStateHealthy
		if !m.journal.IsRunning() {
			state = types.HealthStateStarting
		}
		health.Components["journal"] = state
	}

	return health
}

// LastSample returns the most recent completed tick, if any.
func (m *Manager) LastSample() (types.AggregateSample, bool) {
	return m.monitor.LastSample()
}

// IsRunning returns true if the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// processEvents handles internal events
func (m *Manager) processEvents(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-m.events:
			m.logger.Info("Manager event",
				zap.String("type", string(event.Type)),
				zap.String("message", event.Message),
				zap.Error(event.Error))
		}
	}
}

// emitEvent emits a manager event
func (m *Manager) emitEvent(eventType ManagerEventType, message string) {
	event := ManagerEvent{
		Type:      eventType,
		Message:   message,
		Timestamp: time.Now(),
	}

	select {
	case m.events <- event:
	default:
		// Channel full, log directly
		m.logger.Warn("Event channel full, dropping event",
			zap.String("type", string(eventType)),
			zap.String("message", message))
	}
}

// emitLifecycle journals an agent start/stop event.
func (m *Manager) emitLifecycle(ctx context.Context, action, reason string) {
	details := telemetry.LifecycleEventDetails{
		Action:  action,
		Version: m.config.Telemetry.ServiceVersion,
		Reason:  reason,
	}
	if err := m.eventEmitter.EmitLifecycleEvent(ctx, details); err != nil {
		m.logger.Warn("Failed to journal lifecycle event", zap.Error(err))
	}
}

// shutdownReason maps the run loop's exit into a lifecycle event reason.
func shutdownReason(err error) string {
	if err != nil && err != context.Canceled {
		return err.Error()
	}
	return "signal"
}

// performPreflightChecks surveys the host before any component starts.
// Missing host tools degrade the agent (every tick will fail and surface
// through health) but do not abort startup; only an unusable bind
// address does, because the server could never come up.
func (m *Manager) performPreflightChecks(ctx context.Context) error {
	m.logger.Info("Performing pre-flight checks")

	diag := platform.Diagnose(ctx)
	for _, finding := range diag.Warnings {
		m.logger.Warn("Pre-flight finding", zap.String("finding", finding))
	}
	if err := m.eventEmitter.EmitPreflightEvent(ctx, telemetry.PreflightEventDetails{
		Findings: diag.Warnings,
		Degraded: !diag.Healthy(),
	}); err != nil {
		m.logger.Warn("Failed to journal preflight event", zap.Error(err))
	}

	// Check for port conflicts with the observability server bind address
	if m.config.Server.Enabled && m.config.Server.BindAddress != "" {
		if err := m.checkBindAddressAvailable(m.config.Server.BindAddress); err != nil {
			return fmt.Errorf("server bind address %s is not available: %w", m.config.Server.BindAddress, err)
		}
		m.logger.Info("Server bind address available", zap.String("bind_address", m.config.Server.BindAddress))
	}

	m.logger.Info("Pre-flight checks complete")
	return nil
}

// checkBindAddressAvailable checks if a bind address is available for binding
func (m *Manager) checkBindAddressAvailable(bindAddress string) error {
	// Try to listen on the address briefly to see if it's available
	listener, err := net.Listen("tcp", bindAddress)
	if err != nil {
		return fmt.Errorf("address is already in use or cannot be bound: %w", err)
	}
	listener.Close()

	return nil
}
