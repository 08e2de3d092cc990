// Package monitor runs the reporting loop: a fixed-cadence ticker where
// each tick measures the aggregate listen queue and decides what to do with
// it. Positive aggregates go to the metrics sink (or the log, in dry-run
// mode); zero aggregates are deliberately not emitted. No tick-level error
// ever stops the loop.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/humanmade/php-fpm-queue-monitor/internal/resilience"
	"github.com/humanmade/php-fpm-queue-monitor/internal/telemetry"
	"github.com/humanmade/php-fpm-queue-monitor/internal/types"
	"go.uber.org/zap"
)

// unhealthyTickThreshold is how many consecutive failed ticks flip the
// loop's health to unhealthy. One-off discovery blips stay warnings.
const unhealthyTickThreshold = 3

// TickObserver receives per-tick observations for the metrics surface.
type TickObserver interface {
	ObserveTick(sample types.AggregateSample, outcome string)
	ObserveEmission(outcome string)
}

// Config holds the reporting loop settings. Namespace and MetricName are
// carried for logging and traces only; the sink owns the real target.
type Config struct {
	Interval   time.Duration
	DryRun     bool
	Namespace  string
	MetricName string
}

// Monitor owns the periodic sampling loop.
type Monitor struct {
	config  Config
	source  types.SampleSource
	sink    types.MetricsSink
	breaker *resilience.CircuitBreaker
	events  *telemetry.EventEmitter
	traces  *telemetry.TraceHelper
	logger  *zap.Logger

	// observer is optional; the loop runs headless when the
	// observability server is disabled.
	observer TickObserver

	mu          sync.RWMutex
	running     bool
	lastSample  types.AggregateSample
	hasSample   bool
	consecutive int
}

// NewMonitor wires the reporting loop.
func NewMonitor(cfg Config, source types.SampleSource, sink types.MetricsSink, breaker *resilience.CircuitBreaker, events *telemetry.EventEmitter, traces *telemetry.TraceHelper, logger *zap.Logger) (*Monitor, error) {
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", cfg.Interval)
	}
	if source == nil {
		return nil, fmt.Errorf("sample source is required")
	}
	if sink == nil && !cfg.DryRun {
		return nil, fmt.Errorf("metrics sink is required outside dry-run mode")
	}
	if breaker == nil {
		return nil, fmt.Errorf("circuit breaker is required")
	}
	if events == nil {
		return nil, fmt.Errorf("event emitter is required")
	}
	if traces == nil {
		return nil, fmt.Errorf("trace helper is required")
	}

	return &Monitor{
		config:  cfg,
		source:  source,
		sink:    sink,
		breaker: breaker,
		events:  events,
		traces:  traces,
		logger:  logger.Named("monitor"),
	}, nil
}

// SetObserver attaches the metrics surface. Called once during wiring,
// before Start.
func (m *Monitor) SetObserver(observer TickObserver) {
	m.observer = observer
}

// Start runs the loop until the context is cancelled. The first tick fires
// immediately; afterwards ticks follow the configured interval. Ticks never
// overlap, and a tick that overruns the interval delays the next one
// instead of firing twice.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("monitor is already running")
	}
	m.running = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	m.logger.Info("Starting reporting loop",
		zap.Duration("interval", m.config.Interval),
		zap.Bool("dry_run", m.config.DryRun),
		zap.String("namespace", m.config.Namespace),
		zap.String("metric_name", m.config.MetricName))

	m.tick(ctx)

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Reporting loop stopped")
			return nil
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

// IsRunning returns true while the loop is active.
func (m *Monitor) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// LastSample returns the most recent completed measurement.
func (m *Monitor) LastSample() (types.AggregateSample, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastSample, m.hasSample
}

// Health reports the loop's view of itself. Only repeated discovery
// failures make it unhealthy; per-container failures degrade to logs and
// gauges because the aggregate still carries a defensible value.
func (m *Monitor) Health() types.HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var state types.HealthState
	switch {
	case m.running && m.consecutive >= unhealthyTickThreshold:
		state = types.HealthStateUnhealthy
	case m.running:
		state = types.HealthStateHealthy
	case m.hasSample:
		state = types.HealthStateStopping
	default:
		state = types.HealthStateStarting
	}

	return types.HealthStatus{
		Overall: state,
		Components: map[string]types.HealthState{
			"monitor": state,
		},
		Updated: time.Now(),
	}
}

// tick runs one full sample-and-report cycle. Every exit path is
// non-fatal.
func (m *Monitor) tick(ctx context.Context) {
	sample, err := m.traces.TraceSamplingTickFunc(ctx, m.source.Sample)
	if err != nil {
		m.observeTick(sample, types.TickOutcomeDiscoveryError)
		m.recordTickFailure(ctx, err)
		return
	}

	m.mu.Lock()
	m.lastSample = sample
	m.hasSample = true
	m.consecutive = 0
	m.mu.Unlock()

	m.observeTick(sample, types.TickOutcomeOK)

	m.logger.Info("Sampling tick complete",
		zap.Int64("queue", sample.Queue),
		zap.Int("discovered", sample.Discovered),
		zap.Int("matched", sample.Matched),
		zap.Int("sampled", sample.Sampled),
		zap.Int("failed", sample.Failed),
		zap.Duration("duration", sample.Duration))

	m.emit(ctx, sample)
}

// emit applies the emission decision for one measured sample. Zero stays
// home; dry-run logs what would have been sent; everything else goes to
// the sink behind the circuit breaker.
func (m *Monitor) emit(ctx context.Context, sample types.AggregateSample) {
	if sample.Queue <= 0 {
		m.observeEmission(types.EmissionOutcomeSkipped)
		return
	}

	if m.config.DryRun {
		m.logger.Info("Would send metric",
			zap.String("namespace", m.config.Namespace),
			zap.String("metric_name", m.config.MetricName),
			zap.Int64("value", sample.Queue))
		m.observeEmission(types.EmissionOutcomeDryRun)
		return
	}

	err := m.traces.TraceMetricEmissionFunc(ctx, m.config.Namespace, m.config.MetricName, sample.Queue,
		func(ctx context.Context) error {
			return m.breaker.Execute(ctx, func(ctx context.Context) error {
				return m.sink.Emit(ctx, sample.Queue)
			})
		})
	if err != nil {
		m.observeEmission(types.EmissionOutcomeFailed)
		m.recordEmissionFailure(ctx, sample.Queue, err)
		return
	}

	m.observeEmission(types.EmissionOutcomeEmitted)
	m.logger.Info("Metric emitted",
		zap.String("namespace", m.config.Namespace),
		zap.String("metric_name", m.config.MetricName),
		zap.Int64("value", sample.Queue))
}

// recordTickFailure logs and journals a tick that produced no measurement.
func (m *Monitor) recordTickFailure(ctx context.Context, err error) {
	m.mu.Lock()
	m.consecutive++
	consecutive := m.consecutive
	m.mu.Unlock()

	m.logger.Warn("Sampling tick produced no measurement",
		zap.Int("consecutive", consecutive),
		zap.Error(err))

	if emitErr := m.events.EmitTickFailureEvent(ctx, telemetry.TickFailureEventDetails{
		Error:       err.Error(),
		Consecutive: consecutive,
	}); emitErr != nil {
		m.logger.Error("Failed to record tick failure event", zap.Error(emitErr))
	}
}

// recordEmissionFailure logs and journals a dropped measurement. There is
// no retry; the next tick produces a fresher value than any redelivery
// could.
func (m *Monitor) recordEmissionFailure(ctx context.Context, value int64, err error) {
	if resilience.IsCircuitBreakerError(err) {
		m.logger.Warn("Measurement dropped: emission circuit open",
			zap.Int64("value", value))
	} else {
		m.logger.Error("Measurement dropped after failed emission",
			zap.Int64("value", value),
			zap.Error(err))
	}

	if emitErr := m.events.EmitEmissionFailureEvent(ctx, telemetry.EmissionFailureEventDetails{
		Value:        value,
		Error:        err.Error(),
		CircuitState: m.breaker.GetState().String(),
	}); emitErr != nil {
		m.logger.Error("Failed to record emission failure event", zap.Error(emitErr))
	}
}

func (m *Monitor) observeTick(sample types.AggregateSample, outcome string) {
	if m.observer != nil {
		m.observer.ObserveTick(sample, outcome)
	}
}

func (m *Monitor) observeEmission(outcome string) {
	if m.observer != nil {
		m.observer.ObserveEmission(outcome)
	}
}
