package telemetry

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// EventType represents the type of operational event
type EventType string

const (
	EventTypeLifecycle       EventType = "agent_lifecycle"
	EventTypeTickFailure     EventType = "tick_failure"
	EventTypeEmissionFailure EventType = "emission_failure"
	EventTypePreflight       EventType = "preflight"
)

// Event represents a structured operational event
type Event struct {
	ID            string                 `json:"id"`
	Type          EventType              `json:"type"`
	Timestamp     time.Time              `json:"timestamp"`
	Summary       string                 `json:"summary"`
	Details       map[string]interface{} `json:"details"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Severity      EventSeverity          `json:"severity"`
}

// EventSeverity represents the severity level of an event
type EventSeverity string

const (
	SeverityInfo     EventSeverity = "info"
	SeverityWarning  EventSeverity = "warning"
	SeverityError    EventSeverity = "error"
	SeverityCritical EventSeverity = "critical"
)

// LifecycleEventDetails represents details for agent lifecycle events
type LifecycleEventDetails struct {
	Action  string `json:"action"` // "start", "stop"
	Version string `json:"version,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// TickFailureEventDetails represents details for skipped sampling ticks
type TickFailureEventDetails struct {
	Error       string `json:"error"`
	Consecutive int    `json:"consecutive,omitempty"`
}

// EmissionFailureEventDetails represents details for dropped metric datums
type EmissionFailureEventDetails struct {
	Value        int64  `json:"value"`
	Error        string `json:"error"`
	CircuitState string `json:"circuit_state,omitempty"`
}

// PreflightEventDetails represents details for host preflight findings
type PreflightEventDetails struct {
	Findings []string `json:"findings,omitempty"`
	Degraded bool     `json:"degraded"`
}

// EventEmitter handles structured event emission with telemetry integration
type EventEmitter struct {
	service *Service
	logger  *zap.Logger
	storage EventStorage
}

// EventStorage interface for persisting events
type EventStorage interface {
	StoreEvent(ctx context.Context, event Event) error
	GetEvents(ctx context.Context, filter EventFilter) ([]Event, error)
}

// EventFilter represents filters for querying events
type EventFilter struct {
	StartTime time.Time
	EndTime   time.Time
	Type      EventType
	Severity  EventSeverity
	Limit     int
}

// NewEventEmitter creates a new event emitter. A nil storage keeps
// events log-only.
func NewEventEmitter(service *Service, logger *zap.Logger, storage EventStorage) *EventEmitter {
	return &EventEmitter{
		service: service,
		logger:  logger,
		storage: storage,
	}
}

// EmitLifecycleEvent emits an agent start/stop event
func (e *EventEmitter) EmitLifecycleEvent(ctx context.Context, details LifecycleEventDetails) error {
	event := Event{
		ID:        generateEventID(),
		Type:      EventTypeLifecycle,
		Timestamp: time.Now(),
		Summary:   formatLifecycleSummary(details),
		Details:   structToMap(details),
		Severity:  SeverityInfo,
	}

	return e.emitEvent(ctx, event)
}

// EmitTickFailureEvent emits an event for a sampling tick that produced
// no measurement
func (e *EventEmitter) EmitTickFailureEvent(ctx context.Context, details TickFailureEventDetails) error {
	event := Event{
		ID:        generateEventID(),
		Type:      EventTypeTickFailure,
		Timestamp: time.Now(),
		Summary:   formatTickFailureSummary(details),
		Details:   structToMap(details),
		Severity:  SeverityWarning,
	}

	return e.emitEvent(ctx, event)
}

// EmitEmissionFailureEvent emits an event for a dropped metric datum
func (e *EventEmitter) EmitEmissionFailureEvent(ctx context.Context, details EmissionFailureEventDetails) error {
	event := Event{
		ID:        generateEventID(),
		Type:      EventTypeEmissionFailure,
		Timestamp: time.Now(),
		Summary:   formatEmissionFailureSummary(details),
		Details:   structToMap(details),
		Severity:  SeverityError,
	}

	return e.emitEvent(ctx, event)
}

// EmitPreflightEvent emits the host preflight findings
func (e *EventEmitter) EmitPreflightEvent(ctx context.Context, details PreflightEventDetails) error {
	severity := SeverityInfo
	if details.Degraded {
		severity = SeverityWarning
	}

	event := Event{
		ID:        generateEventID(),
		Type:      EventTypePreflight,
		Timestamp: time.Now(),
		Summary:   formatPreflightSummary(details),
		Details:   structToMap(details),
		Severity:  severity,
	}

	return e.emitEvent(ctx, event)
}

// emitEvent handles the actual event emission with telemetry and storage
func (e *EventEmitter) emitEvent(ctx context.Context, event Event) error {
	// Add correlation ID from context if available
	if span := oteltrace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		event.CorrelationID = span.SpanContext().TraceID().String()
	}

	// Create telemetry span for the event
	if e.service.IsEnabled() {
		_, span := e.service.Tracer().Start(ctx, "event.emit",
			oteltrace.WithAttributes(
				attribute.String("event.type", string(event.Type)),
				attribute.String("event.severity", string(event.Severity)),
				attribute.String("event.summary", event.Summary),
			),
		)
		defer span.End()
	}

	// Store event in the journal
	if e.storage != nil {
		if err := e.storage.StoreEvent(ctx, event); err != nil {
			e.logger.Error("Failed to store event",
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)),
				zap.Error(err))
			return err
		}
	}

	// Log the event
	e.logger.Info("Event emitted",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("summary", event.Summary),
		zap.String("severity", string(event.Severity)))

	return nil
}

// GetEvents retrieves events from storage
func (e *EventEmitter) GetEvents(ctx context.Context, filter EventFilter) ([]Event, error) {
	if e.storage == nil {
		return nil, fmt.Errorf("event storage not configured")
	}

	return e.storage.GetEvents(ctx, filter)
}

// Helper functions for formatting event summaries
func formatLifecycleSummary(details LifecycleEventDetails) string {
	switch details.Action {
	case "start":
		if details.Version != "" {
			return fmt.Sprintf("Agent started (version %s)", details.Version)
		}
		return "Agent started"
	case "stop":
		if details.Reason != "" {
			return fmt.Sprintf("Agent stopped: %s", details.Reason)
		}
		return "Agent stopped"
	default:
		return fmt.Sprintf("Agent %s", details.Action)
	}
}

func formatTickFailureSummary(details TickFailureEventDetails) string {
	if details.Consecutive > 1 {
		return fmt.Sprintf("Sampling tick produced no measurement (%d consecutive): %s",
			details.Consecutive, details.Error)
	}
	return fmt.Sprintf("Sampling tick produced no measurement: %s", details.Error)
}

func formatEmissionFailureSummary(details EmissionFailureEventDetails) string {
	return fmt.Sprintf("Metric emission failed, measurement %d dropped: %s",
		details.Value, details.Error)
}

func formatPreflightSummary(details PreflightEventDetails) string {
	if len(details.Findings) > 0 {
		return fmt.Sprintf("Host preflight found %d issue(s)", len(details.Findings))
	}
	return "Host preflight passed"
}

// Utility functions
func generateEventID() string {
	// Generate 8 random bytes for a 16-character hex string
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID if random generation fails
		return fmt.Sprintf("evt_%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("evt_%s", hex.EncodeToString(bytes))
}

func structToMap(v interface{}) map[string]interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		// Return empty map on marshal error
		return make(map[string]interface{})
	}

	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		// Return empty map on unmarshal error
		return make(map[string]interface{})
	}

	return result
}
