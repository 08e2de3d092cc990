package prometheus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/humanmade/php-fpm-queue-monitor/internal/config"
	"github.com/humanmade/php-fpm-queue-monitor/internal/telemetry"
	"github.com/humanmade/php-fpm-queue-monitor/internal/types"
	"go.uber.org/zap/zaptest"
	"golang.org/x/time/rate"
)

// stubStatusSource is a controllable StatusSource for handler tests.
type stubStatusSource struct {
	sample    types.AggregateSample
	hasSample bool
	health    types.HealthStatus
}

func (s *stubStatusSource) LastSample() (types.AggregateSample, bool) {
	return s.sample, s.hasSample
}

func (s *stubStatusSource) Health() types.HealthStatus {
	return s.health
}

// stubEventStorage is a canned journal for status endpoint tests.
type stubEventStorage struct {
	events     []telemetry.Event
	err        error
	lastFilter telemetry.EventFilter
}

func (s *stubEventStorage) StoreEvent(ctx context.Context, event telemetry.Event) error {
	return nil
}

func (s *stubEventStorage) GetEvents(ctx context.Context, filter telemetry.EventFilter) ([]telemetry.Event, error) {
	s.lastFilter = filter
	if s.err != nil {
		return nil, s.err
	}
	if filter.Limit > 0 && len(s.events) > filter.Limit {
		return s.events[:filter.Limit], nil
	}
	return s.events, nil
}

func testServerConfig() config.ServerConfig {
	return config.ServerConfig{
		Enabled:     true,
		BindAddress: "127.0.0.1:9531",
		MetricsPath: "/metrics",
		HealthPath:  "/health",
		StatusPath:  "/status",
	}
}

func newTestExporter(t *testing.T) *Exporter {
	t.Helper()

	exporter, err := NewExporter(testServerConfig(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create exporter: %v", err)
	}
	return exporter
}

// scrapeMetrics fetches the metrics endpoint through the full handler chain
// and returns the exposition text.
func scrapeMetrics(t *testing.T, exporter *Exporter) string {
	t.Helper()

	recorder := httptest.NewRecorder()
	exporter.Handler().ServeHTTP(recorder, httptest.NewRequest("GET", "/metrics", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("Expected status 200 from metrics endpoint, got %d", recorder.Code)
	}
	return recorder.Body.String()
}

func TestNewExporter(t *testing.T) {
	exporter := newTestExporter(t)

	if exporter.Handler() == nil {
		t.Error("Expected non-nil handler")
	}

	// A fresh exporter exposes the registered metric families with zero
	// activity recorded.
	body := scrapeMetrics(t, exporter)
	if !strings.Contains(body, "phpfpm_queue_monitor_tick_duration_seconds_count 0") {
		t.Errorf("Expected zero tick duration count in fresh scrape, got:\n%s", body)
	}
}

func TestObserveTick(t *testing.T) {
	exporter := newTestExporter(t)

	exporter.ObserveTick(types.AggregateSample{
		Queue:      7,
		Discovered: 5,
		Matched:    3,
		Sampled:    2,
		Failed:     1,
		Timestamp:  time.Now(),
		Duration:   25 * time.Millisecond,
	}, types.TickOutcomeOK)

	body := scrapeMetrics(t, exporter)

	expected := []string{
		`phpfpm_queue_monitor_listen_queue 7`,
		`phpfpm_queue_monitor_containers{state="discovered"} 5`,
		`phpfpm_queue_monitor_containers{state="matched"} 3`,
		`phpfpm_queue_monitor_containers{state="sampled"} 2`,
		`phpfpm_queue_monitor_containers{state="failed"} 1`,
		`phpfpm_queue_monitor_ticks_total{outcome="ok"} 1`,
		`phpfpm_queue_monitor_tick_duration_seconds_count 1`,
	}
	for _, want := range expected {
		if !strings.Contains(body, want) {
			t.Errorf("Expected scrape to contain %q, got:\n%s", want, body)
		}
	}
}

func TestObserveTickFailureKeepsGauges(t *testing.T) {
	exporter := newTestExporter(t)

	exporter.ObserveTick(types.AggregateSample{
		Queue:      12,
		Discovered: 4,
		Matched:    2,
		Sampled:    2,
		Duration:   10 * time.Millisecond,
	}, types.TickOutcomeOK)

	// A failed tick carries a zero-valued sample; the queue gauge must keep
	// reporting the last measured value.
	exporter.ObserveTick(types.AggregateSample{}, types.TickOutcomeDiscoveryError)

	body := scrapeMetrics(t, exporter)

	if !strings.Contains(body, `phpfpm_queue_monitor_listen_queue 12`) {
		t.Errorf("Expected queue gauge to keep last measured value, got:\n%s", body)
	}
	if !strings.Contains(body, `phpfpm_queue_monitor_ticks_total{outcome="discovery_error"} 1`) {
		t.Errorf("Expected discovery_error tick counted, got:\n%s", body)
	}
	if !strings.Contains(body, `phpfpm_queue_monitor_ticks_total{outcome="ok"} 1`) {
		t.Errorf("Expected ok tick counted, got:\n%s", body)
	}
	if !strings.Contains(body, `phpfpm_queue_monitor_tick_duration_seconds_count 2`) {
		t.Errorf("Expected both ticks observed in duration histogram, got:\n%s", body)
	}
}

func TestObserveEmission(t *testing.T) {
	exporter := newTestExporter(t)

	exporter.ObserveEmission(types.EmissionOutcomeEmitted)
	exporter.ObserveEmission(types.EmissionOutcomeEmitted)
	exporter.ObserveEmission(types.EmissionOutcomeSkipped)
	exporter.ObserveEmission(types.EmissionOutcomeDryRun)
	exporter.ObserveEmission(types.EmissionOutcomeFailed)

	body := scrapeMetrics(t, exporter)

	expected := []string{
		`phpfpm_queue_monitor_emissions_total{outcome="emitted"} 2`,
		`phpfpm_queue_monitor_emissions_total{outcome="skipped"} 1`,
		`phpfpm_queue_monitor_emissions_total{outcome="dry_run"} 1`,
		`phpfpm_queue_monitor_emissions_total{outcome="failed"} 1`,
	}
	for _, want := range expected {
		if !strings.Contains(body, want) {
			t.Errorf("Expected scrape to contain %q, got:\n%s", want, body)
		}
	}
}

func TestStatusHandler(t *testing.T) {
	t.Run("no sources wired", func(t *testing.T) {
		exporter := newTestExporter(t)

		recorder := httptest.NewRecorder()
		exporter.Handler().ServeHTTP(recorder, httptest.NewRequest("GET", "/status", nil))

		if recorder.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", recorder.Code)
		}

		var status statusResponse
		if err := json.Unmarshal(recorder.Body.Bytes(), &status); err != nil {
			t.Fatalf("Failed to decode status response: %v", err)
		}
		if status.Health.Overall != types.HealthStateUnknown {
			t.Errorf("Expected unknown health without a source, got %s", status.Health.Overall)
		}
		if status.LastSample != nil {
			t.Error("Expected no last sample without a source")
		}
	})

	t.Run("status source wired", func(t *testing.T) {
		exporter := newTestExporter(t)
		exporter.SetStatusSource(&stubStatusSource{
			sample:    types.AggregateSample{Queue: 9, Matched: 2, Sampled: 2},
			hasSample: true,
			health:    types.HealthStatus{Overall: types.HealthStateHealthy},
		})

		recorder := httptest.NewRecorder()
		exporter.Handler().ServeHTTP(recorder, httptest.NewRequest("GET", "/status", nil))

		var status statusResponse
		if err := json.Unmarshal(recorder.Body.Bytes(), &status); err != nil {
			t.Fatalf("Failed to decode status response: %v", err)
		}
		if status.Health.Overall != types.HealthStateHealthy {
			t.Errorf("Expected healthy, got %s", status.Health.Overall)
		}
		if status.LastSample == nil || status.LastSample.Queue != 9 {
			t.Errorf("Expected last sample with queue 9, got %+v", status.LastSample)
		}
		if len(status.Events) != 0 {
			t.Errorf("Expected no events without events parameter, got %d", len(status.Events))
		}
	})

	t.Run("recent events requested", func(t *testing.T) {
		exporter := newTestExporter(t)
		storage := &stubEventStorage{
			events: []telemetry.Event{
				{ID: "evt_1", Type: telemetry.EventTypeTickFailure, Severity: telemetry.SeverityWarning},
				{ID: "evt_2", Type: telemetry.EventTypeLifecycle, Severity: telemetry.SeverityInfo},
				{ID: "evt_3", Type: telemetry.EventTypeLifecycle, Severity: telemetry.SeverityInfo},
			},
		}
		exporter.SetEventSource(storage)

		recorder := httptest.NewRecorder()
		exporter.Handler().ServeHTTP(recorder, httptest.NewRequest("GET", "/status?events=2", nil))

		var status statusResponse
		if err := json.Unmarshal(recorder.Body.Bytes(), &status); err != nil {
			t.Fatalf("Failed to decode status response: %v", err)
		}
		if len(status.Events) != 2 {
			t.Fatalf("Expected 2 events, got %d", len(status.Events))
		}
		if status.Events[0].ID != "evt_1" {
			t.Errorf("Expected newest event first, got %s", status.Events[0].ID)
		}
		if storage.lastFilter.Limit != 2 {
			t.Errorf("Expected journal queried with limit 2, got %d", storage.lastFilter.Limit)
		}
	})

	t.Run("journal failure degrades gracefully", func(t *testing.T) {
		exporter := newTestExporter(t)
		exporter.SetEventSource(&stubEventStorage{err: fmt.Errorf("database is locked")})

		recorder := httptest.NewRecorder()
		exporter.Handler().ServeHTTP(recorder, httptest.NewRequest("GET", "/status?events=5", nil))

		if recorder.Code != http.StatusOK {
			t.Fatalf("Expected status 200 despite journal failure, got %d", recorder.Code)
		}

		var status statusResponse
		if err := json.Unmarshal(recorder.Body.Bytes(), &status); err != nil {
			t.Fatalf("Failed to decode status response: %v", err)
		}
		if len(status.Events) != 0 {
			t.Errorf("Expected no events after journal failure, got %d", len(status.Events))
		}
	})
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name           string
		source         StatusSource
		expectedStatus int
		expectedState  string
	}{
		{
			name:           "no status source attached",
			source:         nil,
			expectedStatus: http.StatusOK,
			expectedState:  "starting",
		},
		{
			name: "healthy agent",
			source: &stubStatusSource{
				health: types.HealthStatus{Overall: types.HealthStateHealthy},
			},
			expectedStatus: http.StatusOK,
			expectedState:  "healthy",
		},
		{
			name: "unhealthy agent",
			source: &stubStatusSource{
				health: types.HealthStatus{Overall: types.HealthStateUnhealthy},
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedState:  "unhealthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter := newTestExporter(t)
			if tt.source != nil {
				exporter.SetStatusSource(tt.source)
			}

			recorder := httptest.NewRecorder()
			exporter.Handler().ServeHTTP(recorder, httptest.NewRequest("GET", "/health", nil))

			if recorder.Code != tt.expectedStatus {
				t.Errorf("Expected status code %d, got %d", tt.expectedStatus, recorder.Code)
			}
			if !strings.Contains(recorder.Body.String(), tt.expectedState) {
				t.Errorf("Expected body to report %q, got %s", tt.expectedState, recorder.Body.String())
			}
		})
	}
}

func TestRootHandler(t *testing.T) {
	exporter := newTestExporter(t)

	recorder := httptest.NewRecorder()
	exporter.Handler().ServeHTTP(recorder, httptest.NewRequest("GET", "/", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", recorder.Code)
	}

	body := recorder.Body.String()
	for _, link := range []string{"/metrics", "/health", "/status"} {
		if !strings.Contains(body, link) {
			t.Errorf("Expected root page to link %s", link)
		}
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	exporter := newTestExporter(t)

	// One token, no refill: the second request must be rejected.
	exporter.rateLimiter = rate.NewLimiter(0, 1)

	handler := exporter.rateLimitMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest("GET", "/metrics", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("Expected first request to pass, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest("GET", "/metrics", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected second request to be rate limited, got %d", second.Code)
	}
	if second.Header().Get("Retry-After") != "1" {
		t.Error("Expected Retry-After header on rate limited response")
	}
}

func TestParseEventLimit(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		expected int
	}{
		{
			name:     "no parameter",
			query:    "",
			expected: 0,
		},
		{
			name:     "valid limit",
			query:    "?events=10",
			expected: 10,
		},
		{
			name:     "zero disables",
			query:    "?events=0",
			expected: 0,
		},
		{
			name:     "negative disables",
			query:    "?events=-3",
			expected: 0,
		},
		{
			name:     "malformed disables",
			query:    "?events=many",
			expected: 0,
		},
		{
			name:     "capped at maximum",
			query:    "?events=100000",
			expected: maxStatusEvents,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/status"+tt.query, nil)
			if got := parseEventLimit(req); got != tt.expected {
				t.Errorf("Expected limit %d, got %d", tt.expected, got)
			}
		})
	}
}

// Benchmark tests for the hot observation path
func BenchmarkObserveTick(b *testing.B) {
	exporter, err := NewExporter(testServerConfig(), zaptest.NewLogger(b))
	if err != nil {
		b.Fatalf("Failed to create exporter: %v", err)
	}

	sample := types.AggregateSample{
		Queue:      5,
		Discovered: 10,
		Matched:    4,
		Sampled:    4,
		Duration:   30 * time.Millisecond,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		exporter.ObserveTick(sample, types.TickOutcomeOK)
	}
}
