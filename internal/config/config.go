package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/humanmade/php-fpm-queue-monitor/internal/security"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Sampling   SamplingConfig   `yaml:"sampling"`
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// SamplingConfig controls the sampling pipeline: how often a tick fires and
// how the per-container pipeline talks to the host utilities.
type SamplingConfig struct {
	// Interval is the wall-clock tick cadence. Ticks never overlap; an
	// overrunning tick delays the next one instead of firing twice.
	Interval time.Duration `yaml:"interval"`

	// SocketPath is the well-known FPM listen socket matched inside the
	// container's network namespace.
	SocketPath string `yaml:"socket_path"`

	// CommandMarker is the launch-command token that classifies a container
	// as the monitored workload. Exact token equality, never substring.
	CommandMarker string `yaml:"command_marker"`

	// ExecTimeout bounds every external command invocation. A timeout is
	// treated as that call's failure mode.
	ExecTimeout time.Duration `yaml:"exec_timeout"`

	// MaxConcurrency bounds parallel per-container pipelines within a tick.
	// Values <= 1 sample sequentially.
	MaxConcurrency int `yaml:"max_concurrency"`

	// SudoMode controls privilege escalation for namespace entry:
	// "auto", "always" or "never".
	SudoMode string `yaml:"sudo_mode"`
}

// CloudWatchConfig contains metric emission settings
type CloudWatchConfig struct {
	Namespace  string   `yaml:"namespace"`
	MetricName string   `yaml:"metric_name"`
	Region     string   `yaml:"region,omitempty"`
	Dimensions []string `yaml:"dimensions,omitempty"` // "key=value" pairs
	DryRun     bool     `yaml:"dry_run"`
}

// ServerConfig contains the observability HTTP server settings
type ServerConfig struct {
	Enabled     bool   `yaml:"enabled"`
	BindAddress string `yaml:"bind_address"`
	MetricsPath string `yaml:"metrics_path"`
	HealthPath  string `yaml:"health_path"`
	StatusPath  string `yaml:"status_path"`
}

// StorageConfig contains the operational event journal settings
type StorageConfig struct {
	// DatabasePath is the SQLite file backing the journal. ":memory:" keeps
	// the journal in process memory; empty disables it entirely.
	DatabasePath    string        `yaml:"database_path"`
	EventRetention  time.Duration `yaml:"event_retention"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// TelemetryConfig contains telemetry settings
type TelemetryConfig struct {
	Enabled        bool                    `yaml:"enabled"`
	ServiceName    string                  `yaml:"service_name"`
	ServiceVersion string                  `yaml:"service_version"`
	Environment    string                  `yaml:"environment"`
	Exporter       TelemetryExporterConfig `yaml:"exporter"`
	Sampling       TelemetrySamplingConfig `yaml:"sampling"`
}

// TelemetryExporterConfig configures telemetry exporters
type TelemetryExporterConfig struct {
	Type     string            `yaml:"type"` // "stdout", "otlp"
	Endpoint string            `yaml:"endpoint,omitempty"`
	Headers  map[string]string `yaml:"headers,omitempty"`
	Insecure bool              `yaml:"insecure,omitempty"`
}

// TelemetrySamplingConfig configures trace sampling
type TelemetrySamplingConfig struct {
	Rate float64 `yaml:"rate"` // 0.0 to 1.0
}

// LoadDefault creates a zero-configuration setup with all defaults
func LoadDefault() (*Config, error) {
	var config Config

	applyDefaults(&config)

	// Zero-config mode runs with the observability server on and traces
	// sampled to stdout disabled; emission defaults stay untouched.
	config.Server.Enabled = true

	if err := ensureStorageDirectory(&config); err != nil {
		return nil, fmt.Errorf("directory creation failed: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid default configuration: %w", err)
	}

	return &config, nil
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&config)

	if err := ensureStorageDirectory(&config); err != nil {
		return nil, fmt.Errorf("directory creation failed: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.Sampling.Interval == 0 {
		cfg.Sampling.Interval = DefaultSamplingInterval
	}
	if cfg.Sampling.SocketPath == "" {
		cfg.Sampling.SocketPath = DefaultSocketPath
	}
	if cfg.Sampling.CommandMarker == "" {
		cfg.Sampling.CommandMarker = DefaultCommandMarker
	}
	if cfg.Sampling.ExecTimeout == 0 {
		cfg.Sampling.ExecTimeout = DefaultExecTimeout
	}
	if cfg.Sampling.MaxConcurrency == 0 {
		cfg.Sampling.MaxConcurrency = DefaultMaxConcurrency
	}
	if cfg.Sampling.SudoMode == "" {
		cfg.Sampling.SudoMode = SudoModeAuto
	}

	if cfg.CloudWatch.Namespace == "" {
		cfg.CloudWatch.Namespace = DefaultNamespace
	}
	if cfg.CloudWatch.MetricName == "" {
		cfg.CloudWatch.MetricName = DefaultMetricName
	}

	if cfg.Server.BindAddress == "" {
		cfg.Server.BindAddress = DefaultBindAddress
	}
	if cfg.Server.MetricsPath == "" {
		cfg.Server.MetricsPath = "/metrics"
	}
	if cfg.Server.HealthPath == "" {
		cfg.Server.HealthPath = "/health"
	}
	if cfg.Server.StatusPath == "" {
		cfg.Server.StatusPath = "/status"
	}

	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = ":memory:"
	}
	if cfg.Storage.EventRetention == 0 {
		cfg.Storage.EventRetention = DefaultEventRetention
	}
	if cfg.Storage.CleanupInterval == 0 {
		cfg.Storage.CleanupInterval = DefaultCleanupInterval
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = DefaultServiceName
	}
	if cfg.Telemetry.ServiceVersion == "" {
		cfg.Telemetry.ServiceVersion = "dev"
	}
	if cfg.Telemetry.Environment == "" {
		cfg.Telemetry.Environment = EnvProduction
	}
	if cfg.Telemetry.Exporter.Type == "" {
		cfg.Telemetry.Exporter.Type = ExporterTypeStdout
	}
	if cfg.Telemetry.Sampling.Rate == 0 {
		cfg.Telemetry.Sampling.Rate = DefaultSamplingRate
	}
}

// ValidationError represents a structured validation error
type ValidationError struct {
	Field      string      // Configuration field path (e.g., "sampling.interval")
	Value      interface{} // Invalid value
	Message    string      // Human-readable error message
	Suggestion string      // Suggested fix
}

// ValidationResult contains the results of configuration validation
type ValidationResult struct {
	Valid    bool              // Overall validation status
	Errors   []ValidationError // List of validation errors
	Warnings []ValidationError // List of validation warnings
}

// Error implements the error interface for ValidationResult
func (vr *ValidationResult) Error() string {
	if len(vr.Errors) == 0 {
		return "no validation errors"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d error(s):\n", len(vr.Errors)))

	for i, err := range vr.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s", i+1, err.Field, err.Message))
		if err.Suggestion != "" {
			sb.WriteString(fmt.Sprintf(" (suggestion: %s)", err.Suggestion))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// validate checks the configuration for required fields and consistency
func validate(cfg *Config) error {
	result := validateConfiguration(cfg)
	if !result.Valid {
		return result
	}
	return nil
}

// validateConfiguration performs comprehensive validation and returns detailed results
func validateConfiguration(cfg *Config) *ValidationResult {
	result := &ValidationResult{Valid: true}

	validateSamplingConfig(&cfg.Sampling, result)
	validateCloudWatchConfig(&cfg.CloudWatch, result)
	validateServerConfig(&cfg.Server, result)
	validateStorageConfig(&cfg.Storage, result)
	validateTelemetryConfig(&cfg.Telemetry, result)

	result.Valid = len(result.Errors) == 0

	return result
}

// GetValidationResult returns detailed validation results for a configuration
func GetValidationResult(cfg *Config) *ValidationResult {
	return validateConfiguration(cfg)
}

// validateSamplingConfig validates the sampling pipeline configuration
func validateSamplingConfig(cfg *SamplingConfig, result *ValidationResult) {
	if err := validateDuration(cfg.Interval, time.Second, 24*time.Hour, "sampling.interval"); err != nil {
		result.Errors = append(result.Errors, *err)
	} else if cfg.Interval < 5*time.Second {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:      "sampling.interval",
			Value:      cfg.Interval.String(),
			Message:    "very short sampling intervals spawn external commands aggressively",
			Suggestion: "use 5s or more unless the host is sized for it",
		})
	}

	if err := validateDuration(cfg.ExecTimeout, 100*time.Millisecond, time.Hour, "sampling.exec_timeout"); err != nil {
		result.Errors = append(result.Errors, *err)
	} else if cfg.ExecTimeout >= cfg.Interval && cfg.Interval >= time.Second {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:      "sampling.exec_timeout",
			Value:      cfg.ExecTimeout.String(),
			Message:    "exec timeout is not shorter than the sampling interval; a stuck command delays ticks",
			Suggestion: fmt.Sprintf("use a value below %s", cfg.Interval),
		})
	}

	if err := validatePositiveInt(cfg.MaxConcurrency, "sampling.max_concurrency"); err != nil {
		result.Errors = append(result.Errors, *err)
	} else if cfg.MaxConcurrency > MaxSamplingConcurrency {
		result.Errors = append(result.Errors, ValidationError{
			Field:      "sampling.max_concurrency",
			Value:      cfg.MaxConcurrency,
			Message:    fmt.Sprintf("concurrency above %d exhausts process-spawn limits", MaxSamplingConcurrency),
			Suggestion: fmt.Sprintf("use a value between 1 and %d", MaxSamplingConcurrency),
		})
	}

	if err := security.ValidateSocketPath(cfg.SocketPath); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:      "sampling.socket_path",
			Value:      cfg.SocketPath,
			Message:    fmt.Sprintf("invalid socket path: %v", err),
			Suggestion: "use an absolute path such as /var/run/php-fpm/www.socket",
		})
	}

	if err := validateStringNotEmpty(cfg.CommandMarker, "sampling.command_marker"); err != nil {
		result.Errors = append(result.Errors, *err)
	} else if strings.ContainsAny(cfg.CommandMarker, " \t\n") {
		result.Errors = append(result.Errors, ValidationError{
			Field:      "sampling.command_marker",
			Value:      cfg.CommandMarker,
			Message:    "command marker must be a single launch-command token",
			Suggestion: "use the workload binary name, e.g. 'php-fpm'",
		})
	}

	switch cfg.SudoMode {
	case SudoModeAuto, SudoModeAlways, SudoModeNever:
	default:
		result.Errors = append(result.Errors, ValidationError{
			Field:      "sampling.sudo_mode",
			Value:      cfg.SudoMode,
			Message:    "unknown sudo mode",
			Suggestion: "use 'auto', 'always' or 'never'",
		})
	}
}

// validateCloudWatchConfig validates metric emission configuration
func validateCloudWatchConfig(cfg *CloudWatchConfig, result *ValidationResult) {
	if err := security.ValidateNamespace(cfg.Namespace); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:      "cloudwatch.namespace",
			Value:      cfg.Namespace,
			Message:    fmt.Sprintf("invalid namespace: %v", err),
			Suggestion: "use a plain namespace such as 'PhpFpm'",
		})
	}

	if err := validateStringNotEmpty(cfg.MetricName, "cloudwatch.metric_name"); err != nil {
		result.Errors = append(result.Errors, *err)
	} else if len(cfg.MetricName) > 255 {
		result.Errors = append(result.Errors, ValidationError{
			Field:      "cloudwatch.metric_name",
			Value:      cfg.MetricName,
			Message:    "metric name exceeds 255 characters",
			Suggestion: "shorten the metric name",
		})
	}

	if len(cfg.Dimensions) > MaxDimensions {
		result.Errors = append(result.Errors, ValidationError{
			Field:      "cloudwatch.dimensions",
			Value:      len(cfg.Dimensions),
			Message:    fmt.Sprintf("at most %d dimensions are accepted per metric", MaxDimensions),
			Suggestion: "reduce the number of dimensions",
		})
	}

	for i, raw := range cfg.Dimensions {
		name, value, found := strings.Cut(raw, "=")
		if !found {
			result.Warnings = append(result.Warnings, ValidationError{
				Field:      fmt.Sprintf("cloudwatch.dimensions[%d]", i),
				Value:      raw,
				Message:    "dimension is not in key=value form and will be dropped at runtime",
				Suggestion: "use 'key=value'",
			})
			continue
		}
		if err := security.ValidateDimension(name, value); err != nil {
			result.Warnings = append(result.Warnings, ValidationError{
				Field:      fmt.Sprintf("cloudwatch.dimensions[%d]", i),
				Value:      raw,
				Message:    fmt.Sprintf("dimension will be dropped at runtime: %v", err),
				Suggestion: "use printable key=value pairs within CloudWatch limits",
			})
		}
	}

	if cfg.Region != "" && !isValidRegion(cfg.Region) {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:      "cloudwatch.region",
			Value:      cfg.Region,
			Message:    "region does not look like an AWS region identifier",
			Suggestion: "use a region such as 'us-east-1', or leave empty for the default provider chain",
		})
	}
}

// validateServerConfig validates the observability server configuration
func validateServerConfig(cfg *ServerConfig, result *ValidationResult) {
	if !cfg.Enabled {
		return
	}

	if cfg.BindAddress == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:      "server.bind_address",
			Value:      cfg.BindAddress,
			Message:    "bind address cannot be empty",
			Suggestion: "use '127.0.0.1:9531' for localhost only",
		})
	} else if err := validateNetworkAddress(cfg.BindAddress); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:      "server.bind_address",
			Value:      cfg.BindAddress,
			Message:    fmt.Sprintf("invalid bind address: %v", err),
			Suggestion: "use format 'host:port' e.g., '127.0.0.1:9531'",
		})
	}

	paths := map[string]string{
		"server.metrics_path": cfg.MetricsPath,
		"server.health_path":  cfg.HealthPath,
		"server.status_path":  cfg.StatusPath,
	}
	seen := make(map[string]string, len(paths))
	for field, path := range paths {
		if path == "" || !strings.HasPrefix(path, "/") {
			result.Errors = append(result.Errors, ValidationError{
				Field:      field,
				Value:      path,
				Message:    "path must start with '/'",
				Suggestion: "use an absolute URL path such as '/metrics'",
			})
			continue
		}
		if other, dup := seen[path]; dup {
			result.Errors = append(result.Errors, ValidationError{
				Field:      field,
				Value:      path,
				Message:    fmt.Sprintf("path collides with %s", other),
				Suggestion: "give each endpoint a distinct path",
			})
		}
		seen[path] = field
	}
}

// validateStorageConfig validates the event journal configuration
func validateStorageConfig(cfg *StorageConfig, result *ValidationResult) {
	if cfg.DatabasePath == "" || cfg.DatabasePath == ":memory:" {
		// journal disabled or in-memory; nothing to check on disk
	} else if err := validateFilePath(cfg.DatabasePath, false); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:      "storage.database_path",
			Value:      cfg.DatabasePath,
			Message:    fmt.Sprintf("invalid database path: %v", err),
			Suggestion: "use an absolute path or ':memory:'",
		})
	}

	if cfg.EventRetention != 0 {
		if err := validateDuration(cfg.EventRetention, time.Hour, 0, "storage.event_retention"); err != nil {
			result.Errors = append(result.Errors, *err)
		}
	}

	if cfg.CleanupInterval != 0 {
		if err := validateDuration(cfg.CleanupInterval, time.Minute, 0, "storage.cleanup_interval"); err != nil {
			result.Errors = append(result.Errors, *err)
		}
	}
}

// validateTelemetryConfig validates telemetry configuration
func validateTelemetryConfig(cfg *TelemetryConfig, result *ValidationResult) {
	if !cfg.Enabled {
		return
	}

	if err := validateStringNotEmpty(cfg.ServiceName, "telemetry.service_name"); err != nil {
		result.Errors = append(result.Errors, *err)
	}

	switch cfg.Exporter.Type {
	case ExporterTypeStdout:
	case ExporterTypeOTLP:
		if cfg.Exporter.Endpoint != "" {
			if err := validateURL(cfg.Exporter.Endpoint, "telemetry.exporter.endpoint"); err != nil {
				result.Errors = append(result.Errors, *err)
			}
		}
	default:
		result.Errors = append(result.Errors, ValidationError{
			Field:      "telemetry.exporter.type",
			Value:      cfg.Exporter.Type,
			Message:    "unknown exporter type",
			Suggestion: "use 'stdout' or 'otlp'",
		})
	}

	if cfg.Sampling.Rate < 0 || cfg.Sampling.Rate > 1 {
		result.Errors = append(result.Errors, ValidationError{
			Field:      "telemetry.sampling.rate",
			Value:      cfg.Sampling.Rate,
			Message:    "sampling rate must be between 0.0 and 1.0",
			Suggestion: "use 0.1 for 10% of ticks",
		})
	}
}

// validateNetworkAddress validates a host:port address
func validateNetworkAddress(address string) error {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("invalid address format: %w", err)
	}

	if host == "" {
		return fmt.Errorf("host cannot be empty")
	}

	if port == "" {
		return fmt.Errorf("port cannot be empty")
	}

	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("invalid port number: %w", err)
	}

	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}

	if ip := net.ParseIP(host); ip == nil {
		if !isValidHostname(host) {
			return fmt.Errorf("invalid hostname format")
		}
	}

	return nil
}

// validateFilePath validates a file path exists and is accessible
func validateFilePath(path string, mustExist bool) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	if !filepath.IsAbs(path) {
		return fmt.Errorf("path must be absolute")
	}

	if mustExist {
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("file does not exist")
			}
			return fmt.Errorf("cannot access file: %w", err)
		}
	}

	return nil
}

// isValidHostname validates hostname format
func isValidHostname(hostname string) bool {
	hostnameRegex := regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)
	parts := strings.Split(hostname, ".")

	for _, part := range parts {
		if !hostnameRegex.MatchString(part) {
			return false
		}
	}

	return true
}

// isValidRegion checks the rough shape of an AWS region identifier
func isValidRegion(region string) bool {
	regionRegex := regexp.MustCompile(`^[a-z]{2}(-[a-z]+)+-\d$`)
	return regionRegex.MatchString(region)
}

// validateDuration validates a duration is within acceptable bounds
func validateDuration(d time.Duration, min, max time.Duration, fieldName string) *ValidationError {
	if d < min {
		return &ValidationError{
			Field:      fieldName,
			Value:      d.String(),
			Message:    fmt.Sprintf("duration %s is below minimum %s", d, min),
			Suggestion: fmt.Sprintf("use a value >= %s", min),
		}
	}

	if max > 0 && d > max {
		return &ValidationError{
			Field:      fieldName,
			Value:      d.String(),
			Message:    fmt.Sprintf("duration %s is above maximum %s", d, max),
			Suggestion: fmt.Sprintf("use a value <= %s", max),
		}
	}

	return nil
}

// validatePositiveInt validates a positive integer
func validatePositiveInt(value int, fieldName string) *ValidationError {
	if value <= 0 {
		return &ValidationError{
			Field:      fieldName,
			Value:      value,
			Message:    "value must be positive",
			Suggestion: "use a value > 0",
		}
	}
	return nil
}

// validateStringNotEmpty validates a string is not empty
func validateStringNotEmpty(value, fieldName string) *ValidationError {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{
			Field:      fieldName,
			Value:      value,
			Message:    "value cannot be empty",
			Suggestion: "provide a non-empty value",
		}
	}
	return nil
}

// validateURL validates a URL format
func validateURL(urlStr, fieldName string) *ValidationError {
	if urlStr == "" {
		return &ValidationError{
			Field:      fieldName,
			Value:      urlStr,
			Message:    "URL cannot be empty",
			Suggestion: "provide a valid URL",
		}
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return &ValidationError{
			Field:      fieldName,
			Value:      urlStr,
			Message:    fmt.Sprintf("invalid URL format: %v", err),
			Suggestion: "use format like 'http://localhost:4318'",
		}
	}

	if parsedURL.Scheme == "" {
		return &ValidationError{
			Field:      fieldName,
			Value:      urlStr,
			Message:    "URL scheme is required",
			Suggestion: "prefix the endpoint with http:// or https://",
		}
	}

	return nil
}

// ensureStorageDirectory creates the journal's parent directory when a real
// file path is configured.
func ensureStorageDirectory(cfg *Config) error {
	path := cfg.Storage.DatabasePath
	if path == "" || path == ":memory:" || !filepath.IsAbs(path) {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create storage directory %s: %w", dir, err)
	}

	return nil
}
