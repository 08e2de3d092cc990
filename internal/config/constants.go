package config

import "time"

// Application constants for configuration and resource management
const (
	// Channel Buffer Sizes
	DefaultEventChannelBuffer = 100 // Manager event channel buffer size

	// Timeouts and Delays
	DefaultShutdownTimeout     = 5 * time.Second  // Telemetry provider shutdown timeout
	DefaultHealthCheckInterval = 30 * time.Second // Health check interval

	// Event and Storage Limits
	DefaultEventQueryLimit = 100  // Default limit for event queries
	MaxEventQueryLimit     = 1000 // Maximum allowed limit for event queries

	// Configuration Defaults
	DefaultConfigPath   = "configs/example.yaml"  // Default configuration file path
	DefaultServiceName  = "php-fpm-queue-monitor" // Default telemetry service name
	DefaultSamplingRate = 0.1                     // Default telemetry sampling rate (10%)

	// Sampling Defaults
	DefaultSamplingInterval = 10 * time.Second              // Wall-clock tick interval
	DefaultExecTimeout      = 5 * time.Second               // Per external command invocation
	DefaultMaxConcurrency   = 4                             // Parallel per-container pipelines
	MaxSamplingConcurrency  = 64                            // Upper bound on per-tick parallelism
	DefaultSocketPath       = "/var/run/php-fpm/www.socket" // Well-known FPM listen socket
	DefaultCommandMarker    = "php-fpm"                     // Exact launch-command token to match

	// CloudWatch Defaults
	DefaultNamespace  = "PhpFpm"      // Metric namespace
	DefaultMetricName = "ListenQueue" // Emitted metric name
	MaxDimensions     = 30            // CloudWatch dimensions per metric

	// Server Defaults
	DefaultBindAddress = "127.0.0.1:9531"

	// Journal Defaults
	DefaultEventRetention  = 7 * 24 * time.Hour // Operational event retention
	DefaultCleanupInterval = time.Hour          // Journal cleanup cadence

	// Rate Limiting
	DefaultRateLimit = 100 // Requests per minute per IP
	BurstLimit       = 10  // Burst requests allowed
)

// Environment-specific constants
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Telemetry exporter types
const (
	ExporterTypeStdout = "stdout"
	ExporterTypeOTLP   = "otlp"
)

// Sudo modes for the namespace-scoped socket inspector
const (
	SudoModeAuto   = "auto"   // sudo only when not already root
	SudoModeAlways = "always" // always prefix nsenter with sudo
	SudoModeNever  = "never"  // invoke nsenter directly
)
