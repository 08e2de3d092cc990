package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/humanmade/php-fpm-queue-monitor/internal/app"
	"github.com/humanmade/php-fpm-queue-monitor/internal/config"
	"github.com/humanmade/php-fpm-queue-monitor/internal/platform"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	Version = "1.0.0-dev"
)

// CLI represents the command line interface
type CLI struct {
	args []string
}

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Usage       string
	Run         func(args []string) error
}

func main() {
	cli := &CLI{args: os.Args[1:]}

	commands := map[string]*Command{
		"run":            {Name: "run", Description: "Start the queue monitor agent", Usage: "run [--config path] [--log-level level]", Run: cli.runCommand},
		"validate":       {Name: "validate", Description: "Validate configuration file", Usage: "validate [--config path]", Run: cli.validateCommand},
		"doctor":         {Name: "doctor", Description: "Diagnose host tooling and privileges", Usage: "doctor", Run: cli.doctorCommand},
		"version":        {Name: "version", Description: "Show version information", Usage: "version", Run: cli.versionCommand},
		"help":           {Name: "help", Description: "Show help information", Usage: "help [command]", Run: cli.helpCommand},
		"example-config": {Name: "example-config", Description: "Generate example configuration file", Usage: "example-config [--output path]", Run: cli.exampleConfigCommand},
	}

	if len(cli.args) == 0 {
		cli.printUsage(commands)
		os.Exit(1)
	}

	commandName := cli.args[0]

	// Handle help flag
	if commandName == "--help" || commandName == "-h" {
		cli.printUsage(commands)
		return
	}

	// Default to run command if not a recognized command
	if _, exists := commands[commandName]; !exists {
		// Check if it's a flag for the run command
		if strings.HasPrefix(commandName, "--") {
			commandName = "run"
		} else {
			fmt.Fprintf(os.Stderr, "Error: Unknown command '%s'\n\n", commandName)
			cli.printUsage(commands)
			os.Exit(1)
		}
	} else {
		// Remove command name from args
		cli.args = cli.args[1:]
	}

	cmd := commands[commandName]
	if err := cmd.Run(cli.args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (cli *CLI) printUsage(commands map[string]*Command) {
	fmt.Printf("PHP-FPM Queue Monitor v%s\n", Version)
	fmt.Println("A telemetry agent that reports the PHP-FPM listen-queue backlog of containerized workloads to CloudWatch.")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Printf("  %s <command> [options]\n", os.Args[0])
	fmt.Println()
	fmt.Println("COMMANDS:")

	commandOrder := []string{"run", "validate", "doctor", "example-config", "version", "help"}
	for _, name := range commandOrder {
		if cmd, exists := commands[name]; exists {
			fmt.Printf("  %-15s %s\n", cmd.Name, cmd.Description)
		}
	}

	fmt.Println()
	fmt.Println("GLOBAL OPTIONS:")
	fmt.Println("  --help, -h       Show help information")
	fmt.Println()
	fmt.Println("Use \"php-fpm-queue-monitor help <command>\" for more information about a command.")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Printf("  %s run --config /etc/php-fpm-queue-monitor/config.yaml\n", os.Args[0])
	fmt.Printf("  %s run --dry-run --interval 5s\n", os.Args[0])
	fmt.Printf("  %s doctor\n", os.Args[0])
}

func (cli *CLI) parseFlags(args []string, flags map[string]*string) []string {
	var remaining []string

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "--") {
			flagName := strings.TrimPrefix(arg, "--")

			// Handle --flag=value format
			if strings.Contains(flagName, "=") {
				parts := strings.SplitN(flagName, "=", 2)
				flagName = parts[0]
				if flagVar, exists := flags[flagName]; exists {
					*flagVar = parts[1]
				}
				continue
			}

			// Handle --flag value format
			if flagVar, exists := flags[flagName]; exists {
				if i+1 < len(args) && !strings.HasPrefix(args[i+1], "--") {
					*flagVar = args[i+1]
					i++ // Skip the value
				} else {
					// Boolean flag or missing value
					*flagVar = "true"
				}
				continue
			}
		}

		remaining = append(remaining, arg)
	}

	return remaining
}

func (cli *CLI) runCommand(args []string) error {
	var configPath string
	var logLevel = "info"
	var interval, namespace, metricName, dimensions string
	var socketPath, marker, dryRun string

	flags := map[string]*string{
		"config":      &configPath,
		"log-level":   &logLevel,
		"interval":    &interval,
		"namespace":   &namespace,
		"metric-name": &metricName,
		"dimensions":  &dimensions,
		"socket-path": &socketPath,
		"marker":      &marker,
		"dry-run":     &dryRun,
	}

	remaining := cli.parseFlags(args, flags)

	// Check for help
	for _, arg := range remaining {
		if arg == "--help" || arg == "-h" {
			cli.printRunHelp()
			return nil
		}
	}

	// Create logger with specified level
	logger, err := cli.createLogger(logLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	// Load configuration
	var cfg *config.Config
	if configPath == "" {
		logger.Info("Running in zero-config mode with defaults")
		cfg, err = config.LoadDefault()
		if err != nil {
			return fmt.Errorf("failed to load default configuration: %w", err)
		}
	} else {
		if err := cli.validateConfigPath(configPath); err != nil {
			return err
		}
		logger.Info("Loading configuration", zap.String("config", configPath))
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
	}

	// Flags win over the file
	if err := applyFlagOverrides(cfg, flags); err != nil {
		return err
	}
	if result := config.GetValidationResult(cfg); !result.Valid {
		return fmt.Errorf("configuration invalid after applying flags: %w", result)
	}

	// Create main application manager
	manager, err := app.NewManager(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create manager: %w", err)
	}

	// Set up signal handling
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	go func() {
		for sig := range sigChan {
			logger.Info("Received signal", zap.String("signal", sig.String()))

			switch sig {
			case syscall.SIGHUP:
				cli.recheckConfig(configPath, logger)
			default:
				logger.Info("Shutting down gracefully")
				cancel()
				return
			}
		}
	}()

	logger.Info("Starting PHP-FPM Queue Monitor",
		zap.String("version", Version),
		zap.Duration("interval", cfg.Sampling.Interval),
		zap.String("namespace", cfg.CloudWatch.Namespace),
		zap.String("metric_name", cfg.CloudWatch.MetricName),
		zap.Bool("dry_run", cfg.CloudWatch.DryRun))

	// Run the manager
	if err := manager.Run(ctx); err != nil {
		logger.Error("Agent stopped with error", zap.Error(err))
		return fmt.Errorf("agent stopped with error: %w", err)
	}

	logger.Info("PHP-FPM Queue Monitor stopped")
	return nil
}

// applyFlagOverrides layers run-command flags over the loaded
// configuration. Empty values mean the flag was not given.
func applyFlagOverrides(cfg *config.Config, flags map[string]*string) error {
	if v := *flags["interval"]; v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid --interval value %q: %w", v, err)
		}
		cfg.Sampling.Interval = d
	}
	if v := *flags["namespace"]; v != "" {
		cfg.CloudWatch.Namespace = v
	}
	if v := *flags["metric-name"]; v != "" {
		cfg.CloudWatch.MetricName = v
	}
	if v := *flags["dimensions"]; v != "" {
		cfg.CloudWatch.Dimensions = strings.Split(v, ",")
	}
	if v := *flags["socket-path"]; v != "" {
		cfg.Sampling.SocketPath = v
	}
	if v := *flags["marker"]; v != "" {
		cfg.Sampling.CommandMarker = v
	}
	if v := *flags["dry-run"]; v != "" {
		dryRun, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid --dry-run value %q: %w", v, err)
		}
		cfg.CloudWatch.DryRun = dryRun
	}

	return nil
}

// recheckConfig re-validates the configuration file after SIGHUP. The
// running pipeline keeps the configuration it was started with; changes
// apply on the next restart.
func (cli *CLI) recheckConfig(configPath string, logger *zap.Logger) {
	if configPath == "" {
		logger.Info("Zero-config mode, no configuration file to re-check")
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("Configuration re-check failed",
			zap.String("config", configPath),
			zap.Error(err))
		return
	}

	result := config.GetValidationResult(cfg)
	if !result.Valid {
		logger.Error("Configuration re-check found errors",
			zap.String("config", configPath),
			zap.Int("errors", len(result.Errors)))
		return
	}

	logger.Info("Configuration file is valid; changes apply on restart",
		zap.String("config", configPath),
		zap.Int("warnings", len(result.Warnings)))
}

func (cli *CLI) validateCommand(args []string) error {
	var configPath string
	var verbose = false

	flags := map[string]*string{
		"config": &configPath,
		"verbose": func() *string {
			s := "false"
			if verbose {
				s = "true"
			}
			return &s
		}(),
	}

	remaining := cli.parseFlags(args, flags)
	verbose = flags["verbose"] != nil && *flags["verbose"] == "true"

	// Check for help
	for _, arg := range remaining {
		if arg == "--help" || arg == "-h" {
			cli.printValidateHelp()
			return nil
		}
	}

	// Load and validate configuration
	var cfg *config.Config
	var err error
	var validationResult *config.ValidationResult

	if configPath == "" {
		fmt.Println("🔍 Validating zero-config mode with defaults")
		cfg, err = config.LoadDefault()
		if err != nil {
			// Try to get detailed validation results even if loading failed
			if cfg != nil {
				validationResult = config.GetValidationResult(cfg)
				cli.printValidationResults(validationResult, verbose)
			}
			return fmt.Errorf("default configuration validation failed: %w", err)
		}
	} else {
		// Validate config path exists
		if err := cli.validateConfigPath(configPath); err != nil {
			return err
		}

		fmt.Printf("🔍 Validating configuration file: %s\n", configPath)
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}
	}

	// Get detailed validation results
	validationResult = config.GetValidationResult(cfg)

	// Print validation results with detailed error reporting
	cli.printValidationResults(validationResult, verbose)

	// If there are errors, exit with failure
	if !validationResult.Valid {
		fmt.Printf("\n❌ Configuration validation failed with %d error(s)\n", len(validationResult.Errors))
		return fmt.Errorf("configuration validation failed")
	}

	// Show warnings summary if any
	if len(validationResult.Warnings) > 0 {
		fmt.Printf("\n⚠️  Found %d warning(s) - configuration is valid but could be improved\n", len(validationResult.Warnings))
	}

	// Additional informational output for valid configs
	cli.printConfigurationSummary(cfg)

	fmt.Println("\n✅ Configuration validation completed successfully!")
	return nil
}

// printValidationResults prints detailed validation results
func (cli *CLI) printValidationResults(result *config.ValidationResult, verbose bool) {
	if len(result.Errors) == 0 && len(result.Warnings) == 0 {
		fmt.Println("✅ Configuration passes all validation checks")
		return
	}

	// Print errors
	if len(result.Errors) > 0 {
		fmt.Printf("\n❌ VALIDATION ERRORS (%d):\n", len(result.Errors))
		for i, err := range result.Errors {
			fmt.Printf("  %d. Field: %s\n", i+1, err.Field)
			fmt.Printf("     Error: %s\n", err.Message)
			if err.Suggestion != "" {
				fmt.Printf("     Fix: %s\n", err.Suggestion)
			}
			if verbose && err.Value != nil {
				fmt.Printf("     Current value: %v\n", err.Value)
			}
			fmt.Println()
		}
	}

	// Print warnings
	if len(result.Warnings) > 0 {
		fmt.Printf("\n⚠️  VALIDATION WARNINGS (%d):\n", len(result.Warnings))
		for i, warning := range result.Warnings {
			fmt.Printf("  %d. Field: %s\n", i+1, warning.Field)
			fmt.Printf("     Warning: %s\n", warning.Message)
			if warning.Suggestion != "" {
				fmt.Printf("     Suggestion: %s\n", warning.Suggestion)
			}
			if verbose && warning.Value != nil {
				fmt.Printf("     Current value: %v\n", warning.Value)
			}
			fmt.Println()
		}
	}
}

// printConfigurationSummary prints a summary of valid configuration
func (cli *CLI) printConfigurationSummary(cfg *config.Config) {
	fmt.Println("\n📋 CONFIGURATION SUMMARY:")

	fmt.Printf("⏱  Sampling:\n")
	fmt.Printf("   Interval: %s\n", cfg.Sampling.Interval)
	fmt.Printf("   Socket Path: %s\n", cfg.Sampling.SocketPath)
	fmt.Printf("   Command Marker: %s\n", cfg.Sampling.CommandMarker)
	fmt.Printf("   Exec Timeout: %s\n", cfg.Sampling.ExecTimeout)
	fmt.Printf("   Max Concurrency: %d\n", cfg.Sampling.MaxConcurrency)
	fmt.Printf("   Sudo Mode: %s\n", cfg.Sampling.SudoMode)

	fmt.Printf("\n📤 CloudWatch:\n")
	fmt.Printf("   Namespace: %s\n", cfg.CloudWatch.Namespace)
	fmt.Printf("   Metric Name: %s\n", cfg.CloudWatch.MetricName)
	if cfg.CloudWatch.Region != "" {
		fmt.Printf("   Region: %s\n", cfg.CloudWatch.Region)
	} else {
		fmt.Printf("   Region: default provider chain\n")
	}
	if len(cfg.CloudWatch.Dimensions) > 0 {
		fmt.Printf("   Dimensions: %s\n", strings.Join(cfg.CloudWatch.Dimensions, ", "))
	}
	if cfg.CloudWatch.DryRun {
		fmt.Printf("   Dry Run: ⚠️  Enabled (values are logged, never emitted)\n")
	} else {
		fmt.Printf("   Dry Run: Disabled\n")
	}

	fmt.Printf("\n🌐 Server:\n")
	if cfg.Server.Enabled {
		fmt.Printf("   Bind Address: %s\n", cfg.Server.BindAddress)
		fmt.Printf("   Metrics Path: %s\n", cfg.Server.MetricsPath)
		fmt.Printf("   Health Path: %s\n", cfg.Server.HealthPath)
		fmt.Printf("   Status Path: %s\n", cfg.Server.StatusPath)
	} else {
		fmt.Printf("   ⚠️  Disabled\n")
	}

	fmt.Printf("\n💾 Event Journal:\n")
	if cfg.Storage.DatabasePath == "" {
		fmt.Printf("   ⚠️  Disabled (events are log-only)\n")
	} else {
		fmt.Printf("   Database: %s\n", cfg.Storage.DatabasePath)
		fmt.Printf("   Retention: %s (cleanup every %s)\n", cfg.Storage.EventRetention, cfg.Storage.CleanupInterval)
	}

	// Telemetry configuration
	if cfg.Telemetry.Enabled {
		fmt.Printf("\n🔭 Telemetry: ✅ Enabled (%s exporter)\n", cfg.Telemetry.Exporter.Type)
		fmt.Printf("   Service: %s v%s (%s)\n", cfg.Telemetry.ServiceName, cfg.Telemetry.ServiceVersion, cfg.Telemetry.Environment)
		fmt.Printf("   Sampling Rate: %.1f%%\n", cfg.Telemetry.Sampling.Rate*100)
	} else {
		fmt.Printf("\n🔭 Telemetry: ⚠️  Disabled\n")
	}
}

func (cli *CLI) doctorCommand(args []string) error {
	// Check for help
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			cli.printDoctorHelp()
			return nil
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	diag := platform.Diagnose(ctx)

	fmt.Printf("PHP-FPM Queue Monitor v%s host diagnosis\n\n", Version)

	fmt.Printf("Operating System: %s", diag.OS)
	if diag.Kernel != "" {
		fmt.Printf(" (kernel %s)", diag.Kernel)
	}
	fmt.Println()

	if diag.Root {
		fmt.Printf("Privileges: root (uid 0), nsenter runs directly\n")
	} else {
		fmt.Printf("Privileges: uid %d, namespace entry depends on sudo\n", diag.EffectiveUID)
	}

	fmt.Println("\nTOOLS:")
	for _, tool := range diag.Tools {
		switch {
		case tool.Available:
			fmt.Printf("  ✅ %-8s %s\n", tool.Name, tool.Path)
		case tool.Required:
			fmt.Printf("  ❌ %-8s not found on PATH\n", tool.Name)
		default:
			fmt.Printf("  ⚠️  %-8s not found on PATH (not required)\n", tool.Name)
		}
	}

	if len(diag.Warnings) > 0 {
		fmt.Printf("\nFINDINGS (%d):\n", len(diag.Warnings))
		for i, warning := range diag.Warnings {
			fmt.Printf("  %d. %s\n", i+1, warning)
		}
	}

	if !diag.Healthy() {
		fmt.Println("\n❌ The host is missing tools the sampling pipeline needs.")
		return fmt.Errorf("host diagnosis failed")
	}

	fmt.Println("\n✅ The host can run the sampling pipeline.")
	return nil
}

func (cli *CLI) versionCommand(args []string) error {
	fmt.Printf("PHP-FPM Queue Monitor version %s\n", Version)
	fmt.Println("Built with Go")
	fmt.Println("https://github.com/humanmade/php-fpm-queue-monitor")
	return nil
}

func (cli *CLI) helpCommand(args []string) error {
	commands := map[string]*Command{
		"run":            {Name: "run", Description: "Start the queue monitor agent", Usage: "run [--config path] [--log-level level]", Run: cli.runCommand},
		"validate":       {Name: "validate", Description: "Validate configuration file", Usage: "validate [--config path]", Run: cli.validateCommand},
		"doctor":         {Name: "doctor", Description: "Diagnose host tooling and privileges", Usage: "doctor", Run: cli.doctorCommand},
		"version":        {Name: "version", Description: "Show version information", Usage: "version", Run: cli.versionCommand},
		"help":           {Name: "help", Description: "Show help information", Usage: "help [command]", Run: cli.helpCommand},
		"example-config": {Name: "example-config", Description: "Generate example configuration file", Usage: "example-config [--output path]", Run: cli.exampleConfigCommand},
	}

	if len(args) == 0 {
		cli.printUsage(commands)
		return nil
	}

	commandName := args[0]
	switch commandName {
	case "run":
		cli.printRunHelp()
	case "validate":
		cli.printValidateHelp()
	case "doctor":
		cli.printDoctorHelp()
	case "example-config":
		cli.printExampleConfigHelp()
	case "version":
		fmt.Println("USAGE: php-fpm-queue-monitor version")
		fmt.Println("Show version information and build details.")
	default:
		fmt.Printf("Unknown command: %s\n\n", commandName)
		cli.printUsage(commands)
	}

	return nil
}

func (cli *CLI) exampleConfigCommand(args []string) error {
	var outputPath = "php-fpm-queue-monitor.yaml"

	flags := map[string]*string{
		"output": &outputPath,
	}

	remaining := cli.parseFlags(args, flags)

	// Check for help
	for _, arg := range remaining {
		if arg == "--help" || arg == "-h" {
			cli.printExampleConfigHelp()
			return nil
		}
	}

	// Check if file already exists
	if _, err := os.Stat(outputPath); err == nil {
		return fmt.Errorf("file already exists: %s (use a different path or remove the existing file)", outputPath)
	}

	// Copy the example config
	sourceConfig := filepath.Join("configs", "example.yaml")

	// Read source
	data, err := os.ReadFile(sourceConfig)
	if err != nil {
		return fmt.Errorf("failed to read example config: %w", err)
	}

	// Write to output
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Example configuration written to: %s\n", outputPath)
	fmt.Println("Edit the file to match your environment and use:")
	fmt.Printf("  php-fpm-queue-monitor validate --config %s\n", outputPath)
	return nil
}

func (cli *CLI) validateConfigPath(path string) error {
	if path == "" {
		return fmt.Errorf("config path cannot be empty")
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("config file does not exist: %s", path)
	}

	return nil
}

func (cli *CLI) createLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn", "warning":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		return nil, fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", level)
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	return config.Build()
}

func (cli *CLI) printRunHelp() {
	fmt.Println("USAGE: php-fpm-queue-monitor run [options]")
	fmt.Println("Start the agent: sample the PHP-FPM listen queue of matching containers and report it.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  --config path        Configuration file path (default: zero-config mode)")
	fmt.Println("  --log-level level    Log level: debug, info, warn, error (default: info)")
	fmt.Println("  --interval duration  Sampling interval, e.g. 10s, 1m (overrides config)")
	fmt.Println("  --namespace name     CloudWatch namespace (overrides config)")
	fmt.Println("  --metric-name name   CloudWatch metric name (overrides config)")
	fmt.Println("  --dimensions list    Comma-separated key=value dimension pairs")
	fmt.Println("  --socket-path path   FPM listen socket to match inside containers")
	fmt.Println("  --marker token       Launch-command token that marks the workload")
	fmt.Println("  --dry-run            Log values instead of emitting to CloudWatch")
	fmt.Println("  --help, -h           Show this help message")
	fmt.Println()
	fmt.Println("SIGNALS:")
	fmt.Println("  SIGINT/SIGTERM    Graceful shutdown")
	fmt.Println("  SIGHUP            Re-validate the configuration file")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  php-fpm-queue-monitor run")
	fmt.Println("  php-fpm-queue-monitor run --config /etc/php-fpm-queue-monitor/config.yaml")
	fmt.Println("  php-fpm-queue-monitor run --dry-run --log-level debug")
	fmt.Println("  php-fpm-queue-monitor run --interval 5s --dimensions env=prod,role=web")
}

func (cli *CLI) printValidateHelp() {
	fmt.Println("USAGE: php-fpm-queue-monitor validate [options]")
	fmt.Println("Validate configuration file without starting the agent.")
	fmt.Println()
	fmt.Println("Performs comprehensive validation with detailed error reporting and fix suggestions.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  --config path  Configuration file path (default: zero-config mode)")
	fmt.Println("  --verbose      Show detailed validation output including current values")
	fmt.Println("  --help, -h     Show this help message")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  php-fpm-queue-monitor validate")
	fmt.Println("  php-fpm-queue-monitor validate --config ./config.yaml")
	fmt.Println("  php-fpm-queue-monitor validate --config ./config.yaml --verbose")
}

func (cli *CLI) printDoctorHelp() {
	fmt.Println("USAGE: php-fpm-queue-monitor doctor")
	fmt.Println("Diagnose the host without starting the agent.")
	fmt.Println()
	fmt.Println("Checks that docker, nsenter and ss resolve on PATH, whether the agent")
	fmt.Println("runs as root, and whether sudo works non-interactively when it matters.")
	fmt.Println("Exits non-zero when a required tool is missing.")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  php-fpm-queue-monitor doctor")
}

func (cli *CLI) printExampleConfigHelp() {
	fmt.Println("USAGE: php-fpm-queue-monitor example-config [options]")
	fmt.Println("Generate an example configuration file.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  --output path  Output file path (default: php-fpm-queue-monitor.yaml)")
	fmt.Println("  --help, -h     Show this help message")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  php-fpm-queue-monitor example-config")
	fmt.Println("  php-fpm-queue-monitor example-config --output /etc/php-fpm-queue-monitor/config.yaml")
}
