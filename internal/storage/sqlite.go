// Package storage persists the agent's operational event journal in
// SQLite. The journal is the durable record behind the /status event
// listing; losing it never affects sampling or emission.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/humanmade/php-fpm-queue-monitor/internal/config"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Journal is the SQLite-backed event journal.
type Journal struct {
	config config.StorageConfig
	logger *zap.Logger
	db     *sql.DB
	events *EventStorage

	mu            sync.RWMutex
	running       bool
	cleanupTicker *time.Ticker
}

// NewJournal opens (or creates) the journal database and initializes its
// schema. Use ":memory:" for an ephemeral journal.
func NewJournal(cfg config.StorageConfig, logger *zap.Logger) (*Journal, error) {
	if cfg.DatabasePath != ":memory:" {
		dir := filepath.Dir(cfg.DatabasePath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=10000&_cache_size=10000&_synchronous=NORMAL&_temp_store=MEMORY", cfg.DatabasePath)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.DatabasePath == ":memory:" {
		// Every sqlite3 connection to :memory: opens its own database;
		// a single connection keeps all writers and readers on one.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(time.Hour)
	}

	j := &Journal{
		config: cfg,
		logger: logger,
		db:     db,
		events: NewEventStorage(db, logger.Named("events")),
	}

	if err := j.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return j, nil
}

// Start begins the retention cleanup loop.
func (j *Journal) Start(ctx context.Context) error {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return fmt.Errorf("journal is already running")
	}
	j.running = true
	j.cleanupTicker = time.NewTicker(j.config.CleanupInterval)
	j.mu.Unlock()

	j.logger.Info("Starting event journal",
		zap.String("database_path", j.config.DatabasePath),
		zap.Duration("event_retention", j.config.EventRetention),
		zap.Duration("cleanup_interval", j.config.CleanupInterval))

	go j.cleanupLoop(ctx)

	return nil
}

// Stop halts the cleanup loop and closes the database. Stopping a
// journal that never started still closes the handle.
func (j *Journal) Stop(ctx context.Context) error {
	j.mu.Lock()
	wasRunning := j.running
	j.running = false
	j.mu.Unlock()

	if wasRunning {
		j.logger.Info("Stopping event journal")
	}

	if j.cleanupTicker != nil {
		j.cleanupTicker.Stop()
	}

	return j.db.Close()
}

// IsRunning reports whether the cleanup loop is active.
func (j *Journal) IsRunning() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.running
}

// Events returns the journal's event store.
func (j *Journal) Events() *EventStorage {
	return j.events
}

// DB exposes the underlying handle for tests.
func (j *Journal) DB() *sql.DB {
	return j.db
}

// Cleanup removes events older than the configured retention and
// compacts the database when anything was deleted.
func (j *Journal) Cleanup(ctx context.Context) error {
	j.mu.RLock()
	running := j.running
	j.mu.RUnlock()

	if !running {
		return fmt.Errorf("journal is not running")
	}

	deleted, err := j.events.CleanupOldEvents(ctx, j.config.EventRetention)
	if err != nil {
		return err
	}

	if deleted > 0 {
		if _, err := j.db.ExecContext(ctx, "VACUUM"); err != nil {
			j.logger.Error("Failed to vacuum database", zap.Error(err))
		}
	}

	return nil
}

// cleanupLoop enforces retention on the configured cadence.
func (j *Journal) cleanupLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-j.cleanupTicker.C:
			if err := j.Cleanup(ctx); err != nil {
				j.logger.Error("Cleanup failed", zap.Error(err))
			}
		}
	}
}

// initSchema creates the database schema
func (j *Journal) initSchema() error {
	schema := `
	-- Operational events emitted by the agent
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		summary TEXT NOT NULL,
		details TEXT NOT NULL, -- JSON blob
		correlation_id TEXT,
		severity TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Indexes backing the /status event queries
	CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_events_type ON events(type);
	CREATE INDEX IF NOT EXISTS idx_events_severity ON events(severity);
	CREATE INDEX IF NOT EXISTS idx_events_correlation_id ON events(correlation_id);
	`

	if _, err := j.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	j.logger.Info("Database schema initialized successfully")
	return nil
}
