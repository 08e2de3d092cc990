package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/humanmade/php-fpm-queue-monitor/internal/telemetry"
	"go.uber.org/zap"
)

// EventStorage implements telemetry.EventStorage for SQLite
type EventStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

// EventStats summarizes the journal's contents for status reporting.
type EventStats struct {
	TotalEvents  int64            `json:"total_events"`
	EventsByType map[string]int64 `json:"events_by_type"`
	OldestEvent  *time.Time       `json:"oldest_event,omitempty"`
	NewestEvent  *time.Time       `json:"newest_event,omitempty"`
}

// NewEventStorage creates a new event storage instance
func NewEventStorage(db *sql.DB, logger *zap.Logger) *EventStorage {
	return &EventStorage{
		db:     db,
		logger: logger,
	}
}

// StoreEvent stores an event in the database
func (s *EventStorage) StoreEvent(ctx context.Context, event telemetry.Event) error {
	detailsJSON, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal event details: %w", err)
	}

	query := `
		INSERT INTO events (id, type, timestamp, summary, details, correlation_id, severity)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		event.ID,
		string(event.Type),
		event.Timestamp,
		event.Summary,
		string(detailsJSON),
		event.CorrelationID,
		string(event.Severity),
	)

	if err != nil {
		s.logger.Error("Failed to store event",
			zap.String("event_id", event.ID),
			zap.Error(err))
		return fmt.Errorf("failed to store event: %w", err)
	}

	s.logger.Debug("Event stored successfully",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)))

	return nil
}

// GetEvents retrieves events from the database based on the filter
func (s *EventStorage) GetEvents(ctx context.Context, filter telemetry.EventFilter) ([]telemetry.Event, error) {
	query, args := s.buildEventQuery(filter)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []telemetry.Event
	for rows.Next() {
		var event telemetry.Event
		var detailsJSON string
		var eventType, severity string
		var correlationID sql.NullString

		err := rows.Scan(
			&event.ID,
			&eventType,
			&event.Timestamp,
			&event.Summary,
			&detailsJSON,
			&correlationID,
			&severity,
		)
		if err != nil {
			s.logger.Error("Failed to scan event row", zap.Error(err))
			continue
		}

		event.Type = telemetry.EventType(eventType)
		event.Severity = telemetry.EventSeverity(severity)
		if correlationID.Valid {
			event.CorrelationID = correlationID.String
		}

		if err := json.Unmarshal([]byte(detailsJSON), &event.Details); err != nil {
			s.logger.Error("Failed to unmarshal event details",
				zap.String("event_id", event.ID),
				zap.Error(err))
			event.Details = make(map[string]interface{})
		}

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}

	s.logger.Debug("Retrieved events",
		zap.Int("count", len(events)),
		zap.String("filter_type", string(filter.Type)))

	return events, nil
}

// buildEventQuery constructs a SQL query with filters
func (s *EventStorage) buildEventQuery(filter telemetry.EventFilter) (string, []interface{}) {
	query := `
		SELECT id, type, timestamp, summary, details, correlation_id, severity
		FROM events
		WHERE 1=1
	`
	var args []interface{}

	if !filter.StartTime.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, filter.StartTime)
	}

	if !filter.EndTime.IsZero() {
		query += " AND timestamp <= ?"
		args = append(args, filter.EndTime)
	}

	if filter.Type != "" {
		query += " AND type = ?"
		args = append(args, string(filter.Type))
	}

	if filter.Severity != "" {
		query += " AND severity = ?"
		args = append(args, string(filter.Severity))
	}

	// Newest first
	query += " ORDER BY timestamp DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	return query, args
}

// CleanupOldEvents removes events older than the specified retention period
func (s *EventStorage) CleanupOldEvents(ctx context.Context, retentionPeriod time.Duration) (int64, error) {
	cutoffTime := time.Now().Add(-retentionPeriod)

	result, err := s.db.ExecContext(ctx,
		"DELETE FROM events WHERE timestamp < ?",
		cutoffTime,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old events: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	s.logger.Info("Cleaned up old events",
		zap.Int64("rows_deleted", rowsAffected),
		zap.Duration("retention_period", retentionPeriod))

	return rowsAffected, nil
}

// GetEventStats returns statistics about stored events
func (s *EventStorage) GetEventStats(ctx context.Context) (EventStats, error) {
	var stats EventStats

	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&stats.TotalEvents)
	if err != nil {
		return stats, fmt.Errorf("failed to get total event count: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT type, COUNT(*)
		FROM events
		GROUP BY type
	`)
	if err != nil {
		return stats, fmt.Errorf("failed to get event counts by type: %w", err)
	}
	defer rows.Close()

	stats.EventsByType = make(map[string]int64)
	for rows.Next() {
		var eventType string
		var count int64
		if err := rows.Scan(&eventType, &count); err != nil {
			continue
		}
		stats.EventsByType[eventType] = count
	}

	// MIN/MAX are NULL on an empty table.
	var oldest, newest sql.NullTime
	err = s.db.QueryRowContext(ctx, "SELECT MIN(timestamp), MAX(timestamp) FROM events").
		Scan(&oldest, &newest)
	if err != nil && err != sql.ErrNoRows {
		return stats, fmt.Errorf("failed to get event timestamp range: %w", err)
	}
	if oldest.Valid {
		stats.OldestEvent = &oldest.Time
	}
	if newest.Valid {
		stats.NewestEvent = &newest.Time
	}

	return stats, nil
}
