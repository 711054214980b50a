package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gatherr/gatherr/internal/indexer/types"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store provides the handwritten queries over the gatherr schema.
type Store struct {
	db *sql.DB
}

// NewStore creates a store over an open connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// --- indexers ---

// CreateIndexer inserts a definition and fills in its assigned ID.
func (s *Store) CreateIndexer(ctx context.Context, def *types.IndexerDefinition) error {
	caps, err := json.Marshal(def.Capabilities)
	if err != nil {
		return fmt.Errorf("failed to marshal capabilities: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO indexers (name, protocol, base_url, capabilities,
			interactive_enabled, automatic_enabled, priority,
			seed_ratio, seed_time, requests_per_minute, protocol_settings)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		def.Name, string(def.Protocol), def.BaseURL, string(caps),
		def.InteractiveEnabled, def.AutomaticEnabled, def.Priority,
		def.SeedRatio, def.SeedTime, def.RequestsPerMinute, nullableJSON(def.ProtocolSettings))
	if err != nil {
		return fmt.Errorf("failed to insert indexer: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read indexer id: %w", err)
	}
	def.ID = id
	return nil
}

// UpdateIndexer persists changes to an existing definition.
func (s *Store) UpdateIndexer(ctx context.Context, def *types.IndexerDefinition) error {
	caps, err := json.Marshal(def.Capabilities)
	if err != nil {
		return fmt.Errorf("failed to marshal capabilities: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE indexers
		SET name = ?, protocol = ?, base_url = ?, capabilities = ?,
			interactive_enabled = ?, automatic_enabled = ?, priority = ?,
			seed_ratio = ?, seed_time = ?, requests_per_minute = ?,
			protocol_settings = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		def.Name, string(def.Protocol), def.BaseURL, string(caps),
		def.InteractiveEnabled, def.AutomaticEnabled, def.Priority,
		def.SeedRatio, def.SeedTime, def.RequestsPerMinute,
		nullableJSON(def.ProtocolSettings), def.ID)
	if err != nil {
		return fmt.Errorf("failed to update indexer: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetIndexer fetches one definition by ID.
func (s *Store) GetIndexer(ctx context.Context, id int64) (*types.IndexerDefinition, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, protocol, base_url, capabilities,
			interactive_enabled, automatic_enabled, priority,
			seed_ratio, seed_time, requests_per_minute, protocol_settings
		FROM indexers WHERE id = ?`, id)
	return scanIndexer(row)
}

// ListIndexers returns all definitions ordered by priority.
func (s *Store) ListIndexers(ctx context.Context) ([]*types.IndexerDefinition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, protocol, base_url, capabilities,
			interactive_enabled, automatic_enabled, priority,
			seed_ratio, seed_time, requests_per_minute, protocol_settings
		FROM indexers ORDER BY priority, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexers: %w", err)
	}
	defer rows.Close()

	var defs []*types.IndexerDefinition
	for rows.Next() {
		def, err := scanIndexer(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

// DeleteIndexer removes a definition and its status row.
func (s *Store) DeleteIndexer(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM indexer_status WHERE indexer_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete indexer status: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM indexers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete indexer: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIndexer(row rowScanner) (*types.IndexerDefinition, error) {
	var (
		def      types.IndexerDefinition
		protocol string
		caps     string
		settings sql.NullString
	)
	err := row.Scan(&def.ID, &def.Name, &protocol, &def.BaseURL, &caps,
		&def.InteractiveEnabled, &def.AutomaticEnabled, &def.Priority,
		&def.SeedRatio, &def.SeedTime, &def.RequestsPerMinute, &settings)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan indexer: %w", err)
	}
	def.Protocol = types.Protocol(protocol)
	if err := json.Unmarshal([]byte(caps), &def.Capabilities); err != nil {
		return nil, fmt.Errorf("failed to unmarshal capabilities: %w", err)
	}
	if settings.Valid {
		def.ProtocolSettings = json.RawMessage(settings.String)
	}
	return &def, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

// --- indexer status ---

// IndexerStatusRecord is the persistent health row for one indexer.
type IndexerStatusRecord struct {
	IndexerID           int64
	IsEnabled           bool
	Priority            int
	ConsecutiveFailures int
	LastFailureAt       *time.Time
	LastSuccessAt       *time.Time
	BackoffUntil        *time.Time
}

// GetIndexerStatus fetches the status row for an indexer.
func (s *Store) GetIndexerStatus(ctx context.Context, indexerID int64) (*IndexerStatusRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT indexer_id, is_enabled, priority, consecutive_failures,
			last_failure_at, last_success_at, backoff_until
		FROM indexer_status WHERE indexer_id = ?`, indexerID)

	var (
		rec                                     IndexerStatusRecord
		lastFailure, lastSuccess, backoffUntil sql.NullTime
	)
	err := row.Scan(&rec.IndexerID, &rec.IsEnabled, &rec.Priority, &rec.ConsecutiveFailures,
		&lastFailure, &lastSuccess, &backoffUntil)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan indexer status: %w", err)
	}
	rec.LastFailureAt = nullableTime(lastFailure)
	rec.LastSuccessAt = nullableTime(lastSuccess)
	rec.BackoffUntil = nullableTime(backoffUntil)
	return &rec, nil
}

// UpsertIndexerStatus writes the full status row.
func (s *Store) UpsertIndexerStatus(ctx context.Context, rec *IndexerStatusRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO indexer_status (indexer_id, is_enabled, priority,
			consecutive_failures, last_failure_at, last_success_at, backoff_until)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (indexer_id) DO UPDATE SET
			is_enabled = excluded.is_enabled,
			priority = excluded.priority,
			consecutive_failures = excluded.consecutive_failures,
			last_failure_at = excluded.last_failure_at,
			last_success_at = excluded.last_success_at,
			backoff_until = excluded.backoff_until`,
		rec.IndexerID, rec.IsEnabled, rec.Priority, rec.ConsecutiveFailures,
		timeValue(rec.LastFailureAt), timeValue(rec.LastSuccessAt), timeValue(rec.BackoffUntil))
	if err != nil {
		return fmt.Errorf("failed to upsert indexer status: %w", err)
	}
	return nil
}

func nullableTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func timeValue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

// --- indexer history ---

// History event types.
const (
	HistoryEventSearch = "search"
	HistoryEventGrab   = "grab"
)

// HistoryEvent is one append-only audit row.
type HistoryEvent struct {
	ID         int64
	IndexerID  int64
	EventType  string
	Successful bool
	Data       string
	CreatedAt  time.Time
}

// AppendHistory records one event.
func (s *Store) AppendHistory(ctx context.Context, ev *HistoryEvent) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO indexer_history (indexer_id, event_type, successful, data)
		VALUES (?, ?, ?, ?)`,
		ev.IndexerID, ev.EventType, ev.Successful, ev.Data)
	if err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	ev.ID, _ = res.LastInsertId()
	return nil
}

// ListHistory returns the most recent events for an indexer, newest first.
// indexerID 0 lists across all indexers.
func (s *Store) ListHistory(ctx context.Context, indexerID int64, limit int) ([]HistoryEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, indexer_id, event_type, successful, COALESCE(data, ''), created_at
		FROM indexer_history`
	args := []any{}
	if indexerID > 0 {
		query += ` WHERE indexer_id = ?`
		args = append(args, indexerID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var events []HistoryEvent
	for rows.Next() {
		var ev HistoryEvent
		if err := rows.Scan(&ev.ID, &ev.IndexerID, &ev.EventType, &ev.Successful, &ev.Data, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
