package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shaharia-lab/claudeflow/internal/eventbus"
)

// SQLiteEventStore implements EventStore backed by SQLite.
type SQLiteEventStore struct {
	db *sql.DB
}

// NewSQLiteEventStore returns a new SQLiteEventStore.
func NewSQLiteEventStore(db *sql.DB) *SQLiteEventStore {
	return &SQLiteEventStore{db: db}
}

// SaveEvent inserts one event. Re-saving an event with the same ID is a
// no-op, so replayed dispatches do not duplicate rows.
func (s *SQLiteEventStore) SaveEvent(ctx context.Context, evt eventbus.Event) error {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return fmt.Errorf("encoding payload for event %s: %w", evt.ID, err)
	}
	metadata := []byte("{}")
	if len(evt.Metadata) > 0 {
		metadata, err = json.Marshal(evt.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata for event %s: %w", evt.ID, err)
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO events (id, type, source, payload, metadata, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		evt.ID, evt.Type, evt.Source, string(payload), string(metadata), evt.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting event %s: %w", evt.ID, err)
	}
	return nil
}

// ListEvents returns archived events ordered newest first.
func (s *SQLiteEventStore) ListEvents(ctx context.Context, eventType string, limit int) ([]eventbus.Event, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, type, source, payload, metadata, timestamp
		FROM events`
	args := []any{}
	if eventType != "" {
		query += " WHERE type = ?"
		args = append(args, eventType)
	}
	query += " ORDER BY timestamp DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			err = fmt.Errorf("closing rows: %w", cerr)
		}
	}()

	var events []eventbus.Event
	for rows.Next() {
		var (
			evt      eventbus.Event
			payload  string
			metadata string
		)
		if err := rows.Scan(&evt.ID, &evt.Type, &evt.Source, &payload, &metadata, &evt.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning event row: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &evt.Payload); err != nil {
			return nil, fmt.Errorf("decoding payload for event %s: %w", evt.ID, err)
		}
		if metadata != "" && metadata != "{}" {
			if err := json.Unmarshal([]byte(metadata), &evt.Metadata); err != nil {
				return nil, fmt.Errorf("decoding metadata for event %s: %w", evt.ID, err)
			}
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating event rows: %w", err)
	}
	return events, nil
}

// CountByType returns archived event counts grouped by type.
func (s *SQLiteEventStore) CountByType(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT type, COUNT(*) FROM events GROUP BY type")
	if err != nil {
		return nil, fmt.Errorf("counting events: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			err = fmt.Errorf("closing rows: %w", cerr)
		}
	}()

	counts := make(map[string]int64)
	for rows.Next() {
		var (
			t string
			n int64
		)
		if err := rows.Scan(&t, &n); err != nil {
			return nil, fmt.Errorf("scanning count row: %w", err)
		}
		counts[t] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating count rows: %w", err)
	}
	return counts, nil
}

// Prune deletes events with a timestamp before olderThan.
func (s *SQLiteEventStore) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM events WHERE timestamp < ?", olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("pruning events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading pruned row count: %w", err)
	}
	return n, nil
}
