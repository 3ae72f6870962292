// Package ledger provides an append-only history of device events.
// It backs the diagnostic surface and keeps an audit trail of what the
// device decided and reported.
package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Entry represents a single event in the ledger
type Entry struct {
	ID        int64
	EventType string
	Timestamp time.Time
	Payload   map[string]any
	EventID   string
}

// Ledger provides append-only event logging
type Ledger struct {
	db *sql.DB
}

// New creates a new Ledger using the provided database connection
func New(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// Append adds a new event to the ledger. eventID is the unique id the
// telemetry layer assigned to the emission, empty for local-only
// events.
func (l *Ledger) Append(eventType, eventID string, payload map[string]any) error {
	var payloadJSON []byte
	var err error

	if payload != nil {
		payloadJSON, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
	}

	now := time.Now().UTC().Unix()

	_, err = l.db.Exec(
		`INSERT INTO event_ledger (event_type, timestamp, payload, event_id) VALUES (?, ?, ?, ?)`,
		eventType, now, string(payloadJSON), eventID,
	)

	return err
}

// GetByType returns the most recent entries of one event type.
func (l *Ledger) GetByType(eventType string, limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, event_type, timestamp, payload, event_id
		FROM event_ledger
		WHERE event_type = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`, eventType, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// Recent returns the most recent entries of any type.
func (l *Ledger) Recent(limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, event_type, timestamp, payload, event_id
		FROM event_ledger
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// DeleteOlderThan removes entries older than the retention period and
// returns how many were deleted.
func (l *Ledger) DeleteOlderThan(retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention).Unix()

	result, err := l.db.Exec(`DELETE FROM event_ledger WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old entries: %w", err)
	}

	return result.RowsAffected()
}

func (l *Ledger) scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry

	for rows.Next() {
		var e Entry
		var ts int64
		var payloadJSON sql.NullString
		var eventID sql.NullString

		if err := rows.Scan(&e.ID, &e.EventType, &ts, &payloadJSON, &eventID); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}

		e.Timestamp = time.Unix(ts, 0).UTC()
		e.EventID = eventID.String

		if payloadJSON.Valid && payloadJSON.String != "" {
			if err := json.Unmarshal([]byte(payloadJSON.String), &e.Payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
			}
		}

		entries = append(entries, &e)
	}

	return entries, rows.Err()
}
