package recordstore

import (
	"context"
	"fmt"
	"time"
)

// Event is one entry in a recording's processing history.
type Event struct {
	ID          int64     `json:"id"`
	RecordingID string    `json:"recording_id"`
	TraceID     string    `json:"trace_id,omitempty"`
	Type        string    `json:"type"`
	Detail      string    `json:"detail,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// AppendEvent records a history entry for an existing recording.
func (s *Store) AppendEvent(ctx context.Context, evt Event) error {
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = s.clock().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO recording_events(recording_id, trace_id, event_type, detail, created_at)
		 VALUES(?, ?, ?, ?, ?)`,
		evt.RecordingID, evt.TraceID, evt.Type, evt.Detail, formatTime(evt.CreatedAt))
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// Events retrieves up to limit entries for a recording, oldest first.
func (s *Store) Events(ctx context.Context, recordingID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, recording_id, COALESCE(trace_id, ''), event_type, COALESCE(detail, ''), created_at
		 FROM recording_events WHERE recording_id = ? ORDER BY created_at ASC, id ASC LIMIT ?`,
		recordingID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var created string
		if err := rows.Scan(&e.ID, &e.RecordingID, &e.TraceID, &e.Type, &e.Detail, &created); err != nil {
			return nil, err
		}
		e.CreatedAt = parseTime(created)
		events = append(events, e)
	}
	return events, rows.Err()
}
