package recordstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/loqalabs/loqa-minutes/internal/config"
	"github.com/loqalabs/loqa-minutes/internal/protocol"
	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when no recording has the requested id.
	ErrNotFound = errors.New("recording not found")
	// ErrAlreadyExists is returned when creating a recording with a used id.
	ErrAlreadyExists = errors.New("recording already exists")
	// ErrPassphraseRequired is returned when reading a sealed column without a passphrase.
	ErrPassphraseRequired = errors.New("storage passphrase required")
)

// Listing is a recording row without its transcript and summary bodies.
type Listing struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	AudioPath string    `json:"audio_path"`
	Processed bool      `json:"processed"`
}

// Store persists recordings in SQLite. Transcript and summary columns are
// sealed with the configured passphrase, or stored as plain JSON without one.
type Store struct {
	db         *sql.DB
	passphrase string
	log        *slog.Logger
	clock      func() time.Time
}

// Open creates the data directory if needed and initializes the schema.
func Open(ctx context.Context, cfg config.StorageConfig, log *slog.Logger) (*Store, error) {
	path := cfg.DatabasePath()
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)",
		path, cfg.BusyTimeoutMS)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, passphrase: cfg.Passphrase, log: log, clock: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	log.Info("recording store opened",
		slog.String("path", path),
		slog.Bool("encrypted", s.passphrase != ""))
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS recordings (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    created_at TEXT NOT NULL,
    audio_path TEXT NOT NULL,
    transcript_json TEXT,
    summary_json TEXT
);
CREATE TABLE IF NOT EXISTS recording_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    recording_id TEXT NOT NULL,
    trace_id TEXT,
    event_type TEXT NOT NULL,
    detail TEXT,
    created_at TEXT NOT NULL,
    FOREIGN KEY(recording_id) REFERENCES recordings(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_recordings_created ON recordings(created_at);
CREATE INDEX IF NOT EXISTS idx_recording_events_recording ON recording_events(recording_id, created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Encrypted reports whether new results are sealed.
func (s *Store) Encrypted() bool { return s.passphrase != "" }

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Create inserts a new recording without results. The insert is a single
// statement so concurrent writers only wait on the busy timeout.
func (s *Store) Create(ctx context.Context, id, title, audioPath string) (protocol.Recording, error) {
	rec := protocol.Recording{
		ID:        id,
		Title:     title,
		CreatedAt: s.clock().UTC(),
		AudioPath: audioPath,
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO recordings(id, title, created_at, audio_path) VALUES(?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		rec.ID, rec.Title, formatTime(rec.CreatedAt), rec.AudioPath)
	if err != nil {
		return protocol.Recording{}, fmt.Errorf("insert recording: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return protocol.Recording{}, err
	}
	if n == 0 {
		return protocol.Recording{}, fmt.Errorf("%w: %s", ErrAlreadyExists, id)
	}
	return rec, nil
}

// SaveResults replaces both result columns in one transaction. A nil value
// clears its column.
func (s *Store) SaveResults(ctx context.Context, id string, transcript *protocol.Transcript, summary *protocol.Summary) (err error) {
	var transcriptCol, summaryCol sql.NullString
	if transcript != nil {
		if transcriptCol, err = s.encodeColumn(transcript); err != nil {
			return fmt.Errorf("encode transcript: %w", err)
		}
	}
	if summary != nil {
		if summaryCol, err = s.encodeColumn(summary); err != nil {
			return fmt.Errorf("encode summary: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`UPDATE recordings SET transcript_json = ?, summary_json = ? WHERE id = ?`,
		transcriptCol, summaryCol, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		err = fmt.Errorf("%w: %s", ErrNotFound, id)
		return err
	}
	err = tx.Commit()
	return err
}

// Get loads a recording with its decoded results.
func (s *Store) Get(ctx context.Context, id string) (protocol.Recording, error) {
	var (
		rec                       protocol.Recording
		created                   string
		transcriptCol, summaryCol sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, created_at, audio_path, transcript_json, summary_json
		 FROM recordings WHERE id = ?`, id).
		Scan(&rec.ID, &rec.Title, &created, &rec.AudioPath, &transcriptCol, &summaryCol)
	if errors.Is(err, sql.ErrNoRows) {
		return protocol.Recording{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return protocol.Recording{}, err
	}
	rec.CreatedAt = parseTime(created)

	if col := decodeColumn(transcriptCol); col != nil {
		var tr protocol.Transcript
		if err := s.interpret("transcript_json", col, &tr); err != nil {
			return protocol.Recording{}, err
		}
		rec.Transcript = &tr
	}
	if col := decodeColumn(summaryCol); col != nil {
		var sum protocol.Summary
		if err := s.interpret("summary_json", col, &sum); err != nil {
			return protocol.Recording{}, err
		}
		sum.Normalize()
		rec.Summary = &sum
	}
	return rec, nil
}

// List returns up to limit recordings, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Listing, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, created_at, audio_path, transcript_json IS NOT NULL
		 FROM recordings ORDER BY created_at DESC, id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Listing
	for rows.Next() {
		var l Listing
		var created string
		if err := rows.Scan(&l.ID, &l.Title, &created, &l.AudioPath, &l.Processed); err != nil {
			return nil, err
		}
		l.CreatedAt = parseTime(created)
		out = append(out, l)
	}
	return out, rows.Err()
}

// timeLayout is fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(v string) time.Time {
	if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return ts.UTC()
	}
	return time.Time{}
}
