package recordstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/loqalabs/loqa-minutes/internal/config"
	"github.com/loqalabs/loqa-minutes/internal/envelope"
	"github.com/loqalabs/loqa-minutes/internal/protocol"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func openStore(t *testing.T, dir, passphrase string) *Store {
	t.Helper()
	cfg := config.StorageConfig{DataDir: dir, Passphrase: passphrase, BusyTimeoutMS: 1000}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleResults() (*protocol.Transcript, *protocol.Summary) {
	tr := &protocol.Transcript{
		Language: "bn",
		Text:     "hello there",
		Segments: []protocol.Segment{{Start: 0, End: 1.5, Text: "hello there", Speaker: "Speaker 1"}},
	}
	sum := &protocol.Summary{Bullets: []string{"A"}, ActionItems: []string{"B"}, Decisions: []string{}, Risks: []string{}}
	return tr, sum
}

func rawColumns(t *testing.T, s *Store, id string) (sql.NullString, sql.NullString) {
	t.Helper()
	var tr, sum sql.NullString
	err := s.db.QueryRow(`SELECT transcript_json, summary_json FROM recordings WHERE id = ?`, id).Scan(&tr, &sum)
	if err != nil {
		t.Fatalf("raw select: %v", err)
	}
	return tr, sum
}

func TestCreateAndGet(t *testing.T) {
	s := openStore(t, t.TempDir(), "")
	s.clock = func() time.Time { return time.Date(2025, 3, 4, 5, 6, 7, 0, time.FixedZone("X", 3600)) }

	created, err := s.Create(context.Background(), "rec-1", "Standup", "/data/recordings/rec-1.webm")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := s.Get(context.Background(), "rec-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Standup" || got.AudioPath != created.AudioPath {
		t.Fatalf("unexpected recording: %+v", got)
	}
	if !got.CreatedAt.Equal(time.Date(2025, 3, 4, 4, 6, 7, 0, time.UTC)) || got.CreatedAt.Location() != time.UTC {
		t.Fatalf("expected UTC created_at, got %v", got.CreatedAt)
	}
	if got.Transcript != nil || got.Summary != nil {
		t.Fatalf("expected no results before processing")
	}
}

func TestCreateDuplicate(t *testing.T) {
	s := openStore(t, t.TempDir(), "")
	if _, err := s.Create(context.Background(), "dup", "a", "/a"); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := s.Create(context.Background(), "dup", "b", "/b")
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestCreateConcurrent(t *testing.T) {
	s := openStore(t, t.TempDir(), "")
	ctx := context.Background()
	const n = 32

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("rec-%d", i)
			if _, err := s.Create(ctx, id, "title", "/a/"+id+".webm"); err != nil {
				errs <- fmt.Errorf("%s: %w", id, err)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent create: %v", err)
	}

	list, err := s.List(ctx, 100)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != n {
		t.Fatalf("expected %d recordings, got %d", n, len(list))
	}
}

func TestCreateConcurrentSameID(t *testing.T) {
	s := openStore(t, t.TempDir(), "")
	ctx := context.Background()
	const n = 16

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		duplicate int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Create(ctx, "same", "title", "/a/same.webm")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, ErrAlreadyExists):
				duplicate++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if created != 1 || duplicate != n-1 {
		t.Fatalf("expected 1 create and %d duplicates, got %d and %d", n-1, created, duplicate)
	}
}

func TestGetMissing(t *testing.T) {
	s := openStore(t, t.TempDir(), "")
	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveResultsMissing(t *testing.T) {
	s := openStore(t, t.TempDir(), "")
	tr, sum := sampleResults()
	if err := s.SaveResults(context.Background(), "nope", tr, sum); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveResultsPlain(t *testing.T) {
	s := openStore(t, t.TempDir(), "")
	ctx := context.Background()
	if _, err := s.Create(ctx, "rec", "t", "/a"); err != nil {
		t.Fatalf("create: %v", err)
	}
	tr, sum := sampleResults()
	if err := s.SaveResults(ctx, "rec", tr, sum); err != nil {
		t.Fatalf("save: %v", err)
	}

	rawTr, _ := rawColumns(t, s, "rec")
	if !strings.Contains(rawTr.String, "hello there") {
		t.Fatalf("expected plaintext column, got %s", rawTr.String)
	}

	got, err := s.Get(ctx, "rec")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Transcript == nil || got.Transcript.Text != "hello there" || got.Transcript.Segments[0].Speaker != "Speaker 1" {
		t.Fatalf("unexpected transcript: %+v", got.Transcript)
	}
	if got.Summary == nil || got.Summary.Bullets[0] != "A" || got.Summary.ActionItems[0] != "B" {
		t.Fatalf("unexpected summary: %+v", got.Summary)
	}
}

func TestSaveResultsOverwritesAndClears(t *testing.T) {
	s := openStore(t, t.TempDir(), "")
	ctx := context.Background()
	if _, err := s.Create(ctx, "rec", "t", "/a"); err != nil {
		t.Fatalf("create: %v", err)
	}
	tr, sum := sampleResults()
	if err := s.SaveResults(ctx, "rec", tr, sum); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SaveResults(ctx, "rec", nil, &protocol.Summary{Bullets: []string{"second"}}); err != nil {
		t.Fatalf("second save: %v", err)
	}
	got, err := s.Get(ctx, "rec")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Transcript != nil {
		t.Fatalf("expected transcript cleared")
	}
	if got.Summary.Bullets[0] != "second" || got.Summary.Risks == nil {
		t.Fatalf("expected normalized second summary, got %+v", got.Summary)
	}
}

func TestSealedColumns(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	s := openStore(t, dir, "meeting-secret")
	if _, err := s.Create(ctx, "rec", "t", "/a"); err != nil {
		t.Fatalf("create: %v", err)
	}
	tr, sum := sampleResults()
	if err := s.SaveResults(ctx, "rec", tr, sum); err != nil {
		t.Fatalf("save: %v", err)
	}

	rawTr, rawSum := rawColumns(t, s, "rec")
	for _, raw := range []sql.NullString{rawTr, rawSum} {
		if _, ok := envelope.Unwrap([]byte(raw.String)); !ok {
			t.Fatalf("expected sealed column, got %s", raw.String)
		}
		if strings.Contains(raw.String, "hello there") {
			t.Fatalf("plaintext leaked into sealed column")
		}
	}

	got, err := s.Get(ctx, "rec")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Transcript.Text != "hello there" || got.Summary.Bullets[0] != "A" {
		t.Fatalf("unexpected decrypted results: %+v %+v", got.Transcript, got.Summary)
	}
}

func TestSealedColumnWithoutPassphrase(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	sealed := openStore(t, dir, "meeting-secret")
	if _, err := sealed.Create(ctx, "rec", "t", "/a"); err != nil {
		t.Fatalf("create: %v", err)
	}
	tr, sum := sampleResults()
	if err := sealed.SaveResults(ctx, "rec", tr, sum); err != nil {
		t.Fatalf("save: %v", err)
	}

	plain := openStore(t, dir, "")
	_, err := plain.Get(ctx, "rec")
	if !errors.Is(err, ErrPassphraseRequired) {
		t.Fatalf("expected ErrPassphraseRequired, got %v", err)
	}
	if !strings.Contains(err.Error(), "transcript_json") {
		t.Fatalf("expected column name in error, got %v", err)
	}

	wrong := openStore(t, dir, "other-secret")
	if _, err := wrong.Get(ctx, "rec"); !errors.Is(err, envelope.ErrAuthentication) {
		t.Fatalf("expected authentication error, got %v", err)
	}
}

func TestPlainColumnReadableWithPassphrase(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	plain := openStore(t, dir, "")
	if _, err := plain.Create(ctx, "rec", "t", "/a"); err != nil {
		t.Fatalf("create: %v", err)
	}
	tr, sum := sampleResults()
	if err := plain.SaveResults(ctx, "rec", tr, sum); err != nil {
		t.Fatalf("save: %v", err)
	}

	sealed := openStore(t, dir, "meeting-secret")
	got, err := sealed.Get(ctx, "rec")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Transcript.Text != "hello there" {
		t.Fatalf("expected legacy plaintext readable")
	}
}

func TestListNewestFirst(t *testing.T) {
	s := openStore(t, t.TempDir(), "")
	ctx := context.Background()
	s.clock = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	if _, err := s.Create(ctx, "old", "old", "/a"); err != nil {
		t.Fatalf("create: %v", err)
	}
	s.clock = func() time.Time { return time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC) }
	if _, err := s.Create(ctx, "new", "new", "/b"); err != nil {
		t.Fatalf("create: %v", err)
	}
	tr, sum := sampleResults()
	if err := s.SaveResults(ctx, "old", tr, sum); err != nil {
		t.Fatalf("save: %v", err)
	}

	list, err := s.List(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "new" || list[1].ID != "old" {
		t.Fatalf("unexpected order: %+v", list)
	}
	if list[0].Processed || !list[1].Processed {
		t.Fatalf("unexpected processed flags: %+v", list)
	}
}

func TestAppendAndListEvents(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "nested"), "")
	ctx := context.Background()
	if _, err := s.Create(ctx, "rec", "t", "/a"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.AppendEvent(ctx, Event{RecordingID: "rec", Type: "process.started"}); err != nil {
		t.Fatalf("append event: %v", err)
	}
	if err := s.AppendEvent(ctx, Event{RecordingID: "rec", Type: "process.completed", Detail: "ok"}); err != nil {
		t.Fatalf("append event: %v", err)
	}
	events, err := s.Events(ctx, "rec", 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 2 || events[0].Type != "process.started" || events[1].Detail != "ok" {
		t.Fatalf("unexpected events: %+v", events)
	}
	if err := s.AppendEvent(ctx, Event{RecordingID: "ghost", Type: "x"}); err == nil {
		t.Fatalf("expected foreign key failure for unknown recording")
	}
}
