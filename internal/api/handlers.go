package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/loqalabs/loqa-minutes/internal/export"
	"github.com/loqalabs/loqa-minutes/internal/pipeline"
	"github.com/loqalabs/loqa-minutes/internal/protocol"
	"github.com/loqalabs/loqa-minutes/internal/recordstore"
)

var errRecordingNotFound = errors.New("Recording not found")

const multipartMemory = 32 << 20

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	_ = writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"service": s.opts.Config.ServiceName,
		"version": s.opts.Version,
	})
}

func (s *server) handleLive(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if s.opts.Ready == nil || s.opts.Ready() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

func (s *server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("upload exceeds %d MB", s.opts.Config.HTTP.MaxUploadMB))
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid multipart form: %w", err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	// the field is required but may be blank; exports fall back to "meeting"
	titles := r.MultipartForm.Value["title"]
	if len(titles) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("title is required"))
		return
	}
	title := strings.TrimSpace(titles[0])
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("file is required"))
		return
	}
	defer file.Close()

	id := s.newID()
	path, err := s.opts.Archive.Save(id, header.Filename, file)
	if err != nil {
		s.log.Error("failed to store upload", slog.String("recording_id", id), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, errors.New("failed to store upload"))
		return
	}
	rec, err := s.opts.Store.Create(r.Context(), id, title, path)
	if err != nil {
		_ = os.Remove(path)
		s.log.Error("failed to create recording", slog.String("recording_id", id), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, errors.New("failed to create recording"))
		return
	}
	s.log.Info("recording uploaded", slog.String("recording_id", id), slog.Int64("bytes", header.Size))

	if s.opts.Publisher != nil {
		evt := protocol.RecordingEvent{RecordingID: id, Title: title, Stage: "uploaded", Timestamp: rec.CreatedAt}
		if err := s.opts.Publisher.Publish(r.Context(), protocol.SubjectRecordingUploaded, evt); err != nil {
			s.log.Warn("failed to publish event", slog.String("recording_id", id), slog.String("error", err.Error()))
		}
	}

	_ = writeJSON(w, http.StatusOK, map[string]string{"id": id, "audio_path": path})
}

func (s *server) handleList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := s.opts.Store.List(r.Context(), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if items == nil {
		items = []recordstore.Listing{}
	}
	_ = writeJSON(w, http.StatusOK, items)
}

func (s *server) handleProcess(w http.ResponseWriter, r *http.Request) {
	res, err := s.opts.Processor.Process(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, res)
}

func (s *server) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := s.opts.Store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, rec)
}

func (s *server) handleExport(w http.ResponseWriter, r *http.Request) {
	rec, err := s.opts.Store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = export.FormatText
	}
	doc, err := export.Render(format, rec)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.Filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Body)
}

func (s *server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.opts.Store.Get(r.Context(), id); err != nil && errors.Is(err, recordstore.ErrNotFound) {
		s.fail(w, r, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := s.opts.Store.Events(r.Context(), id, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if events == nil {
		events = []recordstore.Event{}
	}
	_ = writeJSON(w, http.StatusOK, events)
}

// fail maps domain errors to status codes. Engine and export errors are the
// user's to fix and carry their own message; anything else is a 500.
func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var perr *pipeline.Error
	switch {
	case errors.Is(err, recordstore.ErrNotFound):
		writeError(w, http.StatusNotFound, errRecordingNotFound)
	case errors.As(err, &perr):
		writeError(w, http.StatusBadRequest, perr)
	case errors.Is(err, export.ErrUnknownFormat):
		writeError(w, http.StatusBadRequest, errors.New("Unknown export format"))
	default:
		s.log.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, err)
	}
}
