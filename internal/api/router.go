// Package api exposes recordings over HTTP for the desktop client.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/loqalabs/loqa-minutes/internal/config"
	"github.com/loqalabs/loqa-minutes/internal/media"
	"github.com/loqalabs/loqa-minutes/internal/pipeline"
	"github.com/loqalabs/loqa-minutes/internal/protocol"
	"github.com/loqalabs/loqa-minutes/internal/recordstore"
)

// Store is the recording store surface the handlers use.
type Store interface {
	Create(ctx context.Context, id, title, audioPath string) (protocol.Recording, error)
	Get(ctx context.Context, id string) (protocol.Recording, error)
	List(ctx context.Context, limit int) ([]recordstore.Listing, error)
	Events(ctx context.Context, recordingID string, limit int) ([]recordstore.Event, error)
}

type Processor interface {
	Process(ctx context.Context, id string) (pipeline.Result, error)
}

// Options wires the router. Publisher, Metrics and Ready may be nil.
type Options struct {
	Config    *config.Config
	Version   string
	Store     Store
	Archive   *media.Archive
	Processor Processor
	Publisher pipeline.Publisher
	Metrics   http.Handler
	Ready     func() bool
	Logger    *slog.Logger
}

type server struct {
	opts      Options
	log       *slog.Logger
	maxUpload int64
	newID     func() string
}

func NewRouter(opts Options) http.Handler {
	s := &server{
		opts:      opts,
		log:       opts.Logger.With(slog.String("component", "http")),
		maxUpload: int64(opts.Config.HTTP.MaxUploadMB) << 20,
		newID:     uuid.NewString,
	}
	return s.routes()
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.Config.HTTP.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/healthz", s.handleLive)
	r.Get("/readyz", s.handleReady)
	if s.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.opts.Metrics)
	}

	r.Route("/recordings", func(rr chi.Router) {
		rr.Get("/", s.handleList)
		rr.Post("/upload", s.handleUpload)
		rr.Route("/{id}", func(one chi.Router) {
			one.Get("/", s.handleGet)
			one.Post("/process", s.handleProcess)
			one.Get("/export", s.handleExport)
			one.Get("/events", s.handleEvents)
		})
	})
	return r
}

func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())))
	})
}
