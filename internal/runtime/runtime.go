package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loqalabs/loqa-minutes/internal/api"
	"github.com/loqalabs/loqa-minutes/internal/bus"
	"github.com/loqalabs/loqa-minutes/internal/config"
	"github.com/loqalabs/loqa-minutes/internal/envelope"
	"github.com/loqalabs/loqa-minutes/internal/media"
	"github.com/loqalabs/loqa-minutes/internal/natsserver"
	"github.com/loqalabs/loqa-minutes/internal/pipeline"
	"github.com/loqalabs/loqa-minutes/internal/recordstore"
)

type Runtime struct {
	cfg         config.Config
	version     string
	logger      *slog.Logger
	httpServer  *http.Server
	tracerClose func(context.Context) error
	store       *recordstore.Store
	natsServer  *natsserver.EmbeddedServer
	busClient   *bus.Client
	ready       atomic.Bool
	requests    inflight
	wg          sync.WaitGroup
}

func New(cfg config.Config, version string, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:     cfg,
		version: version,
		logger:  logger,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	storageCfg, err := ResolveStorage(r.cfg.Storage)
	if err != nil {
		r.closeTelemetry(context.Background())
		return err
	}
	r.store, err = recordstore.Open(ctx, storageCfg, r.logger)
	if err != nil {
		r.closeTelemetry(context.Background())
		return fmt.Errorf("failed to open recording store: %w", err)
	}
	archive, err := media.NewArchive(storageCfg.RecordingsDir())
	if err != nil {
		r.closeAll(context.Background())
		return err
	}

	var publisher pipeline.Publisher
	if r.cfg.Bus.Enabled {
		if err := r.startBus(ctx); err != nil {
			r.closeAll(context.Background())
			return err
		}
		publisher = r.busClient
	}

	orchestrator, err := BuildOrchestrator(&r.cfg, r.store, publisher, r.logger)
	if err != nil {
		r.closeAll(context.Background())
		return err
	}

	handler := api.NewRouter(api.Options{
		Config:    &r.cfg,
		Version:   r.version,
		Store:     r.store,
		Archive:   archive,
		Processor: orchestrator,
		Publisher: publisher,
		Metrics:   metricsHandler,
		Ready:     r.ready.Load,
		Logger:    r.logger,
	})

	// request contexts outlive ctx so shutdown can drain them first
	requestCtx, cancelRequests := context.WithCancel(context.Background())
	defer cancelRequests()

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r.requests.wrap(handler),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return requestCtx },
	}

	serveErr := make(chan error, 1)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
			serveErr <- err
			cancel()
		}
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started",
		slog.String("addr", addr),
		slog.Bool("encrypted", r.store.Encrypted()),
		slog.Bool("diarization", r.cfg.Diarization.Enabled),
		slog.Bool("bus", r.cfg.Bus.Enabled))

	<-ctx.Done()
	r.ready.Store(false)
	r.logger.Info("runtime stopping")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if !r.stopHTTP(shutdownCtx, cancelRequests) {
		r.logger.Warn("requests still running, leaving recording store open")
		r.store = nil
	}
	r.wg.Wait()
	closeCtx, cancelClose := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelClose()
	r.closeAll(closeCtx)

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}

// stopHTTP shuts the server down and waits for running requests. Requests
// still running when ctx ends are canceled and get requestGrace to return.
// It reports whether every request returned.
func (r *Runtime) stopHTTP(ctx context.Context, cancelRequests context.CancelFunc) bool {
	if err := r.httpServer.Shutdown(ctx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	if r.requests.wait(ctx) {
		return true
	}
	cancelRequests()
	graceCtx, cancel := context.WithTimeout(context.Background(), requestGrace)
	defer cancel()
	return r.requests.wait(graceCtx)
}

func (r *Runtime) startBus(ctx context.Context) error {
	busCfg := r.cfg.Bus
	if busCfg.Embedded {
		srv, err := natsserver.Start(busCfg, r.logger)
		if err != nil {
			return err
		}
		r.natsServer = srv
		busCfg.Servers = []string{srv.ClientURL()}
	}
	client, err := bus.Connect(ctx, busCfg, r.logger.With(slog.String("component", "bus")))
	if err != nil {
		return err
	}
	r.busClient = client
	// core publish still works without a stream
	_ = client.EnsureStream(ctx)
	return nil
}

func (r *Runtime) closeAll(ctx context.Context) {
	if r.busClient != nil {
		r.busClient.Close()
	}
	r.natsServer.Shutdown()
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			r.logger.Error("store close error", slog.String("error", err.Error()))
		}
	}
	r.closeTelemetry(ctx)
}

func (r *Runtime) closeTelemetry(ctx context.Context) {
	if r.tracerClose == nil {
		return
	}
	if err := r.tracerClose(ctx); err != nil {
		r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
	}
	r.tracerClose = nil
}

// ResolveStorage fills the passphrase from the OS keyring when one is
// configured and no explicit passphrase is set.
func ResolveStorage(cfg config.StorageConfig) (config.StorageConfig, error) {
	if cfg.Passphrase != "" || cfg.KeyringService == "" {
		return cfg, nil
	}
	pass, err := envelope.KeyringPassphrase(cfg.KeyringService, cfg.KeyringUser)
	if err != nil {
		return cfg, fmt.Errorf("resolve storage passphrase: %w", err)
	}
	cfg.Passphrase = pass
	return cfg, nil
}
