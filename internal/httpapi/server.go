// Package httpapi exposes the transfer operations over HTTP for the
// GarageReg backend to call.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/garagereg/dataport/internal/config"
	"github.com/garagereg/dataport/internal/logger"
	"github.com/garagereg/dataport/internal/registry"
	"github.com/garagereg/dataport/internal/transfer"
)

// Server wires the transfer components behind a chi router.
type Server struct {
	cfg   *config.Config
	log   *logger.Logger
	reg   *registry.Registry
	store transfer.Store
	db    *sql.DB

	exporter   *transfer.Exporter
	importer   *transfer.Importer
	validator  *transfer.Validator
	comparator *transfer.Comparator
	verifier   *transfer.RoundTripVerifier

	toolVersion string
}

// NewServer builds a server over an already-connected store. The db
// handle is used for health checks and advisory locking; it may be nil
// in tests that use a fake store.
func NewServer(cfg *config.Config, log *logger.Logger, reg *registry.Registry, store transfer.Store, db *sql.DB, toolVersion string) (*Server, error) {
	exporter, err := transfer.NewExporter(store, reg, toolVersion, log)
	if err != nil {
		return nil, err
	}
	importer, err := transfer.NewImporter(store, reg, log)
	if err != nil {
		return nil, err
	}
	validator, err := transfer.NewValidator(reg)
	if err != nil {
		return nil, err
	}
	comparator, err := transfer.NewComparator(reg)
	if err != nil {
		return nil, err
	}
	verifier, err := transfer.NewRoundTripVerifier(store, reg, toolVersion, log)
	if err != nil {
		return nil, err
	}

	return &Server{
		cfg:         cfg,
		log:         log,
		reg:         reg,
		store:       store,
		db:          db,
		exporter:    exporter,
		importer:    importer,
		validator:   validator,
		comparator:  comparator,
		verifier:    verifier,
		toolVersion: toolVersion,
	}, nil
}

// Router assembles the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Post("/export", s.handleExport)
	r.Post("/export/download", s.handleExportDownload)
	r.Post("/import", s.handleImport)
	r.Post("/validate", s.handleValidate)
	r.Post("/compare", s.handleCompare)
	r.Post("/test-round-trip", s.handleRoundTrip)

	return r
}

// Run serves until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.Router(),
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeoutSeconds) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infow("http server listening", "addr", s.cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// requestLogger logs one line per request through the shared zap
// logger.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Infow("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
