// Package server is the HTTP surface of paxcast.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/YuminosukeSato/paxcast/dataset"
	"github.com/YuminosukeSato/paxcast/internal/metricsdb"
	"github.com/YuminosukeSato/paxcast/internal/modelstore"
	"github.com/YuminosukeSato/paxcast/internal/service"
	"github.com/YuminosukeSato/paxcast/internal/telemetry"
	"github.com/YuminosukeSato/paxcast/pkg/log"
)

// Backend is what the handlers need from the service layer.
type Backend interface {
	Train(ctx context.Context, frame *dataset.Frame) (modelstore.Manifest, error)
	Predict(ctx context.Context, req service.PredictRequest) (service.PredictResult, error)
	UpdatePrediction(ctx context.Context, id int64, actual float64) (metricsdb.MLMetric, error)
	ModelMetrics(ctx context.Context) (service.ModelMetrics, error)
	MLMetrics(ctx context.Context) ([]metricsdb.MLMetric, error)
	OperationalMetrics(ctx context.Context) ([]metricsdb.OperationalMetric, error)
	RecordRequest(ctx context.Context, m metricsdb.OperationalMetric) error
	Manifest(ctx context.Context) (modelstore.Manifest, error)
}

// Config holds server dependencies.
type Config struct {
	Backend   Backend
	Telemetry *telemetry.Metrics
	// MaxBodyBytes caps request bodies; zero means 1 MiB.
	MaxBodyBytes int64
	Logger       log.Logger
}

// Server is the paxcast API.
type Server struct {
	Router    chi.Router
	backend   Backend
	telemetry *telemetry.Metrics
	logger    log.Logger
}

// New creates a Server with all routes and middleware configured.
func New(cfg Config) *Server {
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.GetLoggerWithName("http")
	}

	s := &Server{
		Router:    chi.NewRouter(),
		backend:   cfg.Backend,
		telemetry: cfg.Telemetry,
		logger:    logger,
	}

	// Interceptor は Recoverer の外側に置き、panic も 500 として記録する
	s.Router.Use(chimw.RequestID)
	s.Router.Use(s.interceptor)
	s.Router.Use(chimw.Recoverer)
	s.Router.Use(MaxBodySize(maxBody))

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	r := s.Router
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	r.Get("/health", s.health)
	r.Post("/train", s.train)
	r.Post("/predict", s.predict)
	r.Put("/prediction/{id}", s.updatePrediction)
	r.Get("/models", s.manifest)

	r.Route("/metrics", func(r chi.Router) {
		r.Get("/model", s.modelMetrics)
		r.Get("/model/plot.png", s.modelMetricsPlot)
		r.Get("/operational", s.operationalMetrics)
	})
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

// HTTPServer wraps the router in an *http.Server listening on addr.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Run serves every server until ctx is cancelled or one of them fails, then
// shuts all of them down within shutdownTimeout.
func Run(ctx context.Context, shutdownTimeout time.Duration, servers ...*http.Server) error {
	logger := log.GetLoggerWithName("http")
	g, gctx := errgroup.WithContext(ctx)

	for _, srv := range servers {
		g.Go(func() error {
			logger.Info("listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down servers")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(sctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("servers stopped gracefully")
	return nil
}
