package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/absweep/absweep/internal/engine"
	"github.com/absweep/absweep/internal/store"
)

type Server struct {
	store      *store.SQLiteStore
	sweeper    *engine.Sweeper
	port       int
	sweepToken string
	router     *http.ServeMux
	logger     *zap.Logger
	startTime  time.Time
}

// New builds the HTTP surface: health, tests API, the sweep trigger for the
// external scheduler, and Prometheus metrics.
func New(s *store.SQLiteStore, sweeper *engine.Sweeper, port int, sweepToken string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := &Server{
		store:      s,
		sweeper:    sweeper,
		port:       port,
		sweepToken: sweepToken,
		router:     http.NewServeMux(),
		logger:     logger,
		startTime:  time.Now(),
	}

	srv.setupRoutes()
	return srv
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth)
	s.router.HandleFunc("/api/tests", s.handleListTests)
	s.router.HandleFunc("/api/tests/", s.handleTestDetail)
	s.router.HandleFunc("/api/sweep", s.handleSweep)
	s.router.Handle("/metrics", promhttp.Handler())
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("server listening", zap.String("addr", addr))
	return http.ListenAndServe(addr, s.router)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
