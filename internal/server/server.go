// Package server wires the application together: router, middleware,
// routes, and graceful shutdown. It is the composition root; every other
// package receives its dependencies from here or from main.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/analysis-engine/internal/config"
	"github.com/sakif/analysis-engine/internal/handler"
	"github.com/sakif/analysis-engine/internal/metrics"
	"github.com/sakif/analysis-engine/internal/middleware"
	sqliteRepo "github.com/sakif/analysis-engine/internal/repository/sqlite"
	"github.com/sakif/analysis-engine/internal/service"
)

// Server owns the HTTP listener and the database connection. The sandbox
// runner and planner client are owned by main, which composes them into the
// analyzer passed here.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New creates the server and assembles the dependency chain: database,
// service, handler, routes. analyzer may be nil when no execution backend
// is available; analysis requests then fail with a 503.
func New(cfg *config.Config, logger *slog.Logger, analyzer service.Analyzer) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}
	s.setupRoutes(analyzer)
	return s, nil
}

func (s *Server) setupRoutes(analyzer service.Analyzer) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	s.router.Handle("/metrics", metrics.Handler())

	// Generated chart images are served straight off disk; paths stored in
	// analysis records are relative to this prefix.
	fileServer := http.FileServer(http.Dir(s.config.ResultsDir))
	s.router.Handle("/results/*", http.StripPrefix("/results/", fileServer))

	analysisService := service.NewAnalysisService(s.db, analyzer, s.config.DataDir, s.logger)
	analysisHandler := handler.NewAnalysisHandler(analysisService, s.logger)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/analyses", analysisHandler.HandleAnalyze)
		r.Get("/analyses", analysisHandler.HandleList)
		r.Get("/analyses/{id}", analysisHandler.HandleGetByID)
	})
}

// Start runs the server until SIGINT/SIGTERM, then shuts down gracefully
// and closes the database. The write timeout is generous because analysis
// requests are synchronous and a full session spans several sandbox runs.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
			slog.String("resultsDir", s.config.ResultsDir),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
