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
	"github.com/go-chi/chi/v5/middleware"

	"github.com/callsense/callsense/internal/config"
	"github.com/callsense/callsense/internal/orchestrator"
	"github.com/callsense/callsense/internal/store"
)

type Server struct {
	cfg          config.ServerConfig
	server       *http.Server
	orchestrator *orchestrator.Orchestrator
	store        *store.Store
}

func New(cfg config.ServerConfig, orch *orchestrator.Orchestrator, st *store.Store) *Server {
	s := &Server{
		cfg:          cfg,
		orchestrator: orch,
		store:        st,
	}

	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Route("/api/v1", func(r chi.Router) {
		r.Post("/analyze/text", s.handleAnalyzeText)
		r.Post("/analyze/audio", s.handleAnalyzeAudio)
		r.Get("/calls/{sessionID}", s.handleGetCall)
		r.Get("/stats", s.handleStats)
		r.Get("/health", s.handleHealth)
	})

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

func (s *Server) Run() error {
	serverErrors := make(chan error, 1)

	go func() {
		slog.Info("Starting server", "address", s.server.Addr)
		serverErrors <- s.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		slog.Info("Starting shutdown", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	return nil
}
