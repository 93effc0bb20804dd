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

	"github.com/jatinpathak/Truth-Spectrogram/internal/config"
	"github.com/jatinpathak/Truth-Spectrogram/internal/history"
	"github.com/jatinpathak/Truth-Spectrogram/internal/session"
)

// HealthProber reports whether the remote detection service is reachable.
type HealthProber interface {
	Health(ctx context.Context) error
}

type Server struct {
	cfg     config.ServerConfig
	router  *chi.Mux
	server  *http.Server
	session *session.Session
	store   *history.Store
	prober  HealthProber
}

func New(cfg config.Config, sess *session.Session, store *history.Store, prober HealthProber) *Server {
	s := &Server{
		cfg:     cfg.Server,
		router:  chi.NewRouter(),
		session: sess,
		store:   store,
		prober:  prober,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	// Serve the deployed UI, when one is present.
	fs := http.FileServer(http.Dir(s.cfg.StaticDir))
	s.router.Handle("/*", fs)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/session", s.handleSession)
		r.Post("/file", s.handleSelectFile)
		r.Post("/language", s.handleSetLanguage)
		r.Post("/credential", s.handleSetCredential)
		r.Post("/analyze", s.handleAnalyze)
		r.Get("/languages", s.handleLanguages)
		r.Get("/history", s.handleHistory)
		r.Get("/health", s.handleHealth)
		r.Get("/service/health", s.handleServiceHealth)
	})
}

// Handler exposes the assembled router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run() error {
	// Create a channel to listen for errors coming from the listener
	serverErrors := make(chan error, 1)

	// Start the server
	go func() {
		slog.Info("Starting server", "address", s.server.Addr)
		serverErrors <- s.server.ListenAndServe()
	}()

	// Create channel for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Wait for interrupt or error
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		slog.Info("Starting shutdown", "signal", sig)

		// Give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		// Trigger graceful shutdown
		err := s.server.Shutdown(ctx)
		if err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	return nil
}
