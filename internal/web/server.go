package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/inovacc/repoload/internal/core"
	"github.com/inovacc/repoload/internal/store"
)

// Config holds the web server configuration
type Config struct {
	Port int
	Host string
}

// DefaultConfig returns the default web server configuration
func DefaultConfig() Config {
	return Config{
		Port: 5000,
		Host: "127.0.0.1",
	}
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Server represents the web server
type Server struct {
	httpServer *http.Server
	ctrl       *core.Controller
	store      store.Store
	config     Config
	logger     *slog.Logger
}

// New creates a new web server
func New(ctrl *core.Controller, s store.Store, config Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		ctrl:   ctrl,
		store:  s,
		config: config,
		logger: logger,
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return s.Serve(ctx, listener)
}

// Serve is Start over an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// org registrations wait on the listing API
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("web server starting", slog.String("addr", listener.Addr().String()))

	errCh := make(chan error, 1)

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}

		return nil
	case <-ctx.Done():
	}

	return s.Shutdown(context.Background()) //nolint:contextcheck // parent context cancelled, use background for shutdown
}

// Shutdown gracefully shuts down the web server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	s.logger.Info("shutting down web server")

	return s.httpServer.Shutdown(shutdownCtx)
}
