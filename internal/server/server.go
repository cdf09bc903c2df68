// Package server serves one frozen snapshot over HTTP. The snapshot is
// loaded once and never modified; every filter request derives a new view.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/jmaddaus/sprintlens/internal/config"
	"github.com/jmaddaus/sprintlens/internal/filter"
	"github.com/jmaddaus/sprintlens/internal/model"
)

// Server holds the snapshot and the HTTP server built around it.
type Server struct {
	addr      string
	log       zerolog.Logger
	snap      *model.Snapshot
	engine    *filter.Engine
	router    *gin.Engine
	server    *http.Server
	startedAt time.Time
}

// New returns a Server for snap using the listen address and report rules
// of cfg.
func New(snap *model.Snapshot, cfg *config.Config, log zerolog.Logger) *Server {
	s := &Server{
		addr:   cfg.ListenAddr,
		log:    log,
		snap:   snap,
		engine: filter.ForSnapshot(snap, cfg.Report),
	}
	s.router = s.routes()
	s.server = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler (used for testing with httptest).
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the HTTP server and blocks until a SIGINT or SIGTERM is received
// or the provided context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.startedAt = time.Now()

	// Bind the port first so we fail fast on EADDRINUSE.
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		var opErr *net.OpError
		if errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.EADDRINUSE) {
			return fmt.Errorf("port %s already in use", s.addr)
		}
		return fmt.Errorf("listen: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().
			Str("addr", ln.Addr().String()).
			Str("generation", s.snap.GenerationID).
			Int("issues", len(s.snap.Rows)).
			Msg("serving snapshot")
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.log.Info().Msg("context cancelled, shutting down")
	case sig := <-sigCh:
		s.log.Info().Str("signal", sig.String()).Msg("received signal, shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	return s.Shutdown(context.Background())
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
