package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/forgemirror/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 10 * time.Second

// Config controls the status server.
type Config struct {
	Listen string
	// CORSOrigins enables cross-origin GETs from these origins when set.
	CORSOrigins []string
	Version     string
	Logger      zerolog.Logger
}

// Server exposes health, last-run status and metrics over HTTP.
type Server struct {
	cfg      Config
	state    *State
	router   *gin.Engine
	appeared time.Time
}

func New(cfg Config, state *State) *Server {
	gin.SetMode(gin.ReleaseMode)
	observability.RegisterMetrics()
	if state == nil {
		state = NewState()
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestObserver(cfg.Logger))
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: cfg.CORSOrigins,
			AllowMethods: []string{"GET"},
			AllowHeaders: []string{"Origin", "Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}
	s := &Server{cfg: cfg, state: state, router: r, appeared: time.Now()}
	s.registerRoutes()
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.cfg.Logger.Info().Str("listen", s.cfg.Listen).Msg("status server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.cfg.Logger.Info().Msg("status server stopped")
	return nil
}
