// Package api exposes the tracker over HTTP.
//
// Every /api route acts on behalf of the user named in the X-User-ID header.
// Mutations for one user are serialized.
package api

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/Veraticus/quest/internal/importer"
	"github.com/Veraticus/quest/internal/scoring"
	"github.com/Veraticus/quest/internal/service"
	"github.com/Veraticus/quest/internal/tracker"
	"github.com/gorilla/mux"
)

// Request headers naming the acting user.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserName = "X-User-Name"
)

const (
	defaultMaxUploadBytes = 10 << 20
	defaultLockTimeout    = 10 * time.Second
	shutdownTimeout       = 10 * time.Second
)

// Deps are the collaborators of the server.
type Deps struct {
	Users       UserRegistry
	Leaderboard service.LeaderboardStore
	Tracker     *tracker.Service
	Importer    *importer.Reconciler
	Scorer      *scoring.Engine
	Logger      *slog.Logger
	Metrics     *Metrics
}

// UserRegistry records users seen by the server.
type UserRegistry interface {
	EnsureUser(ctx context.Context, userID, name string) error
}

// Server routes HTTP requests to the tracker, importer and leaderboard.
type Server struct {
	router         *mux.Router
	users          UserRegistry
	leaders        service.LeaderboardStore
	tracker        *tracker.Service
	importer       *importer.Reconciler
	scorer         *scoring.Engine
	logger         *slog.Logger
	metrics        *Metrics
	locks          *keyedMutex
	tlsConfig      *tls.Config
	maxUploadBytes int64
	lockTimeout    time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithMaxUploadBytes limits import request bodies.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// WithLockTimeout bounds how long a request waits for another mutation of the same user.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

// WithTLS serves HTTPS with cfg.
func WithTLS(cfg *tls.Config) Option {
	return func(s *Server) {
		s.tlsConfig = cfg
	}
}

// NewServer creates a server and registers its routes.
func NewServer(deps Deps, opts ...Option) (*Server, error) {
	switch {
	case deps.Tracker == nil:
		return nil, errors.New("tracker service is required")
	case deps.Importer == nil:
		return nil, errors.New("import reconciler is required")
	case deps.Users == nil:
		return nil, errors.New("user registry is required")
	case deps.Leaderboard == nil:
		return nil, errors.New("leaderboard store is required")
	case deps.Scorer == nil:
		return nil, errors.New("scoring engine is required")
	}

	s := &Server{
		router:         mux.NewRouter(),
		users:          deps.Users,
		leaders:        deps.Leaderboard,
		tracker:        deps.Tracker,
		importer:       deps.Importer,
		scorer:         deps.Scorer,
		logger:         deps.Logger,
		metrics:        deps.Metrics,
		locks:          newKeyedMutex(),
		maxUploadBytes: defaultMaxUploadBytes,
		lockTimeout:    defaultLockTimeout,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	for _, opt := range opts {
		opt(s)
	}

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.router.Use(s.metrics.middleware, s.logRequests)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.requireUser)

	api.HandleFunc("/applications", s.handleListApplications).Methods(http.MethodGet)
	api.HandleFunc("/applications", s.handleCreateApplication).Methods(http.MethodPost)
	api.HandleFunc("/applications/import", s.handleImport).Methods(http.MethodPost)
	api.HandleFunc("/applications/import/template", s.handleTemplate).Methods(http.MethodGet)
	api.HandleFunc("/applications/{id:[0-9]+}", s.handleUpdateApplication).Methods(http.MethodPut)
	api.HandleFunc("/applications/{id:[0-9]+}", s.handleDeleteApplication).Methods(http.MethodDelete)
	api.HandleFunc("/profile", s.handleProfile).Methods(http.MethodGet)
	api.HandleFunc("/achievements", s.handleAchievements).Methods(http.MethodGet)
	api.HandleFunc("/leaderboard", s.handleLeaderboard).Methods(http.MethodGet)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Serve accepts connections on l until ctx is canceled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	if s.tlsConfig != nil {
		l = tls.NewListener(l, s.tlsConfig)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", l.Addr().String())
		errCh <- srv.Serve(l)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

// ListenAndServe listens on addr and serves until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, l)
}

type userKey struct{}

func userFrom(ctx context.Context) string {
	id, _ := ctx.Value(userKey{}).(string)
	return id
}

func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(HeaderUserID)
		if userID == "" {
			s.writeError(w, r, errMissingUser)
			return
		}
		if name := r.Header.Get(HeaderUserName); name != "" {
			if err := s.users.EnsureUser(r.Context(), userID, name); err != nil {
				s.writeError(w, r, err)
				return
			}
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, userID)))
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		s.logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

// lockUser serializes mutations of the request's user.
func (s *Server) lockUser(r *http.Request) (func(), error) {
	ctx, cancel := context.WithTimeout(r.Context(), s.lockTimeout)
	defer cancel()
	return s.locks.Lock(ctx, userFrom(r.Context()))
}
