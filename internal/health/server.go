package health

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Checker reports whether the backing store is reachable
type Checker interface {
	Connected() bool
}

// Server serves the health endpoint
type Server struct {
	store Checker
	log   *slog.Logger

	server *http.Server
}

// NewServer creates a new health server
func NewServer(store Checker, log *slog.Logger) *Server {
	return &Server{
		store: store,
		log:   log,
	}
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/", s.handleHealth)

	return r
}

// Start starts the health server and blocks until ctx is done or the
// listener fails
func (s *Server) Start(ctx context.Context, port int) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.log.Info("starting health server", "port", port)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.server.Shutdown(shutdownCtx)
	}()

	return s.server.ListenAndServe()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.store.Connected() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("STORE UNAVAILABLE"))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
