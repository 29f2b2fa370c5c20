// Package http exposes the scheduled entry points: /snapshot for the
// ingestor, /alert for the evaluator, plus health and metrics. Both
// scheduled endpoints are GET because the external driver is a dumb cron
// hitting URLs.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/perpgate/perpgate/internal/application"
	"github.com/perpgate/perpgate/internal/ingest"
	"github.com/perpgate/perpgate/internal/kv"
	"github.com/perpgate/perpgate/internal/persistence"
)

// Config holds the HTTP server settings.
type Config struct {
	Addr string

	// AuthKey guards the evaluator endpoint. Empty disables auth, which is
	// only sensible behind a private listener.
	AuthKey string

	// DefaultSymbols backs requests that omit ?symbols=.
	DefaultSymbols []string

	HeartbeatKey string

	RequestTimeout time.Duration
}

// Server wires the handlers onto a mux router with the shared middleware
// chain.
type Server struct {
	router *mux.Router
	server *http.Server
	cfg    Config

	ingestor *ingest.Ingestor
	alerter  *application.Alerter
	store    kv.Store
	archive  persistence.AlertsRepo
}

func NewServer(cfg Config, ingestor *ingest.Ingestor, alerter *application.Alerter, store kv.Store, archive persistence.AlertsRepo, reg *prometheus.Registry) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.HeartbeatKey == "" {
		cfg.HeartbeatKey = kv.DefaultHeartbeatKey
	}

	s := &Server{
		router:   mux.NewRouter(),
		cfg:      cfg,
		ingestor: ingestor,
		alerter:  alerter,
		store:    store,
		archive:  archive,
	}

	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.timeoutMiddleware)

	s.router.HandleFunc("/snapshot", s.handleSnapshot).Methods(http.MethodGet)
	s.router.HandleFunc("/alert", s.handleAlert).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if s.archive != nil {
		s.router.HandleFunc("/alerts/recent", s.handleRecentAlerts).Methods(http.MethodGet)
	}
	s.router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	s.router.NotFoundHandler = http.HandlerFunc(s.handleNotFound)

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Start() error {
	log.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("http server shutting down")
	return s.server.Shutdown(ctx)
}

type ctxKey string

const requestIDKey ctxKey = "request_id"

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()[:8]
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		id, _ := r.Context().Value(requestIDKey).(string)
		log.Info().
			Str("request_id", id).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) timeoutMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
