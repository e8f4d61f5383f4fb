// Package server exposes the civic dataset over the HTTP API the
// comparison client consumes.
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/vanderheijden86/civicmap/internal/dataset"
	"github.com/vanderheijden86/civicmap/pkg/metrics"
	"github.com/vanderheijden86/civicmap/pkg/model"
)

// Backend answers the API queries. *dataset.Store implements it.
type Backend interface {
	Search(ctx context.Context, q string) ([]model.EntitySummary, error)
	County(ctx context.Context, fips string) (*model.Entity, error)
	State(ctx context.Context, code string) (*model.StateSummary, error)
	States(ctx context.Context) ([]string, error)
	CompareStates(ctx context.Context, a, b string) (*model.StateGaps, error)
}

// Options configures the handler.
type Options struct {
	// GeoJSON is the boundary file served at /data/counties.geojson.
	GeoJSON string
	Timeout time.Duration
	Logger  *zap.Logger
}

type server struct {
	backend Backend
	geojson string
	logger  *zap.Logger
}

// New builds the router.
func New(backend Backend, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	s := &server{backend: backend, geojson: opts.GeoJSON, logger: opts.Logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(opts.Timeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/debug/metrics", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.Collect())
	})
	r.Get("/data/counties.geojson", s.counties)

	r.Route("/api", func(r chi.Router) {
		r.Get("/search", s.search)
		r.Get("/county/{fips}", s.county)
		r.Get("/state/{code}", s.state)
		r.Get("/states", s.states)
		r.Get("/compare/state", s.compare)
	})
	return r
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		d := time.Since(start)
		if metrics.Enabled() {
			metrics.APIRequest.Record(d)
		}
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", d),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (s *server) search(w http.ResponseWriter, r *http.Request) {
	hits, err := s.backend.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hits)
}

func (s *server) county(w http.ResponseWriter, r *http.Request) {
	e, err := s.backend.County(r.Context(), chi.URLParam(r, "fips"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *server) state(w http.ResponseWriter, r *http.Request) {
	sum, err := s.backend.State(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summary": sum})
}

func (s *server) states(w http.ResponseWriter, r *http.Request) {
	codes, err := s.backend.States(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"states": codes})
}

func (s *server) compare(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	a, b := q.Get("state_a"), q.Get("state_b")
	if a == "" || b == "" {
		writeError(w, http.StatusBadRequest, "state_a and state_b are required")
		return
	}
	gaps, err := s.backend.CompareStates(r.Context(), a, b)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"gaps": gaps})
}

func (s *server) counties(w http.ResponseWriter, r *http.Request) {
	if s.geojson == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if _, err := os.Stat(s.geojson); err != nil {
		s.logger.Warn("geojson unavailable", zap.String("path", s.geojson), zap.Error(err))
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	http.ServeFile(w, r, s.geojson)
}

func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, dataset.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, dataset.ErrSameState):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Serve runs the handler on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, h http.Handler, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
