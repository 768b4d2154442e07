// Package server exposes the cached parcel data over HTTP: a JSON API
// for scripts plus a small embedded map viewer.
package server

import (
	_ "embed"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lanesville-research/parcel-cli/internal/history"
	"github.com/lanesville-research/parcel-cli/internal/parcel"
	"github.com/lanesville-research/parcel-cli/internal/store"
)

//go:embed viewer.html
var viewerHTML []byte

// Options configure the HTTP server.
type Options struct {
	// CORSOrigins lists allowed origins; empty allows any.
	CORSOrigins []string
}

// Server wires the HTTP handlers to the cache store and area directory.
type Server struct {
	router chi.Router
	store  *store.Store
	areas  *parcel.Directory

	// hist may be nil when the fetch log is not configured.
	hist *history.Log

	log *zap.Logger
}

// New constructs a Server with middleware and routes.
func New(st *store.Store, areas *parcel.Directory, hist *history.Log, opts Options) *Server {
	s := &Server{
		store: st,
		areas: areas,
		hist:  hist,
		log:   zap.L().With(zap.String("component", "server")),
	}

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.logRequests)
	r.Use(s.recoverPanics)
	r.Use(timeoutMiddleware(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/", s.viewer)
	r.Get("/healthz", s.healthz)

	r.Route("/api", func(r chi.Router) {
		r.Get("/areas", s.listAreas)
		r.Get("/datasets", s.listDatasets)
		r.Get("/parcels", s.listParcels)
		r.Get("/parcels/geojson", s.parcelsGeoJSON)
		r.Get("/parcels/at", s.parcelAt)
		r.Get("/parcels/{id}", s.getParcel)
		r.Get("/summary", s.summary)
		r.Get("/owners", s.owners)
		r.Get("/history", s.fetchHistory)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) viewer(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(viewerHTML); err != nil {
		s.log.Error("viewer write failed", zap.Error(err))
	}
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-ID", uuid.NewString())
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.log.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()))
	})
}

func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("panic recovered", zap.Any("panic", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
