// Package httpapi implements the spec.md §6 HTTP API: crawl/upload
// ingestion, progress polling, hybrid search, page lookup, and re-embed
// control, behind bearer-token auth and CORS enforcement.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/archon-iirc/archon/internal/embedding"
	"github.com/archon-iirc/archon/internal/ingest"
	"github.com/archon-iirc/archon/internal/progress"
	"github.com/archon-iirc/archon/internal/reembed"
	"github.com/archon-iirc/archon/internal/search"
	"github.com/archon-iirc/archon/internal/telemetry"
	"github.com/archon-iirc/archon/internal/toolbridge"
	"github.com/archon-iirc/archon/internal/vectorstore"
)

// Server wires the chi router to the application's collaborators.
type Server struct {
	store       vectorstore.Store
	pages       vectorstore.PageStore
	pipeline    *ingest.Pipeline
	engine      *search.Engine
	tracker     *progress.Tracker
	reembedSvc  *reembed.Service
	embedder    embedding.Provider
	bridge        *toolbridge.Bridge
	metricsHandler http.Handler
	authToken    string
	allowedOrig  []string
	maxPageChars int
	reembedStats reembedStats
	router       chi.Router
}

// Config bundles a Server's collaborators and policy knobs.
type Config struct {
	Store          vectorstore.Store
	Pages          vectorstore.PageStore
	Pipeline       *ingest.Pipeline
	Engine         *search.Engine
	Tracker        *progress.Tracker
	ReembedService *reembed.Service
	Embedder       embedding.Provider
	AuthToken      string
	AllowedOrigins []string
	MaxPageChars   int

	// MetricsHandler, when set, is mounted unauthenticated at /metrics
	// (typically metrics.Handler wrapping a metrics.PrometheusExporter).
	MetricsHandler http.Handler

	// SessionTimeoutSeconds configures the ToolBridge's idle session
	// timeout (config.MCPConfig.SessionTimeoutSeconds). <= 0 falls back to
	// toolbridge.DefaultSessionTimeout.
	SessionTimeoutSeconds int
}

// New builds a Server and mounts every spec.md §6 route.
func New(cfg Config) *Server {
	s := &Server{
		store:       cfg.Store,
		pages:       cfg.Pages,
		pipeline:    cfg.Pipeline,
		engine:      cfg.Engine,
		tracker:     cfg.Tracker,
		reembedSvc:  cfg.ReembedService,
		embedder:    cfg.Embedder,
		bridge:         toolbridge.New(cfg.Engine, cfg.Pages, cfg.SessionTimeoutSeconds),
		metricsHandler: cfg.MetricsHandler,
		authToken:   cfg.AuthToken,
		allowedOrig: cfg.AllowedOrigins,
		maxPageChars: cfg.MaxPageChars,
	}
	if s.maxPageChars <= 0 {
		s.maxPageChars = 20000
	}
	s.router = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(traceMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.allowedOrig,
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: s.authToken != "",
	}))

	r.Get("/healthz", s.handleHealthz)
	if s.metricsHandler != nil {
		r.Handle("/metrics", s.metricsHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Post("/api/knowledge/crawl", s.handleCrawl)
		r.Post("/api/knowledge-items/upload", s.handleUpload)
		r.Get("/api/crawl-progress/{progressID}", s.handleProgressGet)
		r.Post("/api/crawl-progress/{progressID}/stop", s.handleProgressStop)

		r.Post("/api/knowledge-items/search", s.handleSearch)

		r.Get("/api/pages", s.handleListPages)
		r.Get("/api/pages/{id}", s.handleGetPage)
		r.Get("/api/pages/by-url", s.handleGetPageByURL)

		r.Post("/api/re-embed/start", s.handleReembedStart)
		r.Post("/api/re-embed/stop/{progressID}", s.handleReembedStop)
		r.Get("/api/re-embed/stats", s.handleReembedStats)

		r.Post("/rpc", s.handleRPC)
	})

	return r
}

// traceMiddleware wraps every request in an OpenTelemetry span, the Go
// analog of the teacher's FastAPIInstrumentor.instrument_app call.
func traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := telemetry.Tracer().Start(r.Context(), r.Method+" "+r.URL.Path)
		defer span.End()
		span.SetAttributes(attribute.String("http.method", r.Method), attribute.String("http.path", r.URL.Path))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.status_code", rec.status))
		if rec.status >= 500 {
			span.SetStatus(codes.Error, http.StatusText(rec.status))
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.authToken == "" {
			next.ServeHTTP(w, r)
			return
		}
		auth := r.Header.Get("Authorization")
		if auth != "Bearer "+s.authToken {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
