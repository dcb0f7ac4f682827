// Package server exposes the question pipeline over HTTP.
package server

import (
	_ "embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/olive/internal/chat"
	"github.com/JonMunkholm/olive/internal/llm"
	"github.com/JonMunkholm/olive/internal/observability"
	"github.com/JonMunkholm/olive/internal/pipeline"
)

const (
	defaultLimit = 200
	maxLimit     = 1000
)

//go:embed templates/index.html
var indexHTML string

type Server struct {
	pipeline    *pipeline.Pipeline
	sessions    *chat.Sessions
	logger      *slog.Logger
	tmpl        *template.Template
	corsOrigins []string
}

type Options struct {
	Pipeline    *pipeline.Pipeline
	Sessions    *chat.Sessions
	Logger      *slog.Logger
	CORSOrigins []string
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		pipeline:    opts.Pipeline,
		sessions:    opts.Sessions,
		logger:      logger,
		tmpl:        template.Must(template.New("index").Parse(indexHTML)),
		corsOrigins: opts.CORSOrigins,
	}
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(observability.LoggingMiddleware(s.logger))
	r.Use(s.recoverer)
	r.Use(observability.MetricsMiddleware)
	r.Use(CORS(s.corsOrigins))

	r.Get("/", s.handleIndex)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/connect", s.handleConnect)
		r.Post("/generate-sql", s.handleGenerateSQL)
		r.Post("/ask", s.handleAsk)
		r.Get("/table", s.handleTable)
		r.Post("/table/export", s.handleExportCSV)
		r.Get("/sessions/{id}", s.handleSession)
	})
	return r
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct {
		Provider     string
		DefaultLimit int
	}{
		Provider:     llm.DisplayName(s.pipeline.Provider()),
		DefaultLimit: defaultLimit,
	}
	if err := s.tmpl.Execute(w, data); err != nil {
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"llm":      s.pipeline.Provider() != nil,
		"sessions": s.sessions.Len(),
	})
}
