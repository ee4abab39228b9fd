// Package api exposes the document editor over HTTP as a JSON API. All
// /api/v1 routes require a signed bearer token; the generation endpoints
// additionally carry a per-user rate limit.
package api

import (
	"log/slog"
	"net/http"

	"github.com/ultrasop/ultrasop/internal/generate"
	"github.com/ultrasop/ultrasop/internal/store"
)

// Config carries the server's tunables.
type Config struct {
	AuthSecret    string
	TrustProxy    bool
	CORSOrigins   []string
	RatePerMinute int
	RateBurst     int
	ProductName   string
	DefaultDetail generate.DetailLevel
}

// Server handles the JSON API.
type Server struct {
	cfg    Config
	logger *slog.Logger
	store  *store.Store
	gen    *generate.Service
}

// NewServer wires the API against a document store and generation service.
func NewServer(cfg Config, st *store.Store, gen *generate.Service, logger *slog.Logger) *Server {
	if cfg.RatePerMinute == 0 {
		cfg.RatePerMinute = 5
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = cfg.RatePerMinute
	}
	if cfg.ProductName == "" {
		cfg.ProductName = "UltraSOP"
	}
	if cfg.DefaultDetail == "" {
		cfg.DefaultDetail = generate.DetailFull
	}
	return &Server{cfg: cfg, logger: logger, store: st, gen: gen}
}

// Handler builds the routing table and middleware chain.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()

	api.HandleFunc("GET /api/v1/documents", s.handleListDocuments)
	api.HandleFunc("POST /api/v1/documents", s.handleCreateDocument)
	api.HandleFunc("GET /api/v1/documents/active", s.handleGetActive)
	api.HandleFunc("PUT /api/v1/documents/active", s.handleSelectActive)
	api.HandleFunc("PATCH /api/v1/documents/active", s.handleUpdateActive)
	api.HandleFunc("POST /api/v1/documents/active/clear", s.handleClearActive)
	api.HandleFunc("GET /api/v1/documents/{id}", s.handleGetDocument)
	api.HandleFunc("DELETE /api/v1/documents/{id}", s.handleDeleteDocument)
	api.HandleFunc("POST /api/v1/documents/{id}/duplicate", s.handleDuplicateDocument)

	api.HandleFunc("GET /api/v1/documents/active/versions", s.handleListVersions)
	api.HandleFunc("POST /api/v1/documents/active/versions", s.handleSaveVersion)
	api.HandleFunc("DELETE /api/v1/documents/active/versions/{n}", s.handleDeleteVersion)
	api.HandleFunc("POST /api/v1/documents/active/versions/{n}/restore", s.handleRestoreVersion)
	api.HandleFunc("GET /api/v1/documents/active/versions/{n}/diff", s.handleDiffVersion)

	api.HandleFunc("GET /api/v1/documents/active/export/pdf", s.handleExportPDF)
	api.HandleFunc("GET /api/v1/templates", s.handleListTemplates)

	limited := newRateLimiter(s.cfg.RatePerMinute, s.cfg.RateBurst).middleware(s.cfg.TrustProxy)
	api.Handle("POST /api/v1/generate", limited(http.HandlerFunc(s.handleGenerate)))
	api.Handle("POST /api/v1/enhance", limited(http.HandlerFunc(s.handleEnhance)))
	api.Handle("POST /api/v1/enhance/step", limited(http.HandlerFunc(s.handleEnhanceStep)))

	root := http.NewServeMux()
	root.HandleFunc("GET /health", s.handleHealth)
	root.HandleFunc("GET /ready", s.handleReady)
	root.Handle("/api/v1/", authMiddleware(s.cfg.AuthSecret)(api))

	var h http.Handler = root
	h = corsMiddleware(s.cfg.CORSOrigins)(h)
	h = loggingMiddleware(s.logger)(h)
	h = recoveryMiddleware(s.logger)(h)
	return h
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "product": s.cfg.ProductName})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
