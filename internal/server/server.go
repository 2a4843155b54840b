// Package server implements the HTTP server that exposes document routing,
// role management, ingestion, and retrieval via a REST API.
// The server is started by the `docroute serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ShreyasNK2006/docroute-go/internal/ledger"
	"github.com/ShreyasNK2006/docroute-go/internal/logging"
	"github.com/ShreyasNK2006/docroute-go/internal/registry"
	"github.com/ShreyasNK2006/docroute-go/internal/router"
	"github.com/ShreyasNK2006/docroute-go/internal/search"
	"github.com/ShreyasNK2006/docroute-go/internal/store"
)

// New constructs a Server from the provided components and config.
func New(deps Deps, cfg *Config) (*Server, error) {
	if deps.Registry == nil {
		return nil, fmt.Errorf("server: registry must not be nil")
	}
	if deps.Router == nil {
		return nil, fmt.Errorf("server: router must not be nil")
	}
	if deps.Ledger == nil {
		return nil, fmt.Errorf("server: ledger must not be nil")
	}
	if deps.Pipeline == nil {
		return nil, fmt.Errorf("server: pipeline must not be nil")
	}
	if deps.Retriever == nil {
		return nil, fmt.Errorf("server: retriever must not be nil")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("server: store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// Ingestion of large documents embeds many chunks in one request.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 10
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = 20
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}
	if cfg.APIKey == "" {
		log.Warn("server: API key not configured, authentication disabled")
	}

	promReg := prometheus.NewRegistry()
	s := &Server{
		registry:  deps.Registry,
		router:    deps.Router,
		pipeline:  deps.Pipeline,
		retriever: deps.Retriever,
		ledger:    deps.Ledger,
		store:     deps.Store,
		cfg:       cfg,
		log:       log,
		pingers:   cfg.Pingers,
		metrics:   newServerMetrics(promReg),
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	s.stopRL = stopRL

	mux := http.NewServeMux()

	// Unauthenticated probes.
	mux.Handle("GET /api/health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))

	// Embedding-heavy endpoints carry the per-IP rate limit.
	protect := func(name string, h http.HandlerFunc) http.Handler {
		return s.instrument(name, authMiddleware(cfg.APIKey, h))
	}
	limited := func(name string, h http.HandlerFunc) http.Handler {
		return s.instrument(name, authMiddleware(cfg.APIKey, rl.middleware(h)))
	}

	mux.Handle("POST /api/route", limited("route", s.handleRoute))
	mux.Handle("POST /api/ingest", limited("ingest", s.handleIngest))
	mux.Handle("POST /api/query", limited("query", s.handleQuery))

	mux.Handle("POST /api/roles", protect("roles_create", s.handleRoleCreate))
	mux.Handle("GET /api/roles", protect("roles_list", s.handleRoleList))
	mux.Handle("GET /api/roles/{id}", protect("roles_get", s.handleRoleGet))
	mux.Handle("PATCH /api/roles/{id}", protect("roles_update", s.handleRoleUpdate))
	mux.Handle("DELETE /api/roles/{id}", protect("roles_deactivate", s.handleRoleDeactivate))
	mux.Handle("GET /api/roles/{id}/documents", protect("roles_documents", s.handleRoleDocuments))
	mux.Handle("GET /api/roles/{id}/summary", protect("roles_summary", s.handleRoleSummary))

	mux.Handle("POST /api/assignments", protect("assignments_create", s.handleAssignmentCreate))
	mux.Handle("GET /api/assignments/recent", protect("assignments_recent", s.handleAssignmentsRecent))
	mux.Handle("GET /api/assignments/search", protect("assignments_search", s.handleAssignmentsSearch))
	mux.Handle("GET /api/assignments/stats", protect("assignments_stats", s.handleAssignmentsStats))
	mux.Handle("DELETE /api/assignments/{id}", protect("assignments_delete", s.handleAssignmentDelete))

	mux.Handle("GET /api/documents", protect("documents_list", s.handleDocumentsList))
	mux.Handle("GET /api/documents/{id}", protect("documents_get", s.handleDocumentGet))
	mux.Handle("DELETE /api/documents/{id}", protect("documents_delete", s.handleDocumentDelete))

	mux.Handle("GET /api/stats", protect("stats", s.handleStats))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(log, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("docroute server listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStats handles GET /api/stats: node counts plus per-profile ledger
// aggregates.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.CountNodes(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	stats, err := s.ledger.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := statsResponse{
		ParentNodes: counts.Parents,
		ChildNodes:  counts.Children,
		Profiles:    make([]profileStatsRow, 0, len(stats)),
	}
	for _, st := range stats {
		row := profileStatsRow{
			ProfileID:     st.ProfileID.String(),
			Name:          st.ProfileName,
			Department:    st.Department,
			Active:        st.Active,
			DocumentCount: st.DocumentCount,
			AvgConfidence: st.AvgConfidence,
			HighCount:     st.HighCount,
			MediumCount:   st.MediumCount,
			LowCount:      st.LowCount,
		}
		if !st.LastRoutedAt.IsZero() {
			row.LastRoutedAt = st.LastRoutedAt.Format(time.RFC3339)
		}
		resp.Profiles = append(resp.Profiles, row)
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// errorResponse is the JSON body of every error response.
type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps a component error to its HTTP status and writes the JSON
// error body. Invalid input maps to 400, missing resources to 404, bad
// references to 422, an unreachable embedding provider to 503 (retryable),
// and everything else to 500 with the detail kept in the log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	log := logging.FromContext(r.Context())

	var verr *registry.ValidationError
	var rerr *ledger.ReferentialIntegrityError
	status := http.StatusInternalServerError
	msg := "internal error"

	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
		msg = verr.Error()
	case errors.Is(err, router.ErrEmptyText):
		status = http.StatusBadRequest
		msg = err.Error()
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
		msg = "not found"
	case errors.As(err, &rerr):
		status = http.StatusUnprocessableEntity
		msg = rerr.Error()
	case errors.Is(err, search.ErrEmbeddingUnavailable):
		status = http.StatusServiceUnavailable
		msg = "embedding provider unavailable, retry later"
	}

	if status == http.StatusInternalServerError {
		log.Error("request failed", slog.Any("error", err))
	} else {
		log.Warn("request rejected", slog.Int("status", status), slog.Any("error", err))
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

// badRequest writes a 400 with the given message.
func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}
