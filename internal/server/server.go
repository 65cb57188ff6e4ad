// Package server exposes retrieval over HTTP: a search endpoint that runs
// the full retrieve-and-answer flow plus liveness and readiness probes.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bull/rag-search/internal/index"
	"github.com/bull/rag-search/internal/llm"
	"github.com/bull/rag-search/internal/search"
)

// SearchRequest is the body of POST /rag/search.
type SearchRequest struct {
	Query string `json:"query"`
}

// SearchResponse echoes the query with the generated summary.
type SearchResponse struct {
	Query   string `json:"query"`
	Summary string `json:"summary"`
}

// HealthResponse reports index readiness.
type HealthResponse struct {
	Status    string `json:"status"`
	Chunks    int    `json:"chunks"`
	Timestamp string `json:"timestamp"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server serves the retrieval API.
type Server struct {
	searcher *search.Searcher
	logger   *slog.Logger
	http     *http.Server
}

// New creates the server listening on addr.
func New(addr string, searcher *search.Searcher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{searcher: searcher, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /rag/search", s.handleSearch)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the route handler, for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.logger.Info("http server listening", "addr", s.http.Addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"service": "rag-search"})
}

// handleHealth reports ready only once the index is built or loaded, so
// orchestrators keep traffic away during startup.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		Chunks:    s.searcher.Count(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if !s.searcher.Ready() {
		resp.Status = "index not ready"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	resp.Status = "ok"
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "query must not be empty"})
		return
	}

	summary, err := s.searcher.Answer(r.Context(), query, 0)
	if err != nil {
		s.logger.Error("search failed", "query", query, "error", err)
		writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, SearchResponse{Query: query, Summary: summary})
}

// statusFor maps failure classes to status codes: an unbuilt index means the
// service is not ready, upstream answer failures are a bad gateway, and a
// missing credential is a deployment fault.
func statusFor(err error) int {
	switch {
	case errors.Is(err, index.ErrNotBuilt):
		return http.StatusServiceUnavailable
	case errors.Is(err, llm.ErrAnswerService):
		return http.StatusBadGateway
	case errors.Is(err, llm.ErrMissingCredential):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
