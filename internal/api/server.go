package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"titlecache/internal/cache"
	"titlecache/internal/config"
	"titlecache/internal/logging"
	"titlecache/internal/pathquery"
	"titlecache/internal/services"
	"titlecache/internal/textutil"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 5 * time.Second
)

// Cache is the subset of cache.Manager the API drives.
type Cache interface {
	Stats(ctx context.Context) (cache.Stats, error)
	Add(ctx context.Context, ids ...string) (cache.AddResult, error)
	Get(ctx context.Context, id string) (cache.Title, error)
	Query(ctx context.Context, c pathquery.Combinator, preds ...pathquery.Predicate) ([]cache.Title, error)
	Autocomplete(ctx context.Context, query, path string, limit int, post func(string) string) ([]string, error)
	Reload(ctx context.Context) (cache.SnapshotDiff, error)
}

// Server is the control API HTTP server.
type Server struct {
	bind   string
	token  string
	cache  Cache
	logger *slog.Logger

	handler  http.Handler
	listener net.Listener
	server   *http.Server
}

// New builds a server for cfg.API. A token is mandatory.
func New(cfg *config.Config, c Cache, logger *slog.Logger) (*Server, error) {
	if cfg == nil || c == nil {
		return nil, services.Wrap(services.ErrConfiguration, "api", "new server", "config and cache are required", nil)
	}
	token := strings.TrimSpace(cfg.API.Token)
	if token == "" {
		return nil, services.Wrap(services.ErrConfiguration, "api", "new server",
			"api.token is empty; set it in the config or TITLECACHE_API_TOKEN", nil)
	}
	s := &Server{
		bind:   strings.TrimSpace(cfg.API.Bind),
		token:  token,
		cache:  c,
		logger: logging.NewComponentLogger(logger, "api"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/titles", s.handleAdd)
	mux.HandleFunc("GET /api/titles/{id}", s.handleGet)
	mux.HandleFunc("POST /api/query", s.handleQuery)
	mux.HandleFunc("GET /api/autocomplete", s.handleAutocomplete)
	mux.HandleFunc("POST /api/snapshot/reload", s.handleReload)
	s.handler = withRequestID(s.requireToken(mux))

	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Handler exposes the routed handler, middleware included.
func (s *Server) Handler() http.Handler { return s.handler }

// Start listens on the configured address and serves until ctx ends.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "api server error", "api_serve_failed", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening",
		logging.String(logging.FieldEventType, "api_listening"),
		logging.String("address", listener.Addr().String()),
	)
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.bind
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down, waiting up to five seconds for requests in flight.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("api shutdown incomplete", logging.Error(err))
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.cache.Stats(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, FromStats(stats))
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req AddRequest
	if !s.decode(w, r, &req) {
		return
	}
	result, err := s.cache.Add(r.Context(), req.IDs...)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	title, err := s.cache.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, title)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !s.decode(w, r, &req) {
		return
	}
	titles, err := s.cache.Query(r.Context(), req.Combinator(), req.ToPredicates()...)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if titles == nil {
		titles = []cache.Title{}
	}
	s.writeJSON(w, http.StatusOK, QueryResponse{Titles: titles})
}

func (s *Server) handleAutocomplete(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	path := strings.TrimSpace(params.Get("path"))
	if path == "" {
		s.writeError(w, r, http.StatusBadRequest, "path is required")
		return
	}
	limit := 0
	if raw := params.Get("n"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, r, http.StatusBadRequest, "n must be a non-negative integer")
			return
		}
		limit = n
	}
	var post func(string) string
	switch params.Get("normalize") {
	case "":
	case "parenthetical":
		post = textutil.StripParenthetical
	default:
		s.writeError(w, r, http.StatusBadRequest, "unknown normalize value")
		return
	}

	values, err := s.cache.Autocomplete(r.Context(), params.Get("q"), path, limit, post)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if values == nil {
		values = []string{}
	}
	s.writeJSON(w, http.StatusOK, ValuesResponse{Values: values})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	diff, err := s.cache.Reload(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, diff)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := services.HTTPStatus(err)
	logger := logging.WithContext(r.Context(), s.logger)
	switch {
	case errors.Is(err, context.Canceled):
		logger.Debug("api request abandoned by client", logging.String("route", r.URL.Path))
	case errors.Is(err, context.DeadlineExceeded):
		logging.WarnWithContext(logger, "api request timed out", "api_request_timeout",
			logging.String("route", r.Method+" "+r.URL.Path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "partial work stays committed"),
		)
	case status >= http.StatusInternalServerError:
		logging.ErrorWithContext(logger, "api request failed", "api_request_failed",
			logging.String("route", r.Method+" "+r.URL.Path),
			logging.Int("status", status),
			logging.Error(err),
		)
	default:
		logger.Debug("api request rejected", logging.String("route", r.URL.Path), logging.Error(err))
	}
	s.writeError(w, r, status, err.Error())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	id, _ := services.RequestIDFromContext(r.Context())
	s.writeJSON(w, status, ErrorResponse{Error: message, RequestID: id})
}
