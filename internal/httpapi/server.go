// Package httpapi exposes the pipeline over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"ambedkargpt/internal/config"
	"ambedkargpt/internal/domain"
	"ambedkargpt/internal/logging"
	"ambedkargpt/internal/service"
)

const maxBodyBytes = 64 << 10

// Pipeline is the subset of service.Pipeline served over HTTP.
type Pipeline interface {
	Initialize(ctx context.Context) (service.InitResult, error)
	Reinitialize(ctx context.Context) (service.InitResult, error)
	Status() service.Status
	Ask(ctx context.Context, question string) (*domain.Answer, error)
}

type askRequest struct {
	Question string `json:"question"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// Server serves POST /init, GET /status, POST /ask and a banner on GET /.
// POST /init?force=true rebuilds the index even when it is ready.
type Server struct {
	pipeline Pipeline
	cfg      config.ServerConfig
	log      *slog.Logger
}

func New(p Pipeline, cfg config.ServerConfig, log *slog.Logger) *Server {
	if log == nil {
		log = logging.Discard()
	}
	return &Server{pipeline: p, cfg: cfg, log: log}
}

// Handler returns the routed handler wrapped in CORS and request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("POST /init", s.handleInit)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /ask", s.handleAsk)
	return s.cors(s.logRequests(mux))
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "AmbedkarGPT API",
		"endpoints": []string{"POST /init", "GET /status", "POST /ask"},
	})
}

func (s *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	force, err := parseForce(r.URL.Query().Get("force"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "bad_request"})
		return
	}
	// a dropped client must not abort a build other callers are waiting on
	ctx := context.WithoutCancel(r.Context())
	build := s.pipeline.Initialize
	if force {
		build = s.pipeline.Reinitialize
	}
	res, err := build(ctx)
	if err != nil {
		code, _ := classify(err)
		writeJSON(w, code, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func parseForce(v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	force, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid force value %q", v)
	}
	return force, nil
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.pipeline.Status())
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error(), Kind: "bad_request"})
		return
	}

	if s.cfg.AutoInit && s.pipeline.Status().State != service.Ready {
		if _, err := s.pipeline.Initialize(context.WithoutCancel(r.Context())); err != nil {
			s.writeError(w, err)
			return
		}
	}

	ans, err := s.pipeline.Ask(r.Context(), req.Question)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code, kind := classify(err)
	if service.IsUserError(err) {
		s.log.Info("question rejected", "kind", kind, "err", err)
	} else {
		s.log.Error("request failed", "kind", kind, "err", err)
	}
	writeJSON(w, code, errorResponse{Error: err.Error(), Kind: kind})
}

// classify maps pipeline errors to an HTTP status and a stable kind.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrEmptyQuestion):
		return http.StatusBadRequest, "empty_question"
	case errors.Is(err, domain.ErrNotInitialized):
		return http.StatusServiceUnavailable, "not_initialized"
	case errors.Is(err, domain.ErrRetrievalEmpty):
		return http.StatusNotFound, "no_relevant_passage"
	case errors.Is(err, domain.ErrGenerationTimeout):
		return http.StatusGatewayTimeout, "generation_timeout"
	case errors.Is(err, domain.ErrGenerationService):
		return http.StatusBadGateway, "generation_failed"
	case errors.Is(err, domain.ErrEmbeddingService):
		return http.StatusBadGateway, "embedding_failed"
	case errors.Is(err, domain.ErrIndexSearch):
		return http.StatusBadGateway, "index_search_failed"
	case errors.Is(err, domain.ErrCorpusNotFound):
		return http.StatusInternalServerError, "corpus_not_found"
	case errors.Is(err, domain.ErrEmptyCorpus):
		return http.StatusInternalServerError, "empty_corpus"
	case errors.Is(err, domain.ErrIndexBuild):
		return http.StatusInternalServerError, "index_build_failed"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (s *Server) cors(next http.Handler) http.Handler {
	allowAll := slices.Contains(s.cfg.CORSOrigins, "*")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case allowAll:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(s.cfg.CORSOrigins, origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("http request", "method", r.Method, "path", r.URL.Path, "status", rec.code, "duration", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
