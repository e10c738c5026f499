package gallery

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/oceanstats/mpas-diag/internal/runlog"
)

// RunStore is the read side of the run history.
type RunStore interface {
	ListRuns(ctx context.Context, limit int) ([]runlog.Run, error)
	GetRun(ctx context.Context, runID string) (*runlog.Run, error)
	Entries(ctx context.Context, runID string) ([]runlog.Entry, error)
}

// Server routes the gallery endpoints.
type Server struct {
	index *Index
	runs  RunStore // nil when the run log is disabled
}

// NewServer creates a server over index; runs may be nil.
func NewServer(index *Index, runs RunStore) *Server {
	return &Server{index: index, runs: runs}
}

// RunDetail is a run with its diagnostic entries.
type RunDetail struct {
	runlog.Run
	Diagnostics []runlog.Entry `json:"diagnostics"`
}

// Handler returns the HTTP handler:
//
//	GET /health
//	GET /api/plots[?diagnostic=ohc]
//	GET /api/runs[?limit=N]
//	GET /api/runs/{id}
//	GET /plots/{name}
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/plots", s.listPlots)
		r.Get("/runs", s.listRuns)
		r.Get("/runs/{id}", s.getRun)
	})

	files := http.StripPrefix("/plots/", http.FileServer(http.Dir(s.index.Dir())))
	r.Get("/plots/*", func(w http.ResponseWriter, req *http.Request) {
		if _, ok := s.index.Get(chi.URLParam(req, "*")); !ok {
			writeError(w, http.StatusNotFound, "plot not found")
			return
		}
		files.ServeHTTP(w, req)
	})
	return r
}

func (s *Server) listPlots(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.index.List(r.URL.Query().Get("diagnostic")))
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run log disabled")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		zap.L().Error("gallery: list runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list runs failed")
		return
	}
	if runs == nil {
		runs = []runlog.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run log disabled")
		return
	}
	id := chi.URLParam(r, "id")
	run, err := s.runs.GetRun(r.Context(), id)
	if errors.Is(err, runlog.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		zap.L().Error("gallery: get run", zap.String("run_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "get run failed")
		return
	}
	entries, err := s.runs.Entries(r.Context(), id)
	if err != nil {
		zap.L().Error("gallery: run entries", zap.String("run_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "get run failed")
		return
	}
	if entries == nil {
		entries = []runlog.Entry{}
	}
	writeJSON(w, http.StatusOK, RunDetail{Run: *run, Diagnostics: entries})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("component", "gallery"),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("gallery: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
