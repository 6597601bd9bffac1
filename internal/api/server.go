// Package api exposes run history, duration estimates and the latest bundle
// over a read-only HTTP interface.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/jasonstaker/rfp-scraper-sub000/internal/cache"
	"github.com/jasonstaker/rfp-scraper-sub000/internal/config"
	"github.com/jasonstaker/rfp-scraper-sub000/internal/estimate"
	"github.com/jasonstaker/rfp-scraper-sub000/internal/model"
	"github.com/jasonstaker/rfp-scraper-sub000/internal/store"
)

// Server holds the read-only views the API serves.
type Server struct {
	store   store.Store
	stats   *estimate.Store
	targets []model.Target
	cache   *cache.Manager
	format  string
	origins []string
	log     *zap.Logger
}

// Options configures a Server. Store may be nil when run history is off.
type Options struct {
	Store          store.Store
	Stats          *estimate.Store
	Targets        []model.Target
	Cache          *cache.Manager
	Format         string
	AllowedOrigins []string
}

// New creates a Server.
func New(opts Options, log *zap.Logger) *Server {
	if log == nil {
		log = zap.L()
	}
	if opts.Format == "" {
		opts.Format = "xlsx"
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &Server{
		store:   opts.Store,
		stats:   opts.Stats,
		targets: opts.Targets,
		cache:   opts.Cache,
		format:  opts.Format,
		origins: opts.AllowedOrigins,
		log:     log.With(zap.String("component", "api")),
	}
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/runs", s.handleListRuns)
	r.Get("/runs/{id}", s.handleGetRun)
	r.Get("/estimate", s.handleEstimate)
	r.Get("/bundles/latest", s.handleLatestBundle)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /runs?status=&limit=&offset=
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "run history is disabled")
		return
	}
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	offset, err := intParam(q.Get("offset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	runs, err := s.store.ListRuns(r.Context(), store.RunFilter{
		Status: model.RunStatus(q.Get("status")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.log.Error("list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// GET /runs/{id}
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "run history is disabled")
		return
	}
	id := chi.URLParam(r, "id")
	run, err := s.store.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.log.Error("get run failed", zap.String("run_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// EstimateResponse is the body of GET /estimate.
type EstimateResponse struct {
	Targets []string `json:"targets"`
	Unknown []string `json:"unknown,omitempty"`
	Minutes int      `json:"minutes"`
	Seconds int      `json:"seconds"`
}

// GET /estimate?targets=a,b (default all)
func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	keys := []string{config.AllTargets}
	if raw := r.URL.Query().Get("targets"); raw != "" {
		keys = strings.Split(raw, ",")
	}
	selected, unknown := config.SelectTargets(s.targets, keys)

	stats, err := s.stats.Load()
	if err != nil {
		s.log.Error("load duration history failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load duration history")
		return
	}
	resp := EstimateResponse{Targets: make([]string, len(selected)), Unknown: unknown}
	for i, t := range selected {
		resp.Targets[i] = t.Key
	}
	resp.Minutes, resp.Seconds = estimate.Estimate(stats, selected)
	writeJSON(w, http.StatusOK, resp)
}

// GET /bundles/latest?format=xlsx|json
func (s *Server) handleLatestBundle(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = s.format
	}
	var contentType string
	switch format {
	case "xlsx":
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "json":
		contentType = "application/json"
	default:
		writeError(w, http.StatusBadRequest, "format must be xlsx or json")
		return
	}

	path := s.cache.Latest(format)
	if _, err := os.Stat(path); err != nil {
		writeError(w, http.StatusNotFound, "no bundle written yet")
		return
	}
	w.Header().Set("Content-Type", contentType)
	http.ServeFile(w, r, path)
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New("invalid")
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
