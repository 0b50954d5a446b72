// Package server exposes the registry over HTTP and drives refresh cycles.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/fda-watch/internal/config"
	"github.com/sells-group/fda-watch/internal/enrich"
	"github.com/sells-group/fda-watch/internal/model"
	"github.com/sells-group/fda-watch/internal/pipeline"
	"github.com/sells-group/fda-watch/internal/registry"
	"github.com/sells-group/fda-watch/internal/resilience"
)

// Cycler runs ingestion cycles. *pipeline.Pipeline satisfies it.
type Cycler interface {
	RunCycle(ctx context.Context) (*model.CycleResult, error)
	Running() bool
	LastResult() *model.CycleResult
}

// ContactEnricher enriches a single company. *enrich.Enricher satisfies it.
type ContactEnricher interface {
	Enrich(ctx context.Context, name string) (*enrich.Result, error)
	Breakers() *resilience.Breakers
}

// Server serves the read API and schedules cycles.
type Server struct {
	ctx      context.Context // parent of background cycles
	cycler   Cycler
	registry *registry.Registry
	enricher ContactEnricher
	origins  []string

	wg sync.WaitGroup
}

// New creates a Server. enricher may be nil. Background cycles started by
// POST /refresh run under ctx.
func New(ctx context.Context, cycler Cycler, reg *registry.Registry, enricher ContactEnricher, cfg config.ServerConfig) *Server {
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Server{
		ctx:      ctx,
		cycler:   cycler,
		registry: reg,
		enricher: enricher,
		origins:  origins,
	}
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/patterns", s.handlePatterns)
	r.Post("/refresh", s.handleRefresh)
	r.Route("/companies", func(r chi.Router) {
		r.Get("/", s.handleCompanies)
		r.Get("/{name}", s.handleCompany)
		r.Post("/{name}/enrich", s.handleEnrich)
	})
	return r
}

// Wait blocks until background cycles started by the server finish.
func (s *Server) Wait() { s.wg.Wait() }

// RunTicker runs a cycle immediately and then every interval until ctx is
// done. A non-positive interval runs the first cycle only.
func (s *Server) RunTicker(ctx context.Context, interval time.Duration) {
	s.runCycle(ctx, "startup")
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.runCycle(ctx, "ticker")
		}
	}
}

func (s *Server) runCycle(ctx context.Context, trigger string) {
	res, err := s.cycler.RunCycle(ctx)
	switch {
	case errors.Is(err, pipeline.ErrCycleInProgress):
		zap.L().Info("server: cycle skipped, one is running", zap.String("trigger", trigger))
	case err != nil:
		zap.L().Error("server: cycle failed", zap.String("trigger", trigger), zap.Error(err))
	case res != nil:
		zap.L().Info("server: cycle done",
			zap.String("trigger", trigger),
			zap.Int("new_violations", res.NewViolations),
		)
	}
}

type healthResponse struct {
	Status    string             `json:"status"`
	Running   bool               `json:"running"`
	Companies int                `json:"companies"`
	LastCycle *model.CycleResult `json:"last_cycle,omitempty"`
	Breakers  map[string]string  `json:"breakers,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Running:   s.cycler.Running(),
		Companies: s.registry.Len(),
		LastCycle: s.cycler.LastResult(),
	}
	if s.enricher != nil && s.enricher.Breakers() != nil {
		resp.Breakers = s.enricher.Breakers().States()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCompanies(w http.ResponseWriter, r *http.Request) {
	companies := s.registry.Companies()
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		if n < len(companies) {
			companies = companies[:n]
		}
	}
	writeJSON(w, http.StatusOK, companies)
}

func (s *Server) handleCompany(w http.ResponseWriter, r *http.Request) {
	c, ok := s.registry.Get(chi.URLParam(r, "name"))
	if !ok {
		writeError(w, http.StatusNotFound, "company not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handlePatterns(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.DetectPatterns())
}

func (s *Server) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	if s.cycler.Running() {
		writeError(w, http.StatusConflict, "cycle already in progress")
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runCycle(s.ctx, "api")
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	if s.enricher == nil {
		writeError(w, http.StatusServiceUnavailable, "enrichment is not configured")
		return
	}
	c, ok := s.registry.Get(chi.URLParam(r, "name"))
	if !ok {
		writeError(w, http.StatusNotFound, "company not found")
		return
	}
	res, err := s.enricher.Enrich(r.Context(), c.CanonicalName)
	switch {
	case errors.Is(err, enrich.ErrNoContacts):
		writeError(w, http.StatusNotFound, "no contacts found")
		return
	case err != nil:
		zap.L().Warn("server: enrich failed", zap.String("company", c.CanonicalName), zap.Error(err))
		writeError(w, http.StatusBadGateway, "enrichment failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("server: write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("server: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
