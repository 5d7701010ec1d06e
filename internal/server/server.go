package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kubilitics/maintenance-agent/internal/db"
	"github.com/kubilitics/maintenance-agent/internal/metrics"
	"github.com/kubilitics/maintenance-agent/internal/reasoning/engine"
	"github.com/kubilitics/maintenance-agent/internal/reasoning/extract"
	"github.com/kubilitics/maintenance-agent/internal/reasoning/run"
)

// Config for the HTTP API.
type Config struct {
	Address string
}

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server exposes pipeline runs, health and metrics over HTTP
type Server struct {
	config  Config
	engine  engine.Engine
	tracker run.Tracker
	pinger  Pinger
	logger  *zap.Logger
	router  chi.Router

	// HTTP server
	httpServer *http.Server
	wg         sync.WaitGroup

	// State
	mu      sync.Mutex
	running bool
}

type apiErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type apiError struct {
	Error apiErrorBody `json:"error"`
}

// New creates the server and its routes. pinger may be nil.
func New(cfg Config, eng engine.Engine, tracker run.Tracker, pinger Pinger, logger *zap.Logger) (*Server, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if tracker == nil {
		return nil, fmt.Errorf("run tracker cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		config:  cfg,
		engine:  eng,
		tracker: tracker,
		pinger:  pinger,
		logger:  logger.Named("server"),
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(s.instrument)

	router.Get("/healthz", s.handleHealth)
	router.Handle("/metrics", promhttp.Handler())
	router.Route("/v1", func(r chi.Router) {
		r.Post("/work-orders/{id}/schedule", s.handleSchedule)
		r.Post("/work-orders/{id}/parts-order", s.handlePartsOrder)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
	})
	s.router = router

	return s, nil
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts listening in the background
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("server is already running")
	}

	s.httpServer = &http.Server{
		Addr:              s.config.Address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		// Reasoning calls can take minutes.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
	s.running = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("HTTP server listening", zap.String("address", s.config.Address))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("server is not running")
	}
	s.running = false
	srv := s.httpServer
	s.mu.Unlock()

	err := srv.Shutdown(ctx)
	s.wg.Wait()
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.ScheduleMaintenance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handlePartsOrder(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.OrderParts(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeRunError(w, err)
		return
	}
	status := http.StatusCreated
	if res.PartsReady() {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, apiError{Error: apiErrorBody{Code: "bad_request", Message: "limit must be a positive integer"}})
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": s.tracker.List(r.Context(), limit)})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	rn, err := s.tracker.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, apiError{Error: apiErrorBody{Code: "not_found", Message: err.Error()}})
		return
	}
	writeJSON(w, http.StatusOK, rn)
}

// writeRunError maps a pipeline failure onto the error envelope.
func (s *Server) writeRunError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	body := apiErrorBody{Code: code, Message: err.Error()}

	var runErr *engine.RunError
	if errors.As(err, &runErr) {
		body.Details = map[string]any{
			"runId":    runErr.RunID,
			"workflow": runErr.Workflow,
			"stage":    runErr.Stage,
		}
		if runErr.Response != "" {
			body.Details["response"] = runErr.Response
		}
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("run failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, apiError{Error: body})
}

func classify(err error) (int, string) {
	var runErr *engine.RunError
	if !errors.As(err, &runErr) {
		return http.StatusInternalServerError, "internal_error"
	}
	switch {
	case errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case extract.Kind(err) != "":
		return http.StatusUnprocessableEntity, "unusable_response"
	case runErr.Stage == run.StageInvoked:
		return http.StatusBadGateway, "reasoning_failed"
	case runErr.Stage == run.StageGathering && runErr.RunID == "":
		return http.StatusBadRequest, "bad_request"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// instrument counts requests by route pattern and status code.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
