// Package server exposes sweeps and critical temperature estimation over
// HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/san-kum/ising/internal/analysis"
	"github.com/san-kum/ising/internal/config"
	"github.com/san-kum/ising/internal/dynamo"
	"github.com/san-kum/ising/internal/errs"
	"github.com/san-kum/ising/internal/logging"
	"github.com/san-kum/ising/internal/metrics"
	"github.com/san-kum/ising/internal/storage"
)

// Server runs sweeps on behalf of HTTP clients. At most
// cfg.Server.Concurrency sweeps execute at once; extra requests are refused
// with 429.
type Server struct {
	cfg   *config.Config
	log   *zap.Logger
	reg   *prometheus.Registry
	rec   *metrics.Recorder
	store *storage.Store
	slots *semaphore.Weighted
}

// New builds a server. store may be nil, in which case sweeps are never
// persisted and the run endpoints report 404.
func New(cfg *config.Config, log *zap.Logger, store *storage.Store) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec, err := metrics.NewRecorder(reg)
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:   cfg,
		log:   log,
		reg:   reg,
		rec:   rec,
		store: store,
		slots: semaphore.NewWeighted(int64(max(1, cfg.Server.Concurrency))),
	}, nil
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware(s.log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/sweep", s.handleSweep)
		r.Post("/critical", s.handleCritical)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
	})
	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.Routes(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("server listening", zap.String("addr", srv.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.log.Info("server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// SweepRequest overrides the configured sweep. Omitted fields keep their
// configured values.
type SweepRequest struct {
	Rows           int     `json:"rows"`
	Cols           int     `json:"cols"`
	Steps          int     `json:"steps"`
	Workers        int     `json:"workers"`
	Simulations    int     `json:"simulations"`
	MinTemperature float64 `json:"min_temperature"`
	MaxTemperature float64 `json:"max_temperature"`
	Init           string  `json:"init"`
	Seed           int64   `json:"seed"`
	Save           bool    `json:"save"`
}

type SweepResponse struct {
	Series         dynamo.Series      `json:"series"`
	Estimate       *analysis.Estimate `json:"estimate,omitempty"`
	EstimateError  string             `json:"estimate_error,omitempty"`
	RunID          string             `json:"run_id,omitempty"`
	ElapsedSeconds float64            `json:"elapsed_seconds"`
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	req := SweepRequest{
		Rows:           s.cfg.Lattice.Rows,
		Cols:           s.cfg.Lattice.Cols,
		Steps:          s.cfg.Sweep.Steps,
		Workers:        s.cfg.Sweep.Workers,
		Simulations:    s.cfg.Sweep.Simulations,
		MinTemperature: s.cfg.Sweep.MinTemperature,
		MaxTemperature: s.cfg.Sweep.MaxTemperature,
		Init:           s.cfg.Sweep.Init,
		Seed:           s.cfg.Seed,
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	cfg := *s.cfg
	cfg.Lattice.Rows, cfg.Lattice.Cols = req.Rows, req.Cols
	cfg.Sweep.Steps = req.Steps
	cfg.Sweep.Workers = req.Workers
	cfg.Sweep.Simulations = req.Simulations
	cfg.Sweep.MinTemperature, cfg.Sweep.MaxTemperature = req.MinTemperature, req.MaxTemperature
	cfg.Sweep.Init = req.Init
	cfg.Seed = req.Seed
	if err := cfg.Validate(); err != nil {
		writeFailure(w, err)
		return
	}
	if err := checkLimits(s.cfg.Server, req); err != nil {
		writeFailure(w, err)
		return
	}

	if !s.slots.TryAcquire(1) {
		writeError(w, http.StatusTooManyRequests, errors.New("sweep capacity exhausted"))
		return
	}
	defer s.slots.Release(1)

	temps, err := cfg.Temperatures()
	if err != nil {
		writeFailure(w, err)
		return
	}
	base, err := cfg.SweepBase()
	if err != nil {
		writeFailure(w, err)
		return
	}

	start := time.Now()
	sweep := dynamo.NewSweep(base, cfg.Sweep.Workers,
		dynamo.WithObserver(s.rec),
		dynamo.WithSweepLogger(s.log),
	)
	series, err := sweep.Run(r.Context(), temps)
	if err != nil {
		writeFailure(w, err)
		return
	}

	resp := SweepResponse{Series: series, ElapsedSeconds: time.Since(start).Seconds()}
	if est, err := cfg.NewEstimator().Estimate(series); err != nil {
		resp.EstimateError = err.Error()
	} else {
		resp.Estimate = est
	}

	if req.Save && s.store != nil {
		meta := storage.RunMetadata{
			Rows:           cfg.Lattice.Rows,
			Cols:           cfg.Lattice.Cols,
			Steps:          cfg.Sweep.Steps,
			Workers:        cfg.Sweep.Workers,
			Seed:           cfg.Seed,
			Coupling:       cfg.Lattice.Coupling,
			Boltzmann:      cfg.Lattice.Boltzmann,
			Init:           cfg.Sweep.Init,
			ElapsedSeconds: resp.ElapsedSeconds,
		}
		if resp.Estimate != nil {
			tc := resp.Estimate.CriticalTemperature
			meta.CriticalTemperature = &tc
		}
		id, err := s.store.Save(meta, series)
		if err != nil {
			writeFailure(w, err)
			return
		}
		resp.RunID = id
	}

	writeJSON(w, http.StatusOK, resp)
}

// CriticalRequest carries a series to analyze. Zero window or order selects
// the configured smoothing.
type CriticalRequest struct {
	Series dynamo.Series `json:"series"`
	Window int           `json:"window"`
	Order  int           `json:"order"`
}

func (s *Server) handleCritical(w http.ResponseWriter, r *http.Request) {
	var req CriticalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	est := s.cfg.NewEstimator()
	if req.Window > 0 {
		est.Window = req.Window
	}
	if req.Order > 0 {
		est.Order = req.Order
	}

	result, err := est.Estimate(req.Series)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, errors.New("storage disabled"))
		return
	}
	runs, err := s.store.List()
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

type runResponse struct {
	Metadata *storage.RunMetadata `json:"metadata"`
	Series   dynamo.Series        `json:"series"`
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, errors.New("storage disabled"))
		return
	}
	id := chi.URLParam(r, "id")
	meta, err := s.store.Load(id)
	if errors.Is(err, errs.ErrInvalidParameter) {
		writeFailure(w, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("run %q not found", id))
		return
	}
	series, err := s.store.LoadSeries(id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runResponse{Metadata: meta, Series: series})
}

// statusFor maps error kinds to HTTP status codes.
// checkLimits expects a validated request, so rows, cols and simulations
// are positive. Products are compared by division to avoid overflow.
func checkLimits(lim config.ServerConfig, req SweepRequest) error {
	bad := func(format string, args ...any) error {
		return errs.E("server", "Sweep", errs.ErrInvalidParameter, format, args...)
	}
	if n := lim.MaxSimulations; n > 0 && req.Simulations > n {
		return bad("%d simulations exceeds limit %d", req.Simulations, n)
	}
	if n := lim.MaxSites; n > 0 && req.Rows > n/req.Cols {
		return bad("%dx%d lattice exceeds limit of %d sites", req.Rows, req.Cols, n)
	}
	if n := lim.MaxSteps; n > 0 && req.Steps > n/req.Simulations {
		return bad("%d steps for %d simulations exceeds limit of %d", req.Steps, req.Simulations, n)
	}
	return nil
}

func statusFor(err error) int {
	var wf *dynamo.WorkerFailure
	switch {
	case errors.Is(err, dynamo.ErrCanceled):
		return http.StatusServiceUnavailable
	case errors.As(err, &wf):
		return http.StatusInternalServerError
	case errors.Is(err, errs.ErrInvalidParameter):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrInsufficientData):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeFailure(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err)
}

func writeError(w http.ResponseWriter, status int, err error) {
	body := map[string]any{"error": err.Error()}
	var wf *dynamo.WorkerFailure
	if errors.As(err, &wf) {
		body["temperature"] = wf.Temperature
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
