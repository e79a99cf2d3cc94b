package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/copyleftdev/mnfit/internal/config"
	apierrors "github.com/copyleftdev/mnfit/internal/errors"
	"github.com/copyleftdev/mnfit/internal/logging"
	"github.com/copyleftdev/mnfit/internal/metrics"
	"github.com/copyleftdev/mnfit/internal/models"
)

// Logger defines the logging interface used by the server
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// Server runs fit jobs asynchronously and serves them over REST and
// JSON-RPC 2.0. At most cfg.Fit.MaxJobs jobs minimize at a time; the
// others wait as pending.
type Server struct {
	cfg     *config.Config
	logger  Logger
	zap     *zap.Logger
	metrics *metrics.Metrics
	slots   *semaphore.Weighted
	wg      sync.WaitGroup

	jobs   map[string]*fitJob
	jobsMu sync.RWMutex
}

// NewServer creates a new server instance. A nil m records metrics without
// registering them.
func NewServer(cfg *config.Config, logger Logger, m *metrics.Metrics) *Server {
	if m == nil {
		m = metrics.New(nil)
	}
	return &Server{
		cfg:     cfg,
		logger:  logger,
		zap:     logging.NewZapLogger(logger.WithFields(map[string]interface{}{"component": "minimizer"})),
		metrics: m,
		slots:   semaphore.NewWeighted(cfg.Fit.MaxJobs),
		jobs:    make(map[string]*fitJob),
	}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/models", s.handleModels)
		r.Post("/fits", s.handleStartFit)
		r.Get("/fits", s.handleListFits)
		r.Get("/fits/{id}", s.handleGetFit)
		r.Delete("/fits/{id}", s.handleCancelFit)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

// startFit validates req and schedules the job.
func (s *Server) startFit(req *FitRequest) (FitView, error) {
	p, err := plan(req, s.cfg.Fit)
	if err != nil {
		return FitView{}, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Fit.JobTimeout)
	job := &fitJob{
		id:        uuid.NewString(),
		status:    StatusPending,
		plan:      p,
		createdAt: time.Now().UTC(),
		cancel:    cancel,
	}

	s.jobsMu.Lock()
	s.jobs[job.id] = job
	view := job.view()
	s.jobsMu.Unlock()

	s.metrics.Started(p.kind.String())
	s.wg.Add(1)
	go s.run(ctx, job)
	return view, nil
}

func (s *Server) fitStatus(id string) (FitView, error) {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return FitView{}, apierrors.Errorf(apierrors.CodeNotFound, "fit %q not found", id)
	}
	return job.view(), nil
}

// cancelFit requests cancellation. The job ends as cancelled once the
// minimizer notices.
func (s *Server) cancelFit(id string) (FitView, error) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return FitView{}, apierrors.Errorf(apierrors.CodeNotFound, "fit %q not found", id)
	}
	if job.status.IsTerminal() {
		return FitView{}, apierrors.Errorf(apierrors.CodeConflict, "cannot cancel fit with status %s", job.status)
	}
	job.cancelled = true
	job.cancel()

	s.logger.Info("Fit cancellation requested", map[string]interface{}{"fit_id": id})
	return job.view(), nil
}

func (s *Server) listFits() []FitView {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()

	views := make([]FitView, 0, len(s.jobs))
	for _, job := range s.jobs {
		views = append(views, job.view())
	}
	sort.Slice(views, func(i, j int) bool { return views[i].CreatedAt.Before(views[j].CreatedAt) })
	return views
}

// Close cancels all jobs and waits for them to end.
func (s *Server) Close() error {
	s.jobsMu.Lock()
	for _, job := range s.jobs {
		if !job.status.IsTerminal() {
			job.cancelled = true
			job.cancel()
		}
	}
	s.jobsMu.Unlock()

	s.wg.Wait()
	return s.zap.Sync()
}

func (s *Server) modelList() map[string]interface{} {
	return map[string]interface{}{"models": models.Catalogue()}
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.modelList())
}

func (s *Server) handleStartFit(w http.ResponseWriter, r *http.Request) {
	var req FitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.WriteJSON(w, apierrors.Errorf(apierrors.CodeInvalidRequest, "invalid request body: %v", err))
		return
	}

	view, err := s.startFit(&req)
	if err != nil {
		apierrors.WriteJSON(w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/fits/"+view.ID)
	writeJSON(w, http.StatusAccepted, view)
}

func (s *Server) handleListFits(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"fits": s.listFits()})
}

func (s *Server) handleGetFit(w http.ResponseWriter, r *http.Request) {
	view, err := s.fitStatus(chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleCancelFit(w http.ResponseWriter, r *http.Request) {
	view, err := s.cancelFit(chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, view)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
