package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"time"

	"github.com/copyleftdev/mnfit/internal/optimization"
	"github.com/copyleftdev/mnfit/internal/optimization/minimizer"
)

// Status is the lifecycle state of a fit job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether the job has ended.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// fitJob is guarded by Server.jobsMu.
type fitJob struct {
	id         string
	status     Status
	plan       *fitPlan
	createdAt  time.Time
	startedAt  *time.Time
	finishedAt *time.Time
	result     *optimization.Result
	err        error
	cancel     context.CancelFunc
	cancelled  bool
}

// FitView is the JSON representation of a job.
type FitView struct {
	ID         string      `json:"id"`
	Status     Status      `json:"status"`
	Minimizer  string      `json:"minimizer"`
	CreatedAt  time.Time   `json:"created_at"`
	StartedAt  *time.Time  `json:"started_at,omitempty"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
	Error      string      `json:"error,omitempty"`
	Result     *ResultView `json:"result,omitempty"`
}

// ResultView is the JSON representation of a result. CostValue is null
// when the cost is not finite.
type ResultView struct {
	IsValid              bool                       `json:"is_valid"`
	ExitCondition        optimization.ExitCondition `json:"exit_condition"`
	CostValue            *float64                   `json:"cost_value"`
	FunctionCalls        int                        `json:"function_calls"`
	Parameters           []string                   `json:"parameters"`
	Variables            []string                   `json:"variables"`
	ParameterValues      []float64                  `json:"parameter_values"`
	ParameterErrors      []float64                  `json:"parameter_errors,omitempty"`
	Covariance           [][]float64                `json:"covariance,omitempty"`
	IssueParameterValues []float64                  `json:"issue_parameter_values,omitempty"`
}

func (j *fitJob) view() FitView {
	v := FitView{
		ID:         j.id,
		Status:     j.status,
		Minimizer:  j.plan.kind.String(),
		CreatedAt:  j.createdAt,
		StartedAt:  j.startedAt,
		FinishedAt: j.finishedAt,
	}
	if j.err != nil {
		v.Error = j.err.Error()
	}
	if j.result != nil {
		v.Result = resultView(j.result)
	}
	return v
}

func resultView(r *optimization.Result) *ResultView {
	v := &ResultView{
		IsValid:              r.IsValid,
		ExitCondition:        r.ExitCondition,
		FunctionCalls:        r.NumberOfFunctionCalls,
		Parameters:           r.Parameters,
		Variables:            r.Variables,
		ParameterValues:      r.ParameterValues,
		Covariance:           r.CovarianceRows(),
		IssueParameterValues: r.IssueParameterValues,
	}
	if !math.IsNaN(r.CostValue) && !math.IsInf(r.CostValue, 0) {
		c := r.CostValue
		v.CostValue = &c
	}
	if r.ParameterCovarianceMatrix != nil {
		v.ParameterErrors = make([]float64, len(r.Parameters))
		for i := range v.ParameterErrors {
			v.ParameterErrors[i] = math.Sqrt(r.ParameterCovarianceMatrix.At(i, i))
		}
	}
	return v
}

// fit minimizes and then optionally recalibrates error definitions and
// refines the covariance. A panic of the cost function fails the job.
func (s *Server) fit(ctx context.Context, p *fitPlan) (result *optimization.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("cost function panicked: %v", r)
		}
	}()

	m, err := minimizer.New(p.kind, minimizer.WithLogger(s.zap))
	if err != nil {
		return nil, err
	}
	result, err = m.Minimize(ctx, p.cost, p.configs, &p.cfg)
	if err != nil || result.IsPremature() {
		return result, err
	}

	switch {
	case p.autoScale && result.IsValid:
		calibrated := p.cost.WithErrorDefinitionRecalculatedBasedOnValid(result)
		return minimizer.Hesse(ctx, result, calibrated, &p.cfg, minimizer.WithLogger(s.zap))
	case p.hesse:
		return minimizer.Hesse(ctx, result, p.cost, &p.cfg, minimizer.WithLogger(s.zap))
	}
	return result, nil
}

// run executes a job once a slot is free.
func (s *Server) run(ctx context.Context, job *fitJob) {
	defer s.wg.Done()
	defer job.cancel()

	kind := job.plan.kind.String()
	if err := s.slots.Acquire(ctx, 1); err != nil {
		s.finish(job, nil, err, time.Time{})
		return
	}
	defer s.slots.Release(1)

	started := time.Now()
	s.jobsMu.Lock()
	job.status = StatusRunning
	job.startedAt = &started
	s.jobsMu.Unlock()
	s.logger.Debug("Fit started", map[string]interface{}{"fit_id": job.id, "minimizer": kind})

	done := s.metrics.Running()
	result, err := s.fit(ctx, job.plan)
	done()

	s.finish(job, result, err, started)
}

func (s *Server) finish(job *fitJob, result *optimization.Result, err error, started time.Time) {
	now := time.Now()

	s.jobsMu.Lock()
	job.result = result
	job.finishedAt = &now
	switch {
	case job.cancelled:
		job.status = StatusCancelled
	case err != nil:
		job.status = StatusFailed
		job.err = err
	case result.ExitCondition == optimization.ManuallyStopped:
		// the job context ended without a cancel request
		job.status = StatusFailed
		job.err = stderrors.New("fit timed out")
	default:
		job.status = StatusCompleted
	}
	status := job.status
	fields := map[string]interface{}{"fit_id": job.id, "status": status}
	if job.err != nil {
		fields["error"] = job.err.Error()
	}
	s.jobsMu.Unlock()

	exit := ""
	calls := 0
	if result != nil {
		exit = result.ExitCondition.String()
		calls = result.NumberOfFunctionCalls
		fields["exit_condition"] = exit
		fields["valid"] = result.IsValid
		fields["function_calls"] = calls
	}
	var took time.Duration
	if !started.IsZero() {
		took = now.Sub(started)
	}
	s.metrics.Finished(job.plan.kind.String(), string(status), exit, calls, took)

	switch {
	case status == StatusFailed:
		s.logger.Warn("Fit failed", fields)
	case result != nil && !result.IsValid:
		s.logger.Warn("Fit finished without a valid minimum", fields)
	default:
		s.logger.Info("Fit finished", fields)
	}
}
