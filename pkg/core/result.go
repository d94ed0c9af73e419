package core

import (
	"time"
)

// StepOutcome is the tagged result of running one step.
// Success carries an optional Value; every other kind carries Err.
type StepOutcome struct {
	Kind  OutcomeKind
	Value interface{}
	Err   error
}

// Succeeded builds a Success outcome.
func Succeeded(value interface{}) StepOutcome {
	return StepOutcome{Kind: OutcomeSuccess, Value: value}
}

// Skipped builds a Success-with-skip outcome; reason explains why.
func Skipped(reason error) StepOutcome {
	return StepOutcome{Kind: OutcomeSkipped, Err: reason}
}

// Failed builds the outcome matching err's category.
func Failed(err error) StepOutcome {
	return StepOutcome{Kind: CategoryOf(err).Outcome(), Err: err}
}

// IsSuccess returns true for Success and Success-with-skip.
func (o StepOutcome) IsSuccess() bool {
	return o.Kind == OutcomeSuccess || o.Kind == OutcomeSkipped
}

// StepResult captures the complete outcome of executing a single step
type StepResult struct {
	Index int    `json:"index"` // 0-based position in workflow
	Name  string `json:"name"`

	Status  StepStatus  `json:"status"`
	Outcome OutcomeKind `json:"outcome"`
	Stage   Stage       `json:"stage"` // Last stage reached

	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	Message string       `json:"message,omitempty"`
	Element *ElementInfo `json:"element,omitempty"`
	Error   string       `json:"error,omitempty"`

	Attachments []Artifact `json:"attachments,omitempty"` // Checkpoint snapshots
}

// WorkflowReport captures the complete outcome of executing one workflow
type WorkflowReport struct {
	Name    string   `json:"name"`
	Source  string   `json:"source,omitempty"`
	Tags    []string `json:"tags,omitempty"`
	Attempt int      `json:"attempt"` // 1-based

	Success   bool          `json:"success"`
	Status    StepStatus    `json:"status"`
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	Steps       []StepResult `json:"steps"`
	Failure     *StepFailure `json:"-"`
	Diagnostics []Artifact   `json:"diagnostics,omitempty"` // One per workflow-fatal failure

	// Summary (computed)
	TotalSteps   int `json:"totalSteps"`
	PassedSteps  int `json:"passedSteps"`
	FailedSteps  int `json:"failedSteps"`
	SkippedSteps int `json:"skippedSteps"`

	Error string `json:"error,omitempty"`
}

// ComputeSummary calculates step counts from the Steps slice
func (w *WorkflowReport) ComputeSummary() {
	w.TotalSteps = len(w.Steps)
	w.PassedSteps = 0
	w.FailedSteps = 0
	w.SkippedSteps = 0

	for _, step := range w.Steps {
		switch step.Status {
		case StatusPassed:
			w.PassedSteps++
		case StatusFailed:
			w.FailedSteps++
		case StatusSkipped:
			w.SkippedSteps++
		}
	}
}

// StepTimings returns per-step durations keyed by step name.
func (w *WorkflowReport) StepTimings() map[string]time.Duration {
	timings := make(map[string]time.Duration, len(w.Steps))
	for _, step := range w.Steps {
		timings[step.Name] = step.Duration
	}
	return timings
}

// RunResult captures the complete outcome of executing several workflows in one run
type RunResult struct {
	RunID     string        `json:"runId"`
	BaseURL   string        `json:"baseUrl"`
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	Workflows []WorkflowReport `json:"workflows"`

	// Error is set when the run could not start (session open or authentication failure)
	Error string `json:"error,omitempty"`

	TotalWorkflows   int `json:"totalWorkflows"`
	PassedWorkflows  int `json:"passedWorkflows"`
	FailedWorkflows  int `json:"failedWorkflows"`
	SkippedWorkflows int `json:"skippedWorkflows"` // Never started: run cancelled or stopped on failure
}

// ComputeSummary calculates workflow counts from the Workflows slice
func (r *RunResult) ComputeSummary() {
	r.TotalWorkflows = len(r.Workflows)
	r.PassedWorkflows = 0
	r.FailedWorkflows = 0
	r.SkippedWorkflows = 0
	for _, wf := range r.Workflows {
		switch {
		case wf.Success:
			r.PassedWorkflows++
		case wf.Status == StatusSkipped:
			r.SkippedWorkflows++
		default:
			r.FailedWorkflows++
		}
	}
}

// Success returns true if the run started and every workflow passed
func (r *RunResult) Success() bool {
	if r.Error != "" {
		return false
	}
	for _, wf := range r.Workflows {
		if !wf.Success {
			return false
		}
	}
	return len(r.Workflows) > 0
}
