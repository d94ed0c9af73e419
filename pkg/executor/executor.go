// Package executor runs workflows step by step against a session and assembles reports.
package executor

import (
	"context"
	"time"

	"github.com/lmsqa/flowrunner/pkg/core"
	"github.com/lmsqa/flowrunner/pkg/diag"
	"github.com/lmsqa/flowrunner/pkg/flow"
	"github.com/lmsqa/flowrunner/pkg/locator"
	"github.com/lmsqa/flowrunner/pkg/session"
	"github.com/lmsqa/flowrunner/pkg/wait"
)

// Config configures step execution.
type Config struct {
	// Timeout is the default wait timeout of a step. Steps may override it.
	Timeout      time.Duration
	PollInterval time.Duration
	// ProbeTimeout bounds each locator strategy's existence check.
	ProbeTimeout time.Duration
	// SlowMo pauses after every action so a run can be watched.
	SlowMo time.Duration

	Artifacts core.ArtifactConfig
	// Env overrides workflow env (CLI -e KEY=VALUE).
	Env map[string]string
	// RunStart feeds RUN_HMS and RUN_DATE. Zero means the workflow start time.
	RunStart time.Time

	// Live progress callbacks
	OnWorkflowStart func(name string)
	OnStepComplete  func(workflow string, result core.StepResult)
	OnWorkflowEnd   func(report *core.WorkflowReport)
}

// DefaultConfig returns the execution defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:      wait.DefaultTimeout,
		PollInterval: wait.DefaultInterval,
		ProbeTimeout: locator.DefaultProbeTimeout,
		Artifacts:    core.DefaultArtifactConfig(),
	}
}

// Executor runs workflows. It holds no per-workflow state and may be shared by shards.
type Executor struct {
	cfg      Config
	resolver *locator.Resolver
	recorder *diag.Recorder
}

// New creates an executor writing diagnostics through recorder.
// A nil recorder writes to cfg.Artifacts.Dir.
func New(cfg Config, recorder *diag.Recorder) *Executor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = wait.DefaultTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = wait.DefaultInterval
	}
	if recorder == nil {
		recorder = diag.NewRecorder(cfg.Artifacts.Dir)
	}
	return &Executor{
		cfg:      cfg,
		resolver: &locator.Resolver{ProbeTimeout: cfg.ProbeTimeout, ProbeInterval: cfg.PollInterval},
		recorder: recorder,
	}
}

// Config returns the executor configuration.
func (e *Executor) Config() Config {
	return e.cfg
}

// Recorder returns the diagnostics recorder.
func (e *Executor) Recorder() *diag.Recorder {
	return e.recorder
}

// Run executes wf against s and returns its report. It never panics on step errors:
// the first workflow-fatal failure is captured once, described by report.Failure, and
// the remaining steps are reported as skipped.
func (e *Executor) Run(ctx context.Context, s *session.Session, wf flow.Workflow) *core.WorkflowReport {
	run := &workflowRun{
		exec:     e,
		ctx:      ctx,
		session:  s,
		wf:       wf,
		elements: make(map[string]core.Element),
		ran:      make(map[string]bool),
	}
	return run.execute()
}
