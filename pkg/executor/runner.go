package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lmsqa/flowrunner/pkg/core"
	"github.com/lmsqa/flowrunner/pkg/flow"
	"github.com/lmsqa/flowrunner/pkg/logger"
	"github.com/lmsqa/flowrunner/pkg/report"
	"github.com/lmsqa/flowrunner/pkg/session"
)

// RunnerConfig configures a test run.
type RunnerConfig struct {
	Session  session.Config
	Executor Config

	// Login is run once per session when credentials are configured.
	Login *flow.Workflow

	OutputDir  string // Report output directory, empty disables reports
	Retries    int    // Extra attempts for a failed workflow (0 = no retries)
	StopOnFail bool   // Skip remaining workflows after the first failure
}

// Runner runs workflows sequentially in one session.
type Runner struct {
	config   RunnerConfig
	launcher session.Launcher
	exec     *Executor
}

// NewRunner creates a Runner.
func NewRunner(launcher session.Launcher, cfg RunnerConfig) *Runner {
	if cfg.Executor.RunStart.IsZero() {
		cfg.Executor.RunStart = time.Now()
	}
	return &Runner{
		config:   cfg,
		launcher: launcher,
		exec:     New(cfg.Executor, nil),
	}
}

// Executor returns the step executor used by the runner.
func (r *Runner) Executor() *Executor {
	return r.exec
}

// Run opens one session, runs every workflow in order, closes the session exactly once
// and writes reports. The error is non-nil only when the session could not be opened
// or reports could not be written; workflow failures are in the result.
func (r *Runner) Run(ctx context.Context, workflows []flow.Workflow) (*core.RunResult, error) {
	result := newRunResult(r.config)

	err := session.With(ctx, r.config.Session, r.launcher, r.authenticator(), func(s *session.Session) error {
		result.Workflows = r.runAll(ctx, s, workflows)
		return nil
	})
	if err != nil {
		result.Error = err.Error()
		logger.Error("run aborted: %v", err)
		if len(result.Workflows) == 0 {
			for _, wf := range workflows {
				result.Workflows = append(result.Workflows, skippedWorkflow(wf, "not run: "+err.Error()))
			}
		}
	}
	return r.finish(result, err)
}

func (r *Runner) authenticator() session.Authenticator {
	if r.config.Login == nil {
		return nil
	}
	return LoginAuthenticator{Executor: r.exec, Workflow: *r.config.Login}
}

func (r *Runner) runAll(ctx context.Context, s *session.Session, workflows []flow.Workflow) []core.WorkflowReport {
	reports := make([]core.WorkflowReport, 0, len(workflows))
	stopped := ""
	for _, wf := range workflows {
		if stopped == "" && ctx.Err() != nil {
			stopped = "run cancelled"
		}
		if stopped != "" {
			reports = append(reports, skippedWorkflow(wf, stopped))
			continue
		}

		rep := runWithRetries(ctx, r.exec, s, wf, r.config.Retries)
		reports = append(reports, *rep)
		if !rep.Success && r.config.StopOnFail {
			stopped = fmt.Sprintf("stopped after %q failed", rep.Name)
		}
	}
	return reports
}

// runWithRetries re-invokes a failed workflow up to retries more times.
// Steps are never retried individually.
func runWithRetries(ctx context.Context, exec *Executor, s *session.Session, wf flow.Workflow, retries int) *core.WorkflowReport {
	var rep *core.WorkflowReport
	for attempt := 1; attempt <= retries+1; attempt++ {
		rep = exec.Run(ctx, s, wf)
		rep.Attempt = attempt
		if rep.Success || ctx.Err() != nil {
			break
		}
		if attempt <= retries {
			logger.Warn("workflow %s failed (attempt %d/%d), retrying: %s", rep.Name, attempt, retries+1, rep.Error)
		}
	}
	return rep
}

func skippedWorkflow(wf flow.Workflow, reason string) core.WorkflowReport {
	rep := core.WorkflowReport{
		Name:   wf.Name(),
		Source: wf.SourcePath,
		Tags:   wf.Config.Tags,
		Status: core.StatusSkipped,
		Error:  reason,
	}
	for i, step := range wf.Steps {
		rep.Steps = append(rep.Steps, core.StepResult{
			Index:   i,
			Name:    step.Name,
			Status:  core.StatusSkipped,
			Outcome: core.OutcomeSkipped,
			Stage:   core.StagePending,
			Message: reason,
		})
	}
	rep.ComputeSummary()
	return rep
}

func newRunResult(cfg RunnerConfig) *core.RunResult {
	return &core.RunResult{
		RunID:     uuid.NewString(),
		BaseURL:   cfg.Session.BaseURL,
		StartTime: time.Now(),
	}
}

func (r *Runner) finish(result *core.RunResult, runErr error) (*core.RunResult, error) {
	return finishRun(r.config.OutputDir, result, runErr)
}

func finishRun(outputDir string, result *core.RunResult, runErr error) (*core.RunResult, error) {
	result.Duration = time.Since(result.StartTime)
	result.ComputeSummary()

	if outputDir != "" {
		if _, err := report.WriteAll(outputDir, result); err != nil {
			if runErr == nil {
				runErr = fmt.Errorf("write reports: %w", err)
			} else {
				logger.Error("write reports: %v", err)
			}
		}
	}
	return result, runErr
}
