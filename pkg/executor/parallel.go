package executor

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/lmsqa/flowrunner/pkg/core"
	"github.com/lmsqa/flowrunner/pkg/flow"
	"github.com/lmsqa/flowrunner/pkg/logger"
	"github.com/lmsqa/flowrunner/pkg/session"
)

// workItem represents a workflow and its index in the original list.
type workItem struct {
	workflow flow.Workflow
	index    int
}

// ParallelRunner runs workflows across shards. Each shard owns an independent
// session; shards pull from a shared queue and share nothing else.
type ParallelRunner struct {
	config   RunnerConfig
	launcher session.Launcher
	shards   int
	exec     *Executor
}

// NewParallelRunner creates a parallel runner with the given number of shards.
func NewParallelRunner(launcher session.Launcher, shards int, cfg RunnerConfig) *ParallelRunner {
	if shards < 1 {
		shards = 1
	}
	r := NewRunner(launcher, cfg)
	return &ParallelRunner{
		config:   r.config,
		launcher: launcher,
		shards:   shards,
		exec:     r.exec,
	}
}

// Run executes workflows using a work queue. All shards pull from the same queue
// until it is empty. A shard whose session cannot be opened takes no work.
func (pr *ParallelRunner) Run(ctx context.Context, workflows []flow.Workflow) (*core.RunResult, error) {
	result := newRunResult(pr.config)

	queue := make(chan workItem, len(workflows))
	for i, wf := range workflows {
		queue <- workItem{workflow: wf, index: i}
	}
	close(queue)

	reports := make([]*core.WorkflowReport, len(workflows))
	var mu sync.Mutex
	var openErrs []error

	var g errgroup.Group
	for shard := 1; shard <= pr.shards; shard++ {
		g.Go(func() error {
			var auth session.Authenticator
			if pr.config.Login != nil {
				auth = LoginAuthenticator{Executor: pr.exec, Workflow: *pr.config.Login}
			}
			err := session.With(ctx, pr.config.Session, pr.launcher, auth, func(s *session.Session) error {
				for item := range queue {
					if ctx.Err() != nil {
						rep := skippedWorkflow(item.workflow, "run cancelled")
						reports[item.index] = &rep
						continue
					}
					logger.Debug("shard %d: running %s", shard, item.workflow.Name())
					reports[item.index] = runWithRetries(ctx, pr.exec, s, item.workflow, pr.config.Retries)
				}
				return nil
			})
			if err != nil {
				logger.Error("shard %d: %v", shard, err)
				mu.Lock()
				openErrs = append(openErrs, fmt.Errorf("shard %d: %w", shard, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	var runErr error
	if len(openErrs) == pr.shards {
		runErr = openErrs[0]
		result.Error = runErr.Error()
	}

	for i, rep := range reports {
		if rep == nil {
			reason := "not run: no shard available"
			if runErr != nil {
				reason = "not run: " + runErr.Error()
			}
			skipped := skippedWorkflow(workflows[i], reason)
			rep = &skipped
		}
		result.Workflows = append(result.Workflows, *rep)
	}
	return finishRun(pr.config.OutputDir, result, runErr)
}
