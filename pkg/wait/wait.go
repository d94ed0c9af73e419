// Package wait blocks a workflow until a browser condition holds or a timeout elapses.
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/lmsqa/flowrunner/pkg/core"
)

// Defaults used when callers pass zero durations.
const (
	DefaultTimeout  = 10 * time.Second
	DefaultInterval = 250 * time.Millisecond
)

// Outcome is the result of a wait.
type Outcome int

const (
	Satisfied Outcome = iota
	TimedOut
)

// String returns the string representation of Outcome
func (o Outcome) String() string {
	if o == Satisfied {
		return "satisfied"
	}
	return "timed_out"
}

// Condition is a predicate over browser state.
// Check returns (true, nil) when satisfied. An error means "not yet" and is kept as
// the last observed reason in case the wait times out.
type Condition interface {
	Check(ctx context.Context, b core.Browser) (bool, error)
	Describe() string
}

// Func adapts a function to Condition.
type Func struct {
	Name string
	Fn   func(ctx context.Context, b core.Browser) (bool, error)
}

// Check calls Fn.
func (f Func) Check(ctx context.Context, b core.Browser) (bool, error) { return f.Fn(ctx, b) }

// Describe returns Name.
func (f Func) Describe() string { return f.Name }

// Result reports how a wait ended.
type Result struct {
	Outcome Outcome
	Waited  time.Duration
	Polls   int
	Last    error // Last check error, if any
}

// Err returns nil when satisfied and a TimedOut execution error otherwise.
func (r Result) Err(cond Condition) error {
	if r.Outcome == Satisfied {
		return nil
	}
	return core.TimedOut(cond.Describe(), r.Waited, r.Last)
}

var errNotYet = errors.New("condition not yet satisfied")

// Until polls cond every interval until it holds or timeout elapses.
// The condition is checked immediately, so a condition that already holds returns
// without sleeping, and once more at the deadline. TimedOut is only returned once
// timeout has fully elapsed.
// The returned error is non-nil only when ctx itself is cancelled.
func Until(ctx context.Context, b core.Browser, cond Condition, timeout, interval time.Duration) (Result, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if interval <= 0 {
		interval = DefaultInterval
	}

	start := time.Now()
	deadline := start.Add(timeout)
	waitCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	res := Result{Outcome: TimedOut}
	op := func() error {
		res.Polls++
		ok, err := cond.Check(waitCtx, b)
		if ok && err == nil {
			return nil
		}
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			res.Last = err
		}
		return errNotYet
	}

	err := backoff.Retry(op, backoff.WithContext(backoff.NewConstantBackOff(interval), waitCtx))
	res.Waited = time.Since(start)
	if err == nil {
		res.Outcome = Satisfied
		return res, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, fmt.Errorf("wait for %s: %w", cond.Describe(), ctxErr)
	}

	// The back-off stops as soon as the deadline context is done; never report early.
	if remaining := time.Until(deadline); remaining > 0 {
		time.Sleep(remaining)
	}
	// One last look at the deadline itself.
	res.Polls++
	if ok, err := cond.Check(ctx, b); ok && err == nil {
		res.Outcome = Satisfied
	} else if err != nil {
		res.Last = err
	}
	res.Waited = time.Since(start)
	return res, nil
}
