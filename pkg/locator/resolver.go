// Package locator resolves ordered fallback strategies to a single element.
package locator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/lmsqa/flowrunner/pkg/core"
	"github.com/lmsqa/flowrunner/pkg/flow"
	"github.com/lmsqa/flowrunner/pkg/logger"
)

const (
	// DefaultProbeTimeout is the existence-check window each strategy gets in a run.
	DefaultProbeTimeout = 2 * time.Second
	// DefaultProbeInterval is the polling interval inside a strategy's probe window.
	DefaultProbeInterval = 100 * time.Millisecond
)

// Resolver tries strategies in order and returns the first match.
// The zero value probes each strategy exactly once.
type Resolver struct {
	// ProbeTimeout bounds the existence check of a single strategy. Zero means one attempt.
	ProbeTimeout  time.Duration
	ProbeInterval time.Duration
}

// Attempt records one tried strategy.
type Attempt struct {
	Strategy flow.Strategy
	Err      error // Driver error, nil when the strategy simply matched nothing
}

// String describes the attempt for diagnostics.
func (a Attempt) String() string {
	if a.Err != nil {
		return fmt.Sprintf("%s (error: %v)", a.Strategy.Describe(), a.Err)
	}
	return a.Strategy.Describe()
}

// Result is either Found (Element, Strategy and Index set) or not found (Tried lists every attempt).
type Result struct {
	Found    bool
	Element  core.Element
	Strategy flow.Strategy
	Index    int // Position of Strategy in the fallback list
	Count    int // Elements matched by Strategy
	Tried    []Attempt
}

// Err returns nil for a found result and a NotFound execution error otherwise.
func (r Result) Err() error {
	if r.Found {
		return nil
	}
	tried := make([]string, len(r.Tried))
	var last error
	for i, a := range r.Tried {
		tried[i] = a.String()
		if a.Err != nil {
			last = a.Err
		}
	}
	return core.NotFound(tried, last)
}

// Info describes the found element for reports.
func (r Result) Info(ctx context.Context) *core.ElementInfo {
	if !r.Found {
		return nil
	}
	info := &core.ElementInfo{Strategy: r.Strategy.Describe(), Index: r.Index}
	if text, err := r.Element.Text(ctx); err == nil {
		info.Text = text
	}
	return info
}

// Resolve tries each strategy in order against scope (nil for the current document).
// The first strategy yielding at least one element wins and its first element, in
// document order, is returned. Failed strategies are not revisited.
func (r *Resolver) Resolve(ctx context.Context, b core.Browser, strategies []flow.Strategy, scope core.Element) Result {
	res := Result{Index: -1}
	for i, s := range strategies {
		if ctx.Err() != nil {
			res.Tried = append(res.Tried, Attempt{Strategy: s, Err: ctx.Err()})
			continue
		}
		elements, err := r.probe(ctx, b, s, scope)
		if len(elements) > 0 {
			logger.Debug("locator: %s matched %d element(s)", s.Describe(), len(elements))
			res.Found = true
			res.Element = elements[0]
			res.Strategy = s
			res.Index = i
			res.Count = len(elements)
			return res
		}
		res.Tried = append(res.Tried, Attempt{Strategy: s, Err: err})
	}
	return res
}

// Count returns the number of elements matched by the first strategy that matches any.
// Zero means no strategy matched.
func (r *Resolver) Count(ctx context.Context, b core.Browser, strategies []flow.Strategy, scope core.Element) int {
	res := r.Resolve(ctx, b, strategies, scope)
	return res.Count
}

var errNoMatch = errors.New("no match")

func (r *Resolver) probe(ctx context.Context, b core.Browser, s flow.Strategy, scope core.Element) ([]core.Element, error) {
	if r.ProbeTimeout <= 0 {
		return b.FindElements(ctx, scope, s)
	}

	interval := r.ProbeInterval
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	probeCtx, cancel := context.WithTimeout(ctx, r.ProbeTimeout)
	defer cancel()

	var found []core.Element
	var lastErr error
	op := func() error {
		elements, err := b.FindElements(probeCtx, scope, s)
		if err != nil {
			lastErr = err
			return err
		}
		if len(elements) == 0 {
			return errNoMatch
		}
		found = elements
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(backoff.NewConstantBackOff(interval), probeCtx)); err != nil {
		return nil, lastErr
	}
	return found, nil
}
