package executor

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lmsqa/flowrunner/pkg/core"
	"github.com/lmsqa/flowrunner/pkg/flow"
	"github.com/lmsqa/flowrunner/pkg/logger"
	"github.com/lmsqa/flowrunner/pkg/session"
	"github.com/lmsqa/flowrunner/pkg/wait"
)

// workflowRun holds the state of one workflow execution.
type workflowRun struct {
	exec    *Executor
	ctx     context.Context
	session *session.Session
	wf      flow.Workflow
	script  *ScriptEngine
	browser core.Browser

	elements map[string]core.Element // Element owned by each finished step
	ran      map[string]bool         // Step name -> ran (true) or was skipped (false)
}

// stepError is a step failure or optional skip with the stage it happened in.
type stepError struct {
	stage core.Stage
	err   error
}

func fail(stage core.Stage, err error) *stepError {
	return &stepError{stage: stage, err: err}
}

func (r *workflowRun) execute() *core.WorkflowReport {
	cfg := r.exec.cfg
	start := time.Now()
	name := r.wf.Name()
	log := logger.WithFields(logger.Fields{"workflow": name})

	report := &core.WorkflowReport{
		Name:      name,
		Source:    r.wf.SourcePath,
		Tags:      r.wf.Config.Tags,
		Attempt:   1,
		Status:    core.StatusRunning,
		StartTime: start,
		Steps:     make([]core.StepResult, 0, len(r.wf.Steps)),
	}
	if cfg.OnWorkflowStart != nil {
		cfg.OnWorkflowStart(name)
	}
	log.Info("workflow started")

	r.script = NewScriptEngine()
	defer r.script.Close()

	finish := func() *core.WorkflowReport {
		report.Duration = time.Since(start)
		report.ComputeSummary()
		if report.Failure == nil && report.Error == "" {
			report.Success = true
			report.Status = core.StatusPassed
		} else {
			report.Status = core.StatusFailed
		}
		log.WithField("success", report.Success).Infof("workflow finished in %s", report.Duration.Round(time.Millisecond))
		if cfg.OnWorkflowEnd != nil {
			cfg.OnWorkflowEnd(report)
		}
		return report
	}

	if err := r.setupVariables(); err != nil {
		report.Error = err.Error()
		r.skipFrom(report, 0, "variables could not be set up")
		return finish()
	}

	for i, step := range r.wf.Steps {
		if err := r.ctx.Err(); err != nil {
			report.Error = fmt.Sprintf("run cancelled: %v", err)
			r.skipFrom(report, i, "run cancelled")
			break
		}

		result, failure := r.runStep(i, step)
		report.Steps = append(report.Steps, result)
		if cfg.OnStepComplete != nil {
			cfg.OnStepComplete(name, result)
		}

		if failure != nil {
			report.Failure = failure
			report.Error = failure.Error()
			if failure.Artifact != "" {
				report.Diagnostics = append(report.Diagnostics, core.Artifact{
					Label:       failureLabel(name, step.Name, failure.Stage),
					Path:        failure.Artifact,
					Timestamp:   time.Now(),
					ContentType: core.ContentTypePNG,
				})
			}
			r.skipFrom(report, i+1, fmt.Sprintf("step %q failed", step.Name))
			break
		}
	}
	return finish()
}

func (r *workflowRun) setupVariables() error {
	cfg := r.exec.cfg
	runStart := cfg.RunStart
	if runStart.IsZero() {
		runStart = time.Now()
	}

	var sessCfg session.Config
	if r.session != nil {
		sessCfg = r.session.Config()
	}

	r.script.ImportSystemEnv()
	r.script.SetBuiltins(runStart, sessCfg)
	if err := r.script.SetVariables(r.wf.Config.Env); err != nil {
		return fmt.Errorf("workflow env: %w", err)
	}
	if err := r.script.SetVariables(cfg.Env); err != nil {
		return fmt.Errorf("run env: %w", err)
	}
	return nil
}

// skipFrom reports steps[from:] as skipped without running them.
func (r *workflowRun) skipFrom(report *core.WorkflowReport, from int, reason string) {
	for j := from; j < len(r.wf.Steps); j++ {
		report.Steps = append(report.Steps, core.StepResult{
			Index:   j,
			Name:    r.wf.Steps[j].Name,
			Status:  core.StatusSkipped,
			Outcome: core.OutcomeSkipped,
			Stage:   core.StagePending,
			Message: "not run: " + reason,
		})
	}
}

// runStep drives one step through Locating, Waiting, Acting and Verifying.
// A non-nil StepFailure means the workflow must stop.
func (r *workflowRun) runStep(index int, raw flow.Step) (core.StepResult, *core.StepFailure) {
	start := time.Now()
	result := core.StepResult{
		Index:     index,
		Name:      raw.Name,
		Status:    core.StatusRunning,
		Stage:     core.StagePending,
		StartTime: start,
	}
	log := logger.WithFields(logger.Fields{"workflow": r.wf.Name(), "step": raw.Name})

	done := func() {
		result.Duration = time.Since(start)
	}

	if reason, skip := r.conditionalSkip(raw); skip {
		r.ran[raw.Name] = false
		result.Status = core.StatusSkipped
		result.Outcome = core.OutcomeSkipped
		result.Message = reason
		done()
		log.Debug(reason)
		return result, nil
	}

	browser, err := r.session.Browser()
	if err != nil {
		return r.failed(&result, raw, fail(core.StagePending, err), start)
	}
	r.browser = browser

	step, err := r.script.ExpandStep(raw)
	if err != nil {
		return r.failed(&result, raw, fail(core.StagePending, core.ErrInvalidConfig.WithMessage("variable expansion failed").WithCause(err)), start)
	}

	var el core.Element
	for _, stage := range []core.Stage{core.StageLocating, core.StageWaiting, core.StageActing, core.StageVerifying} {
		result.Stage = stage
		var serr *stepError
		switch stage {
		case core.StageLocating:
			el, serr = r.locate(&step, &result)
		case core.StageWaiting:
			el, serr = r.wait(&step, el, &result)
		case core.StageActing:
			serr = r.act(&step, el, &result)
		case core.StageVerifying:
			serr = r.verify(&step, el)
		}
		if serr == nil {
			continue
		}

		if opt, ok := optionalFor(serr.err); ok && step.SkipsOn(opt) {
			r.ran[step.Name] = false
			result.Status = core.StatusSkipped
			result.Outcome = core.OutcomeSkipped
			result.Message = fmt.Sprintf("optional step skipped while %s: %v", strings.ToLower(string(stage)), serr.err)
			done()
			log.Info(result.Message)
			return result, nil
		}
		return r.failed(&result, raw, serr, start)
	}

	if el != nil {
		r.elements[step.Name] = el
	}
	r.ran[step.Name] = true
	result.Stage = core.StageDone
	result.Status = core.StatusPassed
	result.Outcome = core.OutcomeSuccess
	done()
	log.Debugf("passed in %s", result.Duration.Round(time.Millisecond))
	return result, nil
}

// failed records a workflow-fatal failure: exactly one diagnostic capture, then a StepFailure.
func (r *workflowRun) failed(result *core.StepResult, step flow.Step, serr *stepError, start time.Time) (core.StepResult, *core.StepFailure) {
	name := r.wf.Name()
	failure := &core.StepFailure{
		Workflow: name,
		StepName: step.Name,
		Stage:    serr.stage,
		Cause:    serr.err,
	}

	cfg := r.exec.cfg.Artifacts
	if cfg.ShouldCapture(core.StatusFailed) {
		var snap core.Snapshotter
		if r.browser != nil {
			snap = r.browser
		}
		// Recorder failures are logged by the recorder and never replace the step failure.
		if art, err := r.exec.recorder.Capture(r.ctx, snap, failureLabel(name, step.Name, serr.stage)); err == nil {
			failure.Artifact = art.Path
		}
	}

	r.ran[step.Name] = false
	result.Stage = serr.stage
	result.Status = core.StatusFailed
	result.Outcome = core.Failed(serr.err).Kind
	result.Error = serr.err.Error()
	result.Message = failure.Error()
	result.Duration = time.Since(start)
	logger.WithFields(logger.Fields{"workflow": name, "step": step.Name}).Error(failure.Error())
	return *result, failure
}

func failureLabel(workflow, step string, stage core.Stage) string {
	return fmt.Sprintf("%s_%s_%s", workflow, step, stage)
}

// optionalFor maps an error to the optional outcome that can absorb it.
func optionalFor(err error) (flow.Optional, bool) {
	switch core.CategoryOf(err) {
	case core.ErrCategoryNotFound:
		return flow.OptionalNotFound, true
	case core.ErrCategoryTimeout:
		return flow.OptionalTimeout, true
	}
	return "", false
}

func (r *workflowRun) conditionalSkip(step flow.Step) (string, bool) {
	if step.When != "" && !r.ran[step.When] {
		return fmt.Sprintf("skipped: step %q did not run", step.When), true
	}
	if step.Unless != "" && r.ran[step.Unless] {
		return fmt.Sprintf("skipped: step %q ran", step.Unless), true
	}
	return "", false
}

// element returns the element owned by an earlier step.
func (r *workflowRun) element(stepName string) (core.Element, error) {
	if stepName == "" {
		return nil, nil
	}
	el, ok := r.elements[stepName]
	if !ok {
		return nil, core.ErrElementNotFound.WithMessage(fmt.Sprintf("step %q has no element", stepName))
	}
	return el, nil
}

func (r *workflowRun) locate(step *flow.Step, result *core.StepResult) (core.Element, *stepError) {
	if !step.Locates() {
		if step.Target == "" {
			return nil, nil
		}
		el, err := r.element(step.Target)
		if err != nil {
			return nil, fail(core.StageLocating, err)
		}
		return el, nil
	}

	scope, err := r.element(step.Scope)
	if err != nil {
		return nil, fail(core.StageLocating, err)
	}
	res := r.exec.resolver.Resolve(r.ctx, r.browser, step.Strategies, scope)
	if !res.Found {
		return nil, fail(core.StageLocating, res.Err())
	}
	result.Element = res.Info(r.ctx)
	return res.Element, nil
}

func (r *workflowRun) wait(step *flow.Step, el core.Element, result *core.StepResult) (core.Element, *stepError) {
	c := step.Wait
	if c == nil {
		return el, nil
	}

	var cond wait.Condition
	var elementCond *wait.ElementCondition
	switch c.Kind {
	case flow.ConditionPresent, flow.ConditionClickable:
		scope, err := r.element(c.Scope)
		if err != nil {
			return nil, fail(core.StageWaiting, err)
		}
		switch {
		case c.Kind == flow.ConditionPresent:
			elementCond = wait.Present(r.exec.resolver, c.Strategies, scope)
		case len(c.Strategies) > 0:
			elementCond = wait.ClickableBy(r.exec.resolver, c.Strategies, scope)
		default:
			if el == nil {
				return nil, fail(core.StageWaiting, core.ErrInvalidConfig.WithMessage("clickable wait without an element"))
			}
			cond = wait.Clickable(el, step.Name)
		}
		if elementCond != nil {
			cond = elementCond
		}
	case flow.ConditionURL:
		cond = wait.URLContains(c.Values...)
	case flow.ConditionText:
		cond = wait.TextContains(c.Values...)
	case flow.ConditionTitle:
		cond = wait.TitleContains(c.Values...)
	default:
		return nil, fail(core.StageWaiting, core.ErrInvalidConfig.WithMessage(fmt.Sprintf("unknown wait condition %q", c.Kind)))
	}

	timeout := step.Timeout
	if timeout <= 0 {
		timeout = r.exec.cfg.Timeout
	}
	res, err := wait.Until(r.ctx, r.browser, cond, timeout, r.exec.cfg.PollInterval)
	if err != nil {
		return nil, fail(core.StageWaiting, err)
	}
	if res.Outcome == wait.TimedOut {
		return nil, fail(core.StageWaiting, res.Err(cond))
	}

	// A step without its own element owns the element its wait found.
	if el == nil && elementCond != nil {
		el = elementCond.Element
		result.Element = elementCond.Result.Info(r.ctx)
	}
	return el, nil
}

func (r *workflowRun) act(step *flow.Step, el core.Element, result *core.StepResult) *stepError {
	a := step.Action
	if a.Kind == flow.ActionNone {
		return nil
	}
	if a.Kind.NeedsElement() && el == nil {
		return fail(core.StageActing, core.ErrInvalidConfig.WithMessage(fmt.Sprintf("%s without an element", a.Kind)))
	}

	ctx := r.ctx
	var err error
	switch a.Kind {
	case flow.ActionNavigate:
		var target string
		if target, err = r.session.ResolveURL(a.URL); err == nil {
			err = r.browser.Navigate(ctx, target)
		}
	case flow.ActionClick:
		err = r.browser.Click(ctx, el)
	case flow.ActionType:
		err = r.browser.Type(ctx, el, a.Text)
	case flow.ActionFrame:
		err = r.browser.SwitchToFrame(ctx, el)
	case flow.ActionDefaultContent:
		err = r.browser.SwitchToDefaultContent(ctx)
	case flow.ActionStore:
		var value string
		if value, err = readValue(ctx, el, a.Attr); err == nil {
			r.script.SetVariable(a.Variable, value)
		}
	case flow.ActionSnapshot:
		if r.exec.cfg.Artifacts.Checkpoints {
			label := fmt.Sprintf("%s_%s", r.wf.Name(), a.Label)
			if art, cerr := r.exec.recorder.Capture(ctx, r.browser, label); cerr == nil {
				result.Attachments = append(result.Attachments, art)
			}
		}
		return nil
	default:
		err = fmt.Errorf("unknown action %q", a.Kind)
	}
	if err != nil {
		return fail(core.StageActing, core.ActionFailed(string(a.Kind), err))
	}

	if slowMo := r.exec.cfg.SlowMo; slowMo > 0 {
		select {
		case <-time.After(slowMo):
		case <-ctx.Done():
		}
	}
	return nil
}

func readValue(ctx context.Context, el core.Element, attr string) (string, error) {
	if attr == "" {
		return el.Text(ctx)
	}
	v, ok, err := el.Attribute(ctx, attr)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("attribute %q not present", attr)
	}
	return v, nil
}

func (r *workflowRun) verify(step *flow.Step, el core.Element) *stepError {
	v := step.Verify
	if v == nil {
		return nil
	}
	ctx := r.ctx
	mismatch := func(err error) *stepError { return fail(core.StageVerifying, err) }
	broken := func(what string, err error) *stepError {
		return fail(core.StageVerifying, core.ActionFailed("reading "+what, err))
	}

	if len(v.TextAny) > 0 || len(v.TextNone) > 0 {
		subject := "element text"
		var text string
		var err error
		if v.OnPage || el == nil {
			subject = "page text"
			text, err = r.browser.PageText(ctx)
		} else {
			text, err = el.Text(ctx)
		}
		if err != nil {
			return broken(subject, err)
		}
		if len(v.TextAny) > 0 && !containsAny(text, v.TextAny, v.IgnoreCase) {
			return mismatch(core.Mismatch(subject, fmt.Sprintf("to contain any of %q", v.TextAny), strconv.Quote(truncate(text, 200))))
		}
		if len(v.TextNone) > 0 && containsAny(text, v.TextNone, v.IgnoreCase) {
			return mismatch(core.Mismatch(subject, fmt.Sprintf("to contain none of %q", v.TextNone), strconv.Quote(truncate(text, 200))))
		}
	}

	if c := v.Count; c != nil {
		expected, err := strconv.Atoi(strings.TrimSpace(c.Expected))
		if err != nil {
			return fail(core.StageVerifying, core.ErrInvalidConfig.WithMessage(fmt.Sprintf("count %q is not an integer", c.Expected)))
		}
		scope, serr := r.element(c.Scope)
		if serr != nil {
			return fail(core.StageVerifying, serr)
		}
		observed := r.exec.resolver.Count(ctx, r.browser, c.Strategies, scope)
		if observed != expected {
			subject := "count of " + strings.Join(flow.DescribeAll(c.Strategies), " | ")
			return mismatch(core.Mismatch(subject, expected, observed))
		}
	}

	if len(v.TitleContains) > 0 {
		title, err := r.browser.Title(ctx)
		if err != nil {
			return broken("title", err)
		}
		if !containsAny(title, v.TitleContains, v.IgnoreCase) {
			return mismatch(core.Mismatch("title", fmt.Sprintf("to contain any of %q", v.TitleContains), strconv.Quote(title)))
		}
	}

	if len(v.URLContains) > 0 {
		u, err := r.browser.CurrentURL(ctx)
		if err != nil {
			return broken("url", err)
		}
		if !containsAny(u, v.URLContains, false) {
			return mismatch(core.Mismatch("url", fmt.Sprintf("to contain any of %q", v.URLContains), strconv.Quote(u)))
		}
	}

	if v.Script != "" {
		globals, err := r.pageFacts(el)
		if err != nil {
			return broken("page state", err)
		}
		ok, err := r.script.EvalCondition(ctx, v.Script, globals)
		if err != nil {
			return fail(core.StageVerifying, core.ActionFailed("script", err))
		}
		if !ok {
			return mismatch(core.Mismatch("script "+strconv.Quote(v.Script), true, false))
		}
	}
	return nil
}

// pageFacts exposes url, title, pageText and elementText to verify scripts.
func (r *workflowRun) pageFacts(el core.Element) (map[string]string, error) {
	ctx := r.ctx
	u, err := r.browser.CurrentURL(ctx)
	if err != nil {
		return nil, err
	}
	title, err := r.browser.Title(ctx)
	if err != nil {
		return nil, err
	}
	text, err := r.browser.PageText(ctx)
	if err != nil {
		return nil, err
	}
	facts := map[string]string{"url": u, "title": title, "pageText": text, "elementText": ""}
	if el != nil {
		if t, err := el.Text(ctx); err == nil {
			facts["elementText"] = t
		}
	}
	return facts, nil
}

func containsAny(s string, subs []string, ignoreCase bool) bool {
	if ignoreCase {
		s = strings.ToLower(s)
	}
	for _, sub := range subs {
		if ignoreCase {
			sub = strings.ToLower(sub)
		}
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
