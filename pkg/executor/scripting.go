package executor

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/lmsqa/flowrunner/pkg/flow"
	"github.com/lmsqa/flowrunner/pkg/jsengine"
	"github.com/lmsqa/flowrunner/pkg/session"
)

// envVarPattern matches ALL_CAPS identifiers that look like env variables
var envVarPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]{2,}$`)

// Built-in variable names.
const (
	VarRunHMS   = "RUN_HMS"  // Run start as HHMMSS, used for unique titles
	VarRunDate  = "RUN_DATE" // Run start as YYYYMMDD
	VarBaseURL  = "BASE_URL"
	VarUsername = "USERNAME"
	VarPassword = "PASSWORD"
)

// ScriptEngine handles JavaScript execution and variable management for one workflow run.
type ScriptEngine struct {
	js *jsengine.Engine
}

// NewScriptEngine creates a new script engine.
func NewScriptEngine() *ScriptEngine {
	return &ScriptEngine{js: jsengine.New()}
}

// Close cleans up the script engine.
func (se *ScriptEngine) Close() {
	if se.js != nil {
		se.js.Close()
	}
}

// SetVariable sets a variable visible to ${...} expressions.
func (se *ScriptEngine) SetVariable(name, value string) {
	se.js.SetVariable(name, value)
}

// SetVariables sets multiple variables, expanding ${...} in each value first so
// env entries can build on built-ins (COURSE_TITLE: "Course ${RUN_HMS}").
func (se *ScriptEngine) SetVariables(vars map[string]string) error {
	expanded := make(map[string]string, len(vars))
	for k, v := range vars {
		value, err := se.js.ExpandVariables(v)
		if err != nil {
			return fmt.Errorf("variable %s: %w", k, err)
		}
		expanded[k] = value
	}
	se.js.SetVariables(expanded)
	return nil
}

// GetVariable returns a variable value.
func (se *ScriptEngine) GetVariable(name string) string {
	v, _ := se.js.Variable(name)
	return v
}

// Variables returns a copy of all variables.
func (se *ScriptEngine) Variables() map[string]string {
	return se.js.Variables()
}

// ImportSystemEnv imports system environment variables into the script engine.
// Only imports variables matching the pattern (uppercase with underscores).
func (se *ScriptEngine) ImportSystemEnv() {
	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) == 2 && envVarPattern.MatchString(parts[0]) {
			se.SetVariable(parts[0], parts[1])
		}
	}
}

// SetBuiltins sets the run-level variables.
func (se *ScriptEngine) SetBuiltins(runStart time.Time, cfg session.Config) {
	se.SetVariable(VarRunHMS, runStart.Format("150405"))
	se.SetVariable(VarRunDate, runStart.Format("20060102"))
	se.SetVariable(VarBaseURL, cfg.BaseURL)
	se.SetVariable(VarUsername, cfg.Username)
	se.SetVariable(VarPassword, cfg.Password)
}

// ExpandVariables expands ${expr} in text.
func (se *ScriptEngine) ExpandVariables(text string) (string, error) {
	if !strings.Contains(text, "${") {
		return text, nil
	}
	return se.js.ExpandVariables(text)
}

// ExpandStep returns a copy of step with every ${...} expanded.
// The first expansion error is returned alongside the partially expanded step.
func (se *ScriptEngine) ExpandStep(step flow.Step) (flow.Step, error) {
	var firstErr error
	out := step.Expanded(func(s string) string {
		v, err := se.ExpandVariables(s)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return v
	})
	return out, firstErr
}

// EvalCondition evaluates a script predicate with the given page facts exposed as globals.
func (se *ScriptEngine) EvalCondition(ctx context.Context, script string, globals map[string]string) (bool, error) {
	script = extractJS(script)
	for k, v := range globals {
		se.js.SetGlobal(k, v)
	}
	return se.js.EvalBool(ctx, script)
}

// extractJS strips a ${...} wrapper from a script.
func extractJS(script string) string {
	script = strings.TrimSpace(script)
	if strings.HasPrefix(script, "${") && strings.HasSuffix(script, "}") {
		return script[2 : len(script)-1]
	}
	return script
}
