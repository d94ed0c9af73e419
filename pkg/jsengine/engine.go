// Package jsengine provides JavaScript expression evaluation for workflow variables and script checks.
package jsengine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/dop251/goja"

	"github.com/lmsqa/flowrunner/pkg/logger"
)

// Engine wraps a goja runtime holding the variables of one workflow run.
// Not shared between workflows.
type Engine struct {
	runtime   *goja.Runtime
	variables map[string]string
	output    map[string]interface{}
	closeOnce sync.Once
	mu        sync.Mutex
}

// New creates a new JS engine instance
func New() *Engine {
	e := &Engine{
		runtime:   goja.New(),
		variables: make(map[string]string),
		output:    make(map[string]interface{}),
	}

	e.setupBuiltins()
	return e
}

// setupBuiltins registers all built-in functions and objects
func (e *Engine) setupBuiltins() {
	e.setupConsole()

	// JSON helper
	e.runtime.Set("json", e.jsonFunc())

	// Output object (for storing values to pass back to the workflow)
	e.runtime.Set("output", e.output)
}

// setupConsole routes console.log, console.error and console.warn to the run log.
func (e *Engine) setupConsole() {
	makeConsoleFunc := func(log func(string, ...interface{})) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			args := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				args[i] = arg.String()
			}
			log("[js] %s", strings.Join(args, " "))
			return goja.Undefined()
		}
	}

	console := e.runtime.NewObject()
	console.Set("log", makeConsoleFunc(logger.Info))
	console.Set("error", makeConsoleFunc(logger.Error))
	console.Set("warn", makeConsoleFunc(logger.Warn))
	e.runtime.Set("console", console)
}

// jsonFunc returns the json() helper function
func (e *Engine) jsonFunc() func(call goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			panic(e.runtime.NewTypeError("json requires 1 argument"))
		}

		str := call.Arguments[0].String()

		// Parse JSON string and return JS object
		result, err := e.runtime.RunString(fmt.Sprintf("JSON.parse(%q)", str))
		if err != nil {
			panic(e.runtime.NewTypeError(fmt.Sprintf("invalid JSON: %v", err)))
		}

		return result
	}
}

// SetVariable sets a variable accessible in JS as a global
func (e *Engine) SetVariable(name, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.variables[name] = value
	e.runtime.Set(name, value)
}

// SetGlobal exposes value to scripts without recording it as a workflow variable.
func (e *Engine) SetGlobal(name string, value interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.runtime.Set(name, value)
}

// SetVariables sets multiple variables in key order.
func (e *Engine) SetVariables(vars map[string]string) {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		e.SetVariable(k, vars[k])
	}
}

// Variable returns a variable set through SetVariable.
func (e *Engine) Variable(name string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.variables[name]
	return v, ok
}

// Variables returns a copy of every variable set through SetVariable.
func (e *Engine) Variables() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]string, len(e.variables))
	for k, v := range e.variables {
		out[k] = v
	}
	return out
}

// GetOutput returns a copy of the output object (values set by scripts)
func (e *Engine) GetOutput() map[string]interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()

	outputVal := e.runtime.Get("output")
	var source map[string]interface{}

	if outputVal != nil && !goja.IsUndefined(outputVal) {
		if m, ok := outputVal.Export().(map[string]interface{}); ok {
			source = m
		}
	}

	if source == nil {
		source = e.output
	}

	result := make(map[string]interface{}, len(source))
	for k, v := range source {
		result[k] = v
	}
	return result
}

// Eval evaluates a JavaScript expression and returns the result
func (e *Engine) Eval(script string) (interface{}, error) {
	return e.EvalContext(context.Background(), script)
}

// EvalContext evaluates script, interrupting it when ctx is done.
func (e *Engine) EvalContext(ctx context.Context, script string) (interface{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("JS eval error: %w", err)
	}
	if ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() {
			e.runtime.Interrupt(ctx.Err())
		})
		defer func() {
			stop()
			e.runtime.ClearInterrupt()
		}()
	}

	result, err := e.runtime.RunString(script)
	if err != nil {
		return nil, fmt.Errorf("JS eval error: %w", err)
	}

	return result.Export(), nil
}

// EvalString evaluates a JavaScript expression and returns string result
func (e *Engine) EvalString(script string) (string, error) {
	result, err := e.Eval(script)
	if err != nil {
		return "", err
	}

	if result == nil {
		return "", nil
	}

	return fmt.Sprintf("%v", result), nil
}

// EvalBool evaluates script and reports whether the result is truthy.
func (e *Engine) EvalBool(ctx context.Context, script string) (bool, error) {
	result, err := e.EvalContext(ctx, script)
	if err != nil {
		return false, err
	}
	return truthy(result), nil
}

// ExpandVariables expands ${...} expressions in a string using JS evaluation.
// An expression that fails to evaluate (for example an undefined variable) is an error.
func (e *Engine) ExpandVariables(text string) (string, error) {
	result := text
	start := 0

	for {
		idx := strings.Index(result[start:], "${")
		if idx == -1 {
			break
		}
		idx += start

		// Find matching }
		depth := 1
		end := idx + 2
		for end < len(result) && depth > 0 {
			if result[end] == '{' {
				depth++
			} else if result[end] == '}' {
				depth--
			}
			end++
		}

		if depth != 0 {
			// Unmatched brace, leave as-is
			start = idx + 2
			continue
		}

		expr := result[idx+2 : end-1]

		value, err := e.EvalString(expr)
		if err != nil {
			return text, fmt.Errorf("expanding ${%s}: %w", expr, err)
		}

		result = result[:idx] + value + result[end:]
		start = idx + len(value)
	}

	return result, nil
}

// Close interrupts any running script. Safe to call multiple times.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.runtime.Interrupt("engine closed")
	})
}

func truthy(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case int64:
		return x != 0
	case float64:
		return x != 0 && !math.IsNaN(x)
	default:
		return true
	}
}
