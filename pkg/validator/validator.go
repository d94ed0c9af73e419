// Package validator validates workflow files before execution.
// It parses every file upfront against the locator configuration, applies tag
// filters and reports errors that would otherwise surface mid-run.
package validator

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/lmsqa/flowrunner/pkg/executor"
	"github.com/lmsqa/flowrunner/pkg/flow"
)

// ValidationError represents a validation error with context.
type ValidationError struct {
	File    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// Result contains the validation result.
type Result struct {
	// Files is the list of workflow file paths in execution order.
	Files []string
	// Workflows holds the selected workflows, matrix combinations expanded.
	Workflows []flow.Workflow
	// Errors contains all validation errors found.
	Errors []error
	// Warnings are problems that may still resolve at run time, such as a
	// variable expected from the process environment.
	Warnings []string
}

// IsValid returns true if there are no validation errors.
func (r *Result) IsValid() bool {
	return len(r.Errors) == 0
}

// Validator validates workflow files.
type Validator struct {
	locators    *flow.LocatorSet
	includeTags []string
	excludeTags []string
	env         map[string]string
}

// New creates a new Validator. env lists variables supplied on the command line.
func New(locators *flow.LocatorSet, includeTags, excludeTags []string, env map[string]string) *Validator {
	return &Validator{
		locators:    locators,
		includeTags: includeTags,
		excludeTags: excludeTags,
		env:         env,
	}
}

// Validate validates files, directories or glob patterns, in argument order.
func (v *Validator) Validate(paths ...string) *Result {
	result := &Result{}

	seen := make(map[string]bool)
	for _, path := range paths {
		files, err := v.expand(path)
		if err != nil {
			result.Errors = append(result.Errors, &ValidationError{File: path, Message: err.Error()})
			continue
		}
		for _, file := range files {
			if seen[file] {
				continue
			}
			seen[file] = true
			v.validateFile(file, result)
		}
	}

	v.checkDuplicateNames(result)
	return result
}

// ValidateWorkflows applies tag filters and static checks to already parsed workflows.
func (v *Validator) ValidateWorkflows(source string, wfs []flow.Workflow) *Result {
	result := &Result{}
	for _, wf := range wfs {
		if !ShouldInclude(wf.Config, v.includeTags, v.excludeTags) {
			continue
		}
		v.checkVariables(wf, result)
		result.Workflows = append(result.Workflows, wf)
	}
	if len(result.Workflows) > 0 {
		result.Files = []string{source}
	}
	v.checkDuplicateNames(result)
	return result
}

// expand turns a path argument into workflow files.
func (v *Validator) expand(path string) ([]string, error) {
	if strings.ContainsAny(path, "*?[") {
		matches, err := filepath.Glob(path)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern: %w", err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match")
		}
		var files []string
		for _, m := range matches {
			if isWorkflowFile(m) {
				files = append(files, m)
			}
		}
		return files, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot access: %v", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	files, err := collectWorkflowFiles(path)
	if err != nil {
		return nil, fmt.Errorf("failed to scan directory: %v", err)
	}
	return files, nil
}

// collectWorkflowFiles finds all .yaml/.yml files in a directory, sorted.
func collectWorkflowFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if isWorkflowFile(path) {
			files = append(files, path)
		}
		return nil
	})

	sort.Strings(files)
	return files, err
}

func isWorkflowFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// validateFile parses a single file and records the selected workflows.
func (v *Validator) validateFile(filePath string, result *Result) {
	wfs, err := flow.ParseFile(filePath, v.locators)
	if err != nil {
		result.Errors = append(result.Errors, &ValidationError{
			File:    filePath,
			Message: fmt.Sprintf("parse error: %v", err),
		})
		return
	}

	included := false
	for _, wf := range wfs {
		if !ShouldInclude(wf.Config, v.includeTags, v.excludeTags) {
			continue
		}
		included = true
		v.checkVariables(wf, result)
		result.Workflows = append(result.Workflows, wf)
	}
	if included {
		result.Files = append(result.Files, filePath)
	}
}

func (v *Validator) checkDuplicateNames(result *Result) {
	first := make(map[string]string)
	for _, wf := range result.Workflows {
		if prev, dup := first[wf.Name()]; dup {
			result.Errors = append(result.Errors, &ValidationError{
				File:    wf.SourcePath,
				Message: fmt.Sprintf("workflow name %q already used by %s", wf.Name(), prev),
			})
			continue
		}
		first[wf.Name()] = wf.SourcePath
	}
}

// varRef matches ${NAME} references to plain variables.
var varRef = regexp.MustCompile(`\$\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}`)

// checkVariables warns about ${NAME} references no earlier source defines.
func (v *Validator) checkVariables(wf flow.Workflow, result *Result) {
	known := map[string]bool{
		executor.VarRunHMS:   true,
		executor.VarRunDate:  true,
		executor.VarBaseURL:  true,
		executor.VarUsername: true,
		executor.VarPassword: true,
	}
	for k := range wf.Config.Env {
		known[k] = true
	}
	for k := range v.env {
		known[k] = true
	}

	reported := make(map[string]bool)
	for _, step := range wf.Steps {
		step.Expanded(func(s string) string {
			for _, m := range varRef.FindAllStringSubmatch(s, -1) {
				name := m[1]
				if known[name] || reported[name] {
					continue
				}
				if _, ok := os.LookupEnv(name); ok {
					continue
				}
				reported[name] = true
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("%s: step %q uses ${%s}, which is not defined before it", wf.Name(), step.Name, name))
			}
			return s
		})
		if step.Action.Kind == flow.ActionStore {
			known[step.Action.Variable] = true
		}
	}
}

// ShouldInclude reports whether a workflow passes the tag filters: it must carry
// one of include (when given) and none of exclude.
func ShouldInclude(cfg flow.Config, include, exclude []string) bool {
	for _, tag := range exclude {
		if cfg.HasTag(tag) {
			return false
		}
	}
	if len(include) == 0 {
		return true
	}
	for _, tag := range include {
		if cfg.HasTag(tag) {
			return true
		}
	}
	return false
}
