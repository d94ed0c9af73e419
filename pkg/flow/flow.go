// Package flow handles parsing and representation of workflow YAML files.
package flow

import (
	"fmt"
	"sort"
	"strings"
)

// Workflow is one end-to-end scenario: an ordered sequence of steps.
// Workflows are values; running one never mutates it, so it can be re-run.
type Workflow struct {
	SourcePath string // Path to the source file
	Config     Config // Workflow configuration (name, tags, env)
	Steps      []Step // Steps to execute
}

// Name returns the configured name, falling back to the source path.
func (w *Workflow) Name() string {
	if w.Config.Name != "" {
		return w.Config.Name
	}
	return w.SourcePath
}

// Config represents workflow-level configuration.
type Config struct {
	Name   string              `yaml:"name"`
	Tags   []string            `yaml:"tags"`
	Env    map[string]string   `yaml:"env"`
	Matrix map[string][]string `yaml:"matrix"` // Expanded into one workflow per combination
}

// HasTag reports whether the workflow carries tag.
func (c Config) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Expand returns one workflow per matrix combination, or the workflow itself when it has no matrix.
// Combination values are added to Env and to the name as "name[KEY=value,...]".
func (w Workflow) Expand() []Workflow {
	if len(w.Config.Matrix) == 0 {
		return []Workflow{w}
	}

	keys := make([]string, 0, len(w.Config.Matrix))
	for k := range w.Config.Matrix {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	combos := []map[string]string{{}}
	for _, key := range keys {
		var next []map[string]string
		for _, combo := range combos {
			for _, value := range w.Config.Matrix[key] {
				c := make(map[string]string, len(combo)+1)
				for k, v := range combo {
					c[k] = v
				}
				c[key] = value
				next = append(next, c)
			}
		}
		combos = next
	}

	out := make([]Workflow, 0, len(combos))
	for _, combo := range combos {
		expanded := w
		expanded.Config.Matrix = nil
		expanded.Config.Env = make(map[string]string, len(w.Config.Env)+len(combo))
		for k, v := range w.Config.Env {
			expanded.Config.Env[k] = v
		}
		parts := make([]string, 0, len(keys))
		for _, key := range keys {
			expanded.Config.Env[key] = combo[key]
			parts = append(parts, fmt.Sprintf("%s=%s", key, combo[key]))
		}
		expanded.Config.Name = fmt.Sprintf("%s[%s]", w.Name(), strings.Join(parts, ","))
		out = append(out, expanded)
	}
	return out
}

// StepIndex returns the position of the named step, or -1.
func (w *Workflow) StepIndex(name string) int {
	for i := range w.Steps {
		if w.Steps[i].Name == name {
			return i
		}
	}
	return -1
}

// Validate checks step names and cross-step references.
// Scope, target, when and unless must name an earlier step.
func (w *Workflow) Validate() error {
	if len(w.Steps) == 0 {
		return fmt.Errorf("workflow %q has no steps", w.Name())
	}
	seen := make(map[string]int, len(w.Steps))
	for i, step := range w.Steps {
		if step.Name == "" {
			return fmt.Errorf("step %d: missing name", i+1)
		}
		if prev, dup := seen[step.Name]; dup {
			return fmt.Errorf("step %q: duplicate name (first used by step %d)", step.Name, prev+1)
		}

		refs := map[string]string{
			"scope":  step.Scope,
			"target": step.Target,
			"when":   step.When,
			"unless": step.Unless,
		}
		if step.Wait != nil {
			refs["wait.scope"] = step.Wait.Scope
		}
		if step.Verify != nil && step.Verify.Count != nil {
			refs["verify.scope"] = step.Verify.Count.Scope
		}
		for field, ref := range refs {
			if ref == "" {
				continue
			}
			if _, ok := seen[ref]; !ok {
				return fmt.Errorf("step %q: %s references unknown or later step %q", step.Name, field, ref)
			}
		}

		if err := step.validate(); err != nil {
			return fmt.Errorf("step %q: %w", step.Name, err)
		}
		seen[step.Name] = i
	}
	return nil
}
