package flow

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ParseError represents a parsing error with location info.
type ParseError struct {
	Path    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ParseFile parses a single workflow YAML file.
func ParseFile(path string, locators *LocatorSet) ([]Workflow, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is user-provided workflow file
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data, path, locators)
}

// Parse parses workflow YAML content: an optional config document, "---", then the steps.
// Locator and indicator names are resolved against locators. The result holds one
// workflow per matrix combination.
func Parse(data []byte, sourcePath string, locators *LocatorSet) ([]Workflow, error) {
	parts := splitYAMLDocuments(string(data))

	wf := Workflow{SourcePath: sourcePath}

	switch len(parts) {
	case 0:
		return nil, &ParseError{Path: sourcePath, Line: 1, Message: "empty workflow file"}
	case 1:
		if err := parseSteps(parts[0], &wf, locators); err != nil {
			return nil, err
		}
	default:
		if err := yaml.Unmarshal([]byte(parts[0]), &wf.Config); err != nil {
			return nil, &ParseError{Path: sourcePath, Message: fmt.Sprintf("invalid config: %v", err)}
		}
		if err := parseSteps(parts[1], &wf, locators); err != nil {
			return nil, err
		}
	}

	if wf.Config.Name == "" {
		base := sourcePath[strings.LastIndexAny(sourcePath, `/\`)+1:]
		wf.Config.Name = strings.TrimSuffix(strings.TrimSuffix(base, ".yaml"), ".yml")
	}
	if err := wf.Validate(); err != nil {
		return nil, &ParseError{Path: sourcePath, Message: err.Error()}
	}
	return wf.Expand(), nil
}

func splitYAMLDocuments(content string) []string {
	var parts []string
	var current strings.Builder
	inMultiline := false
	multilineIndent := 0

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)

		if !inMultiline {
			if strings.HasSuffix(trimmed, "|") || strings.HasSuffix(trimmed, ">") ||
				strings.HasSuffix(trimmed, "|-") || strings.HasSuffix(trimmed, ">-") {
				inMultiline = true
				if i+1 < len(lines) {
					next := lines[i+1]
					multilineIndent = len(next) - len(strings.TrimLeft(next, " \t"))
				}
			}
		} else {
			indent := len(line) - len(strings.TrimLeft(line, " \t"))
			if trimmed != "" && indent < multilineIndent {
				inMultiline = false
			}
		}

		if !inMultiline && trimmed == "---" && strings.TrimLeft(line, " \t") == "---" {
			if strings.TrimSpace(current.String()) != "" {
				parts = append(parts, current.String())
			}
			current.Reset()
		} else {
			current.WriteString(line)
			current.WriteString("\n")
		}
	}

	if strings.TrimSpace(current.String()) != "" {
		parts = append(parts, current.String())
	}

	return parts
}

func parseSteps(content string, wf *Workflow, locators *LocatorSet) error {
	var nodes []yaml.Node
	if err := yaml.Unmarshal([]byte(content), &nodes); err != nil {
		return &ParseError{Path: wf.SourcePath, Message: fmt.Sprintf("invalid steps: %v", err)}
	}

	for i := range nodes {
		var raw rawStep
		if err := nodes[i].Decode(&raw); err != nil {
			return &ParseError{Path: wf.SourcePath, Line: nodes[i].Line, Message: err.Error()}
		}
		step, err := raw.build(locators)
		if err != nil {
			return &ParseError{Path: wf.SourcePath, Line: nodes[i].Line, Message: fmt.Sprintf("step %q: %v", raw.Name, err)}
		}
		wf.Steps = append(wf.Steps, step)
	}
	return nil
}

// locatorRef is a locator name, an inline strategy, or an inline strategy list.
type locatorRef struct {
	name   string
	inline []Strategy
}

func (r *locatorRef) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		r.name = node.Value
		return nil
	case yaml.SequenceNode:
		return node.Decode(&r.inline)
	case yaml.MappingNode:
		var s Strategy
		if err := node.Decode(&s); err != nil {
			return err
		}
		r.inline = []Strategy{s}
		return nil
	default:
		return fmt.Errorf("line %d: expected locator name or strategies", node.Line)
	}
}

func (r *locatorRef) resolve(locators *LocatorSet) ([]Strategy, error) {
	if r == nil {
		return nil, nil
	}
	if r.name == "" {
		return r.inline, nil
	}
	strategies, ok := locators.Strategies(r.name)
	if !ok {
		return nil, fmt.Errorf("unknown locator %q", r.name)
	}
	return strategies, nil
}

// stringList accepts a scalar or a sequence of scalars.
type stringList []string

func (l *stringList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*l = []string{node.Value}
		return nil
	}
	var values []string
	if err := node.Decode(&values); err != nil {
		return err
	}
	*l = values
	return nil
}

// clickableRef is "true" (the step's own element) or a locator reference.
type clickableRef struct {
	self bool
	ref  *locatorRef
}

func (c *clickableRef) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!bool" {
		return node.Decode(&c.self)
	}
	c.ref = &locatorRef{}
	return node.Decode(c.ref)
}

// optionalList is "true" (not_found and timeout) or a list of outcomes.
type optionalList []Optional

func (o *optionalList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!bool" {
		var on bool
		if err := node.Decode(&on); err != nil {
			return err
		}
		if on {
			*o = []Optional{OptionalNotFound, OptionalTimeout}
		}
		return nil
	}
	var values stringList
	if err := node.Decode(&values); err != nil {
		return err
	}
	for _, v := range values {
		*o = append(*o, Optional(v))
	}
	return nil
}

type rawWait struct {
	Present   *locatorRef   `yaml:"present"`
	Clickable *clickableRef `yaml:"clickable"`
	URL       stringList    `yaml:"url"`
	Text      stringList    `yaml:"text"`
	Indicator string        `yaml:"indicator"`
	Title     stringList    `yaml:"title"`
	Scope     string        `yaml:"scope"`
}

type rawStore struct {
	Var  string `yaml:"var"`
	Attr string `yaml:"attr"`
}

type rawVerify struct {
	Text          stringList  `yaml:"text"`
	Indicator     string      `yaml:"indicator"`
	NotText       stringList  `yaml:"notText"`
	IgnoreCase    bool        `yaml:"ignoreCase"`
	Page          bool        `yaml:"page"`
	Count         string      `yaml:"count"`
	Of            *locatorRef `yaml:"of"`
	Scope         string      `yaml:"scope"`
	TitleContains stringList  `yaml:"title"`
	URLContains   stringList  `yaml:"url"`
	Script        string      `yaml:"script"`
}

type rawStep struct {
	Name   string      `yaml:"name"`
	Locate *locatorRef `yaml:"locate"`
	Scope  string      `yaml:"scope"`
	Target string      `yaml:"target"`
	Wait   *rawWait    `yaml:"wait"`

	Navigate       string    `yaml:"navigate"`
	Click          bool      `yaml:"click"`
	Type           *string   `yaml:"type"`
	Frame          bool      `yaml:"frame"`
	DefaultContent bool      `yaml:"defaultContent"`
	Store          *rawStore `yaml:"store"`
	Snapshot       string    `yaml:"snapshot"`

	Verify   *rawVerify   `yaml:"verify"`
	Timeout  string       `yaml:"timeout"`
	Optional optionalList `yaml:"optional"`
	When     string       `yaml:"when"`
	Unless   string       `yaml:"unless"`
}

func (r *rawStep) build(locators *LocatorSet) (Step, error) {
	step := Step{
		Name:     r.Name,
		Scope:    r.Scope,
		Target:   r.Target,
		Optional: r.Optional,
		When:     r.When,
		Unless:   r.Unless,
	}

	var err error
	if step.Strategies, err = r.Locate.resolve(locators); err != nil {
		return step, err
	}

	if r.Timeout != "" {
		if step.Timeout, err = time.ParseDuration(r.Timeout); err != nil {
			return step, fmt.Errorf("invalid timeout: %w", err)
		}
	}

	var actions []Action
	if r.Navigate != "" {
		actions = append(actions, Action{Kind: ActionNavigate, URL: r.Navigate})
	}
	if r.Click {
		actions = append(actions, Action{Kind: ActionClick})
	}
	if r.Type != nil {
		actions = append(actions, Action{Kind: ActionType, Text: *r.Type})
	}
	if r.Frame {
		actions = append(actions, Action{Kind: ActionFrame})
	}
	if r.DefaultContent {
		actions = append(actions, Action{Kind: ActionDefaultContent})
	}
	if r.Store != nil {
		actions = append(actions, Action{Kind: ActionStore, Variable: r.Store.Var, Attr: r.Store.Attr})
	}
	if r.Snapshot != "" {
		actions = append(actions, Action{Kind: ActionSnapshot, Label: r.Snapshot})
	}
	if len(actions) > 1 {
		return step, fmt.Errorf("a step performs at most one action")
	}
	if len(actions) == 1 {
		step.Action = actions[0]
	}

	if r.Wait != nil {
		if step.Wait, err = r.Wait.build(locators); err != nil {
			return step, err
		}
	}
	if r.Verify != nil {
		if step.Verify, err = r.Verify.build(locators); err != nil {
			return step, err
		}
	}
	return step, nil
}

func (w *rawWait) build(locators *LocatorSet) (*Condition, error) {
	var conds []*Condition
	if w.Present != nil {
		strategies, err := w.Present.resolve(locators)
		if err != nil {
			return nil, err
		}
		conds = append(conds, &Condition{Kind: ConditionPresent, Strategies: strategies})
	}
	if w.Clickable != nil {
		c := &Condition{Kind: ConditionClickable}
		if w.Clickable.ref != nil {
			strategies, err := w.Clickable.ref.resolve(locators)
			if err != nil {
				return nil, err
			}
			c.Strategies = strategies
		}
		conds = append(conds, c)
	}
	if len(w.URL) > 0 {
		conds = append(conds, &Condition{Kind: ConditionURL, Values: w.URL})
	}
	if len(w.Text) > 0 || w.Indicator != "" {
		values := []string(w.Text)
		if w.Indicator != "" {
			texts, ok := locators.Indicator(w.Indicator)
			if !ok {
				return nil, fmt.Errorf("unknown indicator %q", w.Indicator)
			}
			values = append(values, texts...)
		}
		conds = append(conds, &Condition{Kind: ConditionText, Values: values})
	}
	if len(w.Title) > 0 {
		conds = append(conds, &Condition{Kind: ConditionTitle, Values: w.Title})
	}

	if len(conds) != 1 {
		return nil, fmt.Errorf("wait must set exactly one of present, clickable, url, text/indicator, title")
	}
	conds[0].Scope = w.Scope
	return conds[0], nil
}

func (v *rawVerify) build(locators *LocatorSet) (*Verify, error) {
	out := &Verify{
		TextAny:       v.Text,
		TextNone:      v.NotText,
		IgnoreCase:    v.IgnoreCase,
		OnPage:        v.Page,
		TitleContains: v.TitleContains,
		URLContains:   v.URLContains,
		Script:        v.Script,
	}
	if v.Indicator != "" {
		texts, ok := locators.Indicator(v.Indicator)
		if !ok {
			return nil, fmt.Errorf("unknown indicator %q", v.Indicator)
		}
		out.TextAny = append(out.TextAny, texts...)
	}
	if v.Count != "" || v.Of != nil {
		if v.Count == "" || v.Of == nil {
			return nil, fmt.Errorf("verify count needs both count and of")
		}
		strategies, err := v.Of.resolve(locators)
		if err != nil {
			return nil, err
		}
		out.Count = &CountCheck{Expected: v.Count, Strategies: strategies, Scope: v.Scope}
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
