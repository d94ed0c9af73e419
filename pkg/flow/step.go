package flow

import (
	"fmt"
	"time"
)

// ActionKind represents the interaction a step performs.
type ActionKind string

// Action kinds.
const (
	ActionNone           ActionKind = ""
	ActionNavigate       ActionKind = "navigate"
	ActionClick          ActionKind = "click"
	ActionType           ActionKind = "type"
	ActionFrame          ActionKind = "frame"          // Switch into the located iframe
	ActionDefaultContent ActionKind = "defaultContent" // Switch back to the top document
	ActionStore          ActionKind = "store"          // Store element text or attribute in a variable
	ActionSnapshot       ActionKind = "snapshot"       // Checkpoint screenshot
)

// NeedsElement reports whether the action operates on an element.
func (k ActionKind) NeedsElement() bool {
	switch k {
	case ActionClick, ActionType, ActionFrame, ActionStore:
		return true
	}
	return false
}

// Action is what a step does once its element is located and its wait is satisfied.
type Action struct {
	Kind     ActionKind
	URL      string // navigate
	Text     string // type
	Variable string // store
	Attr     string // store: attribute name, empty stores the element text
	Label    string // snapshot
}

// ConditionKind names a wait condition.
type ConditionKind string

// Condition kinds.
const (
	ConditionPresent   ConditionKind = "present"
	ConditionClickable ConditionKind = "clickable"
	ConditionURL       ConditionKind = "url"
	ConditionText      ConditionKind = "text"
	ConditionTitle     ConditionKind = "title"
)

// Condition is what a step waits for before acting.
type Condition struct {
	Kind       ConditionKind
	Strategies []Strategy // present/clickable; empty clickable means the step's own element
	Scope      string     // Step whose element scopes present/clickable lookups
	Values     []string   // url/text/title: any of these satisfies the condition
}

// Describe returns a human-readable description.
func (c *Condition) Describe() string {
	switch c.Kind {
	case ConditionPresent, ConditionClickable:
		if len(c.Strategies) == 0 {
			return string(c.Kind) + " element"
		}
		return fmt.Sprintf("%s %v", c.Kind, DescribeAll(c.Strategies))
	default:
		return fmt.Sprintf("%s contains any of %q", c.Kind, c.Values)
	}
}

// CountCheck compares the number of matched elements with an expected integer.
type CountCheck struct {
	Expected   string // Integer, may contain ${...}
	Strategies []Strategy
	Scope      string
}

// Verify holds the post-action assertions of a step. All configured checks must pass.
type Verify struct {
	TextAny    []string // Element (or page) text must contain one of these
	TextNone   []string // ... and none of these
	IgnoreCase bool
	OnPage     bool // Check page text instead of the step's element

	Count         *CountCheck
	TitleContains []string
	URLContains   []string
	Script        string // JS expression that must evaluate truthy
}

// Optional lists outcomes declared as Success-with-skip.
type Optional string

// Optional outcomes.
const (
	OptionalNotFound Optional = "not_found"
	OptionalTimeout  Optional = "timeout"
)

// Step is the smallest executable unit: locate, wait, act, verify.
// Steps are immutable values; the executor works on expanded copies.
type Step struct {
	Name       string
	Strategies []Strategy // Locate: ordered fallback strategies
	Scope      string     // Step whose located element scopes the lookup
	Target     string     // Step whose located element the action uses
	Wait       *Condition
	Action     Action
	Verify     *Verify
	Timeout    time.Duration // Overrides the executor default
	Optional   []Optional
	When       string // Run only if this earlier step ran
	Unless     string // Run only if this earlier step was skipped
}

// Locates returns true if the step resolves its own element.
func (s *Step) Locates() bool {
	return len(s.Strategies) > 0
}

// SkipsOn reports whether the outcome is declared optional.
func (s *Step) SkipsOn(o Optional) bool {
	for _, opt := range s.Optional {
		if opt == o {
			return true
		}
	}
	return false
}

// Describe returns a human-readable description.
func (s *Step) Describe() string {
	if s.Action.Kind != ActionNone {
		return fmt.Sprintf("%s (%s)", s.Name, s.Action.Kind)
	}
	return s.Name
}

// ownsElement reports whether the step has an element by the time it verifies:
// its own locate, a target step, or the element its wait found.
func (s *Step) ownsElement() bool {
	return s.Locates() || s.Target != "" || (s.Wait != nil && len(s.Wait.Strategies) > 0)
}

func (s *Step) validate() error {
	for _, st := range s.Strategies {
		if err := st.Validate(); err != nil {
			return err
		}
	}
	if s.Action.Kind.NeedsElement() && !s.Locates() && s.Target == "" {
		return fmt.Errorf("%s needs locate or target", s.Action.Kind)
	}
	if s.Locates() && s.Target != "" {
		return fmt.Errorf("locate and target are mutually exclusive")
	}
	switch s.Action.Kind {
	case ActionNavigate:
		if s.Action.URL == "" {
			return fmt.Errorf("navigate needs a url")
		}
	case ActionStore:
		if s.Action.Variable == "" {
			return fmt.Errorf("store needs var")
		}
	case ActionSnapshot:
		if s.Action.Label == "" {
			return fmt.Errorf("snapshot needs a label")
		}
	}
	if s.Wait != nil {
		switch s.Wait.Kind {
		case ConditionPresent:
			if len(s.Wait.Strategies) == 0 {
				return fmt.Errorf("wait present needs strategies")
			}
		case ConditionClickable:
			if len(s.Wait.Strategies) == 0 && !s.Locates() && s.Target == "" {
				return fmt.Errorf("wait clickable needs strategies, locate or target")
			}
		case ConditionURL, ConditionText, ConditionTitle:
			if len(s.Wait.Values) == 0 {
				return fmt.Errorf("wait %s needs at least one value", s.Wait.Kind)
			}
		default:
			return fmt.Errorf("unknown wait condition %q", s.Wait.Kind)
		}
	}
	if v := s.Verify; v != nil {
		if (len(v.TextAny) > 0 || len(v.TextNone) > 0) && !v.OnPage && !s.ownsElement() {
			return fmt.Errorf("verify text needs an element or page: true")
		}
		if v.Count != nil && len(v.Count.Strategies) == 0 {
			return fmt.Errorf("verify count needs strategies")
		}
	}
	for _, o := range s.Optional {
		if o != OptionalNotFound && o != OptionalTimeout {
			return fmt.Errorf("unknown optional outcome %q", o)
		}
	}
	if s.When != "" && s.Unless != "" {
		return fmt.Errorf("when and unless are mutually exclusive")
	}
	return nil
}

// Expanded returns a copy of the step with expand applied to every user-facing string.
func (s Step) Expanded(expand func(string) string) Step {
	out := s
	out.Strategies = expandStrategies(s.Strategies, expand)
	out.Action.URL = expand(s.Action.URL)
	out.Action.Text = expand(s.Action.Text)
	out.Action.Label = expand(s.Action.Label)

	if s.Wait != nil {
		w := *s.Wait
		w.Strategies = expandStrategies(s.Wait.Strategies, expand)
		w.Values = expandAll(s.Wait.Values, expand)
		out.Wait = &w
	}
	if s.Verify != nil {
		v := *s.Verify
		v.TextAny = expandAll(s.Verify.TextAny, expand)
		v.TextNone = expandAll(s.Verify.TextNone, expand)
		v.TitleContains = expandAll(s.Verify.TitleContains, expand)
		v.URLContains = expandAll(s.Verify.URLContains, expand)
		if s.Verify.Count != nil {
			c := *s.Verify.Count
			c.Expected = expand(c.Expected)
			c.Strategies = expandStrategies(c.Strategies, expand)
			v.Count = &c
		}
		out.Verify = &v
	}
	return out
}

func expandAll(values []string, expand func(string) string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = expand(v)
	}
	return out
}

func expandStrategies(strategies []Strategy, expand func(string) string) []Strategy {
	if strategies == nil {
		return nil
	}
	out := make([]Strategy, len(strategies))
	for i, st := range strategies {
		st.Value = expand(st.Value)
		st.Within = expand(st.Within)
		out[i] = st
	}
	return out
}
