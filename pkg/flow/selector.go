package flow

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// By names a way of locating an element.
type By string

// Strategy kinds.
const (
	ByID    By = "id"
	ByName  By = "name"
	ByCSS   By = "css"
	ByClass By = "class"
	ByTag   By = "tag"
	ByXPath By = "xpath"
	ByText  By = "text" // Candidates from Within whose visible text contains Value
	ByAttr  By = "attr" // Candidates from Within whose attribute Attr contains Value
)

// Strategy is one method of locating an element.
// Pure data structure - drivers decide how to use it.
type Strategy struct {
	By     By
	Value  string
	Within string // Candidate CSS for text/attr strategies (default "*")
	Attr   string // Attribute name for attr strategies
}

// strategyRaw is used for YAML parsing: exactly one kind key is set.
type strategyRaw struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	CSS      string `yaml:"css"`
	Class    string `yaml:"class"`
	Tag      string `yaml:"tag"`
	XPath    string `yaml:"xpath"`
	Text     string `yaml:"text"`
	Attr     string `yaml:"attr"`
	Contains string `yaml:"contains"`
	Within   string `yaml:"within"`
}

// UnmarshalYAML allows Strategy to be unmarshaled from a CSS string or a mapping.
func (s *Strategy) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*s = Strategy{By: ByCSS, Value: node.Value}
		return nil
	}

	var raw strategyRaw
	if err := node.Decode(&raw); err != nil {
		return err
	}

	var kinds []Strategy
	add := func(by By, value string) {
		if value != "" {
			kinds = append(kinds, Strategy{By: by, Value: value})
		}
	}
	add(ByID, raw.ID)
	add(ByName, raw.Name)
	add(ByCSS, raw.CSS)
	add(ByClass, raw.Class)
	add(ByTag, raw.Tag)
	add(ByXPath, raw.XPath)
	add(ByText, raw.Text)
	if raw.Attr != "" {
		kinds = append(kinds, Strategy{By: ByAttr, Attr: raw.Attr, Value: raw.Contains})
	}

	if len(kinds) != 1 {
		return fmt.Errorf("line %d: strategy must set exactly one of id, name, css, class, tag, xpath, text, attr", node.Line)
	}
	*s = kinds[0]
	s.Within = raw.Within
	return s.Validate()
}

// Validate reports structural problems.
func (s Strategy) Validate() error {
	switch s.By {
	case ByID, ByName, ByCSS, ByClass, ByTag, ByXPath, ByText:
		if s.Value == "" {
			return fmt.Errorf("%s strategy needs a value", s.By)
		}
	case ByAttr:
		if s.Attr == "" || s.Value == "" {
			return fmt.Errorf("attr strategy needs attr and contains")
		}
	default:
		return fmt.Errorf("unknown strategy %q", s.By)
	}
	if s.Within != "" && s.By != ByText && s.By != ByAttr {
		return fmt.Errorf("within only applies to text and attr strategies")
	}
	return nil
}

// CSS returns the equivalent CSS selector for kinds that have one.
func (s Strategy) CSS() (string, bool) {
	switch s.By {
	case ByID:
		return "[id=" + cssString(s.Value) + "]", true
	case ByName:
		return "[name=" + cssString(s.Value) + "]", true
	case ByCSS:
		return s.Value, true
	case ByClass:
		return "." + s.Value, true
	case ByTag:
		return s.Value, true
	default:
		return "", false
	}
}

// Candidates returns the CSS selector whose matches text/attr strategies filter.
func (s Strategy) Candidates() string {
	if s.Within != "" {
		return s.Within
	}
	return "*"
}

// Matches applies the text/attr filter to a candidate's text and attribute value.
func (s Strategy) Matches(text, attr string) bool {
	switch s.By {
	case ByText:
		return strings.Contains(strings.TrimSpace(text), s.Value)
	case ByAttr:
		return strings.Contains(attr, s.Value)
	default:
		return false
	}
}

// Describe returns a human-readable description like css="a.page-title-action".
func (s Strategy) Describe() string {
	var d string
	switch s.By {
	case ByAttr:
		d = fmt.Sprintf("attr %s contains %q", s.Attr, s.Value)
	default:
		d = fmt.Sprintf("%s=%q", s.By, s.Value)
	}
	if s.Within != "" {
		d += " within " + s.Within
	}
	return d
}

// DescribeAll describes every strategy in order.
func DescribeAll(strategies []Strategy) []string {
	out := make([]string, len(strategies))
	for i, s := range strategies {
		out[i] = s.Describe()
	}
	return out
}

func cssString(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	return `"` + v + `"`
}
