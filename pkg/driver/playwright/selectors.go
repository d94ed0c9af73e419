package playwright

import (
	"strings"

	"github.com/lmsqa/flowrunner/pkg/flow"
)

// selectorFor translates a strategy into a Playwright selector plus an optional
// has-text filter applied to its matches.
func selectorFor(s flow.Strategy) (selector, hasText string) {
	if css, ok := s.CSS(); ok {
		return css, ""
	}
	switch s.By {
	case flow.ByXPath:
		return "xpath=" + s.Value, ""
	case flow.ByText:
		return s.Candidates(), s.Value
	case flow.ByAttr:
		return s.Candidates() + "[" + s.Attr + "*=" + quote(s.Value) + "]", ""
	}
	return s.Value, ""
}

func quote(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	return `"` + v + `"`
}
