package playwright

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lmsqa/flowrunner/pkg/flow"
)

func TestSelectorFor(t *testing.T) {
	tests := []struct {
		name     string
		strategy flow.Strategy
		selector string
		hasText  string
	}{
		{"css", flow.Strategy{By: flow.ByCSS, Value: "a.page-title-action"}, "a.page-title-action", ""},
		{"id", flow.Strategy{By: flow.ByID, Value: "publish"}, `[id="publish"]`, ""},
		{"xpath", flow.Strategy{By: flow.ByXPath, Value: "//a[1]"}, "xpath=//a[1]", ""},
		{"text within", flow.Strategy{By: flow.ByText, Value: "Add New", Within: "a"}, "a", "Add New"},
		{"text anywhere", flow.Strategy{By: flow.ByText, Value: "Add New"}, "*", "Add New"},
		{"attr", flow.Strategy{By: flow.ByAttr, Attr: "href", Value: `post-new.php?post_type="lp`, Within: "a"}, `a[href*="post-new.php?post_type=\"lp"]`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			selector, hasText := selectorFor(tt.strategy)
			assert.Equal(t, tt.selector, selector)
			assert.Equal(t, tt.hasText, hasText)
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, Chromium, cfg.Browser)
	assert.Equal(t, 1280, cfg.Width)
	assert.Equal(t, 720, cfg.Height)
	assert.Equal(t, DefaultActionTimeout, cfg.ActionTimeout)

	cfg = Config{Browser: Firefox, Width: 800, Height: 600}.withDefaults()
	assert.Equal(t, Firefox, cfg.Browser)
	assert.Equal(t, 800, cfg.Width)
}
