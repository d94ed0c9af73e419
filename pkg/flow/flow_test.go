package flow

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflow_ExpandWithoutMatrix(t *testing.T) {
	wf := Workflow{Config: Config{Name: "login"}, Steps: []Step{{Name: "a"}}}
	out := wf.Expand()
	require.Len(t, out, 1)
	assert.Equal(t, "login", out[0].Name())
}

func TestWorkflow_ExpandCartesian(t *testing.T) {
	wf := Workflow{Config: Config{
		Name:   "grid",
		Env:    map[string]string{"BASE": "x"},
		Matrix: map[string][]string{"B": {"1", "2"}, "A": {"x", "y"}},
	}}

	out := wf.Expand()
	require.Len(t, out, 4)

	var names []string
	for _, w := range out {
		names = append(names, w.Name())
		assert.Nil(t, w.Config.Matrix)
		assert.Equal(t, "x", w.Config.Env["BASE"])
	}
	assert.Equal(t, []string{
		"grid[A=x,B=1]", "grid[A=x,B=2]", "grid[A=y,B=1]", "grid[A=y,B=2]",
	}, names)

	// Expansion must not write into the original env.
	assert.Len(t, wf.Config.Env, 1)
}

func TestWorkflow_StepIndex(t *testing.T) {
	wf := Workflow{Steps: []Step{{Name: "a"}, {Name: "b"}}}
	assert.Equal(t, 1, wf.StepIndex("b"))
	assert.Equal(t, -1, wf.StepIndex("c"))
}

func TestWorkflow_Validate(t *testing.T) {
	css := []Strategy{{By: ByCSS, Value: "a"}}
	tests := []struct {
		name  string
		steps []Step
		want  string
	}{
		{"no steps", nil, "has no steps"},
		{"missing name", []Step{{}}, "missing name"},
		{"self reference", []Step{{Name: "a", Target: "a", Action: Action{Kind: ActionClick}}}, "unknown or later step"},
		{"when and unless", []Step{
			{Name: "a", Strategies: css},
			{Name: "b", Strategies: css, When: "a", Unless: "a"},
		}, "mutually exclusive"},
		{"locate and target", []Step{
			{Name: "a", Strategies: css},
			{Name: "b", Strategies: css, Target: "a"},
		}, "mutually exclusive"},
		{"unknown optional", []Step{{Name: "a", Strategies: css, Optional: []Optional{"never"}}}, "unknown optional outcome"},
		{"store without var", []Step{{Name: "a", Strategies: css, Action: Action{Kind: ActionStore}}}, "store needs var"},
		{"text verify without element", []Step{{Name: "a", Verify: &Verify{TextAny: []string{"x"}}}}, "needs an element"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wf := Workflow{Config: Config{Name: "w"}, Steps: tt.steps}
			err := wf.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestWorkflow_ValidateAcceptsEarlierReferences(t *testing.T) {
	css := []Strategy{{By: ByCSS, Value: "ul"}}
	wf := Workflow{Config: Config{Name: "w"}, Steps: []Step{
		{Name: "list", Strategies: css},
		{Name: "first", Strategies: []Strategy{{By: ByTag, Value: "li"}}, Scope: "list"},
		{Name: "open", Target: "first", Action: Action{Kind: ActionClick}, When: "first"},
		{Name: "count", Verify: &Verify{Count: &CountCheck{Expected: "4", Strategies: css, Scope: "list"}}},
	}}
	assert.NoError(t, wf.Validate())
}

func TestStep_ExpandedDeepCopies(t *testing.T) {
	step := Step{
		Name:       "s",
		Strategies: []Strategy{{By: ByText, Value: "${X}", Within: "a"}},
		Action:     Action{Kind: ActionType, Text: "hello ${X}"},
		Wait:       &Condition{Kind: ConditionText, Values: []string{"${X}"}},
		Verify: &Verify{
			TextAny: []string{"${X}"},
			Count:   &CountCheck{Expected: "${X}", Strategies: []Strategy{{By: ByTag, Value: "li"}}},
		},
	}
	upper := func(s string) string { return strings.ReplaceAll(s, "${X}", "42") }

	out := step.Expanded(upper)
	assert.Equal(t, "42", out.Strategies[0].Value)
	assert.Equal(t, "hello 42", out.Action.Text)
	assert.Equal(t, []string{"42"}, out.Wait.Values)
	assert.Equal(t, []string{"42"}, out.Verify.TextAny)
	assert.Equal(t, "42", out.Verify.Count.Expected)

	// The original is untouched.
	assert.Equal(t, "${X}", step.Strategies[0].Value)
	assert.Equal(t, []string{"${X}"}, step.Wait.Values)
	assert.Equal(t, "${X}", step.Verify.Count.Expected)
}

func TestStep_Describe(t *testing.T) {
	s := Step{Name: "publish", Action: Action{Kind: ActionClick}}
	assert.Equal(t, "publish (click)", s.Describe())
	s = Step{Name: "wait"}
	assert.Equal(t, "wait", s.Describe())
}

func TestCondition_Describe(t *testing.T) {
	c := &Condition{Kind: ConditionURL, Values: []string{"lp-order-received"}}
	assert.Equal(t, `url contains any of ["lp-order-received"]`, c.Describe())
	c = &Condition{Kind: ConditionClickable}
	assert.Equal(t, "clickable element", c.Describe())
}
