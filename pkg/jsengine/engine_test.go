package jsengine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEval(t *testing.T) {
	engine := New()
	defer engine.Close()

	tests := []struct {
		name     string
		script   string
		expected interface{}
	}{
		{"simple number", "1 + 2", int64(3)},
		{"string concat", "'hello' + ' ' + 'world'", "hello world"},
		{"boolean", "true && false", false},
		{"null coalescing", "null ?? 'default'", "default"},
		{"array length", "[1, 2, 3].length", int64(3)},
		{"object property", "({name: 'test'}).name", "test"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.Eval(tt.script)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestSetVariable(t *testing.T) {
	engine := New()
	defer engine.Close()

	engine.SetVariable("USERNAME", "admin")
	engine.SetVariables(map[string]string{"PER_PAGE": "4", "BASE_URL": "http://wp.local"})

	result, err := engine.EvalString("USERNAME")
	require.NoError(t, err)
	assert.Equal(t, "admin", result)

	result, err = engine.EvalString("Number(PER_PAGE) * 2")
	require.NoError(t, err)
	assert.Equal(t, "8", result)

	v, ok := engine.Variable("BASE_URL")
	assert.True(t, ok)
	assert.Equal(t, "http://wp.local", v)

	vars := engine.Variables()
	assert.Len(t, vars, 3)
	vars["USERNAME"] = "changed"
	v, _ = engine.Variable("USERNAME")
	assert.Equal(t, "admin", v)
}

func TestExpandVariables(t *testing.T) {
	engine := New()
	defer engine.Close()

	engine.SetVariable("RUN_HMS", "142501")
	engine.SetVariable("PER_PAGE", "4")

	tests := []struct {
		input string
		want  string
	}{
		{"Test Course ${RUN_HMS}", "Test Course 142501"},
		{"${PER_PAGE}", "4"},
		{"${Number(PER_PAGE) + 1} items", "5 items"},
		{"no variables", "no variables"},
		{"${RUN_HMS}-${PER_PAGE}", "142501-4"},
		{"unmatched ${brace", "unmatched ${brace"},
		{"${({a: 1}).a}", "1"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := engine.ExpandVariables(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpandVariables_UndefinedIsError(t *testing.T) {
	engine := New()
	defer engine.Close()

	got, err := engine.ExpandVariables("Course ${COURSE_TITLE}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COURSE_TITLE")
	assert.Equal(t, "Course ${COURSE_TITLE}", got)
}

func TestEvalBool(t *testing.T) {
	engine := New()
	defer engine.Close()
	engine.SetVariable("url", "http://wp.local/lp-order-received/12")

	tests := []struct {
		script string
		want   bool
	}{
		{"url.includes('lp-order-received')", true},
		{"url.startsWith('https')", false},
		{"1", true},
		{"0", false},
		{"''", false},
		{"'x'", true},
		{"null", false},
		{"({})", true},
	}
	for _, tt := range tests {
		t.Run(tt.script, func(t *testing.T) {
			got, err := engine.EvalBool(context.Background(), tt.script)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := engine.EvalBool(context.Background(), "syntax error (")
	assert.Error(t, err)
}

func TestSetGlobal(t *testing.T) {
	engine := New()
	defer engine.Close()

	engine.SetGlobal("title", "Test Course – WP")
	ok, err := engine.EvalBool(context.Background(), "title.includes('Test Course')")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, engine.Variables())
}

func TestEvalContext_Interrupted(t *testing.T) {
	engine := New()
	defer engine.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := engine.EvalContext(ctx, "while (true) {}")
	assert.Error(t, err)

	// The engine stays usable after an interrupted script.
	result, err := engine.EvalString("1 + 1")
	require.NoError(t, err)
	assert.Equal(t, "2", result)
}

func TestEvalContext_AlreadyCancelled(t *testing.T) {
	engine := New()
	defer engine.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := engine.EvalContext(ctx, "1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestJSONAndOutput(t *testing.T) {
	engine := New()
	defer engine.Close()

	_, err := engine.Eval(`output.count = json('{"n": 4}').n`)
	require.NoError(t, err)
	assert.EqualValues(t, 4, engine.GetOutput()["count"])
}

func TestConsoleDoesNotPanic(t *testing.T) {
	engine := New()
	defer engine.Close()

	_, err := engine.Eval("console.log('a', 1); console.warn('b'); console.error('c')")
	assert.NoError(t, err)
}

func TestClose_Idempotent(t *testing.T) {
	engine := New()
	engine.Close()
	assert.NotPanics(t, engine.Close)
}
