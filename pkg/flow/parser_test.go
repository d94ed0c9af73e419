package flow

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testLocators = `
locales: [en, vi]
locators:
  add-new-button:
    - css: a.page-title-action
    - text: Add New
      within: a
  course-items:
    - tag: li
indicators:
  post-published:
    en: [Post published]
    vi: ["Bài viết đã được xuất bản"]
    fr: [Article publié]
`

func mustLocators(t *testing.T) *LocatorSet {
	t.Helper()
	set, err := ParseLocators([]byte(testLocators), "locators.yaml")
	require.NoError(t, err)
	return set
}

func TestParse_ConfigAndSteps(t *testing.T) {
	src := `
name: create-course
tags: [admin, smoke]
env:
  COURSE_TITLE: "Test Course ${RUN_HMS}"
---
- name: open-courses
  navigate: /wp-admin/edit.php?post_type=lp_course
- name: locate-add-new
  locate: add-new-button
  timeout: 15s
- name: click-add-new
  target: locate-add-new
  wait:
    clickable: true
  click: true
- name: fill-title
  locate: {id: title}
  type: "${COURSE_TITLE}"
- name: wait-published
  wait:
    indicator: post-published
  optional: [timeout]
`
	wfs, err := Parse([]byte(src), "create-course.yaml", mustLocators(t))
	require.NoError(t, err)
	require.Len(t, wfs, 1)

	wf := wfs[0]
	assert.Equal(t, "create-course", wf.Name())
	assert.True(t, wf.Config.HasTag("smoke"))
	assert.Equal(t, "Test Course ${RUN_HMS}", wf.Config.Env["COURSE_TITLE"])
	require.Len(t, wf.Steps, 5)

	assert.Equal(t, Action{Kind: ActionNavigate, URL: "/wp-admin/edit.php?post_type=lp_course"}, wf.Steps[0].Action)

	locate := wf.Steps[1]
	require.Len(t, locate.Strategies, 2)
	assert.Equal(t, ByCSS, locate.Strategies[0].By)
	assert.Equal(t, ByText, locate.Strategies[1].By)
	assert.Equal(t, 15*time.Second, locate.Timeout)

	click := wf.Steps[2]
	assert.Equal(t, "locate-add-new", click.Target)
	require.NotNil(t, click.Wait)
	assert.Equal(t, ConditionClickable, click.Wait.Kind)
	assert.Empty(t, click.Wait.Strategies)

	assert.Equal(t, ActionType, wf.Steps[3].Action.Kind)
	assert.Equal(t, []Strategy{{By: ByID, Value: "title"}}, wf.Steps[3].Strategies)

	wait := wf.Steps[4]
	require.NotNil(t, wait.Wait)
	assert.Equal(t, ConditionText, wait.Wait.Kind)
	assert.Equal(t, []string{"Post published", "Bài viết đã được xuất bản"}, wait.Wait.Values, "only configured locales, in locale order")
	assert.True(t, wait.SkipsOn(OptionalTimeout))
	assert.False(t, wait.SkipsOn(OptionalNotFound))
}

func TestParse_StepsOnlyUsesFileName(t *testing.T) {
	wfs, err := Parse([]byte("- name: home\n  navigate: /\n"), "flows/enroll.yml", nil)
	require.NoError(t, err)
	assert.Equal(t, "enroll", wfs[0].Name())
}

func TestParse_VerifyCountAndMatrix(t *testing.T) {
	src := `
name: courses-per-page
matrix:
  PER_PAGE: ["1", "4"]
---
- name: locate-list
  locate: {css: ul.learn-press-courses}
- name: count-items
  verify:
    count: "${PER_PAGE}"
    of: course-items
    scope: locate-list
`
	wfs, err := Parse([]byte(src), "cpp.yaml", mustLocators(t))
	require.NoError(t, err)
	require.Len(t, wfs, 2)

	assert.Equal(t, "courses-per-page[PER_PAGE=1]", wfs[0].Name())
	assert.Equal(t, "1", wfs[0].Config.Env["PER_PAGE"])
	assert.Equal(t, "courses-per-page[PER_PAGE=4]", wfs[1].Name())

	count := wfs[1].Steps[1].Verify.Count
	require.NotNil(t, count)
	assert.Equal(t, "${PER_PAGE}", count.Expected)
	assert.Equal(t, "locate-list", count.Scope)
	assert.Equal(t, []Strategy{{By: ByTag, Value: "li"}}, count.Strategies)
}

func TestParse_OptionalTrue(t *testing.T) {
	src := `
- name: checkout-form
  wait:
    present: {css: "form#learn-press-checkout-form"}
  optional: true
- name: fill-user
  when: checkout-form
  locate: {id: username}
  scope: checkout-form
  type: admin
`
	wfs, err := Parse([]byte(src), "x.yaml", nil)
	require.NoError(t, err)
	step := wfs[0].Steps[0]
	assert.True(t, step.SkipsOn(OptionalNotFound))
	assert.True(t, step.SkipsOn(OptionalTimeout))
	assert.Equal(t, "checkout-form", wfs[0].Steps[1].When)
}

func TestParse_VerifyTextOnWaitedElement(t *testing.T) {
	src := `
- name: heading
  wait:
    present: {css: h1}
  verify:
    text: [Courses, Khóa học]
- name: clickable-button
  wait:
    clickable: add-new-button
  verify:
    notText: [Disabled]
`
	wfs, err := Parse([]byte(src), "x.yaml", mustLocators(t))
	require.NoError(t, err)
	steps := wfs[0].Steps
	require.Len(t, steps, 2)
	assert.False(t, steps[0].Locates())
	assert.Equal(t, []string{"Courses", "Khóa học"}, steps[0].Verify.TextAny)
	assert.Len(t, steps[1].Wait.Strategies, 2)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"empty", "", "empty workflow file"},
		{"unknown locator", "- name: a\n  locate: nope\n", `unknown locator "nope"`},
		{"unknown indicator", "- name: a\n  wait:\n    indicator: nope\n", `unknown indicator "nope"`},
		{"two actions", "- name: a\n  locate: add-new-button\n  click: true\n  type: x\n", "at most one action"},
		{"two conditions", "- name: a\n  wait:\n    url: x\n    title: y\n", "exactly one"},
		{"bad timeout", "- name: a\n  navigate: /\n  timeout: soon\n", "invalid timeout"},
		{"forward reference", "- name: a\n  target: b\n  click: true\n- name: b\n  locate: add-new-button\n", `unknown or later step "b"`},
		{"duplicate", "- name: a\n  navigate: /\n- name: a\n  navigate: /\n", "duplicate name"},
		{"click without element", "- name: a\n  click: true\n", "click needs locate or target"},
		{"count without of", "- name: a\n  verify:\n    count: \"3\"\n", "count and of"},
		{"verify text without element", "- name: a\n  verify:\n    text: Courses\n", "verify text needs an element"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src), "bad.yaml", mustLocators(t))
			require.Error(t, err)
			var pe *ParseError
			assert.True(t, errors.As(err, &pe))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "home.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- name: home\n  navigate: /\n"), 0o644))

	wfs, err := ParseFile(path, nil)
	require.NoError(t, err)
	assert.Equal(t, path, wfs[0].SourcePath)

	_, err = ParseFile(filepath.Join(dir, "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestSplitYAMLDocuments_KeepsBlockScalars(t *testing.T) {
	content := "name: x\n---\n- name: s\n  verify:\n    script: |\n      a\n      ---\n      b\n"
	parts := splitYAMLDocuments(content)
	require.Len(t, parts, 2)
	assert.Contains(t, parts[1], "---")
}
