package learnpress

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmsqa/flowrunner/pkg/core"
	"github.com/lmsqa/flowrunner/pkg/driver/fixture"
	"github.com/lmsqa/flowrunner/pkg/executor"
	"github.com/lmsqa/flowrunner/pkg/flow"
	"github.com/lmsqa/flowrunner/pkg/session"
)

func mustLocators(t *testing.T) *flow.LocatorSet {
	t.Helper()
	set, err := Locators()
	require.NoError(t, err)
	return set
}

func TestBundledWorkflowsParse(t *testing.T) {
	locators := mustLocators(t)

	wfs, err := Workflows(locators)
	require.NoError(t, err)

	var names []string
	for _, wf := range wfs {
		names = append(names, wf.Name())
	}
	assert.Equal(t, []string{
		"create-course",
		"enroll-course",
		"courses-per-page[PER_PAGE=1]",
		"courses-per-page[PER_PAGE=4]",
	}, names)

	login, err := Login(locators)
	require.NoError(t, err)
	assert.Equal(t, "login", login.Name())
	assert.True(t, login.Config.HasTag("auth"))
	assert.Equal(t, "dashboard", login.Steps[len(login.Steps)-1].Name)
}

func TestWorkflowFiles(t *testing.T) {
	names, err := WorkflowFiles()
	require.NoError(t, err)
	require.Len(t, names, 3)
	assert.Equal(t, "workflows/01-create-course.yaml", names[0])

	src, err := Source(names[0])
	require.NoError(t, err)
	assert.Contains(t, string(src), "name: create-course")
}

func TestLocatorsCoverBothLocales(t *testing.T) {
	locators := mustLocators(t)
	assert.Equal(t, []string{"en", "vi"}, locators.Locales)

	texts, ok := locators.Indicator("dashboard")
	require.True(t, ok)
	assert.Equal(t, []string{"Dashboard", "Bảng tin"}, texts)

	strategies, ok := locators.Strategies("add-new-button")
	require.True(t, ok)
	require.Len(t, strategies, 3)
	assert.Equal(t, flow.ByCSS, strategies[0].By)
	assert.Equal(t, flow.ByText, strategies[1].By)
	assert.Equal(t, "a", strategies[1].Within)
}

func TestLoadLocatorsOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
locators:
  add-new-button:
    - css: a.add-course
indicators:
  dashboard:
    en: [Home]
`), 0o644))

	set, err := LoadLocators(path, []string{"en"})
	require.NoError(t, err)

	strategies, _ := set.Strategies("add-new-button")
	assert.Equal(t, []flow.Strategy{{By: flow.ByCSS, Value: "a.add-course"}}, strategies)
	_, ok := set.Strategies("publish-button")
	assert.True(t, ok, "defaults are kept")

	texts, _ := set.Indicator("dashboard")
	assert.Equal(t, []string{"Home"}, texts)
	texts, _ = set.Indicator("post-published")
	assert.Equal(t, []string{"Post published"}, texts)
}

func TestLoadLocatorsMissingFile(t *testing.T) {
	_, err := LoadLocators(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

// wordpress simulates the LearnPress screens the bundled workflows visit.
func wordpress() map[string]fixture.Page {
	courseCards := ""
	for _, slug := range []string{"intro", "php", "go", "sql"} {
		courseCards += `<li class="course"><h3>` + slug + `</h3><div class="course-button-read-more"><a href="/courses/` + slug + `/">Read more</a></div></li>`
	}
	return map[string]fixture.Page{
		"/wp-login.php": {HTML: `<html><head><title>Log In</title></head><body class="login">
<form id="loginform" action="/wp-admin/"><input id="user_login" name="log"><input id="user_pass" name="pwd" type="password"><input id="wp-submit" type="submit" value="Log In"></form>
</body></html>`},
		"/wp-admin/": {HTML: `<html><head><title>Dashboard</title></head><body><div id="wpadminbar"></div><h1>Dashboard</h1></body></html>`},

		"/wp-admin/edit.php?post_type=lp_course": {HTML: `<html><head><title>Courses</title></head><body class="post-type-lp_course">
<div class="wrap"><h1 class="wp-heading-inline">Courses</h1><a class="page-title-action" href="/wp-admin/post-new.php?post_type=lp_course">Add New</a></div>
</body></html>`},
		"/wp-admin/post-new.php": {HTML: `<html><head><title>Add New Course</title></head><body>
<form action="/wp-admin/post.php?post=42&action=edit">
<input id="title" name="post_title">
<iframe id="content_ifr" data-frame="/wp-admin/editor-frame.html"></iframe>
<textarea id="content" style="display: none"></textarea>
<input id="publish" name="publish" type="submit" value="Publish">
</form></body></html>`},
		"/wp-admin/editor-frame.html": {HTML: `<html><body id="tinymce" contenteditable="true"></body></html>`},
		"/wp-admin/post.php": {
			HTML: `<html><head><title>Edit Course</title></head><body><div id="poststuff"></div></body></html>`,
			Revisions: []fixture.Revision{{
				After: 30 * time.Millisecond,
				HTML: `<html><head><title>Edit Course</title></head><body>
<div id="message" class="updated notice notice-success"><p>Post published. <a href="/courses/test-course/">View post</a></p></div>
</body></html>`,
			}},
		},
		"/courses/test-course/": {HTML: `<html><head><title>Test Course 120000 – LMS</title></head><body class="single-lp_course"></body></html>`},

		"/courses/": {HTML: `<html><head><title>Courses</title></head><body><ul class="learn-press-courses">` + courseCards + `</ul></body></html>`},
		"/courses/intro/": {HTML: `<html><head><title>Intro</title></head><body class="single-lp_course">
<form class="enroll-course" action="/lp-checkout/"><button type="submit">Start Now</button></form>
</body></html>`},
		"/courses/intro/?enrolled=1": {HTML: `<html><head><title>Intro</title></head><body class="single-lp_course">
<button class="wp-block-learnpress-course-button lp-button btn-finish-course">Continue</button>
</body></html>`},
		"/lp-checkout/": {HTML: `<html><head><title>Checkout</title></head><body>
<form id="learn-press-checkout-form" class="lp-checkout-form" action="/lp-checkout/lp-order-received/7/">
<input id="username"><input id="password" type="password">
<button id="learn-press-checkout-place-order" type="submit">Place order</button>
</form></body></html>`},
		"/lp-checkout/lp-order-received/7/": {HTML: `<html><head><title>Order received</title></head><body>
<table><tr class="item"><td><a href="/courses/intro/?enrolled=1">Intro</a></td></tr></table>
</body></html>`},

		"/wp-admin/themes.php": {HTML: `<html><head><title>Themes</title></head><body><div id="wpbody-content">
<div class="theme active" data-slug="twentytwentyfour"><h2 class="theme-name">Active: Twenty Twenty-Four</h2></div>
<div class="theme" data-slug="twentytwentyone"><h2 class="theme-name">Twenty Twenty-One</h2>
<a class="button activate" href="/wp-admin/themes.php?activated=true">Activate</a></div>
</div></body></html>`},
		"/wp-admin/themes.php?activated=true": {HTML: `<html><head><title>Themes</title></head><body><div id="wpbody-content">
<div class="theme active" data-slug="twentytwentyone"><h2 class="theme-name">Active: Twenty Twenty-One</h2></div>
<div class="theme" data-slug="twentytwentyfour"><h2 class="theme-name">Twenty Twenty-Four</h2></div>
</div></body></html>`},
		"/wp-admin/admin.php?page=learn-press-settings&tab=courses": {HTML: `<html><head><title>Settings</title></head><body>
<div class="learn-press-settings-wrap">
<a class="nav-tab" href="/wp-admin/admin.php?page=learn-press-settings&tab=general">General</a>
<a class="nav-tab nav-tab-active" href="/wp-admin/admin.php?page=learn-press-settings&tab=courses">Courses</a>
<form class="learn-press-settings" action="/wp-admin/admin.php?page=learn-press-settings&tab=courses">
<input id="learn_press_archive_course_limit" name="learn_press_archive_course_limit" value="10">
<p class="lp-admin-settings-buttons"><button class="button button-primary" type="submit">Save settings</button></p>
</form></div></body></html>`},
	}
}

type siteLauncher struct {
	browser *fixture.Browser
}

func (l *siteLauncher) Launch(ctx context.Context) (core.Browser, error) {
	l.browser = fixture.New(fixture.Config{Pages: wordpress()})
	return l.browser, nil
}

func runBundled(t *testing.T) (*core.RunResult, *fixture.Browser) {
	t.Helper()
	locators := mustLocators(t)
	wfs, err := Workflows(locators)
	require.NoError(t, err)
	login, err := Login(locators)
	require.NoError(t, err)

	cfg := executor.DefaultConfig()
	cfg.Timeout = 500 * time.Millisecond
	cfg.PollInterval = 10 * time.Millisecond
	cfg.ProbeTimeout = 50 * time.Millisecond
	cfg.RunStart = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cfg.Artifacts.Dir = filepath.Join(t.TempDir(), "screenshots")

	launcher := &siteLauncher{}
	runner := executor.NewRunner(launcher, executor.RunnerConfig{
		Session:  session.Config{BaseURL: "http://wp.local", Username: "admin", Password: "admin"},
		Executor: cfg,
		Login:    &login,
	})
	result, err := runner.Run(context.Background(), wfs)
	require.NoError(t, err)
	return result, launcher.browser
}

func TestBundledWorkflowsAgainstSimulatedSite(t *testing.T) {
	result, browser := runBundled(t)
	require.Len(t, result.Workflows, 4)

	byName := make(map[string]core.WorkflowReport)
	for _, wf := range result.Workflows {
		byName[wf.Name] = wf
	}

	t.Run("create-course", func(t *testing.T) {
		rep := byName["create-course"]
		require.True(t, rep.Success, rep.Error)
		assert.Contains(t, browser.TypedText(), fixture.Typed{Target: "input#title", Text: "Test Course 120000"})
		assert.Contains(t, browser.TypedText(), fixture.Typed{Target: "body#tinymce", Text: "Course created by an automated run on 20260101."})
		for _, step := range rep.Steps {
			if step.Name == "enter-plain-description" || step.Name == "close-media-modal" {
				assert.Equal(t, core.StatusSkipped, step.Status, step.Name)
			}
		}
	})

	t.Run("enroll-course", func(t *testing.T) {
		rep := byName["enroll-course"]
		require.True(t, rep.Success, rep.Error)
		assert.Contains(t, browser.TypedText(), fixture.Typed{Target: "input#username", Text: "admin"})
		assert.Contains(t, browser.Visits(), "/lp-checkout/lp-order-received/7/")
	})

	t.Run("courses-per-page", func(t *testing.T) {
		four := byName["courses-per-page[PER_PAGE=4]"]
		assert.True(t, four.Success, four.Error)

		one := byName["courses-per-page[PER_PAGE=1]"]
		require.False(t, one.Success)
		require.NotNil(t, one.Failure)
		assert.Equal(t, "per-page-count", one.Failure.StepName)
		assert.Equal(t, core.StageVerifying, one.Failure.Stage)
		assert.Contains(t, one.Error, "expected 1, observed 4")
		assert.Len(t, one.Diagnostics, 1)
		assert.Contains(t, browser.TypedText(), fixture.Typed{Target: "input#learn_press_archive_course_limit", Text: "1"})
	})

	assert.Equal(t, 1, browser.Closes())
	assert.False(t, result.Success())
}
