package fixture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmsqa/flowrunner/pkg/flow"
)

var ctx = context.Background()

func css(v string) flow.Strategy { return flow.Strategy{By: flow.ByCSS, Value: v} }

func newBrowser(t *testing.T, pages map[string]Page) *Browser {
	t.Helper()
	b := New(Config{Pages: pages})
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestNavigateAndFind(t *testing.T) {
	b := newBrowser(t, map[string]Page{
		"/courses/": {HTML: `<html><head><title>Courses</title></head><body>
			<ul class="learn-press-courses"><li>A</li><li>B</li><li hidden>C</li></ul></body></html>`},
	})

	require.NoError(t, b.Navigate(ctx, "/courses/"))
	u, _ := b.CurrentURL(ctx)
	assert.Equal(t, "http://wp.local/courses/", u)
	title, _ := b.Title(ctx)
	assert.Equal(t, "Courses", title)

	items, err := b.FindElements(ctx, nil, css("ul.learn-press-courses li"))
	require.NoError(t, err)
	require.Len(t, items, 3)
	text, _ := items[0].Text(ctx)
	assert.Equal(t, "A", text)

	visible, _ := b.IsVisible(ctx, items[2])
	assert.False(t, visible)
}

func TestFindScopedTextAndAttr(t *testing.T) {
	b := newBrowser(t, map[string]Page{
		"/wp-admin/admin.php": {HTML: `<body>
			<nav><a class="nav-tab" href="?tab=general">General</a><a class="nav-tab" href="?tab=courses">Courses</a></nav>
			<form id="f"><input id="username"></form><input id="username-outside">
		</body>`},
	})
	require.NoError(t, b.Navigate(ctx, "/wp-admin/admin.php"))

	tabs, err := b.FindElements(ctx, nil, flow.Strategy{By: flow.ByText, Value: "Courses", Within: "a.nav-tab"})
	require.NoError(t, err)
	require.Len(t, tabs, 1)
	href, ok, _ := tabs[0].Attribute(ctx, "href")
	assert.True(t, ok)
	assert.Equal(t, "?tab=courses", href)

	byAttr, err := b.FindElements(ctx, nil, flow.Strategy{By: flow.ByAttr, Attr: "href", Value: "tab=courses", Within: "a"})
	require.NoError(t, err)
	assert.Len(t, byAttr, 1)

	form, _ := b.FindElements(ctx, nil, flow.Strategy{By: flow.ByID, Value: "f"})
	require.Len(t, form, 1)
	inside, err := b.FindElements(ctx, form[0], css("input"))
	require.NoError(t, err)
	assert.Len(t, inside, 1)

	_, err = b.FindElements(ctx, nil, flow.Strategy{By: flow.ByXPath, Value: "//a"})
	assert.Error(t, err)
}

func TestRevisionsAppearOverTime(t *testing.T) {
	b := newBrowser(t, map[string]Page{
		"/post.php": {
			HTML:      `<body><p>Saving</p></body>`,
			Revisions: []Revision{{After: 30 * time.Millisecond, HTML: `<body><div id="message">Post published.</div></body>`}},
		},
	})
	require.NoError(t, b.Navigate(ctx, "/post.php"))

	text, _ := b.PageText(ctx)
	assert.Equal(t, "Saving", text)

	assert.Eventually(t, func() bool {
		text, _ := b.PageText(ctx)
		return text == "Post published."
	}, time.Second, 5*time.Millisecond)
}

func TestClickNavigation(t *testing.T) {
	b := newBrowser(t, map[string]Page{
		"/start": {HTML: `<body>
			<a id="link" href="/linked">go</a>
			<button id="goto" data-goto="/jumped">jump</button>
			<form action="/submitted"><button id="submit" type="submit">send</button></form>
			<button id="plain" type="button">noop</button>
			<button id="off" disabled>off</button>
			<button id="covered" data-obscured>covered</button>
		</body>`},
		"/linked":    {HTML: `<body>linked</body>`},
		"/jumped":    {HTML: `<body>jumped</body>`},
		"/submitted": {HTML: `<body>submitted</body>`},
	})

	click := func(id, wantPath string) {
		t.Helper()
		require.NoError(t, b.Navigate(ctx, "/start"))
		els, err := b.FindElements(ctx, nil, flow.Strategy{By: flow.ByID, Value: id})
		require.NoError(t, err)
		require.Len(t, els, 1)
		require.NoError(t, b.Click(ctx, els[0]))
		u, _ := b.CurrentURL(ctx)
		assert.Equal(t, "http://wp.local"+wantPath, u)
	}
	click("link", "/linked")
	click("goto", "/jumped")
	click("submit", "/submitted")
	click("plain", "/start")

	for _, id := range []string{"off", "covered"} {
		require.NoError(t, b.Navigate(ctx, "/start"))
		els, _ := b.FindElements(ctx, nil, flow.Strategy{By: flow.ByID, Value: id})
		ok, err := b.IsClickable(ctx, els[0])
		require.NoError(t, err)
		assert.False(t, ok, id)
		assert.Error(t, b.Click(ctx, els[0]), id)
	}

	assert.Equal(t, []string{"a#link", "button#goto", "button#submit", "button#plain"}, b.Clicks())
}

func TestTypeAndFrames(t *testing.T) {
	b := newBrowser(t, map[string]Page{
		"/edit":   {HTML: `<body><input id="title" value="old"><iframe id="content_ifr" data-frame="/editor"></iframe><p>outer</p></body>`},
		"/editor": {HTML: `<html><body id="tinymce" contenteditable="true"></body></html>`},
	})
	require.NoError(t, b.Navigate(ctx, "/edit"))

	title, _ := b.FindElements(ctx, nil, flow.Strategy{By: flow.ByID, Value: "title"})
	require.NoError(t, b.Type(ctx, title[0], "Course 1"))
	v, _, _ := title[0].Attribute(ctx, "value")
	assert.Equal(t, "Course 1", v)

	frame, _ := b.FindElements(ctx, nil, flow.Strategy{By: flow.ByID, Value: "content_ifr"})
	require.NoError(t, b.SwitchToFrame(ctx, frame[0]))
	body, err := b.FindElements(ctx, nil, flow.Strategy{By: flow.ByID, Value: "tinymce"})
	require.NoError(t, err)
	require.Len(t, body, 1)
	require.NoError(t, b.Type(ctx, body[0], "Description"))
	text, _ := b.PageText(ctx)
	assert.Equal(t, "Description", text)

	require.NoError(t, b.SwitchToDefaultContent(ctx))
	text, _ = b.PageText(ctx)
	assert.Equal(t, "outer", text)

	assert.Equal(t, []Typed{{Target: "input#title", Text: "Course 1"}, {Target: "body#tinymce", Text: "Description"}}, b.TypedText())

	p, _ := b.FindElements(ctx, nil, css("p"))
	assert.Error(t, b.Type(ctx, p[0], "x"))
	assert.Error(t, b.SwitchToFrame(ctx, p[0]))
}

func TestUnknownPage(t *testing.T) {
	b := newBrowser(t, nil)
	require.NoError(t, b.Navigate(ctx, "/missing"))
	title, _ := b.Title(ctx)
	assert.Equal(t, "Page not found", title)
	assert.Equal(t, []string{"/missing"}, b.Visits())
}

func TestQueryPages(t *testing.T) {
	b := newBrowser(t, map[string]Page{
		"/wp-admin/admin.php?page=learn-press-settings&tab=courses": {HTML: `<body>courses tab</body>`},
		"/wp-admin/admin.php": {HTML: `<body>dashboard</body>`},
	})
	require.NoError(t, b.Navigate(ctx, "/wp-admin/admin.php?page=learn-press-settings&tab=courses"))
	text, _ := b.PageText(ctx)
	assert.Equal(t, "courses tab", text)

	require.NoError(t, b.Navigate(ctx, "/wp-admin/admin.php?page=other"))
	text, _ = b.PageText(ctx)
	assert.Equal(t, "dashboard", text)
}

func TestSnapshotAndClose(t *testing.T) {
	boom := errors.New("disk full")
	b := New(Config{SnapshotErr: boom})

	_, err := b.Snapshot(ctx)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, b.Snapshots())

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	assert.Equal(t, 2, b.Closes())
	assert.ErrorIs(t, b.Navigate(ctx, "/"), ErrClosed)
	_, err = b.FindElements(ctx, nil, css("body"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestFindErrInjection(t *testing.T) {
	boom := errors.New("invalid selector")
	b := newBrowser(t, nil)
	b.cfg.FindErr = map[flow.By]error{flow.ByCSS: boom}
	_, err := b.FindElements(ctx, nil, css("a"))
	assert.ErrorIs(t, err, boom)
}
