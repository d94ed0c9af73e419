// Package fixture provides an in-memory HTML browser for running workflows without a real browser.
//
// Pages are static HTML documents keyed by URL path. A page can change over time after
// it is loaded (Revisions), which is how tests simulate asynchronous rendering such as a
// success notice that appears after a save.
package fixture

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/lmsqa/flowrunner/pkg/core"
	"github.com/lmsqa/flowrunner/pkg/flow"
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("fixture browser is closed")

// Revision replaces a page's HTML once After has elapsed since the page was loaded.
type Revision struct {
	After time.Duration `yaml:"after"`
	HTML  string        `yaml:"html"`
}

// Page is one document served by the fixture.
type Page struct {
	HTML      string     `yaml:"html"`
	Revisions []Revision `yaml:"revisions"`
}

// Config configures fixture browser behavior.
type Config struct {
	// BaseURL is the origin pages are served from. Default: http://wp.local
	BaseURL string
	// Pages keyed by path, optionally with query ("/admin.php?page=x"). Lookup tries
	// path and query first, then the path alone.
	Pages map[string]Page
	// SnapshotErr makes Snapshot fail.
	SnapshotErr error
	// FindErr makes FindElements fail for the given strategy kinds.
	FindErr map[flow.By]error
}

// Typed records one Type call.
type Typed struct {
	Target string
	Text   string
}

// Browser is a goquery-backed implementation of core.Browser.
type Browser struct {
	cfg  Config
	base *url.URL

	mu       sync.Mutex
	current  *url.URL
	page     Page
	loadedAt time.Time
	revision int
	doc      *goquery.Document
	frames   []*goquery.Document

	clicks    []string
	typed     []Typed
	visits    []string
	snapshots int
	closes    int
	closed    bool
}

// New creates a fixture browser. It starts on about:blank.
func New(cfg Config) *Browser {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://wp.local"
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		base = &url.URL{Scheme: "http", Host: "wp.local"}
	}
	blank, _ := goquery.NewDocumentFromReader(strings.NewReader("<html><head></head><body></body></html>"))
	return &Browser{
		cfg:     cfg,
		base:    base,
		current: &url.URL{Scheme: "about", Opaque: "blank"},
		doc:     blank,
	}
}

// Navigate loads the page registered for rawURL, resolved against the current URL.
// Unknown pages load a "Page not found" document, like a real server's 404 page.
func (b *Browser) Navigate(ctx context.Context, rawURL string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	return b.navigateLocked(rawURL)
}

func (b *Browser) navigateLocked(rawURL string) error {
	ref, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	from := b.current
	if from.Scheme == "about" {
		from = b.base
	}
	target := from.ResolveReference(ref)

	page, ok := b.lookup(target)
	if !ok {
		page = Page{HTML: "<html><head><title>Page not found</title></head><body><h1>Not Found</h1></body></html>"}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return fmt.Errorf("parse %s: %w", target, err)
	}
	b.current = target
	b.page = page
	b.loadedAt = time.Now()
	b.revision = 0
	b.doc = doc
	b.frames = nil
	b.visits = append(b.visits, pageKey(target))
	return nil
}

func (b *Browser) lookup(u *url.URL) (Page, bool) {
	if u.Host != b.base.Host {
		return Page{}, false
	}
	if p, ok := b.cfg.Pages[pageKey(u)]; ok {
		return p, true
	}
	p, ok := b.cfg.Pages[u.Path]
	return p, ok
}

func pageKey(u *url.URL) string {
	if u.RawQuery != "" {
		return u.Path + "?" + u.RawQuery
	}
	return u.Path
}

// document returns the active document, applying due revisions of the top page.
func (b *Browser) document() *goquery.Document {
	elapsed := time.Since(b.loadedAt)
	due := 0
	for i, r := range b.page.Revisions {
		if elapsed >= r.After {
			due = i + 1
		}
	}
	if due != b.revision {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(b.page.Revisions[due-1].HTML)); err == nil {
			b.doc = doc
			b.frames = nil
		}
		b.revision = due
	}
	if n := len(b.frames); n > 0 {
		return b.frames[n-1]
	}
	return b.doc
}

// FindElements returns the elements matching strategy in document order.
// XPath is not supported and returns an error.
func (b *Browser) FindElements(ctx context.Context, scope core.Element, strategy flow.Strategy) ([]core.Element, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	if err, ok := b.cfg.FindErr[strategy.By]; ok {
		return nil, err
	}

	var root *goquery.Selection
	if scope != nil {
		el, err := b.element(scope)
		if err != nil {
			return nil, err
		}
		root = el.sel
	} else {
		root = b.document().Selection
	}

	var matched *goquery.Selection
	if css, ok := strategy.CSS(); ok {
		matched = root.Find(css)
	} else {
		switch strategy.By {
		case flow.ByText, flow.ByAttr:
			matched = root.Find(strategy.Candidates()).FilterFunction(func(_ int, s *goquery.Selection) bool {
				attr, _ := s.Attr(strategy.Attr)
				return strategy.Matches(s.Text(), attr)
			})
		default:
			return nil, fmt.Errorf("fixture: %s strategy not supported", strategy.By)
		}
	}

	out := make([]core.Element, 0, matched.Length())
	matched.Each(func(_ int, s *goquery.Selection) {
		out = append(out, &Element{sel: s})
	})
	return out, nil
}

// IsVisible reports false for elements inside a hidden or display:none ancestor.
func (b *Browser) IsVisible(ctx context.Context, el core.Element) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false, ErrClosed
	}
	e, err := b.element(el)
	if err != nil {
		return false, err
	}
	return visible(e.sel), nil
}

// IsClickable reports whether the element is visible, enabled and not covered.
// Elements marked data-obscured count as covered by an overlay.
func (b *Browser) IsClickable(ctx context.Context, el core.Element) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false, ErrClosed
	}
	e, err := b.element(el)
	if err != nil {
		return false, err
	}
	return clickable(e.sel), nil
}

// Click records the click and follows data-goto, link href or form submission.
func (b *Browser) Click(ctx context.Context, el core.Element) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	e, err := b.element(el)
	if err != nil {
		return err
	}
	if !clickable(e.sel) {
		return fmt.Errorf("element %s is not clickable", describe(e.sel))
	}
	b.clicks = append(b.clicks, describe(e.sel))

	if target, ok := e.sel.Attr("data-goto"); ok {
		return b.navigateLocked(target)
	}
	if goquery.NodeName(e.sel) == "a" {
		if href, ok := e.sel.Attr("href"); ok && href != "" && !strings.HasPrefix(href, "#") {
			return b.navigateLocked(href)
		}
	}
	if isSubmit(e.sel) {
		form := e.sel.Closest("form")
		if form.Length() > 0 {
			action, _ := form.Attr("action")
			if action == "" {
				action = b.current.String()
			}
			return b.navigateLocked(action)
		}
	}
	return nil
}

// Type replaces the element's value with text.
func (b *Browser) Type(ctx context.Context, el core.Element, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	e, err := b.element(el)
	if err != nil {
		return err
	}
	if !editable(e.sel) {
		return fmt.Errorf("element %s is not editable", describe(e.sel))
	}
	switch goquery.NodeName(e.sel) {
	case "input":
		e.sel.SetAttr("value", text)
	default:
		e.sel.SetText(text)
	}
	b.typed = append(b.typed, Typed{Target: describe(e.sel), Text: text})
	return nil
}

// CurrentURL returns the URL of the top-level page.
func (b *Browser) CurrentURL(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return "", ErrClosed
	}
	return b.current.String(), nil
}

// PageText returns the visible body text of the active document.
func (b *Browser) PageText(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return "", ErrClosed
	}
	var parts []string
	b.document().Find("body").Each(func(_ int, s *goquery.Selection) {
		parts = append(parts, strings.Join(strings.Fields(s.Text()), " "))
	})
	return strings.Join(parts, " "), nil
}

// Title returns the top-level document title.
func (b *Browser) Title(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return "", ErrClosed
	}
	b.document()
	return strings.TrimSpace(b.doc.Find("title").First().Text()), nil
}

// Snapshot returns a 1x1 PNG, or Config.SnapshotErr.
func (b *Browser) Snapshot(ctx context.Context) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	b.snapshots++
	if b.cfg.SnapshotErr != nil {
		return nil, b.cfg.SnapshotErr
	}
	return append([]byte(nil), pixelPNG...), nil
}

// SwitchToFrame makes the page named by the iframe's data-frame (or src) attribute the active document.
func (b *Browser) SwitchToFrame(ctx context.Context, el core.Element) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	e, err := b.element(el)
	if err != nil {
		return err
	}
	if goquery.NodeName(e.sel) != "iframe" {
		return fmt.Errorf("element %s is not an iframe", describe(e.sel))
	}
	src, ok := e.sel.Attr("data-frame")
	if !ok {
		src, _ = e.sel.Attr("src")
	}
	ref, err := url.Parse(src)
	if err != nil {
		return fmt.Errorf("invalid frame source %q: %w", src, err)
	}
	page, ok := b.lookup(b.current.ResolveReference(ref))
	if !ok {
		return fmt.Errorf("frame page %q not found", src)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return err
	}
	b.frames = append(b.frames, doc)
	return nil
}

// SwitchToDefaultContent returns to the top-level document.
func (b *Browser) SwitchToDefaultContent(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	b.frames = nil
	return nil
}

// Close marks the browser closed. Repeated calls are counted and return nil.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closes++
	b.closed = true
	return nil
}

// Clicks returns descriptions of every clicked element, in order.
func (b *Browser) Clicks() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.clicks...)
}

// TypedText returns every Type call, in order.
func (b *Browser) TypedText() []Typed {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Typed(nil), b.typed...)
}

// Visits returns every loaded page key, in order.
func (b *Browser) Visits() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.visits...)
}

// Snapshots returns the number of Snapshot calls.
func (b *Browser) Snapshots() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshots
}

// Closes returns the number of Close calls.
func (b *Browser) Closes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closes
}

func (b *Browser) element(el core.Element) (*Element, error) {
	e, ok := el.(*Element)
	if !ok || e == nil {
		return nil, fmt.Errorf("fixture: foreign element %T", el)
	}
	return e, nil
}

// Element is a handle to a node of a fixture document.
type Element struct {
	sel *goquery.Selection
}

// Text returns the element's whitespace-normalized text.
func (e *Element) Text(ctx context.Context) (string, error) {
	return strings.Join(strings.Fields(e.sel.Text()), " "), nil
}

// Attribute returns the attribute value and whether it is present.
func (e *Element) Attribute(ctx context.Context, name string) (string, bool, error) {
	v, ok := e.sel.Attr(name)
	return v, ok, nil
}

func visible(s *goquery.Selection) bool {
	if goquery.NodeName(s) == "input" {
		if t, _ := s.Attr("type"); t == "hidden" {
			return false
		}
	}
	for n := s; n.Length() > 0; n = n.Parent() {
		if _, hidden := n.Attr("hidden"); hidden {
			return false
		}
		if style, ok := n.Attr("style"); ok {
			compact := strings.ReplaceAll(style, " ", "")
			if strings.Contains(compact, "display:none") || strings.Contains(compact, "visibility:hidden") {
				return false
			}
		}
	}
	return true
}

func clickable(s *goquery.Selection) bool {
	if !visible(s) {
		return false
	}
	if _, disabled := s.Attr("disabled"); disabled {
		return false
	}
	_, obscured := s.Attr("data-obscured")
	return !obscured
}

func editable(s *goquery.Selection) bool {
	switch goquery.NodeName(s) {
	case "input", "textarea":
		_, readonly := s.Attr("readonly")
		return !readonly
	}
	v, ok := s.Attr("contenteditable")
	return ok && v != "false"
}

func isSubmit(s *goquery.Selection) bool {
	t, _ := s.Attr("type")
	switch goquery.NodeName(s) {
	case "button":
		return t == "" || t == "submit"
	case "input":
		return t == "submit"
	}
	return false
}

func describe(s *goquery.Selection) string {
	d := goquery.NodeName(s)
	if id, ok := s.Attr("id"); ok && id != "" {
		d += "#" + id
	}
	if class, ok := s.Attr("class"); ok && class != "" {
		d += "." + strings.Join(strings.Fields(class), ".")
	}
	return d
}

// Minimal valid PNG (1x1 transparent pixel)
var pixelPNG = []byte{
	0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, // PNG signature
	0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52, // IHDR chunk
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1F, 0x15, 0xC4,
	0x89, 0x00, 0x00, 0x00, 0x0A, 0x49, 0x44, 0x41,
	0x54, 0x78, 0x9C, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0D, 0x0A, 0x2D, 0xB4, 0x00,
	0x00, 0x00, 0x00, 0x49, 0x45, 0x4E, 0x44, 0xAE,
	0x42, 0x60, 0x82,
}

var _ core.Browser = (*Browser)(nil)
