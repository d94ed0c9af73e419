package playwright

import (
	"context"
	"fmt"
	"strings"

	pw "github.com/playwright-community/playwright-go"

	"github.com/lmsqa/flowrunner/pkg/core"
	"github.com/lmsqa/flowrunner/pkg/flow"
)

// Element is a handle to one DOM node, addressed through a Playwright locator.
type Element struct {
	loc pw.Locator
}

// Locator exposes the underlying locator.
func (e *Element) Locator() pw.Locator {
	return e.loc
}

// Text returns the rendered text of the element.
func (e *Element) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := e.loc.InnerText()
	if err != nil {
		return "", err
	}
	return strings.Join(strings.Fields(text), " "), nil
}

// Attribute returns the attribute value and whether it is present.
func (e *Element) Attribute(ctx context.Context, name string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	v, err := e.loc.Evaluate("(el, name) => el.getAttribute(name)", name)
	if err != nil {
		return "", false, err
	}
	s, ok := v.(string)
	return s, ok, nil
}

func (d *Driver) element(el core.Element) (*Element, error) {
	e, ok := el.(*Element)
	if !ok || e == nil {
		return nil, fmt.Errorf("playwright: foreign element %T", el)
	}
	return e, nil
}

func (d *Driver) timeout() *float64 {
	return pw.Float(float64(d.cfg.ActionTimeout.Milliseconds()))
}

// Navigate loads rawURL and waits for the DOM to be ready.
func (d *Driver) Navigate(ctx context.Context, rawURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	d.frames = nil
	d.mu.Unlock()

	resp, err := d.page.Goto(rawURL, pw.PageGotoOptions{
		WaitUntil: pw.WaitUntilStateDomcontentloaded,
		Timeout:   d.timeout(),
	})
	if err != nil {
		if strings.Contains(err.Error(), "ERR_TOO_MANY_REDIRECTS") {
			return fmt.Errorf("redirect loop navigating to %s (check the base URL and login redirects): %w", rawURL, err)
		}
		return err
	}
	if resp != nil && resp.Status() >= 500 {
		return fmt.Errorf("navigate %s: server returned %d", rawURL, resp.Status())
	}
	return nil
}

// FindElements returns every element matching strategy, in document order.
func (d *Driver) FindElements(ctx context.Context, scope core.Element, strategy flow.Strategy) ([]core.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	selector, filter := selectorFor(strategy)

	var loc pw.Locator
	if scope != nil {
		e, err := d.element(scope)
		if err != nil {
			return nil, err
		}
		loc = e.loc.Locator(selector)
	} else {
		loc = d.root(selector)
	}
	if filter != "" {
		loc = loc.Filter(pw.LocatorFilterOptions{HasText: filter})
	}

	all, err := loc.All()
	if err != nil {
		return nil, err
	}
	out := make([]core.Element, 0, len(all))
	for _, l := range all {
		out = append(out, &Element{loc: l})
	}
	return out, nil
}

// root scopes selector to the active frame, or the page when no frame is active.
func (d *Driver) root(selector string) pw.Locator {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n := len(d.frames); n > 0 {
		return d.frames[n-1].Locator(selector)
	}
	return d.page.Locator(selector)
}

// IsVisible reports whether the element is rendered.
func (d *Driver) IsVisible(ctx context.Context, el core.Element) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	e, err := d.element(el)
	if err != nil {
		return false, err
	}
	return e.loc.IsVisible()
}

// IsClickable reports whether the element is visible, enabled and receives pointer
// events. The last check is a trial click, which performs every actionability check
// without clicking.
func (d *Driver) IsClickable(ctx context.Context, el core.Element) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	e, err := d.element(el)
	if err != nil {
		return false, err
	}
	visible, err := e.loc.IsVisible()
	if err != nil || !visible {
		return false, err
	}
	enabled, err := e.loc.IsEnabled()
	if err != nil || !enabled {
		return false, err
	}
	err = e.loc.Click(pw.LocatorClickOptions{
		Trial:   pw.Bool(true),
		Timeout: pw.Float(float64(d.cfg.ProbeTimeout.Milliseconds())),
	})
	// A failed trial means something covers the element; it is not an error.
	return err == nil, nil
}

// Click clicks the element.
func (d *Driver) Click(ctx context.Context, el core.Element) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e, err := d.element(el)
	if err != nil {
		return err
	}
	return e.loc.Click(pw.LocatorClickOptions{Timeout: d.timeout()})
}

// Type replaces the element's value with text.
func (d *Driver) Type(ctx context.Context, el core.Element, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e, err := d.element(el)
	if err != nil {
		return err
	}
	return e.loc.Fill(text, pw.LocatorFillOptions{Timeout: d.timeout()})
}

// CurrentURL returns the URL of the top-level page.
func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return d.page.URL(), nil
}

// PageText returns the rendered body text of the active frame.
func (d *Driver) PageText(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := d.root("body").First().InnerText(pw.LocatorInnerTextOptions{Timeout: d.timeout()})
	if err != nil {
		return "", err
	}
	return strings.Join(strings.Fields(text), " "), nil
}

// Title returns the page title.
func (d *Driver) Title(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return d.page.Title()
}

// Snapshot returns a full-page PNG screenshot.
func (d *Driver) Snapshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.page.Screenshot(pw.PageScreenshotOptions{
		FullPage: pw.Bool(true),
		Type:     pw.ScreenshotTypePng,
	})
}

// SwitchToFrame makes the iframe element's document the active frame.
func (d *Driver) SwitchToFrame(ctx context.Context, el core.Element) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e, err := d.element(el)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.frames = append(d.frames, e.loc.ContentFrame())
	d.mu.Unlock()
	return nil
}

// SwitchToDefaultContent returns to the top-level document.
func (d *Driver) SwitchToDefaultContent(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	d.frames = nil
	d.mu.Unlock()
	return nil
}
