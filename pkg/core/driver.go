package core

import (
	"context"

	"github.com/lmsqa/flowrunner/pkg/flow"
)

// Browser is the remote-browser-control boundary the runner drives.
// Implementations: playwright, fixture.
// The executor handles workflow logic; Browser just performs single interactions.
type Browser interface {
	// Navigate loads url in the current page.
	Navigate(ctx context.Context, url string) error

	// FindElements returns every element matching the strategy, in document order.
	// A nil scope searches the whole document of the current frame.
	FindElements(ctx context.Context, scope Element, strategy flow.Strategy) ([]Element, error)

	// IsVisible reports whether the element is rendered and visible.
	IsVisible(ctx context.Context, el Element) (bool, error)

	// IsClickable reports whether the element is visible, enabled and not obscured.
	IsClickable(ctx context.Context, el Element) (bool, error)

	Click(ctx context.Context, el Element) error

	// Type clears the element's current value and types text into it.
	Type(ctx context.Context, el Element, text string) error

	CurrentURL(ctx context.Context) (string, error)
	PageText(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)

	// Snapshot captures the current viewport as PNG.
	Snapshot(ctx context.Context) ([]byte, error)

	SwitchToFrame(ctx context.Context, el Element) error
	SwitchToDefaultContent(ctx context.Context) error

	// Close releases the browser. Implementations must tolerate repeated calls.
	Close() error
}

// Element is an opaque handle to a DOM element owned by a Browser.
type Element interface {
	// Text returns the element's visible text.
	Text(ctx context.Context) (string, error)

	// Attribute returns the attribute value and whether it is present.
	Attribute(ctx context.Context, name string) (string, bool, error)
}

// Snapshotter captures visual browser state. Browser satisfies it.
type Snapshotter interface {
	Snapshot(ctx context.Context) ([]byte, error)
}

// ElementInfo describes an element for reports.
type ElementInfo struct {
	Text     string `json:"text,omitempty"`
	Strategy string `json:"strategy,omitempty"` // Strategy that located it
	Index    int    `json:"strategyIndex"`      // Position of that strategy in the fallback list
}
