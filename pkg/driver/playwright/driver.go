// Package playwright implements core.Browser on a real browser through playwright-go.
package playwright

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	pw "github.com/playwright-community/playwright-go"

	"github.com/lmsqa/flowrunner/pkg/core"
	"github.com/lmsqa/flowrunner/pkg/logger"
	"github.com/lmsqa/flowrunner/pkg/session"
)

// DefaultActionTimeout bounds a single browser action such as a click or a navigation.
const DefaultActionTimeout = 10 * time.Second

// Supported browser engines.
const (
	Chromium = "chromium"
	Firefox  = "firefox"
	WebKit   = "webkit"
)

// Config configures the launched browser.
type Config struct {
	Browser  string // chromium (default), firefox or webkit
	Headless bool
	SlowMo   time.Duration
	Width    int // Viewport width, default 1280
	Height   int // Viewport height, default 720
	Locale   string

	// Install downloads the driver and browser before the first launch.
	Install bool
	// DriverDir holds the Playwright driver. Empty uses the playwright-go default.
	DriverDir string
	IgnoreHTTPSErrors bool
	ActionTimeout     time.Duration
	// ProbeTimeout bounds the trial click behind IsClickable.
	ProbeTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Browser == "" {
		c.Browser = Chromium
	}
	if c.Width <= 0 {
		c.Width = 1280
	}
	if c.Height <= 0 {
		c.Height = 720
	}
	if c.ActionTimeout <= 0 {
		c.ActionTimeout = DefaultActionTimeout
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 500 * time.Millisecond
	}
	return c
}

// Launcher starts one Driver per session.
type Launcher struct {
	Config Config

	installOnce sync.Once
	installErr  error
}

// NewLauncher creates a launcher for cfg.
func NewLauncher(cfg Config) *Launcher {
	return &Launcher{Config: cfg}
}

// Launch implements session.Launcher.
func (l *Launcher) Launch(ctx context.Context) (core.Browser, error) {
	cfg := l.Config.withDefaults()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Install {
		l.installOnce.Do(func() {
			l.installErr = pw.Install(&pw.RunOptions{DriverDirectory: cfg.DriverDir, Browsers: []string{cfg.Browser}})
		})
		if l.installErr != nil {
			return nil, fmt.Errorf("could not install playwright browsers: %w", l.installErr)
		}
	}

	runtime, err := pw.Run(&pw.RunOptions{DriverDirectory: cfg.DriverDir})
	if err != nil {
		return nil, fmt.Errorf("could not start playwright: %w", err)
	}
	d, err := launch(runtime, cfg)
	if err != nil {
		_ = runtime.Stop()
		return nil, err
	}
	logger.Info("%s launched (headless=%t, viewport %dx%d)", cfg.Browser, cfg.Headless, cfg.Width, cfg.Height)
	return d, nil
}

var _ session.Launcher = (*Launcher)(nil)

func launch(runtime *pw.Playwright, cfg Config) (*Driver, error) {
	var engine pw.BrowserType
	switch strings.ToLower(cfg.Browser) {
	case Chromium:
		engine = runtime.Chromium
	case Firefox:
		engine = runtime.Firefox
	case WebKit:
		engine = runtime.WebKit
	default:
		return nil, core.ErrInvalidConfig.WithMessage(fmt.Sprintf("unknown browser %q", cfg.Browser))
	}

	browser, err := engine.Launch(pw.BrowserTypeLaunchOptions{
		Headless: pw.Bool(cfg.Headless),
		SlowMo:   pw.Float(float64(cfg.SlowMo.Milliseconds())),
	})
	if err != nil {
		return nil, fmt.Errorf("could not launch browser: %w", err)
	}

	opts := pw.BrowserNewContextOptions{
		Viewport:          &pw.Size{Width: cfg.Width, Height: cfg.Height},
		IgnoreHttpsErrors: pw.Bool(cfg.IgnoreHTTPSErrors),
	}
	if cfg.Locale != "" {
		opts.Locale = pw.String(cfg.Locale)
	}
	bctx, err := browser.NewContext(opts)
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("could not create context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		_ = browser.Close()
		return nil, fmt.Errorf("could not create page: %w", err)
	}
	page.SetDefaultTimeout(float64(cfg.ActionTimeout.Milliseconds()))

	return &Driver{
		cfg:     cfg,
		runtime: runtime,
		browser: browser,
		context: bctx,
		page:    page,
	}, nil
}

// Driver is a core.Browser backed by one Playwright page.
type Driver struct {
	cfg     Config
	runtime *pw.Playwright
	browser pw.Browser
	context pw.BrowserContext
	page    pw.Page

	mu     sync.Mutex
	frames []pw.FrameLocator // Active frame chain, innermost last
}

// Page exposes the underlying page for live tests.
func (d *Driver) Page() pw.Page {
	return d.page
}

// Close releases the page, context, browser and the Playwright runtime.
func (d *Driver) Close() error {
	var errs []error
	if d.page != nil {
		errs = append(errs, d.page.Close())
	}
	if d.context != nil {
		errs = append(errs, d.context.Close())
	}
	if d.browser != nil {
		errs = append(errs, d.browser.Close())
	}
	if d.runtime != nil {
		errs = append(errs, d.runtime.Stop())
	}
	return errors.Join(errs...)
}

var _ core.Browser = (*Driver)(nil)
