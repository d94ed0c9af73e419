// Package session owns the browser of a run: it launches, authenticates and closes it exactly once.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/lmsqa/flowrunner/pkg/core"
	"github.com/lmsqa/flowrunner/pkg/logger"
)

// Config describes one session.
type Config struct {
	BaseURL        string
	Username       string
	Password       string
	DefaultTimeout time.Duration // Per-step wait timeout
	PollInterval   time.Duration
	SlowMo         time.Duration // Pause after every interaction, for watching a run
}

// HasCredentials reports whether the session should authenticate.
func (c Config) HasCredentials() bool {
	return c.Username != ""
}

// Launcher starts a browser.
type Launcher interface {
	Launch(ctx context.Context) (core.Browser, error)
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(ctx context.Context) (core.Browser, error)

// Launch calls f.
func (f LauncherFunc) Launch(ctx context.Context) (core.Browser, error) { return f(ctx) }

// Authenticator logs a freshly launched session in.
type Authenticator interface {
	Authenticate(ctx context.Context, s *Session) error
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context, s *Session) error

// Authenticate calls f.
func (f AuthenticatorFunc) Authenticate(ctx context.Context, s *Session) error { return f(ctx, s) }

// Session is the lifecycle-bound handle to one browser.
// It is owned by one runner (or one shard) and never shared.
type Session struct {
	cfg     Config
	browser core.Browser

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

// Open launches the browser and, when credentials are configured, authenticates.
// On authentication failure the browser is closed and an AuthenticationFailed error returned.
func Open(ctx context.Context, cfg Config, launcher Launcher, auth Authenticator) (*Session, error) {
	if launcher == nil {
		return nil, core.ErrInvalidConfig.WithMessage("no browser launcher configured")
	}
	if cfg.BaseURL != "" {
		if _, err := url.Parse(cfg.BaseURL); err != nil {
			return nil, core.ErrInvalidConfig.WithMessage("invalid base URL").WithCause(err)
		}
	}

	browser, err := launcher.Launch(ctx)
	if err != nil {
		return nil, core.ErrSessionClosed.WithMessage("failed to launch browser").WithCause(err)
	}
	s := &Session{cfg: cfg, browser: browser}
	logger.Info("session opened (base URL %s)", cfg.BaseURL)

	if auth == nil || !cfg.HasCredentials() {
		return s, nil
	}

	start := time.Now()
	if err := auth.Authenticate(ctx, s); err != nil {
		if cerr := s.Close(); cerr != nil {
			logger.Warn("closing session after failed login: %v", cerr)
		}
		if errors.Is(err, core.ErrAuthenticationFailed) {
			return nil, err
		}
		return nil, core.ErrAuthenticationFailed.
			WithMessage(fmt.Sprintf("authentication as %q failed", cfg.Username)).
			WithCause(err)
	}
	logger.Info("authenticated as %s in %s", cfg.Username, time.Since(start).Round(time.Millisecond))
	return s, nil
}

// With opens a session, runs fn and closes the session on every exit path, panics included.
func With(ctx context.Context, cfg Config, launcher Launcher, auth Authenticator, fn func(*Session) error) (err error) {
	s, err := Open(ctx, cfg, launcher, auth)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(s)
}

// Config returns the session configuration.
func (s *Session) Config() Config {
	return s.cfg
}

// Browser returns the session's browser, or ErrSessionClosed once the session is closed.
func (s *Session) Browser() (core.Browser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, core.ErrSessionClosed
	}
	return s.browser, nil
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases the browser. Only the first call closes it; later calls return nil.
func (s *Session) Close() error {
	first := false
	s.closeOnce.Do(func() {
		first = true
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		if err := s.browser.Close(); err != nil {
			s.closeErr = fmt.Errorf("close browser: %w", err)
		}
		logger.Info("session closed")
	})
	if !first {
		return nil
	}
	return s.closeErr
}

// ResolveURL joins a relative reference to the base URL. Absolute URLs are returned unchanged.
func (s *Session) ResolveURL(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", ref, err)
	}
	if u.IsAbs() || s.cfg.BaseURL == "" {
		return ref, nil
	}
	base, err := url.Parse(strings.TrimSuffix(s.cfg.BaseURL, "/") + "/")
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	return base.ResolveReference(&url.URL{Path: strings.TrimPrefix(u.Path, "/"), RawQuery: u.RawQuery, Fragment: u.Fragment}).String(), nil
}
