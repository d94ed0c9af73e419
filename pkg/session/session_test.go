package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmsqa/flowrunner/pkg/core"
	"github.com/lmsqa/flowrunner/pkg/driver/fixture"
)

func launcherFor(b *fixture.Browser) Launcher {
	return LauncherFunc(func(context.Context) (core.Browser, error) { return b, nil })
}

var creds = Config{BaseURL: "http://wp.local", Username: "admin", Password: "admin"}

func TestOpen_WithoutCredentialsSkipsAuth(t *testing.T) {
	b := fixture.New(fixture.Config{})
	called := false
	auth := AuthenticatorFunc(func(context.Context, *Session) error { called = true; return nil })

	s, err := Open(context.Background(), Config{BaseURL: "http://wp.local"}, launcherFor(b), auth)
	require.NoError(t, err)
	defer s.Close()
	assert.False(t, called)

	got, err := s.Browser()
	require.NoError(t, err)
	assert.Same(t, b, got)
}

func TestOpen_Authenticates(t *testing.T) {
	b := fixture.New(fixture.Config{})
	var seen *Session
	auth := AuthenticatorFunc(func(_ context.Context, s *Session) error { seen = s; return nil })

	s, err := Open(context.Background(), creds, launcherFor(b), auth)
	require.NoError(t, err)
	defer s.Close()
	assert.Same(t, s, seen)
	assert.Equal(t, "admin", s.Config().Username)
}

func TestOpen_AuthenticationFailedClosesBrowser(t *testing.T) {
	b := fixture.New(fixture.Config{})
	cause := core.TimedOut("present #wpadminbar", 0, nil)
	auth := AuthenticatorFunc(func(context.Context, *Session) error { return cause })

	s, err := Open(context.Background(), creds, launcherFor(b), auth)
	assert.Nil(t, s)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrAuthenticationFailed))
	assert.True(t, errors.Is(err, core.ErrWaitTimeout), "cause is kept")
	assert.Equal(t, core.ErrCategoryAuthentication, core.CategoryOf(err))
	assert.Equal(t, 1, b.Closes())
}

func TestOpen_AuthenticationErrorPassesThrough(t *testing.T) {
	b := fixture.New(fixture.Config{})
	authErr := core.ErrAuthenticationFailed.WithMessage("login workflow failed")
	s, err := Open(context.Background(), creds, launcherFor(b), AuthenticatorFunc(func(context.Context, *Session) error { return authErr }))
	assert.Nil(t, s)
	assert.Same(t, authErr, err)
}

func TestOpen_LaunchFailure(t *testing.T) {
	boom := errors.New("no chromium")
	_, err := Open(context.Background(), creds, LauncherFunc(func(context.Context) (core.Browser, error) { return nil, boom }), nil)
	assert.ErrorIs(t, err, boom)

	_, err = Open(context.Background(), creds, nil, nil)
	assert.True(t, errors.Is(err, core.ErrInvalidConfig))
}

func TestClose_Idempotent(t *testing.T) {
	b := fixture.New(fixture.Config{})
	s, err := Open(context.Background(), creds, launcherFor(b), nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Close())
		}()
	}
	wg.Wait()

	assert.NoError(t, s.Close())
	assert.Equal(t, 1, b.Closes())
	assert.True(t, s.Closed())

	_, err = s.Browser()
	assert.True(t, errors.Is(err, core.ErrSessionClosed))
}

type failingClose struct{ *fixture.Browser }

func (failingClose) Close() error { return errors.New("already gone") }

func TestClose_ReportsBrowserErrorOnce(t *testing.T) {
	b := failingClose{fixture.New(fixture.Config{})}
	s, err := Open(context.Background(), creds, LauncherFunc(func(context.Context) (core.Browser, error) { return b, nil }), nil)
	require.NoError(t, err)

	assert.Error(t, s.Close())
	assert.NoError(t, s.Close())
}

func TestWith_ClosesOnEveryExitPath(t *testing.T) {
	boom := errors.New("workflow failed")

	t.Run("success", func(t *testing.T) {
		b := fixture.New(fixture.Config{})
		err := With(context.Background(), creds, launcherFor(b), nil, func(*Session) error { return nil })
		assert.NoError(t, err)
		assert.Equal(t, 1, b.Closes())
	})

	t.Run("error", func(t *testing.T) {
		b := fixture.New(fixture.Config{})
		err := With(context.Background(), creds, launcherFor(b), nil, func(*Session) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, b.Closes())
	})

	t.Run("panic", func(t *testing.T) {
		b := fixture.New(fixture.Config{})
		assert.PanicsWithValue(t, "unexpected", func() {
			_ = With(context.Background(), creds, launcherFor(b), nil, func(*Session) error { panic("unexpected") })
		})
		assert.Equal(t, 1, b.Closes())
	})

	t.Run("fn closes early", func(t *testing.T) {
		b := fixture.New(fixture.Config{})
		err := With(context.Background(), creds, launcherFor(b), nil, func(s *Session) error { return s.Close() })
		assert.NoError(t, err)
		assert.Equal(t, 1, b.Closes())
	})

	t.Run("auth failure never calls fn", func(t *testing.T) {
		b := fixture.New(fixture.Config{})
		called := false
		err := With(context.Background(), creds, launcherFor(b),
			AuthenticatorFunc(func(context.Context, *Session) error { return boom }),
			func(*Session) error { called = true; return nil })
		assert.True(t, errors.Is(err, core.ErrAuthenticationFailed))
		assert.False(t, called)
		assert.Equal(t, 1, b.Closes())
	})
}

func TestResolveURL(t *testing.T) {
	tests := []struct {
		base, ref, want string
	}{
		{"http://wp.local", "/wp-admin/edit.php?post_type=lp_course", "http://wp.local/wp-admin/edit.php?post_type=lp_course"},
		{"http://wp.local/", "courses/", "http://wp.local/courses/"},
		{"http://localhost/wordpress", "/wp-login.php", "http://localhost/wordpress/wp-login.php"},
		{"http://wp.local", "https://example.com/x", "https://example.com/x"},
		{"", "/courses/", "/courses/"},
	}
	for _, tt := range tests {
		s := &Session{cfg: Config{BaseURL: tt.base}}
		got, err := s.ResolveURL(tt.ref)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.base+" + "+tt.ref)
	}
}
