package fixture

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
baseUrl: http://lms.test
pages:
  /:
    html: <html><head><title>Home</title></head><body>LMS</body></html>
  /wp-admin/post.php:
    html: <html><body>Saving</body></html>
    revisions:
      - after: 200ms
        html: <html><body>Post published.</body></html>
`), 0o644))

	site, err := LoadSite(path)
	require.NoError(t, err)
	assert.Equal(t, "http://lms.test", site.BaseURL)
	require.Len(t, site.Pages["/wp-admin/post.php"].Revisions, 1)
	assert.Equal(t, 200*time.Millisecond, site.Pages["/wp-admin/post.php"].Revisions[0].After)

	b := New(site.Config())
	t.Cleanup(func() { _ = b.Close() })
	require.NoError(t, b.Navigate(ctx, "/"))
	title, err := b.Title(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Home", title)
}

func TestLoadSiteErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadSite(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("baseUrl: http://x\n"), 0o644))
	_, err = LoadSite(empty)
	assert.ErrorContains(t, err, "no pages")
}
