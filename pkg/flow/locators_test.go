package flow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocatorSet_Strategies(t *testing.T) {
	set := mustLocators(t)

	s, ok := set.Strategies("add-new-button")
	require.True(t, ok)
	assert.Equal(t, []Strategy{
		{By: ByCSS, Value: "a.page-title-action"},
		{By: ByText, Value: "Add New", Within: "a"},
	}, s)

	_, ok = set.Strategies("missing")
	assert.False(t, ok)

	var nilSet *LocatorSet
	_, ok = nilSet.Strategies("add-new-button")
	assert.False(t, ok)
}

func TestLocatorSet_IndicatorAllLocales(t *testing.T) {
	set := mustLocators(t)
	set.Locales = nil

	texts, ok := set.Indicator("post-published")
	require.True(t, ok)
	// Sorted by locale: en, fr, vi.
	assert.Equal(t, []string{"Post published", "Article publié", "Bài viết đã được xuất bản"}, texts)
}

func TestLocatorSet_IndicatorUnconfiguredLocale(t *testing.T) {
	set := mustLocators(t)
	set.Locales = []string{"de"}
	_, ok := set.Indicator("post-published")
	assert.False(t, ok)
}

func TestLocatorSet_Merge(t *testing.T) {
	base := mustLocators(t)
	override, err := ParseLocators([]byte(`
locales: [vi]
locators:
  add-new-button:
    - css: a.add-new-h2
`), "override.yaml")
	require.NoError(t, err)

	merged := base.Merge(override)
	assert.Equal(t, []string{"vi"}, merged.Locales)
	s, _ := merged.Strategies("add-new-button")
	assert.Equal(t, []Strategy{{By: ByCSS, Value: "a.add-new-h2"}}, s)
	_, ok := merged.Strategies("course-items")
	assert.True(t, ok)

	// The base set is unchanged.
	s, _ = base.Strategies("add-new-button")
	assert.Len(t, s, 2)
	assert.Equal(t, []string{"en", "vi"}, base.Locales)
}

func TestParseLocators_Errors(t *testing.T) {
	_, err := ParseLocators([]byte("locators:\n  empty: []\n"), "l.yaml")
	assert.ErrorContains(t, err, `locator "empty" has no strategies`)

	_, err = ParseLocators([]byte("locators:\n  bad:\n    - {id: a, css: b}\n"), "l.yaml")
	assert.Error(t, err)
}

func TestLoadLocators(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locators.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testLocators), 0o644))

	set, err := LoadLocators(path)
	require.NoError(t, err)
	assert.Len(t, set.Locators, 2)

	_, err = LoadLocators(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
