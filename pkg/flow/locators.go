package flow

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LocatorSet maps locator names to fallback strategies and indicator names to
// accepted texts per locale. It is fixture data for one target application and
// is kept out of workflow logic so markup changes need no code change.
type LocatorSet struct {
	Locales    []string                       `yaml:"locales"`
	Locators   map[string][]Strategy          `yaml:"locators"`
	Indicators map[string]map[string][]string `yaml:"indicators"` // name -> locale -> texts
}

// ParseLocators parses a locator configuration document.
func ParseLocators(data []byte, sourcePath string) (*LocatorSet, error) {
	var set LocatorSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, &ParseError{Path: sourcePath, Message: fmt.Sprintf("invalid locator config: %v", err)}
	}
	for name, strategies := range set.Locators {
		if len(strategies) == 0 {
			return nil, &ParseError{Path: sourcePath, Message: fmt.Sprintf("locator %q has no strategies", name)}
		}
	}
	return &set, nil
}

// LoadLocators reads a locator configuration file.
func LoadLocators(path string) (*LocatorSet, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided locator file
	if err != nil {
		return nil, fmt.Errorf("failed to read locator config: %w", err)
	}
	return ParseLocators(data, path)
}

// Merge returns a new set where entries of override replace entries of l.
func (l *LocatorSet) Merge(override *LocatorSet) *LocatorSet {
	out := &LocatorSet{
		Locales:    l.Locales,
		Locators:   make(map[string][]Strategy, len(l.Locators)),
		Indicators: make(map[string]map[string][]string, len(l.Indicators)),
	}
	for k, v := range l.Locators {
		out.Locators[k] = v
	}
	for k, v := range l.Indicators {
		out.Indicators[k] = v
	}
	if override == nil {
		return out
	}
	if len(override.Locales) > 0 {
		out.Locales = override.Locales
	}
	for k, v := range override.Locators {
		out.Locators[k] = v
	}
	for k, v := range override.Indicators {
		out.Indicators[k] = v
	}
	return out
}

// Strategies returns the strategies registered under name.
func (l *LocatorSet) Strategies(name string) ([]Strategy, bool) {
	if l == nil {
		return nil, false
	}
	s, ok := l.Locators[name]
	return s, ok
}

// Indicator returns the accepted texts of the named indicator for the configured
// locales, in locale order. With no locales configured every locale is accepted.
func (l *LocatorSet) Indicator(name string) ([]string, bool) {
	if l == nil {
		return nil, false
	}
	perLocale, ok := l.Indicators[name]
	if !ok {
		return nil, false
	}

	locales := l.Locales
	if len(locales) == 0 {
		locales = sortedKeys(perLocale)
	}
	var texts []string
	for _, locale := range locales {
		texts = append(texts, perLocale[locale]...)
	}
	return texts, len(texts) > 0
}
