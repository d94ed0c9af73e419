package fixture

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Site is a fixture site file: the origin and the pages served under it.
//
//	baseUrl: http://wp.local
//	pages:
//	  /wp-login.php:
//	    html: <html>...</html>
//	  /wp-admin/post.php:
//	    html: <html>saving...</html>
//	    revisions:
//	      - after: 200ms
//	        html: <html>Post published.</html>
type Site struct {
	BaseURL string          `yaml:"baseUrl"`
	Pages   map[string]Page `yaml:"pages"`
}

// LoadSite reads a fixture site file.
func LoadSite(path string) (*Site, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided fixture file
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture site: %w", err)
	}
	var site Site
	if err := yaml.Unmarshal(data, &site); err != nil {
		return nil, fmt.Errorf("%s: invalid fixture site: %w", path, err)
	}
	if len(site.Pages) == 0 {
		return nil, fmt.Errorf("%s: fixture site has no pages", path)
	}
	return &site, nil
}

// Config returns a browser configuration serving the site.
func (s *Site) Config() Config {
	return Config{BaseURL: s.BaseURL, Pages: s.Pages}
}
