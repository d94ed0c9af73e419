// Package config handles configuration for flowrunner.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lmsqa/flowrunner/pkg/core"
)

// Config represents the run configuration (config.yaml).
// Command-line flags override every value set here.
type Config struct {
	// Target site
	BaseURL  string `yaml:"baseUrl"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Workflow selection
	Workflows   []string `yaml:"workflows"`   // Files, directories or glob patterns; empty runs the bundled workflows
	IncludeTags []string `yaml:"includeTags"` // Tags to include
	ExcludeTags []string `yaml:"excludeTags"` // Tags to exclude
	Locators    string   `yaml:"locators"`    // Locator override file
	Locales     []string `yaml:"locales"`     // Accepted indicator locales, default all

	// Execution settings
	Env          map[string]string `yaml:"env"` // Environment variables
	Timeout      Duration          `yaml:"timeout"`
	PollInterval Duration          `yaml:"pollInterval"`
	ProbeTimeout Duration          `yaml:"probeTimeout"`
	Retries      int               `yaml:"retries"`
	Shards       int               `yaml:"shards"`
	StopOnFail   bool              `yaml:"stopOnFail"`

	Browser   Browser             `yaml:"browser"`
	Output    string              `yaml:"output"` // Report directory
	Artifacts core.ArtifactConfig `yaml:"artifacts"`

	dir string // Directory of the loaded file; relative paths resolve against it
}

// Browser configures the launched browser.
type Browser struct {
	Driver    string   `yaml:"driver"` // playwright (default) or fixture
	Name      string   `yaml:"name"`   // chromium, firefox or webkit
	Headless  *bool    `yaml:"headless"`
	SlowMo    Duration `yaml:"slowMo"`
	Width     int      `yaml:"width"`
	Height    int      `yaml:"height"`
	Locale    string   `yaml:"locale"`
	Install   bool     `yaml:"install"`
	DriverDir string   `yaml:"driverDir"` // Where install puts the driver, see DriverDir
	Insecure  bool     `yaml:"ignoreHttpsErrors"`
}

// IsHeadless reports the headless setting, defaulting to true.
func (b Browser) IsHeadless() bool {
	return b.Headless == nil || *b.Headless
}

// Duration is a time.Duration written as "10s" or "500ms" in YAML.
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q", node.Line, s)
	}
	*d = Duration(v)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.dir = filepath.Dir(path)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromDir looks for config.yaml or config.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	// Try config.yaml first
	configPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// Try config.yml
	configPath = filepath.Join(dir, "config.yml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// No config file found, return defaults
	return Default(), nil
}

// Default returns the configuration used when no file sets a value.
func Default() *Config {
	return &Config{
		Output:    "results",
		Artifacts: core.DefaultArtifactConfig(),
	}
}

// Validate checks values that would only fail later, mid-run.
func (c *Config) Validate() error {
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("baseUrl %q must be an absolute URL", c.BaseURL))
		}
	}
	if c.Password != "" && c.Username == "" {
		return core.ErrInvalidConfig.WithMessage("password set without username")
	}
	if c.Retries < 0 {
		return core.ErrInvalidConfig.WithMessage("retries must not be negative")
	}
	if c.Shards < 0 {
		return core.ErrInvalidConfig.WithMessage("shards must not be negative")
	}
	switch c.Browser.Driver {
	case "", "playwright", "fixture":
	default:
		return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("unknown driver %q", c.Browser.Driver))
	}
	return nil
}

// Path resolves p against the directory of the loaded config file.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) || c.dir == "" {
		return p
	}
	return filepath.Join(c.dir, p)
}
