package config

import (
	"os"
	"path/filepath"
)

// EnvHome relocates everything flowrunner downloads.
const EnvHome = "FLOWRUNNER_HOME"

// DriverDir returns where the named browser driver is installed:
// $FLOWRUNNER_HOME/drivers/<name>, else <user cache dir>/flowrunner/drivers/<name>.
// Empty when neither is available; the driver library then uses its own default.
func DriverDir(name string) string {
	if home := os.Getenv(EnvHome); home != "" {
		return filepath.Join(home, "drivers", name)
	}
	cache, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(cache, "flowrunner", "drivers", name)
}

// DriverDir returns the configured browser driver directory, falling back to
// the default location for the named driver.
func (c *Config) DriverDir(name string) string {
	if c.Browser.DriverDir != "" {
		return c.Path(c.Browser.DriverDir)
	}
	return DriverDir(name)
}
