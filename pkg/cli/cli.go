// Package cli provides the command-line interface for flowrunner.
package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Usage:   "Path to config.yaml (default: ./config.yaml if present)",
		EnvVars: []string{"FLOWRUNNER_CONFIG"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable verbose logging",
		EnvVars: []string{"FLOWRUNNER_VERBOSE"},
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

// selectionFlags pick the workflows and locator configuration. Shared by run, list and validate.
var selectionFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "locators",
		Usage:   "Locator override file, merged over the bundled LearnPress locators",
		EnvVars: []string{"FLOWRUNNER_LOCATORS"},
	},
	&cli.StringSliceFlag{
		Name:    "locale",
		Usage:   "Accepted indicator locales (default: all configured)",
		EnvVars: []string{"FLOWRUNNER_LOCALES"},
	},
	&cli.StringSliceFlag{
		Name:  "include-tags",
		Usage: "Only include workflows with these tags",
	},
	&cli.StringSliceFlag{
		Name:  "exclude-tags",
		Usage: "Exclude workflows with these tags",
	},
	&cli.StringSliceFlag{
		Name:    "env",
		Aliases: []string{"e"},
		Usage:   "Variables (KEY=VALUE), override workflow env",
	},
}

// NewApp builds the command-line application.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "flowrunner",
		Usage:   "Resilient browser workflow runner for LearnPress sites",
		Version: Version,
		Description: `flowrunner runs YAML workflows against a WordPress/LearnPress site in a
real browser. Without workflow arguments it runs the bundled LearnPress workflows.

Examples:
  flowrunner run --base-url http://localhost:8080 -u admin -p admin
  flowrunner run flows/ -e COURSE_PREFIX=Nightly --include-tags smoke
  flowrunner run --shards 2 --retries 1
  flowrunner list
  flowrunner validate flows/`,
		Flags: GlobalFlags,
		Commands: []*cli.Command{
			runCommand,
			listCommand,
			validateCommand,
		},
	}
}

// Execute runs the CLI.
func Execute() {
	if err := NewApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
