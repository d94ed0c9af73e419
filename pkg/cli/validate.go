package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

var validateCommand = &cli.Command{
	Name:      "validate",
	Usage:     "Parse and check workflows without running them",
	ArgsUsage: "[workflow files, directories or globs...]",
	Description: `Parses every workflow against the locator configuration and reports
unknown locators, unknown indicators, bad scope references, duplicate
workflow names and variables no earlier source defines.`,
	Flags: selectionFlags,
	Action: func(c *cli.Context) error {
		if c.Bool("no-ansi") {
			colorsEnabled = false
		}
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		sel, err := selectWorkflows(c, cfg)
		if err != nil {
			return err
		}
		out := c.App.Writer
		if err := reportProblems(out, sel.result); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s✓%s %d workflow(s) in %d file(s) valid\n",
			color(colorGreen), color(colorReset), len(sel.result.Workflows), len(sel.result.Files))
		return nil
	},
}
