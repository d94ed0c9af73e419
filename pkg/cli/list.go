package cli

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"
)

var listCommand = &cli.Command{
	Name:      "list",
	Usage:     "List the workflows a run would execute",
	ArgsUsage: "[workflow files, directories or globs...]",
	Flags:     selectionFlags,
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

		source := strings.Join(sel.result.Files, ", ")
		if sel.bundled {
			source = "bundled LearnPress workflows"
		}
		fmt.Fprintf(out, "%d workflow(s) from %s\n\n", len(sel.result.Workflows), source)
		for _, wf := range sel.result.Workflows {
			tags := ""
			if len(wf.Config.Tags) > 0 {
				tags = fmt.Sprintf(" %s[%s]%s", color(colorGray), strings.Join(wf.Config.Tags, ", "), color(colorReset))
			}
			fmt.Fprintf(out, "  %-42s %3d steps%s\n", wf.Name(), len(wf.Steps), tags)
		}
		return nil
	},
}
