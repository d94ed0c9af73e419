package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/lmsqa/flowrunner/pkg/config"
	"github.com/lmsqa/flowrunner/pkg/flow"
	"github.com/lmsqa/flowrunner/pkg/learnpress"
	"github.com/lmsqa/flowrunner/pkg/validator"
)

// bundledSource names the embedded LearnPress workflows in listings and reports.
const bundledSource = "bundled"

// selection is the outcome of resolving workflow arguments, config file and flags.
type selection struct {
	cfg      *config.Config
	locators *flow.LocatorSet
	env      map[string]string
	result   *validator.Result
	bundled  bool
}

// loadConfig returns the file named by --config, or ./config.yaml when present.
func loadConfig(c *cli.Context) (*config.Config, error) {
	if path := c.String("config"); path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return cfg, nil
	}
	cfg, err := config.LoadFromDir(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// selectWorkflows parses and validates the workflows named on the command line,
// then in the config file, falling back to the bundled LearnPress workflows.
func selectWorkflows(c *cli.Context, cfg *config.Config) (*selection, error) {
	// Merge env variables: config env + CLI env (CLI takes precedence)
	env := make(map[string]string)
	for k, v := range cfg.Env {
		env[k] = v
	}
	for k, v := range parseEnvVars(c.StringSlice("env")) {
		env[k] = v
	}

	locatorsPath := cfg.Path(cfg.Locators)
	if c.IsSet("locators") {
		locatorsPath = c.String("locators")
	}
	locators, err := learnpress.LoadLocators(locatorsPath, stringSlice(c, "locale", cfg.Locales))
	if err != nil {
		return nil, err
	}

	v := validator.New(locators,
		stringSlice(c, "include-tags", cfg.IncludeTags),
		stringSlice(c, "exclude-tags", cfg.ExcludeTags),
		env)

	sel := &selection{cfg: cfg, locators: locators, env: env}
	paths := c.Args().Slice()
	if len(paths) == 0 {
		for _, p := range cfg.Workflows {
			paths = append(paths, cfg.Path(p))
		}
	}
	if len(paths) == 0 {
		wfs, err := learnpress.Workflows(locators)
		if err != nil {
			return nil, err
		}
		sel.bundled = true
		sel.result = v.ValidateWorkflows(bundledSource, wfs)
	} else {
		sel.result = v.Validate(paths...)
	}
	return sel, nil
}

// loginWorkflow returns the workflow that authenticates each session:
// the --login file when given, the bundled LearnPress login otherwise.
func loginWorkflow(path string, locators *flow.LocatorSet) (*flow.Workflow, error) {
	if path == "" {
		wf, err := learnpress.Login(locators)
		if err != nil {
			return nil, err
		}
		return &wf, nil
	}
	wfs, err := flow.ParseFile(path, locators)
	if err != nil {
		return nil, fmt.Errorf("login workflow: %w", err)
	}
	if len(wfs) != 1 {
		return nil, fmt.Errorf("login workflow %s: expected one workflow, got %d", path, len(wfs))
	}
	return &wfs[0], nil
}

// reportProblems prints validation warnings and errors and returns an error when
// any validation error was found.
func reportProblems(w io.Writer, result *validator.Result) error {
	for _, warning := range result.Warnings {
		fmt.Fprintf(w, "  %s⚠%s %s\n", color(colorYellow), color(colorReset), warning)
	}
	if result.IsValid() {
		return nil
	}
	fmt.Fprintln(w, "Validation errors:")
	for _, err := range result.Errors {
		fmt.Fprintf(w, "  - %v\n", err)
	}
	return fmt.Errorf("validation failed with %d error(s)", len(result.Errors))
}

// stringSlice returns the flag value when set, fallback otherwise.
func stringSlice(c *cli.Context, name string, fallback []string) []string {
	if c.IsSet(name) {
		return c.StringSlice(name)
	}
	return fallback
}

func parseEnvVars(envs []string) map[string]string {
	result := make(map[string]string)
	for _, e := range envs {
		parts := strings.SplitN(e, "=", 2)
		if len(parts) == 2 {
			result[parts[0]] = parts[1]
		}
	}
	return result
}
