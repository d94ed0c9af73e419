package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/lmsqa/flowrunner/pkg/config"
	"github.com/lmsqa/flowrunner/pkg/core"
	"github.com/lmsqa/flowrunner/pkg/driver/fixture"
	"github.com/lmsqa/flowrunner/pkg/driver/playwright"
	"github.com/lmsqa/flowrunner/pkg/executor"
	"github.com/lmsqa/flowrunner/pkg/logger"
	"github.com/lmsqa/flowrunner/pkg/report"
	"github.com/lmsqa/flowrunner/pkg/session"
)

const (
	driverPlaywright = "playwright"
	driverFixture    = "fixture"
)

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Run workflows against a site",
	ArgsUsage: "[workflow files, directories or globs...]",
	Description: `Run workflows in a browser session. The session authenticates once
with the login workflow when a username is given.

Examples:
  flowrunner run --base-url http://localhost:8080 -u admin -p admin
  flowrunner run flows/create.yaml --headed --slow-mo 250ms
  flowrunner run --driver fixture --fixture-site site.yaml`,
	Flags: append([]cli.Flag{
		// Site
		&cli.StringFlag{
			Name:     "base-url",
			Usage:    "Site origin, relative navigate targets resolve against it",
			EnvVars:  []string{"FLOWRUNNER_BASE_URL"},
			Category: "Site",
		},
		&cli.StringFlag{
			Name:     "username",
			Aliases:  []string{"u"},
			Usage:    "Login username, enables session authentication",
			EnvVars:  []string{"FLOWRUNNER_USERNAME"},
			Category: "Site",
		},
		&cli.StringFlag{
			Name:     "password",
			Aliases:  []string{"p"},
			Usage:    "Login password",
			EnvVars:  []string{"FLOWRUNNER_PASSWORD"},
			Category: "Site",
		},
		&cli.StringFlag{
			Name:     "login",
			Usage:    "Login workflow file (default: bundled LearnPress login)",
			Category: "Site",
		},

		// Output
		&cli.StringFlag{
			Name:     "output",
			Usage:    "Report directory (default: ./results/<timestamp>)",
			Category: "Output",
		},
		&cli.BoolFlag{
			Name:     "flatten",
			Usage:    "Write reports directly into --output without a timestamp subfolder",
			Category: "Output",
		},
		&cli.BoolFlag{
			Name:     "checkpoints",
			Usage:    "Capture snapshot steps declared by workflows",
			Category: "Output",
		},

		// Execution
		&cli.DurationFlag{
			Name:     "timeout",
			Usage:    "Default step wait timeout",
			Category: "Execution",
		},
		&cli.DurationFlag{
			Name:     "poll-interval",
			Usage:    "Interval between wait condition checks",
			Category: "Execution",
		},
		&cli.DurationFlag{
			Name:     "probe-timeout",
			Usage:    "Existence-check window per locator strategy, 0 probes once (default: 2s)",
			Category: "Execution",
		},
		&cli.IntFlag{
			Name:     "retries",
			Usage:    "Extra attempts for a failed workflow",
			Category: "Execution",
		},
		&cli.IntFlag{
			Name:     "shards",
			Usage:    "Run workflows in N parallel sessions",
			Category: "Execution",
		},
		&cli.BoolFlag{
			Name:     "stop-on-fail",
			Usage:    "Skip remaining workflows after the first failure (sequential runs only)",
			Category: "Execution",
		},

		// Browser
		&cli.StringFlag{
			Name:     "driver",
			Usage:    "Browser driver: playwright or fixture",
			Category: "Browser",
		},
		&cli.StringFlag{
			Name:     "browser",
			Usage:    "chromium, firefox or webkit",
			Category: "Browser",
		},
		&cli.BoolFlag{
			Name:     "headed",
			Usage:    "Show the browser window",
			Category: "Browser",
		},
		&cli.DurationFlag{
			Name:     "slow-mo",
			Usage:    "Pause after every browser action",
			Category: "Browser",
		},
		&cli.BoolFlag{
			Name:     "install",
			Usage:    "Download the Playwright driver and browser before launching",
			Category: "Browser",
		},
		&cli.StringFlag{
			Name:     "fixture-site",
			Usage:    "Site file served by the fixture driver",
			Category: "Browser",
		},
	}, selectionFlags...),
	Action: runAction,
}

// runSettings is the merged outcome of flags, config file and defaults.
type runSettings struct {
	outputDir   string
	driver      string
	fixtureSite string
	shards      int
	runner      executor.RunnerConfig
	browser     playwright.Config
}

func runAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	rs, err := resolveRunSettings(c, cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(rs.outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	logPath := filepath.Join(rs.outputDir, "flowrunner.log")
	if err := logger.Init(logPath, c.Bool("verbose")); err != nil {
		fmt.Fprintf(c.App.ErrWriter, "Warning: Failed to initialize logger: %v\n", err)
	}
	defer logger.Close()

	if c.Bool("no-ansi") {
		colorsEnabled = false
	}
	out := c.App.Writer

	sel, err := selectWorkflows(c, cfg)
	if err != nil {
		return err
	}
	if err := reportProblems(out, sel.result); err != nil {
		return err
	}
	if len(sel.result.Workflows) == 0 {
		return fmt.Errorf("no workflows selected")
	}
	logger.Info("Validated %d workflow(s) from %d file(s)", len(sel.result.Workflows), len(sel.result.Files))

	if rs.runner.Session.HasCredentials() {
		login, err := loginWorkflow(c.String("login"), sel.locators)
		if err != nil {
			return err
		}
		rs.runner.Login = login
	}
	rs.runner.Executor.Env = sel.env

	launcher, err := newLauncher(rs)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	prog := newProgress(out, len(sel.result.Workflows))
	rs.runner.Executor.OnWorkflowStart = prog.onWorkflowStart
	rs.runner.Executor.OnStepComplete = prog.onStepComplete
	rs.runner.Executor.OnWorkflowEnd = prog.onWorkflowEnd

	fmt.Fprintf(out, "\n%sRunning %d workflow(s)%s against %s (%s)\n",
		color(colorBold), len(sel.result.Workflows), color(colorReset), siteLabel(rs), rs.driver)

	var result *core.RunResult
	var runErr error
	if rs.shards > 1 {
		result, runErr = executor.NewParallelRunner(launcher, rs.shards, rs.runner).Run(ctx, sel.result.Workflows)
	} else {
		result, runErr = executor.NewRunner(launcher, rs.runner).Run(ctx, sel.result.Workflows)
	}
	if result != nil {
		printSummary(out, result)
		printReports(out, rs.outputDir)
	}
	if runErr != nil {
		return runErr
	}
	if ctx.Err() != nil {
		fmt.Fprintln(c.App.ErrWriter, "Run interrupted")
		return cli.Exit("", 130)
	}
	if !result.Success() {
		return cli.Exit("", 1)
	}
	return nil
}

// resolveRunSettings applies flag > config file > default precedence.
func resolveRunSettings(c *cli.Context, cfg *config.Config) (*runSettings, error) {
	output := cfg.Path(cfg.Output)
	if c.IsSet("output") {
		output = c.String("output")
	}
	outputDir, err := resolveOutputDir(output, c.Bool("flatten"))
	if err != nil {
		return nil, err
	}

	rs := &runSettings{
		outputDir:   outputDir,
		driver:      cfg.Browser.Driver,
		fixtureSite: c.String("fixture-site"),
		shards:      cfg.Shards,
	}
	if c.IsSet("driver") {
		rs.driver = c.String("driver")
	}
	if rs.driver == "" {
		rs.driver = driverPlaywright
	}
	if c.IsSet("shards") {
		rs.shards = c.Int("shards")
	}

	sess := session.Config{
		BaseURL:        stringFlag(c, "base-url", cfg.BaseURL),
		Username:       stringFlag(c, "username", cfg.Username),
		Password:       stringFlag(c, "password", cfg.Password),
		DefaultTimeout: durationFlag(c, "timeout", cfg.Timeout.Std()),
		PollInterval:   durationFlag(c, "poll-interval", cfg.PollInterval.Std()),
		SlowMo:         durationFlag(c, "slow-mo", cfg.Browser.SlowMo.Std()),
	}

	exec := executor.DefaultConfig()
	if sess.DefaultTimeout > 0 {
		exec.Timeout = sess.DefaultTimeout
	}
	if sess.PollInterval > 0 {
		exec.PollInterval = sess.PollInterval
	}
	if cfg.ProbeTimeout > 0 {
		exec.ProbeTimeout = cfg.ProbeTimeout.Std()
	}
	if c.IsSet("probe-timeout") {
		exec.ProbeTimeout = c.Duration("probe-timeout")
	}
	exec.SlowMo = sess.SlowMo
	exec.Artifacts = cfg.Artifacts
	if c.Bool("checkpoints") {
		exec.Artifacts.Checkpoints = true
	}
	if exec.Artifacts.Dir == "" || !filepath.IsAbs(exec.Artifacts.Dir) {
		exec.Artifacts.Dir = filepath.Join(outputDir, exec.Artifacts.Dir)
	}

	retries := cfg.Retries
	if c.IsSet("retries") {
		retries = c.Int("retries")
	}
	if retries < 0 || rs.shards < 0 {
		return nil, fmt.Errorf("retries and shards must not be negative")
	}

	rs.runner = executor.RunnerConfig{
		Session:    sess,
		Executor:   exec,
		OutputDir:  outputDir,
		Retries:    retries,
		StopOnFail: cfg.StopOnFail || c.Bool("stop-on-fail"),
	}

	headless := cfg.Browser.IsHeadless()
	if c.Bool("headed") {
		headless = false
	}
	rs.browser = playwright.Config{
		Browser:           stringFlag(c, "browser", cfg.Browser.Name),
		Headless:          headless,
		SlowMo:            sess.SlowMo,
		Width:             cfg.Browser.Width,
		Height:            cfg.Browser.Height,
		Locale:            cfg.Browser.Locale,
		Install:           cfg.Browser.Install || c.Bool("install"),
		DriverDir:         cfg.DriverDir(driverPlaywright),
		IgnoreHTTPSErrors: cfg.Browser.Insecure,
		ProbeTimeout:      exec.ProbeTimeout,
	}
	return rs, nil
}

// newLauncher builds the session launcher for the selected driver.
func newLauncher(rs *runSettings) (session.Launcher, error) {
	switch rs.driver {
	case driverPlaywright:
		if rs.runner.Session.BaseURL == "" {
			return nil, fmt.Errorf("--base-url is required for the playwright driver")
		}
		// Playwright applies slow-mo itself.
		rs.runner.Executor.SlowMo = 0
		return playwright.NewLauncher(rs.browser), nil
	case driverFixture:
		if rs.fixtureSite == "" {
			return nil, fmt.Errorf("--fixture-site is required for the fixture driver")
		}
		site, err := fixture.LoadSite(rs.fixtureSite)
		if err != nil {
			return nil, err
		}
		if rs.runner.Session.BaseURL == "" {
			rs.runner.Session.BaseURL = site.BaseURL
		}
		return session.LauncherFunc(func(ctx context.Context) (core.Browser, error) {
			return fixture.New(site.Config()), nil
		}), nil
	default:
		return nil, fmt.Errorf("unknown driver %q (use %s or %s)", rs.driver, driverPlaywright, driverFixture)
	}
}

func siteLabel(rs *runSettings) string {
	if rs.runner.Session.BaseURL == "" {
		return "(no base URL)"
	}
	return rs.runner.Session.BaseURL
}

// printReports lists the report files present in dir.
func printReports(w io.Writer, dir string) {
	fmt.Fprintf(w, "\n  Reports: %s\n", dir)
	for _, name := range []string{report.JSONFile, report.JUnitFile, report.HTMLFile, report.MetricsFile, report.AllureDir} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			fmt.Fprintf(w, "    %s%s%s\n", color(colorGray), name, color(colorReset))
		}
	}
}

// resolveOutputDir places reports in a timestamp subfolder of output unless flatten is set.
func resolveOutputDir(output string, flatten bool) (string, error) {
	if flatten && output == "" {
		return "", fmt.Errorf("--flatten requires --output to be specified")
	}

	baseDir := output
	if baseDir == "" {
		baseDir = "./results"
	}

	if flatten {
		return filepath.Clean(baseDir), nil
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(baseDir, timestamp), nil
}

func stringFlag(c *cli.Context, name, fallback string) string {
	if c.IsSet(name) {
		return c.String(name)
	}
	return fallback
}

func durationFlag(c *cli.Context, name string, fallback time.Duration) time.Duration {
	if c.IsSet(name) {
		return c.Duration(name)
	}
	return fallback
}
