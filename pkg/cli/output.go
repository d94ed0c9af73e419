package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/lmsqa/flowrunner/pkg/core"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// Steps slower than this are flagged in live output.
const slowThreshold = 5 * time.Second

// colorsEnabled determines if ANSI colors should be used
var colorsEnabled = true

func init() {
	// Respect NO_COLOR environment variable
	if os.Getenv("NO_COLOR") != "" {
		colorsEnabled = false
		return
	}
	// Check if stdout is a terminal
	if fileInfo, err := os.Stdout.Stat(); err == nil {
		if (fileInfo.Mode() & os.ModeCharDevice) == 0 {
			colorsEnabled = false
		}
	}
}

// color returns the color code if colors are enabled, empty string otherwise
func color(c string) string {
	if colorsEnabled {
		return c
	}
	return ""
}

// progress prints live workflow and step results.
// Shards report concurrently, so every callback holds mu.
type progress struct {
	w     io.Writer
	total int

	mu      sync.Mutex
	started int
}

func newProgress(w io.Writer, total int) *progress {
	return &progress{w: w, total: total}
}

func (p *progress) onWorkflowStart(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started++
	fmt.Fprintf(p.w, "\n  %s[%d/%d]%s %s%s%s\n",
		color(colorCyan), p.started, p.total, color(colorReset),
		color(colorBold), name, color(colorReset))
	fmt.Fprintln(p.w, strings.Repeat("─", 60))
}

func (p *progress) onStepComplete(workflow string, r core.StepResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	dur := formatDuration(r.Duration)
	switch r.Status {
	case core.StatusPassed:
		symbol, symbolColor, durColor := "✓", color(colorGreen), ""
		if r.Duration >= slowThreshold {
			symbol, symbolColor, durColor = "⚠", color(colorYellow), color(colorYellow)
		}
		fmt.Fprintf(p.w, "    %s%s%s %s %s(%s)%s\n",
			symbolColor, symbol, color(colorReset), r.Name, durColor, dur, color(colorReset))
	case core.StatusSkipped:
		fmt.Fprintf(p.w, "    %s-%s %s %s%s%s\n",
			color(colorCyan), color(colorReset), r.Name, color(colorGray), r.Message, color(colorReset))
	default:
		fmt.Fprintf(p.w, "    %s✗%s %s (%s)\n", color(colorRed), color(colorReset), r.Name, dur)
		if r.Error != "" {
			fmt.Fprintf(p.w, "      %s╰─%s %s: %s\n", color(colorGray), color(colorReset), r.Stage, r.Error)
		}
	}
}

func (p *progress) onWorkflowEnd(rep *core.WorkflowReport) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if rep.Success {
		fmt.Fprintf(p.w, "%s✓ %s%s %s%s%s\n",
			color(colorGreen), color(colorReset), rep.Name, color(colorGray), formatDuration(rep.Duration), color(colorReset))
		return
	}
	fmt.Fprintf(p.w, "%s✗ %s%s %s%s%s\n",
		color(colorRed), color(colorReset), rep.Name, color(colorGray), formatDuration(rep.Duration), color(colorReset))
	for _, d := range rep.Diagnostics {
		fmt.Fprintf(p.w, "  %ssnapshot:%s %s\n", color(colorGray), color(colorReset), d.Path)
	}
}

func printSummary(w io.Writer, result *core.RunResult) {
	totalSteps, passedSteps, failedSteps, skippedSteps := 0, 0, 0, 0
	for _, wf := range result.Workflows {
		totalSteps += wf.TotalSteps
		passedSteps += wf.PassedSteps
		failedSteps += wf.FailedSteps
		skippedSteps += wf.SkippedSteps
	}

	fmt.Fprintln(w)
	if passedSteps > 0 {
		fmt.Fprintf(w, "  %s%d steps passing%s (%s)\n", color(colorGreen), passedSteps, color(colorReset), formatDuration(result.Duration))
	}
	if failedSteps > 0 {
		fmt.Fprintf(w, "  %s%d steps failing%s\n", color(colorRed), failedSteps, color(colorReset))
	}
	if skippedSteps > 0 {
		fmt.Fprintf(w, "  %s%d steps skipped%s\n", color(colorCyan), skippedSteps, color(colorReset))
	}
	fmt.Fprintln(w)

	tableWidth := 92
	fmt.Fprintln(w, strings.Repeat("═", tableWidth))
	fmt.Fprintf(w, "  %-42s %6s %7s %6s %6s %6s %10s\n", "Workflow", "Status", "Steps", "Pass", "Fail", "Skip", "Duration")
	fmt.Fprintln(w, strings.Repeat("─", tableWidth))

	for _, wf := range result.Workflows {
		var status, statusColor string
		switch {
		case wf.Success:
			status, statusColor = "✓ PASS", color(colorGreen)
		case wf.Status == core.StatusSkipped:
			status, statusColor = "- SKIP", color(colorCyan)
		default:
			status, statusColor = "✗ FAIL", color(colorRed)
		}

		name := wf.Name
		if len(name) > 42 {
			name = name[:39] + "..."
		}

		fmt.Fprintf(w, "  %-42s %s%6s%s %7d %6d %6d %6d %10s\n",
			name, statusColor, status, color(colorReset),
			wf.TotalSteps, wf.PassedSteps, wf.FailedSteps, wf.SkippedSteps,
			formatDuration(wf.Duration))
	}

	fmt.Fprintln(w, strings.Repeat("─", tableWidth))
	statusStr := fmt.Sprintf("%d/%d", result.PassedWorkflows, result.TotalWorkflows)
	statusColor := color(colorGreen)
	if result.FailedWorkflows > 0 || result.Error != "" {
		statusColor = color(colorRed)
	}
	fmt.Fprintf(w, "  %s%-42s%s %s%6s%s %7d %6d %6d %6d %10s\n",
		color(colorBold), "TOTAL", color(colorReset),
		statusColor, statusStr, color(colorReset),
		totalSteps, passedSteps, failedSteps, skippedSteps,
		formatDuration(result.Duration))
	fmt.Fprintln(w, strings.Repeat("═", tableWidth))

	if result.Error != "" {
		fmt.Fprintf(w, "\n  %sRun error:%s %s\n", color(colorRed), color(colorReset), result.Error)
	}
}

// formatDuration shows milliseconds below one second, seconds below one minute.
func formatDuration(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	mins := ms / 60000
	secs := (ms % 60000) / 1000
	return fmt.Sprintf("%dm %ds", mins, secs)
}
