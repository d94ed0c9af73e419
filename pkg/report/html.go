package report

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lmsqa/flowrunner/pkg/core"
)

// HTMLConfig contains configuration for HTML report generation.
type HTMLConfig struct {
	Title       string // Report title (default: "Workflow Report")
	EmbedAssets bool   // Embed snapshots as base64 (makes file larger but portable)
}

// HTMLData contains all data needed for the HTML template.
type HTMLData struct {
	Title         string
	GeneratedAt   string
	Run           *core.RunResult
	Workflows     []WorkflowHTMLData
	TotalDuration string
	PassRate      float64
}

// WorkflowHTMLData contains workflow data formatted for HTML.
type WorkflowHTMLData struct {
	Name        string
	Attempt     int
	StatusClass string
	DurationStr string
	DurationPct float64
	Error       string
	FailedStep  string
	FailedStage string
	Snapshots   []string
	Steps       []StepHTMLData
}

// StepHTMLData contains step data formatted for HTML.
type StepHTMLData struct {
	Name        string
	StatusClass string
	Outcome     string
	Stage       string
	DurationStr string
	Message     string
	Element     string
}

// WriteHTML writes a static HTML summary of the run with default settings.
func WriteHTML(path string, result *core.RunResult) error {
	return GenerateHTML(path, result, HTMLConfig{})
}

// GenerateHTML renders result into a single HTML file at path.
func GenerateHTML(path string, result *core.RunResult, cfg HTMLConfig) error {
	if cfg.Title == "" {
		cfg.Title = "Workflow Report"
	}

	html, err := renderHTML(buildHTMLData(result, cfg))
	if err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	if err := atomicWrite(path, []byte(html)); err != nil {
		return fmt.Errorf("write html: %w", err)
	}
	return nil
}

func buildHTMLData(result *core.RunResult, cfg HTMLConfig) HTMLData {
	var maxDuration time.Duration
	for _, wf := range result.Workflows {
		if wf.Duration > maxDuration {
			maxDuration = wf.Duration
		}
	}

	workflows := make([]WorkflowHTMLData, len(result.Workflows))
	for i, wf := range result.Workflows {
		data := WorkflowHTMLData{
			Name:        wf.Name,
			Attempt:     wf.Attempt,
			StatusClass: wf.Status.String(),
			DurationStr: formatDuration(wf.Duration),
			Error:       wf.Error,
		}
		if maxDuration > 0 {
			data.DurationPct = float64(wf.Duration) / float64(maxDuration) * 100
		}
		if wf.Failure != nil {
			data.FailedStep = wf.Failure.StepName
			data.FailedStage = string(wf.Failure.Stage)
		}
		for _, a := range wf.Diagnostics {
			if cfg.EmbedAssets {
				if src := loadAsBase64(a.Path); src != "" {
					data.Snapshots = append(data.Snapshots, src)
				}
				continue
			}
			data.Snapshots = append(data.Snapshots, a.Path)
		}
		for _, step := range wf.Steps {
			s := StepHTMLData{
				Name:        step.Name,
				StatusClass: step.Status.String(),
				Outcome:     step.Outcome.String(),
				Stage:       string(step.Stage),
				DurationStr: formatDuration(step.Duration),
				Message:     firstNonEmpty(step.Error, step.Message),
			}
			if step.Element != nil {
				s.Element = fmt.Sprintf("%s #%d", step.Element.Strategy, step.Element.Index)
			}
			data.Steps = append(data.Steps, s)
		}
		workflows[i] = data
	}

	var passRate float64
	if result.TotalWorkflows > 0 {
		passRate = float64(result.PassedWorkflows) / float64(result.TotalWorkflows) * 100
	}

	return HTMLData{
		Title:         cfg.Title,
		GeneratedAt:   time.Now().Format("2006-01-02 15:04:05"),
		Run:           result,
		Workflows:     workflows,
		TotalDuration: formatDuration(result.Duration),
		PassRate:      passRate,
	}
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
}

func loadAsBase64(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	ext := strings.ToLower(filepath.Ext(path))
	mimeType := "image/png"
	if ext == ".jpg" || ext == ".jpeg" {
		mimeType = "image/jpeg"
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

func renderHTML(data HTMLData) (string, error) {
	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"safeURL": func(s string) template.URL { return template.URL(s) },
	}).Parse(htmlTemplate)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        :root {
            --bg-primary: #ffffff;
            --bg-secondary: #f9fafb;
            --text-primary: #000000;
            --text-muted: rgb(107, 114, 128);
            --border-color: #e5e7eb;
            --passed: #22c55e;
            --failed: #ef4444;
            --failed-bg: rgba(239, 68, 68, 0.08);
            --skipped: #eab308;
            --pending: #6b7280;
            --accent: #06b6d4;
        }
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            background: var(--bg-primary);
            color: var(--text-primary);
            line-height: 1.5;
        }
        .header {
            background: var(--bg-secondary);
            border-bottom: 1px solid var(--border-color);
            padding: 16px 24px;
        }
        .header h1 { font-size: 18px; font-weight: 600; }
        .header .meta { font-size: 12px; color: var(--text-muted); }
        .summary { display: flex; gap: 24px; padding: 16px 24px; font-size: 14px; }
        .summary .passed { color: var(--passed); }
        .summary .failed { color: var(--failed); }
        .summary .skipped { color: var(--skipped); }
        .run-error { margin: 0 24px 16px; padding: 12px; background: var(--failed-bg); border-radius: 8px; }
        .workflow {
            margin: 0 24px 12px;
            border: 1px solid var(--border-color);
            border-radius: 8px;
        }
        .workflow summary {
            display: flex;
            align-items: center;
            gap: 10px;
            padding: 12px;
            cursor: pointer;
        }
        .workflow summary:hover { border-color: var(--accent); }
        .status-dot { width: 10px; height: 10px; border-radius: 50%; flex-shrink: 0; }
        .status-dot.passed { background: var(--passed); }
        .status-dot.failed { background: var(--failed); }
        .status-dot.skipped { background: var(--skipped); }
        .status-dot.pending { background: var(--pending); }
        .flow-name { font-size: 14px; font-weight: 500; flex: 1; }
        .duration-bar { width: 80px; height: 4px; background: var(--border-color); border-radius: 2px; }
        .duration-fill { height: 100%; background: var(--accent); border-radius: 2px; }
        .meta-small { font-size: 12px; color: var(--text-muted); }
        .failure { padding: 8px 12px; background: var(--failed-bg); font-size: 13px; }
        table { width: 100%; border-collapse: collapse; font-size: 13px; }
        td, th { text-align: left; padding: 6px 12px; border-top: 1px solid var(--border-color); }
        th { color: var(--text-muted); font-weight: 500; }
        .snapshot img { max-width: 480px; margin: 8px 12px; border: 1px solid var(--border-color); }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.Title}}</h1>
        <div class="meta">run {{.Run.RunID}} &middot; {{.Run.BaseURL}} &middot; generated {{.GeneratedAt}} &middot; {{.TotalDuration}}</div>
    </div>
    <div class="summary">
        <span>{{.Run.TotalWorkflows}} workflows</span>
        <span class="passed">{{.Run.PassedWorkflows}} passed</span>
        <span class="failed">{{.Run.FailedWorkflows}} failed</span>
        <span class="skipped">{{.Run.SkippedWorkflows}} skipped</span>
        <span>{{printf "%.0f" .PassRate}}% pass rate</span>
    </div>
    {{if .Run.Error}}<div class="run-error">{{.Run.Error}}</div>{{end}}
    {{range .Workflows}}
    <details class="workflow" {{if eq .StatusClass "failed"}}open{{end}}>
        <summary>
            <span class="status-dot {{.StatusClass}}"></span>
            <span class="flow-name">{{.Name}}</span>
            {{if gt .Attempt 1}}<span class="meta-small">attempt {{.Attempt}}</span>{{end}}
            <span class="meta-small">{{len .Steps}} steps</span>
            <div class="duration-bar"><div class="duration-fill" style="width: {{printf "%.1f" .DurationPct}}%"></div></div>
            <span class="meta-small">{{.DurationStr}}</span>
        </summary>
        {{if .FailedStep}}<div class="failure">step <b>{{.FailedStep}}</b> failed while {{.FailedStage}}: {{.Error}}</div>
        {{else if .Error}}<div class="failure">{{.Error}}</div>{{end}}
        {{if .Steps}}
        <table>
            <tr><th></th><th>step</th><th>outcome</th><th>stage</th><th>element</th><th>time</th><th>message</th></tr>
            {{range .Steps}}
            <tr>
                <td><span class="status-dot {{.StatusClass}}"></span></td>
                <td>{{.Name}}</td>
                <td>{{.Outcome}}</td>
                <td>{{.Stage}}</td>
                <td>{{.Element}}</td>
                <td>{{.DurationStr}}</td>
                <td>{{.Message}}</td>
            </tr>
            {{end}}
        </table>
        {{end}}
        {{range .Snapshots}}<div class="snapshot"><img src="{{safeURL .}}" alt="failure snapshot"></div>{{end}}
    </details>
    {{end}}
</body>
</html>
`
