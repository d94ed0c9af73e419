package report

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/lmsqa/flowrunner/pkg/core"
	"github.com/lmsqa/flowrunner/pkg/logger"
)

// Allure result schema types.

// AllureResult represents a single test result in Allure format.
type AllureResult struct {
	UUID          string              `json:"uuid"`
	HistoryID     string              `json:"historyId"`
	FullName      string              `json:"fullName"`
	Name          string              `json:"name"`
	Status        string              `json:"status"`
	Stage         string              `json:"stage"`
	Start         int64               `json:"start"`
	Stop          int64               `json:"stop"`
	Labels        []AllureLabel       `json:"labels"`
	StatusDetails AllureStatusDetails `json:"statusDetails"`
	Steps         []AllureStep        `json:"steps"`
	Attachments   []AllureAttachment  `json:"attachments"`
}

// AllureStep represents a step within a test result.
type AllureStep struct {
	Name          string              `json:"name"`
	Status        string              `json:"status"`
	Stage         string              `json:"stage"`
	Start         int64               `json:"start"`
	Stop          int64               `json:"stop"`
	StatusDetails AllureStatusDetails `json:"statusDetails"`
	Steps         []AllureStep        `json:"steps"`
	Attachments   []AllureAttachment  `json:"attachments"`
}

// AllureAttachment represents a file attachment.
type AllureAttachment struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	Type   string `json:"type"`
}

// AllureLabel represents a label on a test result.
type AllureLabel struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// AllureStatusDetails holds failure message and trace.
type AllureStatusDetails struct {
	Message string `json:"message"`
	Trace   string `json:"trace"`
}

// AllureCategory defines a failure category with regex matching.
type AllureCategory struct {
	Name            string   `json:"name"`
	MatchedStatuses []string `json:"matchedStatuses"`
	MessageRegex    string   `json:"messageRegex"`
}

// WriteAllure writes Allure-compatible result files into allureDir.
// Snapshot files are copied next to the results so the directory is self-contained.
func WriteAllure(allureDir string, result *core.RunResult) error {
	if err := os.MkdirAll(allureDir, 0o755); err != nil {
		return fmt.Errorf("create allure-results dir: %w", err)
	}

	for i, wf := range result.Workflows {
		res := buildAllureResult(result, wf, i)
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal allure result for %s: %w", wf.Name, err)
		}
		resultPath := filepath.Join(allureDir, res.UUID+"-result.json")
		if err := os.WriteFile(resultPath, data, 0o644); err != nil {
			return fmt.Errorf("write allure result %s: %w", wf.Name, err)
		}
		copyAllureAttachments(allureDir, wf)
	}

	if err := writeAllureCategories(allureDir); err != nil {
		return err
	}
	return writeAllureEnvironment(allureDir, result)
}

func buildAllureResult(run *core.RunResult, wf core.WorkflowReport, index int) AllureResult {
	startMs := wf.StartTime.UnixMilli()
	if wf.StartTime.IsZero() {
		startMs = 0
	}

	labels := []AllureLabel{
		{Name: "suite", Value: wf.Name},
		{Name: "framework", Value: "flowrunner"},
		{Name: "severity", Value: "normal"},
	}
	if wf.Source != "" {
		labels = append(labels, AllureLabel{Name: "parentSuite", Value: filepath.Base(wf.Source)})
	}
	for _, tag := range wf.Tags {
		labels = append(labels, AllureLabel{Name: "tag", Value: tag})
	}

	var details AllureStatusDetails
	details.Message = wf.Error
	if wf.Failure != nil {
		details.Trace = fmt.Sprintf("step %q failed while %s", wf.Failure.StepName, strings.ToLower(string(wf.Failure.Stage)))
	}

	steps := make([]AllureStep, 0, len(wf.Steps))
	var attachments []AllureAttachment
	for _, step := range wf.Steps {
		s := AllureStep{
			Name:          step.Name,
			Status:        mapAllureStatus(step.Status),
			Stage:         "finished",
			StatusDetails: AllureStatusDetails{Message: firstNonEmpty(step.Error, step.Message)},
			Steps:         []AllureStep{},
		}
		if !step.StartTime.IsZero() {
			s.Start = step.StartTime.UnixMilli()
			s.Stop = s.Start + step.Duration.Milliseconds()
		}
		for _, a := range step.Attachments {
			s.Attachments = append(s.Attachments, allureAttachment(a))
		}
		steps = append(steps, s)
	}
	for _, a := range wf.Diagnostics {
		attachments = append(attachments, allureAttachment(a))
	}

	return AllureResult{
		UUID:          fmt.Sprintf("%s-%03d-%d", run.RunID, index, wf.Attempt),
		HistoryID:     fnv32aHash(wf.Name + ":" + wf.Source),
		FullName:      wf.Name,
		Name:          wf.Name,
		Status:        mapAllureStatus(wf.Status),
		Stage:         "finished",
		Start:         startMs,
		Stop:          startMs + wf.Duration.Milliseconds(),
		Labels:        labels,
		StatusDetails: details,
		Steps:         steps,
		Attachments:   attachments,
	}
}

func allureAttachment(a core.Artifact) AllureAttachment {
	return AllureAttachment{
		Name:   a.Label,
		Source: filepath.Base(a.Path),
		Type:   a.ContentType,
	}
}

// copyAllureAttachments copies a workflow's snapshot files into allureDir.
func copyAllureAttachments(allureDir string, wf core.WorkflowReport) {
	var paths []string
	for _, a := range wf.Diagnostics {
		paths = append(paths, a.Path)
	}
	for _, step := range wf.Steps {
		for _, a := range step.Attachments {
			paths = append(paths, a.Path)
		}
	}
	for _, src := range paths {
		if src == "" {
			continue
		}
		copyFile(src, filepath.Join(allureDir, filepath.Base(src)))
	}
}

// copyFile copies a single file, logging instead of failing: a missing
// snapshot should not cost the rest of the report.
func copyFile(src, dst string) {
	in, err := os.Open(src)
	if err != nil {
		logger.Warn("allure attachment %s: %v", src, err)
		return
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		logger.Warn("allure attachment %s: %v", dst, err)
		return
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		logger.Warn("failed to copy %s to %s: %v", src, dst, err)
	}
}

// mapAllureStatus maps a step or workflow status to an Allure status string.
func mapAllureStatus(s core.StepStatus) string {
	switch s {
	case core.StatusPassed:
		return "passed"
	case core.StatusFailed:
		return "failed"
	case core.StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// fnv32aHash returns a hex-encoded FNV-32a hash of the input string.
func fnv32aHash(s string) string {
	h := fnv.New32a()
	h.Write([]byte(s))
	return fmt.Sprintf("%08x", h.Sum32())
}

// writeAllureCategories writes categories.json keyed on the runner's error messages.
func writeAllureCategories(allureDir string) error {
	categories := []AllureCategory{
		{Name: "Element Not Found", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*element not found.*"},
		{Name: "Wait Timeout", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*timed out.*"},
		{Name: "Assertion Mismatch", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*expected .*, observed .*"},
		{Name: "Authentication Failed", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*authentication.*"},
		{Name: "Session Closed", MatchedStatuses: []string{"failed", "skipped"}, MessageRegex: "(?i).*session.*"},
		{Name: "Action Failed", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).* failed.*"},
	}

	data, err := json.MarshalIndent(categories, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal categories: %w", err)
	}
	path := filepath.Join(allureDir, "categories.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write categories.json: %w", err)
	}
	return nil
}

// writeAllureEnvironment writes environment.properties with run metadata.
func writeAllureEnvironment(allureDir string, result *core.RunResult) error {
	var b strings.Builder
	b.WriteString("framework=flowrunner\n")
	if result.RunID != "" {
		b.WriteString(fmt.Sprintf("run.id=%s\n", result.RunID))
	}
	if result.BaseURL != "" {
		b.WriteString(fmt.Sprintf("site.baseUrl=%s\n", result.BaseURL))
	}

	path := filepath.Join(allureDir, "environment.properties")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write environment.properties: %w", err)
	}
	return nil
}
