package report

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/lmsqa/flowrunner/pkg/core"
)

type junitReport struct {
	XMLName    xml.Name     `xml:"testsuites"`
	Name       string       `xml:"name,attr"`
	Tests      int          `xml:"tests,attr"`
	Failures   int          `xml:"failures,attr"`
	Skipped    int          `xml:"skipped,attr"`
	Time       float64      `xml:"time,attr"`
	TestSuites []junitSuite `xml:"testsuite"`
}

type junitSuite struct {
	Name      string      `xml:"name,attr"`
	Tests     int         `xml:"tests,attr"`
	Failures  int         `xml:"failures,attr"`
	Skipped   int         `xml:"skipped,attr"`
	Time      float64     `xml:"time,attr"`
	Timestamp string      `xml:"timestamp,attr,omitempty"`
	TestCases []junitCase `xml:"testcase"`
}

type junitCase struct {
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *junitFailure `xml:"failure,omitempty"`
	Skipped   *junitSkipped `xml:"skipped,omitempty"`
	SystemOut string        `xml:"system-out,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Value   string `xml:",chardata"`
}

type junitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// WriteJUnit writes one testsuite per workflow and one testcase per step.
func WriteJUnit(path string, result *core.RunResult) error {
	data, err := xml.MarshalIndent(buildJUnit(result), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal junit: %w", err)
	}
	return atomicWrite(path, append([]byte(xml.Header), data...))
}

func buildJUnit(result *core.RunResult) junitReport {
	out := junitReport{
		Name: "flowrunner " + result.RunID,
		Time: result.Duration.Seconds(),
	}
	for _, wf := range result.Workflows {
		suite := junitSuite{
			Name: wf.Name,
			Time: wf.Duration.Seconds(),
		}
		if !wf.StartTime.IsZero() {
			suite.Timestamp = wf.StartTime.UTC().Format("2006-01-02T15:04:05")
		}
		for _, step := range wf.Steps {
			tc := junitCase{
				Name:      step.Name,
				ClassName: wf.Name,
				Time:      step.Duration.Seconds(),
			}
			switch step.Status {
			case core.StatusFailed:
				tc.Failure = &junitFailure{
					Message: step.Error,
					Type:    step.Outcome.String(),
					Value:   failureBody(wf, step),
				}
				suite.Failures++
			case core.StatusSkipped, core.StatusPending:
				tc.Skipped = &junitSkipped{Message: firstNonEmpty(step.Message, step.Error)}
				suite.Skipped++
			}
			suite.TestCases = append(suite.TestCases, tc)
		}
		// A workflow that never ran still shows up, as a single skipped case.
		if len(wf.Steps) == 0 {
			tc := junitCase{Name: wf.Name, ClassName: wf.Name}
			if wf.Status == core.StatusSkipped {
				tc.Skipped = &junitSkipped{Message: wf.Error}
				suite.Skipped++
			} else if !wf.Success {
				tc.Failure = &junitFailure{Message: wf.Error, Type: "workflow"}
				suite.Failures++
			}
			suite.TestCases = append(suite.TestCases, tc)
		}
		suite.Tests = len(suite.TestCases)

		out.Tests += suite.Tests
		out.Failures += suite.Failures
		out.Skipped += suite.Skipped
		out.TestSuites = append(out.TestSuites, suite)
	}
	return out
}

func failureBody(wf core.WorkflowReport, step core.StepResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "stage: %s\n", step.Stage)
	if step.Error != "" {
		fmt.Fprintf(&b, "error: %s\n", step.Error)
	}
	for _, a := range wf.Diagnostics {
		fmt.Fprintf(&b, "snapshot: %s\n", a.Path)
	}
	return b.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
