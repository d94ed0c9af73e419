package report

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lmsqa/flowrunner/pkg/core"
)

const namespace = "flowrunner"

// NewMetricsRegistry builds a registry describing one run: workflow and step
// counts by status, workflow durations, and a step duration histogram.
func NewMetricsRegistry(result *core.RunResult) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()

	workflows := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workflows",
			Help:      "Workflows in the run by final status",
		},
		[]string{"status"},
	)
	workflowDuration := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workflow_duration_seconds",
			Help:      "Wall time of the last attempt of each workflow",
		},
		[]string{"workflow", "status"},
	)
	workflowAttempts := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workflow_attempts",
			Help:      "Attempts used by each workflow",
		},
		[]string{"workflow"},
	)
	steps := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Steps executed by outcome",
		},
		[]string{"outcome"},
	)
	stepDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Step wall time",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
		[]string{"workflow"},
	)
	snapshots := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "diagnostic_snapshots",
		Help:      "Failure snapshots captured during the run",
	})
	runSuccess := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "run_success",
		Help:      "1 when every workflow passed",
	})

	for _, c := range []prometheus.Collector{
		workflows, workflowDuration, workflowAttempts, steps, stepDuration, snapshots, runSuccess,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}

	workflows.WithLabelValues("passed").Set(float64(result.PassedWorkflows))
	workflows.WithLabelValues("failed").Set(float64(result.FailedWorkflows))
	workflows.WithLabelValues("skipped").Set(float64(result.SkippedWorkflows))

	var snapshotCount int
	for _, wf := range result.Workflows {
		workflowDuration.WithLabelValues(wf.Name, wf.Status.String()).Set(wf.Duration.Seconds())
		workflowAttempts.WithLabelValues(wf.Name).Set(float64(wf.Attempt))
		snapshotCount += len(wf.Diagnostics)
		for _, step := range wf.Steps {
			if step.Status == core.StatusPending {
				continue
			}
			steps.WithLabelValues(step.Outcome.String()).Inc()
			stepDuration.WithLabelValues(wf.Name).Observe(step.Duration.Seconds())
		}
	}
	snapshots.Set(float64(snapshotCount))
	if result.Success() {
		runSuccess.Set(1)
	}
	return reg, nil
}

// WriteMetrics writes the run metrics in the node_exporter textfile format.
func WriteMetrics(path string, result *core.RunResult) error {
	reg, err := NewMetricsRegistry(result)
	if err != nil {
		return err
	}
	return prometheus.WriteToTextfile(path, reg)
}
