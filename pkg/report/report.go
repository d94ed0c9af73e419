// Package report writes the outcome of a run to disk in several formats.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lmsqa/flowrunner/pkg/core"
)

// Names of the files WriteAll produces inside the output directory.
const (
	JSONFile    = "report.json"
	JUnitFile   = "junit.xml"
	MetricsFile = "metrics.prom"
	HTMLFile    = "report.html"
	AllureDir   = "allure-results"
)

type writer struct {
	name  string
	write func(path string, result *core.RunResult) error
}

var writers = []writer{
	{JSONFile, writeJSON},
	{JUnitFile, WriteJUnit},
	{MetricsFile, WriteMetrics},
	{HTMLFile, WriteHTML},
	{AllureDir, WriteAllure},
}

// WriteAll writes every report format into dir and returns the paths written.
// A failing format does not stop the others; their errors are joined.
func WriteAll(dir string, result *core.RunResult) ([]string, error) {
	if result == nil {
		return nil, errors.New("nil run result")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}

	var written []string
	var errs []error
	for _, w := range writers {
		path := filepath.Join(dir, w.name)
		if err := w.write(path, result); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", w.name, err))
			continue
		}
		written = append(written, path)
	}
	return written, errors.Join(errs...)
}

func writeJSON(path string, result *core.RunResult) error {
	return atomicWriteJSON(path, result)
}

// atomicWriteJSON writes through a temp file so readers never see a partial report.
func atomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return atomicWrite(path, data)
}

func atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}
