// Package core provides the execution model types for flowrunner.
package core

import (
	"context"
	"time"
)

// Common content types
const (
	ContentTypePNG  = "image/png"
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain"
)

// Artifact is a file written by the diagnostics recorder. Write-once; the runner never reads it back.
type Artifact struct {
	Label       string    `json:"label"`
	Path        string    `json:"path"`
	Timestamp   time.Time `json:"timestamp"`
	ContentType string    `json:"contentType"`
}

// ArtifactConfig controls when snapshots are captured
type ArtifactConfig struct {
	Dir string `yaml:"dir" json:"dir"`

	// CaptureOnFailure takes one diagnostic snapshot per workflow-fatal failure. Default: true
	CaptureOnFailure bool `yaml:"captureOnFailure" json:"captureOnFailure"`
	// Checkpoints enables snapshot actions declared by workflows. Default: false
	Checkpoints bool `yaml:"checkpoints" json:"checkpoints"`
}

// DefaultArtifactConfig returns sensible defaults for artifact capture
func DefaultArtifactConfig() ArtifactConfig {
	return ArtifactConfig{
		Dir:              "screenshots",
		CaptureOnFailure: true,
		Checkpoints:      false,
	}
}

// ShouldCapture returns true if a diagnostic snapshot should be taken for the given status
func (c ArtifactConfig) ShouldCapture(status StepStatus) bool {
	return status == StatusFailed && c.CaptureOnFailure
}

// NullSnapshotter is a no-op implementation for testing
type NullSnapshotter struct{}

// Snapshot returns nil (no-op)
func (NullSnapshotter) Snapshot(context.Context) ([]byte, error) { return nil, nil }
