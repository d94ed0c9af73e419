// Package diag captures visual snapshots of browser state when a workflow fails.
package diag

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/lmsqa/flowrunner/pkg/core"
	"github.com/lmsqa/flowrunner/pkg/logger"
)

// TimestampFormat prefixes every artifact file name.
const TimestampFormat = "20060102_150405"

const maxLabelLen = 120

var (
	unsafeLabel = regexp.MustCompile(`[^A-Za-z0-9_-]+`)
	underscores = regexp.MustCompile(`__+`)
)

// Recorder writes snapshots to an artifact directory.
// Capture never panics and its errors are meant to be logged and dropped.
type Recorder struct {
	dir string
	now func() time.Time

	once   sync.Once
	dirErr error

	mu        sync.Mutex
	artifacts []core.Artifact
}

// NewRecorder creates a recorder writing under dir. The directory is created on first capture.
func NewRecorder(dir string) *Recorder {
	return &Recorder{dir: dir, now: time.Now}
}

// Dir returns the artifact directory.
func (r *Recorder) Dir() string {
	return r.dir
}

// Capture takes a snapshot and writes it as {YYYYMMDD_HHMMSS}_{label}.png.
// A failure is returned as a RecorderFailure execution error and logged.
func (r *Recorder) Capture(ctx context.Context, s core.Snapshotter, label string) (art core.Artifact, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
		if err != nil {
			err = core.ErrRecorderFailed.WithMessage(fmt.Sprintf("capture %q failed", label)).WithCause(err)
			logger.Warn("%v", err)
		}
	}()

	if s == nil {
		return art, errors.New("no snapshot source")
	}
	if err := r.ensureDir(); err != nil {
		return art, err
	}

	data, err := s.Snapshot(ctx)
	if err != nil {
		return art, fmt.Errorf("snapshot: %w", err)
	}
	if len(data) == 0 {
		return art, errors.New("snapshot returned no data")
	}

	ts := r.now()
	base := ts.Format(TimestampFormat) + "_" + SanitizeLabel(label)
	path, err := r.writeOnce(base, data)
	if err != nil {
		return art, err
	}

	art = core.Artifact{
		Label:       label,
		Path:        path,
		Timestamp:   ts,
		ContentType: core.ContentTypePNG,
	}
	r.mu.Lock()
	r.artifacts = append(r.artifacts, art)
	r.mu.Unlock()
	logger.Info("snapshot saved: %s", path)
	return art, nil
}

// Artifacts returns every artifact written so far.
func (r *Recorder) Artifacts() []core.Artifact {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.Artifact(nil), r.artifacts...)
}

func (r *Recorder) ensureDir() error {
	r.once.Do(func() {
		if r.dir == "" {
			r.dirErr = errors.New("artifact directory not configured")
			return
		}
		if err := os.MkdirAll(r.dir, 0o755); err != nil {
			r.dirErr = fmt.Errorf("create artifact directory: %w", err)
		}
	})
	return r.dirErr
}

// writeOnce creates a new file; same-second collisions get a -N suffix.
func (r *Recorder) writeOnce(base string, data []byte) (string, error) {
	for n := 0; n < 1000; n++ {
		name := base + ".png"
		if n > 0 {
			name = fmt.Sprintf("%s-%d.png", base, n)
		}
		path := filepath.Join(r.dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644) //#nosec G304 -- path built from sanitized label
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create %s: %w", path, err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", fmt.Errorf("write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("close %s: %w", path, err)
		}
		return path, nil
	}
	return "", fmt.Errorf("too many snapshots named %s", base)
}

// SanitizeLabel maps a label to a file-name-safe form.
func SanitizeLabel(label string) string {
	s := underscores.ReplaceAllString(unsafeLabel.ReplaceAllString(label, "_"), "_")
	if len(s) > maxLabelLen {
		s = s[:maxLabelLen]
	}
	if s == "" || s == "_" {
		return "snapshot"
	}
	return s
}
