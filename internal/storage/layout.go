// Package storage is the Storage Layout Service (C5): it pre-creates
// the on-disk directory tree a job's steps will write into, and never
// writes a file itself. Grounded on the module's former embedded-storage
// connection setup, which did the same "mkdir, log on failure, never
// fail startup over it" dance for its own data directory.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"
)

// Layout resolves and pre-creates the directory tree under a storage
// root of the shape:
//
//	STORAGE_ROOT/users/<user_id>/jobs/<job_id>/<composite_name>/
//
// one such directory per step, plus whatever directories a step's
// resolved output paths imply.
type Layout struct {
	root   string
	logger arbor.ILogger
}

// New returns a Layout rooted at root. root is not created here; call
// EnsureStepDir for each step once the job's steps are known.
func New(logger arbor.ILogger, root string) *Layout {
	return &Layout{root: root, logger: logger}
}

// StepDir returns the absolute directory a step's outputs live under,
// without creating it.
func (l *Layout) StepDir(userID, jobID, compositeName string) string {
	return filepath.Join(l.root, "users", userID, "jobs", jobID, compositeName)
}

// EnsureStepDir creates a step's directory, and the parent directory of
// each output path (relative to the storage root), if absent. mkdir
// failures are logged and
// swallowed — a missing scratch directory surfaces later as a concrete
// MissingInput or CommandFailed from the Worker Runtime, which is a more
// actionable failure than aborting job creation over a filesystem hiccup.
func (l *Layout) EnsureStepDir(userID, jobID, compositeName string, outputPaths []string) string {
	dir := l.StepDir(userID, jobID, compositeName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		l.logger.Warn().Err(err).Str("dir", dir).Msg("failed to pre-create step directory")
	}
	for _, rel := range outputPaths {
		sub := filepath.Dir(filepath.Join(l.root, rel))
		if err := os.MkdirAll(sub, 0755); err != nil {
			l.logger.Warn().Err(err).Str("dir", sub).Msg("failed to pre-create output directory")
		}
	}
	return dir
}

// RelativePath strips the storage root off an absolute path, producing
// the storage-relative form the wire contract (§6) uses in outputs maps.
func (l *Layout) RelativePath(absPath string) (string, error) {
	rel, err := filepath.Rel(l.root, absPath)
	if err != nil {
		return "", fmt.Errorf("path %s is not under storage root %s: %w", absPath, l.root, err)
	}
	return rel, nil
}

// FileURI converts a storage-relative path to the file:// URI form the
// original implementation used internally for local-backend outputs.
// The wire contract always carries the relative form; this exists so a
// future object-store backend has a single conversion point to replace.
func (l *Layout) FileURI(relPath string) string {
	return "file://" + filepath.Join(l.root, relPath)
}
