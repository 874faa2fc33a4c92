package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func TestEnsureStepDirCreatesTreeAndOutputSubdirs(t *testing.T) {
	root := t.TempDir()
	l := New(arbor.NewLogger(), root)

	dir := l.EnsureStepDir("u1", "job-1", "000_asr_whisper_ab12cd34", []string{
		"users/u1/jobs/job-1/000_asr_whisper_ab12cd34/transcript.txt",
		"users/u1/jobs/job-1/000_asr_whisper_ab12cd34/segments/0.json",
	})

	assert.Equal(t, filepath.Join(root, "users", "u1", "jobs", "job-1", "000_asr_whisper_ab12cd34"), dir)
	assert.DirExists(t, dir)
	assert.DirExists(t, filepath.Join(dir, "segments"))
}

func TestEnsureStepDirIsIdempotent(t *testing.T) {
	root := t.TempDir()
	l := New(arbor.NewLogger(), root)

	first := l.EnsureStepDir("u1", "job-1", "000_asr_whisper_ab12cd34", nil)
	second := l.EnsureStepDir("u1", "job-1", "000_asr_whisper_ab12cd34", nil)
	assert.Equal(t, first, second)
	assert.DirExists(t, second)
}

func TestRelativePathStripsRoot(t *testing.T) {
	root := t.TempDir()
	l := New(arbor.NewLogger(), root)

	abs := filepath.Join(root, "users", "u1", "jobs", "job-1", "000_asr", "out.wav")
	rel, err := l.RelativePath(abs)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("users", "u1", "jobs", "job-1", "000_asr", "out.wav"), rel)
}

func TestFileURIRoundTripsRelativePath(t *testing.T) {
	root := t.TempDir()
	l := New(arbor.NewLogger(), root)

	uri := l.FileURI("users/u1/jobs/job-1/000_asr/out.wav")
	assert.Equal(t, "file://"+filepath.Join(root, "users/u1/jobs/job-1/000_asr/out.wav"), uri)
}

func TestEnsureStepDirSurvivesUnwritableRoot(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("running as root bypasses permission checks")
	}
	root := t.TempDir()
	require.NoError(t, os.Chmod(root, 0500))
	t.Cleanup(func() { _ = os.Chmod(root, 0755) })

	l := New(arbor.NewLogger(), root)
	assert.NotPanics(t, func() {
		l.EnsureStepDir("u1", "job-1", "000_asr", nil)
	})
}
