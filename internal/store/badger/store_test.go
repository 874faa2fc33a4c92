package badger

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/meridian/internal/models"
	"github.com/ternarybob/meridian/internal/store"
)

func newTestStore(t *testing.T) *Store {
	dir := t.TempDir()
	s, err := New(arbor.NewLogger(), Config{Path: dir})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
		_ = os.RemoveAll(dir)
	})
	return s
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	job := &models.Job{JobID: "job-1", Status: models.StatusPending, Steps: []*models.Step{{StepID: "s1", Name: "A"}}}
	require.NoError(t, s.Create(ctx, job))

	fetched, err := s.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", fetched.JobID)
}

func TestCreateDuplicateFails(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	job := &models.Job{JobID: "job-1"}
	require.NoError(t, s.Create(ctx, job))

	err := s.Create(ctx, job)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrDuplicateJob))
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestUpdateStepIsPositional(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	job := &models.Job{JobID: "job-1", Steps: []*models.Step{
		{StepID: "s1", Name: "A", Status: models.StatusPending},
		{StepID: "s2", Name: "B", Status: models.StatusPending},
	}}
	require.NoError(t, s.Create(ctx, job))

	processing := models.StatusProcessing
	require.NoError(t, s.UpdateStep(ctx, "job-1", "s1", store.StepUpdate{Status: &processing}))

	fetched, err := s.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, fetched.FindStepByID("s1").Status)
	assert.Equal(t, models.StatusPending, fetched.FindStepByID("s2").Status, "updating one step must not disturb its siblings")
}

func TestUpdateStepClearError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	job := &models.Job{JobID: "job-1", Steps: []*models.Step{{StepID: "s1", Name: "A", ErrorMessage: "boom"}}}
	require.NoError(t, s.Create(ctx, job))

	require.NoError(t, s.UpdateStep(ctx, "job-1", "s1", store.StepUpdate{ClearError: true}))

	fetched, _ := s.Get(ctx, "job-1")
	assert.Empty(t, fetched.FindStepByID("s1").ErrorMessage)
}

func TestGetStepOutputsEmptyWhenNone(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	job := &models.Job{JobID: "job-1", Steps: []*models.Step{{StepID: "s1", Name: "A"}}}
	require.NoError(t, s.Create(ctx, job))

	outputs, err := s.GetStepOutputs(ctx, "job-1", "s1")
	require.NoError(t, err)
	assert.Empty(t, outputs)
}
