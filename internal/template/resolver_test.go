package template

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/meridian/internal/models"
)

func newJobWithOutputs() *models.Job {
	return &models.Job{
		JobID:  "job-1",
		UserID: "u1",
		Steps: []*models.Step{
			{StepID: "s1", Name: "A", Order: 0, Outputs: map[string]string{"out": "a.wav"}},
		},
	}
}

func TestResolveScalarTokens(t *testing.T) {
	job := newJobWithOutputs()
	step := &models.Step{StepID: "s2", Name: "B", Order: 1, CommandSpec: models.CommandSpec{Program: "p", Flags: []models.FlagPair{}}}

	got, err := Resolve("users/{{user_id}}/jobs/{{job_id}}/{{composite_name}}/{{step_id}}.wav", job, step)
	require.NoError(t, err)
	assert.Equal(t, "users/u1/jobs/job-1/"+step.CompositeName()+"/s2.wav", got)
}

func TestResolveCrossStepReference(t *testing.T) {
	job := newJobWithOutputs()
	got, err := Resolve("{{steps.A.outputs.out}}", job, nil)
	require.NoError(t, err)
	assert.Equal(t, "a.wav", got)
}

func TestResolveUnknownStepFails(t *testing.T) {
	job := newJobWithOutputs()
	_, err := Resolve("{{steps.missing.outputs.out}}", job, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrUnknownReference))
}

func TestResolveUnknownOutputKeyFails(t *testing.T) {
	job := newJobWithOutputs()
	_, err := Resolve("{{steps.A.outputs.missing}}", job, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrUnknownReference))
}

func TestResolveUnknownScalarTokenPassesThrough(t *testing.T) {
	job := newJobWithOutputs()
	got, err := Resolve("{{not_a_real_token}}", job, nil)
	require.NoError(t, err)
	assert.Equal(t, "{{not_a_real_token}}", got)
}

func TestResolveDoesNotReExpandSubstitutedValue(t *testing.T) {
	job := newJobWithOutputs()
	job.Steps[0].Outputs["out"] = "{{job_id}}-literal"

	once, err := Resolve("{{steps.A.outputs.out}}", job, nil)
	require.NoError(t, err)
	assert.Equal(t, "{{job_id}}-literal", once, "substituted value's own placeholders must not be re-expanded")
}

func TestResolveIdempotentOnceFullyResolved(t *testing.T) {
	job := newJobWithOutputs()
	once, err := Resolve("{{job_id}}/{{steps.A.outputs.out}}", job, nil)
	require.NoError(t, err)

	twice, err := Resolve(once, job, nil)
	require.NoError(t, err)
	assert.Equal(t, once, twice, "resolve(resolve(t, ctx), ctx) == resolve(t, ctx) once t contains no remaining placeholders")
}
