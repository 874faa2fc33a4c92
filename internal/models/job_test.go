package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func buildLinearJob() *Job {
	a := &Step{StepID: "s1", Name: "A", Order: 0, Status: StatusComplete, Outputs: map[string]string{"out": "a.wav"}}
	b := &Step{StepID: "s2", Name: "B", Order: 1, Status: StatusPending}
	return &Job{
		JobID: "j1",
		Steps: []*Step{a, b},
		StepTransitions: []Transition{
			{FromStepID: "s1", ToStepID: "s2", OutputToInputMapping: map[string]string{"out": "src"}},
		},
	}
}

func TestInitialSteps(t *testing.T) {
	job := buildLinearJob()
	initial := job.InitialSteps()
	assert.Len(t, initial, 1)
	assert.Equal(t, "A", initial[0].Name)
}

func TestInboundTransitionsAndApplyMapping(t *testing.T) {
	job := buildLinearJob()
	inbound := job.InboundTransitions("s2")
	assert.Len(t, inbound, 1)

	mapped := inbound[0].ApplyMapping(job.GetStepOutputs("s1"))
	assert.Equal(t, map[string]string{"src": "a.wav"}, mapped)
}

func TestJobIsCompleteRequiresAllSteps(t *testing.T) {
	job := buildLinearJob()
	assert.False(t, job.IsComplete())
	job.Steps[1].Status = StatusComplete
	assert.True(t, job.IsComplete())
}

func TestFindStepByNameAndID(t *testing.T) {
	job := buildLinearJob()
	assert.Equal(t, "s2", job.FindStepByName("B").StepID)
	assert.Equal(t, "B", job.FindStepByID("s2").Name)
	assert.Nil(t, job.FindStepByName("missing"))
}

func TestLogTailBounded(t *testing.T) {
	s := &Step{}
	for i := 0; i < logTailCapacity+10; i++ {
		s.AppendLogTail("line")
	}
	assert.Len(t, s.LogTail, logTailCapacity)
}
