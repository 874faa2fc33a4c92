package models

import "time"

// Job is the unit of work: an ordered set of Steps joined by Transition
// edges, owned end to end by the orchestrator.
type Job struct {
	JobID  string `json:"job_id"`
	UserID string `json:"user_id,omitempty"`
	Status Status `json:"status"`

	Steps           []*Step      `json:"steps"`
	StepTransitions []Transition `json:"step_transitions"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FindStepByID looks up a step by its generated ID. Steps reference each
// other by ID or by name, never by pointer, so there are no cyclic
// ownership graphs to manage — every cross-step lookup goes back through
// the job.
func (j *Job) FindStepByID(stepID string) *Step {
	for _, s := range j.Steps {
		if s.StepID == stepID {
			return s
		}
	}
	return nil
}

// FindStepByName looks up a step by its submission-time name, unique
// within the job. Used by the template resolver's
// {{steps.<name>.outputs.<key>}} references.
func (j *Job) FindStepByName(name string) *Step {
	for _, s := range j.Steps {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// GetStepOutputs returns the outputs map for a step, or an empty map if
// the step has none recorded yet.
func (j *Job) GetStepOutputs(stepID string) map[string]string {
	if s := j.FindStepByID(stepID); s != nil && s.Outputs != nil {
		return s.Outputs
	}
	return map[string]string{}
}

// InboundTransitions returns every transition whose ToStepID targets the
// given step, in declaration order.
func (j *Job) InboundTransitions(stepID string) []Transition {
	var inbound []Transition
	for _, t := range j.StepTransitions {
		if t.ToStepID == stepID {
			inbound = append(inbound, t)
		}
	}
	return inbound
}

// IsComplete reports whether every step in the job has reached the
// complete status.
func (j *Job) IsComplete() bool {
	for _, s := range j.Steps {
		if !s.IsComplete() {
			return false
		}
	}
	return true
}

// InitialSteps returns every step that is not the target of any
// transition — the set dispatched immediately on job creation.
func (j *Job) InitialSteps() []*Step {
	targeted := make(map[string]bool, len(j.StepTransitions))
	for _, t := range j.StepTransitions {
		targeted[t.ToStepID] = true
	}
	var initial []*Step
	for _, s := range j.Steps {
		if !targeted[s.StepID] {
			initial = append(initial, s)
		}
	}
	return initial
}
