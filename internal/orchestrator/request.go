package orchestrator

import "github.com/ternarybob/meridian/internal/models"

// JobRequest is the POST /jobs request body (§6 of the wire contract).
type JobRequest struct {
	UserID          string              `json:"user_id,omitempty"`
	Steps           []StepRequest       `json:"steps"`
	StepTransitions []TransitionRequest `json:"step_transitions"`
}

// StepRequest is one entry of JobRequest.Steps.
type StepRequest struct {
	Name        string             `json:"name"`
	Service     string             `json:"service"`
	CommandSpec models.CommandSpec `json:"command_spec"`
	Inputs      map[string]string  `json:"inputs"`
	Outputs     map[string]string  `json:"outputs"`
}

// TransitionRequest is one entry of JobRequest.StepTransitions,
// referencing steps by their submission-time name rather than by the
// IDs the orchestrator assigns during create_job.
type TransitionRequest struct {
	FromStepName         string            `json:"from_step_name"`
	ToStepName           string            `json:"to_step_name"`
	OutputToInputMapping map[string]string `json:"output_to_input_mapping"`
}
