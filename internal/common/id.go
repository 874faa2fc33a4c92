package common

import (
	"github.com/google/uuid"
)

// NewJobID generates a unique job ID with the "job_" prefix.
func NewJobID() string {
	return "job_" + uuid.New().String()
}

// NewStepID generates a unique step ID with the "step_" prefix.
func NewStepID() string {
	return "step_" + uuid.New().String()
}

// NewCorrelationID generates a unique request correlation ID, used by
// the HTTP middleware chain to tag every log line for one request.
func NewCorrelationID() string {
	return uuid.New().String()
}
