package models

import "time"

// Step is one node in a job's step graph.
type Step struct {
	StepID  string `json:"step_id"`
	Name    string `json:"name"`
	Order   int    `json:"order"`
	Service string `json:"service"`

	CommandSpec CommandSpec `json:"command_spec"`

	Inputs  map[string]string `json:"inputs"`
	Outputs map[string]string `json:"outputs"`

	Status Status `json:"status"`

	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	ErrorMessage string `json:"error_message,omitempty"`

	// LogTail is a bounded ring of the worker's trailing stdout/stderr
	// lines, replaced by every status event that carries one. Never consulted by dispatch
	// logic — operator-facing only.
	LogTail []string `json:"log_tail,omitempty"`
}

const logTailCapacity = 50

// AppendLogTail appends lines to the bounded tail, dropping the oldest
// entries once the capacity is exceeded.
func (s *Step) AppendLogTail(lines ...string) {
	s.LogTail = append(s.LogTail, lines...)
	if overflow := len(s.LogTail) - logTailCapacity; overflow > 0 {
		s.LogTail = s.LogTail[overflow:]
	}
}

// CompositeName derives this step's composite directory name.
func (s *Step) CompositeName() string {
	return CompositeName(s.Order, s.Service, s.CommandSpec.Program, s.CommandSpec.Flags)
}

func (s *Step) IsComplete() bool   { return s.Status == StatusComplete }
func (s *Step) IsFailed() bool     { return s.Status == StatusFailed }
func (s *Step) IsProcessing() bool { return s.Status == StatusProcessing }
func (s *Step) IsPending() bool    { return s.Status == StatusPending }
