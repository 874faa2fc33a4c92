package orchestrator

import "github.com/ternarybob/meridian/internal/models"

// hasCycle reports whether job's step_transitions form a cycle, via a
// standard three-color DFS over the transition graph.
func hasCycle(job *models.Job) bool {
	adjacency := make(map[string][]string, len(job.Steps))
	for _, t := range job.StepTransitions {
		adjacency[t.FromStepID] = append(adjacency[t.FromStepID], t.ToStepID)
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(job.Steps))

	var visit func(stepID string) bool
	visit = func(stepID string) bool {
		switch state[stepID] {
		case visiting:
			return true
		case done:
			return false
		}
		state[stepID] = visiting
		for _, next := range adjacency[stepID] {
			if visit(next) {
				return true
			}
		}
		state[stepID] = done
		return false
	}

	for _, s := range job.Steps {
		if state[s.StepID] == unvisited && visit(s.StepID) {
			return true
		}
	}
	return false
}
