// Package template implements the placeholder substitution scheme (C1)
// that lets the orchestrator describe step inputs/outputs abstractly and
// workers resolve them to concrete values at dispatch/execution time.
package template

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ternarybob/meridian/internal/models"
)

var stepReferencePattern = regexp.MustCompile(`\{\{steps\.([a-zA-Z0-9_-]+)\.outputs\.([a-zA-Z0-9_-]+)\}\}`)

// Resolve substitutes the scalar tokens {{job_id}}, {{user_id}},
// {{step_id}}, {{composite_name}} and any {{steps.<name>.outputs.<key>}}
// cross-step references in template against job (and, for step-scoped
// tokens, step). Resolution is single-pass: a substituted value's own
// "{{...}}" contents are never re-expanded. Unknown scalar tokens are
// left as-is. An unresolvable step or output reference returns
// models.ErrUnknownReference.
func Resolve(template string, job *models.Job, step *models.Step) (string, error) {
	result := strings.ReplaceAll(template, "{{job_id}}", job.JobID)
	if job.UserID != "" {
		result = strings.ReplaceAll(result, "{{user_id}}", job.UserID)
	}
	if step != nil {
		result = strings.ReplaceAll(result, "{{step_id}}", step.StepID)
		result = strings.ReplaceAll(result, "{{composite_name}}", step.CompositeName())
	}

	return resolveStepReferences(result, job)
}

func resolveStepReferences(s string, job *models.Job) (string, error) {
	var firstErr error
	resolved := stepReferencePattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}
		sub := stepReferencePattern.FindStringSubmatch(match)
		stepName, outputKey := sub[1], sub[2]

		target := job.FindStepByName(stepName)
		if target == nil {
			firstErr = fmt.Errorf("%w: unknown step %q", models.ErrUnknownReference, stepName)
			return match
		}
		value, ok := target.Outputs[outputKey]
		if !ok {
			firstErr = fmt.Errorf("%w: step %q has no output %q", models.ErrUnknownReference, stepName, outputKey)
			return match
		}
		return value
	})
	if firstErr != nil {
		return "", firstErr
	}
	return resolved, nil
}
