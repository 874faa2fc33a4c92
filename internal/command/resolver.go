// Package command implements the CommandSpec placeholder rewriting
// contract (C2): turning a program + ordered flags + args description
// with "{{name}}" placeholders into a concrete, runnable CommandSpec.
package command

import (
	"strings"

	"github.com/ternarybob/meridian/internal/models"
)

// Resolve walks spec's flag values and positional args; any value of the
// exact form "{{NAME}}" is replaced with inputs[NAME] if present,
// otherwise outputs[NAME], otherwise left unchanged. Non-placeholder and
// multi-token strings pass through untouched. Resolve never mutates
// spec; it returns a new CommandSpec.
func Resolve(spec models.CommandSpec, inputs, outputs map[string]string) models.CommandSpec {
	resolved := spec.Clone()
	for i, f := range resolved.Flags {
		if s, ok := f.Value.(string); ok {
			resolved.Flags[i].Value = replacePlaceholder(s, inputs, outputs)
		}
	}
	for i, a := range resolved.Args {
		resolved.Args[i] = replacePlaceholder(a, inputs, outputs)
	}
	return resolved
}

func replacePlaceholder(value string, inputs, outputs map[string]string) string {
	if !isPlaceholder(value) {
		return value
	}
	key := value[2 : len(value)-2]
	if v, ok := inputs[key]; ok {
		return v
	}
	if v, ok := outputs[key]; ok {
		return v
	}
	return value
}

func isPlaceholder(value string) bool {
	return strings.HasPrefix(value, "{{") && strings.HasSuffix(value, "}}") && len(value) > 4
}
