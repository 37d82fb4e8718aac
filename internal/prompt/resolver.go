package prompt

import (
	"regexp"
	"sort"
)

var variablePattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Resolution is the outcome of rendering a template against an input map.
// Mismatch between the two is expected data, not a failure: unresolved
// placeholders stay in the output verbatim and the diagnostics record what
// did not line up.
type Resolution struct {
	Rendered string `json:"rendered"`

	// MissingInInput lists placeholder names with no input key, in template
	// order, deduplicated. They are left unresolved in Rendered.
	MissingInInput []string `json:"missing_in_input,omitempty"`

	// MissingInTemplate lists input keys with no placeholder anywhere in
	// the template, sorted. They are ignored.
	MissingInTemplate []string `json:"missing_in_template,omitempty"`
}

// Resolve substitutes {{name}} placeholders in template with values from
// input. Pure function, never errors: a missing input key leaves the
// placeholder text untouched, an unused input key is ignored, and malformed
// placeholder syntax is literal text.
func Resolve(template string, input map[string]string) Resolution {
	used := make(map[string]bool, len(input))
	seenMissing := make(map[string]bool)
	var missingInInput []string

	rendered := variablePattern.ReplaceAllStringFunc(template, func(match string) string {
		name := match[2 : len(match)-2] // strip {{ and }}
		if val, ok := input[name]; ok {
			used[name] = true
			return val
		}
		if !seenMissing[name] {
			seenMissing[name] = true
			missingInInput = append(missingInInput, name)
		}
		return match
	})

	var missingInTemplate []string
	for key := range input {
		if !used[key] {
			missingInTemplate = append(missingInTemplate, key)
		}
	}
	sort.Strings(missingInTemplate)

	return Resolution{
		Rendered:          rendered,
		MissingInInput:    missingInInput,
		MissingInTemplate: missingInTemplate,
	}
}

// ExtractVariables returns the distinct variable names found in the
// template, in order of first appearance.
func ExtractVariables(template string) []string {
	matches := variablePattern.FindAllStringSubmatch(template, -1)
	seen := make(map[string]bool)
	var vars []string
	for _, m := range matches {
		if len(m) > 1 && !seen[m[1]] {
			vars = append(vars, m[1])
			seen[m[1]] = true
		}
	}
	return vars
}
