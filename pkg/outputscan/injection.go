// Package outputscan implements the External-Content Pattern Detector, the
// Tool Output Sanitiser, the Output Scanner, and the Data Flow Validator.
// All four share pkg/sensitive for secret detection; this file holds the
// prompt-injection marker catalog unique to tool output.
package outputscan

import "regexp"

type injectionPattern struct {
	name    string
	re      *regexp.Regexp
	replace string
}

var injectionPatterns = []injectionPattern{
	{
		name:    "ignore_instructions",
		re:      regexp.MustCompile(`(?i)ignore (all )?previous instructions`),
		replace: "[[ROLE_STRIPPED]]",
	},
	{
		name:    "forget_instructions",
		re:      regexp.MustCompile(`(?i)forget your instructions`),
		replace: "[[ROLE_STRIPPED]]",
	},
	{
		name:    "system_tag_open",
		re:      regexp.MustCompile(`(?i)<\s*system\s*>`),
		replace: "[[TAG_STRIPPED]]",
	},
	{
		name:    "system_tag_close",
		re:      regexp.MustCompile(`(?i)<\s*/\s*system\s*>`),
		replace: "[[TAG_STRIPPED]]",
	},
	{
		name:    "role_override",
		re:      regexp.MustCompile(`\]\s*\n\s*\[system\]\s*:`),
		replace: "[[ROLE_STRIPPED]]",
	},
	{
		name:    "tool_output_boundary",
		re:      regexp.MustCompile(`<<<TOOL_OUTPUT>>>`),
		replace: "[[MARKER_STRIPPED]]",
	},
	{
		name:    "tool_output_end_boundary",
		re:      regexp.MustCompile(`<<<END_TOOL_OUTPUT>>>`),
		replace: "[[END_MARKER_STRIPPED]]",
	},
	{
		name:    "external_content_boundary",
		re:      regexp.MustCompile(`<<<EXTERNAL_UNTRUSTED_CONTENT>>>`),
		replace: "[[MARKER_STRIPPED]]",
	},
}

// DetectInjection returns the names of every injection pattern that
// matched somewhere in text.
func DetectInjection(text string) []string {
	var found []string
	for _, p := range injectionPatterns {
		if p.re.MatchString(text) {
			found = append(found, p.name)
		}
	}
	return found
}

// stripInjectionMarkers replaces every known marker occurrence with its
// documented placeholder, returning the stripped text and whether any
// replacement happened.
func stripInjectionMarkers(text string) (string, bool) {
	modified := false
	for _, p := range injectionPatterns {
		if p.re.MatchString(text) {
			text = p.re.ReplaceAllString(text, p.replace)
			modified = true
		}
	}
	return text, modified
}
