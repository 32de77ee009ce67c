package trace

import (
	"regexp"
	"strings"
)

var numberedItemRe = regexp.MustCompile(`(?m)^\s*\d+[.)]\s+`)

var sequentialMarkerRe = regexp.MustCompile(`(?i)[.;,]\s+(?:then|and then|after that|next,?|finally)\s+`)

// DecomposeResult is the Task Decomposer's output.
type DecomposeResult struct {
	Decomposed bool     `json:"decomposed"`
	Subtasks   []string `json:"subtasks"`
}

// Decompose splits a user message into subtasks using a two-step heuristic:
// a numbered list (two or more "N. "/"N) " items), else sequential markers
// (then/and then/after that/next/finally), else no decomposition.
func Decompose(message string) DecomposeResult {
	if subtasks := splitNumberedList(message); len(subtasks) >= 2 {
		return DecomposeResult{Decomposed: true, Subtasks: subtasks}
	}
	if subtasks := splitSequentialMarkers(message); len(subtasks) >= 2 {
		return DecomposeResult{Decomposed: true, Subtasks: subtasks}
	}
	return DecomposeResult{Decomposed: false, Subtasks: []string{}}
}

func splitNumberedList(message string) []string {
	locs := numberedItemRe.FindAllStringIndex(message, -1)
	if len(locs) < 2 {
		return nil
	}
	var out []string
	for i, loc := range locs {
		start := loc[1]
		end := len(message)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		item := collapseWhitespace(message[start:end])
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// collapseWhitespace trims an item and folds any internal run of
// whitespace, including embedded newlines from a multi-line list entry,
// down to a single space.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func splitSequentialMarkers(message string) []string {
	parts := sequentialMarkerRe.Split(message, -1)
	var out []string
	for _, p := range parts {
		p = collapseWhitespace(strings.TrimSpace(strings.Trim(p, ".;,")))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
