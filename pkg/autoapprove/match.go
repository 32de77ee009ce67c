package autoapprove

import "strings"

// MatchesToolPattern implements the Auto-Approve Pattern Matching semantics:
// a bare "*" matches anything, a trailing "*" is a prefix match, and
// anything else is an exact, case-sensitive match. No other glob characters
// are honoured. Callers are expected to have already normalised name.
func MatchesToolPattern(pattern, name string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(name, pattern[:len(pattern)-1])
	}
	return pattern == name
}
