// Package sensitive implements the pattern-based secret scanner shared by
// the Data Flow Validator, the Output Scanner, and the Tool Output
// Sanitiser. Pattern catalog restructured for text-offset scanning
// (rather than whole-file-tree scanning) since the AASC scans
// in-memory tool output and outbound payloads, not a source checkout.
package sensitive

import "regexp"

// Match is one detected secret occurrence.
type Match struct {
	Type    string
	Offset  int
	Length  int
	Preview string
}

type pattern struct {
	typ string
	re  *regexp.Regexp
}

// patterns is ordered specific-before-general: an Anthropic key
// ("sk-ant-...") must be classified before the generic OpenAI-style
// "sk-..." pattern, and the dedup sweep below keeps the earliest, longest
// match so this ordering is load-bearing, not cosmetic.
var patterns = []pattern{
	{"aws_access_key", regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
	{"aws_secret_key", regexp.MustCompile(`(?i)aws_secret_access_key\s*[:=]\s*['"]?[A-Za-z0-9/+=]{40}['"]?`)},
	{"anthropic_api_key", regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{20,}`)},
	{"openai_api_key", regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`)},
	{"github_token", regexp.MustCompile(`gh[pousr]_[A-Za-z0-9]{20,}`)},
	{"slack_token", regexp.MustCompile(`xox[baprs]-[0-9]{10,13}-[0-9]{10,13}-[A-Za-z0-9]{24,}`)},
	{"private_key_pem", regexp.MustCompile(`-----BEGIN\s?(RSA|EC|OPENSSH|DSA)?\s?PRIVATE KEY-----`)},
	{"jwt", regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`)},
	{"generic_secret", regexp.MustCompile(`(?i)(api[_-]?key|secret|token)\s*[:=]\s*['"][A-Za-z0-9_\-./+]{12,}['"]`)},
	{"credit_card", regexp.MustCompile(`\b(?:\d[ -]?){13,16}\b`)},
	{"us_ssn", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
}

// Scan detects matches against the built-in catalog plus any valid extra
// regexes (invalid ones are silently skipped). Matches are sorted by
// (offset asc, length desc) and swept so the earliest, longest
// non-overlapping match wins.
func Scan(text string, extra []string) []Match {
	var raw []Match

	for _, p := range patterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			raw = append(raw, Match{Type: p.typ, Offset: loc[0], Length: loc[1] - loc[0]})
		}
	}

	for i, exprStr := range extra {
		re, err := regexp.Compile(exprStr)
		if err != nil {
			continue
		}
		for _, loc := range re.FindAllStringIndex(text, -1) {
			raw = append(raw, Match{Type: extraPatternType(i), Offset: loc[0], Length: loc[1] - loc[0]})
		}
	}

	return dedupSweep(raw, text)
}

func extraPatternType(i int) string {
	return "custom_" + itoa(i)
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	digits := []byte{}
	for i > 0 {
		digits = append([]byte{byte('0' + i%10)}, digits...)
		i /= 10
	}
	return string(digits)
}

// dedupSweep sorts by (offset asc, length desc) and accepts a match only if
// it starts at or after the end of the last accepted match, then fills in
// previews.
func dedupSweep(raw []Match, text string) []Match {
	sortMatches(raw)

	var out []Match
	lastEnd := -1
	for _, m := range raw {
		if m.Offset >= lastEnd {
			m.Preview = previewOf(text, m.Offset, m.Length)
			out = append(out, m)
			lastEnd = m.Offset + m.Length
		}
	}
	return out
}

func sortMatches(matches []Match) {
	// Simple insertion sort: match volumes per scan are small (tool output /
	// outbound payload sized), and this keeps the tie-break comparator easy
	// to read and verify.
	for i := 1; i < len(matches); i++ {
		j := i
		for j > 0 && less(matches[j], matches[j-1]) {
			matches[j], matches[j-1] = matches[j-1], matches[j]
			j--
		}
	}
}

func less(a, b Match) bool {
	if a.Offset != b.Offset {
		return a.Offset < b.Offset
	}
	return a.Length > b.Length
}

func previewOf(text string, offset, length int) string {
	end := offset + length
	if end > len(text) {
		end = len(text)
	}
	raw := text[offset:end]
	if len(raw) <= 8 {
		return raw
	}
	return raw[:8] + "…"
}

// ContainsSensitiveData is a boolean shortcut over Scan.
func ContainsSensitiveData(text string, extra []string) bool {
	return len(Scan(text, extra)) > 0
}

// Redact replaces each detected match with the literal "[REDACTED]".
func Redact(text string, extra []string) string {
	matches := Scan(text, extra)
	if len(matches) == 0 {
		return text
	}

	var out []byte
	last := 0
	for _, m := range matches {
		out = append(out, text[last:m.Offset]...)
		out = append(out, []byte("[REDACTED]")...)
		last = m.Offset + m.Length
	}
	out = append(out, text[last:]...)
	return string(out)
}
