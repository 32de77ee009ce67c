// Package approvalmgr implements the Approval Manager: the single-process
// coordinator that suspends a tool call pending a human decision, arms a
// timeout, and resolves to a Decision once an operator responds or the
// timer fires.
package approvalmgr

import (
	"strings"
	"unicode/utf8"

	"github.com/openclaw/aasc/pkg/autonomy"
)

const paramsSummaryLimit = 500

// Request is the AutonomyApprovalRequest entity: everything a human
// or an automation needs to decide on a suspended tool call.
type Request struct {
	ToolName      string
	ParamsSummary string
	Tier          autonomy.Tier
	Level         autonomy.Level
	GateReason    string
	Confidence    *float64
	AgentID       string
	SessionKey    string
	TraceID       string
}

// TruncateParamsSummary enforces the 500-char ceiling: strings at or under
// the limit pass through unchanged; longer ones are cut to 499 runes plus a
// single trailing ellipsis code point, and never split mid-line — a
// trailing newline inside the truncated window is trimmed first so the
// boundary never lands on a newline.
func TruncateParamsSummary(s string) string {
	if utf8.RuneCountInString(s) <= paramsSummaryLimit {
		return s
	}
	runes := []rune(s)
	truncated := runes[:paramsSummaryLimit-1]
	for len(truncated) > 0 && truncated[len(truncated)-1] == '\n' {
		truncated = truncated[:len(truncated)-1]
	}
	return string(truncated) + "…"
}

// Decision is the resolution an operator (or the timeout timer) applies to
// a pending record.
type Decision string

const (
	DecisionAllowOnce   Decision = "allow-once"
	DecisionAllowAlways Decision = "allow-always"
	DecisionDeny        Decision = "deny"
)

// ParseDecision accepts the command-surface aliases, in either token
// order, as long as exactly one token names a decision.
func ParseDecision(tokens []string) (Decision, bool) {
	for _, tok := range tokens {
		switch strings.ToLower(strings.TrimSpace(tok)) {
		case "allow-once", "allow", "once", "allowonce":
			return DecisionAllowOnce, true
		case "allow-always", "always", "allowalways", "remember":
			return DecisionAllowAlways, true
		case "deny", "reject", "block":
			return DecisionDeny, true
		}
	}
	return "", false
}

// Record is the AutonomyApprovalRecord entity. Resolution fields are
// zero until resolve() stamps them; the pending→resolved transition is
// one-way.
type Record struct {
	ID          string
	Request     Request
	CreatedAtMs int64
	ExpiresAtMs int64

	ResolvedAtMs int64
	Decision     *Decision
	ResolvedBy   string

	// TimedOutAtMs is stamped when the timeout timer fires before resolve()
	// is called. It is distinct from resolution: a timed-out record never
	// gets a Decision, but like a resolved one it is no longer pending and
	// only survives for the grace period.
	TimedOutAtMs int64
}

// Resolved reports whether resolve() has already stamped this record.
func (r *Record) Resolved() bool {
	return r.Decision != nil
}

// Settled reports whether the record is no longer pending, whether because
// it was resolved or because its timer fired first.
func (r *Record) Settled() bool {
	return r.Decision != nil || r.TimedOutAtMs != 0
}
