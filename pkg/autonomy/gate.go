package autonomy

import "fmt"

// Decision is the outcome of a gate evaluation.
type Decision string

const (
	DecisionAutoApprove   Decision = "auto_approve"
	DecisionNeedsApproval Decision = "needs_approval"
	DecisionDenied        Decision = "denied"
)

// DefaultConfidenceThreshold is the baseline confidence cutoff applied when no override is configured.
const DefaultConfidenceThreshold = 0.7

// tierDescriptions feed into confidence-downgrade reason strings so logs
// stay diff-friendly (a human reading the trace knows which tier a
// downgrade refers to without cross-referencing a table).
var tierDescriptions = map[Tier]string{
	TierCachedPattern:      "cached pattern lookups with no side effects",
	TierEphemeralCompute:   "ephemeral compute that can be re-run safely",
	TierPersistentService:  "a persistent service the agent depends on",
	TierSandboxedWorkspace: "a sandboxed workspace surface",
	TierIrreversible:       "an irreversible, externally visible action",
}

// policyMatrix is the fixed level×tier decision table.
var policyMatrix = map[Level]map[Tier]Decision{
	LevelLow: {
		TierCachedPattern:      DecisionAutoApprove,
		TierEphemeralCompute:   DecisionNeedsApproval,
		TierPersistentService:  DecisionNeedsApproval,
		TierSandboxedWorkspace: DecisionNeedsApproval,
		TierIrreversible:       DecisionNeedsApproval,
	},
	LevelMedium: {
		TierCachedPattern:      DecisionAutoApprove,
		TierEphemeralCompute:   DecisionAutoApprove,
		TierPersistentService:  DecisionNeedsApproval,
		TierSandboxedWorkspace: DecisionNeedsApproval,
		TierIrreversible:       DecisionNeedsApproval,
	},
	LevelHigh: {
		TierCachedPattern:      DecisionAutoApprove,
		TierEphemeralCompute:   DecisionAutoApprove,
		TierPersistentService:  DecisionAutoApprove,
		TierSandboxedWorkspace: DecisionAutoApprove,
		TierIrreversible:       DecisionNeedsApproval,
	},
}

// Evaluation is the result of evaluateGate: {decision, reason, level,
// tier, confidence?}.
type Evaluation struct {
	Decision   Decision
	Reason     string
	Level      Level
	Tier       Tier
	Confidence *float64
}

// EvaluateGate evaluates the fixed policy matrix with confidence-weighted
// downgrade. threshold <= 0 uses DefaultConfidenceThreshold.
func EvaluateGate(level Level, tier Tier, confidence *float64, threshold float64) Evaluation {
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}

	row, ok := policyMatrix[level]
	if !ok {
		row = policyMatrix[LevelLow]
	}
	base, ok := row[tier]
	if !ok {
		base = DecisionNeedsApproval
	}

	eval := Evaluation{Decision: base, Level: level, Tier: tier, Confidence: confidence}

	if base == DecisionAutoApprove && confidence != nil && *confidence < threshold {
		eval.Decision = DecisionNeedsApproval
		eval.Reason = fmt.Sprintf(
			"confidence %.0f%% is below the %.0f%% threshold for %s; downgraded to approval",
			*confidence*100, threshold*100, describeTier(tier),
		)
		return eval
	}

	switch base {
	case DecisionAutoApprove:
		eval.Reason = fmt.Sprintf("%s at autonomy level %q auto-approves %s", tier, level, describeTier(tier))
	case DecisionNeedsApproval:
		eval.Reason = fmt.Sprintf("%s at autonomy level %q requires approval for %s", tier, level, describeTier(tier))
	case DecisionDenied:
		eval.Reason = fmt.Sprintf("%s at autonomy level %q denies %s", tier, level, describeTier(tier))
	}

	return eval
}

func describeTier(t Tier) string {
	if d, ok := tierDescriptions[t]; ok {
		return d
	}
	return string(t)
}
