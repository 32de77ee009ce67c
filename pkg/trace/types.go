// Package trace implements the Reasoning Tracer, the Trace Writer, Trace
// Query, and the Task Decomposer: the append-only decision
// log every gate evaluation and tool outcome is recorded to.
package trace

// Input captures what triggered a decision.
type Input struct {
	UserMessage string `json:"userMessage,omitempty"`
	SystemEvent string `json:"systemEvent,omitempty"`
	SubtaskOf   string `json:"subtaskOf,omitempty"`
}

// Context captures the situation the decision was made in.
type Context struct {
	AvailableTools   []string `json:"availableTools"`
	ActiveUserModel  string   `json:"activeUserModel"`
	CharacterState   string   `json:"characterState"`
	AutonomyLevel    string   `json:"autonomyLevel"`
	RelevantMemories []string `json:"relevantMemories"`
}

// Decision captures the gate's (or the LLM's) choice.
type Decision struct {
	Action           string  `json:"action"`
	Reasoning        string  `json:"reasoning"`
	Confidence       float64 `json:"confidence"`
	Classification   string  `json:"classification"`
	ApprovalRequired bool    `json:"approvalRequired"`
	ApprovalOutcome  string  `json:"approvalOutcome,omitempty"`
}

// Outcome captures what actually happened.
type Outcome struct {
	Success       bool    `json:"success"`
	Result        string  `json:"result,omitempty"`
	Error         string  `json:"error,omitempty"`
	DurationMs    int64   `json:"duration"`
	TokenCount    int64   `json:"tokenCount"`
	EstimatedCost float64 `json:"estimatedCost"`
}

// Reflection is an optional post-hoc self-assessment.
type Reflection struct {
	QualityScore           float64  `json:"qualityScore"`
	AlternativesConsidered []string `json:"alternativesConsidered"`
	LessonsLearned         string   `json:"lessonsLearned"`
	UserSatisfactionSignal string   `json:"userSatisfactionSignal,omitempty"`
}

// Reasoning is the ReasoningTrace entity: a complete,
// single-line-JSON-serialisable per-decision record.
type Reasoning struct {
	ID         string      `json:"id"`
	Timestamp  string      `json:"timestamp"`
	Input      Input       `json:"input"`
	Context    Context     `json:"context"`
	Decision   Decision    `json:"decision"`
	Outcome    Outcome     `json:"outcome"`
	Reflection *Reflection `json:"reflection,omitempty"`

	// OtelSpanID correlates this line with an OpenTelemetry span, when a
	// TracerProvider is configured. Empty when tracing falls back to the
	// no-op provider.
	OtelSpanID string `json:"otelSpanId,omitempty"`
}
