package trace

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/openclaw/aasc/pkg/logging"
)

const tracerName = "github.com/openclaw/aasc/pkg/trace"

// GateRecord is one gate evaluation observed during a decision.
type GateRecord struct {
	Tool             string
	Confidence       *float64
	Classification   string
	ApprovalRequired bool
	ApprovalOutcome  string
}

// ToolOutcome is one tool execution result observed during a decision.
type ToolOutcome struct {
	Success    bool
	Result     string
	Error      string
	DurationMs int64
}

// LlmRecord is one model response observed during a decision.
type LlmRecord struct {
	StopReason string
	Reasoning  string
}

// CostSnapshot is the minimal slice of a cost-tracker reading a trace needs.
type CostSnapshot struct {
	TokenCount    int64
	EstimatedCost float64
}

// Params seeds a new TraceContext.
type Params struct {
	UserMessage      string
	SystemEvent      string
	SubtaskOf        string
	AvailableTools   []string
	ActiveUserModel  string
	CharacterState   string
	AutonomyLevel    string
	RelevantMemories []string
	IncludeReasoning bool
	MaxResultLength  int
}

// FinalizeParams is passed to TraceContext.Finalize.
type FinalizeParams struct {
	Success bool
	Result  string
	Error   string
}

// TraceContext accumulates gate/tool/LLM records for a single decision
// until Finalize builds the Reasoning record and hands it to the writer.
// Safe for concurrent recording calls.
type TraceContext struct {
	TraceID string

	mu        sync.Mutex
	params    Params
	startedAt time.Time
	gates     []GateRecord
	tools     []ToolOutcome
	llms      []LlmRecord
	finalized bool

	writer  *Writer
	session string
	agentID string
	cost    func() CostSnapshot

	span oteltrace.Span
}

func newTraceContext(params Params, writer *Writer, sessionID, agentID string, cost func() CostSnapshot) *TraceContext {
	if params.MaxResultLength <= 0 {
		params.MaxResultLength = 2000
	}
	_, span := otel.Tracer(tracerName).Start(context.Background(), "aasc.decision")
	return &TraceContext{
		TraceID:   uuid.NewString(),
		params:    params,
		startedAt: time.Now(),
		writer:    writer,
		session:   sessionID,
		agentID:   agentID,
		cost:      cost,
		span:      span,
	}
}

// RecordGateDecision appends a gate evaluation. No-op after Finalize.
func (tc *TraceContext) RecordGateDecision(r GateRecord) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.finalized {
		return
	}
	tc.gates = append(tc.gates, r)
}

// RecordToolOutcome appends a tool execution result. No-op after Finalize.
func (tc *TraceContext) RecordToolOutcome(o ToolOutcome) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.finalized {
		return
	}
	tc.tools = append(tc.tools, o)
}

// RecordLlmResponse appends a model response. No-op after Finalize.
func (tc *TraceContext) RecordLlmResponse(r LlmRecord) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.finalized {
		return
	}
	tc.llms = append(tc.llms, r)
}

// Finalize is idempotent: the first call builds a Reasoning record and
// hands it to the writer; subsequent calls are no-ops.
func (tc *TraceContext) Finalize(p FinalizeParams) {
	tc.mu.Lock()
	if tc.finalized {
		tc.mu.Unlock()
		return
	}
	tc.finalized = true

	record := tc.buildLocked(p)
	span := tc.span
	tc.mu.Unlock()

	if span != nil {
		if p.Error != "" {
			span.RecordError(errors.New(p.Error))
		}
		span.End()
	}

	if tc.writer != nil {
		tc.writer.Write(tc.session, tc.agentID, record)
	}
}

func (tc *TraceContext) buildLocked(p FinalizeParams) Reasoning {
	action := ""
	confidence := 1.0
	classification := "unknown"
	approvalRequired := false
	approvalOutcome := ""
	if len(tc.gates) > 0 {
		g := tc.gates[0]
		action = g.Tool
		if g.Confidence != nil {
			confidence = *g.Confidence
		}
		classification = g.Classification
		approvalOutcome = g.ApprovalOutcome
	}
	for _, g := range tc.gates {
		if g.ApprovalRequired {
			approvalRequired = true
		}
	}
	if action == "" && len(tc.llms) > 0 {
		action = tc.llms[0].StopReason
	}
	if action == "" {
		action = "response"
	}

	reasoning := ""
	if tc.params.IncludeReasoning && len(tc.llms) > 0 {
		reasoning = tc.llms[0].Reasoning
	}

	result := truncate(p.Result, tc.params.MaxResultLength)

	var durationMs int64
	if !tc.startedAt.IsZero() {
		durationMs = time.Since(tc.startedAt).Milliseconds()
	}
	for _, o := range tc.tools {
		durationMs += o.DurationMs
	}

	var snapshot CostSnapshot
	if tc.cost != nil {
		snapshot = tc.cost()
	}

	var spanID string
	if tc.span != nil {
		if sc := tc.span.SpanContext(); sc.IsValid() {
			spanID = sc.SpanID().String()
		}
	}

	return Reasoning{
		ID:        tc.TraceID,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Input: Input{
			UserMessage: tc.params.UserMessage,
			SystemEvent: tc.params.SystemEvent,
			SubtaskOf:   tc.params.SubtaskOf,
		},
		Context: Context{
			AvailableTools:   tc.params.AvailableTools,
			ActiveUserModel:  tc.params.ActiveUserModel,
			CharacterState:   tc.params.CharacterState,
			AutonomyLevel:    tc.params.AutonomyLevel,
			RelevantMemories: tc.params.RelevantMemories,
		},
		Decision: Decision{
			Action:           action,
			Reasoning:        reasoning,
			Confidence:       confidence,
			Classification:   classification,
			ApprovalRequired: approvalRequired,
			ApprovalOutcome:  approvalOutcome,
		},
		Outcome: Outcome{
			Success:       p.Success,
			Result:        result,
			Error:         p.Error,
			DurationMs:    durationMs,
			TokenCount:    snapshot.TokenCount,
			EstimatedCost: snapshot.EstimatedCost,
		},
		OtelSpanID: spanID,
	}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}

// Tracer mints TraceContexts for a session/agent pair, backed by a Writer.
// Construct via NewTracer only when diagnostics.reasoningTrace.enabled is
// true — callers hold a *Tracer or nil and must nil-check before use.
type Tracer struct {
	writer *Writer
	cost   func() CostSnapshot
}

// NewTracer constructs a Tracer backed by writer. cost may be nil.
func NewTracer(writer *Writer, cost func() CostSnapshot) *Tracer {
	return &Tracer{writer: writer, cost: cost}
}

// StartDecision begins a new decision and returns its TraceContext.
func (t *Tracer) StartDecision(sessionID, agentID string, params Params) *TraceContext {
	return newTraceContext(params, t.writer, sessionID, agentID, t.cost)
}

// Flush awaits the writer's queue tail.
func (t *Tracer) Flush() {
	if t.writer != nil {
		t.writer.Flush()
	}
}

// SetLogger delegates to the underlying writer so marshal/I/O failures on
// the trace write path are logged. l may be nil; t may be nil.
func (t *Tracer) SetLogger(l *logging.Logger) {
	if t == nil || t.writer == nil {
		return
	}
	t.writer.SetLogger(l)
}
