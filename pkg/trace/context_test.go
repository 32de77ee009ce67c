package trace

import (
	"testing"
)

func TestTraceContext_FinalizeUsesFirstGateRecord(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	defer w.Close()

	tracer := NewTracer(w, nil)
	tc := tracer.StartDecision("s1", "agent-a", Params{IncludeReasoning: true})

	conf := 0.8
	tc.RecordGateDecision(GateRecord{Tool: "git_commit", Confidence: &conf, Classification: "ephemeral_compute", ApprovalRequired: true, ApprovalOutcome: "allow-once"})
	tc.RecordLlmResponse(LlmRecord{StopReason: "tool_use", Reasoning: "committing the change"})
	tc.RecordToolOutcome(ToolOutcome{Success: true, Result: "ok", DurationMs: 25})

	tc.Finalize(FinalizeParams{Success: true, Result: "done"})
	w.Flush()

	q := NewQuery(dir)
	rec, ok := q.GetTrace(tc.TraceID)
	if !ok {
		t.Fatal("expected finalized trace to be written")
	}
	if rec.Decision.Action != "git_commit" {
		t.Fatalf("expected action from first gate record, got %q", rec.Decision.Action)
	}
	if rec.Decision.Confidence != 0.8 {
		t.Fatalf("expected confidence 0.8, got %v", rec.Decision.Confidence)
	}
	if !rec.Decision.ApprovalRequired {
		t.Fatal("expected approvalRequired true")
	}
	if rec.Decision.Reasoning != "committing the change" {
		t.Fatalf("expected reasoning to be included, got %q", rec.Decision.Reasoning)
	}
}

func TestTraceContext_FinalizeFallsBackToLlmStopReason(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	defer w.Close()

	tracer := NewTracer(w, nil)
	tc := tracer.StartDecision("s2", "agent-a", Params{})
	tc.RecordLlmResponse(LlmRecord{StopReason: "end_turn"})
	tc.Finalize(FinalizeParams{Success: true, Result: "hello"})
	w.Flush()

	rec, ok := NewQuery(dir).GetTrace(tc.TraceID)
	if !ok {
		t.Fatal("expected trace to be written")
	}
	if rec.Decision.Action != "end_turn" {
		t.Fatalf("expected action %q, got %q", "end_turn", rec.Decision.Action)
	}
	if rec.Decision.Confidence != 1.0 {
		t.Fatalf("expected default confidence 1.0, got %v", rec.Decision.Confidence)
	}
	if rec.Decision.Classification != "unknown" {
		t.Fatalf("expected default classification unknown, got %q", rec.Decision.Classification)
	}
}

func TestTraceContext_FinalizeDefaultsActionToResponse(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	defer w.Close()

	tracer := NewTracer(w, nil)
	tc := tracer.StartDecision("s3", "agent-a", Params{})
	tc.Finalize(FinalizeParams{Success: true, Result: "plain answer"})
	w.Flush()

	rec, ok := NewQuery(dir).GetTrace(tc.TraceID)
	if !ok {
		t.Fatal("expected trace to be written")
	}
	if rec.Decision.Action != "response" {
		t.Fatalf("expected default action %q, got %q", "response", rec.Decision.Action)
	}
}

func TestTraceContext_IsIdempotentAfterFinalize(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	defer w.Close()

	tracer := NewTracer(w, nil)
	tc := tracer.StartDecision("s4", "agent-a", Params{})
	tc.Finalize(FinalizeParams{Success: true, Result: "first"})

	tc.RecordGateDecision(GateRecord{Tool: "ignored"})
	tc.Finalize(FinalizeParams{Success: false, Result: "second"})
	w.Flush()

	rec, ok := NewQuery(dir).GetTrace(tc.TraceID)
	if !ok {
		t.Fatal("expected exactly one trace to be written")
	}
	if rec.Outcome.Result != "first" {
		t.Fatalf("expected the first Finalize call to win, got %q", rec.Outcome.Result)
	}
}

func TestTraceContext_ExcludesReasoningWhenNotRequested(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	defer w.Close()

	tracer := NewTracer(w, nil)
	tc := tracer.StartDecision("s5", "agent-a", Params{IncludeReasoning: false})
	tc.RecordLlmResponse(LlmRecord{StopReason: "end_turn", Reasoning: "sensitive chain of thought"})
	tc.Finalize(FinalizeParams{Success: true, Result: "ok"})
	w.Flush()

	rec, ok := NewQuery(dir).GetTrace(tc.TraceID)
	if !ok {
		t.Fatal("expected trace to be written")
	}
	if rec.Decision.Reasoning != "" {
		t.Fatalf("expected reasoning to be excluded, got %q", rec.Decision.Reasoning)
	}
}

func TestTraceContext_ResultTruncation(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	defer w.Close()

	tracer := NewTracer(w, nil)
	tc := tracer.StartDecision("s6", "agent-a", Params{MaxResultLength: 5})
	tc.Finalize(FinalizeParams{Success: true, Result: "abcdefghij"})
	w.Flush()

	rec, ok := NewQuery(dir).GetTrace(tc.TraceID)
	if !ok {
		t.Fatal("expected trace to be written")
	}
	if rec.Outcome.Result != "abcde…" {
		t.Fatalf("unexpected truncated result: %q", rec.Outcome.Result)
	}
}

func TestTraceContext_CostSnapshotIsApplied(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	defer w.Close()

	cost := func() CostSnapshot { return CostSnapshot{TokenCount: 42, EstimatedCost: 0.007} }
	tracer := NewTracer(w, cost)
	tc := tracer.StartDecision("s7", "agent-a", Params{})
	tc.Finalize(FinalizeParams{Success: true, Result: "ok"})
	w.Flush()

	rec, ok := NewQuery(dir).GetTrace(tc.TraceID)
	if !ok {
		t.Fatal("expected trace to be written")
	}
	if rec.Outcome.TokenCount != 42 || rec.Outcome.EstimatedCost != 0.007 {
		t.Fatalf("unexpected cost snapshot in outcome: %+v", rec.Outcome)
	}
}
