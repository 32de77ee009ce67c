// Package pipeline implements the Pipeline Orchestrator: the nine-stage
// chain every tool call passes through before its result reaches the
// agent. It wires together every other AASC package — fsboundary,
// autonomy, autoapprove, approvalmgr, outputscan, trace, progression — as a
// fixed stage order rather than a caller-declared middleware list.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openclaw/aasc/pkg/approvalmgr"
	"github.com/openclaw/aasc/pkg/autoapprove"
	"github.com/openclaw/aasc/pkg/autonomy"
	aascerrors "github.com/openclaw/aasc/pkg/errors"
	"github.com/openclaw/aasc/pkg/fsboundary"
	"github.com/openclaw/aasc/pkg/logging"
	"github.com/openclaw/aasc/pkg/outputscan"
	"github.com/openclaw/aasc/pkg/progression"
	"github.com/openclaw/aasc/pkg/trace"
)

// DefaultApprovalTimeoutMs matches config.autonomy.approvalTimeoutMs's
// documented default of 120s.
const DefaultApprovalTimeoutMs = 120_000

// Call is one tool invocation entering the pipeline.
type Call struct {
	ToolName   string
	Params     map[string]any
	ToolCallID string
	AgentID    string
	SessionID  string
	Level      autonomy.Level
	Hint       *autonomy.ToolAutonomyHint
	Confidence *float64

	// UserMessage/SystemEvent/SubtaskOf seed the trace's startDecision
	// params when the caller wants this call attributed to a decision.
	UserMessage string
	SystemEvent string
	SubtaskOf   string
}

// Result is the structured outcome returned to the caller, never a raw
// panic or bubbled internal error for a tool-execution failure.
type Result struct {
	Status string // "ok" or "error"
	Tool   string
	Output string
	Error  string
}

// HookOutcome is what a before-hook returns: it may pass through
// unmodified, adjust params, or abort the call outright.
type HookOutcome struct {
	ModifiedParams map[string]any
	Abort          bool
	AbortReason    string
	AbortResult    *Result
}

// BeforeHook runs before any pipeline stage and may block or adjust the
// call.
type BeforeHook func(ctx context.Context, call *Call) HookOutcome

// AfterHook runs after the call settles, successfully or not. Failures are
// swallowed — an after-hook can observe but never override the outcome.
type AfterHook func(ctx context.Context, call *Call, result *Result, callErr error)

// ToolExecutor performs the tool call itself. It is the pipeline's only
// required external collaborator.
type ToolExecutor func(ctx context.Context, call *Call) (*Result, error)

// Pipeline is the constructed, ready-to-run orchestrator. Build one with
// New and the With* options.
type Pipeline struct {
	boundary    *fsboundary.Boundary
	classifier  *autonomy.Classifier
	autoApprove *autoapprove.Store
	approvals   *approvalmgr.Manager // nil is valid: fail-open by design
	progress    *progression.Tracker
	tracer      *trace.Tracer // nil is valid: tracing disabled
	logger      *logging.Logger

	exec   ToolExecutor
	before BeforeHook
	after  AfterHook

	approvalTimeoutMs   int64
	confidenceThreshold float64
	extraSensitivePats  []string
}

// Option configures a Pipeline at construction.
type Option func(*Pipeline)

func WithBoundary(b *fsboundary.Boundary) Option { return func(p *Pipeline) { p.boundary = b } }
func WithClassifier(c *autonomy.Classifier) Option {
	return func(p *Pipeline) { p.classifier = c }
}
func WithAutoApprove(s *autoapprove.Store) Option {
	return func(p *Pipeline) { p.autoApprove = s }
}
func WithApprovalManager(m *approvalmgr.Manager) Option {
	return func(p *Pipeline) { p.approvals = m }
}
func WithProgression(t *progression.Tracker) Option { return func(p *Pipeline) { p.progress = t } }
func WithTracer(t *trace.Tracer) Option             { return func(p *Pipeline) { p.tracer = t } }
func WithLogger(l *logging.Logger) Option           { return func(p *Pipeline) { p.logger = l } }
func WithBeforeHook(h BeforeHook) Option            { return func(p *Pipeline) { p.before = h } }
func WithAfterHook(h AfterHook) Option              { return func(p *Pipeline) { p.after = h } }
func WithApprovalTimeoutMs(ms int64) Option {
	return func(p *Pipeline) { p.approvalTimeoutMs = ms }
}
func WithConfidenceThreshold(t float64) Option {
	return func(p *Pipeline) { p.confidenceThreshold = t }
}
func WithSensitivePatterns(patterns []string) Option {
	return func(p *Pipeline) { p.extraSensitivePats = patterns }
}

// New constructs a Pipeline. exec is required; every other collaborator is
// optional and its stage is skipped (or, for the Approval Manager,
// fail-open) when absent.
func New(exec ToolExecutor, opts ...Option) *Pipeline {
	p := &Pipeline{
		exec:                exec,
		approvalTimeoutMs:   DefaultApprovalTimeoutMs,
		confidenceThreshold: autonomy.DefaultConfidenceThreshold,
		classifier:          autonomy.NewClassifier(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger != nil {
		if p.autoApprove != nil {
			p.autoApprove.SetLogger(p.logger)
		}
		if p.progress != nil {
			p.progress.SetLogger(p.logger)
		}
		if p.tracer != nil {
			p.tracer.SetLogger(p.logger)
		}
	}
	return p
}

// isAbort reports whether err represents caller-initiated cancellation,
// which must propagate unchanged rather than being wrapped into a
// structured error result.
func isAbort(ctx context.Context, err error) bool {
	if ctx != nil && ctx.Err() != nil {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Run drives call through the nine pipeline stages and returns a
// structured Result. The only error it ever returns to the caller is an
// abort (ctx cancelled or a propagated AbortError) — every other failure
// surfaces as Result{Status:"error"}.
func (p *Pipeline) Run(ctx context.Context, call Call) (*Result, error) {
	var tc *trace.TraceContext
	if p.tracer != nil {
		tc = p.tracer.StartDecision(call.SessionID, call.AgentID, trace.Params{
			UserMessage: call.UserMessage,
			SystemEvent: call.SystemEvent,
			SubtaskOf:   call.SubtaskOf,
		})
	}

	result, runErr := p.run(ctx, &call, tc)

	if runErr != nil && isAbort(ctx, runErr) {
		return nil, runErr
	}

	if tc != nil {
		success := runErr == nil && result != nil && result.Status != "error"
		errMsg := ""
		if result != nil {
			errMsg = result.Error
		} else if runErr != nil {
			errMsg = runErr.Error()
		}
		out := ""
		if result != nil {
			out = result.Output
		}
		tc.Finalize(trace.FinalizeParams{Success: success, Result: out, Error: errMsg})
	}

	if p.after != nil {
		runAfterHook(ctx, p.logger, p.after, &call, result, runErr)
	}

	if runErr != nil {
		return errorResult(call.ToolName, runErr), nil
	}
	return result, nil
}

// runAfterHook insulates the pipeline from a misbehaving after-hook: a
// panic inside it must never take down the call that already succeeded.
// The recovered value is logged at debug level rather than dropped, since
// an after-hook panic is otherwise invisible to the caller.
func runAfterHook(ctx context.Context, logger *logging.Logger, hook AfterHook, call *Call, result *Result, callErr error) {
	defer func() {
		if r := recover(); r != nil && logger != nil {
			_ = logger.Debug(logging.CategorySafety, "after_hook.panic_recovered",
				"after-hook panicked; outcome already settled and is unaffected",
				map[string]any{"tool": call.ToolName, "panic": fmt.Sprintf("%v", r)})
		}
	}()
	hook(ctx, call, result, callErr)
}

func errorResult(toolName string, err error) *Result {
	return &Result{Status: "error", Tool: toolName, Error: err.Error()}
}

// run implements stages 1-8; stage 9 (abort/error handling) is layered on
// by Run so every early-return path here funnels through the same trace
// and after-hook bookkeeping.
func (p *Pipeline) run(ctx context.Context, call *Call, tc *trace.TraceContext) (*Result, error) {
	// Stage 1: before-hook.
	if p.before != nil {
		outcome := p.before(ctx, call)
		if outcome.ModifiedParams != nil {
			call.Params = outcome.ModifiedParams
		}
		if outcome.Abort {
			reason := strings.TrimSpace(outcome.AbortReason)
			if reason == "" {
				reason = "blocked by before-hook"
			}
			if outcome.AbortResult != nil {
				return outcome.AbortResult, nil
			}
			return nil, aascerrors.NewBeforeHookBlocked(reason)
		}
	}

	// Stage 2: filesystem boundary check.
	if p.boundary != nil {
		if res := p.boundary.Validate(call.ToolName, call.Params); res != nil && !res.Allowed {
			return nil, aascerrors.NewFSBoundary(res.Reason)
		}
	}

	// Stage 3: action classifier.
	tier := p.classifier.ClassifyAction(call.ToolName, call.Params, call.Hint)

	// Stage 4: auto-approve rule lookup.
	if p.autoApprove != nil {
		if _, ok := p.autoApprove.Check(call.ToolName, tier, call.AgentID); ok {
			if tc != nil {
				tc.RecordGateDecision(trace.GateRecord{
					Tool:            call.ToolName,
					Confidence:      call.Confidence,
					Classification:  string(tier),
					ApprovalOutcome: "auto_approve",
				})
			}
			return p.executeAndFinish(ctx, call, tc)
		}
	}

	// Stage 5: gate evaluation, falling through to the Approval Manager.
	eval := autonomy.EvaluateGate(call.Level, tier, call.Confidence, p.confidenceThreshold)

	switch eval.Decision {
	case autonomy.DecisionDenied:
		if tc != nil {
			tc.RecordGateDecision(trace.GateRecord{
				Tool: call.ToolName, Confidence: call.Confidence, Classification: string(tier),
				ApprovalRequired: false, ApprovalOutcome: "denied",
			})
		}
		return nil, aascerrors.NewGateDenied(eval.Reason)

	case autonomy.DecisionAutoApprove:
		if tc != nil {
			tc.RecordGateDecision(trace.GateRecord{
				Tool: call.ToolName, Confidence: call.Confidence, Classification: string(tier),
				ApprovalRequired: false, ApprovalOutcome: "auto_approve",
			})
		}
		return p.executeAndFinish(ctx, call, tc)

	default: // needs_approval
		_, err := p.awaitApproval(ctx, call, tier, eval)
		if err != nil {
			if tc != nil {
				tc.RecordGateDecision(trace.GateRecord{
					Tool: call.ToolName, Confidence: call.Confidence, Classification: string(tier),
					ApprovalRequired: true, ApprovalOutcome: "rejected",
				})
			}
			return nil, err
		}
		if tc != nil {
			tc.RecordGateDecision(trace.GateRecord{
				Tool: call.ToolName, Confidence: call.Confidence, Classification: string(tier),
				ApprovalRequired: true, ApprovalOutcome: "approved",
			})
		}
		return p.executeAndFinish(ctx, call, tc)
	}
}

// awaitApproval implements the needs_approval branch of stage 5: fail-open
// when no Approval Manager is wired, otherwise create+register and block
// on the resulting future until it resolves or times out.
func (p *Pipeline) awaitApproval(ctx context.Context, call *Call, tier autonomy.Tier, eval autonomy.Evaluation) (bool, error) {
	if p.approvals == nil {
		if p.logger != nil {
			_ = p.logger.Warn(logging.CategorySafety, "approval.fail_open",
				"no approval manager wired; proceeding without a human decision",
				map[string]any{"tool": call.ToolName, "tier": string(tier)})
		}
		return true, nil
	}

	record := p.approvals.Create(approvalmgr.Request{
		ToolName:      call.ToolName,
		ParamsSummary: approvalmgr.TruncateParamsSummary(summariseParams(call.Params)),
		Tier:          tier,
		Level:         call.Level,
		GateReason:    eval.Reason,
		Confidence:    call.Confidence,
		AgentID:       call.AgentID,
		SessionKey:    call.SessionID,
	}, p.approvalTimeoutMs, call.ToolCallID)

	future, err := p.approvals.Register(ctx, record, p.approvalTimeoutMs)
	if err != nil {
		return false, aascerrors.Wrap(err, aascerrors.ErrCodeApprovalDenied, "registering approval request")
	}

	decision, err := future.Wait(ctx)
	if err != nil {
		return false, err // abort propagation, unwrapped
	}

	outcome, resolveErr := p.resolveDecision(call, decision)
	if p.progress != nil {
		_, _ = p.progress.RecordApprovalOutcome(resolveErr == nil, call.AgentID)
	}
	return outcome, resolveErr
}

// resolveDecision maps a settled approval decision to (proceed, error),
// installing an auto-approve rule on allow-always.
func (p *Pipeline) resolveDecision(call *Call, decision *approvalmgr.Decision) (bool, error) {
	if decision == nil {
		return false, aascerrors.NewApprovalTimeout(call.ToolName)
	}
	switch *decision {
	case approvalmgr.DecisionAllowOnce:
		return true, nil
	case approvalmgr.DecisionAllowAlways:
		if p.autoApprove != nil {
			tier := p.classifier.ClassifyAction(call.ToolName, call.Params, call.Hint)
			_, _ = p.autoApprove.Add(call.ToolName, tier, call.AgentID)
		}
		return true, nil
	default: // deny
		return false, aascerrors.NewApprovalDenied(call.ToolName)
	}
}

// executeAndFinish is stages 6-7: run the tool, then sanitise its output
// before it re-enters the agent's context. Stage 8 (trace/after-hook
// bookkeeping) is handled by the caller (run/Run) uniformly for every
// return path.
func (p *Pipeline) executeAndFinish(ctx context.Context, call *Call, tc *trace.TraceContext) (*Result, error) {
	started := time.Now()
	result, err := p.safeExec(ctx, call)
	duration := time.Since(started).Milliseconds()

	if err != nil {
		if tc != nil {
			tc.RecordToolOutcome(trace.ToolOutcome{Success: false, Error: err.Error(), DurationMs: duration})
		}
		return nil, err
	}
	if result == nil {
		result = &Result{Status: "ok", Tool: call.ToolName}
	}

	if result.Output != "" {
		san := outputscan.Sanitize(result.Output, call.ToolName, p.extraSensitivePats)
		if san.Modified {
			result.Output = san.Sanitized
		}
	}

	if tc != nil {
		tc.RecordToolOutcome(trace.ToolOutcome{
			Success: result.Status != "error", Result: result.Output, Error: result.Error, DurationMs: duration,
		})
	}

	return result, nil
}

// safeExec converts a panicking ToolExecutor into a plain error so one
// misbehaving tool never takes the whole pipeline process down.
func (p *Pipeline) safeExec(ctx context.Context, call *Call) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool %s panicked: %v", call.ToolName, r)
			result = nil
		}
	}()
	return p.exec(ctx, call)
}

// summariseParams renders params as a deterministic, human-scannable
// summary string for the approval prompt and the stored record. It does
// not attempt to be valid JSON — just readable and stable.
func summariseParams(params map[string]any) string {
	if len(params) == 0 {
		return "{}"
	}
	var b strings.Builder
	b.WriteByte('{')
	first := true
	for k, v := range params {
		if !first {
			b.WriteString(", ")
		}
		first = false
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(formatValue(v))
	}
	b.WriteByte('}')
	return b.String()
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%v", t)
	}
}
