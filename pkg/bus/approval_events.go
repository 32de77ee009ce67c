package bus

import (
	"context"
	"encoding/json"
	"time"
)

// Subject prefixes used for approval lifecycle notifications. The Approval
// Manager publishes on these subjects; forwarders (a chat bot, a web
// dashboard, a CLI) subscribe. The manager never holds a reference back
// into a subscriber — this is the "one-way event interface" that breaks
// the cyclic reference between the manager and its forwarders.
const (
	SubjectApprovalRequested = "aasc.approval.requested"
	SubjectApprovalResolved  = "aasc.approval.resolved"
)

// EventType distinguishes the two approval lifecycle notifications.
type EventType string

const (
	EventApprovalRequested EventType = "approval.requested"
	EventApprovalResolved  EventType = "approval.resolved"
)

// ApprovalEvent is the payload published for both lifecycle notifications.
// Resolution fields are zero-valued on a "requested" event.
type ApprovalEvent struct {
	Type        EventType `json:"type"`
	ID          string    `json:"id"`
	ToolName    string    `json:"toolName"`
	Tier        string    `json:"tier"`
	Level       string    `json:"level"`
	AgentID     string    `json:"agentId,omitempty"`
	CreatedAtMs int64     `json:"createdAtMs"`
	ExpiresAtMs int64     `json:"expiresAtMs"`
	Decision    string    `json:"decision,omitempty"`
	ResolvedBy  string    `json:"resolvedBy,omitempty"`
	ResolvedAt  int64     `json:"resolvedAtMs,omitempty"`
}

// ApprovalPublisher emits approval lifecycle events on a MessageBus.
// Construction never fails: publish errors are swallowed, matching the
// fire-and-forget contract the rest of the AASC holds for non-decision-path
// side effects (trace writes, usage counters).
type ApprovalPublisher struct {
	bus MessageBus
}

// NewApprovalPublisher wraps a MessageBus. A nil bus yields a no-op publisher.
func NewApprovalPublisher(b MessageBus) *ApprovalPublisher {
	return &ApprovalPublisher{bus: b}
}

func (p *ApprovalPublisher) publish(ctx context.Context, subject string, evt ApprovalEvent) {
	if p == nil || p.bus == nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	_ = p.bus.Publish(ctx, subject, data)
}

// Requested publishes an "approval.requested" event.
func (p *ApprovalPublisher) Requested(ctx context.Context, evt ApprovalEvent) {
	evt.Type = EventApprovalRequested
	p.publish(ctx, SubjectApprovalRequested, evt)
}

// Resolved publishes an "approval.resolved" event.
func (p *ApprovalPublisher) Resolved(ctx context.Context, evt ApprovalEvent) {
	evt.Type = EventApprovalResolved
	p.publish(ctx, SubjectApprovalResolved, evt)
}

// SubscribeApprovals subscribes a typed handler to both approval subjects.
// It returns the two underlying subscriptions so callers can unsubscribe.
func SubscribeApprovals(ctx context.Context, b MessageBus, handler func(ApprovalEvent)) ([]Subscription, error) {
	decode := func(msg *Message) []byte {
		var evt ApprovalEvent
		if err := json.Unmarshal(msg.Data, &evt); err == nil {
			handler(evt)
		}
		return nil
	}

	reqSub, err := b.Subscribe(ctx, SubjectApprovalRequested, decode)
	if err != nil {
		return nil, err
	}
	resSub, err := b.Subscribe(ctx, SubjectApprovalResolved, decode)
	if err != nil {
		_ = reqSub.Unsubscribe()
		return nil, err
	}
	return []Subscription{reqSub, resSub}, nil
}

// nowMs returns the current time in epoch milliseconds. Kept as a helper so
// call sites read the same way everywhere an *AtMs field is stamped.
func nowMs(t time.Time) int64 {
	return t.UnixMilli()
}
