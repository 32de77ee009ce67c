package approvalmgr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/openclaw/aasc/pkg/bus"
)

// GracePeriod is how long a resolved or timed-out record is kept around for
// late lookups before eviction.
const GracePeriod = 15 * time.Second

// ErrAlreadyResolved is returned by Register when the caller races a
// record that has already completed.
var ErrAlreadyResolved = errors.New("already resolved")

// ErrRateLimited is returned by Register when the requesting agent has
// exceeded its approval-request budget.
var ErrRateLimited = errors.New("approval rate limit exceeded")

// entry is the manager's private bookkeeping for one record: the record
// itself, its future, and the timer that arms its timeout.
type entry struct {
	record *Record
	future *Future
	timer  *time.Timer
}

// Manager is the single-process Approval Manager. The zero value is not
// ready; construct with New.
type Manager struct {
	mu      sync.Mutex
	entries map[string]*entry
	nowMs   func() int64

	publisher *bus.ApprovalPublisher
	limiters  map[string]*rate.Limiter
	limiterMu sync.Mutex
	// rateLimit is requests-per-minute per agent; zero disables limiting.
	rateLimit float64
}

// Option configures a Manager at construction.
type Option func(*Manager)

// WithBus wires an ApprovalPublisher so lifecycle events reach subscribers
// (a chat forwarder, a dashboard) without the manager holding a reference
// back to them.
func WithBus(b bus.MessageBus) Option {
	return func(m *Manager) { m.publisher = bus.NewApprovalPublisher(b) }
}

// WithRateLimit caps approval requests per agent per minute. Zero (the
// default) disables limiting.
func WithRateLimit(perAgentPerMinute float64) Option {
	return func(m *Manager) { m.rateLimit = perAgentPerMinute }
}

// New constructs an empty Manager.
func New(opts ...Option) *Manager {
	m := &Manager{
		entries:  make(map[string]*entry),
		nowMs:    func() int64 { return time.Now().UnixMilli() },
		limiters: make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.publisher == nil {
		m.publisher = bus.NewApprovalPublisher(nil)
	}
	return m
}

// Create returns a new Record for request: a fresh uuid (or the caller's
// trimmed id, if supplied), stamped createdAtMs/expiresAtMs. It does not
// arm a timer or store the record — Register does both.
func (m *Manager) Create(request Request, timeoutMs int64, id string) *Record {
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.NewString()
	}
	now := m.nowMs()
	return &Record{
		ID:          id,
		Request:     request,
		CreatedAtMs: now,
		ExpiresAtMs: now + timeoutMs,
	}
}

// Register stores record and arms its timeout timer, returning a Future
// that resolves once Resolve() is called or the timer fires. Idempotent:
// re-registering a still-pending id returns its existing future; a
// resolved-and-grace-retained id is rejected with ErrAlreadyResolved.
func (m *Manager) Register(ctx context.Context, record *Record, timeoutMs int64) (*Future, error) {
	if m.rateLimit > 0 {
		if !m.limiterFor(record.Request.AgentID).Allow() {
			return nil, ErrRateLimited
		}
	}

	m.mu.Lock()
	if existing, ok := m.entries[record.ID]; ok {
		if existing.record.Settled() {
			m.mu.Unlock()
			return nil, ErrAlreadyResolved
		}
		m.mu.Unlock()
		return existing.future, nil
	}

	future := newFuture()
	e := &entry{record: record, future: future}
	e.timer = time.AfterFunc(time.Duration(timeoutMs)*time.Millisecond, func() {
		m.onTimeout(record.ID)
	})
	m.entries[record.ID] = e
	m.mu.Unlock()

	m.publisher.Requested(ctx, bus.ApprovalEvent{
		ID:          record.ID,
		ToolName:    record.Request.ToolName,
		Tier:        string(record.Request.Tier),
		Level:       string(record.Request.Level),
		AgentID:     record.Request.AgentID,
		CreatedAtMs: record.CreatedAtMs,
		ExpiresAtMs: record.ExpiresAtMs,
	})

	return future, nil
}

func (m *Manager) limiterFor(agentID string) *rate.Limiter {
	if agentID == "" {
		agentID = "main"
	}
	m.limiterMu.Lock()
	defer m.limiterMu.Unlock()
	l, ok := m.limiters[agentID]
	if !ok {
		l = rate.NewLimiter(rate.Limit(m.rateLimit/60.0), int(m.rateLimit))
		m.limiters[agentID] = l
	}
	return l
}

func (m *Manager) onTimeout(id string) {
	m.mu.Lock()
	e, ok := m.entries[id]
	if !ok || e.record.Settled() {
		m.mu.Unlock()
		return
	}
	e.record.TimedOutAtMs = m.nowMs()
	e.future.complete(nil)
	m.mu.Unlock()

	m.scheduleEviction(id)
}

// Resolve completes record id with decision, reporting false if the id is
// unknown or already resolved. On success it cancels the timeout timer,
// stamps resolution fields, completes the future, publishes a resolved
// event, and schedules grace-period eviction.
func (m *Manager) Resolve(ctx context.Context, id string, decision Decision, resolvedBy string) bool {
	m.mu.Lock()
	e, ok := m.entries[id]
	if !ok || e.record.Settled() {
		m.mu.Unlock()
		return false
	}

	if e.timer != nil {
		e.timer.Stop()
	}
	e.record.ResolvedAtMs = m.nowMs()
	d := decision
	e.record.Decision = &d
	e.record.ResolvedBy = resolvedBy
	e.future.complete(&d)
	record := e.record
	m.mu.Unlock()

	m.publisher.Resolved(ctx, bus.ApprovalEvent{
		ID:          record.ID,
		ToolName:    record.Request.ToolName,
		Tier:        string(record.Request.Tier),
		Level:       string(record.Request.Level),
		AgentID:     record.Request.AgentID,
		CreatedAtMs: record.CreatedAtMs,
		ExpiresAtMs: record.ExpiresAtMs,
		Decision:    string(decision),
		ResolvedBy:  resolvedBy,
		ResolvedAt:  record.ResolvedAtMs,
	})

	m.scheduleEviction(id)
	return true
}

func (m *Manager) scheduleEviction(id string) {
	time.AfterFunc(GracePeriod, func() {
		m.mu.Lock()
		delete(m.entries, id)
		m.mu.Unlock()
	})
}

// GetSnapshot returns a copy of the record for id, including grace-retained
// entries.
func (m *Manager) GetSnapshot(id string) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return Record{}, false
	}
	return *e.record, true
}

// AwaitDecision blocks until id resolves, times out, or ctx is cancelled.
func (m *Manager) AwaitDecision(ctx context.Context, id string) (*Decision, error) {
	m.mu.Lock()
	e, ok := m.entries[id]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("approval record %s not found", id)
	}
	return e.future.Wait(ctx)
}

// ListPending returns every record not yet resolved. Grace-retained
// (resolved or timed-out) entries are excluded.
func (m *Manager) ListPending() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Record, 0, len(m.entries))
	for _, e := range m.entries {
		if !e.record.Settled() {
			out = append(out, *e.record)
		}
	}
	return out
}

// PendingCount is len(ListPending()) without the allocation.
func (m *Manager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, e := range m.entries {
		if !e.record.Settled() {
			count++
		}
	}
	return count
}
