package cost

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// costStore defines the storage operations the Tracker requires.
type costStore interface {
	SaveAPICall(call APICall) error
	GetAgentCost(agentID string) (float64, error)
	GetDailyCost(agentID string) (float64, error)
	GetMonthlyCost(agentID string) (float64, error)
	Close() error
}

// CostCalculator abstracts token-to-dollar conversions.
type CostCalculator interface {
	CalculateCostFromTokens(modelID string, promptTokens, completionTokens int) (float64, error)
}

// agentTotals is the in-memory running total for one agent.
type agentTotals struct {
	sessionCost     float64
	sessionTokens   int64
	dailyCost       float64
	monthlyCost     float64
	lastDailyUpdate time.Time
}

// Tracker is the Cost Tracker: maintains per-agent
// session/daily/monthly running costs, durably backed by an embedded
// sqlite database so daily/monthly rollups survive process restarts.
type Tracker struct {
	store    costStore
	costCalc CostCalculator

	mu     sync.RWMutex
	agents map[string]*agentTotals

	sessionBudget float64
	dailyBudget   float64
	monthlyBudget float64
	autoStopAt    float64
}

// New opens (or creates) the cost database at dbPath and constructs a
// Tracker backed by it.
func New(dbPath string, calculator CostCalculator) (*Tracker, error) {
	if calculator == nil {
		return nil, errors.New("cost tracker requires a cost calculator")
	}
	db, err := newSQLiteStore(dbPath)
	if err != nil {
		return nil, err
	}
	return newWithStore(db, calculator), nil
}

func newWithStore(store costStore, calculator CostCalculator) *Tracker {
	return &Tracker{
		store:    store,
		costCalc: calculator,
		agents:   make(map[string]*agentTotals),

		sessionBudget: 5.00,
		dailyBudget:   20.00,
		monthlyBudget: 100.00,
		autoStopAt:    0,
	}
}

// Close releases the underlying database connection.
func (ct *Tracker) Close() error {
	return ct.store.Close()
}

// SetBudgets sets the budget limits applied to every tracked agent.
func (ct *Tracker) SetBudgets(session, daily, monthly, autoStop float64) {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	ct.sessionBudget = normalizeBudget(session)
	ct.dailyBudget = normalizeBudget(daily)
	ct.monthlyBudget = normalizeBudget(monthly)
	ct.autoStopAt = normalizeBudget(autoStop)
}

func (ct *Tracker) totalsLocked(agentID string) *agentTotals {
	t, ok := ct.agents[agentID]
	if !ok {
		t = &agentTotals{lastDailyUpdate: time.Now()}
		ct.agents[agentID] = t
	}
	return t
}

// RecordAPICall calculates the cost of one provider call, persists it,
// and updates the agent's in-memory running totals.
func (ct *Tracker) RecordAPICall(agentID, modelID string, promptTokens, completionTokens int) (float64, error) {
	if ct.costCalc == nil {
		return 0, errors.New("cost calculator unavailable")
	}

	cost, err := ct.costCalc.CalculateCostFromTokens(modelID, promptTokens, completionTokens)
	if err != nil {
		return 0, fmt.Errorf("calculate cost: %w", err)
	}

	ct.mu.Lock()
	t := ct.totalsLocked(agentID)
	t.sessionCost += cost
	t.sessionTokens += int64(promptTokens + completionTokens)
	t.dailyCost += cost
	t.monthlyCost += cost
	ct.mu.Unlock()

	call := APICall{
		AgentID:          agentID,
		Model:            modelID,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		Cost:             cost,
		Timestamp:        time.Now(),
	}
	if err := ct.store.SaveAPICall(call); err != nil {
		return cost, fmt.Errorf("save api call: %w", err)
	}

	return cost, nil
}

// GetSessionCost returns the process-lifetime running cost for agentID.
func (ct *Tracker) GetSessionCost(agentID string) float64 {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	if t, ok := ct.agents[agentID]; ok {
		return t.sessionCost
	}
	return 0
}

// EstimateStreamingCost estimates the cost of streamingTokens, treating
// them conservatively as completion tokens.
func (ct *Tracker) EstimateStreamingCost(modelID string, streamingTokens int) float64 {
	if streamingTokens <= 0 || ct.costCalc == nil {
		return 0
	}
	cost, err := ct.costCalc.CalculateCostFromTokens(modelID, 0, streamingTokens)
	if err != nil {
		return 0
	}
	return cost
}

// GetDailyCost returns agentID's cost accrued today, refreshing from the
// database once the in-memory figure is more than a day stale.
func (ct *Tracker) GetDailyCost(agentID string) float64 {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	t := ct.totalsLocked(agentID)
	if time.Since(t.lastDailyUpdate) > 24*time.Hour {
		if daily, err := ct.store.GetDailyCost(agentID); err == nil {
			t.dailyCost = daily
			t.lastDailyUpdate = time.Now()
		}
	}
	return t.dailyCost
}

// GetMonthlyCost returns agentID's cost accrued this month.
func (ct *Tracker) GetMonthlyCost(agentID string) float64 {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	if t, ok := ct.agents[agentID]; ok {
		return t.monthlyCost
	}
	return 0
}

// Snapshot returns the trace.CostSnapshot shape (token count and
// estimated cost) for agentID's running session.
func (ct *Tracker) Snapshot(agentID string) CostSnapshot {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	if t, ok := ct.agents[agentID]; ok {
		return CostSnapshot{TokenCount: t.sessionTokens, EstimatedCost: t.sessionCost}
	}
	return CostSnapshot{}
}

// CostSnapshot mirrors trace.CostSnapshot without importing pkg/trace,
// keeping pkg/cost free of a dependency on the tracer.
type CostSnapshot struct {
	TokenCount    int64
	EstimatedCost float64
}

// CheckBudget evaluates agentID's budget status.
func (ct *Tracker) CheckBudget(agentID string) *BudgetStatus {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	t, ok := ct.agents[agentID]
	if !ok {
		t = &agentTotals{}
	}

	status := &BudgetStatus{
		SessionCost:    t.sessionCost,
		DailyCost:      t.dailyCost,
		MonthlyCost:    t.monthlyCost,
		SessionBudget:  ct.sessionBudget,
		DailyBudget:    ct.dailyBudget,
		MonthlyBudget:  ct.monthlyBudget,
		SessionPercent: budgetPercent(t.sessionCost, ct.sessionBudget),
		DailyPercent:   budgetPercent(t.dailyCost, ct.dailyBudget),
		MonthlyPercent: budgetPercent(t.monthlyCost, ct.monthlyBudget),
	}

	if ct.sessionBudget > 0 && t.sessionCost >= ct.sessionBudget {
		status.SessionExceeded = true
		status.ShouldStop = true
	}
	if ct.dailyBudget > 0 && t.dailyCost >= ct.dailyBudget {
		status.DailyExceeded = true
		status.ShouldWarn = true
	}
	if ct.monthlyBudget > 0 && t.monthlyCost >= ct.monthlyBudget {
		status.MonthlyExceeded = true
		status.ShouldWarn = true
	}
	if ct.autoStopAt > 0 && t.sessionCost >= ct.autoStopAt {
		status.ShouldStop = true
	}
	if status.SessionPercent >= 80 || status.DailyPercent >= 80 || status.MonthlyPercent >= 80 {
		status.ShouldWarn = true
	}

	return status
}

// BudgetStatus represents the current budget status
type BudgetStatus struct {
	SessionCost    float64
	DailyCost      float64
	MonthlyCost    float64
	SessionBudget  float64
	DailyBudget    float64
	MonthlyBudget  float64
	SessionPercent float64
	DailyPercent   float64
	MonthlyPercent float64

	SessionExceeded bool
	DailyExceeded   bool
	MonthlyExceeded bool

	ShouldWarn bool
	ShouldStop bool
}

// GetWarningMessage returns a warning message if needed
func (bs *BudgetStatus) GetWarningMessage() string {
	if bs.ShouldStop {
		if bs.SessionExceeded {
			return fmt.Sprintf("⛔ Session budget exceeded! ($%.2f / $%.2f)", bs.SessionCost, bs.SessionBudget)
		}
		return fmt.Sprintf("⛔ Auto-stop threshold reached! ($%.2f)", bs.SessionCost)
	}

	if bs.ShouldWarn {
		msg := "⚠️  Budget warnings:\n"
		if bs.SessionPercent >= 80 {
			msg += fmt.Sprintf("  • Session: $%.2f / $%.2f (%.0f%%)\n", bs.SessionCost, bs.SessionBudget, bs.SessionPercent)
		}
		if bs.DailyExceeded || bs.DailyPercent >= 80 {
			msg += fmt.Sprintf("  • Daily: $%.2f / $%.2f (%.0f%%)\n", bs.DailyCost, bs.DailyBudget, bs.DailyPercent)
		}
		if bs.MonthlyExceeded || bs.MonthlyPercent >= 80 {
			msg += fmt.Sprintf("  • Monthly: $%.2f / $%.2f (%.0f%%)\n", bs.MonthlyCost, bs.MonthlyBudget, bs.MonthlyPercent)
		}
		return msg
	}

	return ""
}

func budgetPercent(current, limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	return (current / limit) * 100
}

func normalizeBudget(limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	return limit
}
