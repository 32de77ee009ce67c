package cost

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *sqliteStore {
	t.Helper()
	s, err := newSQLiteStore(filepath.Join(t.TempDir(), "cost.db"))
	if err != nil {
		t.Fatalf("newSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_SaveAndAggregate(t *testing.T) {
	s := newTestStore(t)

	calls := []APICall{
		{AgentID: "agent-a", Model: "gpt-4o", PromptTokens: 100, CompletionTokens: 50, Cost: 1.5, Timestamp: time.Now()},
		{AgentID: "agent-a", Model: "gpt-4o", PromptTokens: 10, CompletionTokens: 5, Cost: 0.5, Timestamp: time.Now()},
		{AgentID: "agent-b", Model: "gpt-4o", PromptTokens: 10, CompletionTokens: 5, Cost: 9.0, Timestamp: time.Now()},
	}
	for _, c := range calls {
		if err := s.SaveAPICall(c); err != nil {
			t.Fatalf("SaveAPICall: %v", err)
		}
	}

	total, err := s.GetAgentCost("agent-a")
	if err != nil {
		t.Fatalf("GetAgentCost: %v", err)
	}
	if total != 2.0 {
		t.Fatalf("expected 2.0, got %v", total)
	}

	daily, err := s.GetDailyCost("agent-a")
	if err != nil {
		t.Fatalf("GetDailyCost: %v", err)
	}
	if daily != 2.0 {
		t.Fatalf("expected daily 2.0, got %v", daily)
	}

	monthly, err := s.GetMonthlyCost("agent-b")
	if err != nil {
		t.Fatalf("GetMonthlyCost: %v", err)
	}
	if monthly != 9.0 {
		t.Fatalf("expected monthly 9.0, got %v", monthly)
	}
}

func TestSQLiteStore_UnknownAgentReturnsZero(t *testing.T) {
	s := newTestStore(t)
	cost, err := s.GetAgentCost("does-not-exist")
	if err != nil {
		t.Fatalf("GetAgentCost: %v", err)
	}
	if cost != 0 {
		t.Fatalf("expected 0, got %v", cost)
	}
}
