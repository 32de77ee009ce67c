package progression

import (
	"path/filepath"
	"testing"

	"github.com/openclaw/aasc/pkg/autonomy"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	tr := New(filepath.Join(t.TempDir(), "autonomy-progression.json"))
	t.Cleanup(tr.Close)
	return tr
}

func TestRecordApprovalOutcome_ConsecutiveSuccessesResetsOnDenial(t *testing.T) {
	tr := newTestTracker(t)
	tr.RecordApprovalOutcome(true, "")
	tr.RecordApprovalOutcome(true, "")
	s, err := tr.RecordApprovalOutcome(false, "")
	if err != nil {
		t.Fatalf("RecordApprovalOutcome: %v", err)
	}
	if s.ConsecutiveSuccesses != 0 {
		t.Fatalf("expected consecutive successes reset to 0, got %d", s.ConsecutiveSuccesses)
	}
	if s.TotalApprovals != 2 || s.TotalDenials != 1 {
		t.Fatalf("unexpected counters: %+v", s)
	}
}

func TestShouldProposeUpgrade_AtMaximum(t *testing.T) {
	tr := newTestTracker(t)
	p := tr.ShouldProposeUpgrade(autonomy.LevelHigh, nil, "")
	if p.Propose {
		t.Fatal("expected no proposal at maximum level")
	}
}

func TestShouldProposeUpgrade_InsufficientHistory(t *testing.T) {
	tr := newTestTracker(t)
	tr.RecordApprovalOutcome(true, "")
	p := tr.ShouldProposeUpgrade(autonomy.LevelLow, nil, "")
	if p.Propose {
		t.Fatal("expected no proposal with insufficient history")
	}
}

func TestShouldProposeUpgrade_EligibleAfterEnoughApprovals(t *testing.T) {
	tr := newTestTracker(t)
	for i := 0; i < 50; i++ {
		tr.RecordApprovalOutcome(true, "")
	}
	p := tr.ShouldProposeUpgrade(autonomy.LevelLow, nil, "")
	if !p.Propose {
		t.Fatalf("expected a proposal, got reason %q", p.Reason)
	}
	if p.FromLevel != autonomy.LevelLow || p.ToLevel != autonomy.LevelMedium {
		t.Fatalf("expected low->medium, got %s->%s", p.FromLevel, p.ToLevel)
	}
}

func TestShouldProposeUpgrade_RateBelowThreshold(t *testing.T) {
	tr := newTestTracker(t)
	for i := 0; i < 40; i++ {
		tr.RecordApprovalOutcome(true, "")
	}
	for i := 0; i < 20; i++ {
		tr.RecordApprovalOutcome(false, "")
	}
	p := tr.ShouldProposeUpgrade(autonomy.LevelLow, nil, "")
	if p.Propose {
		t.Fatal("expected no proposal when rate is below threshold")
	}
}

func TestShouldProposeUpgrade_Disabled(t *testing.T) {
	tr := newTestTracker(t)
	for i := 0; i < 60; i++ {
		tr.RecordApprovalOutcome(true, "")
	}
	cfg := DefaultConfig()
	cfg.Enabled = false
	p := tr.ShouldProposeUpgrade(autonomy.LevelLow, &cfg, "")
	if p.Propose {
		t.Fatal("expected no proposal when progression is disabled")
	}
}

func TestShouldProposeUpgrade_CooldownBlocks(t *testing.T) {
	tr := newTestTracker(t)
	for i := 0; i < 60; i++ {
		tr.RecordApprovalOutcome(true, "")
	}
	if err := tr.MarkProposalSurfaced("", autonomy.LevelMedium); err != nil {
		t.Fatalf("MarkProposalSurfaced: %v", err)
	}
	p := tr.ShouldProposeUpgrade(autonomy.LevelLow, nil, "")
	if p.Propose {
		t.Fatal("expected cooldown to block a fresh proposal")
	}
}

func TestResetProgressionStats_DeletesEntry(t *testing.T) {
	tr := newTestTracker(t)
	tr.RecordApprovalOutcome(true, "")
	if err := tr.ResetProgressionStats(""); err != nil {
		t.Fatalf("ResetProgressionStats: %v", err)
	}
	s := tr.GetStats("")
	if s.TotalApprovals != 0 {
		t.Fatalf("expected reset stats, got %+v", s)
	}
}
