package cost

import "testing"

func TestEstimateTokens_NonEmptyText(t *testing.T) {
	n := EstimateTokens("the quick brown fox jumps over the lazy dog")
	if n <= 0 {
		t.Fatalf("expected positive token count, got %d", n)
	}
}

func TestEstimateTokens_EmptyText(t *testing.T) {
	if n := EstimateTokens(""); n != 0 {
		t.Fatalf("expected 0 tokens for empty text, got %d", n)
	}
}
