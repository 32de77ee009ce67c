package trace

import "testing"

func TestDecompose_NumberedList(t *testing.T) {
	msg := "1. Clone the repo\n2. Run the tests\n3. Open a PR"
	r := Decompose(msg)
	if !r.Decomposed {
		t.Fatal("expected decomposition")
	}
	if len(r.Subtasks) != 3 {
		t.Fatalf("expected 3 subtasks, got %d: %v", len(r.Subtasks), r.Subtasks)
	}
	if r.Subtasks[0] != "Clone the repo" {
		t.Fatalf("unexpected first subtask: %q", r.Subtasks[0])
	}
}

func TestDecompose_SequentialMarkers(t *testing.T) {
	msg := "Build the project, then run the tests, and finally deploy it."
	r := Decompose(msg)
	if !r.Decomposed {
		t.Fatal("expected decomposition")
	}
	if len(r.Subtasks) < 2 {
		t.Fatalf("expected at least 2 subtasks, got %d: %v", len(r.Subtasks), r.Subtasks)
	}
}

func TestDecompose_NumberedListCollapsesInternalNewlines(t *testing.T) {
	msg := "1. do the\nthing\n2. do the other\nthing"
	r := Decompose(msg)
	if !r.Decomposed {
		t.Fatal("expected decomposition")
	}
	if r.Subtasks[0] != "do the thing" {
		t.Fatalf("expected collapsed first subtask, got %q", r.Subtasks[0])
	}
	if r.Subtasks[1] != "do the other thing" {
		t.Fatalf("expected collapsed second subtask, got %q", r.Subtasks[1])
	}
}

func TestDecompose_SingleNumberedItemDoesNotDecompose(t *testing.T) {
	msg := "1. Just one step"
	r := Decompose(msg)
	if r.Decomposed {
		t.Fatal("expected no decomposition for a single numbered item")
	}
	if r.Subtasks == nil {
		t.Fatal("expected an empty, non-nil subtasks slice")
	}
}

func TestDecompose_PlainMessageDoesNotDecompose(t *testing.T) {
	r := Decompose("Summarize the latest release notes")
	if r.Decomposed {
		t.Fatal("expected no decomposition for a plain message")
	}
	if len(r.Subtasks) != 0 {
		t.Fatalf("expected no subtasks, got %v", r.Subtasks)
	}
}
