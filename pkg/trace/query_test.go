package trace

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func seedTraces(t *testing.T, dir string) {
	t.Helper()
	w := NewWriter(dir)
	defer func() {
		w.Flush()
		w.Close()
	}()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []Reasoning{
		{
			ID:        "r1",
			Timestamp: base.Format(time.RFC3339Nano),
			Input:     Input{UserMessage: "deploy the service"},
			Decision:  Decision{Classification: "persistent_service"},
			Outcome:   Outcome{DurationMs: 100, EstimatedCost: 0.01},
		},
		{
			ID:        "r2",
			Timestamp: base.Add(time.Hour).Format(time.RFC3339Nano),
			Input:     Input{UserMessage: "read a file"},
			Decision:  Decision{Classification: "cached_pattern"},
			Outcome:   Outcome{DurationMs: 50, EstimatedCost: 0.02},
		},
		{
			ID:        "r3",
			Timestamp: base.Add(2 * time.Hour).Format(time.RFC3339Nano),
			Input:     Input{UserMessage: "deploy to staging", SubtaskOf: "r1"},
			Decision:  Decision{Classification: "persistent_service"},
			Outcome:   Outcome{DurationMs: 75, EstimatedCost: 0.03},
		},
	}
	for _, r := range records {
		w.Write("session-x", "agent-a", r)
	}
}

func TestQuery_KeywordFilter(t *testing.T) {
	dir := t.TempDir()
	seedTraces(t, dir)

	q := NewQuery(dir)
	res, err := q.Run(context.Background(), QueryParams{Keyword: "deploy"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(res))
	}
}

func TestQuery_ClassificationFilter(t *testing.T) {
	dir := t.TempDir()
	seedTraces(t, dir)

	q := NewQuery(dir)
	res, err := q.Run(context.Background(), QueryParams{Classification: "cached_pattern"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res) != 1 || res[0].ID != "r2" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestQuery_DefaultSortIsTimestampDescending(t *testing.T) {
	dir := t.TempDir()
	seedTraces(t, dir)

	q := NewQuery(dir)
	res, err := q.Run(context.Background(), QueryParams{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res) != 3 {
		t.Fatalf("expected 3 records, got %d", len(res))
	}
	if res[0].ID != "r3" || res[2].ID != "r1" {
		t.Fatalf("expected descending timestamp order, got %v, %v, %v", res[0].ID, res[1].ID, res[2].ID)
	}
}

func TestQuery_SortByCostAscending(t *testing.T) {
	dir := t.TempDir()
	seedTraces(t, dir)

	q := NewQuery(dir)
	res, err := q.Run(context.Background(), QueryParams{SortBy: SortCost})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res[0].ID != "r1" || res[2].ID != "r3" {
		t.Fatalf("expected ascending cost order, got %v, %v, %v", res[0].ID, res[1].ID, res[2].ID)
	}
}

func TestQuery_OffsetAndLimit(t *testing.T) {
	dir := t.TempDir()
	seedTraces(t, dir)

	q := NewQuery(dir)
	res, err := q.Run(context.Background(), QueryParams{Offset: 1, Limit: 1})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res) != 1 {
		t.Fatalf("expected 1 record, got %d", len(res))
	}
}

func TestQuery_GetTraceFindsByID(t *testing.T) {
	dir := t.TempDir()
	seedTraces(t, dir)

	q := NewQuery(dir)
	rec, ok := q.GetTrace("r2")
	if !ok {
		t.Fatal("expected to find r2")
	}
	if rec.Input.UserMessage != "read a file" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	if _, ok := q.GetTrace("does-not-exist"); ok {
		t.Fatal("expected no match for unknown id")
	}
}

func TestQuery_GetSubtasks(t *testing.T) {
	dir := t.TempDir()
	seedTraces(t, dir)

	q := NewQuery(dir)
	subs, err := q.GetSubtasks(context.Background(), "r1")
	if err != nil {
		t.Fatalf("GetSubtasks: %v", err)
	}
	if len(subs) != 1 || subs[0].ID != "r3" {
		t.Fatalf("unexpected subtasks: %+v", subs)
	}
}

func TestQuery_EmptyDirectoryReturnsNoResults(t *testing.T) {
	q := NewQuery(filepath.Join(t.TempDir(), "missing"))
	res, err := q.Run(context.Background(), QueryParams{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res) != 0 {
		t.Fatalf("expected no results, got %d", len(res))
	}
}
