package httpquery

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/openclaw/aasc/pkg/trace"
)

func writeTraceFile(t *testing.T, dir, sessionID, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, sessionID+".jsonl"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestHandleTraces_ReturnsMatchingReasoningLines(t *testing.T) {
	dir := t.TempDir()
	writeTraceFile(t, dir, "s1", `{"id":"r1","timestamp":"2026-01-01T00:00:00Z","decision":{"classification":"cached_pattern"}}`+"\n")

	s := New(trace.NewQuery(dir), ":0")

	req := httptest.NewRequest(http.MethodGet, "/traces?classification=cached_pattern", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var results []trace.Reasoning
	if err := json.Unmarshal(rec.Body.Bytes(), &results); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(results) != 1 || results[0].ID != "r1" {
		t.Fatalf("expected one matching reasoning line, got %+v", results)
	}
}

func TestHandleTraces_EmptyBaseDirReturnsEmptyArray(t *testing.T) {
	s := New(trace.NewQuery(t.TempDir()), ":0")

	req := httptest.NewRequest(http.MethodGet, "/traces", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "null\n" && rec.Body.String() != "[]\n" {
		t.Fatalf("expected an empty JSON array/null, got %q", rec.Body.String())
	}
}

func TestMetrics_ServesPrometheusFormat(t *testing.T) {
	s := New(trace.NewQuery(t.TempDir()), ":0")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
