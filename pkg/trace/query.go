package trace

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// SortField is the field queryTraces sorts on.
type SortField string

const (
	SortTimestamp SortField = "timestamp"
	SortCost      SortField = "cost"
	SortDuration  SortField = "duration"
)

// QueryParams filters and paginates a trace query.
type QueryParams struct {
	Keyword        string
	Classification string
	SubtaskOf      string
	Since          *time.Time
	Until          *time.Time
	SortBy         SortField
	Descending     bool
	Offset         int
	Limit          int
}

// Query scans JSONL trace files under baseDir in parallel (bounded by
// runtime.NumCPU) and returns the filtered, sorted, paginated result.
type Query struct {
	baseDir string
}

// NewQuery constructs a Query rooted at baseDir.
func NewQuery(baseDir string) *Query {
	return &Query{baseDir: baseDir}
}

func defaultParams(p QueryParams) QueryParams {
	if p.SortBy == "" {
		p.SortBy = SortTimestamp
		p.Descending = true
	}
	if p.Limit <= 0 {
		p.Limit = 50
	}
	return p
}

func (q *Query) listFiles() ([]string, error) {
	var files []string
	err := filepath.WalkDir(q.baseDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".jsonl") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// Run executes the query against every trace file, splitting the per-file
// scan across an errgroup bounded to runtime.NumCPU, then barrier-merges,
// sorts, and paginates.
func (q *Query) Run(ctx context.Context, params QueryParams) ([]Reasoning, error) {
	params = defaultParams(params)

	files, err := q.listFiles()
	if err != nil {
		return nil, err
	}

	results := make([][]Reasoning, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInt(1, runtime.NumCPU()))

	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			recs, scanErr := scanFile(f, params)
			if scanErr != nil {
				return nil // a single bad file is skipped, not fatal
			}
			results[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []Reasoning
	for _, recs := range results {
		merged = append(merged, recs...)
	}

	sortRecords(merged, params.SortBy, params.Descending)
	return paginate(merged, params.Offset, params.Limit), nil
}

func scanFile(path string, params QueryParams) ([]Reasoning, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []Reasoning
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec Reasoning
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue // malformed lines are skipped
		}
		if matches(rec, params) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func matches(rec Reasoning, p QueryParams) bool {
	if p.Keyword != "" {
		kw := strings.ToLower(p.Keyword)
		if !strings.Contains(strings.ToLower(rec.Input.UserMessage), kw) &&
			!strings.Contains(strings.ToLower(rec.Decision.Action), kw) &&
			!strings.Contains(strings.ToLower(rec.Decision.Reasoning), kw) {
			return false
		}
	}
	if p.Classification != "" && rec.Decision.Classification != p.Classification {
		return false
	}
	if p.SubtaskOf != "" && rec.Input.SubtaskOf != p.SubtaskOf {
		return false
	}
	if p.Since != nil || p.Until != nil {
		ts, err := time.Parse(time.RFC3339Nano, rec.Timestamp)
		if err != nil {
			return false
		}
		if p.Since != nil && ts.Before(*p.Since) {
			return false
		}
		if p.Until != nil && ts.After(*p.Until) {
			return false
		}
	}
	return true
}

func sortRecords(recs []Reasoning, field SortField, desc bool) {
	less := func(i, j int) bool {
		var a, b float64
		switch field {
		case SortCost:
			a, b = recs[i].Outcome.EstimatedCost, recs[j].Outcome.EstimatedCost
		case SortDuration:
			a, b = float64(recs[i].Outcome.DurationMs), float64(recs[j].Outcome.DurationMs)
		default:
			ta, _ := time.Parse(time.RFC3339Nano, recs[i].Timestamp)
			tb, _ := time.Parse(time.RFC3339Nano, recs[j].Timestamp)
			a, b = float64(ta.UnixNano()), float64(tb.UnixNano())
		}
		if desc {
			return a > b
		}
		return a < b
	}
	sort.SliceStable(recs, less)
}

func paginate(recs []Reasoning, offset, limit int) []Reasoning {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(recs) {
		return []Reasoning{}
	}
	end := offset + limit
	if end > len(recs) || limit <= 0 {
		end = len(recs)
	}
	return recs[offset:end]
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// GetTrace scans every file until a record with the given id is found.
func (q *Query) GetTrace(id string) (Reasoning, bool) {
	files, err := q.listFiles()
	if err != nil {
		return Reasoning{}, false
	}
	for _, f := range files {
		recs, err := scanFile(f, QueryParams{})
		if err != nil {
			continue
		}
		for _, r := range recs {
			if r.ID == id {
				return r, true
			}
		}
	}
	return Reasoning{}, false
}

// GetSubtasks delegates to Run with subtaskOf=parentId, ascending, limit
// 1000.
func (q *Query) GetSubtasks(ctx context.Context, parentID string) ([]Reasoning, error) {
	return q.Run(ctx, QueryParams{SubtaskOf: parentID, SortBy: SortTimestamp, Descending: false, Limit: 1000})
}
