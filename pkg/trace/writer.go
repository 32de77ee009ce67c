package trace

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/openclaw/aasc/pkg/logging"
)

// defaultAgentDir is used when a trace is written without an agent id.
const defaultAgentDir = "default"

type writeJob struct {
	path string
	line []byte
	done chan struct{}
}

// Writer is the Trace Writer: one append-only JSONL file per
// (agentId, sessionId), serialised through a single in-order queue so two
// Write calls always append in call order regardless of which goroutine
// issued them.
type Writer struct {
	baseDir string

	jobs chan writeJob
	wg   sync.WaitGroup

	dirGroup singleflight.Group
	dirsMu   sync.Mutex
	dirsMade map[string]bool

	loggerMu sync.Mutex
	logger   *logging.Logger
}

// NewWriter starts a Writer rooted at baseDir. The background flusher
// goroutine runs until Close.
func NewWriter(baseDir string) *Writer {
	w := &Writer{
		baseDir:  baseDir,
		jobs:     make(chan writeJob, 256),
		dirsMade: make(map[string]bool),
	}
	w.wg.Add(1)
	go w.loop()
	return w
}

// SetLogger attaches l so marshal and I/O failures on the write path are
// logged instead of silently dropped. l may be nil.
func (w *Writer) SetLogger(l *logging.Logger) {
	w.loggerMu.Lock()
	defer w.loggerMu.Unlock()
	w.logger = l
}

func (w *Writer) logFailure(eventType, message string, details map[string]any) {
	w.loggerMu.Lock()
	l := w.logger
	w.loggerMu.Unlock()
	if l == nil {
		return
	}
	_ = l.Debug(logging.CategorySafety, eventType, message, details)
}

func (w *Writer) loop() {
	defer w.wg.Done()
	for job := range w.jobs {
		if job.path != "" {
			w.appendLine(job.path, job.line)
		}
		close(job.done)
	}
}

// Write is fire-and-forget: it serialises trace and enqueues the append.
// Marshalling or I/O failures are swallowed — trace failure must never
// block agent execution.
func (w *Writer) Write(sessionID, agentID string, rec Reasoning) {
	data, err := json.Marshal(rec)
	if err != nil {
		w.logFailure("trace.marshal_failed", "failed to marshal reasoning trace",
			map[string]any{"sessionId": sessionID, "agentId": agentID, "error": err.Error()})
		return
	}
	data = append(data, '\n')

	path := w.pathFor(agentID, sessionID)
	w.jobs <- writeJob{path: path, line: data, done: make(chan struct{})}
}

func (w *Writer) pathFor(agentID, sessionID string) string {
	dir := strings.TrimSpace(agentID)
	if dir == "" {
		dir = defaultAgentDir
	}
	return filepath.Join(w.baseDir, dir, sessionID+".jsonl")
}

// ensureDir memoises directory creation per directory path via
// singleflight, so concurrent Write calls into the same agent directory
// issue exactly one MkdirAll.
func (w *Writer) ensureDir(dir string) error {
	w.dirsMu.Lock()
	if w.dirsMade[dir] {
		w.dirsMu.Unlock()
		return nil
	}
	w.dirsMu.Unlock()

	_, err, _ := w.dirGroup.Do(dir, func() (any, error) {
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			return nil, mkErr
		}
		w.dirsMu.Lock()
		w.dirsMade[dir] = true
		w.dirsMu.Unlock()
		return nil, nil
	})
	return err
}

func (w *Writer) appendLine(path string, line []byte) {
	if err := w.ensureDir(filepath.Dir(path)); err != nil {
		w.logFailure("trace.mkdir_failed", "failed to create trace directory",
			map[string]any{"path": path, "error": err.Error()})
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		w.logFailure("trace.open_failed", "failed to open trace file for append",
			map[string]any{"path": path, "error": err.Error()})
		return
	}
	defer f.Close()
	if _, err := f.Write(line); err != nil {
		w.logFailure("trace.write_failed", "failed to append trace line",
			map[string]any{"path": path, "error": err.Error()})
	}
}

// Flush blocks until every job enqueued before this call has been applied.
func (w *Writer) Flush() {
	done := make(chan struct{})
	w.jobs <- writeJob{path: "", line: nil, done: done}
	<-done
}

// Close stops the background flusher after draining pending jobs.
func (w *Writer) Close() {
	close(w.jobs)
	w.wg.Wait()
}
