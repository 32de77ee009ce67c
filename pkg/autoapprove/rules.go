// Package autoapprove implements the persistent, file-backed Auto-Approve
// Rule Store: once an operator answers "allow always" for a tool/tier pair,
// the rule is remembered across process restarts and checked before the
// Autonomy Gate re-prompts.
package autoapprove

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openclaw/aasc/pkg/autonomy"
	"github.com/openclaw/aasc/pkg/logging"
	"github.com/openclaw/aasc/pkg/statedir"
)

// DefaultAgentID is used whenever a caller omits one.
const DefaultAgentID = "main"

// wildcardAgent rules apply to every agent, checked after the agent's own.
const wildcardAgent = "*"

const fileVersion = 1

// Rule is one remembered auto-approve decision, scoped to the agent bucket
// it is stored under.
type Rule struct {
	ID          string        `json:"id"`
	ToolPattern string        `json:"toolPattern"`
	Tier        autonomy.Tier `json:"tier"`
	CreatedAtMs int64         `json:"createdAtMs"`
	LastUsedMs  int64         `json:"lastUsedAtMs,omitempty"`
	UseCount    int64         `json:"useCount"`
}

type agentBucket struct {
	Rules []Rule `json:"rules"`
}

// fileFormat is the on-disk shape: version:1, agents: map<agentId,{rules}>.
type fileFormat struct {
	Version int                    `json:"version"`
	Agents  map[string]agentBucket `json:"agents"`
}

// Store is the process-wide, file-backed rule set. The zero value is not
// usable; construct with New.
type Store struct {
	path   string
	watch  *statedir.FileWatcher
	cache  map[string]agentBucket
	mu     sync.Mutex
	logger *logging.Logger
	// nowMs is overridable in tests; defaults to wall-clock time.
	nowMs func() int64
}

// New constructs a Store backed by path. path has ~/ expanded lazily on
// every access so environment changes between calls are honoured. An
// fsnotify watch on the resolved file is used to skip re-reading it when
// nothing outside this Store has touched it since the last load.
func New(path string) *Store {
	return &Store{
		path:  path,
		watch: statedir.Watch(statedir.ExpandHome(path)),
		nowMs: func() int64 { return time.Now().UnixMilli() },
	}
}

// Close stops the background file watch. Safe to skip in short-lived
// processes; the watch goroutine exits with the process regardless.
func (s *Store) Close() {
	s.watch.Close()
}

// SetLogger attaches l so best-effort persistence failures (the usage-count
// bump in Check) are logged instead of silently dropped. l may be nil.
func (s *Store) SetLogger(l *logging.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = l
}

// DefaultPath is the conventional location, ~/.openclaw/autonomy-rules.json.
func DefaultPath() string {
	return statedir.Path("autonomy-rules.json")
}

func (s *Store) resolvedPath() string {
	return statedir.ExpandHome(s.path)
}

// load returns the current rule set, failing soft: a missing, unparseable,
// or wrong-version file yields an empty set rather than an error. The
// in-memory cache is reused as long as the file watch reports no external
// change, so concurrent in-process calls don't each re-read and re-parse
// the file; a write from another process invalidates it on the next call.
func (s *Store) load() map[string]agentBucket {
	if s.cache != nil && !s.watch.IsDirty() {
		return s.cache
	}
	s.cache = s.loadFromDisk()
	s.watch.Clean()
	return s.cache
}

func (s *Store) loadFromDisk() map[string]agentBucket {
	data, err := os.ReadFile(s.resolvedPath())
	if err != nil {
		return map[string]agentBucket{}
	}
	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return map[string]agentBucket{}
	}
	if f.Version != fileVersion {
		return map[string]agentBucket{}
	}
	if f.Agents == nil {
		return map[string]agentBucket{}
	}
	return f.Agents
}

// save writes the agent map as pretty-printed JSON with a trailing newline
// at mode 0600, creating parent directories as needed.
func (s *Store) save(agents map[string]agentBucket) error {
	path := s.resolvedPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating rule directory: %w", err)
	}
	data, err := json.MarshalIndent(fileFormat{Version: fileVersion, Agents: agents}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling rules: %w", err)
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

// Add dedupes on (toolPattern, tier) within the agent's bucket: if a
// matching rule already exists it is returned unchanged, otherwise a new
// rule is created and persisted.
func (s *Store) Add(toolName string, tier autonomy.Tier, agentID string) (Rule, error) {
	agentID = resolveAgent(agentID)
	pattern := autonomy.NormalizeToolName(toolName)

	s.mu.Lock()
	defer s.mu.Unlock()

	agents := s.load()
	bucket := agents[agentID]
	for _, r := range bucket.Rules {
		if r.ToolPattern == pattern && r.Tier == tier {
			return r, nil
		}
	}

	rule := Rule{
		ID:          uuid.NewString(),
		ToolPattern: pattern,
		Tier:        tier,
		CreatedAtMs: s.nowMs(),
	}
	bucket.Rules = append(bucket.Rules, rule)
	agents[agentID] = bucket
	if err := s.save(agents); err != nil {
		return Rule{}, err
	}
	return rule, nil
}

// Check searches agentID's rules first, then the wildcard agent's, for the
// first rule whose pattern matches toolName and whose
// tier equals tier. A matching rule's usage counter is bumped best-effort;
// failures to persist the bump never propagate to the caller.
func (s *Store) Check(toolName string, tier autonomy.Tier, agentID string) (Rule, bool) {
	agentID = resolveAgent(agentID)
	name := autonomy.NormalizeToolName(toolName)

	s.mu.Lock()
	agents := s.load()
	s.mu.Unlock()

	if rule, ok := findMatch(agents[agentID].Rules, name, tier); ok {
		s.bumpUsage(agentID, rule.ID)
		return rule, true
	}
	if agentID != wildcardAgent {
		if rule, ok := findMatch(agents[wildcardAgent].Rules, name, tier); ok {
			s.bumpUsage(wildcardAgent, rule.ID)
			return rule, true
		}
	}
	return Rule{}, false
}

func findMatch(rules []Rule, name string, tier autonomy.Tier) (Rule, bool) {
	for _, r := range rules {
		if r.Tier != tier {
			continue
		}
		if MatchesToolPattern(r.ToolPattern, name) {
			return r, true
		}
	}
	return Rule{}, false
}

func (s *Store) bumpUsage(agentID, ruleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	agents := s.load()
	bucket := agents[agentID]
	changed := false
	for i := range bucket.Rules {
		if bucket.Rules[i].ID == ruleID {
			bucket.Rules[i].UseCount++
			bucket.Rules[i].LastUsedMs = s.nowMs()
			changed = true
			break
		}
	}
	if !changed {
		return
	}
	agents[agentID] = bucket
	if err := s.save(agents); err != nil && s.logger != nil {
		_ = s.logger.Debug(logging.CategorySafety, "autoapprove.bump_usage_failed",
			"failed to persist rule usage count", map[string]any{
				"agentId": agentID, "ruleId": ruleID, "error": err.Error(),
			})
	}
}

// Remove deletes a rule by id, scoped to agentID. It reports false if the
// rule was not found.
func (s *Store) Remove(ruleID string, agentID string) (bool, error) {
	agentID = resolveAgent(agentID)

	s.mu.Lock()
	defer s.mu.Unlock()

	agents := s.load()
	bucket := agents[agentID]
	out := make([]Rule, 0, len(bucket.Rules))
	found := false
	for _, r := range bucket.Rules {
		if r.ID == ruleID {
			found = true
			continue
		}
		out = append(out, r)
	}
	if !found {
		return false, nil
	}
	bucket.Rules = out
	agents[agentID] = bucket
	if err := s.save(agents); err != nil {
		return false, err
	}
	return true, nil
}

// List returns every rule scoped to agentID, in file order.
func (s *Store) List(agentID string) []Rule {
	agentID = resolveAgent(agentID)

	s.mu.Lock()
	agents := s.load()
	s.mu.Unlock()

	bucket := agents[agentID]
	out := make([]Rule, len(bucket.Rules))
	copy(out, bucket.Rules)
	return out
}

func resolveAgent(agentID string) string {
	if agentID == "" {
		return DefaultAgentID
	}
	return agentID
}
