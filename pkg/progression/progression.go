// Package progression implements the Progression Tracker: per-agent
// approval-outcome counters that decide when it is time to propose raising
// an agent's AutonomyLevel.
package progression

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/openclaw/aasc/pkg/autonomy"
	"github.com/openclaw/aasc/pkg/logging"
	"github.com/openclaw/aasc/pkg/statedir"
)

const fileVersion = 1

// Stats is the ProgressionStats entity. All counters are monotonic
// non-decreasing except ConsecutiveSuccesses, which resets to 0 on denial.
type Stats struct {
	TotalApprovals       int64  `json:"totalApprovals"`
	TotalDenials         int64  `json:"totalDenials"`
	ConsecutiveSuccesses int64  `json:"consecutiveSuccesses"`
	LastProposalAtMs     int64  `json:"lastProposalAtMs,omitempty"`
	LastProposalLevel    string `json:"lastProposalLevel,omitempty"`
}

type fileFormat struct {
	Version int              `json:"version"`
	Agents  map[string]Stats `json:"agents"`
}

// Config gates upgrade proposals.
type Config struct {
	Enabled         bool
	MinApprovals    int64
	MinApprovalRate float64
	CooldownDays    int
}

// DefaultConfig returns the documented out-of-the-box progression thresholds.
func DefaultConfig() Config {
	return Config{Enabled: true, MinApprovals: 50, MinApprovalRate: 0.95, CooldownDays: 7}
}

// Proposal is the verdict of ShouldProposeUpgrade.
type Proposal struct {
	Propose   bool
	FromLevel autonomy.Level
	ToLevel   autonomy.Level
	Stats     Stats
	Reason    string
}

// Tracker is the process-wide, file-backed progression tracker. The zero
// value is not usable; construct with New.
type Tracker struct {
	path   string
	watch  *statedir.FileWatcher
	cache  map[string]Stats
	mu     sync.Mutex
	logger *logging.Logger
	nowMs  func() int64
}

// New constructs a Tracker backed by path. An fsnotify watch on the
// resolved file skips re-reading it when nothing outside this Tracker has
// touched it since the last load.
func New(path string) *Tracker {
	return &Tracker{
		path:  path,
		watch: statedir.Watch(statedir.ExpandHome(path)),
		nowMs: func() int64 { return time.Now().UnixMilli() },
	}
}

// Close stops the background file watch.
func (t *Tracker) Close() {
	t.watch.Close()
}

// SetLogger attaches l so persistence failures on save are logged in
// addition to being returned to the caller. l may be nil.
func (t *Tracker) SetLogger(l *logging.Logger) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.logger = l
}

// DefaultPath is ~/.openclaw/autonomy-progression.json.
func DefaultPath() string {
	return statedir.Path("autonomy-progression.json")
}

func (t *Tracker) resolvedPath() string {
	return statedir.ExpandHome(t.path)
}

func (t *Tracker) load() map[string]Stats {
	if t.cache != nil && !t.watch.IsDirty() {
		return t.cache
	}
	t.cache = t.loadFromDisk()
	t.watch.Clean()
	return t.cache
}

func (t *Tracker) loadFromDisk() map[string]Stats {
	data, err := os.ReadFile(t.resolvedPath())
	if err != nil {
		return map[string]Stats{}
	}
	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return map[string]Stats{}
	}
	if f.Version != fileVersion || f.Agents == nil {
		return map[string]Stats{}
	}
	return f.Agents
}

func (t *Tracker) save(agents map[string]Stats) error {
	path := t.resolvedPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		err = fmt.Errorf("creating progression directory: %w", err)
		t.logSaveFailure(err)
		return err
	}
	data, err := json.MarshalIndent(fileFormat{Version: fileVersion, Agents: agents}, "", "  ")
	if err != nil {
		err = fmt.Errorf("marshalling progression stats: %w", err)
		t.logSaveFailure(err)
		return err
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.logSaveFailure(err)
		return err
	}
	return nil
}

// logSaveFailure records a best-effort persistence failure at debug level.
// Callers still receive err and decide for themselves whether to surface it;
// this only guarantees it is observable through the structured logger too.
func (t *Tracker) logSaveFailure(err error) {
	if t.logger == nil {
		return
	}
	_ = t.logger.Debug(logging.CategorySafety, "progression.save_failed",
		"failed to persist progression stats", map[string]any{"error": err.Error()})
}

// RecordApprovalOutcome increments the approval or denial counter for
// agentID and updates ConsecutiveSuccesses.
func (t *Tracker) RecordApprovalOutcome(approved bool, agentID string) (Stats, error) {
	agentID = resolveAgent(agentID)

	t.mu.Lock()
	defer t.mu.Unlock()

	agents := t.load()
	s := agents[agentID]
	if approved {
		s.TotalApprovals++
		s.ConsecutiveSuccesses++
	} else {
		s.TotalDenials++
		s.ConsecutiveSuccesses = 0
	}
	agents[agentID] = s
	if err := t.save(agents); err != nil {
		return Stats{}, err
	}
	return s, nil
}

// ShouldProposeUpgrade evaluates the five-step short-circuit guard order:
// level ceiling, enablement, minimum history, approval rate, cooldown.
func (t *Tracker) ShouldProposeUpgrade(currentLevel autonomy.Level, cfg *Config, agentID string) Proposal {
	agentID = resolveAgent(agentID)
	c := DefaultConfig()
	if cfg != nil {
		c = *cfg
	}

	t.mu.Lock()
	stats := t.load()[agentID]
	t.mu.Unlock()

	nextLevel, hasNext := currentLevel.Next()
	if !hasNext {
		return Proposal{Propose: false, Stats: stats, Reason: "at maximum autonomy level"}
	}
	if !c.Enabled {
		return Proposal{Propose: false, Stats: stats, Reason: "progression disabled"}
	}

	total := stats.TotalApprovals + stats.TotalDenials
	if total < c.MinApprovals {
		return Proposal{Propose: false, Stats: stats, Reason: fmt.Sprintf("insufficient history: %d/%d approvals recorded", total, c.MinApprovals)}
	}

	rate := float64(stats.TotalApprovals) / float64(total)
	if rate < c.MinApprovalRate {
		return Proposal{Propose: false, Stats: stats, Reason: fmt.Sprintf("approval rate %.2f below threshold %.2f", rate, c.MinApprovalRate)}
	}

	if stats.LastProposalAtMs != 0 {
		cooldownMs := int64(c.CooldownDays) * 86400000
		if t.nowMs()-stats.LastProposalAtMs < cooldownMs {
			return Proposal{Propose: false, Stats: stats, Reason: "proposal cooldown has not elapsed"}
		}
	}

	return Proposal{
		Propose:   true,
		FromLevel: currentLevel,
		ToLevel:   nextLevel,
		Stats:     stats,
		Reason:    fmt.Sprintf("eligible for upgrade from %s to %s", currentLevel, nextLevel),
	}
}

// MarkProposalSurfaced stamps LastProposalAtMs=now and records the level
// that was proposed.
func (t *Tracker) MarkProposalSurfaced(agentID string, proposedLevel autonomy.Level) error {
	agentID = resolveAgent(agentID)

	t.mu.Lock()
	defer t.mu.Unlock()

	agents := t.load()
	s := agents[agentID]
	s.LastProposalAtMs = t.nowMs()
	s.LastProposalLevel = string(proposedLevel)
	agents[agentID] = s
	return t.save(agents)
}

// ResetProgressionStats deletes agentID's entry entirely.
func (t *Tracker) ResetProgressionStats(agentID string) error {
	agentID = resolveAgent(agentID)

	t.mu.Lock()
	defer t.mu.Unlock()

	agents := t.load()
	delete(agents, agentID)
	return t.save(agents)
}

// GetStats returns a snapshot of agentID's stats, zero-valued if absent.
func (t *Tracker) GetStats(agentID string) Stats {
	agentID = resolveAgent(agentID)
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.load()[agentID]
}

func resolveAgent(agentID string) string {
	if agentID == "" {
		return "main"
	}
	return agentID
}
