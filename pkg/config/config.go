// Package config loads the AASC configuration surface: autonomy defaults,
// the filesystem boundary, sensitive-data/output-scanning toggles, the
// reasoning trace, the event bus driver, cost budgets, and the optional
// trace-query HTTP surface. Loading never panics — a missing file or
// malformed YAML falls back to the documented defaults below.
package config

import (
	"os"

	"github.com/openclaw/aasc/pkg/autonomy"
	"gopkg.in/yaml.v3"
)

// AutonomyConfig is the `autonomy.*` configuration surface.
type AutonomyConfig struct {
	Level               autonomy.Level    `yaml:"level"`
	ConfidenceThreshold float64           `yaml:"confidenceThreshold"`
	ApprovalTimeoutMs   int64             `yaml:"approvalTimeoutMs"`
	Progression         ProgressionConfig `yaml:"progression"`
	RateLimit           RateLimitConfig   `yaml:"rateLimit"`
}

// ProgressionConfig is `autonomy.progression.*`.
type ProgressionConfig struct {
	Enabled         bool    `yaml:"enabled"`
	MinApprovals    int64   `yaml:"minApprovals"`
	MinApprovalRate float64 `yaml:"minApprovalRate"`
	CooldownDays    int     `yaml:"cooldownDays"`
}

// RateLimitConfig is `autonomy.rateLimit.*`.
type RateLimitConfig struct {
	PerAgentPerMinute float64 `yaml:"perAgentPerMinute"`
}

// SecurityConfig is the `security.*` configuration surface.
type SecurityConfig struct {
	Filesystem        FilesystemConfig     `yaml:"filesystem"`
	DataFlow          DataFlowConfig       `yaml:"dataFlow"`
	SensitivePatterns []string             `yaml:"sensitivePatterns"`
	OutputScanning    OutputScanningConfig `yaml:"outputScanning"`
}

// FilesystemConfig is `security.filesystem.*`.
type FilesystemConfig struct {
	Readable []string `yaml:"readable"`
	Writable []string `yaml:"writable"`
	Denied   []string `yaml:"denied"`
}

// DataFlowConfig is `security.dataFlow.*`.
type DataFlowConfig struct {
	AllowedProviders  []string `yaml:"allowedProviders"`
	RedactionPatterns []string `yaml:"redactionPatterns"`
}

// OutputScanningConfig is `security.outputScanning.*`.
type OutputScanningConfig struct {
	Enabled               bool     `yaml:"enabled"`
	SystemPromptFragments []string `yaml:"systemPromptFragments"`
}

// DiagnosticsConfig is the `diagnostics.*` configuration surface, including
// the optional trace-query HTTP surface.
type DiagnosticsConfig struct {
	ReasoningTrace ReasoningTraceConfig `yaml:"reasoningTrace"`
	HTTPQuery      HTTPQueryConfig      `yaml:"httpQuery"`
}

// ReasoningTraceConfig is `diagnostics.reasoningTrace.*`.
type ReasoningTraceConfig struct {
	Enabled          bool   `yaml:"enabled"`
	BaseDir          string `yaml:"baseDir"`
	IncludeReasoning bool   `yaml:"includeReasoning"`
	MaxResultLength  int    `yaml:"maxResultLength"`
}

// HTTPQueryConfig is `diagnostics.httpQuery.*`.
type HTTPQueryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// BusConfig is the `bus.*` configuration surface.
type BusConfig struct {
	Driver  string `yaml:"driver"`
	NatsURL string `yaml:"natsURL"`
}

// CostConfig is the `cost.*` configuration surface.
type CostConfig struct {
	DBPath  string      `yaml:"dbPath"`
	Budgets CostBudgets `yaml:"budgets"`
}

// CostBudgets is `cost.budgets.*`.
type CostBudgets struct {
	Session    float64 `yaml:"session"`
	Daily      float64 `yaml:"daily"`
	Monthly    float64 `yaml:"monthly"`
	AutoStopAt float64 `yaml:"autoStopAt"`
}

// Config is the complete AASC configuration surface.
type Config struct {
	Autonomy    AutonomyConfig    `yaml:"autonomy"`
	Security    SecurityConfig    `yaml:"security"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
	Bus         BusConfig         `yaml:"bus"`
	Cost        CostConfig        `yaml:"cost"`
}

// Default returns the documented out-of-the-box configuration applied
// when nothing is configured.
func Default() *Config {
	return &Config{
		Autonomy: AutonomyConfig{
			Level:               autonomy.LevelLow,
			ConfidenceThreshold: autonomy.DefaultConfidenceThreshold,
			ApprovalTimeoutMs:   120_000,
			Progression: ProgressionConfig{
				Enabled:         true,
				MinApprovals:    50,
				MinApprovalRate: 0.95,
				CooldownDays:    7,
			},
			RateLimit: RateLimitConfig{PerAgentPerMinute: 30},
		},
		Security: SecurityConfig{
			Filesystem: FilesystemConfig{
				Readable: []string{"~"},
				Writable: []string{"~/.openclaw/"},
				Denied: []string{
					"~/.ssh/", "~/.gnupg/", "~/.aws/", "~/.config/gcloud/",
					"~/.docker/", "~/.kube/", "~/.netrc", "~/.npmrc", "~/.pypirc",
				},
			},
			OutputScanning: OutputScanningConfig{Enabled: true},
		},
		Diagnostics: DiagnosticsConfig{
			ReasoningTrace: ReasoningTraceConfig{
				Enabled:         true,
				BaseDir:         "~/.openclaw/traces",
				MaxResultLength: 2000,
			},
			HTTPQuery: HTTPQueryConfig{Enabled: false, Addr: ":0"},
		},
		Bus: BusConfig{Driver: "memory"},
		Cost: CostConfig{
			DBPath: "~/.openclaw/cost.db",
			Budgets: CostBudgets{
				Session: 5.00, Daily: 20.00, Monthly: 100.00, AutoStopAt: 0,
			},
		},
	}
}

// Load reads path and merges it onto Default(). A missing file is not
// fatal — Load returns the defaults unchanged. Malformed YAML is
// returned as an error alongside the still-usable defaults, so callers
// can log-and-continue per the fail-soft discipline.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := loadAndMerge(cfg, data); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadAndMerge(cfg *Config, data []byte) error {
	var override Config
	if err := yaml.Unmarshal(data, &override); err != nil {
		return err
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}
	mergeConfigs(cfg, &override, raw)
	return nil
}
