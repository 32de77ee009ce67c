package outputscan

import (
	"strings"

	"github.com/openclaw/aasc/pkg/sensitive"
)

// Violation is one Output Scanner or Data Flow Validator finding.
type Violation struct {
	Type     string
	Severity string
	Offset   int
	Reason   string
}

// DefaultSystemPromptFragments are scanned case-insensitively against
// outbound agent text to catch accidental system-prompt echo.
var DefaultSystemPromptFragments = []string{
	"you are an AI assistant",
	"SYSTEM:",
	"<<SYS>>",
	"[INST]",
}

// ScannerConfig configures the Output Scanner.
type ScannerConfig struct {
	Enabled               bool
	SystemPromptFragments []string
}

// ScanResult is the Output Scanner's verdict.
type ScanResult struct {
	Clean            bool
	Violations       []Violation
	SensitiveMatches []sensitive.Match
}

// Scan inspects outbound agent text for data leakage and system-prompt echo.
func Scan(cfg ScannerConfig, output string) ScanResult {
	if !cfg.Enabled || output == "" {
		return ScanResult{Clean: true}
	}

	var violations []Violation

	matches := sensitive.Scan(output, nil)
	for _, m := range matches {
		violations = append(violations, Violation{Type: "data_leakage", Severity: "critical", Offset: m.Offset})
	}

	fragments := cfg.SystemPromptFragments
	if fragments == nil {
		fragments = DefaultSystemPromptFragments
	}
	lowerOutput := strings.ToLower(output)
	for _, frag := range fragments {
		if idx := strings.Index(lowerOutput, strings.ToLower(frag)); idx >= 0 {
			violations = append(violations, Violation{Type: "system_prompt_echo", Severity: "warning", Offset: idx})
		}
	}

	return ScanResult{
		Clean:            len(violations) == 0,
		Violations:       violations,
		SensitiveMatches: matches,
	}
}
