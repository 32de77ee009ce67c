package outputscan

import (
	"fmt"
	"strings"

	"github.com/openclaw/aasc/pkg/sensitive"
)

// DataFlowConfig configures the Data Flow Validator guarding
// outbound-provider traffic.
type DataFlowConfig struct {
	AllowedProviders  []string // empty means no allow-list restriction
	RedactionPatterns []string
}

// DataFlowResult is the Data Flow Validator's verdict.
type DataFlowResult struct {
	Allowed          bool
	Redacted         string
	Violations       []Violation
	SensitiveMatches []sensitive.Match
}

// ValidateDataFlow guards data about to cross an outbound API boundary to
// provider. When an allow-list is configured and provider is absent from
// it, the call is blocked outright and no redaction is attempted. Otherwise
// sensitive-data matches are redacted and allowed, since redaction is
// treated as sufficient mitigation.
func ValidateDataFlow(cfg DataFlowConfig, data, provider string) DataFlowResult {
	if len(cfg.AllowedProviders) > 0 && !containsFold(cfg.AllowedProviders, provider) {
		return DataFlowResult{
			Allowed:  false,
			Redacted: data,
			Violations: []Violation{
				{Type: "provider_not_allowed", Severity: "critical", Reason: ProviderNotAllowedReason(provider)},
			},
		}
	}

	matches := sensitive.Scan(data, cfg.RedactionPatterns)
	if len(matches) == 0 {
		return DataFlowResult{Allowed: true, Redacted: data}
	}

	violations := make([]Violation, 0, len(matches))
	for _, m := range matches {
		violations = append(violations, Violation{
			Type:     "data_leakage",
			Severity: "warning",
			Offset:   m.Offset,
		})
	}

	return DataFlowResult{
		Allowed:          true,
		Redacted:         sensitive.Redact(data, cfg.RedactionPatterns),
		Violations:       violations,
		SensitiveMatches: matches,
	}
}

func containsFold(list []string, v string) bool {
	v = strings.ToLower(v)
	for _, item := range list {
		if strings.ToLower(item) == v {
			return true
		}
	}
	return false
}

// ProviderNotAllowedReason formats the standard violation reason string
// ("Provider X is not in the allowed providers list.").
func ProviderNotAllowedReason(provider string) string {
	return fmt.Sprintf("Provider %s is not in the allowed providers list.", provider)
}
