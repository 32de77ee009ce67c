package outputscan

import (
	"fmt"

	"github.com/openclaw/aasc/pkg/sensitive"
)

// SanitiseResult is the Tool Output Sanitiser's verdict.
type SanitiseResult struct {
	Sanitized         string
	Modified          bool
	InjectionPatterns []string
	HasSensitiveData  bool
}

const securityHeader = "[SECURITY WARNING] This tool output contained prompt-injection markers and has been sanitised:"

// Sanitize scans output for injection markers and sensitive data before it
// re-enters the agent's context. toolName is accepted for parity with the
// spec's signature and future per-tool policy but is not currently
// consulted; extraPatterns augments the sensitive-data scan.
func Sanitize(output string, toolName string, extraPatterns []string) SanitiseResult {
	_ = toolName

	if output == "" {
		return SanitiseResult{Sanitized: output, Modified: false}
	}

	injections := DetectInjection(output)
	sensitiveMatches := sensitive.Scan(output, extraPatterns)
	hasSensitive := len(sensitiveMatches) > 0

	if len(injections) == 0 && !hasSensitive {
		return SanitiseResult{Sanitized: output, Modified: false, HasSensitiveData: false}
	}

	body := output
	if len(injections) > 0 {
		stripped, _ := stripInjectionMarkers(body)
		body = fmt.Sprintf("%s\n<<<TOOL_OUTPUT>>>\n%s\n<<<END_TOOL_OUTPUT>>>", securityHeader, stripped)
	}

	return SanitiseResult{
		Sanitized:         body,
		Modified:          true,
		InjectionPatterns: injections,
		HasSensitiveData:  hasSensitive,
	}
}
