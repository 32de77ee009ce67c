package config

// mergeConfigs merges override onto base, field by field. raw is the same
// YAML document decoded into a generic map so boolFieldSet can tell "the
// operator set this to its zero value" apart from "the operator didn't
// mention this key at all" — a plain zero-value check can't make that
// distinction for bools, and would otherwise silently drop an explicit
// `enabled: false`.
func mergeConfigs(base, override *Config, raw map[string]any) {
	if override == nil {
		return
	}

	if override.Autonomy.Level != "" {
		base.Autonomy.Level = override.Autonomy.Level
	}
	if override.Autonomy.ConfidenceThreshold != 0 {
		base.Autonomy.ConfidenceThreshold = override.Autonomy.ConfidenceThreshold
	}
	if override.Autonomy.ApprovalTimeoutMs != 0 {
		base.Autonomy.ApprovalTimeoutMs = override.Autonomy.ApprovalTimeoutMs
	}
	if boolFieldSet(raw, "autonomy", "progression", "enabled") {
		base.Autonomy.Progression.Enabled = override.Autonomy.Progression.Enabled
	}
	if override.Autonomy.Progression.MinApprovals != 0 {
		base.Autonomy.Progression.MinApprovals = override.Autonomy.Progression.MinApprovals
	}
	if override.Autonomy.Progression.MinApprovalRate != 0 {
		base.Autonomy.Progression.MinApprovalRate = override.Autonomy.Progression.MinApprovalRate
	}
	if override.Autonomy.Progression.CooldownDays != 0 {
		base.Autonomy.Progression.CooldownDays = override.Autonomy.Progression.CooldownDays
	}
	if override.Autonomy.RateLimit.PerAgentPerMinute != 0 {
		base.Autonomy.RateLimit.PerAgentPerMinute = override.Autonomy.RateLimit.PerAgentPerMinute
	}

	if boolFieldSet(raw, "security", "filesystem", "readable") {
		base.Security.Filesystem.Readable = append([]string{}, override.Security.Filesystem.Readable...)
	}
	if boolFieldSet(raw, "security", "filesystem", "writable") {
		base.Security.Filesystem.Writable = append([]string{}, override.Security.Filesystem.Writable...)
	}
	if boolFieldSet(raw, "security", "filesystem", "denied") {
		base.Security.Filesystem.Denied = append([]string{}, override.Security.Filesystem.Denied...)
	}
	if boolFieldSet(raw, "security", "dataFlow", "allowedProviders") {
		base.Security.DataFlow.AllowedProviders = append([]string{}, override.Security.DataFlow.AllowedProviders...)
	}
	if boolFieldSet(raw, "security", "dataFlow", "redactionPatterns") {
		base.Security.DataFlow.RedactionPatterns = append([]string{}, override.Security.DataFlow.RedactionPatterns...)
	}
	if boolFieldSet(raw, "security", "sensitivePatterns") {
		base.Security.SensitivePatterns = append([]string{}, override.Security.SensitivePatterns...)
	}
	if boolFieldSet(raw, "security", "outputScanning", "enabled") {
		base.Security.OutputScanning.Enabled = override.Security.OutputScanning.Enabled
	}
	if boolFieldSet(raw, "security", "outputScanning", "systemPromptFragments") {
		base.Security.OutputScanning.SystemPromptFragments = append([]string{}, override.Security.OutputScanning.SystemPromptFragments...)
	}

	if boolFieldSet(raw, "diagnostics", "reasoningTrace", "enabled") {
		base.Diagnostics.ReasoningTrace.Enabled = override.Diagnostics.ReasoningTrace.Enabled
	}
	if override.Diagnostics.ReasoningTrace.BaseDir != "" {
		base.Diagnostics.ReasoningTrace.BaseDir = override.Diagnostics.ReasoningTrace.BaseDir
	}
	if boolFieldSet(raw, "diagnostics", "reasoningTrace", "includeReasoning") {
		base.Diagnostics.ReasoningTrace.IncludeReasoning = override.Diagnostics.ReasoningTrace.IncludeReasoning
	}
	if override.Diagnostics.ReasoningTrace.MaxResultLength != 0 {
		base.Diagnostics.ReasoningTrace.MaxResultLength = override.Diagnostics.ReasoningTrace.MaxResultLength
	}
	if boolFieldSet(raw, "diagnostics", "httpQuery", "enabled") {
		base.Diagnostics.HTTPQuery.Enabled = override.Diagnostics.HTTPQuery.Enabled
	}
	if override.Diagnostics.HTTPQuery.Addr != "" {
		base.Diagnostics.HTTPQuery.Addr = override.Diagnostics.HTTPQuery.Addr
	}

	if override.Bus.Driver != "" {
		base.Bus.Driver = override.Bus.Driver
	}
	if override.Bus.NatsURL != "" {
		base.Bus.NatsURL = override.Bus.NatsURL
	}

	if override.Cost.DBPath != "" {
		base.Cost.DBPath = override.Cost.DBPath
	}
	if override.Cost.Budgets.Session != 0 {
		base.Cost.Budgets.Session = override.Cost.Budgets.Session
	}
	if override.Cost.Budgets.Daily != 0 {
		base.Cost.Budgets.Daily = override.Cost.Budgets.Daily
	}
	if override.Cost.Budgets.Monthly != 0 {
		base.Cost.Budgets.Monthly = override.Cost.Budgets.Monthly
	}
	if boolFieldSet(raw, "cost", "budgets", "autoStopAt") {
		base.Cost.Budgets.AutoStopAt = override.Cost.Budgets.AutoStopAt
	}
}

func boolFieldSet(raw map[string]any, path ...string) bool {
	if len(path) == 0 || raw == nil {
		return false
	}
	current := any(raw)
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return false
		}
		val, ok := m[key]
		if !ok {
			return false
		}
		current = val
	}
	return true
}
