// Package fsboundary enforces the filesystem access boundary every tool
// call must clear before a path-touching tool executes: denied paths
// dominate, then writes must land inside a writable root and reads inside
// a readable root.
package fsboundary

import (
	"os"
	"path/filepath"
	"strings"
)

// Mode is the access mode a tool call is requesting.
type Mode string

const (
	ModeRead  Mode = "read"
	ModeWrite Mode = "write"
)

// Config mirrors the FilesystemBoundaryConfig entity: raw, possibly
// `~`-relative roots as configured by the operator.
type Config struct {
	Readable []string
	Writable []string
	Denied   []string
}

// DefaultConfig returns the default boundary: home readable, the
// AASC state directory writable, and the usual credential directories
// denied regardless of what else is configured.
func DefaultConfig(stateDirName string) Config {
	return Config{
		Readable: []string{"~"},
		Writable: []string{"~/" + stateDirName + "/"},
		Denied: []string{
			"~/.ssh/", "~/.gnupg/", "~/.aws/", "~/.config/gcloud/",
			"~/.docker/", "~/.kube/", "~/.netrc", "~/.npmrc", "~/.pypirc",
		},
	}
}

// Boundary is a Config resolved (home-expanded and absolutised) once at
// construction time, so every check is a cheap path-component comparison.
type Boundary struct {
	readable []string
	writable []string
	denied   []string
}

// New resolves a Config into a Boundary.
func New(cfg Config) *Boundary {
	return &Boundary{
		readable: resolveAll(cfg.Readable),
		writable: resolveAll(cfg.Writable),
		denied:   resolveAll(cfg.Denied),
	}
}

func resolveAll(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if r, ok := resolvePath(p); ok {
			out = append(out, r)
		}
	}
	return out
}

func resolvePath(p string) (string, bool) {
	p = expandHome(p)
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", false
	}
	return filepath.Clean(abs), true
}

func expandHome(p string) string {
	if p == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
		return p
	}
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	return p
}

// Result is the outcome of a checkAccess call.
type Result struct {
	Allowed bool
	Reason  string
}

// CheckAccess evaluates a target path (arbitrary, possibly `~`-relative or
// relative) against the boundary for the requested mode.
func (b *Boundary) CheckAccess(target string, mode Mode) Result {
	resolved, ok := resolvePath(target)
	if !ok {
		return Result{Allowed: false, Reason: "could not resolve target path"}
	}

	for _, d := range b.denied {
		if resolved == d || isPathInside(d, resolved) {
			return Result{Allowed: false, Reason: "path is in a denied location"}
		}
	}

	switch mode {
	case ModeWrite:
		if containsPath(b.writable, resolved) {
			return Result{Allowed: true, Reason: "path is inside a writable boundary"}
		}
		return Result{Allowed: false, Reason: "outside writable boundaries"}
	case ModeRead:
		if containsPath(b.readable, resolved) {
			return Result{Allowed: true, Reason: "path is inside a readable boundary"}
		}
		return Result{Allowed: false, Reason: "outside readable boundaries"}
	default:
		return Result{Allowed: false, Reason: "unknown access mode"}
	}
}

func containsPath(roots []string, resolved string) bool {
	for _, r := range roots {
		if resolved == r || isPathInside(r, resolved) {
			return true
		}
	}
	return false
}

// isPathInside reports whether child is strictly inside parent, comparing
// path components rather than raw string prefixes — "/home/alice/secrets"
// must not be considered inside "/home/alic".
func isPathInside(parent, child string) bool {
	parent = filepath.Clean(parent)
	child = filepath.Clean(child)
	if parent == child {
		return false
	}
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	if rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// ToolMode classifies known tools into a filesystem access mode. Tools not
// in either list return "" (no check performed).
func ToolMode(toolName string) Mode {
	switch toolName {
	case "write", "edit", "apply_patch":
		return ModeWrite
	case "read", "ls", "find", "grep":
		return ModeRead
	default:
		return ""
	}
}

// pathParamKeys is the ordered list of parameter keys ExtractPath probes.
var pathParamKeys = []string{"path", "file_path", "filePath", "directory", "dir"}

// ExtractPath looks up the first known path-shaped key in params, in
// priority order.
func ExtractPath(params map[string]any) (string, bool) {
	for _, key := range pathParamKeys {
		if v, ok := params[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

// Validate runs the full filesystem-boundary check for a tool call: it
// classifies the tool, extracts its path argument, and checks access. It
// returns (nil, nil) when no check applies (unclassified tool, or no path
// argument present) — the caller treats that as "skip this stage."
func (b *Boundary) Validate(toolName string, params map[string]any) *Result {
	mode := ToolMode(toolName)
	if mode == "" {
		return nil
	}
	path, ok := ExtractPath(params)
	if !ok {
		return nil
	}
	res := b.CheckAccess(path, mode)
	return &res
}
