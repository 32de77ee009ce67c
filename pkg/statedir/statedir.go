// Package statedir resolves the on-disk home for AASC's persisted state:
// auto-approve rules, progression stats, the cost ledger, and traces.
package statedir

import (
	"os"
	"path/filepath"
	"strings"
)

// EnvStateDir overrides the state directory root.
const EnvStateDir = "AASC_STATE_DIR"

// DefaultName is the directory created under the user's home.
const DefaultName = ".openclaw"

// Dir returns the resolved state directory root, expanding ~ and honouring
// EnvStateDir when set.
func Dir() string {
	if dir := strings.TrimSpace(os.Getenv(EnvStateDir)); dir != "" {
		return filepath.Clean(ExpandHome(dir))
	}
	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		return filepath.Join(".", DefaultName)
	}
	return filepath.Join(home, DefaultName)
}

// Path joins name onto the resolved state directory root.
func Path(name string) string {
	return filepath.Join(Dir(), name)
}

// ExpandHome expands a leading "~" or "~/" component against the user's
// home directory; any other path is returned unchanged.
func ExpandHome(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil || strings.TrimSpace(home) == "" {
			return path
		}
		if path == "~" {
			return home
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~/"))
	}
	return path
}
