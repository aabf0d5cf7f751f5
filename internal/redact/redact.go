// Package redact shortens filesystem paths before they reach an LLM or a
// log line the user might paste into a bug report.
package redact

import (
	"os"
	"path/filepath"
	"strings"
)

// Path rewrites an absolute path under the user's home directory to
// "~/…/basename", collapsing everything between home and the final
// component. Paths outside home, or when HOME can't be determined, are
// returned as just their basename prefixed with ".../".
func Path(path string) string {
	home, err := os.UserHomeDir()
	base := filepath.Base(path)
	if err != nil || home == "" {
		return ".../" + base
	}
	if path == home {
		return "~"
	}
	if strings.HasPrefix(path, home+string(filepath.Separator)) {
		return "~/…/" + base
	}
	return ".../" + base
}
