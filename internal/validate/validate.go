// Package validate checks the user-facing identifiers Zen accepts before
// they reach the registry or the filesystem: environment/template names,
// Python versions, and CUDA versions.
package validate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vistralis/zen/internal/zenerr"
)

const maxNameLength = 128

var forbiddenNameChars = []rune{';', '|', '&', '$', '`', '(', ')', '<', '>', '"', '\'', '\n', '\r', 0}

// Name validates an environment or template name, returning a
// zenerr.InputInvalid error describing the first violated rule. kind is
// used only in the error message ("Environment", "Template", ...).
func Name(name, kind string) error {
	trimmed := strings.TrimSpace(name)

	if trimmed == "" {
		return zenerr.New(zenerr.InputInvalid, fmt.Sprintf("%s name cannot be empty", kind))
	}
	if len(trimmed) > maxNameLength {
		return zenerr.New(zenerr.InputInvalid, fmt.Sprintf("%s name is too long (max %d characters)", kind, maxNameLength))
	}
	if strings.ContainsAny(trimmed, "/\\") || strings.Contains(trimmed, "..") {
		return zenerr.New(zenerr.InputInvalid, fmt.Sprintf("%s name cannot contain path characters", kind))
	}
	for _, c := range forbiddenNameChars {
		if strings.ContainsRune(trimmed, c) {
			return zenerr.New(zenerr.InputInvalid, fmt.Sprintf("%s name contains invalid characters", kind))
		}
	}
	if strings.HasPrefix(trimmed, ".") {
		return zenerr.New(zenerr.InputInvalid, fmt.Sprintf("%s name cannot start with a dot", kind))
	}
	return nil
}

// PythonVersion validates formats like "3.12", "3.11.4", "3".
func PythonVersion(version string) error {
	parts := strings.Split(version, ".")
	if len(parts) == 0 || len(parts) > 3 {
		return zenerr.New(zenerr.InputInvalid, "invalid Python version format (use X.Y or X.Y.Z)")
	}
	for _, part := range parts {
		if _, err := strconv.ParseUint(part, 10, 32); err != nil {
			return zenerr.New(zenerr.InputInvalid, fmt.Sprintf("invalid Python version component: %s", part))
		}
	}
	return nil
}

// CUDAVersion validates formats like "12.6", "13.0", "11.8".
func CUDAVersion(version string) error {
	parts := strings.Split(version, ".")
	if len(parts) != 2 {
		return zenerr.New(zenerr.InputInvalid, "invalid CUDA version format (use X.Y, e.g. 12.6)")
	}
	major, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return zenerr.New(zenerr.InputInvalid, "invalid CUDA major version")
	}
	minor, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return zenerr.New(zenerr.InputInvalid, "invalid CUDA minor version")
	}
	if major < 10 || major > 15 {
		return zenerr.New(zenerr.InputInvalid, fmt.Sprintf("unsupported CUDA major version: %d (expected 10-15)", major))
	}
	if minor > 9 {
		return zenerr.New(zenerr.InputInvalid, fmt.Sprintf("invalid CUDA minor version: %d", minor))
	}
	return nil
}
