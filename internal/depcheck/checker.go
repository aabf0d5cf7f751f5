package depcheck

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/vistralis/zen/internal/marker"
	"github.com/vistralis/zen/internal/pep440"
	"github.com/vistralis/zen/internal/scanner"
)

const defaultPythonVersion = "3.12"

var pythonVersionRe = regexp.MustCompile(`python(\d+)\.(\d+)`)

// DetectPythonVersion reads the pythonX.Y path component from an
// environment's site-packages directory, defaulting to 3.12 if the path
// can't be parsed.
func DetectPythonVersion(envRoot string) string {
	sitePackages := scanner.SitePackagesDir(envRoot)
	m := pythonVersionRe.FindStringSubmatch(sitePackages)
	if m == nil {
		return defaultPythonVersion
	}
	return m[1] + "." + m[2]
}

type indexEntry struct {
	version      string
	distInfoPath string
}

// Check scans envRoot once and evaluates every installed distribution's
// Requires-Dist lines against the resulting index, producing issues in
// scan order. The same missing package may be reported multiple times
// with different requirers — that duplication is informative, not
// deduplicated.
func Check(envRoot string) []Issue {
	packages := scanner.Scan(envRoot)
	pythonVersion := DetectPythonVersion(envRoot)
	return CheckPackages(packages, pythonVersion)
}

// CheckPackages evaluates a pre-scanned package list, letting callers
// reuse a scan across multiple operations (e.g. health + dependency check
// in the same invocation).
func CheckPackages(packages []scanner.Package, pythonVersion string) []Issue {
	index := make(map[string]indexEntry, len(packages))
	counts := make(map[string]int, len(packages))

	for _, p := range packages {
		counts[p.Name]++
		// When a name has several .dist-info entries, keep the highest
		// version as ordered by pep440.Compare, so repeated scans of an
		// unchanged tree agree.
		if existing, ok := index[p.Name]; !ok || pep440.Compare(p.Version, existing.version) > 0 {
			index[p.Name] = indexEntry{version: p.Version, distInfoPath: p.DistInfoPath}
		}
	}

	var issues []Issue
	reported := make(map[string]bool, len(counts))
	for _, p := range packages {
		if count := counts[p.Name]; count > 1 && !reported[p.Name] {
			reported[p.Name] = true
			issues = append(issues, Issue{Kind: Duplicate, Package: p.Name, Count: count})
		}
	}

	for _, p := range packages {
		for _, line := range readRequiresDist(p.DistInfoPath) {
			issue, ok := evaluateRequirement(line, index, pythonVersion)
			if ok {
				issues = append(issues, issue)
			}
		}
	}

	return issues
}

// evaluateRequirement evaluates a single Requires-Dist value (without the
// leading "Requires-Dist:" field name) against index.
func evaluateRequirement(req string, index map[string]indexEntry, pythonVersion string) (Issue, bool) {
	req, markerExpr, hasMarker := splitMarker(req)
	if hasMarker {
		if strings.Contains(markerExpr, "extra ==") || strings.Contains(markerExpr, "extra==") {
			return Issue{}, false
		}
		if marker.Excludes(markerExpr, pythonVersion) {
			return Issue{}, false
		}
	}

	if strings.Contains(req, " @ ") {
		// URL/VCS requirement: out-of-index source, not evaluable.
		return Issue{}, false
	}

	name, specifier := splitNameSpecifier(req)
	name = stripExtras(name)
	normalized := scanner.Normalize(name)

	entry, found := index[normalized]
	if !found {
		return Issue{Kind: Missing, Package: normalized, Requires: strings.TrimSpace(req)}, true
	}
	if specifier != "" && !pep440.Satisfies(entry.version, specifier) {
		return Issue{
			Kind:             Incompatible,
			Package:          normalized,
			Requires:         strings.TrimSpace(req),
			InstalledVersion: entry.version,
		}, true
	}
	return Issue{}, false
}

func splitMarker(req string) (clause, markerExpr string, hasMarker bool) {
	idx := strings.Index(req, ";")
	if idx < 0 {
		return strings.TrimSpace(req), "", false
	}
	return strings.TrimSpace(req[:idx]), strings.TrimSpace(req[idx+1:]), true
}

func stripExtras(name string) string {
	if idx := strings.Index(name, "["); idx >= 0 {
		if end := strings.Index(name, "]"); end > idx {
			return strings.TrimSpace(name[:idx])
		}
	}
	return strings.TrimSpace(name)
}

var specifierRe = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9._-]*(?:\s*\[[^\]]*\])?)\s*(.*)$`)

func splitNameSpecifier(req string) (name, specifier string) {
	m := specifierRe.FindStringSubmatch(strings.TrimSpace(req))
	if m == nil {
		return strings.TrimSpace(req), ""
	}
	spec := strings.TrimSpace(m[2])
	spec = strings.Trim(spec, "()")
	return m[1], spec
}

// readRequiresDist reads every Requires-Dist: value from a .dist-info's
// METADATA header block.
func readRequiresDist(distInfoPath string) []string {
	if distInfoPath == "" {
		return nil
	}
	f, err := os.Open(filepath.Join(distInfoPath, "METADATA"))
	if err != nil {
		return nil
	}
	defer f.Close()

	var out []string
	scan := bufio.NewScanner(f)
	scan.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scan.Scan() {
		line := scan.Text()
		if line == "" {
			break
		}
		if strings.HasPrefix(line, "Requires-Dist:") {
			out = append(out, strings.TrimSpace(strings.TrimPrefix(line, "Requires-Dist:")))
		}
	}
	return out
}
