package health

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vistralis/zen/internal/depcheck"
	"github.com/vistralis/zen/internal/scanner"
)

const (
	maxVersionConflictDetails   = 10
	maxMissingDependencyDetails = 5
)

// Scanner is the subset of *scanner.Cache the checker needs, so tests can
// substitute an uncached scan.
type Scanner interface {
	Scan(envRoot string) []scanner.Package
}

type directScanner struct{}

func (directScanner) Scan(envRoot string) []scanner.Package { return scanner.Scan(envRoot) }

// DirectScanner is a Scanner that always re-scans the filesystem.
var DirectScanner Scanner = directScanner{}

// Checker builds health reports for a single environment path.
type Checker struct {
	scan Scanner
}

// NewChecker builds a Checker using scan to read installed packages. Pass
// DirectScanner for an uncached scan, or a *scanner.Cache to memoize.
func NewChecker(scan Scanner) *Checker {
	if scan == nil {
		scan = DirectScanner
	}
	return &Checker{scan: scan}
}

// Check runs the full health algorithm against envPath, as spec'd:
// Python binary probe, site-packages probe, CUDA consistency, and
// dependency check bucketed into conflicts/missing/ok.
func (c *Checker) Check(envName, envPath string) Report {
	report := Report{EnvName: envName}

	pythonDiag, pythonOk := c.checkPython(envPath)
	report.Diagnostics = append(report.Diagnostics, pythonDiag)
	if !pythonOk {
		return report
	}

	sitePackages := scanner.SitePackagesDir(envPath)
	if sitePackages == "" {
		report.Diagnostics = append(report.Diagnostics, diag(SitePackagesMissing, Fail, "no site-packages directory found"))
		return report
	}
	report.Diagnostics = append(report.Diagnostics, diag(SitePackagesOk, Pass, sitePackages))

	packages := c.scan.Scan(envPath)
	report.Diagnostics = append(report.Diagnostics, checkCUDA(packages))

	pythonVersion := depcheck.DetectPythonVersion(envPath)
	issues := depcheck.CheckPackages(packages, pythonVersion)
	report.Diagnostics = append(report.Diagnostics, bucketDependencyIssues(issues)...)

	return report
}

// QuickCheck returns only the overall severity level, short-circuiting on
// a Fail condition without running the dependency check.
func (c *Checker) QuickCheck(envName, envPath string) Severity {
	_, pythonOk := c.checkPython(envPath)
	if !pythonOk {
		return Fail
	}
	if scanner.SitePackagesDir(envPath) == "" {
		return Fail
	}

	packages := c.scan.Scan(envPath)
	max := checkCUDA(packages).Severity()

	pythonVersion := depcheck.DetectPythonVersion(envPath)
	for _, issue := range depcheck.CheckPackages(packages, pythonVersion) {
		if sev := issueSeverity(issue); sev > max {
			max = sev
		}
	}
	return max
}

func (c *Checker) checkPython(envPath string) (Diagnostic, bool) {
	pythonPath := filepath.Join(envPath, "bin", "python")
	info, err := os.Lstat(pythonPath)
	if err != nil {
		return diag(PythonMissing, Fail, "bin/python not found"), false
	}

	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(pythonPath)
		if err != nil {
			return diag(BrokenSymlink, Fail, "bin/python symlink is unreadable"), false
		}
		resolved := target
		if !filepath.IsAbs(target) {
			resolved = filepath.Join(envPath, "bin", target)
		}
		if _, err := os.Stat(resolved); err != nil {
			return diag(BrokenSymlink, Fail, fmt.Sprintf("bin/python -> %s does not resolve", target)), false
		}
	} else if _, err := os.Stat(pythonPath); err != nil {
		return diag(PythonMissing, Fail, "bin/python not found"), false
	}

	version := readPyvenvVersion(envPath)
	return diag(PythonOk, Pass, version), true
}

func readPyvenvVersion(envPath string) string {
	f, err := os.Open(filepath.Join(envPath, "pyvenv.cfg"))
	if err != nil {
		return "unknown"
	}
	defer f.Close()

	scan := bufio.NewScanner(f)
	for scan.Scan() {
		line := scan.Text()
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "version" || key == "version_info" {
			return strings.TrimSpace(value)
		}
	}
	return "unknown"
}

// checkCUDA buckets torch-like "+cuNNN"/"+cpu" local version suffixes: zero
// buckets means no CUDA diagnostic is relevant, one is consistent, two or
// more is either a cpu/cuda conflict or a cuda/cuda mismatch.
func checkCUDA(packages []scanner.Package) Diagnostic {
	buckets := make(map[string][]string)
	for _, pkg := range packages {
		idx := strings.IndexByte(pkg.Version, '+')
		if idx < 0 {
			continue
		}
		suffix := pkg.Version[idx+1:]
		if !strings.HasPrefix(suffix, "cu") && suffix != "cpu" {
			continue
		}
		buckets[suffix] = append(buckets[suffix], pkg.Name)
	}

	switch len(buckets) {
	case 0:
		return diag(CudaConsistent, Pass, "no CUDA-tagged packages present")
	case 1:
		for suffix, names := range buckets {
			return diag(CudaConsistent, Pass, fmt.Sprintf("%s: %s", suffix, strings.Join(names, ", ")))
		}
	}

	hasCPU := false
	cudaVariants := 0
	for suffix := range buckets {
		if suffix == "cpu" {
			hasCPU = true
		} else {
			cudaVariants++
		}
	}

	var parts []string
	for suffix, names := range buckets {
		parts = append(parts, fmt.Sprintf("%s: %s", suffix, strings.Join(names, ", ")))
	}
	detail := strings.Join(parts, "; ")

	if hasCPU && cudaVariants > 0 {
		return diag(CpuCudaConflict, Fail, detail)
	}
	return diag(CudaMismatch, Fail, detail)
}

func issueSeverity(issue depcheck.Issue) Severity {
	if issue.Severity() == depcheck.SeverityWarn {
		return Warn
	}
	return Info
}

func bucketDependencyIssues(issues []depcheck.Issue) []Diagnostic {
	var conflicts, missing []string
	for _, issue := range issues {
		switch issue.Kind {
		case depcheck.Incompatible, depcheck.Duplicate:
			conflicts = append(conflicts, issueDetail(issue))
		case depcheck.Missing:
			missing = append(missing, issueDetail(issue))
		}
	}

	var out []Diagnostic
	if len(conflicts) > 0 {
		out = append(out, diag(VersionConflicts, Warn, capDetails(conflicts, maxVersionConflictDetails)))
	}
	if len(missing) > 0 {
		out = append(out, diag(MissingDependencies, Info, capDetails(missing, maxMissingDependencyDetails)))
	}
	if len(conflicts) == 0 && len(missing) == 0 {
		out = append(out, diag(DependenciesOk, Pass, "no dependency issues found"))
	}
	return out
}

func issueDetail(issue depcheck.Issue) string {
	switch issue.Kind {
	case depcheck.Missing:
		return fmt.Sprintf("%s requires %s (missing)", issue.Package, issue.Requires)
	case depcheck.Incompatible:
		return fmt.Sprintf("%s requires %s, installed %s", issue.Package, issue.Requires, issue.InstalledVersion)
	case depcheck.Duplicate:
		return fmt.Sprintf("%s has %d .dist-info entries", issue.Package, issue.Count)
	default:
		return issue.Package
	}
}

func capDetails(details []string, max int) string {
	if len(details) <= max {
		return strings.Join(details, "; ")
	}
	shown := details[:max]
	return fmt.Sprintf("%s; … and %d more", strings.Join(shown, "; "), len(details)-max)
}
