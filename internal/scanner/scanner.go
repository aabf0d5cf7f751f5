package scanner

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// SitePackagesDir locates <envRoot>/lib/python*/site-packages. It returns
// "" if no such directory exists.
func SitePackagesDir(envRoot string) string {
	matches, err := filepath.Glob(filepath.Join(envRoot, "lib", "python*", "site-packages"))
	if err != nil || len(matches) == 0 {
		return ""
	}
	sort.Strings(matches)
	return matches[len(matches)-1]
}

// Scan walks one environment's site-packages and returns a package record
// per .dist-info directory found. A well-formed .dist-info always yields a
// record; malformed entries (unreadable METADATA, missing Name/Version)
// are silently skipped, never fatal. Duplicate normalized names are both
// emitted — detecting duplicates is the dependency checker's job.
func Scan(envRoot string) []Package {
	sitePackages := SitePackagesDir(envRoot)
	if sitePackages == "" {
		return nil
	}

	entries, err := os.ReadDir(sitePackages)
	if err != nil {
		return nil
	}

	var packages []Package
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasSuffix(entry.Name(), ".dist-info") {
			continue
		}
		distInfoPath := filepath.Join(sitePackages, entry.Name())
		pkg, ok := scanDistInfo(distInfoPath)
		if !ok {
			continue
		}
		packages = append(packages, pkg)
	}

	overrideTorchVersion(sitePackages, packages)
	return packages
}

func scanDistInfo(distInfoPath string) (Package, bool) {
	name, version, ok := readMetadata(filepath.Join(distInfoPath, "METADATA"))
	if !ok {
		return Package{}, false
	}

	info, err := os.Stat(distInfoPath)
	var installedAt = info.ModTime()
	_ = err

	pkg := Package{
		Name:          Normalize(name),
		Version:       version,
		Installer:     readSingleLine(filepath.Join(distInfoPath, "INSTALLER")),
		InstallSource: SourcePyPI,
		InstalledAt:   installedAt,
		DistInfoPath:  distInfoPath,
	}

	applyDirectURL(&pkg, filepath.Join(distInfoPath, "direct_url.json"))
	applyTopLevel(&pkg, filepath.Join(distInfoPath, "top_level.txt"))

	return pkg, true
}

// readMetadata extracts Name: and Version: from the METADATA header block,
// stopping at the first blank line.
func readMetadata(path string) (name, version string, ok bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", false
	}
	defer f.Close()

	scan := bufio.NewScanner(f)
	scan.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scan.Scan() {
		line := scan.Text()
		if line == "" {
			break
		}
		switch {
		case strings.HasPrefix(line, "Name:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "Name:"))
		case strings.HasPrefix(line, "Version:"):
			version = strings.TrimSpace(strings.TrimPrefix(line, "Version:"))
		}
	}
	if name == "" || version == "" {
		return "", "", false
	}
	return name, version, true
}

func readSingleLine(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(strings.SplitN(string(data), "\n", 2)[0])
}

type directURL struct {
	URL         string `json:"url"`
	VCSInfo     *struct {
		VCS      string `json:"vcs"`
		CommitID string `json:"commit_id"`
	} `json:"vcs_info"`
	DirInfo *struct {
		Editable bool `json:"editable"`
	} `json:"dir_info"`
}

func applyDirectURL(pkg *Package, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var du directURL
	if err := json.Unmarshal(data, &du); err != nil {
		return
	}

	pkg.SourceURL = du.URL
	switch {
	case du.VCSInfo != nil && du.VCSInfo.VCS == "git":
		pkg.InstallSource = SourceGit
		pkg.CommitID = du.VCSInfo.CommitID
	case strings.HasPrefix(du.URL, "file://"):
		pkg.InstallSource = SourceLocal
	default:
		pkg.InstallSource = SourcePyPI
	}
	if du.DirInfo != nil && du.DirInfo.Editable {
		pkg.Editable = true
	}
}

func applyTopLevel(pkg *Package, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if Normalize(line) != pkg.Name {
			pkg.ImportName = line
		}
		break
	}
}

var torchVersionRe = regexp.MustCompile(`__version__\s*=\s*['"]([^'"]+)['"]`)

// overrideTorchVersion replaces the scanned torch package's version with
// the one baked into torch/version.py, which carries the "+cuNNN" suffix
// the wheel's METADATA lacks.
func overrideTorchVersion(sitePackages string, packages []Package) {
	versionPyPath := filepath.Join(sitePackages, "torch", "version.py")
	data, err := os.ReadFile(versionPyPath)
	if err != nil {
		return
	}
	m := torchVersionRe.FindSubmatch(data)
	if m == nil {
		return
	}
	version := string(m[1])
	for i := range packages {
		if packages[i].Name == "torch" {
			packages[i].Version = version
		}
	}
}
