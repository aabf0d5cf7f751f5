// Package scanner reads installed package metadata directly from
// .dist-info directories on disk — no interpreter, no pip invocation.
package scanner

import "time"

// InstallSource categorizes where a distribution came from.
type InstallSource string

const (
	SourcePyPI  InstallSource = "pypi"
	SourceGit   InstallSource = "git"
	SourceLocal InstallSource = "local"
)

// Package is one installed distribution, scanned transiently — it is never
// persisted, and comparison of its Version always goes through pep440.
type Package struct {
	Name          string // normalized: lowercase, "-" -> "_"
	Version       string // verbatim; may carry a "+local" suffix
	Installer     string
	InstallSource InstallSource
	Editable      bool
	SourceURL     string
	CommitID      string
	ImportName    string // primary import name, if it differs from Name
	InstalledAt   time.Time
	DistInfoPath  string
}

// Normalize lowercases name and turns "-" into "_", the normalization the
// packaging ecosystem uses for distribution names.
func Normalize(name string) string {
	out := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '-' {
			c = '_'
		}
		if c >= 'A' && c <= 'Z' {
			c = c - 'A' + 'a'
		}
		out[i] = c
	}
	return string(out)
}
