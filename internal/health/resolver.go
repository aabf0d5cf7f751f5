package health

import (
	"os"
	"path/filepath"

	"github.com/jonboulle/clockwork"

	"github.com/vistralis/zen/internal/registry"
	"github.com/vistralis/zen/internal/zenerr"
)

const (
	downwardMaxDepth = 2
	upwardMaxLevels  = 2
)

// LinkStore is the subset of *registry.Store the resolver needs.
type LinkStore interface {
	ListCandidatesUnderPrefix(prefix string, maxDepth int) ([]registry.ProjectLinkCandidate, error)
	ListCandidatesForPaths(paths []string) ([]registry.ProjectLinkCandidate, error)
	RecordActivation(clock clockwork.Clock, projectPath string, envID int64) (registry.ProjectLink, error)
}

// Resolver answers "which environment should be activated for this
// directory?" using a bidirectional search over project links.
type Resolver struct {
	store LinkStore
	clock clockwork.Clock
}

// NewResolver builds a Resolver over store, using clock for activation
// timestamps.
func NewResolver(store LinkStore, clock clockwork.Clock) *Resolver {
	return &Resolver{store: store, clock: clock}
}

// Outcome is the resolver's result for one directory.
type Outcome struct {
	// Candidates is the ranked list of matches. Empty means no links
	// exist for this directory.
	Candidates []registry.ProjectLinkCandidate
	// AutoSelected is true when exactly one candidate existed and its
	// activation was already recorded.
	AutoSelected bool
}

// Resolve runs the downward/upward search over cwd (already expected to be
// canonicalized by the caller), merges and ranks candidates, and — when
// there is exactly one — records its activation against cwd.
func (r *Resolver) Resolve(cwd string, envExists func(envPath string) bool) (Outcome, error) {
	downward, err := r.store.ListCandidatesUnderPrefix(cwd, downwardMaxDepth)
	if err != nil {
		return Outcome{}, err
	}

	ancestors := ancestorPaths(cwd, upwardMaxLevels)
	var upward []registry.ProjectLinkCandidate
	if len(ancestors) > 0 {
		upward, err = r.store.ListCandidatesForPaths(ancestors)
		if err != nil {
			return Outcome{}, err
		}
	}

	merged := mergeDedupeByEnvName(downward, upward)

	var live []registry.ProjectLinkCandidate
	for _, c := range merged {
		if envExists == nil || envExists(c.EnvPath) {
			live = append(live, c)
		}
	}

	switch len(live) {
	case 0:
		return Outcome{}, zenerr.New(zenerr.NotFound, "no links for this directory")
	case 1:
		if _, err := r.store.RecordActivation(r.clock, cwd, live[0].EnvID); err != nil {
			return Outcome{}, err
		}
		return Outcome{Candidates: live, AutoSelected: true}, nil
	default:
		return Outcome{Candidates: live}, nil
	}
}

// RecordSelection records the user's explicit choice among N candidates,
// always crediting the canonicalized cwd rather than the matched link's
// own project_path.
func (r *Resolver) RecordSelection(cwd string, envID int64) (registry.ProjectLink, error) {
	return r.store.RecordActivation(r.clock, cwd, envID)
}

// ancestorPaths walks up to levels ancestor directories above path,
// stopping at the user's home directory, at "/", and never returning an
// umbrella directory that is an immediate child of "/" or of home.
func ancestorPaths(path string, levels int) []string {
	home, _ := os.UserHomeDir()
	var out []string

	current := path
	for i := 0; i < levels; i++ {
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		if parent == "/" || (home != "" && parent == home) {
			break
		}
		if isUmbrellaDir(parent, home) {
			break
		}
		out = append(out, parent)
		current = parent
	}
	return out
}

// isUmbrellaDir reports whether dir is an immediate child of "/" or of
// home — directories like /home, /Users, or one directly under $HOME are
// never projects in their own right. $HOME itself is stopped at by
// ancestorPaths, not here.
func isUmbrellaDir(dir, home string) bool {
	if filepath.Dir(dir) == "/" {
		return true
	}
	if home != "" && filepath.Dir(dir) == home {
		return true
	}
	return false
}

// mergeDedupeByEnvName concatenates downward then upward candidates,
// keeping the first occurrence of each environment name (downward wins).
func mergeDedupeByEnvName(downward, upward []registry.ProjectLinkCandidate) []registry.ProjectLinkCandidate {
	seen := make(map[string]bool)
	var out []registry.ProjectLinkCandidate
	for _, c := range append(append([]registry.ProjectLinkCandidate{}, downward...), upward...) {
		if seen[c.EnvName] {
			continue
		}
		seen[c.EnvName] = true
		out = append(out, c)
	}
	return out
}
