package health_test

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vistralis/zen/internal/health"
	"github.com/vistralis/zen/internal/registry"
	"github.com/vistralis/zen/internal/zenerr"
)

func newStoreForResolver(t *testing.T) *registry.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := registry.New(registry.Config{Logger: slog.Default(), Path: filepath.Join(dir, "zen.duckdb")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func alwaysExists(string) bool { return true }

func TestResolve_NoCandidates(t *testing.T) {
	s := newStoreForResolver(t)
	clock := clockwork.NewFakeClock()
	r := health.NewResolver(s, clock)

	_, err := r.Resolve("/proj", alwaysExists)
	require.Error(t, err)
	kind, ok := zenerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, zenerr.NotFound, kind)
}

func TestResolve_SingleCandidateAutoSelectsAndRecords(t *testing.T) {
	s := newStoreForResolver(t)
	clock := clockwork.NewFakeClock()

	env, err := s.RegisterEnvironment(clock, "env1", "/envs/env1", "3.11")
	require.NoError(t, err)
	_, err = s.AssociateProject(clock, "/proj", env.ID, false, nil)
	require.NoError(t, err)

	r := health.NewResolver(s, clock)
	outcome, err := r.Resolve("/proj", alwaysExists)
	require.NoError(t, err)
	assert.True(t, outcome.AutoSelected)
	require.Len(t, outcome.Candidates, 1)

	link, err := s.RecordActivation(clock, "/proj", env.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, link.ActivationCount)
}

func TestResolve_DownwardWinsOverUpwardOnDuplicateEnvName(t *testing.T) {
	s := newStoreForResolver(t)
	clock := clockwork.NewFakeClock()

	env, err := s.RegisterEnvironment(clock, "env1", "/envs/env1", "3.11")
	require.NoError(t, err)
	_, err = s.AssociateProject(clock, "/work/proj", env.ID, false, nil)
	require.NoError(t, err)
	_, err = s.AssociateProject(clock, "/work/proj/sub", env.ID, false, nil)
	require.NoError(t, err)

	// From /work/proj/sub, /work/proj/sub is found downward and /work/proj
	// upward; both carry env1, so only the downward link survives.
	r := health.NewResolver(s, clock)
	outcome, err := r.Resolve("/work/proj/sub", alwaysExists)
	require.NoError(t, err)
	require.Len(t, outcome.Candidates, 1)
	assert.Equal(t, "/work/proj/sub", outcome.Candidates[0].ProjectPath)
}

func TestResolve_FiltersStaleEnvPaths(t *testing.T) {
	s := newStoreForResolver(t)
	clock := clockwork.NewFakeClock()

	env, err := s.RegisterEnvironment(clock, "env1", "/envs/gone", "3.11")
	require.NoError(t, err)
	_, err = s.AssociateProject(clock, "/proj", env.ID, false, nil)
	require.NoError(t, err)

	r := health.NewResolver(s, clock)
	_, err = r.Resolve("/proj", func(string) bool { return false })
	require.Error(t, err)
	kind, ok := zenerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, zenerr.NotFound, kind)
}

func TestResolve_MultipleCandidatesReturnsRankedListWithoutRecording(t *testing.T) {
	s := newStoreForResolver(t)
	clock := clockwork.NewFakeClock()

	envA, err := s.RegisterEnvironment(clock, "envA", "/envs/a", "3.11")
	require.NoError(t, err)
	envB, err := s.RegisterEnvironment(clock, "envB", "/envs/b", "3.11")
	require.NoError(t, err)

	_, err = s.AssociateProject(clock, "/proj", envA.ID, false, nil)
	require.NoError(t, err)
	_, err = s.AssociateProject(clock, "/proj", envB.ID, true, nil)
	require.NoError(t, err)

	r := health.NewResolver(s, clock)
	outcome, err := r.Resolve("/proj", alwaysExists)
	require.NoError(t, err)
	assert.False(t, outcome.AutoSelected)
	require.Len(t, outcome.Candidates, 2)
	assert.Equal(t, "envB", outcome.Candidates[0].EnvName)
}
