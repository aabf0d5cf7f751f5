package registry_test

import (
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vistralis/zen/internal/registry"
)

func TestAssociateProject_DefaultExclusivity(t *testing.T) {
	s := newTestStore(t)
	clock := clockwork.NewFakeClock()

	envA, err := s.RegisterEnvironment(clock, "envA", "/envs/a", "3.11")
	require.NoError(t, err)
	envB, err := s.RegisterEnvironment(clock, "envB", "/envs/b", "3.11")
	require.NoError(t, err)

	_, err = s.AssociateProject(clock, "/proj", envA.ID, true, nil)
	require.NoError(t, err)

	_, err = s.AssociateProject(clock, "/proj", envB.ID, true, nil)
	require.NoError(t, err)

	links, err := s.ListLinksForPath("/proj")
	require.NoError(t, err)
	require.Len(t, links, 2)

	defaults := 0
	for _, l := range links {
		if l.IsDefault {
			defaults++
		}
	}
	assert.Equal(t, 1, defaults)
}

func TestAssociateProject_Idempotent(t *testing.T) {
	s := newTestStore(t)
	clock := clockwork.NewFakeClock()

	env, err := s.RegisterEnvironment(clock, "env1", "/envs/env1", "3.11")
	require.NoError(t, err)

	_, err = s.AssociateProject(clock, "/proj", env.ID, false, nil)
	require.NoError(t, err)
	_, err = s.AssociateProject(clock, "/proj", env.ID, false, nil)
	require.NoError(t, err)

	links, err := s.ListLinksForPath("/proj")
	require.NoError(t, err)
	assert.Len(t, links, 1)
}

func TestRecordActivation_NeverDowngradesUserLink(t *testing.T) {
	s := newTestStore(t)
	clock := clockwork.NewFakeClock()

	env, err := s.RegisterEnvironment(clock, "env1", "/envs/env1", "3.11")
	require.NoError(t, err)

	_, err = s.AssociateProject(clock, "/proj", env.ID, false, nil)
	require.NoError(t, err)

	link, err := s.RecordActivation(clock, "/proj", env.ID)
	require.NoError(t, err)
	assert.Equal(t, registry.LinkUser, link.LinkType)
	assert.Equal(t, 1, link.ActivationCount)
}

func TestRecordActivation_MonotoneCountAndCreatesActivatedLink(t *testing.T) {
	s := newTestStore(t)
	clock := clockwork.NewFakeClock()

	env, err := s.RegisterEnvironment(clock, "env1", "/envs/env1", "3.11")
	require.NoError(t, err)

	link, err := s.RecordActivation(clock, "/proj/sub", env.ID)
	require.NoError(t, err)
	assert.Equal(t, registry.LinkActivated, link.LinkType)
	assert.Equal(t, 1, link.ActivationCount)

	clock.Advance(1)
	link, err = s.RecordActivation(clock, "/proj/sub", env.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, link.ActivationCount)
	assert.Equal(t, registry.LinkActivated, link.LinkType)
}

// TestActivationResolver_DownwardUpward mirrors the scenario where the
// registry has a user link for /proj and an activated link for /proj/sub.
func TestActivationResolver_DownwardUpward(t *testing.T) {
	s := newTestStore(t)
	clock := clockwork.NewFakeClock()

	envA, err := s.RegisterEnvironment(clock, "envA", "/envs/a", "3.11")
	require.NoError(t, err)
	envB, err := s.RegisterEnvironment(clock, "envB", "/envs/b", "3.11")
	require.NoError(t, err)

	_, err = s.AssociateProject(clock, "/proj", envA.ID, false, nil)
	require.NoError(t, err)
	_, err = s.RecordActivation(clock, "/proj/sub", envB.ID)
	require.NoError(t, err)

	downward, err := s.ListCandidatesUnderPrefix("/proj", 2)
	require.NoError(t, err)
	require.Len(t, downward, 2)
	assert.Equal(t, "/proj/sub", downward[0].ProjectPath)
	assert.Equal(t, "/proj", downward[1].ProjectPath)

	upward, err := s.ListCandidatesForPaths([]string{"/proj/sub", "/proj"})
	require.NoError(t, err)
	require.Len(t, upward, 2)
	assert.Equal(t, "/proj/sub", upward[0].ProjectPath)
}

func TestGetDefaultLink(t *testing.T) {
	s := newTestStore(t)
	clock := clockwork.NewFakeClock()

	env, err := s.RegisterEnvironment(clock, "env1", "/envs/env1", "3.11")
	require.NoError(t, err)
	_, err = s.AssociateProject(clock, "/proj", env.ID, true, nil)
	require.NoError(t, err)

	def, err := s.GetDefaultLink("/proj")
	require.NoError(t, err)
	assert.Equal(t, "env1", def.EnvName)

	_, err = s.GetDefaultLink("/other")
	assertNotFound(t, err)
}

func TestGetLastActivatedAnywhere(t *testing.T) {
	s := newTestStore(t)
	clock := clockwork.NewFakeClock()

	env, err := s.RegisterEnvironment(clock, "env1", "/envs/env1", "3.11")
	require.NoError(t, err)

	_, err = s.GetLastActivatedAnywhere()
	assertNotFound(t, err)

	_, err = s.RecordActivation(clock, "/proj", env.ID)
	require.NoError(t, err)

	last, err := s.GetLastActivatedAnywhere()
	require.NoError(t, err)
	assert.Equal(t, "/proj", last.ProjectPath)
}

func TestPruneDanglingLinks(t *testing.T) {
	s := newTestStore(t)
	clock := clockwork.NewFakeClock()

	env, err := s.RegisterEnvironment(clock, "env1", "/envs/env1", "3.11")
	require.NoError(t, err)
	_, err = s.AssociateProject(clock, "/proj/gone", env.ID, false, nil)
	require.NoError(t, err)
	_, err = s.AssociateProject(clock, "/proj/stays", env.ID, false, nil)
	require.NoError(t, err)

	removed, err := s.PruneDanglingLinks(func(path string) bool {
		return path == "/proj/stays"
	})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	links, err := s.ListCandidatesForPaths([]string{"/proj/gone", "/proj/stays"})
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "/proj/stays", links[0].ProjectPath)
}

func TestRemoveActivatedLinks_LeavesUserLinks(t *testing.T) {
	s := newTestStore(t)
	clock := clockwork.NewFakeClock()

	env, err := s.RegisterEnvironment(clock, "env1", "/envs/env1", "3.11")
	require.NoError(t, err)
	_, err = s.AssociateProject(clock, "/proj/user", env.ID, false, nil)
	require.NoError(t, err)
	_, err = s.RecordActivation(clock, "/proj/auto", env.ID)
	require.NoError(t, err)

	n, err := s.RemoveActivatedLinks()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	links, err := s.ListCandidatesForPaths([]string{"/proj/user", "/proj/auto"})
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "/proj/user", links[0].ProjectPath)
}

func TestRemoveAllLinksForPath(t *testing.T) {
	s := newTestStore(t)
	clock := clockwork.NewFakeClock()

	env, err := s.RegisterEnvironment(clock, "env1", "/envs/env1", "3.11")
	require.NoError(t, err)
	_, err = s.AssociateProject(clock, "/proj", env.ID, false, nil)
	require.NoError(t, err)

	n, err := s.RemoveAllLinksForPath("/proj")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	links, err := s.ListLinksForPath("/proj")
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestResetActivationHistory(t *testing.T) {
	s := newTestStore(t)
	clock := clockwork.NewFakeClock()

	env, err := s.RegisterEnvironment(clock, "env1", "/envs/env1", "3.11")
	require.NoError(t, err)
	_, err = s.RecordActivation(clock, "/proj", env.ID)
	require.NoError(t, err)

	require.NoError(t, s.ResetActivationHistory(0))

	links, err := s.ListLinksForPath("/proj")
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, 0, links[0].ActivationCount)
	assert.Nil(t, links[0].LastActivatedAt)
}
