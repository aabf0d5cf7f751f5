package registry_test

import (
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vistralis/zen/internal/registry"
)

func TestRegisterEnvironment_CreateAndUpsert(t *testing.T) {
	s := newTestStore(t)
	clock := clockwork.NewFakeClock()

	env, err := s.RegisterEnvironment(clock, "myenv", "/envs/myenv", "3.11")
	require.NoError(t, err)
	assert.Equal(t, "myenv", env.Name)
	assert.Equal(t, "3.11", env.PythonVersion)

	clock.Advance(1)
	updated, err := s.RegisterEnvironment(clock, "myenv", "/envs/myenv-moved", "3.12")
	require.NoError(t, err)
	assert.Equal(t, env.ID, updated.ID)
	assert.Equal(t, "/envs/myenv-moved", updated.Path)
	assert.Equal(t, "3.12", updated.PythonVersion)

	all, err := s.ListEnvironments()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestLookupEnvironment_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.LookupEnvironmentByName("ghost")
	assertNotFound(t, err)

	_, err = s.LookupEnvironmentByID(999)
	assertNotFound(t, err)

	_, err = s.LookupEnvironmentByPath("/nowhere")
	assertNotFound(t, err)
}

func TestDeleteEnvironment(t *testing.T) {
	s := newTestStore(t)
	clock := clockwork.NewFakeClock()

	_, err := s.RegisterEnvironment(clock, "gone", "/envs/gone", "3.11")
	require.NoError(t, err)

	require.NoError(t, s.DeleteEnvironment("gone"))

	err = s.DeleteEnvironment("gone")
	assertNotFound(t, err)
}

func TestSetFavorite(t *testing.T) {
	s := newTestStore(t)
	clock := clockwork.NewFakeClock()

	_, err := s.RegisterEnvironment(clock, "fav", "/envs/fav", "3.11")
	require.NoError(t, err)

	require.NoError(t, s.SetFavorite("fav", true))
	env, err := s.LookupEnvironmentByName("fav")
	require.NoError(t, err)
	assert.True(t, env.IsFavorite)

	require.NoError(t, s.SetFavorite("fav", false))
	env, err = s.LookupEnvironmentByName("fav")
	require.NoError(t, err)
	assert.False(t, env.IsFavorite)
}
