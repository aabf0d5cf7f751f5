package registry_test

import (
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddLabel_IdempotentAndLowercased(t *testing.T) {
	s := newTestStore(t)
	clock := clockwork.NewFakeClock()

	_, err := s.RegisterEnvironment(clock, "env1", "/envs/env1", "3.11")
	require.NoError(t, err)

	require.NoError(t, s.AddLabel(clock, "env1", "GPU"))
	require.NoError(t, s.AddLabel(clock, "env1", "gpu"))

	labels, err := s.ListLabels("env1")
	require.NoError(t, err)
	assert.Equal(t, []string{"gpu"}, labels)
}

func TestRemoveLabel(t *testing.T) {
	s := newTestStore(t)
	clock := clockwork.NewFakeClock()

	_, err := s.RegisterEnvironment(clock, "env1", "/envs/env1", "3.11")
	require.NoError(t, err)
	require.NoError(t, s.AddLabel(clock, "env1", "gpu"))

	require.NoError(t, s.RemoveLabel("env1", "gpu"))

	labels, err := s.ListLabels("env1")
	require.NoError(t, err)
	assert.Empty(t, labels)
}

func TestEnvironmentsWithLabel(t *testing.T) {
	s := newTestStore(t)
	clock := clockwork.NewFakeClock()

	_, err := s.RegisterEnvironment(clock, "env1", "/envs/env1", "3.11")
	require.NoError(t, err)
	_, err = s.RegisterEnvironment(clock, "env2", "/envs/env2", "3.11")
	require.NoError(t, err)

	require.NoError(t, s.AddLabel(clock, "env1", "gpu"))
	require.NoError(t, s.AddLabel(clock, "env2", "cpu"))

	envs, err := s.EnvironmentsWithLabel("gpu")
	require.NoError(t, err)
	assert.Equal(t, []string{"env1"}, envs)
}

func TestLabelsByEnvironment(t *testing.T) {
	s := newTestStore(t)
	clock := clockwork.NewFakeClock()

	_, err := s.RegisterEnvironment(clock, "env1", "/envs/env1", "3.11")
	require.NoError(t, err)
	require.NoError(t, s.AddLabel(clock, "env1", "gpu"))
	require.NoError(t, s.AddLabel(clock, "env1", "prod"))

	grouped, err := s.LabelsByEnvironment()
	require.NoError(t, err)
	assert.Equal(t, []string{"gpu", "prod"}, grouped["env1"])
}
