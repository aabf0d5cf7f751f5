package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_SetGetListUpsert(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SetConfig("default_python", "3.11"))
	v, err := s.GetConfig("default_python")
	require.NoError(t, err)
	assert.Equal(t, "3.11", v)

	require.NoError(t, s.SetConfig("default_python", "3.12"))
	v, err = s.GetConfig("default_python")
	require.NoError(t, err)
	assert.Equal(t, "3.12", v)

	require.NoError(t, s.SetConfig("installer", "pip"))
	all, err := s.ListConfig()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"default_python": "3.12", "installer": "pip"}, all)
}

func TestGetConfig_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetConfig("missing")
	assertNotFound(t, err)
}
