package registry_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddNote_ScopedAndUnscoped(t *testing.T) {
	s := newTestStore(t)
	clock := clockwork.NewFakeClock()

	_, err := s.RegisterEnvironment(clock, "env1", "/envs/env1", "3.11")
	require.NoError(t, err)

	envName := "env1"
	id := uuid.NewString()
	note, err := s.AddNote(clock, id, "/proj", &envName, "broke after upgrade", nil)
	require.NoError(t, err)
	assert.Equal(t, id, note.UUID)
	require.NotNil(t, note.EnvID)

	id2 := uuid.NewString()
	_, err = s.AddNote(clock, id2, "/proj", nil, "generic note", nil)
	require.NoError(t, err)

	all, err := s.ListNotes(nil, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	scoped, err := s.ListNotes(nil, &envName)
	require.NoError(t, err)
	assert.Len(t, scoped, 1)
	assert.Equal(t, id, scoped[0].UUID)
}

func TestRemoveNote_ExactAndPrefix(t *testing.T) {
	s := newTestStore(t)
	clock := clockwork.NewFakeClock()

	id := uuid.NewString()
	_, err := s.AddNote(clock, id, "/proj", nil, "a note", nil)
	require.NoError(t, err)

	prefix := id[:8]
	require.NoError(t, s.RemoveNote(prefix))

	notes, err := s.ListNotes(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestRemoveNote_NotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.RemoveNote("does-not-exist")
	assertNotFound(t, err)
}
