package registry_test

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vistralis/zen/internal/registry"
	"github.com/vistralis/zen/internal/zenerr"
)

func newTestStore(t *testing.T) *registry.Store {
	t.Helper()
	dir := t.TempDir()
	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	s, err := registry.New(registry.Config{Logger: log, Path: filepath.Join(dir, "zen.duckdb")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func assertNotFound(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	kind, ok := zenerr.KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, zenerr.NotFound, kind)
}
