package installer_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vistralis/zen/internal/installer"
	"github.com/vistralis/zen/internal/zenerr"
)

func TestRun_Success(t *testing.T) {
	d := installer.New("true")
	result, err := d.Run(context.Background(), t.TempDir(), t.TempDir(), []string{"echo", "hi"}, time.Second)
	require.NoError(t, err)
	assert.Contains(t, result.Stdout, "hi")
}

func TestRun_NonZeroExit(t *testing.T) {
	d := installer.New("false")
	_, err := d.Run(context.Background(), t.TempDir(), t.TempDir(), []string{"false"}, time.Second)
	require.Error(t, err)
	kind, ok := zenerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, zenerr.SubprocessError, kind)
}

func TestRun_Timeout(t *testing.T) {
	d := installer.New("sleep")
	_, err := d.Run(context.Background(), t.TempDir(), t.TempDir(), []string{"sleep", "5"}, 10*time.Millisecond)
	require.Error(t, err)
	kind, ok := zenerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, zenerr.SubprocessError, kind)
	assert.Contains(t, err.Error(), "timed out")
}

func TestRun_EmptyCommand(t *testing.T) {
	d := installer.New("pip")
	_, err := d.Run(context.Background(), t.TempDir(), t.TempDir(), nil, time.Second)
	require.Error(t, err)
	kind, ok := zenerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, zenerr.InputInvalid, kind)
}
