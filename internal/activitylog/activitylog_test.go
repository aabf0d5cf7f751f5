package activitylog_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vistralis/zen/internal/activitylog"
)

func TestAppend_WritesLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zen.log")
	clock := clockwork.NewFakeClock()

	log, err := activitylog.New(path, clock)
	require.NoError(t, err)

	require.NoError(t, log.Append("cli", "register", "env=myenv path=/envs/myenv"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[cli] register env=myenv path=/envs/myenv")
}

func TestAppend_RotatesPastSizeLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zen.log")
	clock := clockwork.NewFakeClock()

	log, err := activitylog.New(path, clock)
	require.NoError(t, err)

	// Each line is padded well past what's needed to exceed 100kB in a
	// few thousand lines, then rotation should cap the file at 1000 lines.
	padding := strings.Repeat("x", 120)
	for i := 0; i < 2000; i++ {
		require.NoError(t, log.Append("cli", "noop", padding))
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	assert.LessOrEqual(t, len(lines), 1000)
}
