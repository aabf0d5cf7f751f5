package bulkimport_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vistralis/zen/internal/bulkimport"
)

func mkEnv(t *testing.T, name, pkgName string) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), name)
	sitePackages := filepath.Join(root, "lib", "python3.11", "site-packages")
	require.NoError(t, os.MkdirAll(sitePackages, 0o755))

	distInfo := filepath.Join(sitePackages, pkgName+"-1.0.0.dist-info")
	require.NoError(t, os.MkdirAll(distInfo, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(distInfo, "METADATA"), []byte("Name: "+pkgName+"\nVersion: 1.0.0\n\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(distInfo, "INSTALLER"), []byte("pip\n"), 0o644))
	return root
}

func TestScanAll_ScansEveryPath(t *testing.T) {
	envA := mkEnv(t, "envA", "numpy")
	envB := mkEnv(t, "envB", "torch")

	results, err := bulkimport.ScanAll(context.Background(), []string{envA, envB}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, envA, results[0].EnvRoot)
	require.Len(t, results[0].Packages, 1)
	assert.Equal(t, "numpy", results[0].Packages[0].Name)

	assert.Equal(t, envB, results[1].EnvRoot)
	require.Len(t, results[1].Packages, 1)
	assert.Equal(t, "torch", results[1].Packages[0].Name)
}

func TestScanAll_EmptyInput(t *testing.T) {
	results, err := bulkimport.ScanAll(context.Background(), nil, 4)
	require.NoError(t, err)
	assert.Empty(t, results)
}
