package health_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vistralis/zen/internal/health"
)

func mkEnv(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "bin", "python"), []byte("#!/bin/sh\n"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "pyvenv.cfg"), []byte("version = 3.11.8\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "lib", "python3.11", "site-packages"), 0o755))
	return root
}

func writeDistInfo(t *testing.T, sitePackages, name, version string) {
	t.Helper()
	dir := filepath.Join(sitePackages, name+"-"+version+".dist-info")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "METADATA"), []byte("Name: "+name+"\nVersion: "+version+"\n\n"), 0o644))
}

func TestCheck_PythonMissing(t *testing.T) {
	root := t.TempDir()
	c := health.NewChecker(nil)
	report := c.Check("env1", root)
	assert.Equal(t, health.Fail, report.OverallSeverity())
	require.Len(t, report.Diagnostics, 1)
	assert.Equal(t, health.PythonMissing, report.Diagnostics[0].Kind)
}

func TestCheck_BrokenSymlink(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "bin"), 0o755))
	require.NoError(t, os.Symlink("/nonexistent/python3", filepath.Join(root, "bin", "python")))

	c := health.NewChecker(nil)
	report := c.Check("env1", root)
	assert.Equal(t, health.Fail, report.OverallSeverity())
	assert.Equal(t, health.BrokenSymlink, report.Diagnostics[0].Kind)
}

func TestCheck_HealthyEnvironmentNoIssues(t *testing.T) {
	root := mkEnv(t)
	c := health.NewChecker(nil)
	report := c.Check("env1", root)

	var kinds []health.DiagnosticKind
	for _, d := range report.Diagnostics {
		kinds = append(kinds, d.Kind)
	}
	assert.Contains(t, kinds, health.PythonOk)
	assert.Contains(t, kinds, health.SitePackagesOk)
	assert.Contains(t, kinds, health.CudaConsistent)
	assert.Contains(t, kinds, health.DependenciesOk)
	assert.Equal(t, health.Pass, report.OverallSeverity())
}

func TestCheck_CpuCudaConflict(t *testing.T) {
	root := mkEnv(t)
	sitePackages := filepath.Join(root, "lib", "python3.11", "site-packages")

	torchDir := filepath.Join(sitePackages, "torch-2.1.0.dist-info")
	require.NoError(t, os.MkdirAll(torchDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(torchDir, "METADATA"), []byte("Name: torch\nVersion: 2.1.0\n\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(sitePackages, "torch"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sitePackages, "torch", "version.py"), []byte(`__version__ = "2.1.0+cu121"`+"\n"), 0o644))

	writeDistInfo(t, sitePackages, "torchvision", "0.16.0+cpu")

	c := health.NewChecker(nil)
	report := c.Check("env1", root)
	assert.Equal(t, health.Fail, report.OverallSeverity())

	var found bool
	for _, d := range report.Diagnostics {
		if d.Kind == health.CpuCudaConflict {
			found = true
		}
	}
	assert.True(t, found)
}

func TestCheck_MissingAndIncompatibleDependenciesBucketed(t *testing.T) {
	root := mkEnv(t)
	sitePackages := filepath.Join(root, "lib", "python3.11", "site-packages")

	dir := filepath.Join(sitePackages, "mypkg-1.0.0.dist-info")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	metadata := "Name: mypkg\nVersion: 1.0.0\nRequires-Dist: numpy (>=2.0)\nRequires-Dist: ghostlib\n\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "METADATA"), []byte(metadata), 0o644))

	writeDistInfo(t, sitePackages, "numpy", "1.26.0")

	c := health.NewChecker(nil)
	report := c.Check("env1", root)

	var kinds []health.DiagnosticKind
	for _, d := range report.Diagnostics {
		kinds = append(kinds, d.Kind)
	}
	assert.Contains(t, kinds, health.VersionConflicts)
	assert.Contains(t, kinds, health.MissingDependencies)
}

func TestQuickCheck_ShortCircuitsOnFail(t *testing.T) {
	root := t.TempDir()
	c := health.NewChecker(nil)
	assert.Equal(t, health.Fail, c.QuickCheck("env1", root))
}
