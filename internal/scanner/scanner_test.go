package scanner_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vistralis/zen/internal/scanner"
)

func mkEnv(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "lib", "python3.12", "site-packages"), 0o755))
	return root
}

func sitePackages(envRoot string) string {
	return scanner.SitePackagesDir(envRoot)
}

func writeDistInfo(t *testing.T, envRoot, dirName, name, version string) string {
	t.Helper()
	dir := filepath.Join(sitePackages(envRoot), dirName)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	metadata := "Metadata-Version: 2.1\nName: " + name + "\nVersion: " + version + "\n\nlong description\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "METADATA"), []byte(metadata), 0o644))
	return dir
}

func TestScan_MissingSitePackages(t *testing.T) {
	root := t.TempDir()
	require.Empty(t, scanner.Scan(root))
}

func TestScan_BasicPackage(t *testing.T) {
	root := mkEnv(t)
	writeDistInfo(t, root, "foo-1.0.dist-info", "foo", "1.0")

	packages := scanner.Scan(root)
	require.Len(t, packages, 1)
	require.Equal(t, "foo", packages[0].Name)
	require.Equal(t, "1.0", packages[0].Version)
	require.Equal(t, scanner.SourcePyPI, packages[0].InstallSource)
}

func TestScan_NameNormalization(t *testing.T) {
	root := mkEnv(t)
	writeDistInfo(t, root, "My-Package-2.0.dist-info", "My-Package", "2.0")

	packages := scanner.Scan(root)
	require.Len(t, packages, 1)
	require.Equal(t, "my_package", packages[0].Name)
}

func TestScan_MalformedDistInfoSkipped(t *testing.T) {
	root := mkEnv(t)
	dir := filepath.Join(sitePackages(root), "broken-1.0.dist-info")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	// No METADATA file at all.
	require.Empty(t, scanner.Scan(root))
}

func TestScan_TorchCudaSuffix(t *testing.T) {
	root := mkEnv(t)
	writeDistInfo(t, root, "torch-2.10.0.dist-info", "torch", "2.10.0")

	torchDir := filepath.Join(sitePackages(root), "torch")
	require.NoError(t, os.MkdirAll(torchDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(torchDir, "version.py"),
		[]byte("__version__ = '2.10.0+cu130'\ncuda = '13.0'\n"), 0o644))

	packages := scanner.Scan(root)
	require.Len(t, packages, 1)
	require.Equal(t, "torch", packages[0].Name)
	require.Equal(t, "2.10.0+cu130", packages[0].Version)
}

func TestScan_DuplicateDistInfoBothEmitted(t *testing.T) {
	root := mkEnv(t)
	writeDistInfo(t, root, "foo-1.0.dist-info", "foo", "1.0")
	writeDistInfo(t, root, "foo-1.1.dist-info", "foo", "1.1")

	packages := scanner.Scan(root)
	require.Len(t, packages, 2)
}

func TestScan_Determinism(t *testing.T) {
	root := mkEnv(t)
	writeDistInfo(t, root, "foo-1.0.dist-info", "foo", "1.0")
	writeDistInfo(t, root, "bar-2.0.dist-info", "bar", "2.0")

	first := scanner.Scan(root)
	second := scanner.Scan(root)
	require.ElementsMatch(t, first, second)
}

func TestScan_GitSource(t *testing.T) {
	root := mkEnv(t)
	dir := writeDistInfo(t, root, "foo-1.0.dist-info", "foo", "1.0")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "direct_url.json"),
		[]byte(`{"url":"https://github.com/example/foo","vcs_info":{"vcs":"git","commit_id":"abc123"}}`), 0o644))

	packages := scanner.Scan(root)
	require.Len(t, packages, 1)
	require.Equal(t, scanner.SourceGit, packages[0].InstallSource)
	require.Equal(t, "abc123", packages[0].CommitID)
}

func TestScan_EditableLocalSource(t *testing.T) {
	root := mkEnv(t)
	dir := writeDistInfo(t, root, "foo-1.0.dist-info", "foo", "1.0")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "direct_url.json"),
		[]byte(`{"url":"file:///home/dev/foo","dir_info":{"editable":true}}`), 0o644))

	packages := scanner.Scan(root)
	require.Len(t, packages, 1)
	require.True(t, packages[0].Editable)
	require.Equal(t, scanner.SourceLocal, packages[0].InstallSource)
}
