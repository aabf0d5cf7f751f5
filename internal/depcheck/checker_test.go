package depcheck_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vistralis/zen/internal/depcheck"
)

func mkEnv(t *testing.T, pythonVersion string) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "lib", "python"+pythonVersion, "site-packages"), 0o755))
	return root
}

func writeDistInfo(t *testing.T, envRoot, pythonVersion, dirName, metadata string) {
	t.Helper()
	dir := filepath.Join(envRoot, "lib", "python"+pythonVersion, "site-packages", dirName)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "METADATA"), []byte(metadata), 0o644))
}

func TestDetectPythonVersion(t *testing.T) {
	root := mkEnv(t, "3.12")
	require.Equal(t, "3.12", depcheck.DetectPythonVersion(root))
}

func TestDetectPythonVersion_DefaultsWhenUnparseable(t *testing.T) {
	root := t.TempDir()
	require.Equal(t, "3.12", depcheck.DetectPythonVersion(root))
}

func TestCheck_MissingDependencyWithMarkerSkipsWhenExcluded(t *testing.T) {
	root := mkEnv(t, "3.12")
	writeDistInfo(t, root, "3.12", "foo-1.0.dist-info",
		"Metadata-Version: 2.1\nName: foo\nVersion: 1.0\nRequires-Dist: bar>=1; python_version < \"3.9\"\n\n")

	issues := depcheck.Check(root)
	require.Empty(t, issues)
}

func TestCheck_MissingDependencyWithMarkerIncludedUnderOldPython(t *testing.T) {
	root := mkEnv(t, "3.8")
	writeDistInfo(t, root, "3.8", "foo-1.0.dist-info",
		"Metadata-Version: 2.1\nName: foo\nVersion: 1.0\nRequires-Dist: bar>=1; python_version < \"3.9\"\n\n")

	issues := depcheck.Check(root)
	require.Len(t, issues, 1)
	require.Equal(t, depcheck.Missing, issues[0].Kind)
	require.Equal(t, "bar", issues[0].Package)
}

func TestCheck_IncompatibleVersion(t *testing.T) {
	root := mkEnv(t, "3.12")
	writeDistInfo(t, root, "3.12", "numpy-1.26.4.dist-info",
		"Metadata-Version: 2.1\nName: numpy\nVersion: 1.26.4\n\n")
	writeDistInfo(t, root, "3.12", "needsnumpy-1.0.dist-info",
		"Metadata-Version: 2.1\nName: needsnumpy\nVersion: 1.0\nRequires-Dist: numpy>=2,<3\n\n")

	issues := depcheck.Check(root)
	require.Len(t, issues, 1)
	require.Equal(t, depcheck.Incompatible, issues[0].Kind)
	require.Equal(t, "numpy", issues[0].Package)
	require.Equal(t, "numpy>=2,<3", issues[0].Requires)
	require.Equal(t, "1.26.4", issues[0].InstalledVersion)
}

func TestCheck_DuplicateDistInfo(t *testing.T) {
	root := mkEnv(t, "3.12")
	writeDistInfo(t, root, "3.12", "foo-1.0.dist-info",
		"Metadata-Version: 2.1\nName: foo\nVersion: 1.0\n\n")
	writeDistInfo(t, root, "3.12", "foo-1.1.dist-info",
		"Metadata-Version: 2.1\nName: foo\nVersion: 1.1\n\n")

	issues := depcheck.Check(root)
	require.Len(t, issues, 1)
	require.Equal(t, depcheck.Duplicate, issues[0].Kind)
	require.Equal(t, "foo", issues[0].Package)
	require.Equal(t, 2, issues[0].Count)
}

func TestCheck_ExtraMarkerSkipped(t *testing.T) {
	root := mkEnv(t, "3.12")
	writeDistInfo(t, root, "3.12", "foo-1.0.dist-info",
		"Metadata-Version: 2.1\nName: foo\nVersion: 1.0\nRequires-Dist: bar>=1; extra == \"dev\"\n\n")

	issues := depcheck.Check(root)
	require.Empty(t, issues)
}

func TestCheck_URLRequirementSkipped(t *testing.T) {
	root := mkEnv(t, "3.12")
	writeDistInfo(t, root, "3.12", "foo-1.0.dist-info",
		"Metadata-Version: 2.1\nName: foo\nVersion: 1.0\nRequires-Dist: torch @ git+https://github.com/pytorch/pytorch\n\n")

	issues := depcheck.Check(root)
	require.Empty(t, issues)
}

func TestIssue_Severity(t *testing.T) {
	require.Equal(t, depcheck.SeverityInfo, depcheck.Issue{Kind: depcheck.Missing}.Severity())
	require.Equal(t, depcheck.SeverityWarn, depcheck.Issue{Kind: depcheck.Incompatible}.Severity())
	require.Equal(t, depcheck.SeverityWarn, depcheck.Issue{Kind: depcheck.Duplicate}.Severity())
}
