package marker_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vistralis/zen/internal/marker"
)

func TestExcludes(t *testing.T) {
	tests := []struct {
		name          string
		marker        string
		pythonVersion string
		want          bool
	}{
		{"below python excludes in 3.12", `python_version < "3.9"`, "3.12.1", true},
		{"below python included in 3.8", `python_version < "3.9"`, "3.8.0", false},
		{"extra always excludes", `extra == "dev"`, "3.12.1", true},
		{"sys_platform never excludes", `sys_platform == "darwin"`, "3.12.1", false},
		{"conjunction both true", `python_version >= "3.9" and python_version < "4"`, "3.12.1", false},
		{"conjunction one false excludes", `python_version >= "3.9" and python_version < "3.10"`, "3.12.1", true},
		{"disjunction one true", `python_version < "3.9" or python_version >= "3.10"`, "3.12.1", false},
		{"disjunction both false excludes", `python_version < "3.9" or python_version >= "4"`, "3.12.1", true},
		{"unparseable marker never excludes", `platform_release == "5.4.0"`, "3.12.1", false},
		{"empty marker never excludes", ``, "3.12.1", false},
		{"parenthesized", `(python_version < "3.9")`, "3.12.1", true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.want, marker.Excludes(test.marker, test.pythonVersion))
		})
	}
}

func TestExcludes_MonotoneInUnknowns(t *testing.T) {
	unparseable := []string{
		`platform_release == "5.4.0"`,
		`some_future_marker_variable >= "1"`,
		``,
	}
	for _, m := range unparseable {
		require.False(t, marker.Excludes(m, "3.12.1"), "unparseable marker %q must not exclude", m)
	}
}
