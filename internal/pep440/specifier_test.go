package pep440_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vistralis/zen/internal/pep440"
)

func TestSatisfies(t *testing.T) {
	tests := []struct {
		installed  string
		specifier  string
		wantResult bool
	}{
		{"2.10.0+cu130", "==2.10", true},
		{"3.12.1", ">=3.9,<4", true},
		{"3.12.1", ">=3.9,<3.10", false},
		{"1.26.4", ">=2,<3", false},
		{"2.0.0", "~=2.0", true},
		{"2.1.5", "~=2.0", true},
		{"3.0.0", "~=2.0", false},
		{"1.0.0", "", true},
		{"1.5.0", "==1.*", true},
		{"2.5.0", "==1.*", false},
		{"1.0.0", "!=1.0.0", false},
		{"1.0.0", "===1.0.0", true}, // unknown operator passes
	}
	for _, test := range tests {
		t.Run(test.installed+"_"+test.specifier, func(t *testing.T) {
			require.Equal(t, test.wantResult, pep440.Satisfies(test.installed, test.specifier))
		})
	}
}

func TestSatisfies_Conjunctive(t *testing.T) {
	installed := "3.12.1"
	s1 := ">=3.9"
	s2 := "<4"
	got := pep440.Satisfies(installed, s1+","+s2)
	want := pep440.Satisfies(installed, s1) && pep440.Satisfies(installed, s2)
	require.Equal(t, want, got)
	require.True(t, got)
}
