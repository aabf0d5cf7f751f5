// Package marker evaluates the PEP 508 environment-marker expression that
// can follow a ";" in a Requires-Dist line, deciding whether the
// requirement should be excluded from the current environment.
package marker

import (
	"strings"

	"github.com/vistralis/zen/internal/pep440"
)

var versionOps = []string{"~=", "==", "!=", "<=", ">=", "<", ">"}

// Excludes reports whether marker excludes the requirement from an
// environment running the given Python version (e.g. "3.12.1"). A marker
// this evaluator cannot parse never excludes — false negatives are
// preferred over false positives when surfacing dependency conflicts.
func Excludes(marker, pythonVersion string) bool {
	marker = strings.TrimSpace(marker)
	if marker == "" {
		return false
	}
	ok, matched := evalExpr(marker, pythonVersion)
	if !matched {
		return false
	}
	return !ok
}

// evalExpr evaluates marker as a boolean expression of "and"/"or"-joined
// clauses, stripping a single layer of enclosing parentheses. matched is
// false if no clause in the expression could be parsed at all, signalling
// the caller to default to "do not exclude".
func evalExpr(expr, pythonVersion string) (result bool, matched bool) {
	expr = strings.TrimSpace(expr)
	expr = stripParens(expr)

	if ors := splitTopLevel(expr, " or "); len(ors) > 1 {
		anyMatched := false
		for _, part := range ors {
			r, m := evalExpr(part, pythonVersion)
			if m {
				anyMatched = true
			}
			if r {
				return true, true
			}
		}
		return false, anyMatched
	}

	if ands := splitTopLevel(expr, " and "); len(ands) > 1 {
		allMatched := true
		for _, part := range ands {
			r, m := evalExpr(part, pythonVersion)
			if !m {
				allMatched = false
				continue
			}
			if !r {
				return false, true
			}
		}
		return true, allMatched
	}

	return evalClause(expr, pythonVersion)
}

// stripParens removes one layer of enclosing "(" ")" if the whole
// expression is wrapped.
func stripParens(expr string) string {
	expr = strings.TrimSpace(expr)
	if len(expr) < 2 || expr[0] != '(' || expr[len(expr)-1] != ')' {
		return expr
	}
	depth := 0
	for i, r := range expr {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && i != len(expr)-1 {
				return expr
			}
		}
	}
	return strings.TrimSpace(expr[1 : len(expr)-1])
}

// splitTopLevel splits expr on sep, ignoring occurrences inside parentheses.
func splitTopLevel(expr, sep string) []string {
	depth := 0
	var parts []string
	last := 0
	for i := 0; i+len(sep) <= len(expr); i++ {
		switch expr[i] {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth == 0 && strings.EqualFold(expr[i:i+len(sep)], sep) {
			parts = append(parts, expr[last:i])
			last = i + len(sep)
			i += len(sep) - 1
		}
	}
	parts = append(parts, expr[last:])
	return parts
}

// evalClause evaluates a single marker clause such as
// `python_version < "3.9"` or `extra == "dev"`.
func evalClause(clause, pythonVersion string) (result bool, matched bool) {
	clause = strings.TrimSpace(clause)

	switch {
	case strings.HasPrefix(clause, "extra"):
		// Extras are never auto-installed: this clause always excludes.
		return false, true
	case strings.HasPrefix(clause, "python_full_version") || strings.HasPrefix(clause, "python_version"):
		return evalVersionClause(clause, pythonVersion)
	case hostAlwaysMatchesVariable(clause):
		// sys_platform, platform_system, os_name, implementation_name,
		// platform_machine: treated as "matches current host".
		return true, true
	default:
		return false, false
	}
}

var hostVariables = []string{
	"sys_platform",
	"platform_system",
	"os_name",
	"implementation_name",
	"platform_machine",
}

func hostAlwaysMatchesVariable(clause string) bool {
	for _, v := range hostVariables {
		if strings.HasPrefix(clause, v) {
			return true
		}
	}
	return false
}

func evalVersionClause(clause, pythonVersion string) (result bool, matched bool) {
	for _, op := range versionOps {
		idx := strings.Index(clause, op)
		if idx < 0 {
			continue
		}
		rhs := strings.TrimSpace(clause[idx+len(op):])
		rhs = strings.Trim(rhs, `"'`)
		switch op {
		case "==":
			return pep440.Compare(pythonVersion, rhs) == 0, true
		case "!=":
			return pep440.Compare(pythonVersion, rhs) != 0, true
		case "<":
			return pep440.Compare(pythonVersion, rhs) < 0, true
		case "<=":
			return pep440.Compare(pythonVersion, rhs) <= 0, true
		case ">":
			return pep440.Compare(pythonVersion, rhs) > 0, true
		case ">=":
			return pep440.Compare(pythonVersion, rhs) >= 0, true
		}
	}
	return false, false
}
