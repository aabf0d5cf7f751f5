package pep440

import "strings"

// Satisfies reports whether installed satisfies specifier, a comma-separated
// list of clauses such as "==1.0" or ">=1,<2". Every non-empty clause must
// hold; an empty specifier always passes. Unknown operators pass (the clause
// is ignored) rather than failing closed — a false negative here is
// preferable to blocking a valid install on a clause this checker can't
// parse.
func Satisfies(installed, specifier string) bool {
	for _, clause := range strings.Split(specifier, ",") {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		if !satisfiesClause(installed, clause) {
			return false
		}
	}
	return true
}

var operators = []string{"~=", "==", "!=", "<=", ">=", "<", ">"}

func satisfiesClause(installed, clause string) bool {
	op, rhs := splitOperator(clause)
	if op == "" {
		// No recognized operator: pass, per spec.
		return true
	}
	rhs = strings.TrimSpace(rhs)
	lhs := strings.TrimSpace(StripLocal(installed))

	switch op {
	case "==":
		if strings.HasSuffix(rhs, ".*") {
			prefix := strings.TrimSuffix(rhs, ".*")
			return strings.HasPrefix(lhs, prefix)
		}
		return Compare(lhs, StripLocal(rhs)) == 0
	case "!=":
		if strings.HasSuffix(rhs, ".*") {
			prefix := strings.TrimSuffix(rhs, ".*")
			return !strings.HasPrefix(lhs, prefix)
		}
		return Compare(lhs, StripLocal(rhs)) != 0
	case "<":
		return Compare(lhs, StripLocal(rhs)) < 0
	case "<=":
		return Compare(lhs, StripLocal(rhs)) <= 0
	case ">":
		return Compare(lhs, StripLocal(rhs)) > 0
	case ">=":
		return Compare(lhs, StripLocal(rhs)) >= 0
	case "~=":
		// Compatible release: >= X.Y and shares the "X." prefix.
		if Compare(lhs, StripLocal(rhs)) < 0 {
			return false
		}
		prefix := compatiblePrefix(StripLocal(rhs))
		return prefix == "" || strings.HasPrefix(lhs, prefix)
	default:
		return true
	}
}

// compatiblePrefix derives the "X." prefix ~= uses from its right-hand side,
// e.g. "2.10" -> "2." so that "2.11.0" matches but "3.0.0" does not.
func compatiblePrefix(rhs string) string {
	parts := strings.Split(rhs, ".")
	if len(parts) < 2 {
		return ""
	}
	return strings.Join(parts[:len(parts)-1], ".") + "."
}

func splitOperator(clause string) (op, rest string) {
	for _, candidate := range operators {
		if strings.HasPrefix(clause, candidate) {
			rest := clause[len(candidate):]
			if strings.HasPrefix(rest, "=") {
				// e.g. "===": not an operator this checker knows.
				return "", clause
			}
			return candidate, rest
		}
	}
	return "", clause
}
