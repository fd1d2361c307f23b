package gate

import (
	"fmt"
	"strings"
)

// Expr is a node of a parsed gate expression.
type Expr interface {
	String() string
}

// AndExpr is a left-associative conjunction.
type AndExpr struct {
	Left, Right Expr
}

func (e *AndExpr) String() string {
	return fmt.Sprintf("(%s AND %s)", e.Left, e.Right)
}

// OrExpr is a left-associative disjunction.
type OrExpr struct {
	Left, Right Expr
}

func (e *OrExpr) String() string {
	return fmt.Sprintf("(%s OR %s)", e.Left, e.Right)
}

// NotExpr inverts its operand.
type NotExpr struct {
	Expr Expr
}

func (e *NotExpr) String() string {
	return fmt.Sprintf("NOT %s", e.Expr)
}

// CheckExpr is one leaf check. Name is the canonical lowercase check name.
// Threshold forms carry Field, Op, and Value; Args holds call arguments for
// the function form.
type CheckExpr struct {
	Name  string
	Args  []string
	Field string
	Op    string
	Value float64
}

func (e *CheckExpr) String() string { return e.Label() }

// Label renders the check the way results and progress lines name it.
func (e *CheckExpr) Label() string {
	if e.Field != "" && e.Op != "" {
		name := e.Name
		// The evidence threshold form reads better in its source spelling.
		if name == CheckEvidenceCoverage {
			name = "evidence"
		}
		return fmt.Sprintf("%s[%s] %s %g", name, e.Field, e.Op, e.Value)
	}
	if len(e.Args) > 0 {
		return fmt.Sprintf("%s(%s)", e.Name, strings.Join(e.Args, ","))
	}
	return e.Name
}

// Canonical check names — the closed set the parser accepts.
const (
	CheckTypecheck        = "typecheck"
	CheckTests            = "tests"
	CheckLint             = "lint"
	CheckManualOverride   = "manual_override"
	CheckMemory           = "memory"
	CheckTraceability     = "traceability"
	CheckEvidenceExists   = "evidence_exists"
	CheckEvidenceCoverage = "evidence_coverage"

	// CheckTimeout is the synthetic atom appended when the total deadline
	// expires mid-evaluation. It is never parsed from source.
	CheckTimeout = "timeout"
)
