package gate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse_SimpleCheck(t *testing.T) {
	expr, err := Parse("typecheck")
	require.Nil(t, err)
	check, ok := expr.(*CheckExpr)
	require.True(t, ok)
	require.Equal(t, CheckTypecheck, check.Name)
}

func TestParse_CaseInsensitive(t *testing.T) {
	expr, err := Parse("TYPECHECK and Tests OR not LINT")
	require.Nil(t, err)
	or, ok := expr.(*OrExpr)
	require.True(t, ok)
	_, ok = or.Left.(*AndExpr)
	require.True(t, ok)
	not, ok := or.Right.(*NotExpr)
	require.True(t, ok)
	check := not.Expr.(*CheckExpr)
	require.Equal(t, CheckLint, check.Name)
}

func TestParse_Precedence(t *testing.T) {
	// AND binds tighter than OR; NOT tighter than AND.
	expr, err := Parse("manual_override OR typecheck AND NOT tests")
	require.Nil(t, err)
	or := expr.(*OrExpr)
	require.IsType(t, &CheckExpr{}, or.Left)
	and := or.Right.(*AndExpr)
	require.IsType(t, &CheckExpr{}, and.Left)
	require.IsType(t, &NotExpr{}, and.Right)
}

func TestParse_ParensOverride(t *testing.T) {
	expr, err := Parse("(manual_override OR typecheck) AND tests")
	require.Nil(t, err)
	and := expr.(*AndExpr)
	require.IsType(t, &OrExpr{}, and.Left)
}

func TestParse_LeftAssociative(t *testing.T) {
	expr, err := Parse("typecheck AND tests AND lint")
	require.Nil(t, err)
	outer := expr.(*AndExpr)
	inner := outer.Left.(*AndExpr)
	require.Equal(t, CheckTypecheck, inner.Left.(*CheckExpr).Name)
	require.Equal(t, CheckTests, inner.Right.(*CheckExpr).Name)
	require.Equal(t, CheckLint, outer.Right.(*CheckExpr).Name)
}

func TestParse_CallForms(t *testing.T) {
	expr, err := Parse("memory(auth-*)")
	require.Nil(t, err)
	check := expr.(*CheckExpr)
	require.Equal(t, CheckMemory, check.Name)
	require.Equal(t, []string{"auth-*"}, check.Args)

	expr, err = Parse(`memory("auth flow")`)
	require.Nil(t, err)
	require.Equal(t, []string{"auth flow"}, expr.(*CheckExpr).Args)

	expr, err = Parse("traceability(entry_points)")
	require.Nil(t, err)
	require.Equal(t, []string{"entry_points"}, expr.(*CheckExpr).Args)

	expr, err = Parse("evidence_exists(task-42)")
	require.Nil(t, err)
	require.Equal(t, []string{"task-42"}, expr.(*CheckExpr).Args)
}

func TestParse_EvidenceCoverageSugar(t *testing.T) {
	expr, err := Parse("evidence_coverage(75)")
	require.Nil(t, err)
	check := expr.(*CheckExpr)
	require.Equal(t, CheckEvidenceCoverage, check.Name)
	require.Equal(t, "coverage", check.Field)
	require.Equal(t, ">=", check.Op)
	require.Equal(t, 75.0, check.Value)
}

func TestParse_ThresholdForms(t *testing.T) {
	expr, err := Parse("evidence[coverage] >= 80")
	require.Nil(t, err)
	check := expr.(*CheckExpr)
	require.Equal(t, CheckEvidenceCoverage, check.Name)
	require.Equal(t, ">=", check.Op)
	require.Equal(t, 80.0, check.Value)

	expr, err = Parse("tests[passed] > 10")
	require.Nil(t, err)
	check = expr.(*CheckExpr)
	require.Equal(t, CheckTests, check.Name)
	require.Equal(t, "passed", check.Field)
	require.Equal(t, ">", check.Op)
	require.Equal(t, 10.0, check.Value)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"unknown identifier", "frobnicate"},
		{"mismatched paren", "(typecheck AND tests"},
		{"trailing tokens", "typecheck tests"},
		{"dangling operator", "typecheck AND"},
		{"missing args", "memory()"},
		{"non-numeric coverage", "evidence_coverage(lots)"},
		{"threshold on unsupported check", "memory[count] >= 1"},
		{"bad operator", "evidence[coverage] = 50"},
		{"unterminated string", `memory("auth`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			require.NotNil(t, err, "expected parse error for %q", tt.src)
		})
	}
}

func TestCheckLabel(t *testing.T) {
	expr, _ := Parse("tests[passed] >= 5")
	require.Equal(t, "tests[passed] >= 5", expr.(*CheckExpr).Label())

	expr, _ = Parse("evidence[coverage] >= 80")
	require.Equal(t, "evidence[coverage] >= 80", expr.(*CheckExpr).Label())

	expr, _ = Parse("memory(auth-*)")
	require.Equal(t, "memory(auth-*)", expr.(*CheckExpr).Label())
}
