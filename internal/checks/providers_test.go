package checks

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"conductor/internal/artifacts"
	"conductor/internal/gate"
	"conductor/internal/schema"
	"conductor/internal/sessionstore"
)

func sessionStore(t *testing.T) (*sessionstore.Store, error) {
	t.Helper()
	return sessionstore.Open(t.TempDir(), "20250101_10-00_checks", 50)
}

// The output pump goroutines must be joined before any check returns.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testProviders(t *testing.T, commands Commands) (*Providers, *artifacts.Repos) {
	t.Helper()
	store, err := sessionStore(t)
	require.NoError(t, err)
	repos := artifacts.New(store, schema.NewRegistry())
	return NewProviders(repos, t.TempDir(), commands, Timeouts{}), repos
}

// script writes an executable shell script and returns a command line that
// runs it without shell metacharacters.
func script(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "check.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))
	return "sh " + path
}

func checkExpr(src string) *gate.CheckExpr {
	expr, perr := gate.Parse(src)
	if perr != nil {
		panic(perr)
	}
	return expr.(*gate.CheckExpr)
}

func TestTypecheck_PassAndFail(t *testing.T) {
	p, _ := testProviders(t, Commands{Typecheck: "true"})
	res := p.runTypecheck(context.Background(), checkExpr("typecheck"))
	require.True(t, res.Passed)

	p, _ = testProviders(t, Commands{Typecheck: script(t, "echo 'Found 3 errors'; exit 2")})
	res = p.runTypecheck(context.Background(), checkExpr("typecheck"))
	require.False(t, res.Passed)
	require.Equal(t, "3 type errors", res.Message)
}

func TestTests_ReportsCounters(t *testing.T) {
	p, _ := testProviders(t, Commands{Tests: script(t, "echo '12 passed, 0 failed'")})
	res := p.runTests(context.Background(), checkExpr("tests"))
	require.True(t, res.Passed)
	require.Equal(t, 12.0, res.Counters["passed"])

	p, _ = testProviders(t, Commands{Tests: script(t, "echo '7 passed, 2 failed'; exit 1")})
	res = p.runTests(context.Background(), checkExpr("tests"))
	require.False(t, res.Passed)
	require.Equal(t, "7 passed, 2 failed", res.Message)
	require.Equal(t, 2.0, res.Counters["failed"])
}

func TestSubprocess_Timeout(t *testing.T) {
	p, _ := testProviders(t, Commands{Tests: "sleep 5"})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	started := time.Now()
	res := p.runTests(ctx, checkExpr("tests"))
	require.False(t, res.Passed)
	require.Contains(t, res.Message, "timed out")
	require.Less(t, time.Since(started), 3*time.Second)
}

func TestSubprocess_StreamsOutput(t *testing.T) {
	p, _ := testProviders(t, Commands{Lint: script(t, "echo one; echo two")})

	var lines []string
	p.SetStream(func(line string) { lines = append(lines, line) })

	res := p.runLint(context.Background(), checkExpr("lint"))
	require.True(t, res.Passed)
	require.ElementsMatch(t, []string{"one", "two"}, lines)
}

func TestManualOverrideAlwaysPasses(t *testing.T) {
	p, _ := testProviders(t, Commands{})
	res := p.runManualOverride(context.Background(), checkExpr("manual_override"))
	require.True(t, res.Passed)
}

func TestMemoryGlob(t *testing.T) {
	p, repos := testProviders(t, Commands{})
	require.NoError(t, repos.Memories.Write(&schema.LinkedMemory{MemoryName: "auth-flow"}))
	require.NoError(t, repos.Memories.Write(&schema.LinkedMemory{MemoryName: "billing"}))

	res := p.runMemory(context.Background(), checkExpr("memory(auth-*)"))
	require.True(t, res.Passed)

	res = p.runMemory(context.Background(), checkExpr("memory(search-*)"))
	require.False(t, res.Passed)
	require.Contains(t, res.Message, "no memory matches")
}

func TestTraceability(t *testing.T) {
	p, repos := testProviders(t, Commands{})
	require.NoError(t, repos.Memories.Write(&schema.LinkedMemory{
		MemoryName:       "auth-flow",
		TraceabilityData: &schema.TraceabilityData{EntryPoints: []string{"main"}},
	}))

	res := p.runTraceability(context.Background(), checkExpr("traceability(entry_points)"))
	require.True(t, res.Passed)

	res = p.runTraceability(context.Background(), checkExpr("traceability(data_flow_map)"))
	require.False(t, res.Passed)
}

func TestEvidenceExists(t *testing.T) {
	p, repos := testProviders(t, Commands{})
	require.NoError(t, repos.Evidence.Write(&schema.EvidenceChain{ChainID: "t1"}, true))

	res := p.runEvidenceExists(context.Background(), checkExpr("evidence_exists(t1)"))
	require.True(t, res.Passed)

	res = p.runEvidenceExists(context.Background(), checkExpr("evidence_exists(t2)"))
	require.False(t, res.Passed)
}

func TestEvidenceCoverage(t *testing.T) {
	p, repos := testProviders(t, Commands{})

	res := p.runEvidenceCoverage(context.Background(), checkExpr("evidence_coverage(50)"))
	require.False(t, res.Passed)
	require.Equal(t, "no evidence chains", res.Message)

	now := schema.Now()
	full := &schema.EvidenceChain{ChainID: "t1",
		Requirement:    &schema.EvidenceStage{Timestamp: now},
		Analysis:       &schema.EvidenceStage{Timestamp: now},
		Implementation: &schema.EvidenceStage{Timestamp: now},
		Validation:     &schema.EvidenceStage{Timestamp: now},
	}
	require.NoError(t, repos.Evidence.Write(full, true))
	half := &schema.EvidenceChain{ChainID: "t2",
		Analysis: &schema.EvidenceStage{Timestamp: now},
		Validation: &schema.EvidenceStage{Timestamp: now},
	}
	require.NoError(t, repos.Evidence.Write(half, true))

	res = p.runEvidenceCoverage(context.Background(), checkExpr("evidence_coverage(50)"))
	require.True(t, res.Passed)
	require.Equal(t, 75.0, res.Counters["coverage"])
}

func TestRegisterWiresEverything(t *testing.T) {
	p, _ := testProviders(t, Commands{Typecheck: "true", Tests: "true", Lint: "true"})
	reg := gate.NewRegistry()
	p.Register(reg)

	e := gate.NewEvaluator(reg, 10*time.Second)
	result, perr := e.Evaluate(context.Background(), "phase-1", "typecheck AND manual_override")
	require.Nil(t, perr)
	require.True(t, result.Passed)
	require.Len(t, result.Results, 2)
}

func TestEndToEnd_ConditionWithSubprocessTimeout(t *testing.T) {
	// Both subprocess checks sleep well past the total deadline; the whole
	// evaluation must come back quickly with a synthetic timeout atom.
	p, _ := testProviders(t, Commands{Typecheck: "sleep 10", Tests: "sleep 10"})
	reg := gate.NewRegistry()
	p.Register(reg)

	e := gate.NewEvaluator(reg, 1*time.Second)
	started := time.Now()
	result, perr := e.Evaluate(context.Background(), "phase-1", "typecheck AND tests")
	require.Nil(t, perr)
	require.LessOrEqual(t, time.Since(started), 2*time.Second+500*time.Millisecond)

	require.False(t, result.Passed)
	var sawTimeout bool
	for _, r := range result.Results {
		if r.Check == gate.CheckTimeout {
			sawTimeout = true
		}
	}
	require.True(t, sawTimeout)
}
