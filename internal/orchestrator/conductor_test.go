package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"conductor/internal/config"
	"conductor/internal/schema"
)

func testConductor(t *testing.T) *Conductor {
	t.Helper()
	cfg := config.Default()
	cfg.BasePath = t.TempDir()
	cfg.WorkDir = t.TempDir()
	cfg.Checks = config.CheckCommands{Typecheck: "true", Tests: "true", Lint: "true"}
	c, err := NewSession(cfg)
	require.NoError(t, err)
	return c
}

func writeTestPlan(t *testing.T, c *Conductor, gateCondition string) *schema.Plan {
	t.Helper()
	plan := &schema.Plan{
		Name: "pipeline",
		Phases: []schema.Phase{
			{
				ID:   "p1",
				Name: "Analysis",
				Subtasks: []schema.Subtask{
					{ID: "a", AgentType: schema.AgentAnalyst, Prompt: "analyze"},
					{ID: "b", AgentType: schema.AgentDeveloper, Prompt: "build on {result:a}", Dependencies: []string{"a"}},
					{ID: "c", AgentType: schema.AgentBrowser, Prompt: "verify {result:b}", Dependencies: []string{"b"}},
				},
				GateCondition: gateCondition,
			},
			{ID: "p2", Name: "Hardening"},
		},
	}
	require.NoError(t, c.WritePlan(plan))
	return plan
}

func TestEmptyGatePassesAndAdvances(t *testing.T) {
	c := testConductor(t)
	writeTestPlan(t, c, "")

	result, err := c.CheckGate(context.Background(), "p1", "")
	require.NoError(t, err)
	require.True(t, result.Passed)
	require.Empty(t, result.Results)
	require.Empty(t, result.Blockers)

	_, err = c.AdvancePhase(context.Background(), "p1", "")
	require.NoError(t, err)

	st, err := c.ReadState()
	require.NoError(t, err)
	require.Equal(t, "p2", st.CurrentPhase.ID)
	require.Equal(t, "running", st.Status)
}

func TestAdvanceLastPhaseCompletesPlan(t *testing.T) {
	c := testConductor(t)
	writeTestPlan(t, c, "")

	_, err := c.AdvancePhase(context.Background(), "p2", "")
	require.NoError(t, err)

	st, err := c.ReadState()
	require.NoError(t, err)
	require.Equal(t, schema.StatusComplete, st.Status)
	require.Equal(t, schema.StatusComplete, st.CurrentPhase.ID)
}

func TestAdvanceBlockedLeavesStateUntouched(t *testing.T) {
	c := testConductor(t)
	writeTestPlan(t, c, "")

	before, err := c.ReadState()
	require.NoError(t, err)

	// Override forces a failing check regardless of the phase condition.
	result, err := c.AdvancePhase(context.Background(), "p1", "evidence_coverage(50)")
	require.NoError(t, err)
	require.False(t, result.Passed)
	require.NotEmpty(t, result.Blockers)

	after, err := c.ReadState()
	require.NoError(t, err)
	require.Equal(t, before.Status, after.Status)
	require.Nil(t, after.CurrentPhase)

	// The failed gate result is still recorded.
	recorded, err := c.ReadGate("p1")
	require.NoError(t, err)
	require.False(t, recorded.Passed)
}

func TestAdvanceAfterRetryPasses(t *testing.T) {
	c := testConductor(t)
	writeTestPlan(t, c, "evidence_exists(T)")

	result, err := c.AdvancePhase(context.Background(), "p1", "")
	require.NoError(t, err)
	require.False(t, result.Passed)

	// A developer handoff creates the chain; the retry advances.
	require.NoError(t, c.WriteHandoff(devHandoff("T")))

	result, err = c.AdvancePhase(context.Background(), "p1", "")
	require.NoError(t, err)
	require.True(t, result.Passed)

	st, err := c.ReadState()
	require.NoError(t, err)
	require.Equal(t, "p2", st.CurrentPhase.ID)
}

func TestCheckGateParseErrorRunsNothing(t *testing.T) {
	c := testConductor(t)
	writeTestPlan(t, c, "typecheck AND frobnicate")

	_, err := c.CheckGate(context.Background(), "p1", "")
	require.Error(t, err)

	// No gate result is recorded on a parse error.
	_, err = c.ReadGate("p1")
	require.Error(t, err)
}

func devHandoff(taskID string) *schema.Handoff {
	return &schema.Handoff{
		Metadata: schema.HandoffMetadata{
			PlanID:    "plan",
			FromAgent: schema.AgentRef{Type: schema.AgentDeveloper, ID: "dev-1"},
		},
		Reason: schema.ReasonTaskComplete,
		Results: []schema.HandoffResult{
			{TaskID: taskID, Status: schema.ResultCompleted, Summary: "implemented " + taskID},
		},
		State: schema.HandoffState{
			ResumeInstructions: "pick up at the handler",
			TokensUsed:         1500,
		},
	}
}

func TestHandoffWriteAutoLinksEvidence(t *testing.T) {
	c := testConductor(t)

	require.NoError(t, c.WriteHandoff(devHandoff("T")))

	chain, err := c.ReadEvidence("T")
	require.NoError(t, err)
	require.NotNil(t, chain.Implementation)
	require.GreaterOrEqual(t, chain.CoveragePercent, 25.0)
}

func TestExecutePhaseSubstitutesDependencies(t *testing.T) {
	c := testConductor(t)
	writeTestPlan(t, c, "")

	require.NoError(t, c.WriteHandoff(devHandoff("a")))

	pd, err := c.ExecutePhase("p1", 2)
	require.NoError(t, err)
	require.Len(t, pd.Instructions, 3) // a | b | c, one level each

	// b's prompt saw a's handoff; c's dependency has not completed.
	bCmd := pd.Instructions[1].Spawns[0].Command
	require.Contains(t, bCmd, "result taskId=")
	cCmd := pd.Instructions[2].Spawns[0].Command
	require.Contains(t, cCmd, "WARNING: dependency b has not completed")
}

func TestExecutePlanResumeFrom(t *testing.T) {
	c := testConductor(t)
	writeTestPlan(t, c, "")

	all, err := c.ExecutePlan("", 0)
	require.NoError(t, err)
	require.Len(t, all, 2)

	tail, err := c.ExecutePlan("p2", 0)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	require.Equal(t, "p2", tail[0].PhaseID)

	_, err = c.ExecutePlan("p9", 0)
	require.Error(t, err)
}

func TestLinkMemoryWithExtraction(t *testing.T) {
	c := testConductor(t)

	src := filepath.Join(t.TempDir(), "memory.json")
	require.NoError(t, os.WriteFile(src, []byte(`{
  "analyzed_symbols": ["login", "logout"],
  "entry_points": ["main"]
}`), 0644))

	m, err := c.LinkMemory("auth-flow", src, "auth analysis", []schema.AgentType{schema.AgentDeveloper}, true)
	require.NoError(t, err)
	require.NotNil(t, m.TraceabilityData)
	require.Equal(t, []string{"login", "logout"}, m.TraceabilityData.AnalyzedSymbols)

	names, err := c.ListMemories()
	require.NoError(t, err)
	require.Equal(t, []string{"auth-flow"}, names)
}

func TestAgentsRegistry(t *testing.T) {
	c := testConductor(t)

	st := &schema.OrchestratorState{
		Status: "running",
		Agents: []schema.AgentState{
			{ID: "agent-1", Type: schema.AgentDeveloper, TaskID: "a", Status: schema.AgentRunning},
		},
	}
	require.NoError(t, c.WriteState(st))

	agents, err := c.ListAgents()
	require.NoError(t, err)
	require.Len(t, agents, 1)

	require.NoError(t, c.KillAgent("agent-1"))
	agents, err = c.ListAgents()
	require.NoError(t, err)
	require.Equal(t, schema.AgentFailed, agents[0].Status)

	require.Error(t, c.KillAgent("ghost"))
}

func TestSessionStatus(t *testing.T) {
	c := testConductor(t)
	writeTestPlan(t, c, "")
	require.NoError(t, c.WriteHandoff(devHandoff("a")))

	st, err := c.SessionStatus()
	require.NoError(t, err)
	require.Equal(t, c.SessionID(), st.SessionID)
	require.Equal(t, "pipeline", st.PlanName)
	require.Equal(t, 1, st.Handoffs)
	require.Equal(t, 1, st.Evidence)
}

func TestGateObserverStreamsProgress(t *testing.T) {
	c := testConductor(t)
	writeTestPlan(t, c, "manual_override")

	var lines []string
	c.SetObserver(func(line string) { lines = append(lines, line) })

	result, err := c.CheckGate(context.Background(), "p1", "")
	require.NoError(t, err)
	require.True(t, result.Passed)
	require.Contains(t, lines, "Running manual_override...")
}
