package dispatch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"conductor/internal/scheduler"
	"conductor/internal/schema"
)

func depHandoff(taskID string) *schema.Handoff {
	return &schema.Handoff{
		ID: schema.NewID(),
		Metadata: schema.HandoffMetadata{
			SessionID: "s",
			PlanID:    "p",
			FromAgent: schema.AgentRef{Type: schema.AgentAnalyst, ID: "analyst-1"},
			Timestamp: schema.Now(),
			Version:   "1.0",
		},
		Reason: schema.ReasonTaskComplete,
		Results: []schema.HandoffResult{
			{TaskID: taskID, Status: schema.ResultCompleted, Summary: "analyzed the auth flow", Output: "3 entry points"},
		},
		State: schema.HandoffState{
			CriticalContext:    []string{"session tokens rotate hourly"},
			ResumeInstructions: "start from the login handler",
			FilesModified:      []string{"auth/login.go"},
		},
	}
}

func TestAggregateResults(t *testing.T) {
	h := depHandoff("a")
	agg := AggregateResults([]TaskResult{
		{TaskID: "a", Completed: true, TokensUsed: 1200, Handoff: h},
		{TaskID: "b", Completed: true, TokensUsed: 800},
		{TaskID: "c", Completed: false, Err: "runner crashed"},
	})

	require.Equal(t, []string{"a", "b"}, agg.CompletedTasks)
	require.Equal(t, h, agg.Handoffs["a"])
	require.Equal(t, 2000, agg.TotalTokensUsed)
	require.Equal(t, []string{"c: runner crashed"}, agg.Errors)
}

func TestSubstituteResults_HandoffBlock(t *testing.T) {
	agg := AggregateResults([]TaskResult{
		{TaskID: "a", Completed: true, Handoff: depHandoff("a")},
	})

	out := SubstituteResults("Use this: {result:a}", agg)
	require.Contains(t, out, `<result taskId="a">`)
	require.Contains(t, out, "Summary: analyzed the auth flow")
	require.Contains(t, out, "Output: 3 entry points")
	require.Contains(t, out, "session tokens rotate hourly")
	require.Contains(t, out, "Resume instructions: start from the login handler")
	require.Contains(t, out, "auth/login.go")
	require.Contains(t, out, "</result>")
	require.NotContains(t, out, "{result:a}")
}

func TestSubstituteResults_CompletedWithoutHandoff(t *testing.T) {
	agg := AggregateResults([]TaskResult{{TaskID: "a", Completed: true}})
	out := SubstituteResults("{result:a}", agg)
	require.Equal(t, "[task a completed, no handoff available]", out)
}

func TestSubstituteResults_IncompleteDependencyWarns(t *testing.T) {
	out := SubstituteResults("{result:ghost}", AggregateResults(nil))
	require.Equal(t, "[WARNING: dependency ghost has not completed]", out)
}

func TestSubstituteResults_MultiplePlaceholders(t *testing.T) {
	agg := AggregateResults([]TaskResult{{TaskID: "a", Completed: true}})
	out := SubstituteResults("{result:a} then {result:b}", agg)
	require.Contains(t, out, "[task a completed, no handoff available]")
	require.Contains(t, out, "[WARNING: dependency b has not completed]")
}

func TestInstructions_CommandsAreEscaped(t *testing.T) {
	d := NewDispatcher("agent-runner", 0)
	groups := []scheduler.ParallelGroup{{
		GroupID: "p-L0-G0",
		Tasks: []schema.Subtask{
			{ID: "a", AgentType: schema.AgentDeveloper, Prompt: "implement the auth flow; carefully"},
		},
	}}

	insts := d.Instructions(groups, AggregateResults(nil), 0)
	require.Len(t, insts, 1)
	require.Len(t, insts[0].Spawns, 1)

	cmd := insts[0].Spawns[0].Command
	require.True(t, strings.HasPrefix(cmd, "agent-runner --agent developer --task a --prompt "))
	require.Contains(t, cmd, "'implement the auth flow; carefully'")
	require.False(t, insts[0].Spawns[0].RunInBackground)
}

func TestInstructions_TokenEstimatesAndBudgetFlag(t *testing.T) {
	d := NewDispatcher("agent-runner", 1000)
	groups := []scheduler.ParallelGroup{
		{GroupID: "p-L0-G0", Tasks: []schema.Subtask{
			{ID: "a", AgentType: schema.AgentAnalyst, Prompt: "x", EstimatedTokens: 600},
		}},
		{GroupID: "p-L1-G0", Tasks: []schema.Subtask{
			{ID: "b", AgentType: schema.AgentDeveloper, Prompt: "y", EstimatedTokens: 700},
		}},
	}

	insts := d.Instructions(groups, AggregateResults(nil), 0)
	require.Len(t, insts, 2)
	require.Equal(t, 600, insts[0].EstimatedTokens)
	require.NotContains(t, insts[0].Summary, "exceeds token budget")
	// The dispatcher stays advisory: the overrunning group is still emitted,
	// flagged in its summary.
	require.Equal(t, 700, insts[1].EstimatedTokens)
	require.Contains(t, insts[1].Summary, "exceeds token budget")
}

func TestWithinBudget(t *testing.T) {
	require.True(t, WithinBudget(500, 500, 1000))
	require.False(t, WithinBudget(501, 500, 1000))
	require.True(t, WithinBudget(1_000_000, 1, 0))
}

func TestShellEscape(t *testing.T) {
	require.Equal(t, "''", shellEscape(""))
	require.Equal(t, "plain-word.1", shellEscape("plain-word.1"))
	require.Equal(t, "'two words'", shellEscape("two words"))
	require.Equal(t, `'it'\''s'`, shellEscape("it's"))
}
