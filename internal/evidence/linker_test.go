package evidence

import (
	"testing"

	"github.com/stretchr/testify/require"

	"conductor/internal/artifacts"
	"conductor/internal/schema"
	"conductor/internal/sessionstore"
)

func testLinker(t *testing.T) (*Linker, *artifacts.Repos) {
	t.Helper()
	store, err := sessionstore.Open(t.TempDir(), "20250101_10-00_evidence", 50)
	require.NoError(t, err)
	repos := artifacts.New(store, schema.NewRegistry())
	return NewLinker(repos.Evidence), repos
}

func handoffFrom(agent schema.AgentType, taskIDs ...string) *schema.Handoff {
	results := make([]schema.HandoffResult, len(taskIDs))
	for i, id := range taskIDs {
		results[i] = schema.HandoffResult{TaskID: id, Status: schema.ResultCompleted, Summary: "worked on " + id}
	}
	return &schema.Handoff{
		ID: schema.NewID(),
		Metadata: schema.HandoffMetadata{
			SessionID: "s",
			PlanID:    "p",
			FromAgent: schema.AgentRef{Type: agent, ID: string(agent) + "-1"},
			Timestamp: schema.Now(),
			Version:   "1.0",
		},
		Reason:  schema.ReasonTaskComplete,
		Results: results,
	}
}

func TestLinkHandoff_DeveloperPopulatesImplementation(t *testing.T) {
	linker, repos := testLinker(t)

	linker.LinkHandoff(handoffFrom(schema.AgentDeveloper, "T"))

	chain, err := repos.Evidence.Read("T")
	require.NoError(t, err)
	require.NotNil(t, chain.Implementation)
	require.Nil(t, chain.Analysis)
	require.Nil(t, chain.Validation)
	require.Equal(t, "developer/developer-1", chain.Implementation.Source)
	require.GreaterOrEqual(t, chain.CoveragePercent, 25.0)
	require.False(t, chain.Valid)
}

func TestLinkHandoff_SecondStageRaisesCoverage(t *testing.T) {
	linker, repos := testLinker(t)

	linker.LinkHandoff(handoffFrom(schema.AgentDeveloper, "T"))
	linker.LinkHandoff(handoffFrom(schema.AgentBrowser, "T"))

	chain, err := repos.Evidence.Read("T")
	require.NoError(t, err)
	require.NotNil(t, chain.Implementation)
	require.NotNil(t, chain.Validation)
	require.Equal(t, 50.0, chain.CoveragePercent)
	require.True(t, chain.Valid)
}

func TestLinkHandoff_StagePopulationIsIdempotent(t *testing.T) {
	linker, repos := testLinker(t)

	first := handoffFrom(schema.AgentAnalyst, "T")
	linker.LinkHandoff(first)

	second := handoffFrom(schema.AgentAnalyst, "T")
	second.Results[0].Summary = "re-analyzed"
	linker.LinkHandoff(second)

	chain, err := repos.Evidence.Read("T")
	require.NoError(t, err)
	require.Equal(t, 25.0, chain.CoveragePercent, "overwriting a stage must not duplicate it")
	require.Equal(t, "re-analyzed", chain.Analysis.Summary)
}

func TestLinkHandoff_MultipleResults(t *testing.T) {
	linker, repos := testLinker(t)

	linker.LinkHandoff(handoffFrom(schema.AgentAnalyst, "T1", "T2"))

	for _, id := range []string{"T1", "T2"} {
		chain, err := repos.Evidence.Read(id)
		require.NoError(t, err)
		require.NotNil(t, chain.Analysis)
	}
}

func TestLinkHandoff_OrchestratorHasNoStage(t *testing.T) {
	linker, repos := testLinker(t)

	linker.LinkHandoff(handoffFrom(schema.AgentOrchestrator, "T"))
	require.False(t, repos.Evidence.Exists("T"))
}

func TestLinkHandoff_HistoryEntries(t *testing.T) {
	store, err := sessionstore.Open(t.TempDir(), "20250101_10-00_evidence3", 50)
	require.NoError(t, err)
	repos := artifacts.New(store, schema.NewRegistry())
	linker := NewLinker(repos.Evidence)

	linker.LinkHandoff(handoffFrom(schema.AgentDeveloper, "T"))
	linker.LinkHandoff(handoffFrom(schema.AgentBrowser, "T"))

	entries, err := store.ReadHistory(0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, schema.KindEvidenceCreated, entries[0].Type)
	require.Equal(t, schema.KindEvidenceUpdated, entries[1].Type)
}

func TestWriteHandoffTriggersLinker(t *testing.T) {
	store, err := sessionstore.Open(t.TempDir(), "20250101_10-00_evidence2", 50)
	require.NoError(t, err)
	repos := artifacts.New(store, schema.NewRegistry())
	linker := NewLinker(repos.Evidence)
	repos.Handoffs.SetPostWriteHook(linker.LinkHandoff)

	require.NoError(t, repos.Handoffs.Write(handoffFrom(schema.AgentDeveloper, "T")))

	chain, err := repos.Evidence.Read("T")
	require.NoError(t, err)
	require.NotNil(t, chain.Implementation)
}
