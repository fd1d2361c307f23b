package schema

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func validPlan() *Plan {
	return &Plan{
		ID:        NewID(),
		SessionID: "20250101_10-00_test",
		Name:      "build",
		CreatedAt: Now(),
		Phases: []Phase{
			{
				ID:   "phase-1",
				Name: "Analysis",
				Subtasks: []Subtask{
					{ID: "a", AgentType: AgentAnalyst, Prompt: "analyze the codebase"},
					{ID: "b", AgentType: AgentDeveloper, Prompt: "implement {result:a}", Dependencies: []string{"a"}},
				},
			},
		},
	}
}

func TestValidatePlan_OK(t *testing.T) {
	r := NewRegistry()
	require.Empty(t, r.ValidatePlan(validPlan()))
}

func TestValidatePlan_CrossFieldInvariants(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Plan)
		wantMsg string
	}{
		{
			name:    "self dependency",
			mutate:  func(p *Plan) { p.Phases[0].Subtasks[0].Dependencies = []string{"a"} },
			wantMsg: "depends on itself",
		},
		{
			name:    "forward dependency",
			mutate:  func(p *Plan) { p.Phases[0].Subtasks[0].Dependencies = []string{"b"} },
			wantMsg: "does not reference an earlier subtask",
		},
		{
			name:    "unknown dependency",
			mutate:  func(p *Plan) { p.Phases[0].Subtasks[1].Dependencies = []string{"ghost"} },
			wantMsg: "does not reference an earlier subtask",
		},
		{
			name: "duplicate subtask id",
			mutate: func(p *Plan) {
				p.Phases[0].Subtasks = append(p.Phases[0].Subtasks,
					Subtask{ID: "a", AgentType: AgentBrowser, Prompt: "again"})
			},
			wantMsg: "duplicate subtask id",
		},
	}

	r := NewRegistry()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPlan()
			tt.mutate(p)
			errs := r.ValidatePlan(p)
			require.NotEmpty(t, errs)
			found := false
			for _, e := range errs {
				if strings.Contains(e.Message, tt.wantMsg) {
					found = true
				}
			}
			require.True(t, found, "expected a %q error, got %v", tt.wantMsg, errs)
		})
	}
}

func TestValidatePlan_TagViolations(t *testing.T) {
	r := NewRegistry()

	p := validPlan()
	p.ID = "not-a-uuid"
	errs := r.ValidatePlan(p)
	require.NotEmpty(t, errs)
	require.Equal(t, "id", errs[0].FieldPath)

	p = validPlan()
	p.Phases[0].Subtasks[0].AgentType = "wizard"
	errs = r.ValidatePlan(p)
	require.NotEmpty(t, errs)
	require.Contains(t, errs[0].Message, "must be one of")

	p = validPlan()
	p.Phases = nil
	require.NotEmpty(t, r.ValidatePlan(p))
}

func TestValidateHandoff(t *testing.T) {
	r := NewRegistry()
	h := &Handoff{
		ID: NewID(),
		Metadata: HandoffMetadata{
			SessionID: "s",
			PlanID:    "p",
			FromAgent: AgentRef{Type: AgentDeveloper, ID: "dev-1"},
			ToAgent:   AgentSpec{Type: AgentBrowser},
			Timestamp: Now(),
			Version:   "1.0",
		},
		Reason: ReasonTaskComplete,
		Results: []HandoffResult{
			{TaskID: "t1", Status: ResultCompleted, Summary: "done"},
		},
	}
	require.Empty(t, r.ValidateHandoff(h))

	h.Reason = "celebration"
	errs := r.ValidateHandoff(h)
	require.NotEmpty(t, errs)
	require.Equal(t, "reason", errs[0].FieldPath)

	h.Reason = ReasonBlocked
	h.Results = nil
	require.NotEmpty(t, r.ValidateHandoff(h))
}

func TestValidateState_Ranges(t *testing.T) {
	r := NewRegistry()
	st := &OrchestratorState{
		Status:       "running",
		CurrentPhase: &PhaseProgress{ID: "phase-1", Progress: 150},
	}
	errs := r.ValidateState(st)
	require.NotEmpty(t, errs)
	require.Contains(t, errs[0].FieldPath, "progress")
}

func TestValidateTimestampShape(t *testing.T) {
	r := NewRegistry()
	p := &Prompt{ID: NewID(), SessionID: "s", Description: "d", CreatedAt: "yesterday"}
	errs := r.ValidatePrompt(p)
	require.NotEmpty(t, errs)
	require.Contains(t, errs[0].Message, "RFC3339")
}

func TestEvidenceRecompute(t *testing.T) {
	c := &EvidenceChain{ChainID: "T"}
	c.Recompute()
	require.Equal(t, 0.0, c.CoveragePercent)
	require.False(t, c.Valid)

	stage := &EvidenceStage{Source: "developer/dev-1", Timestamp: Now()}
	c.Implementation = stage
	c.Recompute()
	require.Equal(t, 25.0, c.CoveragePercent)
	require.False(t, c.Valid)

	// Populating an additional stage never decreases coverage.
	prev := c.CoveragePercent
	c.Validation = stage
	c.Recompute()
	require.GreaterOrEqual(t, c.CoveragePercent, prev)
	require.Equal(t, 50.0, c.CoveragePercent)
	require.True(t, c.Valid)

	c.Analysis = stage
	c.Requirement = stage
	c.Recompute()
	require.Equal(t, 100.0, c.CoveragePercent)
}

func TestRoundTrip(t *testing.T) {
	plan := validPlan()
	data, err := json.Marshal(plan)
	require.NoError(t, err)
	var back Plan
	require.NoError(t, json.Unmarshal(data, &back))
	if diff := cmp.Diff(plan, &back); diff != "" {
		t.Fatalf("plan round-trip mismatch (-want +got):\n%s", diff)
	}

	// Serialization is deterministic.
	again, err := json.Marshal(plan)
	require.NoError(t, err)
	require.Equal(t, string(data), string(again))
}

func TestSessionIDShape(t *testing.T) {
	id := NewSessionID()
	parts := strings.SplitN(id, "_", 3)
	require.Len(t, parts, 3)
	require.Len(t, parts[0], 8)
	require.Len(t, parts[1], 5)
	require.Len(t, parts[2], 36)
}

func TestSanitizeTimestamp(t *testing.T) {
	require.Equal(t, "2025-01-01T10-00-00Z", SanitizeTimestamp("2025-01-01T10:00:00Z"))
	require.Equal(t, "10-00-00-123", SanitizeTimestamp("10:00:00.123"))
}
