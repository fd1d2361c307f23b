package orchestrator

import (
	"context"
	"fmt"

	"conductor/internal/dispatch"
	"conductor/internal/logging"
	"conductor/internal/scheduler"
	"conductor/internal/schema"
	"conductor/internal/sessionstore"
)

// PhaseDispatch bundles the instructions for one phase along with any
// scheduling warnings (cycle tolerance).
type PhaseDispatch struct {
	PhaseID      string                 `json:"phaseId"`
	PhaseName    string                 `json:"phaseName"`
	Instructions []dispatch.Instruction `json:"instructions"`
	Warnings     []string               `json:"warnings,omitempty"`
}

// ExecutePhase schedules one phase's subtasks and produces dispatch
// instructions. maxAgents <= 0 uses the configured limit.
func (c *Conductor) ExecutePhase(phaseID string, maxAgents int) (*PhaseDispatch, error) {
	_, phase, err := c.repos.Plans.Phase("", phaseID)
	if err != nil {
		return nil, err
	}
	if maxAgents <= 0 {
		maxAgents = c.cfg.MaxConcurrentAgents
	}

	groups, warnings := scheduler.Schedule(phase, scheduler.Config{
		MaxConcurrentAgents: maxAgents,
		WaitForAll:          !phase.Parallelizable,
	})

	agg, usedTokens, err := c.aggregateFromHandoffs()
	if err != nil {
		return nil, err
	}

	instructions := c.dispatcher.Instructions(groups, agg, usedTokens)
	logging.Dispatch("Phase %s: %d instruction group(s)", phaseID, len(instructions))
	return &PhaseDispatch{
		PhaseID:      phaseID,
		PhaseName:    phase.Name,
		Instructions: instructions,
		Warnings:     warnings,
	}, nil
}

// ExecutePlan produces dispatch instructions for every phase in plan order,
// optionally resuming from a given phase id.
func (c *Conductor) ExecutePlan(resumeFrom string, maxAgents int) ([]*PhaseDispatch, error) {
	plan, err := c.repos.Plans.Read("")
	if err != nil {
		return nil, err
	}

	started := resumeFrom == ""
	var out []*PhaseDispatch
	for _, phase := range plan.Phases {
		if !started {
			if phase.ID != resumeFrom {
				continue
			}
			started = true
		}
		pd, err := c.ExecutePhase(phase.ID, maxAgents)
		if err != nil {
			return out, err
		}
		out = append(out, pd)
	}
	if !started {
		return nil, fmt.Errorf("resume phase %q not found in plan", resumeFrom)
	}
	return out, nil
}

// aggregateFromHandoffs folds the session's handoffs into the dependency
// context dispatch substitutes from. Tasks count as completed when any
// handoff reports them completed.
func (c *Conductor) aggregateFromHandoffs() (*dispatch.Aggregated, int, error) {
	summaries, err := c.repos.Handoffs.List()
	if err != nil {
		if sessionstore.IsNotFound(err) {
			return dispatch.AggregateResults(nil), 0, nil
		}
		return nil, 0, err
	}

	var results []dispatch.TaskResult
	// List is newest-first; walk oldest-first so newer handoffs win the map.
	for i := len(summaries) - 1; i >= 0; i-- {
		h, err := c.repos.Handoffs.Read(summaries[i].ID)
		if err != nil {
			logging.Get(logging.CategoryDispatch).Warn("Skipping handoff %s: %v", summaries[i].ID, err)
			continue
		}
		for ri, res := range h.Results {
			tr := dispatch.TaskResult{
				TaskID:    res.TaskID,
				Completed: res.Status == schema.ResultCompleted,
				Handoff:   h,
			}
			// Attribute the handoff's token spend once, not per result.
			if ri == 0 {
				tr.TokensUsed = h.State.TokensUsed
			}
			results = append(results, tr)
		}
	}

	agg := dispatch.AggregateResults(results)
	return agg, agg.TotalTokensUsed, nil
}

// ListAgents returns the agent registry rows from orchestrator state.
func (c *Conductor) ListAgents() ([]schema.AgentState, error) {
	st, err := c.repos.State.ReadOrInit()
	if err != nil {
		return nil, err
	}
	return st.Agents, nil
}

// KillAgent marks a registered agent failed. The supervisor owns the actual
// process; this is registry maintenance only.
func (c *Conductor) KillAgent(agentID string) error {
	st, err := c.repos.State.ReadOrInit()
	if err != nil {
		return err
	}
	for i := range st.Agents {
		if st.Agents[i].ID == agentID {
			st.Agents[i].Status = schema.AgentFailed
			return c.repos.State.Write(st)
		}
	}
	return fmt.Errorf("agent %q not found", agentID)
}

// Status summarizes the session for display.
type Status struct {
	SessionID    string                `json:"sessionId"`
	State        string                `json:"state"`
	CurrentPhase *schema.PhaseProgress `json:"currentPhase,omitempty"`
	Agents       []schema.AgentState   `json:"agents,omitempty"`
	TokenUsage   *schema.TokenUsage    `json:"tokenUsage,omitempty"`
	PlanID       string                `json:"planId,omitempty"`
	PlanName     string                `json:"planName,omitempty"`
	Handoffs     int                   `json:"handoffs"`
	Evidence     int                   `json:"evidence"`
}

// SessionStatus aggregates session, phase, agent, and token information.
func (c *Conductor) SessionStatus() (*Status, error) {
	st, err := c.repos.State.ReadOrInit()
	if err != nil {
		return nil, err
	}

	status := &Status{
		SessionID:    c.SessionID(),
		State:        st.Status,
		CurrentPhase: st.CurrentPhase,
		Agents:       st.Agents,
		TokenUsage:   st.TokenUsage,
	}
	if plan, err := c.repos.Plans.Read(""); err == nil {
		status.PlanID = plan.ID
		status.PlanName = plan.Name
	}
	if handoffs, err := c.repos.Handoffs.List(); err == nil {
		status.Handoffs = len(handoffs)
	}
	if chains, err := c.repos.Evidence.List(); err == nil {
		status.Evidence = len(chains)
	}
	return status, nil
}

// Watch tails the session tree, reporting artifact events until ctx ends.
func (c *Conductor) Watch(ctx context.Context, onEvent func(sessionstore.Event)) error {
	return c.store.Watch(ctx, onEvent)
}
