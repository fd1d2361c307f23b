package orchestrator

import (
	"context"
	"fmt"

	"conductor/internal/artifacts"
	"conductor/internal/logging"
	"conductor/internal/schema"
)

// CheckGate evaluates a phase's gate and records the result. The expression
// source is conditionOverride when non-empty, otherwise the phase's
// gateCondition. A parse error is returned without running any check and
// without recording a result.
func (c *Conductor) CheckGate(ctx context.Context, phaseID, conditionOverride string) (*schema.GateResult, error) {
	_, phase, err := c.repos.Plans.Phase("", phaseID)
	if err != nil {
		return nil, err
	}

	condition := phase.GateCondition
	if conditionOverride != "" {
		condition = conditionOverride
	}

	result, perr := c.evaluator.Evaluate(ctx, phaseID, condition)
	if perr != nil {
		return nil, perr
	}

	if err := c.repos.Gates.Write(result); err != nil {
		return nil, err
	}
	return result, nil
}

// ReadGate returns the latest recorded gate result for a phase.
func (c *Conductor) ReadGate(phaseID string) (*schema.GateResult, error) {
	return c.repos.Gates.Read(phaseID)
}

// ListGates returns historical gate results, optionally for one phase.
func (c *Conductor) ListGates(phaseID string) ([]*schema.GateResult, error) {
	return c.repos.Gates.List(phaseID)
}

// AdvancePhase runs the phase's gate and, on pass, moves orchestrator state
// to the next phase in the plan (or marks the run complete when none
// remains) and journals the transition. On failure the gate result is
// recorded, state is left untouched, and the blockers come back with the
// result.
func (c *Conductor) AdvancePhase(ctx context.Context, phaseID, conditionOverride string) (*schema.GateResult, error) {
	plan, _, err := c.repos.Plans.Phase("", phaseID)
	if err != nil {
		return nil, err
	}

	result, err := c.CheckGate(ctx, phaseID, conditionOverride)
	if err != nil {
		return nil, err
	}
	if !result.Passed {
		logging.Gate("Phase %s blocked: %d blocker(s)", phaseID, len(result.Blockers))
		return result, nil
	}

	st, err := c.repos.State.ReadOrInit()
	if err != nil {
		return result, err
	}

	if next := artifacts.NextPhase(plan, phaseID); next != nil {
		st.Status = "running"
		st.CurrentPhase = &schema.PhaseProgress{ID: next.ID, Name: next.Name, Progress: 0}
		logging.Gate("Phase %s advanced to %s", phaseID, next.ID)
	} else {
		st.Status = schema.StatusComplete
		st.CurrentPhase = &schema.PhaseProgress{ID: schema.StatusComplete, Name: "Plan complete", Progress: 100}
		logging.Gate("Phase %s advanced; plan complete", phaseID)
	}

	if err := c.repos.State.Write(st); err != nil {
		return result, fmt.Errorf("gate passed but state write failed: %w", err)
	}
	if err := c.store.AppendHistory(schema.KindPhaseAdvanced, phaseID); err != nil {
		return result, err
	}
	return result, nil
}
