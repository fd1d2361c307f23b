package artifacts

import (
	"fmt"
	"strings"

	"conductor/internal/logging"
	"conductor/internal/schema"
	"conductor/internal/sessionstore"
)

const (
	planPrefix  = "plan-"
	planPointer = "plans/current-plan.json"
)

// PlanRepo persists plan artifacts.
type PlanRepo struct {
	store    *sessionstore.Store
	registry *schema.Registry
}

// Write validates and persists a plan, updates the current-plan mirror, and
// journals the write. Missing ID and CreatedAt are filled in.
func (r *PlanRepo) Write(p *schema.Plan) error {
	if p.ID == "" {
		p.ID = schema.NewID()
	}
	if p.CreatedAt == "" {
		p.CreatedAt = schema.Now()
	}
	if p.SessionID == "" {
		p.SessionID = r.store.SessionID()
	}

	if verrs := r.registry.ValidatePlan(p); len(verrs) > 0 {
		return &ValidationFailure{Kind: schema.KindPlan, Errors: verrs}
	}

	canonical := fmt.Sprintf("plans/%s%s.json", planPrefix, p.ID)
	if err := r.store.WriteJSON(canonical, p); err != nil {
		return err
	}
	if err := r.store.WriteJSON(planPointer, p); err != nil {
		return err
	}
	if err := r.store.AppendHistory(schema.KindPlan, p.ID); err != nil {
		return err
	}

	logging.StoreDebug("Plan %s written (%d phases)", p.ID, len(p.Phases))
	return nil
}

// Read returns the plan with the given id, or the current pointer when id is
// empty.
func (r *PlanRepo) Read(id string) (*schema.Plan, error) {
	var p schema.Plan
	if id == "" {
		if err := r.store.ReadJSON(planPointer, &p); err != nil {
			if sessionstore.IsNotFound(err) {
				return nil, noPointerErr(r.store, schema.KindPlan, "plans", planPrefix)
			}
			return nil, err
		}
		return &p, nil
	}

	if err := r.store.ReadJSON(fmt.Sprintf("plans/%s%s.json", planPrefix, id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns the plan ids present in the session, in directory order.
func (r *PlanRepo) List() ([]string, error) {
	names, err := r.store.ListDir("plans", func(name string) bool {
		return strings.HasPrefix(name, planPrefix) && strings.HasSuffix(name, ".json")
	})
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(names))
	for i, n := range names {
		ids[i] = strings.TrimSuffix(strings.TrimPrefix(n, planPrefix), ".json")
	}
	return ids, nil
}

// Phase returns the phase with the given id from the plan named by planID
// (the current plan when planID is empty).
func (r *PlanRepo) Phase(planID, phaseID string) (*schema.Plan, *schema.Phase, error) {
	plan, err := r.Read(planID)
	if err != nil {
		return nil, nil, err
	}
	for i := range plan.Phases {
		if plan.Phases[i].ID == phaseID {
			return plan, &plan.Phases[i], nil
		}
	}
	return nil, nil, fmt.Errorf("phase %q not found in plan %s", phaseID, plan.ID)
}

// NextPhase returns the phase following phaseID in plan order, or nil when
// phaseID is the last phase.
func NextPhase(plan *schema.Plan, phaseID string) *schema.Phase {
	for i := range plan.Phases {
		if plan.Phases[i].ID == phaseID && i+1 < len(plan.Phases) {
			return &plan.Phases[i+1]
		}
	}
	return nil
}
