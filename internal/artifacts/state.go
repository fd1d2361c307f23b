package artifacts

import (
	"conductor/internal/logging"
	"conductor/internal/schema"
	"conductor/internal/sessionstore"
)

// StatePath is the canonical orchestrator state document.
const StatePath = "state/orchestrator.json"

// StateRepo persists the single orchestrator state document. Every
// successful write archives the prior value first.
type StateRepo struct {
	store    *sessionstore.Store
	registry *schema.Registry
}

// Write validates and persists orchestrator state, archiving the previous
// document before the overwrite.
func (r *StateRepo) Write(st *schema.OrchestratorState) error {
	if st.UpdatedAt == "" {
		st.UpdatedAt = schema.Now()
	}
	if verrs := r.registry.ValidateState(st); len(verrs) > 0 {
		return &ValidationFailure{Kind: schema.KindState, Errors: verrs}
	}

	if err := r.store.Archive(StatePath); err != nil {
		return err
	}
	if err := r.store.WriteJSON(StatePath, st); err != nil {
		return err
	}
	if err := r.store.AppendHistory(schema.KindState, st.Status); err != nil {
		return err
	}

	logging.StoreDebug("Orchestrator state written (status=%s)", st.Status)
	return nil
}

// Read returns the current orchestrator state.
func (r *StateRepo) Read() (*schema.OrchestratorState, error) {
	var st schema.OrchestratorState
	if err := r.store.ReadJSON(StatePath, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// ReadOrInit returns the current state, or a fresh idle state when none has
// been written yet.
func (r *StateRepo) ReadOrInit() (*schema.OrchestratorState, error) {
	st, err := r.Read()
	if err == nil {
		return st, nil
	}
	if sessionstore.IsNotFound(err) {
		return &schema.OrchestratorState{Status: "idle", Agents: []schema.AgentState{}}, nil
	}
	return nil, err
}
