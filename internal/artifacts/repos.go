// Package artifacts provides typed CRUD repositories over the session store:
// prompts, plans, handoffs, orchestrator state, linked memories, evidence
// chains, and gate results.
//
// Every write follows the same order: validate, canonical file, pointer
// mirror (when the kind has one), history append. Reads of a missing pointer
// enumerate the available canonical ids in the error message.
package artifacts

import (
	"fmt"
	"strings"

	"conductor/internal/schema"
	"conductor/internal/sessionstore"
)

// ValidationFailure wraps the field violations from a rejected write.
type ValidationFailure struct {
	Kind   schema.Kind
	Errors []schema.ValidationError
}

func (e *ValidationFailure) Error() string {
	parts := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		parts[i] = ve.Error()
	}
	return fmt.Sprintf("invalid %s: %s", e.Kind, strings.Join(parts, "; "))
}

// Repos bundles all repositories for one session.
type Repos struct {
	Prompts  *PromptRepo
	Plans    *PlanRepo
	Handoffs *HandoffRepo
	State    *StateRepo
	Memories *MemoryRepo
	Evidence *EvidenceRepo
	Gates    *GateRepo
}

// New wires every repository onto one store and registry.
func New(store *sessionstore.Store, registry *schema.Registry) *Repos {
	return &Repos{
		Prompts:  &PromptRepo{store: store, registry: registry},
		Plans:    &PlanRepo{store: store, registry: registry},
		Handoffs: &HandoffRepo{store: store, registry: registry},
		State:    &StateRepo{store: store, registry: registry},
		Memories: &MemoryRepo{store: store, registry: registry},
		Evidence: &EvidenceRepo{store: store, registry: registry},
		Gates:    &GateRepo{store: store, registry: registry},
	}
}

// noPointerErr builds the error for a read with no current pointer, listing
// whatever canonical ids exist so the caller can pick one explicitly.
func noPointerErr(store *sessionstore.Store, kind schema.Kind, dir, prefix string) error {
	names, _ := store.ListDir(dir, func(name string) bool {
		return strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".json")
	})
	if len(names) == 0 {
		return fmt.Errorf("no %s found in session", kind)
	}
	ids := make([]string, len(names))
	for i, n := range names {
		ids[i] = strings.TrimSuffix(strings.TrimPrefix(n, prefix), ".json")
	}
	return fmt.Errorf("no current %s pointer; available ids: %s", kind, strings.Join(ids, ", "))
}
