package artifacts

import (
	"fmt"
	"strings"

	"conductor/internal/logging"
	"conductor/internal/schema"
	"conductor/internal/sessionstore"
)

const (
	promptPrefix  = "prompt-"
	promptPointer = "prompts/current-prompt.json"
)

// PromptRepo persists prompt artifacts.
type PromptRepo struct {
	store    *sessionstore.Store
	registry *schema.Registry
}

// Write validates and persists a prompt, updates the current-prompt mirror,
// and journals the write. Missing ID and CreatedAt are filled in.
func (r *PromptRepo) Write(p *schema.Prompt) error {
	if p.ID == "" {
		p.ID = schema.NewID()
	}
	if p.CreatedAt == "" {
		p.CreatedAt = schema.Now()
	}
	if p.SessionID == "" {
		p.SessionID = r.store.SessionID()
	}

	if verrs := r.registry.ValidatePrompt(p); len(verrs) > 0 {
		return &ValidationFailure{Kind: schema.KindPrompt, Errors: verrs}
	}

	canonical := fmt.Sprintf("prompts/%s%s.json", promptPrefix, p.ID)
	if err := r.store.WriteJSON(canonical, p); err != nil {
		return err
	}
	if err := r.store.WriteJSON(promptPointer, p); err != nil {
		return err
	}
	if err := r.store.AppendHistory(schema.KindPrompt, p.ID); err != nil {
		return err
	}

	logging.StoreDebug("Prompt %s written", p.ID)
	return nil
}

// Read returns the prompt with the given id, or the current pointer when id
// is empty.
func (r *PromptRepo) Read(id string) (*schema.Prompt, error) {
	var p schema.Prompt
	if id == "" {
		if err := r.store.ReadJSON(promptPointer, &p); err != nil {
			if sessionstore.IsNotFound(err) {
				return nil, noPointerErr(r.store, schema.KindPrompt, "prompts", promptPrefix)
			}
			return nil, err
		}
		return &p, nil
	}

	if err := r.store.ReadJSON(fmt.Sprintf("prompts/%s%s.json", promptPrefix, id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns the prompt ids present in the session, in directory order.
func (r *PromptRepo) List() ([]string, error) {
	names, err := r.store.ListDir("prompts", func(name string) bool {
		return strings.HasPrefix(name, promptPrefix) && strings.HasSuffix(name, ".json")
	})
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(names))
	for i, n := range names {
		ids[i] = strings.TrimSuffix(strings.TrimPrefix(n, promptPrefix), ".json")
	}
	return ids, nil
}
