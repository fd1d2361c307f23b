package artifacts

import (
	"fmt"
	"sort"
	"strings"

	"conductor/internal/logging"
	"conductor/internal/schema"
	"conductor/internal/sessionstore"
)

const (
	handoffPrefix  = "handoff-"
	handoffPointer = "handoffs/latest-handoff.json"
)

// HandoffRepo persists handoff artifacts. After each successful write it
// invokes the configured post-write hook (the evidence linker); hook failures
// are logged and never fail the write.
type HandoffRepo struct {
	store    *sessionstore.Store
	registry *schema.Registry
	postHook func(*schema.Handoff)
}

// SetPostWriteHook installs the hook invoked after every successful write.
// The facade wires this to the evidence linker.
func (r *HandoffRepo) SetPostWriteHook(hook func(*schema.Handoff)) {
	r.postHook = hook
}

// HandoffSummary is the display row returned by List.
type HandoffSummary struct {
	ID            string           `json:"id"`
	FromAgentType schema.AgentType `json:"fromAgentType"`
	Timestamp     string           `json:"timestamp"`
}

// Write validates and persists a handoff, updates the latest-handoff mirror,
// journals the write, and triggers the post-write hook.
func (r *HandoffRepo) Write(h *schema.Handoff) error {
	if h.ID == "" {
		h.ID = schema.NewID()
	}
	if h.Metadata.Timestamp == "" {
		h.Metadata.Timestamp = schema.Now()
	}
	if h.Metadata.SessionID == "" {
		h.Metadata.SessionID = r.store.SessionID()
	}
	if h.Metadata.Version == "" {
		h.Metadata.Version = "1.0"
	}

	if verrs := r.registry.ValidateHandoff(h); len(verrs) > 0 {
		return &ValidationFailure{Kind: schema.KindHandoff, Errors: verrs}
	}

	canonical := fmt.Sprintf("handoffs/%s%s-%s.json",
		handoffPrefix, h.Metadata.FromAgent.Type, schema.SanitizeTimestamp(h.Metadata.Timestamp))
	if err := r.store.WriteJSON(canonical, h); err != nil {
		return err
	}
	if err := r.store.WriteJSON(handoffPointer, h); err != nil {
		return err
	}
	if err := r.store.AppendHistory(schema.KindHandoff, h.ID); err != nil {
		return err
	}

	logging.StoreDebug("Handoff %s written (from %s, %d results)",
		h.ID, h.Metadata.FromAgent.Type, len(h.Results))

	if r.postHook != nil {
		r.postHook(h)
	}
	return nil
}

// Read returns the handoff with the given id, or the latest pointer when id
// is empty. Lookups by id scan the canonical files.
func (r *HandoffRepo) Read(id string) (*schema.Handoff, error) {
	if id == "" {
		var h schema.Handoff
		if err := r.store.ReadJSON(handoffPointer, &h); err != nil {
			if sessionstore.IsNotFound(err) {
				return nil, noPointerErr(r.store, schema.KindHandoff, "handoffs", handoffPrefix)
			}
			return nil, err
		}
		return &h, nil
	}

	names, err := r.canonicalNames()
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		var h schema.Handoff
		if err := r.store.ReadJSON("handoffs/"+name, &h); err != nil {
			logging.Get(logging.CategoryStore).Warn("Skipping unreadable handoff %s: %v", name, err)
			continue
		}
		if h.ID == id {
			return &h, nil
		}
	}
	return nil, fmt.Errorf("handoff %q not found", id)
}

// List returns handoff summaries sorted timestamp-descending.
func (r *HandoffRepo) List() ([]HandoffSummary, error) {
	names, err := r.canonicalNames()
	if err != nil {
		return nil, err
	}

	summaries := make([]HandoffSummary, 0, len(names))
	for _, name := range names {
		var h schema.Handoff
		if err := r.store.ReadJSON("handoffs/"+name, &h); err != nil {
			logging.Get(logging.CategoryStore).Warn("Skipping unreadable handoff %s: %v", name, err)
			continue
		}
		summaries = append(summaries, HandoffSummary{
			ID:            h.ID,
			FromAgentType: h.Metadata.FromAgent.Type,
			Timestamp:     h.Metadata.Timestamp,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Timestamp > summaries[j].Timestamp
	})
	return summaries, nil
}

// ByTask returns the newest handoff mentioning taskID in its results, or nil.
func (r *HandoffRepo) ByTask(taskID string) (*schema.Handoff, error) {
	names, err := r.canonicalNames()
	if err != nil {
		return nil, err
	}

	var best *schema.Handoff
	for _, name := range names {
		var h schema.Handoff
		if err := r.store.ReadJSON("handoffs/"+name, &h); err != nil {
			continue
		}
		for _, res := range h.Results {
			if res.TaskID != taskID {
				continue
			}
			if best == nil || h.Metadata.Timestamp > best.Metadata.Timestamp {
				hh := h
				best = &hh
			}
			break
		}
	}
	return best, nil
}

func (r *HandoffRepo) canonicalNames() ([]string, error) {
	return r.store.ListDir("handoffs", func(name string) bool {
		return strings.HasPrefix(name, handoffPrefix) && strings.HasSuffix(name, ".json")
	})
}
