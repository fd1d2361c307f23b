package artifacts

import (
	"fmt"
	"strings"

	"conductor/internal/logging"
	"conductor/internal/schema"
	"conductor/internal/sessionstore"
)

// MemoryRepo persists linked memory artifacts, keyed by memory name.
type MemoryRepo struct {
	store    *sessionstore.Store
	registry *schema.Registry
}

// Write validates and persists a linked memory under memories/<name>.json.
func (r *MemoryRepo) Write(m *schema.LinkedMemory) error {
	if m.LinkedAt == "" {
		m.LinkedAt = schema.Now()
	}
	if verrs := r.registry.ValidateMemory(m); len(verrs) > 0 {
		return &ValidationFailure{Kind: schema.KindMemory, Errors: verrs}
	}

	if err := r.store.WriteJSON(fmt.Sprintf("memories/%s.json", m.MemoryName), m); err != nil {
		return err
	}
	if err := r.store.AppendHistory(schema.KindMemory, m.MemoryName); err != nil {
		return err
	}

	logging.StoreDebug("Memory %s linked", m.MemoryName)
	return nil
}

// Read returns the linked memory with the given name.
func (r *MemoryRepo) Read(name string) (*schema.LinkedMemory, error) {
	var m schema.LinkedMemory
	if err := r.store.ReadJSON(fmt.Sprintf("memories/%s.json", name), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// List returns the linked memory names, in directory order.
func (r *MemoryRepo) List() ([]string, error) {
	names, err := r.store.ListDir("memories", func(name string) bool {
		return strings.HasSuffix(name, ".json")
	})
	if err != nil {
		if sessionstore.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = strings.TrimSuffix(n, ".json")
	}
	return out, nil
}

// ReadAll returns every readable linked memory. Malformed files are skipped
// with a warning.
func (r *MemoryRepo) ReadAll() ([]*schema.LinkedMemory, error) {
	names, err := r.List()
	if err != nil {
		return nil, err
	}
	var out []*schema.LinkedMemory
	for _, name := range names {
		m, err := r.Read(name)
		if err != nil {
			logging.Get(logging.CategoryStore).Warn("Skipping unreadable memory %s: %v", name, err)
			continue
		}
		out = append(out, m)
	}
	return out, nil
}
