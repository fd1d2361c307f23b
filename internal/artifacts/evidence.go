package artifacts

import (
	"fmt"
	"strings"

	"conductor/internal/logging"
	"conductor/internal/schema"
	"conductor/internal/sessionstore"
)

// EvidenceRepo persists evidence chain artifacts, keyed by chain id (which
// is the task id the chain traces).
type EvidenceRepo struct {
	store    *sessionstore.Store
	registry *schema.Registry
}

// Write validates and persists a chain. The journal entry records whether
// the chain was created or updated, which is the caller's call (the linker
// knows whether the chain existed).
func (r *EvidenceRepo) Write(c *schema.EvidenceChain, created bool) error {
	if c.SessionID == "" {
		c.SessionID = r.store.SessionID()
	}
	c.UpdatedAt = schema.Now()
	c.Recompute()

	if verrs := r.registry.ValidateEvidence(c); len(verrs) > 0 {
		return &ValidationFailure{Kind: schema.KindEvidence, Errors: verrs}
	}

	if err := r.store.WriteJSON(fmt.Sprintf("evidence/%s.json", c.ChainID), c); err != nil {
		return err
	}

	kind := schema.KindEvidenceUpdated
	if created {
		kind = schema.KindEvidenceCreated
	}
	if err := r.store.AppendHistory(kind, c.ChainID); err != nil {
		return err
	}

	logging.EvidenceDebug("Chain %s written (coverage=%.1f%%)", c.ChainID, c.CoveragePercent)
	return nil
}

// Read returns the chain with the given id.
func (r *EvidenceRepo) Read(chainID string) (*schema.EvidenceChain, error) {
	var c schema.EvidenceChain
	if err := r.store.ReadJSON(fmt.Sprintf("evidence/%s.json", chainID), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Exists reports whether a chain file is present.
func (r *EvidenceRepo) Exists(chainID string) bool {
	return r.store.Exists(fmt.Sprintf("evidence/%s.json", chainID))
}

// List returns the chain ids present in the session, in directory order.
func (r *EvidenceRepo) List() ([]string, error) {
	names, err := r.store.ListDir("evidence", func(name string) bool {
		return strings.HasSuffix(name, ".json")
	})
	if err != nil {
		if sessionstore.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	ids := make([]string, len(names))
	for i, n := range names {
		ids[i] = strings.TrimSuffix(n, ".json")
	}
	return ids, nil
}

// ReadAll returns every readable chain. Malformed files are skipped with a
// warning so one bad chain never poisons a coverage computation.
func (r *EvidenceRepo) ReadAll() ([]*schema.EvidenceChain, error) {
	ids, err := r.List()
	if err != nil {
		return nil, err
	}
	var out []*schema.EvidenceChain
	for _, id := range ids {
		c, err := r.Read(id)
		if err != nil {
			logging.Get(logging.CategoryEvidence).Warn("Skipping malformed evidence chain %s: %v", id, err)
			continue
		}
		out = append(out, c)
	}
	return out, nil
}
