package artifacts

import (
	"fmt"
	"sort"
	"strings"

	"conductor/internal/logging"
	"conductor/internal/schema"
	"conductor/internal/sessionstore"
)

const gatePrefix = "gate-"

// GateRepo persists gate results: a timestamped canonical file per check plus
// an overwritten gate-<phaseId>-latest.json snapshot for fast reads.
type GateRepo struct {
	store    *sessionstore.Store
	registry *schema.Registry
}

// Write validates and persists a gate result.
func (r *GateRepo) Write(g *schema.GateResult) error {
	if g.CheckedAt == "" {
		g.CheckedAt = schema.Now()
	}
	if verrs := r.registry.ValidateGateResult(g); len(verrs) > 0 {
		return &ValidationFailure{Kind: schema.KindGate, Errors: verrs}
	}

	canonical := fmt.Sprintf("gates/%s%s-%s.json",
		gatePrefix, g.PhaseID, schema.SanitizeTimestamp(g.CheckedAt))
	if err := r.store.WriteJSON(canonical, g); err != nil {
		return err
	}
	if err := r.store.WriteJSON(fmt.Sprintf("gates/%s%s-latest.json", gatePrefix, g.PhaseID), g); err != nil {
		return err
	}
	if err := r.store.AppendHistory(schema.KindGate, g.PhaseID); err != nil {
		return err
	}

	logging.GateDebug("Gate result for phase %s written (passed=%v)", g.PhaseID, g.Passed)
	return nil
}

// Read returns the latest snapshot for a phase.
func (r *GateRepo) Read(phaseID string) (*schema.GateResult, error) {
	var g schema.GateResult
	if err := r.store.ReadJSON(fmt.Sprintf("gates/%s%s-latest.json", gatePrefix, phaseID), &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// List returns historical gate results, newest first, optionally filtered to
// one phase. Latest snapshots are excluded; they duplicate a canonical file.
func (r *GateRepo) List(phaseID string) ([]*schema.GateResult, error) {
	names, err := r.store.ListDir("gates", func(name string) bool {
		if !strings.HasPrefix(name, gatePrefix) || !strings.HasSuffix(name, ".json") {
			return false
		}
		if strings.HasSuffix(name, "-latest.json") {
			return false
		}
		if phaseID != "" && !strings.HasPrefix(name, gatePrefix+phaseID+"-") {
			return false
		}
		return true
	})
	if err != nil {
		if sessionstore.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []*schema.GateResult
	for _, name := range names {
		var g schema.GateResult
		if err := r.store.ReadJSON("gates/"+name, &g); err != nil {
			logging.Get(logging.CategoryGate).Warn("Skipping unreadable gate result %s: %v", name, err)
			continue
		}
		out = append(out, &g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckedAt > out[j].CheckedAt })
	return out, nil
}
