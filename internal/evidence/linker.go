// Package evidence auto-populates evidence chains from handoff artifacts,
// so completed work stays traceable to its requirement.
package evidence

import (
	"fmt"

	"conductor/internal/artifacts"
	"conductor/internal/logging"
	"conductor/internal/schema"
	"conductor/internal/sessionstore"
)

// Linker populates evidence chains when handoffs are written. It is wired as
// the handoff repository's post-write hook; its failures are logged and never
// surface as handoff write failures.
type Linker struct {
	repo *artifacts.EvidenceRepo
}

// NewLinker builds a linker over the session's evidence repository.
func NewLinker(repo *artifacts.EvidenceRepo) *Linker {
	return &Linker{repo: repo}
}

// LinkHandoff opens or creates the evidence chain for every task a handoff
// reports on and populates the stage matching the emitting agent type.
// Stage population is idempotent: re-linking the same stage overwrites.
// Handoffs from an agent type with no stage (orchestrator) leave evidence
// untouched; no chain is created for them.
func (l *Linker) LinkHandoff(h *schema.Handoff) {
	for _, res := range h.Results {
		if err := l.linkResult(h, res); err != nil {
			logging.Get(logging.CategoryEvidence).Warn(
				"Evidence link failed for task %s: %v", res.TaskID, err)
		}
	}
}

func (l *Linker) linkResult(h *schema.Handoff, res schema.HandoffResult) error {
	chain, err := l.repo.Read(res.TaskID)
	created := false
	switch {
	case err == nil:
	case sessionstore.IsNotFound(err):
		chain = &schema.EvidenceChain{ChainID: res.TaskID}
		created = true
	default:
		return err
	}

	stage := &schema.EvidenceStage{
		Source:    fmt.Sprintf("%s/%s", h.Metadata.FromAgent.Type, h.Metadata.FromAgent.ID),
		Summary:   res.Summary,
		Timestamp: schema.Now(),
	}

	switch h.Metadata.FromAgent.Type {
	case schema.AgentAnalyst:
		chain.Analysis = stage
	case schema.AgentDeveloper:
		chain.Implementation = stage
	case schema.AgentBrowser:
		chain.Validation = stage
	default:
		logging.EvidenceDebug("No evidence stage for agent type %s (task %s)",
			h.Metadata.FromAgent.Type, res.TaskID)
		return nil
	}

	if err := l.repo.Write(chain, created); err != nil {
		return err
	}
	logging.Evidence("Linked %s stage for task %s (coverage now %.1f%%)",
		h.Metadata.FromAgent.Type, res.TaskID, chain.CoveragePercent)
	return nil
}
