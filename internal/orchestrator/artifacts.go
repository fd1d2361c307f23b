package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"

	"conductor/internal/artifacts"
	"conductor/internal/schema"
)

// WritePrompt records the originating user intent.
func (c *Conductor) WritePrompt(description string, request map[string]interface{}) (*schema.Prompt, error) {
	p := &schema.Prompt{Description: description, Request: request}
	if err := c.repos.Prompts.Write(p); err != nil {
		return nil, err
	}
	return p, nil
}

// ReadPrompt returns a prompt by id, or the current prompt when id is empty.
func (c *Conductor) ReadPrompt(id string) (*schema.Prompt, error) {
	return c.repos.Prompts.Read(id)
}

// WritePlan validates and persists a plan.
func (c *Conductor) WritePlan(p *schema.Plan) error {
	return c.repos.Plans.Write(p)
}

// ReadPlan returns a plan by id, or the current plan when id is empty.
func (c *Conductor) ReadPlan(id string) (*schema.Plan, error) {
	return c.repos.Plans.Read(id)
}

// WriteHandoff validates and persists a handoff; the evidence linker runs as
// its post-write hook.
func (c *Conductor) WriteHandoff(h *schema.Handoff) error {
	return c.repos.Handoffs.Write(h)
}

// ReadHandoff returns a handoff by id, or the latest when id is empty.
func (c *Conductor) ReadHandoff(id string) (*schema.Handoff, error) {
	return c.repos.Handoffs.Read(id)
}

// ListHandoffs returns handoff summaries, newest first.
func (c *Conductor) ListHandoffs() ([]artifacts.HandoffSummary, error) {
	return c.repos.Handoffs.List()
}

// ReadState returns the orchestrator state, initializing an idle one when
// none exists yet.
func (c *Conductor) ReadState() (*schema.OrchestratorState, error) {
	return c.repos.State.ReadOrInit()
}

// WriteState persists orchestrator state, archiving the prior document.
func (c *Conductor) WriteState(st *schema.OrchestratorState) error {
	return c.repos.State.Write(st)
}

// LinkMemory binds an external knowledge artifact to the session. With
// extract set, the source file is read and any traceability data found in it
// is recorded on the link.
func (c *Conductor) LinkMemory(name, sourcePath, summary string, forAgents []schema.AgentType, extract bool) (*schema.LinkedMemory, error) {
	m := &schema.LinkedMemory{
		MemoryName: name,
		SourcePath: sourcePath,
		Summary:    summary,
		ForAgents:  forAgents,
	}
	if extract {
		td, err := extractTraceability(sourcePath)
		if err != nil {
			return nil, fmt.Errorf("failed to extract traceability from %s: %w", sourcePath, err)
		}
		m.TraceabilityData = td
	}
	if err := c.repos.Memories.Write(m); err != nil {
		return nil, err
	}
	return m, nil
}

// extractTraceability pulls the well-known traceability keys out of a memory
// source document. Absent keys are simply absent; a missing file is an error.
func extractTraceability(path string) (*schema.TraceabilityData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc struct {
		TraceabilityData *schema.TraceabilityData `json:"traceabilityData"`
		AnalyzedSymbols  []string                 `json:"analyzed_symbols"`
		EntryPoints      []string                 `json:"entry_points"`
		DataFlowMap      map[string]string        `json:"data_flow_map"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.TraceabilityData != nil {
		return doc.TraceabilityData, nil
	}
	td := &schema.TraceabilityData{
		AnalyzedSymbols: doc.AnalyzedSymbols,
		EntryPoints:     doc.EntryPoints,
		DataFlowMap:     doc.DataFlowMap,
	}
	if len(td.AnalyzedSymbols) == 0 && len(td.EntryPoints) == 0 && len(td.DataFlowMap) == 0 {
		return nil, nil
	}
	return td, nil
}

// ListMemories returns the linked memory names.
func (c *Conductor) ListMemories() ([]string, error) {
	return c.repos.Memories.List()
}

// GetMemory returns one linked memory by name.
func (c *Conductor) GetMemory(name string) (*schema.LinkedMemory, error) {
	return c.repos.Memories.Read(name)
}

// ReadEvidence returns one evidence chain by id.
func (c *Conductor) ReadEvidence(chainID string) (*schema.EvidenceChain, error) {
	return c.repos.Evidence.Read(chainID)
}

// ListEvidence returns all evidence chain ids.
func (c *Conductor) ListEvidence() ([]string, error) {
	return c.repos.Evidence.List()
}
