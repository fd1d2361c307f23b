// Package schema declares the artifact shapes persisted in a session and the
// validation primitives that guard every write.
//
// All artifacts are JSON documents. Identifiers are UUIDs unless noted,
// timestamps are RFC3339 strings, and session IDs use the lexicographic
// YYYYMMDD_HH-MM_<uuid> form so directory listings sort chronologically.
package schema

// Kind identifies an artifact family. It doubles as the history entry type.
type Kind string

const (
	KindPrompt   Kind = "prompt"
	KindPlan     Kind = "plan"
	KindHandoff  Kind = "handoff"
	KindState    Kind = "state"
	KindMemory   Kind = "memory"
	KindEvidence Kind = "evidence"
	KindGate     Kind = "gate"

	// Journal-only entry types.
	KindEvidenceCreated Kind = "evidence_created"
	KindEvidenceUpdated Kind = "evidence_updated"
	KindPhaseAdvanced   Kind = "phase_advanced"
)

// AgentType enumerates the worker roles a subtask can be dispatched to.
type AgentType string

const (
	AgentAnalyst      AgentType = "analyst"
	AgentDeveloper    AgentType = "developer"
	AgentBrowser      AgentType = "browser"
	AgentOrchestrator AgentType = "orchestrator"
)

// HandoffReason explains why an agent emitted a handoff.
type HandoffReason string

const (
	ReasonTaskComplete  HandoffReason = "task_complete"
	ReasonBlocked       HandoffReason = "blocked"
	ReasonNeedsReview   HandoffReason = "needs_review"
	ReasonError         HandoffReason = "error"
	ReasonPhaseComplete HandoffReason = "phase_complete"
)

// AgentStatus is the lifecycle state of one registered agent.
type AgentStatus string

const (
	AgentIdle      AgentStatus = "idle"
	AgentRunning   AgentStatus = "running"
	AgentCompleted AgentStatus = "completed"
	AgentFailed    AgentStatus = "failed"
)

// ResultStatus is the per-task outcome reported inside a handoff.
type ResultStatus string

const (
	ResultCompleted ResultStatus = "completed"
	ResultPartial   ResultStatus = "partial"
	ResultFailed    ResultStatus = "failed"
	ResultSkipped   ResultStatus = "skipped"
)

// Prompt captures the originating user intent for a session.
type Prompt struct {
	ID          string                 `json:"id" validate:"required,uuid4"`
	SessionID   string                 `json:"sessionId" validate:"required"`
	Description string                 `json:"description" validate:"required"`
	Request     map[string]interface{} `json:"request,omitempty"`
	CreatedAt   string                 `json:"createdAt" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
}

// Plan is the declarative description of a whole orchestration run: an
// ordered list of phases, each holding ordered subtasks.
type Plan struct {
	ID        string  `json:"id" validate:"required,uuid4"`
	SessionID string  `json:"sessionId" validate:"required"`
	Name      string  `json:"name,omitempty"`
	Phases    []Phase `json:"phases" validate:"required,min=1,dive"`
	CreatedAt string  `json:"createdAt" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
}

// Phase groups subtasks behind a shared advancement gate.
type Phase struct {
	ID             string    `json:"id" validate:"required"`
	Name           string    `json:"name" validate:"required"`
	Subtasks       []Subtask `json:"subtasks" validate:"dive"`
	GateCondition  string    `json:"gateCondition,omitempty"`
	Parallelizable bool      `json:"parallelizable,omitempty"`
}

// Subtask is one unit of agent work. Dependencies name subtask IDs that must
// complete first; they must reference earlier subtasks within the same plan.
type Subtask struct {
	ID              string    `json:"id" validate:"required"`
	AgentType       AgentType `json:"agentType" validate:"required,oneof=analyst developer browser orchestrator"`
	Prompt          string    `json:"prompt" validate:"required"`
	Dependencies    []string  `json:"dependencies,omitempty"`
	EstimatedTokens int       `json:"estimatedTokens,omitempty" validate:"omitempty,min=0"`
}

// Handoff is the structured output of a completed agent, consumed by the next
// agent and by the evidence linker.
type Handoff struct {
	ID       string          `json:"id" validate:"required,uuid4"`
	Metadata HandoffMetadata `json:"metadata" validate:"required"`
	Reason   HandoffReason   `json:"reason" validate:"required,oneof=task_complete blocked needs_review error phase_complete"`
	Results  []HandoffResult `json:"results" validate:"required,min=1,dive"`
	State    HandoffState    `json:"state"`
}

// HandoffMetadata identifies the session, plan, and agents on either side of
// a handoff.
type HandoffMetadata struct {
	SessionID string    `json:"sessionId" validate:"required"`
	PlanID    string    `json:"planId" validate:"required"`
	FromAgent AgentRef  `json:"fromAgent" validate:"required"`
	ToAgent   AgentSpec `json:"toAgent"`
	Timestamp string    `json:"timestamp" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	Version   string    `json:"version" validate:"required"`
}

// AgentRef names a concrete agent instance.
type AgentRef struct {
	Type AgentType `json:"type" validate:"required,oneof=analyst developer browser orchestrator"`
	ID   string    `json:"id" validate:"required"`
}

// AgentSpec names an agent role without a concrete instance.
type AgentSpec struct {
	Type AgentType `json:"type" validate:"omitempty,oneof=analyst developer browser orchestrator"`
}

// HandoffResult reports the outcome of one task inside a handoff.
type HandoffResult struct {
	TaskID  string       `json:"taskId" validate:"required"`
	Status  ResultStatus `json:"status" validate:"required,oneof=completed partial failed skipped"`
	Summary string       `json:"summary" validate:"required"`
	Output  string       `json:"output,omitempty"`
}

// HandoffState is the snapshot an agent leaves behind for whoever resumes
// its work. The dispatcher folds these fields into substituted prompts.
type HandoffState struct {
	CriticalContext    []string `json:"criticalContext,omitempty"`
	ResumeInstructions string   `json:"resumeInstructions,omitempty"`
	FilesModified      []string `json:"filesModified,omitempty"`
	TokensUsed         int      `json:"tokensUsed,omitempty" validate:"omitempty,min=0"`
}

// OrchestratorState is the single mutable document tracking run progress.
// Every successful write archives the prior value first.
type OrchestratorState struct {
	Status       string         `json:"status" validate:"required"`
	CurrentPhase *PhaseProgress `json:"currentPhase,omitempty"`
	Agents       []AgentState   `json:"agents" validate:"dive"`
	TokenUsage   *TokenUsage    `json:"tokenUsage,omitempty"`
	UpdatedAt    string         `json:"updatedAt,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// StatusComplete is the sentinel CurrentPhase ID once every phase has advanced.
const StatusComplete = "complete"

// PhaseProgress points at the active phase and how far through it the run is.
type PhaseProgress struct {
	ID       string  `json:"id" validate:"required"`
	Name     string  `json:"name"`
	Progress float64 `json:"progress" validate:"min=0,max=100"`
}

// AgentState is one row of the agent registry inside orchestrator state.
type AgentState struct {
	ID         string      `json:"id" validate:"required"`
	Type       AgentType   `json:"type" validate:"required,oneof=analyst developer browser orchestrator"`
	TaskID     string      `json:"taskId,omitempty"`
	Status     AgentStatus `json:"status" validate:"required,oneof=idle running completed failed"`
	StartTime  string      `json:"startTime,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	TokensUsed int         `json:"tokensUsed,omitempty" validate:"omitempty,min=0"`
}

// TokenUsage summarizes budget consumption across the run.
type TokenUsage struct {
	Limit      int     `json:"limit" validate:"min=0"`
	Consumed   int     `json:"consumed" validate:"min=0"`
	Remaining  int     `json:"remaining"`
	Percentage float64 `json:"percentage" validate:"min=0,max=100"`
}

// LinkedMemory binds a named external knowledge artifact to the session.
type LinkedMemory struct {
	MemoryName       string            `json:"memoryName" validate:"required"`
	SourcePath       string            `json:"sourcePath,omitempty"`
	LinkedAt         string            `json:"linkedAt" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	ForAgents        []AgentType       `json:"forAgents,omitempty" validate:"dive,oneof=analyst developer browser orchestrator"`
	TraceabilityData *TraceabilityData `json:"traceabilityData,omitempty"`
	Summary          string            `json:"summary,omitempty"`
}

// TraceabilityData is the structured extract of an analyzed memory.
type TraceabilityData struct {
	AnalyzedSymbols []string          `json:"analyzed_symbols,omitempty"`
	EntryPoints     []string          `json:"entry_points,omitempty"`
	DataFlowMap     map[string]string `json:"data_flow_map,omitempty"`
}

// EvidenceChain links requirement, analysis, implementation, and validation
// for one task. CoveragePercent is derived from the populated stages.
type EvidenceChain struct {
	ChainID         string         `json:"chainId" validate:"required"`
	SessionID       string         `json:"sessionId,omitempty"`
	Requirement     *EvidenceStage `json:"requirement,omitempty"`
	Analysis        *EvidenceStage `json:"analysis,omitempty"`
	Implementation  *EvidenceStage `json:"implementation,omitempty"`
	Validation      *EvidenceStage `json:"validation,omitempty"`
	CoveragePercent float64        `json:"coveragePercent" validate:"min=0,max=100"`
	Valid           bool           `json:"valid"`
	UpdatedAt       string         `json:"updatedAt,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// EvidenceStage records who produced one stage of a chain and when.
type EvidenceStage struct {
	Source    string `json:"source"`
	Summary   string `json:"summary,omitempty"`
	Timestamp string `json:"timestamp" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
}

// StageCount is the number of stages an evidence chain can populate.
const StageCount = 4

// Stages returns the chain's stage pointers in canonical order.
func (c *EvidenceChain) Stages() []*EvidenceStage {
	return []*EvidenceStage{c.Requirement, c.Analysis, c.Implementation, c.Validation}
}

// Recompute refreshes CoveragePercent and Valid from the populated stages.
// Coverage is (populated/4)*100 rounded to one decimal; a chain is valid once
// at least half its stages are populated.
func (c *EvidenceChain) Recompute() {
	populated := 0
	for _, s := range c.Stages() {
		if s != nil {
			populated++
		}
	}
	pct := float64(populated) / float64(StageCount) * 100
	c.CoveragePercent = float64(int(pct*10+0.5)) / 10
	c.Valid = c.CoveragePercent >= 50
}

// GateResult is the recorded outcome of evaluating a phase gate.
type GateResult struct {
	PhaseID   string         `json:"phaseId" validate:"required"`
	Passed    bool           `json:"passed"`
	CheckedAt string         `json:"checkedAt" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	Results   []CheckOutcome `json:"results"`
	Blockers  []string       `json:"blockers"`
	Duration  int64          `json:"duration,omitempty"`
}

// CheckOutcome is one evaluated gate atom.
type CheckOutcome struct {
	Check   string `json:"check"`
	Passed  bool   `json:"passed"`
	Message string `json:"message,omitempty"`
}

// HistoryEntry is one line of the append-only session journal.
type HistoryEntry struct {
	Timestamp string `json:"timestamp"`
	Type      Kind   `json:"type"`
	ID        string `json:"id"`
}
