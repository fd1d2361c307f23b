// Package dispatch turns scheduled parallel groups into dispatch
// instructions: shell-escaped spawn commands for the external agent runner,
// token estimates, and dependency-substituted prompts.
//
// The dispatcher is advisory. It never refuses to emit instructions; budget
// overruns are flagged in the instruction summary only.
package dispatch

import (
	"fmt"
	"strings"

	"conductor/internal/logging"
	"conductor/internal/scheduler"
	"conductor/internal/schema"
)

// Spawn is one agent invocation the supervisor should launch.
type Spawn struct {
	TaskID          string           `json:"taskId"`
	AgentType       schema.AgentType `json:"agentType"`
	Command         string           `json:"command"`
	RunInBackground bool             `json:"runInBackground"`
}

// Instruction is the dispatch plan for one parallel group.
type Instruction struct {
	GroupID         string  `json:"groupId"`
	AgentCount      int     `json:"agentCount"`
	WaitForAll      bool    `json:"waitForAll"`
	Spawns          []Spawn `json:"spawns"`
	EstimatedTokens int     `json:"estimatedTokens"`
	Summary         string  `json:"summary"`
}

// Dispatcher builds instructions for a configured agent runner binary.
type Dispatcher struct {
	runner string
	budget int
}

// NewDispatcher builds a dispatcher. budget <= 0 disables budget flagging.
func NewDispatcher(runnerCommand string, tokenBudget int) *Dispatcher {
	if runnerCommand == "" {
		runnerCommand = "agent-runner"
	}
	return &Dispatcher{runner: runnerCommand, budget: tokenBudget}
}

// Instructions converts scheduled groups into dispatch instructions,
// substituting {result:<taskId>} placeholders from the aggregated context.
// usedTokens is what the run has consumed so far; overruns are flagged in
// the summary, never blocked.
func (d *Dispatcher) Instructions(groups []scheduler.ParallelGroup, agg *Aggregated, usedTokens int) []Instruction {
	instructions := make([]Instruction, 0, len(groups))
	running := usedTokens
	for _, g := range groups {
		inst := d.instruction(g, agg)
		running += inst.EstimatedTokens
		if d.budget > 0 && running > d.budget {
			inst.Summary += fmt.Sprintf(" [exceeds token budget: %d > %d]", running, d.budget)
		}
		instructions = append(instructions, inst)
	}
	return instructions
}

func (d *Dispatcher) instruction(g scheduler.ParallelGroup, agg *Aggregated) Instruction {
	spawns := make([]Spawn, 0, len(g.Tasks))
	estimated := 0
	for _, task := range g.Tasks {
		prompt := SubstituteResults(task.Prompt, agg)
		spawns = append(spawns, Spawn{
			TaskID:    task.ID,
			AgentType: task.AgentType,
			Command:   d.spawnCommand(task, prompt),
		})
		estimated += task.EstimatedTokens
	}

	inst := Instruction{
		GroupID:         g.GroupID,
		AgentCount:      len(spawns),
		WaitForAll:      g.WaitForAll,
		Spawns:          spawns,
		EstimatedTokens: estimated,
		Summary:         fmt.Sprintf("group %s: %d agent(s), ~%d tokens", g.GroupID, len(spawns), estimated),
	}
	logging.DispatchDebug("Built instruction for %s (%d spawns)", g.GroupID, len(spawns))
	return inst
}

// spawnCommand renders the shell invocation of the agent runner for one task.
func (d *Dispatcher) spawnCommand(task schema.Subtask, prompt string) string {
	parts := []string{
		d.runner,
		"--agent", shellEscape(string(task.AgentType)),
		"--task", shellEscape(task.ID),
		"--prompt", shellEscape(prompt),
	}
	return strings.Join(parts, " ")
}

// WithinBudget reports whether spending estimated more tokens stays inside
// budget. A non-positive budget is unlimited.
func WithinBudget(usedTokens, estimatedTokens, budget int) bool {
	if budget <= 0 {
		return true
	}
	return usedTokens+estimatedTokens <= budget
}
