// Package scheduler computes parallel execution batches for a phase's
// subtasks: a dependency level per task via DFS, then fixed-size chunks per
// level bounded by the concurrency limit.
package scheduler

import (
	"fmt"

	"conductor/internal/logging"
	"conductor/internal/schema"
)

// Config bounds how groups are emitted.
type Config struct {
	MaxConcurrentAgents int
	WaitForAll          bool
}

// DefaultMaxConcurrentAgents bounds a group when no limit is configured.
const DefaultMaxConcurrentAgents = 4

// ParallelGroup is a set of tasks at one dependency level that may execute
// concurrently.
type ParallelGroup struct {
	GroupID    string           `json:"groupId"`
	Tasks      []schema.Subtask `json:"tasks"`
	WaitForAll bool             `json:"waitForAll"`
}

// Schedule levels a phase's subtasks by dependency depth and chunks each
// level into groups of at most MaxConcurrentAgents tasks. Group order is
// strictly ascending by level; within a level, input order is preserved.
//
// Cycles never fail the schedule: the task that closes a cycle is assigned
// level 0 and a warning is returned. Dependency ids that do not resolve
// within the phase are ignored for leveling.
func Schedule(phase *schema.Phase, cfg Config) ([]ParallelGroup, []string) {
	if cfg.MaxConcurrentAgents <= 0 {
		cfg.MaxConcurrentAgents = DefaultMaxConcurrentAgents
	}

	byID := make(map[string]*schema.Subtask, len(phase.Subtasks))
	for i := range phase.Subtasks {
		byID[phase.Subtasks[i].ID] = &phase.Subtasks[i]
	}

	lv := &leveler{
		byID:     byID,
		levels:   make(map[string]int, len(phase.Subtasks)),
		visiting: make(map[string]bool),
	}
	for i := range phase.Subtasks {
		lv.level(phase.Subtasks[i].ID)
	}

	maxLevel := 0
	for _, l := range lv.levels {
		if l > maxLevel {
			maxLevel = l
		}
	}

	var groups []ParallelGroup
	for level := 0; level <= maxLevel; level++ {
		var tasks []schema.Subtask
		for _, st := range phase.Subtasks {
			if lv.levels[st.ID] == level {
				tasks = append(tasks, st)
			}
		}
		for chunk := 0; chunk*cfg.MaxConcurrentAgents < len(tasks); chunk++ {
			start := chunk * cfg.MaxConcurrentAgents
			end := start + cfg.MaxConcurrentAgents
			if end > len(tasks) {
				end = len(tasks)
			}
			groups = append(groups, ParallelGroup{
				GroupID:    fmt.Sprintf("%s-L%d-G%d", phase.ID, level, chunk),
				Tasks:      tasks[start:end],
				WaitForAll: cfg.WaitForAll,
			})
		}
	}

	logging.SchedulerDebug("Phase %s: %d tasks -> %d groups (%d levels)",
		phase.ID, len(phase.Subtasks), len(groups), maxLevel+1)
	for _, w := range lv.warnings {
		logging.Get(logging.CategoryScheduler).Warn("%s", w)
	}
	return groups, lv.warnings
}

// leveler computes dependency levels with cycle tolerance.
type leveler struct {
	byID     map[string]*schema.Subtask
	levels   map[string]int
	visiting map[string]bool
	warnings []string
}

// level returns the dependency depth of a task: 0 with no resolvable
// dependencies, otherwise 1 + the deepest dependency. A task re-entered
// while still on the DFS stack closes a cycle and is pinned to level 0.
func (lv *leveler) level(id string) int {
	if l, ok := lv.levels[id]; ok {
		return l
	}
	if lv.visiting[id] {
		lv.warnings = append(lv.warnings,
			fmt.Sprintf("dependency cycle detected at task %q; treating as level 0", id))
		lv.levels[id] = 0
		return 0
	}

	task, ok := lv.byID[id]
	if !ok {
		return -1 // unresolved within the phase; caller ignores
	}

	lv.visiting[id] = true
	max := -1
	for _, dep := range task.Dependencies {
		if _, inPhase := lv.byID[dep]; !inPhase {
			continue
		}
		if dl := lv.level(dep); dl > max {
			max = dl
		}
	}
	delete(lv.visiting, id)

	// A cycle participant may have been pinned while we recursed.
	if l, ok := lv.levels[id]; ok {
		return l
	}
	lv.levels[id] = max + 1
	return max + 1
}

// CanExecute reports whether every dependency of task appears in completed.
func CanExecute(task *schema.Subtask, completed map[string]bool) bool {
	for _, dep := range task.Dependencies {
		if !completed[dep] {
			return false
		}
	}
	return true
}
