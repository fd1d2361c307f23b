package dispatch

import (
	"fmt"
	"regexp"
	"strings"

	"conductor/internal/schema"
)

// TaskResult is the supervisor's report of one finished (or unfinished)
// task, fed back into dispatch for the next batch.
type TaskResult struct {
	TaskID     string
	Completed  bool
	TokensUsed int
	Handoff    *schema.Handoff
	Err        string
}

// Aggregated is the combined context built from prior task results.
type Aggregated struct {
	CompletedTasks  []string
	Handoffs        map[string]*schema.Handoff
	TotalTokensUsed int
	Errors          []string
}

// AggregateResults folds task results into the context later groups draw
// dependency substitutions from.
func AggregateResults(results []TaskResult) *Aggregated {
	agg := &Aggregated{Handoffs: make(map[string]*schema.Handoff)}
	for _, r := range results {
		agg.TotalTokensUsed += r.TokensUsed
		if r.Err != "" {
			agg.Errors = append(agg.Errors, fmt.Sprintf("%s: %s", r.TaskID, r.Err))
		}
		if !r.Completed {
			continue
		}
		agg.CompletedTasks = append(agg.CompletedTasks, r.TaskID)
		if r.Handoff != nil {
			agg.Handoffs[r.TaskID] = r.Handoff
		}
	}
	return agg
}

func (a *Aggregated) completed(taskID string) bool {
	for _, id := range a.CompletedTasks {
		if id == taskID {
			return true
		}
	}
	return false
}

var resultPlaceholderRe = regexp.MustCompile(`\{result:([A-Za-z0-9_.-]+)\}`)

// SubstituteResults replaces every {result:<taskId>} placeholder in a prompt
// with the dependency's aggregated context. A dependency with a handoff gets
// a structured block; one that completed without a handoff gets a neutral
// marker; an incomplete one gets a warning placeholder. Placeholders are
// never silently dropped.
func SubstituteResults(prompt string, agg *Aggregated) string {
	if agg == nil {
		agg = &Aggregated{}
	}
	return resultPlaceholderRe.ReplaceAllStringFunc(prompt, func(match string) string {
		taskID := resultPlaceholderRe.FindStringSubmatch(match)[1]
		if h, ok := agg.Handoffs[taskID]; ok {
			return resultBlock(taskID, h)
		}
		if agg.completed(taskID) {
			return fmt.Sprintf("[task %s completed, no handoff available]", taskID)
		}
		return fmt.Sprintf("[WARNING: dependency %s has not completed]", taskID)
	})
}

// resultBlock renders one dependency's handoff into the structured block
// substituted into downstream prompts.
func resultBlock(taskID string, h *schema.Handoff) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<result taskId=%q>\n", taskID)
	for _, res := range h.Results {
		if res.TaskID != taskID {
			continue
		}
		fmt.Fprintf(&b, "Summary: %s\n", res.Summary)
		if res.Output != "" {
			fmt.Fprintf(&b, "Output: %s\n", res.Output)
		}
	}
	if len(h.State.CriticalContext) > 0 {
		b.WriteString("Critical context:\n")
		for _, c := range h.State.CriticalContext {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}
	if h.State.ResumeInstructions != "" {
		fmt.Fprintf(&b, "Resume instructions: %s\n", h.State.ResumeInstructions)
	}
	if len(h.State.FilesModified) > 0 {
		b.WriteString("Files modified:\n")
		for _, f := range h.State.FilesModified {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}
	b.WriteString("</result>")
	return b.String()
}
