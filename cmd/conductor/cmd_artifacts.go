package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"conductor/internal/schema"
)

// prompt

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Prompt artifacts: write, read",
}

var promptWriteCmd = &cobra.Command{
	Use:   "write <description>",
	Short: "Record the originating user intent",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := conductor()
		if err != nil {
			return err
		}
		p, err := c.WritePrompt(strings.Join(args, " "), nil)
		if err != nil {
			return err
		}
		if flagJSON {
			return emit(p)
		}
		fmt.Println(p.ID)
		return nil
	},
}

var promptReadCmd = &cobra.Command{
	Use:   "read [id]",
	Short: "Read a prompt (current when id is omitted)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := conductor()
		if err != nil {
			return err
		}
		id := ""
		if len(args) == 1 {
			id = args[0]
		}
		p, err := c.ReadPrompt(id)
		if err != nil {
			return err
		}
		return emit(p)
	},
}

// plan

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Plan artifacts: write, read",
}

var planWriteCmd = &cobra.Command{
	Use:   "write <file>",
	Short: "Validate and persist a plan from a JSON or YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := conductor()
		if err != nil {
			return err
		}
		var plan schema.Plan
		if err := decodeFile(args[0], &plan); err != nil {
			return err
		}
		if err := c.WritePlan(&plan); err != nil {
			return err
		}
		if flagJSON {
			return emit(map[string]string{"planId": plan.ID})
		}
		fmt.Println(plan.ID)
		return nil
	},
}

var planReadCmd = &cobra.Command{
	Use:   "read [id]",
	Short: "Read a plan (current when id is omitted)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := conductor()
		if err != nil {
			return err
		}
		id := ""
		if len(args) == 1 {
			id = args[0]
		}
		plan, err := c.ReadPlan(id)
		if err != nil {
			return err
		}
		return emit(plan)
	},
}

// handoff

var handoffCmd = &cobra.Command{
	Use:   "handoff",
	Short: "Handoff artifacts: write, read, list",
}

var handoffWriteCmd = &cobra.Command{
	Use:   "write <file>",
	Short: "Validate and persist a handoff from a JSON or YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := conductor()
		if err != nil {
			return err
		}
		var h schema.Handoff
		if err := decodeFile(args[0], &h); err != nil {
			return err
		}
		if err := c.WriteHandoff(&h); err != nil {
			return err
		}
		if flagJSON {
			return emit(map[string]string{"handoffId": h.ID})
		}
		fmt.Println(h.ID)
		return nil
	},
}

var handoffReadCmd = &cobra.Command{
	Use:   "read [id]",
	Short: "Read a handoff (latest when id is omitted)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := conductor()
		if err != nil {
			return err
		}
		id := ""
		if len(args) == 1 {
			id = args[0]
		}
		h, err := c.ReadHandoff(id)
		if err != nil {
			return err
		}
		return emit(h)
	},
}

var handoffListCmd = &cobra.Command{
	Use:   "list",
	Short: "List handoffs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := conductor()
		if err != nil {
			return err
		}
		summaries, err := c.ListHandoffs()
		if err != nil {
			return err
		}
		if flagJSON {
			return emit(summaries)
		}
		for _, s := range summaries {
			fmt.Printf("%s  %-12s %s\n", s.Timestamp, s.FromAgentType, s.ID)
		}
		return nil
	},
}

// state

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Orchestrator state: read, write",
}

var stateReadCmd = &cobra.Command{
	Use:   "read",
	Short: "Read orchestrator state",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := conductor()
		if err != nil {
			return err
		}
		st, err := c.ReadState()
		if err != nil {
			return err
		}
		return emit(st)
	},
}

var stateWriteCmd = &cobra.Command{
	Use:   "write <file>",
	Short: "Validate and persist orchestrator state (prior value is archived)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := conductor()
		if err != nil {
			return err
		}
		var st schema.OrchestratorState
		if err := decodeFile(args[0], &st); err != nil {
			return err
		}
		return c.WriteState(&st)
	},
}

// memory

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Linked memories: link, list, get",
}

var (
	flagMemorySource  string
	flagMemoryAgents  []string
	flagMemoryExtract bool
)

var memoryLinkCmd = &cobra.Command{
	Use:   "link <name> [summary]",
	Short: "Bind an external knowledge artifact to the session",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := conductor()
		if err != nil {
			return err
		}
		summary := ""
		if len(args) == 2 {
			summary = args[1]
		}
		agents := make([]schema.AgentType, 0, len(flagMemoryAgents))
		for _, a := range flagMemoryAgents {
			agents = append(agents, schema.AgentType(a))
		}
		m, err := c.LinkMemory(args[0], flagMemorySource, summary, agents, flagMemoryExtract)
		if err != nil {
			return err
		}
		if flagJSON {
			return emit(m)
		}
		fmt.Printf("linked %s\n", m.MemoryName)
		return nil
	},
}

var memoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List linked memory names",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := conductor()
		if err != nil {
			return err
		}
		names, err := c.ListMemories()
		if err != nil {
			return err
		}
		if flagJSON {
			return emit(names)
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	},
}

var memoryGetCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Read one linked memory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := conductor()
		if err != nil {
			return err
		}
		m, err := c.GetMemory(args[0])
		if err != nil {
			return err
		}
		return emit(m)
	},
}

func init() {
	memoryLinkCmd.Flags().StringVar(&flagMemorySource, "source", "", "source path of the memory artifact")
	memoryLinkCmd.Flags().StringSliceVar(&flagMemoryAgents, "for", nil, "agent types the memory is for")
	memoryLinkCmd.Flags().BoolVar(&flagMemoryExtract, "extract", false, "extract traceability data from the source")

	promptCmd.AddCommand(promptWriteCmd, promptReadCmd)
	planCmd.AddCommand(planWriteCmd, planReadCmd)
	handoffCmd.AddCommand(handoffWriteCmd, handoffReadCmd, handoffListCmd)
	stateCmd.AddCommand(stateReadCmd, stateWriteCmd)
	memoryCmd.AddCommand(memoryLinkCmd, memoryListCmd, memoryGetCmd)
}
