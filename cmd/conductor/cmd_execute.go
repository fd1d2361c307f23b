package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"conductor/internal/orchestrator"
)

var flagMaxAgents int

var executeCmd = &cobra.Command{
	Use:   "execute <phaseId>",
	Short: "Produce dispatch instructions for one phase",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := conductor()
		if err != nil {
			return err
		}
		pd, err := c.ExecutePhase(args[0], flagMaxAgents)
		if err != nil {
			return err
		}
		if flagJSON {
			return emit(pd)
		}
		printDispatch(pd)
		return nil
	},
}

var flagResumeFrom string

var executePlanCmd = &cobra.Command{
	Use:   "execute-plan",
	Short: "Produce dispatch instructions for every phase in plan order",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := conductor()
		if err != nil {
			return err
		}
		dispatches, err := c.ExecutePlan(flagResumeFrom, flagMaxAgents)
		if err != nil {
			return err
		}
		if flagJSON {
			return emit(dispatches)
		}
		for _, pd := range dispatches {
			printDispatch(pd)
		}
		return nil
	},
}

func printDispatch(pd *orchestrator.PhaseDispatch) {
	fmt.Printf("phase %s (%s): %d group(s)\n", pd.PhaseID, pd.PhaseName, len(pd.Instructions))
	for _, w := range pd.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
	for _, inst := range pd.Instructions {
		fmt.Printf("  %s\n", inst.Summary)
		for _, sp := range inst.Spawns {
			fmt.Printf("    [%s] %s\n", sp.AgentType, sp.Command)
		}
	}
}

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "Agent registry: list, kill",
}

var agentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered agents",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := conductor()
		if err != nil {
			return err
		}
		agents, err := c.ListAgents()
		if err != nil {
			return err
		}
		if flagJSON {
			return emit(agents)
		}
		for _, a := range agents {
			fmt.Printf("%-36s %-12s %-10s %s\n", a.ID, a.Type, a.Status, a.TaskID)
		}
		return nil
	},
}

var agentsKillCmd = &cobra.Command{
	Use:   "kill <agentId>",
	Short: "Mark a registered agent failed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := conductor()
		if err != nil {
			return err
		}
		return c.KillAgent(args[0])
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarize session, phase, agents, and token usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := conductor()
		if err != nil {
			return err
		}
		st, err := c.SessionStatus()
		if err != nil {
			return err
		}
		if flagJSON {
			return emit(st)
		}
		fmt.Printf("session:  %s\n", st.SessionID)
		fmt.Printf("state:    %s\n", st.State)
		if st.CurrentPhase != nil {
			fmt.Printf("phase:    %s (%s) %.0f%%\n", st.CurrentPhase.ID, st.CurrentPhase.Name, st.CurrentPhase.Progress)
		}
		if st.PlanID != "" {
			fmt.Printf("plan:     %s %s\n", st.PlanID, st.PlanName)
		}
		fmt.Printf("handoffs: %d\n", st.Handoffs)
		fmt.Printf("evidence: %d chain(s)\n", st.Evidence)
		if st.TokenUsage != nil {
			fmt.Printf("tokens:   %d/%d (%.1f%%)\n", st.TokenUsage.Consumed, st.TokenUsage.Limit, st.TokenUsage.Percentage)
		}
		for _, a := range st.Agents {
			fmt.Printf("agent:    %-12s %-10s %s\n", a.Type, a.Status, a.TaskID)
		}
		return nil
	},
}

func init() {
	executeCmd.Flags().IntVar(&flagMaxAgents, "max-agents", 0, "max concurrent agents per group (default from config)")
	executePlanCmd.Flags().IntVar(&flagMaxAgents, "max-agents", 0, "max concurrent agents per group (default from config)")
	executePlanCmd.Flags().StringVar(&flagResumeFrom, "resume-from", "", "start from this phase id")

	agentsCmd.AddCommand(agentsListCmd, agentsKillCmd)
}
