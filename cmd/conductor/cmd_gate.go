package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"conductor/internal/orchestrator"
	"conductor/internal/schema"
)

var gateCmd = &cobra.Command{
	Use:   "gate",
	Short: "Gate evaluation: check, advance, list, read",
}

var (
	flagGateCondition string
	flagGateMemory    string
	flagGateTypecheck bool
	flagGateTests     bool
	flagGateEvidence  bool
	flagGateCoverage  float64
)

// overrideCondition assembles the structured validation override from flags
// into a gate expression. Explicit --condition wins.
func overrideCondition() string {
	if flagGateCondition != "" {
		return flagGateCondition
	}
	var terms []string
	if flagGateTypecheck {
		terms = append(terms, "typecheck")
	}
	if flagGateTests {
		terms = append(terms, "tests")
	}
	if flagGateMemory != "" {
		terms = append(terms, fmt.Sprintf("memory(%s)", flagGateMemory))
	}
	if flagGateEvidence {
		terms = append(terms, "evidence_coverage(50)")
	}
	if flagGateCoverage > 0 {
		terms = append(terms, fmt.Sprintf("evidence_coverage(%g)", flagGateCoverage))
	}
	return strings.Join(terms, " AND ")
}

// attachObserver streams gate progress lines to stderr unless suppressed.
func attachObserver(c *orchestrator.Conductor) {
	if flagQuiet || flagJSON {
		return
	}
	c.SetObserver(func(line string) {
		fmt.Fprintln(os.Stderr, line)
	})
}

// renderGate prints a gate result and returns a non-nil error when the gate
// failed, so the process exits 1.
func renderGate(result *schema.GateResult) error {
	if flagJSON {
		if err := emit(result); err != nil {
			return err
		}
	} else {
		status := "PASSED"
		if !result.Passed {
			status = "FAILED"
		}
		fmt.Printf("gate %s: %s (%d check(s), %dms)\n", result.PhaseID, status, len(result.Results), result.Duration)
		for _, b := range result.Blockers {
			fmt.Printf("  blocker: %s\n", b)
		}
	}
	if !result.Passed {
		return fmt.Errorf("gate failed for phase %s", result.PhaseID)
	}
	return nil
}

var gateCheckCmd = &cobra.Command{
	Use:   "check <phaseId>",
	Short: "Evaluate a phase's gate condition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := conductor()
		if err != nil {
			return err
		}
		attachObserver(c)
		result, err := c.CheckGate(cmd.Context(), args[0], overrideCondition())
		if err != nil {
			return err
		}
		return renderGate(result)
	},
}

var gateAdvanceCmd = &cobra.Command{
	Use:   "advance <phaseId>",
	Short: "Evaluate a phase's gate and advance on pass",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := conductor()
		if err != nil {
			return err
		}
		attachObserver(c)
		result, err := c.AdvancePhase(cmd.Context(), args[0], overrideCondition())
		if err != nil {
			return err
		}
		return renderGate(result)
	},
}

var gateListCmd = &cobra.Command{
	Use:   "list [phaseId]",
	Short: "List recorded gate results, newest first",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := conductor()
		if err != nil {
			return err
		}
		phaseID := ""
		if len(args) == 1 {
			phaseID = args[0]
		}
		results, err := c.ListGates(phaseID)
		if err != nil {
			return err
		}
		if flagJSON {
			return emit(results)
		}
		for _, g := range results {
			status := "PASSED"
			if !g.Passed {
				status = "FAILED"
			}
			fmt.Printf("%s  %-10s %s\n", g.CheckedAt, g.PhaseID, status)
		}
		return nil
	},
}

var gateReadCmd = &cobra.Command{
	Use:   "read <phaseId>",
	Short: "Read the latest gate result for a phase",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := conductor()
		if err != nil {
			return err
		}
		result, err := c.ReadGate(args[0])
		if err != nil {
			return err
		}
		return emit(result)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{gateCheckCmd, gateAdvanceCmd} {
		cmd.Flags().StringVar(&flagGateCondition, "condition", "", "gate expression overriding the phase's gateCondition")
		cmd.Flags().StringVar(&flagGateMemory, "memory", "", "require a memory matching this glob")
		cmd.Flags().BoolVar(&flagGateTypecheck, "typecheck", false, "require typecheck to pass")
		cmd.Flags().BoolVar(&flagGateTests, "tests", false, "require tests to pass")
		cmd.Flags().BoolVar(&flagGateEvidence, "evidence", false, "require evidence coverage >= 50")
		cmd.Flags().Float64Var(&flagGateCoverage, "coverage", 0, "require evidence coverage >= N")
	}

	gateCmd.AddCommand(gateCheckCmd, gateAdvanceCmd, gateListCmd, gateReadCmd)
}
