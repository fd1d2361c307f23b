// Package main implements the conductor CLI, the thin controller surface
// over the orchestration facade.
//
// Command implementations are split across cmd_*.go files:
//   - cmd_session.go   - session new|list|info|purge|watch
//   - cmd_artifacts.go - prompt, plan, handoff, state, memory
//   - cmd_gate.go      - gate check|advance|list|read
//   - cmd_execute.go   - execute, execute-plan, agents, status
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"conductor/internal/config"
	"conductor/internal/logging"
	"conductor/internal/orchestrator"
	"conductor/internal/sessionstore"
)

var (
	flagSession string
	flagBase    string
	flagConfig  string
	flagJSON    bool
	flagQuiet   bool

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "conductor",
	Short: "File-backed multi-agent workflow orchestration",
	Long: `conductor coordinates multi-agent software-engineering workflows:
plans, dispatch instructions, gate conditions, handoffs, and evidence
chains, all persisted as a session tree on disk.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; absence is not an error.
		_ = godotenv.Load()

		var err error
		cfg, err = config.Load(flagConfig)
		if err != nil {
			return err
		}
		cfg.ApplyEnv()
		if flagBase != "" {
			cfg.BasePath = flagBase
		}
		if err := logging.Initialize(cfg.BasePath, cfg.Logging.Debug, cfg.Logging.Level); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagSession, "session", "", "session id (default: $ORCH_SESSION, then latest)")
	rootCmd.PersistentFlags().StringVar(&flagBase, "base", "", "sessions base directory (default: $ORCH_BASE, then .conductor)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (conductor.json or .yaml)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "machine-readable output")
	rootCmd.PersistentFlags().BoolVar(&flagQuiet, "quiet", false, "suppress progress output")

	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(promptCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(handoffCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(memoryCmd)
	rootCmd.AddCommand(gateCmd)
	rootCmd.AddCommand(executeCmd)
	rootCmd.AddCommand(executePlanCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		emitError(err)
		os.Exit(1)
	}
}

// emitError renders a failure: a structured JSON body under --json, a plain
// message otherwise.
func emitError(err error) {
	if flagJSON {
		body, _ := json.MarshalIndent(orchestrator.Failure(err), "", "  ")
		fmt.Fprintln(os.Stderr, string(body))
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
}

// manager returns the session lifecycle manager for the configured base.
func manager() *sessionstore.Manager {
	return sessionstore.NewManager(cfg.BasePath, cfg.MaxHistoryItems)
}

// resolveSession picks the session to operate on: --session, then
// $ORCH_SESSION, then the most recently active session.
func resolveSession() (string, error) {
	if flagSession != "" {
		return flagSession, nil
	}
	if env := os.Getenv("ORCH_SESSION"); env != "" {
		return env, nil
	}
	latest, err := manager().Latest()
	if err != nil {
		return "", err
	}
	if latest == "" {
		return "", fmt.Errorf("no sessions exist; run 'conductor session new' first")
	}
	return latest, nil
}

// conductor binds the facade to the resolved session.
func conductor() (*orchestrator.Conductor, error) {
	sessionID, err := resolveSession()
	if err != nil {
		return nil, err
	}
	return orchestrator.Open(cfg, sessionID)
}

// emit renders a value as pretty JSON (always under --json, and for
// documents in human mode too, since artifacts are JSON-native).
func emit(v interface{}) error {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(body))
	return nil
}

// decodeFile loads a JSON or YAML document into out. YAML goes through a
// JSON round-trip so the schema structs' json tags apply.
func decodeFile(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		var raw interface{}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		jsonData, err := json.Marshal(raw)
		if err != nil {
			return err
		}
		return json.Unmarshal(jsonData, out)
	default:
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return nil
	}
}
