package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"conductor/internal/orchestrator"
	"conductor/internal/sessionstore"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Session lifecycle: new, list, info, purge, watch",
}

var sessionNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a session and print its id",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := orchestrator.NewSession(cfg)
		if err != nil {
			return err
		}
		if flagJSON {
			return emit(map[string]string{"sessionId": c.SessionID()})
		}
		fmt.Println(c.SessionID())
		return nil
	},
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List session ids, oldest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := manager().List()
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

var sessionInfoCmd = &cobra.Command{
	Use:   "info [sessionId]",
	Short: "Show a session's age and recent history",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			flagSession = args[0]
		}
		sessionID, err := resolveSession()
		if err != nil {
			return err
		}

		m := manager()
		age, err := m.Age(sessionID)
		if err != nil {
			return err
		}
		store, err := m.Open(sessionID)
		if err != nil {
			return err
		}
		entries, err := store.ReadHistory(10)
		if err != nil {
			return err
		}

		info := map[string]interface{}{
			"sessionId": sessionID,
			"ageDays":   age,
			"history":   entries,
		}
		if flagJSON {
			return emit(info)
		}
		fmt.Printf("session: %s (age: %d day(s))\n", sessionID, age)
		for _, e := range entries {
			fmt.Printf("  %s  %-16s %s\n", e.Timestamp, e.Type, e.ID)
		}
		return nil
	},
}

var (
	flagPurgeDays   int
	flagPurgeKeep   int
	flagPurgeDryRun bool
)

var sessionPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete old sessions, always keeping the newest few",
	RunE: func(cmd *cobra.Command, args []string) error {
		purged, err := manager().PurgeOld(flagPurgeDays, flagPurgeKeep, flagPurgeDryRun)
		if err != nil {
			return err
		}
		if flagJSON {
			return emit(map[string]interface{}{"purged": purged, "dryRun": flagPurgeDryRun})
		}
		verb := "purged"
		if flagPurgeDryRun {
			verb = "would purge"
		}
		if len(purged) == 0 {
			fmt.Printf("%s nothing\n", verb)
			return nil
		}
		for _, n := range purged {
			fmt.Printf("%s %s\n", verb, n)
		}
		return nil
	},
}

var sessionWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream artifact events for the session until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := conductor()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if !flagQuiet {
			fmt.Fprintf(os.Stderr, "watching session %s (ctrl-c to stop)\n", c.SessionID())
		}
		return c.Watch(ctx, func(ev sessionstore.Event) {
			if flagJSON {
				_ = emit(ev)
				return
			}
			fmt.Printf("%-7s %-8s %s\n", ev.Op, ev.Kind, ev.Rel)
		})
	},
}

func init() {
	sessionPurgeCmd.Flags().IntVar(&flagPurgeDays, "older-than", 7, "purge sessions older than this many days")
	sessionPurgeCmd.Flags().IntVar(&flagPurgeKeep, "keep", 3, "always keep this many newest sessions")
	sessionPurgeCmd.Flags().BoolVar(&flagPurgeDryRun, "dry-run", false, "report without deleting")

	sessionCmd.AddCommand(sessionNewCmd)
	sessionCmd.AddCommand(sessionListCmd)
	sessionCmd.AddCommand(sessionInfoCmd)
	sessionCmd.AddCommand(sessionPurgeCmd)
	sessionCmd.AddCommand(sessionWatchCmd)
}
