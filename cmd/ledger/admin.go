package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var adminCmd = &cobra.Command{
	Use:     "admin",
	GroupID: "advanced",
	Short:   "Maintenance commands (requires debug: true)",
	Long: `Maintenance commands for development and troubleshooting.

These are destructive or bypass the normal sync coordinator and refuse
to run unless the config sets debug: true.`,
}

var adminResetCmd = &cobra.Command{
	Use:   "reset-db",
	Short: "Delete every local transaction",
	Long: `Remove all transactions and pending remote deletions from the
local database. Remote data is untouched.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		defer a.Close()
		requireDebug(a)

		if err := a.store.Reset(ctx); err != nil {
			fatalf("failed to reset database: %v", err)
		}
		fmt.Println("Local database reset.")
	},
}

var adminPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Run a push pass directly",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		defer a.Close()
		requireDebug(a)

		stack, err := a.buildSyncStack(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		defer stack.Close()

		if !stack.coord.Sync(ctx) {
			fmt.Println("Push skipped (offline, unauthenticated, or already running).")
			return
		}
		st, err := stack.coord.Status(ctx)
		if err != nil {
			fatalf("failed to read status: %v", err)
		}
		fmt.Printf("Push done: %d synced, %d unsynced\n", st.Synced, st.Unsynced)
	},
}

var adminPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Run a pull pass directly",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		defer a.Close()
		requireDebug(a)

		stack, err := a.buildSyncStack(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		defer stack.Close()

		// The initial pass is pull-then-push, which is exactly what a
		// manual pull wants: imports first, then their acknowledgments.
		stack.coord.RunInitialSync(ctx)

		st, err := stack.coord.Status(ctx)
		if err != nil {
			fatalf("failed to read status: %v", err)
		}
		fmt.Printf("Pull done: %d transactions locally\n", st.Total)
	},
}

func requireDebug(a *app) {
	if !a.cfg.Debug {
		a.Close()
		fatalf("admin commands require debug: true in the config")
	}
}

func init() {
	adminCmd.AddCommand(adminResetCmd, adminPushCmd, adminPullCmd)
	rootCmd.AddCommand(adminCmd)
}
