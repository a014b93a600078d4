package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/localledger/ledger/internal/ledger/daemon"
	"github.com/localledger/ledger/internal/ledger/dashboard"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Run one sync pass now",
	Long: `Push unsynced transactions to the remote replica and pull
transactions recorded on other devices.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		defer a.Close()

		stack, err := a.buildSyncStack(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		defer stack.Close()

		start := time.Now()
		stack.coord.RunInitialSync(ctx)

		st, err := stack.coord.Status(ctx)
		if err != nil {
			fatalf("failed to read status: %v", err)
		}

		elapsed := time.Since(start).Round(time.Millisecond)
		if st.Unsynced == 0 {
			fmt.Printf("%s Sync complete in %v, %d transactions up to date\n",
				okStyle.Render("✓"), elapsed, st.Total)
		} else {
			fmt.Printf("%s Sync finished in %v with %d transactions still unsynced\n",
				warnStyle.Render("⚠"), elapsed, st.Unsynced)
		}
	},
}

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "sync",
	Short:   "Show ledger status",
	Long: `Display the local database location and sync counters.

Shows:
  - Database file location and size
  - Total, synced and unsynced transaction counts
  - Pending remote deletions`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		defer a.Close()

		st, err := a.store.Status(ctx)
		if err != nil {
			fatalf("failed to read status: %v", err)
		}
		pending, err := a.store.PendingRemoteDeletes(ctx)
		if err != nil {
			fatalf("failed to read pending deletes: %v", err)
		}

		fmt.Printf("\nLedger: %s\n", a.cfg.DBPath)
		if info, err := os.Stat(a.cfg.DBPath); err == nil {
			fmt.Printf("Size:   %.1f KB\n", float64(info.Size())/1024)
		}
		fmt.Printf("\nTransactions: %d\n", st.Total)
		fmt.Printf("  Synced:     %d\n", st.Synced)
		if st.Unsynced > 0 {
			fmt.Printf("  Unsynced:   %s\n", warnStyle.Render(fmt.Sprintf("%d", st.Unsynced)))
		} else {
			fmt.Printf("  Unsynced:   %d\n", st.Unsynced)
		}
		if len(pending) > 0 {
			fmt.Printf("  Pending remote deletions: %d\n", len(pending))
		}
		if a.cfg.RemoteURL == "" {
			fmt.Println(dimStyle.Render("\nremote_url not configured; sync is disabled"))
		}
		fmt.Println()
	},
}

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "sync",
	Short:   "Run the sync daemon",
	Long: `Run in the foreground, syncing automatically.

The daemon performs an initial pull-then-push pass, then syncs when
transactions change locally, when the remote becomes reachable again,
and on a periodic timer while unsynced work exists.

With --dashboard it also serves the WebSocket status dashboard.`,
	Run: func(cmd *cobra.Command, args []string) {
		withDashboard, _ := cmd.Flags().GetBool("dashboard")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		a, err := openApp(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		defer a.Close()

		stack, err := a.buildSyncStack(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		defer stack.Close()

		var unsubscribe func()
		if withDashboard {
			server := dashboard.NewServer(&dashboard.Config{
				Port:   a.cfg.DashboardPort,
				Logger: a.logs.Component("dashboard"),
			})
			if err := server.Start(); err != nil {
				fatalf("failed to start dashboard: %v", err)
			}
			defer server.Stop()

			unsubscribe = stack.coord.Subscribe(func(u daemon.PassUpdate) {
				server.BroadcastStatus(u.Status)
				server.BroadcastSyncComplete(u.Pushed, u.Imported, u.Duration)
			})
			fmt.Printf("Dashboard: ws://%s/ws\n", server.Addr())
		}
		if unsubscribe != nil {
			defer unsubscribe()
		}

		fmt.Printf("Sync daemon running (interval %s). Press Ctrl+C to stop.\n", a.cfg.SyncInterval)

		stack.coord.RunInitialSync(ctx)
		stack.coord.StartAutoSync(ctx)

		<-ctx.Done()
		fmt.Println("\nShutting down...")
	},
}

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	GroupID: "advanced",
	Short:   "Serve the WebSocket status dashboard",
	Long: `Serve a WebSocket endpoint broadcasting ledger status.

Messages:
- status: total, synced and unsynced transaction counts
- sync_complete: a sync pass finished

Connect with a WebSocket client:
  ws://localhost:8080/ws`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		a, err := openApp(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		defer a.Close()

		port, _ := cmd.Flags().GetInt("port")
		if !cmd.Flags().Changed("port") {
			port = a.cfg.DashboardPort
		}

		server := dashboard.NewServer(&dashboard.Config{
			Port:   port,
			Logger: a.logs.Component("dashboard"),
		})
		if err := server.Start(); err != nil {
			fatalf("failed to start dashboard: %v", err)
		}

		fmt.Printf("Dashboard server started on http://localhost:%d\n", port)
		fmt.Printf("WebSocket endpoint: ws://localhost:%d/ws\n", port)
		fmt.Printf("Health check: http://localhost:%d/health\n", port)
		fmt.Println("\nPress Ctrl+C to stop...")

		// Publish a status snapshot for clients that connect before any
		// sync pass runs.
		if st, err := a.store.Status(ctx); err == nil {
			server.BroadcastStatus(st)
		}

		<-ctx.Done()

		fmt.Println("\nShutting down dashboard server...")
		if err := server.Stop(); err != nil {
			fatalf("shutdown failed: %v", err)
		}
	},
}

func init() {
	daemonCmd.Flags().Bool("dashboard", false, "also serve the WebSocket dashboard")
	dashboardCmd.Flags().Int("port", 8080, "port to listen on")

	rootCmd.AddCommand(syncCmd, statusCmd, daemonCmd, dashboardCmd)
}
