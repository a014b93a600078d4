// Command ledger is a local-first personal ledger with remote sync.
package main

import (
	"context"
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"github.com/localledger/ledger/internal/config"
	"github.com/localledger/ledger/internal/ledger/daemon"
	"github.com/localledger/ledger/internal/ledger/db"
	"github.com/localledger/ledger/internal/ledger/identity"
	"github.com/localledger/ledger/internal/ledger/netmon"
	"github.com/localledger/ledger/internal/ledger/remote"
	syncer "github.com/localledger/ledger/internal/ledger/sync"
	"github.com/localledger/ledger/internal/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Local-first personal ledger",
	Long: `Track transactions in a local SQLite database that is always
authoritative, and sync them to a remote Postgres replica when one is
configured. Every command works offline; sync happens opportunistically.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/ledger/config.yaml)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "txn", Title: "Transactions:"},
		&cobra.Group{ID: "sync", Title: "Synchronization:"},
		&cobra.Group{ID: "advanced", Title: "Advanced:"},
	)
}

// app bundles what every command needs: config, loggers, the local store.
type app struct {
	cfg   *config.Config
	logs  *logging.Factory
	store *db.Store
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logs := logging.New(cfg.LogFile)

	store, err := db.Open(cfg.DBPath)
	if err != nil {
		logs.Close()
		return nil, err
	}
	if err := store.InitSchema(ctx); err != nil {
		store.Close()
		logs.Close()
		return nil, err
	}

	return &app{cfg: cfg, logs: logs, store: store}, nil
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.logs != nil {
		a.logs.Close()
	}
}

// syncStack holds the full reconciliation wiring for sync-capable commands.
type syncStack struct {
	remote *remote.Postgres
	probe  *netmon.Probe
	coord  *daemon.Coordinator
}

// buildSyncStack connects to the remote replica and assembles the
// coordinator. The caller owns the returned stack and must Close it.
func (a *app) buildSyncStack(ctx context.Context) (*syncStack, error) {
	if a.cfg.RemoteURL == "" {
		return nil, fmt.Errorf("remote_url is not configured; sync is disabled")
	}

	pg, err := remote.NewPostgres(ctx, a.cfg.RemoteURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to remote: %w", err)
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		pg.Close()
		return nil, fmt.Errorf("failed to ensure remote schema: %w", err)
	}

	probe := netmon.NewProbe(a.probeAddr(), a.cfg.ProbeInterval, 0)
	if err := probe.Start(ctx); err != nil {
		pg.Close()
		return nil, err
	}

	rec := syncer.New(a.store, pg, identity.NewStatic(a.cfg.Account), probe, a.logs.Component("sync"))
	coord := daemon.New(a.store, rec, probe, &daemon.Config{
		SyncInterval: a.cfg.SyncInterval,
		Logger:       a.logs.Component("daemon"),
	})

	return &syncStack{remote: pg, probe: probe, coord: coord}, nil
}

func (s *syncStack) Close() {
	s.coord.StopAutoSync()
	s.probe.Stop()
	s.remote.Close()
}

// probeAddr returns the host:port the reachability probe dials, derived from
// the remote URL when not set explicitly.
func (a *app) probeAddr() string {
	if a.cfg.ProbeAddr != "" {
		return a.cfg.ProbeAddr
	}
	u, err := url.Parse(a.cfg.RemoteURL)
	if err != nil || u.Host == "" {
		return a.cfg.RemoteURL
	}
	host := u.Host
	if u.Port() == "" {
		host += ":5432"
	}
	return host
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
