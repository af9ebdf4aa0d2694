// nexusd is the Nexus daemon and command-line client: tasks, study decks,
// and quizzes stored locally with optional cloud sync.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nexusapp/nexus/internal/config"
	"github.com/nexusapp/nexus/internal/engine"
	"github.com/nexusapp/nexus/internal/identity"
	"github.com/nexusapp/nexus/internal/local"
	"github.com/nexusapp/nexus/internal/logging"
	"github.com/nexusapp/nexus/internal/remote"
	"github.com/nexusapp/nexus/internal/remote/wire"
)

var (
	configPath string
	userID     string
)

var rootCmd = &cobra.Command{
	Use:   "nexusd",
	Short: "Local-first task and study data with cloud sync",
	Long: `nexusd manages tasks, flashcard decks, and quizzes in a local store,
optionally synced to a cloud store.

Without --user, commands run in guest mode against the local store only.
With --user, writes go to the local store first and then to the sync
server, and the first sign-in migrates existing local data to the cloud.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"config file (default: ./nexus.yaml or ~/.nexus/nexus.yaml)")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "",
		"sign in as this user id (default: guest mode)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "tasks", Title: "Task Commands:"},
		&cobra.Group{ID: "study", Title: "Study Commands:"},
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles the wiring shared by every command: config, local store,
// sync client, engine, and identity session.
type app struct {
	cfg      *config.Config
	logFor   func(component string) *log.Logger
	local    *local.Store
	client   *wire.Client
	engine   *engine.Engine
	identity *identity.Manager
	unbind   func()
}

// openApp loads configuration, opens the local store, dials the sync
// server when one is configured, and resolves the identity session from
// the --user flag. An unreachable sync server is not fatal: the app runs
// offline and every remote call falls back to local.
func openApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logFor := logging.Setup(cfg.LogFile)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	store, err := local.Open(cfg.StorePath())
	if err != nil {
		return nil, err
	}

	var (
		remoteStore remote.Store = remote.Unavailable()
		client      *wire.Client
	)
	if cfg.RemoteURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		client, err = wire.Dial(ctx, cfg.RemoteURL, logFor("wire"))
		cancel()
		if err != nil {
			logFor("nexusd").Printf("Sync server unreachable, continuing offline: %v", err)
		} else {
			remoteStore = client
		}
	}

	eng := engine.New(store, remoteStore, logFor("engine"),
		engine.WithRemoteTimeout(cfg.RemoteTimeout))
	idm := identity.NewManager()
	unbind := eng.Bind(idm)

	if userID != "" {
		idm.SignIn(userID)
	} else {
		idm.Resolve()
	}

	return &app{
		cfg:      cfg,
		logFor:   logFor,
		local:    store,
		client:   client,
		engine:   eng,
		identity: idm,
		unbind:   unbind,
	}, nil
}

// close flushes in-flight remote writes and releases everything openApp
// acquired.
func (a *app) close() {
	a.engine.Flush()
	a.unbind()
	if a.client != nil {
		_ = a.client.Close()
	}
	if err := a.local.Close(); err != nil {
		a.logFor("nexusd").Printf("Error closing local store: %v", err)
	}
}

// fatal prints an error and exits non-zero.
func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
