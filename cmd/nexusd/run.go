package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nexusapp/nexus/internal/bridge"
	"github.com/nexusapp/nexus/internal/profile"
	"github.com/nexusapp/nexus/internal/tasks"
	"github.com/nexusapp/nexus/internal/ui"
)

var runCmd = &cobra.Command{
	Use:     "run",
	GroupID: "sync",
	Short:   "Run the nexusd daemon",
	Long: `Run the nexusd daemon.

The daemon follows live cloud changes to the task collection, reconciles
the user profile against the cloud copy, and (when import_dir is
configured) imports task JSON files dropped into that directory. All
changes land in the local store, so other commands see them immediately.`,
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp()
		if err != nil {
			fatal("%v", err)
		}
		defer a.close()

		store, err := tasks.New(a.engine, tasks.WithLogger(a.logFor("tasks")))
		if err != nil {
			fatal("%v", err)
		}

		ctx := context.Background()
		store.StartClock(ctx)
		defer store.StopClock()

		if a.identity.Session().IsAuthenticated {
			// Wait out the sign-in migration so the live feed's first
			// snapshot reflects any data it pushed.
			a.engine.Flush()

			store.StartSync()
			defer store.StopSync()

			profiles, err := profile.New(a.engine, a.logFor("profile"))
			if err != nil {
				fatal("%v", err)
			}
			if err := profiles.Reconcile(ctx); err != nil {
				a.logFor("profile").Printf("Error reconciling profile: %v", err)
			}
			fmt.Printf("%s Following cloud changes as %s\n", ui.RenderPass("✓"), userID)
		} else {
			fmt.Println(ui.RenderDim("Guest mode: local store only, no cloud sync"))
		}

		if a.cfg.ImportDir != "" {
			bcfg := bridge.DefaultConfig(a.cfg.ImportDir)
			bcfg.DebounceInterval = a.cfg.ImportDebounce
			bcfg.Logger = a.logFor("bridge")

			br, err := bridge.New(store, bcfg)
			if err != nil {
				fatal("%v", err)
			}
			if err := br.Start(); err != nil {
				fatal("%v", err)
			}
			defer br.Stop()
			fmt.Printf("%s Importing task files from %s\n", ui.RenderPass("✓"), a.cfg.ImportDir)
		}

		fmt.Println(ui.RenderDim("Press Ctrl+C to stop"))
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig

		store.Flush()
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
