package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nexusapp/nexus/internal/engine"
	"github.com/nexusapp/nexus/internal/tasks"
	"github.com/nexusapp/nexus/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Inspect and drive cloud sync",
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync status and local stream freshness",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp()
		if err != nil {
			fatal("%v", err)
		}
		defer a.close()

		a.engine.Flush()
		state := a.engine.State()

		mode := ui.RenderDim("local (guest)")
		if state.StorageMode == engine.ModeCloud {
			mode = ui.RenderAccent("cloud (" + a.identity.Session().UserID + ")")
		}
		fmt.Printf("Storage mode:  %s\n", mode)

		connected := ui.RenderWarn("not configured")
		if a.client != nil {
			connected = ui.RenderPass("connected to " + a.cfg.RemoteURL)
		} else if a.cfg.RemoteURL != "" {
			connected = ui.RenderFail("unreachable: " + a.cfg.RemoteURL)
		}
		fmt.Printf("Sync server:   %s\n", connected)

		if state.StorageMode == engine.ModeCloud {
			migrated := ui.RenderDim("not yet")
			if state.HasMigrated {
				migrated = ui.RenderPass("done")
			}
			fmt.Printf("Migration:     %s\n", migrated)

			last := ui.RenderDim("never")
			if state.LastSyncedAt != nil {
				last = state.LastSyncedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Printf("Last synced:   %s\n", last)
		}

		store, err := tasks.New(a.engine, tasks.WithLogger(a.logFor("tasks")))
		if err != nil {
			fatal("%v", err)
		}
		fmt.Printf("Tasks:         %d pending, %d completed\n",
			len(store.Pending()), len(store.Completed()))

		keys, err := a.local.Keys()
		if err != nil {
			fatal("failed to read local store: %v", err)
		}
		if len(keys) == 0 {
			fmt.Println(ui.RenderDim("Local store is empty."))
			return
		}
		fmt.Println("\nLocal streams:")
		for _, key := range keys {
			at, err := a.local.UpdatedAt(key)
			if err != nil {
				continue
			}
			fmt.Printf("  %-18s %s\n", key, ui.RenderDim(at.Format("2006-01-02 15:04:05")))
		}
	},
}

var syncMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Push local data to the cloud for a first sign-in",
	Long: `Push existing local data to the cloud store.

The migration runs automatically on first sign-in; this command reports
its outcome, or retries it after a failure. If the cloud already holds
data for this user, nothing is pushed and the cloud copy stays
authoritative.`,
	Run: func(cmd *cobra.Command, args []string) {
		if userID == "" {
			fatal("migrate requires --user")
		}

		a, err := openApp()
		if err != nil {
			fatal("%v", err)
		}
		defer a.close()

		// Let the sign-in-triggered migration finish before reporting.
		a.engine.Flush()

		result, err := a.engine.MigrateLocalToCloud(context.Background())
		if err != nil {
			fatal("migration failed: %v", err)
		}

		switch {
		case result.Migrated:
			fmt.Printf("%s Migrated %d streams to the cloud\n", ui.RenderPass("✓"), len(result.Pushed))
			for _, name := range result.Pushed {
				fmt.Printf("  %s\n", name)
			}
		case result.Reason == "cloud_data_exists":
			fmt.Printf("%s Cloud data already exists for %s, nothing pushed\n", ui.RenderWarn("!"), userID)
		case result.Reason == "already_migrated":
			fmt.Printf("%s Migration already completed this session\n", ui.RenderPass("✓"))
		default:
			fmt.Printf("%s Migration skipped: %s\n", ui.RenderWarn("!"), result.Reason)
		}
	},
}

func init() {
	syncCmd.AddCommand(syncStatusCmd)
	syncCmd.AddCommand(syncMigrateCmd)
	rootCmd.AddCommand(syncCmd)
}
