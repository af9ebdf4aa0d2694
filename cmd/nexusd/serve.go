package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nexusapp/nexus/internal/config"
	"github.com/nexusapp/nexus/internal/logging"
	"github.com/nexusapp/nexus/internal/remote"
	"github.com/nexusapp/nexus/internal/remote/wire"
	"github.com/nexusapp/nexus/internal/ui"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "sync",
	Short:   "Run a sync server",
	Long: `Run a sync server for nexusd clients.

The server keeps per-user document and collection streams in memory and
pushes live snapshots to subscribed clients. Point clients at it with
remote_url: ws://host:port/sync.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(configPath)
		if err != nil {
			fatal("%v", err)
		}
		logFor := logging.Setup(cfg.LogFile)

		srv := wire.NewServer(remote.NewMemory(), &wire.ServerConfig{
			Addr:   cfg.ListenAddr,
			Logger: logFor("server"),
		})
		if err := srv.Start(); err != nil {
			fatal("%v", err)
		}
		fmt.Printf("%s Sync server listening on %s\n", ui.RenderPass("✓"), srv.Addr())
		fmt.Println(ui.RenderDim("Press Ctrl+C to stop"))

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig

		if err := srv.Stop(); err != nil {
			fatal("%v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
