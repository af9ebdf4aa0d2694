package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nexusapp/nexus/internal/theme"
	"github.com/nexusapp/nexus/internal/ui"
)

var themeCmd = &cobra.Command{
	Use:   "theme [value]",
	Short: "Show, set, or toggle the UI theme",
	Long: `Show the current theme, set one explicitly, or cycle with --toggle.

Valid themes: dark, white, hybrid, light.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp()
		if err != nil {
			fatal("%v", err)
		}
		defer a.close()

		store := theme.New(a.engine, a.logFor("theme"))

		switch {
		case len(args) == 1:
			store.Set(args[0])
			a.engine.Flush()
			fmt.Printf("%s Theme set to %s\n", ui.RenderPass("✓"), store.Theme())
		case themeToggle:
			next := store.Toggle()
			a.engine.Flush()
			fmt.Printf("%s Theme is now %s\n", ui.RenderPass("✓"), next)
		default:
			fmt.Println(store.Theme())
		}
	},
}

var themeToggle bool

func init() {
	themeCmd.Flags().BoolVar(&themeToggle, "toggle", false, "cycle dark -> white -> hybrid")
	rootCmd.AddCommand(themeCmd)
}
