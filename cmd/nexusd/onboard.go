package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nexusapp/nexus/internal/profile"
	"github.com/nexusapp/nexus/internal/ui"
)

var onboardCmd = &cobra.Command{
	Use:     "onboard",
	GroupID: "sync",
	Short:   "Set up your profile",
	Long: `Set up your profile interactively.

Grades and course lists build on the profile, so run this once before
using them. Re-running replaces the profile (courses included).`,
	Run: func(cmd *cobra.Command, args []string) {
		var (
			name       string
			university string
			credits    string
		)

		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Name").
					Value(&name).
					Validate(func(s string) error {
						if strings.TrimSpace(s) == "" {
							return fmt.Errorf("name is required")
						}
						return nil
					}),
				huh.NewInput().
					Title("University").
					Value(&university),
				huh.NewInput().
					Title("Credits required to graduate").
					Placeholder("180").
					Value(&credits).
					Validate(func(s string) error {
						if strings.TrimSpace(s) == "" {
							return nil
						}
						if _, err := strconv.ParseFloat(s, 64); err != nil {
							return fmt.Errorf("enter a number")
						}
						return nil
					}),
			),
		)
		if err := form.Run(); err != nil {
			fatal("%v", err)
		}

		total := 0.0
		if strings.TrimSpace(credits) != "" {
			total, _ = strconv.ParseFloat(strings.TrimSpace(credits), 64)
		}

		a, err := openApp()
		if err != nil {
			fatal("%v", err)
		}
		defer a.close()

		profiles, err := profile.New(a.engine, a.logFor("profile"))
		if err != nil {
			fatal("%v", err)
		}
		profiles.Save(strings.TrimSpace(name), strings.TrimSpace(university), total, nil)
		a.engine.Flush()

		fmt.Printf("%s Profile saved. Welcome, %s!\n", ui.RenderPass("✓"), strings.TrimSpace(name))
	},
}

func init() {
	rootCmd.AddCommand(onboardCmd)
}
