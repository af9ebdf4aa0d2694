package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nexusapp/nexus/internal/study"
	"github.com/nexusapp/nexus/internal/ui"
)

var studyCmd = &cobra.Command{
	Use:     "study",
	GroupID: "study",
	Short:   "Browse flashcard decks and quizzes",
}

var studyDecksCmd = &cobra.Command{
	Use:   "decks",
	Short: "List saved flashcard decks",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp()
		if err != nil {
			fatal("%v", err)
		}
		defer a.close()

		store, err := study.New(a.engine, study.WithLogger(a.logFor("study")))
		if err != nil {
			fatal("%v", err)
		}

		decks := store.Decks()
		if len(decks) == 0 {
			fmt.Println(ui.RenderDim("No saved decks."))
			return
		}
		for _, d := range decks {
			fmt.Printf("%-12d %-40s %s %s\n", d.ID, d.Title,
				ui.RenderAccent(fmt.Sprintf("%d cards", len(d.Cards))), ui.RenderDim(d.Date))
		}
	},
}

var studyQuizzesCmd = &cobra.Command{
	Use:   "quizzes",
	Short: "List saved quizzes",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp()
		if err != nil {
			fatal("%v", err)
		}
		defer a.close()

		store, err := study.New(a.engine, study.WithLogger(a.logFor("study")))
		if err != nil {
			fatal("%v", err)
		}

		quizzes := store.Quizzes()
		if len(quizzes) == 0 {
			fmt.Println(ui.RenderDim("No saved quizzes."))
			return
		}
		for _, q := range quizzes {
			fmt.Printf("%-12d %-40s %s %s\n", q.ID, q.Title,
				ui.RenderAccent(fmt.Sprintf("%d questions", len(q.Questions))), ui.RenderDim(q.Date))
		}
	},
}

var studyRmDeck bool

var studyRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a saved deck or quiz",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := parseTaskID(args[0])

		a, err := openApp()
		if err != nil {
			fatal("%v", err)
		}
		defer a.close()

		store, err := study.New(a.engine, study.WithLogger(a.logFor("study")))
		if err != nil {
			fatal("%v", err)
		}

		if studyRmDeck {
			store.DeleteDeck(id)
		} else {
			store.DeleteQuiz(id)
		}
		a.engine.Flush()
		fmt.Printf("%s Deleted %d\n", ui.RenderPass("✓"), id)
	},
}

func init() {
	studyRmCmd.Flags().BoolVar(&studyRmDeck, "deck", false, "delete a flashcard deck instead of a quiz")

	studyCmd.AddCommand(studyDecksCmd)
	studyCmd.AddCommand(studyQuizzesCmd)
	studyCmd.AddCommand(studyRmCmd)
	rootCmd.AddCommand(studyCmd)
}
