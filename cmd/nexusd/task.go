package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/nexusapp/nexus/internal/stream"
	"github.com/nexusapp/nexus/internal/tasks"
	"github.com/nexusapp/nexus/internal/ui"
)

var taskCmd = &cobra.Command{
	Use:     "task",
	GroupID: "tasks",
	Short:   "Manage tasks",
}

var (
	taskAddDue      string
	taskAddTime     string
	taskAddTag      string
	taskAddPriority string
)

var taskAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a task",
	Long: `Add a task.

The --due flag accepts a YYYY-MM-DD date or natural language:

  nexusd task add "Finish lab report" --due "next friday at 17:00"
  nexusd task add "Call home" --due tomorrow --tag personal`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		date, timeOfDay, err := parseDue(taskAddDue)
		if err != nil {
			fatal("%v", err)
		}
		if taskAddTime != "" {
			timeOfDay = taskAddTime
		}

		a, err := openApp()
		if err != nil {
			fatal("%v", err)
		}
		defer a.close()

		store, err := tasks.New(a.engine, tasks.WithLogger(a.logFor("tasks")))
		if err != nil {
			fatal("%v", err)
		}

		task, err := store.AddTask(strings.Join(args, " "), date, timeOfDay, taskAddTag, taskAddPriority)
		if err != nil {
			fatal("%v", err)
		}
		store.Flush()

		due := ""
		if task.Date != "" {
			due = " due " + task.Date
			if task.Time != "" {
				due += " " + task.Time
			}
		}
		fmt.Printf("%s Added task %d: %s%s\n", ui.RenderPass("✓"), task.ID, task.Title, ui.RenderDim(due))
	},
}

var (
	taskListAll   bool
	taskListToday bool
)

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
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

		var list []stream.Task
		switch {
		case taskListToday:
			list = store.DueToday()
		case taskListAll:
			list = store.Tasks()
		default:
			list = store.Pending()
		}

		if len(list) == 0 {
			fmt.Println(ui.RenderDim("No tasks."))
			return
		}
		for _, t := range list {
			printTask(t)
		}
	},
}

var taskDoneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Toggle a task's completed state",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := parseTaskID(args[0])

		a, err := openApp()
		if err != nil {
			fatal("%v", err)
		}
		defer a.close()

		store, err := tasks.New(a.engine, tasks.WithLogger(a.logFor("tasks")))
		if err != nil {
			fatal("%v", err)
		}

		found := false
		for _, t := range store.Tasks() {
			if t.ID == id {
				found = true
				break
			}
		}
		if !found {
			fatal("no task with id %d", id)
		}

		store.ToggleTask(id)
		store.Flush()

		for _, t := range store.Tasks() {
			if t.ID == id {
				if t.Completed {
					fmt.Printf("%s Completed: %s\n", ui.RenderPass("✓"), t.Title)
				} else {
					fmt.Printf("%s Reopened: %s\n", ui.RenderAccent("○"), t.Title)
				}
				return
			}
		}
	},
}

var taskRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := parseTaskID(args[0])

		a, err := openApp()
		if err != nil {
			fatal("%v", err)
		}
		defer a.close()

		store, err := tasks.New(a.engine, tasks.WithLogger(a.logFor("tasks")))
		if err != nil {
			fatal("%v", err)
		}

		found := false
		for _, t := range store.Tasks() {
			if t.ID == id {
				found = true
				break
			}
		}
		if !found {
			fatal("no task with id %d", id)
		}

		store.DeleteTask(id)
		store.Flush()
		fmt.Printf("%s Deleted task %d\n", ui.RenderPass("✓"), id)
	},
}

func init() {
	taskAddCmd.Flags().StringVar(&taskAddDue, "due", "", "due date (YYYY-MM-DD or natural language)")
	taskAddCmd.Flags().StringVar(&taskAddTime, "time", "", "due time (HH:MM, overrides any time in --due)")
	taskAddCmd.Flags().StringVar(&taskAddTag, "tag", stream.TagSchool, "tag: school or personal")
	taskAddCmd.Flags().StringVar(&taskAddPriority, "priority", stream.PriorityNormal, "priority: normal or high")

	taskListCmd.Flags().BoolVar(&taskListAll, "all", false, "include completed tasks")
	taskListCmd.Flags().BoolVar(&taskListToday, "today", false, "only tasks due today")

	taskCmd.AddCommand(taskAddCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskDoneCmd)
	taskCmd.AddCommand(taskRmCmd)
	rootCmd.AddCommand(taskCmd)
}

// parseDue resolves the --due flag to a date and optional time of day.
func parseDue(due string) (date, timeOfDay string, err error) {
	if due == "" {
		return "", "", nil
	}
	if _, perr := time.Parse(stream.DateLayout, due); perr == nil {
		return due, "", nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	r, err := w.Parse(due, time.Now())
	if err != nil {
		return "", "", fmt.Errorf("failed to parse due date %q: %w", due, err)
	}
	if r == nil {
		return "", "", fmt.Errorf("could not understand due date %q", due)
	}

	date = r.Time.Format(stream.DateLayout)
	if r.Time.Hour() != 0 || r.Time.Minute() != 0 {
		timeOfDay = r.Time.Format(stream.TimeLayout)
	}
	return date, timeOfDay, nil
}

func parseTaskID(arg string) int64 {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		fatal("invalid task id %q", arg)
	}
	return id
}

func printTask(t stream.Task) {
	mark := "○"
	if t.Completed {
		mark = ui.RenderPass("✓")
	}
	due := ""
	if t.Date != "" {
		due = t.Date
		if t.Time != "" {
			due += " " + t.Time
		}
	}
	fmt.Printf("%s %-12d %-40s %s %s %s\n",
		mark, t.ID, t.Title, ui.RenderPriority(t.Priority), ui.RenderDim(t.Tag), ui.RenderDim(due))
}
