package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nissyi-gh/taskr/internal/model"
	"github.com/nissyi-gh/taskr/internal/service"
	"github.com/nissyi-gh/taskr/internal/ui"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tasks",
	Args:    cobra.NoArgs,
	RunE:    runList,
}

var addCmd = &cobra.Command{
	Use:   "add [title]",
	Short: "Add a task",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAdd,
}

var editCmd = &cobra.Command{
	Use:   "edit [id]",
	Short: "Change a task's fields",
	Long: `Change a task's fields. Only the flags given are applied.
Pass an empty --desc or --due to clear the field.`,
	Args: cobra.ExactArgs(1),
	RunE: runEdit,
}

var doneCmd = &cobra.Command{
	Use:   "done [id]",
	Short: "Mark a task completed",
	Long:  "Mark a task completed. Completing a task completes its subtasks too.",
	Args:  cobra.ExactArgs(1),
	RunE:  runDone,
}

var rmCmd = &cobra.Command{
	Use:   "rm [id]",
	Short: "Delete a task and its subtasks",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemove,
}

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(doneCmd)
	rootCmd.AddCommand(rmCmd)

	addCmd.Flags().String("desc", "", "Description")
	addCmd.Flags().String("due", "", "Due date (YYYY-MM-DD)")
	addCmd.Flags().String("status", "", "To Do, In Progress or Completed")
	addCmd.Flags().String("parent", "", "Parent task id or id prefix")

	editCmd.Flags().String("title", "", "New title")
	editCmd.Flags().String("desc", "", "New description")
	editCmd.Flags().String("due", "", "New due date (YYYY-MM-DD)")
	editCmd.Flags().String("status", "", "New status")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func printTasks(w io.Writer, tasks []model.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "No tasks.")
		return
	}
	for _, item := range ui.BuildTree(tasks) {
		fmt.Fprintf(w, "%-8s  %s\n", shortID(item.Task.ID), item.Title())
	}
}

func printOutcome(w io.Writer, o service.Outcome) {
	if o == service.FailedRemotely {
		fmt.Fprintln(w, "  (saved on this device only; the remote store did not accept it)")
	}
}

// resolveID finds the task whose id equals or uniquely starts with prefix.
func resolveID(tasks []model.Task, prefix string) (model.Task, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return model.Task{}, errors.New("empty task id")
	}
	var matches []model.Task
	for _, t := range model.NewIndex(tasks).Flatten() {
		if t.ID == prefix {
			return t, nil
		}
		if strings.HasPrefix(t.ID, prefix) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return model.Task{}, fmt.Errorf("no task matches %q", prefix)
	case 1:
		return matches[0], nil
	}
	return model.Task{}, fmt.Errorf("%q matches %d tasks; use a longer prefix", prefix, len(matches))
}

func runList(cmd *cobra.Command, args []string) error {
	a, closeApp, err := openApp(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer closeApp()

	tasks, err := a.Service.GetTasks(cmd.Context())
	if err != nil {
		return err
	}
	printTasks(cmd.OutOrStdout(), tasks)
	return nil
}

func runAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, closeApp, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer closeApp()

	d := model.Draft{Title: strings.Join(args, " ")}
	if v, _ := cmd.Flags().GetString("desc"); v != "" {
		d.Description = &v
	}
	if v, _ := cmd.Flags().GetString("due"); v != "" {
		d.DueDate = &v
	}
	if v, _ := cmd.Flags().GetString("status"); v != "" {
		s, err := model.ParseStatus(v)
		if err != nil {
			return err
		}
		d.Status = s
	}
	if v, _ := cmd.Flags().GetString("parent"); v != "" {
		tasks, err := a.Service.GetTasks(ctx)
		if err != nil {
			return err
		}
		parent, err := resolveID(tasks, v)
		if err != nil {
			return err
		}
		d.ParentID = &parent.ID
	}

	res, err := a.Service.SaveTask(ctx, d)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added %s  %s\n", shortID(res.Task.ID), res.Task.Title)
	printOutcome(cmd.OutOrStdout(), res.Outcome)
	return nil
}

func runEdit(cmd *cobra.Command, args []string) error {
	var p model.Patch
	flags := cmd.Flags()
	if flags.Changed("title") {
		v, _ := flags.GetString("title")
		p.Title = &v
	}
	if flags.Changed("desc") {
		v, _ := flags.GetString("desc")
		p.Description = &v
	}
	if flags.Changed("due") {
		v, _ := flags.GetString("due")
		p.DueDate = &v
	}
	if flags.Changed("status") {
		v, _ := flags.GetString("status")
		s, err := model.ParseStatus(v)
		if err != nil {
			return err
		}
		p.Status = &s
	}
	if p.Empty() {
		return errors.New("nothing to change; pass --title, --desc, --due or --status")
	}
	return update(cmd, args[0], p, "Updated")
}

func runDone(cmd *cobra.Command, args []string) error {
	s := model.StatusCompleted
	return update(cmd, args[0], model.Patch{Status: &s}, "Completed")
}

func update(cmd *cobra.Command, id string, p model.Patch, verb string) error {
	ctx := cmd.Context()
	a, closeApp, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer closeApp()

	tasks, err := a.Service.GetTasks(ctx)
	if err != nil {
		return err
	}
	t, err := resolveID(tasks, id)
	if err != nil {
		return err
	}
	res, err := a.Service.UpdateTask(ctx, t.ID, p)
	if err != nil {
		return err
	}
	if res.Task == nil {
		return fmt.Errorf("task %s no longer exists", shortID(t.ID))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s  %s\n", verb, shortID(res.Task.ID), res.Task.Title)
	printOutcome(cmd.OutOrStdout(), res.Outcome)
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, closeApp, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer closeApp()

	tasks, err := a.Service.GetTasks(ctx)
	if err != nil {
		return err
	}
	t, err := resolveID(tasks, args[0])
	if err != nil {
		return err
	}
	deleted, outcome, err := a.Service.DeleteTask(ctx, t.ID)
	if err != nil {
		return err
	}
	if !deleted {
		if outcome == service.FailedRemotely {
			return errors.New("the remote store rejected the delete; try again later")
		}
		return fmt.Errorf("task %s no longer exists", shortID(t.ID))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s  %s\n", shortID(t.ID), t.Title)
	if n := len(model.NewIndex(tasks).SubtaskIDs(t.ID)); n > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "  and %d subtask(s)\n", n)
	}
	return nil
}
