package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/nissyi-gh/taskr/internal/importer"
	"github.com/nissyi-gh/taskr/internal/model"
	"github.com/nissyi-gh/taskr/internal/prompt"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import tasks from YAML",
	Long: `Import tasks from a YAML file, or from stdin when the file is "-".

  tasks:
    - title: Plan the release
      status: In Progress
      due_date: 2026-11-01
      children:
        - title: Write notes`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var exportCmd = &cobra.Command{
	Use:   "export [id]",
	Short: "Print tasks as YAML",
	Long:  "Print all tasks, or the tree owning the given task, in the import format.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runExport,
}

var promptCmd = &cobra.Command{
	Use:   "prompt [id]",
	Short: "Print an assistant prompt that answers in the import format",
	Long: `Print a prompt for a chat assistant. Without an id it asks for new tasks;
with one it asks for the missing subtasks of that task. Feed the answer to
taskr import (with --parent for a breakdown).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPrompt,
}

func init() {
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(promptCmd)

	importCmd.Flags().String("parent", "", "Import as subtasks of this task")
}

func runImport(cmd *cobra.Command, args []string) error {
	var (
		src []byte
		err error
	)
	if args[0] == "-" {
		src, err = io.ReadAll(cmd.InOrStdin())
	} else {
		src, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}

	ctx := cmd.Context()
	a, closeApp, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer closeApp()

	var parentID *string
	if v, _ := cmd.Flags().GetString("parent"); v != "" {
		tasks, err := a.Service.GetTasks(ctx)
		if err != nil {
			return err
		}
		parent, err := resolveID(tasks, v)
		if err != nil {
			return err
		}
		parentID = &parent.ID
	}

	n, err := importer.Import(ctx, a.Service, string(src), parentID)
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d task(s)\n", n)
	return err
}

func runExport(cmd *cobra.Command, args []string) error {
	a, closeApp, err := openApp(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer closeApp()

	tasks, err := a.Service.GetTasks(cmd.Context())
	if err != nil {
		return err
	}
	if len(args) == 1 {
		t, err := resolveID(tasks, args[0])
		if err != nil {
			return err
		}
		root := t.ID
		if t.ParentID != nil {
			root = *t.ParentID
		}
		tasks = pick(tasks, root)
	}

	out, err := importer.Export(tasks)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}

func runPrompt(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(cmd.OutOrStdout(), prompt.GenerateNew())
		return nil
	}

	a, closeApp, err := openApp(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer closeApp()

	tasks, err := a.Service.GetTasks(cmd.Context())
	if err != nil {
		return err
	}
	t, err := resolveID(tasks, args[0])
	if err != nil {
		return err
	}
	if t.ParentID != nil {
		return fmt.Errorf("%s is a subtask; subtasks cannot be broken down further", shortID(t.ID))
	}
	trees := pick(tasks, t.ID)
	if len(trees) == 0 {
		return fmt.Errorf("task %s no longer exists", shortID(t.ID))
	}
	fmt.Fprint(cmd.OutOrStdout(), prompt.GenerateFromTask(trees[0]))
	return nil
}

func pick(tasks []model.Task, id string) []model.Task {
	for _, t := range tasks {
		if t.ID == id {
			return []model.Task{t}
		}
	}
	return nil
}
