// Package prompt builds assistant prompts whose answers paste straight into
// the YAML import.
package prompt

import (
	"fmt"
	"strings"

	"github.com/nissyi-gh/taskr/internal/model"
)

const yamlFormat = `Answer with a single YAML code block in the format below and nothing else.

` + "```yaml" + `
tasks:
  - title: "Task title"
    description: "What needs doing"
    status: "To Do"
    due_date: "YYYY-MM-DD"
    children:
      - title: "Subtask title"
        description: "Subtask details"
` + "```" + `

Fields:
- title: (required) task title
- description: (optional) longer description
- status: (optional) one of "To Do", "In Progress", "Completed"; defaults to "To Do"
- due_date: (optional) due date as YYYY-MM-DD
- children: (optional) subtasks, one level deep; subtasks have no children`

const subtaskFormat = `Answer with a single YAML code block in the format below and nothing else.

` + "```yaml" + `
tasks:
  - title: "Subtask title"
    description: "Subtask details"
    due_date: "YYYY-MM-DD"
` + "```" + `

Fields:
- title: (required) subtask title
- description: (optional) longer description
- due_date: (optional) due date as YYYY-MM-DD
Subtasks cannot have children.`

// GenerateNew returns a prompt for creating new tasks from scratch.
func GenerateNew() string {
	return fmt.Sprintf(`You are a task planning assistant.
Break the user's request into tasks of a sensible size.

%s
`, yamlFormat)
}

// GenerateFromTask returns a prompt for breaking a top-level task into
// subtasks. Existing subtasks are listed so the answer only adds what is
// missing.
func GenerateFromTask(task model.Task) string {
	var sb strings.Builder

	sb.WriteString("You are a task planning assistant.\n")
	sb.WriteString("Break the task below into concrete subtasks.\n\n")

	sb.WriteString("## Task\n")
	fmt.Fprintf(&sb, "- Title: %s\n", task.Title)
	if d := task.DescriptionText(); d != "" {
		fmt.Fprintf(&sb, "- Description: %s\n", d)
	}
	fmt.Fprintf(&sb, "- Status: %s\n", task.Status)
	if task.DueDate != nil {
		fmt.Fprintf(&sb, "- Due: %s (subtasks should be due on or before this date)\n", *task.DueDate)
	}

	if len(task.Subtasks) > 0 {
		sb.WriteString("\n## Existing subtasks\n")
		for _, c := range task.Subtasks {
			fmt.Fprintf(&sb, "- %s (%s)\n", c.Title, c.Status)
		}
		sb.WriteString("\nOnly add subtasks that are missing from the list above.\n")
	}

	sb.WriteString("\n")
	sb.WriteString(subtaskFormat)
	sb.WriteString("\n")

	return sb.String()
}
