package ui

import (
	"fmt"

	"github.com/nissyi-gh/taskr/internal/model"
)

// TaskItem wraps model.Task to satisfy the list.DefaultItem interface.
type TaskItem struct {
	Task model.Task
	// Prefix holds the tree-drawing characters, e.g. " └─ "
	Prefix string
}

func statusBox(s model.Status) string {
	switch s {
	case model.StatusInProgress:
		return "[~]"
	case model.StatusCompleted:
		return "[x]"
	}
	return "[ ]"
}

func (i TaskItem) Title() string {
	dueMark := ""
	if i.Task.IsOverdue() {
		dueMark = "⚠️ "
	} else if i.Task.IsDueToday() {
		dueMark = "📅 "
	}
	progress := ""
	if n := len(i.Task.Subtasks); n > 0 {
		done := 0
		for _, st := range i.Task.Subtasks {
			if st.Status == model.StatusCompleted {
				done++
			}
		}
		progress = fmt.Sprintf(" (%d/%d)", done, n)
	}
	return fmt.Sprintf("%s%s %s%s%s", i.Prefix, statusBox(i.Task.Status), dueMark, i.Task.Title, progress)
}

func (i TaskItem) Description() string {
	return ""
}

func (i TaskItem) FilterValue() string {
	return i.Task.Title
}
