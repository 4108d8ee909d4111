package ui

import "github.com/nissyi-gh/taskr/internal/model"

// BuildTree flattens top-level tasks and their subtasks into list rows with
// tree-drawing prefixes (├─, └─).
func BuildTree(tasks []model.Task) []TaskItem {
	var items []TaskItem
	for _, root := range tasks {
		items = append(items, TaskItem{Task: root})
		for idx, child := range root.Subtasks {
			prefix := " ├─ "
			if idx == len(root.Subtasks)-1 {
				prefix = " └─ "
			}
			items = append(items, TaskItem{Task: child, Prefix: prefix})
		}
	}
	return items
}

// findTree returns the top-level task owning id, with its subtasks.
func findTree(tasks []model.Task, id string) (model.Task, bool) {
	for _, t := range tasks {
		if t.ID == id {
			return t, true
		}
		for _, st := range t.Subtasks {
			if st.ID == id {
				return t, true
			}
		}
	}
	return model.Task{}, false
}
