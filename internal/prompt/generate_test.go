package prompt

import (
	"strings"
	"testing"
	"time"

	"github.com/nissyi-gh/taskr/internal/importer"
	"github.com/nissyi-gh/taskr/internal/model"
)

// yamlBlock extracts the first fenced yaml block.
func yamlBlock(t *testing.T, s string) string {
	t.Helper()
	start := strings.Index(s, "```yaml\n")
	if start < 0 {
		t.Fatalf("no yaml block in:\n%s", s)
	}
	rest := s[start+len("```yaml\n"):]
	end := strings.Index(rest, "```")
	if end < 0 {
		t.Fatalf("unterminated yaml block in:\n%s", s)
	}
	return rest[:end]
}

func TestGenerateNewExampleImports(t *testing.T) {
	block := yamlBlock(t, GenerateNew())
	// The placeholder date is not a real date.
	block = strings.ReplaceAll(block, "YYYY-MM-DD", "2026-01-31")
	if _, err := importer.Parse(block, nil); err != nil {
		t.Errorf("example does not parse: %v\n%s", err, block)
	}
}

func TestGenerateFromTask(t *testing.T) {
	now := time.Now()
	due := "2026-11-30"
	desc := "Ship the new release"
	task := model.NewTask(model.Draft{Title: "Release 2.0", Description: &desc, DueDate: &due, Status: model.StatusInProgress}, "p1", now)
	pid := task.ID
	task.Subtasks = []model.Task{
		model.NewTask(model.Draft{Title: "Write changelog", Status: model.StatusCompleted, ParentID: &pid}, "c1", now),
	}

	got := GenerateFromTask(task)
	for _, want := range []string{
		"- Title: Release 2.0",
		"- Description: Ship the new release",
		"- Status: In Progress",
		"- Due: 2026-11-30",
		"- Write changelog (Completed)",
		"Only add subtasks that are missing",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q:\n%s", want, got)
		}
	}

	block := strings.ReplaceAll(yamlBlock(t, got), "YYYY-MM-DD", "2026-01-31")
	if _, err := importer.Parse(block, &pid); err != nil {
		t.Errorf("subtask example does not parse under a parent: %v", err)
	}
}

func TestGenerateFromTaskWithoutSubtasks(t *testing.T) {
	task := model.NewTask(model.Draft{Title: "Solo", Status: model.StatusToDo}, "s1", time.Now())
	got := GenerateFromTask(task)
	if strings.Contains(got, "Existing subtasks") {
		t.Errorf("unexpected subtask section:\n%s", got)
	}
	if strings.Contains(got, "- Description:") || strings.Contains(got, "- Due:") {
		t.Errorf("empty fields should be omitted:\n%s", got)
	}
}
