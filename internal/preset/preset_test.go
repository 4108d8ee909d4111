package preset_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/nissyi-gh/taskr/internal/model"
	"github.com/nissyi-gh/taskr/internal/preset"
	"github.com/nissyi-gh/taskr/internal/testutil"
)

func counter() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("p%d", n)
	}
}

func TestTasksMaterializesPresets(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	tasks := preset.Tasks(now, counter())

	if len(tasks) != 5 {
		t.Fatalf("expected 5 presets, got %d", len(tasks))
	}
	sub := tasks[1]
	if len(sub.Subtasks) != 1 || sub.Subtasks[0].ParentID == nil || *sub.Subtasks[0].ParentID != sub.ID {
		t.Fatalf("expected one subtask pointing at its parent, got %+v", sub.Subtasks)
	}
	if sub.DueDate == nil || *sub.DueDate != "2026-03-11" {
		t.Errorf("expected due tomorrow, got %v", sub.DueDate)
	}
	if tasks[0].DueDate != nil {
		t.Error("welcome task has no due date")
	}
	for _, tk := range tasks {
		if !tk.Status.Valid() {
			t.Errorf("%q: invalid status %q", tk.Title, tk.Status)
		}
		if !preset.Unmodified(tk) {
			t.Errorf("%q: freshly seeded preset should be unmodified", tk.Title)
		}
	}
}

func TestUnmodified(t *testing.T) {
	t.Parallel()
	base := preset.Tasks(time.Now(), counter())

	tests := []struct {
		name   string
		edit   func(*model.Task)
		expect bool
	}{
		{"as seeded", func(*model.Task) {}, true},
		{"due date moved", func(tk *model.Task) { d := "2030-01-01"; tk.DueDate = &d }, true},
		{"status edited", func(tk *model.Task) { tk.Status = model.StatusCompleted }, false},
		{"title edited", func(tk *model.Task) { tk.Title += "!" }, false},
		{"subtask edited", func(tk *model.Task) { tk.Subtasks[0].Status = model.StatusInProgress }, false},
		{"subtask added", func(tk *model.Task) { tk.Subtasks = append(tk.Subtasks, model.Task{Title: "mine"}) }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk := base[1].Clone()
			tt.edit(&tk)
			if got := preset.Unmodified(tk); got != tt.expect {
				t.Errorf("Unmodified() = %v, want %v", got, tt.expect)
			}
		})
	}
}

func TestSeedRunsOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := testutil.OpenStore(t)

	seeded, err := preset.Seed(ctx, s, time.Now(), counter())
	if err != nil || !seeded {
		t.Fatalf("first Seed: %v %v", seeded, err)
	}
	tasks, _ := s.ReadAll(ctx)
	if len(tasks) != 5 {
		t.Fatalf("expected 5 seeded tasks, got %d", len(tasks))
	}

	if err := s.ReplaceAll(ctx, nil); err != nil {
		t.Fatal(err)
	}
	seeded, err = preset.Seed(ctx, s, time.Now(), counter())
	if err != nil || seeded {
		t.Fatalf("second Seed must be a no-op: %v %v", seeded, err)
	}
	if tasks, _ := s.ReadAll(ctx); len(tasks) != 0 {
		t.Errorf("presets re-seeded after being cleared: %d", len(tasks))
	}
}

func TestSeedSkipsNonEmptyCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := testutil.OpenStore(t)
	now := time.Now()
	own := model.NewTask(model.Draft{Title: "Mine", Status: model.StatusToDo}, "mine", now)
	if err := s.ReplaceAll(ctx, []model.Task{own}); err != nil {
		t.Fatal(err)
	}

	seeded, err := preset.Seed(ctx, s, now, counter())
	if err != nil || seeded {
		t.Fatalf("expected no seeding, got %v %v", seeded, err)
	}
	if _, seen, _ := s.Meta(ctx, preset.SeenKey); !seen {
		t.Error("expected presets flag set")
	}
}
