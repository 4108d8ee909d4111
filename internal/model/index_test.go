package model

import (
	"errors"
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func statusPtr(s Status) *Status { return &s }

func fixture() []Task {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return []Task{
		{
			ID: "p1", Title: "Parent", Status: StatusToDo, CreatedAt: now, UpdatedAt: now,
			Subtasks: []Task{
				{ID: "c1", Title: "Child 1", Status: StatusToDo, ParentID: strPtr("p1"), IsSubtask: true},
				{ID: "c2", Title: "Child 2", Status: StatusToDo, ParentID: strPtr("p1"), IsSubtask: true},
			},
		},
		{ID: "p2", Title: "Other", Status: StatusInProgress, CreatedAt: now, UpdatedAt: now},
	}
}

func TestSubtaskProgressPromotesParent(t *testing.T) {
	t.Parallel()
	idx := NewIndex(fixture())
	now := time.Now()

	changed, ok := idx.Update("c1", Patch{Status: statusPtr(StatusInProgress)}, now)
	if !ok {
		t.Fatal("expected c1 to be found")
	}
	if len(changed) != 2 || changed[1].ID != "p1" {
		t.Fatalf("expected parent promotion, got %+v", changed)
	}
	p, _ := idx.Get("p1")
	if p.Status != StatusInProgress {
		t.Errorf("expected parent In Progress, got %q", p.Status)
	}

	if _, ok := idx.Update("c1", Patch{Status: statusPtr(StatusCompleted)}, now); !ok {
		t.Fatal("expected c1 to be found")
	}
	p, _ = idx.Get("p1")
	if p.Status != StatusInProgress {
		t.Errorf("completing a subtask must not complete the parent, got %q", p.Status)
	}
}

func TestCompletingSubtaskPromotesToDoParent(t *testing.T) {
	t.Parallel()
	idx := NewIndex(fixture())

	idx.Update("c2", Patch{Status: statusPtr(StatusCompleted)}, time.Now())
	p, _ := idx.Get("p1")
	if p.Status != StatusInProgress {
		t.Errorf("expected parent In Progress, got %q", p.Status)
	}
}

func TestCompletingParentCascades(t *testing.T) {
	t.Parallel()
	idx := NewIndex(fixture())
	now := time.Now()

	changed, ok := idx.Update("p1", Patch{Status: statusPtr(StatusCompleted)}, now)
	if !ok {
		t.Fatal("expected p1 to be found")
	}
	if len(changed) != 3 {
		t.Fatalf("expected parent and two subtasks to change, got %d", len(changed))
	}
	p, _ := idx.Get("p1")
	for _, st := range p.Subtasks {
		if st.Status != StatusCompleted {
			t.Errorf("subtask %s: expected Completed, got %q", st.ID, st.Status)
		}
		if !st.UpdatedAt.Equal(now) {
			t.Errorf("subtask %s: expected UpdatedAt refreshed", st.ID)
		}
	}
}

func TestUpdateLeavesOtherFieldsAlone(t *testing.T) {
	t.Parallel()
	tasks := fixture()
	tasks[1].Description = strPtr("keep me")
	tasks[1].DueDate = strPtr("2026-02-01")
	idx := NewIndex(tasks)

	idx.Update("p2", Patch{Title: strPtr("  Renamed  ")}, time.Now())
	got, _ := idx.Get("p2")
	if got.Title != "Renamed" {
		t.Errorf("expected trimmed title, got %q", got.Title)
	}
	if got.DescriptionText() != "keep me" || got.DueDate == nil || *got.DueDate != "2026-02-01" {
		t.Errorf("unpatched fields changed: %+v", got)
	}

	idx.Update("p2", Patch{DueDate: strPtr("")}, time.Now())
	got, _ = idx.Get("p2")
	if got.DueDate != nil {
		t.Errorf("expected due date cleared, got %q", *got.DueDate)
	}
}

func TestRemove(t *testing.T) {
	t.Parallel()
	idx := NewIndex(fixture())

	if _, ok := idx.Remove("missing"); ok {
		t.Error("removing an unknown id must report false")
	}
	if idx.Len() != 4 {
		t.Errorf("expected 4 tasks after failed remove, got %d", idx.Len())
	}

	if _, ok := idx.Remove("c1"); !ok {
		t.Fatal("expected c1 removed")
	}
	p, _ := idx.Get("p1")
	if len(p.Subtasks) != 1 || p.Subtasks[0].ID != "c2" {
		t.Errorf("unexpected subtasks after removal: %+v", p.Subtasks)
	}

	removed, ok := idx.Remove("p1")
	if !ok || len(removed.Subtasks) != 1 {
		t.Fatalf("expected p1 removed with its subtask, got %+v", removed)
	}
	if idx.Has("c2") {
		t.Error("subtask must be removed with its parent")
	}
	if len(idx.Tasks()) != 1 {
		t.Errorf("expected one remaining task, got %d", len(idx.Tasks()))
	}
}

func TestInsert(t *testing.T) {
	t.Parallel()
	idx := NewIndex(fixture())

	if err := idx.Insert(Task{ID: "p3", Title: "Newest"}, true); err != nil {
		t.Fatal(err)
	}
	if got := idx.Tasks()[0].ID; got != "p3" {
		t.Errorf("expected p3 first, got %s", got)
	}

	if err := idx.Insert(Task{ID: "c3", Title: "Nested", ParentID: strPtr("c1")}, false); err == nil {
		t.Error("expected error nesting under a subtask")
	}
	if err := idx.Insert(Task{ID: "c4", Title: "Orphan", ParentID: strPtr("nope")}, false); err == nil {
		t.Error("expected error for unknown parent")
	}
	if err := idx.Insert(Task{ID: "c5", Title: "Sub", ParentID: strPtr("p2")}, false); err != nil {
		t.Fatal(err)
	}
	st, _ := idx.Get("c5")
	if !st.IsSubtask {
		t.Error("expected IsSubtask set on insert")
	}
}

func TestAssembleDropsOrphans(t *testing.T) {
	t.Parallel()
	flat := []Task{
		{ID: "c1", Title: "child", ParentID: strPtr("p1")},
		{ID: "p1", Title: "parent"},
		{ID: "c9", Title: "orphan", ParentID: strPtr("gone")},
	}
	got := Assemble(flat)
	if len(got) != 1 || got[0].ID != "p1" {
		t.Fatalf("expected only p1 at top level, got %+v", got)
	}
	if len(got[0].Subtasks) != 1 || got[0].Subtasks[0].ID != "c1" {
		t.Errorf("expected c1 nested under p1, got %+v", got[0].Subtasks)
	}
}

func TestFlattenOrdersParentsFirst(t *testing.T) {
	t.Parallel()
	flat := NewIndex(fixture()).Flatten()
	want := []string{"p1", "c1", "c2", "p2"}
	if len(flat) != len(want) {
		t.Fatalf("expected %d tasks, got %d", len(want), len(flat))
	}
	for i, id := range want {
		if flat[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, flat[i].ID)
		}
		if flat[i].Subtasks != nil {
			t.Errorf("flattened task %s still has subtasks", flat[i].ID)
		}
	}
}

func TestDraftValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		draft   Draft
		wantErr bool
	}{
		{"ok", Draft{Title: "Buy milk"}, false},
		{"blank title", Draft{Title: "   "}, true},
		{"bad status", Draft{Title: "x", Status: "Later"}, true},
		{"bad date", Draft{Title: "x", DueDate: strPtr("2026-13-01")}, true},
		{"good date", Draft{Title: "x", DueDate: strPtr("2026-12-01")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tt.draft
			err := d.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidDraft) {
				t.Errorf("expected ErrInvalidDraft, got %v", err)
			}
			if err == nil && d.Status != StatusToDo {
				t.Errorf("expected default status To Do, got %q", d.Status)
			}
		})
	}
}

func TestParseStatus(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]Status{
		"todo":        StatusToDo,
		"To Do":       StatusToDo,
		"in_progress": StatusInProgress,
		"In Progress": StatusInProgress,
		"done":        StatusCompleted,
		"Completed":   StatusCompleted,
	} {
		got, err := ParseStatus(in)
		if err != nil || got != want {
			t.Errorf("ParseStatus(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseStatus("someday"); err == nil {
		t.Error("expected error for unknown status")
	}
}
