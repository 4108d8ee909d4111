package remote_test

import (
	"context"
	"testing"
	"time"

	"github.com/nissyi-gh/taskr/internal/model"
	"github.com/nissyi-gh/taskr/internal/remote"
	"github.com/nissyi-gh/taskr/internal/testutil"
)

func strPtr(s string) *string { return &s }

func newAdapter(owner string) (*remote.Adapter, *testutil.MemBackend, *testutil.Owner) {
	backend := testutil.NewMemBackend()
	o := testutil.NewOwner(owner)
	return remote.NewAdapter(backend, o, testutil.Logger()), backend, o
}

func TestListNestsSubtasksNewestFirst(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	a, _, _ := newAdapter("alice")
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	older := model.Task{ID: "old", Title: "Old", Status: model.StatusToDo, CreatedAt: base, UpdatedAt: base}
	newer := model.Task{ID: "new", Title: "New", Status: model.StatusToDo, CreatedAt: base.Add(time.Hour), UpdatedAt: base.Add(time.Hour)}
	sub := model.Task{ID: "sub", Title: "Sub", Status: model.StatusToDo, ParentID: strPtr("old"),
		CreatedAt: base.Add(2 * time.Hour), UpdatedAt: base.Add(2 * time.Hour)}
	for _, tk := range []model.Task{older, newer, sub} {
		if a.Create(ctx, tk) == nil {
			t.Fatalf("Create(%s) failed", tk.ID)
		}
	}

	tasks, ok := a.List(ctx)
	if !ok {
		t.Fatal("List failed")
	}
	if len(tasks) != 2 || tasks[0].ID != "new" || tasks[1].ID != "old" {
		t.Fatalf("expected [new old], got %+v", tasks)
	}
	if len(tasks[1].Subtasks) != 1 || !tasks[1].Subtasks[0].IsSubtask {
		t.Errorf("expected sub nested under old, got %+v", tasks[1].Subtasks)
	}
}

func TestOperationsWithoutSessionFailQuietly(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	a, backend, _ := newAdapter("")

	if tasks, ok := a.List(ctx); ok || len(tasks) != 0 {
		t.Errorf("expected failed empty list, got %v %v", tasks, ok)
	}
	if a.Create(ctx, model.Task{ID: "x", Title: "x"}) != nil {
		t.Error("expected nil create without session")
	}
	if a.Update(ctx, "x", model.Patch{}) != nil {
		t.Error("expected nil update without session")
	}
	if a.Delete(ctx, "x") {
		t.Error("expected false delete without session")
	}
	if backend.Inserts != 0 {
		t.Error("backend must not be called without a session")
	}
}

func TestOwnerScoping(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	a, _, owner := newAdapter("alice")

	if a.Create(ctx, model.Task{ID: "a1", Title: "Alice's", Status: model.StatusToDo}) == nil {
		t.Fatal("create failed")
	}
	owner.Set("bob")
	tasks, ok := a.List(ctx)
	if !ok || len(tasks) != 0 {
		t.Errorf("bob must not see alice's rows, got %+v", tasks)
	}
	if a.Update(ctx, "a1", model.Patch{Title: strPtr("hijack")}) != nil {
		t.Error("bob must not update alice's row")
	}
	if a.Delete(ctx, "a1") {
		t.Error("bob must not delete alice's row")
	}
}

func TestUpdateWritesOnlyProvidedFields(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	a, _, _ := newAdapter("alice")
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	a.Create(ctx, model.Task{ID: "t", Title: "Title", Description: strPtr("desc"),
		DueDate: strPtr("2026-02-02"), Status: model.StatusToDo, CreatedAt: created, UpdatedAt: created})

	status := model.StatusInProgress
	got := a.Update(ctx, "t", model.Patch{Status: &status})
	if got == nil {
		t.Fatal("update failed")
	}
	if got.Status != model.StatusInProgress {
		t.Errorf("expected In Progress, got %q", got.Status)
	}
	if got.Title != "Title" || got.DescriptionText() != "desc" || got.DueDate == nil {
		t.Errorf("unpatched fields rewritten: %+v", got)
	}
	if !got.UpdatedAt.After(created) {
		t.Error("expected updated_at refreshed")
	}

	got = a.Update(ctx, "t", model.Patch{DueDate: strPtr("")})
	if got == nil || got.DueDate != nil {
		t.Errorf("expected due date cleared, got %+v", got)
	}
}

func TestBackendFailureBecomesNil(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	a, backend, _ := newAdapter("alice")
	backend.SetFail(true)

	if _, ok := a.List(ctx); ok {
		t.Error("expected list failure")
	}
	if a.Create(ctx, model.Task{ID: "x", Title: "x"}) != nil {
		t.Error("expected nil create")
	}
	if a.Delete(ctx, "x") {
		t.Error("expected false delete")
	}
}

func TestRowMapping(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	task := model.Task{ID: "s", Title: "Sub", Status: model.StatusCompleted, ParentID: strPtr("p"),
		Description: strPtr(""), CreatedAt: now, UpdatedAt: now}

	row := remote.ToRow(task, "alice")
	if row.UserID != "alice" || !row.IsSubtask || row.ParentID == nil || *row.ParentID != "p" {
		t.Errorf("unexpected row %+v", row)
	}
	if row.Description != nil || row.DueDate != nil {
		t.Error("empty optional fields must be stored as null")
	}
	back := row.Task()
	if back.ID != task.ID || back.Status != task.Status || !back.IsSubtask {
		t.Errorf("unexpected task %+v", back)
	}
}

func TestDisabledBackend(t *testing.T) {
	t.Parallel()
	a := remote.NewAdapter(remote.Disabled{}, testutil.NewOwner("alice"), testutil.Logger())
	if _, ok := a.List(context.Background()); ok {
		t.Error("disabled backend must fail")
	}
}
