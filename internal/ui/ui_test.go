package ui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/nissyi-gh/taskr/internal/auth"
	"github.com/nissyi-gh/taskr/internal/model"
	"github.com/nissyi-gh/taskr/internal/service"
	"github.com/nissyi-gh/taskr/internal/status"
)

type fakeTasks struct {
	tasks   []model.Task
	synced  int
	patches map[string]model.Patch
}

func (f *fakeTasks) GetTasks(context.Context) ([]model.Task, error) { return f.tasks, nil }

func (f *fakeTasks) SaveTask(_ context.Context, d model.Draft) (service.Result, error) {
	t := model.NewTask(d, "new", time.Now())
	f.tasks = append(f.tasks, t)
	return service.Result{Task: &t, Outcome: service.AppliedLocally}, nil
}

func (f *fakeTasks) UpdateTask(_ context.Context, id string, p model.Patch) (service.Result, error) {
	if f.patches == nil {
		f.patches = make(map[string]model.Patch)
	}
	f.patches[id] = p
	return service.Result{Outcome: service.FailedRemotely}, nil
}

func (f *fakeTasks) DeleteTask(context.Context, string) (bool, service.Outcome, error) {
	return true, service.AppliedLocally, nil
}

func (f *fakeTasks) ForceSyncWithCloud(context.Context) ([]model.Task, error) {
	f.synced++
	return f.tasks, nil
}

func (f *fakeTasks) GetSyncStatus() status.Sync { return status.Synced }

type fakeNet struct {
	online bool
	status status.Sync
}

func (n fakeNet) Online() bool        { return n.online }
func (n fakeNet) Status() status.Sync { return n.status }

type fakeSession struct{ user *auth.User }

func (s fakeSession) CurrentUser() *auth.User { return s.user }

func sampleTasks() []model.Task {
	now := time.Now()
	parent := model.NewTask(model.Draft{Title: "Parent", Status: model.StatusToDo}, "p", now)
	pid := parent.ID
	parent.Subtasks = []model.Task{
		model.NewTask(model.Draft{Title: "First", Status: model.StatusCompleted, ParentID: &pid}, "c1", now),
		model.NewTask(model.Draft{Title: "Second", Status: model.StatusToDo, ParentID: &pid}, "c2", now),
	}
	other := model.NewTask(model.Draft{Title: "Other", Status: model.StatusInProgress}, "o", now)
	return []model.Task{parent, other}
}

func newTestModel(tasks *fakeTasks, online bool) Model {
	m := NewModel(context.Background(), tasks, fakeNet{online: online}, fakeSession{user: &auth.User{ID: "alice"}})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	next, _ = next.Update(tasksLoadedMsg{tasks: tasks.tasks})
	return next.(Model)
}

func press(m Model, k string) (Model, tea.Cmd) {
	var msg tea.KeyMsg
	switch k {
	case " ":
		msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestBuildTree(t *testing.T) {
	items := BuildTree(sampleTasks())
	if len(items) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(items))
	}
	wantPrefix := []string{"", " ├─ ", " └─ ", ""}
	for i, it := range items {
		if it.Prefix != wantPrefix[i] {
			t.Errorf("row %d: prefix %q, want %q", i, it.Prefix, wantPrefix[i])
		}
	}
	if got := items[0].Title(); !strings.Contains(got, "[ ] Parent (1/2)") {
		t.Errorf("unexpected parent row %q", got)
	}
	if got := items[1].Title(); !strings.Contains(got, "[x] First") {
		t.Errorf("unexpected subtask row %q", got)
	}
	if got := items[3].Title(); !strings.Contains(got, "[~] Other") {
		t.Errorf("unexpected in-progress row %q", got)
	}
}

func TestSyncKeyIgnoredOffline(t *testing.T) {
	tasks := &fakeTasks{tasks: sampleTasks()}
	m := newTestModel(tasks, false)

	m, cmd := press(m, "S")
	if cmd != nil {
		t.Error("sync must not start while offline")
	}
	if !strings.Contains(m.indicator(), "offline") {
		t.Errorf("expected offline indicator, got %q", m.indicator())
	}
}

func TestSyncKeyIgnoredWhileSyncing(t *testing.T) {
	tasks := &fakeTasks{tasks: sampleTasks()}
	m := newTestModel(tasks, true)

	m, cmd := press(m, "S")
	if cmd == nil {
		t.Fatal("expected sync command")
	}
	if m.sync != status.Syncing {
		t.Errorf("expected syncing, got %v", m.sync)
	}
	if _, again := press(m, "S"); again != nil {
		t.Error("second sync must be ignored while the first runs")
	}

	msg := cmd()
	loaded, ok := msg.(tasksLoadedMsg)
	if !ok || loaded.notice != "synced" {
		t.Fatalf("unexpected message %#v", msg)
	}
	if tasks.synced != 1 {
		t.Errorf("expected one sync, got %d", tasks.synced)
	}
}

func TestConnectivityMessages(t *testing.T) {
	tasks := &fakeTasks{tasks: sampleTasks()}
	m := newTestModel(tasks, true)

	next, _ := m.Update(connMsg{Online: false, Status: status.Unsynced})
	m = next.(Model)
	if m.online {
		t.Fatal("expected offline")
	}
	next, cmd := m.Update(connMsg{Online: true, Status: status.Synced})
	m = next.(Model)
	if !m.online || cmd == nil {
		t.Error("expected a reload on reconnect")
	}
	if !strings.Contains(m.indicator(), "synced") {
		t.Errorf("unexpected indicator %q", m.indicator())
	}
}

func TestCopyYAML(t *testing.T) {
	tasks := &fakeTasks{tasks: sampleTasks()}
	m := newTestModel(tasks, true)
	var copied string
	m.copy = func(s string) error { copied = s; return nil }

	m, _ = press(m, "Y")
	if !strings.Contains(copied, "Parent") || !strings.Contains(copied, "Other") {
		t.Errorf("expected all tasks copied, got:\n%s", copied)
	}
	if !strings.Contains(m.notice, "copied 2") {
		t.Errorf("unexpected notice %q", m.notice)
	}

	m, _ = press(m, "y")
	if !strings.Contains(copied, "Second") || strings.Contains(copied, "Other") {
		t.Errorf("expected only the selected tree, got:\n%s", copied)
	}
}

func TestStatusKeys(t *testing.T) {
	tasks := &fakeTasks{tasks: sampleTasks()}
	m := newTestModel(tasks, true)

	m, cmd := press(m, " ")
	if cmd == nil {
		t.Fatal("expected update command")
	}
	msg := cmd()
	if got := *tasks.patches["p"].Status; got != model.StatusInProgress {
		t.Errorf("space should advance to In Progress, got %q", got)
	}
	if loaded, ok := msg.(tasksLoadedMsg); !ok || !strings.Contains(loaded.notice, "sync") {
		t.Errorf("expected a failed-remotely notice, got %#v", msg)
	}

	_, cmd = press(m, "x")
	cmd()
	if got := *tasks.patches["p"].Status; got != model.StatusCompleted {
		t.Errorf("x should complete, got %q", got)
	}
}

func TestSubtaskOfSubtaskRejected(t *testing.T) {
	tasks := &fakeTasks{tasks: sampleTasks()}
	m := newTestModel(tasks, true)

	m, _ = press(m, "j")
	if item, _ := m.selected(); !item.Task.IsSubtask {
		t.Fatalf("expected a subtask selected, got %+v", item.Task)
	}
	m, cmd := press(m, "s")
	if cmd != nil || m.state != stateList || m.err == nil {
		t.Errorf("expected an error and no state change, got state %v err %v", m.state, m.err)
	}
}

func TestCopyPrompt(t *testing.T) {
	tasks := &fakeTasks{tasks: sampleTasks()}
	m := newTestModel(tasks, true)
	var copied string
	m.copy = func(s string) error { copied = s; return nil }

	m, _ = press(m, "j")
	m, _ = press(m, "p")
	if !strings.Contains(copied, "- Title: Parent") || !strings.Contains(copied, "- First (Completed)") {
		t.Errorf("expected a breakdown prompt for the owning task, got:\n%s", copied)
	}
	if !strings.Contains(m.notice, "Parent") {
		t.Errorf("unexpected notice %q", m.notice)
	}

	_, _ = press(m, "P")
	if strings.Contains(copied, "- Title:") {
		t.Errorf("expected a new-task prompt, got:\n%s", copied)
	}
}
