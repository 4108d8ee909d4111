package model

import (
	"fmt"
	"time"
)

// Index holds a task set as a flat arena plus a parent index. Subtasks are
// one level deep, so every lookup is a map access instead of a tree walk.
type Index struct {
	tasks    map[string]*Task
	parent   map[string]string
	children map[string][]string
	roots    []string
}

// NewIndex builds an index from tasks. Top-level tasks may carry nested
// subtasks; subtasks may also appear flat with ParentID set. Subtasks whose
// parent is missing or is itself a subtask are dropped.
func NewIndex(tasks []Task) *Index {
	idx := &Index{
		tasks:    make(map[string]*Task),
		parent:   make(map[string]string),
		children: make(map[string][]string),
	}

	var flat []Task
	for _, t := range tasks {
		if t.ParentID != nil {
			flat = append(flat, t)
			continue
		}
		top := t.Clone()
		subs := top.Subtasks
		top.Subtasks = nil
		top.IsSubtask = false
		idx.tasks[top.ID] = &top
		idx.roots = append(idx.roots, top.ID)
		for _, st := range subs {
			pid := top.ID
			st.ParentID = &pid
			flat = append(flat, st)
		}
	}

	for _, st := range flat {
		pid := *st.ParentID
		if _, ok := idx.tasks[pid]; !ok || idx.parent[pid] != "" {
			continue
		}
		if _, dup := idx.tasks[st.ID]; dup {
			continue
		}
		c := st.Clone()
		c.Subtasks = nil
		c.IsSubtask = true
		idx.tasks[c.ID] = &c
		idx.parent[c.ID] = pid
		idx.children[pid] = append(idx.children[pid], c.ID)
	}
	return idx
}

// Assemble nests flat rows into top-level tasks, keeping input order.
func Assemble(flat []Task) []Task {
	return NewIndex(flat).Tasks()
}

// Len returns the number of tasks, subtasks included.
func (x *Index) Len() int { return len(x.tasks) }

// Has reports whether id is present.
func (x *Index) Has(id string) bool {
	_, ok := x.tasks[id]
	return ok
}

// Get returns a copy of the task with its subtasks populated.
func (x *Index) Get(id string) (Task, bool) {
	t, ok := x.tasks[id]
	if !ok {
		return Task{}, false
	}
	return x.assemble(t), true
}

// ParentOf returns the parent id of a subtask.
func (x *Index) ParentOf(id string) (string, bool) {
	pid, ok := x.parent[id]
	return pid, ok
}

// SubtaskIDs returns the ids of id's subtasks in order.
func (x *Index) SubtaskIDs(id string) []string {
	return append([]string(nil), x.children[id]...)
}

// Insert adds t. A top-level task goes to the front when front is set,
// otherwise to the back; a subtask is appended under its parent.
func (x *Index) Insert(t Task, front bool) error {
	if _, dup := x.tasks[t.ID]; dup {
		return fmt.Errorf("task %s already exists", t.ID)
	}
	c := t.Clone()
	subs := c.Subtasks
	c.Subtasks = nil

	if c.ParentID != nil {
		pid := *c.ParentID
		if _, ok := x.tasks[pid]; !ok {
			return fmt.Errorf("parent %s not found", pid)
		}
		if _, nested := x.parent[pid]; nested {
			return fmt.Errorf("parent %s is a subtask", pid)
		}
		c.IsSubtask = true
		x.tasks[c.ID] = &c
		x.parent[c.ID] = pid
		x.children[pid] = append(x.children[pid], c.ID)
		return nil
	}

	c.IsSubtask = false
	x.tasks[c.ID] = &c
	if front {
		x.roots = append([]string{c.ID}, x.roots...)
	} else {
		x.roots = append(x.roots, c.ID)
	}
	for _, st := range subs {
		pid := c.ID
		st.ParentID = &pid
		if err := x.Insert(st, false); err != nil {
			return err
		}
	}
	return nil
}

// Remove deletes id and, for a top-level task, all of its subtasks.
func (x *Index) Remove(id string) (Task, bool) {
	t, ok := x.tasks[id]
	if !ok {
		return Task{}, false
	}
	removed := x.assemble(t)

	if pid, isSub := x.parent[id]; isSub {
		x.children[pid] = without(x.children[pid], id)
		delete(x.parent, id)
		delete(x.tasks, id)
		return removed, true
	}

	for _, cid := range x.children[id] {
		delete(x.parent, cid)
		delete(x.tasks, cid)
	}
	delete(x.children, id)
	delete(x.tasks, id)
	x.roots = without(x.roots, id)
	return removed, true
}

// Replace overwrites the stored fields of an existing task, keeping its
// position and subtasks.
func (x *Index) Replace(t Task) bool {
	cur, ok := x.tasks[t.ID]
	if !ok {
		return false
	}
	c := t.Clone()
	c.Subtasks = nil
	c.ParentID = cur.ParentID
	c.IsSubtask = cur.IsSubtask
	*cur = c
	return true
}

// Update applies p to id, refreshes UpdatedAt and enforces the status rules:
// completing a top-level task completes its subtasks, and a subtask moving
// to In Progress or Completed promotes a To Do parent to In Progress. The
// returned slice lists every task that changed, id first.
func (x *Index) Update(id string, p Patch, now time.Time) ([]Task, bool) {
	t, ok := x.tasks[id]
	if !ok {
		return nil, false
	}
	before := t.Status
	p.Apply(t)
	t.UpdatedAt = now
	changed := []*Task{t}

	if t.Status != before {
		switch pid, isSub := x.parent[id]; {
		case !isSub && t.Status == StatusCompleted:
			for _, cid := range x.children[id] {
				st := x.tasks[cid]
				if st.Status != StatusCompleted {
					st.Status = StatusCompleted
					st.UpdatedAt = now
					changed = append(changed, st)
				}
			}
		case isSub && (t.Status == StatusInProgress || t.Status == StatusCompleted):
			if parent := x.tasks[pid]; parent.Status == StatusToDo {
				parent.Status = StatusInProgress
				parent.UpdatedAt = now
				changed = append(changed, parent)
			}
		}
	}

	out := make([]Task, len(changed))
	for i, c := range changed {
		out[i] = c.Clone()
	}
	return out, true
}

// Tasks returns the top-level tasks in order with subtasks populated.
func (x *Index) Tasks() []Task {
	out := make([]Task, 0, len(x.roots))
	for _, id := range x.roots {
		out = append(out, x.assemble(x.tasks[id]))
	}
	return out
}

// Flatten returns every task without nesting, each parent followed by its
// subtasks.
func (x *Index) Flatten() []Task {
	out := make([]Task, 0, len(x.tasks))
	for _, id := range x.roots {
		out = append(out, x.tasks[id].Clone())
		for _, cid := range x.children[id] {
			out = append(out, x.tasks[cid].Clone())
		}
	}
	return out
}

func (x *Index) assemble(t *Task) Task {
	c := t.Clone()
	if kids := x.children[t.ID]; len(kids) > 0 {
		c.Subtasks = make([]Task, 0, len(kids))
		for _, cid := range kids {
			c.Subtasks = append(c.Subtasks, x.tasks[cid].Clone())
		}
	}
	return c
}

func without(ids []string, id string) []string {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
