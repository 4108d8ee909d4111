// Package migrate moves tasks created while signed out into the remote
// store the moment a session is established.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nissyi-gh/taskr/internal/model"
	"github.com/nissyi-gh/taskr/internal/preset"
	"go.uber.org/zap"
)

// ErrRemoteUnavailable is returned when the remote task list cannot be read.
// The local cache is left untouched in that case.
var ErrRemoteUnavailable = errors.New("remote task list unavailable")

// PendingKey is the cache meta key set while a sign-in migration has not
// completed.
const PendingKey = "migration_pending"

// Cache is the part of the local cache migration writes to directly.
type Cache interface {
	ReadAll(ctx context.Context) ([]model.Task, error)
	ReplaceAll(ctx context.Context, tasks []model.Task) error
	EnqueueChange(ctx context.Context, change model.PendingChange) error
}

// Remote is the part of the remote adapter migration needs.
type Remote interface {
	List(ctx context.Context) ([]model.Task, bool)
	Create(ctx context.Context, t model.Task) *model.Task
}

// Report describes one migration run. Tasks is the adopted remote set.
type Report struct {
	Migrated int
	Skipped  int
	Failed   []model.Task
	Tasks    []model.Task
}

// Migrator runs the sign-in migration.
type Migrator struct {
	cache  Cache
	remote Remote
	log    *zap.SugaredLogger
	newID  func() string
	now    func() time.Time
}

// New creates a migrator writing to cache and remote.
func New(cache Cache, remote Remote, log *zap.SugaredLogger) *Migrator {
	return &Migrator{
		cache:  cache,
		remote: remote,
		log:    log,
		newID:  func() string { return uuid.New().String() },
		now:    time.Now,
	}
}

// Run uploads every local task that is neither an untouched preset nor
// already present remotely (same title, description and status), under
// fresh ids. The cache is replaced with the remote set only after the
// re-fetch succeeds; tasks that failed to upload are kept locally and
// queued as pending adds. With an empty cache Run only lists, so running it
// again is harmless.
func (m *Migrator) Run(ctx context.Context) (Report, error) {
	local, err := m.cache.ReadAll(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("read cached tasks: %w", err)
	}
	remoteTasks, ok := m.remote.List(ctx)
	if !ok {
		return Report{}, ErrRemoteUnavailable
	}
	if len(local) == 0 {
		return Report{Tasks: remoteTasks}, nil
	}

	var rep Report
	var uploads []model.Task
	for _, t := range local {
		if preset.Unmodified(t) || duplicated(t, remoteTasks) {
			rep.Skipped++
			continue
		}
		uploads = append(uploads, m.reidentify(t))
	}

	rep.Failed = m.upload(ctx, uploads)
	rep.Migrated = len(uploads) - countTrees(rep.Failed)
	for _, f := range rep.Failed {
		m.log.Warnw("task not migrated", "task", f.ID, "title", f.Title)
	}

	fresh, ok := m.remote.List(ctx)
	if !ok {
		m.log.Errorw("re-fetch after migration failed, keeping local cache", "migrated", rep.Migrated)
		return rep, fmt.Errorf("re-fetch after upload: %w", ErrRemoteUnavailable)
	}

	idx := model.NewIndex(fresh)
	for _, f := range rep.Failed {
		if err := idx.Insert(f, f.ParentID == nil); err != nil {
			m.log.Warnw("failed task dropped from cache", "task", f.ID, "error", err)
		}
	}
	if err := m.cache.ReplaceAll(ctx, idx.Tasks()); err != nil {
		return rep, fmt.Errorf("adopt remote tasks: %w", err)
	}
	for _, f := range rep.Failed {
		if err := m.enqueueTree(ctx, f); err != nil {
			return rep, err
		}
	}

	rep.Tasks = idx.Tasks()
	m.log.Infow("migration finished", "migrated", rep.Migrated, "skipped", rep.Skipped, "failed", len(rep.Failed))
	return rep, nil
}

func duplicated(t model.Task, remoteTasks []model.Task) bool {
	for _, r := range remoteTasks {
		if preset.SameText(r, t.Title, t.DescriptionText(), t.Status) {
			return true
		}
	}
	return false
}

// reidentify gives t and its subtasks new ids, re-pointing the subtasks.
func (m *Migrator) reidentify(t model.Task) model.Task {
	c := t.Clone()
	c.ID = m.newID()
	c.ParentID = nil
	c.IsSubtask = false
	for i := range c.Subtasks {
		pid := c.ID
		c.Subtasks[i].ID = m.newID()
		c.Subtasks[i].ParentID = &pid
		c.Subtasks[i].IsSubtask = true
	}
	return c
}

// upload creates every tree concurrently and waits for all of them. It
// returns what failed: a whole tree when its parent failed, otherwise the
// individual subtasks.
func (m *Migrator) upload(ctx context.Context, trees []model.Task) []model.Task {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed []model.Task
	)
	for _, t := range trees {
		wg.Add(1)
		go func(t model.Task) {
			defer wg.Done()
			top := t.Clone()
			top.Subtasks = nil
			if m.remote.Create(ctx, top) == nil {
				mu.Lock()
				failed = append(failed, t)
				mu.Unlock()
				return
			}
			for _, st := range t.Subtasks {
				if m.remote.Create(ctx, st) == nil {
					mu.Lock()
					failed = append(failed, st)
					mu.Unlock()
				}
			}
		}(t)
	}
	wg.Wait()
	return failed
}

func countTrees(failed []model.Task) int {
	n := 0
	for _, f := range failed {
		if f.ParentID == nil {
			n++
		}
	}
	return n
}

func (m *Migrator) enqueueTree(ctx context.Context, t model.Task) error {
	subs := t.Subtasks
	t.Subtasks = nil
	for _, c := range append([]model.Task{t}, subs...) {
		err := m.cache.EnqueueChange(ctx, model.PendingChange{Type: model.ChangeAdd, Task: c, Timestamp: m.now()})
		if err != nil {
			return fmt.Errorf("queue unmigrated task %s: %w", c.ID, err)
		}
	}
	return nil
}
