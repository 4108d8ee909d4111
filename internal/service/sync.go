package service

import (
	"context"
	"fmt"

	"github.com/nissyi-gh/taskr/internal/model"
)

// SyncReport summarizes a SyncTasksWithCloud run.
type SyncReport struct {
	Uploaded int
	Failed   int
	Cleared  bool
}

// FlushReport summarizes a pending-change replay.
type FlushReport struct {
	Replayed int
	Failed   int
}

func (s *Service) requireRemote() error {
	if s.session.CurrentUser() == nil {
		return ErrNotAuthenticated
	}
	if !s.net.Online() {
		return ErrOffline
	}
	return nil
}

// SyncTasksWithCloud uploads every cached task the remote store does not
// hold yet. On full success the cache is cleared so it no longer shadows the
// remote set; a partial failure leaves it intact and sets status.Error.
func (s *Service) SyncTasksWithCloud(ctx context.Context) (SyncReport, error) {
	if err := s.requireRemote(); err != nil {
		return SyncReport{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.settle(ctx); err != nil {
		return SyncReport{}, fmt.Errorf("cloud sync blocked: %w", err)
	}
	local, err := s.cache.ReadAll(ctx)
	if err != nil {
		return SyncReport{}, fmt.Errorf("read cached tasks: %w", err)
	}

	s.status.Begin()
	remoteTasks, ok := s.remote.List(ctx)
	if !ok {
		s.status.End(ErrRemote)
		return SyncReport{}, fmt.Errorf("list remote tasks: %w", ErrRemote)
	}
	known := model.NewIndex(remoteTasks)

	var rep SyncReport
	for _, t := range local {
		if !known.Has(t.ID) {
			top := t.Clone()
			top.Subtasks = nil
			if s.remote.Create(ctx, top) == nil {
				rep.Failed += 1 + len(t.Subtasks)
				continue
			}
			rep.Uploaded++
		}
		for _, st := range t.Subtasks {
			if known.Has(st.ID) {
				continue
			}
			if s.remote.Create(ctx, st) == nil {
				rep.Failed++
				continue
			}
			rep.Uploaded++
		}
	}

	if rep.Failed > 0 {
		s.status.End(ErrRemote)
		s.log.Warnw("cloud sync incomplete", "uploaded", rep.Uploaded, "failed", rep.Failed)
		return rep, nil
	}
	if err := s.cache.ReplaceAll(ctx, nil); err != nil {
		s.status.End(err)
		return rep, fmt.Errorf("clear synced cache: %w", err)
	}
	rep.Cleared = true
	s.status.End(nil)
	s.log.Infow("cloud sync complete", "uploaded", rep.Uploaded)
	return rep, nil
}

// ForceSyncWithCloud replays pending changes, uploads anything still local
// and returns the fresh remote set.
func (s *Service) ForceSyncWithCloud(ctx context.Context) ([]model.Task, error) {
	if err := s.requireRemote(); err != nil {
		return nil, err
	}
	if _, err := s.FlushPending(ctx); err != nil {
		return nil, err
	}
	if _, err := s.SyncTasksWithCloud(ctx); err != nil {
		return nil, err
	}
	return s.GetTasks(ctx)
}

// FlushPending replays queued changes in insertion order. A change that
// fails stays queued, and so does every later change to the same task, so
// replay order per task is preserved for the next attempt; the report then
// comes with an error wrapping ErrRemote. Without a session there is
// nothing to replay.
func (s *Service) FlushPending(ctx context.Context) (FlushReport, error) {
	if s.session.CurrentUser() == nil {
		return FlushReport{}, nil
	}
	if !s.net.Online() {
		return FlushReport{}, ErrOffline
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	changes, err := s.cache.ReadPendingChanges(ctx)
	if err != nil {
		return FlushReport{}, fmt.Errorf("read pending changes: %w", err)
	}
	if len(changes) == 0 {
		return FlushReport{}, nil
	}

	s.status.Begin()
	remoteTasks, ok := s.remote.List(ctx)
	if !ok {
		s.status.End(ErrRemote)
		return FlushReport{}, fmt.Errorf("list remote tasks: %w", ErrRemote)
	}
	known := model.NewIndex(remoteTasks)
	present := make(map[string]bool, known.Len())
	for _, t := range known.Flatten() {
		present[t.ID] = true
	}

	var (
		rep     FlushReport
		blocked = make(map[string]bool)
		retry   []model.PendingChange
	)
	for _, c := range changes {
		id := c.Task.ID
		if blocked[id] || !s.replay(ctx, c, present) {
			blocked[id] = true
			retry = append(retry, c)
			rep.Failed++
			continue
		}
		rep.Replayed++
	}

	if err := s.cache.ClearPendingChanges(ctx); err != nil {
		s.status.End(err)
		return rep, fmt.Errorf("clear pending changes: %w", err)
	}
	for _, c := range retry {
		if err := s.cache.EnqueueChange(ctx, c); err != nil {
			s.status.End(err)
			return rep, fmt.Errorf("requeue %s of task %s: %w", c.Type, c.Task.ID, err)
		}
	}

	if rep.Failed > 0 {
		s.status.End(ErrRemote)
		s.log.Warnw("pending changes left queued", "replayed", rep.Replayed, "failed", rep.Failed)
		return rep, fmt.Errorf("%d pending change(s) left queued: %w", rep.Failed, ErrRemote)
	}
	s.status.End(nil)
	s.log.Infow("pending changes replayed", "count", rep.Replayed)
	return rep, nil
}

// replay applies one change to the remote store. present tracks which ids
// the remote store holds so replays stay idempotent.
func (s *Service) replay(ctx context.Context, c model.PendingChange, present map[string]bool) bool {
	t := c.Task
	switch c.Type {
	case model.ChangeAdd:
		if present[t.ID] {
			return true
		}
		t.Subtasks = nil
		if s.remote.Create(ctx, t) == nil {
			return false
		}
		present[t.ID] = true
		return true
	case model.ChangeUpdate:
		if !present[t.ID] {
			// The task never reached the remote store; upload its latest state.
			t.Subtasks = nil
			if s.remote.Create(ctx, t) == nil {
				return false
			}
			present[t.ID] = true
			return true
		}
		return s.remote.Update(ctx, t.ID, model.PatchFrom(t)) != nil
	case model.ChangeDelete:
		if !present[t.ID] {
			return true
		}
		if !s.remote.Delete(ctx, t.ID) {
			return false
		}
		delete(present, t.ID)
		return true
	}
	s.log.Warnw("dropping pending change of unknown type", "type", c.Type, "task", t.ID)
	return true
}
