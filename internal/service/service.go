// Package service routes every task read and write to the remote store or
// the local cache and keeps the cache mirroring whichever is authoritative.
//
// Routing is decided per call:
//
//   - no session: the local cache is the store of record.
//   - session, offline: the local cache is updated and the mutation is queued
//     as a pending change; no remote call is made.
//   - session, online: the remote adapter is primary and the result is
//     mirrored into the cache. A failed remote write is applied locally and
//     queued so it is replayed later.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nissyi-gh/taskr/internal/auth"
	"github.com/nissyi-gh/taskr/internal/model"
	"github.com/nissyi-gh/taskr/internal/status"
	"go.uber.org/zap"
)

var (
	ErrNotAuthenticated = errors.New("not signed in")
	ErrOffline          = errors.New("remote store unreachable")
	ErrParentNotFound   = errors.New("parent task not found")
	ErrRemote           = errors.New("remote store call failed")
)

// Cache is the durable local store.
type Cache interface {
	ReplaceAll(ctx context.Context, tasks []model.Task) error
	ReadAll(ctx context.Context) ([]model.Task, error)
	EnqueueChange(ctx context.Context, change model.PendingChange) error
	ReadPendingChanges(ctx context.Context) ([]model.PendingChange, error)
	ClearPendingChanges(ctx context.Context) error
}

// Remote is the remote task store adapter. Failures come back as nil,
// false or !ok, never as errors.
type Remote interface {
	List(ctx context.Context) ([]model.Task, bool)
	Create(ctx context.Context, t model.Task) *model.Task
	Update(ctx context.Context, id string, p model.Patch) *model.Task
	Delete(ctx context.Context, id string) bool
}

// Session reports the signed-in user.
type Session interface {
	CurrentUser() *auth.User
}

// Connectivity gates remote calls and receives unsynced notices.
type Connectivity interface {
	Online() bool
	MarkUnsynced()
}

// Outcome tags where a mutation landed.
type Outcome int

const (
	AppliedLocally Outcome = iota
	ConfirmedRemotely
	FailedRemotely
)

func (o Outcome) String() string {
	switch o {
	case AppliedLocally:
		return "applied-locally"
	case ConfirmedRemotely:
		return "confirmed-remotely"
	case FailedRemotely:
		return "failed-remotely"
	}
	return "unknown"
}

// Result is the outcome of a save or update. Task is nil when the target
// was not found.
type Result struct {
	Task    *model.Task
	Outcome Outcome
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator replaces the random UUID generator.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// WithBeforeMirror sets a check run before the remote set replaces the
// cache. While it fails the cache is served and left as is.
func WithBeforeMirror(fn func(ctx context.Context) error) Option {
	return func(s *Service) { s.beforeMirror = fn }
}

// Service is the task access service.
type Service struct {
	cache   Cache
	remote  Remote
	session Session
	net     Connectivity
	status  *status.Machine
	log     *zap.SugaredLogger
	now     func() time.Time
	newID   func() string

	beforeMirror func(ctx context.Context) error

	// mu serializes read-modify-write sequences against the cache.
	mu sync.Mutex
}

// New creates a service that routes every call by session and connectivity.
func New(cache Cache, remote Remote, session Session, net Connectivity, log *zap.SugaredLogger, opts ...Option) *Service {
	s := &Service{
		cache:   cache,
		remote:  remote,
		session: session,
		net:     net,
		status:  status.NewMachine(),
		log:     log,
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type route int

const (
	routeLocal route = iota
	routeOffline
	routeRemote
)

func (s *Service) route() route {
	if s.session.CurrentUser() == nil {
		return routeLocal
	}
	if !s.net.Online() {
		return routeOffline
	}
	return routeRemote
}

// GetSyncStatus returns the per-call sync status.
func (s *Service) GetSyncStatus() status.Sync {
	return s.status.Current()
}

// SubscribeStatus registers fn for per-call status changes.
func (s *Service) SubscribeStatus(fn func(status.Sync)) func() {
	return s.status.Subscribe(fn)
}

// GetTasks returns the current task set. When the remote store is primary
// its answer replaces the cache; if it fails the cached mirror is returned.
func (s *Service) GetTasks(ctx context.Context) ([]model.Task, error) {
	if s.route() != routeRemote {
		return s.readCache(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.Begin()
	if err := s.settle(ctx); err != nil {
		s.status.End(ErrRemote)
		s.log.Warnw("local tasks not adopted remotely yet, serving cached tasks", "error", err)
		return s.cachedTasks(ctx)
	}
	tasks, ok := s.remote.List(ctx)
	if !ok {
		s.status.End(ErrRemote)
		s.log.Warnw("remote list failed, serving cached tasks")
		return s.cachedTasks(ctx)
	}
	s.status.End(nil)

	if err := s.cache.ReplaceAll(ctx, tasks); err != nil {
		return nil, fmt.Errorf("mirror remote tasks: %w", err)
	}
	return tasks, nil
}

// SaveTask creates a task from d. Identity and timestamps are assigned
// here, before any store is involved.
func (s *Service) SaveTask(ctx context.Context, d model.Draft) (Result, error) {
	if err := d.Validate(); err != nil {
		return Result{}, err
	}
	task := model.NewTask(d, s.newID(), s.now())
	rt := s.route()

	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.loadIndex(ctx)
	if err != nil {
		return Result{}, err
	}
	if task.ParentID != nil && !idx.Has(*task.ParentID) && rt == routeRemote {
		if idx, err = s.refreshIndex(ctx, idx); err != nil {
			return Result{}, err
		}
	}
	if task.ParentID != nil {
		if _, isSub := idx.ParentOf(*task.ParentID); isSub || !idx.Has(*task.ParentID) {
			return Result{}, fmt.Errorf("%w: %s", ErrParentNotFound, *task.ParentID)
		}
	}

	outcome := AppliedLocally
	switch rt {
	case routeRemote:
		s.status.Begin()
		if saved := s.remote.Create(ctx, task); saved != nil {
			s.status.End(nil)
			task = *saved
			outcome = ConfirmedRemotely
		} else {
			s.status.End(ErrRemote)
			outcome = FailedRemotely
		}
	}

	if err := idx.Insert(task, true); err != nil {
		return Result{}, fmt.Errorf("cache task %s: %w", task.ID, err)
	}
	if err := s.cache.ReplaceAll(ctx, idx.Tasks()); err != nil {
		return Result{}, fmt.Errorf("save task %s: %w", task.ID, err)
	}
	if rt != routeLocal && outcome != ConfirmedRemotely {
		if err := s.enqueue(ctx, model.ChangeAdd, task); err != nil {
			return Result{}, err
		}
	}

	out, _ := idx.Get(task.ID)
	return Result{Task: &out, Outcome: outcome}, nil
}

// UpdateTask applies p to id. Status changes carry the subtask rules:
// completing a parent completes its subtasks, and a subtask starting or
// finishing promotes a To Do parent to In Progress.
func (s *Service) UpdateTask(ctx context.Context, id string, p model.Patch) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}
	rt := s.route()

	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.loadIndex(ctx)
	if err != nil {
		return Result{}, err
	}
	if !idx.Has(id) && rt == routeRemote {
		if idx, err = s.refreshIndex(ctx, idx); err != nil {
			return Result{}, err
		}
	}

	changed, ok := idx.Update(id, p, s.now())
	if !ok {
		return Result{}, nil
	}

	outcome := AppliedLocally
	var unconfirmed []model.Task
	switch rt {
	case routeRemote:
		s.status.Begin()
		outcome = ConfirmedRemotely
		if updated := s.remote.Update(ctx, id, p); updated != nil {
			idx.Replace(*updated)
		} else {
			outcome = FailedRemotely
			unconfirmed = append(unconfirmed, changed[0])
		}
		for _, c := range changed[1:] {
			st := c.Status
			if updated := s.remote.Update(ctx, c.ID, model.Patch{Status: &st}); updated != nil {
				idx.Replace(*updated)
			} else {
				outcome = FailedRemotely
				unconfirmed = append(unconfirmed, c)
			}
		}
		if outcome == FailedRemotely {
			s.status.End(ErrRemote)
		} else {
			s.status.End(nil)
		}
	case routeOffline:
		unconfirmed = changed
	}

	if err := s.cache.ReplaceAll(ctx, idx.Tasks()); err != nil {
		return Result{}, fmt.Errorf("update task %s: %w", id, err)
	}
	for _, c := range unconfirmed {
		if err := s.enqueue(ctx, model.ChangeUpdate, c); err != nil {
			return Result{}, err
		}
	}

	out, _ := idx.Get(id)
	return Result{Task: &out, Outcome: outcome}, nil
}

// DeleteTask removes id and its subtasks. It reports false when id is
// unknown or when the remote store refused the delete.
func (s *Service) DeleteTask(ctx context.Context, id string) (bool, Outcome, error) {
	rt := s.route()

	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.loadIndex(ctx)
	if err != nil {
		return false, AppliedLocally, err
	}
	if !idx.Has(id) && rt == routeRemote {
		if idx, err = s.refreshIndex(ctx, idx); err != nil {
			return false, AppliedLocally, err
		}
	}
	if !idx.Has(id) {
		return false, AppliedLocally, nil
	}

	outcome := AppliedLocally
	if rt == routeRemote {
		s.status.Begin()
		if !s.remote.Delete(ctx, id) {
			s.status.End(ErrRemote)
			return false, FailedRemotely, nil
		}
		for _, cid := range idx.SubtaskIDs(id) {
			if !s.remote.Delete(ctx, cid) {
				s.log.Warnw("remote subtask delete failed", "task", cid, "parent", id)
			}
		}
		s.status.End(nil)
		outcome = ConfirmedRemotely
	}

	removed, _ := idx.Remove(id)
	if err := s.cache.ReplaceAll(ctx, idx.Tasks()); err != nil {
		return false, outcome, fmt.Errorf("delete task %s: %w", id, err)
	}
	if rt == routeOffline {
		for _, st := range removed.Subtasks {
			if err := s.enqueue(ctx, model.ChangeDelete, st); err != nil {
				return false, outcome, err
			}
		}
		removed.Subtasks = nil
		if err := s.enqueue(ctx, model.ChangeDelete, removed); err != nil {
			return false, outcome, err
		}
	}
	return true, outcome, nil
}

// ResetLocal clears the cache and the pending queue, as on sign-out.
func (s *Service) ResetLocal(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.cache.ReplaceAll(ctx, nil); err != nil {
		return fmt.Errorf("reset tasks: %w", err)
	}
	if err := s.cache.ClearPendingChanges(ctx); err != nil {
		return fmt.Errorf("reset pending changes: %w", err)
	}
	return nil
}

func (s *Service) readCache(ctx context.Context) ([]model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cachedTasks(ctx)
}

func (s *Service) cachedTasks(ctx context.Context) ([]model.Task, error) {
	tasks, err := s.cache.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("read cached tasks: %w", err)
	}
	return tasks, nil
}

func (s *Service) loadIndex(ctx context.Context) (*model.Index, error) {
	tasks, err := s.cache.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("read cached tasks: %w", err)
	}
	return model.NewIndex(tasks), nil
}

// refreshIndex replaces a stale mirror with the remote set. On remote
// failure the stale index is kept.
func (s *Service) refreshIndex(ctx context.Context, stale *model.Index) (*model.Index, error) {
	if err := s.settle(ctx); err != nil {
		s.log.Warnw("keeping cached tasks", "error", err)
		return stale, nil
	}
	tasks, ok := s.remote.List(ctx)
	if !ok {
		return stale, nil
	}
	if err := s.cache.ReplaceAll(ctx, tasks); err != nil {
		return nil, fmt.Errorf("mirror remote tasks: %w", err)
	}
	return model.NewIndex(tasks), nil
}

func (s *Service) settle(ctx context.Context) error {
	if s.beforeMirror == nil {
		return nil
	}
	return s.beforeMirror(ctx)
}

func (s *Service) enqueue(ctx context.Context, typ model.ChangeType, t model.Task) error {
	t.Subtasks = nil
	err := s.cache.EnqueueChange(ctx, model.PendingChange{Type: typ, Task: t, Timestamp: s.now()})
	if err != nil {
		return fmt.Errorf("queue %s of task %s: %w", typ, t.ID, err)
	}
	s.net.MarkUnsynced()
	return nil
}
